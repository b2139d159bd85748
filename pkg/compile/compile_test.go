package compile

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rvfranca/loteria-db/pkg/lottodb"
	"github.com/rvfranca/loteria-db/pkg/objstore"
	"github.com/rvfranca/loteria-db/pkg/scan"
)

func payload(draw int, date string) string {
	return fmt.Sprintf(`{"numero":%d,"dataApuracao":"%s","listaDezenas":["01","02","03"],"listaRateioPremio":[{"faixa":1,"numeroDeGanhadores":0,"valorPremio":0}]}`, draw, date)
}

func openTestDB(t *testing.T) *lottodb.DB {
	t.Helper()
	db, err := lottodb.Open(lottodb.DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUnprocessed(t *testing.T, store *objstore.Memory, key, body string) {
	t.Helper()
	ctx := context.Background()
	if err := store.Put(ctx, key, []byte(body)); err != nil {
		t.Fatalf("Put %s failed: %v", key, err)
	}
	if err := objstore.TagUnprocessed(ctx, store, key); err != nil {
		t.Fatalf("TagUnprocessed %s failed: %v", key, err)
	}
}

func processedValue(t *testing.T, store *objstore.Memory, key string) string {
	t.Helper()
	tags, err := store.GetTags(context.Background(), key)
	if err != nil {
		t.Fatalf("GetTags %s failed: %v", key, err)
	}
	value, _ := objstore.ProcessedState(tags)
	return value
}

func newCompiler(store *objstore.Memory, db *lottodb.DB, policy MismatchPolicy) *Compiler {
	return New(store, db, scan.New(store, 4), policy)
}

func TestCompileFileSuccess(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	db := openTestDB(t)
	key := "raw-results/lotofacil/3200.json"
	seedUnprocessed(t, store, key, payload(3200, "01/01/2024"))

	status, inserted, err := newCompiler(store, db, "").CompileFile(ctx, key)
	if err != nil {
		t.Fatalf("CompileFile failed: %v", err)
	}
	if status != FileMarked || !inserted {
		t.Errorf("status = %q, inserted = %v; want marked, true", status, inserted)
	}

	if got := processedValue(t, store, key); got != "true" {
		t.Errorf("processed tag = %q, want true", got)
	}

	draws, err := db.LatestDraws(lottodb.LatestQuery{Games: []string{"lotofacil"}})
	if err != nil {
		t.Fatalf("LatestDraws failed: %v", err)
	}
	if len(draws) != 1 || draws[0].DrawNumber != 3200 {
		t.Fatalf("draws = %+v", draws)
	}
	if got := draws[0].DrawDate.Format("2006-01-02"); got != "2024-01-01" {
		t.Errorf("DrawDate = %s, want 2024-01-01", got)
	}
}

func TestCompileFileIdempotent(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	db := openTestDB(t)
	key := "raw-results/lotofacil/3200.json"
	seedUnprocessed(t, store, key, payload(3200, "01/01/2024"))
	compiler := newCompiler(store, db, "")

	if _, _, err := compiler.CompileFile(ctx, key); err != nil {
		t.Fatalf("first CompileFile failed: %v", err)
	}
	status, inserted, err := compiler.CompileFile(ctx, key)
	if err != nil {
		t.Fatalf("second CompileFile failed: %v", err)
	}
	if status != FileMarked {
		t.Errorf("second status = %q, want marked", status)
	}
	if inserted {
		t.Error("second compile inserted a row, want conflict-skip no-op")
	}

	n, _ := db.Count()
	if n != 1 {
		t.Errorf("Count = %d, want exactly 1 row", n)
	}
}

func TestCompileFilePermanentErrors(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	db := openTestDB(t)
	compiler := newCompiler(store, db, "")

	// Malformed path.
	seedUnprocessed(t, store, "raw-results/stray.json", payload(1, "01/01/2024"))
	if _, _, err := compiler.CompileFile(ctx, "raw-results/stray.json"); err == nil {
		t.Error("expected error for malformed key")
	}

	// Malformed payload.
	seedUnprocessed(t, store, "raw-results/quina/7.json", "not json at all")
	if _, _, err := compiler.CompileFile(ctx, "raw-results/quina/7.json"); err == nil {
		t.Error("expected error for malformed payload")
	}
	if got := processedValue(t, store, "raw-results/quina/7.json"); got != "false" {
		t.Errorf("failed file tag = %q, want still false", got)
	}
}

func TestCompileFileMismatchPolicies(t *testing.T) {
	ctx := context.Background()
	key := "raw-results/quina/10.json"
	body := payload(99, "01/01/2024") // payload says 99, path says 10

	// trust-payload keys the row by the payload number.
	store := objstore.NewMemory()
	db := openTestDB(t)
	seedUnprocessed(t, store, key, body)
	status, _, err := newCompiler(store, db, TrustPayload).CompileFile(ctx, key)
	if err != nil {
		t.Fatalf("CompileFile failed: %v", err)
	}
	if status != FileMarked {
		t.Errorf("status = %q, want marked", status)
	}
	draws, _ := db.LatestDraws(lottodb.LatestQuery{Games: []string{"quina"}})
	if len(draws) != 1 || draws[0].DrawNumber != 99 {
		t.Errorf("draws = %+v, want payload-keyed draw 99", draws)
	}

	// reject skips the file and leaves its tag alone.
	store = objstore.NewMemory()
	db = openTestDB(t)
	seedUnprocessed(t, store, key, body)
	if _, _, err := newCompiler(store, db, Reject).CompileFile(ctx, key); err == nil {
		t.Fatal("expected mismatch error under reject policy")
	}
	if got := processedValue(t, store, key); got != "false" {
		t.Errorf("tag = %q, want still false", got)
	}
}

func TestCompileFileTagFlipFailure(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	db := openTestDB(t)
	key := "raw-results/lotofacil/3200.json"
	seedUnprocessed(t, store, key, payload(3200, "01/01/2024"))
	compiler := newCompiler(store, db, "")

	// GetTags succeeds during the scan seeding above; fail tag ops now.
	store.FailTags[key] = true

	status, inserted, err := compiler.CompileFile(ctx, key)
	if err != nil {
		t.Fatalf("CompileFile failed: %v", err)
	}
	if status != FileUnmarked || !inserted {
		t.Errorf("status = %q, inserted = %v; want unmarked, true", status, inserted)
	}

	// Next run recompiles harmlessly thanks to the conflict-skip upsert.
	store.FailTags[key] = false
	status, inserted, err = compiler.CompileFile(ctx, key)
	if err != nil {
		t.Fatalf("recompile failed: %v", err)
	}
	if status != FileMarked || inserted {
		t.Errorf("recompile status = %q, inserted = %v; want marked, false", status, inserted)
	}

	n, _ := db.Count()
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	db := openTestDB(t)

	seedUnprocessed(t, store, "raw-results/lotofacil/1.json", payload(1, "01/01/2024"))
	seedUnprocessed(t, store, "raw-results/lotofacil/2.json", "{malformed")
	seedUnprocessed(t, store, "raw-results/quina/3.json", payload(3, "03/01/2024"))

	summary, err := newCompiler(store, db, "").Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Attempted != 3 || summary.Compiled != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.RowsInserted != 2 || summary.Marked != 2 {
		t.Errorf("summary = %+v", summary)
	}

	// The healthy files were marked; the malformed one stays discoverable.
	if got := processedValue(t, store, "raw-results/lotofacil/1.json"); got != "true" {
		t.Errorf("file 1 tag = %q, want true", got)
	}
	if got := processedValue(t, store, "raw-results/lotofacil/2.json"); got != "false" {
		t.Errorf("file 2 tag = %q, want false", got)
	}
	if got := processedValue(t, store, "raw-results/quina/3.json"); got != "true" {
		t.Errorf("file 3 tag = %q, want true", got)
	}
}

func TestRunEmptyBacklog(t *testing.T) {
	store := objstore.NewMemory()
	db := openTestDB(t)

	summary, err := newCompiler(store, db, "").Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Attempted != 0 {
		t.Errorf("Attempted = %d, want 0", summary.Attempted)
	}
}
