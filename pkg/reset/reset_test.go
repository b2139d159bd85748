package reset

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rvfranca/loteria-db/pkg/compile"
	"github.com/rvfranca/loteria-db/pkg/lottodb"
	"github.com/rvfranca/loteria-db/pkg/objstore"
	"github.com/rvfranca/loteria-db/pkg/scan"
)

func payload(draw int) string {
	return fmt.Sprintf(`{"numero":%d,"dataApuracao":"01/01/2024","listaDezenas":["01","02"],"listaRateioPremio":[]}`, draw)
}

func seed(t *testing.T, store *objstore.Memory, key, body, processed string) {
	t.Helper()
	ctx := context.Background()
	if err := store.Put(ctx, key, []byte(body)); err != nil {
		t.Fatalf("Put %s failed: %v", key, err)
	}
	if processed != "" {
		tags := []objstore.Tag{{Key: "processed", Value: processed}}
		if err := store.PutTags(ctx, key, tags); err != nil {
			t.Fatalf("PutTags %s failed: %v", key, err)
		}
	}
}

func tagValue(t *testing.T, store *objstore.Memory, key string) (string, bool) {
	t.Helper()
	tags, err := store.GetTags(context.Background(), key)
	if err != nil {
		t.Fatalf("GetTags %s failed: %v", key, err)
	}
	return objstore.ProcessedState(tags)
}

func TestRunResetsOnlyProcessedObjects(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()

	seed(t, store, "raw-results/quina/1.json", payload(1), "true")
	seed(t, store, "raw-results/quina/2.json", payload(2), "false")
	seed(t, store, "raw-results/quina/3.json", payload(3), "") // untagged

	summary, err := New(store, scan.New(store, 4)).Run(ctx, "raw-results/")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Found != 1 || summary.Reset != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}

	if value, _ := tagValue(t, store, "raw-results/quina/1.json"); value != "false" {
		t.Errorf("key 1 tag = %q, want false", value)
	}
	if value, _ := tagValue(t, store, "raw-results/quina/2.json"); value != "false" {
		t.Errorf("key 2 tag = %q, want untouched false", value)
	}
	if _, tagged := tagValue(t, store, "raw-results/quina/3.json"); tagged {
		t.Error("key 3 gained a tag, want untouched")
	}
}

func TestRunEmpty(t *testing.T) {
	store := objstore.NewMemory()

	summary, err := New(store, scan.New(store, 4)).Run(context.Background(), "raw-results/")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Found != 0 {
		t.Errorf("Found = %d, want 0", summary.Found)
	}
}

// Reset followed by a compiler run must restore the same table content as
// the original run: compilation is a pure function of the raw payloads.
func TestResetThenRecompileRestoresTable(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	scanner := scan.New(store, 4)

	seed(t, store, "raw-results/quina/1.json", payload(1), "false")
	seed(t, store, "raw-results/lotofacil/2.json", payload(2), "false")

	firstDB, err := lottodb.Open(lottodb.DefaultConfig(filepath.Join(t.TempDir(), "first.db")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer firstDB.Close()

	if _, err := compile.New(store, firstDB, scanner, "").Run(ctx); err != nil {
		t.Fatalf("first compile failed: %v", err)
	}

	if _, err := New(store, scanner).Run(ctx, "raw-results/"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	secondDB, err := lottodb.Open(lottodb.DefaultConfig(filepath.Join(t.TempDir(), "second.db")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer secondDB.Close()

	if _, err := compile.New(store, secondDB, scanner, "").Run(ctx); err != nil {
		t.Fatalf("second compile failed: %v", err)
	}

	games := []string{"lotofacil", "quina"}
	first, err := firstDB.LatestDraws(lottodb.LatestQuery{Games: games})
	if err != nil {
		t.Fatalf("LatestDraws failed: %v", err)
	}
	second, err := secondDB.LatestDraws(lottodb.LatestQuery{Games: games})
	if err != nil {
		t.Fatalf("LatestDraws failed: %v", err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("len(first) = %d, len(second) = %d; want 2 and 2", len(first), len(second))
	}
	for i := range first {
		if first[i].GameName != second[i].GameName || first[i].DrawNumber != second[i].DrawNumber {
			t.Errorf("row %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
