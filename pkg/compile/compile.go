// Package compile drains the backlog of unprocessed raw results into the
// analytical table.
//
// Each file moves through discovered → loading → compiled → marked. The
// processed tag flips to true only after a successful upsert, so any failure
// leaves the file exactly as found and the next run retries it from scratch.
// The upsert's conflict-skip semantics make that retry harmless.
package compile

import (
	"context"
	"fmt"

	"github.com/rvfranca/loteria-db/internal/logctx"
	"github.com/rvfranca/loteria-db/pkg/lottodb"
	"github.com/rvfranca/loteria-db/pkg/objstore"
	"github.com/rvfranca/loteria-db/pkg/results"
	"github.com/rvfranca/loteria-db/pkg/scan"
)

// MismatchPolicy decides what happens when the payload's draw number
// disagrees with the one in the object key.
type MismatchPolicy string

const (
	// TrustPayload keys the row by the payload's number and logs the
	// discrepancy. This matches the historical behavior.
	TrustPayload MismatchPolicy = "trust-payload"
	// Reject skips the file as a permanent input error.
	Reject MismatchPolicy = "reject"
)

// FileStatus is the terminal state of one file's compilation.
type FileStatus string

const (
	// FileMarked: row upserted and tag flipped. Full success.
	FileMarked FileStatus = "marked"
	// FileUnmarked: row upserted but the tag flip failed. The file will be
	// recompiled next run; the conflict-skip upsert makes that a no-op.
	FileUnmarked FileStatus = "unmarked"
)

// Summary reports a batch run.
type Summary struct {
	Attempted     int
	Compiled      int
	Marked        int
	TagFlipFailed int
	RowsInserted  int
	Failed        int
}

// Compiler turns raw result objects into analytical rows.
type Compiler struct {
	store   objstore.Store
	db      *lottodb.DB
	scanner *scan.Scanner
	policy  MismatchPolicy
}

// New creates a compiler. An empty policy defaults to TrustPayload.
func New(store objstore.Store, db *lottodb.DB, scanner *scan.Scanner, policy MismatchPolicy) *Compiler {
	if policy == "" {
		policy = TrustPayload
	}
	return &Compiler{store: store, db: db, scanner: scanner, policy: policy}
}

// CompileFile processes one raw result object end to end. When the returned
// error is non-nil the file's tag was left untouched and the next run will
// retry it.
func (c *Compiler) CompileFile(ctx context.Context, key string) (FileStatus, bool, error) {
	ctx = logctx.WithStr(ctx, "key", key)
	log := logctx.FromContext(ctx)

	game, pathDraw, err := results.ParseKey(key)
	if err != nil {
		return "", false, fmt.Errorf("parse key: %w", err)
	}
	log = log.With().Str("game", game).Int("draw_number", pathDraw).Logger()

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("load raw result: %w", err)
	}

	draw, err := results.ParseDraw(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse raw result: %w", err)
	}

	if draw.Number != pathDraw {
		if c.policy == Reject {
			return "", false, fmt.Errorf("draw number mismatch: path %d, payload %d", pathDraw, draw.Number)
		}
		log.Warn().
			Int("payload_draw_number", draw.Number).
			Msg("draw number mismatch, trusting payload")
	}

	inserted, err := c.db.Insert(draw.Row(game, key))
	if err != nil {
		return "", false, fmt.Errorf("upsert result row: %w", err)
	}
	if !inserted {
		log.Debug().Msg("row already present, upsert skipped")
	}

	// Tag flip only after the upsert succeeded. A flip failure is not rolled
	// back; the file just gets recompiled next run.
	if err := objstore.FlipProcessed(ctx, c.store, key, true); err != nil {
		log.Error().Err(err).Msg("compiled but tag flip failed")
		return FileUnmarked, inserted, nil
	}

	log.Info().Bool("row_inserted", inserted).Msg("compiled raw result")
	return FileMarked, inserted, nil
}

// Run compiles every unprocessed file under the raw-results prefix. A single
// file's failure is logged and the batch continues; only the initial scan can
// fail the run.
func (c *Compiler) Run(ctx context.Context) (Summary, error) {
	log := logctx.FromContext(ctx)

	keys, err := c.scanner.Unprocessed(ctx, results.RawPrefix)
	if err != nil {
		return Summary{}, fmt.Errorf("scan unprocessed files: %w", err)
	}
	if len(keys) == 0 {
		log.Info().Msg("no unprocessed files found")
		return Summary{}, nil
	}

	log.Info().Int("unprocessed", len(keys)).Msg("starting compilation")

	summary := Summary{Attempted: len(keys)}
	for _, key := range keys {
		status, inserted, err := c.CompileFile(ctx, key)
		if err != nil {
			summary.Failed++
			log.Error().Err(err).Str("key", key).Msg("compile failed, skipping file")
			continue
		}
		summary.Compiled++
		if inserted {
			summary.RowsInserted++
		}
		switch status {
		case FileMarked:
			summary.Marked++
		case FileUnmarked:
			summary.TagFlipFailed++
		}
	}

	log.Info().
		Int("attempted", summary.Attempted).
		Int("compiled", summary.Compiled).
		Int("marked", summary.Marked).
		Int("rows_inserted", summary.RowsInserted).
		Int("tag_flip_failed", summary.TagFlipFailed).
		Int("failed", summary.Failed).
		Msg("compilation finished")
	return summary, nil
}
