// Package reset is the administrative inverse of the compiler's tagging: it
// re-marks every processed file as unprocessed so a later compiler run
// rebuilds the analytical table from the raw archive.
package reset

import (
	"context"
	"fmt"

	"github.com/rvfranca/loteria-db/internal/logctx"
	"github.com/rvfranca/loteria-db/pkg/objstore"
	"github.com/rvfranca/loteria-db/pkg/scan"
)

// Summary reports a reset run.
type Summary struct {
	Found  int
	Reset  int
	Failed int
}

// Resetter rewrites processed=true tags back to false.
type Resetter struct {
	store   objstore.Store
	scanner *scan.Scanner
}

// New creates a resetter.
func New(store objstore.Store, scanner *scan.Scanner) *Resetter {
	return &Resetter{store: store, scanner: scanner}
}

// Run resets every object under the prefix currently tagged processed=true.
// Objects tagged false or carrying no tag are never touched. Per-object tag
// failures are logged and the run continues.
func (r *Resetter) Run(ctx context.Context, prefix string) (Summary, error) {
	log := logctx.FromContext(ctx)

	keys, err := r.scanner.Processed(ctx, prefix)
	if err != nil {
		return Summary{}, fmt.Errorf("scan processed files: %w", err)
	}
	if len(keys) == 0 {
		log.Info().Msg("no processed files found, nothing to reset")
		return Summary{}, nil
	}

	summary := Summary{Found: len(keys)}
	for _, key := range keys {
		if err := objstore.FlipProcessed(ctx, r.store, key, false); err != nil {
			summary.Failed++
			log.Error().Err(err).Str("key", key).Msg("reset tag failed")
			continue
		}
		summary.Reset++
	}

	log.Info().
		Int("found", summary.Found).
		Int("reset", summary.Reset).
		Int("failed", summary.Failed).
		Msg("tag reset finished")
	return summary, nil
}
