// Package scan discovers raw result objects by their processed tag. Each
// call re-derives its list from current tag state; nothing is cached between
// runs.
package scan

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rvfranca/loteria-db/internal/logctx"
	"github.com/rvfranca/loteria-db/pkg/objstore"
)

const defaultConcurrency = 8

// Scanner lists objects under a prefix filtered by processed-tag state.
type Scanner struct {
	store       objstore.Store
	concurrency int
}

// New creates a scanner. concurrency bounds the parallel tag lookups; values
// below 1 fall back to the default.
func New(store objstore.Store, concurrency int) *Scanner {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Scanner{store: store, concurrency: concurrency}
}

// Unprocessed returns the keys currently tagged processed=false.
func (s *Scanner) Unprocessed(ctx context.Context, prefix string) ([]string, error) {
	return s.withState(ctx, prefix, "false")
}

// Processed returns the keys currently tagged processed=true.
func (s *Scanner) Processed(ctx context.Context, prefix string) ([]string, error) {
	return s.withState(ctx, prefix, "true")
}

// withState lists every object under the prefix and keeps those whose
// processed tag matches want. Objects with no processed tag are invisible to
// both scans; they are counted and logged so operators can triage them.
// Tag-read failures exclude just that key rather than failing the scan.
func (s *Scanner) withState(ctx context.Context, prefix, want string) ([]string, error) {
	log := logctx.FromContext(ctx)

	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	var (
		mu       sync.Mutex
		matched  []string
		untagged int
		tagErrs  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, key := range keys {
		key := key
		g.Go(func() error {
			tags, err := s.store.GetTags(gctx, key)
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("get tags failed, excluding key")
				mu.Lock()
				tagErrs++
				mu.Unlock()
				return nil
			}

			value, tagged := objstore.ProcessedState(tags)
			mu.Lock()
			defer mu.Unlock()
			if !tagged {
				untagged++
				return nil
			}
			if value == want {
				matched = append(matched, key)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan tags under %s: %w", prefix, err)
	}

	sort.Strings(matched)

	log.Debug().
		Str("prefix", prefix).
		Str("processed", want).
		Int("listed", len(keys)).
		Int("matched", len(matched)).
		Int("untagged", untagged).
		Int("tag_errors", tagErrs).
		Msg("scan finished")
	return matched, nil
}
