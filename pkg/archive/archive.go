// Package archive implements the raw result archiver: fetch one draw from
// the upstream API, write it as an immutable JSON object, and mark it
// processed=false for the compiler to find.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rvfranca/loteria-db/internal/logctx"
	"github.com/rvfranca/loteria-db/pkg/caixa"
	"github.com/rvfranca/loteria-db/pkg/objstore"
	"github.com/rvfranca/loteria-db/pkg/results"
)

// Fetcher is the upstream fetch collaborator.
type Fetcher interface {
	FetchResult(ctx context.Context, game string, drawNumber int) (json.RawMessage, error)
}

// Status classifies the outcome of archiving one draw.
type Status string

const (
	// StatusArchived means the object was written and tagged.
	StatusArchived Status = "archived"
	// StatusExists means the object was already present; presence is
	// success, not an error.
	StatusExists Status = "exists"
	// StatusSkipped means the fetch produced no usable result (API error or
	// empty payload). Never a hard failure for the batch.
	StatusSkipped Status = "skipped"
	// StatusUntagged means the object was written but tagging failed. The
	// raw result is safe but invisible to the scanner until retagged.
	StatusUntagged Status = "untagged"
)

// Result is the outcome of one Archive call.
type Result struct {
	Key    string
	Status Status
}

// Summary aggregates a batch run across games.
type Summary struct {
	Games    int
	Archived int
	Exists   int
	Skipped  int
	Untagged int
	Failed   int
}

// Archiver writes raw draw results into the object store.
type Archiver struct {
	store objstore.Store
	fetch Fetcher
}

// New creates an archiver.
func New(store objstore.Store, fetch Fetcher) *Archiver {
	return &Archiver{store: store, fetch: fetch}
}

// Archive fetches one draw and writes it under its canonical key.
// drawNumber 0 means "most recent"; the key's draw segment then comes from
// the payload. Fetch failures and empty payloads are skips, not errors; only
// path validation and object-store write failures surface as errors.
func (a *Archiver) Archive(ctx context.Context, game string, drawNumber int) (Result, error) {
	ctx = logctx.WithStr(ctx, "game", game)
	log := logctx.FromContext(ctx)

	raw, err := a.fetch.FetchResult(ctx, game, drawNumber)
	if err != nil {
		if caixa.IsPermanent(err) {
			log.Warn().Err(err).Int("draw_number", drawNumber).Msg("no result for game/draw, skipping")
		} else {
			log.Error().Err(err).Int("draw_number", drawNumber).Msg("fetch failed, skipping")
		}
		return Result{Status: StatusSkipped}, nil
	}
	if isEmptyPayload(raw) {
		log.Warn().Int("draw_number", drawNumber).Msg("empty payload, skipping")
		return Result{Status: StatusSkipped}, nil
	}

	resolved := drawNumber
	if resolved == 0 {
		resolved = payloadDrawNumber(raw)
		if resolved <= 0 {
			log.Warn().Msg("payload has no usable draw number, skipping")
			return Result{Status: StatusSkipped}, nil
		}
	}

	key, err := results.BuildKey(game, resolved)
	if err != nil {
		return Result{}, fmt.Errorf("build key: %w", err)
	}
	log = log.With().Str("key", key).Int("draw_number", resolved).Logger()

	// Write-once: an existing object means some earlier run archived this
	// draw already.
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("check existing object: %w", err)
	}
	if exists {
		log.Info().Msg("already archived, skipping save")
		return Result{Key: key, Status: StatusExists}, nil
	}

	if err := a.store.Put(ctx, key, raw); err != nil {
		return Result{}, fmt.Errorf("archive raw result: %w", err)
	}

	if err := objstore.TagUnprocessed(ctx, a.store, key); err != nil {
		// The object is archived but won't be scanned until manually
		// retagged. Reported, not rolled back.
		log.Error().Err(err).Msg("archived but tagging failed")
		return Result{Key: key, Status: StatusUntagged}, nil
	}

	log.Info().Msg("archived raw result")
	return Result{Key: key, Status: StatusArchived}, nil
}

// Run archives one draw (or the latest, for drawNumber 0) for every game.
// A failure on one game never aborts the rest of the batch.
func (a *Archiver) Run(ctx context.Context, games []string, drawNumber int) Summary {
	log := logctx.FromContext(ctx)
	summary := Summary{Games: len(games)}

	for _, game := range games {
		res, err := a.Archive(ctx, game, drawNumber)
		if err != nil {
			summary.Failed++
			log.Error().Err(err).Str("game", game).Msg("archive failed")
			continue
		}
		switch res.Status {
		case StatusArchived:
			summary.Archived++
		case StatusExists:
			summary.Exists++
		case StatusSkipped:
			summary.Skipped++
		case StatusUntagged:
			summary.Untagged++
		}
	}

	log.Info().
		Int("games", summary.Games).
		Int("archived", summary.Archived).
		Int("already_exists", summary.Exists).
		Int("skipped", summary.Skipped).
		Int("untagged", summary.Untagged).
		Int("failed", summary.Failed).
		Msg("archive batch finished")
	return summary
}

func isEmptyPayload(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "{}", "[]", "null":
		return true
	}
	return false
}

func payloadDrawNumber(raw []byte) int {
	var peek struct {
		Numero int `json:"numero"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return 0
	}
	return peek.Numero
}
