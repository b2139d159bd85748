// Package snapshot moves the analytical table file between local disk and
// the object store. The table is a working copy during compilation and a
// durable object between runs; the dashboard only ever sees the pushed copy.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rvfranca/loteria-db/internal/logctx"
	"github.com/rvfranca/loteria-db/pkg/fileutil"
	"github.com/rvfranca/loteria-db/pkg/humanfmt"
	"github.com/rvfranca/loteria-db/pkg/objstore"
)

// Publisher syncs one snapshot file with the store.
type Publisher struct {
	store     objstore.Store
	localPath string
	remoteKey string
}

// New creates a publisher. An empty remoteKey defaults to the snapshot's
// filename at the bucket root, which is where the dashboard looks for it.
func New(store objstore.Store, localPath, remoteKey string) *Publisher {
	if remoteKey == "" {
		remoteKey = filepath.Base(localPath)
	}
	return &Publisher{store: store, localPath: localPath, remoteKey: remoteKey}
}

// RemoteKey returns the object key the snapshot is published under.
func (p *Publisher) RemoteKey() string {
	return p.remoteKey
}

// Pull downloads the existing snapshot into the local working copy. A
// missing remote object is the first-run case and not an error; the compiler
// just starts from an empty table.
func (p *Publisher) Pull(ctx context.Context) error {
	log := logctx.FromContext(ctx)

	body, err := p.store.Get(ctx, p.remoteKey)
	if errors.Is(err, objstore.ErrNotFound) {
		log.Warn().Str("snapshot_key", p.remoteKey).Msg("no remote snapshot, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("download snapshot %s: %w", p.remoteKey, err)
	}

	err = fileutil.WriteTmpThenMove(p.localPath, func(tmpPath string) error {
		return os.WriteFile(tmpPath, body, 0o644)
	})
	if err != nil {
		return fmt.Errorf("write local snapshot %s: %w", p.localPath, err)
	}

	log.Info().
		Str("snapshot_key", p.remoteKey).
		Str("size", humanfmt.Bytes(int64(len(body)))).
		Msg("downloaded existing snapshot")
	return nil
}

// Push uploads the working copy back to the store. It runs unconditionally
// after a compiler batch, even a zero-file one, so the remote snapshot
// always reflects the latest successfully opened table.
func (p *Publisher) Push(ctx context.Context) error {
	log := logctx.FromContext(ctx)

	body, err := os.ReadFile(p.localPath)
	if err != nil {
		return fmt.Errorf("read local snapshot %s: %w", p.localPath, err)
	}

	if err := p.store.Put(ctx, p.remoteKey, body); err != nil {
		return fmt.Errorf("upload snapshot %s: %w", p.remoteKey, err)
	}

	log.Info().
		Str("snapshot_key", p.remoteKey).
		Str("size", humanfmt.Bytes(int64(len(body)))).
		Msg("uploaded snapshot")
	return nil
}
