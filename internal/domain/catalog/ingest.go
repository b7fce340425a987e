package catalog

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// Source loads the raw material of one catalog version from durable storage.
// The postgres repository and the object-store export reader both implement
// it.
type Source interface {
	// LatestVersion returns the newest catalog version the source holds.
	LatestVersion(ctx context.Context) (string, error)

	// LoadEntries returns every entry of the given version.
	LoadEntries(ctx context.Context, version string) ([]Entry, error)

	// LoadNotes returns every legal note of the given version.
	LoadNotes(ctx context.Context, version string) ([]LegalNote, error)
}

// Ingestor builds snapshots from a Source and publishes them through a
// Provider.
type Ingestor struct {
	source   Source
	provider *Provider
	logger   logging.Logger
}

// NewIngestor wires an Ingestor.  All dependencies are required.
func NewIngestor(source Source, provider *Provider, logger logging.Logger) (*Ingestor, error) {
	if source == nil {
		return nil, errors.New(errors.ErrCodeInternal, "catalog source is required")
	}
	if provider == nil {
		return nil, errors.New(errors.ErrCodeInternal, "catalog provider is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Ingestor{source: source, provider: provider, logger: logger.Named("catalog.ingest")}, nil
}

// Ingest loads the given version, builds a snapshot, and publishes it.  An
// empty version means "latest".  Readers that pinned the previous snapshot
// keep it until their call finishes.
func (ing *Ingestor) Ingest(ctx context.Context, version string) (*Snapshot, error) {
	start := time.Now()

	if version == "" {
		v, err := ing.source.LatestVersion(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, "resolving latest catalog version")
		}
		version = v
	}

	var (
		entries []Entry
		notes   []LegalNote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = ing.source.LoadEntries(gctx, version)
		return err
	})
	g.Go(func() error {
		var err error
		notes, err = ing.source.LoadNotes(gctx, version)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, "loading catalog version "+version)
	}

	snap, err := NewSnapshot(version, entries, notes)
	if err != nil {
		return nil, err
	}

	prev := ing.provider.Swap(snap)
	prevVersion := ""
	if prev != nil {
		prevVersion = prev.Version()
	}
	ing.logger.Info("catalog version published",
		logging.String("version", version),
		logging.String("previous_version", prevVersion),
		logging.Int("entries", snap.Len()),
		logging.Int("notes", len(notes)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}
