// Package repositories implements the catalog.Source contract over the
// relational catalog store.
//
// Expected schema:
//
//	catalog_versions(version text primary key, published_at timestamptz)
//	catalog_entries(version text, code text, level text, description text,
//	                parent_code text, embedding_id bigint, attribute_tags text[])
//	legal_notes(version text, code text, priority int, body text)
package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// CatalogRepo loads catalog versions from postgres.
type CatalogRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ catalog.Source = (*CatalogRepo)(nil)

// NewCatalogRepo wires a CatalogRepo.
func NewCatalogRepo(pool *pgxpool.Pool, logger logging.Logger) (*CatalogRepo, error) {
	if pool == nil {
		return nil, errors.New(errors.ErrCodeInternal, "connection pool is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CatalogRepo{pool: pool, logger: logger.Named("repo.catalog")}, nil
}

// LatestVersion returns the most recently published catalog version.
func (r *CatalogRepo) LatestVersion(ctx context.Context) (string, error) {
	const q = `SELECT version FROM catalog_versions ORDER BY published_at DESC LIMIT 1`

	var version string
	err := r.pool.QueryRow(ctx, q).Scan(&version)
	if err == pgx.ErrNoRows {
		return "", errors.New(errors.ErrCodeVersionNotFound, "no catalog version has been published")
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "querying latest catalog version")
	}
	return version, nil
}

// LoadEntries returns every entry of the given version.
func (r *CatalogRepo) LoadEntries(ctx context.Context, version string) ([]catalog.Entry, error) {
	const q = `
		SELECT code, level, description, COALESCE(parent_code, ''),
		       COALESCE(embedding_id, 0), COALESCE(attribute_tags, '{}')
		FROM catalog_entries
		WHERE version = $1
		ORDER BY code`

	rows, err := r.pool.Query(ctx, q, version)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "querying catalog entries")
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var (
			e     catalog.Entry
			level string
		)
		if err := rows.Scan(&e.Code, &level, &e.Description, &e.ParentCode, &e.EmbeddingID, &e.AttributeTags); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning catalog entry")
		}
		e.Level = catalog.Level(level)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating catalog entries")
	}
	if len(entries) == 0 {
		return nil, errors.Newf(errors.ErrCodeVersionNotFound, "catalog version %s has no entries", version)
	}
	return entries, nil
}

// LoadNotes returns every legal note of the given version.
func (r *CatalogRepo) LoadNotes(ctx context.Context, version string) ([]catalog.LegalNote, error) {
	const q = `
		SELECT code, priority, body
		FROM legal_notes
		WHERE version = $1
		ORDER BY code, priority`

	rows, err := r.pool.Query(ctx, q, version)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "querying legal notes")
	}
	defer rows.Close()

	var notes []catalog.LegalNote
	for rows.Next() {
		var n catalog.LegalNote
		if err := rows.Scan(&n.Code, &n.Priority, &n.Text); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning legal note")
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating legal notes")
	}
	return notes, nil
}
