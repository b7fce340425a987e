// Package catalog provides the application-level service for browsing
// the active catalog snapshot and triggering ingests.
package catalog

import (
	"context"
	"time"

	domainCatalog "github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// Service defines catalog application operations.
type Service interface {
	Get(ctx context.Context, code string) (*EntryDetail, error)
	Children(ctx context.Context, code string) ([]*EntrySummary, error)
	Chapters(ctx context.Context) ([]*EntrySummary, error)
	Version(ctx context.Context) (*VersionInfo, error)
	Ingest(ctx context.Context, version string) (*VersionInfo, error)
}

// IngestMetrics receives catalog ingest observations.
type IngestMetrics interface {
	ObserveIngest(version string, entries int, elapsed time.Duration, err error)
}

type nopIngestMetrics struct{}

func (nopIngestMetrics) ObserveIngest(string, int, time.Duration, error) {}

// EntrySummary is a catalog entry without its legal notes.
type EntrySummary struct {
	Code        string `json:"code"`
	Level       string `json:"level"`
	Description string `json:"description"`
	Leaf        bool   `json:"leaf"`
}

// NoteView is one legal note attached to an entry or its ancestors.
type NoteView struct {
	Code     string `json:"code"`
	Priority int    `json:"priority"`
	Text     string `json:"text"`
}

// EntryDetail is a catalog entry with notes and children.
type EntryDetail struct {
	EntrySummary
	ParentCode    string          `json:"parent_code,omitempty"`
	AttributeTags []string        `json:"attribute_tags,omitempty"`
	Notes         []NoteView      `json:"notes,omitempty"`
	Children      []*EntrySummary `json:"children,omitempty"`
}

// VersionInfo describes the active snapshot.
type VersionInfo struct {
	Version string `json:"version"`
	Entries int    `json:"entries"`
}

type serviceImpl struct {
	provider *domainCatalog.Provider
	ingestor *domainCatalog.Ingestor
	metrics  IngestMetrics
	logger   logging.Logger
}

// NewService creates the catalog application service. ingestor may be
// nil for read-only deployments; Ingest then fails with a service
// error. metrics may be nil.
func NewService(provider *domainCatalog.Provider, ingestor *domainCatalog.Ingestor, metrics IngestMetrics, logger logging.Logger) (Service, error) {
	if provider == nil {
		return nil, errors.Internal("catalog provider is required")
	}
	if logger == nil {
		return nil, errors.Internal("logger is required")
	}
	if metrics == nil {
		metrics = nopIngestMetrics{}
	}
	return &serviceImpl{
		provider: provider,
		ingestor: ingestor,
		metrics:  metrics,
		logger:   logger.Named("catalog"),
	}, nil
}

func toSummary(snap *domainCatalog.Snapshot, e *domainCatalog.Entry) *EntrySummary {
	return &EntrySummary{
		Code:        e.Code,
		Level:       string(e.Level),
		Description: e.Description,
		Leaf:        snap.IsLeaf(e.Code),
	}
}

func (s *serviceImpl) Get(ctx context.Context, code string) (*EntryDetail, error) {
	snap, err := s.provider.Pin()
	if err != nil {
		return nil, err
	}
	entry, ok := snap.Lookup(code)
	if !ok {
		return nil, errors.NotFound("catalog entry "+code+" not found")
	}

	detail := &EntryDetail{
		EntrySummary:  *toSummary(snap, entry),
		ParentCode:    entry.ParentCode,
		AttributeTags: entry.AttributeTags,
	}
	for _, n := range snap.InheritedNotes(code) {
		detail.Notes = append(detail.Notes, NoteView{Code: n.Code, Priority: n.Priority, Text: n.Text})
	}
	for _, child := range snap.Children(code) {
		detail.Children = append(detail.Children, toSummary(snap, child))
	}
	return detail, nil
}

func (s *serviceImpl) Children(ctx context.Context, code string) ([]*EntrySummary, error) {
	snap, err := s.provider.Pin()
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Lookup(code); !ok {
		return nil, errors.NotFound("catalog entry "+code+" not found")
	}

	children := snap.Children(code)
	out := make([]*EntrySummary, 0, len(children))
	for _, child := range children {
		out = append(out, toSummary(snap, child))
	}
	return out, nil
}

func (s *serviceImpl) Chapters(ctx context.Context) ([]*EntrySummary, error) {
	snap, err := s.provider.Pin()
	if err != nil {
		return nil, err
	}

	chapters := snap.EntriesAtLevel(domainCatalog.LevelChapter)
	out := make([]*EntrySummary, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, toSummary(snap, ch))
	}
	return out, nil
}

func (s *serviceImpl) Version(ctx context.Context) (*VersionInfo, error) {
	snap, err := s.provider.Pin()
	if err != nil {
		return nil, err
	}
	return &VersionInfo{Version: snap.Version(), Entries: snap.Len()}, nil
}

func (s *serviceImpl) Ingest(ctx context.Context, version string) (*VersionInfo, error) {
	if s.ingestor == nil {
		return nil, errors.Unavailable("catalog ingest is not enabled")
	}

	start := time.Now()
	snap, err := s.ingestor.Ingest(ctx, version)
	if err != nil {
		s.metrics.ObserveIngest(version, 0, time.Since(start), err)
		return nil, err
	}
	s.metrics.ObserveIngest(snap.Version(), snap.Len(), time.Since(start), nil)
	return &VersionInfo{Version: snap.Version(), Entries: snap.Len()}, nil
}
