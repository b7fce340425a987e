package catalog

import (
	"sort"
	"sync/atomic"

	"github.com/aduanet/hs-classify/pkg/errors"
)

// Snapshot is an immutable, fully-linked view of one catalog version.
// Entries live in a single arena slice; all cross-references (code lookup,
// parent and children links, embedding lookup) are index-based so a snapshot
// shares nothing mutable and can be read concurrently without locks.
type Snapshot struct {
	version string

	entries []Entry
	byCode  map[string]int32
	byEmbed map[int64]int32

	// children[i] lists the indices of entries whose ParentCode is
	// entries[i].Code, sorted by code ascending.
	children [][]int32

	// notes maps an entry index to its legal notes, Priority ascending.
	notes map[int32][]LegalNote

	// byLevel caches the entry indices per level, code ascending.
	byLevel map[Level][]int32
}

// NewSnapshot validates and links the given entries and notes into an
// immutable snapshot.  Entries may arrive in any order; parents must exist
// for every non-chapter entry.  The input slices are copied.
func NewSnapshot(version string, entries []Entry, notes []LegalNote) (*Snapshot, error) {
	if version == "" {
		return nil, errors.New(errors.ErrCodeValidation, "snapshot version must not be empty")
	}
	if len(entries) == 0 {
		return nil, errors.Newf(errors.ErrCodeEmptySnapshot, "catalog version %s has no entries", version)
	}

	s := &Snapshot{
		version:  version,
		entries:  make([]Entry, len(entries)),
		byCode:   make(map[string]int32, len(entries)),
		byEmbed:  make(map[int64]int32),
		children: make([][]int32, len(entries)),
		notes:    make(map[int32][]LegalNote),
		byLevel:  make(map[Level][]int32, 4),
	}
	copy(s.entries, entries)

	for i := range s.entries {
		e := &s.entries[i]
		if err := e.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, "invalid catalog entry")
		}
		if _, dup := s.byCode[e.Code]; dup {
			return nil, errors.Newf(errors.ErrCodeIngestFailed, "duplicate catalog code %s", e.Code)
		}
		s.byCode[e.Code] = int32(i)
		if e.EmbeddingID != 0 {
			s.byEmbed[e.EmbeddingID] = int32(i)
		}
	}

	for i := range s.entries {
		e := &s.entries[i]
		s.byLevel[e.Level] = append(s.byLevel[e.Level], int32(i))
		if e.Level == LevelChapter {
			continue
		}
		p, ok := s.byCode[e.ParentCode]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeOrphanParent, "entry %s references missing parent %s", e.Code, e.ParentCode)
		}
		s.children[p] = append(s.children[p], int32(i))
	}

	byCodeAsc := func(idx []int32) {
		sort.Slice(idx, func(a, b int) bool { return s.entries[idx[a]].Code < s.entries[idx[b]].Code })
	}
	for i := range s.children {
		byCodeAsc(s.children[i])
	}
	for _, idx := range s.byLevel {
		byCodeAsc(idx)
	}

	for _, n := range notes {
		i, ok := s.byCode[n.Code]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeIngestFailed, "legal note references missing code %s", n.Code)
		}
		s.notes[i] = append(s.notes[i], n)
	}
	for _, ns := range s.notes {
		sort.SliceStable(ns, func(a, b int) bool { return ns[a].Priority < ns[b].Priority })
	}

	return s, nil
}

// Version returns the catalog version string of this snapshot.
func (s *Snapshot) Version() string { return s.version }

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Lookup returns the entry for the given code.
func (s *Snapshot) Lookup(code string) (*Entry, bool) {
	i, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	return &s.entries[i], true
}

// LookupByEmbedding returns the entry whose description embedding has the
// given identifier.
func (s *Snapshot) LookupByEmbedding(id int64) (*Entry, bool) {
	i, ok := s.byEmbed[id]
	if !ok {
		return nil, false
	}
	return &s.entries[i], true
}

// Children returns the immediate children of the given code, sorted by code
// ascending.  Returns nil for leaf entries and unknown codes.
func (s *Snapshot) Children(code string) []*Entry {
	i, ok := s.byCode[code]
	if !ok || len(s.children[i]) == 0 {
		return nil
	}
	out := make([]*Entry, len(s.children[i]))
	for n, c := range s.children[i] {
		out[n] = &s.entries[c]
	}
	return out
}

// IsLeaf reports whether the code has no finer subdivisions in this version.
func (s *Snapshot) IsLeaf(code string) bool {
	i, ok := s.byCode[code]
	return ok && len(s.children[i]) == 0
}

// Ancestor returns the ancestor of code at the given level.  When code is
// already at that level it returns the entry itself.
func (s *Snapshot) Ancestor(code string, level Level) (*Entry, bool) {
	want := 0
	switch level {
	case LevelChapter:
		want = 2
	case LevelHeading:
		want = 4
	case LevelSubheading:
		want = 6
	case LevelNational:
		want = 8
	default:
		return nil, false
	}
	if len(code) < want {
		return nil, false
	}
	return s.Lookup(code[:want])
}

// EntriesAtLevel returns all entries at the given level, code ascending.
func (s *Snapshot) EntriesAtLevel(level Level) []*Entry {
	idx := s.byLevel[level]
	out := make([]*Entry, len(idx))
	for n, i := range idx {
		out[n] = &s.entries[i]
	}
	return out
}

// All returns every entry in arena order.  Callers must not mutate.
func (s *Snapshot) All() []Entry { return s.entries }

// NotesFor returns the legal notes attached directly to the given code,
// Priority ascending.
func (s *Snapshot) NotesFor(code string) []LegalNote {
	i, ok := s.byCode[code]
	if !ok {
		return nil
	}
	return s.notes[i]
}

// InheritedNotes returns the notes of the code and of every ancestor,
// outermost first.  Classification consults these when checking whether a
// heading's text plus notes cover the goods.
func (s *Snapshot) InheritedNotes(code string) []LegalNote {
	var out []LegalNote
	for _, n := range []int{2, 4, 6, 8} {
		if n > len(code) {
			break
		}
		out = append(out, s.NotesFor(code[:n])...)
	}
	return out
}

// Provider publishes the current catalog snapshot.  Swap installs a new
// version atomically; Pin returns the version current at call time, which
// stays valid for the whole classification call even if a swap happens
// concurrently.
type Provider struct {
	current atomic.Pointer[Snapshot]
}

// NewProvider returns a Provider with no snapshot installed.
func NewProvider() *Provider { return &Provider{} }

// Pin returns the currently published snapshot.
func (p *Provider) Pin() (*Snapshot, error) {
	s := p.current.Load()
	if s == nil {
		return nil, errors.New(errors.ErrCodeVersionNotFound, "no catalog version has been ingested")
	}
	return s, nil
}

// Swap publishes the given snapshot as the current version and returns the
// previously published one, if any.
func (p *Provider) Swap(s *Snapshot) *Snapshot {
	return p.current.Swap(s)
}
