// Package catalog holds the immutable Harmonized-System catalog model: coded
// entries, legal notes, and the versioned snapshot the classification engine
// reads.  A snapshot is built once per ingestion and never mutated; the
// process-wide current version is published through an atomic pointer so
// in-flight classification calls keep the version they pinned.
package catalog

import (
	"strings"

	"github.com/aduanet/hs-classify/pkg/errors"
)

// Level identifies the granularity of a catalog code.
type Level string

const (
	LevelChapter    Level = "chapter"    // 2-digit code
	LevelHeading    Level = "heading"    // 4-digit code
	LevelSubheading Level = "subheading" // 6-digit code
	LevelNational   Level = "national"   // 8-digit code
)

// IsValid reports whether the level is one of the defined constants.
func (l Level) IsValid() bool {
	switch l {
	case LevelChapter, LevelHeading, LevelSubheading, LevelNational:
		return true
	default:
		return false
	}
}

func (l Level) String() string { return string(l) }

// Depth returns the ordinal position of the level in the hierarchy, chapter
// first.  Invalid levels return -1.
func (l Level) Depth() int {
	switch l {
	case LevelChapter:
		return 0
	case LevelHeading:
		return 1
	case LevelSubheading:
		return 2
	case LevelNational:
		return 3
	default:
		return -1
	}
}

// Finer returns the next more granular level, or "" when l is the finest.
func (l Level) Finer() Level {
	switch l {
	case LevelChapter:
		return LevelHeading
	case LevelHeading:
		return LevelSubheading
	case LevelSubheading:
		return LevelNational
	default:
		return ""
	}
}

// LevelForCode derives the Level from the digit count of a code.
func LevelForCode(code string) (Level, error) {
	switch len(code) {
	case 2:
		return LevelChapter, nil
	case 4:
		return LevelHeading, nil
	case 6:
		return LevelSubheading, nil
	case 8:
		return LevelNational, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidCode, "code %q has unsupported length %d", code, len(code))
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(s))
	if l.IsValid() {
		return l, nil
	}
	return "", errors.Newf(errors.ErrCodeValidation, "unsupported catalog level: %s", s)
}

// Entry is one immutable catalog line: a hierarchical code with its
// description and structured metadata.  Entries are created wholesale on
// catalog re-ingestion and never mutated in place.
type Entry struct {
	// Code is the hierarchical numeric identifier: 2, 4, 6, or 8 digits.
	Code string `json:"code"`

	// Level is derived from the code length and stored for cheap filtering.
	Level Level `json:"level"`

	// Description is the legal text of the entry.
	Description string `json:"description"`

	// ParentCode references the immediately coarser entry.  Empty for
	// chapters.  A weak reference: resolution happens through the snapshot.
	ParentCode string `json:"parent_code,omitempty"`

	// EmbeddingID references the precomputed description embedding in the
	// vector-similarity interface.  Zero when no embedding exists.
	EmbeddingID int64 `json:"embedding_id,omitempty"`

	// AttributeTags is the set of structured attribute keys attached to the
	// entry, e.g. "material:cotton", "use:medical", "packaging".  May be empty.
	AttributeTags []string `json:"attribute_tags,omitempty"`
}

// HasTag reports whether the entry carries the exact attribute tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.AttributeTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a single entry.
func (e *Entry) Validate() error {
	if e.Code == "" {
		return errors.New(errors.ErrCodeInvalidCode, "entry code must not be empty")
	}
	lvl, err := LevelForCode(e.Code)
	if err != nil {
		return err
	}
	if e.Level == "" {
		e.Level = lvl
	} else if e.Level != lvl {
		return errors.Newf(errors.ErrCodeInvalidCode, "entry %s declares level %s but code length implies %s", e.Code, e.Level, lvl)
	}
	if strings.TrimSpace(e.Description) == "" {
		return errors.Newf(errors.ErrCodeValidation, "entry %s has an empty description", e.Code)
	}
	if e.Level != LevelChapter {
		if e.ParentCode == "" {
			return errors.Newf(errors.ErrCodeOrphanParent, "entry %s has no parent code", e.Code)
		}
		if !strings.HasPrefix(e.Code, e.ParentCode) {
			return errors.Newf(errors.ErrCodeOrphanParent, "entry %s parent %s is not a code prefix", e.Code, e.ParentCode)
		}
	}
	return nil
}

// LegalNote is explanatory legal text attached to a chapter or heading.
// When several notes apply to the same code they are ordered by Priority
// ascending.  Read-only and version-scoped like Entry.
type LegalNote struct {
	// Code is the chapter or heading the note is attached to.
	Code string `json:"code"`

	// Priority orders notes that share a code; lower applies first.
	Priority int `json:"priority"`

	// Text is the note body.
	Text string `json:"text"`
}
