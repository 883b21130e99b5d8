package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/local/pagedesk/internal/selection"
	"github.com/local/pagedesk/internal/thumbnail"
)

// State is the explicit per-session editing state: the loaded document, its
// thumbnails, the selection set and the merge source list. Every operation
// takes and returns it; there are no ambient globals.
type State struct {
	ID         string
	Filename   string
	DocBytes   []byte
	TotalPages int
	Thumbs     []thumbnail.PageThumbnail
	Selection  *selection.Set
	Sources    SourceList
}

// New returns an empty session with a fresh id.
func New() *State {
	return &State{
		ID:        uuid.NewString(),
		Selection: selection.New(),
	}
}

// SetDocument replaces the loaded document. Thumbnails and the selection set
// belong to the old index space and are discarded.
func (s *State) SetDocument(name string, data []byte, totalPages int) {
	s.Filename = name
	s.DocBytes = data
	s.TotalPages = totalPages
	s.Thumbs = nil
	s.Selection = selection.New()
}

// SetThumbnails installs the generated previews. They are released only on
// reset or document replacement.
func (s *State) SetThumbnails(thumbs []thumbnail.PageThumbnail) {
	s.Thumbs = thumbs
}

// ValidateSelection checks every marked index against the loaded document.
func (s *State) ValidateSelection() error {
	for _, idx := range s.Selection.Indices() {
		if idx >= s.TotalPages {
			return fmt.Errorf("selected index %d exceeds page count %d", idx, s.TotalPages)
		}
	}
	return nil
}

// Reset returns the session to its initial empty state, keeping only the id.
func (s *State) Reset() {
	s.Filename = ""
	s.DocBytes = nil
	s.TotalPages = 0
	s.Thumbs = nil
	s.Selection = selection.New()
	s.Sources = SourceList{}
}

// Source is one entry in the merge workflow: an uploaded PDF identified by an
// opaque token. List order determines output page order.
type Source struct {
	ID   string
	Name string
	Data []byte
}

// SourceList is the ordered set of merge inputs.
type SourceList struct {
	entries []Source
}

// Append adds a document to the end of the list and returns its id.
func (l *SourceList) Append(name string, data []byte) string {
	id := uuid.NewString()
	l.entries = append(l.entries, Source{ID: id, Name: name, Data: data})
	return id
}

// Remove drops the entry with the given id. Unknown ids are a no-op.
func (l *SourceList) Remove(id string) {
	for i, e := range l.entries {
		if e.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// Move relocates the entry with the given id to target position, implemented
// as remove-then-reinsert so the relative order of all other entries is
// preserved. Target positions are clamped to the list bounds.
func (l *SourceList) Move(id string, target int) error {
	from := -1
	for i, e := range l.entries {
		if e.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("unknown source id %s", id)
	}

	entry := l.entries[from]
	rest := append(append([]Source{}, l.entries[:from]...), l.entries[from+1:]...)

	if target < 0 {
		target = 0
	}
	if target > len(rest) {
		target = len(rest)
	}

	l.entries = append(rest[:target:target], append([]Source{entry}, rest[target:]...)...)
	return nil
}

// Len returns the number of sources.
func (l *SourceList) Len() int { return len(l.entries) }

// Entries returns the sources in list order.
func (l *SourceList) Entries() []Source { return l.entries }

// Buffers returns the raw documents in list order, ready for merging.
func (l *SourceList) Buffers() [][]byte {
	out := make([][]byte, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Data
	}
	return out
}
