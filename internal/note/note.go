package note

import "slices"

// DefaultCollection is the reserved collection every store starts with.
// It can never be renamed or deleted.
const DefaultCollection = "Default"

// Event is the signed network event a note was saved from.
// Field order matches the wire payload and is preserved when encoded.
type Event struct {
	ID        string     `json:"id" validate:"required,hexadecimal,len=64"`
	Pubkey    string     `json:"pubkey" validate:"required,hexadecimal,len=64"`
	CreatedAt int64      `json:"created_at" validate:"gte=0"`
	Kind      int        `json:"kind" validate:"gte=0"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Metadata is the author's free-form profile (name, about, picture, ...).
type Metadata map[string]any

// Author identifies who published the event.
type Author struct {
	Pubkey   string   `json:"pubkey" validate:"required"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Note is a saved event with its collection, rating and annotation.
type Note struct {
	// ID is the event id; it never changes once the note exists
	ID string `json:"id"`

	// Event is the full underlying payload
	Event Event `json:"event"`

	// Author is the publishing key plus optional profile metadata
	Author Author `json:"author"`

	// Collection is the name of the collection the note is filed under
	Collection string `json:"collection"`

	// Upvotes is the user's rating, never below zero
	Upvotes int `json:"upvotes"`

	// SavedAt is when the note entered its collection (ms since epoch)
	SavedAt int64 `json:"saved_at"`

	// Thoughts is the user's annotation; nil means none
	Thoughts *string `json:"thoughts,omitempty"`
}

// State is the whole persisted collection store: an ordered note list and
// an ordered collection registry.
type State struct {
	Notes       []Note   `json:"notes"`
	Collections []string `json:"collections"`
}

// NewState returns an empty store holding only the Default collection.
func NewState() State {
	return State{
		Notes:       []Note{},
		Collections: []string{DefaultCollection},
	}
}

// Clone returns a copy of s whose slices can be modified freely.
func (s State) Clone() State {
	return State{
		Notes:       slices.Clone(s.Notes),
		Collections: slices.Clone(s.Collections),
	}
}

// IndexOf returns the position of the note with the given id, or -1.
func (s State) IndexOf(id string) int {
	return slices.IndexFunc(s.Notes, func(n Note) bool { return n.ID == id })
}

// HasCollection reports whether name is registered.
func (s State) HasCollection(name string) bool {
	return slices.Contains(s.Collections, name)
}

// EnsureCollection appends name to the registry if it is not present.
func (s *State) EnsureCollection(name string) {
	if !s.HasCollection(name) {
		s.Collections = append(s.Collections, name)
	}
}

// ByCollection groups notes under every registered collection, keeping
// registry order. Empty collections map to an empty slice.
func (s State) ByCollection() map[string][]Note {
	grouped := make(map[string][]Note, len(s.Collections))
	for _, c := range s.Collections {
		grouped[c] = []Note{}
	}
	for _, n := range s.Notes {
		grouped[n.Collection] = append(grouped[n.Collection], n)
	}
	return grouped
}
