package session

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindOpen     Kind = "open"
	KindClose    Kind = "close"
	KindError    Kind = "error"
	KindComplete Kind = "complete"
	KindReload   Kind = "reload"
	KindNavigate Kind = "navigate"
)

// DefaultJournalSize is how many entries a journal keeps.
const DefaultJournalSize = 200

// Entry is one recorded lifecycle event.
type Entry struct {
	ID     string    `json:"id" yaml:"id"`
	At     time.Time `json:"at" yaml:"at"`
	Popup  string    `json:"popup,omitempty" yaml:"popup,omitempty"`
	Kind   Kind      `json:"kind" yaml:"kind"`
	Detail string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Journal is a bounded, append-only record of lifecycle events.
type Journal struct {
	entries []Entry
	max     int
	onAdd   func(Entry)
}

// NewJournal creates a journal holding DefaultJournalSize entries.
func NewJournal() *Journal {
	return &Journal{max: DefaultJournalSize}
}

// Add records an event and returns it. The oldest entry is dropped once
// the journal is full.
func (j *Journal) Add(at time.Time, popupID string, kind Kind, detail string) Entry {
	e := Entry{
		ID:     ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		At:     at,
		Popup:  popupID,
		Kind:   kind,
		Detail: detail,
	}
	j.entries = append(j.entries, e)
	if j.onAdd != nil {
		j.onAdd(e)
	}
	if over := len(j.entries) - j.max; over > 0 {
		j.entries = append(j.entries[:0:0], j.entries[over:]...)
	}
	return e
}

// Entries returns a copy of the recorded entries, oldest first.
func (j *Journal) Entries() []Entry {
	return append([]Entry(nil), j.entries...)
}

// Last returns the most recent n entries, oldest first.
func (j *Journal) Last(n int) []Entry {
	if n >= len(j.entries) {
		return j.Entries()
	}
	return append([]Entry(nil), j.entries[len(j.entries)-n:]...)
}

// Kinds returns the entry kinds in order, mostly for tests and summaries.
func (j *Journal) Kinds() []Kind {
	kinds := make([]Kind, len(j.entries))
	for i, e := range j.entries {
		kinds[i] = e.Kind
	}
	return kinds
}

// Len returns the number of entries.
func (j *Journal) Len() int {
	return len(j.entries)
}
