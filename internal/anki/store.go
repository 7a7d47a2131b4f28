// Package anki implements the AnkiConnect (v6) JSON-over-HTTP protocol.
package anki

import "context"

// Note is the payload for record creation.
type Note struct {
	Deck   string            `json:"deckName"`
	Model  string            `json:"modelName"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags,omitempty"`
}

// NoteInfo is the flattened field view of an existing record.
type NoteInfo struct {
	ID     int64
	Model  string
	Fields map[string]string
}

// Store is the remote flashcard store the reconciler talks to. Every call
// is a blocking request/response over the network and can fail; a non-null
// protocol error maps to a Go error for that call only.
type Store interface {
	Version(ctx context.Context) (int, error)
	DeckNames(ctx context.Context) ([]string, error)
	CreateDeck(ctx context.Context, name string) error
	ModelNames(ctx context.Context) ([]string, error)
	FindNotes(ctx context.Context, query string) ([]int64, error)
	NotesInfo(ctx context.Context, ids []int64) ([]NoteInfo, error)
	AddNote(ctx context.Context, n Note) (int64, error)
	// AddNotes creates records in bulk. The returned slice is positional;
	// a zero id means the store rejected that record.
	AddNotes(ctx context.Context, notes []Note) ([]int64, error)
	UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error
}
