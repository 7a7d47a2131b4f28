// Package testutil provides shared test helpers: temp vaults and an
// in-memory fake of the remote flashcard store.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/veleth/ansuz/internal/anki"
	"github.com/veleth/ansuz/internal/storage"
)

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteFile writes a vault file, creating parent directories.
func WriteFile(t *testing.T, vaultDir, rel, content string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// StoredNote is a record held by the FakeStore.
type StoredNote struct {
	Deck   string
	Model  string
	Fields map[string]string
}

// FakeStore is an in-memory anki.Store with failure injection knobs.
type FakeStore struct {
	mu sync.Mutex

	Decks  []string
	Notes  map[int64]StoredNote
	nextID int64

	// Failure injection.
	VersionErr       error
	CreateDeckErr    error
	BulkErr          error                      // AddNotes call-level failure
	AddNoteErr       func(n anki.Note) error    // per-note rejection
	RejectDuplicates bool                       // reject notes with identical fields in the same deck

	// Call counters keyed by action name.
	Calls map[string]int

	// Updates records every UpdateNoteFields call in order.
	Updates []map[string]string
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		Notes:  make(map[int64]StoredNote),
		nextID: 1000,
		Calls:  make(map[string]int),
	}
}

func (f *FakeStore) count(action string) {
	f.Calls[action]++
}

func (f *FakeStore) Version(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("version")
	if f.VersionErr != nil {
		return 0, f.VersionErr
	}
	return 6, nil
}

func (f *FakeStore) DeckNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("deckNames")
	return append([]string(nil), f.Decks...), nil
}

func (f *FakeStore) CreateDeck(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("createDeck")
	if f.CreateDeckErr != nil {
		return f.CreateDeckErr
	}
	f.Decks = append(f.Decks, name)
	return nil
}

func (f *FakeStore) ModelNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("modelNames")
	return []string{"Basic", "Cloze"}, nil
}

var queryRe = regexp.MustCompile(`^deck:"([^"]+)" (.+)$`)

// normalizeWords mimics Anki's tolerant search: lowercase, punctuation
// ignored, whitespace collapsed.
func normalizeWords(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (f *FakeStore) FindNotes(ctx context.Context, query string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("findNotes")
	m := queryRe.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("fake store: unsupported query: %s", query)
	}
	deck := m[1]
	words := strings.Fields(normalizeWords(m[2]))
	var ids []int64
	for id, n := range f.Notes {
		if n.Deck != deck {
			continue
		}
		for _, v := range n.Fields {
			if containsAll(normalizeWords(v), words) {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func containsAll(haystack string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return len(words) > 0
}

func (f *FakeStore) NotesInfo(ctx context.Context, ids []int64) ([]anki.NoteInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("notesInfo")
	var out []anki.NoteInfo
	for _, id := range ids {
		n, ok := f.Notes[id]
		if !ok {
			continue
		}
		fields := make(map[string]string, len(n.Fields))
		for k, v := range n.Fields {
			fields[k] = v
		}
		out = append(out, anki.NoteInfo{ID: id, Model: n.Model, Fields: fields})
	}
	return out, nil
}

// add stores a note, applying the injected rejection rules. Caller must
// hold the lock.
func (f *FakeStore) add(n anki.Note) (int64, error) {
	if f.AddNoteErr != nil {
		if err := f.AddNoteErr(n); err != nil {
			return 0, err
		}
	}
	if f.RejectDuplicates && f.hasDuplicate(n) {
		return 0, fmt.Errorf("cannot create note because it is a duplicate")
	}
	f.nextID++
	f.Notes[f.nextID] = StoredNote{Deck: n.Deck, Model: n.Model, Fields: n.Fields}
	return f.nextID, nil
}

func (f *FakeStore) hasDuplicate(n anki.Note) bool {
	for _, existing := range f.Notes {
		if existing.Deck != n.Deck || len(existing.Fields) != len(n.Fields) {
			continue
		}
		same := true
		for k, v := range n.Fields {
			if existing.Fields[k] != v {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func (f *FakeStore) AddNote(ctx context.Context, n anki.Note) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("addNote")
	return f.add(n)
}

func (f *FakeStore) AddNotes(ctx context.Context, notes []anki.Note) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("addNotes")
	if f.BulkErr != nil {
		return nil, f.BulkErr
	}
	ids := make([]int64, len(notes))
	for i, n := range notes {
		id, err := f.add(n)
		if err != nil {
			ids[i] = 0
			continue
		}
		ids[i] = id
	}
	return ids, nil
}

func (f *FakeStore) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("updateNoteFields")
	n, ok := f.Notes[id]
	if !ok {
		return fmt.Errorf("fake store: note %d not found", id)
	}
	for k, v := range fields {
		n.Fields[k] = v
	}
	f.Notes[id] = n
	f.Updates = append(f.Updates, fields)
	return nil
}

// NoteCount returns the number of stored notes.
func (f *FakeStore) NoteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Notes)
}

// DeckNoteCount returns the number of stored notes in one deck.
func (f *FakeStore) DeckNoteCount(deck string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, note := range f.Notes {
		if note.Deck == deck {
			n++
		}
	}
	return n
}

// Verify *FakeStore satisfies anki.Store at compile time.
var _ anki.Store = (*FakeStore)(nil)
