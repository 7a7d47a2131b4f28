package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veleth/ansuz/internal/apperr"
)

// protocolVersion is the AnkiConnect API version this client speaks.
const protocolVersion = 6

// Client talks to a local AnkiConnect endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint, e.g.
// "http://127.0.0.1:8765".
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke posts one action and decodes the result into out (when non-nil).
func (c *Client) invoke(ctx context.Context, action string, params, out any) error {
	body, err := json.Marshal(request{Action: action, Version: protocolVersion, Params: params})
	if err != nil {
		return fmt.Errorf("anki: marshal %s: %w", action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("anki: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("anki: %s: %w", action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("anki: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anki: %s: status %d: %s", action, resp.StatusCode, truncate(respBody, 200))
	}

	var envelope response
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("anki: decode %s response: %w", action, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("anki: %s: %s", action, *envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("anki: decode %s result: %w", action, err)
		}
	}
	return nil
}

// Version probes the endpoint. It is the connectivity check a sync run
// performs before touching any deck.
func (c *Client) Version(ctx context.Context) (int, error) {
	var v int
	if err := c.invoke(ctx, "version", nil, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrUnreachable, err)
	}
	return v, nil
}

// DeckNames lists existing deck names.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// CreateDeck creates an empty deck.
func (c *Client) CreateDeck(ctx context.Context, name string) error {
	return c.invoke(ctx, "createDeck", map[string]string{"deck": name}, nil)
}

// ModelNames lists note types known to the store.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// FindNotes returns ids of notes matching an Anki search query.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	if err := c.invoke(ctx, "findNotes", map[string]string{"query": query}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

type rawNoteInfo struct {
	NoteID    int64  `json:"noteId"`
	ModelName string `json:"modelName"`
	Fields    map[string]struct {
		Value string `json:"value"`
		Order int    `json:"order"`
	} `json:"fields"`
}

// NotesInfo fetches the field values of the given notes.
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]NoteInfo, error) {
	var raw []rawNoteInfo
	if err := c.invoke(ctx, "notesInfo", map[string]any{"notes": ids}, &raw); err != nil {
		return nil, err
	}
	out := make([]NoteInfo, 0, len(raw))
	for _, r := range raw {
		fields := make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = v.Value
		}
		out = append(out, NoteInfo{ID: r.NoteID, Model: r.ModelName, Fields: fields})
	}
	return out, nil
}

// AddNote creates one note and returns its id.
func (c *Client) AddNote(ctx context.Context, n Note) (int64, error) {
	var id int64
	if err := c.invoke(ctx, "addNote", map[string]any{"note": n}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// AddNotes creates notes in bulk. AnkiConnect reports per-note rejection
// as a null entry, decoded here as id 0.
func (c *Client) AddNotes(ctx context.Context, notes []Note) ([]int64, error) {
	var raw []*int64
	if err := c.invoke(ctx, "addNotes", map[string]any{"notes": notes}, &raw); err != nil {
		return nil, err
	}
	ids := make([]int64, len(raw))
	for i, p := range raw {
		if p != nil {
			ids[i] = *p
		}
	}
	return ids, nil
}

// UpdateNoteFields overwrites only the given fields of an existing note.
func (c *Client) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	return c.invoke(ctx, "updateNoteFields", map[string]any{
		"note": map[string]any{"id": id, "fields": fields},
	}, nil)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Verify *Client satisfies Store at compile time.
var _ Store = (*Client)(nil)
