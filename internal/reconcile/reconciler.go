package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/veleth/ansuz/internal/anki"
	"github.com/veleth/ansuz/internal/apperr"
	"github.com/veleth/ansuz/internal/models"
)

// Policy controls what happens to cards that already have a matching
// record in the remote store.
type Policy string

const (
	// PolicySkip leaves existing records untouched; only new cards are created.
	PolicySkip Policy = "skip"
	// PolicyUpdate overwrites the answer-bearing fields of changed
	// records, never the prompt field.
	PolicyUpdate Policy = "update"
	// PolicyCreate always creates, letting the store reject duplicates.
	PolicyCreate Policy = "create"
)

// Field names of the two note shapes the reconciler writes.
const (
	clozeTextField = "Text"
	frontField     = "Front"
	backField      = "Back"
)

// Config carries the per-run reconciliation settings.
type Config struct {
	Policy      Policy
	CreateDecks bool
	ClozeModel  string // note type for cloze cards, e.g. "Cloze"
	BasicModel  string // note type for front/back cards, e.g. "Basic"
	Tags        []string
}

// Reconciler synchronizes one bucket of cards at a time against the store.
type Reconciler struct {
	store  anki.Store
	sim    Strategy
	cfg    Config
	logger *slog.Logger
}

// New creates a Reconciler. sim may be nil, in which case the default
// containment strategy is used.
func New(store anki.Store, sim Strategy, cfg Config, logger *slog.Logger) *Reconciler {
	if sim == nil {
		sim = ContainmentStrategy{}
	}
	return &Reconciler{store: store, sim: sim, cfg: cfg, logger: logger}
}

type matchClass int

const (
	classNew matchClass = iota
	classIdentical
	classChanged
)

// classification pairs a card with its remote match, when one exists.
type classification struct {
	card  models.Card
	class matchClass
	match anki.NoteInfo
}

// SyncBucket reconciles the cards of one deck. A deck-level failure marks
// every card in the bucket as failed with one explanatory message; a
// record-level failure is caught at the single-record boundary so sibling
// records keep processing.
func (r *Reconciler) SyncBucket(ctx context.Context, deck string, items []models.Card) Report {
	var rep Report

	created, err := r.ensureDeck(ctx, deck)
	if err != nil {
		rep.Failed += len(items)
		rep.Errors = append(rep.Errors, fmt.Sprintf("deck %q: %v (%d cards not synced)", deck, err, len(items)))
		return rep
	}
	if created {
		rep.addDeckCreated(deck)
	}

	var toCreate []models.Card
	for _, c := range items {
		// The create policy ignores the match result entirely, so the
		// candidate lookup is not worth its remote round-trips.
		if r.cfg.Policy == PolicyCreate {
			toCreate = append(toCreate, c)
			continue
		}
		cl := r.classify(ctx, deck, c)
		switch r.cfg.Policy {
		case PolicySkip:
			if cl.class == classNew {
				toCreate = append(toCreate, c)
			} else {
				rep.Skipped++
			}
		case PolicyUpdate:
			switch cl.class {
			case classNew:
				toCreate = append(toCreate, c)
			case classIdentical:
				rep.Skipped++
			case classChanged:
				if err := r.store.UpdateNoteFields(ctx, cl.match.ID, answerFields(c)); err != nil {
					rep.fail(fmt.Sprintf("deck %q: update note %d: %v", deck, cl.match.ID, err))
				} else {
					rep.Updated++
				}
			}
		default:
			toCreate = append(toCreate, c)
		}
	}

	r.createBatch(ctx, deck, toCreate, &rep)
	return rep
}

// ensureDeck checks deck existence and creates it when allowed. Returns
// whether the deck was created.
func (r *Reconciler) ensureDeck(ctx context.Context, deck string) (bool, error) {
	names, err := r.store.DeckNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == deck {
			return false, nil
		}
	}
	if !r.cfg.CreateDecks {
		return false, apperr.ErrDeckCreationDisabled
	}
	if err := r.store.CreateDeck(ctx, deck); err != nil {
		return false, err
	}
	return true, nil
}

// classify looks up a candidate record for the card and compares content.
// Lookup failures are logged and treated as "no candidate"; the later
// creation attempt surfaces any real problem as a record-level failure.
func (r *Reconciler) classify(ctx context.Context, deck string, c models.Card) classification {
	key := searchKey(c)
	if key == "" {
		return classification{card: c, class: classNew}
	}
	query := fmt.Sprintf("deck:%q %s", deck, key)
	ids, err := r.store.FindNotes(ctx, query)
	if err != nil {
		r.logger.Debug("reconcile: candidate lookup failed",
			slog.String("deck", deck), slog.String("error", err.Error()))
		return classification{card: c, class: classNew}
	}
	if len(ids) == 0 {
		return classification{card: c, class: classNew}
	}
	infos, err := r.store.NotesInfo(ctx, ids[:1])
	if err != nil || len(infos) == 0 {
		if err != nil {
			r.logger.Debug("reconcile: fetch fields failed",
				slog.String("deck", deck), slog.String("error", err.Error()))
		}
		return classification{card: c, class: classNew}
	}
	info := infos[0]
	if r.sim.Same(cardContent(c), recordContent(c, info)) {
		return classification{card: c, class: classIdentical, match: info}
	}
	return classification{card: c, class: classChanged, match: info}
}

// createBatch submits cards in bulk, falling back to one-at-a-time
// submission when the bulk call itself fails, so one bad record never
// blocks the rest of the batch.
func (r *Reconciler) createBatch(ctx context.Context, deck string, items []models.Card, rep *Report) {
	if len(items) == 0 {
		return
	}
	notes := make([]anki.Note, len(items))
	for i, c := range items {
		notes[i] = r.note(deck, c)
	}

	ids, err := r.store.AddNotes(ctx, notes)
	if err != nil {
		r.logger.Warn("reconcile: bulk create failed, retrying individually",
			slog.String("deck", deck), slog.String("error", err.Error()))
		for _, n := range notes {
			if _, addErr := r.store.AddNote(ctx, n); addErr != nil {
				rep.fail(fmt.Sprintf("deck %q: create note: %v", deck, addErr))
			} else {
				rep.Created++
			}
		}
		return
	}
	for i, id := range ids {
		if id == 0 {
			rep.fail(fmt.Sprintf("deck %q: note rejected by store (duplicate?): %s", deck, snippet(items[i].Answer)))
		} else {
			rep.Created++
		}
	}
}

// note maps a card onto one of the two schemas the store knows.
func (r *Reconciler) note(deck string, c models.Card) anki.Note {
	switch c.Kind {
	case models.KindCloze:
		return anki.Note{
			Deck:   deck,
			Model:  r.cfg.ClozeModel,
			Fields: map[string]string{clozeTextField: c.ClozeBody},
			Tags:   r.cfg.Tags,
		}
	case models.KindMultipleChoice:
		front := c.Prompt
		if len(c.Options) > 0 {
			front += "\n" + strings.Join(c.Options, " / ")
		}
		back := c.Answer
		if c.Explanation != "" {
			back += "\n" + c.Explanation
		}
		return anki.Note{
			Deck:   deck,
			Model:  r.cfg.BasicModel,
			Fields: map[string]string{frontField: front, backField: back},
			Tags:   r.cfg.Tags,
		}
	default:
		return anki.Note{
			Deck:   deck,
			Model:  r.cfg.BasicModel,
			Fields: map[string]string{frontField: c.Prompt, backField: c.Answer},
			Tags:   r.cfg.Tags,
		}
	}
}

// answerFields returns only the answer-bearing fields for a partial
// update: the free-text field for cloze records, the back field for
// front/back records. The prompt field is never overwritten.
func answerFields(c models.Card) map[string]string {
	if c.Kind == models.KindCloze {
		return map[string]string{clozeTextField: c.ClozeBody}
	}
	back := c.Answer
	if c.Kind == models.KindMultipleChoice && c.Explanation != "" {
		back += "\n" + c.Explanation
	}
	return map[string]string{backField: back}
}

var deletionMarkerRe = regexp.MustCompile(`\{\{c\d+::(.*?)\}\}`)

// searchKey derives the short lookup key: the first three
// whitespace-separated tokens longer than two characters, taken from the
// cloze body with deletion markers stripped, or from the prompt with
// punctuation stripped otherwise. An empty key means "no candidate".
func searchKey(c models.Card) string {
	var text string
	if c.Kind == models.KindCloze {
		text = deletionMarkerRe.ReplaceAllString(c.ClozeBody, "$1")
	} else {
		text = Normalize(c.Prompt)
	}
	var tokens []string
	for _, t := range strings.Fields(text) {
		if len(t) > 2 {
			tokens = append(tokens, t)
			if len(tokens) == 3 {
				break
			}
		}
	}
	return strings.Join(tokens, " ")
}

// cardContent is the side of the comparison supplied by the pipeline.
func cardContent(c models.Card) string {
	if c.Kind == models.KindCloze {
		return c.ClozeBody
	}
	return c.Prompt + "\n" + c.Answer
}

// recordContent is the side supplied by the remote record, read from the
// schema matching the card's shape.
func recordContent(c models.Card, info anki.NoteInfo) string {
	if c.Kind == models.KindCloze {
		return info.Fields[clozeTextField]
	}
	return info.Fields[frontField] + "\n" + info.Fields[backField]
}

func snippet(s string) string {
	if len(s) <= 60 {
		return s
	}
	return s[:60] + "..."
}
