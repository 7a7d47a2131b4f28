package enhance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/veleth/ansuz/internal/models"
)

type stubEnhancer struct {
	out []models.Card
	err error
}

func (s stubEnhancer) Enhance(context.Context, []models.Card, string) ([]models.Card, error) {
	return s.out, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func base() []models.Card {
	return []models.Card{
		{Kind: models.KindShortAnswer, Prompt: "q1", Answer: "a1", TriggerWord: "definition"},
		{Kind: models.KindShortAnswer, Prompt: "q2", Answer: "a2"},
	}
}

func TestApplyNilEnhancerPassesThrough(t *testing.T) {
	items := base()
	got := Apply(context.Background(), nil, items, "ctx", discard())
	if len(got) != 2 || got[0].Prompt != "q1" {
		t.Errorf("got = %v", got)
	}
}

func TestApplyErrorKeepsOriginals(t *testing.T) {
	got := Apply(context.Background(), stubEnhancer{err: errors.New("model down")}, base(), "", discard())
	if got[0].Prompt != "q1" || got[1].Prompt != "q2" {
		t.Errorf("got = %v", got)
	}
}

func TestApplyCountMismatchKeepsOriginals(t *testing.T) {
	stub := stubEnhancer{out: []models.Card{{Kind: models.KindShortAnswer, Prompt: "only one", Answer: "a"}}}
	got := Apply(context.Background(), stub, base(), "", discard())
	if len(got) != 2 || got[0].Prompt != "q1" {
		t.Errorf("got = %v", got)
	}
}

func TestApplyReplacesValidCardsOnly(t *testing.T) {
	stub := stubEnhancer{out: []models.Card{
		{Kind: models.KindShortAnswer, Prompt: "better q1", Answer: "better a1"},
		{Kind: models.KindShortAnswer, Prompt: "", Answer: "broken"}, // invalid
	}}
	got := Apply(context.Background(), stub, base(), "", discard())
	if got[0].Prompt != "better q1" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Prompt != "q2" {
		t.Errorf("got[1] = %+v, want original kept", got[1])
	}
}

func TestApplyPreservesTriggerWord(t *testing.T) {
	stub := stubEnhancer{out: []models.Card{
		{Kind: models.KindShortAnswer, Prompt: "better q1", Answer: "better a1", TriggerWord: "hijacked"},
		{Kind: models.KindShortAnswer, Prompt: "better q2", Answer: "better a2"},
	}}
	got := Apply(context.Background(), stub, base(), "", discard())
	if got[0].TriggerWord != "definition" {
		t.Errorf("TriggerWord = %q, attribution must survive enhancement", got[0].TriggerWord)
	}
}

func TestApplyMultipleChoiceInvariant(t *testing.T) {
	items := []models.Card{{Kind: models.KindShortAnswer, Prompt: "q", Answer: "a"}}

	// Answer missing from options: reject, keep original.
	bad := stubEnhancer{out: []models.Card{{
		Kind: models.KindMultipleChoice, Prompt: "pick", Answer: "right",
		Options: []string{"wrong", "also wrong"},
	}}}
	got := Apply(context.Background(), bad, items, "", discard())
	if got[0].Kind != models.KindShortAnswer {
		t.Errorf("invalid multiple choice accepted: %+v", got[0])
	}

	// Answer among the options: the upgrade is allowed.
	good := stubEnhancer{out: []models.Card{{
		Kind: models.KindMultipleChoice, Prompt: "pick", Answer: "right",
		Options: []string{"wrong", "right"},
	}}}
	got = Apply(context.Background(), good, items, "", discard())
	if got[0].Kind != models.KindMultipleChoice {
		t.Errorf("valid multiple choice rejected: %+v", got[0])
	}
}
