package cards

import (
	"io"
	"log/slog"
	"testing"

	"github.com/veleth/ansuz/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRoute_TriggerCardsUseTheirWord(t *testing.T) {
	items := []models.Card{
		{Kind: models.KindShortAnswer, Prompt: "p", Answer: "a", TriggerWord: "definition"},
		{Kind: models.KindShortAnswer, Prompt: "p2", Answer: "a2", TriggerWord: "theorem"},
	}
	res := Route(items, []string{"definition", "theorem"}, "", discardLogger())
	if len(res.Buckets["definition"]) != 1 || len(res.Buckets["theorem"]) != 1 {
		t.Errorf("buckets = %v", res.Buckets)
	}
}

func TestRoute_PostHocAttribution(t *testing.T) {
	// No trigger word on the card; content scan attributes it, first
	// configured trigger wins.
	items := []models.Card{
		{Kind: models.KindCloze, Prompt: "The Definition of done", Answer: "done", ClozeBody: "x"},
	}
	res := Route(items, []string{"theorem", "definition"}, "", discardLogger())
	if len(res.Buckets["definition"]) != 1 {
		t.Errorf("buckets = %v, want card under definition", res.Buckets)
	}
}

func TestRoute_UnattributedExcluded(t *testing.T) {
	items := []models.Card{
		{Kind: models.KindShortAnswer, Prompt: "no match here", Answer: "none"},
	}
	res := Route(items, []string{"definition"}, "", discardLogger())
	if len(res.Buckets) != 0 {
		t.Errorf("buckets = %v, want none", res.Buckets)
	}
	if len(res.Unattributed) != 1 {
		t.Errorf("unattributed = %d, want 1", len(res.Unattributed))
	}
}

func TestRoute_FallbackDeck(t *testing.T) {
	items := []models.Card{
		{Kind: models.KindShortAnswer, Prompt: "no match here", Answer: "none"},
	}
	res := Route(items, []string{"definition"}, "Inbox", discardLogger())
	if len(res.Buckets["Inbox"]) != 1 {
		t.Errorf("buckets = %v, want card under Inbox", res.Buckets)
	}
	if len(res.Unattributed) != 0 {
		t.Errorf("unattributed = %d, want 0", len(res.Unattributed))
	}
}
