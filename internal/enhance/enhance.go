// Package enhance improves generated cards with a single best-effort
// model call per batch. A failed call never propagates: the original
// cards remain the valid base set.
package enhance

import (
	"context"
	"log/slog"

	"github.com/veleth/ansuz/internal/models"
)

// Enhancer rewrites a batch of cards given the document context it was
// extracted from. Implementations must return new Card values; the input
// slice is never mutated.
type Enhancer interface {
	Enhance(ctx context.Context, items []models.Card, textContext string) ([]models.Card, error)
}

// Apply runs the enhancer and falls back to the original cards on any
// failure or on a malformed result (wrong cardinality, broken invariants).
func Apply(ctx context.Context, e Enhancer, items []models.Card, textContext string, logger *slog.Logger) []models.Card {
	if e == nil || len(items) == 0 {
		return items
	}
	enhanced, err := e.Enhance(ctx, items, textContext)
	if err != nil {
		logger.Warn("enhance: call failed, keeping original cards", slog.String("error", err.Error()))
		return items
	}
	if len(enhanced) != len(items) {
		logger.Warn("enhance: result count mismatch, keeping original cards",
			slog.Int("want", len(items)), slog.Int("got", len(enhanced)))
		return items
	}
	out := make([]models.Card, len(items))
	for i := range items {
		if ok := valid(enhanced[i]); !ok {
			out[i] = items[i]
			continue
		}
		// Attribution must survive enhancement or routing breaks.
		enhanced[i].TriggerWord = items[i].TriggerWord
		out[i] = enhanced[i]
	}
	return out
}

// valid checks the card invariants an enhanced value must still hold.
func valid(c models.Card) bool {
	if c.Prompt == "" || c.Answer == "" {
		return false
	}
	switch c.Kind {
	case models.KindCloze:
		return c.ClozeBody != ""
	case models.KindMultipleChoice:
		for _, o := range c.Options {
			if o == c.Answer {
				return true
			}
		}
		return false
	case models.KindShortAnswer:
		return true
	}
	return false
}
