package cards

import (
	"log/slog"
	"strings"

	"github.com/veleth/ansuz/internal/models"
)

// RouteResult groups cards into deck buckets and reports the leftovers.
type RouteResult struct {
	Buckets      map[string][]models.Card
	Unattributed []models.Card
}

// Route assigns each card to a bucket named after a trigger word. Cards
// from the trigger path carry their word already; other cards are
// attributed post hoc by scanning prompt+answer for any configured
// trigger as a substring, first configured trigger wins. Cards with no
// attribution fall back to fallbackDeck when set, otherwise they are
// excluded from sync and logged.
func Route(items []models.Card, triggers []string, fallbackDeck string, logger *slog.Logger) RouteResult {
	res := RouteResult{Buckets: make(map[string][]models.Card)}
	for _, c := range items {
		bucket := c.TriggerWord
		if bucket == "" {
			bucket = attributeByContent(c, triggers)
		}
		if bucket == "" {
			bucket = fallbackDeck
		}
		if bucket == "" {
			res.Unattributed = append(res.Unattributed, c)
			logger.Debug("router: unattributed card excluded",
				slog.String("kind", string(c.Kind)),
				slog.String("answer", c.Answer))
			continue
		}
		res.Buckets[bucket] = append(res.Buckets[bucket], c)
	}
	return res
}

// attributeByContent finds the first configured trigger word occurring
// anywhere in the card text, case-insensitive.
func attributeByContent(c models.Card, triggers []string) string {
	haystack := strings.ToLower(c.Prompt + "\n" + c.Answer)
	for _, t := range triggers {
		if strings.Contains(haystack, strings.ToLower(t)) {
			return t
		}
	}
	return ""
}
