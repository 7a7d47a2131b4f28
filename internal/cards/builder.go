// Package cards turns raw extraction matches into Card values and routes
// finished cards into deck buckets.
package cards

import (
	"strings"

	"github.com/veleth/ansuz/internal/extract"
	"github.com/veleth/ansuz/internal/models"
	"github.com/veleth/ansuz/internal/source"
)

// Build creates one Card per RawMatch from the given document. Matches
// whose anchor text can no longer be located in the document are dropped
// silently; so is any match whose trimmed answer is empty. Both rules
// apply uniformly here rather than per extraction mode.
func Build(doc source.Source, matches []models.RawMatch) []models.Card {
	text := doc.Text()
	label := doc.DisplayName()
	lines := strings.Split(text, "\n")

	var out []models.Card
	for _, m := range matches {
		ctx := extract.ResolveContext(text, m.SourceText, label)
		card, ok := buildOne(lines, ctx, m)
		if !ok {
			continue
		}
		out = append(out, card)
	}
	return out
}

func buildOne(lines []string, ctx models.Context, m models.RawMatch) (models.Card, bool) {
	switch m.Kind {
	case models.MatchHighlight:
		return buildCloze(lines, ctx, m)
	case models.MatchCueLine:
		return buildCue(ctx, m)
	case models.MatchTrigger:
		return buildTrigger(ctx, m)
	}
	return models.Card{}, false
}

// buildCloze replaces the highlight span in its containing line with a
// single {{c1::...}} deletion. Every cloze card is numbered independently;
// Anki treats c1 per note, not per deck.
func buildCloze(lines []string, ctx models.Context, m models.RawMatch) (models.Card, bool) {
	answer := strings.TrimSpace(m.Answer)
	if answer == "" {
		return models.Card{}, false
	}
	idx, ok := extract.AnchorLine(lines, m.SourceText)
	if !ok {
		return models.Card{}, false
	}
	body := strings.Replace(lines[idx], m.SourceText, "{{c1::"+m.Answer+"}}", 1)
	body = ctx.Label() + "\n" + body
	return models.Card{
		Kind:      models.KindCloze,
		Prompt:    body,
		Answer:    m.Answer,
		ClozeBody: body,
	}, true
}

// buildCue splits on the single "::" separator: left side is the prompt,
// right side the answer.
func buildCue(ctx models.Context, m models.RawMatch) (models.Card, bool) {
	left, right, found := strings.Cut(m.SourceText, "::")
	if !found {
		return models.Card{}, false
	}
	prompt := strings.TrimSpace(left)
	answer := strings.TrimSpace(right)
	if prompt == "" || answer == "" {
		return models.Card{}, false
	}
	return models.Card{
		Kind:   models.KindShortAnswer,
		Prompt: ctx.Label() + "\n" + prompt,
		Answer: answer,
	}, true
}

// buildTrigger uses the literal trigger word as the prompt, not the full
// line: the reviewer sees "(source > heading) definition" and supplies the
// definition itself.
func buildTrigger(ctx models.Context, m models.RawMatch) (models.Card, bool) {
	answer := strings.TrimSpace(m.Answer)
	if answer == "" {
		return models.Card{}, false
	}
	return models.Card{
		Kind:        models.KindShortAnswer,
		Prompt:      ctx.Label() + "\n" + m.TriggerWord,
		Answer:      answer,
		TriggerWord: m.TriggerWord,
	}, true
}
