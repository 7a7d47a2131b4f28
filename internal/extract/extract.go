// Package extract locates flashcard cues inside free-form note text:
// highlight spans, cue lines, and trigger lines. All functions are pure
// and total over any input; an empty result is valid, never an error.
package extract

import (
	"regexp"
	"strings"

	"github.com/veleth/ansuz/internal/models"
)

var highlightRe = regexp.MustCompile(`==(.+?)==`)

// Extractor finds raw matches for a configured, ordered trigger list.
// Trigger matching is case-insensitive and anchored at line start.
type Extractor struct {
	triggers   []string
	triggerRes []*regexp.Regexp
}

// NewExtractor compiles per-trigger patterns. A trigger line matches when,
// after leading whitespace and up to three emphasis asterisks, the line
// begins with the trigger word, optional closing asterisks, a ':' or '.'
// separator, and at least one more character.
func NewExtractor(triggers []string) *Extractor {
	e := &Extractor{triggers: triggers}
	for _, t := range triggers {
		e.triggerRes = append(e.triggerRes,
			regexp.MustCompile(`(?i)^\s*\*{0,3}`+regexp.QuoteMeta(t)+`\*{0,3}[:.](.+)$`))
	}
	return e
}

// Triggers returns the configured trigger words in order.
func (e *Extractor) Triggers() []string {
	return e.triggers
}

// Extract runs all three extraction modes over text and concatenates the
// results. A line matched by more than one mode is returned once per mode;
// this pipeline does not deduplicate.
func (e *Extractor) Extract(text string) []models.RawMatch {
	var out []models.RawMatch
	out = append(out, ExtractHighlights(text)...)
	out = append(out, ExtractCueLines(text)...)
	out = append(out, e.ExtractTriggerLines(text)...)
	return out
}

// ExtractHighlights returns every non-overlapping ==...== span. The raw
// text keeps the delimiters (needed for cloze substitution later); the
// answer is the inner text.
func ExtractHighlights(text string) []models.RawMatch {
	var out []models.RawMatch
	for _, m := range highlightRe.FindAllStringSubmatch(text, -1) {
		out = append(out, models.RawMatch{
			SourceText: m[0],
			Kind:       models.MatchHighlight,
			Answer:     m[1],
		})
	}
	return out
}

// ExtractCueLines returns every line containing exactly one "::" separator
// with non-empty text on both sides. Lines carrying a highlight delimiter
// are excluded; they are highlight-in-progress text, not cues.
func ExtractCueLines(text string) []models.RawMatch {
	var out []models.RawMatch
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "::") != 1 || strings.Contains(line, "==") {
			continue
		}
		left, right, _ := strings.Cut(line, "::")
		if left == "" || right == "" {
			continue
		}
		out = append(out, models.RawMatch{
			SourceText: line,
			Kind:       models.MatchCueLine,
		})
	}
	return out
}

// ExtractTriggerLines returns one match per line that starts with a
// configured trigger word. The captured answer is the trimmed suffix
// after the separator.
func (e *Extractor) ExtractTriggerLines(text string) []models.RawMatch {
	var out []models.RawMatch
	for _, line := range strings.Split(text, "\n") {
		word, suffix, ok := e.firstTriggerForLine(line)
		if !ok {
			continue
		}
		out = append(out, models.RawMatch{
			SourceText:  line,
			Kind:        models.MatchTrigger,
			TriggerWord: word,
			Answer:      strings.TrimSpace(suffix),
		})
	}
	return out
}

// firstTriggerForLine applies the configured trigger order: the first
// trigger word that matches a line wins, and a line never produces two
// trigger matches. The tie-break is scan order, kept compatible with the
// behavior users rely on; a stricter ambiguity mode would replace this
// function only.
func (e *Extractor) firstTriggerForLine(line string) (word, suffix string, ok bool) {
	for i, re := range e.triggerRes {
		if m := re.FindStringSubmatch(line); m != nil {
			return e.triggers[i], m[1], true
		}
	}
	return "", "", false
}
