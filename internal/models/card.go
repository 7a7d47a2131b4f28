// Package models defines the domain types for Ansuz.
package models

// MatchKind identifies which extraction mode produced a RawMatch.
type MatchKind string

const (
	MatchHighlight MatchKind = "highlight"
	MatchCueLine   MatchKind = "cue_line"
	MatchTrigger   MatchKind = "trigger_line"
)

// RawMatch is a single extraction hit inside a document. SourceText is
// always a verbatim substring (or whole line) of the originating text.
type RawMatch struct {
	SourceText  string
	Kind        MatchKind
	TriggerWord string // set only for MatchTrigger
	Answer      string // delimiter-stripped highlight content or trigger suffix
}

// Context locates a match inside its document for display purposes.
// Heading is empty when no heading precedes the match.
type Context struct {
	SourceLabel string
	Heading     string
}

// Label renders the display breadcrumb: "source" or "source > heading".
func (c Context) Label() string {
	if c.Heading == "" {
		return c.SourceLabel
	}
	return c.SourceLabel + " > " + c.Heading
}

// CardKind is the shape of a generated flashcard.
type CardKind string

const (
	KindCloze          CardKind = "cloze"
	KindShortAnswer    CardKind = "short_answer"
	KindMultipleChoice CardKind = "multiple_choice"
)

// Card is the transferable unit between extraction and synchronization.
// Cards are values; enhancement produces new Cards rather than mutating.
//
// Invariants: KindCloze implies ClozeBody is set and contains exactly one
// {{c1::...}} deletion (numbered per card, not globally). KindMultipleChoice
// implies Options contains Answer.
type Card struct {
	Kind        CardKind `json:"kind"`
	Prompt      string   `json:"prompt"`
	Answer      string   `json:"answer"`
	Options     []string `json:"options,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	ClozeBody   string   `json:"cloze_body,omitempty"`

	// TriggerWord carries deck attribution from the trigger extraction
	// path; empty for highlight and cue-line cards.
	TriggerWord string `json:"trigger_word,omitempty"`
}
