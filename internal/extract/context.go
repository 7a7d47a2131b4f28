package extract

import (
	"regexp"
	"strings"

	"github.com/veleth/ansuz/internal/models"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// ResolveContext locates matchText inside text and returns the source label
// together with the nearest heading above the match. When matchText appears
// more than once only the first occurrence anchors the scan; the tie-break
// lives in AnchorLine so a stricter mode can swap it without touching the
// heading walk.
func ResolveContext(text, matchText, sourceLabel string) models.Context {
	ctx := models.Context{SourceLabel: sourceLabel}
	lines := strings.Split(text, "\n")
	anchor, ok := AnchorLine(lines, matchText)
	if !ok {
		return ctx
	}
	for i := anchor; i >= 0; i-- {
		if m := headingRe.FindStringSubmatch(lines[i]); m != nil {
			ctx.Heading = strings.TrimSpace(m[2])
			break
		}
	}
	return ctx
}

// AnchorLine returns the index of the first line containing matchText
// verbatim. First occurrence wins.
func AnchorLine(lines []string, matchText string) (int, bool) {
	for i, line := range lines {
		if strings.Contains(line, matchText) {
			return i, true
		}
	}
	return 0, false
}
