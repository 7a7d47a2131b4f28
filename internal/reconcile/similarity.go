package reconcile

import (
	"strings"
	"unicode"
)

// Strategy decides whether an incoming card and an existing record hold
// the same content. It is pluggable so the default containment heuristic
// can be swapped for strict equality without touching the reconciler.
type Strategy interface {
	Same(a, b string) bool
}

// Normalize lowercases, strips punctuation, and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// containmentMinLen is the length floor below which substring containment
// is not trusted as a duplicate signal.
const containmentMinLen = 20

// ContainmentStrategy treats normalized equality as a duplicate, and also
// substring containment when both sides exceed containmentMinLen
// characters. The containment rule has a known false-positive: a short
// correct answer that happens to be a substring of a longer one is
// misclassified as a duplicate.
type ContainmentStrategy struct{}

func (ContainmentStrategy) Same(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	if len(na) > containmentMinLen && len(nb) > containmentMinLen {
		return strings.Contains(na, nb) || strings.Contains(nb, na)
	}
	return false
}

// ExactStrategy is the strict alternative: normalized equality only.
type ExactStrategy struct{}

func (ExactStrategy) Same(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
