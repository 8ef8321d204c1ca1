package classify

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/failbank/internal/store"
)

// Matcher applies a pattern's error signature to an error message. It is
// one of two variants decided at construction time: a compiled
// case-insensitive regex, or a case-insensitive literal substring match.
// Construction never fails; a malformed regex degrades to the literal
// variant so a bad stored pattern is never fatal.
type Matcher struct {
	kind    store.MatcherKind
	regex   *regexp.Regexp
	literal string
}

// NewMatcher builds a matcher for the given specification. kind is the
// stored variant; when kind is regex but the expression does not compile,
// the matcher silently degrades to literal matching and Kind reports the
// degraded variant.
func NewMatcher(spec string, kind store.MatcherKind) *Matcher {
	if kind == store.MatcherRegex {
		re, err := regexp.Compile("(?i)" + spec)
		if err == nil {
			return &Matcher{kind: store.MatcherRegex, regex: re}
		}
	}
	return &Matcher{kind: store.MatcherLiteral, literal: strings.ToLower(spec)}
}

// DetectKind reports which variant a new pattern specification should be
// stored as: regex when it compiles case-insensitively, literal otherwise.
// Used at pattern-creation time so malformed expressions fail fast into the
// literal variant instead of degrading silently later.
func DetectKind(spec string) store.MatcherKind {
	if _, err := regexp.Compile("(?i)" + spec); err == nil {
		return store.MatcherRegex
	}
	return store.MatcherLiteral
}

// Kind returns the effective matching variant.
func (m *Matcher) Kind() store.MatcherKind {
	return m.kind
}

// Matches reports whether the error message matches the pattern.
func (m *Matcher) Matches(errorMessage string) bool {
	if m.kind == store.MatcherRegex {
		return m.regex.MatchString(errorMessage)
	}
	return strings.Contains(strings.ToLower(errorMessage), m.literal)
}
