package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/failbank/internal/store"
)

// Severity levels, coarsest urgency first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// componentErrorHighWatermark is the sub-error count above which a failure
// is escalated to high severity.
const componentErrorHighWatermark = 5

// heuristicRule maps keyword groups to a category. Every group must match;
// a group matches when any of its phrases appears in the lowercased
// message. Rules are evaluated in order; the first match wins.
type heuristicRule struct {
	category string
	groups   [][]string
}

// heuristicRules is the fixed fallback taxonomy applied when no stored
// pattern matches. Order is significant.
var heuristicRules = []heuristicRule{
	{category: "duplicate_error", groups: [][]string{{"duplicate"}}},
	{category: "missing_field", groups: [][]string{{"field"}, {"not found", "does not exist"}}},
	{category: "missing_object", groups: [][]string{{"object"}, {"not found", "does not exist"}}},
	{category: "permission_error", groups: [][]string{{"permission", "access"}}},
	{category: "syntax_error", groups: [][]string{{"syntax", "invalid"}}},
	{category: "missing_required_field", groups: [][]string{{"required"}, {"missing"}}},
	{category: "reference_error", groups: [][]string{{"reference"}}},
}

// Classifier assigns categories and severities to error messages. Stored
// patterns take precedence over the built-in heuristics, so learned
// patterns progressively shadow the static taxonomy.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a classifier. A nil logger is replaced with a no-op.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger}
}

// Categorize maps an error message to a category. Stored patterns are
// tested first, in insertion order, first match wins. If none match, the
// fixed heuristic rules apply. Unmatched messages get a stable
// unknown_<8hex> category derived from the exact message, so the same
// message always lands in the same bucket.
func (c *Classifier) Categorize(errorMessage string, patterns []store.FailurePattern) string {
	for i := range patterns {
		m := NewMatcher(patterns[i].ErrorPattern, patterns[i].MatcherKind)
		if m.Kind() != patterns[i].MatcherKind {
			c.logger.Warn("stored pattern regex invalid, using literal match",
				zap.String("pattern_id", patterns[i].PatternID),
			)
		}
		if m.Matches(errorMessage) {
			return patterns[i].Category
		}
	}

	lower := strings.ToLower(errorMessage)
	for _, rule := range heuristicRules {
		if rule.matches(lower) {
			return rule.category
		}
	}

	return "unknown_" + hashSuffix(errorMessage)
}

// AssessSeverity assigns a coarse urgency to an error message. Rules are
// checked in order; the first match wins.
func (c *Classifier) AssessSeverity(errorMessage string, componentErrors []string) string {
	lower := strings.ToLower(errorMessage)

	switch {
	case strings.Contains(lower, "critical") || strings.Contains(lower, "fatal"):
		return SeverityCritical
	case strings.Contains(lower, "permission") || strings.Contains(lower, "access"):
		return SeverityHigh
	case len(componentErrors) > componentErrorHighWatermark:
		return SeverityHigh
	case strings.Contains(lower, "warning"):
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// MatchingPatterns returns the stored patterns whose matcher fires on the
// error message, in insertion order.
func (c *Classifier) MatchingPatterns(errorMessage string, patterns []store.FailurePattern) []store.FailurePattern {
	var matched []store.FailurePattern
	for i := range patterns {
		m := NewMatcher(patterns[i].ErrorPattern, patterns[i].MatcherKind)
		if m.Matches(errorMessage) {
			matched = append(matched, patterns[i])
		}
	}
	return matched
}

func (r heuristicRule) matches(lowerMessage string) bool {
	for _, group := range r.groups {
		found := false
		for _, phrase := range group {
			if strings.Contains(lowerMessage, phrase) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// hashSuffix returns the first 8 hex characters of the message's SHA-256,
// giving distinct unmatched messages distinct stable fallback categories.
func hashSuffix(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:4])
}
