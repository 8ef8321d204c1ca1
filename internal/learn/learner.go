// Package learn turns confirmed successful fixes into reusable failure
// patterns.
//
// A pattern accumulates the proven fixes and example messages for one
// category, plus attempt counters whose ratio is the pattern's success
// rate. As patterns accumulate, future occurrences of similarly-worded
// errors are caught by pattern matching before the static heuristics run.
package learn

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/failbank/internal/classify"
	"github.com/fyrsmithlabs/failbank/internal/store"
)

const (
	// keywordCount is how many significant tokens seed a new pattern's matcher.
	keywordCount = 3
	// minKeywordLength filters short tokens from matcher synthesis.
	minKeywordLength = 3
)

// Learner creates and updates failure patterns from successful fixes.
type Learner struct {
	logger *zap.Logger
}

// NewLearner creates a learner. A nil logger is replaced with a no-op.
func NewLearner(logger *zap.Logger) *Learner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Learner{logger: logger}
}

// Learn records a confirmed successful fix for the given failure, updating
// the existing pattern for the record's category or creating a new one.
// It returns the pattern in its post-update state. Learn must only be
// called for successful fixes; failed attempts never feed the learner.
func (l *Learner) Learn(ms *store.MemoryStore, rec *store.FailureRecord, fix string) *store.FailurePattern {
	if p := ms.FindPattern(rec.Category); p != nil {
		l.update(p, rec.ErrorMessage, fix)
		return p
	}

	p := l.create(ms, rec, fix)
	ms.Patterns = append(ms.Patterns, *p)
	return &ms.Patterns[len(ms.Patterns)-1]
}

// update folds a new successful fix into an existing pattern.
func (l *Learner) update(p *store.FailurePattern, errorMessage, fix string) {
	if !contains(p.SuccessfulFixes, fix) {
		p.SuccessfulFixes = append(p.SuccessfulFixes, fix)
	}
	p.Examples = append(p.Examples, errorMessage)
	p.TotalAttempts++
	p.SuccessfulAttempts++
	p.SuccessRate = float64(p.SuccessfulAttempts) / float64(p.TotalAttempts)

	l.logger.Info("updated failure pattern",
		zap.String("pattern_id", p.PatternID),
		zap.String("category", p.Category),
		zap.Float64("success_rate", p.SuccessRate),
		zap.Int("fixes", len(p.SuccessfulFixes)),
	)
}

// create synthesizes a new pattern for a category seeing its first
// successful fix.
func (l *Learner) create(ms *store.MemoryStore, rec *store.FailureRecord, fix string) *store.FailurePattern {
	spec, kind := synthesizeMatcher(rec.ErrorMessage)

	p := &store.FailurePattern{
		PatternID:          fmt.Sprintf("pattern_%s_%d", rec.Category, len(ms.Patterns)+1),
		ErrorPattern:       spec,
		MatcherKind:        kind,
		Category:           rec.Category,
		Description:        fmt.Sprintf("Learned pattern for %s failures", rec.Category),
		SuccessfulFixes:    []string{fix},
		Examples:           []string{rec.ErrorMessage},
		TotalAttempts:      1,
		SuccessfulAttempts: 1,
		SuccessRate:        1.0,
	}

	l.logger.Info("learned new failure pattern",
		zap.String("pattern_id", p.PatternID),
		zap.String("category", p.Category),
		zap.String("error_pattern", p.ErrorPattern),
	)
	return p
}

// synthesizeMatcher builds a matcher spec from the first significant tokens
// of the error message, joined as regex alternatives. Tokens are
// meta-quoted so the alternatives stay literal. When the message has no
// significant tokens, the whole message becomes a literal matcher. This is
// a deliberately simple keyword heuristic; it trades precision for zero
// configuration and is meant to be replaced if it misclassifies in
// practice.
func synthesizeMatcher(errorMessage string) (string, store.MatcherKind) {
	var keywords []string
	for _, tok := range strings.Fields(strings.ToLower(errorMessage)) {
		if len(tok) > minKeywordLength {
			keywords = append(keywords, regexp.QuoteMeta(tok))
		}
		if len(keywords) == keywordCount {
			break
		}
	}

	if len(keywords) == 0 {
		return errorMessage, store.MatcherLiteral
	}

	spec := strings.Join(keywords, "|")
	return spec, classify.DetectKind(spec)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
