// Package similarity scores textual similarity between error messages.
//
// The score is the Jaccard index over the sets of lowercase
// whitespace-delimited tokens: |A∩B| / |A∪B|, defined as 0 when the union
// is empty. It is symmetric, reflexive, and bounded to [0,1].
package similarity

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/failbank/internal/store"
)

const (
	// DefaultThreshold is the minimum score a record must exceed to count
	// as similar.
	DefaultThreshold = 0.7
	// DefaultLimit caps how many similar records are returned.
	DefaultLimit = 5
)

// ScoredFailure is a failure record annotated with its similarity score.
type ScoredFailure struct {
	store.FailureRecord
	Score float64 `json:"score"`
}

// Result holds ranked similar failures plus the total number of matches
// before truncation to the limit.
type Result struct {
	Matches      []ScoredFailure `json:"matches"`
	TotalMatches int             `json:"total_matches"`
}

// Engine finds historically similar failures by lexical overlap.
type Engine struct {
	threshold float64
	limit     int
}

// NewEngine creates an engine. Non-positive arguments are replaced with the
// defaults (threshold 0.7, limit 5).
func NewEngine(threshold float64, limit int) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Engine{threshold: threshold, limit: limit}
}

// Threshold returns the configured similarity cutoff.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Score computes the Jaccard index of the two messages' token sets.
func (e *Engine) Score(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// FindSimilar scores the query against every record's error message,
// retains scores exceeding the threshold, and returns the top matches in
// descending score order along with the pre-truncation total.
func (e *Engine) FindSimilar(query string, records []store.FailureRecord) *Result {
	var matches []ScoredFailure
	for i := range records {
		score := e.Score(query, records[i].ErrorMessage)
		if score > e.threshold {
			matches = append(matches, ScoredFailure{
				FailureRecord: records[i],
				Score:         score,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	total := len(matches)
	if len(matches) > e.limit {
		matches = matches[:e.limit]
	}

	return &Result{Matches: matches, TotalMatches: total}
}

// tokenSet returns the set of lowercase whitespace-delimited tokens.
func tokenSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
