package memory

import (
	"context"
	"fmt"
)

// Dispatch routes a typed request to its handler. The request set is
// closed; a nil or unrecognized request is reported as a structured
// failure rather than a fault.
func (s *service) Dispatch(ctx context.Context, req Request) *Result {
	switch r := req.(type) {
	case *RecordFailureRequest:
		return s.RecordFailure(ctx, r)
	case *CategorizeRequest:
		return s.Categorize(ctx, r)
	case *FindSimilarRequest:
		return s.FindSimilar(ctx, r)
	case *FixOutcomeRequest:
		return s.RecordFixOutcome(ctx, r)
	case *SuggestSolutionsRequest:
		return s.SuggestSolutions(ctx, r)
	case *AnalyzeRequest:
		return s.Analyze(ctx, r)
	case *PatternsRequest:
		return s.Patterns(ctx)
	case *StatsRequest:
		return s.Stats(ctx)
	default:
		return failure(fmt.Sprintf("unknown action: %T", req))
	}
}
