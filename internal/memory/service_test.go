package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/failbank/internal/store"
)

func newTestService(t *testing.T, cfg *Config) (Service, *store.FileStore) {
	t.Helper()
	dir := t.TempDir()

	journal, err := store.NewJournal(filepath.Join(dir, "journal.jsonl"), zap.NewNop())
	require.NoError(t, err)

	fs, err := store.NewFileStore(filepath.Join(dir, "memory.json"), journal, zap.NewNop())
	require.NoError(t, err)

	svc, err := NewService(cfg, fs, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return svc, fs
}

func TestNewService(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		_, err := NewService(nil, nil, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "memory.json"), nil, nil)
		require.NoError(t, err)
		svc, err := NewService(nil, fs, nil)
		require.NoError(t, err)
		assert.NoError(t, svc.Close())
	})
}

func TestService_RecordFailure(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		message      string
		wantCategory string
		wantSeverity string
	}{
		{
			name:         "duplicate error",
			message:      "Duplicate element found: Get_Records",
			wantCategory: "duplicate_error",
			wantSeverity: "medium",
		},
		{
			name:         "permission error",
			message:      "Permission denied accessing field X",
			wantCategory: "permission_error",
			wantSeverity: "high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.RecordFailure(ctx, &RecordFailureRequest{
				FailureType:  "deployment",
				ErrorMessage: tt.message,
			})
			require.True(t, res.Success, res.Message)
			assert.NotEmpty(t, res.FailureID)
			assert.Equal(t, tt.wantCategory, res.Category)
			assert.Equal(t, tt.wantSeverity, res.Severity)
		})
	}
}

func TestService_RecordFailureEmptyMessage(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res := svc.RecordFailure(context.Background(), &RecordFailureRequest{})
	assert.False(t, res.Success)
}

func TestService_RecordFailurePersistsContentHash(t *testing.T) {
	svc, fs := newTestService(t, nil)

	res := svc.RecordFailure(context.Background(), &RecordFailureRequest{
		ErrorMessage: "Duplicate element found: Get_Records",
		Content:      "<flow>definition</flow>",
	})
	require.True(t, res.Success)

	ms, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, ms.Failures, 1)
	assert.NotEmpty(t, ms.Failures[0].ContentHash)
	assert.Equal(t, 1, ms.Stats.TotalFailures)
	assert.Equal(t, 1, ms.Stats.ByCategory["duplicate_error"])
}

func TestService_FixOutcomeLearnsPattern(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec := svc.RecordFailure(ctx, &RecordFailureRequest{
		ErrorMessage: "Duplicate element found: Get_Records",
	})
	require.True(t, rec.Success)

	fix := svc.RecordFixOutcome(ctx, &FixOutcomeRequest{
		FailureID:    rec.FailureID,
		AttemptedFix: "Renamed duplicate element to Get_Records_2",
		Successful:   true,
	})
	require.True(t, fix.Success, fix.Message)
	require.Len(t, fix.Patterns, 1)
	assert.Equal(t, "duplicate_error", fix.Patterns[0].Category)
	assert.Equal(t, 1.0, fix.Patterns[0].SuccessRate)

	// A similarly-worded error must now be caught by the learned pattern,
	// and its suggestions must include the confirmed fix.
	cat := svc.Categorize(ctx, &CategorizeRequest{ErrorMessage: "Duplicate element found: Get_Accounts"})
	require.True(t, cat.Success)
	assert.Equal(t, "duplicate_error", cat.Category)

	sugg := svc.SuggestSolutions(ctx, &SuggestSolutionsRequest{
		ErrorMessage: "Duplicate element found: Get_Accounts",
	})
	require.True(t, sugg.Success)
	assert.Contains(t, sugg.Suggestions, "Renamed duplicate element to Get_Records_2")
}

func TestService_FixOutcomeSetExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec := svc.RecordFailure(ctx, &RecordFailureRequest{ErrorMessage: "syntax error near EOF"})
	require.True(t, rec.Success)

	first := svc.RecordFixOutcome(ctx, &FixOutcomeRequest{
		FailureID: rec.FailureID, AttemptedFix: "fixed syntax", Successful: false,
	})
	require.True(t, first.Success)

	second := svc.RecordFixOutcome(ctx, &FixOutcomeRequest{
		FailureID: rec.FailureID, AttemptedFix: "another fix", Successful: true,
	})
	assert.False(t, second.Success)
	assert.Contains(t, second.Message, "already recorded")
}

func TestService_FailedFixNeverLearns(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec := svc.RecordFailure(ctx, &RecordFailureRequest{ErrorMessage: "Duplicate element found: Get_Records"})
	require.True(t, rec.Success)

	res := svc.RecordFixOutcome(ctx, &FixOutcomeRequest{
		FailureID: rec.FailureID, AttemptedFix: "did not work", Successful: false,
	})
	require.True(t, res.Success)
	assert.Empty(t, res.Patterns)

	patterns := svc.Patterns(ctx)
	require.True(t, patterns.Success)
	assert.Empty(t, patterns.Patterns)
}

func TestService_FixOutcomeUnknownIDIsNeutral(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res := svc.RecordFixOutcome(context.Background(), &FixOutcomeRequest{
		FailureID: "fail_nonexistent", AttemptedFix: "noop", Successful: true,
	})
	require.True(t, res.Success)
	assert.Equal(t, "unknown failure id", res.Message)
	assert.Equal(t, "unknown", res.Category)
}

func TestService_FindSimilar(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec := svc.RecordFailure(ctx, &RecordFailureRequest{
		ErrorMessage: "Duplicate element found: Get_Records",
	})
	require.True(t, rec.Success)
	svc.RecordFailure(ctx, &RecordFailureRequest{
		ErrorMessage: "completely different network timeout problem here",
	})

	// "Duplicate element found: Get_Records" vs "... Get_Accounts" share 3
	// of 5 union tokens (0.6), so the lookup uses a 0.5 threshold.
	res := svc.FindSimilar(ctx, &FindSimilarRequest{
		ErrorMessage: "Duplicate element found: Get_Accounts",
		Threshold:    0.5,
	})
	require.True(t, res.Success)
	require.NotNil(t, res.Similar)
	require.Len(t, res.Similar.Matches, 1)
	assert.Equal(t, rec.FailureID, res.Similar.Matches[0].ID)
	assert.Greater(t, res.Similar.Matches[0].Score, 0.5)
	assert.Equal(t, 1, res.Similar.TotalMatches)
}

func TestService_SuggestSolutionsRanksAndCaps(t *testing.T) {
	svc, fs := newTestService(t, nil)
	ctx := context.Background()

	// Seed two patterns in the same category with different success rates
	// plus resolved similar records; suggestions must be capped at 3 with
	// the higher-rate pattern's fixes first.
	ms, err := fs.Load()
	require.NoError(t, err)
	ms.Patterns = append(ms.Patterns,
		store.FailurePattern{
			PatternID: "pattern_duplicate_error_1", Category: "duplicate_error",
			ErrorPattern: "nomatch_aaa", MatcherKind: store.MatcherLiteral,
			SuccessfulFixes: []string{"low rate fix"},
			TotalAttempts:   4, SuccessfulAttempts: 1, SuccessRate: 0.25,
		},
		store.FailurePattern{
			PatternID: "pattern_duplicate_error_2", Category: "duplicate_error",
			ErrorPattern: "nomatch_bbb", MatcherKind: store.MatcherLiteral,
			SuccessfulFixes: []string{"high rate fix", "second high rate fix"},
			TotalAttempts:   2, SuccessfulAttempts: 2, SuccessRate: 1.0,
		},
	)
	success := true
	ms.AddFailure(store.FailureRecord{
		ID:           "fail_resolved",
		ErrorMessage: "Duplicate element found: Get_Records",
		Category:     "duplicate_error",
		Severity:     "medium",
		AttemptedFix: "historical fix",
		FixSuccessful: &success,
	})
	require.NoError(t, fs.Save(ms))

	res := svc.SuggestSolutions(ctx, &SuggestSolutionsRequest{
		ErrorMessage: "Duplicate element found: Get_Records",
		Category:     "duplicate_error",
	})
	require.True(t, res.Success)
	assert.Equal(t, []string{"high rate fix", "second high rate fix", "low rate fix"}, res.Suggestions)
}

func TestService_SuggestSolutionsDeduplicates(t *testing.T) {
	svc, fs := newTestService(t, nil)

	ms, err := fs.Load()
	require.NoError(t, err)
	ms.Patterns = append(ms.Patterns, store.FailurePattern{
		PatternID: "pattern_x_1", Category: "x",
		ErrorPattern: "nomatch", MatcherKind: store.MatcherLiteral,
		SuccessfulFixes: []string{"same fix", "same fix"},
		TotalAttempts:   1, SuccessfulAttempts: 1, SuccessRate: 1.0,
	})
	require.NoError(t, fs.Save(ms))

	res := svc.SuggestSolutions(context.Background(), &SuggestSolutionsRequest{
		ErrorMessage: "whatever", Category: "x",
	})
	require.True(t, res.Success)
	assert.Equal(t, []string{"same fix"}, res.Suggestions)
}

func TestService_Analyze(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	first := svc.RecordFailure(ctx, &RecordFailureRequest{
		ErrorMessage: "Duplicate element found: Get_Records",
	})
	require.True(t, first.Success)
	fix := svc.RecordFixOutcome(ctx, &FixOutcomeRequest{
		FailureID: first.FailureID, AttemptedFix: "Renamed duplicate element", Successful: true,
	})
	require.True(t, fix.Success)

	second := svc.RecordFailure(ctx, &RecordFailureRequest{
		ErrorMessage: "Duplicate element found: Get_Accounts",
	})
	require.True(t, second.Success)

	res := svc.Analyze(ctx, &AnalyzeRequest{FailureID: second.FailureID})
	require.True(t, res.Success)
	require.NotNil(t, res.Analysis)

	assert.Equal(t, "duplicate_error", res.Analysis.Category)
	assert.Equal(t, "medium", res.Analysis.Severity)
	assert.Contains(t, res.Analysis.Suggestions, "Renamed duplicate element")
	require.NotEmpty(t, res.Analysis.MatchedPatterns)
	assert.Equal(t, "duplicate_error", res.Analysis.MatchedPatterns[0].Category)

	// The similar list never contains the analyzed record itself.
	if res.Analysis.Similar != nil {
		for _, m := range res.Analysis.Similar.Matches {
			assert.NotEqual(t, second.FailureID, m.ID)
		}
	}
}

func TestService_AnalyzeUnknownIDIsNeutral(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res := svc.Analyze(context.Background(), &AnalyzeRequest{FailureID: "fail_missing"})
	require.True(t, res.Success)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, "unknown", res.Analysis.Category)
	assert.Equal(t, "unknown", res.Analysis.Severity)
}

func TestService_NewCategoriesGrowPatternTable(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	const n = 3
	messages := []string{
		"alpha exploded yesterday",
		"beta melted overnight",
		"gamma vanished silently",
	}
	for i := 0; i < n; i++ {
		rec := svc.RecordFailure(ctx, &RecordFailureRequest{ErrorMessage: messages[i]})
		require.True(t, rec.Success)
		fix := svc.RecordFixOutcome(ctx, &FixOutcomeRequest{
			FailureID: rec.FailureID, AttemptedFix: fmt.Sprintf("fix %d", i), Successful: true,
		})
		require.True(t, fix.Success)
	}

	patterns := svc.Patterns(ctx)
	require.True(t, patterns.Success)
	assert.Len(t, patterns.Patterns, n)
}

func TestService_StatsRollup(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	svc.RecordFailure(ctx, &RecordFailureRequest{ErrorMessage: "Duplicate element found: A"})
	svc.RecordFailure(ctx, &RecordFailureRequest{ErrorMessage: "Duplicate element found: B"})
	svc.RecordFailure(ctx, &RecordFailureRequest{ErrorMessage: "Permission denied on field"})

	res := svc.Stats(ctx)
	require.True(t, res.Success)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 3, res.Stats.TotalFailures)
	assert.Equal(t, 2, res.Stats.ByCategory["duplicate_error"])
	assert.Equal(t, 1, res.Stats.ByCategory["permission_error"])
}

func TestService_DisabledIsNoopEverywhere(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Enabled = false
	svc, fs := newTestService(t, cfg)
	ctx := context.Background()

	requests := []Request{
		&RecordFailureRequest{ErrorMessage: "Duplicate element found"},
		&CategorizeRequest{ErrorMessage: "Duplicate element found"},
		&FindSimilarRequest{ErrorMessage: "Duplicate element found"},
		&FixOutcomeRequest{FailureID: "fail_x", AttemptedFix: "fix", Successful: true},
		&SuggestSolutionsRequest{ErrorMessage: "Duplicate element found"},
		&AnalyzeRequest{FailureID: "fail_x"},
		&PatternsRequest{},
		&StatsRequest{},
	}
	for _, req := range requests {
		res := svc.Dispatch(ctx, req)
		assert.True(t, res.Success, "%T", req)
		assert.Equal(t, "failure memory disabled", res.Message, "%T", req)
	}

	// The store document was never even created.
	_, err := os.Stat(fs.Path())
	require.ErrorIs(t, err, os.ErrNotExist, "disabled engine must not touch storage")

	// And an existing document stays byte-identical.
	_, err = fs.Load()
	require.NoError(t, err)
	before, err := os.ReadFile(fs.Path())
	require.NoError(t, err)

	for _, req := range requests {
		res := svc.Dispatch(ctx, req)
		assert.True(t, res.Success, "%T", req)
	}

	after, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after, "disabled engine must not mutate storage")
}

func TestService_ClosedRejectsActions(t *testing.T) {
	svc, _ := newTestService(t, nil)
	require.NoError(t, svc.Close())

	res := svc.RecordFailure(context.Background(), &RecordFailureRequest{ErrorMessage: "boom"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "closed")

	// Close is idempotent.
	assert.NoError(t, svc.Close())
}

func TestService_FailedSaveLeavesJournalEmpty(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind root")
	}

	// Journal lives outside the store directory so only the snapshot save
	// is broken by the chmod.
	journalPath := filepath.Join(t.TempDir(), "journal.jsonl")
	journal, err := store.NewJournal(journalPath, zap.NewNop())
	require.NoError(t, err)

	storeDir := t.TempDir()
	fs, err := store.NewFileStore(filepath.Join(storeDir, "memory.json"), journal, zap.NewNop())
	require.NoError(t, err)
	_, err = fs.Load()
	require.NoError(t, err)

	svc, err := NewService(nil, fs, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	require.NoError(t, os.Chmod(storeDir, 0500))
	t.Cleanup(func() { _ = os.Chmod(storeDir, 0700) })

	res := svc.RecordFailure(context.Background(), &RecordFailureRequest{ErrorMessage: "boom"})
	require.False(t, res.Success)

	// The journal was never written, so a replay cannot resurrect the
	// failed mutation.
	_, err = os.Stat(journal.Path())
	assert.ErrorIs(t, err, os.ErrNotExist, "failed save must not reach the journal")
}

func TestService_CategorizeDeterministic(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	msg := "entirely novel failure mode xyz"
	first := svc.Categorize(ctx, &CategorizeRequest{ErrorMessage: msg})
	require.True(t, first.Success)

	for i := 0; i < 3; i++ {
		res := svc.Categorize(ctx, &CategorizeRequest{ErrorMessage: msg})
		require.True(t, res.Success)
		assert.Equal(t, first.Category, res.Category)
	}
}
