package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/failbank/internal/classify"
	"github.com/fyrsmithlabs/failbank/internal/learn"
	"github.com/fyrsmithlabs/failbank/internal/similarity"
	"github.com/fyrsmithlabs/failbank/internal/store"
)

const instrumentationName = "github.com/fyrsmithlabs/failbank/internal/memory"

// Service exposes the failure memory action surface.
type Service interface {
	// RecordFailure stores a new failure occurrence, classified and scored.
	RecordFailure(ctx context.Context, req *RecordFailureRequest) *Result

	// Categorize classifies an error message without recording it.
	Categorize(ctx context.Context, req *CategorizeRequest) *Result

	// FindSimilar returns historically similar failures, ranked.
	FindSimilar(ctx context.Context, req *FindSimilarRequest) *Result

	// RecordFixOutcome sets a record's fix fields; success feeds the learner.
	RecordFixOutcome(ctx context.Context, req *FixOutcomeRequest) *Result

	// SuggestSolutions returns proven fixes for an error, best first.
	SuggestSolutions(ctx context.Context, req *SuggestSolutionsRequest) *Result

	// Analyze combines category, severity, suggestions, similar failures
	// and matched patterns for one recorded failure.
	Analyze(ctx context.Context, req *AnalyzeRequest) *Result

	// Patterns lists the learned patterns.
	Patterns(ctx context.Context) *Result

	// Stats returns the rollup statistics.
	Stats(ctx context.Context) *Result

	// Dispatch routes a typed request to its handler.
	Dispatch(ctx context.Context, req Request) *Result

	// Close closes the service.
	Close() error
}

// Config configures the memory service.
type Config struct {
	// Enabled gates the whole engine. When false every action is a
	// successful no-op that never touches storage. Read once at
	// construction.
	Enabled bool

	// SimilarityThreshold is the minimum score for similar-failure lookups
	// (default: 0.7).
	SimilarityThreshold float64

	// MaxSimilar caps similar-failure results (default: 5).
	MaxSimilar int

	// MaxSuggestions caps suggested solutions (default: 3).
	MaxSuggestions int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() *Config {
	return &Config{
		Enabled:             true,
		SimilarityThreshold: similarity.DefaultThreshold,
		MaxSimilar:          similarity.DefaultLimit,
		MaxSuggestions:      3,
	}
}

// service implements the Service interface.
type service struct {
	config     *Config
	store      *store.FileStore
	classifier *classify.Classifier
	engine     *similarity.Engine
	learner    *learn.Learner
	logger     *zap.Logger

	// Telemetry
	tracer          trace.Tracer
	meter           metric.Meter
	failureCounter  metric.Int64Counter
	outcomeCounter  metric.Int64Counter
	patternsCounter metric.Int64Counter

	// mu serializes every load→mutate→save cycle against the store, so
	// concurrent callers cannot lose updates.
	mu     sync.Mutex
	closed bool
}

// NewService creates a new memory service.
func NewService(cfg *Config, fs *store.FileStore, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if fs == nil {
		return nil, errors.New("file store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = similarity.DefaultThreshold
	}
	if cfg.MaxSimilar <= 0 {
		cfg.MaxSimilar = similarity.DefaultLimit
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 3
	}

	s := &service{
		config:     cfg,
		store:      fs,
		classifier: classify.NewClassifier(logger),
		engine:     similarity.NewEngine(cfg.SimilarityThreshold, cfg.MaxSimilar),
		learner:    learn.NewLearner(logger),
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.failureCounter, err = s.meter.Int64Counter(
		"failbank.memory.failures_total",
		metric.WithDescription("Total number of failures recorded"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		s.logger.Warn("failed to create failure counter", zap.Error(err))
	}

	s.outcomeCounter, err = s.meter.Int64Counter(
		"failbank.memory.fix_outcomes_total",
		metric.WithDescription("Total number of fix outcomes recorded"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		s.logger.Warn("failed to create outcome counter", zap.Error(err))
	}

	s.patternsCounter, err = s.meter.Int64Counter(
		"failbank.memory.patterns_learned_total",
		metric.WithDescription("Total number of patterns created or updated"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		s.logger.Warn("failed to create patterns counter", zap.Error(err))
	}
}

// disabled reports the engine-off state; actions short-circuit to a
// successful no-op without touching storage.
func (s *service) disabled() *Result {
	if s.config.Enabled {
		return nil
	}
	return &Result{Success: true, Message: "failure memory disabled"}
}

// RecordFailure stores a new failure occurrence.
func (s *service) RecordFailure(ctx context.Context, req *RecordFailureRequest) *Result {
	ctx, span := s.tracer.Start(ctx, "memory.record_failure")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}
	if req.ErrorMessage == "" {
		return failure("error_message is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	now := time.Now().UTC()
	rec := store.FailureRecord{
		ID:              generateFailureID(req.ErrorMessage, req.Content, now),
		Timestamp:       now,
		FailureType:     req.FailureType,
		ErrorMessage:    req.ErrorMessage,
		ComponentErrors: req.ComponentErrors,
		Category:        s.classifier.Categorize(req.ErrorMessage, ms.Patterns),
		Severity:        s.classifier.AssessSeverity(req.ErrorMessage, req.ComponentErrors),
	}
	if req.Content != "" {
		rec.ContentHash = contentHash(req.Content)
	}

	ms.AddFailure(rec)

	if err := s.store.Save(ms); err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to save store: %v", err))
	}

	// Journal after the snapshot save so a replay can never resurrect a
	// mutation the caller was told failed.
	s.appendJournal(store.Event{Type: store.EventFailureRecorded, Failure: &rec})

	if s.failureCounter != nil {
		s.failureCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", rec.Category),
			attribute.String("severity", rec.Severity),
		))
	}

	s.logger.Info("recorded failure",
		zap.String("id", rec.ID),
		zap.String("category", rec.Category),
		zap.String("severity", rec.Severity),
	)

	span.SetAttributes(
		attribute.String("failure_id", rec.ID),
		attribute.String("category", rec.Category),
	)

	return &Result{
		Success:   true,
		Message:   "failure recorded",
		FailureID: rec.ID,
		Category:  rec.Category,
		Severity:  rec.Severity,
	}
}

// Categorize classifies an error message against patterns and heuristics.
func (s *service) Categorize(ctx context.Context, req *CategorizeRequest) *Result {
	_, span := s.tracer.Start(ctx, "memory.categorize")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	category := s.classifier.Categorize(req.ErrorMessage, ms.Patterns)
	severity := s.classifier.AssessSeverity(req.ErrorMessage, req.ComponentErrors)

	span.SetAttributes(attribute.String("category", category))

	return &Result{
		Success:  true,
		Message:  "categorized",
		Category: category,
		Severity: severity,
	}
}

// FindSimilar returns past failures whose messages resemble the query.
func (s *service) FindSimilar(ctx context.Context, req *FindSimilarRequest) *Result {
	_, span := s.tracer.Start(ctx, "memory.find_similar")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	engine := s.engine
	if req.Threshold > 0 {
		engine = similarity.NewEngine(req.Threshold, s.config.MaxSimilar)
	}

	res := engine.FindSimilar(req.ErrorMessage, ms.Failures)
	span.SetAttributes(attribute.Int("total_matches", res.TotalMatches))

	return &Result{
		Success: true,
		Message: fmt.Sprintf("found %d similar failures", res.TotalMatches),
		Similar: res,
	}
}

// RecordFixOutcome sets a record's fix fields exactly once. A successful
// outcome feeds the pattern learner.
func (s *service) RecordFixOutcome(ctx context.Context, req *FixOutcomeRequest) *Result {
	ctx, span := s.tracer.Start(ctx, "memory.record_fix_outcome")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	rec := ms.FindFailure(req.FailureID)
	if rec == nil {
		// Unknown ids are neutral, not errors.
		return &Result{
			Success:   true,
			Message:   "unknown failure id",
			FailureID: req.FailureID,
			Category:  "unknown",
		}
	}
	if rec.FixSuccessful != nil {
		return failure(fmt.Sprintf("fix outcome already recorded for %s", req.FailureID))
	}

	outcome := req.Successful
	rec.AttemptedFix = req.AttemptedFix
	rec.FixSuccessful = &outcome

	result := &Result{
		Success:   true,
		Message:   "fix outcome recorded",
		FailureID: rec.ID,
		Category:  rec.Category,
	}

	var learned *store.FailurePattern
	if req.Successful {
		learned = s.learner.Learn(ms, rec, req.AttemptedFix)
		result.Patterns = []PatternSummary{summarize(learned)}
		result.Message = "fix outcome recorded, pattern learned"
	}

	if err := s.store.Save(ms); err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to save store: %v", err))
	}

	// Journal after the snapshot save so a replay can never resurrect a
	// mutation the caller was told failed.
	s.appendJournal(store.Event{
		Type:         store.EventFixOutcomeRecorded,
		FailureID:    rec.ID,
		AttemptedFix: req.AttemptedFix,
		Successful:   &outcome,
	})
	if learned != nil {
		s.appendJournal(store.Event{Type: store.EventPatternLearned, Pattern: learned})
		if s.patternsCounter != nil {
			s.patternsCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("category", learned.Category),
			))
		}
	}

	if s.outcomeCounter != nil {
		s.outcomeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("successful", req.Successful),
		))
	}

	s.logger.Info("recorded fix outcome",
		zap.String("id", rec.ID),
		zap.Bool("successful", req.Successful),
	)

	return result
}

// SuggestSolutions composes proven fixes for an error message.
func (s *service) SuggestSolutions(ctx context.Context, req *SuggestSolutionsRequest) *Result {
	_, span := s.tracer.Start(ctx, "memory.suggest_solutions")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	category := req.Category
	if category == "" {
		category = s.classifier.Categorize(req.ErrorMessage, ms.Patterns)
	}

	suggestions := s.composeSuggestions(ms, req.ErrorMessage, category)
	span.SetAttributes(attribute.Int("suggestion_count", len(suggestions)))

	return &Result{
		Success:     true,
		Message:     fmt.Sprintf("found %d suggestions", len(suggestions)),
		Category:    category,
		Suggestions: suggestions,
	}
}

// composeSuggestions concatenates pattern fixes (ranked by success rate)
// with fixes from successful similar records, de-duplicated and capped.
func (s *service) composeSuggestions(ms *store.MemoryStore, errorMessage, category string) []string {
	var categoryPatterns []store.FailurePattern
	for i := range ms.Patterns {
		if ms.Patterns[i].Category == category {
			categoryPatterns = append(categoryPatterns, ms.Patterns[i])
		}
	}
	sort.SliceStable(categoryPatterns, func(i, j int) bool {
		return categoryPatterns[i].SuccessRate > categoryPatterns[j].SuccessRate
	})

	seen := map[string]bool{}
	var suggestions []string
	add := func(fix string) {
		if fix == "" || seen[fix] || len(suggestions) >= s.config.MaxSuggestions {
			return
		}
		seen[fix] = true
		suggestions = append(suggestions, fix)
	}

	for _, p := range categoryPatterns {
		for _, fix := range p.SuccessfulFixes {
			add(fix)
		}
	}

	// Fixes from resolved records with similar messages; a single observed
	// success qualifies them.
	for i := range ms.Failures {
		rec := &ms.Failures[i]
		if !rec.Resolved() {
			continue
		}
		if s.engine.Score(errorMessage, rec.ErrorMessage) > s.config.SimilarityThreshold {
			add(rec.AttemptedFix)
		}
	}

	return suggestions
}

// Analyze combines everything the engine knows about one failure.
func (s *service) Analyze(ctx context.Context, req *AnalyzeRequest) *Result {
	_, span := s.tracer.Start(ctx, "memory.analyze")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	rec := ms.FindFailure(req.FailureID)
	if rec == nil {
		return &Result{
			Success: true,
			Message: "unknown failure id",
			Analysis: &Analysis{
				FailureID: req.FailureID,
				Category:  "unknown",
				Severity:  "unknown",
			},
		}
	}

	// Similar lookup excludes the record itself.
	others := make([]store.FailureRecord, 0, len(ms.Failures)-1)
	for i := range ms.Failures {
		if ms.Failures[i].ID != rec.ID {
			others = append(others, ms.Failures[i])
		}
	}

	var matched []PatternSummary
	for _, p := range s.classifier.MatchingPatterns(rec.ErrorMessage, ms.Patterns) {
		matched = append(matched, summarize(&p))
	}

	analysis := &Analysis{
		FailureID:       rec.ID,
		Category:        rec.Category,
		Severity:        rec.Severity,
		Suggestions:     s.composeSuggestions(ms, rec.ErrorMessage, rec.Category),
		Similar:         s.engine.FindSimilar(rec.ErrorMessage, others),
		MatchedPatterns: matched,
	}

	return &Result{
		Success:  true,
		Message:  "analysis complete",
		Analysis: analysis,
	}
}

// Patterns lists the learned patterns for reporting.
func (s *service) Patterns(ctx context.Context) *Result {
	_, span := s.tracer.Start(ctx, "memory.patterns")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	summaries := make([]PatternSummary, 0, len(ms.Patterns))
	for i := range ms.Patterns {
		summaries = append(summaries, summarize(&ms.Patterns[i]))
	}

	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("%d patterns", len(summaries)),
		Patterns: summaries,
	}
}

// Stats returns the rollup statistics.
func (s *service) Stats(ctx context.Context) *Result {
	_, span := s.tracer.Start(ctx, "memory.stats")
	defer span.End()

	if r := s.disabled(); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return failure("service is closed")
	}

	ms, err := s.store.Load()
	if err != nil {
		span.RecordError(err)
		return failure(fmt.Sprintf("failed to load store: %v", err))
	}

	stats := ms.Stats
	return &Result{
		Success: true,
		Message: fmt.Sprintf("%d failures recorded", stats.TotalFailures),
		Stats:   &stats,
	}
}

// Close closes the service.
func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}

// appendJournal writes an audit event when a journal is configured.
// Journal failures are logged, never fatal: the snapshot save is the
// authoritative write.
func (s *service) appendJournal(ev store.Event) {
	j := s.store.Journal()
	if j == nil {
		return
	}
	if err := j.Append(ev); err != nil {
		s.logger.Warn("failed to append journal event",
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

// generateFailureID derives a stable id from the failure content and
// creation time.
func generateFailureID(errorMessage, content string, ts time.Time) string {
	h := sha256.New()
	h.Write([]byte(errorMessage))
	h.Write([]byte(content))
	h.Write([]byte(ts.Format(time.RFC3339Nano)))
	return "fail_" + hex.EncodeToString(h.Sum(nil))[:12]
}

// contentHash fingerprints the associated artifact for linkage.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
