package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/hebrew"
)

// Learner defaults
const (
	defaultLearningThreshold = 0.8
	defaultReviewThreshold   = 0.6
	defaultMinFrequency      = 3
	defaultMinAvgConfidence  = 0.8
	defaultPersistEveryN     = 10
	defaultMaxSamples        = 5
	reviewBacklogAlert       = 5   // pending reviews before recommending triage
	newPatternAlert          = 3   // new patterns per pass before recommending validation
	lowAutoRateAlert         = 0.5 // auto-classified share below which keywords look thin
	minCandidateRunes        = 2
)

// LearnerConfig holds configuration for the auto-learner. Values are used as
// given; start from DefaultLearnerConfig. PersistEveryN of 0 or 1 saves after
// every record. A nil Now uses the wall clock.
type LearnerConfig struct {
	LearningThreshold float64
	ReviewThreshold   float64
	MinFrequency      int
	MinAvgConfidence  float64
	PersistEveryN     int
	MaxSamples        int
	Now               func() time.Time
}

// DefaultLearnerConfig returns the standard learner thresholds
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		LearningThreshold: defaultLearningThreshold,
		ReviewThreshold:   defaultReviewThreshold,
		MinFrequency:      defaultMinFrequency,
		MinAvgConfidence:  defaultMinAvgConfidence,
		PersistEveryN:     defaultPersistEveryN,
		MaxSamples:        defaultMaxSamples,
	}
}

// AutoLearner accumulates classification statistics, queues low-confidence results
// for review and discovers repeated unknown words. Promotion only records candidates;
// tables change through Approve and ApproveGradeKeyword.
type AutoLearner struct {
	mu        sync.Mutex
	state     *domain.LearningLogState
	sinceSave int
	dirty     bool

	// saveMu serializes persistence; never taken while holding mu
	saveMu sync.Mutex

	store     domain.LearningStore
	reference domain.ReferenceMutator

	knownVersion int
	known        map[string]bool
	stopwords    map[string]bool

	config LearnerConfig
	now    func() time.Time
	logger zerolog.Logger
}

var _ domain.ClassificationRecorder = (*AutoLearner)(nil)

// NewAutoLearner creates a learner with empty state. Call Load to resume from store.
func NewAutoLearner(
	store domain.LearningStore,
	reference domain.ReferenceMutator,
	config LearnerConfig,
	logger zerolog.Logger,
) *AutoLearner {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &AutoLearner{
		state:     domain.NewLearningLogState(),
		store:     store,
		reference: reference,
		config:    config,
		now:       now,
		logger:    logger.With().Str("component", "learner").Logger(),
	}
}

// Load replaces the in-memory state with the persisted one. A store with nothing
// saved yet leaves the empty state in place.
func (a *AutoLearner) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}

	state, err := a.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			a.logger.Info().Msg("no learning state saved yet, starting fresh")
			return nil
		}
		return fmt.Errorf("load learning state: %w", err)
	}
	state.EnsureInitialized()

	a.mu.Lock()
	a.state = state
	a.dirty = false
	a.sinceSave = 0
	a.mu.Unlock()

	a.logger.Info().
		Int("processed", state.Stats.TotalProductsProcessed).
		Int("pending_reviews", len(state.ManualReviewQueue)).
		Int("candidates", len(state.PotentialPatterns)).
		Msg("learning state loaded")
	return nil
}

// RecordClassification updates counters, the review queue and the candidate
// patterns for one classification, saving every PersistEveryN products
func (a *AutoLearner) RecordClassification(ctx context.Context, product domain.RawProduct, result domain.ClassificationResult) error {
	a.mu.Lock()
	a.recordLocked(product, result)
	a.sinceSave++
	due := a.sinceSave >= a.config.PersistEveryN
	a.mu.Unlock()

	if due {
		return a.save(ctx)
	}
	return nil
}

// ProcessResults records a batch from one site, persists, and returns a summary
func (a *AutoLearner) ProcessResults(ctx context.Context, batch []domain.ClassifiedProduct, site string) domain.LearningReport {
	now := a.now()

	a.mu.Lock()
	before := a.state.Stats
	discoveredBefore := len(a.state.NewPatterns)
	autoBefore := before.AutoClassifications

	for _, item := range batch {
		a.recordLocked(item.Product, item.Result)
		a.updateSiteLocked(site, item.Result.Confidence, now)
	}
	a.sinceSave += len(batch)

	after := a.state.Stats
	pending := len(a.state.ManualReviewQueue)
	fresh := append([]domain.DiscoveredPattern(nil), a.state.NewPatterns[discoveredBefore:]...)
	a.mu.Unlock()

	report := domain.LearningReport{
		Site:           site,
		GeneratedAt:    now,
		Processed:      len(batch),
		NewPatterns:    after.NewPatternsDiscovered - before.NewPatternsDiscovered,
		ManualReviews:  after.ManualReviews - before.ManualReviews,
		PendingReviews: pending,
		Stats:          after,
	}
	report.UpdatedMappingFiles = mappingTargets(fresh)
	report.Recommendations = recommendations(report, after.AutoClassifications-autoBefore)

	if err := a.Flush(ctx); err != nil {
		a.logger.Error().Err(err).Str("site", site).Msg("failed to persist learning state")
	}

	if archiver, ok := a.store.(domain.ReportArchiver); ok {
		if err := archiver.SaveReport(ctx, report); err != nil {
			a.logger.Warn().Err(err).Str("site", site).Msg("failed to archive learning report")
		}
	}

	a.logger.Info().
		Str("site", site).
		Int("processed", report.Processed).
		Int("new_patterns", report.NewPatterns).
		Int("manual_reviews", report.ManualReviews).
		Msg("learning pass complete")

	return report
}

// Flush saves the state if anything changed since the last successful save
func (a *AutoLearner) Flush(ctx context.Context) error {
	a.mu.Lock()
	dirty := a.dirty
	a.mu.Unlock()

	if !dirty {
		return nil
	}
	return a.save(ctx)
}

// Stats returns the running counters
func (a *AutoLearner) Stats() domain.LearningStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Stats
}

// ReviewQueue returns a copy of the pending manual reviews, oldest first
func (a *AutoLearner) ReviewQueue() []domain.ReviewItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ReviewItem{}, a.state.ManualReviewQueue...)
}

// DiscoveredPatterns returns a copy of the promoted candidates in discovery order
func (a *AutoLearner) DiscoveredPatterns() []domain.DiscoveredPattern {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.DiscoveredPattern{}, a.state.NewPatterns...)
}

// Snapshot returns a deep copy of the full learning state
func (a *AutoLearner) Snapshot() *domain.LearningLogState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Reports lists archived learning reports for site, newest first
func (a *AutoLearner) Reports(ctx context.Context, site string, limit int) ([]domain.LearningReport, error) {
	archiver, ok := a.store.(domain.ReportArchiver)
	if !ok {
		return nil, fmt.Errorf("%w: learning store keeps no reports", domain.ErrServiceNotConfigured)
	}
	return archiver.Reports(ctx, site, limit)
}

// Approve makes OriginalName an active variation of the suggested cut, then
// clears the matching review entries and marks matching patterns approved
func (a *AutoLearner) Approve(ctx context.Context, approval domain.PatternApproval) error {
	if a.reference == nil {
		return domain.ErrServiceNotConfigured
	}

	variation := hebrew.Normalize(approval.OriginalName)
	cutID := hebrew.Normalize(approval.NormalizedSuggestion)
	if variation == "" || cutID == "" {
		return fmt.Errorf("%w: original name and suggestion are required", domain.ErrInvalidRequest)
	}

	grade := hebrew.Normalize(approval.Grade)
	if grade == "" {
		grade = domain.RegularGrade
	}
	if _, ok := a.reference.Current().FindGrade(grade); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownGrade, grade)
	}

	changed, err := a.reference.Update(ctx, func(t *domain.ReferenceTables) (bool, error) {
		return t.AddCutVariation(cutID, hebrew.Normalize(approval.Category), grade, variation), nil
	})
	if err != nil {
		return fmt.Errorf("approve pattern: %w", err)
	}

	a.mu.Lock()
	removed := a.removeReviewsLocked(func(item domain.ReviewItem) bool {
		return hebrew.Normalize(item.ProductName) == variation
	})
	marked := a.markApprovedLocked(func(word string) bool {
		return strings.Contains(variation, word)
	})
	if removed > 0 || marked > 0 {
		a.dirty = true
	}
	a.mu.Unlock()

	a.logger.Info().
		Str("cut", cutID).
		Str("grade", grade).
		Str("variation", variation).
		Bool("tables_changed", changed).
		Int("reviews_cleared", removed).
		Msg("pattern approved")

	return a.Flush(ctx)
}

// ApproveGradeKeyword appends word to the grade's secondary keywords
func (a *AutoLearner) ApproveGradeKeyword(ctx context.Context, word, grade string) error {
	if a.reference == nil {
		return domain.ErrServiceNotConfigured
	}

	keyword := hebrew.Normalize(word)
	gradeID := hebrew.Normalize(grade)
	if keyword == "" || gradeID == "" {
		return fmt.Errorf("%w: keyword and grade are required", domain.ErrInvalidRequest)
	}

	if _, err := a.reference.Update(ctx, func(t *domain.ReferenceTables) (bool, error) {
		return t.AddGradeKeyword(gradeID, keyword)
	}); err != nil {
		return fmt.Errorf("approve grade keyword: %w", err)
	}

	a.mu.Lock()
	if a.markApprovedLocked(func(w string) bool { return w == keyword }) > 0 {
		a.dirty = true
	}
	a.mu.Unlock()

	a.logger.Info().Str("grade", gradeID).Str("keyword", keyword).Msg("grade keyword approved")
	return a.Flush(ctx)
}

// DismissReview drops one entry from the review queue
func (a *AutoLearner) DismissReview(ctx context.Context, id string) error {
	a.mu.Lock()
	removed := a.removeReviewsLocked(func(item domain.ReviewItem) bool {
		return item.ID == id
	})
	if removed > 0 {
		a.dirty = true
	}
	a.mu.Unlock()

	if removed == 0 {
		return domain.ErrReviewItemNotFound
	}
	return a.Flush(ctx)
}

func (a *AutoLearner) recordLocked(product domain.RawProduct, result domain.ClassificationResult) {
	now := a.now()
	stats := &a.state.Stats
	stats.TotalProductsProcessed++

	switch {
	case result.Confidence >= a.config.LearningThreshold:
		stats.AutoClassifications++
	case result.Confidence < a.config.ReviewThreshold:
		stats.ManualReviews++
		a.state.ManualReviewQueue = append(a.state.ManualReviewQueue, domain.ReviewItem{
			ID:             uuid.NewString(),
			ProductName:    product.Name,
			Site:           product.Retailer(),
			Confidence:     result.Confidence,
			SuggestedCut:   result.BaseCut,
			SuggestedGrade: result.Grade,
			FlaggedAt:      now,
		})
	}

	name := result.Metadata.NormalizedName
	if name == "" {
		name = hebrew.Normalize(product.Name)
	}
	for _, word := range a.candidateWordsLocked(name) {
		a.observeCandidateLocked(word, product, result, now)
	}

	a.state.LastUpdated = now
	a.dirty = true
}

// candidateWordsLocked returns the distinct tokens of name that no table knows
func (a *AutoLearner) candidateWordsLocked(name string) []string {
	a.refreshVocabularyLocked()

	var words []string
	seen := make(map[string]bool)
	for _, token := range hebrew.Tokenize(name) {
		if seen[token] || a.known[token] || a.stopwords[token] {
			continue
		}
		seen[token] = true
		if utf8.RuneCountInString(token) < minCandidateRunes || isNumeric(token) {
			continue
		}
		words = append(words, token)
	}
	return words
}

func (a *AutoLearner) refreshVocabularyLocked() {
	if a.reference == nil {
		if a.known == nil {
			a.known = map[string]bool{}
			a.stopwords = map[string]bool{}
		}
		return
	}

	tables := a.reference.Current()
	if a.known != nil && a.knownVersion == tables.Version {
		return
	}

	a.known = tables.KnownTerms(strings.Fields)
	a.stopwords = make(map[string]bool, len(tables.DomainTerms.Stopwords))
	for _, w := range tables.DomainTerms.Stopwords {
		a.stopwords[w] = true
	}
	a.knownVersion = tables.Version
}

func (a *AutoLearner) observeCandidateLocked(word string, product domain.RawProduct, result domain.ClassificationResult, now time.Time) {
	if a.isDiscoveredLocked(word) {
		return
	}

	candidate, ok := a.state.PotentialPatterns[word]
	if !ok {
		candidate = &domain.PatternCandidate{FirstSeen: now}
		a.state.PotentialPatterns[word] = candidate
	}
	candidate.Frequency++
	candidate.ConfidenceSum += result.Confidence
	if len(candidate.Samples) < a.config.MaxSamples {
		candidate.Samples = append(candidate.Samples, domain.PatternSample{
			ProductName: product.Name,
			BaseCut:     result.BaseCut,
			Grade:       result.Grade,
			Confidence:  result.Confidence,
		})
	}

	if candidate.Frequency < a.config.MinFrequency || candidate.AverageConfidence() < a.config.MinAvgConfidence {
		return
	}

	cut, grade := dominantSuggestion(candidate.Samples)
	a.state.NewPatterns = append(a.state.NewPatterns, domain.DiscoveredPattern{
		Word:              word,
		Frequency:         candidate.Frequency,
		AverageConfidence: roundConfidence(candidate.AverageConfidence()),
		SuggestedCut:      cut,
		SuggestedGrade:    grade,
		Samples:           candidate.Samples,
		DiscoveredAt:      now,
		Status:            domain.PatternPending,
	})
	a.state.Stats.NewPatternsDiscovered++
	delete(a.state.PotentialPatterns, word)

	a.logger.Info().
		Str("word", word).
		Int("frequency", candidate.Frequency).
		Float64("avg_confidence", candidate.AverageConfidence()).
		Msg("new pattern discovered")
}

func (a *AutoLearner) isDiscoveredLocked(word string) bool {
	for _, p := range a.state.NewPatterns {
		if p.Word == word {
			return true
		}
	}
	return false
}

func (a *AutoLearner) updateSiteLocked(site string, confidence float64, now time.Time) {
	if site == "" {
		return
	}
	st, ok := a.state.SiteStats[site]
	if !ok {
		st = &domain.SiteLearningStats{}
		a.state.SiteStats[site] = st
	}
	st.Processed++
	st.ConfidenceSum += confidence
	st.LastProcessedAt = now
	switch {
	case confidence >= a.config.LearningThreshold:
		st.AutoClassified++
	case confidence < a.config.ReviewThreshold:
		st.ManualReviews++
	}
}

func (a *AutoLearner) removeReviewsLocked(match func(domain.ReviewItem) bool) int {
	kept := a.state.ManualReviewQueue[:0]
	removed := 0
	for _, item := range a.state.ManualReviewQueue {
		if match(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	a.state.ManualReviewQueue = kept
	return removed
}

func (a *AutoLearner) markApprovedLocked(match func(word string) bool) int {
	marked := 0
	for i := range a.state.NewPatterns {
		p := &a.state.NewPatterns[i]
		if p.Status != domain.PatternApproved && match(p.Word) {
			p.Status = domain.PatternApproved
			marked++
		}
	}
	return marked
}

// save persists a snapshot. On failure the state stays dirty and the next
// checkpoint or Flush retries.
func (a *AutoLearner) save(ctx context.Context) error {
	if a.store == nil {
		return nil
	}

	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	snapshot := a.state.Clone()
	a.sinceSave = 0
	a.dirty = false
	a.mu.Unlock()

	if err := a.store.Save(ctx, snapshot); err != nil {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
		a.logger.Error().Err(err).Msg("learning state save failed, will retry")
		return fmt.Errorf("save learning state: %w", err)
	}

	a.logger.Debug().Int("processed", snapshot.Stats.TotalProductsProcessed).Msg("learning state saved")
	return nil
}

// dominantSuggestion returns the most frequent cut and grade among samples;
// ties keep the earliest
func dominantSuggestion(samples []domain.PatternSample) (string, string) {
	cutCounts := make(map[string]int)
	gradeCounts := make(map[string]int)
	var cut, grade string
	for _, s := range samples {
		cutCounts[s.BaseCut]++
		gradeCounts[s.Grade]++
		if cutCounts[s.BaseCut] > cutCounts[cut] {
			cut = s.BaseCut
		}
		if gradeCounts[s.Grade] > gradeCounts[grade] {
			grade = s.Grade
		}
	}
	return cut, grade
}

// mappingTargets reports which tables the newly discovered patterns would extend
// once approved
func mappingTargets(patterns []domain.DiscoveredPattern) domain.UpdatedMappingFiles {
	var targets domain.UpdatedMappingFiles
	for _, p := range patterns {
		if p.SuggestedCut != "" && p.SuggestedCut != domain.UnknownCut {
			targets.Cuts = true
		}
		if p.SuggestedGrade != "" && p.SuggestedGrade != domain.RegularGrade {
			targets.Grades = true
		}
	}
	return targets
}

func recommendations(report domain.LearningReport, autoClassified int) []string {
	var recs []string
	if report.PendingReviews > reviewBacklogAlert {
		recs = append(recs, fmt.Sprintf("%d items pending manual review: prioritize the review queue", report.PendingReviews))
	}
	if report.NewPatterns > newPatternAlert {
		recs = append(recs, fmt.Sprintf("%d new patterns discovered: validate them before production use", report.NewPatterns))
	}
	if report.Processed > 0 {
		rate := float64(autoClassified) / float64(report.Processed)
		if rate < lowAutoRateAlert {
			recs = append(recs, fmt.Sprintf("only %.0f%% of products auto-classified: extend the cut keyword tables", rate*100))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "no action required")
	}
	return recs
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return true
}
