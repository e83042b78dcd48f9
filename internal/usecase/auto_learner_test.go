package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meatlens/backend/internal/domain"
)

// MockLearningStore is a mock implementation of domain.LearningStore and domain.ReportArchiver
type MockLearningStore struct {
	mu        sync.Mutex
	state     *domain.LearningLogState
	loadError error
	saveError error
	saves     int
	reports   []domain.LearningReport
}

func (m *MockLearningStore) Load(ctx context.Context) (*domain.LearningLogState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	if m.state == nil {
		return nil, domain.ErrStateNotFound
	}
	return m.state.Clone(), nil
}

func (m *MockLearningStore) Save(ctx context.Context, state *domain.LearningLogState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveError != nil {
		return m.saveError
	}
	m.state = state
	return nil
}

func (m *MockLearningStore) SaveReport(ctx context.Context, report domain.LearningReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *MockLearningStore) Reports(ctx context.Context, site string, limit int) ([]domain.LearningReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LearningReport
	for i := len(m.reports) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if site == "" || m.reports[i].Site == site {
			out = append(out, m.reports[i])
		}
	}
	return out, nil
}

func (m *MockLearningStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func newTestLearner(t *testing.T, store domain.LearningStore, config LearnerConfig) *AutoLearner {
	t.Helper()
	config.Now = func() time.Time { return fixedNow }
	return NewAutoLearner(store, newReferenceStore(t), config, zerolog.Nop())
}

func resultFor(name, cut, grade string, confidence float64) domain.ClassificationResult {
	return domain.ClassificationResult{
		BaseCut:    cut,
		Grade:      grade,
		Confidence: confidence,
		Metadata:   domain.ClassificationMetadata{NormalizedName: name},
	}
}

func TestAutoLearner_RecordClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("counters are monotonic", func(t *testing.T) {
		learner := newTestLearner(t, &MockLearningStore{}, DefaultLearnerConfig())
		confidences := []float64{0, 0.1, 0.59, 0.6, 0.79, 0.8, 1, 0.5, 0.95, 0.3, 0.61, 0.2}

		prev := learner.Stats()
		for i, c := range confidences {
			require.NoError(t, learner.RecordClassification(ctx, domain.RawProduct{Name: "פילה"}, resultFor("פילה", "פילה", "regular", c)))
			stats := learner.Stats()
			assert.Equal(t, i+1, stats.TotalProductsProcessed)
			assert.GreaterOrEqual(t, stats.AutoClassifications, prev.AutoClassifications)
			assert.GreaterOrEqual(t, stats.ManualReviews, prev.ManualReviews)
			prev = stats
		}

		stats := learner.Stats()
		assert.Equal(t, 3, stats.AutoClassifications)
		assert.Equal(t, 6, stats.ManualReviews)
	})

	t.Run("low confidence is queued for review", func(t *testing.T) {
		learner := newTestLearner(t, nil, DefaultLearnerConfig())
		product := domain.RawProduct{Name: "נתח לא מזוהה", StoreName: "shop-a"}

		require.NoError(t, learner.RecordClassification(ctx, product, resultFor("נתח לא מזוהה", domain.UnknownCut, "regular", 0.25)))

		queue := learner.ReviewQueue()
		require.Len(t, queue, 1)
		assert.NotEmpty(t, queue[0].ID)
		assert.Equal(t, "נתח לא מזוהה", queue[0].ProductName)
		assert.Equal(t, "shop-a", queue[0].Site)
		assert.Equal(t, 0.25, queue[0].Confidence)
		assert.Equal(t, domain.UnknownCut, queue[0].SuggestedCut)
		assert.Equal(t, fixedNow, queue[0].FlaggedAt)
	})

	t.Run("medium confidence is neither auto nor review", func(t *testing.T) {
		learner := newTestLearner(t, nil, DefaultLearnerConfig())
		require.NoError(t, learner.RecordClassification(ctx, domain.RawProduct{Name: "פילה"}, resultFor("פילה", "פילה", "regular", 0.7)))

		stats := learner.Stats()
		assert.Equal(t, 1, stats.TotalProductsProcessed)
		assert.Zero(t, stats.AutoClassifications)
		assert.Zero(t, stats.ManualReviews)
		assert.Empty(t, learner.ReviewQueue())
	})
}

func TestAutoLearner_Promotion(t *testing.T) {
	ctx := context.Background()
	record := func(learner *AutoLearner, times int, confidence float64) {
		for i := 0; i < times; i++ {
			require.NoError(t, learner.RecordClassification(ctx,
				domain.RawProduct{Name: "אנטריקוט זהב"},
				resultFor("אנטריקוט זהב", "אנטריקוט", "regular", confidence)))
		}
	}

	t.Run("promoted at min frequency", func(t *testing.T) {
		learner := newTestLearner(t, nil, DefaultLearnerConfig())
		record(learner, 3, 0.9)

		patterns := learner.DiscoveredPatterns()
		require.Len(t, patterns, 1)
		assert.Equal(t, "זהב", patterns[0].Word)
		assert.Equal(t, 3, patterns[0].Frequency)
		assert.Equal(t, "אנטריקוט", patterns[0].SuggestedCut)
		assert.Equal(t, domain.PatternPending, patterns[0].Status)
		assert.Equal(t, 1, learner.Stats().NewPatternsDiscovered)

		_, stillCandidate := learner.Snapshot().PotentialPatterns["זהב"]
		assert.False(t, stillCandidate)
	})

	t.Run("one short of min frequency", func(t *testing.T) {
		learner := newTestLearner(t, nil, DefaultLearnerConfig())
		record(learner, 2, 0.9)

		assert.Empty(t, learner.DiscoveredPatterns())
		candidate := learner.Snapshot().PotentialPatterns["זהב"]
		require.NotNil(t, candidate)
		assert.Equal(t, 2, candidate.Frequency)
	})

	t.Run("low average confidence is not promoted", func(t *testing.T) {
		learner := newTestLearner(t, nil, DefaultLearnerConfig())
		record(learner, 5, 0.7)
		assert.Empty(t, learner.DiscoveredPatterns())
	})

	t.Run("promoted once", func(t *testing.T) {
		learner := newTestLearner(t, nil, DefaultLearnerConfig())
		record(learner, 9, 0.9)
		assert.Len(t, learner.DiscoveredPatterns(), 1)
	})

	t.Run("samples are capped", func(t *testing.T) {
		learner := newTestLearner(t, nil, learnerConfigWith(func(c *LearnerConfig) { c.MaxSamples = 2; c.MinFrequency = 10 }))
		record(learner, 4, 0.9)
		assert.Len(t, learner.Snapshot().PotentialPatterns["זהב"].Samples, 2)
	})

	t.Run("known words and stopwords are not candidates", func(t *testing.T) {
		learner := newTestLearner(t, nil, DefaultLearnerConfig())
		require.NoError(t, learner.RecordClassification(ctx,
			domain.RawProduct{Name: "אנטריקוט אנגוס מארז 500 גרם"},
			resultFor("אנטריקוט אנגוס מארז 500 גרם", "אנטריקוט", "angus", 0.9)))

		assert.Empty(t, learner.Snapshot().PotentialPatterns)
	})
}

func TestAutoLearner_Persistence(t *testing.T) {
	ctx := context.Background()

	t.Run("saves every N products", func(t *testing.T) {
		store := &MockLearningStore{}
		learner := newTestLearner(t, store, learnerConfigWith(func(c *LearnerConfig) { c.PersistEveryN = 3 }))

		for i := 0; i < 7; i++ {
			require.NoError(t, learner.RecordClassification(ctx, domain.RawProduct{Name: "פילה"}, resultFor("פילה", "פילה", "regular", 0.9)))
		}
		assert.Equal(t, 2, store.saveCount())

		require.NoError(t, learner.Flush(ctx))
		assert.Equal(t, 3, store.saveCount())
		assert.Equal(t, 7, store.state.Stats.TotalProductsProcessed)

		require.NoError(t, learner.Flush(ctx))
		assert.Equal(t, 3, store.saveCount(), "clean state is not saved again")
	})

	t.Run("failed save keeps counters and retries", func(t *testing.T) {
		store := &MockLearningStore{saveError: errors.New("disk full")}
		learner := newTestLearner(t, store, learnerConfigWith(func(c *LearnerConfig) { c.PersistEveryN = 2 }))

		require.NoError(t, learner.RecordClassification(ctx, domain.RawProduct{Name: "פילה"}, resultFor("פילה", "פילה", "regular", 0.9)))
		err := learner.RecordClassification(ctx, domain.RawProduct{Name: "פילה"}, resultFor("פילה", "פילה", "regular", 0.9))
		assert.Error(t, err)
		assert.Equal(t, 2, learner.Stats().TotalProductsProcessed)

		store.mu.Lock()
		store.saveError = nil
		store.mu.Unlock()

		require.NoError(t, learner.Flush(ctx))
		assert.Equal(t, 2, store.state.Stats.TotalProductsProcessed)
	})

	t.Run("load resumes state", func(t *testing.T) {
		saved := domain.NewLearningLogState()
		saved.Stats.TotalProductsProcessed = 42
		store := &MockLearningStore{state: saved}

		learner := newTestLearner(t, store, DefaultLearnerConfig())
		require.NoError(t, learner.Load(ctx))
		assert.Equal(t, 42, learner.Stats().TotalProductsProcessed)
	})

	t.Run("load without saved state starts fresh", func(t *testing.T) {
		learner := newTestLearner(t, &MockLearningStore{}, DefaultLearnerConfig())
		require.NoError(t, learner.Load(ctx))
		assert.Zero(t, learner.Stats().TotalProductsProcessed)
	})

	t.Run("load failure is returned", func(t *testing.T) {
		learner := newTestLearner(t, &MockLearningStore{loadError: errors.New("corrupt")}, DefaultLearnerConfig())
		assert.Error(t, learner.Load(ctx))
	})
}

func TestAutoLearner_ProcessResults(t *testing.T) {
	ctx := context.Background()
	store := &MockLearningStore{}
	learner := newTestLearner(t, store, DefaultLearnerConfig())

	var batch []domain.ClassifiedProduct
	for i := 0; i < 7; i++ {
		batch = append(batch, domain.ClassifiedProduct{
			Product: domain.RawProduct{Name: "נתח עלום", StoreName: "shop-a"},
			Result:  resultFor("נתח עלום", domain.UnknownCut, "regular", 0.2),
		})
	}
	batch = append(batch, domain.ClassifiedProduct{
		Product: domain.RawProduct{Name: "פילה בקר", StoreName: "shop-a"},
		Result:  resultFor("פילה בקר", "פילה", "regular", 0.9),
	})

	report := learner.ProcessResults(ctx, batch, "shop-a")

	assert.Equal(t, "shop-a", report.Site)
	assert.Equal(t, 8, report.Processed)
	assert.Equal(t, 7, report.ManualReviews)
	assert.Equal(t, 7, report.PendingReviews)
	assert.Equal(t, 0, report.NewPatterns)
	assert.Equal(t, fixedNow, report.GeneratedAt)
	assert.Equal(t, 8, report.Stats.TotalProductsProcessed)
	require.Len(t, report.Recommendations, 2)
	assert.Contains(t, report.Recommendations[0], "pending manual review")
	assert.Contains(t, report.Recommendations[1], "auto-classified")

	assert.Equal(t, 1, store.saveCount(), "batch is persisted once at the end")
	require.Len(t, store.reports, 1)

	site := learner.Snapshot().SiteStats["shop-a"]
	require.NotNil(t, site)
	assert.Equal(t, 8, site.Processed)
	assert.Equal(t, 1, site.AutoClassified)
	assert.Equal(t, 7, site.ManualReviews)

	archived, err := learner.Reports(ctx, "shop-a", 5)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, 8, archived[0].Processed)
}

func TestAutoLearner_ReportsWithoutArchive(t *testing.T) {
	learner := newTestLearner(t, nil, DefaultLearnerConfig())

	_, err := learner.Reports(context.Background(), "", 0)
	assert.ErrorIs(t, err, domain.ErrServiceNotConfigured)
}

func TestAutoLearner_ProcessResultsReportsNewPatterns(t *testing.T) {
	learner := newTestLearner(t, nil, learnerConfigWith(func(c *LearnerConfig) { c.MinFrequency = 1 }))

	var batch []domain.ClassifiedProduct
	for _, word := range []string{"זהב", "כסף", "ארד", "פלטינה"} {
		name := "אנטריקוט אנגוס " + word
		batch = append(batch, domain.ClassifiedProduct{
			Product: domain.RawProduct{Name: name},
			Result:  resultFor(name, "אנטריקוט", "angus", 0.9),
		})
	}

	report := learner.ProcessResults(context.Background(), batch, "")
	assert.Equal(t, 4, report.NewPatterns)
	assert.True(t, report.UpdatedMappingFiles.Cuts)
	assert.True(t, report.UpdatedMappingFiles.Grades)
	assert.Contains(t, report.Recommendations[0], "validate")
}

func TestAutoLearner_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("approved name classifies to the approved cut", func(t *testing.T) {
		ref := newReferenceStore(t)
		learner := NewAutoLearner(nil, ref, DefaultLearnerConfig(), zerolog.Nop())
		svc := NewClassificationService(ref, NewMockCacheRepository(), learner, DefaultClassificationServiceConfig(), zerolog.Nop())

		product := domain.RawProduct{Name: "נתח קצבים מיוחד"}
		before := svc.Classify(ctx, product)
		require.True(t, before.IsUnknown())
		require.Len(t, learner.ReviewQueue(), 1)

		err := learner.Approve(ctx, domain.PatternApproval{
			OriginalName:         "נתח קצבים מיוחד",
			NormalizedSuggestion: "אנטריקוט",
			Grade:                "regular",
		})
		require.NoError(t, err)
		assert.Empty(t, learner.ReviewQueue())

		after := svc.Classify(ctx, product)
		assert.Equal(t, "אנטריקוט", after.BaseCut)
		assert.Equal(t, "בקר", after.Category)
		assert.Equal(t, 2, after.Metadata.ReferenceVersion)
	})

	t.Run("creates a new cut with the given category", func(t *testing.T) {
		ref := newReferenceStore(t)
		learner := NewAutoLearner(nil, ref, DefaultLearnerConfig(), zerolog.Nop())

		require.NoError(t, learner.Approve(ctx, domain.PatternApproval{
			OriginalName:         "צוואר טלה",
			NormalizedSuggestion: "צוואר",
			Grade:                "regular",
			Category:             "כבש",
		}))

		cut, ok := ref.Current().FindCut("צוואר")
		require.True(t, ok)
		assert.Equal(t, "כבש", cut.Category)
		assert.Equal(t, []string{"צוואר טלה"}, cut.Variants[0].Variations)
	})

	t.Run("marks matching patterns approved", func(t *testing.T) {
		ref := newReferenceStore(t)
		learner := NewAutoLearner(nil, ref, learnerConfigWith(func(c *LearnerConfig) { c.MinFrequency = 1 }), zerolog.Nop())
		require.NoError(t, learner.RecordClassification(ctx, domain.RawProduct{Name: "אנטריקוט זהב"}, resultFor("אנטריקוט זהב", "אנטריקוט", "regular", 0.9)))

		require.NoError(t, learner.Approve(ctx, domain.PatternApproval{
			OriginalName:         "אנטריקוט זהב",
			NormalizedSuggestion: "אנטריקוט",
		}))

		patterns := learner.DiscoveredPatterns()
		require.Len(t, patterns, 1)
		assert.Equal(t, domain.PatternApproved, patterns[0].Status)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		learner := NewAutoLearner(nil, newReferenceStore(t), DefaultLearnerConfig(), zerolog.Nop())

		err := learner.Approve(ctx, domain.PatternApproval{OriginalName: " ", NormalizedSuggestion: "פילה"})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		err = learner.Approve(ctx, domain.PatternApproval{OriginalName: "פילה", NormalizedSuggestion: "פילה", Grade: "kobe"})
		assert.ErrorIs(t, err, domain.ErrUnknownGrade)
	})

	t.Run("requires a reference store", func(t *testing.T) {
		learner := NewAutoLearner(nil, nil, DefaultLearnerConfig(), zerolog.Nop())
		err := learner.Approve(ctx, domain.PatternApproval{OriginalName: "x", NormalizedSuggestion: "y"})
		assert.ErrorIs(t, err, domain.ErrServiceNotConfigured)
	})
}

func TestAutoLearner_ApproveGradeKeyword(t *testing.T) {
	ctx := context.Background()
	ref := newReferenceStore(t)
	learner := NewAutoLearner(nil, ref, DefaultLearnerConfig(), zerolog.Nop())
	grades := NewGradeClassifier(DefaultGradeConfig())

	require.Equal(t, "regular", grades.Classify("אנטריקוט זהב", ref.Current()).Grade)

	require.NoError(t, learner.ApproveGradeKeyword(ctx, "זהב", "premium"))
	assert.Equal(t, "premium", grades.Classify("אנטריקוט זהב", ref.Current()).Grade)

	err := learner.ApproveGradeKeyword(ctx, "כסף", "kobe")
	assert.ErrorIs(t, err, domain.ErrUnknownGrade)

	err = learner.ApproveGradeKeyword(ctx, "", "premium")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestAutoLearner_DismissReview(t *testing.T) {
	ctx := context.Background()
	learner := newTestLearner(t, nil, DefaultLearnerConfig())
	require.NoError(t, learner.RecordClassification(ctx, domain.RawProduct{Name: "נתח"}, resultFor("נתח", domain.UnknownCut, "regular", 0.1)))

	queue := learner.ReviewQueue()
	require.Len(t, queue, 1)

	require.NoError(t, learner.DismissReview(ctx, queue[0].ID))
	assert.Empty(t, learner.ReviewQueue())
	assert.Equal(t, 1, learner.Stats().ManualReviews, "dismissal never lowers counters")

	assert.ErrorIs(t, learner.DismissReview(ctx, queue[0].ID), domain.ErrReviewItemNotFound)
}

func TestAutoLearner_ConcurrentRecording(t *testing.T) {
	store := &MockLearningStore{}
	learner := newTestLearner(t, store, learnerConfigWith(func(c *LearnerConfig) { c.PersistEveryN = 5 }))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = learner.RecordClassification(context.Background(), domain.RawProduct{Name: "פילה"}, resultFor("פילה", "פילה", "regular", 0.9))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, learner.Stats().TotalProductsProcessed)
	require.NoError(t, learner.Flush(context.Background()))
	assert.Equal(t, 200, store.state.Stats.TotalProductsProcessed)
}
