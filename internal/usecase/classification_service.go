package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/hebrew"
)

const (
	defaultClassifyWorkers  = 4
	defaultClassifyCacheTTL = 24 * time.Hour
)

// ClassificationServiceConfig holds configuration for the classification service.
// Scoring sections are used as given; start from DefaultClassificationServiceConfig.
// Non-positive Workers or CacheTTL take the defaults.
type ClassificationServiceConfig struct {
	Grade    GradeConfig
	Cut      CutConfig
	Scoring  ScoringConfig
	Workers  int
	CacheTTL time.Duration
	Now      func() time.Time
}

// DefaultClassificationServiceConfig returns the standard classifier settings
func DefaultClassificationServiceConfig() ClassificationServiceConfig {
	return ClassificationServiceConfig{
		Grade:    DefaultGradeConfig(),
		Cut:      DefaultCutConfig(),
		Scoring:  DefaultScoringConfig(),
		Workers:  defaultClassifyWorkers,
		CacheTTL: defaultClassifyCacheTTL,
	}
}

// ClassificationService maps raw product names to cut, grade and confidence
type ClassificationService struct {
	reference domain.ReferenceProvider
	cache     domain.CacheRepository
	recorder  domain.ClassificationRecorder
	grades    *GradeClassifier
	cuts      *CutClassifier
	scorer    *ConfidenceScorer
	workers   int
	cacheTTL  time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewClassificationService creates a classification service. cache and recorder
// are optional.
func NewClassificationService(
	reference domain.ReferenceProvider,
	cache domain.CacheRepository,
	recorder domain.ClassificationRecorder,
	config ClassificationServiceConfig,
	logger zerolog.Logger,
) *ClassificationService {
	workers := config.Workers
	if workers <= 0 {
		workers = defaultClassifyWorkers
	}

	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultClassifyCacheTTL
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &ClassificationService{
		reference: reference,
		cache:     cache,
		recorder:  recorder,
		grades:    NewGradeClassifier(config.Grade),
		cuts:      NewCutClassifier(config.Cut),
		scorer:    NewConfidenceScorer(config.Scoring),
		workers:   workers,
		cacheTTL:  cacheTTL,
		now:       now,
		logger:    logger.With().Str("component", "classifier").Logger(),
	}
}

// Reference returns the reference snapshot currently in use
func (s *ClassificationService) Reference() *domain.ReferenceTables {
	return s.reference.Current()
}

// Tier exposes the scorer's tier boundaries
func (s *ClassificationService) Tier(confidence float64) domain.ConfidenceTier {
	return s.scorer.Tier(confidence)
}

// Classify classifies one product. It never fails: malformed names yield the
// unknown result. The learner is notified of every non-empty classification.
// Flow: normalize -> cache -> grade -> cut -> score -> cache -> notify
func (s *ClassificationService) Classify(ctx context.Context, product domain.RawProduct) domain.ClassificationResult {
	return s.classify(ctx, product, true)
}

func (s *ClassificationService) classify(ctx context.Context, product domain.RawProduct, notify bool) domain.ClassificationResult {
	tables := s.reference.Current()
	normalized := hebrew.Normalize(product.Name)

	if normalized == "" {
		return s.unknownResult(product, tables)
	}

	cacheKey := classificationCacheKey(tables.Version, normalized)

	result, ok := s.getFromCache(ctx, cacheKey)
	if ok {
		result.Metadata.OriginalName = product.Name
		result.Metadata.ClassifiedAt = s.now()
	} else {
		result = s.classifyNormalized(product.Name, normalized, tables)
		s.saveToCache(ctx, cacheKey, result)
	}

	if notify {
		s.notify(ctx, product, result)
	}
	return result
}

// ClassifyBatch classifies products concurrently. Results keep input order. The
// only error is cancellation of ctx. The learner is not notified per item; hand
// the results to AutoLearner.ProcessResults so each is recorded once with its site.
func (s *ClassificationService) ClassifyBatch(ctx context.Context, products []domain.RawProduct) ([]domain.ClassifiedProduct, error) {
	results := make([]domain.ClassifiedProduct, len(products))
	if len(products) == 0 {
		return results, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := s.workers
	if workers > len(products) {
		workers = len(products)
	}

	worker := &classifyWorker{service: s, results: results}
	group := pool.New[classifyJob](workers, worker).WithContinueOnError()
	if err := group.Go(ctx); err != nil {
		return nil, fmt.Errorf("start classify pool: %w", err)
	}

	for i, p := range products {
		group.Submit(classifyJob{index: i, product: p})
	}

	if err := group.Close(ctx); err != nil {
		return nil, fmt.Errorf("classify batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug().Int("products", len(products)).Int("workers", workers).Msg("batch classified")
	return results, nil
}

type classifyJob struct {
	index   int
	product domain.RawProduct
}

// classifyWorker implements pool.Worker; each job writes its own slot
type classifyWorker struct {
	service *ClassificationService
	results []domain.ClassifiedProduct
}

// Do implements pool.Worker
func (w *classifyWorker) Do(ctx context.Context, job classifyJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.results[job.index] = domain.ClassifiedProduct{
		Product: job.product,
		Result:  w.service.classify(ctx, job.product, false),
	}
	return nil
}

func (s *ClassificationService) classifyNormalized(original, normalized string, tables *domain.ReferenceTables) domain.ClassificationResult {
	grade := s.grades.Classify(normalized, tables)
	cut := s.cuts.Classify(normalized, tables)
	confidence := s.scorer.Score(normalized, cut, grade)

	band := domain.DefaultPriceBand
	if cutDef, ok := tables.FindCut(cut.CutID); ok {
		if b, ok := cutDef.PriceBandFor(grade.Grade); ok {
			band = b
		}
	}

	return domain.ClassificationResult{
		BaseCut:            cut.CutID,
		Category:           cut.Category,
		Grade:              grade.Grade,
		FullClassification: domain.FullClassificationOf(cut.CutID, grade.Grade),
		Confidence:         confidence,
		ConfidenceTier:     s.scorer.Tier(confidence),
		Metadata: domain.ClassificationMetadata{
			GradeKeywords:       grade.MatchedKeywords,
			CutKeywords:         cut.MatchedKeywords,
			CutVariations:       cut.MatchedVariations,
			EstimatedPriceRange: band,
			OriginalName:        original,
			NormalizedName:      normalized,
			ClassifiedAt:        s.now(),
			ReferenceVersion:    tables.Version,
		},
	}
}

func (s *ClassificationService) unknownResult(product domain.RawProduct, tables *domain.ReferenceTables) domain.ClassificationResult {
	return domain.ClassificationResult{
		BaseCut:            domain.UnknownCut,
		Category:           domain.OtherCategory,
		Grade:              domain.RegularGrade,
		FullClassification: domain.UnknownCut,
		Confidence:         0,
		ConfidenceTier:     domain.TierVeryLow,
		Metadata: domain.ClassificationMetadata{
			EstimatedPriceRange: domain.DefaultPriceBand,
			OriginalName:        product.Name,
			ClassifiedAt:        s.now(),
			ReferenceVersion:    tables.Version,
		},
	}
}

func (s *ClassificationService) notify(ctx context.Context, product domain.RawProduct, result domain.ClassificationResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordClassification(ctx, product, result); err != nil {
		s.logger.Warn().Err(err).Str("product", product.Name).Msg("learner update failed")
	}
}

// classificationCacheKey includes the reference version so table changes never
// serve stale results. The normalized name is kept verbatim: distinct names
// must never share an entry.
func classificationCacheKey(version int, normalized string) string {
	return fmt.Sprintf("classification:v%d:%s", version, normalized)
}

// getFromCache retrieves a result from cache
func (s *ClassificationService) getFromCache(ctx context.Context, key string) (domain.ClassificationResult, bool) {
	var result domain.ClassificationResult
	if s.cache == nil {
		return result, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return result, false
	}

	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache entry undecodable")
		return result, false
	}
	return result, true
}

// saveToCache stores a result in cache; failures are logged only
func (s *ClassificationService) saveToCache(ctx context.Context, key string, result domain.ClassificationResult) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}
