// Package app wires configuration into the classification stack shared by the
// HTTP server and the meatctl CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meatlens/backend/config"
	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/infrastructure/cache"
	"github.com/meatlens/backend/internal/infrastructure/feed"
	"github.com/meatlens/backend/internal/infrastructure/learningstore"
	"github.com/meatlens/backend/internal/infrastructure/postgres"
	"github.com/meatlens/backend/internal/reference"
	"github.com/meatlens/backend/internal/usecase"
)

// App holds the wired services. Sink is nil unless a database is configured.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Reference  *reference.Store
	Classifier *usecase.ClassificationService
	Learner    *usecase.AutoLearner
	Unifier    *usecase.ProductUnifier
	Filter     *usecase.DomainFilter
	Sink       domain.UnifiedSink

	closers []func() error
}

// New loads the reference tables, opens the stores and builds the services.
// Call Close when done, also after an error-free partial use.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	tables, err := reference.Load(cfg.Reference.Path)
	if err != nil {
		return nil, fmt.Errorf("load reference tables: %w", err)
	}
	a.Reference = reference.NewStore(tables, cfg.Reference.Path, logger)
	logger.Info().
		Int("version", tables.Version).
		Int("grades", len(tables.Grades)).
		Int("cuts", len(tables.Cuts)).
		Str("path", cfg.Reference.Path).
		Msg("reference tables loaded")

	store, storeCloser, err := learningstore.Open(learningstore.Options{
		Kind:      cfg.Learning.Store,
		Path:      cfg.Learning.Path,
		ReportDir: cfg.Learning.ReportDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open learning store: %w", err)
	}
	a.closers = append(a.closers, storeCloser.Close)

	a.Learner = usecase.NewAutoLearner(store, a.Reference, learnerConfig(cfg.Learning), logger)
	if err := a.Learner.Load(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("load learning log: %w", err)
	}

	classificationCache, err := a.openCache(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Classifier = usecase.NewClassificationService(
		a.Reference,
		classificationCache,
		a.Learner,
		classificationConfig(cfg.Classification, cfg.Cache),
		logger,
	)
	a.Unifier = usecase.NewProductUnifier(a.Reference, unifierConfig(cfg.Unify), logger)
	a.Filter = usecase.NewDomainFilter(a.Reference, filterConfig(cfg.Filter))

	if cfg.Sink.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.Sink.DatabaseURL, postgres.PoolConfig{MaxConns: cfg.Sink.MaxConns})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect sink database: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		sink, err := postgres.NewSink(ctx, pool, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Sink = sink
	}

	return a, nil
}

// openCache returns nil when caching is disabled
func (a *App) openCache(ctx context.Context) (domain.CacheRepository, error) {
	switch a.Config.Cache.Type {
	case "redis":
		client, err := cache.NewRedisClient(ctx, a.Config.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		redisCache := cache.NewRedisCache(client, a.Config.Cache.KeyPrefix)
		a.closers = append(a.closers, redisCache.Close)
		return redisCache, nil
	case "none":
		return nil, nil
	default:
		memoryCache := cache.NewMemoryCache()
		a.closers = append(a.closers, memoryCache.Close)
		return memoryCache, nil
	}
}

// WatchReference hot-reloads the reference file until ctx ends. It is a no-op
// unless reference.watch is set and a file path is configured.
func (a *App) WatchReference(ctx context.Context) error {
	if !a.Config.Reference.Watch || a.Config.Reference.Path == "" {
		return nil
	}
	return reference.NewWatcher(a.Reference, a.Logger).Watch(ctx)
}

// Feed builds a client for url, falling back to the configured feed url
func (a *App) Feed(url string, source domain.SourceKind) (*feed.Client, error) {
	if url == "" {
		url = a.Config.Feed.URL
	}
	if url == "" {
		return nil, fmt.Errorf("%w: no feed url configured", domain.ErrInvalidRequest)
	}
	if source == "" {
		source = domain.SourceKind(a.Config.Feed.Source)
	}
	return feed.NewClient(feed.ClientConfig{
		URL:               url,
		RecordsPath:       a.Config.Feed.RecordsPath,
		Source:            source,
		RequestsPerSecond: a.Config.Feed.RequestsPerSecond,
	}, a.Logger), nil
}

// Close flushes the learning log and releases every opened resource
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Learner != nil {
		if err := a.Learner.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush learning log: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func learnerConfig(c config.LearningConfig) usecase.LearnerConfig {
	out := usecase.DefaultLearnerConfig()
	out.LearningThreshold = c.LearningThreshold
	out.ReviewThreshold = c.ReviewThreshold
	out.MinFrequency = c.MinFrequency
	out.MinAvgConfidence = c.MinAvgConfidence
	out.PersistEveryN = c.PersistEvery
	out.MaxSamples = c.MaxSamples
	return out
}

func classificationConfig(c config.ClassificationConfig, cc config.CacheConfig) usecase.ClassificationServiceConfig {
	out := usecase.DefaultClassificationServiceConfig()
	out.Grade = usecase.GradeConfig{
		PrimaryWeight:     c.PrimaryWeight,
		SecondaryWeight:   c.SecondaryWeight,
		DefaultConfidence: c.DefaultGradeConfidence,
		NegativePenalty:   c.NegativePenalty,
	}
	out.Cut = usecase.CutConfig{
		KeywordWeight:    c.KeywordWeight,
		VariationWeight:  c.VariationWeight,
		PartialBonus:     c.PartialBonus,
		PartialWordRatio: c.PartialWordRatio,
	}
	out.Scoring.BaseConfidence = c.BaseConfidence
	out.Scoring.CutKeywordBonus = c.CutKeywordBonus
	out.Scoring.GradeKeywordBonus = c.GradeKeywordBonus
	out.Scoring.LengthBonusPerWord = c.LengthBonusPerWord
	out.Scoring.MaxLengthBonus = c.MaxLengthBonus
	out.Workers = c.Workers
	out.CacheTTL = cc.TTL
	return out
}

func unifierConfig(c config.UnifyConfig) usecase.UnifierConfig {
	out := usecase.DefaultUnifierConfig()
	out.SimilarityThreshold = c.SimilarityThreshold
	return out
}

func filterConfig(c config.FilterConfig) usecase.FilterConfig {
	out := usecase.DefaultFilterConfig()
	out.CutWeight = c.CutWeight
	out.SpeciesWeight = c.SpeciesWeight
	out.ProcessingWeight = c.ProcessingWeight
	out.KeepThreshold = c.HighThreshold
	out.ReviewThreshold = c.MidThreshold
	return out
}
