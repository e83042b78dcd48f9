package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meatlens/backend/config"
	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/reference"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := config.LoadFrom("")
	require.NoError(t, err)
	cfg.Classification.Workers = 2
	cfg.Learning.Path = filepath.Join(dir, "learning_log.json")
	cfg.Learning.ReportDir = filepath.Join(dir, "reports")
	return cfg
}

func TestServiceConfigs_KeepExplicitZeros(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classification.NegativePenalty = 0
	cfg.Classification.PartialBonus = 0
	cfg.Filter.ProcessingWeight = 0

	classification := classificationConfig(cfg.Classification, cfg.Cache)
	assert.Equal(t, 0.0, classification.Grade.NegativePenalty)
	assert.Equal(t, 0.0, classification.Cut.PartialBonus)
	assert.Equal(t, 0.4, classification.Grade.PrimaryWeight)
	assert.Equal(t, 0.8, classification.Scoring.HighTierFloor, "unexposed settings keep their defaults")

	filter := filterConfig(cfg.Filter)
	assert.Equal(t, 0, filter.ProcessingWeight)
	assert.Equal(t, 10, filter.CutWeight)
	assert.Equal(t, 15, filter.KeepThreshold)

	learner := learnerConfig(cfg.Learning)
	assert.Equal(t, 5, learner.MaxSamples)
	assert.Equal(t, 10, learner.PersistEveryN)

	assert.Equal(t, 0.7, unifierConfig(cfg.Unify).SimilarityThreshold)
}

func TestNew_DefaultStack(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.NotNil(t, a.Classifier)
	assert.NotNil(t, a.Learner)
	assert.NotNil(t, a.Unifier)
	assert.NotNil(t, a.Filter)
	assert.Nil(t, a.Sink)
	assert.Equal(t, 1, a.Reference.Current().Version)

	result := a.Classifier.Classify(ctx, domain.RawProduct{Name: "אנטריקוט אנגוס", StoreName: "shufersal"})
	assert.Equal(t, "angus", result.Grade)

	require.NoError(t, a.Close(ctx))
	_, err = os.Stat(cfg.Learning.Path)
	assert.NoError(t, err, "close flushes the learning log")
}

func TestNew_ResumesLearningLog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	first.Classifier.Classify(ctx, domain.RawProduct{Name: "פילה בקר"})
	require.NoError(t, first.Close(ctx))

	second, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close(ctx)
	assert.Equal(t, 1, second.Learner.Stats().TotalProductsProcessed)
}

func TestNew_ReferenceFile(t *testing.T) {
	cfg := testConfig(t)
	tables, err := reference.Default()
	require.NoError(t, err)
	tables.Version = 7
	data, err := reference.Marshal(tables)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reference.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	cfg.Reference.Path = path

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close(context.Background())
	assert.Equal(t, 7, a.Reference.Current().Version)
}

func TestNew_Errors(t *testing.T) {
	t.Run("invalid reference file", func(t *testing.T) {
		cfg := testConfig(t)
		path := filepath.Join(t.TempDir(), "reference.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"grades":[]}`), 0o644))
		cfg.Reference.Path = path

		_, err := New(context.Background(), cfg, zerolog.Nop())
		assert.ErrorIs(t, err, domain.ErrInvalidReferenceData)
	})

	t.Run("unknown learning store", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Learning.Store = "etcd"

		_, err := New(context.Background(), cfg, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("corrupt learning log", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.WriteFile(cfg.Learning.Path, []byte(`{broken`), 0o644))

		_, err := New(context.Background(), cfg, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestNew_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Type = "none"
	cfg.Learning.Store = "memory"

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	result := a.Classifier.Classify(context.Background(), domain.RawProduct{Name: "כנפיים"})
	assert.Equal(t, "כנפיים", result.BaseCut)
}

func TestFeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Learning.Store = "memory"
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	_, err = a.Feed("", "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	cfg.Feed.URL = "https://feeds.example.com/victory.json"
	client, err := a.Feed("", "")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestWatchReference_Disabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Learning.Store = "memory"
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.NoError(t, a.WatchReference(context.Background()))
}
