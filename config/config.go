package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Log            LogConfig            `mapstructure:"log"`
	Reference      ReferenceConfig      `mapstructure:"reference"`
	Classification ClassificationConfig `mapstructure:"classification"`
	Learning       LearningConfig       `mapstructure:"learning"`
	Unify          UnifyConfig          `mapstructure:"unify"`
	Filter         FilterConfig         `mapstructure:"filter"`
	Cache          CacheConfig          `mapstructure:"cache"`
	RateLimit      RateLimitConfig      `mapstructure:"ratelimit"`
	Feed           FeedConfig           `mapstructure:"feed"`
	Sink           SinkConfig           `mapstructure:"sink"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console", "json" or empty for auto
}

// ReferenceConfig locates the grade/cut tables. An empty path uses the built-in tables.
type ReferenceConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// ClassificationConfig holds the scoring constants of the classifiers
type ClassificationConfig struct {
	PrimaryWeight          float64 `mapstructure:"primary_weight"`
	SecondaryWeight        float64 `mapstructure:"secondary_weight"`
	DefaultGradeConfidence float64 `mapstructure:"default_grade_confidence"`
	NegativePenalty        float64 `mapstructure:"negative_penalty"`
	KeywordWeight          float64 `mapstructure:"keyword_weight"`
	VariationWeight        float64 `mapstructure:"variation_weight"`
	PartialBonus           float64 `mapstructure:"partial_bonus"`
	PartialWordRatio       float64 `mapstructure:"partial_word_ratio"`
	BaseConfidence         float64 `mapstructure:"base_confidence"`
	CutKeywordBonus        float64 `mapstructure:"cut_keyword_bonus"`
	GradeKeywordBonus      float64 `mapstructure:"grade_keyword_bonus"`
	LengthBonusPerWord     float64 `mapstructure:"length_bonus_per_word"`
	MaxLengthBonus         float64 `mapstructure:"max_length_bonus"`
	Workers                int     `mapstructure:"workers"`
}

// LearningConfig holds auto-learner thresholds and persistence settings
type LearningConfig struct {
	Store             string  `mapstructure:"store"` // "file", "sqlite" or "memory"
	Path              string  `mapstructure:"path"`
	ReportDir         string  `mapstructure:"report_dir"`
	LearningThreshold float64 `mapstructure:"learning_threshold"`
	ReviewThreshold   float64 `mapstructure:"review_threshold"`
	MinFrequency      int     `mapstructure:"min_frequency"`
	MinAvgConfidence  float64 `mapstructure:"min_avg_confidence"`
	PersistEvery      int     `mapstructure:"persist_every"`
	MaxSamples        int     `mapstructure:"max_samples"`
}

// UnifyConfig holds cross-retailer grouping configuration
type UnifyConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// FilterConfig holds strict domain filter thresholds
type FilterConfig struct {
	CutWeight        int `mapstructure:"cut_weight"`
	SpeciesWeight    int `mapstructure:"species_weight"`
	ProcessingWeight int `mapstructure:"processing_weight"`
	HighThreshold    int `mapstructure:"high_threshold"`
	MidThreshold     int `mapstructure:"mid_threshold"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type      string        `mapstructure:"type"` // "memory", "redis" or "none"
	RedisURL  string        `mapstructure:"redis_url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// FeedConfig locates the scraper feed ingested by the CLI
type FeedConfig struct {
	URL               string  `mapstructure:"url"`
	RecordsPath       string  `mapstructure:"records_path"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Source            string  `mapstructure:"source"`
}

// SinkConfig holds the optional PostgreSQL sink for unified products
type SinkConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// Load reads .env, then config.yaml from the standard search paths, then MEATLENS_* variables
func Load() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}
	return LoadFrom("")
}

// LoadFrom reads configuration from path, or searches the standard paths when path is empty
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/meatlens/")
	}

	v.SetEnvPrefix("MEATLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports variables from a dotenv file without overriding ones already set
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error reading %s: %w", path, err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	v.SetDefault("reference.path", "")
	v.SetDefault("reference.watch", false)

	// Classification defaults
	v.SetDefault("classification.primary_weight", 0.4)
	v.SetDefault("classification.secondary_weight", 0.2)
	v.SetDefault("classification.default_grade_confidence", 0.6)
	v.SetDefault("classification.negative_penalty", 0.1)
	v.SetDefault("classification.keyword_weight", 0.3)
	v.SetDefault("classification.variation_weight", 0.4)
	v.SetDefault("classification.partial_bonus", 0.2)
	v.SetDefault("classification.partial_word_ratio", 0.6)
	v.SetDefault("classification.base_confidence", 0.6)
	v.SetDefault("classification.cut_keyword_bonus", 0.05)
	v.SetDefault("classification.grade_keyword_bonus", 0.03)
	v.SetDefault("classification.length_bonus_per_word", 0.02)
	v.SetDefault("classification.max_length_bonus", 0.1)
	v.SetDefault("classification.workers", 4)

	// Learning defaults
	v.SetDefault("learning.store", "file")
	v.SetDefault("learning.path", "data/learning_log.json")
	v.SetDefault("learning.report_dir", "data/reports")
	v.SetDefault("learning.learning_threshold", 0.8)
	v.SetDefault("learning.review_threshold", 0.6)
	v.SetDefault("learning.min_frequency", 3)
	v.SetDefault("learning.min_avg_confidence", 0.8)
	v.SetDefault("learning.persist_every", 10)
	v.SetDefault("learning.max_samples", 5)

	v.SetDefault("unify.similarity_threshold", 0.7)

	v.SetDefault("filter.cut_weight", 10)
	v.SetDefault("filter.species_weight", 5)
	v.SetDefault("filter.processing_weight", 3)
	v.SetDefault("filter.high_threshold", 15)
	v.SetDefault("filter.mid_threshold", 8)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "meatlens:")
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("ratelimit.per_ip", 100)

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.records_path", "")
	v.SetDefault("feed.requests_per_second", 2.0)
	v.SetDefault("feed.source", "primary")

	v.SetDefault("sink.database_url", "")
	v.SetDefault("sink.max_conns", 10)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Cache.Type {
	case "memory", "none":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'none', got: %s", config.Cache.Type)
	}

	switch config.Learning.Store {
	case "file", "sqlite":
		if config.Learning.Path == "" {
			return fmt.Errorf("learning path is required for the %s store", config.Learning.Store)
		}
	case "memory":
	default:
		return fmt.Errorf("learning store must be 'file', 'sqlite' or 'memory', got: %s", config.Learning.Store)
	}

	switch config.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format must be 'console' or 'json', got: %s", config.Log.Format)
	}

	switch config.Feed.Source {
	case "primary", "secondary":
	default:
		return fmt.Errorf("feed source must be 'primary' or 'secondary', got: %s", config.Feed.Source)
	}

	for name, value := range map[string]float64{
		"learning.learning_threshold":    config.Learning.LearningThreshold,
		"learning.review_threshold":      config.Learning.ReviewThreshold,
		"learning.min_avg_confidence":    config.Learning.MinAvgConfidence,
		"unify.similarity_threshold":     config.Unify.SimilarityThreshold,
		"classification.base_confidence": config.Classification.BaseConfidence,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be within [0, 1], got: %v", name, value)
		}
	}

	if config.Learning.ReviewThreshold > config.Learning.LearningThreshold {
		return fmt.Errorf("learning.review_threshold must not exceed learning.learning_threshold")
	}

	if config.Filter.MidThreshold <= 0 || config.Filter.HighThreshold <= config.Filter.MidThreshold {
		return fmt.Errorf("filter thresholds must satisfy 0 < mid < high, got mid=%d high=%d",
			config.Filter.MidThreshold, config.Filter.HighThreshold)
	}

	for name, value := range map[string]float64{
		"classification.primary_weight":        config.Classification.PrimaryWeight,
		"classification.secondary_weight":      config.Classification.SecondaryWeight,
		"classification.negative_penalty":      config.Classification.NegativePenalty,
		"classification.keyword_weight":        config.Classification.KeywordWeight,
		"classification.variation_weight":      config.Classification.VariationWeight,
		"classification.partial_bonus":         config.Classification.PartialBonus,
		"classification.cut_keyword_bonus":     config.Classification.CutKeywordBonus,
		"classification.grade_keyword_bonus":   config.Classification.GradeKeywordBonus,
		"classification.length_bonus_per_word": config.Classification.LengthBonusPerWord,
		"classification.max_length_bonus":      config.Classification.MaxLengthBonus,
		"filter.cut_weight":                    float64(config.Filter.CutWeight),
		"filter.species_weight":                float64(config.Filter.SpeciesWeight),
		"filter.processing_weight":             float64(config.Filter.ProcessingWeight),
		"learning.min_frequency":               float64(config.Learning.MinFrequency),
		"learning.max_samples":                 float64(config.Learning.MaxSamples),
		"learning.persist_every":               float64(config.Learning.PersistEvery),
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative, got: %v", name, value)
		}
	}

	if config.Classification.Workers < 1 {
		return fmt.Errorf("classification.workers must be at least 1, got: %d", config.Classification.Workers)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("ratelimit.per_ip must not be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
