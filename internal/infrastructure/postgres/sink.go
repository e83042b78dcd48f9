// Package postgres stores unified comparison rows in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/meatlens/backend/internal/domain"
)

// PoolConfig holds connection pool settings. Zero values take the defaults.
type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// Pool defaults
const (
	defaultMaxConns          = 10
	defaultMinConns          = 1
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = 30 * time.Minute
	defaultHealthCheckPeriod = time.Minute
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS unified_products (
  cycle_id               TEXT NOT NULL,
  id                     TEXT NOT NULL,
  name_hebrew            TEXT NOT NULL,
  name_english           TEXT,
  base_cut               TEXT NOT NULL,
  grade                  TEXT NOT NULL,
  category               TEXT NOT NULL,
  quality_tier           TEXT NOT NULL,
  network_prices         JSONB NOT NULL,
  best_price             DOUBLE PRECISION NOT NULL,
  worst_price            DOUBLE PRECISION NOT NULL,
  avg_price              DOUBLE PRECISION NOT NULL,
  matched_products_count INTEGER NOT NULL,
  confidence_score       DOUBLE PRECISION NOT NULL,
  availability           INTEGER NOT NULL,
  members                JSONB NOT NULL,
  updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (cycle_id, id)
);
CREATE INDEX IF NOT EXISTS idx_unified_cut_grade ON unified_products(base_cut, grade);
`

const upsertSQL = `
INSERT INTO unified_products (
  cycle_id, id, name_hebrew, name_english, base_cut, grade, category, quality_tier,
  network_prices, best_price, worst_price, avg_price, matched_products_count,
  confidence_score, availability, members, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16, now())
ON CONFLICT (cycle_id, id) DO UPDATE SET
  name_hebrew = EXCLUDED.name_hebrew,
  name_english = EXCLUDED.name_english,
  base_cut = EXCLUDED.base_cut,
  grade = EXCLUDED.grade,
  category = EXCLUDED.category,
  quality_tier = EXCLUDED.quality_tier,
  network_prices = EXCLUDED.network_prices,
  best_price = EXCLUDED.best_price,
  worst_price = EXCLUDED.worst_price,
  avg_price = EXCLUDED.avg_price,
  matched_products_count = EXCLUDED.matched_products_count,
  confidence_score = EXCLUDED.confidence_score,
  availability = EXCLUDED.availability,
  members = EXCLUDED.members,
  updated_at = now()`

// Sink writes unified products of a scan cycle in one transaction
type Sink struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ domain.UnifiedSink = (*Sink)(nil)

// NewPool parses databaseURL, applies config and verifies the connection
func NewPool(ctx context.Context, databaseURL string, config PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := parsePoolConfig(databaseURL, config)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func parsePoolConfig(databaseURL string, config PoolConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if config.MaxConns <= 0 {
		config.MaxConns = defaultMaxConns
	}
	if config.MinConns <= 0 {
		config.MinConns = defaultMinConns
	}
	if config.MaxConnLifetime <= 0 {
		config.MaxConnLifetime = defaultMaxConnLifetime
	}
	if config.MaxConnIdleTime <= 0 {
		config.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	if config.HealthCheckPeriod <= 0 {
		config.HealthCheckPeriod = defaultHealthCheckPeriod
	}

	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = config.HealthCheckPeriod
	return poolConfig, nil
}

// NewSink creates the table if it is missing
func NewSink(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) (*Sink, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create unified_products: %w", err)
	}
	return &Sink{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_sink").Logger(),
	}, nil
}

// SaveUnified upserts every product under cycleID. Either all rows land or none.
func (s *Sink) SaveUnified(ctx context.Context, cycleID string, products []domain.UnifiedProduct) error {
	if cycleID == "" {
		return fmt.Errorf("%w: cycle id is required", domain.ErrInvalidRequest)
	}
	if len(products) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(products))
	for _, p := range products {
		args, err := rowArgs(cycleID, p)
		if err != nil {
			return err
		}
		rows = append(rows, args)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, args := range rows {
			batch.Queue(upsertSQL, args...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("save unified products: %w", err)
	}

	s.logger.Info().Str("cycle", cycleID).Int("products", len(products)).Msg("unified products saved")
	return nil
}

func rowArgs(cycleID string, p domain.UnifiedProduct) ([]any, error) {
	prices := p.NetworkPrices
	if prices == nil {
		prices = map[string]float64{}
	}
	pricesJSON, err := json.Marshal(prices)
	if err != nil {
		return nil, fmt.Errorf("encode network prices for %s: %w", p.ID, err)
	}
	members := p.Members
	if members == nil {
		members = []domain.UnifiedMember{}
	}
	membersJSON, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("encode members for %s: %w", p.ID, err)
	}

	return []any{
		cycleID, p.ID, p.NameHebrew, p.NameEnglish, p.BaseCut, p.Grade, p.Category, p.QualityTier,
		pricesJSON, p.BestPrice, p.WorstPrice, p.AvgPrice, p.MatchedProductsCount,
		p.ConfidenceScore, p.Availability, membersJSON,
	}, nil
}
