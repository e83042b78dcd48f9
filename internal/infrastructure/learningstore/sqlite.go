package learningstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meatlens/backend/internal/domain"
)

const stateRowID = 1

// SQLiteStore keeps the learning log as a single JSON row and each learning
// report as its own row
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ domain.LearningStore  = (*SQLiteStore)(nil)
	_ domain.ReportArchiver = (*SQLiteStore)(nil)
)

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS learning_state (
  id         INTEGER PRIMARY KEY CHECK (id = 1),
  state      TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS learning_reports (
  id           INTEGER PRIMARY KEY,
  site         TEXT NOT NULL,
  generated_at DATETIME NOT NULL,
  report       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_site ON learning_reports(site, generated_at);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the persisted state, returning ErrStateNotFound when none exists yet
func (s *SQLiteStore) Load(ctx context.Context) (*domain.LearningLogState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM learning_state WHERE id = ?", stateRowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query learning state: %w", err)
	}
	return decodeState([]byte(data))
}

// Save upserts the state row
func (s *SQLiteStore) Save(ctx context.Context, state *domain.LearningLogState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode learning log: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO learning_state(id, state, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
		stateRowID, string(data))
	if err != nil {
		return fmt.Errorf("save learning state: %w", err)
	}
	return nil
}

// SaveReport appends a report row
func (s *SQLiteStore) SaveReport(ctx context.Context, report domain.LearningReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode learning report: %w", err)
	}
	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO learning_reports(site, generated_at, report) VALUES(?, ?, ?)",
		report.Site, generated.UTC(), string(data))
	if err != nil {
		return fmt.Errorf("save learning report: %w", err)
	}
	return nil
}

// Reports returns the archived reports for site, newest first. An empty site lists all.
func (s *SQLiteStore) Reports(ctx context.Context, site string, limit int) ([]domain.LearningReport, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}
	query := "SELECT report FROM learning_reports ORDER BY generated_at DESC, id DESC LIMIT ?"
	args := []any{limit}
	if site != "" {
		query = "SELECT report FROM learning_reports WHERE site = ? ORDER BY generated_at DESC, id DESC LIMIT ?"
		args = []any{site, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query learning reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.LearningReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var report domain.LearningReport
		if err := json.Unmarshal([]byte(data), &report); err != nil {
			return nil, fmt.Errorf("decode learning report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
