// Package learningstore persists the auto-learner's log between sessions.
package learningstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/meatlens/backend/internal/domain"
)

const (
	defaultStateFile = "learning_log.json"
	reportTimeLayout = "20060102T150405Z"
)

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// FileStore keeps the learning log as one JSON document and archives each
// learning report next to it
type FileStore struct {
	path      string
	reportDir string
}

var (
	_ domain.LearningStore  = (*FileStore)(nil)
	_ domain.ReportArchiver = (*FileStore)(nil)
)

// NewFileStore creates a store writing to path. Reports go to reportDir, or the
// directory of path when reportDir is empty.
func NewFileStore(path, reportDir string) *FileStore {
	if path == "" {
		path = defaultStateFile
	}
	if reportDir == "" {
		reportDir = filepath.Dir(path)
	}
	return &FileStore{path: path, reportDir: reportDir}
}

// Load reads the persisted state, returning ErrStateNotFound when none exists yet
func (s *FileStore) Load(ctx context.Context) (*domain.LearningLogState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read learning log: %w", err)
	}
	return decodeState(data)
}

// Save replaces the persisted state atomically
func (s *FileStore) Save(ctx context.Context, state *domain.LearningLogState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode learning log: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// SaveReport writes learning_report_<site>_<timestamp>.json into the report directory
func (s *FileStore) SaveReport(ctx context.Context, report domain.LearningReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode learning report: %w", err)
	}
	if err := os.MkdirAll(s.reportDir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.reportDir, reportFileName(report)), data)
}

// Reports reads the archived report files for site, newest first. An empty site lists all.
func (s *FileStore) Reports(ctx context.Context, site string, limit int) ([]domain.LearningReport, error) {
	paths, err := filepath.Glob(filepath.Join(s.reportDir, "learning_report_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list learning reports: %w", err)
	}

	reports := make([]domain.LearningReport, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read learning report: %w", err)
		}
		var report domain.LearningReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		reports = append(reports, report)
	}
	return newestReports(reports, site, limit), nil
}

func reportFileName(report domain.LearningReport) string {
	site := unsafeFileChars.ReplaceAllString(report.Site, "_")
	if site == "" {
		site = "all"
	}
	ts := report.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("learning_report_%s_%s.json", site, ts.UTC().Format(reportTimeLayout))
}

func decodeState(data []byte) (*domain.LearningLogState, error) {
	state := domain.NewLearningLogState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode learning log: %w", err)
	}
	state.EnsureInitialized()
	return state, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
