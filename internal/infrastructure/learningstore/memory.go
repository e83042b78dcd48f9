package learningstore

import (
	"context"
	"sync"

	"github.com/meatlens/backend/internal/domain"
)

// MemoryStore keeps the learning log for the lifetime of the process only
type MemoryStore struct {
	mu      sync.Mutex
	state   *domain.LearningLogState
	reports []domain.LearningReport
}

var (
	_ domain.LearningStore  = (*MemoryStore)(nil)
	_ domain.ReportArchiver = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the last saved state
func (s *MemoryStore) Load(ctx context.Context) (*domain.LearningLogState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil, domain.ErrStateNotFound
	}
	return s.state.Clone(), nil
}

// Save stores a copy of state
func (s *MemoryStore) Save(ctx context.Context, state *domain.LearningLogState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state.Clone()
	return nil
}

// SaveReport appends report
func (s *MemoryStore) SaveReport(ctx context.Context, report domain.LearningReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, report)
	return nil
}

// Reports returns the archived reports for site, newest first. An empty site lists all.
func (s *MemoryStore) Reports(ctx context.Context, site string, limit int) ([]domain.LearningReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return newestReports(s.reports, site, limit), nil
}
