package reference

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meatlens/backend/internal/domain"
)

// Store holds the live reference tables. Readers get an immutable snapshot;
// writers clone, mutate and swap.
type Store struct {
	mu          sync.RWMutex
	tables      *domain.ReferenceTables
	path        string
	lastWritten []byte
	logger      zerolog.Logger
}

// NewStore creates a store serving tables. When path is set, accepted updates are
// written back to it.
func NewStore(tables *domain.ReferenceTables, path string, logger zerolog.Logger) *Store {
	return &Store{
		tables: tables,
		path:   path,
		logger: logger.With().Str("component", "reference").Logger(),
	}
}

// Current returns the active snapshot. Callers must not modify it.
func (s *Store) Current() *domain.ReferenceTables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables
}

// Path returns the backing file, empty for embedded tables
func (s *Store) Path() string {
	return s.path
}

// Update applies mutate to a copy of the current tables. When mutate reports a
// change, the copy is validated, persisted if the store is file backed, and
// becomes the new snapshot with a bumped version.
func (s *Store) Update(ctx context.Context, mutate func(t *domain.ReferenceTables) (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.tables.Clone()
	changed, err := mutate(next)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	next.Version = s.tables.Version + 1
	if err := Validate(next); err != nil {
		return false, err
	}

	if s.path != "" {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := s.writeLocked(next); err != nil {
			return false, err
		}
	}

	s.tables = next
	s.logger.Info().Int("version", next.Version).Msg("reference tables updated")
	return true, nil
}

// Replace swaps in externally loaded tables. The version never moves backwards.
func (s *Store) Replace(tables *domain.ReferenceTables) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tables.Version <= s.tables.Version {
		tables.Version = s.tables.Version + 1
	}
	s.tables = tables
	s.logger.Info().Int("version", tables.Version).Msg("reference tables replaced")
}

// Reload re-reads the backing file. Content identical to the store's own last
// write is ignored.
func (s *Store) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidReferenceData, s.path, err)
	}

	s.mu.RLock()
	own := bytes.Equal(data, s.lastWritten)
	s.mu.RUnlock()
	if own {
		return false, nil
	}

	tables, err := Parse(data)
	if err != nil {
		return false, err
	}
	s.Replace(tables)
	return true, nil
}

func (s *Store) writeLocked(t *domain.ReferenceTables) error {
	data, err := Marshal(t)
	if err != nil {
		return fmt.Errorf("encode reference tables: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write reference tables: %w", err)
	}
	s.lastWritten = data
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
