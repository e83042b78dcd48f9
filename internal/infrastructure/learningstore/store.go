package learningstore

import (
	"fmt"
	"io"

	"github.com/meatlens/backend/internal/domain"
)

// Store kinds accepted by Open
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Options selects and locates a learning store
type Options struct {
	Kind      string
	Path      string
	ReportDir string
}

// Open builds the store named by opts.Kind. The returned closer releases any
// underlying resources and is never nil.
func Open(opts Options) (domain.LearningStore, io.Closer, error) {
	switch opts.Kind {
	case "", KindFile:
		return NewFileStore(opts.Path, opts.ReportDir), nopCloser{}, nil
	case KindSQLite:
		path := opts.Path
		if path == "" {
			path = "learning.db"
		}
		store, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case KindMemory:
		return NewMemoryStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown learning store kind %q", opts.Kind)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
