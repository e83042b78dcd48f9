package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LearningStore persists the learning log between sessions.
// Load returns ErrStateNotFound when nothing has been saved yet.
type LearningStore interface {
	Load(ctx context.Context) (*LearningLogState, error)
	Save(ctx context.Context, state *LearningLogState) error
}

// ReportArchiver is implemented by learning stores that keep learning reports.
// Reports lists them newest first; an empty site lists every site.
type ReportArchiver interface {
	SaveReport(ctx context.Context, report LearningReport) error
	Reports(ctx context.Context, site string, limit int) ([]LearningReport, error)
}

// ReferenceProvider serves the current reference tables snapshot
type ReferenceProvider interface {
	Current() *ReferenceTables
}

// ReferenceMutator applies append-only admin changes to the live reference tables
type ReferenceMutator interface {
	ReferenceProvider
	Update(ctx context.Context, mutate func(t *ReferenceTables) (bool, error)) (bool, error)
}

// ClassificationRecorder receives every classification as a side-channel notification
type ClassificationRecorder interface {
	RecordClassification(ctx context.Context, product RawProduct, result ClassificationResult) error
}

// ProductFeed fetches raw scraped listings from an external source
type ProductFeed interface {
	FetchProducts(ctx context.Context) ([]RawProduct, error)
}

// UnifiedSink stores the unified comparison rows of one scan cycle
type UnifiedSink interface {
	SaveUnified(ctx context.Context, cycleID string, products []UnifiedProduct) error
}
