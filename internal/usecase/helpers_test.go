package usecase

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/reference"
)

func defaultTables(t *testing.T) *domain.ReferenceTables {
	t.Helper()
	tables, err := reference.Default()
	if err != nil {
		t.Fatalf("load default reference: %v", err)
	}
	return tables
}

func learnerConfigWith(edit func(c *LearnerConfig)) LearnerConfig {
	config := DefaultLearnerConfig()
	edit(&config)
	return config
}

func newReferenceStore(t *testing.T) *reference.Store {
	t.Helper()
	return reference.NewStore(defaultTables(t), "", zerolog.Nop())
}

func classified(name, retailer, cut, grade string, price, confidence float64) domain.ClassifiedProduct {
	return domain.ClassifiedProduct{
		Product: domain.RawProduct{Name: name, StoreName: retailer, Price: price},
		Result: domain.ClassificationResult{
			BaseCut:    cut,
			Grade:      grade,
			Category:   "בקר",
			Confidence: confidence,
		},
	}
}
