package usecase

import (
	"fmt"
	"strings"

	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/hebrew"
)

// Filter defaults
const (
	defaultCutTermWeight        = 10
	defaultSpeciesTermWeight    = 5
	defaultProcessingTermWeight = 3
	defaultKeepThreshold        = 15
	defaultFilterReviewScore    = 8
)

// FilterConfig holds the strict filter weights and cutoffs. Values are used as
// given; start from DefaultFilterConfig.
type FilterConfig struct {
	CutWeight        int
	SpeciesWeight    int
	ProcessingWeight int
	KeepThreshold    int
	ReviewThreshold  int
}

// DefaultFilterConfig returns the standard weights and cutoffs
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		CutWeight:        defaultCutTermWeight,
		SpeciesWeight:    defaultSpeciesTermWeight,
		ProcessingWeight: defaultProcessingTermWeight,
		KeepThreshold:    defaultKeepThreshold,
		ReviewThreshold:  defaultFilterReviewScore,
	}
}

// FilterBatchResult holds per-product verdicts in input order plus totals
type FilterBatchResult struct {
	Verdicts []domain.FilterVerdict `json:"verdicts"`
	Kept     int                    `json:"kept"`
	Review   int                    `json:"review"`
	Removed  int                    `json:"removed"`
}

// DomainFilter is a coarse keep/review/remove gate for bulk data cleanup. It is
// independent of the classifiers and shares only the domain vocabulary.
type DomainFilter struct {
	reference domain.ReferenceProvider
	config    FilterConfig
}

// NewDomainFilter creates a filter over the reference domain terms
func NewDomainFilter(reference domain.ReferenceProvider, config FilterConfig) *DomainFilter {
	return &DomainFilter{reference: reference, config: config}
}

// Evaluate checks the deny list first, then scores the allow-list terms found in
// the product's name and category
func (f *DomainFilter) Evaluate(product domain.RawProduct) domain.FilterVerdict {
	terms := f.reference.Current().DomainTerms
	text := hebrew.Normalize(product.Name + " " + product.Category)

	for _, deny := range terms.Deny {
		if deny != "" && strings.Contains(text, deny) {
			return domain.FilterVerdict{
				Verdict:      domain.VerdictRemove,
				Reason:       fmt.Sprintf("non-meat term %q", deny),
				MatchedTerms: []string{deny},
			}
		}
	}

	score := 0
	var matched []string
	tiers := []struct {
		terms  []string
		weight int
	}{
		{terms.Cuts, f.config.CutWeight},
		{terms.Species, f.config.SpeciesWeight},
		{terms.Processing, f.config.ProcessingWeight},
	}
	for _, tier := range tiers {
		for _, term := range tier.terms {
			if term != "" && strings.Contains(text, term) {
				score += tier.weight
				matched = append(matched, term)
			}
		}
	}

	verdict := domain.FilterVerdict{Score: score, MatchedTerms: matched}
	switch {
	case score >= f.config.KeepThreshold:
		verdict.Verdict = domain.VerdictKeep
		verdict.Reason = fmt.Sprintf("domain score %d meets keep threshold %d", score, f.config.KeepThreshold)
	case score >= f.config.ReviewThreshold:
		verdict.Verdict = domain.VerdictReview
		verdict.Reason = fmt.Sprintf("domain score %d below keep threshold %d", score, f.config.KeepThreshold)
	default:
		verdict.Verdict = domain.VerdictRemove
		verdict.Reason = fmt.Sprintf("domain score %d below review threshold %d", score, f.config.ReviewThreshold)
	}
	return verdict
}

// EvaluateBatch evaluates every product in order
func (f *DomainFilter) EvaluateBatch(products []domain.RawProduct) FilterBatchResult {
	result := FilterBatchResult{Verdicts: make([]domain.FilterVerdict, 0, len(products))}
	for _, p := range products {
		v := f.Evaluate(p)
		result.Verdicts = append(result.Verdicts, v)
		switch v.Verdict {
		case domain.VerdictKeep:
			result.Kept++
		case domain.VerdictReview:
			result.Review++
		default:
			result.Removed++
		}
	}
	return result
}
