package domain

import "time"

// Classification constants shared by classifiers and consumers
const (
	UnknownCut      = "unknown"
	OtherCategory   = "אחר"
	RegularGrade    = "regular"
	DefaultMinPrice = 50.0
	DefaultMaxPrice = 150.0
)

// ConfidenceTier is a discrete reporting bucket for a confidence value
type ConfidenceTier string

const (
	TierHigh    ConfidenceTier = "high"
	TierMedium  ConfidenceTier = "medium"
	TierLow     ConfidenceTier = "low"
	TierVeryLow ConfidenceTier = "very_low"
)

// GradeMatch is the output of the grade classifier
type GradeMatch struct {
	Grade           string   `json:"grade"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
}

// CutMatch is the output of the cut classifier
type CutMatch struct {
	CutID             string   `json:"cutId"`
	Category          string   `json:"category"`
	Confidence        float64  `json:"confidence"`
	MatchedKeywords   []string `json:"matchedKeywords,omitempty"`
	MatchedVariations []string `json:"matchedVariations,omitempty"`
}

// MatchedTermCount is the number of exact keyword and variation hits
func (m CutMatch) MatchedTermCount() int {
	return len(m.MatchedKeywords) + len(m.MatchedVariations)
}

// ClassificationMetadata records how a classification was reached
type ClassificationMetadata struct {
	GradeKeywords       []string  `json:"gradeKeywords,omitempty"`
	CutKeywords         []string  `json:"cutKeywords,omitempty"`
	CutVariations       []string  `json:"cutVariations,omitempty"`
	EstimatedPriceRange PriceBand `json:"estimatedPriceRange"`
	OriginalName        string    `json:"originalName"`
	NormalizedName      string    `json:"normalizedName"`
	ClassifiedAt        time.Time `json:"classifiedAt"`
	ReferenceVersion    int       `json:"referenceVersion"`
}

// ClassificationResult is the immutable outcome of classifying one RawProduct
type ClassificationResult struct {
	BaseCut            string                 `json:"baseCut"`
	Category           string                 `json:"category"`
	Grade              string                 `json:"grade"`
	FullClassification string                 `json:"fullClassification"`
	Confidence         float64                `json:"confidence"`
	ConfidenceTier     ConfidenceTier         `json:"confidenceTier"`
	Metadata           ClassificationMetadata `json:"metadata"`
}

// IsUnknown reports whether no cut could be identified
func (r ClassificationResult) IsUnknown() bool {
	return r.BaseCut == UnknownCut
}

// FullClassificationOf builds the display string: the cut alone for regular grade,
// otherwise "cut grade".
func FullClassificationOf(baseCut, grade string) string {
	if grade == "" || grade == RegularGrade {
		return baseCut
	}
	return baseCut + " " + grade
}

// FilterVerdictKind is the outcome of the strict domain filter
type FilterVerdictKind string

const (
	VerdictKeep   FilterVerdictKind = "keep"
	VerdictRemove FilterVerdictKind = "remove"
	VerdictReview FilterVerdictKind = "review"
)

// FilterVerdict explains why a product was kept, removed or sent to review
type FilterVerdict struct {
	Verdict      FilterVerdictKind `json:"verdict"`
	Reason       string            `json:"reason"`
	Score        int               `json:"score"`
	MatchedTerms []string          `json:"matchedTerms,omitempty"`
}
