package usecase

import (
	"math"
	"strings"

	"github.com/meatlens/backend/internal/domain"
)

// Confidence scoring defaults
const (
	defaultBaseConfidence     = 0.6
	defaultCutKeywordBonus    = 0.05
	defaultGradeKeywordBonus  = 0.03
	defaultLengthBonusPerWord = 0.02
	defaultMaxLengthBonus     = 0.1
	defaultHighTierFloor      = 0.8
	defaultMediumTierFloor    = 0.6
	defaultLowTierFloor       = 0.3
)

// ScoringConfig holds the confidence combination parameters. Values are used as
// given; start from DefaultScoringConfig.
type ScoringConfig struct {
	BaseConfidence     float64
	CutKeywordBonus    float64
	GradeKeywordBonus  float64
	LengthBonusPerWord float64
	MaxLengthBonus     float64
	HighTierFloor      float64
	MediumTierFloor    float64
	LowTierFloor       float64
}

// DefaultScoringConfig returns the standard scoring parameters
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseConfidence:     defaultBaseConfidence,
		CutKeywordBonus:    defaultCutKeywordBonus,
		GradeKeywordBonus:  defaultGradeKeywordBonus,
		LengthBonusPerWord: defaultLengthBonusPerWord,
		MaxLengthBonus:     defaultMaxLengthBonus,
		HighTierFloor:      defaultHighTierFloor,
		MediumTierFloor:    defaultMediumTierFloor,
		LowTierFloor:       defaultLowTierFloor,
	}
}

// ConfidenceScorer combines the cut and grade sub-scores into one confidence value
type ConfidenceScorer struct {
	config ScoringConfig
}

// NewConfidenceScorer creates a scorer
func NewConfidenceScorer(config ScoringConfig) *ConfidenceScorer {
	return &ConfidenceScorer{config: config}
}

// Score returns the average of the heuristic accumulator, the cut confidence and
// the grade confidence, clamped to [0,1] and rounded to two decimals
func (s *ConfidenceScorer) Score(name string, cut domain.CutMatch, grade domain.GradeMatch) float64 {
	accumulated := s.config.BaseConfidence
	accumulated += float64(cut.MatchedTermCount()) * s.config.CutKeywordBonus
	accumulated += float64(len(grade.MatchedKeywords)) * s.config.GradeKeywordBonus

	wordCount := len(strings.Fields(name))
	accumulated += math.Min(float64(wordCount)*s.config.LengthBonusPerWord, s.config.MaxLengthBonus)

	final := (accumulated + cut.Confidence + grade.Confidence) / 3
	return roundConfidence(clamp01(final))
}

// Tier buckets a confidence value: high >= 0.8, medium >= 0.6, low >= 0.3,
// very_low below that (with default floors)
func (s *ConfidenceScorer) Tier(confidence float64) domain.ConfidenceTier {
	switch {
	case confidence >= s.config.HighTierFloor:
		return domain.TierHigh
	case confidence >= s.config.MediumTierFloor:
		return domain.TierMedium
	case confidence >= s.config.LowTierFloor:
		return domain.TierLow
	default:
		return domain.TierVeryLow
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func roundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}
