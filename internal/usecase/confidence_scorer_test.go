package usecase

import (
	"testing"

	"github.com/meatlens/backend/internal/domain"
)

func TestConfidenceScorer_Score(t *testing.T) {
	scorer := NewConfidenceScorer(DefaultScoringConfig())

	tests := []struct {
		name     string
		input    string
		cut      domain.CutMatch
		grade    domain.GradeMatch
		expected float64
	}{
		{
			name:     "matched cut and grade",
			input:    "אנטריקוט אנגוס",
			cut:      domain.CutMatch{Confidence: 0.8, MatchedKeywords: []string{"אנטריקוט", "אנטריקוט אנגוס"}},
			grade:    domain.GradeMatch{Confidence: 0.55, MatchedKeywords: []string{"אנגוס"}},
			expected: 0.71,
		},
		{
			name:     "nothing matched",
			input:    "משהו",
			cut:      domain.CutMatch{},
			grade:    domain.GradeMatch{Confidence: 0.6},
			expected: 0.41,
		},
		{
			name:     "length bonus is capped",
			input:    "a b c d e f g h i j k l",
			cut:      domain.CutMatch{},
			grade:    domain.GradeMatch{Confidence: 0.6},
			expected: 0.43,
		},
		{
			name:     "negative grade confidence lowers the average",
			input:    "",
			cut:      domain.CutMatch{},
			grade:    domain.GradeMatch{Confidence: -0.1},
			expected: 0.17,
		},
		{
			name:  "clamped to one",
			input: "a b c d e",
			cut: domain.CutMatch{
				Confidence:      1,
				MatchedKeywords: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
			},
			grade:    domain.GradeMatch{Confidence: 1, MatchedKeywords: []string{"a"}},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.input, tt.cut, tt.grade)
			if got != tt.expected {
				t.Errorf("Score = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfidenceScorer_Tier(t *testing.T) {
	scorer := NewConfidenceScorer(DefaultScoringConfig())

	tests := []struct {
		confidence float64
		expected   domain.ConfidenceTier
	}{
		{1, domain.TierHigh},
		{0.8, domain.TierHigh},
		{0.79, domain.TierMedium},
		{0.6, domain.TierMedium},
		{0.59, domain.TierLow},
		{0.3, domain.TierLow},
		{0.29, domain.TierVeryLow},
		{0, domain.TierVeryLow},
	}

	for _, tt := range tests {
		if got := scorer.Tier(tt.confidence); got != tt.expected {
			t.Errorf("Tier(%v) = %v, want %v", tt.confidence, got, tt.expected)
		}
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(-0.5) != 0 || clamp01(1.5) != 1 || clamp01(0.42) != 0.42 {
		t.Error("clamp01 out of range handling is wrong")
	}
}
