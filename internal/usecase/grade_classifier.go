package usecase

import (
	"strings"

	"github.com/meatlens/backend/internal/domain"
)

// Grade scoring defaults
const (
	defaultPrimaryKeywordWeight   = 0.4 // per distinct primary keyword hit
	defaultSecondaryKeywordWeight = 0.2 // per distinct secondary keyword hit
	defaultRegularConfidence      = 0.6 // prior when no grade keyword matches
	defaultNegativePenalty        = 0.1 // promotional noise in the name
	maxClassifierConfidence       = 1.0
)

// GradeConfig holds the grade classifier weights. Values are used as given,
// so zero disables a term; start from DefaultGradeConfig.
type GradeConfig struct {
	PrimaryWeight     float64
	SecondaryWeight   float64
	DefaultConfidence float64
	NegativePenalty   float64
}

// DefaultGradeConfig returns the standard grade weights
func DefaultGradeConfig() GradeConfig {
	return GradeConfig{
		PrimaryWeight:     defaultPrimaryKeywordWeight,
		SecondaryWeight:   defaultSecondaryKeywordWeight,
		DefaultConfidence: defaultRegularConfidence,
		NegativePenalty:   defaultNegativePenalty,
	}
}

// GradeClassifier picks the quality grade of a normalized product name
type GradeClassifier struct {
	primaryWeight     float64
	secondaryWeight   float64
	defaultConfidence float64
	negativePenalty   float64
}

// NewGradeClassifier creates a grade classifier
func NewGradeClassifier(config GradeConfig) *GradeClassifier {
	return &GradeClassifier{
		primaryWeight:     config.PrimaryWeight,
		secondaryWeight:   config.SecondaryWeight,
		defaultConfidence: config.DefaultConfidence,
		negativePenalty:   config.NegativePenalty,
	}
}

// Classify scores name against every grade in declaration order. The first grade
// with the highest score wins. The result confidence may be negative after the
// negative-indicator penalty; callers clamp.
func (c *GradeClassifier) Classify(name string, tables *domain.ReferenceTables) domain.GradeMatch {
	best := domain.GradeMatch{Grade: domain.RegularGrade}
	bestScore := 0.0

	if name != "" {
		for _, grade := range tables.Grades {
			score, matched := c.scoreGrade(name, grade)
			if score > bestScore {
				bestScore = score
				best = domain.GradeMatch{Grade: grade.ID, Confidence: score, MatchedKeywords: matched}
			}
		}
	}

	if bestScore <= 0 {
		best = domain.GradeMatch{Grade: domain.RegularGrade, Confidence: c.defaultConfidence}
	}

	if containsAny(name, tables.NegativeIndicators) {
		best.Confidence -= c.negativePenalty
	}

	return best
}

func (c *GradeClassifier) scoreGrade(name string, grade domain.GradeDefinition) (float64, []string) {
	var score float64
	var matched []string

	for _, kw := range grade.PrimaryKeywords {
		if kw != "" && strings.Contains(name, kw) {
			score += c.primaryWeight
			matched = append(matched, kw)
		}
	}
	for _, kw := range grade.SecondaryKeywords {
		if kw != "" && strings.Contains(name, kw) {
			score += c.secondaryWeight
			matched = append(matched, kw)
		}
	}

	if len(matched) > 0 {
		score += grade.ConfidenceBoost
	}
	if score > maxClassifierConfidence {
		score = maxClassifierConfidence
	}
	return score, matched
}

func containsAny(text string, terms []string) bool {
	if text == "" {
		return false
	}
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}
