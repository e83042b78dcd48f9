package usecase

import (
	"strings"

	"github.com/meatlens/backend/internal/domain"
)

// Cut scoring defaults
const (
	defaultCutKeywordWeight      = 0.3
	defaultCutVariationWeight    = 0.4
	defaultPartialVariationBonus = 0.2
	defaultPartialWordRatio      = 0.6 // share of variation words that must appear
)

// CutConfig holds the cut classifier weights. Values are used as given; start
// from DefaultCutConfig.
type CutConfig struct {
	KeywordWeight    float64
	VariationWeight  float64
	PartialBonus     float64
	PartialWordRatio float64
}

// DefaultCutConfig returns the standard cut weights
func DefaultCutConfig() CutConfig {
	return CutConfig{
		KeywordWeight:    defaultCutKeywordWeight,
		VariationWeight:  defaultCutVariationWeight,
		PartialBonus:     defaultPartialVariationBonus,
		PartialWordRatio: defaultPartialWordRatio,
	}
}

// CutClassifier picks the canonical base cut of a normalized product name
type CutClassifier struct {
	keywordWeight    float64
	variationWeight  float64
	partialBonus     float64
	partialWordRatio float64
}

// NewCutClassifier creates a cut classifier
func NewCutClassifier(config CutConfig) *CutClassifier {
	return &CutClassifier{
		keywordWeight:    config.KeywordWeight,
		variationWeight:  config.VariationWeight,
		partialBonus:     config.PartialBonus,
		partialWordRatio: config.PartialWordRatio,
	}
}

// Classify scores name against every cut, accumulating across the cut's grade
// variants. Ties keep the first declared cut.
func (c *CutClassifier) Classify(name string, tables *domain.ReferenceTables) domain.CutMatch {
	unknown := domain.CutMatch{CutID: domain.UnknownCut, Category: domain.OtherCategory}
	if name == "" {
		return unknown
	}

	words := strings.Fields(name)
	best := unknown
	for _, cut := range tables.Cuts {
		match := c.scoreCut(name, words, cut)
		if match.Confidence > best.Confidence {
			best = match
		}
	}
	return best
}

func (c *CutClassifier) scoreCut(name string, words []string, cut domain.CutDefinition) domain.CutMatch {
	match := domain.CutMatch{CutID: cut.ID, Category: cut.Category}
	seen := make(map[string]bool)
	partialSeen := make(map[string]bool)

	for _, variant := range cut.Variants {
		for _, kw := range variant.Keywords {
			if kw == "" || seen["k:"+kw] || !strings.Contains(name, kw) {
				continue
			}
			seen["k:"+kw] = true
			match.Confidence += c.keywordWeight
			match.MatchedKeywords = append(match.MatchedKeywords, kw)
		}

		for _, variation := range variant.Variations {
			if variation == "" || seen["v:"+variation] {
				continue
			}
			if strings.Contains(name, variation) {
				seen["v:"+variation] = true
				match.Confidence += c.variationWeight
				match.MatchedVariations = append(match.MatchedVariations, variation)
				continue
			}
			if !partialSeen[variation] && c.partialMatch(variation, words) {
				partialSeen[variation] = true
				match.Confidence += c.partialBonus
			}
		}
	}

	if match.Confidence > maxClassifierConfidence {
		match.Confidence = maxClassifierConfidence
	}
	return match
}

// partialMatch reports whether enough of the variation's words overlap the input
// words, comparing by substring in either direction
func (c *CutClassifier) partialMatch(variation string, words []string) bool {
	varWords := strings.Fields(variation)
	if len(varWords) == 0 || len(words) == 0 {
		return false
	}

	hits := 0
	for _, vw := range varWords {
		for _, w := range words {
			if strings.Contains(w, vw) || strings.Contains(vw, w) {
				hits++
				break
			}
		}
	}
	return float64(hits)/float64(len(varWords)) >= c.partialWordRatio
}
