// Package hebrew normalizes and tokenizes Hebrew/Latin product names and scores how
// much meat-domain signal a piece of text carries.
package hebrew

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Hebrew Unicode block
const (
	hebrewBlockStart = '\u0590'
	hebrewBlockEnd   = '\u05FF'
)

// Quality scoring weights (max 100)
const (
	dominanceWeight = 40.0
	termWeight      = 15.0
	meatTermsCap    = 30.0
	qualityTermsCap = 30.0
	maxQualityScore = 100.0
)

// tokenPunctuation is trimmed from both ends of a token. Inner quotes are kept so
// abbreviations like ק"ג survive.
const tokenPunctuation = ".,;:!?()[]{}<>\"'`״׳-–—/\\|*+"

// Processor extracts domain terms using a fixed reference vocabulary
type Processor struct {
	meatTerms    []string
	qualityTerms []string
}

// NewProcessor creates a processor. meatTerms is the reference list for
// ExtractMeatTerms; qualityTerms are quality and kosher adjectives.
func NewProcessor(meatTerms, qualityTerms []string) *Processor {
	return &Processor{
		meatTerms:    normalizeAll(meatTerms),
		qualityTerms: normalizeAll(qualityTerms),
	}
}

// Normalize trims, collapses whitespace runs and lowercases Latin letters.
// Hebrew characters are left unchanged.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = norm.NFC.String(text)
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = lowerLatin(f)
	}
	return strings.Join(fields, " ")
}

// Tokenize normalizes text and splits it into punctuation-trimmed words
func Tokenize(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	words := strings.Fields(normalized)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, tokenPunctuation)
		if w != "" {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// Normalize is the method form of the package-level Normalize
func (p *Processor) Normalize(text string) string {
	return Normalize(text)
}

// HasHebrewText reports whether any rune is in the Hebrew block
func (p *Processor) HasHebrewText(text string) bool {
	for _, r := range text {
		if isHebrew(r) {
			return true
		}
	}
	return false
}

// IsHebrewDominant reports whether Hebrew runes outnumber Latin letters
func (p *Processor) IsHebrewDominant(text string) bool {
	hebrewCount, latinCount := countScripts(text)
	return hebrewCount > latinCount
}

// ExtractHebrewWords returns whitespace tokens containing at least one Hebrew rune
func (p *Processor) ExtractHebrewWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		if p.HasHebrewText(w) {
			words = append(words, w)
		}
	}
	return words
}

// ExtractMeatTerms returns the reference terms found in text, ordered by first
// occurrence, without duplicates.
func (p *Processor) ExtractMeatTerms(text string) []string {
	return findTerms(Normalize(text), p.meatTerms)
}

// CalculateHebrewQuality scores text 0..100 from Hebrew dominance, meat-domain terms
// and quality indicator terms.
func (p *Processor) CalculateHebrewQuality(text string) float64 {
	normalized := Normalize(text)
	if normalized == "" {
		return 0
	}

	score := 0.0
	hebrewCount, latinCount := countScripts(normalized)
	if hebrewCount > latinCount {
		score += dominanceWeight
	} else if total := hebrewCount + latinCount; total > 0 {
		score += dominanceWeight * float64(hebrewCount) / float64(total)
	}

	meat := len(findTerms(normalized, p.meatTerms))
	score += minFloat(float64(meat)*termWeight, meatTermsCap)

	quality := len(findTerms(normalized, p.qualityTerms))
	score += minFloat(float64(quality)*termWeight, qualityTermsCap)

	return minFloat(score, maxQualityScore)
}

// findTerms returns terms that occur as substrings of text ordered by position.
// Equal positions keep reference order.
func findTerms(text string, terms []string) []string {
	if text == "" || len(terms) == 0 {
		return nil
	}

	type hit struct {
		term string
		pos  int
	}
	var hits []hit
	seen := make(map[string]bool)
	for _, term := range terms {
		if term == "" || seen[term] {
			continue
		}
		if idx := strings.Index(text, term); idx >= 0 {
			hits = append(hits, hit{term: term, pos: idx})
			seen[term] = true
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.term
	}
	return out
}

func countScripts(text string) (hebrewCount, latinCount int) {
	for _, r := range text {
		switch {
		case isHebrew(r):
			hebrewCount++
		case unicode.IsLetter(r) && unicode.Is(unicode.Latin, r):
			latinCount++
		}
	}
	return hebrewCount, latinCount
}

func isHebrew(r rune) bool {
	return r >= hebrewBlockStart && r <= hebrewBlockEnd
}

func lowerLatin(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Latin, r) {
			return unicode.ToLower(r)
		}
		return r
	}, s)
}

func normalizeAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
