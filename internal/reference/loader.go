// Package reference loads, validates and serves the grade and cut reference tables.
package reference

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/hebrew"
)

//go:embed default_reference.json
var defaultReference []byte

// Default returns the tables compiled into the binary
func Default() (*domain.ReferenceTables, error) {
	return Parse(defaultReference)
}

// LoadFile reads and validates tables from a JSON file
func LoadFile(path string) (*domain.ReferenceTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidReferenceData, path, err)
	}
	return Parse(data)
}

// Load returns the tables at path, or the embedded defaults when path is empty
func Load(path string) (*domain.ReferenceTables, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse decodes, normalizes and validates reference JSON
func Parse(data []byte) (*domain.ReferenceTables, error) {
	var tables domain.ReferenceTables
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidReferenceData, err)
	}

	normalizeTables(&tables)

	if err := Validate(&tables); err != nil {
		return nil, err
	}
	return &tables, nil
}

// Validate checks the structural rules every table set must satisfy
func Validate(t *domain.ReferenceTables) error {
	if len(t.Grades) == 0 {
		return invalid("no grades declared")
	}

	grades := make(map[string]bool, len(t.Grades))
	for _, g := range t.Grades {
		if g.ID == "" {
			return invalid("grade with empty id")
		}
		if grades[g.ID] {
			return invalid("duplicate grade %q", g.ID)
		}
		grades[g.ID] = true

		if g.ConfidenceBoost < 0 || g.ConfidenceBoost > 1 {
			return invalid("grade %q: confidence boost %.2f outside [0,1]", g.ID, g.ConfidenceBoost)
		}
		if err := validateBand(g.PriceRange); err != nil {
			return invalid("grade %q: %v", g.ID, err)
		}
	}
	if !grades[domain.RegularGrade] {
		return invalid("grade %q is required", domain.RegularGrade)
	}

	if len(t.Cuts) == 0 {
		return invalid("no cuts declared")
	}

	cuts := make(map[string]bool, len(t.Cuts))
	for _, c := range t.Cuts {
		if c.ID == "" {
			return invalid("cut with empty id")
		}
		if cuts[c.ID] {
			return invalid("duplicate cut %q", c.ID)
		}
		cuts[c.ID] = true

		if c.Category == "" {
			return invalid("cut %q: missing category", c.ID)
		}
		if len(c.Variants) == 0 {
			return invalid("cut %q: no variants", c.ID)
		}
		for _, v := range c.Variants {
			if !grades[v.Grade] {
				return invalid("cut %q: variant references unknown grade %q", c.ID, v.Grade)
			}
			if len(v.Keywords) == 0 && len(v.Variations) == 0 {
				return invalid("cut %q: variant %q has no keywords or variations", c.ID, v.Grade)
			}
			if v.PriceRange != nil {
				if err := validateBand(*v.PriceRange); err != nil {
					return invalid("cut %q variant %q: %v", c.ID, v.Grade, err)
				}
			}
		}
	}

	return nil
}

func validateBand(b domain.PriceBand) error {
	if b.Min < 0 || b.Max < 0 {
		return fmt.Errorf("negative price band [%.2f, %.2f]", b.Min, b.Max)
	}
	if b.Min > b.Max {
		return fmt.Errorf("price band min %.2f exceeds max %.2f", b.Min, b.Max)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidReferenceData, fmt.Sprintf(format, args...))
}

// normalizeTables applies the same normalization product names get, so matching
// never depends on how the file was typed
func normalizeTables(t *domain.ReferenceTables) {
	for i := range t.Grades {
		g := &t.Grades[i]
		g.ID = hebrew.Normalize(g.ID)
		g.PrimaryKeywords = normalizeList(g.PrimaryKeywords)
		g.SecondaryKeywords = normalizeList(g.SecondaryKeywords)
	}
	for i := range t.Cuts {
		c := &t.Cuts[i]
		c.ID = hebrew.Normalize(c.ID)
		c.Category = hebrew.Normalize(c.Category)
		for j := range c.Variants {
			v := &c.Variants[j]
			v.Grade = hebrew.Normalize(v.Grade)
			v.Keywords = normalizeList(v.Keywords)
			v.Variations = normalizeList(v.Variations)
		}
	}
	t.NegativeIndicators = normalizeList(t.NegativeIndicators)

	terms := &t.DomainTerms
	terms.Cuts = normalizeList(terms.Cuts)
	terms.Species = normalizeList(terms.Species)
	terms.Processing = normalizeList(terms.Processing)
	terms.Quality = normalizeList(terms.Quality)
	terms.Kosher = normalizeList(terms.Kosher)
	terms.Deny = normalizeList(terms.Deny)
	terms.Stopwords = normalizeList(terms.Stopwords)
}

// normalizeList normalizes each entry, dropping empties and duplicates
func normalizeList(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		n := hebrew.Normalize(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Marshal encodes tables in the on-disk format
func Marshal(t *domain.ReferenceTables) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
