package domain

// PriceBand is an inclusive per-kg price range used for sanity estimation only
type PriceBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultPriceBand is used when a cut+grade pair declares no band
var DefaultPriceBand = PriceBand{Min: DefaultMinPrice, Max: DefaultMaxPrice}

// GradeDefinition is a named quality tier with its keyword signals
type GradeDefinition struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	PrimaryKeywords   []string  `json:"primaryKeywords"`
	SecondaryKeywords []string  `json:"secondaryKeywords,omitempty"`
	ConfidenceBoost   float64   `json:"confidenceBoost"`
	PriceRange        PriceBand `json:"priceRange"`
}

// CutVariant holds the keywords and canonical variations of a cut for one grade
type CutVariant struct {
	Grade      string     `json:"grade"`
	Keywords   []string   `json:"keywords,omitempty"`
	Variations []string   `json:"variations,omitempty"`
	PriceRange *PriceBand `json:"priceRange,omitempty"`
}

// CutDefinition is a canonical base cut
type CutDefinition struct {
	ID          string       `json:"id"`
	NameEnglish string       `json:"nameEnglish,omitempty"`
	Category    string       `json:"category"`
	Variants    []CutVariant `json:"variants"`
}

// PriceBandFor returns the band declared for grade, if any
func (c CutDefinition) PriceBandFor(grade string) (PriceBand, bool) {
	for _, v := range c.Variants {
		if v.Grade == grade && v.PriceRange != nil {
			return *v.PriceRange, true
		}
	}
	return PriceBand{}, false
}

// DomainTerms is the single canonical vocabulary of the meat domain. The text
// processor, the strict filter and the learner stoplist all read from it.
type DomainTerms struct {
	Cuts       []string `json:"cuts"`
	Species    []string `json:"species"`
	Processing []string `json:"processing"`
	Quality    []string `json:"quality"`
	Kosher     []string `json:"kosher"`
	Deny       []string `json:"deny"`
	Stopwords  []string `json:"stopwords"`
}

// MeatTerms returns the reference list used for meat term extraction
func (t DomainTerms) MeatTerms() []string {
	out := make([]string, 0, len(t.Cuts)+len(t.Species)+len(t.Quality)+len(t.Kosher))
	out = append(out, t.Cuts...)
	out = append(out, t.Species...)
	out = append(out, t.Quality...)
	out = append(out, t.Kosher...)
	return out
}

// ReferenceTables is one immutable snapshot of all classification reference data.
// Slice order is declaration order and decides ties.
type ReferenceTables struct {
	Version            int               `json:"version"`
	Grades             []GradeDefinition `json:"grades"`
	Cuts               []CutDefinition   `json:"cuts"`
	NegativeIndicators []string          `json:"negativeIndicators,omitempty"`
	DomainTerms        DomainTerms       `json:"domainTerms"`
}

// FindGrade looks up a grade by id
func (t *ReferenceTables) FindGrade(id string) (GradeDefinition, bool) {
	for _, g := range t.Grades {
		if g.ID == id {
			return g, true
		}
	}
	return GradeDefinition{}, false
}

// FindCut looks up a cut by id
func (t *ReferenceTables) FindCut(id string) (CutDefinition, bool) {
	for _, c := range t.Cuts {
		if c.ID == id {
			return c, true
		}
	}
	return CutDefinition{}, false
}

// KnownTerms returns every keyword and variation in the grade and cut tables, plus
// each of their whitespace-separated words.
func (t *ReferenceTables) KnownTerms(split func(string) []string) map[string]bool {
	known := make(map[string]bool)
	add := func(terms []string) {
		for _, term := range terms {
			known[term] = true
			for _, w := range split(term) {
				known[w] = true
			}
		}
	}
	for _, g := range t.Grades {
		add(g.PrimaryKeywords)
		add(g.SecondaryKeywords)
	}
	for _, c := range t.Cuts {
		add([]string{c.ID})
		for _, v := range c.Variants {
			add(v.Keywords)
			add(v.Variations)
		}
	}
	return known
}

// Clone returns a deep copy suitable for copy-on-write mutation
func (t *ReferenceTables) Clone() *ReferenceTables {
	out := &ReferenceTables{
		Version:            t.Version,
		Grades:             make([]GradeDefinition, len(t.Grades)),
		Cuts:               make([]CutDefinition, len(t.Cuts)),
		NegativeIndicators: cloneStrings(t.NegativeIndicators),
		DomainTerms: DomainTerms{
			Cuts:       cloneStrings(t.DomainTerms.Cuts),
			Species:    cloneStrings(t.DomainTerms.Species),
			Processing: cloneStrings(t.DomainTerms.Processing),
			Quality:    cloneStrings(t.DomainTerms.Quality),
			Kosher:     cloneStrings(t.DomainTerms.Kosher),
			Deny:       cloneStrings(t.DomainTerms.Deny),
			Stopwords:  cloneStrings(t.DomainTerms.Stopwords),
		},
	}
	for i, g := range t.Grades {
		g.PrimaryKeywords = cloneStrings(g.PrimaryKeywords)
		g.SecondaryKeywords = cloneStrings(g.SecondaryKeywords)
		out.Grades[i] = g
	}
	for i, c := range t.Cuts {
		variants := make([]CutVariant, len(c.Variants))
		for j, v := range c.Variants {
			v.Keywords = cloneStrings(v.Keywords)
			v.Variations = cloneStrings(v.Variations)
			if v.PriceRange != nil {
				band := *v.PriceRange
				v.PriceRange = &band
			}
			variants[j] = v
		}
		c.Variants = variants
		out.Cuts[i] = c
	}
	return out
}

// AddCutVariation appends variation to the cut's sub-list for grade, creating the
// cut or the grade sub-list when missing. Existing entries are never removed.
// It reports whether the tables changed.
func (t *ReferenceTables) AddCutVariation(cutID, category, grade, variation string) bool {
	for i := range t.Cuts {
		cut := &t.Cuts[i]
		if cut.ID != cutID {
			continue
		}
		for j := range cut.Variants {
			v := &cut.Variants[j]
			if v.Grade != grade {
				continue
			}
			if containsString(v.Variations, variation) {
				return false
			}
			v.Variations = append(v.Variations, variation)
			return true
		}
		cut.Variants = append(cut.Variants, CutVariant{Grade: grade, Variations: []string{variation}})
		return true
	}
	if category == "" {
		category = OtherCategory
	}
	t.Cuts = append(t.Cuts, CutDefinition{
		ID:       cutID,
		Category: category,
		Variants: []CutVariant{{Grade: grade, Variations: []string{variation}}},
	})
	return true
}

// AddGradeKeyword appends a secondary keyword to a grade
func (t *ReferenceTables) AddGradeKeyword(gradeID, keyword string) (bool, error) {
	for i := range t.Grades {
		g := &t.Grades[i]
		if g.ID != gradeID {
			continue
		}
		if containsString(g.PrimaryKeywords, keyword) || containsString(g.SecondaryKeywords, keyword) {
			return false, nil
		}
		g.SecondaryKeywords = append(g.SecondaryKeywords, keyword)
		return true, nil
	}
	return false, ErrUnknownGrade
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
