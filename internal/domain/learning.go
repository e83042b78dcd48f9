package domain

import "time"

// LearningStats are the running counters of the auto-learner. They never decrease
// within a session.
type LearningStats struct {
	TotalProductsProcessed int `json:"totalProductsProcessed"`
	AutoClassifications    int `json:"autoClassifications"`
	ManualReviews          int `json:"manualReviews"`
	NewPatternsDiscovered  int `json:"newPatternsDiscovered"`
}

// ReviewItem is a low-confidence classification awaiting a human decision
type ReviewItem struct {
	ID             string    `json:"id"`
	ProductName    string    `json:"productName"`
	Site           string    `json:"site,omitempty"`
	Confidence     float64   `json:"confidence"`
	SuggestedCut   string    `json:"suggestedCut"`
	SuggestedGrade string    `json:"suggestedGrade"`
	FlaggedAt      time.Time `json:"flaggedAt"`
}

// PatternSample is one classification in which a candidate word was seen
type PatternSample struct {
	ProductName string  `json:"productName"`
	BaseCut     string  `json:"baseCut"`
	Grade       string  `json:"grade"`
	Confidence  float64 `json:"confidence"`
}

// PatternCandidate tracks an unknown word until it is promoted
type PatternCandidate struct {
	Frequency     int             `json:"frequency"`
	ConfidenceSum float64         `json:"confidenceSum"`
	Samples       []PatternSample `json:"samples,omitempty"`
	FirstSeen     time.Time       `json:"firstSeen"`
}

// AverageConfidence is the running mean confidence of the candidate's sightings
func (c *PatternCandidate) AverageConfidence() float64 {
	if c.Frequency == 0 {
		return 0
	}
	return c.ConfidenceSum / float64(c.Frequency)
}

// PatternStatus is the admin decision state of a discovered pattern
type PatternStatus string

const (
	PatternPending  PatternStatus = "pending"
	PatternApproved PatternStatus = "approved"
)

// DiscoveredPattern is a promoted candidate awaiting admin sign-off
type DiscoveredPattern struct {
	Word              string          `json:"word"`
	Frequency         int             `json:"frequency"`
	AverageConfidence float64         `json:"averageConfidence"`
	SuggestedCut      string          `json:"suggestedCut"`
	SuggestedGrade    string          `json:"suggestedGrade"`
	Samples           []PatternSample `json:"samples,omitempty"`
	DiscoveredAt      time.Time       `json:"discoveredAt"`
	Status            PatternStatus   `json:"status"`
}

// SiteLearningStats aggregates learner activity per scraped site
type SiteLearningStats struct {
	Processed       int       `json:"processed"`
	AutoClassified  int       `json:"autoClassified"`
	ManualReviews   int       `json:"manualReviews"`
	ConfidenceSum   float64   `json:"confidenceSum"`
	LastProcessedAt time.Time `json:"lastProcessedAt"`
}

// LearningLogState is the persistent, process-wide learning log
type LearningLogState struct {
	Stats             LearningStats                 `json:"stats"`
	ManualReviewQueue []ReviewItem                  `json:"manualReviewQueue"`
	PotentialPatterns map[string]*PatternCandidate  `json:"potentialPatterns"`
	NewPatterns       []DiscoveredPattern           `json:"newPatterns"`
	SiteStats         map[string]*SiteLearningStats `json:"perSiteLearningStats"`
	LastUpdated       time.Time                     `json:"lastUpdated"`
}

// NewLearningLogState returns an empty state with initialized maps
func NewLearningLogState() *LearningLogState {
	return &LearningLogState{
		ManualReviewQueue: []ReviewItem{},
		PotentialPatterns: make(map[string]*PatternCandidate),
		NewPatterns:       []DiscoveredPattern{},
		SiteStats:         make(map[string]*SiteLearningStats),
	}
}

// UpdatedMappingFiles reports which reference tables a learning pass touched
type UpdatedMappingFiles struct {
	Grades bool `json:"grades"`
	Cuts   bool `json:"cuts"`
}

// LearningReport summarizes one ProcessResults pass
type LearningReport struct {
	Site                string              `json:"site"`
	GeneratedAt         time.Time           `json:"generatedAt"`
	Processed           int                 `json:"processed"`
	NewPatterns         int                 `json:"newPatterns"`
	ManualReviews       int                 `json:"manualReviews"`
	PendingReviews      int                 `json:"pendingReviews"`
	UpdatedMappingFiles UpdatedMappingFiles `json:"updatedMappingFiles"`
	Recommendations     []string            `json:"recommendations"`
	Stats               LearningStats       `json:"stats"`
}

// PatternApproval is an admin instruction to make a name an active classifier input
type PatternApproval struct {
	OriginalName         string `json:"originalName" binding:"required"`
	NormalizedSuggestion string `json:"normalizedSuggestion" binding:"required"`
	Grade                string `json:"grade"`
	Category             string `json:"category,omitempty"`
}

// Clone returns a deep copy that can be persisted outside the owner's lock
func (s *LearningLogState) Clone() *LearningLogState {
	out := &LearningLogState{
		Stats:             s.Stats,
		ManualReviewQueue: make([]ReviewItem, len(s.ManualReviewQueue)),
		PotentialPatterns: make(map[string]*PatternCandidate, len(s.PotentialPatterns)),
		NewPatterns:       make([]DiscoveredPattern, len(s.NewPatterns)),
		SiteStats:         make(map[string]*SiteLearningStats, len(s.SiteStats)),
		LastUpdated:       s.LastUpdated,
	}
	copy(out.ManualReviewQueue, s.ManualReviewQueue)
	for word, c := range s.PotentialPatterns {
		cp := *c
		cp.Samples = append([]PatternSample(nil), c.Samples...)
		out.PotentialPatterns[word] = &cp
	}
	for i, p := range s.NewPatterns {
		p.Samples = append([]PatternSample(nil), p.Samples...)
		out.NewPatterns[i] = p
	}
	for site, st := range s.SiteStats {
		cp := *st
		out.SiteStats[site] = &cp
	}
	return out
}

// EnsureInitialized fills nil collections, e.g. after decoding an older file
func (s *LearningLogState) EnsureInitialized() {
	if s.ManualReviewQueue == nil {
		s.ManualReviewQueue = []ReviewItem{}
	}
	if s.PotentialPatterns == nil {
		s.PotentialPatterns = make(map[string]*PatternCandidate)
	}
	if s.NewPatterns == nil {
		s.NewPatterns = []DiscoveredPattern{}
	}
	if s.SiteStats == nil {
		s.SiteStats = make(map[string]*SiteLearningStats)
	}
}
