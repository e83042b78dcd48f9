package domain

import "time"

// SourceKind tells the unifier how much to trust a listing's display name
type SourceKind string

const (
	// SourcePrimary is direct-scrape retailer data
	SourcePrimary SourceKind = "primary"
	// SourceSecondary is an aggregated feed such as government open data
	SourceSecondary SourceKind = "secondary"
)

// RawProduct represents one scraped retailer listing
type RawProduct struct {
	Name           string     `json:"name"`
	NormalizedName string     `json:"normalizedName,omitempty"`
	Category       string     `json:"category,omitempty"`
	Price          float64    `json:"price"`
	PricePerKg     float64    `json:"pricePerKg,omitempty"`
	StoreName      string     `json:"storeName"`
	RetailerID     string     `json:"retailerId,omitempty"`
	ScanTimestamp  time.Time  `json:"scanTimestamp,omitempty"`
	RawConfidence  *float64   `json:"rawConfidence,omitempty"`
	Source         SourceKind `json:"source,omitempty"`
}

// Retailer returns the retailer identity used for cross-retailer grouping
func (p RawProduct) Retailer() string {
	if p.RetailerID != "" {
		return p.RetailerID
	}
	return p.StoreName
}

// SourceOrDefault returns the listing's source kind, treating unset as primary
func (p RawProduct) SourceOrDefault() SourceKind {
	if p.Source == "" {
		return SourcePrimary
	}
	return p.Source
}

// ClassifiedProduct pairs a listing with the classification produced for it
type ClassifiedProduct struct {
	Product RawProduct           `json:"product"`
	Result  ClassificationResult `json:"result"`
}
