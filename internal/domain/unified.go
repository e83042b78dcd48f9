package domain

// UnifiedMember is one listing merged into a UnifiedProduct
type UnifiedMember struct {
	Name       string     `json:"name"`
	Retailer   string     `json:"retailer"`
	Price      float64    `json:"price"`
	Confidence float64    `json:"confidence"`
	Source     SourceKind `json:"source"`
}

// UnifiedProduct is the merged view of one real-world product across retailers
type UnifiedProduct struct {
	ID                   string             `json:"id"`
	NameHebrew           string             `json:"nameHebrew"`
	NameEnglish          string             `json:"nameEnglish,omitempty"`
	BaseCut              string             `json:"baseCut"`
	Grade                string             `json:"grade"`
	Category             string             `json:"category"`
	QualityTier          string             `json:"qualityTier"`
	NetworkPrices        map[string]float64 `json:"networkPrices"`
	BestPrice            float64            `json:"bestPrice"`
	WorstPrice           float64            `json:"worstPrice"`
	AvgPrice             float64            `json:"avgPrice"`
	MatchedProductsCount int                `json:"matchedProductsCount"`
	ConfidenceScore      float64            `json:"confidenceScore"`
	Availability         int                `json:"availability"`
	Members              []UnifiedMember    `json:"members"`
}
