package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meatlens/backend/internal/domain"
)

const (
	defaultSimilarityThreshold = 0.7
	defaultNearThresholdMargin = 0.05 // decisions this close to the threshold are logged
)

// unifiedNamespace seeds deterministic unified product ids
var unifiedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://meatlens/unified-product"))

// UnifierConfig holds configuration for the product unifier. Values are used as
// given; start from DefaultUnifierConfig.
type UnifierConfig struct {
	SimilarityThreshold float64
	NearThresholdMargin float64
}

// DefaultUnifierConfig returns the standard similarity settings
func DefaultUnifierConfig() UnifierConfig {
	return UnifierConfig{
		SimilarityThreshold: defaultSimilarityThreshold,
		NearThresholdMargin: defaultNearThresholdMargin,
	}
}

// ProductUnifier merges equivalent listings from different retailers into
// comparison rows
type ProductUnifier struct {
	reference domain.ReferenceProvider
	threshold float64
	margin    float64
	logger    zerolog.Logger
}

// NewProductUnifier creates a unifier. reference is optional and only supplies
// English cut names.
func NewProductUnifier(reference domain.ReferenceProvider, config UnifierConfig, logger zerolog.Logger) *ProductUnifier {
	return &ProductUnifier{
		reference: reference,
		threshold: config.SimilarityThreshold,
		margin:    config.NearThresholdMargin,
		logger:    logger.With().Str("component", "unifier").Logger(),
	}
}

type unifyGroup struct {
	baseCut string
	grade   string
	items   []domain.ClassifiedProduct
}

type cluster struct {
	members   []domain.ClassifiedProduct
	tokens    []map[string]bool
	retailers map[string]bool
}

// Unify groups products by (cut, grade), then clusters each group by name
// similarity. Primary listings are placed before secondary ones, and a cluster
// never holds two listings from the same retailer. Output order follows the first
// appearance of each group, then cluster creation.
func (u *ProductUnifier) Unify(products []domain.ClassifiedProduct) []domain.UnifiedProduct {
	out := []domain.UnifiedProduct{}
	if len(products) == 0 {
		return out
	}

	var tables *domain.ReferenceTables
	if u.reference != nil {
		tables = u.reference.Current()
	}

	seenIDs := make(map[string]int)
	for _, g := range groupByCutAndGrade(products) {
		for _, c := range u.clusterGroup(g) {
			out = append(out, u.buildUnified(g, c, tables, seenIDs))
		}
	}

	u.logger.Debug().Int("listings", len(products)).Int("unified", len(out)).Msg("unification complete")
	return out
}

func groupByCutAndGrade(products []domain.ClassifiedProduct) []*unifyGroup {
	index := make(map[string]*unifyGroup)
	var groups []*unifyGroup
	for _, p := range products {
		key := p.Result.BaseCut + "\x00" + p.Result.Grade
		g, ok := index[key]
		if !ok {
			g = &unifyGroup{baseCut: p.Result.BaseCut, grade: p.Result.Grade}
			index[key] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, p)
	}
	return groups
}

func (u *ProductUnifier) clusterGroup(g *unifyGroup) []*cluster {
	var clusters []*cluster

	for _, item := range prioritizeSources(g.items) {
		tokens := nameTokens(item.Product.Name)
		retailer := item.Product.Retailer()

		best := -1
		bestSim := 0.0
		for i, c := range clusters {
			if c.retailers[retailer] {
				continue
			}
			sim := c.similarity(tokens)
			if math.Abs(sim-u.threshold) < u.margin {
				u.logger.Debug().
					Str("product", item.Product.Name).
					Str("cluster", c.members[0].Product.Name).
					Float64("similarity", sim).
					Bool("merged", sim > u.threshold).
					Msg("near-threshold merge decision")
			}
			if sim > u.threshold && sim > bestSim {
				best = i
				bestSim = sim
			}
		}

		if best < 0 {
			clusters = append(clusters, &cluster{retailers: make(map[string]bool)})
			best = len(clusters) - 1
		}
		clusters[best].add(item, tokens, retailer)
	}

	return clusters
}

// prioritizeSources returns primary listings first, each kind in input order
func prioritizeSources(items []domain.ClassifiedProduct) []domain.ClassifiedProduct {
	ordered := make([]domain.ClassifiedProduct, 0, len(items))
	for _, it := range items {
		if it.Product.SourceOrDefault() == domain.SourcePrimary {
			ordered = append(ordered, it)
		}
	}
	for _, it := range items {
		if it.Product.SourceOrDefault() != domain.SourcePrimary {
			ordered = append(ordered, it)
		}
	}
	return ordered
}

func (c *cluster) add(item domain.ClassifiedProduct, tokens map[string]bool, retailer string) {
	c.members = append(c.members, item)
	c.tokens = append(c.tokens, tokens)
	c.retailers[retailer] = true
}

// similarity is the best overlap between tokens and any member
func (c *cluster) similarity(tokens map[string]bool) float64 {
	best := 0.0
	for _, t := range c.tokens {
		if s := overlap(tokens, t); s > best {
			best = s
		}
	}
	return best
}

func (u *ProductUnifier) buildUnified(g *unifyGroup, c *cluster, tables *domain.ReferenceTables, seenIDs map[string]int) domain.UnifiedProduct {
	canonical := c.members[0]
	name := strings.Join(strings.Fields(canonical.Product.Name), " ")

	unified := domain.UnifiedProduct{
		NameHebrew:           name,
		BaseCut:              g.baseCut,
		Grade:                g.grade,
		Category:             canonical.Result.Category,
		QualityTier:          g.grade,
		NetworkPrices:        make(map[string]float64),
		MatchedProductsCount: len(c.members),
		Availability:         len(c.retailers),
		Members:              make([]domain.UnifiedMember, 0, len(c.members)),
	}

	if tables != nil {
		if cut, ok := tables.FindCut(g.baseCut); ok {
			unified.NameEnglish = cut.NameEnglish
		}
	}

	var prices []float64
	minConfidence := math.Inf(1)
	for _, m := range c.members {
		price := effectivePrice(m.Product)
		if !validPrice(price) {
			price = 0
		}
		retailer := m.Product.Retailer()

		unified.Members = append(unified.Members, domain.UnifiedMember{
			Name:       m.Product.Name,
			Retailer:   retailer,
			Price:      price,
			Confidence: m.Result.Confidence,
			Source:     m.Product.SourceOrDefault(),
		})
		if m.Result.Confidence < minConfidence {
			minConfidence = m.Result.Confidence
		}
		if validPrice(price) {
			unified.NetworkPrices[retailer] = price
			prices = append(prices, price)
		}
	}
	unified.ConfidenceScore = minConfidence

	if len(prices) > 0 {
		best, worst, sum := prices[0], prices[0], 0.0
		for _, p := range prices {
			best = math.Min(best, p)
			worst = math.Max(worst, p)
			sum += p
		}
		unified.BestPrice = best
		unified.WorstPrice = worst
		unified.AvgPrice = math.Round(sum/float64(len(prices))*100) / 100
	}

	seed := fmt.Sprintf("%s|%s|%s|%s", g.baseCut, g.grade, name, canonical.Product.Retailer())
	if n := seenIDs[seed]; n > 0 {
		seenIDs[seed] = n + 1
		seed = fmt.Sprintf("%s#%d", seed, n)
	} else {
		seenIDs[seed] = 1
	}
	unified.ID = uuid.NewSHA1(unifiedNamespace, []byte(seed)).String()

	return unified
}

// effectivePrice prefers the per-kg price when the scraper supplied one
func effectivePrice(p domain.RawProduct) float64 {
	if validPrice(p.PricePerKg) {
		return p.PricePerKg
	}
	return p.Price
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
