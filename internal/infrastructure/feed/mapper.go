package feed

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/meatlens/backend/internal/domain"
)

// Field aliases seen across the scrapers, in lookup order
var (
	nameFields       = []string{"name", "product_name", "productName", "title"}
	normalizedFields = []string{"normalized_name", "normalizedName"}
	categoryFields   = []string{"category", "category_name"}
	priceFields      = []string{"price", "current_price", "currentPrice"}
	perKgFields      = []string{"price_per_kg", "pricePerKg", "unit_price"}
	storeFields      = []string{"store", "storeName", "store_name", "retailer", "network"}
	retailerFields   = []string{"retailer_id", "retailerId", "chain_id"}
	timestampFields  = []string{"scan_timestamp", "scanTimestamp", "scanned_at", "scannedAt"}
	confidenceFields = []string{"confidence", "raw_confidence", "rawConfidence"}
	sourceFields     = []string{"source"}

	// Wrapper keys tried when no records path is configured
	recordContainers = []string{"products", "items", "data", "results"}
)

// ReadProducts maps a feed read from r, e.g. a file or stdin
func ReadProducts(r io.Reader, recordsPath string, source domain.SourceKind) ([]domain.RawProduct, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return MapProducts(data, recordsPath, source)
}

// MapProducts extracts products from a feed body. Records without a name are
// skipped; records without a source take the given default.
func MapProducts(data []byte, recordsPath string, source domain.SourceKind) ([]domain.RawProduct, error) {
	return mapBody(data, recordsPath, source, false)
}

// MapListings is MapProducts for request bodies: every object record is kept,
// so a nameless listing still gets an (unknown) classification in its slot.
func MapListings(data []byte, recordsPath string, source domain.SourceKind) ([]domain.RawProduct, error) {
	return mapBody(data, recordsPath, source, true)
}

// MapListing decodes a single listing object with the same field tolerance
func MapListing(data []byte, source domain.SourceKind) (domain.RawProduct, error) {
	if !gjson.ValidBytes(data) {
		return domain.RawProduct{}, fmt.Errorf("%w: body is not valid JSON", domain.ErrFeedFailure)
	}
	record := gjson.ParseBytes(data)
	if !record.IsObject() {
		return domain.RawProduct{}, fmt.Errorf("%w: listing must be a JSON object", domain.ErrFeedFailure)
	}
	product, _ := mapRecord(record, source)
	return product, nil
}

func mapBody(data []byte, recordsPath string, source domain.SourceKind, keepUnnamed bool) ([]domain.RawProduct, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: body is not valid JSON", domain.ErrFeedFailure)
	}

	records, err := locateRecords(gjson.ParseBytes(data), recordsPath)
	if err != nil {
		return nil, err
	}

	products := make([]domain.RawProduct, 0, len(records))
	for _, record := range records {
		if !record.IsObject() {
			continue
		}
		product, named := mapRecord(record, source)
		if named || keepUnnamed {
			products = append(products, product)
		}
	}
	return products, nil
}

func locateRecords(root gjson.Result, recordsPath string) ([]gjson.Result, error) {
	if recordsPath != "" {
		found := root.Get(recordsPath)
		if !found.IsArray() {
			return nil, fmt.Errorf("%w: no record array at %q", domain.ErrFeedFailure, recordsPath)
		}
		return found.Array(), nil
	}
	if root.IsArray() {
		return root.Array(), nil
	}
	for _, key := range recordContainers {
		if found := root.Get(key); found.IsArray() {
			return found.Array(), nil
		}
	}
	if root.IsObject() {
		return []gjson.Result{root}, nil
	}
	return nil, fmt.Errorf("%w: no product records found", domain.ErrFeedFailure)
}

func mapRecord(record gjson.Result, source domain.SourceKind) (domain.RawProduct, bool) {
	name := strings.TrimSpace(first(record, nameFields).String())

	product := domain.RawProduct{
		Name:           name,
		NormalizedName: first(record, normalizedFields).String(),
		Category:       first(record, categoryFields).String(),
		Price:          number(first(record, priceFields)),
		PricePerKg:     number(first(record, perKgFields)),
		StoreName:      first(record, storeFields).String(),
		RetailerID:     first(record, retailerFields).String(),
		ScanTimestamp:  timestamp(first(record, timestampFields)),
		Source:         source,
	}

	if conf := first(record, confidenceFields); conf.Exists() {
		value := number(conf)
		product.RawConfidence = &value
	}
	if kind := first(record, sourceFields).String(); kind == string(domain.SourcePrimary) || kind == string(domain.SourceSecondary) {
		product.Source = domain.SourceKind(kind)
	}
	return product, name != ""
}

func first(record gjson.Result, fields []string) gjson.Result {
	for _, field := range fields {
		if value := record.Get(field); value.Exists() && value.Type != gjson.Null {
			return value
		}
	}
	return gjson.Result{}
}

// number accepts JSON numbers and price strings such as "₪89.90", "89,90" or "1,299.90"
func number(value gjson.Result) float64 {
	switch value.Type {
	case gjson.Number:
		return value.Float()
	case gjson.String:
		raw := value.String()
		if strings.Contains(raw, ".") {
			raw = strings.ReplaceAll(raw, ",", "")
		} else {
			raw = strings.ReplaceAll(raw, ",", ".")
		}
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, raw)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func timestamp(value gjson.Result) time.Time {
	switch value.Type {
	case gjson.Number:
		return time.Unix(value.Int(), 0).UTC()
	case gjson.String:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, value.String()); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
