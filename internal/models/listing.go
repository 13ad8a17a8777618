package models

import "time"

// MarketLabel is the three-way market-value verdict of a listing
type MarketLabel string

const (
	LabelDeal       MarketLabel = "Deal"
	LabelFair       MarketLabel = "Fair"
	LabelOverpriced MarketLabel = "Overpriced"
)

// Valid reports whether l is one of the known labels
func (l MarketLabel) Valid() bool {
	switch l {
	case LabelDeal, LabelFair, LabelOverpriced:
		return true
	}
	return false
}

type PriceConfidence string

const (
	ConfidenceHigh   PriceConfidence = "high"
	ConfidenceMedium PriceConfidence = "medium"
	ConfidenceLow    PriceConfidence = "low"
)

// MarketValue is derived from a listing price and its suburb benchmark.
// The label is always computed from PctVsAvg by the market classifier.
type MarketValue struct {
	Label        MarketLabel `json:"label"`
	PctVsAvg     float64     `json:"pct_vs_avg"`
	BenchmarkAvg float64     `json:"benchmark_avg"`
}

type Listing struct {
	ListingID       string          `json:"listing_id"`
	SourceSite      string          `json:"source_site"`
	Title           string          `json:"title"`
	PriceMonthlyK   float64         `json:"price_monthly_k"`
	PriceConfidence PriceConfidence `json:"price_confidence"`
	Suburb          string          `json:"suburb"`
	ListingURL      string          `json:"listing_url"`
	IsVerified      bool            `json:"is_verified"`
	PropertyType    string          `json:"property_type"`
	Bedrooms        int             `json:"bedrooms"`
	ScrapedAt       time.Time       `json:"scraped_at"`
	MarketValue     *MarketValue    `json:"market_value,omitempty"`
}

// ListingPage is the listings endpoint payload
type ListingPage struct {
	Listings []Listing `json:"listings"`
	Total    int       `json:"total"`
	Pages    int       `json:"pages"`
}
