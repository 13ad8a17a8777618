package models

// SuburbStat is a per-suburb aggregate. Lat and Lng are nil when the
// service has no coordinates for the suburb.
type SuburbStat struct {
	Suburb         string   `json:"suburb"`
	AvgPrice       float64  `json:"avg_price"`
	MedianPrice    float64  `json:"median_price,omitempty"`
	MinPrice       float64  `json:"min_price,omitempty"`
	MaxPrice       float64  `json:"max_price,omitempty"`
	Listings       int      `json:"listings"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	Supply         int      `json:"supply"`
	VerifiedSupply int      `json:"verified_supply,omitempty"`
	SocialSupply   int      `json:"social_supply,omitempty"`
	DemandScore    float64  `json:"demand_score"`
}

// TrendPoint is one week of a multi-suburb trend. A nil value means the
// suburb had no data that week.
type TrendPoint struct {
	Week   string              `json:"week"`
	Values map[string]*float64 `json:"-"`
}

type SourceCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Overview holds the KPI cards of the dashboard header
type Overview struct {
	TotalListings    int     `json:"total_listings"`
	VerifiedListings int     `json:"verified_listings"`
	AvgRentPGK       float64 `json:"avg_rent_pgk"`
	MedianRentPGK    float64 `json:"median_rent_pgk"`
	MiddlemanFlags   int     `json:"middleman_flags"`
	SourcesActive    int     `json:"sources_active"`
	SuburbsTracked   int     `json:"suburbs_tracked"`
	LastScraped      string  `json:"last_scraped"`
}

type HeatmapResponse struct {
	Suburbs []SuburbStat `json:"suburbs"`
}

type TrendsResponse struct {
	Trends []TrendPoint `json:"trends"`
}

type SupplyDemandResponse struct {
	Data []SuburbStat `json:"data"`
}

type SourcesResponse struct {
	Sources []SourceCount `json:"sources"`
}

type FlaggedResponse struct {
	Flagged      []Listing `json:"flagged"`
	TotalFlagged int       `json:"total_flagged,omitempty"`
}
