package models

import "strings"

// ListingFilter holds the recognised listing filter options
type ListingFilter struct {
	Suburb       string      `json:"suburb,omitempty"`
	Source       string      `json:"source,omitempty"`
	PropertyType string      `json:"property_type,omitempty"`
	MinPrice     *float64    `json:"min_price,omitempty"`
	MaxPrice     *float64    `json:"max_price,omitempty"`
	MarketValue  MarketLabel `json:"market_value,omitempty"`
	Verified     *bool       `json:"verified,omitempty"`
}

// Allows checks if a listing matches every set filter criterion.
func (f *ListingFilter) Allows(listing *Listing) bool {
	if f == nil {
		return true
	}

	// Suburb and property type compare case-insensitively
	if f.Suburb != "" && !strings.EqualFold(listing.Suburb, f.Suburb) {
		return false
	}
	if f.PropertyType != "" && !strings.EqualFold(listing.PropertyType, f.PropertyType) {
		return false
	}

	// Source is a substring match so "ray white" finds "Ray White PNG"
	if f.Source != "" && !strings.Contains(strings.ToLower(listing.SourceSite), strings.ToLower(f.Source)) {
		return false
	}

	if f.MinPrice != nil && listing.PriceMonthlyK < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && listing.PriceMonthlyK > *f.MaxPrice {
		return false
	}
	if f.Verified != nil && listing.IsVerified != *f.Verified {
		return false
	}

	return f.AllowsMarketValue(listing)
}

// AllowsMarketValue applies only the market-value criterion. Listings
// without a market value never match a set label.
func (f *ListingFilter) AllowsMarketValue(listing *Listing) bool {
	if f == nil || f.MarketValue == "" {
		return true
	}
	return listing.MarketValue != nil && listing.MarketValue.Label == f.MarketValue
}
