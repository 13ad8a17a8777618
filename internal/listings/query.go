// Package listings builds listing queries against the service and falls back
// to filtering the synthetic dataset locally.
package listings

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"rentdash/server/internal/models"
)

var ErrInvalidQuery = errors.New("invalid listing query")

type SortField string

const (
	SortScrapedAt SortField = "scraped_at"
	SortPrice     SortField = "price_monthly_k"
	SortBedrooms  SortField = "bedrooms"
	SortSuburb    SortField = "suburb"
	SortSource    SortField = "source_site"
	SortTitle     SortField = "title"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query is a filtered, sorted page request for listings
type Query struct {
	Filter   models.ListingFilter
	Sort     SortField
	Order    SortOrder
	Page     int
	PageSize int
}

// Normalize fills in defaults: newest first, page 1, 20 per page.
func (q Query) Normalize() Query {
	if q.Sort == "" {
		q.Sort = SortScrapedAt
	}
	if q.Order == "" {
		q.Order = OrderDesc
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Params encodes the query for the listings endpoint. The market-value
// filter is not understood by the service and is applied after the fetch.
func (q Query) Params() url.Values {
	q = q.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.PageSize))
	v.Set("sort", string(q.Sort))
	v.Set("order", string(q.Order))

	f := q.Filter
	if f.Suburb != "" {
		v.Set("suburb", f.Suburb)
	}
	if f.Source != "" {
		v.Set("source", f.Source)
	}
	if f.PropertyType != "" {
		v.Set("type", f.PropertyType)
	}
	if f.MinPrice != nil {
		v.Set("min_price", formatPrice(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		v.Set("max_price", formatPrice(*f.MaxPrice))
	}
	if f.Verified != nil {
		v.Set("verified", strconv.FormatBool(*f.Verified))
	}
	return v
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// ParseQuery reads a query from request parameters using the same names as
// the listings endpoint, plus market_value.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Filter: models.ListingFilter{
			Suburb:       strings.TrimSpace(values.Get("suburb")),
			Source:       strings.TrimSpace(values.Get("source")),
			PropertyType: strings.TrimSpace(values.Get("type")),
			MarketValue:  models.MarketLabel(strings.TrimSpace(values.Get("market_value"))),
		},
		Sort:  SortField(values.Get("sort")),
		Order: SortOrder(strings.ToLower(values.Get("order"))),
	}

	var err error
	if q.Page, err = parseInt(values, "page"); err != nil {
		return Query{}, err
	}
	if q.PageSize, err = parseInt(values, "limit"); err != nil {
		return Query{}, err
	}
	if q.Filter.MinPrice, err = parsePrice(values, "min_price"); err != nil {
		return Query{}, err
	}
	if q.Filter.MaxPrice, err = parsePrice(values, "max_price"); err != nil {
		return Query{}, err
	}
	if q.Filter.Verified, err = parseBool(values, "verified"); err != nil {
		return Query{}, err
	}

	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q.Normalize(), nil
}

// Validate rejects unknown sort fields, orders and labels and an inverted
// price range.
func (q Query) Validate() error {
	switch q.Sort {
	case "", SortScrapedAt, SortPrice, SortBedrooms, SortSuburb, SortSource, SortTitle:
	default:
		return fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, q.Sort)
	}
	switch q.Order {
	case "", OrderAsc, OrderDesc:
	default:
		return fmt.Errorf("%w: unknown order %q", ErrInvalidQuery, q.Order)
	}
	if q.Filter.MarketValue != "" && !q.Filter.MarketValue.Valid() {
		return fmt.Errorf("%w: unknown market value %q", ErrInvalidQuery, q.Filter.MarketValue)
	}
	if q.Filter.MinPrice != nil && q.Filter.MaxPrice != nil && *q.Filter.MinPrice > *q.Filter.MaxPrice {
		return fmt.Errorf("%w: min_price above max_price", ErrInvalidQuery)
	}
	return nil
}

func parseInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidQuery, key)
	}
	return n, nil
}

func parsePrice(values url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || p < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidQuery, key)
	}
	return &p, nil
}

func parseBool(values url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", ErrInvalidQuery, key)
	}
	return &b, nil
}

// Local applies every filter, the sort and the pagination to an in-memory
// set. Total is the filtered count.
func Local(all []models.Listing, q Query) Page {
	q = q.Normalize()

	filtered := make([]models.Listing, 0, len(all))
	for i := range all {
		if q.Filter.Allows(&all[i]) {
			filtered = append(filtered, all[i])
		}
	}
	sortListings(filtered, q.Sort, q.Order)

	total := len(filtered)
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	return Page{
		Listings: filtered[start:end],
		Total:    total,
		Pages:    pageCount(total, q.PageSize),
		Page:     q.Page,
		Limit:    q.PageSize,
		Visible:  end - start,
	}
}

func pageCount(total, size int) int {
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

func sortListings(listings []models.Listing, field SortField, order SortOrder) {
	byField := func(a, b *models.Listing) int {
		switch field {
		case SortPrice:
			return cmp.Compare(a.PriceMonthlyK, b.PriceMonthlyK)
		case SortBedrooms:
			return cmp.Compare(a.Bedrooms, b.Bedrooms)
		case SortSuburb:
			return strings.Compare(strings.ToLower(a.Suburb), strings.ToLower(b.Suburb))
		case SortSource:
			return strings.Compare(strings.ToLower(a.SourceSite), strings.ToLower(b.SourceSite))
		case SortTitle:
			return strings.Compare(a.Title, b.Title)
		default:
			return a.ScrapedAt.Compare(b.ScrapedAt)
		}
	}

	sort.SliceStable(listings, func(i, j int) bool {
		c := byField(&listings[i], &listings[j])
		if c == 0 {
			return listings[i].ListingID < listings[j].ListingID
		}
		if order == OrderAsc {
			return c < 0
		}
		return c > 0
	})
}
