// Package synthetic builds the deterministic stand-in dataset served when
// the listings service cannot be reached.
package synthetic

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentdash/server/config"
	"rentdash/server/internal/market"
	"rentdash/server/internal/models"
)

const (
	// DefaultListings matches the size of the development dataset
	DefaultListings = 240
	// FlaggedLimit caps the flagged listings returned
	FlaggedLimit = 20
	// TrendWeeks is the number of weekly trend points
	TrendWeeks = 8
	priceFloor = 800
)

// TrendSuburbs are the suburbs drawn on the trend chart
var TrendSuburbs = []string{"Waigani", "Boroko", "Gerehu"}

var tierBase = [4]float64{6000, 3500, 2000, 1200}

var unverifiedSources = map[string]bool{"Facebook Marketplace": true}

// Dataset is a full synthetic snapshot of every analytics view.
type Dataset struct {
	Listings     []models.Listing
	Stats        []models.SuburbStat
	SupplyDemand []models.SuburbStat
	Trends       []models.TrendPoint
	Sources      []models.SourceCount
	Overview     models.Overview
	Flagged      []models.Listing
	TotalFlagged int
}

// Generator produces the same dataset for the same seed, size and reference
// time. The dataset is built once and shared; callers must not modify it.
type Generator struct {
	seed  int64
	count int
	now   time.Time

	once sync.Once
	data *Dataset
}

func NewGenerator(seed int64, count int, now time.Time) *Generator {
	if count <= 0 {
		count = DefaultListings
	}
	return &Generator{seed: seed, count: count, now: now.UTC()}
}

// Dataset returns the generated snapshot
func (g *Generator) Dataset() *Dataset {
	g.once.Do(func() {
		g.data = g.generate()
	})
	return g.data
}

func (g *Generator) generate() *Dataset {
	rng := rand.New(rand.NewSource(g.seed))
	benchmarks := market.DefaultBenchmarks()

	listings := benchmarks.Annotate(g.listings(rng), nil)

	d := &Dataset{
		Listings: listings,
		Stats:    suburbStats(listings),
		Trends:   g.trends(rng, listings),
		Sources:  sourceCounts(listings),
		Overview: overview(listings),
	}
	d.SupplyDemand = supplyDemand(rng, listings)
	d.Flagged, d.TotalFlagged = flagged(listings, FlaggedLimit)
	return d
}

func (g *Generator) listings(rng *rand.Rand) []models.Listing {
	listings := make([]models.Listing, 0, g.count)
	for i := 0; i < g.count; i++ {
		suburb := config.SupportedSuburbs[rng.Intn(len(config.SupportedSuburbs))]
		source := config.Sources[rng.Intn(len(config.Sources))]
		ptype := config.PropertyTypes[rng.Intn(len(config.PropertyTypes))]

		beds := 1
		if ptype != "Studio" && ptype != "Room" {
			beds = rng.Intn(5) + 1
		}

		tier := suburb.Tier
		if tier < 1 || tier > len(tierBase) {
			tier = 3
		}
		base := tierBase[tier-1]
		price := float64(int(rng.NormFloat64()*base*0.18 + base))
		if price < priceFloor {
			price = priceFloor
		}

		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			id = uuid.New()
		}

		listings = append(listings, models.Listing{
			ListingID:       id.String()[:16],
			SourceSite:      source,
			Title:           fmt.Sprintf("%d Bedroom %s - %s", beds, ptype, suburb.Name),
			PriceMonthlyK:   price,
			PriceConfidence: models.ConfidenceHigh,
			Suburb:          suburb.Name,
			ListingURL:      fmt.Sprintf("https://example.com/listing/%d", i+1),
			IsVerified:      !unverifiedSources[source],
			PropertyType:    ptype,
			Bedrooms:        beds,
			ScrapedAt:       g.now.Add(-time.Duration(rng.Intn(73)) * time.Hour),
		})
	}
	return listings
}

// groupBySuburb keeps suburbs in first-seen order
func groupBySuburb(listings []models.Listing) ([]string, map[string][]models.Listing) {
	var order []string
	groups := make(map[string][]models.Listing)
	for _, l := range listings {
		if l.Suburb == "" {
			continue
		}
		if _, ok := groups[l.Suburb]; !ok {
			order = append(order, l.Suburb)
		}
		groups[l.Suburb] = append(groups[l.Suburb], l)
	}
	return order, groups
}

func suburbStats(listings []models.Listing) []models.SuburbStat {
	order, groups := groupBySuburb(listings)

	stats := make([]models.SuburbStat, 0, len(order))
	for _, name := range order {
		var prices []float64
		for _, l := range groups[name] {
			if l.PriceMonthlyK > 0 {
				prices = append(prices, l.PriceMonthlyK)
			}
		}
		if len(prices) == 0 {
			continue
		}
		sort.Float64s(prices)

		stat := models.SuburbStat{
			Suburb:      name,
			AvgPrice:    float64(int(sum(prices) / float64(len(prices)))),
			MedianPrice: median(prices),
			MinPrice:    prices[0],
			MaxPrice:    prices[len(prices)-1],
			Listings:    len(prices),
		}
		lat, lng := -9.44, 147.18
		if s := config.GetSuburbByName(name); s != nil {
			lat, lng = s.Lat, s.Lng
		}
		stat.Lat, stat.Lng = &lat, &lng
		stats = append(stats, stat)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].AvgPrice > stats[j].AvgPrice
	})
	return stats
}

func supplyDemand(rng *rand.Rand, listings []models.Listing) []models.SuburbStat {
	order, groups := groupBySuburb(listings)

	rows := make([]models.SuburbStat, 0, len(order))
	for _, name := range order {
		items := groups[name]
		verified := 0
		var total float64
		for _, l := range items {
			if l.IsVerified {
				verified++
			}
			total += l.PriceMonthlyK
		}
		demand := 40 + verified*3 + rng.Intn(16)
		if demand > 100 {
			demand = 100
		}
		rows = append(rows, models.SuburbStat{
			Suburb:         name,
			AvgPrice:       float64(int(total / float64(len(items)))),
			Listings:       len(items),
			Supply:         len(items),
			VerifiedSupply: verified,
			SocialSupply:   len(items) - verified,
			DemandScore:    float64(demand),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Supply > rows[j].Supply
	})
	return rows
}

// trends averages each trend suburb per week. Weeks without listings use
// the suburb's overall average with up to 8% noise.
func (g *Generator) trends(rng *rand.Rand, listings []models.Listing) []models.TrendPoint {
	_, groups := groupBySuburb(listings)

	points := make([]models.TrendPoint, 0, TrendWeeks)
	for w := TrendWeeks - 1; w >= 0; w-- {
		end := g.now.Add(-time.Duration(w) * 7 * 24 * time.Hour)
		start := end.Add(-7 * 24 * time.Hour)
		point := models.TrendPoint{Week: end.Format("Jan 02"), Values: make(map[string]*float64)}

		for _, name := range TrendSuburbs {
			var inWeek, all []float64
			for _, l := range groups[name] {
				if l.PriceMonthlyK <= 0 {
					continue
				}
				all = append(all, l.PriceMonthlyK)
				if !l.ScrapedAt.Before(start) && !l.ScrapedAt.After(end) {
					inWeek = append(inWeek, l.PriceMonthlyK)
				}
			}
			if len(inWeek) == 0 && len(all) > 0 {
				base := float64(int(sum(all) / float64(len(all))))
				inWeek = []float64{float64(int(base * (0.92 + rng.Float64()*0.16)))}
			}
			if len(inWeek) == 0 {
				point.Values[name] = nil
				continue
			}
			avg := float64(int(sum(inWeek) / float64(len(inWeek))))
			point.Values[name] = &avg
		}
		points = append(points, point)
	}
	return points
}

func sourceCounts(listings []models.Listing) []models.SourceCount {
	counts := make(map[string]int)
	for _, l := range listings {
		name := l.SourceSite
		if name == "" {
			name = "Unknown"
		}
		counts[name]++
	}

	out := make([]models.SourceCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.SourceCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func overview(listings []models.Listing) models.Overview {
	var prices []float64
	verified, flags := 0, 0
	sources := make(map[string]bool)
	suburbs := make(map[string]bool)
	var last time.Time

	for _, l := range listings {
		if l.PriceMonthlyK > 0 {
			prices = append(prices, l.PriceMonthlyK)
		}
		if l.IsVerified {
			verified++
		}
		if market.IsMiddleman(l.MarketValue) {
			flags++
		}
		sources[l.SourceSite] = true
		if l.Suburb != "" {
			suburbs[l.Suburb] = true
		}
		if l.ScrapedAt.After(last) {
			last = l.ScrapedAt
		}
	}

	o := models.Overview{
		TotalListings:    len(listings),
		VerifiedListings: verified,
		MiddlemanFlags:   flags,
		SourcesActive:    len(sources),
		SuburbsTracked:   len(suburbs),
		LastScraped:      "Never",
	}
	if len(prices) > 0 {
		sort.Float64s(prices)
		o.AvgRentPGK = float64(int(sum(prices) / float64(len(prices))))
		o.MedianRentPGK = prices[len(prices)/2]
	}
	if !last.IsZero() {
		o.LastScraped = last.Format(time.RFC3339)
	}
	return o
}

// flagged returns middleman listings, highest markup first
func flagged(listings []models.Listing, limit int) ([]models.Listing, int) {
	var out []models.Listing
	for _, l := range listings {
		if market.IsMiddleman(l.MarketValue) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MarketValue.PctVsAvg > out[j].MarketValue.PctVsAvg
	})
	total := len(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// median of sorted values; an even count averages the middle pair and
// truncates
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return float64(int((sorted[n/2-1] + sorted[n/2]) / 2))
}
