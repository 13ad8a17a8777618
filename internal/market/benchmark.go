package market

import (
	"strings"

	"github.com/sirupsen/logrus"

	"rentdash/server/config"
	"rentdash/server/internal/models"
)

// Multipliers relative to a house, applied to a suburb average when the
// listing is a different kind of property.
var propertyTypeAdjustments = map[string]float64{
	"house":      1.00,
	"apartment":  0.90,
	"studio":     0.65,
	"room":       0.35,
	"townhouse":  0.95,
	"compound":   1.15,
	"commercial": 1.40,
	"land":       0.50,
}

// Benchmarks resolves suburb benchmark averages.
type Benchmarks struct {
	bySuburb     map[string]float64
	names        []string
	fallback     float64
	adjustByType bool
}

// NewBenchmarks builds a lookup from the given suburbs. When adjustByType
// is set, benchmarks are scaled by the listing's property type.
func NewBenchmarks(suburbs []config.Suburb, fallback float64, adjustByType bool) *Benchmarks {
	b := &Benchmarks{
		bySuburb:     make(map[string]float64, len(suburbs)),
		fallback:     fallback,
		adjustByType: adjustByType,
	}
	for _, s := range suburbs {
		key := config.NormalizeSuburb(s.Name)
		if _, dup := b.bySuburb[key]; !dup {
			b.names = append(b.names, key)
		}
		b.bySuburb[key] = s.Benchmark
	}
	return b
}

// DefaultBenchmarks uses the supported suburbs and the city-wide average,
// without property type adjustment.
func DefaultBenchmarks() *Benchmarks {
	return NewBenchmarks(config.SupportedSuburbs, config.CityWideBenchmark, false)
}

// Lookup returns the benchmark for a suburb. Unknown suburbs fall back to a
// partial name match ("Gerehu Stage 3" → Gerehu) and then to the city-wide
// average; exact is false in both cases.
func (b *Benchmarks) Lookup(suburb string) (avg float64, exact bool) {
	key := config.NormalizeSuburb(suburb)
	if avg, ok := b.bySuburb[key]; ok {
		return avg, true
	}
	if key != "" {
		for _, name := range b.names {
			if strings.Contains(key, name) || strings.Contains(name, key) {
				return b.bySuburb[name], false
			}
		}
	}
	return b.fallback, false
}

// For returns the benchmark for a listing, adjusted for property type if
// configured.
func (b *Benchmarks) For(listing *models.Listing) float64 {
	avg, _ := b.Lookup(listing.Suburb)
	if !b.adjustByType || listing.PropertyType == "" {
		return avg
	}
	if m, ok := propertyTypeAdjustments[strings.ToLower(listing.PropertyType)]; ok {
		return avg * m
	}
	return avg
}

// Annotate returns copies of listings carrying a freshly computed market
// value. Listings without a price or suburb are copied unscored, and a
// listing whose benchmark is unusable is logged and left unscored.
func (b *Benchmarks) Annotate(listings []models.Listing, logger *logrus.Logger) []models.Listing {
	out := make([]models.Listing, len(listings))
	for i, l := range listings {
		out[i] = l
		out[i].MarketValue = nil
		if l.PriceMonthlyK <= 0 || l.Suburb == "" {
			continue
		}

		mv, err := Classify(l.PriceMonthlyK, b.For(&l))
		if err != nil {
			if logger != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"listing_id": l.ListingID,
					"suburb":     l.Suburb,
				}).Warn("Skipping market value")
			}
			continue
		}
		out[i].MarketValue = &mv
	}
	return out
}
