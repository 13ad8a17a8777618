package config

import "strings"

// Suburb is a known Port Moresby suburb with its map position, the formal
// listing benchmark used for market scoring and its price tier (1 is the
// most expensive).
type Suburb struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Benchmark float64 `json:"benchmark"`
	Tier      int     `json:"tier"`
}

// CityWideBenchmark is used for suburbs without formal listing data.
const CityWideBenchmark = 2800

// SupportedSuburbs lists the suburbs tracked by the dashboard
var SupportedSuburbs = []Suburb{
	{Name: "Waigani", Lat: -9.4298, Lng: 147.1812, Benchmark: 4470, Tier: 1},
	{Name: "Boroko", Lat: -9.4453, Lng: 147.1769, Benchmark: 3150, Tier: 2},
	{Name: "Gerehu", Lat: -9.4736, Lng: 147.1609, Benchmark: 1880, Tier: 3},
	{Name: "Gordons", Lat: -9.4201, Lng: 147.1739, Benchmark: 5957, Tier: 1},
	{Name: "Hohola", Lat: -9.4512, Lng: 147.1651, Benchmark: 1600, Tier: 3},
	{Name: "Tokarara", Lat: -9.4580, Lng: 147.1700, Benchmark: 2275, Tier: 3},
	{Name: "Koki", Lat: -9.4721, Lng: 147.1847, Benchmark: 2900, Tier: 2},
	{Name: "Badili", Lat: -9.4600, Lng: 147.1900, Benchmark: 3325, Tier: 2},
	{Name: "Six Mile", Lat: -9.4150, Lng: 147.1500, Benchmark: 1450, Tier: 4},
	{Name: "Eight Mile", Lat: -9.3900, Lng: 147.1420, Benchmark: 1225, Tier: 4},
	{Name: "Morata", Lat: -9.4680, Lng: 147.1540, Benchmark: 1633, Tier: 4},
	{Name: "Erima", Lat: -9.4400, Lng: 147.1580, Benchmark: 2033, Tier: 4},
}

// Sources lists the listing sites the scraper collects from
var Sources = []string{
	"Hausples",
	"The Professionals",
	"Ray White PNG",
	"Century 21 PNG",
	"MarketMeri",
	"Facebook Marketplace",
	"SRE PNG",
	"DAC Properties",
}

// PropertyTypes lists the property types seen on the listing sites
var PropertyTypes = []string{"House", "Apartment", "Townhouse", "Studio", "Room", "Compound"}

// GetSuburbNames returns the names of all supported suburbs
func GetSuburbNames() []string {
	names := make([]string, len(SupportedSuburbs))
	for i, suburb := range SupportedSuburbs {
		names[i] = suburb.Name
	}
	return names
}

// GetSuburbByName returns a suburb by name, ignoring case and surrounding
// whitespace. It returns nil for unknown suburbs.
func GetSuburbByName(name string) *Suburb {
	key := NormalizeSuburb(name)
	for _, suburb := range SupportedSuburbs {
		if NormalizeSuburb(suburb.Name) == key {
			s := suburb
			return &s
		}
	}
	return nil
}

// NormalizeSuburb lowercases a suburb name and collapses inner whitespace
func NormalizeSuburb(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
