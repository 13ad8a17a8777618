package geometry

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"rentdash/server/internal/chart"
	"rentdash/server/internal/models"
)

type Bubble struct {
	Suburb   string  `json:"suburb"`
	AvgPrice float64 `json:"avg_price"`
	Listings int     `json:"listings"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"r"`
	Color    string  `json:"color"`
}

// Heatmap is the bubble map view. Excluded lists suburbs that had no
// coordinates and so were not placed.
type Heatmap struct {
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Bubbles  []Bubble `json:"bubbles"`
	Excluded []string `json:"excluded,omitempty"`
}

// Heatmap places every located suburb, sized against the largest listing
// count among the placed suburbs and coloured by average price.
func (p *Projector) Heatmap(stats []models.SuburbStat, colors *chart.ColorScale) Heatmap {
	h := Heatmap{Width: p.width, Height: p.height, Bubbles: []Bubble{}}

	maxListings := 0
	for _, s := range stats {
		if _, ok := location(s); ok && s.Listings > maxListings {
			maxListings = s.Listings
		}
	}

	for _, s := range stats {
		pt, ok := location(s)
		if !ok {
			h.Excluded = append(h.Excluded, s.Suburb)
			continue
		}
		x, y := p.Project(pt.Lat(), pt.Lon())
		h.Bubbles = append(h.Bubbles, Bubble{
			Suburb:   s.Suburb,
			AvgPrice: s.AvgPrice,
			Listings: s.Listings,
			Lat:      pt.Lat(),
			Lng:      pt.Lon(),
			X:        x,
			Y:        y,
			Radius:   p.Radius(s.Listings, maxListings),
			Color:    colors.Hex(s.AvgPrice),
		})
	}

	// largest first so small bubbles draw on top
	sort.SliceStable(h.Bubbles, func(i, j int) bool {
		return h.Bubbles[i].Radius > h.Bubbles[j].Radius
	})
	return h
}

// FeatureCollection exports the placed bubbles as GeoJSON points.
func (h Heatmap) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range h.Bubbles {
		f := geojson.NewFeature(orb.Point{b.Lng, b.Lat})
		f.Properties = geojson.Properties{
			"suburb":    b.Suburb,
			"avg_price": b.AvgPrice,
			"listings":  b.Listings,
			"color":     b.Color,
			"radius":    b.Radius,
		}
		fc.Append(f)
	}
	return fc
}
