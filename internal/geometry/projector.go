// Package geometry places suburbs on the bubble heatmap and exports the
// same placement as GeoJSON.
package geometry

import (
	"math"

	"github.com/paulmach/orb"

	"rentdash/server/config"
	"rentdash/server/internal/models"
)

// Projector maps lat/lng onto a W×H canvas. Points are orb.Point{lng, lat}.
type Projector struct {
	bound         orb.Bound
	width, height float64
	r0, rRange    float64
}

func NewProjector(bound orb.Bound, style config.HeatmapStyle) *Projector {
	return &Projector{
		bound:  bound,
		width:  style.Width,
		height: style.Height,
		r0:     style.MinRadius,
		rRange: style.RadiusRange,
	}
}

// BoundFor returns the bounding box of every stat with coordinates. ok is
// false when no stat has both lat and lng.
func BoundFor(stats []models.SuburbStat) (orb.Bound, bool) {
	var bound orb.Bound
	ok := false
	for _, s := range stats {
		p, has := location(s)
		if !has {
			continue
		}
		if !ok {
			bound = p.Bound()
			ok = true
			continue
		}
		bound = bound.Extend(p)
	}
	return bound, ok
}

// SuburbBound is the bounding box of the configured suburbs.
func SuburbBound() orb.Bound {
	var bound orb.Bound
	for i, s := range config.SupportedSuburbs {
		p := orb.Point{s.Lng, s.Lat}
		if i == 0 {
			bound = p.Bound()
			continue
		}
		bound = bound.Extend(p)
	}
	return bound
}

func (p *Projector) Bound() orb.Bound {
	return p.bound
}

// Project returns canvas coordinates. An axis with no extent maps to the
// centre of that axis.
func (p *Projector) Project(lat, lng float64) (x, y float64) {
	x = scale(lng, p.bound.Min.Lon(), p.bound.Max.Lon(), p.width)
	y = scale(lat, p.bound.Min.Lat(), p.bound.Max.Lat(), p.height)
	return x, y
}

func scale(v, min, max, size float64) float64 {
	if max == min {
		return size / 2
	}
	return (v - min) / (max - min) * size
}

// Radius grows with the square root of the listing share so bubble area
// tracks the count.
func (p *Projector) Radius(listings, maxListings int) float64 {
	if maxListings <= 0 || listings <= 0 {
		return p.r0
	}
	share := math.Min(1, float64(listings)/float64(maxListings))
	return p.r0 + math.Sqrt(share)*p.rRange
}

func location(s models.SuburbStat) (orb.Point, bool) {
	if s.Lat == nil || s.Lng == nil {
		return orb.Point{}, false
	}
	return orb.Point{*s.Lng, *s.Lat}, true
}
