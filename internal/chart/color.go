// Package chart holds the price colour scale and the trend chart geometry
// shared by the dashboard views.
package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"rentdash/server/config"
)

// RGB is a colour with float channels in [0, 255].
type RGB struct {
	R, G, B float64
}

// ParseHex parses a #rrggbb colour.
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return RGB{R: float64(v >> 16 & 0xff), G: float64(v >> 8 & 0xff), B: float64(v & 0xff)}, nil
}

// Hex renders the colour as #rrggbb, rounding each channel.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

// ColorScale maps a monthly price onto a colour between two anchors. The
// zero value is not usable; build one with NewColorScale.
type ColorScale struct {
	lo, hi    float64
	low, high RGB
}

// NewColorScale builds the scale from the style's price domain and anchors.
func NewColorScale(ps config.PriceScale) (*ColorScale, error) {
	if ps.High <= ps.Low {
		return nil, fmt.Errorf("invalid price domain [%g, %g]", ps.Low, ps.High)
	}
	low, err := ParseHex(ps.LowColor)
	if err != nil {
		return nil, err
	}
	high, err := ParseHex(ps.HighColor)
	if err != nil {
		return nil, err
	}
	return &ColorScale{lo: ps.Low, hi: ps.High, low: low, high: high}, nil
}

// Position returns where a price sits in the domain, clamped to [0, 1].
func (s *ColorScale) Position(price float64) float64 {
	t := (price - s.lo) / (s.hi - s.lo)
	return math.Max(0, math.Min(1, t))
}

// Color interpolates each channel linearly between the anchors.
func (s *ColorScale) Color(price float64) RGB {
	t := s.Position(price)
	return RGB{
		R: s.low.R + (s.high.R-s.low.R)*t,
		G: s.low.G + (s.high.G-s.low.G)*t,
		B: s.low.B + (s.high.B-s.low.B)*t,
	}
}

// Hex is shorthand for Color(price).Hex()
func (s *ColorScale) Hex(price float64) string {
	return s.Color(price).Hex()
}
