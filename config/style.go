package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// PriceScale is the price domain and colour anchors shared by every
// price-coloured visual.
type PriceScale struct {
	Low       float64 `yaml:"low" json:"low"`
	High      float64 `yaml:"high" json:"high"`
	LowColor  string  `yaml:"low_color" json:"low_color"`
	HighColor string  `yaml:"high_color" json:"high_color"`
}

// HeatmapStyle is the logical canvas of the suburb bubble map.
type HeatmapStyle struct {
	Width       float64 `yaml:"width" json:"width"`
	Height      float64 `yaml:"height" json:"height"`
	MinRadius   float64 `yaml:"min_radius" json:"min_radius"`
	RadiusRange float64 `yaml:"radius_range" json:"radius_range"`
}

// TrendStyle is the plot area of the trend line chart.
type TrendStyle struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Style holds the visual constants of the dashboard. It is built once at
// startup and handed by value to the chart components.
type Style struct {
	PriceScale PriceScale   `yaml:"price_scale" json:"price_scale"`
	Heatmap    HeatmapStyle `yaml:"heatmap" json:"heatmap"`
	Trend      TrendStyle   `yaml:"trend" json:"trend"`
}

// DefaultStyle returns the built-in style.
func DefaultStyle() Style {
	return Style{
		PriceScale: PriceScale{
			Low:       1000,
			High:      7000,
			LowColor:  "#4ade80",
			HighColor: "#f87171",
		},
		Heatmap: HeatmapStyle{
			Width:       600,
			Height:      400,
			MinRadius:   8,
			RadiusRange: 22,
		},
		Trend: TrendStyle{
			Width:  640,
			Height: 240,
		},
	}
}

// LoadStyle returns the default style overlaid with the YAML file at path.
// An empty path yields the defaults.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if path == "" {
		return style, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Style{}, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Style{}, fmt.Errorf("failed to read style file: %w", err)
	}

	if err := yaml.Unmarshal(data, &style); err != nil {
		return Style{}, fmt.Errorf("failed to parse style file: %w", err)
	}

	if err := style.Validate(); err != nil {
		return Style{}, err
	}
	return style, nil
}

// Validate checks that the style describes a usable scale and canvas.
func (s Style) Validate() error {
	if s.PriceScale.High <= s.PriceScale.Low {
		return fmt.Errorf("invalid price scale: high (%.0f) must exceed low (%.0f)", s.PriceScale.High, s.PriceScale.Low)
	}
	for _, c := range []string{s.PriceScale.LowColor, s.PriceScale.HighColor} {
		if !hexColorPattern.MatchString(c) {
			return fmt.Errorf("invalid colour %q: want #rrggbb", c)
		}
	}
	if s.Heatmap.Width <= 0 || s.Heatmap.Height <= 0 {
		return fmt.Errorf("invalid heatmap canvas %gx%g", s.Heatmap.Width, s.Heatmap.Height)
	}
	if s.Heatmap.MinRadius < 0 || s.Heatmap.RadiusRange < 0 {
		return fmt.Errorf("invalid bubble radius: min %g, range %g", s.Heatmap.MinRadius, s.Heatmap.RadiusRange)
	}
	if s.Trend.Width <= 0 || s.Trend.Height <= 0 {
		return fmt.Errorf("invalid trend plot %gx%g", s.Trend.Width, s.Trend.Height)
	}
	return nil
}
