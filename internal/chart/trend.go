package chart

import (
	"errors"
	"math"

	"rentdash/server/config"
	"rentdash/server/internal/models"
)

// Gridlines is the number of horizontal reference lines on the trend chart
const Gridlines = 4

var ErrNoData = errors.New("no trend data")

type Gridline struct {
	Value float64 `json:"value"`
	Y     float64 `json:"y"`
}

// Axis is the shared value range of every series on the chart
type Axis struct {
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Gridlines []Gridline `json:"gridlines"`
}

type PlotPoint struct {
	Index int     `json:"index"`
	Week  string  `json:"week"`
	Value float64 `json:"value"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Series holds the plotted points of one suburb. Segments are the runs of
// consecutive present values; a missing week ends a segment.
type Series struct {
	Name     string        `json:"name"`
	Points   []PlotPoint   `json:"points"`
	Segments [][]PlotPoint `json:"segments"`
}

type TrendChart struct {
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Weeks  []string  `json:"weeks"`
	X      []float64 `json:"x"`
	Axis   Axis      `json:"axis"`
	Series []Series  `json:"series"`
}

// TrendAxisScaler lays out a multi-series weekly chart on a fixed plot area.
type TrendAxisScaler struct {
	width, height float64
}

func NewTrendAxisScaler(style config.TrendStyle) *TrendAxisScaler {
	return &TrendAxisScaler{width: style.Width, height: style.Height}
}

// Scale computes the axis and plot positions for the given series names, or
// for every series present in points when names is empty. It returns
// ErrNoData for fewer than two points or when no value is present at all.
func (s *TrendAxisScaler) Scale(points []models.TrendPoint, names []string) (*TrendChart, error) {
	if len(points) < 2 {
		return nil, ErrNoData
	}
	if len(names) == 0 {
		names = models.SeriesNames(points)
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		for _, name := range names {
			if v := p.Values[name]; v != nil {
				min = math.Min(min, *v)
				max = math.Max(max, *v)
			}
		}
	}
	if math.IsInf(min, 1) {
		return nil, ErrNoData
	}

	chart := &TrendChart{
		Width:  s.width,
		Height: s.height,
		Weeks:  make([]string, len(points)),
		X:      make([]float64, len(points)),
		Axis:   Axis{Min: min, Max: max},
	}

	last := float64(len(points) - 1)
	for i, p := range points {
		chart.Weeks[i] = p.Week
		chart.X[i] = float64(i) / last * s.width
	}

	for i := 0; i < Gridlines; i++ {
		v := min + (max-min)*float64(i)/float64(Gridlines-1)
		if i == Gridlines-1 {
			v = max
		}
		chart.Axis.Gridlines = append(chart.Axis.Gridlines, Gridline{Value: v, Y: s.y(v, min, max)})
	}

	for _, name := range names {
		series := Series{Name: name, Points: []PlotPoint{}, Segments: [][]PlotPoint{}}
		var run []PlotPoint
		for i, p := range points {
			v := p.Values[name]
			if v == nil {
				if len(run) > 0 {
					series.Segments = append(series.Segments, run)
					run = nil
				}
				continue
			}
			pt := PlotPoint{Index: i, Week: p.Week, Value: *v, X: chart.X[i], Y: s.y(*v, min, max)}
			series.Points = append(series.Points, pt)
			run = append(run, pt)
		}
		if len(run) > 0 {
			series.Segments = append(series.Segments, run)
		}
		chart.Series = append(chart.Series, series)
	}

	return chart, nil
}

// y maps a value onto the plot with max at the top. A flat range sits in
// the vertical centre.
func (s *TrendAxisScaler) y(v, min, max float64) float64 {
	if max == min {
		return s.height / 2
	}
	return s.height - (v-min)/(max-min)*s.height
}
