package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdash/server/config"
	"rentdash/server/internal/models"
)

func newScale(t *testing.T) *ColorScale {
	t.Helper()
	s, err := NewColorScale(config.PriceScale{Low: 1000, High: 7000, LowColor: "#000a14", HighColor: "#c8dcf0"})
	require.NoError(t, err)
	return s
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#4ade80")
	require.NoError(t, err)
	assert.Equal(t, RGB{R: 0x4a, G: 0xde, B: 0x80}, c)
	assert.Equal(t, "#4ade80", c.Hex())

	for _, bad := range []string{"", "#fff", "#gggggg", "4ade8"} {
		_, err := ParseHex(bad)
		assert.Error(t, err, bad)
	}
}

func TestColorScale_Anchors(t *testing.T) {
	s := newScale(t)
	low := RGB{R: 0, G: 10, B: 20}
	high := RGB{R: 200, G: 220, B: 240}

	assert.Equal(t, low, s.Color(1000))
	assert.Equal(t, low, s.Color(200))
	assert.Equal(t, low, s.Color(-50))
	assert.Equal(t, high, s.Color(7000))
	assert.Equal(t, high, s.Color(25000))
}

func TestColorScale_Midpoint(t *testing.T) {
	s := newScale(t)
	assert.Equal(t, RGB{R: 100, G: 115, B: 130}, s.Color(4000))
	assert.Equal(t, "#647382", s.Hex(4000))
}

func TestColorScale_Monotonic(t *testing.T) {
	s := newScale(t)
	prev := s.Position(0)
	for p := 0.0; p <= 8000; p += 250 {
		pos := s.Position(p)
		assert.GreaterOrEqual(t, pos, prev)
		assert.GreaterOrEqual(t, pos, 0.0)
		assert.LessOrEqual(t, pos, 1.0)
		prev = pos
	}
}

func TestNewColorScale_Invalid(t *testing.T) {
	_, err := NewColorScale(config.PriceScale{Low: 7000, High: 1000, LowColor: "#000000", HighColor: "#ffffff"})
	assert.Error(t, err)

	_, err = NewColorScale(config.PriceScale{Low: 1000, High: 7000, LowColor: "green", HighColor: "#ffffff"})
	assert.Error(t, err)
}

func ptr(v float64) *float64 {
	return &v
}

func TestTrendAxisScaler_Scale(t *testing.T) {
	scaler := NewTrendAxisScaler(config.TrendStyle{Width: 300, Height: 100})
	points := []models.TrendPoint{
		{Week: "w1", Values: map[string]*float64{"Waigani": ptr(4000), "Boroko": ptr(3000)}},
		{Week: "w2", Values: map[string]*float64{"Waigani": ptr(4600), "Boroko": nil}},
		{Week: "w3", Values: map[string]*float64{"Waigani": ptr(4300), "Boroko": ptr(3100)}},
		{Week: "w4", Values: map[string]*float64{"Waigani": ptr(4500)}},
	}

	c, err := scaler.Scale(points, []string{"Waigani", "Boroko"})
	require.NoError(t, err)

	assert.Equal(t, 3000.0, c.Axis.Min)
	assert.Equal(t, 4600.0, c.Axis.Max)
	assert.Equal(t, []float64{0, 100, 200, 300}, c.X)
	assert.Equal(t, []string{"w1", "w2", "w3", "w4"}, c.Weeks)

	require.Len(t, c.Axis.Gridlines, Gridlines)
	assert.Equal(t, 3000.0, c.Axis.Gridlines[0].Value)
	assert.Equal(t, 4600.0, c.Axis.Gridlines[3].Value)
	assert.InDelta(t, 3000+1600.0/3, c.Axis.Gridlines[1].Value, 1e-9)
	assert.Equal(t, 100.0, c.Axis.Gridlines[0].Y)
	assert.Equal(t, 0.0, c.Axis.Gridlines[3].Y)

	require.Len(t, c.Series, 2)
	waigani := c.Series[0]
	assert.Len(t, waigani.Points, 4)
	assert.Len(t, waigani.Segments, 1)
	assert.Equal(t, 0.0, waigani.Points[1].Y) // max at the top

	boroko := c.Series[1]
	require.Len(t, boroko.Points, 2)
	assert.Equal(t, 100.0, boroko.Points[0].Y) // min at the bottom
	assert.Equal(t, 0, boroko.Points[0].Index)
	assert.Equal(t, 2, boroko.Points[1].Index)
	require.Len(t, boroko.Segments, 2, "missing week breaks the line")
	assert.Len(t, boroko.Segments[0], 1)
	assert.Len(t, boroko.Segments[1], 1)
}

func TestTrendAxisScaler_MissingValuesAreNotZero(t *testing.T) {
	scaler := NewTrendAxisScaler(config.TrendStyle{Width: 100, Height: 100})
	c, err := scaler.Scale([]models.TrendPoint{
		{Week: "w1", Values: map[string]*float64{"Gerehu": ptr(1800), "Hohola": nil}},
		{Week: "w2", Values: map[string]*float64{"Gerehu": ptr(2000), "Hohola": ptr(1900)}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1800.0, c.Axis.Min)
	assert.Equal(t, 2000.0, c.Axis.Max)
}

func TestTrendAxisScaler_FlatRange(t *testing.T) {
	scaler := NewTrendAxisScaler(config.TrendStyle{Width: 100, Height: 80})
	c, err := scaler.Scale([]models.TrendPoint{
		{Week: "w1", Values: map[string]*float64{"Koki": ptr(2900)}},
		{Week: "w2", Values: map[string]*float64{"Koki": ptr(2900)}},
	}, nil)
	require.NoError(t, err)
	for _, g := range c.Axis.Gridlines {
		assert.Equal(t, 2900.0, g.Value)
		assert.Equal(t, 40.0, g.Y)
	}
	assert.Equal(t, 40.0, c.Series[0].Points[0].Y)
}

func TestTrendAxisScaler_NoData(t *testing.T) {
	scaler := NewTrendAxisScaler(config.DefaultStyle().Trend)

	_, err := scaler.Scale(nil, nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = scaler.Scale([]models.TrendPoint{{Week: "w1", Values: map[string]*float64{"Koki": ptr(1)}}}, nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = scaler.Scale([]models.TrendPoint{
		{Week: "w1", Values: map[string]*float64{"Koki": nil}},
		{Week: "w2", Values: map[string]*float64{"Koki": nil}},
	}, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestColorScale_Tiles(t *testing.T) {
	s := newScale(t)
	tiles := s.Tiles([]models.SuburbStat{
		{Suburb: "Gerehu", AvgPrice: 1000, Listings: 20},
		{Suburb: "Gordons", AvgPrice: 7000, Listings: 12},
		{Suburb: "Boroko", AvgPrice: 3500, Listings: 30},
	})

	require.Len(t, tiles, 3)
	assert.Equal(t, "Gordons", tiles[0].Suburb)
	assert.Equal(t, 100.0, tiles[0].BarPct)
	assert.Equal(t, "#c8dcf0", tiles[0].Color)
	assert.Equal(t, "Boroko", tiles[1].Suburb)
	assert.Equal(t, 50.0, tiles[1].BarPct)
	assert.Equal(t, s.Hex(3500), tiles[1].Color)
	assert.Equal(t, "#000a14", tiles[2].Color)
}
