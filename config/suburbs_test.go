package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSuburbNames(t *testing.T) {
	names := GetSuburbNames()
	assert.Len(t, names, len(SupportedSuburbs))
	assert.Contains(t, names, "Waigani")
	assert.Contains(t, names, "Eight Mile")
}

func TestGetSuburbByName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		benchmark float64
	}{
		{name: "Exact name", input: "Boroko", expected: "Boroko", benchmark: 3150},
		{name: "Lower case", input: "gordons", expected: "Gordons", benchmark: 5957},
		{name: "Extra whitespace", input: "  Six   Mile ", expected: "Six Mile", benchmark: 1450},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suburb := GetSuburbByName(tt.input)
			require.NotNil(t, suburb)
			assert.Equal(t, tt.expected, suburb.Name)
			assert.Equal(t, tt.benchmark, suburb.Benchmark)
		})
	}

	assert.Nil(t, GetSuburbByName("Moresby Hills"))
}

func TestNormalizeSuburb(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Waigani", expected: "waigani"},
		{input: "Eight Mile", expected: "eight mile"},
		{input: " Six  Mile ", expected: "six mile"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSuburb(tt.input))
		})
	}
}

func TestLoadStyle(t *testing.T) {
	t.Run("Empty path yields defaults", func(t *testing.T) {
		style, err := LoadStyle("")
		require.NoError(t, err)
		assert.Equal(t, DefaultStyle(), style)
	})

	t.Run("File overrides selected fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "style.yaml")
		content := "price_scale:\n  low: 500\n  high_color: \"#000000\"\nheatmap:\n  width: 800\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		style, err := LoadStyle(path)
		require.NoError(t, err)
		assert.Equal(t, 500.0, style.PriceScale.Low)
		assert.Equal(t, 7000.0, style.PriceScale.High)
		assert.Equal(t, "#000000", style.PriceScale.HighColor)
		assert.Equal(t, 800.0, style.Heatmap.Width)
		assert.Equal(t, 400.0, style.Heatmap.Height)
	})

	t.Run("Invalid scale is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "style.yaml")
		require.NoError(t, os.WriteFile(path, []byte("price_scale:\n  low: 9000\n"), 0644))

		_, err := LoadStyle(path)
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadStyle(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestStyleValidate(t *testing.T) {
	style := DefaultStyle()
	assert.NoError(t, style.Validate())

	bad := DefaultStyle()
	bad.PriceScale.LowColor = "green"
	assert.Error(t, bad.Validate())

	bad = DefaultStyle()
	bad.Heatmap.Width = 0
	assert.Error(t, bad.Validate())

	bad = DefaultStyle()
	bad.Trend.Height = -1
	assert.Error(t, bad.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "5250", cfg.Server.Port)
	assert.Equal(t, "1.2s", cfg.Scrape.PollInterval.String())
	assert.Equal(t, []string{"hausples", "professionals", "agencies"}, cfg.Scrape.DefaultSources)
	assert.Equal(t, 240, cfg.Synthetic.Listings)
}
