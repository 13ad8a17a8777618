// Package market scores listing prices against suburb benchmarks and
// classifies suburb supply against demand.
package market

import (
	"errors"
	"fmt"
	"math"

	"rentdash/server/internal/models"
)

var ErrInvalidBenchmark = errors.New("invalid benchmark average")

const (
	// DealThreshold and OverpricedThreshold are inclusive
	DealThreshold       = -15.0
	OverpricedThreshold = 15.0

	// MiddlemanThreshold is exclusive: exactly 40% above is not flagged
	MiddlemanThreshold = 40.0

	strongDealThreshold       = -30.0
	severeOverpricedThreshold = 30.0
)

// Classify compares a monthly price with the suburb benchmark average.
func Classify(price, benchmark float64) (models.MarketValue, error) {
	if benchmark <= 0 || math.IsNaN(benchmark) || math.IsInf(benchmark, 0) {
		return models.MarketValue{}, fmt.Errorf("%w: %v", ErrInvalidBenchmark, benchmark)
	}

	pct := (price - benchmark) * 100 / benchmark
	return models.MarketValue{
		Label:        LabelFor(pct),
		PctVsAvg:     pct,
		BenchmarkAvg: benchmark,
	}, nil
}

// LabelFor maps a percentage deviation from the benchmark to a label
func LabelFor(pct float64) models.MarketLabel {
	switch {
	case pct <= DealThreshold:
		return models.LabelDeal
	case pct >= OverpricedThreshold:
		return models.LabelOverpriced
	default:
		return models.LabelFair
	}
}

// IsMiddleman reports whether a market value warrants the middleman badge.
func IsMiddleman(mv *models.MarketValue) bool {
	return mv != nil && mv.Label == models.LabelOverpriced && mv.PctVsAvg > MiddlemanThreshold
}

// Summary returns a one-line human readable verdict.
func Summary(price float64, suburb string, mv models.MarketValue) string {
	abs := math.Abs(mv.PctVsAvg)
	switch mv.Label {
	case models.LabelDeal:
		quality := "DEAL"
		if mv.PctVsAvg <= strongDealThreshold {
			quality = "STRONG DEAL"
		}
		return fmt.Sprintf("%s: K%.0f/mo is %.1f%% below the %s average (K%.0f/mo)", quality, price, abs, suburb, mv.BenchmarkAvg)
	case models.LabelOverpriced:
		quality := "OVERPRICED"
		if mv.PctVsAvg >= severeOverpricedThreshold {
			quality = "SEVERELY OVERPRICED"
		}
		return fmt.Sprintf("%s: K%.0f/mo is %.1f%% above the %s average (K%.0f/mo)", quality, price, abs, suburb, mv.BenchmarkAvg)
	default:
		direction := "below"
		if mv.PctVsAvg > 0 {
			direction = "above"
		}
		return fmt.Sprintf("FAIR: K%.0f/mo is %.1f%% %s the %s average (K%.0f/mo)", price, abs, direction, suburb, mv.BenchmarkAvg)
	}
}
