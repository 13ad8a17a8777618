package market

import (
	"encoding/json"
	"math"
	"sort"

	"rentdash/server/internal/models"
)

// Balance is the supply/demand verdict for a suburb
type Balance string

const (
	Balanced   Balance = "Balanced"
	HighDemand Balance = "High-Demand"
	Oversupply Balance = "Oversupply"
)

const (
	highDemandRatio = 1.3
	oversupplyRatio = 0.7
)

// SupplyDemand is one row of the supply/demand panel.
type SupplyDemand struct {
	Suburb      string  `json:"suburb"`
	Supply      int     `json:"supply"`
	DemandScore float64 `json:"demand_score"`
	SupplyPct   float64 `json:"supply_pct"`
	Ratio       float64 `json:"-"`
	Balance     Balance `json:"balance"`
}

// MarshalJSON writes an unbounded ratio as null, which JSON cannot carry
// as a number.
func (sd SupplyDemand) MarshalJSON() ([]byte, error) {
	type row SupplyDemand
	var ratio *float64
	if !math.IsInf(sd.Ratio, 0) && !math.IsNaN(sd.Ratio) {
		ratio = &sd.Ratio
	}
	return json.Marshal(struct {
		row
		Ratio *float64 `json:"ratio"`
	}{row(sd), ratio})
}

// ClassifySupplyDemand normalises supply against the cohort maximum and
// labels the demand/supply ratio. Zero supply counts as an unbounded ratio.
func ClassifySupplyDemand(demandScore float64, supply, maxSupply int) SupplyDemand {
	var supplyPct float64
	if maxSupply > 0 {
		supplyPct = math.Min(100, float64(supply)/float64(maxSupply)*100)
	}

	ratio := math.Inf(1)
	if supplyPct > 0 {
		ratio = demandScore / supplyPct
	}

	balance := Balanced
	switch {
	case ratio > highDemandRatio:
		balance = HighDemand
	case ratio < oversupplyRatio:
		balance = Oversupply
	}

	return SupplyDemand{
		Supply:      supply,
		DemandScore: demandScore,
		SupplyPct:   supplyPct,
		Ratio:       ratio,
		Balance:     balance,
	}
}

// SupplyDemandPanel classifies every suburb against the largest supply in
// the set, ordered by supply descending then name.
func SupplyDemandPanel(stats []models.SuburbStat) []SupplyDemand {
	maxSupply := 0
	for _, s := range stats {
		if s.Supply > maxSupply {
			maxSupply = s.Supply
		}
	}

	rows := make([]SupplyDemand, 0, len(stats))
	for _, s := range stats {
		row := ClassifySupplyDemand(s.DemandScore, s.Supply, maxSupply)
		row.Suburb = s.Suburb
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Supply != rows[j].Supply {
			return rows[i].Supply > rows[j].Supply
		}
		return rows[i].Suburb < rows[j].Suburb
	})
	return rows
}
