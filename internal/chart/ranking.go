package chart

import (
	"sort"

	"rentdash/server/internal/models"
)

// Tile is a suburb card or ranking bar coloured on the shared price scale.
// BarPct is the average price relative to the most expensive suburb.
type Tile struct {
	Suburb   string  `json:"suburb"`
	AvgPrice float64 `json:"avg_price"`
	Listings int     `json:"listings"`
	Color    string  `json:"color"`
	BarPct   float64 `json:"bar_pct"`
}

// Tiles ranks suburbs by average price, most expensive first.
func (s *ColorScale) Tiles(stats []models.SuburbStat) []Tile {
	var top float64
	for _, st := range stats {
		if st.AvgPrice > top {
			top = st.AvgPrice
		}
	}

	tiles := make([]Tile, 0, len(stats))
	for _, st := range stats {
		t := Tile{
			Suburb:   st.Suburb,
			AvgPrice: st.AvgPrice,
			Listings: st.Listings,
			Color:    s.Hex(st.AvgPrice),
		}
		if top > 0 {
			t.BarPct = st.AvgPrice / top * 100
		}
		tiles = append(tiles, t)
	}

	sort.SliceStable(tiles, func(i, j int) bool {
		return tiles[i].AvgPrice > tiles[j].AvgPrice
	})
	return tiles
}
