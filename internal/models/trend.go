package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// UnmarshalJSON decodes the flat wire form {"week": "Jan 07", "Waigani": 4400, "Boroko": null}.
func (p *TrendPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Week = ""
	p.Values = make(map[string]*float64, len(raw))
	for key, value := range raw {
		if key == "week" {
			if err := json.Unmarshal(value, &p.Week); err != nil {
				return fmt.Errorf("invalid week label: %w", err)
			}
			continue
		}

		var v *float64
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("invalid value for series %q: %w", key, err)
		}
		p.Values[key] = v
	}
	return nil
}

// MarshalJSON encodes the point back into its flat wire form
func (p TrendPoint) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Values)+1)
	for key, value := range p.Values {
		out[key] = value
	}
	out["week"] = p.Week
	return json.Marshal(out)
}

// SeriesNames returns the distinct series across points in first-seen order.
// Names first seen at the same point are sorted for a stable result.
func SeriesNames(points []TrendPoint) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range points {
		var fresh []string
		for name := range p.Values {
			if !seen[name] {
				seen[name] = true
				fresh = append(fresh, name)
			}
		}
		sort.Strings(fresh)
		names = append(names, fresh...)
	}
	return names
}
