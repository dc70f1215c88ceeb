package viewmodel

import (
	"fmt"
	"sort"
)

// SortKey selects the column the strike table is ordered by.
type SortKey string

const (
	SortStrike SortKey = "strike"
	SortNetGex SortKey = "net_gex"
	SortCallOI SortKey = "call_oi"
	SortPutOI  SortKey = "put_oi"
)

// ParseSortKey falls back to strike order for unknown keys.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortNetGex, SortCallOI, SortPutOI:
		return SortKey(s)
	default:
		return SortStrike
	}
}

// TableRow is one display row of the strike table.
type TableRow struct {
	Strike  string `json:"strike"`
	CallGex string `json:"call_gex"`
	PutGex  string `json:"put_gex"`
	NetGex  string `json:"net_gex"`
	CallOI  string `json:"call_oi"`
	PutOI   string `json:"put_oi"`
	Tone    string `json:"tone"`
}

// TableRows formats strikes into table rows ordered by key. Ties are broken
// by strike so identical input always yields identical output.
func TableRows(strikes []GexStrike, key SortKey, desc bool) []TableRow {
	sorted := append([]GexStrike(nil), strikes...)
	value := func(s GexStrike) float64 {
		switch key {
		case SortNetGex:
			return s.NetGex
		case SortCallOI:
			return s.CallOI
		case SortPutOI:
			return s.PutOI
		default:
			return s.Strike
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := value(sorted[i]), value(sorted[j])
		if a == b {
			return sorted[i].Strike < sorted[j].Strike
		}
		if desc {
			return a > b
		}
		return a < b
	})

	rows := make([]TableRow, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, TableRow{
			Strike:  FormatPrice(s.Strike),
			CallGex: FormatMagnitude(s.CallGex),
			PutGex:  FormatMagnitude(s.PutGex),
			NetGex:  FormatMagnitude(s.NetGex),
			CallOI:  fmt.Sprintf("%.0f", s.CallOI),
			PutOI:   fmt.Sprintf("%.0f", s.PutOI),
			Tone:    string(GexTone(s.NetGex).Sentiment),
		})
	}
	return rows
}
