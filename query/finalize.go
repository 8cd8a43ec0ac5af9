package query

import (
	"sort"
)

// Row is one finalized group of the result.
type Row struct {
	ReturnFlag   string  `json:"l_returnflag"`
	LineStatus   string  `json:"l_linestatus"`
	SumQty       float64 `json:"sum_qty"`
	SumBasePrice float64 `json:"sum_base_price"`
	SumDiscPrice float64 `json:"sum_disc_price"`
	SumCharge    float64 `json:"sum_charge"`
	AvgQty       float64 `json:"avg_qty"`
	AvgPrice     float64 `json:"avg_price"`
	AvgDisc      float64 `json:"avg_disc"`
	Count        uint64  `json:"count_order"`
}

// Finalize merges the banks and returns one row per non-empty group, ordered
// by (ReturnFlag, LineStatus). The aggregator state is left unchanged.
func (a *Aggregator) Finalize() []Row {
	groups := a.merged()

	rows := make([]Row, 0, numGroups)
	for slot := range groups {
		g := &groups[slot]
		if g.count == 0 {
			continue
		}
		flag, status := a.keys.Key(slot)
		n := float64(g.count)
		rows = append(rows, Row{
			ReturnFlag:   string([]byte{flag}),
			LineStatus:   string([]byte{status}),
			SumQty:       g.sumQty,
			SumBasePrice: g.sumBasePrice,
			SumDiscPrice: g.sumDiscPrice,
			SumCharge:    g.sumCharge,
			AvgQty:       g.sumQty / n,
			AvgPrice:     g.sumBasePrice / n,
			AvgDisc:      g.sumDiscount / n,
			Count:        g.count,
		})
	}

	SortRows(rows)
	return rows
}

// SortRows orders rows ascending by (ReturnFlag, LineStatus).
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ReturnFlag != rows[j].ReturnFlag {
			return rows[i].ReturnFlag < rows[j].ReturnFlag
		}
		return rows[i].LineStatus < rows[j].LineStatus
	})
}
