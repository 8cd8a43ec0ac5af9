package lineitem

import (
	"math"
	"math/rand/v2"
)

// Date bounds of the TPC-H lineitem population.
var (
	startDate   = Days(1992, 1, 1)
	currentDate = Days(1995, 6, 17)
	endDate     = Days(1998, 12, 31)
)

// Generator produces lineitem rows whose value distributions follow the
// TPC-H dbgen rules for the columns the aggregation reads.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a deterministic generator for seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns the next row.
//
// Order dates are uniform over [1992-01-01, 1998-08-02]; an item ships 1 to
// 121 days later and is received 1 to 30 days after shipping. Items received
// by 1995-06-17 are returned (R) or accepted (A) with equal odds, later ones
// are not yet returned (N). Items shipped after 1995-06-17 are open (O).
func (g *Generator) Next() Row {
	orderDate := startDate + g.rng.Int32N(endDate-151-startDate+1)
	shipDate := orderDate + 1 + g.rng.Int32N(121)
	receiptDate := shipDate + 1 + g.rng.Int32N(30)

	flag := "N"
	if receiptDate <= currentDate {
		i := g.rng.IntN(2)
		flag = "RA"[i : i+1]
	}
	status := "F"
	if shipDate > currentDate {
		status = "O"
	}

	qty := float64(1 + g.rng.IntN(50))
	retail := float64(90000+g.rng.IntN(20001)+100*g.rng.IntN(1000)) / 100

	return Row{
		ReturnFlag:    flag,
		LineStatus:    status,
		Quantity:      qty,
		ExtendedPrice: math.Round(qty*retail*100) / 100,
		Discount:      float64(g.rng.IntN(11)) / 100,
		Tax:           float64(g.rng.IntN(9)) / 100,
		ShipDate:      shipDate,
	}
}

// Rows returns the next n rows.
func (g *Generator) Rows(n int) []Row {
	rows := make([]Row, n)
	g.Fill(rows)
	return rows
}

// Fill overwrites rows with the next len(rows) rows.
func (g *Generator) Fill(rows []Row) {
	for i := range rows {
		rows[i] = g.Next()
	}
}
