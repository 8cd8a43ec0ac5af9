// Package reference computes the lineitem aggregation the slow, obvious way:
// every row is read as a map, filtered and added to a map of groups. Its
// results are the yardstick the batch pipeline is checked against.
package reference

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vegasq/q1scan/query"
	"github.com/vegasq/q1scan/reader"
)

type groupKey struct {
	flag, status byte
}

type group struct {
	sumQty, sumPrice, sumDiscPrice, sumCharge, sumDisc float64
	count                                              uint64
}

// Run aggregates every row of the files at paths whose ship date is at or
// before threshold (days since 1970-01-01). Flags and statuses outside domain
// are counted under the first value of their dimension.
func Run(paths []string, spec reader.ColumnSpec, domain query.Domain, threshold int32) ([]query.Row, error) {
	groups := make(map[groupKey]*group)

	for _, path := range paths {
		if err := runFile(path, spec, domain, threshold, groups); err != nil {
			return nil, err
		}
	}

	rows := make([]query.Row, 0, len(groups))
	for key, g := range groups {
		n := float64(g.count)
		rows = append(rows, query.Row{
			ReturnFlag:   string([]byte{key.flag}),
			LineStatus:   string([]byte{key.status}),
			SumQty:       g.sumQty,
			SumBasePrice: g.sumPrice,
			SumDiscPrice: g.sumDiscPrice,
			SumCharge:    g.sumCharge,
			AvgQty:       g.sumQty / n,
			AvgPrice:     g.sumPrice / n,
			AvgDisc:      g.sumDisc / n,
			Count:        g.count,
		})
	}
	query.SortRows(rows)
	return rows, nil
}

func runFile(path string, spec reader.ColumnSpec, domain query.Domain, threshold int32, groups map[groupKey]*group) error {
	r, err := reader.NewReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	scales, err := decimalScales(r, spec)
	if err != nil {
		return err
	}

	return r.ForEachRow(func(row map[string]interface{}) error {
		date, ok := toDays(row[spec.ShipDate])
		if !ok || date > threshold {
			return nil
		}

		key := groupKey{
			flag:   normalize(toByte(row[spec.ReturnFlag]), domain.ReturnFlags),
			status: normalize(toByte(row[spec.LineStatus]), domain.LineStatuses),
		}
		g, found := groups[key]
		if !found {
			g = &group{}
			groups[key] = g
		}

		qty := toFloat(row[spec.Quantity], scales[0])
		price := toFloat(row[spec.ExtendedPrice], scales[1])
		disc := toFloat(row[spec.Discount], scales[2])
		tax := toFloat(row[spec.Tax], scales[3])

		g.sumQty += qty
		g.sumPrice += price
		g.sumDiscPrice += price * (1 - disc)
		g.sumCharge += price * (1 - disc) * (1 + tax)
		g.sumDisc += disc
		g.count++
		return nil
	})
}

// decimalScales returns the divisor of each measure column, 1 unless the
// column is a DECIMAL.
func decimalScales(r *reader.Reader, spec reader.ColumnSpec) ([4]float64, error) {
	var scales [4]float64
	for i, name := range []string{spec.Quantity, spec.ExtendedPrice, spec.Discount, spec.Tax} {
		leaf, ok := r.Schema().Lookup(name)
		if !ok {
			return scales, &reader.ColumnNotFoundError{Name: name, Path: r.Path()}
		}
		scales[i] = 1
		if lt := leaf.Node.Type().LogicalType(); lt != nil && lt.Decimal != nil {
			scales[i] = math.Pow10(int(lt.Decimal.Scale))
		}
	}
	return scales, nil
}

func normalize(b byte, values string) byte {
	for i := 0; i < len(values); i++ {
		if values[i] == b {
			return b
		}
	}
	return values[0]
}

func toByte(v interface{}) byte {
	switch x := v.(type) {
	case string:
		if len(x) > 0 {
			return x[0]
		}
	case []byte:
		if len(x) > 0 {
			return x[0]
		}
	case int32:
		return byte(x)
	case int64:
		return byte(x)
	}
	return 0
}

func toFloat(v interface{}, scale float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int32:
		return float64(x) / scale
	case int64:
		return float64(x) / scale
	}
	return 0
}

func toDays(v interface{}) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int64:
		return int32(x), true
	case time.Time:
		return reader.DaysOf(x), true
	}
	return 0, false
}

// ErrMismatch is returned by Compare when two results differ.
var ErrMismatch = errors.New("results differ")

// Compare checks that got and want hold the same groups in the same order,
// with every sum and average within relative tolerance tol.
func Compare(got, want []query.Row, tol float64) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %d groups, want %d", ErrMismatch, len(got), len(want))
	}

	for i := range got {
		g, w := got[i], want[i]
		if g.ReturnFlag != w.ReturnFlag || g.LineStatus != w.LineStatus {
			return fmt.Errorf("%w: row %d is (%s,%s), want (%s,%s)", ErrMismatch, i,
				g.ReturnFlag, g.LineStatus, w.ReturnFlag, w.LineStatus)
		}
		if g.Count != w.Count {
			return fmt.Errorf("%w: group (%s,%s) count %d, want %d", ErrMismatch, g.ReturnFlag, g.LineStatus, g.Count, w.Count)
		}

		fields := []struct {
			name      string
			got, want float64
		}{
			{"sum_qty", g.SumQty, w.SumQty},
			{"sum_base_price", g.SumBasePrice, w.SumBasePrice},
			{"sum_disc_price", g.SumDiscPrice, w.SumDiscPrice},
			{"sum_charge", g.SumCharge, w.SumCharge},
			{"avg_qty", g.AvgQty, w.AvgQty},
			{"avg_price", g.AvgPrice, w.AvgPrice},
			{"avg_disc", g.AvgDisc, w.AvgDisc},
		}
		for _, f := range fields {
			if !WithinTolerance(f.got, f.want, tol) {
				return fmt.Errorf("%w: group (%s,%s) %s = %v, want %v", ErrMismatch,
					g.ReturnFlag, g.LineStatus, f.name, f.got, f.want)
			}
		}
	}
	return nil
}

// WithinTolerance reports whether a and b differ by at most tol relative to
// the larger magnitude. Values both within tol of zero compare equal.
func WithinTolerance(a, b, tol float64) bool {
	diff := math.Abs(a - b)
	if diff <= tol {
		return true
	}
	return diff <= tol*math.Max(math.Abs(a), math.Abs(b))
}
