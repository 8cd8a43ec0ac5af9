package query

import (
	"github.com/vegasq/q1scan/reader"
)

// Mask marks the rows of one batch that pass the predicate.
type Mask struct {
	Bits  []bool
	Count int
}

// NewMask returns a mask with room for capacity rows.
func NewMask(capacity int) *Mask {
	return &Mask{Bits: make([]bool, 0, capacity)}
}

// resize sets the mask length to n, growing the buffer only when needed.
func (m *Mask) resize(n int) {
	if cap(m.Bits) < n {
		m.Bits = make([]bool, n)
	}
	m.Bits = m.Bits[:n]
	m.Count = 0
}

// Predicate is the ship date filter: date <= Threshold.
type Predicate struct {
	// Threshold is in days since 1970-01-01.
	Threshold int32
}

// Evaluate fills m with the predicate result for every row of b and counts
// the matches. Null dates never match. b is not modified.
func (p Predicate) Evaluate(b *reader.Batch, m *Mask) {
	m.resize(b.Len)

	dates := b.ShipDate[:b.Len]
	bits := m.Bits[:len(dates)]
	t := p.Threshold

	count := 0
	for i, d := range dates {
		ok := d <= t
		bits[i] = ok
		count += b2i(ok)
	}

	if nulls := b.ShipDateNulls; nulls != nil {
		nulls = nulls[:len(dates)]
		for i, null := range nulls {
			if null && bits[i] {
				bits[i] = false
				count--
			}
		}
	}

	m.Count = count
}

// b2i compiles to a flag set rather than a branch.
func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
