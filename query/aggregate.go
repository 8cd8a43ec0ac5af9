package query

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/vegasq/q1scan/reader"
)

const (
	numFlags    = 3
	numStatuses = 2
	numGroups   = numFlags * numStatuses

	// numBanks must stay a power of two; bank selection masks the row index.
	numBanks = 4

	cacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
)

// ErrBatchShape is returned when the columns of a batch or its mask disagree
// on length.
var ErrBatchShape = errors.New("batch columns have mismatched lengths")

// groupState accumulates one group within one bank. It fills exactly one
// cache line; the fields written through the fused expressions come first.
type groupState struct {
	sumDiscPrice float64
	sumCharge    float64
	count        uint64
	sumQty       float64
	sumBasePrice float64
	sumDiscount  float64

	_ [cacheLineSize - 6*8]byte
}

func (g *groupState) add(qty, price, disc, tax float64) {
	discPrice := price * (1 - disc)
	g.sumDiscPrice += discPrice
	g.sumCharge += discPrice * (1 + tax)
	g.count++
	g.sumQty += qty
	g.sumBasePrice += price
	g.sumDiscount += disc
}

func (g *groupState) merge(o *groupState) {
	g.sumDiscPrice += o.sumDiscPrice
	g.sumCharge += o.sumCharge
	g.count += o.count
	g.sumQty += o.sumQty
	g.sumBasePrice += o.sumBasePrice
	g.sumDiscount += o.sumDiscount
}

// KeyMapper maps a (return flag, line status) byte pair to a group slot in
// [0, 6). It is total: bytes outside the domain map to index 0 of their
// dimension, so a corrupted value lands in a real group instead of failing.
type KeyMapper struct {
	flags    [256]uint8
	statuses [256]uint8
	domain   Domain
}

// NewKeyMapper builds the lookup tables for d. The domain must have passed
// Config.Validate.
func NewKeyMapper(d Domain) *KeyMapper {
	k := &KeyMapper{domain: d}
	for i := 0; i < numFlags; i++ {
		k.flags[d.ReturnFlags[i]] = uint8(i)
	}
	for i := 0; i < numStatuses; i++ {
		k.statuses[d.LineStatuses[i]] = uint8(i)
	}
	return k
}

// Slot returns flag_index*2 + status_index.
func (k *KeyMapper) Slot(flag, status byte) int {
	return int(k.flags[flag])*numStatuses + int(k.statuses[status])
}

// Key returns the domain values of a slot.
func (k *KeyMapper) Key(slot int) (flag, status byte) {
	return k.domain.ReturnFlags[slot/numStatuses], k.domain.LineStatuses[slot%numStatuses]
}

// Aggregator is the fused filter-aggregate stage. Rows are spread over
// numBanks independent banks by row index so that consecutive updates do not
// depend on each other; the banks are summed by Finalize.
type Aggregator struct {
	keys  *KeyMapper
	banks *[numBanks][numGroups]groupState
}

// NewAggregator returns a zeroed aggregator for domain d.
func NewAggregator(d Domain) *Aggregator {
	return &Aggregator{
		keys:  NewKeyMapper(d),
		banks: new([numBanks][numGroups]groupState),
	}
}

// Reset zeroes every bank.
func (a *Aggregator) Reset() {
	*a.banks = [numBanks][numGroups]groupState{}
}

// Aggregate adds every row of b selected by m to the banks. The lengths of all
// columns and of the mask are checked once per batch; a mismatch returns
// ErrBatchShape and leaves the banks untouched.
func (a *Aggregator) Aggregate(b *reader.Batch, m *Mask) error {
	n := b.Len
	if len(b.ReturnFlag) != n || len(b.LineStatus) != n ||
		len(b.Quantity) != n || len(b.ExtendedPrice) != n ||
		len(b.Discount) != n || len(b.Tax) != n || len(m.Bits) != n {
		return fmt.Errorf("%w: len %d, mask %d", ErrBatchShape, n, len(m.Bits))
	}

	flags := b.ReturnFlag[:n]
	statuses := b.LineStatus[:n]
	qty := b.Quantity[:n]
	price := b.ExtendedPrice[:n]
	disc := b.Discount[:n]
	tax := b.Tax[:n]
	bits := m.Bits[:n]

	fl := &a.keys.flags
	st := &a.keys.statuses
	b0, b1, b2, b3 := &a.banks[0], &a.banks[1], &a.banks[2], &a.banks[3]

	i := 0
	for ; i+numBanks <= n; i += numBanks {
		if bits[i] {
			b0[int(fl[flags[i]])*numStatuses+int(st[statuses[i]])].add(qty[i], price[i], disc[i], tax[i])
		}
		if bits[i+1] {
			b1[int(fl[flags[i+1]])*numStatuses+int(st[statuses[i+1]])].add(qty[i+1], price[i+1], disc[i+1], tax[i+1])
		}
		if bits[i+2] {
			b2[int(fl[flags[i+2]])*numStatuses+int(st[statuses[i+2]])].add(qty[i+2], price[i+2], disc[i+2], tax[i+2])
		}
		if bits[i+3] {
			b3[int(fl[flags[i+3]])*numStatuses+int(st[statuses[i+3]])].add(qty[i+3], price[i+3], disc[i+3], tax[i+3])
		}
	}
	for ; i < n; i++ {
		if bits[i] {
			a.banks[i&(numBanks-1)][int(fl[flags[i]])*numStatuses+int(st[statuses[i]])].add(qty[i], price[i], disc[i], tax[i])
		}
	}
	return nil
}

// merged sums the banks into a single set of groups.
func (a *Aggregator) merged() [numGroups]groupState {
	var out [numGroups]groupState
	for bank := range a.banks {
		for g := range a.banks[bank] {
			out[g].merge(&a.banks[bank][g])
		}
	}
	return out
}

// mergeFrom adds the accumulated state of o into a. Both must use the same domain.
func (a *Aggregator) mergeFrom(o *Aggregator) {
	for bank := range a.banks {
		for g := range a.banks[bank] {
			a.banks[bank][g].merge(&o.banks[bank][g])
		}
	}
}
