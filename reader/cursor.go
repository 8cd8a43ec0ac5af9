package reader

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// columnCursor streams the values of one column chunk page by page.
//
// Values are decoded into the batch right after each ReadValues call so that
// byte array values never outlive the page buffer they point into.
type columnCursor struct {
	col    boundColumn
	slot   int
	pages  parquet.Pages
	page   parquet.Page
	values parquet.ValueReader
}

func (c *columnCursor) open(cc parquet.ColumnChunk, col boundColumn, slot int) {
	c.col = col
	c.slot = slot
	c.pages = cc.Pages()
	c.page = nil
	c.values = nil
}

// nextPage wraps pages.ReadPage and releases the page it replaces.
func (c *columnCursor) nextPage() error {
	c.releasePage()

	page, err := c.pages.ReadPage()
	if err != nil {
		return err
	}
	c.page = page
	c.values = page.Values()
	return nil
}

func (c *columnCursor) releasePage() {
	if c.page != nil {
		parquet.Release(c.page)
		c.page = nil
	}
	c.values = nil
}

// fill decodes exactly n rows into the cursor's column of b, starting at row 0.
// scratch must be non-empty; it is reused across reads.
func (c *columnCursor) fill(b *Batch, n int, scratch []parquet.Value) error {
	off := 0
	for off < n {
		if c.values == nil {
			if err := c.nextPage(); err != nil {
				if errors.Is(err, io.EOF) {
					return fmt.Errorf("%w: column %q ended after %d of %d rows", ErrRead, c.col.name, off, n)
				}
				return fmt.Errorf("%w: failed to read page of column %q: %w", ErrRead, c.col.name, err)
			}
		}

		want := n - off
		if want > len(scratch) {
			want = len(scratch)
		}
		k, err := c.values.ReadValues(scratch[:want])
		if k > 0 {
			c.decode(b, off, scratch[:k])
			off += k
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: failed to decode column %q: %w", ErrRead, c.col.name, err)
			}
			c.releasePage()
			continue
		}
		if k == 0 {
			c.releasePage()
		}
	}
	return nil
}

// decode converts values into the typed buffer for the cursor's slot.
func (c *columnCursor) decode(b *Batch, off int, values []parquet.Value) {
	switch c.slot {
	case colReturnFlag:
		decodeCategorical(b.ReturnFlag[off:], values, c.col.kind)
	case colLineStatus:
		decodeCategorical(b.LineStatus[off:], values, c.col.kind)
	case colQuantity:
		decodeMeasure(b.Quantity[off:], values, c.col.kind, c.col.scale)
	case colExtendedPrice:
		decodeMeasure(b.ExtendedPrice[off:], values, c.col.kind, c.col.scale)
	case colDiscount:
		decodeMeasure(b.Discount[off:], values, c.col.kind, c.col.scale)
	case colTax:
		decodeMeasure(b.Tax[off:], values, c.col.kind, c.col.scale)
	case colShipDate:
		decodeDate(b, off, values, c.col.kind)
	}
}

func (c *columnCursor) close() error {
	c.releasePage()
	if c.pages == nil {
		return nil
	}
	err := c.pages.Close()
	c.pages = nil
	return err
}

// decodeCategorical keeps the first byte of each value. Nulls and empty
// strings decode to 0, which the group key mapping treats as out of domain.
func decodeCategorical(dst []byte, values []parquet.Value, kind parquet.Kind) {
	for i, v := range values {
		switch {
		case v.IsNull():
			dst[i] = 0
		case kind == parquet.Int32:
			dst[i] = byte(v.Int32())
		default:
			if bs := v.ByteArray(); len(bs) > 0 {
				dst[i] = bs[0]
			} else {
				dst[i] = 0
			}
		}
	}
}

// decodeMeasure converts numeric values to float64. Null measures decode to 0.
func decodeMeasure(dst []float64, values []parquet.Value, kind parquet.Kind, scale float64) {
	switch kind {
	case parquet.Double:
		for i, v := range values {
			dst[i] = v.Double()
		}
	case parquet.Float:
		for i, v := range values {
			dst[i] = float64(v.Float())
		}
	case parquet.Int32:
		for i, v := range values {
			dst[i] = float64(v.Int32()) / scale
		}
	case parquet.Int64:
		for i, v := range values {
			dst[i] = float64(v.Int64()) / scale
		}
	}
}

func decodeDate(b *Batch, off int, values []parquet.Value, kind parquet.Kind) {
	dst := b.ShipDate[off:]
	for i, v := range values {
		if v.IsNull() {
			dst[i] = 0
			if b.ShipDateNulls == nil {
				b.ShipDateNulls = b.nullBuffer()
			}
			b.ShipDateNulls[off+i] = true
			continue
		}
		dst[i] = dateValue(v, kind)
	}
}

func dateValue(v parquet.Value, kind parquet.Kind) int32 {
	if kind == parquet.Int64 {
		return int32(v.Int64())
	}
	return v.Int32()
}
