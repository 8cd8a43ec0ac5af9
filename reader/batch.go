package reader

// DefaultBatchSize is the number of rows per batch when none is configured.
const DefaultBatchSize = 8192

// Batch is a horizontal slice of the projected lineitem columns.
//
// Every slice holds exactly Len values and row i of the batch is at index i of
// each slice. A batch is owned by the BatchSource that produced it and its
// buffers are overwritten by the next call to Next; consumers must treat it as
// read-only and must not retain it.
type Batch struct {
	Len int

	ReturnFlag []byte
	LineStatus []byte

	Quantity      []float64
	ExtendedPrice []float64
	Discount      []float64
	Tax           []float64

	// ShipDate holds days since 1970-01-01.
	ShipDate []int32
	// ShipDateNulls marks rows whose ship date is null. It is nil when the
	// batch holds no null dates.
	ShipDateNulls []bool

	nullsBuf []bool
}

func newBatch(capacity int) *Batch {
	return &Batch{
		ReturnFlag:    make([]byte, 0, capacity),
		LineStatus:    make([]byte, 0, capacity),
		Quantity:      make([]float64, 0, capacity),
		ExtendedPrice: make([]float64, 0, capacity),
		Discount:      make([]float64, 0, capacity),
		Tax:           make([]float64, 0, capacity),
		ShipDate:      make([]int32, 0, capacity),
	}
}

// reset resizes every buffer to n rows, reusing capacity.
func (b *Batch) reset(n int) {
	b.Len = n
	b.ReturnFlag = b.ReturnFlag[:n]
	b.LineStatus = b.LineStatus[:n]
	b.Quantity = b.Quantity[:n]
	b.ExtendedPrice = b.ExtendedPrice[:n]
	b.Discount = b.Discount[:n]
	b.Tax = b.Tax[:n]
	b.ShipDate = b.ShipDate[:n]
	b.ShipDateNulls = nil
}

// nullBuffer returns a cleared null bitmap of Len rows backed by a reused buffer.
func (b *Batch) nullBuffer() []bool {
	if cap(b.nullsBuf) < b.Len {
		b.nullsBuf = make([]bool, b.Len)
	}
	buf := b.nullsBuf[:b.Len]
	clear(buf)
	return buf
}

// NewBatch builds a batch over caller-supplied columns. It is meant for tests
// and tools that already hold decoded data; all slices must share one length.
func NewBatch(returnFlag, lineStatus []byte, quantity, extendedPrice, discount, tax []float64, shipDate []int32) *Batch {
	return &Batch{
		Len:           len(shipDate),
		ReturnFlag:    returnFlag,
		LineStatus:    lineStatus,
		Quantity:      quantity,
		ExtendedPrice: extendedPrice,
		Discount:      discount,
		Tax:           tax,
		ShipDate:      shipDate,
	}
}
