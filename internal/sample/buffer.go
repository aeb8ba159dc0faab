package sample

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when a caller asks for more rows than the buffer
// currently holds.
var ErrOutOfRange = errors.New("requested rows exceed buffer row count")

// minCapacityRows is the floor applied on the first growth of a buffer
// created with a zero or tiny capacity hint.
const minCapacityRows = 16

// Buffer is an append-only store of Samples laid out row-major in a single
// flat slice. The logical row count is tracked separately from the allocated
// capacity: appends beyond capacity reallocate to at least double the
// current capacity and copy existing rows, amortising appends to O(1).
//
// A Buffer is owned by a single writer and is not safe for concurrent use;
// the engine store serialises access.
type Buffer struct {
	data []float64 // len == capRows*Width
	rows int
	cap  int // capacity in rows
}

// NewBuffer returns an empty buffer pre-sized to hold capacityHint rows
// before its first reallocation.
func NewBuffer(capacityHint int) *Buffer {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Buffer{
		data: make([]float64, capacityHint*Width),
		cap:  capacityHint,
	}
}

// Rows returns the logical row count.
func (b *Buffer) Rows() int { return b.rows }

// Cap returns the current row capacity.
func (b *Buffer) Cap() int { return b.cap }

// Put appends one sample, growing the backing store if full. Growth builds
// the new backing slice before installing it, so a failed allocation (which
// panics in Go) leaves the prior buffer state unchanged.
func (b *Buffer) Put(s Sample) {
	if b.rows == b.cap {
		b.grow()
	}
	row := s.Row()
	copy(b.data[b.rows*Width:(b.rows+1)*Width], row[:])
	b.rows++
}

func (b *Buffer) grow() {
	newCap := b.cap * 2
	if newCap < minCapacityRows {
		newCap = minCapacityRows
	}
	newData := make([]float64, newCap*Width)
	copy(newData, b.data[:b.rows*Width])
	b.data = newData
	b.cap = newCap
}

// Samples returns all logical rows in insertion order as a fresh slice.
// Unused capacity is never exposed.
func (b *Buffer) Samples() []Sample {
	out := make([]Sample, b.rows)
	for i := 0; i < b.rows; i++ {
		out[i] = FromRow(b.data[i*Width : (i+1)*Width])
	}
	return out
}

// Last returns the most recently appended sample, or false if the buffer is
// empty.
func (b *Buffer) Last() (Sample, bool) {
	if b.rows == 0 {
		return Sample{}, false
	}
	return FromRow(b.data[(b.rows-1)*Width : b.rows*Width]), true
}

// LastN returns the most recent n rows restricted to the given column
// indices, in insertion order. It fails with ErrOutOfRange when n exceeds
// the logical row count and rejects invalid column indices.
func (b *Buffer) LastN(n int, cols []int) ([][]float64, error) {
	if n < 0 || n > b.rows {
		return nil, fmt.Errorf("last %d of %d rows: %w", n, b.rows, ErrOutOfRange)
	}
	for _, c := range cols {
		if c < 0 || c >= Width {
			return nil, fmt.Errorf("column index %d out of range [0,%d)", c, Width)
		}
	}
	out := make([][]float64, n)
	start := b.rows - n
	for i := 0; i < n; i++ {
		row := b.data[(start+i)*Width : (start+i+1)*Width]
		out[i] = make([]float64, len(cols))
		for j, c := range cols {
			out[i][j] = row[c]
		}
	}
	return out, nil
}

// Clear resets the logical row count to zero. Capacity is retained so the
// next trial appends without reallocating.
func (b *Buffer) Clear() {
	b.rows = 0
}
