package buffer

import "gonum.org/v1/gonum/floats"

// Buffer defines a simple float buffer that acts like a constant size queue
type Buffer struct {
	size   int
	values []float64
}

// NewBuffer creates a new buffer.
func NewBuffer(size int) *Buffer {
	return &Buffer{
		size:   size,
		values: make([]float64, 0, size+1),
	}
}

// Push adds an element to the buffer and returns the evicted one, if any.
func (b *Buffer) Push(x float64) (float64, bool) {
	b.values = append(b.values, x)
	if len(b.values) > b.size {
		value := b.values[0]
		b.values = b.values[1:]
		return value, true
	}
	return 0, false
}

// Len returns the number of elements in the buffer.
func (b *Buffer) Len() int {
	return len(b.values)
}

// Get returns the buffer elements in the order they were added.
func (b *Buffer) Get() []float64 {
	vv := make([]float64, len(b.values))
	copy(vv, b.values)
	return vv
}

// GetReverse returns the buffer elements in the reverse order they were added.
func (b *Buffer) GetReverse() []float64 {
	size := len(b.values)
	vv := make([]float64, size)
	for i := size - 1; i >= 0; i-- {
		vv[size-1-i] = b.values[i]
	}
	return vv
}

// Mean returns the average of the buffer elements and false if it is empty.
func (b *Buffer) Mean() (float64, bool) {
	if len(b.values) == 0 {
		return 0, false
	}
	return floats.Sum(b.values) / float64(len(b.values)), true
}

// Clear drops all elements.
func (b *Buffer) Clear() {
	b.values = b.values[:0]
}
