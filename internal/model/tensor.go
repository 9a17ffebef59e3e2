package model

// Tensor is a dense float tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor creates a zero tensor of the given shape.
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{
		Shape: s,
		Data:  make([]float64, n),
	}
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := NewTensor(t.Shape...)
	copy(c.Data, t.Data)
	return c
}
