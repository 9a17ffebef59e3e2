package ml

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	Conv2DClass       = "Conv2D"
	MaxPooling2DClass = "MaxPooling2D"
	FlattenClass      = "Flatten"
	DropoutClass      = "Dropout"
	DenseClass        = "Dense"

	PaddingSame  = "same"
	PaddingValid = "valid"
)

// LayerSpec describes a layer of a sequential network.
// It doubles as the layer entry of the serialized topology.
type LayerSpec struct {
	ClassName  string  `json:"class_name"`
	Name       string  `json:"name"`
	Filters    int     `json:"filters,omitempty"`
	KernelSize int     `json:"kernel_size,omitempty"`
	Padding    string  `json:"padding,omitempty"`
	PoolSize   int     `json:"pool_size,omitempty"`
	Strides    int     `json:"strides,omitempty"`
	Units      int     `json:"units,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	Activation string  `json:"activation,omitempty"`
}

// Conv2D creates a convolution spec with 'same' padding.
func Conv2D(filters, kernel int, activation string) LayerSpec {
	return LayerSpec{
		ClassName:  Conv2DClass,
		Filters:    filters,
		KernelSize: kernel,
		Padding:    PaddingSame,
		Activation: activation,
	}
}

// MaxPooling2D creates a max pooling spec.
func MaxPooling2D(pool, strides int) LayerSpec {
	return LayerSpec{
		ClassName: MaxPooling2DClass,
		PoolSize:  pool,
		Strides:   strides,
	}
}

// Flatten creates a flatten spec.
func Flatten() LayerSpec {
	return LayerSpec{ClassName: FlattenClass}
}

// Dropout creates a dropout spec for the given rate.
func Dropout(rate float64) LayerSpec {
	return LayerSpec{
		ClassName: DropoutClass,
		Rate:      rate,
	}
}

// Dense creates a fully connected spec.
func Dense(units int, activation string) LayerSpec {
	return LayerSpec{
		ClassName:  DenseClass,
		Units:      units,
		Activation: activation,
	}
}

// Param is a trainable tensor along with its gradient and optimizer moments.
type Param struct {
	Name  string
	Shape []int
	Value []float64
	Grad  []float64
	bias  bool
	m     []float64
	v     []float64
}

func newParam(name string, bias bool, shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Param{
		Name:  name,
		Shape: shape,
		Value: make([]float64, n),
		Grad:  make([]float64, n),
		bias:  bias,
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// glorot fills the param with glorot-uniform values.
func (p *Param) glorot(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * limit
	}
}

// Layer is one stage of a sequential network.
type Layer interface {
	Spec() LayerSpec
	OutputShape() Shape
	// Forward runs the layer, training enables the stochastic parts e.g. dropout.
	Forward(in *Volume, training bool) *Volume
	// Backward accumulates the param gradients and returns the gradient for the input.
	Backward(grad *Volume) *Volume
	Params() []*Param
}

func build(spec LayerSpec, in Shape, rng *rand.Rand) (Layer, error) {
	if !validActivation(spec.Activation) {
		return nil, fmt.Errorf("unknown activation '%s' for layer %s", spec.Activation, spec.Name)
	}
	switch spec.ClassName {
	case Conv2DClass:
		return newConv2D(spec, in, rng)
	case MaxPooling2DClass:
		return newMaxPool(spec, in)
	case FlattenClass:
		return newFlatten(spec, in), nil
	case DropoutClass:
		return newDropout(spec, in, rng)
	case DenseClass:
		return newDense(spec, in, rng)
	}
	return nil, fmt.Errorf("unknown layer class '%s'", spec.ClassName)
}
