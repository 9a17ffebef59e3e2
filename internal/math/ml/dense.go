package ml

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dense is a fully connected layer over the flattened input.
// Kernel layout is [inputs, units].
type dense struct {
	spec   LayerSpec
	in     Shape
	out    Shape
	kernel *Param
	bias   *Param
	input  *Volume
	output *Volume
}

func newDense(spec LayerSpec, in Shape, rng *rand.Rand) (*dense, error) {
	if spec.Units <= 0 {
		return nil, fmt.Errorf("invalid dense units %d", spec.Units)
	}
	n := in.Size()
	l := &dense{
		spec:   spec,
		in:     in,
		out:    Shape{H: 1, W: 1, C: spec.Units},
		kernel: newParam(spec.Name+"/kernel", false, n, spec.Units),
		bias:   newParam(spec.Name+"/bias", true, spec.Units),
	}
	l.kernel.glorot(rng, n, spec.Units)
	return l, nil
}

func (l *dense) Spec() LayerSpec {
	return l.spec
}

func (l *dense) OutputShape() Shape {
	return l.out
}

func (l *dense) Params() []*Param {
	return []*Param{l.kernel, l.bias}
}

func (l *dense) weights() *mat.Dense {
	return mat.NewDense(l.in.Size(), l.spec.Units, l.kernel.Value)
}

func (l *dense) Forward(in *Volume, _ bool) *Volume {
	l.input = in
	out := NewVolume(l.out)
	y := mat.NewVecDense(l.spec.Units, out.Data)
	y.MulVec(l.weights().T(), mat.NewVecDense(len(in.Data), in.Data))
	floats.Add(out.Data, l.bias.Value)
	activate(l.spec.Activation, out.Data)
	l.output = out
	return out
}

func (l *dense) Backward(grad *Volume) *Volume {
	deactivate(l.spec.Activation, l.output.Data, grad.Data)
	g := mat.NewVecDense(l.spec.Units, grad.Data)
	x := mat.NewVecDense(len(l.input.Data), l.input.Data)

	dw := mat.NewDense(l.in.Size(), l.spec.Units, l.kernel.Grad)
	dw.RankOne(dw, 1, x, g)
	floats.Add(l.bias.Grad, grad.Data)

	dIn := NewVolume(l.in)
	dx := mat.NewVecDense(len(dIn.Data), dIn.Data)
	dx.MulVec(l.weights(), g)
	return dIn
}

// dropout zeroes a random share of its input while training and rescales the rest.
type dropout struct {
	spec LayerSpec
	in   Shape
	rng  *rand.Rand
	mask []float64
}

func newDropout(spec LayerSpec, in Shape, rng *rand.Rand) (*dropout, error) {
	if spec.Rate < 0 || spec.Rate >= 1 {
		return nil, fmt.Errorf("invalid dropout rate %v", spec.Rate)
	}
	return &dropout{
		spec: spec,
		in:   in,
		rng:  rng,
	}, nil
}

func (l *dropout) Spec() LayerSpec {
	return l.spec
}

func (l *dropout) OutputShape() Shape {
	return l.in
}

func (l *dropout) Params() []*Param {
	return nil
}

func (l *dropout) Forward(in *Volume, training bool) *Volume {
	if !training || l.spec.Rate == 0 {
		l.mask = nil
		return in
	}
	scale := 1 / (1 - l.spec.Rate)
	l.mask = make([]float64, len(in.Data))
	out := NewVolume(in.Shape)
	for i, x := range in.Data {
		if l.rng.Float64() >= l.spec.Rate {
			l.mask[i] = scale
			out.Data[i] = x * scale
		}
	}
	return out
}

func (l *dropout) Backward(grad *Volume) *Volume {
	if l.mask == nil {
		return grad
	}
	dIn := NewVolume(grad.Shape)
	floats.MulTo(dIn.Data, grad.Data, l.mask)
	return dIn
}
