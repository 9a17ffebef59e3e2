package ml

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// conv2D is a 2d convolution with stride 1.
// Kernel layout is [k, k, in channels, filters].
type conv2D struct {
	spec   LayerSpec
	in     Shape
	out    Shape
	pad    int
	kernel *Param
	bias   *Param
	input  *Volume
	output *Volume
}

func newConv2D(spec LayerSpec, in Shape, rng *rand.Rand) (*conv2D, error) {
	k := spec.KernelSize
	if k <= 0 || spec.Filters <= 0 {
		return nil, fmt.Errorf("invalid conv2d %+v", spec)
	}
	l := &conv2D{
		spec: spec,
		in:   in,
	}
	switch spec.Padding {
	case PaddingSame:
		if k%2 == 0 {
			return nil, fmt.Errorf("same padding needs an odd kernel: %d", k)
		}
		l.pad = k / 2
		l.out = Shape{H: in.H, W: in.W, C: spec.Filters}
	case PaddingValid, "":
		l.out = Shape{H: in.H - k + 1, W: in.W - k + 1, C: spec.Filters}
	default:
		return nil, fmt.Errorf("unknown padding '%s'", spec.Padding)
	}
	if l.out.H <= 0 || l.out.W <= 0 {
		return nil, fmt.Errorf("kernel %d too large for input %v", k, in)
	}
	l.kernel = newParam(spec.Name+"/kernel", false, k, k, in.C, spec.Filters)
	l.kernel.glorot(rng, k*k*in.C, k*k*spec.Filters)
	l.bias = newParam(spec.Name+"/bias", true, spec.Filters)
	return l, nil
}

func (l *conv2D) Spec() LayerSpec {
	return l.spec
}

func (l *conv2D) OutputShape() Shape {
	return l.out
}

func (l *conv2D) Params() []*Param {
	return []*Param{l.kernel, l.bias}
}

// window calls f for every kernel tap of the output position that lands inside the input.
func (l *conv2D) window(oy, ox int, f func(inIdx, kOff int)) {
	k := l.spec.KernelSize
	for ky := 0; ky < k; ky++ {
		iy := oy + ky - l.pad
		if iy < 0 || iy >= l.in.H {
			continue
		}
		for kx := 0; kx < k; kx++ {
			ix := ox + kx - l.pad
			if ix < 0 || ix >= l.in.W {
				continue
			}
			for ic := 0; ic < l.in.C; ic++ {
				f((iy*l.in.W+ix)*l.in.C+ic, ((ky*k+kx)*l.in.C+ic)*l.out.C)
			}
		}
	}
}

func (l *conv2D) Forward(in *Volume, _ bool) *Volume {
	l.input = in
	out := NewVolume(l.out)
	filters := l.out.C
	for oy := 0; oy < l.out.H; oy++ {
		for ox := 0; ox < l.out.W; ox++ {
			o := out.Data[out.index(oy, ox, 0):][:filters]
			copy(o, l.bias.Value)
			l.window(oy, ox, func(inIdx, kOff int) {
				if x := in.Data[inIdx]; x != 0 {
					floats.AddScaled(o, x, l.kernel.Value[kOff:kOff+filters])
				}
			})
			activate(l.spec.Activation, o)
		}
	}
	l.output = out
	return out
}

func (l *conv2D) Backward(grad *Volume) *Volume {
	deactivate(l.spec.Activation, l.output.Data, grad.Data)
	dIn := NewVolume(l.in)
	filters := l.out.C
	for oy := 0; oy < l.out.H; oy++ {
		for ox := 0; ox < l.out.W; ox++ {
			g := grad.Data[grad.index(oy, ox, 0):][:filters]
			floats.Add(l.bias.Grad, g)
			l.window(oy, ox, func(inIdx, kOff int) {
				if x := l.input.Data[inIdx]; x != 0 {
					floats.AddScaled(l.kernel.Grad[kOff:kOff+filters], x, g)
				}
				dIn.Data[inIdx] += floats.Dot(l.kernel.Value[kOff:kOff+filters], g)
			})
		}
	}
	return dIn
}
