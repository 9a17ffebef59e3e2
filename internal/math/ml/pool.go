package ml

import "fmt"

// maxPool is a 2d max pooling over each channel.
type maxPool struct {
	spec   LayerSpec
	in     Shape
	out    Shape
	argmax []int
}

func newMaxPool(spec LayerSpec, in Shape) (*maxPool, error) {
	if spec.PoolSize <= 0 {
		return nil, fmt.Errorf("invalid pool size %d", spec.PoolSize)
	}
	if spec.Strides <= 0 {
		spec.Strides = spec.PoolSize
	}
	if in.H < spec.PoolSize || in.W < spec.PoolSize {
		return nil, fmt.Errorf("pool %d too large for input %v", spec.PoolSize, in)
	}
	out := Shape{
		H: (in.H-spec.PoolSize)/spec.Strides + 1,
		W: (in.W-spec.PoolSize)/spec.Strides + 1,
		C: in.C,
	}
	if out.H <= 0 || out.W <= 0 {
		return nil, fmt.Errorf("pool %d too large for input %v", spec.PoolSize, in)
	}
	return &maxPool{
		spec: spec,
		in:   in,
		out:  out,
	}, nil
}

func (l *maxPool) Spec() LayerSpec {
	return l.spec
}

func (l *maxPool) OutputShape() Shape {
	return l.out
}

func (l *maxPool) Params() []*Param {
	return nil
}

func (l *maxPool) Forward(in *Volume, _ bool) *Volume {
	out := NewVolume(l.out)
	l.argmax = make([]int, len(out.Data))
	p, s := l.spec.PoolSize, l.spec.Strides
	for oy := 0; oy < l.out.H; oy++ {
		for ox := 0; ox < l.out.W; ox++ {
			for c := 0; c < l.out.C; c++ {
				best := -1
				for py := 0; py < p; py++ {
					for px := 0; px < p; px++ {
						idx := in.index(oy*s+py, ox*s+px, c)
						if best < 0 || in.Data[idx] > in.Data[best] {
							best = idx
						}
					}
				}
				o := out.index(oy, ox, c)
				out.Data[o] = in.Data[best]
				l.argmax[o] = best
			}
		}
	}
	return out
}

func (l *maxPool) Backward(grad *Volume) *Volume {
	dIn := NewVolume(l.in)
	for o, g := range grad.Data {
		dIn.Data[l.argmax[o]] += g
	}
	return dIn
}

// flatten reshapes to a [1,1,n] volume.
type flatten struct {
	spec LayerSpec
	in   Shape
	out  Shape
}

func newFlatten(spec LayerSpec, in Shape) *flatten {
	return &flatten{
		spec: spec,
		in:   in,
		out:  Shape{H: 1, W: 1, C: in.Size()},
	}
}

func (l *flatten) Spec() LayerSpec {
	return l.spec
}

func (l *flatten) OutputShape() Shape {
	return l.out
}

func (l *flatten) Params() []*Param {
	return nil
}

func (l *flatten) Forward(in *Volume, _ bool) *Volume {
	return in.reshape(l.out)
}

func (l *flatten) Backward(grad *Volume) *Volume {
	return grad.reshape(l.in)
}
