package ml

import (
	"fmt"
	"math/rand"
	"strings"
)

// Sequential is a feed forward stack of layers trained with categorical cross-entropy.
type Sequential struct {
	input     Shape
	layers    []Layer
	optimizer *Adam
}

// NewSequential builds the network for the given input shape and layer specs.
// Unnamed layers get a name derived from their class e.g. conv2d_1.
func NewSequential(input Shape, rng *rand.Rand, specs ...LayerSpec) (*Sequential, error) {
	if input.Size() <= 0 {
		return nil, fmt.Errorf("invalid input shape %v", input)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no layers given")
	}
	counts := make(map[string]int)
	names := make(map[string]bool)
	layers := make([]Layer, 0, len(specs))
	shape := input
	for _, spec := range specs {
		if spec.Name == "" {
			counts[spec.ClassName]++
			spec.Name = fmt.Sprintf("%s_%d", layerPrefix(spec.ClassName), counts[spec.ClassName])
		}
		if names[spec.Name] {
			return nil, fmt.Errorf("duplicate layer name '%s'", spec.Name)
		}
		names[spec.Name] = true
		layer, err := build(spec, shape, rng)
		if err != nil {
			return nil, fmt.Errorf("could not build layer %s: %w", spec.Name, err)
		}
		layers = append(layers, layer)
		shape = layer.OutputShape()
	}
	return &Sequential{
		input:  input,
		layers: layers,
	}, nil
}

func layerPrefix(class string) string {
	switch class {
	case MaxPooling2DClass:
		return "max_pooling2d"
	}
	return strings.ToLower(class)
}

// Compile assigns the optimizer used by Fit.
func (s *Sequential) Compile(optimizer *Adam) *Sequential {
	s.optimizer = optimizer
	return s
}

// InputShape returns the expected input shape.
func (s *Sequential) InputShape() Shape {
	return s.input
}

// OutputShape returns the shape of the last layer.
func (s *Sequential) OutputShape() Shape {
	return s.layers[len(s.layers)-1].OutputShape()
}

// Layers returns the layers in order.
func (s *Sequential) Layers() []Layer {
	return s.layers
}

// Params returns all trainable params in layer order.
func (s *Sequential) Params() []*Param {
	params := make([]*Param, 0)
	for _, l := range s.layers {
		params = append(params, l.Params()...)
	}
	return params
}

func (s *Sequential) forward(x *Volume, training bool) *Volume {
	out := x
	for _, l := range s.layers {
		out = l.Forward(out, training)
	}
	return out
}

func (s *Sequential) check(x *Volume) error {
	if x.Shape != s.input || len(x.Data) != s.input.Size() {
		return fmt.Errorf("input %v does not match network input %v", x.Shape, s.input)
	}
	return nil
}

// Predict runs the network in inference mode.
func (s *Sequential) Predict(x *Volume) ([]float64, error) {
	if err := s.check(x); err != nil {
		return nil, err
	}
	out := s.forward(x, false)
	y := make([]float64, len(out.Data))
	copy(y, out.Data)
	return y, nil
}

// Fit trains the network on a single example for the given epochs, one update per epoch.
// It returns the loss of each epoch.
func (s *Sequential) Fit(x *Volume, y []float64, epochs int) ([]float64, error) {
	if s.optimizer == nil {
		return nil, fmt.Errorf("network is not compiled")
	}
	if err := s.check(x); err != nil {
		return nil, err
	}
	if len(y) != s.OutputShape().Size() {
		return nil, fmt.Errorf("target of size %d does not match output %v", len(y), s.OutputShape())
	}
	params := s.Params()
	losses := make([]float64, 0, epochs)
	for e := 0; e < epochs; e++ {
		for _, p := range params {
			p.zeroGrad()
		}
		out := s.forward(x, true)
		losses = append(losses, CrossEntropy(y, out.Data))
		grad, err := VolumeOf(out.Shape, crossEntropyGrad(y, out.Data))
		if err != nil {
			return losses, err
		}
		for i := len(s.layers) - 1; i >= 0; i-- {
			grad = s.layers[i].Backward(grad)
		}
		s.optimizer.Step(params)
	}
	return losses, nil
}
