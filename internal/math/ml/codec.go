package ml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	SequentialClass = "Sequential"
	Float32         = "float32"
)

// ErrMalformedWeights is returned when artifacts do not describe a loadable network.
var ErrMalformedWeights = errors.New("malformed weights")

// Topology describes the network architecture.
type Topology struct {
	ClassName  string      `json:"class_name"`
	InputShape Shape       `json:"input_shape"`
	Layers     []LayerSpec `json:"layers"`
}

// WeightSpec describes one tensor inside the weight data.
type WeightSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	Dtype string `json:"dtype"`
}

func (w WeightSpec) size() int {
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	return n
}

// Artifacts is the storage form of a network.
// WeightData is the little-endian float32 concatenation of the tensors in WeightSpecs order.
type Artifacts struct {
	ModelTopology Topology     `json:"modelTopology"`
	WeightSpecs   []WeightSpec `json:"weightSpecs"`
	WeightData    []byte       `json:"weightData"`
}

// Topology returns the architecture of the network.
func (s *Sequential) Topology() Topology {
	specs := make([]LayerSpec, len(s.layers))
	for i, l := range s.layers {
		specs[i] = l.Spec()
	}
	return Topology{
		ClassName:  SequentialClass,
		InputShape: s.input,
		Layers:     specs,
	}
}

// Save encodes the topology and weights of the network.
func (s *Sequential) Save() Artifacts {
	params := s.Params()
	specs := make([]WeightSpec, len(params))
	n := 0
	for i, p := range params {
		shape := make([]int, len(p.Shape))
		copy(shape, p.Shape)
		specs[i] = WeightSpec{
			Name:  p.Name,
			Shape: shape,
			Dtype: Float32,
		}
		n += len(p.Value)
	}
	data := make([]byte, 4*n)
	offset := 0
	for _, p := range params {
		for _, v := range p.Value {
			binary.LittleEndian.PutUint32(data[offset:], math.Float32bits(float32(v)))
			offset += 4
		}
	}
	return Artifacts{
		ModelTopology: s.Topology(),
		WeightSpecs:   specs,
		WeightData:    data,
	}
}

// Load builds a network from the artifacts.
// Weights are matched to params by name, every param must be present with its exact shape.
func Load(a Artifacts, rng *rand.Rand) (*Sequential, error) {
	if a.ModelTopology.ClassName != SequentialClass {
		return nil, fmt.Errorf("unsupported topology '%s': %w", a.ModelTopology.ClassName, ErrMalformedWeights)
	}
	s, err := NewSequential(a.ModelTopology.InputShape, rng, a.ModelTopology.Layers...)
	if err != nil {
		return nil, fmt.Errorf("could not build topology: %s: %w", err.Error(), ErrMalformedWeights)
	}

	type slot struct {
		offset int
		spec   WeightSpec
	}
	slots := make(map[string]slot, len(a.WeightSpecs))
	offset := 0
	for _, spec := range a.WeightSpecs {
		if spec.Dtype != Float32 {
			return nil, fmt.Errorf("unsupported dtype '%s' for %s: %w", spec.Dtype, spec.Name, ErrMalformedWeights)
		}
		for _, d := range spec.Shape {
			if d <= 0 {
				return nil, fmt.Errorf("invalid shape %v for %s: %w", spec.Shape, spec.Name, ErrMalformedWeights)
			}
		}
		if _, ok := slots[spec.Name]; ok {
			return nil, fmt.Errorf("duplicate weight '%s': %w", spec.Name, ErrMalformedWeights)
		}
		slots[spec.Name] = slot{offset: offset, spec: spec}
		offset += 4 * spec.size()
	}
	if offset != len(a.WeightData) {
		return nil, fmt.Errorf("weight data has %d bytes but specs need %d: %w", len(a.WeightData), offset, ErrMalformedWeights)
	}

	params := s.Params()
	if len(params) != len(slots) {
		return nil, fmt.Errorf("expected %d weights but got %d: %w", len(params), len(slots), ErrMalformedWeights)
	}
	for _, p := range params {
		sl, ok := slots[p.Name]
		if !ok {
			return nil, fmt.Errorf("missing weight '%s': %w", p.Name, ErrMalformedWeights)
		}
		if !sameShape(sl.spec.Shape, p.Shape) {
			return nil, fmt.Errorf("weight '%s' has shape %v but expected %v: %w", p.Name, sl.spec.Shape, p.Shape, ErrMalformedWeights)
		}
		for i := range p.Value {
			bits := binary.LittleEndian.Uint32(a.WeightData[sl.offset+4*i:])
			p.Value[i] = float64(math.Float32frombits(bits))
		}
	}
	return s, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
