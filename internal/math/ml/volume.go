package ml

import "fmt"

// Shape is the height, width and channels of a volume.
type Shape struct {
	H int `json:"h"`
	W int `json:"w"`
	C int `json:"c"`
}

// Size returns the number of elements of the shape.
func (s Shape) Size() int {
	return s.H * s.W * s.C
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d,%d,%d]", s.H, s.W, s.C)
}

// Volume is a channels-last 3d tensor.
type Volume struct {
	Shape
	Data []float64
}

// NewVolume creates a zero volume of the given shape.
func NewVolume(s Shape) *Volume {
	return &Volume{
		Shape: s,
		Data:  make([]float64, s.Size()),
	}
}

// VolumeOf wraps the given data into a volume.
func VolumeOf(s Shape, data []float64) (*Volume, error) {
	if len(data) != s.Size() {
		return nil, fmt.Errorf("data of length %d does not fit shape %v", len(data), s)
	}
	return &Volume{
		Shape: s,
		Data:  data,
	}, nil
}

func (v *Volume) index(h, w, c int) int {
	return (h*v.W+w)*v.C + c
}

// At returns the value at the given coordinates.
func (v *Volume) At(h, w, c int) float64 {
	return v.Data[v.index(h, w, c)]
}

// reshape shares the data under a new shape.
func (v *Volume) reshape(s Shape) *Volume {
	return &Volume{
		Shape: s,
		Data:  v.Data,
	}
}
