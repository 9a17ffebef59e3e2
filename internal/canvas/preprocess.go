package canvas

import (
	"image"
	"math"

	"github.com/drakos74/draw-guess/internal/model"
	"gonum.org/v1/gonum/mat"
)

const maxIntensity = 255.0

// Preprocess converts the raster pixels into the [1,28,28,1] classifier input.
// Each step allocates its own output, so the input of a step is garbage once the step returns.
func Preprocess(img *image.RGBA) *model.Tensor {
	resized := ResizeBilinear(Grayscale(img), model.Side, model.Side)
	return Batch(Normalize(Invert(resized)))
}

// Grayscale extracts the intensity of every pixel from the red channel.
// The raster is drawn in black and white, so all channels carry the same value.
func Grayscale(img *image.RGBA) *mat.Dense {
	b := img.Bounds()
	g := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(y, x, float64(img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)]))
		}
	}
	return g
}

// ResizeBilinear resizes with bilinear interpolation,
// sampling the source at dst*in/out without corner alignment.
func ResizeBilinear(m mat.Matrix, rows, cols int) *mat.Dense {
	inRows, inCols := m.Dims()
	scaleY := float64(inRows) / float64(rows)
	scaleX := float64(inCols) / float64(cols)
	out := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		sy := float64(y) * scaleY
		y0 := int(math.Floor(sy))
		y1 := minInt(y0+1, inRows-1)
		dy := sy - float64(y0)
		for x := 0; x < cols; x++ {
			sx := float64(x) * scaleX
			x0 := int(math.Floor(sx))
			x1 := minInt(x0+1, inCols-1)
			dx := sx - float64(x0)
			top := m.At(y0, x0) + (m.At(y0, x1)-m.At(y0, x0))*dx
			bottom := m.At(y1, x0) + (m.At(y1, x1)-m.At(y1, x0))*dx
			out.Set(y, x, top+(bottom-top)*dy)
		}
	}
	return out
}

// Invert turns dark on light into light on dark.
func Invert(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return maxIntensity - v
	}, m)
	return &out
}

// Normalize scales intensities into [0,1].
func Normalize(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return v / maxIntensity
	}, m)
	return &out
}

// Batch adds the leading batch and trailing channel dimensions.
func Batch(m *mat.Dense) *model.Tensor {
	rows, cols := m.Dims()
	t := model.NewTensor(1, rows, cols, 1)
	for y := 0; y < rows; y++ {
		copy(t.Data[y*cols:(y+1)*cols], m.RawRowView(y))
	}
	return t
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
