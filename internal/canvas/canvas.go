package canvas

import (
	"image"
	"image/color"
	"math"
)

const (
	// DefaultSize is the logical side of the canvas in pixels.
	DefaultSize = 280
	// LineWidth is the stroke width in logical pixels.
	LineWidth = 20
	// emptyThreshold is the channel value at or above which a pixel counts as background.
	emptyThreshold = 250
)

var (
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	ink        = color.RGBA{A: 255}
)

// Point is a position in logical canvas pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the displayed rectangle of the canvas in client coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pointer is a pointer or touch position in client coordinates.
type Pointer struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Rect Rect    `json:"rect"`
}

// Raster is the black on white stroke buffer a user draws into.
// It is not safe for concurrent use.
type Raster struct {
	img    *image.RGBA
	width  float64
	active bool
	last   Point
}

// NewRaster creates a white raster of the given logical size.
func NewRaster(w, h int) *Raster {
	r := &Raster{
		img:   image.NewRGBA(image.Rect(0, 0, w, h)),
		width: LineWidth,
	}
	r.Clear()
	return r
}

// WithLineWidth sets the stroke width.
func (r *Raster) WithLineWidth(w float64) *Raster {
	r.width = w
	return r
}

// Image returns the raster pixels, callers must not modify them.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

// Map translates a client position to logical canvas pixels,
// scaling each axis by the ratio of logical to displayed size.
func (r *Raster) Map(p Pointer) Point {
	b := r.img.Bounds()
	scaleX, scaleY := 1.0, 1.0
	if p.Rect.Width > 0 {
		scaleX = float64(b.Dx()) / p.Rect.Width
	}
	if p.Rect.Height > 0 {
		scaleY = float64(b.Dy()) / p.Rect.Height
	}
	return Point{
		X: (p.X - p.Rect.Left) * scaleX,
		Y: (p.Y - p.Rect.Top) * scaleY,
	}
}

// Active returns true while a stroke is in progress.
func (r *Raster) Active() bool {
	return r.active
}

// Begin starts a stroke and paints a round dot at p.
func (r *Raster) Begin(p Point) {
	r.active = true
	r.last = p
	r.segment(p, p)
}

// Move paints a round capped segment from the last point to p.
// It returns false if there is no active stroke.
func (r *Raster) Move(p Point) bool {
	if !r.active {
		return false
	}
	r.segment(r.last, p)
	r.last = p
	return true
}

// End finishes the stroke, it returns false if there was none.
func (r *Raster) End() bool {
	if !r.active {
		return false
	}
	r.active = false
	return true
}

// Clear fills the raster with the background and drops any active stroke.
func (r *Raster) Clear() {
	pix := r.img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = background.R
		pix[i+1] = background.G
		pix[i+2] = background.B
		pix[i+3] = background.A
	}
	r.active = false
}

// IsEmpty reports whether every pixel is still background.
func (r *Raster) IsEmpty() bool {
	pix := r.img.Pix
	for i := 0; i < len(pix); i += 4 {
		if pix[i] < emptyThreshold || pix[i+1] < emptyThreshold || pix[i+2] < emptyThreshold {
			return false
		}
	}
	return true
}

// segment paints every pixel whose center lies within half the line width of the segment a-b.
func (r *Raster) segment(a, b Point) {
	radius := r.width / 2
	bounds := r.img.Bounds()
	minX := clamp(int(math.Floor(math.Min(a.X, b.X)-radius)), bounds.Min.X, bounds.Max.X)
	maxX := clamp(int(math.Ceil(math.Max(a.X, b.X)+radius)), bounds.Min.X, bounds.Max.X)
	minY := clamp(int(math.Floor(math.Min(a.Y, b.Y)-radius)), bounds.Min.Y, bounds.Max.Y)
	maxY := clamp(int(math.Ceil(math.Max(a.Y, b.Y)+radius)), bounds.Min.Y, bounds.Max.Y)
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			c := Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			if distance(c, a, b) <= radius {
				r.img.SetRGBA(x, y, ink)
			}
		}
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// distance returns the distance of p from the segment a-b.
func distance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := dx*dx + dy*dy
	if l == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
