package viz

import (
	"math"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// Viewport maps layout coordinates onto a pixel grid of Width x Height.
// The y axis is flipped so larger layout y values appear higher up.
type Viewport struct {
	MinX, MinY, MaxX, MaxY float64
	Width, Height          int
}

// FitViewport returns a viewport that frames every point with a padding
// fraction on each side, preserving the layout's aspect ratio.
func FitViewport(points dynamo.PointBuffer, w, h int, padding float64) Viewport {
	v := Viewport{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1, Width: w, Height: h}
	if points.Len() == 0 {
		return v
	}

	v.MinX, v.MinY = math.Inf(1), math.Inf(1)
	v.MaxX, v.MaxY = math.Inf(-1), math.Inf(-1)
	for i := 0; i < points.Len(); i++ {
		x, y := points.At(i)
		v.MinX = math.Min(v.MinX, float64(x))
		v.MaxX = math.Max(v.MaxX, float64(x))
		v.MinY = math.Min(v.MinY, float64(y))
		v.MaxY = math.Max(v.MaxY, float64(y))
	}

	rx, ry := v.MaxX-v.MinX, v.MaxY-v.MinY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}

	// widen the tighter axis so both share one scale
	if w > 0 && h > 0 {
		target := float64(w) / float64(h)
		if rx/ry < target {
			rx = ry * target
		} else {
			ry = rx / target
		}
	}

	cx, cy := (v.MinX+v.MaxX)/2, (v.MinY+v.MaxY)/2
	rx *= 1 + 2*padding
	ry *= 1 + 2*padding
	v.MinX, v.MaxX = cx-rx/2, cx+rx/2
	v.MinY, v.MaxY = cy-ry/2, cy+ry/2
	return v
}

// Project returns the pixel for layout coordinates (x, y).
func (v Viewport) Project(x, y float64) (px, py float64) {
	px = (x - v.MinX) / (v.MaxX - v.MinX) * float64(v.Width-1)
	py = (v.MaxY - y) / (v.MaxY - v.MinY) * float64(v.Height-1)
	return px, py
}

// ProjectInt rounds Project to the nearest pixel.
func (v Viewport) ProjectInt(x, y float32) (int, int) {
	px, py := v.Project(float64(x), float64(y))
	return int(math.Round(px)), int(math.Round(py))
}
