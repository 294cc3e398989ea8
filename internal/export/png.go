package export

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"

	"github.com/san-kum/forcegraph/internal/viz"
)

// supersample is the factor frames are drawn at before downsampling.
const supersample = 4

// WritePNG writes f as a PNG image, drawn at supersample times the target
// size and downsampled for smoother edges.
func WritePNG(w io.Writer, f viz.Frame, opts Options) error {
	return png.Encode(w, RenderImage(f, opts))
}

func RenderImage(f viz.Frame, opts Options) *image.RGBA {
	lw, lh := opts.Width*supersample, opts.Height*supersample
	large := image.NewRGBA(image.Rect(0, 0, lw, lh))
	draw.Draw(large, large.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	vp := viz.FitViewport(f.View.Points, lw, lh, 0.05)
	project := func(x, y float32) (float64, float64) {
		return vp.Project(float64(x), float64(y))
	}

	if f.Visible.Edges {
		for i := 0; i < f.View.Edges.NumEdges(); i++ {
			path := f.EdgePath(i, project)
			col := f.EdgeColor(i, opts.Theme.Edges)
			for k := 1; k < len(path); k++ {
				drawLine(large, path[k-1], path[k], supersample/2, col)
			}
		}
	}

	if f.Visible.Midpoints {
		for k := 0; k+1 < len(f.View.Midpoints); k += 2 {
			x, y := project(f.View.Midpoints[k], f.View.Midpoints[k+1])
			fillCircle(large, x, y, supersample, opts.Theme.Midpoints)
		}
	}

	if f.Visible.Points {
		for i := 0; i < f.View.Points.Len(); i++ {
			x, y := project(f.View.Points.At(i))
			fillCircle(large, x, y, pointRadius(f, i)*supersample, f.PointColors[i])
		}
	}

	final := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.CatmullRom.Scale(final, final.Bounds(), large, large.Bounds(), draw.Over, nil)
	return final
}

func drawLine(img *image.RGBA, a, b [2]float64, thickness float64, c color.RGBA) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	steps := math.Max(math.Max(math.Abs(dx), math.Abs(dy)), 1)
	half := thickness / 2

	for i := 0.0; i <= steps; i++ {
		t := i / steps
		cx, cy := a[0]+dx*t, a[1]+dy*t
		for oy := -half; oy <= half; oy++ {
			for ox := -half; ox <= half; ox++ {
				img.SetRGBA(int(cx+ox), int(cy+oy), c)
			}
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	r2 := r * r
	for y := int(cy - r); y <= int(cy+r); y++ {
		for x := int(cx - r); x <= int(cx+r); x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r2 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
