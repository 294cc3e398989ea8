package export

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/san-kum/forcegraph/internal/viz"
)

type Options struct {
	Width      int
	Height     int
	Background color.RGBA
	Theme      viz.Theme
}

func DefaultOptions() Options {
	return Options{
		Width:      800,
		Height:     800,
		Background: color.RGBA{26, 27, 38, 255},
		Theme:      viz.ThemeNight,
	}
}

// WriteSVG writes f as a standalone SVG document.
func WriteSVG(w io.Writer, f viz.Frame, opts Options) error {
	vp := viz.FitViewport(f.View.Points, opts.Width, opts.Height, 0.05)
	project := func(x, y float32) (float64, float64) {
		return vp.Project(float64(x), float64(y))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, opts.Width, opts.Height, opts.Width, opts.Height, viz.Hex(opts.Background))

	if f.Visible.Edges && f.View.Edges.NumEdges() > 0 {
		fmt.Fprintf(&sb, "<g fill=\"none\" stroke=\"%s\" stroke-width=\"1\" stroke-opacity=\"0.6\">\n", viz.Hex(opts.Theme.Edges))
		for i := 0; i < f.View.Edges.NumEdges(); i++ {
			path := f.EdgePath(i, project)
			if col := f.EdgeColor(i, opts.Theme.Edges); col != opts.Theme.Edges {
				fmt.Fprintf(&sb, "<path stroke=\"%s\" d=\"", viz.Hex(col))
			} else {
				sb.WriteString(`<path d="`)
			}
			for k, p := range path {
				if k == 0 {
					fmt.Fprintf(&sb, "M%.1f,%.1f", p[0], p[1])
				} else {
					fmt.Fprintf(&sb, " L%.1f,%.1f", p[0], p[1])
				}
			}
			sb.WriteString("\"/>\n")
		}
		sb.WriteString("</g>\n")
	}

	if f.Visible.Midpoints && len(f.View.Midpoints) > 0 {
		fmt.Fprintf(&sb, "<g fill=\"%s\">\n", viz.Hex(opts.Theme.Midpoints))
		for k := 0; k+1 < len(f.View.Midpoints); k += 2 {
			x, y := project(f.View.Midpoints[k], f.View.Midpoints[k+1])
			fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"1\"/>\n", x, y)
		}
		sb.WriteString("</g>\n")
	}

	if f.Visible.Points {
		sb.WriteString("<g>\n")
		for i := 0; i < f.View.Points.Len(); i++ {
			x, y := project(f.View.Points.At(i))
			fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\" fill=\"%s\"/>\n",
				x, y, pointRadius(f, i), viz.Hex(f.PointColors[i]))
		}
		sb.WriteString("</g>\n")
	}

	if f.Visible.Labels {
		fmt.Fprintf(&sb, "<g font-family=\"sans-serif\" font-size=\"10\" fill=\"%s\">\n", string(opts.Theme.Text))
		for i := 0; i < f.View.Points.Len(); i++ {
			x, y := project(f.View.Points.At(i))
			fmt.Fprintf(&sb, "<text x=\"%.1f\" y=\"%.1f\">%d</text>\n", x+pointRadius(f, i)+1, y, i)
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// pointRadius maps the 0-255 point size onto a pixel radius.
func pointRadius(f viz.Frame, i int) float64 {
	if i >= len(f.View.Sizes) {
		return 2
	}
	return 1 + float64(f.View.Sizes[i])/4
}
