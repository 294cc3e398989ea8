package viz

import (
	"context"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/sim"
)

// viewportPadding is the fraction of the layout extent left blank around it.
const viewportPadding = 0.05

// TerminalRenderer draws the published view onto a braille canvas and
// writes each frame to its output.
type TerminalRenderer struct {
	*Scene

	mu     sync.Mutex
	out    io.Writer
	canvas *Canvas
	theme  Theme
	bg     lipgloss.Color
	color  bool
	frame  string
	frames int
}

func NewTerminalRenderer(out io.Writer, cols, rows int, bg color.RGBA, theme Theme, colored bool) *TerminalRenderer {
	return &TerminalRenderer{
		Scene:  NewScene(),
		out:    out,
		canvas: NewCanvas(cols, rows),
		theme:  theme,
		bg:     lipgloss.Color(Hex(bg)),
		color:  colored,
	}
}

func (r *TerminalRenderer) SetTheme(t Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = t
}

func (r *TerminalRenderer) Theme() Theme {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.theme
}

// Render draws the latest view. Frames go to the output when there is one
// and are kept for Frame either way.
func (r *TerminalRenderer) Render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.Snapshot(r.theme.Points)
	r.canvas.Clear()
	Draw(r.canvas, f, r.theme)

	if r.color {
		r.frame = r.canvas.Styled(r.bg)
	} else {
		r.frame = r.canvas.String()
	}
	r.frames++

	if r.out == nil {
		return nil
	}
	_, err := io.WriteString(r.out, r.frame)
	return err
}

// Frame returns the last rendered frame.
func (r *TerminalRenderer) Frame() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *TerminalRenderer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Draw paints edges, then midpoints, then points so points stay on top.
func Draw(c *Canvas, f Frame, theme Theme) {
	w, h := c.Dots()
	vp := FitViewport(f.View.Points, w, h, viewportPadding)
	project := func(x, y float32) (float64, float64) {
		return vp.Project(float64(x), float64(y))
	}
	round := func(v float64) int { return int(math.Round(v)) }

	if f.Visible.Edges {
		for i := 0; i < f.View.Edges.NumEdges(); i++ {
			path := f.EdgePath(i, project)
			col := f.EdgeColor(i, theme.Edges)
			for k := 1; k < len(path); k++ {
				c.DrawLine(round(path[k-1][0]), round(path[k-1][1]), round(path[k][0]), round(path[k][1]), col)
			}
		}
	}

	if f.Visible.Midpoints {
		mid := f.View.Midpoints
		for k := 0; k+1 < len(mid); k += 2 {
			x, y := vp.ProjectInt(mid[k], mid[k+1])
			c.Set(x, y, theme.Midpoints)
		}
	}

	if f.Visible.Points {
		for i := 0; i < f.View.Points.Len(); i++ {
			x, y := vp.ProjectInt(f.View.Points.At(i))
			c.DrawDisc(x, y, dotRadius(f.View.Sizes, i), f.PointColors[i])
		}
	}
}

func dotRadius(sizes dynamo.SizeBuffer, i int) int {
	if i < len(sizes) && sizes[i] >= 8 {
		return 1
	}
	return 0
}

// TerminalBackend creates TerminalRenderers with a fixed cell grid.
type TerminalBackend struct {
	Cols, Rows int
	Theme      Theme
	Color      bool

	last *TerminalRenderer
}

func (b *TerminalBackend) Name() string { return "terminal" }

func (b *TerminalBackend) Create(ctx context.Context, canvas io.Writer, bg color.RGBA, _ dynamo.Dimensions) (sim.Renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols, rows := b.Cols, b.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	theme := b.Theme
	if theme.Name == "" {
		theme = ThemeNight
	}
	b.last = NewTerminalRenderer(canvas, cols, rows, bg, theme, b.Color)
	return b.last, nil
}

// Last returns the renderer most recently created by b.
func (b *TerminalBackend) Last() *TerminalRenderer { return b.last }
