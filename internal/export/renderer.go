package export

import (
	"context"
	"errors"
	"image/color"
	"io"
	"sync"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/sim"
	"github.com/san-kum/forcegraph/internal/viz"
)

// Format selects the image encoding of a snapshot renderer.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
)

var ErrClosed = errors.New("export: renderer closed")

// Renderer keeps the frame of the latest Render and encodes it to its
// canvas on Close.
type Renderer struct {
	*viz.Scene

	format Format
	opts   Options
	out    io.Writer

	mu     sync.Mutex
	frame  *viz.Frame
	closed bool
}

func NewRenderer(format Format, out io.Writer, opts Options) *Renderer {
	return &Renderer{Scene: viz.NewScene(), format: format, opts: opts, out: out}
}

func (r *Renderer) Render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := r.Snapshot(r.opts.Theme.Points)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.frame = &f
	return nil
}

// Close writes the last rendered frame. Closing before any Render writes
// nothing.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.frame == nil || r.out == nil {
		return nil
	}
	return Write(r.out, r.format, *r.frame, r.opts)
}

// Write encodes f in format.
func Write(w io.Writer, format Format, f viz.Frame, opts Options) error {
	switch format {
	case PNG:
		return WritePNG(w, f, opts)
	default:
		return WriteSVG(w, f, opts)
	}
}

// Backend creates snapshot renderers of one format.
type Backend struct {
	Format Format
	Width  int
	Height int
	Theme  viz.Theme
}

func (b *Backend) Name() string { return string(b.Format) }

func (b *Backend) Create(ctx context.Context, canvas io.Writer, bg color.RGBA, _ dynamo.Dimensions) (sim.Renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := DefaultOptions()
	opts.Background = bg
	if b.Width > 0 {
		opts.Width = b.Width
	}
	if b.Height > 0 {
		opts.Height = b.Height
	}
	if b.Theme.Name != "" {
		opts.Theme = b.Theme
	}
	return NewRenderer(b.Format, canvas, opts), nil
}
