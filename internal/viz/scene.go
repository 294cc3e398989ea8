package viz

import (
	"context"
	"image/color"
	"slices"
	"sync"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// Scene keeps the latest view published by a simulator together with the
// renderer-side settings. Renderers embed it to satisfy dynamo.ViewSink and
// the visibility and color map parts of sim.Renderer.
type Scene struct {
	mu       sync.Mutex
	view     dynamo.View
	visible  dynamo.Visibility
	colorMap *ColorMap
	clusters []int
}

func NewScene() *Scene {
	return &Scene{visible: dynamo.DefaultVisibility()}
}

// Publish copies v; the simulator reuses its buffers after the call.
func (s *Scene) Publish(v dynamo.View) {
	view := dynamo.View{
		Points:     slices.Clone(v.Points),
		Sizes:      slices.Clone(v.Sizes),
		Colors:     slices.Clone(v.Colors),
		Edges:      slices.Clone(v.Edges),
		Midpoints:  slices.Clone(v.Midpoints),
		EdgeColors: slices.Clone(v.EdgeColors),
		NumSplits:  v.NumSplits,
		Step:       v.Step,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
}

func (s *Scene) SetVisible(_ context.Context, v dynamo.Visibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = v
	return nil
}

// SetColorMap loads the image at imageURL and colors points from it. An
// empty URL restores the buffer colors.
func (s *Scene) SetColorMap(ctx context.Context, imageURL string, clusters []int) error {
	var cm *ColorMap
	if imageURL != "" {
		var err error
		if cm, err = LoadColorMap(ctx, imageURL); err != nil {
			return err
		}
		if clusters != nil {
			if _, err := cm.PointColors(len(clusters), clusters); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.colorMap = cm
	s.clusters = append([]int(nil), clusters...)
	if clusters == nil {
		s.clusters = nil
	}
	return nil
}

// Frame is a consistent copy of what to draw.
type Frame struct {
	View        dynamo.View
	Visible     dynamo.Visibility
	PointColors []color.RGBA
}

// Snapshot returns the current frame. Point colors come from the color map
// when one is set, else from the color buffer with the default color
// replaced by fallback.
func (s *Scene) Snapshot(fallback color.RGBA) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := Frame{View: s.view, Visible: s.visible}
	n := s.view.Points.Len()
	if s.colorMap != nil {
		clusters := s.clusters
		if len(clusters) != n {
			clusters = nil
		}
		f.PointColors, _ = s.colorMap.PointColors(n, clusters)
		return f
	}

	f.PointColors = make([]color.RGBA, n)
	for i := range f.PointColors {
		c := dynamo.DefaultPointColor
		if i < len(s.view.Colors) {
			c = s.view.Colors[i]
		}
		if c == dynamo.DefaultPointColor {
			f.PointColors[i] = fallback
			continue
		}
		r, g, b, a := dynamo.RGBA(c)
		f.PointColors[i] = color.RGBA{r, g, b, a}
	}
	return f
}

// EdgeColor returns the color of edge i, or fallback when the edge has no
// explicit color.
func (f Frame) EdgeColor(i int, fallback color.RGBA) color.RGBA {
	if i >= len(f.View.EdgeColors) || f.View.EdgeColors[i] == dynamo.DefaultEdgeColor {
		return fallback
	}
	r, g, b, a := dynamo.RGBA(f.View.EdgeColors[i])
	return color.RGBA{r, g, b, a}
}

// EdgePath returns the projected polyline of edge i: source, the edge's
// midpoints in order, destination.
func (f Frame) EdgePath(i int, project func(x, y float32) (float64, float64)) [][2]float64 {
	v := f.View
	src, dst := v.Edges.Pair(i)
	path := make([][2]float64, 0, v.NumSplits+2)

	x, y := v.Points.At(int(src))
	px, py := project(x, y)
	path = append(path, [2]float64{px, py})
	if v.NumSplits > 0 && len(v.Midpoints) >= (i+1)*v.NumSplits*2 {
		for q := 0; q < v.NumSplits; q++ {
			k := (i*v.NumSplits + q) * 2
			px, py = project(v.Midpoints[k], v.Midpoints[k+1])
			path = append(path, [2]float64{px, py})
		}
	}
	x, y = v.Points.At(int(dst))
	px, py = project(x, y)
	return append(path, [2]float64{px, py})
}
