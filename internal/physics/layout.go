package physics

import (
	"context"
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/edges"
)

// Frame is the simulator state a kernel reads and mutates for one tick.
type Frame struct {
	Points    dynamo.PointBuffer
	Edges     dynamo.EdgeBuffer
	Forward   *edges.Bucket
	Backward  *edges.Bucket
	Midpoints []float32
	NumSplits int

	Locks      dynamo.Locks
	Dimensions dynamo.Dimensions

	// ActiveLo and ActiveHi bound the forward work items whose edges take
	// part in this tick.
	ActiveLo, ActiveHi int

	Step int
}

func (f *Frame) NumPoints() int { return f.Points.Len() }

func (f *Frame) hasEdges() bool {
	return f.Forward != nil && f.Backward != nil && f.Forward.NumEdges() > 0
}

// Active reports whether edges leaving src are inside the active window.
func (f *Frame) Active(src uint32) bool {
	if f.Forward == nil || int(src) >= len(f.Forward.SourceToWorkItem) {
		return false
	}
	w := int(f.Forward.SourceToWorkItem[src])
	return w >= f.ActiveLo && w < f.ActiveHi
}

// Masses returns deg(i)+1 for every point, counting both directions.
func (f *Frame) Masses() []float64 {
	m := make([]float64, f.NumPoints())
	for i := range m {
		m[i] = 1
	}
	if !f.hasEdges() {
		return m
	}
	for i := range m {
		m[i] += float64(f.Forward.DegreesBySource[i]) + float64(f.Backward.DegreesBySource[i])
	}
	return m
}

// Kernel advances a frame by one layout iteration. params holds the decoded
// values of the kernel's algorithm; missing names fall back to defaults.
type Kernel interface {
	Name() string
	Step(ctx context.Context, f *Frame, params map[string]dynamo.Value) error
}

// NewKernel creates a fresh kernel for a layout algorithm name.
func NewKernel(name string) (Kernel, error) {
	switch name {
	case config.ForceAtlas2:
		return NewForceAtlas2(), nil
	case config.ForceAtlas2Barnes:
		return NewForceAtlas2Barnes(), nil
	case config.EdgeBundling:
		return NewEdgeBundling(), nil
	default:
		return nil, fmt.Errorf("unknown layout algorithm %q", name)
	}
}

// StepScale is the step count over which a restarted layout cools to half
// its initial speed.
const StepScale = 30

// WarmSpeed is the adaptive speed a kernel restarts from at step.
func WarmSpeed(step int) float64 {
	return 1 / (1 + float64(max(step, 0))/StepScale)
}

func value(params map[string]dynamo.Value, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return float64(v)
	}
	return def
}

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
