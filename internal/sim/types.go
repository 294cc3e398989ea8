package sim

import (
	"context"
	"image/color"
	"io"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/edges"
)

// Simulator integrates a layout. Every setter replaces the corresponding
// buffer wholesale; a rejected call leaves the previous buffer in place.
type Simulator interface {
	NumPoints() int
	SetPoints(ctx context.Context, points dynamo.PointBuffer) error
	SetSizes(ctx context.Context, sizes dynamo.SizeBuffer) error
	SetColors(ctx context.Context, colors dynamo.ColorBuffer) error
	SetEdges(ctx context.Context, e *edges.Result) error
	SetEdgeColors(ctx context.Context, colors dynamo.ColorBuffer) error
	SetPhysics(ctx context.Context, cfg dynamo.PhysicsConfig) error
	SetLocked(ctx context.Context, locks dynamo.Locks) error
	SetTimeSubset(ctx context.Context, window dynamo.TimeSubset) error
	Tick(ctx context.Context, step int) error
}

type SimulatorBackend interface {
	Name() string
	Create(ctx context.Context, renderer Renderer, dims dynamo.Dimensions, numSplits int) (Simulator, error)
}

type Renderer interface {
	SetVisible(ctx context.Context, v dynamo.Visibility) error
	SetColorMap(ctx context.Context, imageURL string, clusters []int) error
	Render(ctx context.Context) error
}

type RendererBackend interface {
	Name() string
	Create(ctx context.Context, canvas io.Writer, bg color.RGBA, dims dynamo.Dimensions) (Renderer, error)
}

type State int32

const (
	Idle State = iota
	Ingesting
	Ready
	Ticking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ingesting:
		return "ingesting"
	case Ready:
		return "ready"
	case Ticking:
		return "ticking"
	default:
		return "unknown"
	}
}
