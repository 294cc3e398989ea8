package compute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/edges"
	"github.com/san-kum/forcegraph/internal/physics"
)

// Simulator runs layout kernels on the CPU. It is driven by a single
// session and is not safe for concurrent use.
type Simulator struct {
	logger    *zap.Logger
	sink      dynamo.ViewSink
	dims      dynamo.Dimensions
	numSplits int
	budget    time.Duration

	pool       *BufferPool
	points     dynamo.PointBuffer
	sizes      dynamo.SizeBuffer
	colors     dynamo.ColorBuffer
	edges      *edges.Result
	edgeColors dynamo.ColorBuffer

	physics    dynamo.PhysicsConfig
	kernels    []physics.Kernel
	locks      dynamo.Locks
	timeSubset dynamo.TimeSubset

	// interpolatePending asks the next tick to rebuild midpoints once.
	interpolatePending bool
	step               int
}

// NewSimulator creates a simulator that publishes views to renderer when it
// implements dynamo.ViewSink. renderer may be nil.
func NewSimulator(renderer any, dims dynamo.Dimensions, numSplits int, budget time.Duration, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{
		logger:     logger,
		dims:       dims,
		numSplits:  numSplits,
		budget:     budget,
		physics:    make(dynamo.PhysicsConfig),
		timeSubset: dynamo.FullTimeSubset(),
	}
	if sink, ok := renderer.(dynamo.ViewSink); ok {
		s.sink = sink
	}
	return s
}

func (s *Simulator) NumPoints() int { return s.points.Len() }

func (s *Simulator) NumEdges() int {
	if s.edges == nil {
		return 0
	}
	return s.edges.Forward.NumEdges()
}

// Points returns the live position buffer.
func (s *Simulator) Points() dynamo.PointBuffer { return s.points }

// SetPoints copies points into a simulator-owned buffer. Edges that no
// longer fit the new point count are dropped.
func (s *Simulator) SetPoints(ctx context.Context, points dynamo.PointBuffer) error {
	if !points.IsValid() {
		return &dynamo.IngestionError{Buffer: "points", Wrapped: dynamo.ErrDimensionMismatch}
	}

	if s.pool == nil || s.pool.Size() != len(points) {
		s.pool = NewBufferPool(len(points))
	} else if s.points != nil {
		s.pool.Put(s.points)
	}
	s.points = s.pool.GetAndCopy(points)

	if s.edges != nil && !s.edgesFit(s.edges) {
		s.logger.Warn("dropping edges that reference removed points", zap.Int("edges", s.NumEdges()))
		s.edges, s.edgeColors = nil, nil
	}
	if s.edges != nil && s.numSplits > 0 {
		s.edges.Midpoints = edges.Midpoints(s.edges.Edges, s.points, s.numSplits)
	}
	if len(s.sizes) != s.points.Len() {
		s.sizes = nil
	}
	if len(s.colors) != s.points.Len() {
		s.colors = nil
	}

	s.interpolatePending = true
	s.publish()
	return ctx.Err()
}

func (s *Simulator) SetSizes(ctx context.Context, sizes dynamo.SizeBuffer) error {
	if len(sizes) != s.NumPoints() {
		return &dynamo.IngestionError{
			Buffer:  "sizes",
			Wrapped: fmt.Errorf("%w: %d sizes for %d points", dynamo.ErrDimensionMismatch, len(sizes), s.NumPoints()),
		}
	}
	s.sizes = append(dynamo.SizeBuffer(nil), sizes...)
	s.publish()
	return ctx.Err()
}

func (s *Simulator) SetColors(ctx context.Context, colors dynamo.ColorBuffer) error {
	if len(colors) != s.NumPoints() {
		return &dynamo.IngestionError{
			Buffer:  "colors",
			Wrapped: fmt.Errorf("%w: %d colors for %d points", dynamo.ErrDimensionMismatch, len(colors), s.NumPoints()),
		}
	}
	s.colors = append(dynamo.ColorBuffer(nil), colors...)
	s.publish()
	return ctx.Err()
}

func (s *Simulator) edgesFit(res *edges.Result) bool {
	return len(res.Forward.DegreesBySource) == s.NumPoints() && len(res.Backward.DegreesBySource) == s.NumPoints()
}

// SetEdges installs a bucketized edge set. Nothing changes when the buckets
// or midpoints do not match the current points and split count.
func (s *Simulator) SetEdges(ctx context.Context, res *edges.Result) error {
	if res == nil || res.Forward == nil || res.Backward == nil {
		return &dynamo.BucketizationError{Reason: "missing bucket"}
	}
	if !s.edgesFit(res) {
		return &dynamo.BucketizationError{
			Reason:  fmt.Sprintf("buckets sized for %d points, have %d", len(res.Forward.DegreesBySource), s.NumPoints()),
			Wrapped: dynamo.ErrDimensionMismatch,
		}
	}
	if res.Forward.NumEdges() != res.Backward.NumEdges() || res.Forward.NumEdges() != res.Edges.NumEdges() {
		return &dynamo.BucketizationError{Reason: "forward and backward buckets disagree"}
	}
	if want := res.Edges.NumEdges() * s.numSplits * dynamo.ElementsPerPoint; len(res.Midpoints) != want {
		return &dynamo.BucketizationError{
			Reason:  fmt.Sprintf("%d midpoint values, want %d", len(res.Midpoints), want),
			Wrapped: dynamo.ErrDimensionMismatch,
		}
	}

	s.edges = res
	s.edgeColors = nil
	s.interpolatePending = true
	s.publish()
	return ctx.Err()
}

func (s *Simulator) SetEdgeColors(ctx context.Context, colors dynamo.ColorBuffer) error {
	if len(colors) != 0 && len(colors) != s.NumEdges() {
		return &dynamo.IngestionError{
			Buffer:  "edge colors",
			Wrapped: fmt.Errorf("%w: %d colors for %d edges", dynamo.ErrDimensionMismatch, len(colors), s.NumEdges()),
		}
	}
	s.edgeColors = append(dynamo.ColorBuffer(nil), colors...)
	s.publish()
	return ctx.Err()
}

// SetPhysics merges cfg into the current values and creates kernels for
// algorithms seen for the first time. Kernels run in algorithm name order.
func (s *Simulator) SetPhysics(ctx context.Context, cfg dynamo.PhysicsConfig) error {
	created := make([]physics.Kernel, 0, len(cfg))
	for algo := range cfg {
		if _, ok := s.physics[algo]; ok {
			continue
		}
		k, err := physics.NewKernel(algo)
		if err != nil {
			return err
		}
		created = append(created, k)
	}

	for algo, vals := range cfg {
		if s.physics[algo] == nil {
			s.physics[algo] = make(map[string]dynamo.Value, len(vals))
		}
		for name, v := range vals {
			s.physics[algo][name] = v
		}
	}

	s.kernels = append(s.kernels, created...)
	sort.Slice(s.kernels, func(i, j int) bool { return s.kernels[i].Name() < s.kernels[j].Name() })
	return ctx.Err()
}

// Physics returns a copy of the current parameter values.
func (s *Simulator) Physics() dynamo.PhysicsConfig {
	out := make(dynamo.PhysicsConfig, len(s.physics))
	for algo, vals := range s.physics {
		c := make(map[string]dynamo.Value, len(vals))
		for k, v := range vals {
			c[k] = v
		}
		out[algo] = c
	}
	return out
}

func (s *Simulator) SetLocked(ctx context.Context, locks dynamo.Locks) error {
	s.locks = locks
	return ctx.Err()
}

func (s *Simulator) Locks() dynamo.Locks { return s.locks }

func (s *Simulator) SetTimeSubset(ctx context.Context, window dynamo.TimeSubset) error {
	s.timeSubset = window
	return ctx.Err()
}

func (s *Simulator) frame(step int) *physics.Frame {
	f := &physics.Frame{
		Points:     s.points,
		NumSplits:  s.numSplits,
		Locks:      s.locks,
		Dimensions: s.dims,
		Step:       step,
	}
	if s.edges != nil {
		f.Edges = s.edges.Edges
		f.Forward = s.edges.Forward
		f.Backward = s.edges.Backward
		f.Midpoints = s.edges.Midpoints
		f.ActiveLo, f.ActiveHi = s.timeSubset.Range(s.edges.Forward.NumWorkItems())
	}
	return f
}

// Tick runs every kernel once against the current buffers.
func (s *Simulator) Tick(ctx context.Context, step int) error {
	if s.points == nil {
		return dynamo.ErrNotReady
	}
	start := time.Now()

	if s.interpolatePending && s.locks.InterpolateMidPointsOnce && s.edges != nil && s.numSplits > 0 {
		copy(s.edges.Midpoints, edges.Midpoints(s.edges.Edges, s.points, s.numSplits))
	}
	s.interpolatePending = false

	f := s.frame(step)
	for _, k := range s.kernels {
		if err := k.Step(ctx, f, s.physics[k.Name()]); err != nil {
			return fmt.Errorf("%s: %w", k.Name(), err)
		}
	}
	if !s.points.IsValid() {
		return fmt.Errorf("step %d produced non-finite positions", step)
	}

	s.step = step
	s.publish()

	if elapsed := time.Since(start); s.budget > 0 && elapsed > s.budget {
		s.logger.Debug("tick over budget",
			zap.Int("step", step),
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", s.budget),
		)
	}
	return nil
}

func (s *Simulator) View() dynamo.View {
	v := dynamo.View{
		Points:     s.points,
		Sizes:      s.sizes,
		Colors:     s.colors,
		EdgeColors: s.edgeColors,
		NumSplits:  s.numSplits,
		Step:       s.step,
	}
	if s.edges != nil {
		v.Edges = s.edges.Edges
		v.Midpoints = s.edges.Midpoints
	}
	return v
}

func (s *Simulator) publish() {
	if s.sink != nil {
		s.sink.Publish(s.View())
	}
}
