package sim

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/edges"
	"github.com/san-kum/forcegraph/internal/ingest"
)

// StepNumberOnChange is the step a physics change restarts from. It is past
// the initial expansion so the layout settles instead of re-exploding.
const StepNumberOnChange = 30

// Session owns one graph layout: its buffers, its simulator and renderer,
// and the step counter. Ingestion calls and Tick must not overlap; a Tick
// issued while another is running fails with dynamo.ErrTickInFlight.
type Session struct {
	id        string
	logger    *zap.Logger
	listeners []Listener

	simulator Simulator
	renderer  Renderer
	profile   *config.Profile
	dims      dynamo.Dimensions
	numSplits int

	ingestMu sync.Mutex
	state    atomic.Int32
	step     atomic.Int64

	// points is the last committed vertex buffer; midpoints are
	// interpolated from it.
	points   dynamo.PointBuffer
	numEdges int
}

// New creates the renderer and simulator for a session and installs the
// profile's physics and locks. dims and numSplits default to the profile's
// global settings.
func New(ctx context.Context, simBackend SimulatorBackend, rendBackend RendererBackend, canvas io.Writer, bg color.RGBA, opts ...Option) (*Session, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	profile := o.profile
	if profile == nil {
		sel, err := config.Select(config.DefaultProfile, config.CPU)
		if err != nil {
			return nil, err
		}
		profile = sel.Profile
	} else {
		profile = profile.Clone()
	}

	dims := profile.Global.Dimensions
	if o.dims != nil {
		dims = *o.dims
	}
	numSplits := profile.Global.NumSplits
	if o.numSplits != nil {
		numSplits = *o.numSplits
	}
	if numSplits < 0 {
		return nil, fmt.Errorf("numSplits must be non-negative, got %d", numSplits)
	}

	s := &Session{
		id:        uuid.NewString(),
		listeners: o.listeners,
		profile:   profile,
		dims:      dims,
		numSplits: numSplits,
	}
	s.logger = o.logger.With(zap.String("session", s.id), zap.String("profile", profile.Name))

	renderer, err := rendBackend.Create(ctx, canvas, bg, dims)
	if err != nil {
		return nil, fmt.Errorf("create %s renderer: %w", rendBackend.Name(), err)
	}
	s.renderer = renderer

	simulator, err := simBackend.Create(ctx, renderer, dims, numSplits)
	if err != nil {
		return nil, fmt.Errorf("create %s simulator: %w", simBackend.Name(), err)
	}
	s.simulator = simulator

	if err := simulator.SetPhysics(ctx, profile.Physics()); err != nil {
		return nil, fmt.Errorf("install physics: %w", err)
	}
	if err := simulator.SetLocked(ctx, profile.Locks); err != nil {
		return nil, fmt.Errorf("install locks: %w", err)
	}

	s.logger.Debug("session created",
		zap.String("simulator", simBackend.Name()),
		zap.String("renderer", rendBackend.Name()),
		zap.Int("numSplits", numSplits),
	)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Step() int { return int(s.step.Load()) }

func (s *Session) NumPoints() int { return s.simulator.NumPoints() }

func (s *Session) NumEdges() int { return s.numEdges }

func (s *Session) NumSplits() int { return s.numSplits }

func (s *Session) Profile() string { return s.profile.Name }

// ClientParams describes the session's layout parameters in slider form.
func (s *Session) ClientParams() []config.ClientAlgorithm {
	return s.profile.ToClient()
}

// begin moves the session into Ingesting and returns the state to restore.
func (s *Session) begin() (State, error) {
	s.ingestMu.Lock()
	for {
		prev := State(s.state.Load())
		if prev == Ticking {
			s.ingestMu.Unlock()
			return prev, dynamo.ErrTickInFlight
		}
		if s.state.CompareAndSwap(int32(prev), int32(Ingesting)) {
			return prev, nil
		}
	}
}

func (s *Session) end(next State) {
	s.state.Store(int32(next))
	s.ingestMu.Unlock()
}

// SetPoints ingests positions, sizes and colors together. All three buffers
// are prepared before any is committed, so a rejected request (such as
// custom colors) leaves the session unchanged.
func (s *Session) SetPoints(ctx context.Context, points [][2]float64, sizes []float64, colors []uint32) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}

	next := prev
	defer func() { s.end(next) }()

	pb, err := ingest.Vertices(points)
	if err != nil {
		return s.ingestFailed("vertices", err)
	}
	sb, clamped := ingest.Sizes(sizes, pb.Len())
	cb, err := ingest.Colors(colors, pb.Len())
	if err != nil {
		return s.ingestFailed("colors", err)
	}
	s.warnClamped(clamped)

	if err := s.commitVertices(ctx, pb); err != nil {
		return err
	}
	next = Ready
	if err := s.simulator.SetSizes(ctx, sb); err != nil {
		return s.ingestFailed("sizes", wrapIngest("sizes", err))
	}
	if err := s.simulator.SetColors(ctx, cb); err != nil {
		return s.ingestFailed("colors", wrapIngest("colors", err))
	}
	return nil
}

// SetVertices replaces positions and resets the step counter to 0.
func (s *Session) SetVertices(ctx context.Context, points [][2]float64) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	next := prev
	defer func() { s.end(next) }()

	pb, err := ingest.Vertices(points)
	if err != nil {
		return s.ingestFailed("vertices", err)
	}
	if err := s.commitVertices(ctx, pb); err != nil {
		return err
	}
	next = Ready
	return nil
}

func (s *Session) commitVertices(ctx context.Context, pb dynamo.PointBuffer) error {
	if err := s.simulator.SetPoints(ctx, pb); err != nil {
		return s.ingestFailed("vertices", wrapIngest("points", err))
	}
	if s.numEdges > 0 && pb.Len() != s.points.Len() {
		s.logger.Warn("edges dropped with the point count change",
			zap.Int("edges", s.numEdges),
			zap.Int("points", pb.Len()),
		)
		s.numEdges = 0
	}
	s.points = pb
	s.step.Store(0)
	s.logger.Debug("vertices committed", zap.Int("points", pb.Len()))
	return nil
}

func (s *Session) SetSizes(ctx context.Context, sizes []float64) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	sb, clamped := ingest.Sizes(sizes, s.simulator.NumPoints())
	s.warnClamped(clamped)
	if err := s.simulator.SetSizes(ctx, sb); err != nil {
		return s.ingestFailed("sizes", wrapIngest("sizes", err))
	}
	return nil
}

func (s *Session) SetColors(ctx context.Context, colors []uint32) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	cb, err := ingest.Colors(colors, s.simulator.NumPoints())
	if err != nil {
		return s.ingestFailed("colors", err)
	}
	if err := s.simulator.SetColors(ctx, cb); err != nil {
		return s.ingestFailed("colors", wrapIngest("colors", err))
	}
	return nil
}

// SetEdges installs an edge set and its colors. An empty edge buffer is a
// successful no-op. The colors are checked before anything is committed, so
// a rejected call leaves the previous edges and colors in place.
func (s *Session) SetEdges(ctx context.Context, e dynamo.EdgeBuffer, edgeColors []uint32) error {
	if len(e) == 0 {
		return nil
	}
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	cb, err := ingest.EdgeColors(edgeColors, e.NumEdges())
	if err != nil {
		return s.ingestFailed("edge colors", err)
	}
	if err := s.commitEdges(ctx, e); err != nil {
		return err
	}
	return s.commitEdgeColors(ctx, cb)
}

// SetEdgesOnly bucketizes e and hands it to the simulator. On failure the
// previous edge set stays installed.
func (s *Session) SetEdgesOnly(ctx context.Context, e dynamo.EdgeBuffer) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)
	return s.commitEdges(ctx, e)
}

func (s *Session) commitEdges(ctx context.Context, e dynamo.EdgeBuffer) error {
	start := time.Now()
	res, err := edges.Build(e, s.points, s.numSplits)
	if err != nil {
		return s.ingestFailed("edges", err)
	}
	if res == nil {
		return nil
	}

	if err := s.simulator.SetEdges(ctx, res); err != nil {
		var be *dynamo.BucketizationError
		if !errors.As(err, &be) {
			err = &dynamo.BucketizationError{Reason: "rejected by simulator", Wrapped: err}
		}
		return s.ingestFailed("edges", err)
	}
	s.numEdges = res.Forward.NumEdges()

	s.logger.Debug("edges committed",
		zap.Int("edges", s.numEdges),
		zap.Int("workItems", res.Forward.NumWorkItems()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// SetEdgeColors replaces the edge colors. nil restores the default color;
// otherwise one color per installed edge is required.
func (s *Session) SetEdgeColors(ctx context.Context, colors []uint32) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	cb, err := ingest.EdgeColors(colors, s.numEdges)
	if err != nil {
		return s.ingestFailed("edge colors", err)
	}
	return s.commitEdgeColors(ctx, cb)
}

func (s *Session) commitEdgeColors(ctx context.Context, cb dynamo.ColorBuffer) error {
	if err := s.simulator.SetEdgeColors(ctx, cb); err != nil {
		return s.ingestFailed("edge colors", wrapIngest("edge colors", err))
	}
	return nil
}

// SetPhysics hands decoded parameter values straight to the simulator and
// moves the step counter to StepNumberOnChange.
func (s *Session) SetPhysics(ctx context.Context, cfg dynamo.PhysicsConfig) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)
	return s.applyPhysics(ctx, cfg)
}

func (s *Session) applyPhysics(ctx context.Context, cfg dynamo.PhysicsConfig) error {
	if err := s.simulator.SetPhysics(ctx, cfg); err != nil {
		return fmt.Errorf("set physics: %w", err)
	}
	s.step.Store(StepNumberOnChange)
	return nil
}

func (s *Session) SetLocked(ctx context.Context, locks dynamo.Locks) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	if err := s.simulator.SetLocked(ctx, locks); err != nil {
		return fmt.Errorf("set locks: %w", err)
	}
	return nil
}

func (s *Session) SetVisible(ctx context.Context, v dynamo.Visibility) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	if err := s.renderer.SetVisible(ctx, v); err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}
	return nil
}

func (s *Session) SetTimeSubset(ctx context.Context, window dynamo.TimeSubset) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	if err := s.simulator.SetTimeSubset(ctx, window); err != nil {
		return fmt.Errorf("set time subset: %w", err)
	}
	return nil
}

func (s *Session) SetColorMap(ctx context.Context, imageURL string, clusters []int) error {
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	if err := s.renderer.SetColorMap(ctx, imageURL, clusters); err != nil {
		return fmt.Errorf("set color map %s: %w", imageURL, err)
	}
	return nil
}

// UpdateSettings applies physics, then locks, then visibility, then the time
// subset. Physics values are decoded through the session's parameter sets;
// unknown names are logged and skipped. The step counter moves to
// StepNumberOnChange only when at least one parameter was accepted.
func (s *Session) UpdateSettings(ctx context.Context, settings *config.Settings) error {
	if settings.IsEmpty() {
		return nil
	}
	prev, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(prev)

	if len(settings.Simulator) > 0 {
		cfg, warnings := s.profile.FromClient(settings.Simulator)
		for _, w := range warnings {
			s.warn(w)
		}
		if config.NumUpdates(cfg) > 0 {
			if err := s.applyPhysics(ctx, cfg); err != nil {
				return err
			}
		}
	}

	if settings.Locks != nil {
		if err := s.simulator.SetLocked(ctx, *settings.Locks); err != nil {
			return fmt.Errorf("set locks: %w", err)
		}
	}
	if settings.Visible != nil {
		if err := s.renderer.SetVisible(ctx, *settings.Visible); err != nil {
			return fmt.Errorf("set visibility: %w", err)
		}
	}
	if settings.TimeSubset != nil {
		if err := s.simulator.SetTimeSubset(ctx, *settings.TimeSubset); err != nil {
			return fmt.Errorf("set time subset: %w", err)
		}
	}
	return nil
}

// Tick simulates one step and then renders it. The step counter advances
// only when both phases succeed; either way the session returns to Ready.
func (s *Session) Tick(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Ready), int32(Ticking)) {
		if s.State() == Ticking {
			return dynamo.ErrTickInFlight
		}
		return fmt.Errorf("%w: session is %s", dynamo.ErrNotReady, s.State())
	}
	defer s.state.Store(int32(Ready))

	step := s.Step()
	s.emit(TickBegin, step, nil)

	s.emit(SimulateBegin, step, nil)
	if err := s.simulator.Tick(ctx, step); err != nil {
		s.emit(SimulateEnd, step, err)
		s.emit(TickEnd, step, err)
		s.logger.Error("simulate failed", zap.Int("step", step), zap.Error(err))
		return fmt.Errorf("simulate step %d: %w", step, err)
	}
	s.emit(SimulateEnd, step, nil)

	s.emit(RenderBegin, step, nil)
	if err := s.renderer.Render(ctx); err != nil {
		s.emit(RenderEnd, step, err)
		s.emit(TickEnd, step, err)
		s.logger.Error("render failed", zap.Int("step", step), zap.Error(err))
		return fmt.Errorf("render step %d: %w", step, err)
	}
	s.emit(RenderEnd, step, nil)
	s.emit(TickEnd, step, nil)

	s.step.Store(int64(step + 1))
	return nil
}

// Close releases the simulator and renderer when they hold resources.
func (s *Session) Close() error {
	var errs []error
	if c, ok := s.simulator.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.renderer.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (s *Session) emit(kind EventKind, step int, err error) {
	if len(s.listeners) == 0 {
		return
	}
	e := Event{Kind: kind, Session: s.id, Step: step, Time: time.Now(), Err: err}
	for _, l := range s.listeners {
		l.OnEvent(e)
	}
}

func (s *Session) warn(w dynamo.Warning) {
	s.logger.Warn("config warning",
		zap.String("kind", string(w.Kind)),
		zap.String("algorithm", w.Algorithm),
		zap.String("param", w.Param),
		zap.String("detail", w.Detail),
	)
	for _, l := range s.listeners {
		if wl, ok := l.(WarningListener); ok {
			wl.OnWarning(w)
		}
	}
}

func (s *Session) warnClamped(n int) {
	if n == 0 {
		return
	}
	s.warn(dynamo.Warning{
		Kind:   dynamo.WarnSizeClamped,
		Detail: fmt.Sprintf("%d point sizes clamped to [%d,%d]", n, ingest.MinPointSize, ingest.MaxPointSize),
	})
}

func (s *Session) ingestFailed(stage string, err error) error {
	s.logger.Error("ingestion failed", zap.String("stage", stage), zap.Error(err))
	return err
}

func wrapIngest(buffer string, err error) error {
	if errors.Is(err, dynamo.ErrIngestion) {
		return err
	}
	return &dynamo.IngestionError{Buffer: buffer, Wrapped: err}
}
