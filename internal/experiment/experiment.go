package experiment

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dataset"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/metrics"
	"github.com/san-kum/forcegraph/internal/sim"
	"github.com/san-kum/forcegraph/internal/storage"
	"github.com/san-kum/forcegraph/internal/viz"
)

// ErrTooManyFailures is returned when consecutive tick failures open the
// circuit breaker.
var ErrTooManyFailures = errors.New("experiment: too many consecutive tick failures")

// breakerTimeout keeps an open breaker open for the rest of a run.
const breakerTimeout = time.Hour

// sceneRenderer is a renderer that keeps the latest published view.
type sceneRenderer interface {
	sim.Renderer
	Snapshot(fallback color.RGBA) viz.Frame
}

type Option func(*Experiment)

func WithLogger(l *zap.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(e *Experiment) { e.metrics = m }
}

// WithCanvas sets the writer renderers draw to.
func WithCanvas(w io.Writer) Option {
	return func(e *Experiment) { e.canvas = w }
}

func WithListener(l sim.Listener) Option {
	return func(e *Experiment) { e.listeners = append(e.listeners, l) }
}

func WithRendererOptions(o RendererOptions) Option {
	return func(e *Experiment) { e.rendOpts = &o }
}

// Experiment runs one layout: it loads a dataset, builds a session from
// the configured backends and ticks it.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	logger    *zap.Logger
	metrics   *metrics.Registry
	canvas    io.Writer
	listeners []sim.Listener
	rendOpts  *RendererOptions

	graph     *dataset.Graph
	selection config.Selection
	session   *sim.Session
	renderer  sceneRenderer
	breaker   *gobreaker.CircuitBreaker
	movement  *metrics.Movement
	pending   atomic.Pointer[config.Settings]
}

func New(cfg *config.Config, registry *Registry, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: registry,
		logger:   zap.NewNop(),
		movement: metrics.NewMovement(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "tick",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if e.metrics != nil {
				e.metrics.SetBreakerOpen(to == gobreaker.StateOpen)
			}
		},
	})
	return e
}

// Setup loads the dataset and creates a ready session.
func (e *Experiment) Setup(ctx context.Context) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	graph, err := dataset.Load(e.cfg.Dataset, e.cfg.Seed)
	if err != nil {
		return err
	}
	e.graph = graph

	factory, err := e.registry.GetSimulator(e.cfg.Simulator)
	if err != nil {
		return err
	}
	sel, err := config.Select(e.cfg.Profile, factory.Devices...)
	if err != nil {
		return err
	}
	e.selection = sel

	rendOpts := RendererOptionsFor(e.cfg)
	if e.rendOpts != nil {
		rendOpts = *e.rendOpts
	}
	rendBackend, err := e.registry.GetRenderer(e.cfg.Renderer, rendOpts)
	if err != nil {
		return err
	}
	capture := &capturingBackend{RendererBackend: rendBackend}

	bg, err := e.cfg.BackgroundColor()
	if err != nil {
		return err
	}

	opts := []sim.Option{sim.WithProfile(sel.Profile), sim.WithLogger(e.logger)}
	if e.metrics != nil {
		opts = append(opts, sim.WithListener(metrics.NewTickTimer(e.metrics)))
	}
	for _, l := range e.listeners {
		opts = append(opts, sim.WithListener(l))
	}

	session, err := sim.New(ctx, factory.New(e.logger, sel.Profile), capture, e.canvas, bg, opts...)
	if err != nil {
		return err
	}
	e.session = session

	if sel.Fallback {
		w := dynamo.Warning{
			Kind:   dynamo.WarnDeviceFallback,
			Detail: fmt.Sprintf("no %s candidate for %v, using %s", e.cfg.Profile, factory.Devices, sel.Device),
		}
		e.logger.Warn("device fallback", zap.String("detail", w.Detail))
		if e.metrics != nil {
			e.metrics.RecordWarning(w)
		}
	}

	r, ok := capture.last.(sceneRenderer)
	if !ok {
		return fmt.Errorf("renderer %s does not keep views", rendBackend.Name())
	}
	e.renderer = r

	if err := e.session.SetPoints(ctx, graph.Points, graph.Sizes, nil); err != nil {
		e.recordIngestion(err)
		return fmt.Errorf("set points: %w", err)
	}
	if err := e.session.SetEdges(ctx, graph.Edges, nil); err != nil {
		e.recordIngestion(err)
		return fmt.Errorf("set edges: %w", err)
	}
	if err := e.ApplySettings(ctx, e.cfg.Settings); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.SetGraphSize(e.session.NumPoints(), e.session.NumEdges())
	}

	e.logger.Info("experiment ready",
		zap.String("dataset", graph.Name),
		zap.String("profile", sel.Profile.Name),
		zap.String("device", string(sel.Device)),
		zap.Int("points", e.session.NumPoints()),
		zap.Int("edges", e.session.NumEdges()),
	)
	return nil
}

// ApplySettings forwards a settings revision to the session.
func (e *Experiment) ApplySettings(ctx context.Context, s *config.Settings) error {
	if e.session == nil {
		return fmt.Errorf("experiment not setup")
	}
	if err := e.session.UpdateSettings(ctx, s); err != nil {
		e.recordIngestion(err)
		return fmt.Errorf("apply settings: %w", err)
	}
	return nil
}

// QueueSettings stores a settings revision that Run applies before its next
// tick. A newer revision replaces one not yet applied. Safe to call from any
// goroutine.
func (e *Experiment) QueueSettings(s *config.Settings) {
	e.pending.Store(s)
}

// Result summarizes a finished run.
type Result struct {
	SessionID string
	Ticks     int
	Failures  int
	Step      int
	Movement  []float64
	Frame     viz.Frame
}

// Run ticks the session cfg.Ticks times. Failed ticks are logged and
// counted; once MaxFailures fail in a row the run stops with
// ErrTooManyFailures and the partial result.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.session == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	res := &Result{
		SessionID: e.session.ID(),
		Movement:  make([]float64, 0, e.cfg.Ticks),
	}
	e.movement.Observe(e.frame().View.Points)

	var runErr error
	for i := 0; i < e.cfg.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if s := e.pending.Swap(nil); s != nil {
			if err := e.ApplySettings(ctx, s); err != nil {
				e.logger.Warn("queued settings not applied", zap.Error(err))
			}
		}

		_, err := e.breaker.Execute(func() (interface{}, error) {
			return nil, e.session.Tick(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			runErr = fmt.Errorf("%w: %d", ErrTooManyFailures, e.cfg.MaxFailures)
			break
		}
		if err != nil {
			res.Failures++
			e.logger.Warn("tick failed", zap.Int("tick", i), zap.Error(err))
			continue
		}

		res.Ticks++
		mv := e.movement.Observe(e.frame().View.Points)
		res.Movement = append(res.Movement, mv)
		if e.metrics != nil {
			e.metrics.LayoutMovement.Set(mv)
		}
	}

	res.Step = e.session.Step()
	res.Frame = e.frame()
	return res, runErr
}

func (e *Experiment) frame() viz.Frame {
	return e.renderer.Snapshot(viz.ThemeNight.Points)
}

// StorageRun converts res into the form persisted by the run store.
func (e *Experiment) StorageRun(res *Result) *storage.Run {
	final := 0.0
	if n := len(res.Movement); n > 0 {
		final = res.Movement[n-1]
	}
	return &storage.Run{
		Meta: storage.RunMetadata{
			Dataset:   e.graph.Name,
			Profile:   e.selection.Profile.Name,
			Simulator: e.cfg.Simulator,
			Seed:      e.cfg.Seed,
			Ticks:     res.Ticks,
			Step:      res.Step,
			NumSplits: e.session.NumSplits(),
			Metrics: map[string]float64{
				"movement": final,
				"failures": float64(res.Failures),
			},
		},
		Positions: res.Frame.View.Points,
		Edges:     res.Frame.View.Edges,
		Movement:  res.Movement,
	}
}

func (e *Experiment) Session() *sim.Session { return e.session }

func (e *Experiment) Graph() *dataset.Graph { return e.graph }

func (e *Experiment) Selection() config.Selection { return e.selection }

// Renderer returns the session's renderer.
func (e *Experiment) Renderer() sim.Renderer { return e.renderer }

// Close releases the session; snapshot renderers write their image here.
func (e *Experiment) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Close()
}

func (e *Experiment) recordIngestion(err error) {
	if e.metrics != nil {
		e.metrics.RecordIngestionError(err)
	}
}

// capturingBackend remembers the renderer it creates so the experiment
// can read views back.
type capturingBackend struct {
	sim.RendererBackend
	last sim.Renderer
}

func (b *capturingBackend) Create(ctx context.Context, canvas io.Writer, bg color.RGBA, dims dynamo.Dimensions) (sim.Renderer, error) {
	r, err := b.RendererBackend.Create(ctx, canvas, bg, dims)
	b.last = r
	return r, err
}
