package compute

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/sim"
)

// Devices lists the devices simulators from this package can run on.
func Devices() []config.Device {
	return []config.Device{config.CPU}
}

type Backend struct {
	logger *zap.Logger
	budget time.Duration
}

type Option func(*Backend)

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithSimulationTime sets the per-tick budget. Ticks that run over it are
// logged, never cut short.
func WithSimulationTime(d time.Duration) Option {
	return func(b *Backend) { b.budget = d }
}

func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: zap.NewNop(),
		budget: config.SimulationTime,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string { return "cpu" }

func (b *Backend) Create(ctx context.Context, renderer sim.Renderer, dims dynamo.Dimensions, numSplits int) (sim.Simulator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %gx%g", dynamo.ErrDimensionMismatch, dims.Width, dims.Height)
	}
	if numSplits < 0 {
		return nil, fmt.Errorf("numSplits must be non-negative, got %d", numSplits)
	}
	return NewSimulator(renderer, dims, numSplits, b.budget, b.logger), nil
}
