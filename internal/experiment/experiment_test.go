package experiment

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/metrics"
	"github.com/san-kum/forcegraph/internal/sim"
	"github.com/san-kum/forcegraph/internal/storage"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Dataset = "ring:12"
	cfg.Renderer = "null"
	cfg.Ticks = 20
	return cfg
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"cpu"}, r.ListSimulators())
	assert.Equal(t, []string{"null", "png", "svg", "terminal"}, r.ListRenderers())

	_, err := r.GetSimulator("cuda")
	assert.Error(t, err)
	_, err = r.GetRenderer("webgl", RendererOptions{})
	assert.Error(t, err)

	b, err := r.GetRenderer("svg", RendererOptions{})
	require.NoError(t, err)
	assert.Equal(t, "svg", b.Name())
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	e := New(testConfig(), NewRegistry(), WithMetrics(reg))
	require.NoError(t, e.Setup(ctx))
	defer e.Close()

	assert.Equal(t, 12, e.Session().NumPoints())
	assert.Equal(t, 12, e.Session().NumEdges())
	assert.False(t, e.Selection().Fallback)

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Ticks)
	assert.Equal(t, 20, res.Step)
	assert.Zero(t, res.Failures)
	assert.Len(t, res.Movement, 20)
	assert.Equal(t, 12, res.Frame.View.Points.Len())
	assert.True(t, res.Frame.View.Points.IsValid())

	assert.Equal(t, 20.0, testutil.ToFloat64(reg.TicksTotal.WithLabelValues("ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(reg.PointsTotal))
}

func TestRunWithLockedPoints(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Settings = &config.Settings{Locks: &dynamo.Locks{LockPoints: true}}

	e := New(cfg, NewRegistry())
	require.NoError(t, e.Setup(ctx))
	res, err := e.Run(ctx)
	require.NoError(t, err)

	for _, mv := range res.Movement {
		assert.Zero(t, mv)
	}
}

func TestQueuedSettingsApplyBeforeNextTick(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Ticks = 5

	e := New(cfg, NewRegistry())
	require.NoError(t, e.Setup(ctx))
	e.QueueSettings(&config.Settings{Locks: &dynamo.Locks{LockPoints: true}})

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Ticks)
	for _, mv := range res.Movement {
		assert.Zero(t, mv)
	}
}

func TestProfileFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Profile = "atlasbarnes"
	reg := metrics.NewRegistry()

	e := New(cfg, NewRegistry(), WithMetrics(reg))
	require.NoError(t, e.Setup(context.Background()))

	assert.True(t, e.Selection().Fallback)
	assert.Equal(t, config.CPU, e.Selection().Device)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ConfigWarnings.WithLabelValues(string(dynamo.WarnDeviceFallback))))
}

type failingSimulator struct {
	sim.Simulator
}

func (failingSimulator) Tick(context.Context, int) error { return errors.New("device lost") }

type failingBackend struct {
	sim.SimulatorBackend
}

func (b failingBackend) Create(ctx context.Context, r sim.Renderer, dims dynamo.Dimensions, numSplits int) (sim.Simulator, error) {
	s, err := b.SimulatorBackend.Create(ctx, r, dims, numSplits)
	return failingSimulator{Simulator: s}, err
}

func TestRunStopsAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	cpu, err := registry.GetSimulator("cpu")
	require.NoError(t, err)
	registry.RegisterSimulator("flaky", SimulatorFactory{
		Devices: cpu.Devices,
		New: func(l *zap.Logger, p *config.Profile) sim.SimulatorBackend {
			return failingBackend{SimulatorBackend: cpu.New(l, p)}
		},
	})

	cfg := testConfig()
	cfg.Simulator = "flaky"
	cfg.MaxFailures = 3
	reg := metrics.NewRegistry()

	e := New(cfg, registry, WithMetrics(reg))
	require.NoError(t, e.Setup(ctx))

	res, err := e.Run(ctx)
	assert.ErrorIs(t, err, ErrTooManyFailures)
	assert.Equal(t, 3, res.Failures)
	assert.Zero(t, res.Ticks)
	assert.Zero(t, res.Step)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CircuitBreakerOpen))
}

func TestSetupErrors(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	cfg.Dataset = "ring:zero"
	assert.Error(t, New(cfg, NewRegistry()).Setup(ctx))

	cfg = testConfig()
	cfg.Renderer = "webgl"
	assert.Error(t, New(cfg, NewRegistry()).Setup(ctx))

	cfg = testConfig()
	cfg.Profile = "nope"
	assert.ErrorIs(t, New(cfg, NewRegistry()).Setup(ctx), dynamo.ErrUnknownProfile)

	_, err := New(testConfig(), NewRegistry()).Run(ctx)
	assert.Error(t, err)
}

func TestSVGWrittenOnClose(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Renderer = "svg"
	cfg.Ticks = 3

	var buf bytes.Buffer
	e := New(cfg, NewRegistry(), WithCanvas(&buf))
	require.NoError(t, e.Setup(ctx))
	_, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, buf.Len())

	require.NoError(t, e.Close())
	assert.True(t, strings.HasPrefix(buf.String(), "<?xml"))
	assert.Equal(t, 12, strings.Count(buf.String(), "<path "))
}

func TestStorageRun(t *testing.T) {
	ctx := context.Background()
	e := New(testConfig(), NewRegistry())
	require.NoError(t, e.Setup(ctx))
	res, err := e.Run(ctx)
	require.NoError(t, err)

	store := storage.New(t.TempDir())
	run := e.StorageRun(res)
	id, err := store.Save(run)
	require.NoError(t, err)

	meta, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "ring:12", meta.Dataset)
	assert.Equal(t, config.DefaultProfile, meta.Profile)
	assert.Equal(t, 20, meta.Ticks)

	points, err := store.LoadPositions(id)
	require.NoError(t, err)
	assert.Equal(t, res.Frame.View.Points, points)
}
