package experiment

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/san-kum/forcegraph/internal/compute"
	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/export"
	"github.com/san-kum/forcegraph/internal/sim"
	"github.com/san-kum/forcegraph/internal/viz"
)

// SimulatorFactory builds a simulator backend and names the devices its
// simulators can run on.
type SimulatorFactory struct {
	Devices []config.Device
	New     func(logger *zap.Logger, profile *config.Profile) sim.SimulatorBackend
}

// RendererOptions size a renderer. Terminal renderers use Cols x Rows
// cells; image renderers use Width x Height pixels.
type RendererOptions struct {
	Cols, Rows    int
	Width, Height int
	Theme         string
	Color         bool
}

// RendererOptionsFor derives renderer sizes from a run config. Image
// renderers get ten pixels per column and twenty per row.
func RendererOptionsFor(cfg *config.Config) RendererOptions {
	return RendererOptions{
		Cols:   cfg.Width,
		Rows:   cfg.Height,
		Width:  cfg.Width * 10,
		Height: cfg.Height * 20,
	}
}

type Registry struct {
	simulators map[string]SimulatorFactory
	renderers  map[string]func(RendererOptions) sim.RendererBackend
}

func NewRegistry() *Registry {
	r := &Registry{
		simulators: make(map[string]SimulatorFactory),
		renderers:  make(map[string]func(RendererOptions) sim.RendererBackend),
	}

	r.simulators["cpu"] = SimulatorFactory{
		Devices: compute.Devices(),
		New: func(logger *zap.Logger, profile *config.Profile) sim.SimulatorBackend {
			return compute.NewBackend(
				compute.WithLogger(logger),
				compute.WithSimulationTime(profile.Global.SimulationTime),
			)
		},
	}

	r.renderers["terminal"] = func(o RendererOptions) sim.RendererBackend {
		return &viz.TerminalBackend{Cols: o.Cols, Rows: o.Rows, Theme: viz.GetTheme(o.Theme), Color: o.Color}
	}
	r.renderers["svg"] = func(o RendererOptions) sim.RendererBackend {
		return &export.Backend{Format: export.SVG, Width: o.Width, Height: o.Height, Theme: viz.GetTheme(o.Theme)}
	}
	r.renderers["png"] = func(o RendererOptions) sim.RendererBackend {
		return &export.Backend{Format: export.PNG, Width: o.Width, Height: o.Height, Theme: viz.GetTheme(o.Theme)}
	}
	r.renderers["null"] = func(RendererOptions) sim.RendererBackend {
		return nullBackend{}
	}

	return r
}

// RegisterSimulator adds or replaces a simulator backend.
func (r *Registry) RegisterSimulator(name string, f SimulatorFactory) {
	r.simulators[name] = f
}

func (r *Registry) RegisterRenderer(name string, f func(RendererOptions) sim.RendererBackend) {
	r.renderers[name] = f
}

func (r *Registry) GetSimulator(name string) (SimulatorFactory, error) {
	f, ok := r.simulators[name]
	if !ok {
		return SimulatorFactory{}, fmt.Errorf("unknown simulator: %s", name)
	}
	return f, nil
}

func (r *Registry) GetRenderer(name string, opts RendererOptions) (sim.RendererBackend, error) {
	fn, ok := r.renderers[name]
	if !ok {
		return nil, fmt.Errorf("unknown renderer: %s", name)
	}
	return fn(opts), nil
}

func (r *Registry) ListSimulators() []string {
	return sortedNames(r.simulators)
}

func (r *Registry) ListRenderers() []string {
	return sortedNames(r.renderers)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nullRenderer keeps published views for inspection and draws nothing.
type nullRenderer struct {
	*viz.Scene
}

func (nullRenderer) Render(ctx context.Context) error { return ctx.Err() }

type nullBackend struct{}

func (nullBackend) Name() string { return "null" }

func (nullBackend) Create(ctx context.Context, _ io.Writer, _ color.RGBA, _ dynamo.Dimensions) (sim.Renderer, error) {
	return nullRenderer{Scene: viz.NewScene()}, ctx.Err()
}
