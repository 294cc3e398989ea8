package sim_test

import (
	"context"
	"image/color"
	"io"
	"sync"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/edges"
	"github.com/san-kum/forcegraph/internal/sim"
)

// callLog records backend calls across the fake simulator and renderer.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(c string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

type fakeSimulator struct {
	log *callLog

	points     dynamo.PointBuffer
	sizes      dynamo.SizeBuffer
	colors     dynamo.ColorBuffer
	edges      *edges.Result
	edgeColors dynamo.ColorBuffer
	physics    []dynamo.PhysicsConfig
	locks      dynamo.Locks
	subset     *dynamo.TimeSubset
	ticks      []int

	tickErr     error
	setEdgesErr error
	tickStarted chan struct{}
	tickRelease chan struct{}
}

func (f *fakeSimulator) NumPoints() int { return f.points.Len() }

func (f *fakeSimulator) SetPoints(_ context.Context, p dynamo.PointBuffer) error {
	f.log.add("setPoints")
	f.points = p.Clone()
	return nil
}

func (f *fakeSimulator) SetSizes(_ context.Context, s dynamo.SizeBuffer) error {
	f.log.add("setSizes")
	f.sizes = s
	return nil
}

func (f *fakeSimulator) SetColors(_ context.Context, c dynamo.ColorBuffer) error {
	f.log.add("setColors")
	f.colors = c
	return nil
}

func (f *fakeSimulator) SetEdges(_ context.Context, e *edges.Result) error {
	f.log.add("setEdges")
	if f.setEdgesErr != nil {
		return f.setEdgesErr
	}
	f.edges = e
	return nil
}

func (f *fakeSimulator) SetEdgeColors(_ context.Context, c dynamo.ColorBuffer) error {
	f.log.add("setEdgeColors")
	f.edgeColors = c
	return nil
}

func (f *fakeSimulator) SetPhysics(_ context.Context, cfg dynamo.PhysicsConfig) error {
	f.log.add("setPhysics")
	f.physics = append(f.physics, cfg)
	return nil
}

func (f *fakeSimulator) SetLocked(_ context.Context, l dynamo.Locks) error {
	f.log.add("setLocked")
	f.locks = l
	return nil
}

func (f *fakeSimulator) SetTimeSubset(_ context.Context, w dynamo.TimeSubset) error {
	f.log.add("setTimeSubset")
	f.subset = &w
	return nil
}

func (f *fakeSimulator) Tick(_ context.Context, step int) error {
	f.log.add("simulate")
	if f.tickStarted != nil {
		f.tickStarted <- struct{}{}
		<-f.tickRelease
	}
	if f.tickErr != nil {
		return f.tickErr
	}
	f.ticks = append(f.ticks, step)
	return nil
}

type fakeRenderer struct {
	log *callLog

	visible   dynamo.Visibility
	colorMap  string
	clusters  []int
	renders   int
	renderErr error
	view      dynamo.View
}

func (r *fakeRenderer) Publish(v dynamo.View) {
	v.EdgeColors = append(dynamo.ColorBuffer(nil), v.EdgeColors...)
	r.view = v
}

func (r *fakeRenderer) SetVisible(_ context.Context, v dynamo.Visibility) error {
	r.log.add("setVisible")
	r.visible = v
	return nil
}

func (r *fakeRenderer) SetColorMap(_ context.Context, url string, clusters []int) error {
	r.log.add("setColorMap")
	r.colorMap, r.clusters = url, clusters
	return nil
}

func (r *fakeRenderer) Render(context.Context) error {
	r.log.add("render")
	if r.renderErr != nil {
		return r.renderErr
	}
	r.renders++
	return nil
}

type fakeSimBackend struct {
	sim *fakeSimulator
	err error

	renderer  sim.Renderer
	dims      dynamo.Dimensions
	numSplits int
}

func (b *fakeSimBackend) Name() string { return "fake" }

func (b *fakeSimBackend) Create(_ context.Context, r sim.Renderer, dims dynamo.Dimensions, numSplits int) (sim.Simulator, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.renderer, b.dims, b.numSplits = r, dims, numSplits
	return b.sim, nil
}

type fakeRendBackend struct {
	renderer *fakeRenderer
	bg       color.RGBA
}

func (b *fakeRendBackend) Name() string { return "fake" }

func (b *fakeRendBackend) Create(_ context.Context, _ io.Writer, bg color.RGBA, _ dynamo.Dimensions) (sim.Renderer, error) {
	b.bg = bg
	return b.renderer, nil
}

type eventRecorder struct {
	mu       sync.Mutex
	events   []sim.Event
	warnings []dynamo.Warning
}

func (r *eventRecorder) OnEvent(e sim.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) OnWarning(w dynamo.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *eventRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind.String()
	}
	return out
}
