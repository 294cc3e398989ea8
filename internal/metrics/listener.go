package metrics

import (
	"sync"
	"time"

	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/sim"
)

// TickTimer is a session listener that times tick phases and counts tick
// outcomes and configuration warnings.
type TickTimer struct {
	reg *Registry

	mu     sync.Mutex
	starts map[sim.EventKind]time.Time
}

func NewTickTimer(reg *Registry) *TickTimer {
	return &TickTimer{reg: reg, starts: make(map[sim.EventKind]time.Time, 3)}
}

func (t *TickTimer) OnEvent(e sim.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case sim.TickBegin, sim.SimulateBegin, sim.RenderBegin:
		t.starts[e.Kind] = e.Time
	case sim.SimulateEnd:
		t.observe("simulate", sim.SimulateBegin, e.Time)
	case sim.RenderEnd:
		t.observe("render", sim.RenderBegin, e.Time)
	case sim.TickEnd:
		t.observe("tick", sim.TickBegin, e.Time)
		status := "ok"
		if e.Err != nil {
			status = "error"
		}
		t.reg.TicksTotal.WithLabelValues(status).Inc()
	}
}

func (t *TickTimer) OnWarning(w dynamo.Warning) {
	t.reg.RecordWarning(w)
}

func (t *TickTimer) observe(phase string, begin sim.EventKind, end time.Time) {
	start, ok := t.starts[begin]
	if !ok {
		return
	}
	delete(t.starts, begin)
	t.reg.RecordPhase(phase, end.Sub(start))
}
