package sim

import (
	"time"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

type EventKind int

const (
	TickBegin EventKind = iota
	SimulateBegin
	SimulateEnd
	RenderBegin
	RenderEnd
	TickEnd
)

func (k EventKind) String() string {
	switch k {
	case TickBegin:
		return "tickBegin"
	case SimulateBegin:
		return "simulateBegin"
	case SimulateEnd:
		return "simulateEnd"
	case RenderBegin:
		return "renderBegin"
	case RenderEnd:
		return "renderEnd"
	case TickEnd:
		return "tickEnd"
	default:
		return "unknown"
	}
}

// Event is a tick lifecycle signal. Err is set on the End event of the
// phase that failed and on the TickEnd that follows it.
type Event struct {
	Kind    EventKind
	Session string
	Step    int
	Time    time.Time
	Err     error
}

// Listener receives the lifecycle events of one session, synchronously and
// in order.
type Listener interface {
	OnEvent(e Event)
}

type ListenerFunc func(e Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// WarningListener is implemented by listeners that also want configuration
// warnings.
type WarningListener interface {
	OnWarning(w dynamo.Warning)
}
