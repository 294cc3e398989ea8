package metrics

import (
	"math"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// Movement tracks the mean distance points travel between observations.
// It is the convergence signal of a layout: it falls towards zero as the
// layout settles.
type Movement struct {
	prev  dynamo.PointBuffer
	value float64
}

func NewMovement() *Movement {
	return &Movement{}
}

// Observe records points and returns the mean displacement since the last
// observation. The first observation, and any observation after the point
// count changed, returns 0.
func (m *Movement) Observe(points dynamo.PointBuffer) float64 {
	if len(m.prev) != len(points) || points.Len() == 0 {
		m.prev = points.Clone()
		m.value = 0
		return 0
	}

	sum := 0.0
	for i := 0; i < points.Len(); i++ {
		x0, y0 := m.prev.At(i)
		x1, y1 := points.At(i)
		sum += math.Hypot(float64(x1-x0), float64(y1-y0))
	}
	m.value = sum / float64(points.Len())
	copy(m.prev, points)
	return m.value
}

func (m *Movement) Value() float64 {
	return m.value
}

func (m *Movement) Reset() {
	m.prev = nil
	m.value = 0
}
