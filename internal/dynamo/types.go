package dynamo

import (
	"math"
)

// ElementsPerPoint is the number of coordinates stored per point.
const ElementsPerPoint = 2

const (
	DefaultPointSize  uint8  = 4
	DefaultPointColor uint32 = (255 << 24) | (102 << 16) | (102 << 8) | 255
	// DefaultEdgeColor marks edges without an explicit color; renderers draw
	// them in their theme's edge color.
	DefaultEdgeColor uint32 = DefaultPointColor
)

type PointBuffer []float32

func (p PointBuffer) Len() int { return len(p) / ElementsPerPoint }

func (p PointBuffer) Clone() PointBuffer {
	c := make(PointBuffer, len(p))
	copy(c, p)
	return c
}

func (p PointBuffer) IsValid() bool {
	if len(p)%ElementsPerPoint != 0 {
		return false
	}
	for _, v := range p {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// At returns the coordinates of point i.
func (p PointBuffer) At(i int) (x, y float32) {
	return p[i*ElementsPerPoint], p[i*ElementsPerPoint+1]
}

type SizeBuffer []uint8

type ColorBuffer []uint32

// RGBA unpacks a color stored as 0xRRGGBBAA.
func RGBA(c uint32) (r, g, b, a uint8) {
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

type EdgeBuffer []uint32

func (e EdgeBuffer) NumEdges() int { return len(e) / 2 }

// Pair returns the source and destination of edge i.
func (e EdgeBuffer) Pair(i int) (src, dst uint32) {
	return e[2*i], e[2*i+1]
}

type Dimensions struct {
	Width  float64 `yaml:"width" json:"width" validate:"gt=0"`
	Height float64 `yaml:"height" json:"height" validate:"gt=0"`
}

func DefaultDimensions() Dimensions {
	return Dimensions{Width: 1, Height: 1}
}

// Locks select which buffers a simulator may move.
type Locks struct {
	LockPoints               bool `yaml:"lockPoints" json:"lockPoints"`
	LockEdges                bool `yaml:"lockEdges" json:"lockEdges"`
	LockMidpoints            bool `yaml:"lockMidpoints" json:"lockMidpoints"`
	LockMidedges             bool `yaml:"lockMidedges" json:"lockMidedges"`
	InterpolateMidPoints     bool `yaml:"interpolateMidPoints" json:"interpolateMidPoints"`
	InterpolateMidPointsOnce bool `yaml:"interpolateMidPointsOnce" json:"interpolateMidPointsOnce"`
}

type Visibility struct {
	Points    bool `yaml:"points" json:"points"`
	Edges     bool `yaml:"edges" json:"edges"`
	Midpoints bool `yaml:"midpoints" json:"midpoints"`
	Labels    bool `yaml:"labels" json:"labels"`
}

func DefaultVisibility() Visibility {
	return Visibility{Points: true, Edges: true, Midpoints: true}
}

// TimeSubset restricts the active edges to a contiguous window of the
// source-sorted edge order. Min and Max are percentages in [0,100].
type TimeSubset struct {
	Min float64 `yaml:"min" json:"min" validate:"gte=0,lte=100"`
	Max float64 `yaml:"max" json:"max" validate:"gte=0,lte=100"`
}

func FullTimeSubset() TimeSubset {
	return TimeSubset{Min: 0, Max: 100}
}

// Range maps the window onto [0,n) and returns the half-open index range.
func (t TimeSubset) Range(n int) (lo, hi int) {
	minP := math.Max(0, math.Min(100, t.Min))
	maxP := math.Max(0, math.Min(100, t.Max))
	if maxP < minP {
		minP, maxP = maxP, minP
	}
	lo = int(math.Floor(minP / 100 * float64(n)))
	hi = int(math.Ceil(maxP / 100 * float64(n)))
	if hi > n {
		hi = n
	}
	return lo, hi
}

// Value is a decoded physical parameter value. Bool parameters are stored
// as 0 or 1.
type Value float64

func (v Value) Bool() bool { return v != 0 }

func BoolValue(b bool) Value {
	if b {
		return 1
	}
	return 0
}

// PhysicsConfig holds decoded parameter values keyed by algorithm name and
// then by parameter name.
type PhysicsConfig map[string]map[string]Value

// View is what a simulator shares with its renderer after every commit or
// tick. Slices alias the simulator's buffers and are only valid until the
// next call into the simulator.
type View struct {
	Points     PointBuffer
	Sizes      SizeBuffer
	Colors     ColorBuffer
	Edges      EdgeBuffer
	Midpoints  []float32
	EdgeColors ColorBuffer
	NumSplits  int
	Step       int
}

type ViewSink interface {
	Publish(v View)
}
