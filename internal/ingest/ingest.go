// Package ingest converts caller-supplied point, size and color data into
// the fixed-layout buffers consumed by simulators.
package ingest

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

const (
	MinPointSize = 0
	MaxPointSize = math.MaxUint8
)

// Vertices flattens 2D coordinates into a point buffer.
func Vertices(points [][2]float64) (dynamo.PointBuffer, error) {
	buf := make(dynamo.PointBuffer, len(points)*dynamo.ElementsPerPoint)
	for i, p := range points {
		ii := i * dynamo.ElementsPerPoint
		buf[ii] = float32(p[0])
		buf[ii+1] = float32(p[1])
	}
	if !buf.IsValid() {
		return nil, &dynamo.IngestionError{
			Buffer:  "points",
			Wrapped: fmt.Errorf("non-finite coordinate in %d points", len(points)),
		}
	}
	return buf, nil
}

// Sizes builds a size buffer for numPoints points. A nil slice yields the
// default size everywhere. Out-of-range values are clamped into [0,255] and
// counted rather than rejected; missing trailing values use the default.
func Sizes(sizes []float64, numPoints int) (dynamo.SizeBuffer, int) {
	buf := make(dynamo.SizeBuffer, numPoints)
	if sizes == nil {
		for i := range buf {
			buf[i] = dynamo.DefaultPointSize
		}
		return buf, 0
	}

	clamped := 0
	for i := range buf {
		if i >= len(sizes) {
			buf[i] = dynamo.DefaultPointSize
			continue
		}
		s := sizes[i]
		if math.IsNaN(s) {
			clamped++
			continue
		}
		c := clamp(s, MinPointSize, MaxPointSize)
		if c != s {
			clamped++
		}
		buf[i] = uint8(math.Trunc(c))
	}
	return buf, clamped
}

// Colors builds a color buffer for numPoints points. Only the default color
// is supported; any explicit color array is rejected.
func Colors(colors []uint32, numPoints int) (dynamo.ColorBuffer, error) {
	if colors != nil {
		return nil, &dynamo.UnsupportedFeatureError{Feature: "custom point colors"}
	}
	buf := make(dynamo.ColorBuffer, numPoints)
	for i := range buf {
		buf[i] = dynamo.DefaultPointColor
	}
	return buf, nil
}

// EdgeColors builds a color buffer for numEdges edges. nil yields the
// default color for every edge; otherwise one color per edge is required.
func EdgeColors(colors []uint32, numEdges int) (dynamo.ColorBuffer, error) {
	if colors == nil {
		buf := make(dynamo.ColorBuffer, numEdges)
		for i := range buf {
			buf[i] = dynamo.DefaultEdgeColor
		}
		return buf, nil
	}
	if len(colors) != numEdges {
		return nil, &dynamo.IngestionError{
			Buffer:  "edge colors",
			Wrapped: fmt.Errorf("%w: %d colors for %d edges", dynamo.ErrDimensionMismatch, len(colors), numEdges),
		}
	}
	return append(dynamo.ColorBuffer(nil), colors...), nil
}

// Edges converts index pairs into an edge buffer.
func Edges(pairs [][2]uint32) dynamo.EdgeBuffer {
	buf := make(dynamo.EdgeBuffer, 0, len(pairs)*2)
	for _, p := range pairs {
		buf = append(buf, p[0], p[1])
	}
	return buf
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
