package edges

import (
	"fmt"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// Result is everything a simulator needs to install a new edge set. Edges
// keeps the caller's order, which is also the midpoint order.
type Result struct {
	Edges     dynamo.EdgeBuffer
	Forward   *Bucket
	Backward  *Bucket
	Midpoints []float32
	NumSplits int
}

// Midpoints interpolates numSplits control points strictly between the
// endpoints of every edge, in the original (unsorted) edge order. Split q of
// edge e in dimension d lands at out[(e*numSplits+q)*ElementsPerPoint+d].
func Midpoints(e dynamo.EdgeBuffer, points dynamo.PointBuffer, numSplits int) []float32 {
	if numSplits <= 0 {
		return nil
	}
	const nDim = dynamo.ElementsPerPoint
	out := make([]float32, e.NumEdges()*numSplits*nDim)
	for i := 0; i < e.NumEdges(); i++ {
		src, dst := e.Pair(i)
		for d := 0; d < nDim; d++ {
			start := points[int(src)*nDim+d]
			end := points[int(dst)*nDim+d]
			step := (end - start) / float32(numSplits+1)
			for q := 0; q < numSplits; q++ {
				out[(i*numSplits+q)*nDim+d] = start + step*float32(q+1)
			}
		}
	}
	return out
}

// Build bucketizes e in both directions and computes bundling midpoints.
// An empty buffer yields a nil result and no error.
func Build(e dynamo.EdgeBuffer, points dynamo.PointBuffer, numSplits int) (*Result, error) {
	if len(e) == 0 {
		return nil, nil
	}
	if len(points)%dynamo.ElementsPerPoint != 0 {
		return nil, &dynamo.BucketizationError{
			Reason:  fmt.Sprintf("point buffer length %d", len(points)),
			Wrapped: dynamo.ErrDimensionMismatch,
		}
	}

	numPoints := points.Len()
	forward, err := Bucketize(e, numPoints)
	if err != nil {
		return nil, err
	}
	backward, err := Bucketize(Reverse(e), numPoints)
	if err != nil {
		return nil, err
	}

	return &Result{
		Edges:     append(dynamo.EdgeBuffer(nil), e...),
		Forward:   forward,
		Backward:  backward,
		Midpoints: Midpoints(e, points, numSplits),
		NumSplits: numSplits,
	}, nil
}
