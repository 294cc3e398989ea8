package physics

import (
	"context"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// minDist2 keeps coincident points from producing unbounded forces.
const minDist2 = 1e-12

// pairwiseRepulsion adds the ForceAtlas2 repulsion kr*mi*mj/d between every
// pair of points to force. Each worker owns a contiguous range of i.
func pairwiseRepulsion(ctx context.Context, pos dynamo.PointBuffer, masses []float64, kr float64, force []float64) error {
	n := len(masses)
	return dynamo.ParallelFor(ctx, n, dynamo.MinChunk, func(start, end int) error {
		for i := start; i < end; i++ {
			xi, yi := float64(pos[i*2]), float64(pos[i*2+1])
			var fx, fy float64

			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				rx := xi - float64(pos[j*2])
				ry := yi - float64(pos[j*2+1])
				r2 := rx*rx + ry*ry
				if r2 < minDist2 {
					continue
				}

				f := kr * masses[i] * masses[j] / r2
				fx += f * rx
				fy += f * ry
			}

			force[i*2] += fx
			force[i*2+1] += fy
		}
		return nil
	})
}
