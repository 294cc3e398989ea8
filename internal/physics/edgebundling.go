package physics

import (
	"context"
	"math"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/edges"
)

// bundlingDt converts the Speed parameter into an integration step.
const bundlingDt = 1e-3

// Bundling moves edge midpoints: springs hold each midpoint between its
// neighbors along the edge, and a charge term pulls midpoints of the same
// split index on other edges together. Points never move.
type Bundling struct {
	trees   []*QuadTree
	scratch []float32
}

func NewEdgeBundling() *Bundling {
	return &Bundling{}
}

func (b *Bundling) Name() string { return config.EdgeBundling }

func (b *Bundling) Step(ctx context.Context, f *Frame, params map[string]dynamo.Value) error {
	if f.NumSplits <= 0 || len(f.Edges) == 0 {
		return nil
	}
	if f.Locks.InterpolateMidPoints {
		copy(f.Midpoints, edges.Midpoints(f.Edges, f.Points, f.NumSplits))
	}
	if f.Locks.LockMidpoints {
		return nil
	}

	tau := value(params, "tau", 1)
	charge := value(params, "charge", -0.05)
	springStrength := value(params, "springStrength", 400)
	springDistance := value(params, "springDistance", 0.5)

	splits := f.NumSplits
	numEdges := f.Edges.NumEdges()
	b.buildTrees(f.Midpoints, numEdges, splits)

	if cap(b.scratch) < len(f.Midpoints) {
		b.scratch = make([]float32, len(f.Midpoints))
	}
	next := b.scratch[:len(f.Midpoints)]
	copy(next, f.Midpoints)

	dt := tau * bundlingDt
	err := dynamo.ParallelFor(ctx, numEdges, 16, func(start, end int) error {
		stack := make([]int32, 0, 4*maxDepth)
		for e := start; e < end; e++ {
			src, dst := f.Edges.Pair(e)
			if !f.Active(src) {
				continue
			}
			sx, sy := f.Points.At(int(src))
			tx, ty := f.Points.At(int(dst))
			edgeLen := math.Hypot(float64(tx-sx), float64(ty-sy))
			rest := springDistance * edgeLen / float64(splits+1)
			limit := edgeLen/float64(splits+1) + 1e-6

			for q := 0; q < splits; q++ {
				idx := (e*splits + q) * dynamo.ElementsPerPoint
				x, y := float64(f.Midpoints[idx]), float64(f.Midpoints[idx+1])

				px, py := float64(sx), float64(sy)
				if q > 0 {
					px, py = float64(f.Midpoints[idx-2]), float64(f.Midpoints[idx-1])
				}
				nx, ny := float64(tx), float64(ty)
				if q < splits-1 {
					nx, ny = float64(f.Midpoints[idx+2]), float64(f.Midpoints[idx+3])
				}

				fx, fy := spring(x, y, px, py, rest, springStrength)
				gx, gy := spring(x, y, nx, ny, rest, springStrength)
				cx, cy := b.trees[q].Force(e, x, y, 1, charge, Theta, stack)

				dx := clamp((fx+gx+cx)*dt, -limit, limit)
				dy := clamp((fy+gy+cy)*dt, -limit, limit)
				next[idx] = float32(x + dx)
				next[idx+1] = float32(y + dy)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	copy(f.Midpoints, next)
	return nil
}

func (b *Bundling) buildTrees(mid []float32, numEdges, splits int) {
	for len(b.trees) < splits {
		b.trees = append(b.trees, NewQuadTree(numEdges))
	}

	layer := make([]float32, 0, 2*numEdges)
	for q := 0; q < splits; q++ {
		layer = layer[:0]
		for e := 0; e < numEdges; e++ {
			idx := (e*splits + q) * dynamo.ElementsPerPoint
			layer = append(layer, mid[idx], mid[idx+1])
		}

		t := b.trees[q]
		t.Reset(layer)
		for e := 0; e < numEdges; e++ {
			t.Insert(e, float64(layer[2*e]), float64(layer[2*e+1]), 1)
		}
	}
}

// spring returns the Hooke force on (x, y) from a spring to (ox, oy).
func spring(x, y, ox, oy, rest, k float64) (float64, float64) {
	dx, dy := ox-x, oy-y
	d := math.Hypot(dx, dy)
	if d < 1e-12 {
		return 0, 0
	}
	f := k * (d - rest) / d
	return f * dx, f * dy
}
