package physics

import (
	"context"
	"math"
	"sync"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
)

const (
	minSpeedEfficiency = 0.05
	maxSpeedRise       = 0.5
	maxSpeed           = 1000
	maxNodeDisplace    = 10
)

type atlasParams struct {
	jitterTolerance float64
	gravity         float64
	scalingRatio    float64
	edgeInfluence   float64
	strongGravity   bool
	dissuadeHubs    bool
	linLog          bool
}

func decodeAtlas(p map[string]dynamo.Value) atlasParams {
	return atlasParams{
		jitterTolerance: math.Pow(2, value(p, "tau", 0)),
		gravity:         value(p, "gravity", 1),
		scalingRatio:    value(p, "scalingRatio", 1),
		edgeInfluence:   value(p, "edgeInfluence", 0),
		strongGravity:   value(p, "strongGravity", 0) != 0,
		dissuadeHubs:    value(p, "dissuadeHubs", 0) != 0,
		linLog:          value(p, "linLog", 0) != 0,
	}
}

type repulsionFunc func(ctx context.Context, f *Frame, masses []float64, kr float64, force []float64) error

// Atlas is a ForceAtlas2 layout with adaptive speed. The repulsion term is
// pluggable so exact and Barnes-Hut variants share everything else.
type Atlas struct {
	name  string
	repel repulsionFunc

	speed           float64
	speedEfficiency float64
	lastStep        int

	force     []float64
	prevForce []float64
	swing     []float64
}

func NewForceAtlas2() *Atlas {
	return newAtlas(config.ForceAtlas2, func(ctx context.Context, f *Frame, masses []float64, kr float64, force []float64) error {
		return pairwiseRepulsion(ctx, f.Points, masses, kr, force)
	})
}

func NewForceAtlas2Barnes() *Atlas {
	tree := NewQuadTree(0)
	stacks := sync.Pool{New: func() any { s := make([]int32, 0, 4*maxDepth); return &s }}

	return newAtlas(config.ForceAtlas2Barnes, func(ctx context.Context, f *Frame, masses []float64, kr float64, force []float64) error {
		tree.Reset(f.Points)
		for i, m := range masses {
			x, y := f.Points.At(i)
			tree.Insert(i, float64(x), float64(y), m)
		}

		return dynamo.ParallelFor(ctx, len(masses), dynamo.MinChunk, func(start, end int) error {
			sp := stacks.Get().(*[]int32)
			defer stacks.Put(sp)
			for i := start; i < end; i++ {
				x, y := f.Points.At(i)
				fx, fy := tree.Force(i, float64(x), float64(y), masses[i], kr, Theta, *sp)
				force[i*2] += fx
				force[i*2+1] += fy
			}
			return nil
		})
	})
}

func newAtlas(name string, repel repulsionFunc) *Atlas {
	return &Atlas{
		name:            name,
		repel:           repel,
		speed:           WarmSpeed(0),
		speedEfficiency: 1,
		lastStep:        -1,
	}
}

func (a *Atlas) Name() string { return a.name }

func (a *Atlas) Speed() float64 { return a.speed }

func (a *Atlas) restart(step, n int) {
	a.speed = WarmSpeed(step)
	a.speedEfficiency = 1
	a.prevForce = nil
	if cap(a.force) < 2*n {
		a.force = make([]float64, 2*n)
		a.swing = make([]float64, n)
	}
	a.force = a.force[:2*n]
	a.swing = a.swing[:n]
}

func (a *Atlas) Step(ctx context.Context, f *Frame, params map[string]dynamo.Value) error {
	n := f.NumPoints()
	if f.Step != a.lastStep+1 || len(a.force) != 2*n {
		a.restart(f.Step, n)
	}
	a.lastStep = f.Step

	if f.Locks.LockPoints || n == 0 {
		return nil
	}

	p := decodeAtlas(params)
	masses := f.Masses()
	clear(a.force)

	if err := a.repel(ctx, f, masses, p.scalingRatio, a.force); err != nil {
		return err
	}
	a.applyGravity(f, masses, p)
	if f.hasEdges() {
		if err := a.attract(ctx, f, masses, p); err != nil {
			return err
		}
	}

	a.adjustSpeed(masses, p)
	return a.displace(ctx, f, masses)
}

func (a *Atlas) applyGravity(f *Frame, masses []float64, p atlasParams) {
	for i, m := range masses {
		x, y := f.Points.At(i)
		dx, dy := -float64(x), -float64(y)
		d := math.Hypot(dx, dy)
		if d < 1e-9 {
			continue
		}

		g := p.gravity * m / d
		if p.strongGravity {
			g = p.gravity * m
		}
		a.force[i*2] += g * dx
		a.force[i*2+1] += g * dy
	}
}

// attract runs the forward bucket (pulling sources) and then the backward
// bucket (pulling destinations). Within one pass each work item writes only
// its own source.
func (a *Atlas) attract(ctx context.Context, f *Frame, masses []float64, p atlasParams) error {
	weight := 1 + p.edgeInfluence

	pull := func(self, other uint32, src uint32) (float64, float64) {
		sx, sy := f.Points.At(int(self))
		ox, oy := f.Points.At(int(other))
		dx, dy := float64(ox-sx), float64(oy-sy)

		factor := weight
		if p.linLog {
			d := math.Hypot(dx, dy)
			if d < 1e-9 {
				return 0, 0
			}
			factor *= math.Log1p(d) / d
		}
		if p.dissuadeHubs {
			factor /= masses[src]
		}
		return factor * dx, factor * dy
	}

	fwd := f.Forward
	lo, hi := f.ActiveLo, min(f.ActiveHi, fwd.NumWorkItems())
	if lo < hi {
		err := dynamo.ParallelFor(ctx, hi-lo, 1, func(start, end int) error {
			for w := lo + start; w < lo+end; w++ {
				item := fwd.WorkItems[w]
				run := fwd.Edges(w)
				var fx, fy float64
				for k := 0; k < run.NumEdges(); k++ {
					_, dst := run.Pair(k)
					x, y := pull(item.Source, dst, item.Source)
					fx += x
					fy += y
				}
				a.force[item.Source*2] += fx
				a.force[item.Source*2+1] += fy
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	bwd := f.Backward
	return dynamo.ParallelFor(ctx, bwd.NumWorkItems(), 1, func(start, end int) error {
		for w := start; w < end; w++ {
			item := bwd.WorkItems[w]
			run := bwd.Edges(w)
			var fx, fy float64
			for k := 0; k < run.NumEdges(); k++ {
				_, src := run.Pair(k)
				if !f.Active(src) {
					continue
				}
				x, y := pull(item.Source, src, src)
				fx += x
				fy += y
			}
			a.force[item.Source*2] += fx
			a.force[item.Source*2+1] += fy
		}
		return nil
	})
}

func (a *Atlas) adjustSpeed(masses []float64, p atlasParams) {
	n := len(masses)
	if a.prevForce == nil {
		a.prevForce = make([]float64, 2*n)
		copy(a.prevForce, a.force)
	}

	var totalSwing, totalTraction float64
	for i, m := range masses {
		fx, fy := a.force[i*2], a.force[i*2+1]
		px, py := a.prevForce[i*2], a.prevForce[i*2+1]
		a.swing[i] = math.Hypot(fx-px, fy-py)
		totalSwing += m * a.swing[i]
		totalTraction += m * math.Hypot(fx+px, fy+py) / 2
	}

	if totalTraction == 0 {
		return
	}

	estimated := 0.05 * math.Sqrt(float64(n))
	jt := p.jitterTolerance * clamp(estimated*totalTraction/float64(n*n), math.Sqrt(estimated), 10)

	if totalSwing/totalTraction > 2 {
		if a.speedEfficiency > minSpeedEfficiency {
			a.speedEfficiency *= 0.5
		}
		jt = math.Max(jt, p.jitterTolerance)
	}

	target := a.speed
	if totalSwing > 0 {
		target = jt * a.speedEfficiency * totalTraction / totalSwing
	}

	if totalSwing > jt*totalTraction {
		if a.speedEfficiency > minSpeedEfficiency {
			a.speedEfficiency *= 0.7
		}
	} else if a.speed < maxSpeed {
		a.speedEfficiency *= 1.3
	}

	a.speed += math.Min(target-a.speed, maxSpeedRise*a.speed)
	if a.speed <= 0 || math.IsNaN(a.speed) {
		a.speed = WarmSpeed(a.lastStep)
	}
}

func (a *Atlas) displace(ctx context.Context, f *Frame, masses []float64) error {
	limit := maxNodeDisplace * math.Max(f.Dimensions.Width, f.Dimensions.Height)
	if limit <= 0 {
		limit = maxNodeDisplace
	}

	err := dynamo.ParallelFor(ctx, len(masses), dynamo.MinChunk, func(start, end int) error {
		for i := start; i < end; i++ {
			fx, fy := a.force[i*2], a.force[i*2+1]
			mag := math.Hypot(fx, fy)
			if mag == 0 {
				continue
			}

			factor := a.speed / (1 + math.Sqrt(a.speed*a.swing[i]))
			step := math.Min(factor*mag, limit) / mag
			f.Points[i*2] += float32(fx * step)
			f.Points[i*2+1] += float32(fy * step)
		}
		return nil
	})

	copy(a.prevForce, a.force)
	return err
}
