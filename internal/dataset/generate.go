package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/aquilax/go-perlin"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

const (
	perlinAlpha  = 2.0
	perlinBeta   = 2.0
	perlinOctave = 3

	// jitter is the largest noise offset as a fraction of the layout extent.
	jitter = 0.05
)

// Generators lists the synthetic dataset kinds with an example reference.
var Generators = []string{"ring:48", "grid:8x6", "random:100:250"}

func generate(ref string, seed int64) (*Graph, bool, error) {
	kind, args, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, false, nil
	}

	var g *Graph
	switch kind {
	case "ring":
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			return nil, true, fmt.Errorf("ring needs a positive point count, got %q", args)
		}
		g = Ring(n, seed)
	case "grid":
		ws, hs, _ := strings.Cut(args, "x")
		w, errW := strconv.Atoi(ws)
		h, errH := strconv.Atoi(hs)
		if errW != nil || errH != nil || w < 1 || h < 1 {
			return nil, true, fmt.Errorf("grid needs WxH, got %q", args)
		}
		g = Grid(w, h, seed)
	case "random":
		ns, ms, _ := strings.Cut(args, ":")
		n, err := strconv.Atoi(ns)
		if err != nil || n < 2 {
			return nil, true, fmt.Errorf("random needs at least 2 points, got %q", args)
		}
		m := 2 * n
		if ms != "" {
			if m, err = strconv.Atoi(ms); err != nil || m < 0 {
				return nil, true, fmt.Errorf("random edge count %q", ms)
			}
		}
		g = Random(n, m, seed)
	default:
		return nil, false, nil
	}
	g.Name = ref
	return g, true, nil
}

type noise struct {
	p *perlin.Perlin
}

func newNoise(seed int64) noise {
	return noise{p: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctave, seed)}
}

// offset returns a smooth pseudo-random displacement for (x, y).
func (n noise) offset(x, y float64) (float64, float64) {
	dx := n.p.Noise2D(x*3+0.5, y*3+0.5)
	dy := n.p.Noise2D(y*3+17.5, x*3+31.5)
	return dx * jitter, dy * jitter
}

// Ring places n points on the unit circle, each linked to the next.
func Ring(n int, seed int64) *Graph {
	nz := newNoise(seed)
	g := &Graph{Points: make([][2]float64, n)}
	for i := range g.Points {
		a := 2 * math.Pi * float64(i) / float64(n)
		x, y := math.Cos(a), math.Sin(a)
		dx, dy := nz.offset(x, y)
		g.Points[i] = [2]float64{x + dx, y + dy}
	}
	if n > 1 {
		g.Edges = make(dynamo.EdgeBuffer, 0, 2*n)
		for i := 0; i < n; i++ {
			g.Edges = append(g.Edges, uint32(i), uint32((i+1)%n))
		}
	}
	return g
}

// Grid lays out a w x h lattice in [-1,1]^2 with right and down links.
func Grid(w, h int, seed int64) *Graph {
	nz := newNoise(seed)
	g := &Graph{Points: make([][2]float64, 0, w*h)}
	coord := func(i, n int) float64 {
		if n == 1 {
			return 0
		}
		return -1 + 2*float64(i)/float64(n-1)
	}

	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			x, y := coord(c, w), coord(r, h)
			dx, dy := nz.offset(x, y)
			g.Points = append(g.Points, [2]float64{x + dx, y + dy})

			id := uint32(r*w + c)
			if c+1 < w {
				g.Edges = append(g.Edges, id, id+1)
			}
			if r+1 < h {
				g.Edges = append(g.Edges, id, id+uint32(w))
			}
		}
	}
	return g
}

// Random scatters n points in [-1,1]^2 and draws m edges between distinct
// random endpoints. Sizes vary with noise so the size buffer is exercised.
func Random(n, m int, seed int64) *Graph {
	rng := rand.New(rand.NewSource(seed))
	nz := newNoise(seed)

	g := &Graph{
		Points: make([][2]float64, n),
		Sizes:  make([]float64, n),
		Edges:  make(dynamo.EdgeBuffer, 0, 2*m),
	}
	for i := range g.Points {
		x, y := 2*rng.Float64()-1, 2*rng.Float64()-1
		g.Points[i] = [2]float64{x, y}
		g.Sizes[i] = 4 + math.Round(8*math.Abs(nz.p.Noise2D(x, y)))
	}
	for k := 0; k < m; k++ {
		src := rng.Intn(n)
		dst := rng.Intn(n - 1)
		if dst >= src {
			dst++
		}
		g.Edges = append(g.Edges, uint32(src), uint32(dst))
	}
	return g
}
