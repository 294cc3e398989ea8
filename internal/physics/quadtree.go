package physics

import (
	"math"
)

// Theta is the Barnes-Hut opening criterion.
const Theta = 0.5

// maxDepth bounds subdivision so coincident bodies share a leaf.
const maxDepth = 32

var noChildren = [4]int32{-1, -1, -1, -1}

type quadNode struct {
	// center and half-width of the cell
	x, y, half float64

	mass   float64
	mx, my float64 // mass-weighted position sums
	count  int
	body   int
	child  [4]int32
}

func (n *quadNode) leaf() bool { return n.child == noChildren }

// QuadTree aggregates point masses for Barnes-Hut force approximation. A
// tree is rebuilt every tick; Reset keeps the node storage.
type QuadTree struct {
	nodes []quadNode
}

func NewQuadTree(capacity int) *QuadTree {
	return &QuadTree{nodes: make([]quadNode, 0, 2*capacity+1)}
}

func (t *QuadTree) Len() int { return len(t.nodes) }

// Reset clears the tree and sizes the root to cover every (x, y) in xy.
func (t *QuadTree) Reset(xy []float32) {
	t.nodes = t.nodes[:0]

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(xy); i += 2 {
		x, y := float64(xy[i]), float64(xy[i+1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	if math.IsInf(minX, 1) {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	half := math.Max(maxX-minX, maxY-minY)/2 + 1e-9
	if half < 1e-6 {
		half = 1
	}
	t.newNode((minX+maxX)/2, (minY+maxY)/2, half*1.0001)
}

func (t *QuadTree) newNode(x, y, half float64) int32 {
	t.nodes = append(t.nodes, quadNode{x: x, y: y, half: half, body: -1, child: noChildren})
	return int32(len(t.nodes) - 1)
}

func (t *QuadTree) childFor(n int32, x, y float64) int32 {
	nd := &t.nodes[n]
	q := 0
	if x >= nd.x {
		q |= 1
	}
	if y >= nd.y {
		q |= 2
	}
	if c := nd.child[q]; c >= 0 {
		return c
	}

	h := nd.half / 2
	cx, cy := nd.x-h, nd.y-h
	if q&1 != 0 {
		cx = nd.x + h
	}
	if q&2 != 0 {
		cy = nd.y + h
	}
	c := t.newNode(cx, cy, h)
	t.nodes[n].child[q] = c
	return c
}

// Insert adds body with mass m at (x, y).
func (t *QuadTree) Insert(body int, x, y, m float64) {
	n := int32(0)
	for depth := 0; ; depth++ {
		nd := &t.nodes[n]
		if nd.count == 0 {
			nd.body, nd.count = body, 1
			nd.mass, nd.mx, nd.my = m, x*m, y*m
			return
		}

		if nd.body >= 0 && depth < maxDepth {
			old, om := nd.body, nd.mass
			ox, oy := nd.mx/om, nd.my/om
			nd.body = -1
			c := t.childFor(n, ox, oy)
			cn := &t.nodes[c]
			cn.body, cn.count = old, 1
			cn.mass, cn.mx, cn.my = om, ox*om, oy*om
		}

		nd = &t.nodes[n]
		nd.count++
		nd.mass += m
		nd.mx += x * m
		nd.my += y * m
		if depth >= maxDepth {
			return
		}
		n = t.childFor(n, x, y)
	}
}

// Force returns the approximate sum of k*m*M*(p-c)/|p-c|² over the tree as
// seen from body at (x, y). Positive k repels, negative k attracts.
func (t *QuadTree) Force(body int, x, y, m, k, theta float64, stack []int32) (fx, fy float64) {
	if len(t.nodes) == 0 {
		return 0, 0
	}
	theta2 := theta * theta
	stack = append(stack[:0], 0)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := &t.nodes[n]
		if nd.count == 0 || (nd.count == 1 && nd.body == body) {
			continue
		}

		dx := x - nd.mx/nd.mass
		dy := y - nd.my/nd.mass
		d2 := dx*dx + dy*dy
		width := 2 * nd.half

		if nd.leaf() || width*width < theta2*d2 {
			if d2 < minDist2 {
				continue
			}
			f := k * m * nd.mass / d2
			fx += f * dx
			fy += f * dy
			continue
		}

		for _, c := range nd.child {
			if c >= 0 {
				stack = append(stack, c)
			}
		}
	}
	return fx, fy
}
