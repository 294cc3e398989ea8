// Package physics provides the force-directed layout kernels run by a
// simulator on every tick.
//
// Each kernel implements [Kernel] and advances a [Frame] by one iteration:
//
//   - [NewForceAtlas2]: ForceAtlas2 with exact O(n²) repulsion
//   - [NewForceAtlas2Barnes]: ForceAtlas2 with Barnes-Hut repulsion (θ = 0.5)
//   - [NewEdgeBundling]: moves edge midpoints toward each other along springs
//
// Attraction is accumulated per work item of the source-sorted edge
// buckets: the forward bucket pulls sources, the backward bucket pulls
// destinations. A work item owns every edge of its source, so workers never
// write to the same point.
//
// # Cooling
//
// Kernels are stateful. When a tick's step does not follow the previous one
// (new vertices, a physics change) the adaptive speed restarts from
// [WarmSpeed], which is lower for a restart at step 30 than at step 0.
package physics
