// Package edges restructures an edge list for parallel force computation.
//
// [Bucketize] sorts edges by source and merges each run of edges sharing a
// source into a [WorkItem], so a force kernel can give every work item its
// own dispatch lane and accumulate into that source without synchronizing
// on individual edges. [Build] produces two buckets per submission: one
// for the edges as given and one for the whole-array reversal of the buffer,
// which keys the same edges by destination. Both are computed once so the
// simulation never sorts on its hot path.
//
// Work items keep the sorted edge order. They are not rebalanced by size, so
// a time window over the edge order stays one contiguous run of work items.
package edges
