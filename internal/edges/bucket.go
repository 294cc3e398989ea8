package edges

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// NoWorkItem marks a point without outgoing edges in SourceToWorkItem.
const NoWorkItem int32 = -1

// WorkItem is a contiguous run of source-sorted edges sharing one source.
type WorkItem struct {
	Start  uint32
	Count  uint32
	Source uint32
}

type Bucket struct {
	DegreesBySource  []uint32
	SortedEdges      dynamo.EdgeBuffer
	WorkItems        []WorkItem
	SourceToWorkItem []int32

	// WorkItemsTyped holds (start, count) pairs, EdgesTyped the sorted
	// (src, dst) pairs, both laid out for direct kernel consumption.
	WorkItemsTyped []uint32
	EdgesTyped     []uint32
}

func (b *Bucket) NumWorkItems() int { return len(b.WorkItems) }

func (b *Bucket) NumEdges() int { return b.SortedEdges.NumEdges() }

// Edges returns the sorted edges covered by work item i.
func (b *Bucket) Edges(i int) dynamo.EdgeBuffer {
	w := b.WorkItems[i]
	return b.SortedEdges[2*w.Start : 2*(w.Start+w.Count)]
}

type pair struct {
	src, dst uint32
}

// Reverse returns the whole buffer in reverse order. This is not a per-pair
// swap: [0,1, 2,3] becomes [3,2, 1,0].
func Reverse(e dynamo.EdgeBuffer) dynamo.EdgeBuffer {
	out := make(dynamo.EdgeBuffer, len(e))
	for i := range e {
		out[i] = e[len(e)-1-i]
	}
	return out
}

// Bucketize sorts e by (source, destination) and groups it into work items.
// numPoints sizes the per-point lookup tables.
func Bucketize(e dynamo.EdgeBuffer, numPoints int) (*Bucket, error) {
	if len(e)%2 != 0 {
		return nil, &dynamo.BucketizationError{Reason: fmt.Sprintf("odd edge buffer length %d", len(e))}
	}

	pairs := make([]pair, e.NumEdges())
	for i := range pairs {
		src, dst := e.Pair(i)
		if int(src) >= numPoints || int(dst) >= numPoints {
			return nil, &dynamo.BucketizationError{
				Reason: fmt.Sprintf("edge %d (%d,%d) references a point outside [0,%d)", i, src, dst, numPoints),
			}
		}
		pairs[i] = pair{src, dst}
	}

	slices.SortStableFunc(pairs, func(a, b pair) int {
		if c := cmp.Compare(a.src, b.src); c != 0 {
			return c
		}
		return cmp.Compare(a.dst, b.dst)
	})

	b := &Bucket{
		DegreesBySource:  make([]uint32, numPoints),
		SortedEdges:      make(dynamo.EdgeBuffer, 0, len(e)),
		SourceToWorkItem: make([]int32, numPoints),
	}
	for i := range b.SourceToWorkItem {
		b.SourceToWorkItem[i] = NoWorkItem
	}

	for i, p := range pairs {
		b.SortedEdges = append(b.SortedEdges, p.src, p.dst)
		if n := len(b.WorkItems); n > 0 && b.WorkItems[n-1].Source == p.src {
			b.WorkItems[n-1].Count++
			continue
		}
		b.WorkItems = append(b.WorkItems, WorkItem{Start: uint32(i), Count: 1, Source: p.src})
	}

	b.WorkItemsTyped = make([]uint32, 0, 2*len(b.WorkItems))
	for idx, w := range b.WorkItems {
		b.DegreesBySource[w.Source] = w.Count
		b.SourceToWorkItem[w.Source] = int32(idx)
		b.WorkItemsTyped = append(b.WorkItemsTyped, w.Start, w.Count)
	}
	b.EdgesTyped = b.SortedEdges

	return b, nil
}
