// Package dynamo defines the shared buffers and types of a force-directed
// graph layout session.
//
// Buffers use fixed layouts so they can be handed directly to a compute
// backend:
//
//   - [PointBuffer]: flat float32 positions, [ElementsPerPoint] values per point
//   - [SizeBuffer]: one uint8 size per point
//   - [ColorBuffer]: one packed RGBA uint32 per point (or per edge)
//   - [EdgeBuffer]: flat (source, destination) index pairs
//
// A simulator publishes a read-only [View] of its committed buffers to any
// renderer implementing [ViewSink].
//
// # Ownership
//
// Buffers are replaced wholesale on every ingestion call, never patched in
// place by callers. Only the simulator's integration step writes positions.
package dynamo
