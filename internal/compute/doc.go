// Package compute provides the CPU layout simulator.
//
// [Backend] creates [Simulator] instances for sessions. A simulator owns
// copies of the session's buffers and runs the physics kernels named in its
// physics configuration once per tick:
//
//	backend := compute.NewBackend(compute.WithLogger(logger))
//	s, err := sim.New(ctx, backend, renderers, canvas, bg)
//
// Work is spread over GOMAXPROCS goroutines per kernel phase. Only the CPU
// device exists in this build; profiles that ask for a GPU fall back to it.
//
// After every commit and every tick the simulator publishes a
// [dynamo.View] to its renderer when the renderer implements
// [dynamo.ViewSink].
package compute
