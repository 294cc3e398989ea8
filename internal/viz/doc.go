// Package viz draws layout views in the terminal.
//
//   - [Canvas]: braille pixel grid with per-cell color
//   - [TerminalRenderer]: a session renderer that draws onto a Canvas
//   - [Scene]: the published view plus visibility and color map state
//   - [Model]: interactive Bubble Tea view that ticks a session
//
// # Key Bindings
//
//	Space - Pause/Resume layout
//	R     - Reset to the initial points
//	Tab   - Cycle parameters, Up/Down to tune
//	E/P/M - Toggle edges, points, midpoints
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
