package optim

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/experiment"
)

// Axis is one swept slider of a layout algorithm.
type Axis struct {
	Param  string
	Values []float64
}

// ParseAxis reads "name=v1,v2,...".
func ParseAxis(s string) (Axis, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return Axis{}, fmt.Errorf("axis %q: want name=v1,v2", s)
	}
	var a Axis
	a.Param = strings.TrimSpace(name)
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Axis{}, fmt.Errorf("axis %q: %w", s, err)
		}
		a.Values = append(a.Values, v)
	}
	return a, nil
}

type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

// GridSearch runs one headless experiment per combination of slider values
// and scores it by the layout movement of its last tick. Lower is better.
type GridSearch struct {
	algorithm string
	axes      []Axis
	workers   int
}

func NewGridSearch(algorithm string, axes []Axis, workers int) *GridSearch {
	if workers < 1 {
		workers = 1
	}
	return &GridSearch{algorithm: algorithm, axes: axes, workers: workers}
}

// Combinations lists every point of the grid, first axis slowest.
func (g *GridSearch) Combinations() []map[string]float64 {
	var out []map[string]float64
	g.combine(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) combine(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.axes) {
		*out = append(*out, current)
		return
	}
	axis := g.axes[depth]
	for _, v := range axis.Values {
		next := make(map[string]float64, len(current)+1)
		for k, cv := range current {
			next[k] = cv
		}
		next[axis.Param] = v
		g.combine(depth+1, next, out)
	}
}

// Search runs the grid against base and returns the best trial along with
// every trial in grid order. Failed trials carry their error and an
// infinite score.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, opts ...experiment.Option) (Trial, []Trial, error) {
	combos := g.Combinations()
	trials := make([]Trial, len(combos))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, params := range combos {
		i, params := i, params
		eg.Go(func() error {
			score, err := g.run(ctx, base, params, opts)
			trials[i] = Trial{Params: params, Score: score, Err: err}
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return Trial{}, trials, err
	}

	best := Trial{Score: math.Inf(1)}
	for _, t := range trials {
		if t.Err == nil && t.Score < best.Score {
			best = t
		}
	}
	if best.Params == nil {
		return best, trials, fmt.Errorf("no trial of %d succeeded", len(trials))
	}
	return best, trials, nil
}

func (g *GridSearch) run(ctx context.Context, base *config.Config, params map[string]float64, opts []experiment.Option) (float64, error) {
	cfg := *base
	cfg.Renderer = "null"
	cfg.SettingsFile = ""

	update := make(map[string]any, len(params))
	for k, v := range params {
		update[k] = v
	}
	cfg.Settings = &config.Settings{Simulator: map[string]map[string]any{g.algorithm: update}}
	if base.Settings != nil {
		cfg.Settings.Locks = base.Settings.Locks
		cfg.Settings.Visible = base.Settings.Visible
		cfg.Settings.TimeSubset = base.Settings.TimeSubset
	}

	exp := experiment.New(&cfg, experiment.NewRegistry(), opts...)
	if err := exp.Setup(ctx); err != nil {
		return math.Inf(1), err
	}
	defer exp.Close()

	res, err := exp.Run(ctx)
	if err != nil {
		return math.Inf(1), err
	}
	if len(res.Movement) == 0 {
		return math.Inf(1), fmt.Errorf("no successful ticks")
	}
	return res.Movement[len(res.Movement)-1], nil
}
