package viz

import (
	"context"
	"image/color"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/forcegraph/internal/compute"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/sim"
)

func newLiveModel(t *testing.T) Model {
	t.Helper()
	ctx := context.Background()
	rb := &TerminalBackend{Cols: 20, Rows: 6}

	s, err := sim.New(ctx, compute.NewBackend(), rb, nil, color.RGBA{A: 255})
	require.NoError(t, err)

	initial := [][2]float64{{0, 0}, {1, 0}, {0, 1}}
	require.NoError(t, s.SetPoints(ctx, initial, nil, nil))
	require.NoError(t, s.SetEdges(ctx, dynamo.EdgeBuffer{0, 1, 1, 2}, nil))
	return NewModel(ctx, s, rb.Last(), initial, 0)
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestLiveTicks(t *testing.T) {
	m := newLiveModel(t)

	m = update(m, TickMsg{})
	m = update(m, TickMsg{})
	assert.Equal(t, 2, m.ticks)
	assert.Equal(t, 2, m.session.Step())
	assert.Len(t, m.history, 2)
	assert.NotEmpty(t, m.renderer.Frame())

	m = update(m, key(" "))
	m = update(m, TickMsg{})
	assert.Equal(t, 2, m.ticks, "paused")
	assert.Contains(t, m.View(), "PAUSED")
}

func TestLiveMaxTicks(t *testing.T) {
	m := newLiveModel(t)
	m.maxTicks = 1

	m = update(m, TickMsg{})
	m = update(m, TickMsg{})
	assert.Equal(t, 1, m.ticks)
	assert.False(t, m.running)
}

func TestLiveTuneParameter(t *testing.T) {
	m := newLiveModel(t)
	require.NotEmpty(t, m.params)
	assert.Equal(t, "dissuadeHubs", m.params[0].param.Name)

	m = update(m, key("up"))
	assert.Equal(t, true, m.params[0].param.Value)
	assert.Equal(t, sim.StepNumberOnChange, m.session.Step())

	m = update(m, key("tab"))
	assert.Equal(t, 1, m.selected)
	assert.Equal(t, "edgeInfluence", m.params[1].param.Name)
	m = update(m, key("up"))
	assert.Equal(t, 1.0, m.params[1].param.Value)
}

func TestLiveReset(t *testing.T) {
	m := newLiveModel(t)
	m = update(m, TickMsg{})
	m = update(m, key("r"))

	assert.Equal(t, 0, m.session.Step())
	assert.Equal(t, 0, m.ticks)
	assert.Empty(t, m.history)
}

func TestLiveToggles(t *testing.T) {
	m := newLiveModel(t)

	m = update(m, key("e"))
	assert.False(t, m.visible.Edges)
	m = update(m, key("t"))
	assert.Equal(t, "retro", m.renderer.Theme().Name)
	m = update(m, key("?"))
	assert.Contains(t, m.View(), "KEYBOARD SHORTCUTS")

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
