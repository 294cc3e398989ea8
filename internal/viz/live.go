package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/metrics"
	"github.com/san-kum/forcegraph/internal/params"
	"github.com/san-kum/forcegraph/internal/sim"
)

const (
	historyCapacity = 300
	frameInterval   = time.Second / 30
	sliderStep      = 5.0
)

type TickMsg time.Time

type tunable struct {
	algorithm string
	param     params.ClientParam
}

// Model is the interactive layout view: it ticks a session, shows the
// renderer's frame and lets the user tune layout parameters.
type Model struct {
	ctx      context.Context
	session  *sim.Session
	renderer *TerminalRenderer
	initial  [][2]float64
	maxTicks int

	running  bool
	ticks    int
	visible  dynamo.Visibility
	movement *metrics.Movement
	history  []float64
	params   []tunable
	selected int
	showHelp bool
	err      error
}

// NewModel wraps a session whose points are already set. initial is used
// by reset; maxTicks of 0 runs until quit.
func NewModel(ctx context.Context, s *sim.Session, r *TerminalRenderer, initial [][2]float64, maxTicks int) Model {
	m := Model{
		ctx:      ctx,
		session:  s,
		renderer: r,
		initial:  initial,
		maxTicks: maxTicks,
		running:  true,
		visible:  dynamo.DefaultVisibility(),
		movement: metrics.NewMovement(),
		history:  make([]float64, 0, historyCapacity),
	}
	m.refreshParams()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "tab":
			if len(m.params) > 0 {
				m.selected = (m.selected + 1) % len(m.params)
			}
		case "up", "k":
			m.adjust(1)
		case "down", "j":
			m.adjust(-1)
		case "t":
			m.renderer.SetTheme(NextTheme(m.renderer.Theme().Name))
		case "e":
			m.visible.Edges = !m.visible.Edges
			m.applyVisible()
		case "p":
			m.visible.Points = !m.visible.Points
			m.applyVisible()
		case "m":
			m.visible.Midpoints = !m.visible.Midpoints
			m.applyVisible()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) step() {
	if m.maxTicks > 0 && m.ticks >= m.maxTicks {
		m.running = false
		return
	}
	if err := m.session.Tick(m.ctx); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.ticks++
	m.err = nil

	mv := m.movement.Observe(m.renderer.Snapshot(m.renderer.Theme().Points).View.Points)
	m.history = append(m.history, mv)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

func (m *Model) reset() {
	if err := m.session.SetVertices(m.ctx, m.initial); err != nil {
		m.err = err
		return
	}
	m.ticks = 0
	m.history = m.history[:0]
	m.movement.Reset()
}

func (m *Model) applyVisible() {
	if err := m.session.SetVisible(m.ctx, m.visible); err != nil {
		m.err = err
	}
}

func (m *Model) refreshParams() {
	m.params = m.params[:0]
	for _, algo := range m.session.ClientParams() {
		for _, p := range algo.Params {
			m.params = append(m.params, tunable{algorithm: algo.Name, param: p})
		}
	}
	if m.selected >= len(m.params) {
		m.selected = 0
	}
}

// adjust moves the selected parameter one notch in dir and sends it
// through the session like any other settings update.
func (m *Model) adjust(dir float64) {
	if len(m.params) == 0 {
		return
	}
	t := m.params[m.selected]
	p := t.param

	var next any
	switch p.Type {
	case params.Bool.String():
		b, _ := p.Value.(bool)
		next = !b
	case params.Discrete.String():
		v, _ := p.Value.(float64)
		v += dir * *p.Step
		next = min(max(v, *p.Min), *p.Max)
	default:
		v, _ := p.Value.(float64)
		next = min(max(v+dir*sliderStep, 0), params.SliderMax)
	}

	err := m.session.UpdateSettings(m.ctx, &config.Settings{
		Simulator: map[string]map[string]any{t.algorithm: {p.Name: next}},
	})
	if err != nil {
		m.err = err
		return
	}
	m.refreshParams()
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("FORCEGRAPH · "+strings.ToUpper(m.session.Profile())) + "\n")

	status := statusRunning.Render("RUNNING")
	if !m.running {
		status = statusPaused.Render("PAUSED")
	}
	s.WriteString(status + "\n\n")

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Movement"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d", m.session.Step()))
	row("Ticks", fmt.Sprintf("%d", m.ticks))
	row("Points", fmt.Sprintf("%d", m.session.NumPoints()))
	row("Edges", fmt.Sprintf("%d", m.session.NumEdges()))
	if n := len(m.history); n > 0 {
		row("Movement", fmt.Sprintf("%.5f", m.history[n-1]))
	}
	row("Theme", m.renderer.Theme().Name)

	s.WriteString("\nPARAMETERS\n")
	if len(m.params) == 0 {
		s.WriteString(labelStyle.Render("  (none)") + "\n")
	}
	for i, t := range m.params {
		line := fmt.Sprintf("%-14s %s", t.param.Name, formatParam(t.param))
		if i == m.selected {
			s.WriteString(activeParamStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.UnsetWidth().Render(line) + "\n")
		}
	}

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("─────────────────────\nSP:Pause R:Reset Q:Quit\nTab/↑↓:Tune T:Theme ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		canvasStyle.Render(m.renderer.Frame()),
		statsStyle.Render(s.String()),
	)
	if m.showHelp {
		return helpText + "\n" + main
	}
	return main
}

func formatParam(p params.ClientParam) string {
	switch v := p.Value.(type) {
	case bool:
		if v {
			return "[on]"
		}
		return "[off]"
	case float64:
		if p.Type == params.Discrete.String() {
			return fmt.Sprintf("%g", v)
		}
		return SliderBar(v, 10) + fmt.Sprintf(" %.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume layout      ║
║  R        - Reset to initial points  ║
║  Q        - Quit                     ║
║  Tab      - Cycle parameters         ║
║  Up/K     - Raise parameter          ║
║  Down/J   - Lower parameter          ║
║  E/P/M    - Toggle edges/points/mids ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
`
