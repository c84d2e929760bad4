// Package tui is the terminal chat client: pick a problem by page and
// number, then solve it step by step with the tutor.
package tui

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"

	"github.com/dasida/tutor/internal/report"
	"github.com/dasida/tutor/internal/tutor"
	"github.com/dasida/tutor/internal/ui/layout"
)

// Deps are the services the client drives.
type Deps struct {
	Tutor *tutor.Controller
	Store tutor.SessionStore
	// Reports is optional; without it the report key is hidden.
	Reports *report.Synthesizer
	UserID  int64
}

// Model is the root Bubble Tea model.
type Model struct {
	nav    *stack
	width  int
	height int
}

// New creates the model with the problem picker on top.
func New(deps Deps) Model {
	return Model{nav: &stack{screens: []Screen{newStartScreen(deps)}}}
}

func (m Model) Init() tea.Cmd {
	return m.nav.active().Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, m.nav.update(msg)
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}
	v.SetContent(m.render())
	return v
}

func (m Model) render() string {
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.nav.active()
	status := ""
	if s, ok := active.(Statuser); ok {
		status = s.Status()
	}
	header := layout.RenderHeader(active.Title(), status, m.width)
	hints := append(active.KeyHints(), layout.KeyHint{Key: "Ctrl+C", Description: "종료"})
	footer := layout.RenderFooter(hints, m.width)

	content := active.View(m.width, layout.ContentHeight(header, footer, m.height))
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the Bubble Tea program.
func Run(deps Deps) error {
	p := tea.NewProgram(New(deps))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
