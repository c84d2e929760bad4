package tui

import (
	tea "charm.land/bubbletea/v2"

	"github.com/dasida/tutor/internal/ui/layout"
)

// Screen is one page of the chat client.
type Screen interface {
	// Init returns an initial command when the screen is pushed.
	Init() tea.Cmd

	// Update handles messages and returns the updated screen.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content, excluding header and footer.
	View(width, height int) string

	// Title is shown in the header.
	Title() string

	// KeyHints are shown in the footer.
	KeyHints() []layout.KeyHint
}

// Statuser is implemented by screens with a right-aligned header status.
type Statuser interface {
	Status() string
}

// pushScreenMsg asks the app to push a screen.
type pushScreenMsg struct {
	screen Screen
}

// popScreenMsg asks the app to pop the active screen.
type popScreenMsg struct{}

func push(s Screen) tea.Cmd {
	return func() tea.Msg { return pushScreenMsg{screen: s} }
}

func pop() tea.Msg { return popScreenMsg{} }

// stack is the navigation stack. The root screen is never popped.
type stack struct {
	screens []Screen
}

func (s *stack) push(sc Screen) tea.Cmd {
	s.screens = append(s.screens, sc)
	return sc.Init()
}

func (s *stack) pop() {
	if len(s.screens) > 1 {
		s.screens = s.screens[:len(s.screens)-1]
	}
}

func (s *stack) active() Screen {
	if len(s.screens) == 0 {
		return nil
	}
	return s.screens[len(s.screens)-1]
}

func (s *stack) depth() int { return len(s.screens) }

func (s *stack) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case pushScreenMsg:
		return s.push(msg.screen)
	case popScreenMsg:
		s.pop()
		return nil
	}
	active := s.active()
	if active == nil {
		return nil
	}
	updated, cmd := active.Update(msg)
	s.screens[len(s.screens)-1] = updated
	return cmd
}
