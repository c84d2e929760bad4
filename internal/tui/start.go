package tui

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dasida/tutor/internal/ui/components"
	"github.com/dasida/tutor/internal/ui/layout"
	"github.com/dasida/tutor/internal/ui/theme"
)

// startScreen asks for the textbook page and problem number.
type startScreen struct {
	deps   Deps
	page   components.TextInput
	number components.TextInput
	focus  int
	errMsg string
}

func newStartScreen(deps Deps) *startScreen {
	number := components.NewTextInput("예: 3", false, 8)
	number.Blur()
	return &startScreen{
		deps:   deps,
		page:   components.NewTextInput("예: 12", true, 4),
		number: number,
	}
}

func (s *startScreen) Init() tea.Cmd { return s.page.Init() }

func (s *startScreen) Title() string { return "문제 선택" }

func (s *startScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Tab", Description: "다음 칸"},
		{Key: "Enter", Description: "풀이 시작"},
	}
}

func (s *startScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			return s, s.toggleFocus()
		case "enter":
			return s, s.submit()
		}
	}

	var cmd tea.Cmd
	if s.focus == 0 {
		s.page, cmd = s.page.Update(msg)
	} else {
		s.number, cmd = s.number.Update(msg)
	}
	return s, cmd
}

func (s *startScreen) toggleFocus() tea.Cmd {
	s.focus = 1 - s.focus
	if s.focus == 0 {
		s.number.Blur()
		return s.page.Focus()
	}
	s.page.Blur()
	return s.number.Focus()
}

func (s *startScreen) submit() tea.Cmd {
	page, err := s.page.NumericValue()
	if err != nil || page <= 0 {
		s.errMsg = "쪽 번호를 숫자로 입력해 주세요."
		return nil
	}
	number := s.number.Value()
	if number == "" {
		s.errMsg = "문제 번호를 입력해 주세요."
		return nil
	}
	s.errMsg = ""
	return push(newChatScreen(s.deps, page, number))
}

func (s *startScreen) View(width, height int) string {
	field := func(label string, in components.TextInput) string {
		style := theme.Card
		if in.Focused() {
			style = theme.FocusedCard
		}
		return theme.Subtitle.Render(label) + "\n" + style.Width(30).Render(in.View())
	}

	var b strings.Builder
	b.WriteString(theme.Title.Render("어떤 문제를 풀어볼까요?"))
	b.WriteString("\n\n")
	b.WriteString(field("교재 쪽", s.page))
	b.WriteString("\n")
	b.WriteString(field("문제 번호", s.number))
	if s.errMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(theme.ErrorText.Render(s.errMsg))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(1, 4).
		Render(b.String())
}
