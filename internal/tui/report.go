package tui

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dasida/tutor/internal/report"
	"github.com/dasida/tutor/internal/ui/layout"
	"github.com/dasida/tutor/internal/ui/theme"
)

// reportScreen shows a synthesized report with its error patterns.
type reportScreen struct {
	result *report.Result
	offset int
}

func newReportScreen(res *report.Result) *reportScreen {
	return &reportScreen{result: res}
}

func (s *reportScreen) Init() tea.Cmd { return nil }

func (s *reportScreen) Title() string { return "오답 리포트" }

func (s *reportScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "스크롤"},
		{Key: "Esc", Description: "돌아가기"},
	}
}

func (s *reportScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			if s.offset > 0 {
				s.offset--
			}
		case "down", "j":
			s.offset++
		case "esc":
			return s, pop
		}
	}
	return s, nil
}

func (s *reportScreen) View(width, height int) string {
	bodyWidth := width - 4
	var lines []string

	labels := "없음"
	if len(s.result.Patterns) > 0 {
		labels = strings.Join(s.result.Patterns, ", ")
	}
	lines = append(lines, theme.Subtitle.Render("오답 패턴: ")+theme.Pattern.Render(labels), "")
	lines = append(lines, layout.Wrap(theme.Body.Render(s.result.Text), bodyWidth)...)

	if height < 1 {
		height = 1
	}
	if last := len(lines) - height; s.offset > last {
		s.offset = last
	}
	if s.offset < 0 {
		s.offset = 0
	}
	end := s.offset + height
	if end > len(lines) {
		end = len(lines)
	}

	return lipgloss.NewStyle().
		Padding(0, 2).
		Render(strings.Join(lines[s.offset:end], "\n"))
}
