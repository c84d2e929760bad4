package tui

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/tutor"
	"github.com/dasida/tutor/internal/ui/components"
	"github.com/dasida/tutor/internal/ui/layout"
	"github.com/dasida/tutor/internal/ui/theme"
)

type entry struct {
	role models.Role
	text string
}

// chatScreen is one tutoring conversation.
type chatScreen struct {
	deps    Deps
	session *tutor.Session
	page    int
	number  string

	entries []entry
	input   components.TextInput
	waiting bool
	errMsg  string
}

func newChatScreen(deps Deps, page int, number string) *chatScreen {
	return &chatScreen{
		deps:    deps,
		session: tutor.NewSession(deps.Tutor, deps.Store, deps.UserID),
		page:    page,
		number:  number,
		input:   components.NewTextInput("답이나 질문을 입력하세요", false, 500),
		waiting: true,
	}
}

func (s *chatScreen) Init() tea.Cmd {
	return tea.Batch(s.start(), s.input.Init())
}

func (s *chatScreen) Title() string {
	if name := s.session.Problem().Name; name != "" {
		return name
	}
	return fmt.Sprintf("%d쪽 %s번", s.page, s.number)
}

func (s *chatScreen) Status() string {
	if s.session.ConversationID() == "" {
		return ""
	}
	st := s.session.State()
	return fmt.Sprintf("단계 %d · 오답 %d", st.Step, st.Attempts[st.Step])
}

func (s *chatScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{
		{Key: "Enter", Description: "보내기"},
		{Key: "Esc", Description: "풀이 종료"},
	}
	if s.deps.Reports != nil {
		hints = append(hints, layout.KeyHint{Key: "Ctrl+R", Description: "오답 리포트"})
	}
	return hints
}

func (s *chatScreen) start() tea.Cmd {
	sess, page, number := s.session, s.page, s.number
	return func() tea.Msg {
		res, err := sess.Start(context.Background(), page, number)
		return turnDoneMsg{Result: res, Err: err}
	}
}

func (s *chatScreen) reply(text string) tea.Cmd {
	sess := s.session
	return func() tea.Msg {
		res, err := sess.Reply(context.Background(), text)
		return turnDoneMsg{Result: res, Err: err}
	}
}

func (s *chatScreen) synthesize() tea.Cmd {
	reports, id := s.deps.Reports, s.session.ConversationID()
	return func() tea.Msg {
		res, err := reports.Synthesize(context.Background(), id)
		return reportDoneMsg{Result: res, Err: err}
	}
}

func (s *chatScreen) finish() tea.Cmd {
	sess := s.session
	return func() tea.Msg {
		if sess.ConversationID() == "" {
			return finishedMsg{}
		}
		return finishedMsg{Err: sess.Finish(context.Background())}
	}
}

func (s *chatScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case turnDoneMsg:
		s.waiting = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.errMsg = ""
		s.entries = append(s.entries, entry{role: models.RoleTutor, text: msg.Result.VisibleText})
		return s, nil

	case reportDoneMsg:
		s.waiting = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, push(newReportScreen(msg.Result))

	case finishedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, pop

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := s.input.Value()
			if s.waiting || text == "" || s.session.ConversationID() == "" {
				return s, nil
			}
			s.entries = append(s.entries, entry{role: models.RoleUser, text: text})
			s.input.Reset()
			s.waiting = true
			return s, s.reply(text)
		case "ctrl+r":
			if s.waiting || s.deps.Reports == nil || s.session.ConversationID() == "" {
				return s, nil
			}
			s.waiting = true
			return s, s.synthesize()
		case "esc":
			if s.waiting {
				return s, nil
			}
			return s, s.finish()
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *chatScreen) View(width, height int) string {
	bodyWidth := width - 4
	var lines []string
	for _, e := range s.entries {
		name := theme.TutorName.Render("다시다")
		if e.role == models.RoleUser {
			name = theme.StudentName.Render("나")
		}
		lines = append(lines, name)
		lines = append(lines, layout.Wrap(theme.Body.Render(e.text), bodyWidth)...)
		lines = append(lines, "")
	}
	if s.waiting {
		lines = append(lines, theme.Hint.Render("다시다가 생각하고 있어요..."))
	}
	if s.errMsg != "" {
		lines = append(lines, layout.Wrap(theme.ErrorText.Render(s.errMsg), bodyWidth)...)
	}

	input := theme.FocusedCard.Width(bodyWidth).Render(s.input.View())
	transcript := layout.Tail(lines, height-lipgloss.Height(input)-1)

	return lipgloss.NewStyle().
		Padding(0, 2).
		Render(strings.Join(transcript, "\n") + "\n" + input)
}
