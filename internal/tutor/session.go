package tutor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dasida/tutor/internal/dialogue"
	"github.com/dasida/tutor/internal/models"
)

// SessionStore persists the transcript a Session produces.
type SessionStore interface {
	CreateConversation(ctx context.Context, userID int64, problemID uint) (*models.Conversation, error)
	Append(ctx context.Context, conversationID string, role models.Role, text, kind string) (uint, error)
	Complete(ctx context.Context, conversationID string) (*models.Conversation, error)
}

// ErrNotStarted is returned by Reply before Start or Resume.
var ErrNotStarted = errors.New("session not started")

// startMessage is what the student side records for the opening turn.
const startMessage = "시작"

// Session drives a conversation for an interactive client. Unlike the
// controller it persists both sides of every turn and carries the decoded
// state forward itself. Not safe for concurrent use.
type Session struct {
	ctrl   *Controller
	store  SessionStore
	userID int64

	conversationID string
	state          dialogue.State
	problem        models.ProblemSummary
}

// NewSession creates a session for userID.
func NewSession(ctrl *Controller, store SessionStore, userID int64) *Session {
	return &Session{ctrl: ctrl, store: store, userID: userID, state: dialogue.Initial()}
}

// Start opens a new conversation on the problem at page/number.
func (s *Session) Start(ctx context.Context, page int, number string) (*TurnResult, error) {
	res, err := s.ctrl.RunTurn(ctx, TurnInput{
		UserMessage:   startMessage,
		Page:          &page,
		ProblemNumber: number,
	})
	if err != nil {
		return nil, err
	}

	conv, err := s.store.CreateConversation(ctx, s.userID, res.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	res.ConversationID = conv.ID
	s.conversationID = conv.ID

	if err := s.record(ctx, startMessage, res.VisibleText); err != nil {
		return nil, err
	}
	s.state = res.State
	s.problem = res.Problem
	return res, nil
}

// Resume continues an existing conversation from a known state.
func (s *Session) Resume(conversationID string, st dialogue.State) {
	s.conversationID = conversationID
	s.state = normalizeState(st)
}

// Reply sends a student message and records the exchange.
func (s *Session) Reply(ctx context.Context, message string) (*TurnResult, error) {
	if s.conversationID == "" {
		return nil, ErrNotStarted
	}
	res, err := s.ctrl.RunTurn(ctx, TurnInput{
		ConversationID: s.conversationID,
		UserMessage:    message,
		State:          s.state,
	})
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, message, res.VisibleText); err != nil {
		return nil, err
	}
	s.state = res.State
	s.problem = res.Problem
	return res, nil
}

// Finish marks the conversation completed.
func (s *Session) Finish(ctx context.Context) error {
	if s.conversationID == "" {
		return ErrNotStarted
	}
	_, err := s.store.Complete(ctx, s.conversationID)
	return err
}

func (s *Session) record(ctx context.Context, userText, tutorText string) error {
	if _, err := s.store.Append(ctx, s.conversationID, models.RoleUser, userText, models.KindText); err != nil {
		return fmt.Errorf("record student message: %w", err)
	}
	if _, err := s.store.Append(ctx, s.conversationID, models.RoleTutor, tutorText, models.KindText); err != nil {
		return fmt.Errorf("record tutor message: %w", err)
	}
	return nil
}

// ConversationID returns the active conversation, empty before Start.
func (s *Session) ConversationID() string { return s.conversationID }

// State returns the state the next turn will send.
func (s *Session) State() dialogue.State { return s.state.Clone() }

// Problem returns the summary of the problem being solved.
func (s *Session) Problem() models.ProblemSummary { return s.problem }
