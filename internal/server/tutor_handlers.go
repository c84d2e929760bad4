package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/dialogue"
	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/tutor"
)

type stepRequest struct {
	ConversationID string         `json:"conversation_id"`
	UserMessage    string         `json:"user_message"`
	CurrentStep    *int           `json:"current_step"`
	Attempts       map[string]int `json:"attempts"`
	PageNumber     looseString    `json:"page_number"`
	ProblemNumber  looseString    `json:"problem_number"`
}

type tokenUsage struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

type stepResponse struct {
	ConversationID string                `json:"conversation_id"`
	Solution       string                `json:"solution"`
	CurrentStep    int                   `json:"current_step"`
	Attempts       map[string]int        `json:"attempts"`
	ProblemInfo    models.ProblemSummary `json:"problem_info"`
	Provider       string                `json:"provider"`
	Model          string                `json:"model"`
	TokenUsage     tokenUsage            `json:"token_usage"`
}

// POST /ai/step-by-step-solution
func (s *Server) stepByStep(c *gin.Context) {
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &apperr.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	in := tutor.TurnInput{
		ConversationID: strings.TrimSpace(req.ConversationID),
		UserMessage:    req.UserMessage,
		ProblemNumber:  req.ProblemNumber.String(),
		State:          dialogue.Initial(),
	}
	if req.CurrentStep != nil {
		in.State.Step = *req.CurrentStep
	}
	if req.Attempts != nil {
		in.State.Attempts = dialogue.AttemptsFromWire(req.Attempts)
	}
	if req.PageNumber != "" {
		page, err := strconv.Atoi(req.PageNumber.String())
		if err != nil {
			s.fail(c, &apperr.ValidationError{Field: "page_number", Reason: "must be a number"})
			return
		}
		in.Page = &page
	}

	ctx := c.Request.Context()
	// The lock covers generation only. The client's /chat/save appends run
	// later and are ordered by their own transaction, not by this lock.
	if !s.deps.Tutor.IsFirstTurn(in) {
		release, err := s.deps.Locker.Acquire(ctx, in.ConversationID)
		if err != nil {
			s.fail(c, err)
			return
		}
		defer release()
	}

	res, err := s.deps.Tutor.RunTurn(ctx, in)
	if err != nil {
		s.fail(c, err)
		return
	}

	respondOK(c, stepResponse{
		ConversationID: res.ConversationID,
		Solution:       res.VisibleText,
		CurrentStep:    res.State.Step,
		Attempts:       dialogue.AttemptsToWire(res.State.Attempts),
		ProblemInfo:    res.Problem,
		Provider:       s.deps.Provider,
		Model:          res.Model,
		TokenUsage: tokenUsage{
			PromptTokens:   res.Usage.InputTokens,
			ResponseTokens: res.Usage.OutputTokens,
			TotalTokens:    res.Usage.InputTokens + res.Usage.OutputTokens,
		},
	})
}
