// Package tutor runs one tutoring turn at a time: it resolves the problem,
// composes the prompt, calls the generation backend once and decodes the
// hidden dialogue state. The controller itself never writes to storage.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/dialogue"
	"github.com/dasida/tutor/internal/llm"
	"github.com/dasida/tutor/internal/logger"
	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/prompt"
)

// Catalog resolves problems and their concepts.
type Catalog interface {
	GetProblem(ctx context.Context, id uint) (*models.Problem, error)
	GetProblemByLocator(ctx context.Context, page int, number string) (*models.Problem, error)
	ListConcepts(ctx context.Context, problemID uint) ([]models.TextbookConcept, error)
}

// Transcripts reads stored conversations.
type Transcripts interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context, conversationID string) ([]models.ChatMessage, error)
	Snapshot(ctx context.Context, conversationID string) (json.RawMessage, error)
}

// TurnInput is one student message plus the state the caller carried over
// from the previous turn.
type TurnInput struct {
	ConversationID string
	UserMessage    string
	// Page and ProblemNumber locate the problem on a first turn.
	Page          *int
	ProblemNumber string
	State         dialogue.State
}

// TurnResult is what the caller shows and carries into the next turn.
type TurnResult struct {
	ConversationID string
	ProblemID      uint
	FirstTurn      bool
	VisibleText    string
	State          dialogue.State
	Problem        models.ProblemSummary
	Usage          llm.Usage
	Model          string
	Outcome        dialogue.Outcome
}

// Controller runs tutoring turns.
type Controller struct {
	catalog     Catalog
	transcripts Transcripts
	provider    llm.Provider
	codec       dialogue.Codec
	composer    prompt.Composer
	cfg         Config
	log         *logger.Logger
}

// NewController creates a turn controller.
func NewController(catalog Catalog, transcripts Transcripts, provider llm.Provider, codec dialogue.Codec, cfg Config, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	composer := prompt.NewComposer(codec)
	if cfg.HistoryWindow > 0 {
		composer.HistoryWindow = cfg.HistoryWindow
	}
	return &Controller{
		catalog:     catalog,
		transcripts: transcripts,
		provider:    provider,
		codec:       codec,
		composer:    composer,
		cfg:         cfg,
		log:         log.With("service", "tutor"),
	}
}

// IsFirstTurn reports whether the input opens a new dialogue. The start
// sentinel is matched exactly after trimming.
func (c *Controller) IsFirstTurn(in TurnInput) bool {
	if strings.TrimSpace(in.ConversationID) == "" {
		return true
	}
	msg := strings.TrimSpace(in.UserMessage)
	for _, s := range c.cfg.StartMessages {
		if msg == s {
			return true
		}
	}
	return false
}

// RunTurn executes one turn. Validation and lookup failures return
// apperr.ValidationError or apperr.NotFoundError; a failed or empty
// generation, including one that is nothing but a state tag, returns
// apperr.GenerationError. A missing or malformed state
// tag is not an error: the input state passes through.
func (c *Controller) RunTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	var (
		problem *models.Problem
		text    string
		state   dialogue.State
		err     error
	)
	first := c.IsFirstTurn(in)
	if first {
		problem, err = c.locateProblem(ctx, in)
		if err != nil {
			return nil, err
		}
		state = dialogue.Initial()
	} else {
		var conv *models.Conversation
		conv, problem, err = c.loadConversation(ctx, in.ConversationID)
		if err != nil {
			return nil, err
		}
		state = normalizeState(in.State)
		in.ConversationID = conv.ID
	}

	concepts, err := c.catalog.ListConcepts(ctx, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("list concepts for problem %d: %w", problem.ID, err)
	}
	base := c.composer.Tutoring(problem, concepts)

	if first {
		text = c.composer.FirstTurn(base, in.ConversationID)
	} else {
		history, err := c.history(ctx, in.ConversationID)
		if err != nil {
			return nil, err
		}
		text = c.composer.Continuation(base, in.ConversationID, state, in.UserMessage, history)
	}

	resp, err := c.generate(ctx, text)
	if err != nil {
		return nil, err
	}

	decoded := c.codec.Decode(resp.Text, state)
	if strings.TrimSpace(decoded.VisibleText) == "" {
		return nil, &apperr.GenerationError{Op: "tutor turn", Err: apperr.ErrEmptyGeneration}
	}
	if decoded.Tolerated != nil {
		c.log.Debug("state tag tolerated",
			"conversation_id", in.ConversationID,
			"outcome", decoded.Outcome.String(),
			"reason", decoded.Tolerated.Error(),
		)
	}

	usage := resp.Usage
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage = llm.EstimateUsage(text, resp.Text)
	}
	model := resp.Model
	if model == "" {
		model = c.provider.ModelID()
	}

	c.log.Info("tutor turn",
		"conversation_id", in.ConversationID,
		"p_id", problem.ID,
		"first_turn", first,
		"step", decoded.State.Step,
		"outcome", decoded.Outcome.String(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	return &TurnResult{
		ConversationID: in.ConversationID,
		ProblemID:      problem.ID,
		FirstTurn:      first,
		VisibleText:    decoded.VisibleText,
		State:          decoded.State,
		Problem:        problem.Summary(),
		Usage:          usage,
		Model:          model,
		Outcome:        decoded.Outcome,
	}, nil
}

func (c *Controller) locateProblem(ctx context.Context, in TurnInput) (*models.Problem, error) {
	if in.Page == nil {
		return nil, apperr.Required("page_number")
	}
	number := strings.TrimSpace(in.ProblemNumber)
	if number == "" {
		return nil, apperr.Required("problem_number")
	}
	p, err := c.catalog.GetProblemByLocator(ctx, *in.Page, number)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &apperr.NotFoundError{
			Resource: "problem",
			Key:      fmt.Sprintf("page %d number %s", *in.Page, number),
		}
	}
	return p, nil
}

func (c *Controller) loadConversation(ctx context.Context, id string) (*models.Conversation, *models.Problem, error) {
	conv, err := c.transcripts.GetConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, &apperr.NotFoundError{Resource: "conversation", Key: id}
	}
	if conv.ProblemID == 0 {
		return nil, nil, &apperr.NotFoundError{Resource: "problem", Key: "conversation " + id}
	}
	p, err := c.catalog.GetProblem(ctx, conv.ProblemID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, &apperr.NotFoundError{Resource: "problem", Key: fmt.Sprint(conv.ProblemID)}
	}
	return conv, p, nil
}

// history reads the snapshot, falling back to the message rows when the
// snapshot was never written.
func (c *Controller) history(ctx context.Context, id string) ([]models.MessageSummary, error) {
	raw, err := c.transcripts.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" && trimmed != "null" {
		return prompt.NormalizeChatLog(raw), nil
	}
	msgs, err := c.transcripts.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return prompt.Summaries(msgs), nil
}

func (c *Controller) generate(ctx context.Context, text string) (*llm.Response, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeTutorTurn)
	resp, err := c.provider.Generate(ctx, llm.Prompt(text, c.cfg.MaxTokens, c.cfg.Temperature))
	if err != nil {
		return nil, &apperr.GenerationError{Op: "tutor turn", Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, &apperr.GenerationError{Op: "tutor turn", Err: apperr.ErrEmptyGeneration}
	}
	return resp, nil
}

func normalizeState(s dialogue.State) dialogue.State {
	out := s.Clone()
	if out.Step < 1 {
		out.Step = 1
	}
	if out.Attempts == nil {
		out.Attempts = map[int]int{}
	}
	return out
}
