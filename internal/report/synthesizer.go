// Package report turns a finished tutoring conversation into a written
// error report and the canonical error patterns found in it.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/llm"
	"github.com/dasida/tutor/internal/logger"
	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/patterns"
	"github.com/dasida/tutor/internal/prompt"
)

// Transcripts reads conversations and their messages.
type Transcripts interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context, conversationID string) ([]models.ChatMessage, error)
}

// Catalog resolves a conversation's problem and concepts.
type Catalog interface {
	GetProblem(ctx context.Context, id uint) (*models.Problem, error)
	ListConcepts(ctx context.Context, problemID uint) ([]models.TextbookConcept, error)
}

// Result is a synthesized report. Nothing is persisted until the caller
// stores Report().
type Result struct {
	ConversationID string
	UserID         int64
	Problem        models.Problem
	Concept        prompt.ConceptContext
	MessageCount   int
	Text           string
	Patterns       []string
	Stats          LearningStats
	Usage          llm.Usage
	Model          string
	GeneratedAt    time.Time
}

// Report builds the row the caller persists.
func (r *Result) Report() *models.Report {
	stats, _ := json.Marshal(r.Stats)
	rep := &models.Report{
		ConversationID:    r.ConversationID,
		UserID:            r.UserID,
		ProblemID:         r.Problem.ID,
		GeneratedAt:       r.GeneratedAt,
		PromptTokens:      r.Usage.InputTokens,
		ResponseTokens:    r.Usage.OutputTokens,
		TotalTokens:       r.Usage.TotalTokens,
		LearningStats:     datatypes.JSON(stats),
		FullReportContent: r.Text,
	}
	rep.ApplyDefaults()
	return rep
}

// Synthesizer generates error reports.
type Synthesizer struct {
	transcripts Transcripts
	catalog     Catalog
	provider    llm.Provider
	extractor   patterns.Extractor
	cfg         Config
	log         *logger.Logger
	now         func() time.Time
}

// NewSynthesizer creates a report synthesizer. A nil extractor uses the
// default label table.
func NewSynthesizer(transcripts Transcripts, catalog Catalog, provider llm.Provider, extractor patterns.Extractor, cfg Config, log *logger.Logger) *Synthesizer {
	if extractor == nil {
		extractor = patterns.NewExtractor(patterns.DefaultTable)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Synthesizer{
		transcripts: transcripts,
		catalog:     catalog,
		provider:    provider,
		extractor:   extractor,
		cfg:         cfg,
		log:         log.With("service", "report"),
		now:         time.Now,
	}
}

// Synthesize loads the conversation, asks the model for a report once and
// extracts its error patterns. Missing conversations or problems return
// apperr.NotFoundError; generation failures return apperr.GenerationError.
func (s *Synthesizer) Synthesize(ctx context.Context, conversationID string) (*Result, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apperr.Required("conversation_id")
	}

	conv, err := s.transcripts.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, &apperr.NotFoundError{Resource: "conversation", Key: conversationID}
	}
	problem, err := s.catalog.GetProblem(ctx, conv.ProblemID)
	if err != nil {
		return nil, err
	}
	if problem == nil {
		return nil, &apperr.NotFoundError{Resource: "problem", Key: fmt.Sprint(conv.ProblemID)}
	}
	concepts, err := s.catalog.ListConcepts(ctx, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("list concepts for problem %d: %w", problem.ID, err)
	}
	msgs, err := s.transcripts.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	concept := PrimaryConcept(problem, concepts)
	text := prompt.Report(problem, concept, prompt.Summaries(msgs))

	ctx = llm.WithPurpose(ctx, llm.PurposeReport)
	resp, err := s.provider.Generate(ctx, llm.Prompt(text, s.cfg.MaxTokens, s.cfg.Temperature))
	if err != nil {
		return nil, &apperr.GenerationError{Op: "report", Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, &apperr.GenerationError{Op: "report", Err: apperr.ErrEmptyGeneration}
	}

	usage := resp.Usage
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage = llm.EstimateUsage(text, resp.Text)
	}
	model := resp.Model
	if model == "" {
		model = s.provider.ModelID()
	}

	res := &Result{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Problem:        *problem,
		Concept:        concept,
		MessageCount:   len(msgs),
		Text:           resp.Text,
		Patterns:       s.extractor.Extract(resp.Text),
		Stats:          ComputeStats(msgs),
		Usage:          usage,
		Model:          model,
		GeneratedAt:    s.now().UTC(),
	}

	s.log.Info("report synthesized",
		"conversation_id", conv.ID,
		"p_id", problem.ID,
		"concepts", len(concepts),
		"messages", len(msgs),
		"patterns", len(res.Patterns),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)
	return res, nil
}

// PrimaryConcept picks the first linked concept. With none linked it falls
// back to the problem's own chapter fields and marks the rest N/A.
func PrimaryConcept(p *models.Problem, concepts []models.TextbookConcept) prompt.ConceptContext {
	if len(concepts) == 0 {
		return prompt.ConceptContext{
			TbCon:          orNA(p.ConType),
			TbSubCon:       orNA(p.SubChapter),
			ConType:        prompt.NotAvailable,
			ConName:        prompt.NotAvailable,
			ConDescription: prompt.NotAvailable,
			AllConcepts:    []models.TextbookConcept{},
		}
	}
	first := concepts[0]
	return prompt.ConceptContext{
		TbCon:          orNA(first.Name, p.ConType),
		TbSubCon:       orNA(first.SubName, p.SubChapter),
		ConType:        orNA(first.ConType),
		ConName:        orNA(first.Name),
		ConDescription: orNA(first.Description),
		AllConcepts:    concepts,
	}
}

func orNA(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return prompt.NotAvailable
}
