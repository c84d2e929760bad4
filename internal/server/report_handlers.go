package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/models"
)

type reportTokenUsage struct {
	PromptTokens   int `json:"report_prompt_tokens"`
	ResponseTokens int `json:"report_response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

// POST /incorrect-answer-report/:conversation_id[?save=true]
func (s *Server) synthesizeReport(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := s.deps.Reports.Synthesize(ctx, c.Param("conversation_id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	body := gin.H{
		"conversation_id": res.ConversationID,
		"status":          "success",
		"report":          res.Text,
		"error_patterns":  res.Patterns,
		"metadata": gin.H{
			"problem_info":            res.Problem,
			"primary_concept":         res.Concept,
			"chat_messages_count":     res.MessageCount,
			"textbook_concepts_count": len(res.Concept.AllConcepts),
			"learning_stats":          res.Stats,
			"model":                   res.Model,
			"token_usage": reportTokenUsage{
				PromptTokens:   res.Usage.InputTokens,
				ResponseTokens: res.Usage.OutputTokens,
				TotalTokens:    res.Usage.InputTokens + res.Usage.OutputTokens,
			},
		},
	}

	if c.Query("save") == "true" {
		rep := res.Report()
		id, err := s.deps.Store.Reports().Insert(ctx, rep)
		if err != nil {
			s.fail(c, err)
			return
		}
		body["report_id"] = id
	}
	respondOK(c, body)
}

type saveReportRequest struct {
	ConversationID    string          `json:"conversation_id"`
	UserID            *int64          `json:"user_id"`
	ProblemID         *uint           `json:"p_id"`
	Status            string          `json:"status"`
	PromptTokens      int             `json:"prompt_tokens"`
	ResponseTokens    int             `json:"response_tokens"`
	TotalTokens       int             `json:"total_tokens"`
	ReportType        string          `json:"report_type"`
	Language          string          `json:"language"`
	LearningStats     json.RawMessage `json:"learning_stats"`
	FullReportContent string          `json:"full_report_content"`
}

func (r *saveReportRequest) validate() error {
	switch {
	case strings.TrimSpace(r.ConversationID) == "":
		return apperr.Required("conversation_id")
	case r.UserID == nil:
		return apperr.Required("user_id")
	case r.ProblemID == nil:
		return apperr.Required("p_id")
	case r.FullReportContent == "":
		return apperr.Required("full_report_content")
	}
	return nil
}

// POST /reports/save
func (s *Server) saveReport(c *gin.Context) {
	var req saveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &apperr.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		s.fail(c, err)
		return
	}

	stats := datatypes.JSON("{}")
	if len(req.LearningStats) > 0 && string(req.LearningStats) != "null" {
		stats = datatypes.JSON(req.LearningStats)
	}
	rep := &models.Report{
		ConversationID:    strings.TrimSpace(req.ConversationID),
		UserID:            *req.UserID,
		ProblemID:         *req.ProblemID,
		Status:            req.Status,
		PromptTokens:      req.PromptTokens,
		ResponseTokens:    req.ResponseTokens,
		TotalTokens:       req.TotalTokens,
		ReportType:        req.ReportType,
		Language:          req.Language,
		LearningStats:     stats,
		FullReportContent: req.FullReportContent,
	}
	id, err := s.deps.Store.Reports().Insert(c.Request.Context(), rep)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"report_id": id,
		"message":   "report saved",
	})
}

type reportView struct {
	*models.Report
	ErrorPatterns []string `json:"error_patterns"`
}

// GET /reports/:conversation_id
func (s *Server) latestReport(c *gin.Context) {
	id := c.Param("conversation_id")
	rep, err := s.deps.Store.Reports().Latest(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if rep == nil {
		s.fail(c, &apperr.NotFoundError{Resource: "report", Key: id})
		return
	}
	respondOK(c, reportView{Report: rep, ErrorPatterns: s.deps.Extractor.Extract(rep.FullReportContent)})
}
