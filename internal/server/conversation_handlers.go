package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/prompt"
)

type createConversationRequest struct {
	UserID    int64 `json:"user_id"`
	ProblemID uint  `json:"p_id"`
}

// POST /conversation/create
func (s *Server) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &apperr.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	conv, err := s.openConversation(c, req.UserID, req.ProblemID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondOK(c, gin.H{
		"conversation_id": conv.ID,
		"user_id":         conv.UserID,
		"p_id":            conv.ProblemID,
		"status":          "created",
	})
}

func (s *Server) openConversation(c *gin.Context, userID int64, problemID uint) (*models.Conversation, error) {
	if userID <= 0 {
		return nil, apperr.Required("user_id")
	}
	if problemID == 0 {
		return nil, apperr.Required("p_id")
	}
	ctx := c.Request.Context()
	p, err := s.deps.Store.Catalog().GetProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &apperr.NotFoundError{Resource: "problem", Key: uintKey(problemID)}
	}
	return s.deps.Store.Transcripts().CreateConversation(ctx, userID, problemID)
}

type saveMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	ProblemID      uint   `json:"p_id"`
	SenderRole     string `json:"sender_role"`
	Message        string `json:"message"`
	MessageType    string `json:"message_type"`
}

// roleAliases maps names older clients send for the tutor side.
var roleAliases = map[string]models.Role{
	"dasida":    models.RoleTutor,
	"assistant": models.RoleTutor,
	"ai":        models.RoleTutor,
}

func parseSenderRole(s string) (models.Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if r, ok := roleAliases[s]; ok {
		return r, nil
	}
	r, err := models.ParseRole(s)
	if err != nil {
		return "", &apperr.ValidationError{Field: "sender_role", Reason: err.Error()}
	}
	return r, nil
}

// POST /chat/save
func (s *Server) saveMessage(c *gin.Context) {
	var req saveMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &apperr.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	role, err := parseSenderRole(req.SenderRole)
	if err != nil {
		s.fail(c, err)
		return
	}

	convID := strings.TrimSpace(req.ConversationID)
	if convID == "" {
		conv, err := s.openConversation(c, req.UserID, req.ProblemID)
		if err != nil {
			s.fail(c, err)
			return
		}
		convID = conv.ID
	}

	id, err := s.deps.Store.Transcripts().Append(c.Request.Context(), convID, role, req.Message, req.MessageType)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondOK(c, gin.H{
		"message":         req.Message,
		"conversation_id": convID,
		"chat_id":         id,
		"provider":        s.deps.Provider,
		"model":           s.deps.Model,
	})
}

func (s *Server) requireConversation(c *gin.Context) (*models.Conversation, bool) {
	id := c.Param("conversation_id")
	conv, err := s.deps.Store.Transcripts().GetConversation(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	if conv == nil {
		s.fail(c, &apperr.NotFoundError{Resource: "conversation", Key: id})
		return nil, false
	}
	return conv, true
}

// GET /conversation/:conversation_id/messages
func (s *Server) listMessages(c *gin.Context) {
	conv, ok := s.requireConversation(c)
	if !ok {
		return
	}
	msgs, err := s.deps.Store.Transcripts().List(c.Request.Context(), conv.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	respondOK(c, gin.H{
		"conversation_id": conv.ID,
		"messages":        msgs,
		"count":           len(msgs),
	})
}

// GET /conversation/:conversation_id/full-chat-log
func (s *Server) fullChatLog(c *gin.Context) {
	conv, ok := s.requireConversation(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{
		"conversation_id": conv.ID,
		"full_chat_log":   prompt.NormalizeChatLog([]byte(conv.FullChatLog)),
		"started_at":      conv.StartedAt,
		"completed_at":    conv.CompletedAt,
	})
}

// POST /conversation/:conversation_id/complete
func (s *Server) completeConversation(c *gin.Context) {
	conv, err := s.deps.Store.Transcripts().Complete(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondOK(c, gin.H{
		"conversation_id": conv.ID,
		"status":          "completed",
		"completed_at":    conv.CompletedAt,
	})
}

type conversationOverview struct {
	ConversationID string     `json:"conversation_id"`
	UserID         int64      `json:"user_id"`
	ProblemID      uint       `json:"p_id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	ProblemName    string     `json:"p_name"`
	Page           int        `json:"p_page"`
	NumInPage      string     `json:"num_in_page"`
	ProblemType    string     `json:"p_type"`
	Level          string     `json:"p_level"`
	MainChapter    string     `json:"main_chapt"`
	SubChapter     string     `json:"sub_chapt"`
	ConType        string     `json:"con_type"`
	MessageCount   int        `json:"message_count"`
	HasReport      bool       `json:"has_report"`
	ErrorPatterns  []string   `json:"error_patterns"`
}

// GET /user/:user_id/conversations
func (s *Server) userConversations(c *gin.Context) {
	userID, err := pathInt64(c, "user_id")
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	convs, err := s.deps.Store.Transcripts().ListByUser(ctx, userID, queryLimit(c, 10, 100))
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]conversationOverview, 0, len(convs))
	for _, conv := range convs {
		ov := conversationOverview{
			ConversationID: conv.ID,
			UserID:         conv.UserID,
			ProblemID:      conv.ProblemID,
			StartedAt:      conv.StartedAt,
			CompletedAt:    conv.CompletedAt,
			ErrorPatterns:  []string{},
		}
		if p, err := s.deps.Store.Catalog().GetProblem(ctx, conv.ProblemID); err != nil {
			s.fail(c, err)
			return
		} else if p != nil {
			ov.ProblemName, ov.Page, ov.NumInPage = p.Name, p.Page, p.NumInPage
			ov.ProblemType, ov.Level = p.Type, p.Level
			ov.MainChapter, ov.SubChapter, ov.ConType = p.MainChapter, p.SubChapter, p.ConType
		}
		msgs, err := s.deps.Store.Transcripts().List(ctx, conv.ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		ov.MessageCount = len(msgs)

		rep, err := s.deps.Store.Reports().Latest(ctx, conv.ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if rep != nil {
			ov.HasReport = true
			ov.ErrorPatterns = s.deps.Extractor.Extract(rep.FullReportContent)
		}
		out = append(out, ov)
	}

	respondOK(c, gin.H{
		"user_id":       userID,
		"conversations": out,
		"count":         len(out),
	})
}
