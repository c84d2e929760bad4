package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/logger"
	"github.com/dasida/tutor/internal/models"
)

// TranscriptRepo owns conversations and their append-only message log.
type TranscriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

// CreateConversation starts a session for userID on problemID.
func (r *TranscriptRepo) CreateConversation(ctx context.Context, userID int64, problemID uint) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProblemID:   problemID,
		StartedAt:   now,
		FullChatLog: datatypes.JSON("[]"),
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	r.log.Debug("conversation created", "conversation_id", conv.ID, "p_id", problemID)
	return conv, nil
}

// GetConversation returns the conversation, or nil if it does not exist.
func (r *TranscriptRepo) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).First(&conv, "conversation_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Append adds a message and regenerates the conversation's full_chat_log
// snapshot in the same transaction. On Postgres the conversation row is
// locked for the duration, so concurrent appends to one conversation
// serialize; SQLite already runs with a single connection.
func (r *TranscriptRepo) Append(ctx context.Context, conversationID string, role models.Role, text, kind string) (uint, error) {
	if kind == "" {
		kind = models.KindText
	}

	var id uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var conv models.Conversation
		if err := q.First(&conv, "conversation_id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperr.NotFoundError{Resource: "conversation", Key: conversationID}
			}
			return err
		}

		msg := models.ChatMessage{
			ConversationID: conversationID,
			UserID:         conv.UserID,
			ProblemID:      conv.ProblemID,
			Role:           role,
			Message:        text,
			Kind:           kind,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		id = msg.ID

		snapshot, err := buildSnapshot(tx, conversationID)
		if err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("conversation_id = ?", conversationID).
			Updates(map[string]any{
				"full_chat_log": snapshot,
				"updated_at":    time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("append message to %s: %w", conversationID, err)
	}
	return id, nil
}

func buildSnapshot(tx *gorm.DB, conversationID string) (datatypes.JSON, error) {
	var msgs []models.ChatMessage
	if err := tx.Where("conversation_id = ?", conversationID).Order("chat_id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	summaries := make([]models.MessageSummary, len(msgs))
	for i, m := range msgs {
		summaries[i] = m.Summary()
	}
	raw, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("marshal full_chat_log: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// List returns all messages of a conversation in creation order.
func (r *TranscriptRepo) List(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("chat_id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", conversationID, err)
	}
	return msgs, nil
}

// Snapshot returns the raw full_chat_log, or nil when the conversation is
// unknown or has never been snapshotted.
func (r *TranscriptRepo) Snapshot(ctx context.Context, conversationID string) (json.RawMessage, error) {
	conv, err := r.GetConversation(ctx, conversationID)
	if err != nil || conv == nil {
		return nil, err
	}
	if len(conv.FullChatLog) == 0 {
		return nil, nil
	}
	return json.RawMessage(conv.FullChatLog), nil
}

// Complete marks a conversation as finished. Completing twice is a no-op.
func (r *TranscriptRepo) Complete(ctx context.Context, conversationID string) (*models.Conversation, error) {
	conv, err := r.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, &apperr.NotFoundError{Resource: "conversation", Key: conversationID}
	}
	if conv.Completed() {
		return conv, nil
	}
	now := time.Now().UTC()
	err = r.db.WithContext(ctx).Model(conv).Updates(map[string]any{
		"completed_at": now,
		"updated_at":   now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("complete conversation %s: %w", conversationID, err)
	}
	conv.CompletedAt = &now
	return conv, nil
}

// ListByUser returns a user's conversations, newest first.
func (r *TranscriptRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Conversation, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations of user %d: %w", userID, err)
	}
	return convs, nil
}
