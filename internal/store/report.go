package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/models"
)

// ReportRepo stores synthesized reports.
type ReportRepo struct {
	db *gorm.DB
}

// Insert saves a report and returns its id. Status, type and language
// default to completed / incorrect_answer / ko.
func (r *ReportRepo) Insert(ctx context.Context, rep *models.Report) (uint, error) {
	if rep.ConversationID == "" {
		return 0, apperr.Required("conversation_id")
	}
	if rep.FullReportContent == "" {
		return 0, apperr.Required("full_report_content")
	}
	rep.ApplyDefaults()
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(rep).Error; err != nil {
		return 0, fmt.Errorf("insert report for %s: %w", rep.ConversationID, err)
	}
	return rep.ID, nil
}

// Latest returns the newest report of a conversation, or nil.
func (r *ReportRepo) Latest(ctx context.Context, conversationID string) (*models.Report, error) {
	var rep models.Report
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("report_id DESC").
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest report of %s: %w", conversationID, err)
	}
	return &rep, nil
}
