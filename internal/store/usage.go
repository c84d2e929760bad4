package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dasida/tutor/internal/models"
)

// UsageRepo is the LLM usage ledger.
type UsageRepo struct {
	db *gorm.DB
}

// QueryOpts filters ledger queries.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact match when set
	From    time.Time // created_at >= From
	To      time.Time // created_at <= To
}

// AppendLLMRequest records one generation call.
func (r *UsageRepo) AppendLLMRequest(ctx context.Context, ev *models.LLMRequestEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

// Query returns events newest first.
func (r *UsageRepo) Query(ctx context.Context, opts QueryOpts) ([]models.LLMRequestEvent, error) {
	tx := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if opts.Purpose != "" {
		tx = tx.Where("purpose = ?", opts.Purpose)
	}
	if !opts.From.IsZero() {
		tx = tx.Where("created_at >= ?", opts.From)
	}
	if !opts.To.IsZero() {
		tx = tx.Where("created_at <= ?", opts.To)
	}
	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit)
	}
	var events []models.LLMRequestEvent
	if err := tx.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	return events, nil
}

// Get returns one event, or nil.
func (r *UsageRepo) Get(ctx context.Context, id uint) (*models.LLMRequestEvent, error) {
	var ev models.LLMRequestEvent
	err := r.db.WithContext(ctx).First(&ev, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	return &ev, nil
}

// UsageRow aggregates ledger rows sharing a purpose and model.
type UsageRow struct {
	Purpose      string `json:"purpose"`
	Model        string `json:"model"`
	Requests     int64  `json:"requests"`
	Failures     int64  `json:"failures"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

// Summary groups the ledger by purpose and model.
func (r *UsageRepo) Summary(ctx context.Context) ([]UsageRow, error) {
	var rows []UsageRow
	err := r.db.WithContext(ctx).Model(&models.LLMRequestEvent{}).
		Select(`purpose, model,
			COUNT(*) AS requests,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failures,
			COALESCE(SUM(input_tokens), 0) AS input_tokens,
			COALESCE(SUM(output_tokens), 0) AS output_tokens,
			CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER) AS avg_latency_ms`).
		Group("purpose, model").
		Order("purpose ASC, model ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarize LLM usage: %w", err)
	}
	return rows, nil
}
