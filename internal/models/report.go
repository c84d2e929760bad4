package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ReportStatusCompleted     = "completed"
	ReportTypeIncorrectAnswer = "incorrect_answer"
	ReportLanguageKorean      = "ko"
)

// Report is one synthesized error report. A conversation may have many;
// the most recent one wins for display.
type Report struct {
	ID                uint           `gorm:"column:report_id;primaryKey;autoIncrement" json:"report_id"`
	ConversationID    string         `gorm:"column:conversation_id;size:36;not null;index" json:"conversation_id"`
	UserID            int64          `gorm:"column:user_id;index" json:"user_id"`
	ProblemID         uint           `gorm:"column:p_id" json:"p_id"`
	CreatedAt         time.Time      `gorm:"column:created_at;index" json:"created_at"`
	GeneratedAt       time.Time      `gorm:"column:generated_at" json:"generated_at"`
	Status            string         `gorm:"column:status;size:16;default:completed" json:"status"`
	PromptTokens      int            `gorm:"column:prompt_tokens" json:"prompt_tokens"`
	ResponseTokens    int            `gorm:"column:response_tokens" json:"response_tokens"`
	TotalTokens       int            `gorm:"column:total_tokens" json:"total_tokens"`
	ReportType        string         `gorm:"column:report_type;size:32;default:incorrect_answer" json:"report_type"`
	Language          string         `gorm:"column:language;size:8;default:ko" json:"language"`
	LearningStats     datatypes.JSON `gorm:"column:learning_stats" json:"learning_stats"`
	FullReportContent string         `gorm:"column:full_report_content;type:text" json:"full_report_content"`
}

func (Report) TableName() string { return "reports" }

// ApplyDefaults fills status, type and language when the caller left them empty.
func (r *Report) ApplyDefaults() {
	if r.Status == "" {
		r.Status = ReportStatusCompleted
	}
	if r.ReportType == "" {
		r.ReportType = ReportTypeIncorrectAnswer
	}
	if r.Language == "" {
		r.Language = ReportLanguageKorean
	}
}
