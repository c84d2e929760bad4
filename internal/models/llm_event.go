package models

import "time"

// LLMRequestEvent records one generation call for the usage ledger.
type LLMRequestEvent struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider     string    `gorm:"size:32" json:"provider"`
	Model        string    `gorm:"size:128;index" json:"model"`
	Purpose      string    `gorm:"size:64;index" json:"purpose"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMs    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	RequestBody  string    `gorm:"type:text" json:"-"`
	ResponseBody string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (LLMRequestEvent) TableName() string { return "llm_request_events" }
