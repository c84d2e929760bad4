package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/dasida/tutor/internal/models"
)

// AllModels returns every table managed by the store.
func AllModels() []any {
	return []any{
		&models.Problem{},
		&models.TextbookConcept{},
		&models.ProblemConcept{},
		&models.ProblemSimilarity{},
		&models.Conversation{},
		&models.ChatMessage{},
		&models.Report{},
		&models.LLMRequestEvent{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("store: auto-migrate: %w", err)
	}
	return nil
}
