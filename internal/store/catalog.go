package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dasida/tutor/internal/models"
)

// CatalogRepo is the read side of the problem/concept catalog plus the
// seed path used to load it.
type CatalogRepo struct {
	db *gorm.DB
}

// GetProblem returns the problem with id, or nil.
func (r *CatalogRepo) GetProblem(ctx context.Context, id uint) (*models.Problem, error) {
	var p models.Problem
	err := r.db.WithContext(ctx).First(&p, "p_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get problem %d: %w", id, err)
	}
	return &p, nil
}

// GetProblemByLocator finds a problem by textbook page and number on that page.
func (r *CatalogRepo) GetProblemByLocator(ctx context.Context, page int, number string) (*models.Problem, error) {
	var p models.Problem
	err := r.db.WithContext(ctx).
		Where("p_page = ? AND num_in_page = ?", page, strings.TrimSpace(number)).
		Order("p_id ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get problem at page %d number %s: %w", page, number, err)
	}
	return &p, nil
}

// ListConcepts returns the concepts linked to a problem in catalog order:
// con_type, tb_con, tb_sub_con, then con_id to break ties.
func (r *CatalogRepo) ListConcepts(ctx context.Context, problemID uint) ([]models.TextbookConcept, error) {
	var concepts []models.TextbookConcept
	err := r.db.WithContext(ctx).
		Joins("JOIN problem_concepts pc ON pc.con_id = textbook_concepts.con_id").
		Where("pc.p_id = ?", problemID).
		Order("textbook_concepts.con_type ASC").
		Order("textbook_concepts.tb_con ASC").
		Order("textbook_concepts.tb_sub_con ASC").
		Order("textbook_concepts.con_id ASC").
		Find(&concepts).Error
	if err != nil {
		return nil, fmt.Errorf("list concepts of problem %d: %w", problemID, err)
	}
	return concepts, nil
}

// ProblemQuery filters SearchProblems. Zero values are ignored.
type ProblemQuery struct {
	MainChapter string
	Level       string
	Keyword     string
	Limit       int
}

// SearchProblems filters by chapter, level and a keyword over name and text.
func (r *CatalogRepo) SearchProblems(ctx context.Context, q ProblemQuery) ([]models.Problem, error) {
	tx := r.db.WithContext(ctx).Model(&models.Problem{})
	if q.MainChapter != "" {
		tx = tx.Where("main_chapt = ?", q.MainChapter)
	}
	if q.Level != "" {
		tx = tx.Where("p_level = ?", q.Level)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		like := "%" + kw + "%"
		tx = tx.Where("p_name LIKE ? OR p_text LIKE ?", like, like)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	var problems []models.Problem
	if err := tx.Order("p_page ASC, num_in_page ASC, p_id ASC").Limit(limit).Find(&problems).Error; err != nil {
		return nil, fmt.Errorf("search problems: %w", err)
	}
	return problems, nil
}

// SimilarProblems returns problems linked as similar to problemID, best rank first.
func (r *CatalogRepo) SimilarProblems(ctx context.Context, problemID uint, limit int) ([]models.Problem, error) {
	tx := r.db.WithContext(ctx).
		Joins("JOIN problem_similarities ps ON ps.sim_p_id = problems.p_id").
		Where("ps.p_id = ?", problemID).
		Order("ps.sim_rank ASC").
		Order("problems.p_id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var problems []models.Problem
	if err := tx.Find(&problems).Error; err != nil {
		return nil, fmt.Errorf("similar problems of %d: %w", problemID, err)
	}
	return problems, nil
}

// Seed is a catalog snapshot loaded from a seed file.
type Seed struct {
	Problems     []models.Problem           `yaml:"problems"`
	Concepts     []models.TextbookConcept   `yaml:"concepts"`
	Links        []models.ProblemConcept    `yaml:"problem_concepts"`
	Similarities []models.ProblemSimilarity `yaml:"similar_problems"`
}

// Upsert writes every row of the seed, replacing existing rows with the
// same primary key.
func (r *CatalogRepo) Upsert(ctx context.Context, seed Seed) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(seed.Problems) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&seed.Problems).Error; err != nil {
				return fmt.Errorf("upsert problems: %w", err)
			}
		}
		if len(seed.Concepts) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&seed.Concepts).Error; err != nil {
				return fmt.Errorf("upsert concepts: %w", err)
			}
		}
		if len(seed.Links) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed.Links).Error; err != nil {
				return fmt.Errorf("upsert problem concepts: %w", err)
			}
		}
		if len(seed.Similarities) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&seed.Similarities).Error; err != nil {
				return fmt.Errorf("upsert similar problems: %w", err)
			}
		}
		return nil
	})
}
