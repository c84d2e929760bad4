package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/store"
)

func uintKey(n uint) string { return strconv.FormatUint(uint64(n), 10) }

// GET /problems?main_chapt=&p_level=&keyword=&limit=
func (s *Server) searchProblems(c *gin.Context) {
	problems, err := s.deps.Store.Catalog().SearchProblems(c.Request.Context(), store.ProblemQuery{
		MainChapter: c.Query("main_chapt"),
		Level:       c.Query("p_level"),
		Keyword:     c.Query("keyword"),
		Limit:       queryLimit(c, 10, 100),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if problems == nil {
		problems = []models.Problem{}
	}
	respondOK(c, gin.H{"problems": problems, "count": len(problems)})
}

// GET /problems/search?page=&number=
func (s *Server) problemByLocator(c *gin.Context) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil {
		s.fail(c, &apperr.ValidationError{Field: "page", Reason: "must be a number"})
		return
	}
	number := strings.TrimSpace(c.Query("number"))
	if number == "" {
		s.fail(c, apperr.Required("number"))
		return
	}
	p, err := s.deps.Store.Catalog().GetProblemByLocator(c.Request.Context(), page, number)
	if err != nil {
		s.fail(c, err)
		return
	}
	if p == nil {
		s.fail(c, &apperr.NotFoundError{Resource: "problem", Key: "page " + strconv.Itoa(page) + " number " + number})
		return
	}
	respondOK(c, p)
}

type problemDetail struct {
	*models.Problem
	Concepts []models.TextbookConcept `json:"concepts"`
}

// GET /problems/:p_id
func (s *Server) getProblem(c *gin.Context) {
	id, err := pathUint(c, "p_id")
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	p, err := s.deps.Store.Catalog().GetProblem(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if p == nil {
		s.fail(c, &apperr.NotFoundError{Resource: "problem", Key: uintKey(id)})
		return
	}
	concepts, err := s.deps.Store.Catalog().ListConcepts(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if concepts == nil {
		concepts = []models.TextbookConcept{}
	}
	respondOK(c, problemDetail{Problem: p, Concepts: concepts})
}

// GET /similar-problems/:p_id
func (s *Server) similarProblems(c *gin.Context) {
	id, err := pathUint(c, "p_id")
	if err != nil {
		s.fail(c, err)
		return
	}
	similar, err := s.deps.Store.Catalog().SimilarProblems(c.Request.Context(), id, queryLimit(c, 5, 50))
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(similar) == 0 {
		s.fail(c, &apperr.NotFoundError{Resource: "similar problems", Key: uintKey(id)})
		return
	}
	respondOK(c, gin.H{"p_id": id, "similar_problems": similar, "count": len(similar)})
}
