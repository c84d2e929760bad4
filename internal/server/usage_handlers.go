package server

import (
	"github.com/gin-gonic/gin"

	"github.com/dasida/tutor/internal/llm"
	"github.com/dasida/tutor/internal/store"
)

// GET /health
func (s *Server) health(c *gin.Context) {
	status, database := "healthy", "ok"
	if sqlDB, err := s.deps.Store.DB().DB(); err != nil {
		status, database = "degraded", err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		status, database = "degraded", err.Error()
	}
	respondOK(c, gin.H{
		"status":   status,
		"service":  "dasida",
		"provider": s.deps.Provider,
		"model":    s.deps.Model,
		"database": database,
	})
}

type usageRow struct {
	store.UsageRow
	CostUSD *float64 `json:"cost_usd"`
}

// GET /usage
func (s *Server) usage(c *gin.Context) {
	ctx := c.Request.Context()
	rows, err := s.deps.Store.Usage().Summary(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	recent, err := s.deps.Store.Usage().Query(ctx, store.QueryOpts{Limit: 10})
	if err != nil {
		s.fail(c, err)
		return
	}

	var requests, tokens int64
	var cost float64
	out := make([]usageRow, 0, len(rows))
	for _, r := range rows {
		requests += r.Requests
		tokens += r.InputTokens + r.OutputTokens
		row := usageRow{UsageRow: r}
		if mc := llm.LookupCost(r.Model); mc != nil {
			v := mc.Cost(int(r.InputTokens), int(r.OutputTokens))
			row.CostUSD = &v
			cost += v
		}
		out = append(out, row)
	}

	respondOK(c, gin.H{
		"total_requests":     requests,
		"total_tokens":       tokens,
		"estimated_cost_usd": cost,
		"by_model":           out,
		"recent_requests":    recent,
	})
}
