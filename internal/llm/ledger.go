package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dasida/tutor/internal/logger"
	"github.com/dasida/tutor/internal/models"
)

// EventRecorder persists usage ledger rows.
type EventRecorder interface {
	AppendLLMRequest(ctx context.Context, ev *models.LLMRequestEvent) error
}

// LedgerProvider is a decorator that records every generation call in the
// usage ledger. Recording failures are logged, never returned.
type LedgerProvider struct {
	inner    Provider
	provider string
	recorder EventRecorder
	log      *logger.Logger
}

// WithLedger wraps a Provider with usage recording. A nil recorder only logs.
func WithLedger(p Provider, providerName string, recorder EventRecorder, log *logger.Logger) Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerProvider{
		inner:    p,
		provider: providerName,
		recorder: recorder,
		log:      log.With("component", "llm", "provider", providerName),
	}
}

func (l *LedgerProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	ev := &models.LLMRequestEvent{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if resp != nil {
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			ev.Model = resp.Model
		}
		ev.ResponseBody = resp.Text
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
		l.log.Warn("generation failed", "purpose", purpose, "latency_ms", ev.LatencyMs, "error", err)
	} else {
		l.log.Debug("generation done", "purpose", purpose, "model", ev.Model,
			"input_tokens", ev.InputTokens, "output_tokens", ev.OutputTokens, "latency_ms", ev.LatencyMs)
	}

	if l.recorder != nil {
		// Detached so a cancelled request still gets its ledger row.
		if recErr := l.recorder.AppendLLMRequest(context.WithoutCancel(ctx), ev); recErr != nil {
			l.log.Error("failed to record LLM request", "error", recErr)
		}
	}

	return resp, err
}

func (l *LedgerProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
