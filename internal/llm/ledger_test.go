package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dasida/tutor/internal/models"
)

type recordingSink struct {
	events []*models.LLMRequestEvent
	err    error
}

func (s *recordingSink) AppendLLMRequest(_ context.Context, ev *models.LLMRequestEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestLedger_RecordsSuccess(t *testing.T) {
	sink := &recordingSink{}
	mock := NewMockProvider(MockResponse{Text: "튜터 응답", Usage: Usage{InputTokens: 12, OutputTokens: 4, TotalTokens: 16}})
	p := WithLedger(mock, "mock", sink, nil)

	ctx := WithPurpose(context.Background(), PurposeTutorTurn)
	if _, err := p.Generate(ctx, Prompt("프롬프트", 100, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if !ev.Success || ev.Purpose != PurposeTutorTurn || ev.Provider != "mock" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.InputTokens != 12 || ev.OutputTokens != 4 {
		t.Fatalf("unexpected tokens: %+v", ev)
	}
	if !strings.Contains(ev.RequestBody, "[user]\n프롬프트") {
		t.Fatalf("request body not serialized: %q", ev.RequestBody)
	}
	if ev.ResponseBody != "튜터 응답" {
		t.Fatalf("response body = %q", ev.ResponseBody)
	}
}

func TestLedger_RecordsFailureAndIgnoresSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	p := WithLedger(mock, "mock", sink, nil)

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected provider error to pass through, got %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Success || sink.events[0].ErrorMessage == "" {
		t.Fatalf("failure not recorded: %+v", sink.events)
	}
}

func TestNewProvider_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "mock"
	p, err := NewProvider(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID = %q", p.ModelID())
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "palm"
	if _, err := NewProvider(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
