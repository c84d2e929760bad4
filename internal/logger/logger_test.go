package logger

import "testing"

func TestSanitizeRedactsCredentials(t *testing.T) {
	got := sanitize([]any{"api_key", "sk-123", "model", "gemini-2.5-flash", "Authorization", "Bearer x"})
	if got[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted: %v", got[1])
	}
	if got[3] != "gemini-2.5-flash" {
		t.Fatalf("model altered: %v", got[3])
	}
	if got[5] != "[REDACTED]" {
		t.Fatalf("Authorization not redacted: %v", got[5])
	}
}

func TestSanitizeKeepsTokenCounts(t *testing.T) {
	got := sanitize([]any{"prompt_tokens", 120, "dangling"})
	if got[1] != 120 {
		t.Fatalf("prompt_tokens altered: %v", got[1])
	}
	if len(got) != 3 || got[2] != "dangling" {
		t.Fatalf("odd trailing key not preserved: %v", got)
	}
}
