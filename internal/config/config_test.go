package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("llm.timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Tutor.MaxTokens != 1024 || cfg.Tutor.HistoryWindow != 5 {
		t.Errorf("tutor = %+v", cfg.Tutor)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "dasida.yaml", `
server:
  addr: ":9100"
llm:
  provider: anthropic
  anthropic:
    model: claude-sonnet
tutor:
  temperature: 0.2
redis:
  addr: "localhost:6379"
  lock_wait: 2s
`)
	t.Setenv("DASIDA_SERVER_ADDR", ":9200")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("DASIDA_LOG_MODE", "development")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9200" {
		t.Errorf("env should override file: addr = %q", cfg.Server.Addr)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Anthropic.Model != "claude-sonnet" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Anthropic.APIKey != "sk-test" {
		t.Errorf("conventional key not bound: %q", cfg.LLM.Anthropic.APIKey)
	}
	if cfg.Log.Mode != "development" {
		t.Errorf("log.mode = %q", cfg.Log.Mode)
	}
	if cfg.Tutor.Temperature != 0.2 || cfg.Tutor.MaxTokens != 1024 {
		t.Errorf("tutor = %+v", cfg.Tutor)
	}
	if cfg.Redis.LockWait != 2*time.Second || cfg.Redis.LockTTL != 90*time.Second {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DASIDA_DATABASE_DSN=file:test.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv sets real process variables; clear it afterwards.
	t.Setenv("DASIDA_DATABASE_DSN", "")
	os.Unsetenv("DASIDA_DATABASE_DSN")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "file:test.db" {
		t.Errorf("database.dsn = %q", cfg.Database.DSN)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Log.Mode = "verbose"
	cfg.Tutor.MaxTokens = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.addr", "log.mode", "GEMINI_API_KEY", "tutor.max_tokens"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestSettingsConversion(t *testing.T) {
	cfg := Default()
	cfg.Tutor.HistoryWindow = 0
	cfg.Report.MaxTokens = 2000

	tc := cfg.TutorSettings()
	if tc.HistoryWindow != 5 {
		t.Errorf("history window = %d", tc.HistoryWindow)
	}
	if len(tc.StartMessages) == 0 {
		t.Error("start messages lost")
	}
	if rc := cfg.ReportSettings(); rc.MaxTokens != 2000 {
		t.Errorf("report max tokens = %d", rc.MaxTokens)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth enabled without a key")
	}
}
