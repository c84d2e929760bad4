// Package config loads server and CLI configuration from an optional YAML
// file, a .env file and DASIDA_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dasida/tutor/internal/llm"
	"github.com/dasida/tutor/internal/report"
	"github.com/dasida/tutor/internal/tutor"
)

// EnvPrefix prefixes every environment override, e.g. DASIDA_SERVER_ADDR.
const EnvPrefix = "DASIDA"

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	LLM      llm.Config     `mapstructure:"llm"`
	Tutor    TutorConfig    `mapstructure:"tutor"`
	Report   ReportConfig   `mapstructure:"report"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig selects the store. Empty DSN means the local SQLite file.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // development or production
}

// RedisConfig enables the shared turn lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	LockWait time.Duration `mapstructure:"lock_wait"`
}

// AuthConfig enables bearer token verification when a public key is set.
type AuthConfig struct {
	PublicKeyFile string `mapstructure:"public_key_file"`
	PublicKeyPEM  string `mapstructure:"public_key_pem"`
	Issuer        string `mapstructure:"issuer"`
}

// Enabled reports whether a verification key is configured.
func (a AuthConfig) Enabled() bool {
	return a.PublicKeyFile != "" || a.PublicKeyPEM != ""
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type TutorConfig struct {
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float64 `mapstructure:"temperature"`
	HistoryWindow int     `mapstructure:"history_window"`
}

type ReportConfig struct {
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// Default returns the built-in configuration.
func Default() Config {
	tc := tutor.DefaultConfig()
	rc := report.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:         ":8000",
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Log: LogConfig{Mode: "production"},
		Redis: RedisConfig{
			LockTTL:  90 * time.Second,
			LockWait: 5 * time.Second,
		},
		CORS: CORSConfig{AllowOrigins: []string{"*"}},
		LLM:  llm.DefaultConfig(),
		Tutor: TutorConfig{
			MaxTokens:     tc.MaxTokens,
			Temperature:   tc.Temperature,
			HistoryWindow: tc.HistoryWindow,
		},
		Report: ReportConfig{
			MaxTokens:   rc.MaxTokens,
			Temperature: rc.Temperature,
		},
	}
}

// providerKeyEnv binds the vendors' conventional variable names.
var providerKeyEnv = map[string]string{
	"llm.gemini.api_key":     "GEMINI_API_KEY",
	"llm.openai.api_key":     "OPENAI_API_KEY",
	"llm.anthropic.api_key":  "ANTHROPIC_API_KEY",
	"llm.openrouter.api_key": "OPENROUTER_API_KEY",
}

// Load reads configuration. path may be empty. A missing .env is fine; a
// missing explicit config file is not.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range providerKeyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.lock_ttl", d.Redis.LockTTL)
	v.SetDefault("redis.lock_wait", d.Redis.LockWait)
	v.SetDefault("auth.public_key_file", d.Auth.PublicKeyFile)
	v.SetDefault("auth.public_key_pem", d.Auth.PublicKeyPEM)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("cors.allow_origins", d.CORS.AllowOrigins)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.gemini.api_key", d.LLM.Gemini.APIKey)
	v.SetDefault("llm.gemini.model", d.LLM.Gemini.Model)
	v.SetDefault("llm.openai.api_key", d.LLM.OpenAI.APIKey)
	v.SetDefault("llm.openai.model", d.LLM.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", d.LLM.OpenAI.BaseURL)
	v.SetDefault("llm.anthropic.api_key", d.LLM.Anthropic.APIKey)
	v.SetDefault("llm.anthropic.model", d.LLM.Anthropic.Model)
	v.SetDefault("llm.openrouter.api_key", d.LLM.OpenRouter.APIKey)
	v.SetDefault("llm.openrouter.model", d.LLM.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", d.LLM.OpenRouter.BaseURL)
	v.SetDefault("llm.retry.max_attempts", d.LLM.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.LLM.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.LLM.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.LLM.Retry.Multiplier)

	v.SetDefault("tutor.max_tokens", d.Tutor.MaxTokens)
	v.SetDefault("tutor.temperature", d.Tutor.Temperature)
	v.SetDefault("tutor.history_window", d.Tutor.HistoryWindow)
	v.SetDefault("report.max_tokens", d.Report.MaxTokens)
	v.SetDefault("report.temperature", d.Report.Temperature)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Log.Mode {
	case "development", "production":
	default:
		errs = append(errs, fmt.Errorf("log.mode must be development or production, got %q", c.Log.Mode))
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Tutor.MaxTokens <= 0 {
		errs = append(errs, errors.New("tutor.max_tokens must be positive"))
	}
	if c.Report.MaxTokens <= 0 {
		errs = append(errs, errors.New("report.max_tokens must be positive"))
	}
	if c.Tutor.HistoryWindow < 0 {
		errs = append(errs, errors.New("tutor.history_window must not be negative"))
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("redis.lock_ttl must be positive when redis is enabled"))
	}
	return errors.Join(errs...)
}

// TutorSettings converts the tutor section for the turn controller.
func (c *Config) TutorSettings() tutor.Config {
	tc := tutor.DefaultConfig()
	tc.MaxTokens = c.Tutor.MaxTokens
	tc.Temperature = c.Tutor.Temperature
	if c.Tutor.HistoryWindow > 0 {
		tc.HistoryWindow = c.Tutor.HistoryWindow
	}
	return tc
}

// ReportSettings converts the report section for the synthesizer.
func (c *Config) ReportSettings() report.Config {
	return report.Config{MaxTokens: c.Report.MaxTokens, Temperature: c.Report.Temperature}
}
