package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gennadis/groqchat/internal/auth"
	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/session"
)

const (
	baseApiUrl     = "https://api.groq.com/openai/v1"
	defaultTimeout = 30 * time.Second
	defaultAddr    = ":8080"
	defaultDSN     = ":memory:"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   chat.ChatModel

	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int

	Greeting string
	Title    string

	Addr       string
	JournalDSN string

	LogLevel  slog.Level
	LogFormat string
}

// NewConfig returns the defaults with the given credential
func NewConfig(apiKey string) *Config {
	return &Config{
		BaseURL:     baseApiUrl,
		APIKey:      apiKey,
		Model:       chat.DefaultModel,
		Timeout:     defaultTimeout,
		Temperature: chat.DefaultTemperature,
		TopP:        chat.DefaultTopP,
		MaxTokens:   chat.DefaultMaxTokens,
		Greeting:    session.DefaultGreeting,
		Title:       session.DefaultTitle,
		Addr:        defaultAddr,
		JournalDSN:  defaultDSN,
		LogLevel:    slog.LevelInfo,
		LogFormat:   "text",
	}
}

// Load reads an optional env file and then the process environment.
// A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := NewConfig(os.Getenv(auth.APIKeyEnv))
	cfg.BaseURL = strings.TrimRight(getEnv("GROQ_BASE_URL", cfg.BaseURL), "/")
	cfg.Model = chat.ChatModel(getEnv("GROQ_MODEL", string(cfg.Model)))
	cfg.Greeting = getEnv("GROQCHAT_GREETING", cfg.Greeting)
	cfg.Title = getEnv("GROQCHAT_TITLE", cfg.Title)
	cfg.Addr = getEnv("GROQCHAT_ADDR", cfg.Addr)
	cfg.JournalDSN = getEnv("GROQCHAT_JOURNAL_DSN", cfg.JournalDSN)
	cfg.LogFormat = getEnv("GROQCHAT_LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.Timeout, err = getDuration("GROQCHAT_TIMEOUT", cfg.Timeout); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = getFloat("GROQCHAT_TEMPERATURE", cfg.Temperature); err != nil {
		return nil, err
	}
	if cfg.TopP, err = getFloat("GROQCHAT_TOP_P", cfg.TopP); err != nil {
		return nil, err
	}
	if cfg.MaxTokens, err = getInt("GROQCHAT_MAX_TOKENS", cfg.MaxTokens); err != nil {
		return nil, err
	}
	if v := os.Getenv("GROQCHAT_LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid GROQCHAT_LOG_LEVEL %q: %w", v, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the sampling parameters and limits
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url is empty")
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	case c.MaxTokens <= 0:
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature)
	case c.TopP < 0 || c.TopP > 1:
		return fmt.Errorf("top_p must be within [0, 1], got %g", c.TopP)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
