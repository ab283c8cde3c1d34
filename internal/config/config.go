package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	LLM         LLMConfig
	Translation TranslationConfig
	Session     SessionConfig
	LogLevel    slog.Level
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret    string
	APIKeys      []string
	APIKeyHeader string
}

// LLMConfig holds the fallback credentials used when a model descriptor
// carries none of its own.
type LLMConfig struct {
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	OllamaURL    string
}

type TranslationConfig struct {
	Backend           string // "llm" or "stub"
	SourceLanguage    string
	TargetLanguage    string
	RecognitionLocale string
	DebounceDelay     time.Duration
	RequestTimeout    time.Duration
	CacheTTL          time.Duration
	ActiveModelID     string
	ModelsFile        string
	PromptTemplate    string
}

type SessionConfig struct {
	DisplayLimit int
}

const (
	BackendLLM  = "llm"
	BackendStub = "stub"
)

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	debounce, err := getEnvDuration("TRANSLATION_DEBOUNCE", 750*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSLATION_DEBOUNCE: %w", err)
	}

	timeout, err := getEnvDuration("TRANSLATION_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSLATION_TIMEOUT: %w", err)
	}

	cacheTTL, err := getEnvDuration("TRANSLATION_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSLATION_CACHE_TTL: %w", err)
	}

	displayLimit, err := getEnvInt("SESSION_DISPLAY_LIMIT", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_DISPLAY_LIMIT: %w", err)
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			APIKeys:      getEnvList("API_KEYS", nil),
			APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
		},
		LLM: LLMConfig{
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:    getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
			OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		},
		Translation: TranslationConfig{
			Backend:           getEnv("TRANSLATION_BACKEND", BackendLLM),
			SourceLanguage:    getEnv("TRANSLATION_SOURCE_LANGUAGE", "Japanese"),
			TargetLanguage:    getEnv("TRANSLATION_TARGET_LANGUAGE", "English"),
			RecognitionLocale: getEnv("RECOGNITION_LOCALE", "ja-JP"),
			DebounceDelay:     debounce,
			RequestTimeout:    timeout,
			CacheTTL:          cacheTTL,
			ActiveModelID:     getEnv("TRANSLATION_MODEL_ID", ""),
			ModelsFile:        getEnv("TRANSLATION_MODELS_FILE", ""),
			PromptTemplate:    getEnv("TRANSLATION_PROMPT_TEMPLATE", ""),
		},
		Session: SessionConfig{
			DisplayLimit: displayLimit,
		},
		LogLevel: level,
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.Translation.DebounceDelay <= 0 {
		problems = append(problems, "TRANSLATION_DEBOUNCE must be positive")
	}
	if c.Translation.RequestTimeout <= 0 {
		problems = append(problems, "TRANSLATION_TIMEOUT must be positive")
	}
	if c.Session.DisplayLimit <= 0 {
		problems = append(problems, "SESSION_DISPLAY_LIMIT must be positive")
	}
	switch c.Translation.Backend {
	case BackendLLM, BackendStub:
	default:
		problems = append(problems, fmt.Sprintf("unknown TRANSLATION_BACKEND %q", c.Translation.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
