package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort            = "5000"
	defaultProvider        = ProviderGemini
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultGroqModel       = "moonshotai/kimi-k2-instruct"
	defaultDeepInfraModel  = "meta-llama/Llama-3.3-70B-Instruct-Turbo"
	defaultGatewayTimeout  = 60 * time.Second
	defaultGatewayWorkers  = 10
	defaultGatewayAttempts = 1
	defaultEscalationDelay = 2 * time.Second
)

type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	// Groq and DeepInfra speak the OpenAI protocol.
	ProviderGroq      Provider = "groq"
	ProviderDeepInfra Provider = "deepinfra"
)

type Config struct {
	Port       string
	Production bool

	Provider     Provider
	GeminiKey    string
	GeminiModel  string
	OpenAIKey    string
	OpenAIURL    string
	OpenAIModel  string
	GroqKey      string
	DeepInfraKey string
	Timeout      time.Duration
	MaxWorkers   int
	MaxAttempts  int
	AllowOrigins []string

	EscalationDelay time.Duration
	SessionTTL      time.Duration

	TelegramToken string
	TelegramDebug bool
	DeepgramKey   string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:          orDefault(getenv("PORT"), defaultPort),
		Production:    getenv("PRODUCTION") != "",
		Provider:      Provider(strings.ToLower(orDefault(getenv("COMPLETION_PROVIDER"), string(defaultProvider)))),
		GeminiKey:     getenv("GEMINI_SECRET_KEY"),
		GeminiModel:   orDefault(getenv("GEMINI_MODEL_NAME"), defaultGeminiModel),
		OpenAIKey:     getenv("OPENAI_SECRET_KEY"),
		OpenAIURL:     getenv("OPENAI_BASE_URL"),
		OpenAIModel:   orDefault(getenv("OPENAI_MODEL_NAME"), defaultOpenAIModel),
		GroqKey:       getenv("GROQ_SECRET_KEY"),
		DeepInfraKey:  getenv("DEEPINFRA_SECRET_KEY"),
		AllowOrigins:  splitList(orDefault(getenv("CORS_ALLOWED_ORIGINS"), "*")),
		TelegramToken: getenv("TELEGRAM_BOT_TOKEN"),
		TelegramDebug: getenv("TELEGRAM_DEBUG") == "true",
		DeepgramKey:   getenv("DEEPGRAM_API_KEY"),
	}

	var err error
	if cfg.Timeout, err = durationVar(getenv, "GATEWAY_TIMEOUT", defaultGatewayTimeout); err != nil {
		return nil, err
	}
	if cfg.EscalationDelay, err = durationVar(getenv, "ESCALATION_DELAY", defaultEscalationDelay); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationVar(getenv, "SESSION_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers, err = intVar(getenv, "GATEWAY_MAX_WORKERS", defaultGatewayWorkers); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = intVar(getenv, "GATEWAY_MAX_ATTEMPTS", defaultGatewayAttempts); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderGemini, ProviderOpenAI:
	case ProviderGroq:
		cfg.OpenAIModel = orDefault(getenv("OPENAI_MODEL_NAME"), defaultGroqModel)
	case ProviderDeepInfra:
		cfg.OpenAIModel = orDefault(getenv("OPENAI_MODEL_NAME"), defaultDeepInfraModel)
	default:
		return nil, fmt.Errorf("COMPLETION_PROVIDER: unknown provider %q", cfg.Provider)
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, v)
	}
	return n, nil
}
