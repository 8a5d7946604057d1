package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Habeeb00/msghelp/internal/llm"
	"github.com/Habeeb00/msghelp/internal/prompts"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	// Core limits
	ContextWindow  int
	CacheTTL       time.Duration
	CacheSoftLimit int
	SessionTTL     time.Duration

	// Generation parameters
	MaxTokens   int
	Temperature float64
	TopP        float64

	// Pipeline
	SummaryThreshold int
	InferenceTimeout time.Duration
	CoalesceInflight bool

	// Background work
	SweepSchedule string
	WriterWorkers int
	WriterQueue   int

	// HTTP
	HTTPAddr string

	// NATS configuration, disabled when NatsURL is empty
	NatsURL           string
	NatsSubjectPrefix string
	NatsTimeout       time.Duration
	NatsConcurrency   int

	// Storage
	StoreBackend string
	RedisURL     string
	RedisPrefix  string

	// Model providers
	LLMProvider      string
	LLMBaseURL       string
	TogetherAPIKey   string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	FineTunedModelID string
	GeneralModelID   string
	VariantsFile     string

	// Service configuration
	ServiceName string
	LogLevel    string
	LogFormat   string
}

func Load() (*Config, error) {
	cfg := &Config{
		ContextWindow:  getIntEnv("CONTEXT_WINDOW", 4),
		CacheTTL:       getSecondsEnv("CACHE_TTL", 600*time.Second),
		CacheSoftLimit: getIntEnv("CACHE_SOFT_LIMIT", 100),
		SessionTTL:     getSecondsEnv("SESSION_TTL", 3600*time.Second),

		MaxTokens:   getIntEnv("MAX_TOKENS", 512),
		Temperature: getFloatEnv("TEMPERATURE", 0.7),
		TopP:        getFloatEnv("TOP_P", 0.9),

		SummaryThreshold: getIntEnv("SUMMARY_THRESHOLD", 0),
		InferenceTimeout: getDurationEnv("INFERENCE_TIMEOUT", 30*time.Second),
		CoalesceInflight: getBoolEnv("COALESCE_INFLIGHT", false),

		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 1m"),
		WriterWorkers: getIntEnv("WRITER_WORKERS", 2),
		WriterQueue:   getIntEnv("WRITER_QUEUE", 256),

		HTTPAddr: getEnv("HTTP_ADDR", ""),

		NatsURL:           getEnv("NATS_URL", ""),
		NatsSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "msghelp"),
		NatsTimeout:       getDurationEnv("NATS_TIMEOUT", 30*time.Second),
		NatsConcurrency:   getIntEnv("NATS_CONCURRENCY", 16),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:  getEnv("REDIS_PREFIX", "msghelp:"),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", llm.ProviderTogether)),
		LLMBaseURL:       getEnv("LLM_BASE_URL", "https://api.together.xyz/v1"),
		TogetherAPIKey:   getEnv("TOGETHER_API_KEY", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		FineTunedModelID: getEnv("FINE_TUNED_MODEL_ID", "meta-llama/Meta-Llama-3.1-8B-Instruct-Reference"),
		GeneralModelID:   getEnv("GENERAL_MODEL_ID", "meta-llama/Llama-3.3-70B-Instruct-Turbo"),
		VariantsFile:     getEnv("VARIANTS_FILE", ""),

		ServiceName: getEnv("SERVICE_NAME", "msghelp"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":" + getEnv("PORT", "8000")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges, naming the offending variable
func (c *Config) Validate() error {
	switch {
	case c.ContextWindow < 0:
		return fmt.Errorf("CONTEXT_WINDOW must be >= 0, got %d", c.ContextWindow)
	case c.CacheTTL <= 0:
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	case c.SessionTTL <= 0:
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	case c.CacheSoftLimit < 0:
		return fmt.Errorf("CACHE_SOFT_LIMIT must be >= 0, got %d", c.CacheSoftLimit)
	case c.MaxTokens <= 0:
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("TEMPERATURE must be within [0, 2], got %v", c.Temperature)
	case c.TopP <= 0 || c.TopP > 1:
		return fmt.Errorf("TOP_P must be within (0, 1], got %v", c.TopP)
	case c.SummaryThreshold < 0:
		return fmt.Errorf("SUMMARY_THRESHOLD must be >= 0, got %d", c.SummaryThreshold)
	case c.InferenceTimeout <= 0:
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive, got %s", c.InferenceTimeout)
	case c.WriterWorkers < 1:
		return fmt.Errorf("WRITER_WORKERS must be >= 1, got %d", c.WriterWorkers)
	case c.WriterQueue < 0:
		return fmt.Errorf("WRITER_QUEUE must be >= 0, got %d", c.WriterQueue)
	case c.NatsConcurrency < 1:
		return fmt.Errorf("NATS_CONCURRENCY must be >= 1, got %d", c.NatsConcurrency)
	}

	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.StoreBackend)
	}
	switch c.LLMProvider {
	case llm.ProviderTogether, llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Params returns the generation parameters
func (c *Config) Params() llm.Params {
	return llm.Params{MaxTokens: c.MaxTokens, Temperature: c.Temperature, TopP: c.TopP}
}

// Providers returns the provider credentials for the model factory
func (c *Config) Providers() llm.ProviderConfig {
	return llm.ProviderConfig{
		DefaultProvider:  c.LLMProvider,
		TogetherAPIKey:   c.TogetherAPIKey,
		TogetherBaseURL:  c.LLMBaseURL,
		OpenAIAPIKey:     c.OpenAIAPIKey,
		AnthropicAPIKey:  c.AnthropicAPIKey,
		AnthropicBaseURL: c.AnthropicBaseURL,
		Timeout:          c.InferenceTimeout,
	}
}

type variantsFile struct {
	Variants []llm.Variant `yaml:"variants"`
}

// Variants builds the variant table: the two built-in variants, replaced or extended by
// entries from VARIANTS_FILE when one is set.
func (c *Config) Variants() (llm.VariantTable, error) {
	byName := map[string]llm.Variant{
		prompts.VariantFineTuned: {
			Name:         prompts.VariantFineTuned,
			Provider:     c.LLMProvider,
			Model:        c.FineTunedModelID,
			SystemPrompt: prompts.FineTunedPrompt,
		},
		prompts.VariantGeneral: {
			Name:         prompts.VariantGeneral,
			Provider:     c.LLMProvider,
			Model:        c.GeneralModelID,
			SystemPrompt: prompts.GeneralPrompt,
		},
	}

	if c.VariantsFile != "" {
		data, err := os.ReadFile(c.VariantsFile)
		if err != nil {
			return nil, fmt.Errorf("read VARIANTS_FILE: %w", err)
		}
		var file variantsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse VARIANTS_FILE %s: %w", c.VariantsFile, err)
		}
		for _, v := range file.Variants {
			if base, ok := byName[v.Name]; ok {
				if v.Model == "" {
					v.Model = base.Model
				}
				if v.SystemPrompt == "" {
					v.SystemPrompt = base.SystemPrompt
				}
			}
			if v.Provider == "" {
				v.Provider = c.LLMProvider
			}
			byName[v.Name] = v
		}
	}

	variants := make([]llm.Variant, 0, len(byName))
	for _, v := range byName {
		variants = append(variants, v)
	}
	return llm.NewVariantTable(variants)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getSecondsEnv accepts a bare number of seconds or a Go duration string
func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return getDurationEnv(key, defaultValue)
}
