package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers
const (
	ProviderTogether  = "together"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig carries the credentials and endpoints for every provider
type ProviderConfig struct {
	DefaultProvider  string
	TogetherAPIKey   string
	TogetherBaseURL  string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	// AnthropicBaseURL overrides the Anthropic endpoint when set
	AnthropicBaseURL string
	// Timeout bounds every provider call through its HTTP client
	Timeout          time.Duration
}

// NewModel implements ModelFactory.
func (p ProviderConfig) NewModel(v Variant) (llms.Model, error) {
	provider := v.Provider
	if provider == "" {
		provider = p.DefaultProvider
	}
	httpClient := &http.Client{Timeout: p.Timeout}

	switch provider {
	case ProviderTogether, "":
		if p.TogetherAPIKey == "" {
			return nil, fmt.Errorf("TOGETHER_API_KEY is required for provider %q", ProviderTogether)
		}
		return openai.New(
			openai.WithToken(p.TogetherAPIKey),
			openai.WithBaseURL(p.TogetherBaseURL),
			openai.WithModel(v.Model),
			openai.WithHTTPClient(httpClient),
		)

	case ProviderOpenAI:
		if p.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for provider %q", ProviderOpenAI)
		}
		return openai.New(
			openai.WithToken(p.OpenAIAPIKey),
			openai.WithModel(v.Model),
			openai.WithHTTPClient(httpClient),
		)

	case ProviderAnthropic:
		if p.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", ProviderAnthropic)
		}
		opts := []anthropic.Option{
			anthropic.WithToken(p.AnthropicAPIKey),
			anthropic.WithModel(v.Model),
			anthropic.WithHTTPClient(httpClient),
		}
		if p.AnthropicBaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.AnthropicBaseURL))
		}
		return anthropic.New(opts...)

	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
