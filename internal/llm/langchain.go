package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Habeeb00/msghelp/internal/models"
	"github.com/Habeeb00/msghelp/internal/prompts"
	"github.com/tmc/langchaingo/llms"
)

// Summary generation settings
const (
	summaryMaxTokens   = 150
	summaryTemperature = 0.3
)

// ModelFactory builds the langchaingo model that serves a variant
type ModelFactory func(v Variant) (llms.Model, error)

// LangchainGateway implements Gateway and Summarizer on langchaingo models
type LangchainGateway struct {
	variants VariantTable
	models   map[string]llms.Model
	logger   *slog.Logger
}

// NewLangchainGateway builds one model per variant up front so a bad binding fails at startup.
func NewLangchainGateway(variants VariantTable, factory ModelFactory, logger *slog.Logger) (*LangchainGateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &LangchainGateway{
		variants: variants,
		models:   make(map[string]llms.Model, len(variants)),
		logger:   logger,
	}
	for name, v := range variants {
		model, err := factory(v)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", name, err)
		}
		g.models[name] = model
	}
	return g, nil
}

// Generate implements Gateway
func (g *LangchainGateway) Generate(ctx context.Context, request *Request) (string, error) {
	v, err := g.variants.Lookup(request.Variant)
	if err != nil {
		return "", err
	}

	system := prompts.WithContext(v.SystemPrompt, request.Summary)
	messages := toMessageContent(system, request.Turns)

	opts := []llms.CallOption{llms.WithMaxTokens(request.Params.MaxTokens)}
	if request.Params.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(request.Params.Temperature))
	}
	if request.Params.TopP > 0 {
		opts = append(opts, llms.WithTopP(request.Params.TopP))
	}

	return g.call(ctx, v, messages, opts...)
}

// Summarize implements Summarizer using the variant's model with the summary instruction
func (g *LangchainGateway) Summarize(ctx context.Context, variant string, turns []models.ConversationTurn) (string, error) {
	v, err := g.variants.Lookup(variant)
	if err != nil {
		return "", err
	}

	messages := toMessageContent(prompts.SummaryPrompt, turns)
	return g.call(ctx, v, messages,
		llms.WithMaxTokens(summaryMaxTokens),
		llms.WithTemperature(summaryTemperature),
	)
}

func (g *LangchainGateway) call(ctx context.Context, v Variant, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	model, ok := g.models[v.Name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, v.Name)
	}

	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		g.logger.Warn("model call failed", "variant", v.Name, "model", v.Model, "error", err)
		return "", classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &InferenceError{Detail: "empty model response"}
	}

	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", &InferenceError{Detail: "empty model response"}
	}
	return content, nil
}

// toMessageContent prepends exactly one system turn to the conversation
func toMessageContent(system string, turns []models.ConversationTurn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(turns)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))

	for _, turn := range turns {
		var role llms.ChatMessageType
		switch turn.Role {
		case models.RoleAssistant:
			role = llms.ChatMessageTypeAI
		case models.RoleSystem:
			role = llms.ChatMessageTypeSystem
		default:
			role = llms.ChatMessageTypeHuman
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}

	return messages
}
