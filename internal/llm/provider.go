package llm

import (
	"context"
	"fmt"
	"sort"

	"github.com/Habeeb00/msghelp/internal/models"
)

// Gateway calls a model variant with a conversation and returns the generated text.
// Implementations make at most one upstream call per invocation and never retry.
type Gateway interface {
	Generate(ctx context.Context, request *Request) (string, error)
}

// Summarizer condenses earlier turns into a short context note.
type Summarizer interface {
	Summarize(ctx context.Context, variant string, turns []models.ConversationTurn) (string, error)
}

// Params are the generation parameters passed upstream
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Request represents one generation call
type Request struct {
	Variant string
	Turns   []models.ConversationTurn
	Params  Params
	// Summary, when set, is appended to the variant's system prompt
	Summary string
}

// Variant binds a variant name to a provider, a model identifier and a persona
type Variant struct {
	Name         string `yaml:"name"`
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// VariantTable is the static lookup from variant name to its binding
type VariantTable map[string]Variant

// NewVariantTable indexes variants by name, rejecting duplicates and incomplete entries.
func NewVariantTable(variants []Variant) (VariantTable, error) {
	table := make(VariantTable, len(variants))
	for _, v := range variants {
		if v.Name == "" {
			return nil, fmt.Errorf("variant without a name")
		}
		if v.Model == "" {
			return nil, fmt.Errorf("variant %q: model is required", v.Name)
		}
		if v.SystemPrompt == "" {
			return nil, fmt.Errorf("variant %q: system_prompt is required", v.Name)
		}
		if _, dup := table[v.Name]; dup {
			return nil, fmt.Errorf("variant %q defined twice", v.Name)
		}
		table[v.Name] = v
	}
	return table, nil
}

// Lookup returns the binding for name.
func (t VariantTable) Lookup(name string) (Variant, error) {
	v, ok := t[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// Names returns the variant names in sorted order.
func (t VariantTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
