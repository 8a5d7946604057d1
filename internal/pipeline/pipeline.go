// Package pipeline runs the fixed stage sequence that turns a message into a suggested reply.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Habeeb00/msghelp/internal/conversation"
	"github.com/Habeeb00/msghelp/internal/llm"
	"github.com/Habeeb00/msghelp/internal/models"
)

// Stage names, in execution order
const (
	StageBuildConversation = "BUILD_CONVERSATION"
	StageSummarizeContext  = "SUMMARIZE_CONTEXT"
	StageGenerateReply     = "GENERATE_REPLY"
)

// Stage statuses
const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusDegraded  = "degraded"
	StatusFailed    = "failed"
)

// Input is what a request hands to the pipeline
type Input struct {
	Current models.Message
	Context models.ContextWindow
	Variant string
}

// StageResult records how one stage went
type StageResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ms"`
}

// Result is produced only when every stage succeeded
type Result struct {
	Variant    string                    `json:"variant"`
	Turns      []models.ConversationTurn `json:"turns"`
	Suggestion string                    `json:"suggestion"`
	Summary    string                    `json:"summary,omitempty"`
	Stages     []StageResult             `json:"stages"`
}

// execution carries values between stages of a single run
type execution struct {
	input   Input
	turns   []models.ConversationTurn
	summary string
	reply   string
}

type stage struct {
	name string
	run  func(ctx context.Context, e *execution) (status string, err error)
}

// Orchestrator executes its stages strictly in order, one run per call
type Orchestrator struct {
	gateway          llm.Gateway
	summarizer       llm.Summarizer
	summaryThreshold int
	params           llm.Params
	logger           *slog.Logger
	stages           []stage
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSummarizer inserts SUMMARIZE_CONTEXT between the two mandatory stages. It runs when the
// context holds more than threshold messages; a threshold of zero or less leaves it out.
func WithSummarizer(s llm.Summarizer, threshold int) Option {
	return func(o *Orchestrator) {
		o.summarizer = s
		o.summaryThreshold = threshold
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates an orchestrator calling gateway with params
func New(gateway llm.Gateway, params llm.Params, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway: gateway,
		params:  params,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.stages = append(o.stages, stage{name: StageBuildConversation, run: o.buildConversation})
	if o.summarizer != nil && o.summaryThreshold > 0 {
		o.stages = append(o.stages, stage{name: StageSummarizeContext, run: o.summarizeContext})
	}
	o.stages = append(o.stages, stage{name: StageGenerateReply, run: o.generateReply})
	return o
}

// Stages returns the stage names in execution order
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.name
	}
	return names
}

// Run executes every stage in order. The first failing stage aborts the run and its error is
// returned unchanged; no partial result is produced.
func (o *Orchestrator) Run(ctx context.Context, input Input) (*Result, error) {
	e := &execution{input: input}
	results := make([]StageResult, 0, len(o.stages))

	for _, s := range o.stages {
		start := time.Now()
		status, err := s.run(ctx, e)
		elapsed := time.Since(start)

		if err != nil {
			o.logger.Warn("pipeline stage failed",
				"stage", s.name, "variant", input.Variant, "duration", elapsed, "error", err)
			return nil, err
		}

		sr := StageResult{Name: s.name, Status: status, Duration: elapsed}
		results = append(results, sr)
		o.logger.Debug("pipeline stage done", "stage", s.name, "status", status, "duration", sr.Duration)
	}

	return &Result{
		Variant:    input.Variant,
		Turns:      e.turns,
		Suggestion: e.reply,
		Summary:    e.summary,
		Stages:     results,
	}, nil
}

func (o *Orchestrator) buildConversation(_ context.Context, e *execution) (string, error) {
	e.turns = conversation.Build(e.input.Current, e.input.Context)
	return StatusCompleted, nil
}

// summarizeContext never fails the run; an upstream error leaves the summary empty
func (o *Orchestrator) summarizeContext(ctx context.Context, e *execution) (string, error) {
	if len(e.input.Context) <= o.summaryThreshold {
		return StatusSkipped, nil
	}

	history := e.turns[:len(e.turns)-1]
	summary, err := o.summarizer.Summarize(ctx, e.input.Variant, history)
	if err != nil {
		o.logger.Warn("context summary failed, continuing without it",
			"variant", e.input.Variant, "error", err)
		return StatusDegraded, nil
	}

	e.summary = summary
	return StatusCompleted, nil
}

func (o *Orchestrator) generateReply(ctx context.Context, e *execution) (string, error) {
	reply, err := o.gateway.Generate(ctx, &llm.Request{
		Variant: e.input.Variant,
		Turns:   e.turns,
		Params:  o.params,
		Summary: e.summary,
	})
	if err != nil {
		return StatusFailed, err
	}
	if reply == "" {
		return StatusFailed, fmt.Errorf("%w: empty reply", llm.ErrInferenceFailed)
	}

	e.reply = reply
	return StatusCompleted, nil
}
