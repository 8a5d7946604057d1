package llm

import (
	"context"
	"errors"
	"time"
)

// Call statuses reported to an Observer
const (
	StatusOK          = "ok"
	StatusRateLimited = "rate_limited"
	StatusTimeout     = "timeout"
	StatusFailed      = "failed"
)

// Observer receives one callback per Generate call
type Observer func(variant, status string, d time.Duration)

// Instrumented wraps a Gateway and reports every call to observe
type Instrumented struct {
	next    Gateway
	observe Observer
}

// NewInstrumented decorates next
func NewInstrumented(next Gateway, observe Observer) *Instrumented {
	return &Instrumented{next: next, observe: observe}
}

// Generate implements Gateway
func (i *Instrumented) Generate(ctx context.Context, request *Request) (string, error) {
	start := time.Now()
	text, err := i.next.Generate(ctx, request)
	i.observe(request.Variant, StatusOf(err), time.Since(start))
	return text, err
}

// StatusOf names the failure kind of err
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrRateLimited):
		return StatusRateLimited
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	default:
		return StatusFailed
	}
}
