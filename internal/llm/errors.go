package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Failure kinds surfaced by a Gateway
var (
	ErrRateLimited     = errors.New("rate limited by upstream model")
	ErrTimeout         = errors.New("model call timed out")
	ErrInferenceFailed = errors.New("inference failed")
	ErrUnknownVariant  = errors.New("unknown model variant")
)

// statusTooManyRequests matches an HTTP 429 in upstream error text, not any number holding 429
var statusTooManyRequests = regexp.MustCompile(`(status( code)?|http)\W{0,3}429\b|\b429 too many requests`)

// InferenceError carries the upstream detail for diagnostics. It matches ErrInferenceFailed.
type InferenceError struct {
	Detail string
}

func (e *InferenceError) Error() string {
	return "inference failed: " + e.Detail
}

// Is reports whether target is ErrInferenceFailed.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInferenceFailed
}

// classify maps an upstream error onto the failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		statusTooManyRequests.MatchString(msg):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case strings.Contains(msg, "client.timeout exceeded"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "request timeout"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return &InferenceError{Detail: err.Error()}
}
