package llm

import (
	"context"
	"sync"

	"github.com/Habeeb00/msghelp/internal/models"
)

// StubResponse configures a single reply from StubGateway.
type StubResponse struct {
	Text  string
	Error error
}

// StubGateway is a call-counting Gateway and Summarizer for tests.
// Responses are returned in order; once exhausted the last one repeats.
type StubGateway struct {
	mu             sync.Mutex
	responses      []StubResponse
	callIndex      int
	calls          []Request
	summaries      []StubResponse
	summaryCalls   int
	blockUntil     chan struct{}
	summaryRequest [][]models.ConversationTurn
}

// NewStubGateway creates a stub with a sequence of responses.
func NewStubGateway(responses ...StubResponse) *StubGateway {
	return &StubGateway{responses: responses}
}

// WithSummaries sets the responses returned by Summarize.
func (s *StubGateway) WithSummaries(responses ...StubResponse) *StubGateway {
	s.summaries = responses
	return s
}

// BlockUntil makes Generate wait for ch to close before answering.
func (s *StubGateway) BlockUntil(ch chan struct{}) *StubGateway {
	s.blockUntil = ch
	return s
}

// Generate implements Gateway.
func (s *StubGateway) Generate(ctx context.Context, request *Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, *request)
	block := s.blockUntil
	resp := next(s.responses, &s.callIndex)
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	return resp.Text, resp.Error
}

// Summarize implements Summarizer.
func (s *StubGateway) Summarize(_ context.Context, _ string, turns []models.ConversationTurn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaryRequest = append(s.summaryRequest, turns)
	resp := next(s.summaries, &s.summaryCalls)
	return resp.Text, resp.Error
}

// Calls returns the number of Generate invocations.
func (s *StubGateway) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Requests returns a copy of every Generate request received.
func (s *StubGateway) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// SummaryCalls returns the number of Summarize invocations.
func (s *StubGateway) SummaryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaryRequest)
}

func next(responses []StubResponse, idx *int) StubResponse {
	if len(responses) == 0 {
		return StubResponse{}
	}
	i := *idx
	if i >= len(responses) {
		i = len(responses) - 1
	} else {
		*idx = *idx + 1
	}
	return responses[i]
}
