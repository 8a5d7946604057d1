package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Habeeb00/msghelp/internal/cache"
	"github.com/Habeeb00/msghelp/internal/llm"
	"github.com/Habeeb00/msghelp/internal/memory"
	"github.com/Habeeb00/msghelp/internal/models"
	"github.com/Habeeb00/msghelp/internal/pipeline"
	"github.com/Habeeb00/msghelp/internal/worker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	handler  *SuggestHandler
	stub     *llm.StubGateway
	cache    *cache.MemoryCache
	sessions *memory.LocalStore
	clock    *fakeClock
}

func newFixture(t *testing.T, stub *llm.StubGateway, opts ...Option) *fixture {
	t.Helper()
	table, err := llm.NewVariantTable([]llm.Variant{
		{Name: "general", Model: "general-model", SystemPrompt: "be general"},
		{Name: "fine-tuned", Model: "tuned-model", SystemPrompt: "be tuned"},
	})
	if err != nil {
		t.Fatalf("NewVariantTable: %v", err)
	}

	clock := newFakeClock()
	c := cache.NewMemoryCache(cache.DefaultTTL, cache.WithClock(clock.Now))
	sessions := memory.NewLocalStore(memory.DefaultTTL, clock.Now)
	orchestrator := pipeline.New(stub, llm.Params{MaxTokens: 512, Temperature: 0.7, TopP: 0.9})
	opts = append([]Option{WithDefaultVariant("fine-tuned")}, opts...)

	return &fixture{
		handler:  NewSuggestHandler(c, sessions, orchestrator, table, opts...),
		stub:     stub,
		cache:    c,
		sessions: sessions,
		clock:    clock,
	}
}

func scenarioRequest() *models.SuggestRequest {
	return &models.SuggestRequest{
		Message: models.Message{Text: "sounds good, see you then", RoleHint: models.RoleHintIncoming, Timestamp: 100},
		Context: models.ContextWindow{{Text: "ok see you at 5?", RoleHint: models.RoleHintOutgoing, Timestamp: 90}},
		Variant: "general",
	}
}

func TestSuggestScenario(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "great, see you then!"}))
	ctx := context.Background()

	first, err := f.handler.Suggest(ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if first.Suggestion != "great, see you then!" || first.Cached {
		t.Errorf("first = %+v, want fresh suggestion", first)
	}
	if first.ModelUsed != "general-model" {
		t.Errorf("ModelUsed = %q", first.ModelUsed)
	}
	if first.SessionID == "" {
		t.Error("session id not generated")
	}

	second, err := f.handler.Suggest(ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if !second.Cached || second.Suggestion != first.Suggestion {
		t.Errorf("second = %+v, want cached copy of first", second)
	}
	if f.stub.Calls() != 1 {
		t.Errorf("gateway called %d times, want 1", f.stub.Calls())
	}
}

func TestSuggestRejectsLongContext(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "x"}), WithContextWindow(4))

	req := scenarioRequest()
	req.Context = make(models.ContextWindow, 5)
	for i := range req.Context {
		req.Context[i] = models.Message{Text: "m", RoleHint: models.RoleHintIncoming}
	}

	_, err := f.handler.Suggest(context.Background(), req)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "context" {
		t.Fatalf("err = %v, want context ValidationError", err)
	}
	if f.stub.Calls() != 0 {
		t.Errorf("gateway called %d times, want 0", f.stub.Calls())
	}

	req.Context = req.Context[:4]
	if _, err := f.handler.Suggest(context.Background(), req); err != nil {
		t.Errorf("context at the limit should pass: %v", err)
	}
}

func TestSuggestValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*models.SuggestRequest)
		field string
	}{
		{"empty message", func(r *models.SuggestRequest) { r.Message.Text = "" }, "message.text"},
		{"blank message", func(r *models.SuggestRequest) { r.Message.Text = "  \n" }, "message.text"},
		{"unknown variant", func(r *models.SuggestRequest) { r.Variant = "pirate" }, "variant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "x"}))
			req := scenarioRequest()
			tt.edit(req)

			_, err := f.handler.Suggest(context.Background(), req)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("err = %v, want ValidationError on %s", err, tt.field)
			}
			if f.stub.Calls() != 0 {
				t.Error("rejected request reached the gateway")
			}
		})
	}
}

func TestSuggestUnknownVariantWrapsSentinel(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway())
	req := scenarioRequest()
	req.Variant = "pirate"
	_, err := f.handler.Suggest(context.Background(), req)
	if !errors.Is(err, llm.ErrUnknownVariant) {
		t.Errorf("err = %v, want ErrUnknownVariant in chain", err)
	}
}

func TestSuggestDefaultVariant(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "hey"}))
	req := scenarioRequest()
	req.Variant = ""

	resp, err := f.handler.Suggest(context.Background(), req)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if resp.ModelUsed != "tuned-model" {
		t.Errorf("ModelUsed = %q, want default variant model", resp.ModelUsed)
	}
	if got := f.stub.Requests()[0].Variant; got != "fine-tuned" {
		t.Errorf("pipeline ran variant %q", got)
	}
}

func TestSuggestVariantIsolation(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(
		llm.StubResponse{Text: "general reply"},
		llm.StubResponse{Text: "tuned reply"},
	))
	ctx := context.Background()

	general, err := f.handler.Suggest(ctx, scenarioRequest())
	if err != nil {
		t.Fatal(err)
	}
	req := scenarioRequest()
	req.Variant = "fine-tuned"
	tuned, err := f.handler.Suggest(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	if tuned.Cached {
		t.Error("fine-tuned request served from the general variant's cache entry")
	}
	if general.Suggestion == tuned.Suggestion {
		t.Errorf("both variants returned %q", general.Suggestion)
	}
	if f.cache.Len(ctx) != 2 {
		t.Errorf("cache holds %d entries, want 2", f.cache.Len(ctx))
	}
}

func TestSuggestFailureWritesNothing(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Error: llm.ErrRateLimited}))
	ctx := context.Background()
	req := scenarioRequest()
	req.SessionID = "s-1"

	_, err := f.handler.Suggest(ctx, req)
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if f.cache.Len(ctx) != 0 {
		t.Error("failure was cached")
	}
	if _, ok := f.sessions.Get(ctx, "s-1"); ok {
		t.Error("failure created a session")
	}
}

func TestSuggestSessionLifecycle(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "one"}, llm.StubResponse{Text: "two"}),
		WithSessionIDGenerator(func() string { return "generated" }))
	ctx := context.Background()

	resp, err := f.handler.Suggest(ctx, scenarioRequest())
	if err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != "generated" {
		t.Fatalf("SessionID = %q", resp.SessionID)
	}

	info, err := f.handler.SessionInfo(ctx, "generated")
	if err != nil {
		t.Fatalf("SessionInfo: %v", err)
	}
	if info.TurnCount != 2 || info.RequestCount != 1 || info.LastSuggestion != "one" || info.Variant != "general" {
		t.Errorf("info = %+v", info)
	}
	if !info.LastActivity.Equal(f.clock.Now()) {
		t.Errorf("LastActivity = %v, want %v", info.LastActivity, f.clock.Now())
	}

	f.clock.Advance(time.Minute)
	req := scenarioRequest()
	req.SessionID = "generated"
	req.Message.Text = "actually, make it 6"
	if _, err := f.handler.Suggest(ctx, req); err != nil {
		t.Fatal(err)
	}
	info, _ = f.handler.SessionInfo(ctx, "generated")
	if info.RequestCount != 2 || info.LastSuggestion != "two" {
		t.Errorf("after second request info = %+v", info)
	}

	cleared := f.handler.ClearSession(ctx, "generated")
	if !cleared.Found {
		t.Error("first clear should report found")
	}
	cleared = f.handler.ClearSession(ctx, "generated")
	if cleared.Found {
		t.Error("second clear should report not found")
	}
	if _, err := f.handler.SessionInfo(ctx, "generated"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSuggestCacheHitRefreshesSession(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "great, see you then!"}))
	ctx := context.Background()
	req := scenarioRequest()
	req.SessionID = "s-1"

	if _, err := f.handler.Suggest(ctx, req); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(30 * time.Second)
	resp, err := f.handler.Suggest(ctx, req)
	if err != nil || !resp.Cached {
		t.Fatalf("resp = %+v, err = %v", resp, err)
	}

	info, err := f.handler.SessionInfo(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if info.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", info.RequestCount)
	}
	if !info.LastActivity.Equal(f.clock.Now()) {
		t.Error("cache hit did not refresh last activity")
	}
}

func TestSessionExpiresAfterIdle(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "ok"}))
	ctx := context.Background()
	req := scenarioRequest()
	req.SessionID = "s-1"
	if _, err := f.handler.Suggest(ctx, req); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(memory.DefaultTTL + time.Second)
	if _, err := f.handler.SessionInfo(ctx, "s-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound after idle TTL", err)
	}
}

func TestHealthSweepsBeforeCounting(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "a"}, llm.StubResponse{Text: "b"}))
	ctx := context.Background()

	if _, err := f.handler.Suggest(ctx, scenarioRequest()); err != nil {
		t.Fatal(err)
	}
	health := f.handler.Health(ctx)
	if health.Status != models.StatusHealthy || health.ActiveSessions != 1 || health.CachedEntries != 1 {
		t.Errorf("health = %+v", health)
	}

	f.clock.Advance(cache.DefaultTTL + time.Second)
	req := scenarioRequest()
	req.Message.Text = "different"
	if _, err := f.handler.Suggest(ctx, req); err != nil {
		t.Fatal(err)
	}
	health = f.handler.Health(ctx)
	if health.ActiveSessions != 2 || health.CachedEntries != 1 {
		t.Errorf("health after cache expiry = %+v, want 2 sessions and 1 live cache entry", health)
	}

	f.clock.Advance(memory.DefaultTTL + time.Second)
	health = f.handler.Health(ctx)
	if health.ActiveSessions != 0 || health.CachedEntries != 0 {
		t.Errorf("health after idle = %+v", health)
	}
}

func TestSuggestUsesWriter(t *testing.T) {
	q := worker.New(1, 4)
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "queued"}), WithWriter(q))
	ctx := context.Background()

	resp, err := f.handler.Suggest(ctx, scenarioRequest())
	if err != nil {
		t.Fatal(err)
	}
	q.Close()

	if _, ok := f.cache.Get(ctx, cache.Fingerprint("general", scenarioRequest().Message, scenarioRequest().Context)); !ok {
		t.Error("cache write not applied after drain")
	}
	if _, ok := f.sessions.Get(ctx, resp.SessionID); !ok {
		t.Error("session write not applied after drain")
	}
}

func TestSuggestCoalescesInflight(t *testing.T) {
	release := make(chan struct{})
	stub := llm.NewStubGateway(llm.StubResponse{Text: "shared"}).BlockUntil(release)
	f := newFixture(t, stub, WithCoalescing(true))

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*models.SuggestResponse, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.handler.Suggest(context.Background(), scenarioRequest())
		}(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for stub.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Suggestion != "shared" {
			t.Errorf("caller %d got %q", i, results[i].Suggestion)
		}
	}
	if stub.Calls() != 1 {
		t.Errorf("gateway called %d times, want 1", stub.Calls())
	}
}

func TestInfo(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "x"}), WithServiceName("msghelp-test"))
	if _, err := f.handler.Suggest(context.Background(), scenarioRequest()); err != nil {
		t.Fatal(err)
	}
	info := f.handler.Info(context.Background())
	if info.Service != "msghelp-test" || info.ActiveSessions != 1 {
		t.Errorf("info = %+v", info)
	}
	if info.Models["general"] != "general-model" || info.Models["fine-tuned"] != "tuned-model" {
		t.Errorf("models = %v", info.Models)
	}
}

func TestSuggestCacheHitCreatesSession(t *testing.T) {
	ids := []string{"first", "second"}
	next := 0
	f := newFixture(t, llm.NewStubGateway(llm.StubResponse{Text: "great, see you then!"}),
		WithSessionIDGenerator(func() string {
			id := ids[next]
			next++
			return id
		}))
	ctx := context.Background()

	if _, err := f.handler.Suggest(ctx, scenarioRequest()); err != nil {
		t.Fatal(err)
	}
	resp, err := f.handler.Suggest(ctx, scenarioRequest())
	if err != nil || !resp.Cached {
		t.Fatalf("resp = %+v, err = %v", resp, err)
	}
	if resp.SessionID != "second" {
		t.Fatalf("SessionID = %q", resp.SessionID)
	}

	info, err := f.handler.SessionInfo(ctx, "second")
	if err != nil {
		t.Fatalf("session handed out on a cache hit is missing: %v", err)
	}
	if info.TurnCount != 2 || info.RequestCount != 1 || info.LastSuggestion != "great, see you then!" {
		t.Errorf("info = %+v", info)
	}
	if info.Variant != "general" || info.ModelUsed != "general-model" {
		t.Errorf("variant = %q model = %q", info.Variant, info.ModelUsed)
	}
}

func TestSuggestCacheHitOverwritesSessionState(t *testing.T) {
	f := newFixture(t, llm.NewStubGateway(
		llm.StubResponse{Text: "great, see you then!"},
		llm.StubResponse{Text: "unrelated reply"},
	))
	ctx := context.Background()

	// Warm the cache under another session.
	if _, err := f.handler.Suggest(ctx, scenarioRequest()); err != nil {
		t.Fatal(err)
	}

	other := &models.SuggestRequest{
		Message:   models.Message{Text: "unrelated", RoleHint: models.RoleHintIncoming},
		Variant:   "fine-tuned",
		SessionID: "s-x",
	}
	if _, err := f.handler.Suggest(ctx, other); err != nil {
		t.Fatal(err)
	}

	req := scenarioRequest()
	req.SessionID = "s-x"
	resp, err := f.handler.Suggest(ctx, req)
	if err != nil || !resp.Cached {
		t.Fatalf("resp = %+v, err = %v", resp, err)
	}

	entry, ok := f.sessions.Get(ctx, "s-x")
	if !ok {
		t.Fatal("session s-x missing")
	}
	state := entry.State
	if state.RequestCount != 2 || state.Suggestion != "great, see you then!" {
		t.Errorf("state = %+v", state)
	}
	if state.Variant != "general" || state.ModelUsed != "general-model" {
		t.Errorf("variant = %q model = %q, want this request's", state.Variant, state.ModelUsed)
	}
	last := state.Turns[len(state.Turns)-1]
	if len(state.Turns) != 2 || last.Content != "sounds good, see you then" {
		t.Errorf("turns = %+v, want the cached request's turns", state.Turns)
	}
}
