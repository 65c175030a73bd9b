package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

const testWait = 2 * time.Second

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Credentials = CredentialsConfig{APIKey: "key", APISecret: "secret"}
	return cfg
}

type tokenResponse struct {
	token Token
	err   error
	// block waits for ctx before answering.
	block bool
}

type fakeTokenProvider struct {
	mu        sync.Mutex
	calls     []VerificationRequest
	responses []tokenResponse
	fallback  tokenResponse
	canceled  chan struct{}
}

func newFakeTokenProvider(responses ...tokenResponse) *fakeTokenProvider {
	return &fakeTokenProvider{
		responses: responses,
		fallback:  tokenResponse{token: "token"},
		canceled:  make(chan struct{}, 8),
	}
}

func (p *fakeTokenProvider) RequestToken(ctx context.Context, req VerificationRequest) (Token, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	response := p.fallback
	if len(p.responses) > 0 {
		response = p.responses[0]
		p.responses = p.responses[1:]
	}
	p.mu.Unlock()

	if response.block {
		<-ctx.Done()
		p.canceled <- struct{}{}
		return response.token, response.err
	}
	return response.token, response.err
}

func (p *fakeTokenProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeSession struct {
	token    Token
	mu       sync.Mutex
	calls    []string
	states   chan SessionState
	started  bool
	canceled chan struct{}
	once     sync.Once
	startErr error
}

func newFakeSession(token Token) *fakeSession {
	return &fakeSession{
		token:    token,
		states:   make(chan SessionState, 16),
		canceled: make(chan struct{}),
	}
}

func (s *fakeSession) Observe(ctx context.Context) (<-chan SessionState, error) {
	s.mu.Lock()
	s.calls = append(s.calls, "observe")
	s.mu.Unlock()
	return s.states, nil
}

func (s *fakeSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "start")
	if s.startErr != nil {
		return s.startErr
	}
	if s.started {
		return ErrSessionAlreadyStarted
	}
	s.started = true
	return nil
}

func (s *fakeSession) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.calls = append(s.calls, "cancel")
		s.mu.Unlock()
		close(s.canceled)
	})
}

func (s *fakeSession) emit(states ...SessionState) {
	for _, state := range states {
		s.states <- state
	}
}

func (s *fakeSession) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSession) isCanceled() bool {
	select {
	case <-s.canceled:
		return true
	default:
		return false
	}
}

type fakeSessionFactory struct {
	mu        sync.Mutex
	created   chan *fakeSession
	createErr error
	startErr  error
	endpoints []string
}

func newFakeSessionFactory() *fakeSessionFactory {
	return &fakeSessionFactory{created: make(chan *fakeSession, 8)}
}

func (f *fakeSessionFactory) CreateSession(_ context.Context, endpoint string, token Token) (Session, error) {
	f.mu.Lock()
	f.endpoints = append(f.endpoints, endpoint)
	createErr := f.createErr
	startErr := f.startErr
	f.mu.Unlock()
	if createErr != nil {
		return nil, createErr
	}
	session := newFakeSession(token)
	session.startErr = startErr
	f.created <- session
	return session, nil
}

func (f *fakeSessionFactory) next(t *testing.T) *fakeSession {
	t.Helper()
	select {
	case session := <-f.created:
		return session
	case <-time.After(testWait):
		t.Fatalf("timed out waiting for session creation")
		return nil
	}
}

type presenterCall struct {
	method   string
	progress Progress
	message  string
	outcome  Outcome
}

// recordingPresenter buffers every call. Tips are acknowledged right away
// unless holdTips is set, in which case the callbacks are queued.
type recordingPresenter struct {
	calls    chan presenterCall
	holdTips bool
	tips     chan func()
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{
		calls: make(chan presenterCall, 128),
		tips:  make(chan func(), 8),
	}
}

func (p *recordingPresenter) ShowProgress(progress Progress) {
	p.calls <- presenterCall{method: "ShowProgress", progress: progress}
}

func (p *recordingPresenter) HideProgress() {
	p.calls <- presenterCall{method: "HideProgress"}
}

func (p *recordingPresenter) ShowWarning(message string) {
	p.calls <- presenterCall{method: "ShowWarning", message: message}
}

func (p *recordingPresenter) ShowScanningTips(acknowledge func()) {
	p.calls <- presenterCall{method: "ShowScanningTips"}
	if p.holdTips {
		p.tips <- acknowledge
		return
	}
	acknowledge()
}

func (p *recordingPresenter) ShowSuccess(outcome Outcome) {
	p.calls <- presenterCall{method: "ShowSuccess", outcome: outcome}
}

func (p *recordingPresenter) ShowResult(outcome Outcome) {
	p.calls <- presenterCall{method: "ShowResult", outcome: outcome}
}

// waitFor drains calls until method shows up and returns it.
func (p *recordingPresenter) waitFor(t *testing.T, method string) presenterCall {
	t.Helper()
	timeout := time.After(testWait)
	for {
		select {
		case call := <-p.calls:
			if call.method == method {
				return call
			}
		case <-timeout:
			t.Fatalf("timed out waiting for presenter %s", method)
			return presenterCall{}
		}
	}
}

func (p *recordingPresenter) drain() []presenterCall {
	var out []presenterCall
	for {
		select {
		case call := <-p.calls:
			out = append(out, call)
		default:
			return out
		}
	}
}

type memoryAttemptRecorder struct {
	mu      sync.Mutex
	records []AttemptRecord
	stored  chan struct{}
}

func newMemoryAttemptRecorder() *memoryAttemptRecorder {
	return &memoryAttemptRecorder{stored: make(chan struct{}, 8)}
}

func (r *memoryAttemptRecorder) Record(_ context.Context, record AttemptRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	r.stored <- struct{}{}
	return nil
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%s-%d", prefix, next)
	}
}

type harness struct {
	orchestrator *Orchestrator
	tokens       *fakeTokenProvider
	sessions     *fakeSessionFactory
	presenter    *recordingPresenter
}

func newHarness(t *testing.T, cfg Config, tokens *fakeTokenProvider, opts ...Option) *harness {
	t.Helper()
	if tokens == nil {
		tokens = newFakeTokenProvider()
	}
	h := &harness{
		tokens:    tokens,
		sessions:  newFakeSessionFactory(),
		presenter: newRecordingPresenter(),
	}
	opts = append([]Option{
		WithLogger(stubLogger{}),
		WithAttemptIDGenerator(sequentialIDs("attempt")),
	}, opts...)
	orchestrator, err := NewOrchestrator(cfg, h.tokens, h.sessions, h.presenter, opts...)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("start orchestrator: %v", err)
	}
	h.orchestrator = orchestrator
	t.Cleanup(func() {
		_ = orchestrator.Close()
	})
	return h
}

func (h *harness) snapshot(t *testing.T) OrchestratorSnapshot {
	t.Helper()
	snapshot, err := h.orchestrator.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snapshot
}

// waitForPhase polls the loop until it reports phase.
func (h *harness) waitForPhase(t *testing.T, phase Phase) {
	t.Helper()
	deadline := time.Now().Add(testWait)
	for time.Now().Before(deadline) {
		if h.snapshot(t).Phase == phase {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, have %s", phase, h.snapshot(t).Phase)
}

var errBoom = errors.New("boom")

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
