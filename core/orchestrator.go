package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

const (
	defaultRecordTimeout = 5 * time.Second
	connectingMessage    = "Connecting"
)

var errStreamEnded = errors.New("core: session state stream ended before a terminal state")

// Orchestrator drives one verification attempt at a time. A single loop
// goroutine (Run) owns phase, retry count and the active attempt; workers
// post results back tagged with their attempt id and stale ids are dropped.
type Orchestrator struct {
	config         Config
	tokens         TokenProvider
	sessions       SessionFactory
	presenter      Presenter
	recorder       AttemptRecorder
	logger         Logger
	loggerProvider LoggerProvider
	metrics        MetricsRecorder
	recordTimeout  time.Duration
	now            func() time.Time
	newAttemptID   func() string

	events     chan event
	closing    chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	running    atomic.Bool
	rootCtx    context.Context
	rootCancel context.CancelFunc

	workerMu sync.Mutex
	closed   bool
	workers  sync.WaitGroup

	// owned by the loop goroutine
	phase   Phase
	retries *RetryLimiter
	active  *attempt
}

type attempt struct {
	id        string
	request   VerificationRequest
	ctx       context.Context
	cancel    context.CancelFunc
	token     Token
	session   Session
	startedAt time.Time
}

type event interface {
	attempt() string
}

type submitEvent struct {
	request VerificationRequest
	reply   chan error
}

type cancelEvent struct {
	reply chan error
}

type snapshotEvent struct {
	reply chan OrchestratorSnapshot
}

type tokenEvent struct {
	id    string
	token Token
	err   error
}

type tipsAcknowledgedEvent struct {
	id string
}

type sessionCreatedEvent struct {
	id      string
	session Session
}

type sessionStartedEvent struct {
	id string
}

type sessionFailedEvent struct {
	id  string
	err error
}

type stateEvent struct {
	id    string
	state SessionState
}

func (submitEvent) attempt() string             { return "" }
func (cancelEvent) attempt() string             { return "" }
func (snapshotEvent) attempt() string           { return "" }
func (e tokenEvent) attempt() string            { return e.id }
func (e tipsAcknowledgedEvent) attempt() string { return e.id }
func (e sessionCreatedEvent) attempt() string   { return e.id }
func (e sessionStartedEvent) attempt() string   { return e.id }
func (e sessionFailedEvent) attempt() string    { return e.id }
func (e stateEvent) attempt() string            { return e.id }

func NewOrchestrator(
	cfg Config,
	tokens TokenProvider,
	sessions SessionFactory,
	presenter Presenter,
	opts ...Option,
) (*Orchestrator, error) {
	if tokens == nil {
		return nil, fmt.Errorf("core: token provider is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("core: session factory is required")
	}
	if presenter == nil {
		presenter = NopPresenter{}
	}

	builder := defaultOrchestratorBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("faceverify", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("faceverify.orchestrator"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.runtimeConfig, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, MapError(err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		config:         finalConfig,
		tokens:         tokens,
		sessions:       sessions,
		presenter:      presenter,
		recorder:       builder.attemptRecorder,
		logger:         logger,
		loggerProvider: provider,
		metrics:        builder.metricsRecorder,
		recordTimeout:  builder.recordTimeout,
		now:            builder.now,
		newAttemptID:   builder.newAttemptID,
		events:         make(chan event),
		closing:        make(chan struct{}),
		done:           make(chan struct{}),
		rootCtx:        rootCtx,
		rootCancel:     rootCancel,
		phase:          PhaseIdle,
		retries:        NewRetryLimiter(finalConfig.MaxRetries),
	}, nil
}

func (o *Orchestrator) Config() Config {
	if o == nil {
		return Config{}
	}
	return o.config
}

// Start runs the loop on its own goroutine until ctx ends or Close is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o == nil {
		return fmt.Errorf("core: orchestrator is nil")
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrOrchestratorRunning
	}
	go o.loop(ctx)
	return nil
}

// Run blocks on the loop until ctx ends or Close is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o == nil {
		return fmt.Errorf("core: orchestrator is nil")
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrOrchestratorRunning
	}
	return o.loop(ctx)
}

// Close cancels pending token requests and subscriptions. No presenter
// method is invoked once Close returns.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	o.closeOnce.Do(func() {
		close(o.closing)
		o.rootCancel()
	})
	if o.running.Load() {
		<-o.done
	}
	o.workerMu.Lock()
	o.closed = true
	o.workerMu.Unlock()
	o.workers.Wait()
	return nil
}

// Submit starts a verification for userID with the configured claim and
// assurance types.
func (o *Orchestrator) Submit(ctx context.Context, userID string) error {
	if o == nil {
		return newClosedError()
	}
	return o.SubmitRequest(ctx, VerificationRequest{
		UserID:        userID,
		ClaimType:     o.config.DefaultClaimType(),
		AssuranceType: o.config.DefaultAssuranceType(),
	})
}

// SubmitRequest returns a validation or retry-limit error when the attempt
// is refused; the presenter has already shown the matching warning.
func (o *Orchestrator) SubmitRequest(ctx context.Context, req VerificationRequest) error {
	if o == nil {
		return newClosedError()
	}
	reply := make(chan error, 1)
	if err := o.send(ctx, submitEvent{request: req, reply: reply}); err != nil {
		return err
	}
	return o.await(ctx, reply)
}

// Cancel ends the active attempt, if any, and reports it as canceled.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	if o == nil {
		return newClosedError()
	}
	reply := make(chan error, 1)
	if err := o.send(ctx, cancelEvent{reply: reply}); err != nil {
		return err
	}
	return o.await(ctx, reply)
}

func (o *Orchestrator) Snapshot(ctx context.Context) (OrchestratorSnapshot, error) {
	if o == nil {
		return OrchestratorSnapshot{}, newClosedError()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	reply := make(chan OrchestratorSnapshot, 1)
	if err := o.send(ctx, snapshotEvent{reply: reply}); err != nil {
		return OrchestratorSnapshot{}, err
	}
	select {
	case snapshot := <-reply:
		return snapshot, nil
	case <-ctx.Done():
		return OrchestratorSnapshot{}, ctx.Err()
	case <-o.done:
		select {
		case snapshot := <-reply:
			return snapshot, nil
		default:
			return OrchestratorSnapshot{}, newClosedError()
		}
	}
}

func (o *Orchestrator) send(ctx context.Context, ev event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-o.closing:
		return newClosedError()
	default:
	}
	select {
	case o.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.closing:
		return newClosedError()
	case <-o.done:
		return newClosedError()
	}
}

func (o *Orchestrator) await(ctx context.Context, reply <-chan error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		select {
		case err := <-reply:
			return err
		default:
			return newClosedError()
		}
	}
}

// post delivers a worker result to the loop. It reports false once the
// loop has stopped.
func (o *Orchestrator) post(ev event) bool {
	select {
	case o.events <- ev:
		return true
	case <-o.done:
		return false
	}
}

func (o *Orchestrator) spawn(fn func()) bool {
	o.workerMu.Lock()
	defer o.workerMu.Unlock()
	if o.closed {
		return false
	}
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		fn()
	}()
	return true
}

func (o *Orchestrator) loop(ctx context.Context) error {
	defer close(o.done)
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-o.closing:
		return nil
	default:
	}
	o.logInfo(ctx, "orchestrator started", map[string]any{"max_retries": o.retries.Max()})
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return ctx.Err()
		case <-o.closing:
			o.shutdown()
			return nil
		case ev := <-o.events:
			o.dispatch(ctx, ev)
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, ev event) {
	switch typed := ev.(type) {
	case submitEvent:
		typed.reply <- o.handleSubmit(ctx, typed.request)
	case cancelEvent:
		typed.reply <- o.handleCancel(ctx)
	case snapshotEvent:
		typed.reply <- o.snapshot()
	case sessionCreatedEvent:
		if !o.current(typed.id) {
			typed.session.Cancel()
			return
		}
		o.active.session = typed.session
	default:
		if !o.current(ev.attempt()) {
			o.logDebug(ctx, "discarded stale attempt event", map[string]any{
				"attempt_id": ev.attempt(),
				"event":      fmt.Sprintf("%T", ev),
			})
			return
		}
		o.handleAttemptEvent(ctx, ev)
	}
}

func (o *Orchestrator) handleAttemptEvent(ctx context.Context, ev event) {
	switch typed := ev.(type) {
	case tokenEvent:
		o.handleToken(ctx, typed)
	case tipsAcknowledgedEvent:
		if o.phase != PhaseAwaitingTips {
			return
		}
		o.beginSession(ctx)
	case sessionStartedEvent:
		o.setPhase(ctx, PhaseObserving)
	case sessionFailedEvent:
		o.logError(ctx, "session start failed", map[string]any{
			"attempt_id": typed.id,
			"error":      MapError(NewSessionStartError(typed.err)).Error(),
		})
		o.finish(ctx, ErrorState(typed.err))
	case stateEvent:
		o.handleState(ctx, typed.state)
	}
}

func (o *Orchestrator) current(id string) bool {
	return o.active != nil && id != "" && o.active.id == id
}

func (o *Orchestrator) snapshot() OrchestratorSnapshot {
	snapshot := OrchestratorSnapshot{
		Phase:      o.phase,
		RetryCount: o.retries.Count(),
		MaxRetries: o.retries.Max(),
	}
	if o.active != nil {
		snapshot.AttemptID = o.active.id
	}
	return snapshot
}

func (o *Orchestrator) handleSubmit(ctx context.Context, req VerificationRequest) error {
	req.UserID = NormalizeUserID(req.UserID)
	if req.ClaimType == "" {
		req.ClaimType = o.config.DefaultClaimType()
	}
	if req.AssuranceType == "" {
		req.AssuranceType = o.config.DefaultAssuranceType()
	}
	if req.UserID == "" {
		o.presenter.ShowWarning(MessageInvalidUserID)
		return NewValidationError("user_id", MessageInvalidUserID)
	}
	if err := req.Validate(); err != nil {
		o.presenter.ShowWarning(err.Error())
		return err
	}
	if !o.retries.CanAttempt() {
		o.presenter.ShowWarning(MessageRetryLimitReached)
		o.recordCounter(ctx, "faceverify.attempt.refused", map[string]string{"reason": "retry_limit"})
		return NewRetryLimitError(o.retries.Count(), o.retries.Max())
	}

	if o.active != nil {
		o.logInfo(ctx, "superseding active attempt", map[string]any{
			"attempt_id": o.active.id,
			"phase":      string(o.phase),
		})
		o.release(o.active)
		o.active = nil
	}

	attemptCtx, cancel := context.WithCancel(o.rootCtx)
	att := &attempt{
		id:        o.newAttemptID(),
		request:   req,
		ctx:       attemptCtx,
		cancel:    cancel,
		startedAt: o.now(),
	}
	o.active = att
	o.setPhase(ctx, PhaseRequestingToken)
	o.presenter.ShowProgress(Progress{})

	o.spawn(func() {
		token, err := o.tokens.RequestToken(att.ctx, req)
		o.post(tokenEvent{id: att.id, token: token, err: err})
	})
	return nil
}

func (o *Orchestrator) handleCancel(ctx context.Context) error {
	if o.active == nil {
		return nil
	}
	o.logInfo(ctx, "attempt canceled by user", map[string]any{
		"attempt_id": o.active.id,
		"phase":      string(o.phase),
	})
	o.finish(ctx, CanceledState())
	return nil
}

func (o *Orchestrator) handleToken(ctx context.Context, ev tokenEvent) {
	att := o.active
	if ev.err == nil && ev.token.Empty() {
		ev.err = &TokenRequestError{Description: MessageFailedToGetToken}
	}
	if ev.err != nil {
		message := MessageFailedToGetToken
		var tokenErr *TokenRequestError
		if errors.As(ev.err, &tokenErr) {
			message = tokenErr.DisplayMessage()
		}
		o.logError(ctx, "token request failed", map[string]any{
			"attempt_id": att.id,
			"user_id":    att.request.UserID,
			"error":      ev.err.Error(),
		})
		o.complete(ctx, Outcome{
			AttemptID: att.id,
			Kind:      OutcomeTokenFailure,
			Title:     TitleError,
			Message:   message,
		})
		return
	}

	if o.config.SkipScanningTips {
		o.startSession(ctx, ev.token)
		return
	}

	o.setPhase(ctx, PhaseAwaitingTips)
	att.token = ev.token
	id := att.id
	var once sync.Once
	o.presenter.ShowScanningTips(func() {
		once.Do(func() {
			o.spawn(func() {
				o.post(tipsAcknowledgedEvent{id: id})
			})
		})
	})
}

func (o *Orchestrator) beginSession(ctx context.Context) {
	o.startSession(ctx, o.active.token)
}

// startSession creates the session, subscribes to its state stream and only
// then issues Start, all on a worker.
func (o *Orchestrator) startSession(ctx context.Context, token Token) {
	att := o.active
	o.setPhase(ctx, PhaseSessionStarting)
	endpoint := o.config.VerificationURL

	o.spawn(func() {
		session, err := o.sessions.CreateSession(att.ctx, endpoint, token)
		if err != nil {
			o.post(sessionFailedEvent{id: att.id, err: err})
			return
		}
		if !o.post(sessionCreatedEvent{id: att.id, session: session}) || att.ctx.Err() != nil {
			session.Cancel()
			return
		}
		states, err := session.Observe(att.ctx)
		if err != nil {
			o.post(sessionFailedEvent{id: att.id, err: err})
			return
		}
		if err := session.Start(); err != nil {
			o.post(sessionFailedEvent{id: att.id, err: err})
			return
		}
		o.post(sessionStartedEvent{id: att.id})
		o.forward(att, states)
	})
}

func (o *Orchestrator) forward(att *attempt, states <-chan SessionState) {
	for {
		select {
		case <-att.ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				if att.ctx.Err() == nil {
					o.post(stateEvent{id: att.id, state: ErrorState(errStreamEnded)})
				}
				return
			}
			if !o.post(stateEvent{id: att.id, state: state}) {
				return
			}
			if state.Terminal() {
				return
			}
		}
	}
}

func (o *Orchestrator) handleState(ctx context.Context, state SessionState) {
	if !state.Terminal() {
		if o.phase != PhaseObserving {
			o.setPhase(ctx, PhaseObserving)
		}
		progress := state.Progress
		if state.Kind == StateConnecting && strings.TrimSpace(progress.Message) == "" {
			progress.Message = connectingMessage
		}
		o.presenter.ShowProgress(progress)
		return
	}
	o.finish(ctx, state)
}

// finish maps a terminal state onto retry bookkeeping and the presenter.
func (o *Orchestrator) finish(ctx context.Context, state SessionState) {
	att := o.active
	outcome := Outcome{AttemptID: att.id}
	switch state.Kind {
	case StateSuccess:
		o.retries.Reset()
		outcome.Kind = OutcomeSucceeded
		outcome.Title = TitleSuccess
	case StateFailure:
		o.retries.RecordFailure()
		outcome.Kind = OutcomeFailed
		outcome.Title = TitleFailure
		if state.Failure != nil {
			if code := strings.TrimSpace(state.Failure.FeedbackCode); code != "" {
				outcome.Title = code
			}
			outcome.FeedbackCode = state.Failure.FeedbackCode
			outcome.Message = state.Failure.Description
		}
	case StateError:
		o.retries.RecordFailure()
		outcome.Kind = OutcomeErrored
		outcome.Title = TitleError
		outcome.Message = errorMessage(state.Err)
	default:
		outcome.Kind = OutcomeCanceled
		outcome.Title = TitleCanceled
	}
	o.complete(ctx, outcome)
}

func (o *Orchestrator) complete(ctx context.Context, outcome Outcome) {
	att := o.active
	o.release(att)
	o.active = nil
	o.setPhase(ctx, PhaseIdle)

	outcome.RetryCount = o.retries.Count()
	finishedAt := o.now()
	o.observeOutcome(ctx, att, outcome, finishedAt)

	o.presenter.HideProgress()
	if outcome.Kind == OutcomeSucceeded {
		o.presenter.ShowSuccess(outcome)
	} else {
		o.presenter.ShowResult(outcome)
	}
	o.record(att, outcome, finishedAt)
}

// release cancels the attempt's context, which ends its token request and
// subscription, and cancels its session.
func (o *Orchestrator) release(att *attempt) {
	if att == nil {
		return
	}
	att.cancel()
	att.token = ""
	if att.session != nil {
		att.session.Cancel()
	}
}

func (o *Orchestrator) shutdown() {
	if o.active != nil {
		o.release(o.active)
		o.active = nil
	}
	o.phase = PhaseIdle
	o.rootCancel()
}

func (o *Orchestrator) record(att *attempt, outcome Outcome, finishedAt time.Time) {
	if o.recorder == nil || att == nil {
		return
	}
	record := AttemptRecord{
		AttemptID:     att.id,
		UserID:        att.request.UserID,
		ClaimType:     att.request.ClaimType,
		AssuranceType: att.request.AssuranceType,
		Outcome:       outcome.Kind,
		FeedbackCode:  outcome.FeedbackCode,
		Message:       outcome.Message,
		RetryCount:    outcome.RetryCount,
		StartedAt:     att.startedAt,
		FinishedAt:    finishedAt,
	}
	recorder := o.recorder
	timeout := o.recordTimeout
	o.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := recorder.Record(ctx, record); err != nil {
			o.logError(ctx, "record attempt failed", map[string]any{
				"attempt_id": record.AttemptID,
				"error":      err.Error(),
			})
		}
	})
}

func (o *Orchestrator) setPhase(ctx context.Context, phase Phase) {
	if o.phase == phase {
		return
	}
	previous := o.phase
	o.phase = phase
	fields := map[string]any{
		"from": string(previous),
		"to":   string(phase),
	}
	if o.active != nil {
		fields["attempt_id"] = o.active.id
	}
	o.logDebug(ctx, "phase transition", fields)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func newAttemptID() string {
	return uuid.NewString()
}

// NopPresenter acknowledges scanning tips immediately and renders nothing.
type NopPresenter struct{}

func (NopPresenter) ShowProgress(Progress)              {}
func (NopPresenter) HideProgress()                      {}
func (NopPresenter) ShowWarning(string)                 {}
func (NopPresenter) ShowScanningTips(acknowledge func()) { acknowledge() }
func (NopPresenter) ShowSuccess(Outcome)                {}
func (NopPresenter) ShowResult(Outcome)                 {}

var _ Presenter = NopPresenter{}
