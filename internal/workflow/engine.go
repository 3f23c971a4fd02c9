package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// RunStore is the persistence surface for workflow runs. The db package
// provides the production implementation.
type RunStore interface {
	// CreateRun persists a new run. Returns ErrRunActive when a non-terminal
	// run already exists for the same posting and profile.
	CreateRun(ctx context.Context, run *WorkflowRun) error

	// UpdateRun persists the run if its Version still matches the stored one,
	// then bumps Version on both sides. Returns ErrVersionConflict otherwise.
	UpdateRun(ctx context.Context, run *WorkflowRun) error

	GetRun(ctx context.Context, id string) (*WorkflowRun, error)

	// ActiveRuns returns every run in a non-terminal state.
	ActiveRuns(ctx context.Context) ([]*WorkflowRun, error)
}

// SessionReleaser is an optional StepRunner extension. Runners that hold
// per-run resources (a browser session) get told when a run finishes.
type SessionReleaser interface {
	Release(runID string)
}

// DocumentPreparer is an optional StepRunner extension. When the run asked
// for document templates, the engine invokes it at entry to FORM_FILLING and
// expects the artifact paths to be filled in on run.Documents. Failures are
// classified like any other step error.
type DocumentPreparer interface {
	PrepareDocuments(ctx context.Context, run *WorkflowRun) error
}

// StepRunner performs the browser side effects of each workflow step. The
// automation package implements it with a headless browser session; tests
// substitute fakes. A runner signals a captcha by returning
// *CaptchaDetectedError and classifies other failures with *StepError.
type StepRunner interface {
	Navigate(ctx context.Context, run *WorkflowRun) error
	Authenticate(ctx context.Context, run *WorkflowRun) error
	FillForm(ctx context.Context, run *WorkflowRun) error
	Submit(ctx context.Context, run *WorkflowRun) error
}

// Config tunes the engine. Zero values fall back to safe defaults.
type Config struct {
	MaxActiveRuns   int
	StepTimeout     time.Duration
	MaxStepAttempts int
	CaptchaWait     time.Duration
	RetryBackoff    time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxActiveRuns <= 0 {
		c.MaxActiveRuns = 2
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 45 * time.Second
	}
	if c.MaxStepAttempts <= 0 {
		c.MaxStepAttempts = 3
	}
	if c.CaptchaWait <= 0 {
		c.CaptchaWait = 10 * time.Minute
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
}

type runHandle struct {
	cancelOnce sync.Once
	cancelCh   chan struct{}
	resumeCh   chan struct{}
}

func (h *runHandle) requestCancel() {
	h.cancelOnce.Do(func() { close(h.cancelCh) })
}

// Engine executes workflow runs. State is persisted before every side effect,
// so a crash can never leave an effect the store does not know about.
type Engine struct {
	store  RunStore
	runner StepRunner
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	handles map[string]*runHandle
}

// NewEngine builds an engine. Call Close to stop background runs.
func NewEngine(store RunStore, runner StepRunner, cfg Config) *Engine {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:   store,
		runner:  runner,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, cfg.MaxActiveRuns),
		handles: map[string]*runHandle{},
	}
}

// Start creates a run for the posting/profile pair and executes it in the
// background. Runs beyond the concurrency cap queue in PENDING order.
// Returns ErrRunActive when the pair already has a run in flight.
func (e *Engine) Start(ctx context.Context, postingID, profileID string, docs Documents) (*WorkflowRun, error) {
	if postingID == "" || profileID == "" {
		return nil, fmt.Errorf("posting id and profile id are required")
	}
	run := NewRun(postingID, profileID)
	run.Documents = docs
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	snapshot := *run
	e.launch(run, 0)
	return &snapshot, nil
}

// Get returns the stored run.
func (e *Engine) Get(ctx context.Context, runID string) (*WorkflowRun, error) {
	return e.store.GetRun(ctx, runID)
}

// Cancel requests cooperative cancellation. A live run stops at its next
// step boundary (or wakes from a wait) and finishes ABANDONED. A run with no
// live goroutine, left over from a previous process, is abandoned directly
// in the store.
func (e *Engine) Cancel(ctx context.Context, runID string) error {
	e.mu.Lock()
	h := e.handles[runID]
	e.mu.Unlock()
	if h != nil {
		h.requestCancel()
		return nil
	}

	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Terminal() {
		return ErrRunTerminal
	}
	e.finish(run, StateAbandoned, ErrorKindCanceled, "canceled by operator")
	return nil
}

// ResumeCaptcha signals that a human solved the captcha. The run re-enters
// the step it suspended from. Returns ErrNotWaiting unless the run is in
// CAPTCHA_PENDING.
func (e *Engine) ResumeCaptcha(ctx context.Context, runID string) error {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.State != StateCaptchaPending {
		return ErrNotWaiting
	}
	e.mu.Lock()
	h := e.handles[runID]
	e.mu.Unlock()
	if h == nil {
		return ErrNotWaiting
	}
	select {
	case h.resumeCh <- struct{}{}:
	default: // a resume signal is already pending
	}
	return nil
}

// Recover re-attaches runs persisted as active by a previous process. Runs
// interrupted during SUBMITTING are failed rather than re-submitted: the
// effect may already have happened, and submissions are at-most-once.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	runs, err := e.store.ActiveRuns(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, run := range runs {
		if run.State == StateSubmitting {
			e.finish(run, StateFailed, ErrorKindSubmission, "interrupted during submission; outcome unknown")
			continue
		}
		e.launch(run, run.Attempts)
		resumed++
	}
	if resumed > 0 {
		log.Printf("[workflow] recovered %d active runs", resumed)
	}
	return resumed, nil
}

// Close stops accepting work and waits for in-flight goroutines to park.
// Active runs keep their persisted state for the next process to recover.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) launch(run *WorkflowRun, attempts int) {
	h := &runHandle{cancelCh: make(chan struct{}), resumeCh: make(chan struct{}, 1)}
	e.mu.Lock()
	e.handles[run.ID] = h
	e.mu.Unlock()
	e.wg.Add(1)
	go e.execute(run, h, attempts)
}

func (e *Engine) dropHandle(id string) {
	e.mu.Lock()
	delete(e.handles, id)
	e.mu.Unlock()
}

func (e *Engine) execute(run *WorkflowRun, h *runHandle, attempts int) {
	defer e.wg.Done()
	defer e.dropHandle(run.ID)

	// Concurrency gate. Queued runs stay PENDING.
	select {
	case e.sem <- struct{}{}:
	case <-h.cancelCh:
		e.finish(run, StateAbandoned, ErrorKindCanceled, "canceled while queued")
		return
	case <-e.ctx.Done():
		return
	}
	defer func() { <-e.sem }()

	step := StateNavigating
	switch run.State {
	case StatePending:
	case StateRetrying, StateCaptchaPending:
		if run.ResumeState != "" {
			step = run.ResumeState
		}
	default:
		step = run.State
	}

	for {
		select {
		case <-h.cancelCh:
			e.finish(run, StateAbandoned, ErrorKindCanceled, "canceled by operator")
			return
		case <-e.ctx.Done():
			return
		default:
		}

		// Persist the step before its effect runs. If the store refuses, the
		// run was touched elsewhere and this goroutine must not proceed.
		attempts++
		if err := e.enterStep(run, step, attempts); err != nil {
			log.Printf("[workflow] run %s: %v", run.ID, err)
			return
		}

		err := e.runStep(run, step)
		if err == nil {
			next := nextStep(step)
			if next == StateConfirmed {
				e.finish(run, StateConfirmed, "", "")
				return
			}
			step = next
			attempts = 0
			continue
		}

		var cd *CaptchaDetectedError
		if errors.As(err, &cd) {
			switch e.waitCaptcha(run, h, step, cd.Checkpoint) {
			case captchaResumed:
				continue
			case captchaTimeout:
				e.finish(run, StateFailed, ErrorKindCaptcha, "captcha was not solved in time")
				return
			case captchaCanceled:
				e.finish(run, StateAbandoned, ErrorKindCanceled, "canceled by operator")
				return
			default: // engine shutdown; the run stays CAPTCHA_PENDING for recovery
				return
			}
		}

		kind, msg, transient := classifyStepError(err, step)
		if transient && attempts < e.cfg.MaxStepAttempts {
			if err := e.transition(run, StateRetrying, func(r *WorkflowRun) {
				r.ResumeState = step
				r.ErrorKind = kind
				r.ErrorMessage = msg
			}); err != nil {
				log.Printf("[workflow] run %s: %v", run.ID, err)
				return
			}
			select {
			case <-time.After(e.cfg.RetryBackoff):
			case <-h.cancelCh:
				e.finish(run, StateAbandoned, ErrorKindCanceled, "canceled by operator")
				return
			case <-e.ctx.Done():
				return
			}
			continue
		}

		e.finish(run, StateFailed, kind, msg)
		return
	}
}

// enterStep transitions the run into step and persists it ahead of the
// effect. Re-entry into the same state (a recovered run) is a plain update.
func (e *Engine) enterStep(run *WorkflowRun, step State, attempts int) error {
	if run.State != step {
		if !CanTransition(run.State, step) {
			return fmt.Errorf("cannot enter %s from %s", step, run.State)
		}
		run.State = step
	}
	run.ResumeState = ""
	run.Attempts = attempts
	run.ErrorKind = ""
	run.ErrorMessage = ""
	run.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateRun(e.ctx, run); err != nil {
		return fmt.Errorf("persist %s: %w", step, err)
	}
	return nil
}

func (e *Engine) runStep(run *WorkflowRun, step State) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.StepTimeout)
	defer cancel()
	switch step {
	case StateNavigating:
		return e.runner.Navigate(ctx, run)
	case StateAuthenticating:
		return e.runner.Authenticate(ctx, run)
	case StateFormFilling:
		if err := e.prepareDocuments(ctx, run); err != nil {
			return err
		}
		return e.runner.FillForm(ctx, run)
	case StateSubmitting:
		return e.runner.Submit(ctx, run)
	}
	return fmt.Errorf("no runner for state %s", step)
}

// prepareDocuments renders the run's requested application documents. The
// artifact paths are persisted before form filling touches the page, so a
// crash mid-fill never loses or re-renders them.
func (e *Engine) prepareDocuments(ctx context.Context, run *WorkflowRun) error {
	if run.Documents.Empty() || run.Documents.Rendered() {
		return nil
	}
	preparer, ok := e.runner.(DocumentPreparer)
	if !ok {
		return &StepError{
			Kind:    ErrorKindValidation,
			Message: "document templates were requested but no renderer is configured",
		}
	}
	if err := preparer.PrepareDocuments(ctx, run); err != nil {
		return err
	}
	run.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateRun(e.ctx, run); err != nil {
		return fmt.Errorf("persist rendered documents: %w", err)
	}
	return nil
}

type captchaOutcome int

const (
	captchaResumed captchaOutcome = iota
	captchaTimeout
	captchaCanceled
	captchaShutdown
)

// waitCaptcha parks the run in CAPTCHA_PENDING with its checkpoint and waits
// for a human, the deadline, or cancellation.
func (e *Engine) waitCaptcha(run *WorkflowRun, h *runHandle, step State, cp *Checkpoint) captchaOutcome {
	err := e.transition(run, StateCaptchaPending, func(r *WorkflowRun) {
		r.ResumeState = step
		r.Checkpoint = cp
		r.ErrorKind = ErrorKindCaptcha
		r.ErrorMessage = "waiting for captcha to be solved"
	})
	if err != nil {
		log.Printf("[workflow] run %s: %v", run.ID, err)
		return captchaShutdown
	}
	log.Printf("[workflow] run %s: captcha detected during %s, waiting up to %s", run.ID, step, e.cfg.CaptchaWait)

	select {
	case <-h.resumeCh:
		return captchaResumed
	case <-time.After(e.cfg.CaptchaWait):
		return captchaTimeout
	case <-h.cancelCh:
		return captchaCanceled
	case <-e.ctx.Done():
		return captchaShutdown
	}
}

func (e *Engine) transition(run *WorkflowRun, to State, mutate func(*WorkflowRun)) error {
	if !CanTransition(run.State, to) {
		return fmt.Errorf("invalid transition %s -> %s", run.State, to)
	}
	run.State = to
	if mutate != nil {
		mutate(run)
	}
	run.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateRun(e.ctx, run); err != nil {
		return fmt.Errorf("persist %s: %w", to, err)
	}
	return nil
}

// finish moves the run to a terminal state. Persistence uses a background
// context so terminal outcomes land even while the engine is shutting down.
func (e *Engine) finish(run *WorkflowRun, to State, kind ErrorKind, msg string) {
	if !CanTransition(run.State, to) {
		log.Printf("[workflow] run %s: cannot finish as %s from %s", run.ID, to, run.State)
		return
	}
	now := time.Now().UTC()
	run.State = to
	run.ErrorKind = kind
	run.ErrorMessage = msg
	run.CompletedAt = &now
	run.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		log.Printf("[workflow] run %s: persist terminal state %s: %v", run.ID, to, err)
		return
	}
	if kind != "" {
		log.Printf("[workflow] run %s: %s (%s: %s)", run.ID, to, kind, msg)
	} else {
		log.Printf("[workflow] run %s: %s", run.ID, to)
	}
	if rel, ok := e.runner.(SessionReleaser); ok {
		rel.Release(run.ID)
	}
}

func classifyStepError(err error, step State) (ErrorKind, string, bool) {
	var se *StepError
	if errors.As(err, &se) {
		kind := se.Kind
		if kind == "" {
			kind = defaultErrorKind(step)
		}
		return kind, se.Error(), se.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return defaultErrorKind(step), fmt.Sprintf("%s timed out", strings.ToLower(string(step))), true
	}
	return defaultErrorKind(step), err.Error(), false
}
