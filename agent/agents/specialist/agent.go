package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

const defaultTaskTimeout = 30 * time.Second

// Handler performs the work of one capability. Handlers must honour ctx.
type Handler interface {
	Capability() contractx.CapabilityKind
	Handle(ctx context.Context, req contractx.Request) (any, error)
}

type handlerFunc struct {
	kind contractx.CapabilityKind
	fn   func(ctx context.Context, req contractx.Request) (any, error)
}

func (h handlerFunc) Capability() contractx.CapabilityKind { return h.kind }

func (h handlerFunc) Handle(ctx context.Context, req contractx.Request) (any, error) {
	return h.fn(ctx, req)
}

// HandlerFunc adapts fn into a Handler for kind.
func HandlerFunc(kind contractx.CapabilityKind, fn func(ctx context.Context, req contractx.Request) (any, error)) Handler {
	return handlerFunc{kind: kind, fn: fn}
}

type AgentOption func(*Agent)

func WithTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithClock(now func() time.Time) AgentOption {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) AgentOption {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithReleaseHook registers fn to run every time the agent becomes available again.
func WithReleaseHook(fn func()) AgentOption {
	return func(a *Agent) {
		a.onRelease = fn
	}
}

// Agent runs at most one task at a time for a single capability and keeps a running
// performance record. Agents are never destroyed; they are taken offline instead.
type Agent struct {
	id        string
	kind      contractx.CapabilityKind
	handler   Handler
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
	onRelease func()

	mu             sync.Mutex
	status         contractx.AgentStatus
	pendingOffline bool
	perf           contractx.PerformanceRecord
	ratings        int64
}

func NewAgent(id string, handler Handler, opts ...AgentOption) (*Agent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("agent id is required")
	}
	if handler == nil {
		return nil, errors.New("agent handler is required")
	}
	kind := handler.Capability()
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", contractx.ErrUnknownCapability, kind)
	}

	a := &Agent{
		id:      id,
		kind:    kind,
		handler: handler,
		timeout: defaultTaskTimeout,
		now:     time.Now,
		logger:  zerolog.Nop(),
		status:  contractx.AgentIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.logger = a.logger.With().Str("agent_id", id).Str("capability", string(kind)).Logger()
	return a, nil
}

func (a *Agent) ID() string                           { return a.id }
func (a *Agent) Capability() contractx.CapabilityKind { return a.kind }

func (a *Agent) Status() contractx.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Agent) Performance() contractx.PerformanceRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.perf
}

func (a *Agent) Info() contractx.AgentInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return contractx.AgentInfo{
		ID:          a.id,
		Capability:  a.kind,
		Status:      a.status,
		Performance: a.perf,
	}
}

// TryAcquire moves an idle agent to busy and reports whether it did.
func (a *Agent) TryAcquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != contractx.AgentIdle {
		return false
	}
	a.status = contractx.AgentBusy
	return true
}

// Execute acquires the agent and runs req on it.
func (a *Agent) Execute(ctx context.Context, req contractx.Request) (contractx.Result, error) {
	if !a.TryAcquire() {
		err := contractx.ErrAgentBusy
		if a.Status() == contractx.AgentOffline {
			err = contractx.ErrAgentOffline
		}
		return contractx.Result{
			AgentID:    a.id,
			Capability: a.kind,
			Status:     contractx.TaskFailed,
			Reason:     contractx.ReasonNoAgentAvailable,
			Error:      err.Error(),
		}, err
	}
	return a.Run(ctx, req)
}

// Run executes req on an agent the caller has already acquired with TryAcquire and
// releases it afterwards. The task is bounded by the agent timeout, independent of
// ctx cancellation.
func (a *Agent) Run(ctx context.Context, req contractx.Request) (contractx.Result, error) {
	started := a.now()
	res := contractx.Result{
		TaskID:     uuid.NewString(),
		AgentID:    a.id,
		Capability: a.kind,
		StartedAt:  started,
	}

	out, err := a.invoke(ctx, req)

	res.FinishedAt = a.now()
	res.Duration = res.FinishedAt.Sub(started)
	a.release(out, err, res.Duration)

	if err != nil {
		res.Status = contractx.TaskFailed
		res.Reason = contractx.ReasonOf(err)
		res.Error = err.Error()
		a.logger.Warn().Err(err).Str("task_id", res.TaskID).Str("reason", res.Reason).Msg("task failed")
		return res, err
	}
	res.Status = contractx.TaskSucceeded
	res.Output = out
	a.logger.Debug().Str("task_id", res.TaskID).Dur("duration", res.Duration).Msg("task completed")
	return res, nil
}

type taskOutcome struct {
	out any
	err error
}

func (a *Agent) invoke(parent context.Context, req contractx.Request) (any, error) {
	if contractx.IsNil(req) {
		return nil, fmt.Errorf("%w: request is required", contractx.ErrInvalidInput)
	}
	if req.Capability() != a.kind {
		return nil, fmt.Errorf("%w: %s request sent to %s agent", contractx.ErrInvalidInput, req.Capability(), a.kind)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
	defer cancel()

	done := make(chan taskOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- taskOutcome{err: fmt.Errorf("%w: handler panic: %v", contractx.ErrTaskFailed, r)}
			}
		}()
		out, err := a.handler.Handle(ctx, req)
		done <- taskOutcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return o.out, nil
		}
		if ctx.Err() != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s exceeded %s", contractx.ErrTimeout, a.kind, a.timeout)
		}
		return nil, classify(o.err)
	case <-ctx.Done():
		// The handler goroutine drains into the buffered channel once it notices ctx.
		return nil, fmt.Errorf("%w: %s exceeded %s", contractx.ErrTimeout, a.kind, a.timeout)
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, contractx.ErrInvalidInput),
		errors.Is(err, contractx.ErrTimeout),
		errors.Is(err, contractx.ErrTaskFailed):
		return err
	default:
		return fmt.Errorf("%w: %w", contractx.ErrTaskFailed, err)
	}
}

func (a *Agent) release(out any, err error, d time.Duration) {
	a.mu.Lock()
	switch {
	case err == nil:
		a.perf.TasksCompleted++
		n := time.Duration(a.perf.TasksCompleted)
		a.perf.AverageResponseTime += (d - a.perf.AverageResponseTime) / n
		if rated, ok := out.(contractx.Rated); ok {
			a.ratings++
			a.perf.SatisfactionScore += (rated.Satisfaction() - a.perf.SatisfactionScore) / float64(a.ratings)
		}
	case errors.Is(err, contractx.ErrInvalidInput):
	default:
		a.perf.TasksFailed++
	}
	if attempts := a.perf.TasksCompleted + a.perf.TasksFailed; attempts > 0 {
		a.perf.SuccessRate = float64(a.perf.TasksCompleted) / float64(attempts)
	}

	if a.pendingOffline {
		a.pendingOffline = false
		a.status = contractx.AgentOffline
	} else {
		a.status = contractx.AgentIdle
	}
	available := a.status == contractx.AgentIdle
	hook := a.onRelease
	a.mu.Unlock()

	if available && hook != nil {
		hook()
	}
}

// SetOffline takes the agent out of rotation. A busy agent finishes its current task
// first.
func (a *Agent) SetOffline() {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.status {
	case contractx.AgentBusy:
		a.pendingOffline = true
	default:
		a.status = contractx.AgentOffline
	}
}

func (a *Agent) SetOnline() {
	a.mu.Lock()
	a.pendingOffline = false
	changed := a.status == contractx.AgentOffline
	if changed {
		a.status = contractx.AgentIdle
	}
	hook := a.onRelease
	a.mu.Unlock()

	if changed && hook != nil {
		hook()
	}
}
