package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

// DispatchError is returned by Dispatch for every failed task. Reason is one of the
// contract Reason constants and Err wraps the matching sentinel.
type DispatchError struct {
	Capability contractx.CapabilityKind
	Reason     string
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Capability, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Dispatch routes req to an idle agent of kind. The returned Result is always
// populated, with Status and Reason set on failure. Cancelling ctx only aborts the
// wait for an agent; a task that has started runs until it finishes or times out.
func (o *Orchestrator) Dispatch(ctx context.Context, kind contractx.CapabilityKind, req contractx.Request) (contractx.Result, error) {
	started := o.now()

	if !o.initialized.Load() {
		return o.reject(kind, started, contractx.ErrNotInitialized)
	}
	if !kind.Valid() {
		return o.reject(kind, started, fmt.Errorf("%w: %q", contractx.ErrUnknownCapability, kind))
	}
	if contractx.IsNil(req) {
		return o.reject(kind, started, fmt.Errorf("%w: request is required", contractx.ErrInvalidInput))
	}
	if req.Capability() != kind {
		return o.reject(kind, started, fmt.Errorf("%w: %s request sent to %s", contractx.ErrInvalidInput, req.Capability(), kind))
	}
	if err := req.Validate(); err != nil {
		return o.reject(kind, started, err)
	}

	agent, err := o.pools[kind].acquire(ctx, o.cfg.AcquireWait)
	if err != nil {
		return o.reject(kind, started, err)
	}

	res, err := agent.Run(ctx, req)
	o.record(res)
	if err != nil {
		return res, &DispatchError{Capability: kind, Reason: res.Reason, Err: err}
	}
	return res, nil
}

func (o *Orchestrator) reject(kind contractx.CapabilityKind, started time.Time, err error) (contractx.Result, error) {
	finished := o.now()
	res := contractx.Result{
		TaskID:     uuid.NewString(),
		Capability: kind,
		Status:     contractx.TaskFailed,
		Reason:     contractx.ReasonOf(err),
		Error:      err.Error(),
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}
	o.record(res)
	return res, &DispatchError{Capability: kind, Reason: res.Reason, Err: err}
}

func (o *Orchestrator) record(res contractx.Result) {
	label := res.Capability
	if !label.Valid() {
		label = "unknown"
	}
	o.deps.Exporter.ObserveTask(label, res.Status, res.Reason, res.Duration)
	o.deps.Revenue.Observe(res)

	kind := EventTaskCompleted
	if res.Status == contractx.TaskSucceeded {
		if prospects, ok := res.Output.([]contractx.ProspectResult); ok {
			o.prospects.Add(int64(len(prospects)))
		}
		o.logger.Debug().Str("task_id", res.TaskID).Str("capability", string(res.Capability)).Dur("duration", res.Duration).Msg("task completed")
	} else {
		kind = EventTaskFailed
		o.logger.Warn().Str("task_id", res.TaskID).Str("capability", string(res.Capability)).Str("reason", res.Reason).Str("error", res.Error).Msg("task failed")
	}

	o.events.publish(Event{Kind: kind, At: res.FinishedAt, Result: &res})
}
