package specialist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

func marketRequest() contractx.Request {
	return contractx.MarketAnalysisRequest{Sector: "retail"}
}

func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func TestNewAgentValidation(t *testing.T) {
	t.Parallel()

	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(context.Context, contractx.Request) (any, error) { return nil, nil })
	if _, err := NewAgent(" ", h); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := NewAgent("a", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	bad := HandlerFunc("teleport", func(context.Context, contractx.Request) (any, error) { return nil, nil })
	if _, err := NewAgent("a", bad); !errors.Is(err, contractx.ErrUnknownCapability) {
		t.Fatalf("expected ErrUnknownCapability, got %v", err)
	}
}

func TestAgentExecuteSuccess(t *testing.T) {
	t.Parallel()

	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(_ context.Context, req contractx.Request) (any, error) {
		return "ok:" + req.(contractx.MarketAnalysisRequest).Sector, nil
	})
	a, err := NewAgent("market-01", h, WithClock(steppingClock(100*time.Millisecond)))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	res, err := a.Execute(context.Background(), marketRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != contractx.TaskSucceeded {
		t.Fatalf("unexpected status: %s", res.Status)
	}
	if res.Output != "ok:retail" {
		t.Fatalf("unexpected output: %#v", res.Output)
	}
	if res.TaskID == "" || res.AgentID != "market-01" {
		t.Fatalf("unexpected identifiers: task=%q agent=%q", res.TaskID, res.AgentID)
	}
	if res.Duration != 100*time.Millisecond {
		t.Fatalf("unexpected duration: %s", res.Duration)
	}

	perf := a.Performance()
	if perf.TasksCompleted != 1 || perf.TasksFailed != 0 || perf.SuccessRate != 1 {
		t.Fatalf("unexpected performance: %+v", perf)
	}
	if perf.AverageResponseTime != 100*time.Millisecond {
		t.Fatalf("unexpected average response time: %s", perf.AverageResponseTime)
	}
	if a.Status() != contractx.AgentIdle {
		t.Fatalf("agent should be idle, got %s", a.Status())
	}
}

func TestAgentTimeoutReturnsToIdle(t *testing.T) {
	t.Parallel()

	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(ctx context.Context, _ contractx.Request) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a, err := NewAgent("market-01", h, WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	res, err := a.Execute(context.Background(), marketRequest())
	if !errors.Is(err, contractx.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if res.Reason != contractx.ReasonTimeout || res.Status != contractx.TaskFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if a.Status() != contractx.AgentIdle {
		t.Fatalf("agent should be idle after timeout, got %s", a.Status())
	}
	if perf := a.Performance(); perf.TasksFailed != 1 || perf.SuccessRate != 0 {
		t.Fatalf("unexpected performance: %+v", perf)
	}
}

func TestAgentTimeoutIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(ctx context.Context, _ contractx.Request) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return "done", nil
		}
	})
	a, err := NewAgent("market-01", h, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := a.Execute(ctx, marketRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "done" {
		t.Fatalf("unexpected output: %#v", res.Output)
	}
}

func TestAgentRecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(context.Context, contractx.Request) (any, error) {
		panic("boom")
	})
	a, err := NewAgent("market-01", h)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	res, err := a.Execute(context.Background(), marketRequest())
	if !errors.Is(err, contractx.ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
	if res.Reason != contractx.ReasonTaskFailed {
		t.Fatalf("unexpected reason: %s", res.Reason)
	}
	if a.Status() != contractx.AgentIdle {
		t.Fatalf("agent should be idle, got %s", a.Status())
	}
}

func TestAgentWrapsHandlerErrors(t *testing.T) {
	t.Parallel()

	upstream := errors.New("upstream down")
	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(context.Context, contractx.Request) (any, error) {
		return nil, upstream
	})
	a, err := NewAgent("market-01", h)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	_, err = a.Execute(context.Background(), marketRequest())
	if !errors.Is(err, contractx.ErrTaskFailed) || !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped task failure, got %v", err)
	}
}

func TestAgentInvalidInputLeavesPerformanceUntouched(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(context.Context, contractx.Request) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	a, err := NewAgent("market-01", h)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	cases := []contractx.Request{
		nil,
		(*contractx.MarketAnalysisRequest)(nil),
		contractx.MarketAnalysisRequest{},
		contractx.DispatchRequest{LoadID: "L1", CarrierID: "C1"},
	}
	for _, req := range cases {
		res, err := a.Execute(context.Background(), req)
		if !errors.Is(err, contractx.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %#v, got %v", req, err)
		}
		if res.Reason != contractx.ReasonInvalidInput {
			t.Fatalf("unexpected reason: %s", res.Reason)
		}
	}

	if calls.Load() != 0 {
		t.Fatalf("handler should not run, ran %d times", calls.Load())
	}
	if perf := a.Performance(); perf != (contractx.PerformanceRecord{}) {
		t.Fatalf("performance should be untouched: %+v", perf)
	}
}

func TestAgentSatisfactionAverage(t *testing.T) {
	t.Parallel()

	outcomes := []contractx.CallOutcome{contractx.OutcomeAppointment, contractx.OutcomeBusy}
	var idx atomic.Int32
	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(context.Context, contractx.Request) (any, error) {
		i := idx.Add(1) - 1
		return contractx.CallResult{Outcome: outcomes[i]}, nil
	})
	a, err := NewAgent("market-01", h)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	for range outcomes {
		if _, err := a.Execute(context.Background(), marketRequest()); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if got := a.Performance().SatisfactionScore; got != 3.75 {
		t.Fatalf("unexpected satisfaction: %v", got)
	}
}

func TestAgentBusyAndDeferredOffline(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	h := HandlerFunc(contractx.CapabilityMarketAnalysis, func(context.Context, contractx.Request) (any, error) {
		close(started)
		<-release
		return "done", nil
	})

	var hooks atomic.Int32
	a, err := NewAgent("market-01", h, WithReleaseHook(func() { hooks.Add(1) }))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Execute(context.Background(), marketRequest())
		errCh <- err
	}()
	<-started

	if _, err := a.Execute(context.Background(), marketRequest()); !errors.Is(err, contractx.ErrAgentBusy) {
		t.Fatalf("expected ErrAgentBusy, got %v", err)
	}

	a.SetOffline()
	if a.Status() != contractx.AgentBusy {
		t.Fatalf("busy agent should stay busy until its task ends, got %s", a.Status())
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("in-flight task error = %v", err)
	}
	if a.Status() != contractx.AgentOffline {
		t.Fatalf("expected offline after task, got %s", a.Status())
	}
	if hooks.Load() != 0 {
		t.Fatalf("release hook should not fire for an agent going offline")
	}

	if _, err := a.Execute(context.Background(), marketRequest()); !errors.Is(err, contractx.ErrAgentOffline) {
		t.Fatalf("expected ErrAgentOffline, got %v", err)
	}

	a.SetOnline()
	if a.Status() != contractx.AgentIdle {
		t.Fatalf("expected idle after SetOnline, got %s", a.Status())
	}
	if hooks.Load() != 1 {
		t.Fatalf("expected one release hook call, got %d", hooks.Load())
	}
	if perf := a.Performance(); perf.TasksCompleted != 1 {
		t.Fatalf("unexpected performance: %+v", perf)
	}
}
