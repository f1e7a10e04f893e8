package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"contentpipe/internal/item"
	"contentpipe/internal/metrics"
	"contentpipe/internal/notifications"
	"contentpipe/internal/services"
	"contentpipe/internal/stage"
	"contentpipe/internal/testsupport"
)

type fakeHandler struct {
	prepared []string
	executed []string
	failFor  map[string]error
	prepErr  error
	health   *stage.Health
}

func (h *fakeHandler) Prepare(_ context.Context, it *item.Item) error {
	h.prepared = append(h.prepared, it.ID)
	return h.prepErr
}

func (h *fakeHandler) Execute(ctx context.Context, it *item.Item) error {
	if id, ok := services.ItemIDFromContext(ctx); !ok || id != it.ID {
		return errors.New("item id missing from context")
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		return errors.New("request id missing from context")
	}
	h.executed = append(h.executed, it.ID)
	if err := h.failFor[it.Title]; err != nil {
		return err
	}
	it.Blog = &item.BlogDraft{TitleOptions: []string{it.Title}, FullText: "body"}
	return nil
}

func (h *fakeHandler) HealthCheck(context.Context) stage.Health {
	if h.health != nil {
		return *h.health
	}
	return stage.Healthy("fake")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.last = payload
	return nil
}

func transformStage(h stage.Handler) Stage {
	return Stage{Name: "transform", From: item.StageIngested, To: item.StageTransformed, Handler: h}
}

func TestRunAdvancesAndSkipsCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	a := testsupport.PutIngested(t, st, "Alpha", "raw alpha")
	b := testsupport.PutIngested(t, st, "Beta", "raw beta")

	h := &fakeHandler{}
	m := metrics.New()
	runner := New(st, Deps{Metrics: m}, nil)
	summary, err := runner.Run(context.Background(), transformStage(h), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	for _, id := range []string{a.ID, b.ID} {
		done, err := st.Completed(item.StageTransformed, id)
		if err != nil || !done {
			t.Fatalf("item %s not advanced: %v", id, err)
		}
	}

	again, err := runner.Run(context.Background(), transformStage(h), Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Processed != 0 || again.Skipped != 2 || len(h.executed) != 2 {
		t.Fatalf("second summary = %+v executed = %v", again, h.executed)
	}
}

func TestRunReprocessesMismatchedTargetSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	it := testsupport.PutIngested(t, st, "Stale", "raw")
	if err := st.Put(item.StageTransformed, it); err != nil {
		t.Fatal(err)
	}

	h := &fakeHandler{}
	summary, err := New(st, Deps{}, nil).Run(context.Background(), transformStage(h), Options{})
	if err != nil || summary.Processed != 1 {
		t.Fatalf("Run = %+v, %v", summary, err)
	}
}

func TestRunMarksFailureAndContinues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	bad := testsupport.PutIngested(t, st, "Broken", "raw")
	good := testsupport.PutIngested(t, st, "Fine", "raw")

	h := &fakeHandler{failFor: map[string]error{
		"Broken": services.Wrap(services.ErrExternalTool, "transform", "generate blog", "", errors.New("502")),
	}}
	notifier := &recordingNotifier{}
	summary, err := New(st, Deps{Notifier: notifier}, nil).Run(context.Background(), transformStage(h), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	failed, ok, err := st.Get(item.StageFailed, bad.ID)
	if err != nil || !ok || !strings.Contains(failed.Error, "502") {
		t.Fatalf("failure snapshot = %+v, %v", failed, err)
	}
	if still, _, _ := st.Get(item.StageIngested, bad.ID); still == nil || still.Stage != item.StageIngested {
		t.Fatal("failed item must stay at its source stage")
	}
	if done, _ := st.Completed(item.StageTransformed, good.ID); !done {
		t.Fatal("later item should still be processed")
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventError {
		t.Fatalf("events = %v", notifier.events)
	}

	delete(h.failFor, "Broken")
	if _, err := New(st, Deps{}, nil).Run(context.Background(), transformStage(h), Options{}); err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if st.Exists(item.StageFailed, bad.ID) {
		t.Fatal("failure snapshot should be cleared after success")
	}
}

func TestRunHaltsOnBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.PutIngested(t, st, "One", "raw")
	testsupport.PutIngested(t, st, "Two", "raw")

	halt := services.Wrap(services.ErrBudgetExceeded, "transform", "budget gate", "", nil)
	h := &fakeHandler{failFor: map[string]error{"One": halt, "Two": halt}}
	notifier := &recordingNotifier{}
	m := metrics.New()
	summary, err := New(st, Deps{Notifier: notifier, Metrics: m, Ledger: testsupport.OpenLedger(t, cfg)}, nil).
		Run(context.Background(), transformStage(h), Options{})
	if !services.IsHalt(err) || !summary.Halted {
		t.Fatalf("expected halt, got %+v %v", summary, err)
	}
	if len(h.executed) != 1 {
		t.Fatalf("batch should stop after the first halt, executed %v", h.executed)
	}
	if n, _ := st.Count(item.StageFailed); n != 0 {
		t.Fatal("a budget halt is not an item failure")
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventBudgetHalt {
		t.Fatalf("events = %v", notifier.events)
	}
	if notifier.last["budget"] != cfg.Budget.DailyUSD {
		t.Fatalf("payload = %v", notifier.last)
	}
}

func TestRunStopsOnConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.PutIngested(t, st, "One", "raw")

	h := &fakeHandler{failFor: map[string]error{
		"One": services.Wrap(services.ErrConfiguration, "transform", "load prompt", "", nil),
	}}
	_, err := New(st, Deps{}, nil).Run(context.Background(), transformStage(h), Options{})
	if !services.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunDryRunOnlyPrepares(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	it := testsupport.PutIngested(t, st, "Alpha", "raw")

	h := &fakeHandler{}
	summary, err := New(st, Deps{}, nil).Run(context.Background(), transformStage(h), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Planned != 1 || len(h.prepared) != 1 || len(h.executed) != 0 {
		t.Fatalf("summary = %+v handler = %+v", summary, h)
	}
	if st.Exists(item.StageTransformed, it.ID) {
		t.Fatal("dry run must not write snapshots")
	}

	h.prepErr = services.Wrap(services.ErrBudgetExceeded, "transform", "budget gate", "", nil)
	if _, err := New(st, Deps{}, nil).Run(context.Background(), transformStage(h), Options{DryRun: true}); !services.IsHalt(err) {
		t.Fatalf("dry run should still report the budget halt, got %v", err)
	}
}

func TestRunWithoutHandler(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	_, err := New(st, Deps{}, nil).Run(context.Background(), Stage{Name: "draft"}, Options{})
	if !services.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNotifySummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	notifier := &recordingNotifier{}
	r := New(testsupport.MustOpenStore(t, cfg), Deps{Notifier: notifier}, nil)
	r.NotifySummary(context.Background(), "", Summary{Processed: 2, Failed: 1, Duration: time.Second}, Summary{Processed: 1})
	if len(notifier.events) != 1 || notifier.last["processed"] != 3 || notifier.last["failed"] != 1 {
		t.Fatalf("payload = %v", notifier.last)
	}
}

func TestRunLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", ".run.lock")
	first, err := AcquireRunLock(path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := AcquireRunLock(path); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected run in progress, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := AcquireRunLock(path)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	_ = again.Release()
	var nilLock *RunLock
	if err := nilLock.Release(); err != nil {
		t.Fatalf("nil release: %v", err)
	}
}

func TestRunStopsWhenStageUnhealthy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.PutIngested(t, st, "Alpha", "raw alpha")

	down := stage.Unhealthy("transform", "generation API unreachable")
	h := &fakeHandler{health: &down}
	runner := New(st, Deps{}, nil)

	_, err := runner.Run(context.Background(), transformStage(h), Options{})
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "generation API unreachable") {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(h.executed) != 0 {
		t.Fatalf("no item should run against an unhealthy stage, ran %v", h.executed)
	}
	if n, _ := st.Count(item.StageFailed); n != 0 {
		t.Fatalf("items must not be marked failed, got %d", n)
	}

	summary, err := runner.Run(context.Background(), transformStage(h), Options{DryRun: true})
	if err != nil || summary.Planned != 1 {
		t.Fatalf("dry run skips the health check: %+v %v", summary, err)
	}
}
