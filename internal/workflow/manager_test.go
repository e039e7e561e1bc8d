package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"reelpipe/internal/queue"
	"reelpipe/internal/realtime"
	"reelpipe/internal/stage"
	"reelpipe/internal/workflow"
)

type fakeExecutor struct {
	mu       sync.Mutex
	executed []stage.Name
	failAt   map[stage.Name]error
	block    chan struct{}
}

func (f *fakeExecutor) ExecuteStage(ctx context.Context, id string, st stage.Name) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failAt[st]; ok {
		return err
	}
	f.executed = append(f.executed, st)
	return nil
}

func (f *fakeExecutor) executedStages() []stage.Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stage.Name(nil), f.executed...)
}

func (f *fakeExecutor) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = nil
	f.failAt = nil
}

func startManager(t *testing.T, store *queue.Store, exec workflow.Executor) *workflow.Manager {
	t.Helper()
	mgr := workflow.NewManager(store, exec, workflow.Options{PollInterval: 5 * time.Millisecond})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if item, ok := store.Get(id); ok && item.Status == want {
			return item
		}
		time.Sleep(2 * time.Millisecond)
	}
	item, _ := store.Get(id)
	t.Fatalf("item never reached %s, currently %+v", want, item)
	return nil
}

func TestManagerProcessesItemThroughAllStages(t *testing.T) {
	store := queue.NewStore()
	exec := &fakeExecutor{}
	startManager(t, store, exec)

	item := store.Add("một kịch bản", "shorts-vi", "", nil)
	done := waitForStatus(t, store, item.ID, queue.StatusCompleted)

	if done.Progress != 100 {
		t.Fatalf("completed item progress = %v", done.Progress)
	}
	if done.Error != "" || done.FailedStep != "" || done.RetryFrom != "" {
		t.Fatalf("completed item carries failure state: %+v", done)
	}
	executed := exec.executedStages()
	all := stage.All()
	if len(executed) != len(all) {
		t.Fatalf("executed %d stages, want %d", len(executed), len(all))
	}
	for i, st := range all {
		if executed[i] != st {
			t.Fatalf("stage %d = %s, want %s", i, executed[i], st)
		}
	}
	if len(done.Completed) != stage.Count() {
		t.Fatalf("recorded %d completed stages", len(done.Completed))
	}
}

func TestManagerRespectsConcurrencyLimit(t *testing.T) {
	store := queue.NewStore()
	store.SetMaxConcurrent(2)
	block := make(chan struct{})
	exec := &fakeExecutor{block: block}
	startManager(t, store, exec)

	ids := []string{
		store.Add("a", "p", "", nil).ID,
		store.Add("b", "p", "", nil).ID,
		store.Add("c", "p", "", nil).ID,
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && store.RunningCount() < 2 {
		time.Sleep(2 * time.Millisecond)
	}
	// Give the dispatcher a chance to overshoot before asserting it did not.
	time.Sleep(30 * time.Millisecond)
	if got := store.RunningCount(); got != 2 {
		t.Fatalf("running count = %d, want 2", got)
	}

	close(block)
	for _, id := range ids {
		waitForStatus(t, store, id, queue.StatusCompleted)
	}
}

func TestManagerRecordsStageFailure(t *testing.T) {
	store := queue.NewStore()
	exec := &fakeExecutor{failAt: map[stage.Name]error{stage.Voice: errors.New("tts unavailable")}}
	startManager(t, store, exec)

	item := store.Add("script", "p", "", nil)
	failed := waitForStatus(t, store, item.ID, queue.StatusFailed)

	if failed.FailedStep != stage.Voice {
		t.Fatalf("failed step = %s, want voice", failed.FailedStep)
	}
	if failed.Error != "tts unavailable" {
		t.Fatalf("error = %q", failed.Error)
	}
	if !failed.HasCompleted(stage.Metadata) || failed.HasCompleted(stage.Voice) {
		t.Fatalf("completed stages wrong: %v", failed.Completed)
	}
}

func TestManagerResumesFromFailedStage(t *testing.T) {
	store := queue.NewStore()
	exec := &fakeExecutor{failAt: map[stage.Name]error{stage.Voice: errors.New("tts unavailable")}}
	startManager(t, store, exec)

	item := store.Add("script", "p", "", nil)
	waitForStatus(t, store, item.ID, queue.StatusFailed)

	exec.reset()
	if !store.RetryFromStage(item.ID, stage.Voice) {
		t.Fatal("retry-from-stage rejected")
	}
	waitForStatus(t, store, item.ID, queue.StatusCompleted)

	executed := exec.executedStages()
	if len(executed) == 0 || executed[0] != stage.Voice {
		t.Fatalf("resume should start at voice, got %v", executed)
	}
	for _, st := range executed {
		if st == stage.Script || st == stage.Scenes || st == stage.Metadata {
			t.Fatalf("completed upstream stage %s re-ran", st)
		}
	}
}

func TestManagerBacksOffAfterStageFailure(t *testing.T) {
	store := queue.NewStore()
	store.SetMaxConcurrent(1)
	exec := &fakeExecutor{failAt: map[stage.Name]error{stage.Script: errors.New("backend down")}}
	mgr := workflow.NewManager(store, exec, workflow.Options{
		PollInterval:       time.Millisecond,
		ErrorRetryInterval: time.Hour,
	})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(mgr.Stop)

	first := store.Add("a", "p", "", nil)
	second := store.Add("b", "p", "", nil)

	waitForStatus(t, store, first.ID, queue.StatusFailed)
	time.Sleep(50 * time.Millisecond)
	if got, _ := store.Get(second.ID); got.Status != queue.StatusQueued {
		t.Fatalf("dispatch resumed during error backoff: %s", got.Status)
	}
}

func TestManagerHonorsPause(t *testing.T) {
	store := queue.NewStore()
	store.SetActive(false)
	exec := &fakeExecutor{}
	startManager(t, store, exec)

	item := store.Add("script", "p", "", nil)
	time.Sleep(50 * time.Millisecond)
	if got, _ := store.Get(item.ID); got.Status != queue.StatusQueued {
		t.Fatalf("paused queue dispatched item: %s", got.Status)
	}

	store.SetActive(true)
	waitForStatus(t, store, item.ID, queue.StatusCompleted)
}

func TestManagerStopRequeuesInFlightItems(t *testing.T) {
	store := queue.NewStore()
	block := make(chan struct{})
	defer close(block)
	exec := &fakeExecutor{block: block}

	mgr := workflow.NewManager(store, exec, workflow.Options{PollInterval: 5 * time.Millisecond})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	item := store.Add("script", "p", "", nil)
	waitForStatus(t, store, item.ID, queue.StatusRunning)
	mgr.Stop()

	got, _ := store.Get(item.ID)
	if got.Status != queue.StatusQueued {
		t.Fatalf("interrupted item status = %s, want queued", got.Status)
	}
	if got.CurrentStep != queue.ShutdownStopReason {
		t.Fatalf("interrupted item step = %q", got.CurrentStep)
	}
	if got.Error != "" {
		t.Fatalf("requeued item carries error %q", got.Error)
	}
}

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string][]realtime.Handler
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string][]realtime.Handler)}
}

func (f *fakeSubscriber) Subscribe(eventType string, handler realtime.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[eventType] = append(f.handlers[eventType], handler)
	return func() {}
}

func (f *fakeSubscriber) emit(eventType string, data string) {
	f.mu.Lock()
	handlers := append([]realtime.Handler(nil), f.handlers[eventType]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(realtime.Envelope{Event: eventType, Data: json.RawMessage(data)})
	}
}

func TestBindRealtimeAppliesProductionEvents(t *testing.T) {
	store := queue.NewStore()
	mgr := workflow.NewManager(store, &fakeExecutor{}, workflow.Options{})

	item := store.Add("script", "p", "", nil)
	store.Update(item.ID, func(it *queue.Item) { it.ProductionID = "prod-7" })

	events := newFakeSubscriber()
	presetsChanged := 0
	unbind := mgr.BindRealtime(events, func() { presetsChanged++ })
	defer unbind()

	events.emit("production.updated",
		`{"production_id":"prod-7","title":"Video mới","video_path":"/out/final.mp4"}`)
	got, _ := store.Get(item.ID)
	if got.GeneratedTitle != "Video mới" || got.FinalVideoPath != "/out/final.mp4" {
		t.Fatalf("production event not applied: %+v", got)
	}

	events.emit("production.updated", `{"production_id":"unknown"}`)
	events.emit("presets.updated", `{}`)
	if presetsChanged != 1 {
		t.Fatalf("presets callback ran %d times", presetsChanged)
	}
}
