package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelpipe/internal/logging"
	"reelpipe/internal/queue"
	"reelpipe/internal/stage"
)

// Executor runs one pipeline stage for one item, writing its results into
// the store. The production implementation calls the backend; tests inject
// fakes.
type Executor interface {
	ExecuteStage(ctx context.Context, id string, st stage.Name) error
}

const defaultPollInterval = 2 * time.Second

// Options configures optional Manager behavior.
type Options struct {
	// PollInterval is how long the dispatcher sleeps when there is nothing
	// to do.
	PollInterval time.Duration
	// ErrorRetryInterval pauses dispatching after a stage failure so a
	// misbehaving backend is not hammered by the next queued item. Zero
	// disables the pause.
	ErrorRetryInterval time.Duration
	// OnMutate runs after every store mutation the manager makes; the daemon
	// hooks queue persistence here.
	OnMutate func()
	Logger   *slog.Logger
}

// Manager coordinates queue processing.
type Manager struct {
	store        *queue.Store
	exec         Executor
	logger       *slog.Logger
	pollInterval time.Duration
	errorBackoff time.Duration
	onMutate     func()

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	lastDispatch time.Time
	errorUntil   time.Time

	wg sync.WaitGroup
}

// NewManager constructs a manager over the given store and stage executor.
func NewManager(store *queue.Store, exec Executor, opts Options) *Manager {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Manager{
		store:        store,
		exec:         exec,
		logger:       logging.NewComponentLogger(opts.Logger, "workflow"),
		pollInterval: interval,
		errorBackoff: opts.ErrorRetryInterval,
		onMutate:     opts.OnMutate,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight items to
// unwind. Interrupted items land back in the queue.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the manager has been started.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Summary is a point-in-time view of queue processing.
type Summary struct {
	Running       bool                 `json:"running"`
	QueueActive   bool                 `json:"queue_active"`
	RunningCount  int                  `json:"running_count"`
	MaxConcurrent int                  `json:"max_concurrent"`
	Stats         map[queue.Status]int `json:"stats"`
}

// Status summarizes the manager and queue state.
func (m *Manager) Status() Summary {
	return Summary{
		Running:       m.Running(),
		QueueActive:   m.store.Active(),
		RunningCount:  m.store.RunningCount(),
		MaxConcurrent: m.store.MaxConcurrent(),
		Stats:         m.store.Stats(),
	}
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !m.store.Active() || m.store.RunningCount() >= m.store.MaxConcurrent() {
			m.waitForWork(ctx)
			continue
		}
		if wait := m.errorBackoffRemaining(); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		item, ok := m.store.NextQueued()
		if !ok {
			m.waitForWork(ctx)
			continue
		}
		if !m.throttle(ctx) {
			return
		}
		m.dispatch(ctx, item.ID)
	}
}

func (m *Manager) waitForWork(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// errorBackoffRemaining reports how long dispatching stays suspended after
// the most recent stage failure.
func (m *Manager) errorBackoffRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errorUntil.IsZero() {
		return 0
	}
	return time.Until(m.errorUntil)
}

func (m *Manager) noteStageError() {
	if m.errorBackoff <= 0 {
		return
	}
	m.mu.Lock()
	m.errorUntil = time.Now().Add(m.errorBackoff)
	m.mu.Unlock()
}

// throttle enforces the configured gap between dispatches. It returns false
// when the context ended while waiting.
func (m *Manager) throttle(ctx context.Context) bool {
	delay := m.store.DelayBetween()
	if delay <= 0 {
		return ctx.Err() == nil
	}
	m.mu.Lock()
	elapsed := time.Since(m.lastDispatch)
	m.mu.Unlock()
	if elapsed >= delay {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay - elapsed):
		return true
	}
}

func (m *Manager) dispatch(ctx context.Context, id string) {
	claimed := false
	m.store.Update(id, func(it *queue.Item) {
		if it.Status != queue.StatusQueued {
			return
		}
		it.Status = queue.StatusRunning
		it.SetProgress("Starting", 0)
		claimed = true
	})
	if !claimed {
		return
	}
	m.notifyMutate()

	m.mu.Lock()
	m.lastDispatch = time.Now()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.processItem(ctx, id)
}

func (m *Manager) processItem(ctx context.Context, id string) {
	defer m.wg.Done()

	snapshot, ok := m.store.Get(id)
	if !ok {
		return
	}
	logger := m.logger.With(logging.String(logging.FieldItemID, id))
	plan := stage.Plan(snapshot.RetryFrom, snapshot.Completed)
	logger.Info("processing item",
		logging.Int("stages", len(plan)),
		logging.String("preset", snapshot.PresetName))

	for _, st := range plan {
		if ctx.Err() != nil {
			m.requeueInterrupted(id)
			return
		}
		logger.Debug("stage starting", logging.String(logging.FieldStage, string(st)))
		if err := m.exec.ExecuteStage(ctx, id, st); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				m.requeueInterrupted(id)
				return
			}
			m.noteStageError()
			m.store.Update(id, func(it *queue.Item) {
				it.SetFailed(st, err.Error())
			})
			m.notifyMutate()
			logger.Error("stage failed",
				logging.String(logging.FieldStage, string(st)),
				logging.Error(err))
			return
		}
		m.store.Update(id, func(it *queue.Item) {
			it.MarkStageDone(st)
		})
		m.notifyMutate()
	}

	m.store.Update(id, func(it *queue.Item) {
		it.SetCompleted()
	})
	m.notifyMutate()
	logger.Info("item completed")
}

func (m *Manager) requeueInterrupted(id string) {
	m.store.Update(id, func(it *queue.Item) {
		if it.Status != queue.StatusRunning {
			return
		}
		it.Status = queue.StatusQueued
		it.Progress = 0
		it.CurrentStep = queue.ShutdownStopReason
		it.Error = ""
	})
	m.notifyMutate()
}

func (m *Manager) notifyMutate() {
	if m.onMutate != nil {
		m.onMutate()
	}
}
