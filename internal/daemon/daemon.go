// Package daemon ties the queue, workflow, realtime channel, and persistence
// together behind a single lifecycle and enforces single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelpipe/internal/backend"
	"reelpipe/internal/config"
	"reelpipe/internal/logging"
	"reelpipe/internal/presets"
	"reelpipe/internal/queue"
	"reelpipe/internal/queuedb"
	"reelpipe/internal/realtime"
	"reelpipe/internal/stage"
	"reelpipe/internal/workflow"
)

// Daemon owns the background services.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	db       *queuedb.DB
	workflow *workflow.Manager
	channel  *realtime.Channel

	lockPath string
	lock     *flock.Flock

	presetsMu sync.Mutex
	presets   *presets.Catalog

	snapshotMu sync.Mutex

	unbindEvents func()
	running      atomic.Bool
	cancel       context.CancelFunc
}

// Status is the daemon runtime information reported over IPC.
type Status struct {
	Running           bool             `json:"running"`
	Workflow          workflow.Summary `json:"workflow"`
	RealtimeConnected bool             `json:"realtime_connected"`
	BackendURL        string           `json:"backend_url"`
	QueueDBPath       string           `json:"queue_db_path"`
	LockFilePath      string           `json:"lock_file_path"`
	Presets           []string         `json:"presets"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store := queue.NewStore()
	store.SetMaxConcurrent(cfg.Queue.MaxConcurrent)
	store.SetDelayBetween(cfg.DelayBetween())
	store.SetOutputPath(cfg.Paths.OutputDir)
	store.SetExportOptions(queue.ExportOptions{
		Video:           cfg.Queue.ExportVideo,
		Metadata:        cfg.Queue.ExportMetadata,
		SEO:             cfg.Queue.ExportSEO,
		ThumbnailPrompt: cfg.Queue.ExportThumbnailPrompt,
	})

	db, err := queuedb.Open(filepath.Join(cfg.Paths.LogDir, "queue.db"))
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}

	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("derive websocket url: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		db:       db,
		lockPath: filepath.Join(cfg.Paths.LogDir, "reelpiped.lock"),
		presets:  presets.Empty(),
	}
	d.lock = flock.New(d.lockPath)

	client := backend.New(cfg.Backend, logger)
	executor := workflow.NewStageExecutor(client, store, logger)
	d.workflow = workflow.NewManager(store, executor, workflow.Options{
		PollInterval:       cfg.QueuePollInterval(),
		ErrorRetryInterval: cfg.ErrorRetryInterval(),
		OnMutate:           d.saveSnapshot,
		Logger:             logger,
	})
	d.channel = realtime.NewChannel(realtime.Options{
		URL:               wsURL,
		HeartbeatInterval: cfg.HeartbeatInterval(),
		ReconnectBase:     cfg.ReconnectBase(),
		ReconnectMax:      cfg.ReconnectMax(),
		Logger:            logger,
	})

	d.reloadPresets()
	return d, nil
}

// Start acquires the daemon lock, restores the persisted queue, and launches
// background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelpipe daemon instance is already running")
	}

	if err := d.restoreQueue(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.unbindEvents = d.workflow.BindRealtime(d.channel, d.reloadPresets)
	d.channel.Connect()

	d.running.Store(true)
	d.logger.Info("reelpipe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("backend", d.cfg.Backend.BaseURL))
	return nil
}

// Stop halts background processing, persists the queue, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.unbindEvents != nil {
		d.unbindEvents()
		d.unbindEvents = nil
	}
	d.workflow.Stop()
	d.channel.Close()

	// In-flight items were already requeued by the workflow teardown.
	d.saveSnapshot()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelpipe daemon stopped")
}

// Close stops the daemon and releases its resources.
func (d *Daemon) Close() error {
	d.Stop()
	return d.db.Close()
}

// Running reports whether Start has completed successfully.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status reports the daemon's current state.
func (d *Daemon) Status() Status {
	d.presetsMu.Lock()
	names := d.presets.Names()
	d.presetsMu.Unlock()
	return Status{
		Running:           d.running.Load(),
		Workflow:          d.workflow.Status(),
		RealtimeConnected: d.channel.Connected(),
		BackendURL:        d.cfg.Backend.BaseURL,
		QueueDBPath:       d.db.Path(),
		LockFilePath:      d.lockPath,
		Presets:           names,
	}
}

func (d *Daemon) restoreQueue(ctx context.Context) error {
	items, err := d.db.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	d.store.Restore(items)
	if requeued := d.store.RequeueInterrupted(); requeued > 0 {
		d.logger.Info("requeued interrupted items", logging.Int("count", requeued))
	}
	d.logger.Info("queue restored", logging.Int("items", d.store.Len()))
	return nil
}

// saveSnapshot persists the current queue. Mutations arrive from several
// goroutines; the mutex keeps writes ordered, and a failed write is logged
// rather than surfaced since the in-memory queue stays authoritative.
func (d *Daemon) saveSnapshot() {
	d.snapshotMu.Lock()
	defer d.snapshotMu.Unlock()
	if err := d.db.Save(context.Background(), d.store.Snapshot()); err != nil {
		d.logger.Warn("queue snapshot failed", logging.Error(err))
	}
}

func (d *Daemon) reloadPresets() {
	if d.cfg.Presets.Path == "" {
		return
	}
	catalog, err := presets.Load(d.cfg.Presets.Path)
	if err != nil {
		d.logger.Warn("preset catalog unavailable",
			logging.String("path", d.cfg.Presets.Path),
			logging.Error(err))
		return
	}
	d.presetsMu.Lock()
	d.presets = catalog
	d.presetsMu.Unlock()
	d.logger.Info("presets loaded", logging.Int("count", catalog.Len()))
}

// AddScript validates and enqueues a new production.
func (d *Daemon) AddScript(scriptText, presetName, voiceID string) (string, error) {
	if strings.TrimSpace(scriptText) == "" {
		return "", errors.New("script text is empty")
	}
	d.presetsMu.Lock()
	preset, known := d.presets.Get(presetName)
	hasCatalog := d.presets.Len() > 0
	d.presetsMu.Unlock()
	if hasCatalog && !known {
		return "", fmt.Errorf("unknown preset %q", presetName)
	}
	if voiceID == "" && known {
		voiceID = preset.Voice
	}

	item := d.store.Add(scriptText, presetName, voiceID, nil)
	d.saveSnapshot()
	d.logger.Info("script queued",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("preset", presetName))
	return item.ID, nil
}

// ListQueue returns copies of all queue items, optionally filtered by status.
func (d *Daemon) ListQueue(statuses ...queue.Status) []*queue.Item {
	items := d.store.Items()
	if len(statuses) == 0 {
		return items
	}
	wanted := make(map[queue.Status]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}
	filtered := items[:0]
	for _, item := range items {
		if _, ok := wanted[item.Status]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// RemoveItem deletes one item from the queue.
func (d *Daemon) RemoveItem(id string) bool {
	removed := d.store.Remove(id)
	if removed {
		d.saveSnapshot()
	}
	return removed
}

// RetryItem requeues a failed or completed item from scratch.
func (d *Daemon) RetryItem(id string) bool {
	retried := d.store.Retry(id)
	if retried {
		d.saveSnapshot()
	}
	return retried
}

// RetryItemFrom requeues a failed or completed item, resuming at the given
// stage.
func (d *Daemon) RetryItemFrom(id, from string) error {
	st, ok := stage.Parse(from)
	if !ok {
		return fmt.Errorf("unknown stage %q", from)
	}
	if !d.store.RetryFromStage(id, st) {
		return fmt.Errorf("item %s cannot be retried", id)
	}
	d.saveSnapshot()
	return nil
}

// ClearQueue removes every item that is not running.
func (d *Daemon) ClearQueue() int {
	cleared := d.store.ClearAll()
	if cleared > 0 {
		d.saveSnapshot()
	}
	return cleared
}

// ClearCompleted removes completed items.
func (d *Daemon) ClearCompleted() int {
	cleared := d.store.ClearCompleted()
	if cleared > 0 {
		d.saveSnapshot()
	}
	return cleared
}

// ClearFailed removes failed items.
func (d *Daemon) ClearFailed() int {
	cleared := d.store.ClearFailed()
	if cleared > 0 {
		d.saveSnapshot()
	}
	return cleared
}

// Pause stops dispatching new items; running items finish.
func (d *Daemon) Pause() {
	d.store.SetActive(false)
	d.logger.Info("queue paused")
}

// Resume re-enables dispatching.
func (d *Daemon) Resume() {
	d.store.SetActive(true)
	d.logger.Info("queue resumed")
}
