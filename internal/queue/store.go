package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExportOptions selects which artifacts are packaged when an item completes.
type ExportOptions struct {
	Video           bool `json:"video"`
	Metadata        bool `json:"metadata"`
	SEO             bool `json:"seo"`
	ThumbnailPrompt bool `json:"thumbnail_prompt"`
}

// Store owns all queue items and the global dispatch settings. All methods
// are safe for concurrent use; every mutation happens atomically under the
// store lock.
type Store struct {
	mu sync.Mutex

	items []*Item
	index map[string]*Item

	maxConcurrent int
	delayBetween  time.Duration
	outputPath    string
	active        bool
	export        ExportOptions

	now func() time.Time
}

// Dispatch concurrency bounds enforced by SetMaxConcurrent.
const (
	minConcurrent = 1
	maxConcurrent = 5
)

// NewStore constructs an empty store with dispatch defaults.
func NewStore() *Store {
	return &Store{
		index:         make(map[string]*Item),
		maxConcurrent: minConcurrent,
		active:        true,
		export:        ExportOptions{Video: true, Metadata: true, SEO: true, ThumbnailPrompt: true},
		now:           time.Now,
	}
}

// Add appends a new queued item and returns a copy of it. The store accepts
// any script text; business validation is the caller's job.
func (s *Store) Add(scriptText, presetName, voiceID string, source *SourceMeta) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	item := &Item{
		ID:         uuid.NewString(),
		ScriptText: scriptText,
		PresetName: presetName,
		VoiceID:    voiceID,
		Status:     StatusQueued,
		AddedAt:    now,
		UpdatedAt:  now,
	}
	if source != nil {
		cp := *source
		item.Source = &cp
	}
	s.items = append(s.items, item)
	s.index[item.ID] = item
	return item.Clone()
}

// Get returns a copy of the item with the given id.
func (s *Store) Get(id string) (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// Items returns copies of all items in insertion order.
func (s *Store) Items() []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out
}

// Update applies mutate to the identified item under the store lock and
// stamps UpdatedAt. Unknown ids are a no-op; the driver controls ids in
// production, so a miss is not worth failing over.
func (s *Store) Update(id string, mutate func(*Item)) bool {
	if mutate == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.index[id]
	if !ok {
		return false
	}
	mutate(item)
	item.UpdatedAt = s.now().UTC()
	return true
}

// Remove deletes an item unconditionally regardless of status. Callers must
// not remove a running item they still depend on.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	s.items = removeByID(s.items, id)
	return true
}

// NextQueued returns a copy of the first queued item in insertion order.
func (s *Store) NextQueued() (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Status == StatusQueued {
			return item.Clone(), true
		}
	}
	return nil, false
}

// RunningCount returns the number of items currently running.
func (s *Store) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if item.Status == StatusRunning {
			count++
		}
	}
	return count
}

// Len returns the total number of items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stats returns item counts per status.
func (s *Store) Stats() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[Status]int, len(allStatuses))
	for _, item := range s.items {
		stats[item.Status]++
	}
	return stats
}

// SetMaxConcurrent clamps n to [1,5] and stores it.
func (s *Store) SetMaxConcurrent(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < minConcurrent {
		n = minConcurrent
	}
	if n > maxConcurrent {
		n = maxConcurrent
	}
	s.maxConcurrent = n
}

// MaxConcurrent returns the dispatch concurrency bound.
func (s *Store) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxConcurrent
}

// SetDelayBetween clamps d to zero or more and stores it.
func (s *Store) SetDelayBetween(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d < 0 {
		d = 0
	}
	s.delayBetween = d
}

// DelayBetween returns the throttle between successive dispatches.
func (s *Store) DelayBetween() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayBetween
}

// SetOutputPath stores the root directory for exported productions.
func (s *Store) SetOutputPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputPath = path
}

// OutputPath returns the root directory for exported productions.
func (s *Store) OutputPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputPath
}

// SetActive flips the global run/pause flag. A paused queue dispatches no new
// items; running items finish normally.
func (s *Store) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// Active reports whether the queue is dispatching.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetExportOptions stores the artifact selection for completed items.
func (s *Store) SetExportOptions(opts ExportOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.export = opts
}

// ExportSelection returns the artifact selection for completed items.
func (s *Store) ExportSelection() ExportOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export
}

func removeByID(items []*Item, id string) []*Item {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}
