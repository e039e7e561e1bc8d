package queue

import "reelpipe/internal/stage"

// Retry returns a failed or completed item to the queue for a full rerun.
// Cached artifacts are kept; whether to reuse them is the driver's call.
// Queued and running items are left untouched.
func (s *Store) Retry(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.index[id]
	if !ok || !item.IsTerminal() {
		return false
	}
	item.resetForRetry()
	item.UpdatedAt = s.now().UTC()
	return true
}

// RetryFromStage is Retry with a resume marker: the next run skips completed
// stages upstream of from instead of starting at stage one.
func (s *Store) RetryFromStage(id string, from stage.Name) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.index[id]
	if !ok || !item.IsTerminal() {
		return false
	}
	item.resetForRetry()
	item.RetryFrom = from
	item.UpdatedAt = s.now().UTC()
	return true
}

// RequeueInterrupted returns running items to queued state, recording the
// interruption. Used on daemon startup after a crash or unclean shutdown so
// restored snapshots never claim work nobody is doing.
func (s *Store) RequeueInterrupted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	requeued := 0
	for _, item := range s.items {
		if item.Status != StatusRunning {
			continue
		}
		item.Status = StatusQueued
		item.Progress = 0
		item.CurrentStep = ShutdownStopReason
		item.Error = ""
		item.UpdatedAt = s.now().UTC()
		requeued++
	}
	return requeued
}
