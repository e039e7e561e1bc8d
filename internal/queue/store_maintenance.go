package queue

// ClearCompleted removes all completed items and returns how many were removed.
func (s *Store) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeWhere(func(item *Item) bool {
		return item.Status == StatusCompleted
	})
}

// ClearAll removes every item except those currently running. In-flight work
// is never discarded by a bulk clear.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeWhere(func(item *Item) bool {
		return item.Status != StatusRunning
	})
}

// ClearFailed removes all failed items and returns how many were removed.
func (s *Store) ClearFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeWhere(func(item *Item) bool {
		return item.Status == StatusFailed
	})
}

func (s *Store) removeWhere(match func(*Item) bool) int {
	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if match(item) {
			delete(s.index, item.ID)
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return removed
}

// Snapshot returns copies of every item for persistence.
func (s *Store) Snapshot() []*Item {
	return s.Items()
}

// Restore replaces the store contents with the given items, preserving their
// order. Existing items are dropped; callers restore before the driver starts.
func (s *Store) Restore(items []*Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]*Item, 0, len(items))
	s.index = make(map[string]*Item, len(items))
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		if _, exists := s.index[item.ID]; exists {
			continue
		}
		cp := item.Clone()
		s.items = append(s.items, cp)
		s.index[cp.ID] = cp
	}
}
