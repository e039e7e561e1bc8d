package queue_test

import (
	"testing"
	"time"

	"reelpipe/internal/queue"
	"reelpipe/internal/stage"
)

func TestAddAssignsIdentityAndDefaults(t *testing.T) {
	store := queue.NewStore()

	item := store.Add("xin chào thế giới", "news-vn", "voice-7", &queue.SourceMeta{Title: "Bản tin"})
	if item.ID == "" {
		t.Fatal("expected generated id")
	}
	if item.Status != queue.StatusQueued {
		t.Fatalf("expected queued status, got %s", item.Status)
	}
	if item.Progress != 0 {
		t.Fatalf("expected zero progress, got %v", item.Progress)
	}
	if item.AddedAt.IsZero() {
		t.Fatal("expected AddedAt to be stamped")
	}

	second := store.Add("script two", "news-vn", "", nil)
	if second.ID == item.ID {
		t.Fatal("expected unique ids per item")
	}
}

func TestReturnedItemsAreCopies(t *testing.T) {
	store := queue.NewStore()
	added := store.Add("script", "preset", "", nil)

	added.ScriptText = "mutated outside the store"
	added.Artifacts.Scenes = append(added.Artifacts.Scenes, "rogue scene")

	fetched, ok := store.Get(added.ID)
	if !ok {
		t.Fatal("expected item to exist")
	}
	if fetched.ScriptText != "script" {
		t.Fatal("external mutation leaked into the store")
	}
	if len(fetched.Artifacts.Scenes) != 0 {
		t.Fatal("external artifact mutation leaked into the store")
	}
}

func TestNextQueuedInsertionOrder(t *testing.T) {
	store := queue.NewStore()
	first := store.Add("first", "p", "", nil)
	store.Add("second", "p", "", nil)

	next, ok := store.NextQueued()
	if !ok || next.ID != first.ID {
		t.Fatalf("expected first queued item, got %+v", next)
	}

	store.Update(first.ID, func(i *queue.Item) { i.Status = queue.StatusRunning })
	next, ok = store.NextQueued()
	if !ok || next.ScriptText != "second" {
		t.Fatalf("expected second item once first is running, got %+v", next)
	}
}

func TestUpdateUnknownIDIsNoOp(t *testing.T) {
	store := queue.NewStore()
	if store.Update("missing", func(i *queue.Item) { i.Progress = 50 }) {
		t.Fatal("expected update of unknown id to report false")
	}
	if store.Remove("missing") {
		t.Fatal("expected remove of unknown id to report false")
	}
}

func TestRetryTransitionLegality(t *testing.T) {
	store := queue.NewStore()

	cases := []struct {
		name   string
		status queue.Status
		want   bool
	}{
		{"queued", queue.StatusQueued, false},
		{"running", queue.StatusRunning, false},
		{"completed", queue.StatusCompleted, true},
		{"failed", queue.StatusFailed, true},
	}
	for _, tc := range cases {
		item := store.Add("script "+tc.name, "p", "", nil)
		store.Update(item.ID, func(i *queue.Item) {
			i.Status = tc.status
			i.Progress = 80
			i.Error = "boom"
			i.FailedStep = stage.Voice
		})

		if got := store.Retry(item.ID); got != tc.want {
			t.Fatalf("%s: Retry returned %v, want %v", tc.name, got, tc.want)
		}

		after, _ := store.Get(item.ID)
		if !tc.want {
			if after.Status != tc.status {
				t.Fatalf("%s: no-op retry must not change status, got %s", tc.name, after.Status)
			}
			continue
		}
		if after.Status != queue.StatusQueued {
			t.Fatalf("%s: expected queued after retry, got %s", tc.name, after.Status)
		}
		if after.Progress != 0 || after.Error != "" || after.FailedStep != "" || after.RetryFrom != "" {
			t.Fatalf("%s: retry must reset failure state, got %+v", tc.name, after)
		}
	}
}

func TestRetryKeepsCachedArtifacts(t *testing.T) {
	store := queue.NewStore()
	item := store.Add("script", "p", "", nil)
	store.Update(item.ID, func(i *queue.Item) {
		i.Status = queue.StatusFailed
		i.FailedStep = stage.Voice
		i.MarkStageDone(stage.Script)
		i.MarkStageDone(stage.Scenes)
		i.Artifacts.Scenes = []string{"scene 1", "scene 2"}
	})

	if !store.Retry(item.ID) {
		t.Fatal("expected retry to succeed")
	}
	after, _ := store.Get(item.ID)
	if len(after.Artifacts.Scenes) != 2 {
		t.Fatal("retry must not clear cached artifacts")
	}
	if !after.HasCompleted(stage.Scenes) {
		t.Fatal("retry must keep completed stage records")
	}
}

func TestRetryFromStage(t *testing.T) {
	store := queue.NewStore()
	item := store.Add("script A", "preset1", "", nil)

	if next, ok := store.NextQueued(); !ok || next.ID != item.ID {
		t.Fatal("expected added item to be next queued")
	}
	store.Update(item.ID, func(i *queue.Item) { i.Status = queue.StatusRunning })
	store.Update(item.ID, func(i *queue.Item) {
		i.SetFailed(stage.Voice, "TTS failed")
	})

	if store.RetryFromStage(item.ID, stage.Voice) != true {
		t.Fatal("expected retry-from-step to succeed on a failed item")
	}
	after, _ := store.Get(item.ID)
	if after.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", after.Status)
	}
	if after.RetryFrom != stage.Voice {
		t.Fatalf("expected retry_from voice, got %q", after.RetryFrom)
	}
	if after.Error != "" || after.FailedStep != "" || after.Progress != 0 {
		t.Fatalf("expected failure state cleared, got %+v", after)
	}
}

func TestBulkClearSafety(t *testing.T) {
	store := queue.NewStore()
	queued := store.Add("queued", "p", "", nil)
	running := store.Add("running", "p", "", nil)
	completed := store.Add("completed", "p", "", nil)
	failed := store.Add("failed", "p", "", nil)

	store.Update(running.ID, func(i *queue.Item) { i.Status = queue.StatusRunning })
	store.Update(completed.ID, func(i *queue.Item) { i.Status = queue.StatusCompleted })
	store.Update(failed.ID, func(i *queue.Item) { i.Status = queue.StatusFailed })

	if removed := store.ClearCompleted(); removed != 1 {
		t.Fatalf("ClearCompleted removed %d, want 1", removed)
	}
	if _, ok := store.Get(completed.ID); ok {
		t.Fatal("completed item should be gone")
	}
	for _, id := range []string{queued.ID, running.ID, failed.ID} {
		if _, ok := store.Get(id); !ok {
			t.Fatal("ClearCompleted must leave queued, running, and failed items")
		}
	}

	if removed := store.ClearAll(); removed != 2 {
		t.Fatalf("ClearAll removed %d, want 2", removed)
	}
	items := store.Items()
	if len(items) != 1 || items[0].ID != running.ID {
		t.Fatalf("ClearAll must leave exactly the running item, got %d items", len(items))
	}
}

func TestRunningCountAndConcurrencyClamp(t *testing.T) {
	store := queue.NewStore()
	for i := 0; i < 3; i++ {
		item := store.Add("script", "p", "", nil)
		store.Update(item.ID, func(it *queue.Item) { it.Status = queue.StatusRunning })
	}
	if got := store.RunningCount(); got != 3 {
		t.Fatalf("RunningCount = %d, want 3", got)
	}

	store.SetMaxConcurrent(0)
	if got := store.MaxConcurrent(); got != 1 {
		t.Fatalf("SetMaxConcurrent(0) should clamp to 1, got %d", got)
	}
	store.SetMaxConcurrent(99)
	if got := store.MaxConcurrent(); got != 5 {
		t.Fatalf("SetMaxConcurrent(99) should clamp to 5, got %d", got)
	}
	store.SetMaxConcurrent(3)
	if got := store.MaxConcurrent(); got != 3 {
		t.Fatalf("SetMaxConcurrent(3) = %d", got)
	}

	store.SetDelayBetween(-5 * time.Second)
	if got := store.DelayBetween(); got != 0 {
		t.Fatalf("negative delay should clamp to zero, got %v", got)
	}
}

func TestEndToEndRetryScenario(t *testing.T) {
	store := queue.NewStore()

	added := store.Add("script A", "preset1", "", nil)
	next, ok := store.NextQueued()
	if !ok || next.ID != added.ID {
		t.Fatal("expected the added item to be dequeued first")
	}

	store.Update(added.ID, func(i *queue.Item) { i.Status = queue.StatusRunning })
	store.Update(added.ID, func(i *queue.Item) {
		i.Status = queue.StatusFailed
		i.Error = "TTS failed"
		i.FailedStep = stage.Voice
	})

	if !store.RetryFromStage(added.ID, stage.Voice) {
		t.Fatal("expected retry-from-step to apply")
	}
	after, _ := store.Get(added.ID)
	if after.Status != queue.StatusQueued || after.RetryFrom != stage.Voice {
		t.Fatalf("unexpected item after retry: %+v", after)
	}
	if after.Error != "" || after.Progress != 0 {
		t.Fatalf("expected cleared error and progress, got %+v", after)
	}
}

func TestRequeueInterrupted(t *testing.T) {
	store := queue.NewStore()
	running := store.Add("running", "p", "", nil)
	completed := store.Add("completed", "p", "", nil)
	store.Update(running.ID, func(i *queue.Item) {
		i.Status = queue.StatusRunning
		i.Progress = 40
	})
	store.Update(completed.ID, func(i *queue.Item) { i.Status = queue.StatusCompleted })

	if n := store.RequeueInterrupted(); n != 1 {
		t.Fatalf("RequeueInterrupted = %d, want 1", n)
	}
	after, _ := store.Get(running.ID)
	if after.Status != queue.StatusQueued || after.Progress != 0 {
		t.Fatalf("interrupted item should be queued at zero progress, got %+v", after)
	}
	untouched, _ := store.Get(completed.ID)
	if untouched.Status != queue.StatusCompleted {
		t.Fatal("completed items must not be requeued")
	}
}

func TestStatsAndSnapshotRestore(t *testing.T) {
	store := queue.NewStore()
	store.Add("a", "p", "", nil)
	b := store.Add("b", "p", "", nil)
	store.Update(b.ID, func(i *queue.Item) { i.Status = queue.StatusFailed })

	stats := store.Stats()
	if stats[queue.StatusQueued] != 1 || stats[queue.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	snapshot := store.Snapshot()
	restored := queue.NewStore()
	restored.Restore(snapshot)
	if restored.Len() != 2 {
		t.Fatalf("restored %d items, want 2", restored.Len())
	}
	item, ok := restored.Get(b.ID)
	if !ok || item.Status != queue.StatusFailed {
		t.Fatalf("restore lost item state: %+v", item)
	}
}
