package queuedb_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reelpipe/internal/queue"
	"reelpipe/internal/queuedb"
	"reelpipe/internal/stage"
)

func openTestDB(t *testing.T) *queuedb.DB {
	t.Helper()
	db, err := queuedb.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := &queue.Item{
		ID:         "item-1",
		ScriptText: "một kịch bản",
		PresetName: "shorts-vi",
		Status:     queue.StatusFailed,
		Error:      "voice synthesis failed",
		FailedStep: stage.Voice,
		Completed:  []stage.Name{stage.Script, stage.Scenes, stage.Metadata},
		Artifacts: queue.Artifacts{
			Scenes: []string{"cảnh một", "cảnh hai"},
		},
		AddedAt:   base,
		UpdatedAt: base.Add(time.Minute),
	}
	second := &queue.Item{
		ID:         "item-2",
		ScriptText: "script two",
		PresetName: "shorts-vi",
		Status:     queue.StatusQueued,
		AddedAt:    base.Add(time.Second),
		UpdatedAt:  base.Add(time.Second),
	}

	if err := db.Save(ctx, []*queue.Item{first, second}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded))
	}
	if loaded[0].ID != "item-1" || loaded[1].ID != "item-2" {
		t.Fatalf("insertion order lost: %s, %s", loaded[0].ID, loaded[1].ID)
	}
	got := loaded[0]
	if got.Error != "voice synthesis failed" || got.FailedStep != stage.Voice {
		t.Fatalf("failure state lost: %+v", got)
	}
	if len(got.Completed) != 3 || got.Completed[2] != stage.Metadata {
		t.Fatalf("completed stages lost: %v", got.Completed)
	}
	if len(got.Artifacts.Scenes) != 2 || got.Artifacts.Scenes[0] != "cảnh một" {
		t.Fatalf("artifacts lost: %v", got.Artifacts.Scenes)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	items := []*queue.Item{
		{ID: "a", Status: queue.StatusQueued, AddedAt: now, UpdatedAt: now},
		{ID: "b", Status: queue.StatusQueued, AddedAt: now.Add(time.Second), UpdatedAt: now},
	}
	if err := db.Save(ctx, items); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := db.Save(ctx, items[1:]); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "b" {
		t.Fatalf("snapshot not replaced: %v", loaded)
	}
}

func TestLoadEmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	loaded, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty snapshot, got %d items", len(loaded))
	}
}

func TestSaveSkipsNilAndUnidentifiedItems(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := db.Save(ctx, []*queue.Item{
		nil,
		{Status: queue.StatusQueued, AddedAt: now},
		{ID: "ok", Status: queue.StatusQueued, AddedAt: now, UpdatedAt: now},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "ok" {
		t.Fatalf("expected only the identified item, got %v", loaded)
	}
}
