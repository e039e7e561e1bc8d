package main

import (
	"strings"
	"testing"
	"time"

	"reelpipe/internal/queue"
	"reelpipe/internal/stage"
)

func TestRenderItemTable(t *testing.T) {
	added := time.Date(2026, time.August, 29, 10, 30, 0, 0, time.Local)
	items := []*queue.Item{
		{
			ID:          "0f2c4a88-1d9e-4f4b-9d6a-000000000000",
			Status:      queue.StatusRunning,
			Progress:    42,
			CurrentStep: "Generating voiceover",
			PresetName:  "shorts-vi",
			AddedAt:     added,
		},
		{
			ID:         "aabbccdd-0000-0000-0000-000000000000",
			Status:     queue.StatusFailed,
			FailedStep: stage.Voice,
			Error:      "tts unavailable",
			PresetName: "shorts-vi",
			AddedAt:    added,
		},
	}

	out := renderItemTable(items)
	for _, want := range []string{"0f2c4a88", "42%", "Generating voiceover", "voice: tts unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("item table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "1d9e-4f4b") {
		t.Errorf("item table shows unshortened id:\n%s", out)
	}
}

func TestRenderCountTable(t *testing.T) {
	out := renderCountTable(
		map[queue.Status]int{queue.StatusQueued: 2, queue.StatusFailed: 1},
		[][2]string{{"active", "yes"}},
	)
	for _, status := range queue.AllStatuses() {
		if !strings.Contains(out, string(status)) {
			t.Errorf("count table missing status %s:\n%s", status, out)
		}
	}
	if !strings.Contains(out, "active") {
		t.Errorf("count table missing settings row:\n%s", out)
	}
}

func TestRenderFieldTable(t *testing.T) {
	out := renderFieldTable([][2]string{{"Running", "yes"}, {"Backend", "http://127.0.0.1:8000"}})
	for _, want := range []string{"FIELD", "VALUE", "Running", "http://127.0.0.1:8000"} {
		if !strings.Contains(out, want) {
			t.Errorf("field table missing %q:\n%s", want, out)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(abc) = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Errorf("shortID truncation = %q", got)
	}
}
