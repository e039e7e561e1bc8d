package workflow

import (
	"encoding/json"

	"reelpipe/internal/logging"
	"reelpipe/internal/queue"
	"reelpipe/internal/realtime"
)

// Subscriber is the slice of the realtime channel the manager consumes.
type Subscriber interface {
	Subscribe(eventType string, handler realtime.Handler) func()
}

type productionEvent struct {
	ProductionID string `json:"production_id"`
	Status       string `json:"status"`
	Title        string `json:"title"`
	VideoPath    string `json:"video_path"`
}

// BindRealtime subscribes the manager to backend push events. Production
// updates are folded into the matching queue item; preset changes invoke
// onPresetsChanged. The returned function removes both subscriptions.
func (m *Manager) BindRealtime(events Subscriber, onPresetsChanged func()) func() {
	unsubProduction := events.Subscribe("production.updated", func(env realtime.Envelope) {
		var ev productionEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil || ev.ProductionID == "" {
			return
		}
		m.applyProductionEvent(ev)
	})
	unsubPresets := events.Subscribe("presets.updated", func(realtime.Envelope) {
		m.logger.Info("presets changed upstream",
			logging.String(logging.FieldEventType, "presets_updated"))
		if onPresetsChanged != nil {
			onPresetsChanged()
		}
	})
	return func() {
		unsubProduction()
		unsubPresets()
	}
}

// applyProductionEvent refreshes the queue item tracking the production. A
// delivery for an unknown production is a refresh hint for someone else and
// is dropped; duplicates are harmless because the update is idempotent.
func (m *Manager) applyProductionEvent(ev productionEvent) {
	for _, item := range m.store.Items() {
		if item.ProductionID != ev.ProductionID {
			continue
		}
		m.store.Update(item.ID, func(it *queue.Item) {
			if ev.Title != "" {
				it.GeneratedTitle = ev.Title
			}
			if ev.VideoPath != "" {
				it.FinalVideoPath = ev.VideoPath
			}
		})
		m.notifyMutate()
		m.logger.Debug("production event applied",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("production_id", ev.ProductionID),
			logging.String("status", ev.Status))
		return
	}
}
