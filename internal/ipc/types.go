// Package ipc exposes daemon control over JSON-RPC on a Unix socket.
package ipc

import (
	"reelpipe/internal/daemon"
	"reelpipe/internal/queue"
)

// ServiceName is the RPC service all methods are registered under.
const ServiceName = "Reelpipe"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse reports daemon and queue state.
type StatusResponse struct {
	Status daemon.Status `json:"status"`
	PID    int           `json:"pid"`
}

// QueueAddRequest enqueues a new script.
type QueueAddRequest struct {
	ScriptText string `json:"script_text"`
	PresetName string `json:"preset_name"`
	VoiceID    string `json:"voice_id"`
}

// QueueAddResponse returns the new item's id.
type QueueAddResponse struct {
	ID string `json:"id"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []*queue.Item `json:"items"`
}

// QueueRemoveRequest deletes one item.
type QueueRemoveRequest struct {
	ID string `json:"id"`
}

// QueueRemoveResponse reports whether the item existed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueRetryRequest requeues a finished item, optionally resuming at a stage.
type QueueRetryRequest struct {
	ID        string `json:"id"`
	FromStage string `json:"from_stage"`
}

// QueueRetryResponse reports whether the retry was accepted.
type QueueRetryResponse struct {
	Retried bool `json:"retried"`
}

// QueueClearRequest removes items; Scope selects which.
type QueueClearRequest struct {
	// Scope is "all", "completed", or "failed".
	Scope string `json:"scope"`
}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// PauseRequest stops dispatching new items.
type PauseRequest struct{}

// PauseResponse acknowledges the pause.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// ResumeRequest re-enables dispatching.
type ResumeRequest struct{}

// ResumeResponse acknowledges the resume.
type ResumeResponse struct {
	Resumed bool `json:"resumed"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges the shutdown request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}
