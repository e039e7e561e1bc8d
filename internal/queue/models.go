package queue

import (
	"strings"
	"time"

	"reelpipe/internal/stage"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ShutdownStopReason is the error message set on items interrupted by a
// daemon shutdown before being returned to the queue.
const ShutdownStopReason = "Interrupted by daemon shutdown"

// SourceMeta carries user-supplied metadata for the source script, distinct
// from the AI-generated production metadata.
type SourceMeta struct {
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// VoiceFile is one generated voiceover clip with its measured duration.
type VoiceFile struct {
	Scene           int     `json:"scene"`
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SceneClip maps a scene to the footage chosen for it.
type SceneClip struct {
	Scene  int    `json:"scene"`
	Path   string `json:"path"`
	Source string `json:"source,omitempty"`
}

// SEOData is the optional SEO payload produced near the end of the pipeline.
type SEOData struct {
	MainKeyword       string   `json:"main_keyword"`
	SecondaryKeywords []string `json:"secondary_keywords,omitempty"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Tags              []string `json:"tags,omitempty"`
	Filename          string   `json:"filename,omitempty"`
	Channel           string   `json:"channel,omitempty"`
	Platform          string   `json:"platform,omitempty"`
}

// Artifacts caches intermediate stage outputs so a retry can resume without
// recomputing expensive stages. The store never invalidates these; a driver
// that changes upstream inputs (for example an edited script) must clear the
// affected caches itself.
type Artifacts struct {
	Scenes           []string    `json:"scenes,omitempty"`
	VoiceFiles       []VoiceFile `json:"voice_files,omitempty"`
	Keywords         [][]string  `json:"keywords,omitempty"`
	Direction        string      `json:"direction,omitempty"`
	VideoPrompts     []string    `json:"video_prompts,omitempty"`
	Entities         []string    `json:"entities,omitempty"`
	ReferencePrompts []string    `json:"reference_prompts,omitempty"`
	ScenePlan        []SceneClip `json:"scene_plan,omitempty"`
}

// Item represents one production job in the queue.
type Item struct {
	ID         string      `json:"id"`
	ScriptText string      `json:"script_text"`
	PresetName string      `json:"preset_name"`
	VoiceID    string      `json:"voice_id,omitempty"`
	Source     *SourceMeta `json:"source,omitempty"`

	Status      Status     `json:"status"`
	Progress    float64    `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	Error       string     `json:"error,omitempty"`
	FailedStep  stage.Name `json:"failed_step,omitempty"`
	RetryFrom   stage.Name `json:"retry_from,omitempty"`

	Completed []stage.Name `json:"completed,omitempty"`
	Artifacts Artifacts    `json:"artifacts"`

	GeneratedTitle       string   `json:"generated_title,omitempty"`
	GeneratedDescription string   `json:"generated_description,omitempty"`
	ThumbnailPrompt      string   `json:"thumbnail_prompt,omitempty"`
	SEO                  *SEOData `json:"seo,omitempty"`
	ProductionID         string   `json:"production_id,omitempty"`
	FinalVideoPath       string   `json:"final_video_path,omitempty"`
	ExportDir            string   `json:"export_dir,omitempty"`

	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetProgress updates the progress fields together.
func (i *Item) SetProgress(step string, percent float64) {
	i.CurrentStep = step
	i.Progress = percent
}

// SetFailed marks the item as failed at the given stage. Completed stages and
// cached artifacts are left intact so a retry can resume.
func (i *Item) SetFailed(failed stage.Name, message string) {
	i.Status = StatusFailed
	i.Error = message
	i.FailedStep = failed
	i.CurrentStep = failed.Label()
}

// SetCompleted marks the item as done and clears failure and retry markers.
func (i *Item) SetCompleted() {
	i.Status = StatusCompleted
	i.Progress = 100
	i.Error = ""
	i.FailedStep = ""
	i.RetryFrom = ""
}

// MarkStageDone records a successfully executed stage exactly once.
func (i *Item) MarkStageDone(name stage.Name) {
	for _, existing := range i.Completed {
		if existing == name {
			return
		}
	}
	i.Completed = append(i.Completed, name)
}

// HasCompleted reports whether a stage is recorded as completed.
func (i *Item) HasCompleted(name stage.Name) bool {
	for _, existing := range i.Completed {
		if existing == name {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the item finished, successfully or not.
func (i *Item) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// resetForRetry returns the item to the queue, clearing failure state and
// progress while leaving completed stages and cached artifacts untouched.
func (i *Item) resetForRetry() {
	i.Status = StatusQueued
	i.Progress = 0
	i.CurrentStep = ""
	i.Error = ""
	i.FailedStep = ""
	i.RetryFrom = ""
}

// Clone returns a deep copy safe to hand outside the store.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Source != nil {
		source := *i.Source
		cp.Source = &source
	}
	if i.SEO != nil {
		seo := *i.SEO
		seo.SecondaryKeywords = append([]string(nil), i.SEO.SecondaryKeywords...)
		seo.Tags = append([]string(nil), i.SEO.Tags...)
		cp.SEO = &seo
	}
	cp.Completed = append([]stage.Name(nil), i.Completed...)
	cp.Artifacts = i.Artifacts.clone()
	return &cp
}

func (a Artifacts) clone() Artifacts {
	cp := a
	cp.Scenes = append([]string(nil), a.Scenes...)
	cp.VoiceFiles = append([]VoiceFile(nil), a.VoiceFiles...)
	if a.Keywords != nil {
		cp.Keywords = make([][]string, len(a.Keywords))
		for idx, kws := range a.Keywords {
			cp.Keywords[idx] = append([]string(nil), kws...)
		}
	}
	cp.VideoPrompts = append([]string(nil), a.VideoPrompts...)
	cp.Entities = append([]string(nil), a.Entities...)
	cp.ReferencePrompts = append([]string(nil), a.ReferencePrompts...)
	cp.ScenePlan = append([]SceneClip(nil), a.ScenePlan...)
	return cp
}
