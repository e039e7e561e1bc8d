package backend

import (
	"context"

	"reelpipe/internal/queue"
	"reelpipe/internal/stage"
)

var stagePaths = map[stage.Name]string{
	stage.Script:     "/api/pipeline/split-script",
	stage.Scenes:     "/api/pipeline/generate-scenes",
	stage.Metadata:   "/api/pipeline/metadata",
	stage.Voice:      "/api/pipeline/voice",
	stage.Keywords:   "/api/pipeline/keywords",
	stage.Direction:  "/api/pipeline/direction",
	stage.Prompts:    "/api/pipeline/video-prompts",
	stage.Entities:   "/api/pipeline/entities",
	stage.RefPrompts: "/api/pipeline/reference-prompts",
	stage.SceneBuild: "/api/pipeline/scene-builder",
	stage.Assembly:   "/api/pipeline/assemble",
	stage.SEO:        "/api/pipeline/seo",
}

// StageInput carries the material a stage endpoint may need. Callers fill it
// from the queue item's current state; unused fields are omitted on the wire.
type StageInput struct {
	ProductionID     string            `json:"production_id,omitempty"`
	ScriptText       string            `json:"script_text,omitempty"`
	PresetName       string            `json:"preset_name,omitempty"`
	VoiceID          string            `json:"voice_id,omitempty"`
	Scenes           []string          `json:"scenes,omitempty"`
	VoiceFiles       []queue.VoiceFile `json:"voice_files,omitempty"`
	Keywords         [][]string        `json:"keywords,omitempty"`
	Direction        string            `json:"direction,omitempty"`
	VideoPrompts     []string          `json:"video_prompts,omitempty"`
	Entities         []string          `json:"entities,omitempty"`
	ReferencePrompts []string          `json:"reference_prompts,omitempty"`
	ScenePlan        []queue.SceneClip `json:"scene_plan,omitempty"`
}

// Metadata is the generated production metadata.
type Metadata struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ThumbnailPrompt string `json:"thumbnail_prompt"`
}

// AssemblyResult identifies the rendered video.
type AssemblyResult struct {
	ProductionID string `json:"production_id"`
	VideoPath    string `json:"video_path"`
}

// SplitScript breaks the raw script into per-scene texts.
func (c *Client) SplitScript(ctx context.Context, in StageInput, onProgress ProgressFunc) ([]string, error) {
	raw, err := c.runStage(ctx, stage.Script, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		Scenes []string `json:"scenes"`
	}]("stage script", raw)
	if err != nil {
		return nil, err
	}
	return result.Scenes, nil
}

// GenerateScenes rewrites the split scenes into production-ready scene texts.
func (c *Client) GenerateScenes(ctx context.Context, in StageInput, onProgress ProgressFunc) ([]string, error) {
	raw, err := c.runStage(ctx, stage.Scenes, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		Scenes []string `json:"scenes"`
	}]("stage scenes", raw)
	if err != nil {
		return nil, err
	}
	return result.Scenes, nil
}

// GenerateMetadata produces the title, description, and thumbnail prompt.
func (c *Client) GenerateMetadata(ctx context.Context, in StageInput, onProgress ProgressFunc) (Metadata, error) {
	raw, err := c.runStage(ctx, stage.Metadata, in, onProgress)
	if err != nil {
		return Metadata{}, err
	}
	return decodeResult[Metadata]("stage metadata", raw)
}

// GenerateVoice renders one voiceover clip per scene.
func (c *Client) GenerateVoice(ctx context.Context, in StageInput, onProgress ProgressFunc) ([]queue.VoiceFile, error) {
	raw, err := c.runStage(ctx, stage.Voice, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		VoiceFiles []queue.VoiceFile `json:"voice_files"`
	}]("stage voice", raw)
	if err != nil {
		return nil, err
	}
	return result.VoiceFiles, nil
}

// ExtractKeywords returns footage-search keywords grouped per scene.
func (c *Client) ExtractKeywords(ctx context.Context, in StageInput, onProgress ProgressFunc) ([][]string, error) {
	raw, err := c.runStage(ctx, stage.Keywords, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		Keywords [][]string `json:"keywords"`
	}]("stage keywords", raw)
	if err != nil {
		return nil, err
	}
	return result.Keywords, nil
}

// PlanDirection produces the overall video direction notes.
func (c *Client) PlanDirection(ctx context.Context, in StageInput, onProgress ProgressFunc) (string, error) {
	raw, err := c.runStage(ctx, stage.Direction, in, onProgress)
	if err != nil {
		return "", err
	}
	result, err := decodeResult[struct {
		Direction string `json:"direction"`
	}]("stage direction", raw)
	if err != nil {
		return "", err
	}
	return result.Direction, nil
}

// WriteVideoPrompts produces one generation prompt per scene.
func (c *Client) WriteVideoPrompts(ctx context.Context, in StageInput, onProgress ProgressFunc) ([]string, error) {
	raw, err := c.runStage(ctx, stage.Prompts, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		Prompts []string `json:"prompts"`
	}]("stage prompts", raw)
	if err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// ExtractEntities lists the recurring people, places, and objects.
func (c *Client) ExtractEntities(ctx context.Context, in StageInput, onProgress ProgressFunc) ([]string, error) {
	raw, err := c.runStage(ctx, stage.Entities, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		Entities []string `json:"entities"`
	}]("stage entities", raw)
	if err != nil {
		return nil, err
	}
	return result.Entities, nil
}

// WriteReferencePrompts produces prompts that keep entities visually
// consistent across scenes.
func (c *Client) WriteReferencePrompts(ctx context.Context, in StageInput, onProgress ProgressFunc) ([]string, error) {
	raw, err := c.runStage(ctx, stage.RefPrompts, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		Prompts []string `json:"prompts"`
	}]("stage refprompts", raw)
	if err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// BuildScenePlan matches each scene with rendered or stock footage.
func (c *Client) BuildScenePlan(ctx context.Context, in StageInput, onProgress ProgressFunc) ([]queue.SceneClip, error) {
	raw, err := c.runStage(ctx, stage.SceneBuild, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[struct {
		ScenePlan []queue.SceneClip `json:"scene_plan"`
	}]("stage scenebuild", raw)
	if err != nil {
		return nil, err
	}
	return result.ScenePlan, nil
}

// AssembleVideo renders the final video from the scene plan and voiceover.
func (c *Client) AssembleVideo(ctx context.Context, in StageInput, onProgress ProgressFunc) (AssemblyResult, error) {
	raw, err := c.runStage(ctx, stage.Assembly, in, onProgress)
	if err != nil {
		return AssemblyResult{}, err
	}
	return decodeResult[AssemblyResult]("stage assembly", raw)
}

// GenerateSEO produces the publishing metadata.
func (c *Client) GenerateSEO(ctx context.Context, in StageInput, onProgress ProgressFunc) (*queue.SEOData, error) {
	raw, err := c.runStage(ctx, stage.SEO, in, onProgress)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[queue.SEOData]("stage seo", raw)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
