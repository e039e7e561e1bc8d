package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"reelpipe/internal/backend"
	"reelpipe/internal/export"
	"reelpipe/internal/logging"
	"reelpipe/internal/queue"
	"reelpipe/internal/sse"
	"reelpipe/internal/stage"
)

// StageExecutor executes pipeline stages against the backend, except the
// export stage, which packages deliverables locally.
type StageExecutor struct {
	client *backend.Client
	store  *queue.Store
	logger *slog.Logger
}

// NewStageExecutor wires the backend client to the queue store.
func NewStageExecutor(client *backend.Client, store *queue.Store, logger *slog.Logger) *StageExecutor {
	return &StageExecutor{
		client: client,
		store:  store,
		logger: logging.NewComponentLogger(logger, "executor"),
	}
}

// ExecuteStage runs one stage for the identified item and writes its output
// into the item's caches.
func (e *StageExecutor) ExecuteStage(ctx context.Context, id string, st stage.Name) error {
	item, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	in := stageInput(item)
	onProgress := e.progressFunc(id, st)
	onProgress(sse.Progress{Step: st.Label(), Percent: 0})

	switch st {
	case stage.Script:
		scenes, err := e.client.SplitScript(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.Scenes = scenes })
	case stage.Scenes:
		scenes, err := e.client.GenerateScenes(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.Scenes = scenes })
	case stage.Metadata:
		md, err := e.client.GenerateMetadata(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) {
			it.GeneratedTitle = md.Title
			it.GeneratedDescription = md.Description
			it.ThumbnailPrompt = md.ThumbnailPrompt
		})
	case stage.Voice:
		files, err := e.client.GenerateVoice(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.VoiceFiles = files })
	case stage.Keywords:
		keywords, err := e.client.ExtractKeywords(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.Keywords = keywords })
	case stage.Direction:
		direction, err := e.client.PlanDirection(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.Direction = direction })
	case stage.Prompts:
		prompts, err := e.client.WriteVideoPrompts(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.VideoPrompts = prompts })
	case stage.Entities:
		entities, err := e.client.ExtractEntities(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.Entities = entities })
	case stage.RefPrompts:
		prompts, err := e.client.WriteReferencePrompts(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.ReferencePrompts = prompts })
	case stage.SceneBuild:
		plan, err := e.client.BuildScenePlan(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.Artifacts.ScenePlan = plan })
	case stage.Assembly:
		result, err := e.client.AssembleVideo(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) {
			it.ProductionID = result.ProductionID
			it.FinalVideoPath = result.VideoPath
		})
	case stage.SEO:
		seo, err := e.client.GenerateSEO(ctx, in, onProgress)
		if err != nil {
			return err
		}
		e.update(id, func(it *queue.Item) { it.SEO = seo })
	case stage.Export:
		return e.exportItem(id, st, onProgress)
	default:
		return fmt.Errorf("unknown stage %q", st)
	}

	onProgress(sse.Progress{Step: st.Label(), Percent: 100})
	return nil
}

// exportItem packages the finished deliverables on the local filesystem.
func (e *StageExecutor) exportItem(id string, st stage.Name, onProgress backend.ProgressFunc) error {
	item, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	dir, err := export.Package(item, e.store.OutputPath(), e.store.ExportSelection())
	if err != nil {
		return err
	}
	e.update(id, func(it *queue.Item) { it.ExportDir = dir })
	e.logger.Info("deliverables exported",
		logging.String(logging.FieldItemID, id),
		logging.String("export_dir", dir))
	onProgress(sse.Progress{Step: st.Label(), Percent: 100})
	return nil
}

func (e *StageExecutor) update(id string, mutate func(*queue.Item)) {
	e.store.Update(id, mutate)
}

// progressFunc folds per-stage progress into overall item progress. Each of
// the pipeline's stages owns an equal slice of the 0-100 range.
func (e *StageExecutor) progressFunc(id string, st stage.Name) backend.ProgressFunc {
	return func(p sse.Progress) {
		step := p.Step
		if step == "" {
			step = st.Label()
		}
		overall := overallPercent(st, p.Percent)
		e.store.Update(id, func(it *queue.Item) {
			it.SetProgress(step, overall)
		})
	}
}

func overallPercent(st stage.Name, stagePercent float64) float64 {
	idx := st.Index()
	if idx < 0 {
		idx = 0
	}
	if stagePercent < 0 {
		stagePercent = 0
	}
	if stagePercent > 100 {
		stagePercent = 100
	}
	overall := (float64(idx) + stagePercent/100) / float64(stage.Count()) * 100
	if overall > 100 {
		overall = 100
	}
	return overall
}

// stageInput assembles the request material a stage may need from the item's
// current state and caches.
func stageInput(item *queue.Item) backend.StageInput {
	return backend.StageInput{
		ProductionID:     item.ProductionID,
		ScriptText:       item.ScriptText,
		PresetName:       item.PresetName,
		VoiceID:          item.VoiceID,
		Scenes:           item.Artifacts.Scenes,
		VoiceFiles:       item.Artifacts.VoiceFiles,
		Keywords:         item.Artifacts.Keywords,
		Direction:        item.Artifacts.Direction,
		VideoPrompts:     item.Artifacts.VideoPrompts,
		Entities:         item.Artifacts.Entities,
		ReferencePrompts: item.Artifacts.ReferencePrompts,
		ScenePlan:        item.Artifacts.ScenePlan,
	}
}
