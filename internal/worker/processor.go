package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nlaakstudios/storyboard-studio/config"
	"github.com/nlaakstudios/storyboard-studio/internal/database"
	"github.com/nlaakstudios/storyboard-studio/internal/models"
	"github.com/nlaakstudios/storyboard-studio/internal/services"
	"github.com/nlaakstudios/storyboard-studio/internal/services/ai"
	"github.com/nlaakstudios/storyboard-studio/pkg/logger"
	"github.com/nlaakstudios/storyboard-studio/pkg/storyboard"
)

// Processor runs the one build phase a queued job goes through: hand the
// build's lyrics (plus whatever optional audio/MIDI/LLM inputs it carries)
// to storyboard.Build and persist the result. This collapses the teacher's
// five-phase video pipeline (audio analysis, lyrics, images, render,
// upload) into the single phase spec.md's Coordinator already owns.
type Processor struct {
	buildRepo   *database.BuildRepository
	broadcaster *services.ProgressBroadcaster
	config      *config.Config
	llmClient   storyboard.LLMCapability
}

// NewProcessor creates a new processor.
func NewProcessor(
	buildRepo *database.BuildRepository,
	broadcaster *services.ProgressBroadcaster,
	cfg *config.Config,
) *Processor {
	return &Processor{
		buildRepo:   buildRepo,
		broadcaster: broadcaster,
		config:      cfg,
		llmClient:   ai.NewClient(cfg.LLMURL),
	}
}

// Process builds one storyboard for a queued item.
func (p *Processor) Process(ctx context.Context, item *models.QueueItem) error {
	build, err := p.buildRepo.GetByID(item.BuildID)
	if err != nil {
		return fmt.Errorf("failed to load build record: %w", err)
	}
	if build == nil {
		return fmt.Errorf("build %s not found", item.BuildID)
	}

	buildLog, err := logger.NewBuildLogger(p.config.StoragePath, build.ID)
	if err != nil {
		log.Printf("Warning: failed to create build logger: %v", err)
		buildLog = nil
	}
	if buildLog != nil {
		buildLog.Info("Starting storyboard build for build %s", build.ID)
		buildLog.Property("Build ID", build.ID)
		buildLog.Property("Style", build.Style)
		defer func() {
			if r := recover(); r != nil {
				buildLog.Error("Build panicked: %v", r)
				buildLog.Close(false, fmt.Sprintf("Panic: %v", r))
			}
		}()
	}

	p.updateStep(item, "Building storyboard")
	if buildLog != nil {
		buildLog.Phase("BUILD STORYBOARD", "Parsing, solving, and assembling scenes")
	}

	bridge := storyboard.NewBridge(p.llmClient, p.config.LLMModel)
	in := storyboard.BuildInput{
		RawText: build.LyricsText,
		Style:   build.Style,
		LLM:     storyboard.NewLineDurationEstimator(bridge, 0),
	}

	sb, diags, err := storyboard.Build(ctx, in)
	if err != nil {
		if buildLog != nil {
			buildLog.Error("Build failed: %v", err)
			buildLog.Close(false, err.Error())
		}
		if uerr := p.buildRepo.UpdateError(build.ID, err.Error()); uerr != nil {
			log.Printf("Warning: failed to record build error: %v", uerr)
		}
		return fmt.Errorf("storyboard build failed: %w", err)
	}

	if buildLog != nil {
		var instrumental, batched int
		for _, sc := range sb.Scenes {
			if sc.Metadata.IsInstrumental {
				instrumental++
			}
			if sc.Metadata.BatchedCount > 1 {
				batched++
			}
		}
		buildLog.SceneSummary(len(sb.Scenes), instrumental, batched, sb.TotalDurationMS)
		for _, d := range diags {
			buildLog.Diagnostic(d.LineNumber, d.Message)
		}
	}

	sbJSON, err := json.Marshal(sb)
	if err != nil {
		return fmt.Errorf("failed to marshal storyboard: %w", err)
	}
	diagsJSON, err := json.Marshal(diags)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	if err := p.buildRepo.UpdateResult(build.ID, string(sbJSON), string(diagsJSON)); err != nil {
		if buildLog != nil {
			buildLog.Error("Failed to persist build result: %v", err)
		}
		return fmt.Errorf("failed to persist build result: %w", err)
	}

	if buildLog != nil {
		buildLog.Success("Storyboard build completed successfully")
		buildLog.Close(true, "Build completed without errors")
	}

	return nil
}

func (p *Processor) updateStep(item *models.QueueItem, step string) {
	item.CurrentStep = step
	p.broadcaster.BroadcastFromQueueItem(item, step)
	log.Printf("[Queue %d] %s", item.ID, step)
}
