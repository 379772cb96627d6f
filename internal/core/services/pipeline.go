package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
)

// Step is one stage of the fixed pipeline. Run consumes a state snapshot
// and returns an updated copy; it must not mutate fields produced by
// earlier steps. An error from Run is fatal to the job — steps that are
// allowed to degrade handle their own failures and return nil.
type Step interface {
	Name() string
	// Checkpoint is the progress written on entry to this step.
	Checkpoint() (percent int, message string)
	Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error)
	// Snapshot is the step's contribution to the state cache.
	Snapshot(state domain.PipelineState) any
}

// PipelineOrchestrator sequences the content-processing steps for one job:
// caption acquisition, report structuring, visual planning, rendering, and
// merging. It owns the Job for the duration of a run; the outside world
// observes it only through the ProgressStore and EventBus.
type PipelineOrchestrator struct {
	logger   *slog.Logger
	progress *ProgressStore
	events   *EventBus
	jobs     ports.JobStore // may be nil; updates are fire-and-forget

	steps []Step
}

func NewPipelineOrchestrator(
	logger *slog.Logger,
	progress *ProgressStore,
	events *EventBus,
	jobs ports.JobStore,
	acquisition *ContentAcquisition,
	structurer *ReportStructurer,
	planner *VisualizationPlanner,
	renderer *VisualizationRenderer,
	merger *ReportMerger,
) *PipelineOrchestrator {
	return &PipelineOrchestrator{
		logger:   logger,
		progress: progress,
		events:   events,
		jobs:     jobs,
		steps: []Step{
			&acquireStep{acquisition},
			&structureStep{structurer},
			&planStep{planner},
			&renderStep{renderer},
			&mergeStep{merger},
		},
	}
}

// Run executes the full pipeline for one job. On success the returned state
// carries the final output; on failure the job is marked failed (progress
// sentinel -1, message set) and the error is returned to the caller so
// upstream job tracking can react too.
func (o *PipelineOrchestrator) Run(ctx context.Context, jobID domain.JobID, userID, youtubeURL string) (domain.PipelineState, error) {
	if jobID == "" {
		jobID = domain.JobID(uuid.New().String())
	}
	if userID == "" {
		userID = domain.AnonymousUser
	}

	state := domain.PipelineState{
		JobID:      jobID,
		UserID:     userID,
		YoutubeURL: youtubeURL,
	}

	o.logger.Info("pipeline started", "job_id", jobID, "url", youtubeURL)
	o.setProgress(jobID, 0, "analysis started")
	o.updateJobStatus(ctx, jobID, domain.JobStatusRunning, "")

	start := time.Now()
	for _, step := range o.steps {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, state, fmt.Errorf("cancelled: %w", err))
		}

		percent, message := step.Checkpoint()
		o.setProgress(jobID, percent, message)
		o.publish(jobID, EventStepStarted, map[string]any{"step": step.Name()})

		stepStart := time.Now()
		next, err := step.Run(ctx, state)
		if err != nil {
			return o.fail(ctx, state, err)
		}
		state = next

		bestEffort(o.logger, "save step state", func() error {
			return o.progress.SaveStepState(jobID, step.Name(), step.Snapshot(state))
		})
		o.publish(jobID, EventStepCompleted, map[string]any{
			"step":        step.Name(),
			"duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	o.setProgress(jobID, 100, "analysis complete")
	o.finishJob(ctx, state)
	o.publish(jobID, EventPipelineCompleted, map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"sections":    len(state.FinalOutput.Sections),
	})
	o.logger.Info("pipeline completed", "job_id", jobID, "duration_ms", time.Since(start).Milliseconds())

	return state, nil
}

func (o *PipelineOrchestrator) fail(ctx context.Context, state domain.PipelineState, err error) (domain.PipelineState, error) {
	o.logger.Error("pipeline failed", "job_id", state.JobID, "error", err)
	o.setProgress(state.JobID, domain.ProgressFailed, fmt.Sprintf("analysis failed: %v", err))
	o.updateJobStatus(ctx, state.JobID, domain.JobStatusFailed, "")
	o.publish(state.JobID, EventPipelineFailed, map[string]any{"error": err.Error()})
	return state, err
}

func (o *PipelineOrchestrator) finishJob(ctx context.Context, state domain.PipelineState) {
	reportKey := ReportKey(state.UserID, state.JobID)
	o.updateJobStatus(ctx, state.JobID, domain.JobStatusCompleted, reportKey)
	if o.jobs != nil {
		bestEffort(o.logger, "create report record", func() error {
			return o.jobs.CreateReport(context.WithoutCancel(ctx), state.JobID, state.UserID, reportKey)
		})
	}
}

func (o *PipelineOrchestrator) setProgress(jobID domain.JobID, percent int, message string) {
	bestEffort(o.logger, "update progress", func() error {
		return o.progress.SetProgress(jobID, percent, message)
	})
}

// updateJobStatus records the terminal/running status in the relational
// store. Detached from ctx so a cancelled run can still record failure.
func (o *PipelineOrchestrator) updateJobStatus(ctx context.Context, jobID domain.JobID, status domain.JobStatus, resultKey string) {
	if o.jobs == nil {
		return
	}
	bestEffort(o.logger, "update job status", func() error {
		return o.jobs.UpdateStatus(context.WithoutCancel(ctx), jobID, status, resultKey)
	})
}

func (o *PipelineOrchestrator) publish(jobID domain.JobID, eventType EventType, data map[string]any) {
	if o.events == nil {
		return
	}
	payload, _ := json.Marshal(data)
	o.events.Publish(Event{
		JobID:     string(jobID),
		Type:      eventType,
		Data:      string(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}

// --- step implementations ---

type acquireStep struct {
	svc *ContentAcquisition
}

func (s *acquireStep) Name() string                     { return "caption" }
func (s *acquireStep) Checkpoint() (int, string)        { return 20, "extracting captions" }
func (s *acquireStep) Snapshot(st domain.PipelineState) any {
	return map[string]any{"caption": st.Caption}
}

func (s *acquireStep) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	caption, err := s.svc.Fetch(ctx, state.YoutubeURL, state.UserID)
	if err != nil {
		return state, err
	}
	state.Caption = caption
	return state, nil
}

type structureStep struct {
	svc *ReportStructurer
}

func (s *structureStep) Name() string              { return "report" }
func (s *structureStep) Checkpoint() (int, string) { return 40, "structuring report" }
func (s *structureStep) Snapshot(st domain.PipelineState) any {
	return map[string]any{"report_text": st.ReportText}
}

func (s *structureStep) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	report, err := s.svc.Structure(ctx, state.Caption)
	if err != nil {
		return state, err
	}
	state.ReportText = report
	return state, nil
}

type planStep struct {
	svc *VisualizationPlanner
}

func (s *planStep) Name() string              { return "plan" }
func (s *planStep) Checkpoint() (int, string) { return 50, "planning visuals" }
func (s *planStep) Snapshot(st domain.PipelineState) any {
	return map[string]any{"visual_plan": st.VisualPlan}
}

func (s *planStep) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	state.VisualPlan = s.svc.Plan(ctx, state.ReportText)
	return state, nil
}

type renderStep struct {
	svc *VisualizationRenderer
}

func (s *renderStep) Name() string              { return "render" }
func (s *renderStep) Checkpoint() (int, string) { return 70, "rendering visuals" }
func (s *renderStep) Snapshot(st domain.PipelineState) any {
	return map[string]any{"visual_results": st.VisualResults}
}

func (s *renderStep) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	state.VisualResults = s.svc.Render(ctx, state.VisualPlan)
	return state, nil
}

type mergeStep struct {
	svc *ReportMerger
}

func (s *mergeStep) Name() string              { return "merge" }
func (s *mergeStep) Checkpoint() (int, string) { return 90, "merging report" }
func (s *mergeStep) Snapshot(st domain.PipelineState) any {
	return map[string]any{"final_output": st.FinalOutput}
}

func (s *mergeStep) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	out := s.svc.Merge(ctx, state)
	state.FinalOutput = &out
	return state, nil
}
