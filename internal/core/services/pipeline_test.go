package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skaldhq/skald/internal/core/domain"
)

func newTestOrchestrator(t *testing.T, captions *fakeCaptions, gen *fakeTextGen) (*PipelineOrchestrator, *fakeStore, *fakeJobStore, *ProgressStore, *EventBus) {
	t.Helper()
	logger := testLogger()
	store := newFakeStore()
	jobs := newFakeJobStore()
	progress := NewProgressStore(logger, time.Minute)
	events := NewEventBus(logger)

	orch := NewPipelineOrchestrator(
		logger, progress, events, jobs,
		NewContentAcquisition(logger, captions, store),
		NewReportStructurer(logger, gen),
		NewVisualizationPlanner(logger, gen),
		NewVisualizationRenderer(logger, gen, nil, &fakeSandbox{writeArtifact: true}, store),
		NewReportMerger(logger, store, NewVideoInfoService(logger, "")),
	)
	return orch, store, jobs, progress, events
}

func TestPipelineHappyPath(t *testing.T) {
	gen := &fakeTextGen{responses: map[string]string{
		structurePrompt: "# Title\n\nFirst paragraph.\n\nSecond paragraph.",
		planPrompt:      `[{"type":"image","text":"an illustration"}]`,
	}}
	orch, store, jobs, progress, events := newTestOrchestrator(t, &fakeCaptions{caption: "raw transcript"}, gen)

	eventCh, unsub := events.Subscribe("job-1")
	defer unsub()

	state, err := orch.Run(context.Background(), "job-1", "alice", "https://youtu.be/abc123")
	require.NoError(t, err)

	require.NotNil(t, state.FinalOutput)
	assert.Equal(t, "json", state.FinalOutput.Format)
	assert.NotEmpty(t, state.FinalOutput.Sections)

	p, ok := progress.GetProgress("job-1")
	require.True(t, ok)
	assert.Equal(t, 100, p.Percent)

	// Every step checkpointed its intermediate state
	for _, step := range []string{"caption", "report", "plan", "render", "merge"} {
		_, ok := progress.GetStepState("job-1", step)
		assert.True(t, ok, "missing step state for %s", step)
	}

	// Job record transitioned running -> completed with a report row
	assert.Equal(t, domain.JobStatusCompleted, jobs.lastStatus())
	require.Len(t, jobs.reports, 1)
	assert.Equal(t, "reports/alice/job-1_report.json", jobs.reports[0])

	// Report persisted to storage under the same key
	_, err = store.Get(context.Background(), "reports/alice/job-1_report.json")
	assert.NoError(t, err)

	// Event stream: 5 step starts, 5 completions, one terminal event
	var started, completed int
	var terminal EventType
drain:
	for {
		select {
		case e := <-eventCh:
			switch e.Type {
			case EventStepStarted:
				started++
			case EventStepCompleted:
				completed++
			case EventPipelineCompleted, EventPipelineFailed:
				terminal = e.Type
				break drain
			}
		default:
			break drain
		}
	}
	assert.Equal(t, 5, started)
	assert.Equal(t, 5, completed)
	assert.Equal(t, EventPipelineCompleted, terminal)
}

func TestPipelineFailsFastOnMissingContent(t *testing.T) {
	gen := &fakeTextGen{response: "should never be called"}
	orch, _, jobs, progress, _ := newTestOrchestrator(t, &fakeCaptions{err: errors.New("provider down")}, gen)

	_, err := orch.Run(context.Background(), "job-2", "bob", "https://youtu.be/gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)

	p, ok := progress.GetProgress("job-2")
	require.True(t, ok)
	assert.Equal(t, domain.ProgressFailed, p.Percent)
	assert.Contains(t, p.Message, "analysis failed")

	assert.Equal(t, domain.JobStatusFailed, jobs.lastStatus())
	assert.Empty(t, jobs.reports)
}

func TestPipelineFailsOnStructuringError(t *testing.T) {
	gen := &fakeTextGen{err: errors.New("model offline")}
	orch, _, jobs, progress, _ := newTestOrchestrator(t, &fakeCaptions{caption: "transcript"}, gen)

	_, err := orch.Run(context.Background(), "job-3", "", "https://youtu.be/abc")
	require.Error(t, err)

	p, _ := progress.GetProgress("job-3")
	assert.Equal(t, domain.ProgressFailed, p.Percent)
	assert.Equal(t, domain.JobStatusFailed, jobs.lastStatus())
}

func TestPipelineDegradesWithoutVisuals(t *testing.T) {
	// Planner returns garbage: pipeline still completes, report has no visuals.
	gen := &fakeTextGen{responses: map[string]string{
		structurePrompt: "Only paragraph.",
		planPrompt:      "I'd rather not produce JSON today",
	}}
	orch, _, jobs, progress, _ := newTestOrchestrator(t, &fakeCaptions{caption: "transcript"}, gen)

	state, err := orch.Run(context.Background(), "job-4", "alice", "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Empty(t, state.VisualPlan)
	assert.Empty(t, state.VisualResults)

	p, _ := progress.GetProgress("job-4")
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, domain.JobStatusCompleted, jobs.lastStatus())
}

func TestPipelineHonoursCancellation(t *testing.T) {
	gen := &fakeTextGen{response: "whatever"}
	orch, _, jobs, _, _ := newTestOrchestrator(t, &fakeCaptions{caption: "transcript"}, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Run(ctx, "job-5", "alice", "https://youtu.be/abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.JobStatusFailed, jobs.lastStatus())
}

func TestPipelineGeneratesIDAndUser(t *testing.T) {
	gen := &fakeTextGen{responses: map[string]string{
		structurePrompt: "Para.",
		planPrompt:      `[]`,
	}}
	orch, _, _, _, _ := newTestOrchestrator(t, &fakeCaptions{caption: "transcript"}, gen)

	state, err := orch.Run(context.Background(), "", "", "https://youtu.be/abc")
	require.NoError(t, err)
	assert.NotEmpty(t, state.JobID)
	assert.Equal(t, domain.AnonymousUser, state.UserID)
}
