package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/logging"
	"go-insights-pipeline/internal/model"
)

type recordingObserver struct {
	mu      sync.Mutex
	stages  []string
	dropped map[string]int
	runs    []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{dropped: map[string]int{}}
}

func (o *recordingObserver) StageFinished(stage Stage, status string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, string(stage)+":"+status)
}

func (o *recordingObserver) RowsDropped(reason string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped[reason] += n
}

func (o *recordingObserver) RunFinished(status string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, status)
}

func TestPipelineTracker(t *testing.T) {
	obs := newRecordingObserver()
	tracker := NewPipelineTracker("run-1", logging.Discard(), obs)

	tracker.StartStage(StageIngest, 0)
	tracker.EndStage(StageIngest, 10)
	tracker.StartStage(StageClean, 10)
	tracker.RecordDrops(model.CleaningReport{OutOfRange: 3, MissingRequired: 1})
	tracker.EndStage(StageClean, 6)
	tracker.Complete(model.StatusCompleted)

	m := tracker.GetMetrics()
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, model.StatusCompleted, m.Status)
	assert.Empty(t, m.FailedStage)
	require.Len(t, m.Stages, 2)
	assert.Equal(t, "clean", m.Stages[1].StageName)
	assert.Equal(t, 10, m.Stages[1].RecordsIn)
	assert.Equal(t, 6, m.Stages[1].RecordsOut)
	assert.Equal(t, model.StatusCompleted, m.Stages[1].Status)
	assert.False(t, m.EndTime.Before(m.StartTime))

	assert.Equal(t, []string{"ingest:completed", "clean:completed"}, obs.stages)
	assert.Equal(t, map[string]int{model.ReasonOutOfRange: 3, model.ReasonMissingRequired: 1}, obs.dropped)
	assert.Equal(t, []string{model.StatusCompleted}, obs.runs)
}

func TestPipelineTrackerFailure(t *testing.T) {
	obs := newRecordingObserver()
	tracker := NewPipelineTracker("run-2", logging.Discard(), obs)

	tracker.StartStage(StageEnrich, 4)
	tracker.FailStage(StageEnrich, errors.New("bad derivation"))
	tracker.Fail()

	m := tracker.GetMetrics()
	assert.Equal(t, model.StatusFailed, m.Status)
	assert.Equal(t, "enrich", m.FailedStage)
	require.Len(t, m.Stages, 1)
	assert.Equal(t, "bad derivation", m.Stages[0].Error)
	assert.Equal(t, []string{model.StatusFailed}, obs.runs)
}

func TestPipelineTrackerMetricsAreCopies(t *testing.T) {
	tracker := NewPipelineTracker("run-3", logging.Discard(), nil)
	tracker.StartStage(StageIngest, 0)
	tracker.EndStage(StageIngest, 1)

	m := tracker.GetMetrics()
	m.Stages[0].StageName = "changed"
	assert.Equal(t, "ingest", tracker.GetMetrics().Stages[0].StageName)
}
