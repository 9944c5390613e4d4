package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"go-insights-pipeline/internal/model"
)

// Observer receives run telemetry; internal/metrics implements it with
// prometheus collectors
type Observer interface {
	StageFinished(stage Stage, status string, d time.Duration)
	RowsDropped(reason string, n int)
	RunFinished(status string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) StageFinished(Stage, string, time.Duration) {}
func (nopObserver) RowsDropped(string, int)                   {}
func (nopObserver) RunFinished(string, time.Duration)         {}

// PipelineTracker records stage timings and row counts for one run
type PipelineTracker struct {
	mu       sync.RWMutex
	metrics  model.RunMetrics
	current  map[Stage]int
	logger   *slog.Logger
	observer Observer
}

// NewPipelineTracker creates a tracker for runID. A nil observer is allowed.
func NewPipelineTracker(runID string, logger *slog.Logger, observer Observer) *PipelineTracker {
	if observer == nil {
		observer = nopObserver{}
	}
	return &PipelineTracker{
		metrics: model.RunMetrics{
			RunID:     runID,
			StartTime: time.Now(),
			Status:    model.StatusRunning,
		},
		current:  make(map[Stage]int),
		logger:   logger.With("run_id", runID),
		observer: observer,
	}
}

// StartStage marks the start of a pipeline stage
func (pt *PipelineTracker) StartStage(stage Stage, recordsIn int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.current[stage] = len(pt.metrics.Stages)
	pt.metrics.Stages = append(pt.metrics.Stages, model.StageMetrics{
		StageName: string(stage),
		StartTime: time.Now(),
		RecordsIn: recordsIn,
		Status:    model.StatusRunning,
	})
	pt.logger.Debug("stage started", "stage", stage, "records_in", recordsIn)
}

// EndStage marks the end of a pipeline stage
func (pt *PipelineTracker) EndStage(stage Stage, recordsOut int) {
	sm := pt.finish(stage, model.StatusCompleted, recordsOut, nil)
	pt.logger.Info("stage completed", "stage", stage,
		"records_in", sm.RecordsIn, "records_out", recordsOut, "duration", sm.Duration)
}

// FailStage marks a stage as failed and the run as failed at that stage
func (pt *PipelineTracker) FailStage(stage Stage, err error) {
	sm := pt.finish(stage, model.StatusFailed, 0, err)

	pt.mu.Lock()
	pt.metrics.FailedStage = string(stage)
	pt.mu.Unlock()

	pt.logger.Error("stage failed", "stage", stage, "duration", sm.Duration, "error", err)
}

func (pt *PipelineTracker) finish(stage Stage, status string, recordsOut int, err error) model.StageMetrics {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	i, ok := pt.current[stage]
	if !ok {
		i = len(pt.metrics.Stages)
		pt.metrics.Stages = append(pt.metrics.Stages, model.StageMetrics{StageName: string(stage), StartTime: time.Now()})
	}
	sm := &pt.metrics.Stages[i]
	sm.EndTime = time.Now()
	sm.Duration = sm.EndTime.Sub(sm.StartTime)
	sm.RecordsOut = recordsOut
	sm.Status = status
	if err != nil {
		sm.Error = err.Error()
	}
	delete(pt.current, stage)

	pt.observer.StageFinished(stage, status, sm.Duration)
	return *sm
}

// RecordDrops forwards cleaning drop counts to the observer
func (pt *PipelineTracker) RecordDrops(report model.CleaningReport) {
	for _, reason := range model.DropReasons {
		if n := report.Count(reason); n > 0 {
			pt.observer.RowsDropped(reason, n)
		}
	}
}

// Complete closes the run with status, which is completed or degraded
func (pt *PipelineTracker) Complete(status string) {
	d := pt.close(status)
	pt.logger.Info("pipeline finished", "status", status, "duration", d)
}

// Fail marks the pipeline as failed
func (pt *PipelineTracker) Fail() {
	d := pt.close(model.StatusFailed)
	pt.logger.Error("pipeline failed", "failed_stage", pt.GetMetrics().FailedStage, "duration", d)
}

func (pt *PipelineTracker) close(status string) time.Duration {
	pt.mu.Lock()
	now := time.Now()
	pt.metrics.EndTime = now
	pt.metrics.Duration = now.Sub(pt.metrics.StartTime)
	pt.metrics.Status = status
	d := pt.metrics.Duration
	pt.mu.Unlock()

	pt.observer.RunFinished(status, d)
	return d
}

// GetMetrics returns a copy of the current run metrics
func (pt *PipelineTracker) GetMetrics() model.RunMetrics {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	m := pt.metrics
	m.Stages = make([]model.StageMetrics, len(pt.metrics.Stages))
	copy(m.Stages, pt.metrics.Stages)
	return m
}
