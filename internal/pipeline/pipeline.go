package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/utils"
)

// RunOptions carries the collaborators of a run. Everything is optional.
type RunOptions struct {
	RunID       string       // generated when empty
	Logger      *slog.Logger // defaults to slog.Default()
	Observer    Observer
	OutputDir   string       // artifact directory, overrides the job's export dir
	Saver       ResultSaver  // backs the sqlite export format
	Derivations []Derivation // applied after the job's own derivations
}

// RunResult is the outcome of one run. On failure it holds whatever the
// stages before the failing one produced.
type RunResult struct {
	RunID       string                  `json:"run_id"`
	Status      string                  `json:"status"`
	Dataset     model.Dataset           `json:"-"`
	Fingerprint string                  `json:"fingerprint,omitempty"`
	Cleaning    model.CleaningReport    `json:"cleaning"`
	Results     []model.AggregateResult `json:"results"`
	Failures    []error                 `json:"-"`
	Exports     []model.ExportResult    `json:"exports,omitempty"`
	Metrics     model.RunMetrics        `json:"metrics"`
}

// Report builds the console report for the run
func (r *RunResult) Report(title string) RunReport {
	return RunReport{
		Title:    title,
		Dataset:  r.Dataset,
		Cleaning: r.Cleaning,
		Results:  r.Results,
		Failures: r.Failures,
	}
}

// Run executes ingest, clean, enrich, summarize and render for one job. Stage
// errors abort the run; failed summarize requests only degrade it.
func Run(ctx context.Context, job model.PipelineJobSpec, opts RunOptions) (res *RunResult, err error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("job", job.Name)

	tracker := NewPipelineTracker(runID, logger, opts.Observer)
	res = &RunResult{RunID: runID, Status: model.StatusRunning}
	defer func() {
		if err != nil {
			tracker.Fail()
			res.Status = model.StatusFailed
		}
		res.Metrics = tracker.GetMetrics()
	}()

	if job.JobTimeout != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, utils.ParseDuration(job.JobTimeout))
		defer cancel()
	}

	// --- INGEST ---
	tracker.StartStage(StageIngest, 0)
	ds, err := IngestFile(job.Source.Path, OptionsFromSource(job.Source))
	if err != nil {
		tracker.FailStage(StageIngest, err)
		return res, err
	}
	tracker.EndStage(StageIngest, ds.Len())

	// --- CLEAN ---
	tracker.StartStage(StageClean, ds.Len())
	if err = CheckRules(ds.Schema, job.Rules); err != nil {
		tracker.FailStage(StageClean, err)
		return res, err
	}
	ds, res.Cleaning = Clean(ds, job.Rules)
	tracker.RecordDrops(res.Cleaning)
	tracker.EndStage(StageClean, ds.Len())
	if res.Cleaning.Dropped() > 0 {
		logger.Warn("rows dropped during cleaning",
			"input", res.Cleaning.Input,
			model.ReasonMissingRequired, res.Cleaning.MissingRequired,
			model.ReasonOutOfRange, res.Cleaning.OutOfRange,
			model.ReasonMalformedNumeric, res.Cleaning.MalformedNumeric,
			model.ReasonMalformedDate, res.Cleaning.MalformedDate)
	}

	// --- ENRICH ---
	tracker.StartStage(StageEnrich, ds.Len())
	derivations, err := BuildDerivations(job.Derivations)
	if err != nil {
		tracker.FailStage(StageEnrich, err)
		return res, err
	}
	derivations = append(derivations, opts.Derivations...)
	if ds, err = Enrich(ds, derivations); err != nil {
		tracker.FailStage(StageEnrich, err)
		return res, err
	}
	tracker.EndStage(StageEnrich, ds.Len())
	res.Dataset = ds
	res.Fingerprint = fmt.Sprintf("%016x", ds.Fingerprint())

	// --- SUMMARIZE ---
	tracker.StartStage(StageSummarize, ds.Len())
	results, err := Summarize(ctx, ds, job.Requests, SummarizeOptions{Parallelism: job.Workers.Summarize})
	res.Results = results
	var summaryErr *SummaryError
	if errors.As(err, &summaryErr) {
		res.Failures = summaryErr.Failures
		for _, f := range summaryErr.Failures {
			logger.Warn("summarize request failed", "error", f)
		}
		err = nil
	}
	if err != nil {
		tracker.FailStage(StageSummarize, err)
		return res, err
	}
	tracker.EndStage(StageSummarize, len(results))

	// --- RENDER ---
	if job.Export != nil && len(job.Export.Formats) > 0 {
		tracker.StartStage(StageRender, len(results))
		dir := opts.OutputDir
		if dir == "" {
			dir, err = utils.NewOutputManager(job.Export.Dir).CreateRunOutputDir(runID)
			if err != nil {
				tracker.FailStage(StageRender, err)
				return res, &Error{Kind: KindRenderFailed, Stage: StageRender, Message: "output directory", Cause: err}
			}
		}
		var renderers []Renderer
		if renderers, err = BuildRenderers(*job.Export, dir, runID, opts.Saver); err != nil {
			tracker.FailStage(StageRender, err)
			return res, err
		}
		res.Exports, err = RenderAll(ctx, logger, renderers, results, job.Export.Render)
		if err != nil {
			tracker.FailStage(StageRender, err)
			return res, err
		}
		tracker.EndStage(StageRender, len(res.Exports))
	}

	res.Status = model.StatusCompleted
	if len(res.Failures) > 0 {
		res.Status = model.StatusDegraded
	}
	tracker.Complete(res.Status)
	return res, nil
}
