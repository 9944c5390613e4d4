package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"go-insights-pipeline/internal/config"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
	"go-insights-pipeline/internal/store"
	"go-insights-pipeline/pkg/utils"
)

// Version is reported by the info endpoint
const Version = "1.0"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// CreateResponse acknowledges an accepted run
type CreateResponse struct {
	Message   string    `json:"message"`
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Options configures a Handler
type Options struct {
	Store       *store.Store
	Logger      *slog.Logger
	Observer    pipeline.Observer
	Outputs     *utils.OutputManager
	JobTimeout  time.Duration
	Parallelism int
}

// Handler serves the pipeline API. Runs execute on background goroutines
// tracked by Wait.
type Handler struct {
	store       *store.Store
	logger      *slog.Logger
	observer    pipeline.Observer
	outputs     *utils.OutputManager
	jobTimeout  time.Duration
	parallelism int
	jobs        sync.WaitGroup
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	outputs := opts.Outputs
	if outputs == nil {
		outputs = utils.NewOutputManager("")
	}
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Handler{
		store:       opts.Store,
		logger:      logger.With("component", "api"),
		observer:    opts.Observer,
		outputs:     outputs,
		jobTimeout:  timeout,
		parallelism: opts.Parallelism,
	}
}

// Wait blocks until every background run has finished
func (h *Handler) Wait() { h.jobs.Wait() }

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, code int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		resp.Kind = string(pe.Kind)
	}
	if err != nil && code >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "path", r.URL.Path)
	}
	render.Status(r, code)
	render.JSON(w, r, resp)
}

// Welcome returns a greeting with the server time
// @Summary Welcome message
// @Tags service
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"message":   "Welcome to the insights pipeline service!",
		"status":    "success",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Info describes the service and its endpoints
// @Summary Service information
// @Tags service
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /info [get]
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"version":     Version,
		"description": "Tabular data pipeline service",
		"endpoints": map[string]string{
			"/":                              "Welcome message",
			"/info":                          "Service information",
			"/api/v1/pipelines":              "Create (POST) or list (GET) pipeline runs",
			"/api/v1/pipelines/{id}":         "Run details",
			"/api/v1/pipelines/{id}/results": "Aggregate results",
			"/api/v1/pipelines/{id}/errors":  "Recorded errors",
			"/api/v1/pipelines/{id}/report":  "Console report",
			"/metrics":                       "Prometheus metrics",
			"/swagger/*":                     "API documentation",
		},
	})
}

// CreatePipeline validates a job spec and starts it in the background
// @Summary Start a pipeline run
// @Tags pipelines
// @Accept json
// @Produce json
// @Param pipeline body model.PipelineJobSpec true "Job spec"
// @Success 202 {object} CreateResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /pipelines [post]
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var job model.PipelineJobSpec
	if err := render.DecodeJSON(r.Body, &job); err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid JSON payload", err)
		return
	}
	if err := config.ValidateJobSpec(job); err != nil {
		h.fail(w, r, http.StatusBadRequest, err.Error(), err)
		return
	}
	if job.Workers.Summarize == 0 {
		job.Workers.Summarize = h.parallelism
	}

	runID := uuid.New().String()
	if err := h.store.SaveRun(r.Context(), runID, job); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to save run", err)
		return
	}

	timeout := h.jobTimeout
	if job.JobTimeout != "" {
		timeout = utils.ParseDuration(job.JobTimeout)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	h.jobs.Add(1)
	go func() {
		defer h.jobs.Done()
		defer cancel()
		h.execute(ctx, runID, job)
	}()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, CreateResponse{
		Message:   "Pipeline created successfully!",
		RunID:     runID,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	})
}

// execute runs one job and records its outcome. Store writes use a fresh
// context so a timed-out run still gets recorded.
func (h *Handler) execute(ctx context.Context, runID string, job model.PipelineJobSpec) {
	logger := h.logger.With("run_id", runID)
	bg := context.Background()
	if err := h.store.UpdateRunStatus(bg, runID, model.StatusRunning); err != nil {
		logger.Error("failed to mark run running", "error", err)
	}

	opts := pipeline.RunOptions{RunID: runID, Logger: logger, Observer: h.observer, Saver: h.store}
	if job.Export != nil && len(job.Export.Formats) > 0 {
		dir, err := h.outputs.CreateRunOutputDir(runID)
		if err != nil {
			logger.Error("failed to create output directory", "error", err)
		}
		opts.OutputDir = dir
	}

	res, err := pipeline.Run(ctx, job, opts)

	if len(res.Results) > 0 {
		if serr := h.store.SaveResults(bg, runID, res.Results); serr != nil {
			logger.Error("failed to save results", "error", serr)
		}
	}
	for _, f := range res.Failures {
		h.saveError(bg, runID, string(pipeline.StageSummarize), f)
	}
	if err != nil {
		h.saveError(bg, runID, res.Metrics.FailedStage, err)
	}

	var report bytes.Buffer
	if err == nil {
		if rerr := pipeline.WriteReport(&report, res.Report(job.Name), renderConfig(job)); rerr != nil {
			logger.Error("failed to render report", "error", rerr)
		}
	}
	outcome := store.Outcome{
		Status:      res.Status,
		Fingerprint: res.Fingerprint,
		Cleaning:    res.Cleaning,
		Metrics:     res.Metrics,
		Report:      report.String(),
	}
	if ferr := h.store.FinishRun(bg, runID, outcome); ferr != nil {
		logger.Error("failed to finish run", "error", ferr)
	}
}

func (h *Handler) saveError(ctx context.Context, runID, stage string, err error) {
	kind := ""
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		kind = string(pe.Kind)
		if pe.Stage != "" {
			stage = string(pe.Stage)
		}
	}
	if serr := h.store.SaveRunError(ctx, runID, stage, kind, err); serr != nil {
		h.logger.Error("failed to save run error", "run_id", runID, "error", serr)
	}
}

func renderConfig(job model.PipelineJobSpec) model.RenderConfig {
	if job.Export != nil {
		return job.Export.Render
	}
	return model.RenderConfig{}
}

// ListPipelines lists every run
// @Summary List pipeline runs
// @Tags pipelines
// @Produce json
// @Success 200 {array} store.RunRecord
// @Failure 500 {object} ErrorResponse
// @Router /pipelines [get]
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch pipelines", err)
		return
	}
	render.JSON(w, r, runs)
}

// GetPipeline returns one run
// @Summary Get a pipeline run
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} store.RunRecord
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{id} [get]
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOr500(w, r, err)
		return
	}
	render.JSON(w, r, run)
}

// GetPipelineResults returns the aggregate results of a run
// @Summary Get run results
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{id}/results [get]
func (h *Handler) GetPipelineResults(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if !h.exists(w, r, runID) {
		return
	}
	results, err := h.store.GetResults(r.Context(), runID)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to retrieve results", err)
		return
	}

	type resultView struct {
		Name    string                   `json:"name"`
		Op      string                   `json:"op"`
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
		NoData  bool                     `json:"noData,omitempty"`
	}
	views := make([]resultView, len(results))
	for i, res := range results {
		views[i] = resultView{Name: res.Name, Op: res.Op, Columns: res.Columns, Rows: res.Maps(), NoData: res.NoData}
	}
	render.JSON(w, r, map[string]interface{}{
		"runId":   runID,
		"results": views,
		"count":   len(views),
	})
}

// GetPipelineErrors returns the errors recorded for a run
// @Summary Get run errors
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{id}/errors [get]
func (h *Handler) GetPipelineErrors(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if !h.exists(w, r, runID) {
		return
	}
	runErrors, err := h.store.GetErrors(r.Context(), runID)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to retrieve errors", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"runId":  runID,
		"errors": runErrors,
		"count":  len(runErrors),
	})
}

// GetPipelineReport returns the console report of a finished run
// @Summary Get run report
// @Tags pipelines
// @Produce plain
// @Param id path string true "Run ID"
// @Success 200 {string} string
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{id}/report [get]
func (h *Handler) GetPipelineReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOr500(w, r, err)
		return
	}
	if report == "" {
		h.fail(w, r, http.StatusNotFound, "report not available", nil)
		return
	}
	render.PlainText(w, r, report)
}

func (h *Handler) exists(w http.ResponseWriter, r *http.Request, runID string) bool {
	if _, err := h.store.GetRun(r.Context(), runID); err != nil {
		h.notFoundOr500(w, r, err)
		return false
	}
	return true
}

func (h *Handler) notFoundOr500(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, "run not found", err)
		return
	}
	h.fail(w, r, http.StatusInternalServerError, "failed to load run", err)
}
