package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go-insights-pipeline/internal/config"
	"go-insights-pipeline/internal/logging"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
	"go-insights-pipeline/internal/presets"
	"go-insights-pipeline/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one job and returns the process exit code: 2 for bad
// arguments or an invalid job, 1 for a failed run.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	flags.SetOutput(stderr)
	specPath := flags.String("spec", "", "job spec file (.yaml, .yml or .json)")
	preset := flags.String("preset", "", "built-in job: "+strings.Join(presets.Names(), ", "))
	in := flags.String("in", "", "input file, overrides the job source")
	out := flags.String("out", "", "output directory for rendered artifacts")
	formats := flags.String("formats", "", "comma-separated export formats (csv,json,xlsx,sqlite)")
	configPath := flags.String("config", "", "optional YAML config file")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := logging.NewWithWriter(stderr, cfg.Logging)

	job, err := loadJob(*specPath, *preset, *in)
	if err != nil {
		logger.Error("failed to load job", "error", err)
		return 2
	}
	if *formats != "" {
		if job.Export == nil {
			job.Export = &model.Export{}
		}
		job.Export.Formats = strings.Split(*formats, ",")
	}
	if *out != "" && job.Export != nil {
		job.Export.Dir = *out
	}
	if job.Export != nil && job.Export.Dir == "" {
		job.Export.Dir = cfg.Jobs.OutputDir
	}
	if job.Workers.Summarize == 0 {
		job.Workers.Summarize = cfg.Jobs.Parallelism
	}
	if job.JobTimeout == "" {
		job.JobTimeout = cfg.Jobs.Timeout.String()
	}
	if err := config.ValidateJobSpec(job); err != nil {
		logger.Error("invalid job", "error", err)
		return 2
	}

	opts := pipeline.RunOptions{Logger: logger}
	if job.Export != nil && containsFormat(job.Export.Formats, "sqlite") {
		st, err := store.Open(cfg.Store.DBPath, logger)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			return 1
		}
		defer st.Close()
		opts.Saver = st
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := pipeline.Run(ctx, job, opts)
	if err != nil {
		logger.Error("pipeline failed", "run_id", res.RunID, "error", err)
		return 1
	}

	render := model.RenderConfig{}
	if job.Export != nil {
		render = job.Export.Render
	}
	if err := pipeline.WriteReport(stdout, res.Report(job.Name), render); err != nil {
		logger.Error("failed to write report", "error", err)
		return 1
	}
	for _, e := range res.Exports {
		logger.Info("artifact written", "type", e.Type, "path", e.Path, "records", e.RecordCount)
	}
	return 0
}

func loadJob(specPath, preset, in string) (model.PipelineJobSpec, error) {
	var (
		job model.PipelineJobSpec
		err error
	)
	switch {
	case specPath != "" && preset != "":
		return job, fmt.Errorf("-spec and -preset are mutually exclusive")
	case specPath != "":
		job, err = config.LoadJobSpec(specPath)
	case preset != "":
		if in == "" {
			return job, fmt.Errorf("-preset needs -in")
		}
		job, err = presets.Get(preset, in)
	default:
		return job, fmt.Errorf("one of -spec or -preset is required")
	}
	if err != nil {
		return job, err
	}
	if in != "" {
		job.Source.Path = in
	}
	return job, nil
}

func containsFormat(formats []string, f string) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}
