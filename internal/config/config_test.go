package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/model"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: 9000
  read_timeout: 5s
logging:
  level: debug
  format: text
jobs:
  parallelism: 0
`)
	t.Setenv("PIPELINE_SERVER_PORT", "9100")
	t.Setenv("PIPELINE_STORE_DB_PATH", "/tmp/runs.db")
	t.Setenv("PIPELINE_JOBS_TIMEOUT", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout, "defaults survive a partial file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.DBPath)
	assert.Equal(t, 90*time.Second, cfg.Jobs.Timeout)
	assert.Equal(t, 1, cfg.Jobs.Parallelism)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port", map[string]string{"PIPELINE_SERVER_PORT": "70000"}},
		{"level", map[string]string{"PIPELINE_LOGGING_LEVEL": "loud"}},
		{"format", map[string]string{"PIPELINE_LOGGING_FORMAT": "xml"}},
		{"timeout", map[string]string{"PIPELINE_JOBS_TIMEOUT": "0s"}},
		{"unparseable", map[string]string{"PIPELINE_SERVER_PORT": "eighty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadJobSpecYAML(t *testing.T) {
	path := writeConfig(t, "job.yaml", `
name: steam
source:
  path: games.csv
  hints:
    date_release: date
rules:
  columns:
    - column: price_final
      numeric: true
      required: true
      range:
        min: 0
        max: 100
        inclusive: true
derivations:
  - name: release_year
    op: year
    columns: [date_release]
requests:
  - name: above_50
    op: filter-threshold
    column: price_final
    predicate:
      op: ">"
      threshold: 50
export:
  formats: [csv, xlsx]
  render:
    float_precision: 2
workers:
  summarize: 3
job_timeout: 2m
`)
	spec, err := LoadJobSpec(path)
	require.NoError(t, err)

	assert.Equal(t, "steam", spec.Name)
	assert.Equal(t, model.TypeDate, spec.Source.Hints["date_release"])
	require.Len(t, spec.Rules.Columns, 1)
	rule := spec.Rules.Columns[0]
	assert.True(t, rule.NumericCoerce)
	require.NotNil(t, rule.Range)
	assert.True(t, rule.Range.Inclusive)
	assert.Equal(t, 100.0, *rule.Range.Max)
	require.NotNil(t, spec.Requests[0].Predicate)
	assert.Equal(t, 50.0, spec.Requests[0].Predicate.Threshold)
	assert.Equal(t, []string{"csv", "xlsx"}, spec.Export.Formats)
	assert.Equal(t, 2, spec.Export.Render.FloatPrecision)
	assert.Equal(t, 3, spec.Workers.Summarize)
	assert.Equal(t, "2m", spec.JobTimeout)
}

func TestLoadJobSpecJSON(t *testing.T) {
	path := writeConfig(t, "job.json", `{
  "name": "grades",
  "source": {"path": "grades.csv"},
  "rules": {"columns": [{"column": "Moyenne", "numeric": true}]},
  "requests": [{"op": "scalar-stat", "column": "Moyenne", "stat": "median"}]
}`)
	spec, err := LoadJobSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "grades", spec.Name)
	assert.Equal(t, "median", spec.Requests[0].Stat)
}

func TestValidateJobSpec(t *testing.T) {
	valid := model.PipelineJobSpec{
		Name:     "ok",
		Source:   model.Source{Path: "x.csv"},
		Requests: []model.AggregateRequest{{Op: model.OpTopN, Column: "price", N: 3}},
	}
	require.NoError(t, ValidateJobSpec(valid))

	tests := []struct {
		name  string
		edit  func(*model.PipelineJobSpec)
		field string
	}{
		{"no name", func(s *model.PipelineJobSpec) { s.Name = "" }, "name"},
		{"no source", func(s *model.PipelineJobSpec) { s.Source.Path = "" }, "path"},
		{"long delimiter", func(s *model.PipelineJobSpec) { s.Source.Delimiter = ";;" }, "delimiter"},
		{"bad op", func(s *model.PipelineJobSpec) { s.Requests[0].Op = "pivot" }, "op"},
		{"bad order", func(s *model.PipelineJobSpec) { s.Requests[0].Order = "random" }, "order"},
		{"bad predicate", func(s *model.PipelineJobSpec) { s.Requests[0].Predicate = &model.Predicate{Op: "~"} }, "op"},
		{"bad derivation", func(s *model.PipelineJobSpec) {
			s.Derivations = []model.DerivationSpec{{Name: "d", Op: "median", Columns: []string{"a"}}}
		}, "op"},
		{"bad format", func(s *model.PipelineJobSpec) { s.Export = &model.Export{Formats: []string{"pdf"}} }, "formats"},
		{"negative workers", func(s *model.PipelineJobSpec) { s.Workers.Summarize = -1 }, "summarize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			spec.Requests = append([]model.AggregateRequest(nil), valid.Requests...)
			tt.edit(&spec)
			err := ValidateJobSpec(spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
