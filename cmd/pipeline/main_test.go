package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJob(t *testing.T) {
	spec := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(spec, []byte("name: custom\nsource:\n  path: a.csv\nrequests: []\n"), 0644))

	job, err := loadJob(spec, "", "")
	require.NoError(t, err)
	assert.Equal(t, "custom", job.Name)
	assert.Equal(t, "a.csv", job.Source.Path)

	job, err = loadJob(spec, "", "b.csv")
	require.NoError(t, err)
	assert.Equal(t, "b.csv", job.Source.Path, "-in overrides the job source")

	job, err = loadJob("", "grades", "grades.csv")
	require.NoError(t, err)
	assert.Equal(t, "grades", job.Name)
	assert.Equal(t, "grades.csv", job.Source.Path)
}

func TestLoadJobErrors(t *testing.T) {
	_, err := loadJob("", "", "")
	assert.Error(t, err)
	_, err = loadJob("job.yaml", "steam", "x.csv")
	assert.Error(t, err)
	_, err = loadJob("", "steam", "")
	assert.Error(t, err)
	_, err = loadJob("", "unknown", "x.csv")
	assert.Error(t, err)
}

func TestContainsFormat(t *testing.T) {
	assert.True(t, containsFormat([]string{"csv", "sqlite"}, "sqlite"))
	assert.False(t, containsFormat(nil, "csv"))
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	t.Setenv("PIPELINE_STORE_DB_PATH", db)
	data := filepath.Join(dir, "grades.csv")
	require.NoError(t, os.WriteFile(data, []byte("Nom,Type,Moyenne\nAna,Etudiant,16\nBob,Etudiant,12\n"), 0644))
	out := filepath.Join(dir, "out")
	args := []string{"-preset", "grades", "-in", data, "-out", out, "-formats", "csv,sqlite"}

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(args, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "== grades ==")
	assert.FileExists(t, db)
	matches, err := filepath.Glob(filepath.Join(out, "*", "csv", "mean.csv"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// the store is closed on return, so the next run opens it again
	stdout.Reset()
	require.Equal(t, 0, run(args, &stdout, &stderr), stderr.String())

	assert.Equal(t, 2, run([]string{"-preset", "grades"}, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-bogus"}, &stdout, &stderr))
	assert.Equal(t, 1, run([]string{"-preset", "grades", "-in", filepath.Join(dir, "missing.csv")}, &stdout, &stderr))
}
