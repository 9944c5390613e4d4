package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/model"
)

// writeFile creates name under a fresh temp dir and returns its path
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func ingestString(t *testing.T, content string) model.Dataset {
	t.Helper()
	ds, err := Ingest(strings.NewReader(content), IngestOptions{})
	require.NoError(t, err)
	return ds
}

func bound(f float64) *float64 { return &f }

// listings is a small fixture with a text group, a numeric price and a
// numeric score
func listings(t *testing.T) model.Dataset {
	t.Helper()
	return ingestString(t, strings.Join([]string{
		"name,room,price,score",
		"a,entire,100,4",
		"b,private,40,5",
		"c,entire,120,3",
		"d,shared,20,",
		"e,private,60,2",
		"f,,80,1",
	}, "\n")+"\n")
}

func numbers(res model.AggregateResult, col int) []float64 {
	out := make([]float64, len(res.Rows))
	for i, row := range res.Rows {
		out[i] = row[col].Num
	}
	return out
}

func strs(res model.AggregateResult, col int) []string {
	out := make([]string, len(res.Rows))
	for i, row := range res.Rows {
		out[i] = row[col].String()
	}
	return out
}
