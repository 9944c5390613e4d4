package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/stats"
)

// RunReport is everything the console report prints for one run
type RunReport struct {
	Title    string
	Dataset  model.Dataset
	Cleaning model.CleaningReport
	Results  []model.AggregateResult
	Failures []error
}

// WriteReport prints a human-readable summary of a run: row count, scalar
// statistics of every numeric column, cleaning drop counts, each result table
// and the failed requests.
func WriteReport(w io.Writer, rep RunReport, cfg model.RenderConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p := func(format string, args ...interface{}) { fmt.Fprintf(tw, format, args...) }

	title := rep.Title
	if title == "" {
		title = cfg.Title
	}
	if title != "" {
		p("== %s ==\n", title)
	}
	p("Rows:\t%d\n", rep.Dataset.Len())

	p("\nColumn statistics\n")
	p("column\tcount\tmean\tmedian\tstd\n")
	for _, c := range rep.Dataset.Schema.Columns {
		if c.Type != model.TypeNumeric {
			continue
		}
		x := rep.Dataset.Numbers(c.Name)
		p("%s\t%d\t%s\t%s\t%s\n", c.Name, len(x),
			formatStat(x, stats.Mean, cfg), formatStat(x, stats.Median, cfg), formatStat(x, stats.StdDev, cfg))
	}

	cl := rep.Cleaning
	p("\nCleaning\n")
	p("input\t%d\n", cl.Input)
	p("retained\t%d\n", cl.Retained)
	for _, reason := range model.DropReasons {
		p("%s\t%d\n", reason, cl.Count(reason))
	}

	for _, res := range rep.Results {
		p("\n%s (%s)\n", res.Name, res.Op)
		if res.NoData {
			p("no data\n")
		}
		p("%s\n", strings.Join(res.Columns, "\t"))
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatValue(v, cfg)
			}
			p("%s\n", strings.Join(cells, "\t"))
		}
	}

	if len(rep.Failures) > 0 {
		p("\nFailed requests\n")
		for _, err := range rep.Failures {
			var pe *Error
			if errors.As(err, &pe) {
				p("%s\t%s\t%s\n", pe.Ref, pe.Kind, pe.Message)
				continue
			}
			p("-\t-\t%v\n", err)
		}
	}

	return tw.Flush()
}

func formatStat(x []float64, fn func([]float64) float64, cfg model.RenderConfig) string {
	if len(x) == 0 {
		return "-"
	}
	return strconv.FormatFloat(fn(x), 'f', cfg.Precision(), 64)
}

// formatValue renders a cell, honoring the configured float precision
func formatValue(v model.Value, cfg model.RenderConfig) string {
	switch v.Kind {
	case model.KindMissing:
		return "-"
	case model.KindNumber:
		return strconv.FormatFloat(v.Num, 'f', cfg.Precision(), 64)
	}
	return v.String()
}
