package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/utils"
)

// Renderer turns aggregate results into an artifact. Renderers receive their
// own copy of the results and the presentation settings for this call only.
type Renderer interface {
	Format() string
	Render(ctx context.Context, results []model.AggregateResult, cfg model.RenderConfig) (model.ExportResult, error)
}

// ResultSaver persists results for a run; the run store implements it
type ResultSaver interface {
	SaveResults(ctx context.Context, runID string, results []model.AggregateResult) error
}

// RenderAll hands a fresh copy of results to every renderer. Every renderer
// runs even when an earlier one fails; the first failure is returned as a
// RENDER_FAILED error.
func RenderAll(ctx context.Context, logger *slog.Logger, renderers []Renderer, results []model.AggregateResult, cfg model.RenderConfig) ([]model.ExportResult, error) {
	exports := make([]model.ExportResult, 0, len(renderers))
	var first error
	for _, r := range renderers {
		if err := ctx.Err(); err != nil {
			return exports, err
		}
		res, err := r.Render(ctx, model.CloneResults(results), cfg)
		res.Type = r.Format()
		res.Timestamp = time.Now()
		res.Success = err == nil
		if err != nil {
			res.Error = err.Error()
			logger.Error("render failed", "format", r.Format(), "error", err)
			if first == nil {
				first = &Error{Kind: KindRenderFailed, Stage: StageRender, Ref: r.Format(), Message: "renderer failed", Cause: err}
			}
		} else {
			logger.Info("rendered results", "format", r.Format(), "path", res.Path, "records", res.RecordCount)
		}
		exports = append(exports, res)
	}
	return exports, first
}

// BuildRenderers maps export formats to renderers writing under dir. The
// sqlite format needs a saver and is rejected without one.
func BuildRenderers(exp model.Export, dir, runID string, saver ResultSaver) ([]Renderer, error) {
	var out []Renderer
	for _, f := range exp.Formats {
		switch f {
		case "csv":
			out = append(out, &CSVRenderer{Dir: filepath.Join(dir, "csv")})
		case "json":
			out = append(out, &JSONRenderer{Path: filepath.Join(dir, "results.json"), RunID: runID})
		case "xlsx":
			out = append(out, &XLSXRenderer{Path: filepath.Join(dir, "results.xlsx")})
		case "sqlite":
			if saver == nil {
				return nil, &Error{Kind: KindRenderFailed, Stage: StageRender, Ref: f, Message: "no result store configured"}
			}
			out = append(out, &SQLiteRenderer{Saver: saver, RunID: runID})
		default:
			return nil, &Error{Kind: KindRenderFailed, Stage: StageRender, Ref: f, Message: "unknown export format"}
		}
	}
	return out, nil
}

// CSVRenderer writes one CSV file per result into Dir
type CSVRenderer struct {
	Dir string
}

func (r *CSVRenderer) Format() string { return "csv" }

func (r *CSVRenderer) Render(ctx context.Context, results []model.AggregateResult, cfg model.RenderConfig) (model.ExportResult, error) {
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return model.ExportResult{Path: r.Dir}, fmt.Errorf("failed to create directory: %w", err)
	}

	count := 0
	used := map[string]bool{}
	for i, res := range results {
		if err := ctx.Err(); err != nil {
			return model.ExportResult{Path: r.Dir, RecordCount: count}, err
		}
		path := filepath.Join(r.Dir, fileName(res.Name, i, used)+".csv")
		n, err := writeCSV(path, res, cfg)
		count += n
		if err != nil {
			return model.ExportResult{Path: r.Dir, RecordCount: count}, err
		}
	}
	return model.ExportResult{Path: r.Dir, RecordCount: count}, nil
}

// fileName returns a file-safe name for a result that no earlier result in
// the same render used. Names are compared case-insensitively.
func fileName(name string, index int, used map[string]bool) string {
	base := utils.SafeFileName(name)
	candidate := base
	for n := index + 1; used[strings.ToLower(candidate)]; n++ {
		candidate = base + "_" + strconv.Itoa(n)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func writeCSV(path string, res model.AggregateResult, cfg model.RenderConfig) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(res.Columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range res.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = csvCell(v, cfg)
		}
		if err := writer.Write(cells); err != nil {
			return i, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return len(res.Rows), nil
}

func csvCell(v model.Value, cfg model.RenderConfig) string {
	if v.Kind == model.KindNumber {
		return strconv.FormatFloat(v.Num, 'f', cfg.Precision(), 64)
	}
	return v.String()
}

// JSONRenderer writes all results into a single JSON document
type JSONRenderer struct {
	Path  string
	RunID string
}

func (r *JSONRenderer) Format() string { return "json" }

func (r *JSONRenderer) Render(ctx context.Context, results []model.AggregateResult, cfg model.RenderConfig) (model.ExportResult, error) {
	out := model.ExportResult{Path: r.Path}
	if err := os.MkdirAll(filepath.Dir(r.Path), 0755); err != nil {
		return out, fmt.Errorf("failed to create directory: %w", err)
	}

	type jsonResult struct {
		Name    string                   `json:"name"`
		Op      string                   `json:"op"`
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
		NoData  bool                     `json:"no_data,omitempty"`
	}
	data := make([]jsonResult, len(results))
	for i, res := range results {
		data[i] = jsonResult{Name: res.Name, Op: res.Op, Columns: res.Columns, Rows: res.Maps(), NoData: res.NoData}
		out.RecordCount += len(res.Rows)
	}

	file, err := os.Create(r.Path)
	if err != nil {
		return out, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	doc := map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":       r.RunID,
			"title":        cfg.Title,
			"exported_at":  time.Now().UTC(),
			"result_count": len(results),
		},
		"results": data,
	}
	if err := encoder.Encode(doc); err != nil {
		return out, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return out, nil
}

// XLSXRenderer writes a workbook with one sheet per result
type XLSXRenderer struct {
	Path string
}

func (r *XLSXRenderer) Format() string { return "xlsx" }

// sheet names are limited to 31 characters
const maxSheetName = 31

func (r *XLSXRenderer) Render(ctx context.Context, results []model.AggregateResult, cfg model.RenderConfig) (model.ExportResult, error) {
	out := model.ExportResult{Path: r.Path}
	if err := os.MkdirAll(filepath.Dir(r.Path), 0755); err != nil {
		return out, fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if cfg.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: cfg.Title}); err != nil {
			return out, fmt.Errorf("failed to set title: %w", err)
		}
	}

	headerStyle := 0
	if cfg.HeaderStyle {
		id, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return out, fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyle = id
	}

	const defaultSheet = "Sheet1"
	used := map[string]bool{}
	for i, res := range results {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		sheet := sheetName(cfg.SheetPrefix, res.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return out, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return out, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		header := make([]interface{}, len(res.Columns))
		for j, c := range res.Columns {
			header[j] = c
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return out, fmt.Errorf("failed to write header: %w", err)
		}
		if headerStyle != 0 && len(res.Columns) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(res.Columns), 1)
			if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
				return out, fmt.Errorf("failed to style header: %w", err)
			}
		}

		for j, row := range res.Rows {
			cells := make([]interface{}, len(row))
			for k, v := range row {
				cells[k] = xlsxCell(v, cfg)
			}
			cell, _ := excelize.CoordinatesToCellName(1, j+2)
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return out, fmt.Errorf("failed to write row: %w", err)
			}
		}
		out.RecordCount += len(res.Rows)
	}

	if err := f.SaveAs(r.Path); err != nil {
		return out, fmt.Errorf("failed to save workbook: %w", err)
	}
	return out, nil
}

func xlsxCell(v model.Value, cfg model.RenderConfig) interface{} {
	switch v.Kind {
	case model.KindNumber:
		if p := cfg.Precision(); p >= 0 {
			f, _ := strconv.ParseFloat(strconv.FormatFloat(v.Num, 'f', p, 64), 64)
			return f
		}
		return v.Interface()
	case model.KindDate:
		return v.Time
	case model.KindMissing:
		return nil
	}
	return v.Str
}

func sheetName(prefix, name string, index int, used map[string]bool) string {
	base := []rune(utils.SafeFileName(prefix + name))
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	candidate := string(base)
	if candidate == "" || used[candidate] {
		suffix := "_" + strconv.Itoa(index+1)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[candidate] = true
	return candidate
}

// SQLiteRenderer stores results in the run database
type SQLiteRenderer struct {
	Saver ResultSaver
	RunID string
}

func (r *SQLiteRenderer) Format() string { return "sqlite" }

func (r *SQLiteRenderer) Render(ctx context.Context, results []model.AggregateResult, cfg model.RenderConfig) (model.ExportResult, error) {
	out := model.ExportResult{Path: "results"}
	for _, res := range results {
		out.RecordCount += len(res.Rows)
	}
	if err := r.Saver.SaveResults(ctx, r.RunID, results); err != nil {
		return out, fmt.Errorf("failed to save results: %w", err)
	}
	return out, nil
}
