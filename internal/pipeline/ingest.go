package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/utils"
)

const utf8BOM = "\uFEFF"

// IngestOptions refines how a source is read
type IngestOptions struct {
	Delimiter  rune                        // defaults to ','
	Hints      map[string]model.ColumnType // override inferred column types
	DateLayout string                      // layout for date hints, defaults to 2006-01-02
}

// OptionsFromSource maps a job source onto ingest options
func OptionsFromSource(src model.Source) IngestOptions {
	opts := IngestOptions{Hints: src.Hints, DateLayout: src.DateLayout}
	if src.Delimiter != "" {
		opts.Delimiter = []rune(src.Delimiter)[0]
	}
	return opts
}

// IngestFile opens path and ingests it. Paths ending in .xlsx are read from
// the first sheet of the workbook.
func IngestFile(path string, opts IngestOptions) (model.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ingestWorkbook(path, opts)
	}

	file, err := os.Open(path)
	if err != nil {
		return model.Dataset{}, openError(path, err)
	}
	defer file.Close()

	return Ingest(file, opts)
}

// Ingest parses a delimited stream with a header row into a typed dataset
func Ingest(r io.Reader, opts IngestOptions) (model.Dataset, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = 0 // every row must match the header width
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Dataset{}, newError(KindMalformedSource, StageIngest, "missing header row", nil)
		}
		return model.Dataset{}, newError(KindMalformedSource, StageIngest, "failed to read header", err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Dataset{}, newError(KindMalformedSource, StageIngest, "inconsistent row", err)
		}
		rows = append(rows, record)
	}

	return buildDataset(header, rows, opts)
}

func ingestWorkbook(path string, opts IngestOptions) (model.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return model.Dataset{}, openError(path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return model.Dataset{}, newError(KindMalformedSource, StageIngest, "workbook has no sheets", nil)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return model.Dataset{}, newError(KindMalformedSource, StageIngest, "failed to read sheet "+sheets[0], err)
	}
	if len(all) == 0 {
		return model.Dataset{}, newError(KindMalformedSource, StageIngest, "missing header row", nil)
	}

	header := all[0]
	rows := make([][]string, 0, len(all)-1)
	for i, row := range all[1:] {
		// excelize drops trailing empty cells
		if len(row) > len(header) {
			return model.Dataset{}, newError(KindMalformedSource, StageIngest,
				fmt.Sprintf("row %d has %d cells, header has %d", i+2, len(row), len(header)), nil)
		}
		padded := make([]string, len(header))
		copy(padded, row)
		rows = append(rows, padded)
	}
	return buildDataset(header, rows, opts)
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &Error{Kind: KindSourceNotFound, Stage: StageIngest, Message: path, Cause: err}
	}
	return newError(KindMalformedSource, StageIngest, "failed to open "+path, err)
}

func buildDataset(header []string, rows [][]string, opts IngestOptions) (model.Dataset, error) {
	cols := make([]model.Column, len(header))
	for i, h := range header {
		name := strings.TrimPrefix(h, utf8BOM)
		name = strings.ReplaceAll(strings.TrimSpace(name), `"`, "")
		cols[i] = model.Column{Name: name}
	}

	for i := range cols {
		if t, ok := opts.Hints[cols[i].Name]; ok {
			if !t.Valid() {
				return model.Dataset{}, &Error{Kind: KindMalformedSource, Stage: StageIngest, Column: cols[i].Name,
					Message: fmt.Sprintf("unknown column type hint %q", t)}
			}
			cols[i].Type = t
			continue
		}
		cols[i].Type = inferType(rows, i)
	}

	schema, err := model.NewSchema(cols...)
	if err != nil {
		return model.Dataset{}, newError(KindMalformedSource, StageIngest, "invalid header", err)
	}
	for name := range opts.Hints {
		if !schema.Has(name) {
			return model.Dataset{}, unknownColumn(StageIngest, "hint", name)
		}
	}

	layouts := []string{"2006-01-02", time.RFC3339}
	if opts.DateLayout != "" {
		layouts = append([]string{opts.DateLayout}, layouts...)
	}

	records := make([]model.Record, len(rows))
	for r, row := range rows {
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			rec[c.Name] = parseCell(row[i], c.Type, layouts)
		}
		records[r] = rec
	}

	return model.Dataset{Schema: schema, Records: records}, nil
}

// inferType declares a column numeric when every non-empty cell parses as a float
func inferType(rows [][]string, col int) model.ColumnType {
	seen := false
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		if _, ok := utils.ParseNumber(cell); !ok {
			return model.TypeText
		}
		seen = true
	}
	if !seen {
		return model.TypeText
	}
	return model.TypeNumeric
}

// parseCell converts raw text to the declared type. Cells that do not conform
// stay as text for the cleaner to attribute.
func parseCell(raw string, t model.ColumnType, layouts []string) model.Value {
	if strings.TrimSpace(raw) == "" {
		return model.Missing()
	}
	switch t {
	case model.TypeNumeric:
		if f, ok := utils.ParseNumber(raw); ok {
			if math.IsNaN(f) {
				return model.Missing()
			}
			return model.Number(f)
		}
	case model.TypeDate:
		s := strings.TrimSpace(raw)
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return model.Date(ts)
			}
		}
	}
	return model.Text(raw)
}
