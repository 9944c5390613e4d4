package model

import "time"

// Drop reasons counted by the cleaner
const (
	ReasonMissingRequired  = "missing_required"
	ReasonOutOfRange       = "out_of_range"
	ReasonMalformedNumeric = "malformed_numeric"
	ReasonMalformedDate    = "malformed_date"
)

// DropReasons lists every drop reason in report order
var DropReasons = []string{ReasonMissingRequired, ReasonOutOfRange, ReasonMalformedNumeric, ReasonMalformedDate}

// CleaningReport counts the rows a cleaning pass dropped, by reason.
// Retained plus every drop counter always equals Input.
type CleaningReport struct {
	Input            int                       `json:"input"`
	Retained         int                       `json:"retained"`
	MissingRequired  int                       `json:"missing_required"`
	OutOfRange       int                       `json:"out_of_range"`
	MalformedNumeric int                       `json:"malformed_numeric"`
	MalformedDate    int                       `json:"malformed_date"`
	ByColumn         map[string]map[string]int `json:"by_column,omitempty"`     // column -> reason -> count
	IgnoredRules     []string                  `json:"ignored_rules,omitempty"` // rule columns absent from the dataset
}

// Dropped returns the total number of rows removed
func (r CleaningReport) Dropped() int {
	return r.MissingRequired + r.OutOfRange + r.MalformedNumeric + r.MalformedDate
}

// Count returns the counter for reason
func (r CleaningReport) Count(reason string) int {
	switch reason {
	case ReasonMissingRequired:
		return r.MissingRequired
	case ReasonOutOfRange:
		return r.OutOfRange
	case ReasonMalformedNumeric:
		return r.MalformedNumeric
	case ReasonMalformedDate:
		return r.MalformedDate
	}
	return 0
}

// AggregateResult is a named table produced by one summarize request.
// Renderers receive copies, never the aggregator's own slices.
type AggregateResult struct {
	Name    string    `json:"name"`
	Op      string    `json:"op"`
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
	NoData  bool      `json:"no_data,omitempty"`
}

// Clone deep-copies the result
func (a AggregateResult) Clone() AggregateResult {
	cols := make([]string, len(a.Columns))
	copy(cols, a.Columns)
	rows := make([][]Value, len(a.Rows))
	for i, row := range a.Rows {
		rows[i] = make([]Value, len(row))
		copy(rows[i], row)
	}
	return AggregateResult{Name: a.Name, Op: a.Op, Columns: cols, Rows: rows, NoData: a.NoData}
}

// Maps converts the rows to column-keyed plain values for JSON output
func (a AggregateResult) Maps() []map[string]interface{} {
	out := make([]map[string]interface{}, len(a.Rows))
	for i, row := range a.Rows {
		m := make(map[string]interface{}, len(a.Columns))
		for j, c := range a.Columns {
			if j < len(row) {
				m[c] = row[j].Interface()
			}
		}
		out[i] = m
	}
	return out
}

// CloneResults copies a result slice for hand-off
func CloneResults(in []AggregateResult) []AggregateResult {
	out := make([]AggregateResult, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// ExportResult represents the result of a render/export operation
type ExportResult struct {
	Type        string    `json:"type"` // "csv", "json", "xlsx", "sqlite"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
