package model

// Source describes where the raw table comes from
type Source struct {
	Path       string                `json:"path" yaml:"path" validate:"required"`
	Delimiter  string                `json:"delimiter,omitempty" yaml:"delimiter" validate:"omitempty,len=1"`
	Hints      map[string]ColumnType `json:"hints,omitempty" yaml:"hints"`
	DateLayout string                `json:"dateLayout,omitempty" yaml:"date_layout"`
}

// Range bounds a numeric column. Bounds are exclusive unless Inclusive is set.
type Range struct {
	Min       *float64 `json:"min,omitempty" yaml:"min"`
	Max       *float64 `json:"max,omitempty" yaml:"max"`
	Inclusive bool     `json:"inclusive,omitempty" yaml:"inclusive"`
}

// Contains reports whether f lies within the bounds
func (r Range) Contains(f float64) bool {
	if r.Min != nil {
		if r.Inclusive && f < *r.Min || !r.Inclusive && f <= *r.Min {
			return false
		}
	}
	if r.Max != nil {
		if r.Inclusive && f > *r.Max || !r.Inclusive && f >= *r.Max {
			return false
		}
	}
	return true
}

// ColumnRule defines validation requirements for one column
type ColumnRule struct {
	Column        string   `json:"column" yaml:"column" validate:"required"`
	Trim          bool     `json:"trim,omitempty" yaml:"trim"`
	NumericCoerce bool     `json:"numeric,omitempty" yaml:"numeric"`
	Range         *Range   `json:"range,omitempty" yaml:"range"`
	Required      bool     `json:"required,omitempty" yaml:"required"`
	OneOf         []string `json:"oneOf,omitempty" yaml:"one_of"` // categorical range
}

// CleaningRules is the ordered rule list applied by the cleaner
type CleaningRules struct {
	Columns []ColumnRule `json:"columns" yaml:"columns" validate:"dive"`
}

// DerivationSpec names a builtin derivation for config-driven jobs
type DerivationSpec struct {
	Name    string   `json:"name" yaml:"name" validate:"required"`
	Op      string   `json:"op" yaml:"op" validate:"required,oneof=year product ratio sum difference lower upper length"`
	Columns []string `json:"columns" yaml:"columns" validate:"min=1"`
	Scale   float64  `json:"scale,omitempty" yaml:"scale"`
}

// Aggregate request operations
const (
	OpScalarStat      = "scalar-stat"
	OpTopN            = "top-n"
	OpGroupByMean     = "group-by-mean"
	OpFilterThreshold = "filter-threshold"
	OpValueCounts     = "value-counts"
	OpCorrelation     = "correlation"
	OpHistogram       = "histogram"
	OpQuantiles       = "quantiles"
)

// Predicate compares a column against a literal threshold
type Predicate struct {
	Op        string  `json:"op" yaml:"op" validate:"required,oneof=> >= < <= == !="`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// AggregateRequest is one summarize request. Which fields matter depends on Op.
type AggregateRequest struct {
	Name      string     `json:"name" yaml:"name"`
	Op        string     `json:"op" yaml:"op" validate:"required,oneof=scalar-stat top-n group-by-mean filter-threshold value-counts correlation histogram quantiles"`
	Column    string     `json:"column" yaml:"column" validate:"required"`
	Stat      string     `json:"stat,omitempty" yaml:"stat"`
	N         int        `json:"n,omitempty" yaml:"n"`
	Order     string     `json:"order,omitempty" yaml:"order" validate:"omitempty,oneof=asc desc key"`
	Group     string     `json:"group,omitempty" yaml:"group"`
	Other     string     `json:"other,omitempty" yaml:"other"`
	Limit     int        `json:"limit,omitempty" yaml:"limit"`
	Predicate *Predicate `json:"predicate,omitempty" yaml:"predicate"`
	Select    []string   `json:"select,omitempty" yaml:"select"`
	Bins      int        `json:"bins,omitempty" yaml:"bins" validate:"gte=0"`
	Bounds    *Range     `json:"bounds,omitempty" yaml:"bounds"` // histogram edges, data min/max when unset
	Quantiles []float64  `json:"quantiles,omitempty" yaml:"quantiles" validate:"dive,gte=0,lte=1"`
}

// Export defines export targets for rendered results
type Export struct {
	Dir     string       `json:"dir,omitempty" yaml:"dir"`
	Formats []string     `json:"formats,omitempty" yaml:"formats" validate:"dive,oneof=csv json xlsx sqlite"`
	Render  RenderConfig `json:"render,omitempty" yaml:"render"`
}

// PipelineJobSpec is the whole run configuration: one source, the cleaning
// rules, derivations and summarize requests
type PipelineJobSpec struct {
	Name        string             `json:"name" yaml:"name" validate:"required"`
	Source      Source             `json:"source" yaml:"source"`
	Rules       CleaningRules      `json:"rules" yaml:"rules"`
	Derivations []DerivationSpec   `json:"derivations,omitempty" yaml:"derivations" validate:"dive"`
	Requests    []AggregateRequest `json:"requests" yaml:"requests" validate:"dive"`
	Export      *Export            `json:"export,omitempty" yaml:"export"`
	Workers     Workers            `json:"workers,omitempty" yaml:"workers"`
	JobTimeout  string             `json:"jobTimeout,omitempty" yaml:"job_timeout"`
}
