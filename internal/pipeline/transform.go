package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go-insights-pipeline/internal/model"
)

// Derivation computes a new column from columns already present. Fn receives
// the record being built and must not modify it.
type Derivation struct {
	Name   string
	Type   model.ColumnType
	Inputs []string
	Fn     func(model.Record) model.Value
}

// Enrich applies derivations in list order, so later derivations can read
// columns added by earlier ones. The input dataset is left untouched. A
// derivation whose column already exists is recomputed in place, which makes
// re-running the same derivations a no-op.
func Enrich(ds model.Dataset, derivations []Derivation) (model.Dataset, error) {
	schema := ds.Schema.Clone()
	for _, d := range derivations {
		for _, in := range d.Inputs {
			if !schema.Has(in) {
				return model.Dataset{}, unknownColumn(StageEnrich, d.Name, in)
			}
		}
		if existing, ok := schema.TypeOf(d.Name); ok && existing != d.Type {
			return model.Dataset{}, &Error{Kind: KindColumnConflict, Stage: StageEnrich, Ref: d.Name, Column: d.Name,
				Message: fmt.Sprintf("column exists as %s, derivation produces %s", existing, d.Type)}
		}
		schema = schema.With(model.Column{Name: d.Name, Type: d.Type})
	}

	records := make([]model.Record, len(ds.Records))
	for i, rec := range ds.Records {
		out := rec.Clone()
		for _, d := range derivations {
			out[d.Name] = d.Fn(out)
		}
		records[i] = out
	}

	return model.Dataset{Schema: schema, Records: records}, nil
}

// BuildDerivations resolves config-driven derivation specs
func BuildDerivations(specs []model.DerivationSpec) ([]Derivation, error) {
	out := make([]Derivation, 0, len(specs))
	for _, s := range specs {
		d, err := BuildDerivation(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// BuildDerivation maps a named builtin op onto a Derivation
func BuildDerivation(spec model.DerivationSpec) (Derivation, error) {
	cols := spec.Columns
	arity := func(n int) error {
		if len(cols) != n {
			return &Error{Kind: KindInvalidRequest, Stage: StageEnrich, Ref: spec.Name,
				Message: fmt.Sprintf("%s takes %d column(s), got %d", spec.Op, n, len(cols))}
		}
		return nil
	}
	atLeast := func(n int) error {
		if len(cols) < n {
			return &Error{Kind: KindInvalidRequest, Stage: StageEnrich, Ref: spec.Name,
				Message: fmt.Sprintf("%s takes at least %d columns, got %d", spec.Op, n, len(cols))}
		}
		return nil
	}

	d := Derivation{Name: spec.Name, Inputs: cols, Type: model.TypeNumeric}
	switch spec.Op {
	case "year":
		if err := arity(1); err != nil {
			return d, err
		}
		d.Fn = func(r model.Record) model.Value {
			v := r.Get(cols[0])
			if v.Kind != model.KindDate {
				return model.Missing()
			}
			return model.Number(float64(v.Time.Year()))
		}
	case "product":
		if err := atLeast(2); err != nil {
			return d, err
		}
		scale := spec.Scale
		if scale == 0 {
			scale = 1
		}
		d.Fn = numericFold(cols, func(acc, f float64) float64 { return acc * f }, scale)
	case "sum":
		if err := atLeast(2); err != nil {
			return d, err
		}
		d.Fn = numericFold(cols, func(acc, f float64) float64 { return acc + f }, 1)
	case "difference":
		if err := arity(2); err != nil {
			return d, err
		}
		d.Fn = numericFold(cols, func(acc, f float64) float64 { return acc - f }, 1)
	case "ratio":
		if err := arity(2); err != nil {
			return d, err
		}
		d.Fn = func(r model.Record) model.Value {
			a, okA := r.Get(cols[0]).Float()
			b, okB := r.Get(cols[1]).Float()
			if !okA || !okB || b == 0 {
				return model.Missing()
			}
			return model.Number(a / b)
		}
	case "lower", "upper":
		if err := arity(1); err != nil {
			return d, err
		}
		conv := strings.ToLower
		if spec.Op == "upper" {
			conv = strings.ToUpper
		}
		d.Type = model.TypeText
		d.Fn = func(r model.Record) model.Value {
			v := r.Get(cols[0])
			if v.Kind != model.KindText {
				return model.Missing()
			}
			return model.Text(conv(v.Str))
		}
	case "length":
		if err := arity(1); err != nil {
			return d, err
		}
		d.Fn = func(r model.Record) model.Value {
			v := r.Get(cols[0])
			if v.IsMissing() {
				return model.Missing()
			}
			return model.Number(float64(utf8.RuneCountInString(v.String())))
		}
	default:
		return d, &Error{Kind: KindInvalidRequest, Stage: StageEnrich, Ref: spec.Name,
			Message: fmt.Sprintf("unknown derivation op %q", spec.Op)}
	}
	return d, nil
}

// numericFold combines the named columns left to right and scales the result.
// Any undefined input makes the output missing.
func numericFold(cols []string, op func(acc, f float64) float64, scale float64) func(model.Record) model.Value {
	return func(r model.Record) model.Value {
		acc, ok := r.Get(cols[0]).Float()
		if !ok {
			return model.Missing()
		}
		for _, c := range cols[1:] {
			f, ok := r.Get(c).Float()
			if !ok {
				return model.Missing()
			}
			acc = op(acc, f)
		}
		return model.Number(acc * scale)
	}
}
