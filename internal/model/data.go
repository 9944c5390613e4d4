package model

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// ColumnType is the declared semantic type of a column
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeText        ColumnType = "text"
	TypeDate        ColumnType = "date"
	TypeCategorical ColumnType = "categorical"
)

// Valid reports whether t is one of the known column types
func (t ColumnType) Valid() bool {
	switch t {
	case TypeNumeric, TypeText, TypeDate, TypeCategorical:
		return true
	}
	return false
}

// Kind tags the content of a Value
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return "missing"
	}
}

// Value is a single cell. The zero Value is Missing.
type Value struct {
	Kind Kind      `json:"kind"`
	Num  float64   `json:"num,omitempty"`
	Str  string    `json:"str,omitempty"`
	Time time.Time `json:"time,omitempty"`
}

func Missing() Value            { return Value{} }
func Number(f float64) Value    { return Value{Kind: KindNumber, Num: f} }
func Text(s string) Value       { return Value{Kind: KindText, Str: s} }
func Date(t time.Time) Value    { return Value{Kind: KindDate, Time: t} }
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Float returns the numeric content of v. NaN numbers are reported as undefined.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber || math.IsNaN(v.Num) {
		return 0, false
	}
	return v.Num, true
}

// String renders v the way reports and CSV artifacts print it
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) {
			return "NaN"
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Str
	case KindDate:
		return v.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// Interface converts v to a plain Go value for JSON and workbook output
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return nil
		}
		return v.Num
	case KindText:
		return v.Str
	case KindDate:
		return v.Time.Format(time.RFC3339)
	default:
		return nil
	}
}

// valueJSON is the stored form of a Value. Numbers JSON cannot carry, NaN
// and the infinities, travel as text in Special.
type valueJSON struct {
	Kind    Kind       `json:"kind"`
	Num     float64    `json:"num,omitempty"`
	Special string     `json:"special,omitempty"`
	Str     string     `json:"str,omitempty"`
	Time    *time.Time `json:"time,omitempty"`
}

// MarshalJSON encodes v losslessly, including non-finite numbers
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.Kind, Str: v.Str}
	if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		out.Special = strconv.FormatFloat(v.Num, 'g', -1, 64)
	} else {
		out.Num = v.Num
	}
	if !v.Time.IsZero() {
		t := v.Time
		out.Time = &t
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = Value{Kind: in.Kind, Num: in.Num, Str: in.Str}
	if in.Special != "" {
		f, err := strconv.ParseFloat(in.Special, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", in.Special, err)
		}
		v.Num = f
	}
	if in.Time != nil {
		v.Time = *in.Time
	}
	return nil
}

// Equal compares two values by kind and content. NaN equals NaN here so that
// recomputed datasets compare equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num || (math.IsNaN(v.Num) && math.IsNaN(o.Num))
	case KindText:
		return v.Str == o.Str
	case KindDate:
		return v.Time.Equal(o.Time)
	}
	return true
}

// Column is one named, typed schema entry
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the ordered column list shared by every record of a dataset
type Schema struct {
	Columns []Column `json:"columns"`
}

// NewSchema builds a schema, rejecting duplicate or empty names
func NewSchema(cols ...Column) (Schema, error) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return Schema{}, fmt.Errorf("empty column name")
		}
		if seen[c.Name] {
			return Schema{}, fmt.Errorf("duplicate column name: %s", c.Name)
		}
		seen[c.Name] = true
	}
	out := make([]Column, len(cols))
	copy(out, cols)
	return Schema{Columns: out}, nil
}

// Index returns the position of name, or -1
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Has(name string) bool { return s.Index(name) >= 0 }

// TypeOf returns the declared type of name
func (s Schema) TypeOf(name string) (ColumnType, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Columns[i].Type, true
	}
	return "", false
}

func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// With returns a copy of s extended with col. An existing column of the same
// name keeps its position.
func (s Schema) With(col Column) Schema {
	out := s.Clone()
	if i := out.Index(col.Name); i >= 0 {
		out.Columns[i] = col
		return out
	}
	out.Columns = append(out.Columns, col)
	return out
}

// Replace returns a copy of s with the type of name changed
func (s Schema) Replace(name string, t ColumnType) Schema {
	out := s.Clone()
	if i := out.Index(name); i >= 0 {
		out.Columns[i].Type = t
	}
	return out
}

func (s Schema) Clone() Schema {
	out := make([]Column, len(s.Columns))
	copy(out, s.Columns)
	return Schema{Columns: out}
}

// Record maps column name to value. Records are never mutated once built;
// stages derive new records with Clone/With.
type Record map[string]Value

// Get returns the value for name; absent columns read as Missing
func (r Record) Get(name string) Value {
	return r[name]
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// With returns a copy of r with name set to v
func (r Record) With(name string, v Value) Record {
	out := make(Record, len(r)+1)
	for k, val := range r {
		out[k] = val
	}
	out[name] = v
	return out
}

// Dataset is an ordered sequence of records sharing one schema
type Dataset struct {
	Schema  Schema   `json:"schema"`
	Records []Record `json:"records"`
}

func (d Dataset) Len() int { return len(d.Records) }

// Column returns the values of name in row order
func (d Dataset) Column(name string) []Value {
	out := make([]Value, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Get(name)
	}
	return out
}

// Numbers returns the defined numeric values of name in row order, skipping
// missing and NaN cells
func (d Dataset) Numbers(name string) []float64 {
	out := make([]float64, 0, len(d.Records))
	for _, r := range d.Records {
		if f, ok := r.Get(name).Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Clone deep-copies the dataset
func (d Dataset) Clone() Dataset {
	recs := make([]Record, len(d.Records))
	for i, r := range d.Records {
		recs[i] = r.Clone()
	}
	return Dataset{Schema: d.Schema.Clone(), Records: recs}
}

// Fingerprint hashes the schema and every value in schema order. Two datasets
// with the same schema and values share a fingerprint.
func (d Dataset) Fingerprint() uint64 {
	h := xxh3.New()
	var buf [8]byte
	for _, c := range d.Schema.Columns {
		h.WriteString(c.Name)
		h.WriteString("\x1f")
		h.WriteString(string(c.Type))
		h.WriteString("\x1e")
	}
	for _, r := range d.Records {
		for _, c := range d.Schema.Columns {
			v := r.Get(c.Name)
			h.Write([]byte{byte(v.Kind)})
			switch v.Kind {
			case KindNumber:
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Num))
				h.Write(buf[:])
			case KindText:
				h.WriteString(v.Str)
			case KindDate:
				binary.LittleEndian.PutUint64(buf[:], uint64(v.Time.UnixNano()))
				h.Write(buf[:])
			}
			h.WriteString("\x1f")
		}
		h.WriteString("\x1e")
	}
	return h.Sum64()
}
