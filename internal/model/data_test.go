package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema(t *testing.T) {
	s, err := NewSchema(Column{Name: "a", Type: TypeNumeric}, Column{Name: "b", Type: TypeText})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, 1, s.Index("b"))
	assert.Equal(t, -1, s.Index("c"))

	typ, ok := s.TypeOf("a")
	assert.True(t, ok)
	assert.Equal(t, TypeNumeric, typ)

	_, err = NewSchema(Column{Name: "a"}, Column{Name: "a"})
	assert.Error(t, err)
	_, err = NewSchema(Column{Name: ""})
	assert.Error(t, err)
}

func TestSchemaWithKeepsPosition(t *testing.T) {
	s, err := NewSchema(Column{Name: "a", Type: TypeText}, Column{Name: "b", Type: TypeText})
	require.NoError(t, err)

	replaced := s.With(Column{Name: "a", Type: TypeNumeric})
	assert.Equal(t, []string{"a", "b"}, replaced.Names())
	typ, _ := replaced.TypeOf("a")
	assert.Equal(t, TypeNumeric, typ)

	// the original is untouched
	typ, _ = s.TypeOf("a")
	assert.Equal(t, TypeText, typ)

	extended := s.With(Column{Name: "c", Type: TypeNumeric})
	assert.Equal(t, []string{"a", "b", "c"}, extended.Names())
	assert.Len(t, s.Columns, 2)
}

func TestValue(t *testing.T) {
	assert.True(t, Value{}.IsMissing())

	f, ok := Number(2.5).Float()
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	_, ok = Number(math.NaN()).Float()
	assert.False(t, ok)
	_, ok = Text("3").Float()
	assert.False(t, ok)

	day := time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2021-03-04", Date(day).String())
	assert.Equal(t, "1.5", Number(1.5).String())
	assert.Equal(t, "", Missing().String())

	assert.Nil(t, Number(math.Inf(1)).Interface())
	assert.Nil(t, Missing().Interface())
	assert.Equal(t, "x", Text("x").Interface())

	assert.True(t, Number(math.NaN()).Equal(Number(math.NaN())))
	assert.False(t, Number(1).Equal(Text("1")))
}

func TestRecordWithDoesNotMutate(t *testing.T) {
	r := Record{"a": Number(1)}
	r2 := r.With("b", Text("x"))

	assert.Len(t, r, 1)
	assert.Len(t, r2, 2)
	assert.True(t, r.Get("b").IsMissing())
}

func TestDatasetNumbersSkipsUndefined(t *testing.T) {
	ds := Dataset{Records: []Record{
		{"x": Number(1)},
		{"x": Missing()},
		{"x": Number(math.NaN())},
		{"x": Text("oops")},
		{"x": Number(3)},
	}}
	assert.Equal(t, []float64{1, 3}, ds.Numbers("x"))
	assert.Len(t, ds.Column("x"), 5)
}

func TestFingerprint(t *testing.T) {
	schema, err := NewSchema(Column{Name: "a", Type: TypeNumeric}, Column{Name: "b", Type: TypeText})
	require.NoError(t, err)
	ds := Dataset{Schema: schema, Records: []Record{
		{"a": Number(1), "b": Text("x")},
		{"a": Number(2), "b": Missing()},
	}}

	assert.Equal(t, ds.Fingerprint(), ds.Clone().Fingerprint())

	changed := ds.Clone()
	changed.Records[1]["a"] = Number(3)
	assert.NotEqual(t, ds.Fingerprint(), changed.Fingerprint())

	// a missing cell and an empty string differ
	empty := ds.Clone()
	empty.Records[1]["b"] = Text("")
	assert.NotEqual(t, ds.Fingerprint(), empty.Fingerprint())
}

func TestCleaningReportCounts(t *testing.T) {
	r := CleaningReport{Input: 6, Retained: 2, MissingRequired: 1, OutOfRange: 2, MalformedNumeric: 1}
	assert.Equal(t, 4, r.Dropped())
	assert.Equal(t, r.Input, r.Retained+r.Dropped())
	assert.Equal(t, 2, r.Count(ReasonOutOfRange))
	assert.Equal(t, 0, r.Count("unknown"))

	r.Input, r.MalformedDate = 7, 1
	assert.Equal(t, 5, r.Dropped())
	assert.Equal(t, 1, r.Count(ReasonMalformedDate))
	assert.Len(t, DropReasons, 4)
}

func TestAggregateResultClone(t *testing.T) {
	a := AggregateResult{Name: "n", Columns: []string{"x"}, Rows: [][]Value{{Number(1)}}}
	b := a.Clone()
	b.Rows[0][0] = Number(2)
	b.Columns[0] = "y"

	assert.Equal(t, 1.0, a.Rows[0][0].Num)
	assert.Equal(t, "x", a.Columns[0])
	assert.Equal(t, []map[string]interface{}{{"x": 1.0}}, a.Maps())
}

func TestRangeContains(t *testing.T) {
	lo, hi := 0.0, 100.0
	exclusive := Range{Min: &lo, Max: &hi}
	inclusive := Range{Min: &lo, Max: &hi, Inclusive: true}

	tests := []struct {
		f         float64
		exclusive bool
		inclusive bool
	}{
		{-1, false, false},
		{0, false, true},
		{50, true, true},
		{100, false, true},
		{101, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.exclusive, exclusive.Contains(tt.f), "exclusive %v", tt.f)
		assert.Equal(t, tt.inclusive, inclusive.Contains(tt.f), "inclusive %v", tt.f)
	}
	assert.True(t, Range{}.Contains(-1e9))
}

func TestValueJSONKeepsNonFiniteNumbers(t *testing.T) {
	day := time.Date(2021, 7, 15, 0, 0, 0, 0, time.UTC)
	values := []Value{
		Number(math.Inf(1)), Number(math.Inf(-1)), Number(math.NaN()),
		Number(2.5), Number(0), Text("x"), Date(day), Missing(),
	}

	data, err := json.Marshal(values)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"special":"+Inf"`)

	var got []Value
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, len(values))
	for i := range values {
		assert.True(t, values[i].Equal(got[i]), "value %d: %v != %v", i, values[i], got[i])
	}
	assert.True(t, math.IsInf(got[0].Num, 1))
	assert.True(t, math.IsNaN(got[2].Num))

	var bad Value
	assert.Error(t, json.Unmarshal([]byte(`{"kind":1,"special":"huge"}`), &bad))
}
