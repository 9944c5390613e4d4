package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/model"
)

func TestCleanPriceColumn(t *testing.T) {
	ds := ingestString(t, "price\n10\n0\n$5000\nabc\n20\n")
	rules := model.CleaningRules{Columns: []model.ColumnRule{
		{Column: "price", NumericCoerce: true, Required: true, Range: &model.Range{Min: bound(0), Max: bound(5000)}},
	}}

	out, report := Clean(ds, rules)

	assert.Equal(t, 5, report.Input)
	assert.Equal(t, 2, report.Retained)
	assert.Equal(t, 2, report.OutOfRange)
	assert.Equal(t, 1, report.MalformedNumeric)
	assert.Equal(t, 0, report.MissingRequired)
	assert.Equal(t, report.Input, report.Retained+report.Dropped())
	assert.Equal(t, map[string]int{model.ReasonOutOfRange: 2, model.ReasonMalformedNumeric: 1}, report.ByColumn["price"])

	assert.Equal(t, []float64{10, 20}, out.Numbers("price"))
	typ, _ := out.Schema.TypeOf("price")
	assert.Equal(t, model.TypeNumeric, typ)

	// the input is untouched
	assert.Equal(t, model.Text("$5000"), ds.Records[2].Get("price"))
	typ, _ = ds.Schema.TypeOf("price")
	assert.Equal(t, model.TypeText, typ)
}

func TestCleanFirstViolationWins(t *testing.T) {
	ds := ingestString(t, "a,b\n,x\n1,x\n1,2\n")
	rules := model.CleaningRules{Columns: []model.ColumnRule{
		{Column: "a", Required: true},
		{Column: "b", NumericCoerce: true, Required: true},
	}}

	out, report := Clean(ds, rules)

	assert.Equal(t, 1, report.MissingRequired, "row one fails both rules but counts once")
	assert.Equal(t, 1, report.MalformedNumeric)
	assert.Equal(t, 1, report.Retained)
	assert.Equal(t, 1, report.ByColumn["a"][model.ReasonMissingRequired])
	assert.Equal(t, 1, report.ByColumn["b"][model.ReasonMalformedNumeric])
	require.Equal(t, 1, out.Len())
	assert.Equal(t, model.Number(2), out.Records[0].Get("b"))
}

func TestCleanTrimAndCategories(t *testing.T) {
	ds := ingestString(t, "Nom,Type\nAna,  Etudiant \nBob,Prof\nCy,   \nDi,Etudiant\n")
	rules := model.CleaningRules{Columns: []model.ColumnRule{
		{Column: "Type", Trim: true, Required: true, OneOf: []string{"Etudiant"}},
	}}

	out, report := Clean(ds, rules)

	assert.Equal(t, 2, report.Retained)
	assert.Equal(t, 1, report.OutOfRange)
	assert.Equal(t, 1, report.MissingRequired, "whitespace-only trims to missing")
	assert.Equal(t, []string{"Etudiant", "Etudiant"}, []string{out.Records[0].Get("Type").Str, out.Records[1].Get("Type").Str})
}

func TestCleanOptionalCoercionClearsBadCells(t *testing.T) {
	ds := ingestString(t, "qty,id\n3,a\nlots,b\n,c\n")
	rules := model.CleaningRules{Columns: []model.ColumnRule{{Column: "qty", NumericCoerce: true}}}

	out, report := Clean(ds, rules)

	assert.Equal(t, 3, report.Retained)
	assert.Equal(t, 0, report.Dropped())
	assert.Equal(t, model.Number(3), out.Records[0].Get("qty"))
	assert.True(t, out.Records[1].Get("qty").IsMissing())
	assert.True(t, out.Records[2].Get("qty").IsMissing())
}

func TestCleanInclusiveRange(t *testing.T) {
	ds := ingestString(t, "ratio\n0\n100\n100.5\n-1\n")
	rules := model.CleaningRules{Columns: []model.ColumnRule{
		{Column: "ratio", Range: &model.Range{Min: bound(0), Max: bound(100), Inclusive: true}},
	}}

	out, report := Clean(ds, rules)

	assert.Equal(t, []float64{0, 100}, out.Numbers("ratio"))
	assert.Equal(t, 2, report.OutOfRange)
}

func TestCleanNoRules(t *testing.T) {
	ds := listings(t)
	out, report := Clean(ds, model.CleaningRules{})

	assert.Equal(t, ds.Fingerprint(), out.Fingerprint())
	assert.Equal(t, ds.Len(), report.Retained)
}

func TestCheckRules(t *testing.T) {
	ds := listings(t)
	assert.NoError(t, CheckRules(ds.Schema, model.CleaningRules{Columns: []model.ColumnRule{{Column: "price"}}}))

	err := CheckRules(ds.Schema, model.CleaningRules{Columns: []model.ColumnRule{{Column: "cost"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestCleanMalformedDateUnderHint(t *testing.T) {
	ds, err := Ingest(strings.NewReader("title,date_release\nA,2020-01-02\nB,not-a-date\nC,\n"),
		IngestOptions{Hints: map[string]model.ColumnType{"date_release": model.TypeDate}})
	require.NoError(t, err)

	out, report := Clean(ds, model.CleaningRules{Columns: []model.ColumnRule{{Column: "date_release", Required: true}}})

	assert.Equal(t, 1, report.Retained)
	assert.Equal(t, 1, report.MalformedDate)
	assert.Equal(t, 1, report.MissingRequired)
	assert.Equal(t, report.Input, report.Retained+report.Dropped())
	assert.Equal(t, 1, report.ByColumn["date_release"][model.ReasonMalformedDate])
	require.Equal(t, 1, out.Len())
	assert.Equal(t, model.KindDate, out.Records[0].Get("date_release").Kind)

	// without a rule the bad cell is cleared and the row survives
	out, report = Clean(ds, model.CleaningRules{})
	assert.Equal(t, 3, report.Retained)
	assert.Equal(t, model.KindDate, out.Records[0].Get("date_release").Kind)
	assert.True(t, out.Records[1].Get("date_release").IsMissing())
	assert.Equal(t, model.Text("not-a-date"), ds.Records[1].Get("date_release"), "input is untouched")
}

func TestCleanConformsHintedNumericColumns(t *testing.T) {
	ds, err := Ingest(strings.NewReader("qty,id\n3,a\nlots,b\n"),
		IngestOptions{Hints: map[string]model.ColumnType{"qty": model.TypeNumeric}})
	require.NoError(t, err)
	require.Equal(t, model.Text("lots"), ds.Records[1].Get("qty"))

	_, report := Clean(ds, model.CleaningRules{Columns: []model.ColumnRule{{Column: "qty", Required: true}}})
	assert.Equal(t, 1, report.Retained)
	assert.Equal(t, 1, report.MalformedNumeric)

	out, _ := Clean(ds, model.CleaningRules{Columns: []model.ColumnRule{{Column: "id", Trim: true}}})
	require.Equal(t, 2, out.Len())
	assert.True(t, out.Records[1].Get("qty").IsMissing())

	for _, rec := range out.Records {
		for _, c := range out.Schema.Columns {
			assert.True(t, conforms(rec.Get(c.Name), c.Type), "%s holds %s", c.Name, rec.Get(c.Name).Kind)
		}
	}
}

func TestCleanSkipsRulesForUnknownColumns(t *testing.T) {
	ds := listings(t)
	rules := model.CleaningRules{Columns: []model.ColumnRule{
		{Column: "cost", Required: true},
		{Column: "price", Range: &model.Range{Min: bound(50)}},
	}}

	out, report := Clean(ds, rules)

	assert.Equal(t, []string{"cost"}, report.IgnoredRules)
	assert.Equal(t, 4, report.Retained)
	assert.Equal(t, 2, report.OutOfRange)
	for _, rec := range out.Records {
		_, ok := rec["cost"]
		assert.False(t, ok)
		assert.Len(t, rec, len(out.Schema.Columns))
	}
}
