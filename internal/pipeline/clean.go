package pipeline

import (
	"go-insights-pipeline/internal/model"
)

// Clean applies rules to every record and returns the surviving records in
// their original order, plus a count of every dropped row by reason. A row
// failing several rules is attributed to the first one violated in rule
// order. Every surviving cell holds its column's declared type or Missing.
// Rules naming a column the dataset lacks are skipped and listed in the
// report; CheckRules turns them into an error. Clean never fails: dirty rows
// are dropped and counted.
func Clean(ds model.Dataset, rules model.CleaningRules) (model.Dataset, model.CleaningReport) {
	report := model.CleaningReport{
		Input:    ds.Len(),
		ByColumn: make(map[string]map[string]int),
	}

	schema := ds.Schema.Clone()
	active := make([]model.ColumnRule, 0, len(rules.Columns))
	for _, rule := range rules.Columns {
		if !schema.Has(rule.Column) {
			report.IgnoredRules = append(report.IgnoredRules, rule.Column)
			continue
		}
		if rule.NumericCoerce {
			schema = schema.Replace(rule.Column, model.TypeNumeric)
		}
		active = append(active, rule)
	}

	kept := make([]model.Record, 0, ds.Len())
	for _, rec := range ds.Records {
		out := rec.Clone()
		reason, column := "", ""
		for _, rule := range active {
			typ, _ := schema.TypeOf(rule.Column)
			if reason = applyRule(out, rule, typ); reason != "" {
				column = rule.Column
				break
			}
		}
		if reason == "" {
			conformRecord(out, schema)
			kept = append(kept, out)
			continue
		}

		switch reason {
		case model.ReasonMissingRequired:
			report.MissingRequired++
		case model.ReasonOutOfRange:
			report.OutOfRange++
		case model.ReasonMalformedNumeric:
			report.MalformedNumeric++
		case model.ReasonMalformedDate:
			report.MalformedDate++
		}
		if report.ByColumn[column] == nil {
			report.ByColumn[column] = make(map[string]int)
		}
		report.ByColumn[column][reason]++
	}

	report.Retained = len(kept)
	return model.Dataset{Schema: schema, Records: kept}, report
}

// conformRecord clears cells of unruled columns that do not hold their
// declared type
func conformRecord(rec model.Record, schema model.Schema) {
	for _, c := range schema.Columns {
		if v := rec.Get(c.Name); !conforms(v, c.Type) {
			rec[c.Name] = model.Missing()
		}
	}
}

// CheckRules reports the first rule naming a column the schema lacks
func CheckRules(schema model.Schema, rules model.CleaningRules) error {
	for _, rule := range rules.Columns {
		if !schema.Has(rule.Column) {
			return unknownColumn(StageClean, "rule", rule.Column)
		}
	}
	return nil
}
