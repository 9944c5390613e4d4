package pipeline

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/utils"
)

// applyRule runs one column rule against rec in the order trim, coerce,
// range. typ is the column's declared type after cleaning. It writes the
// normalized value back into rec, which must be the cleaner's private copy,
// and returns the drop reason of the first violation.
func applyRule(rec model.Record, rule model.ColumnRule, typ model.ColumnType) (reason string) {
	v := rec.Get(rule.Column)

	if rule.Trim && v.Kind == model.KindText {
		s := norm.NFC.String(strings.TrimSpace(v.Str))
		if s == "" {
			v = model.Missing()
		} else {
			v = model.Text(s)
		}
	}

	if v.IsMissing() {
		if rule.Required {
			return model.ReasonMissingRequired
		}
		rec[rule.Column] = v
		return ""
	}

	if rule.NumericCoerce {
		coerced, ok := coerceNumber(v)
		switch {
		case ok:
			v = coerced
		case rule.Required || rule.Range != nil:
			return model.ReasonMalformedNumeric
		default:
			rec[rule.Column] = model.Missing()
			return ""
		}
	}

	// cells that did not parse as the declared type at ingest are still text
	if !conforms(v, typ) {
		switch {
		case typ == model.TypeDate && rule.Required:
			return model.ReasonMalformedDate
		case typ == model.TypeNumeric && (rule.Required || rule.Range != nil):
			return model.ReasonMalformedNumeric
		}
		rec[rule.Column] = model.Missing()
		return ""
	}

	if rule.Range != nil {
		f, ok := v.Float()
		if !ok {
			return model.ReasonMalformedNumeric
		}
		if !rule.Range.Contains(f) {
			return model.ReasonOutOfRange
		}
	}

	if len(rule.OneOf) > 0 && !containsString(rule.OneOf, v.String()) {
		return model.ReasonOutOfRange
	}

	rec[rule.Column] = v
	return ""
}

// conforms reports whether v holds the kind its column type declares.
// Missing always conforms.
func conforms(v model.Value, typ model.ColumnType) bool {
	switch {
	case v.IsMissing():
		return true
	case typ == model.TypeNumeric:
		return v.Kind == model.KindNumber
	case typ == model.TypeDate:
		return v.Kind == model.KindDate
	}
	return true
}

// coerceNumber converts text such as "$1,200" to a number. NaN is rejected.
func coerceNumber(v model.Value) (model.Value, bool) {
	switch v.Kind {
	case model.KindNumber:
		if _, ok := v.Float(); ok {
			return v, true
		}
	case model.KindText:
		if f, ok := utils.ParseMoney(v.Str); ok && !math.IsNaN(f) {
			return model.Number(f), true
		}
	}
	return model.Value{}, false
}

func containsString(set []string, s string) bool {
	for _, item := range set {
		if item == s {
			return true
		}
	}
	return false
}
