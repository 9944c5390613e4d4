// Package presets holds ready-made job specs for the datasets the pipeline
// was first written for. They are plain configuration: column names, rule
// thresholds, derivations and requests.
package presets

import (
	"fmt"
	"sort"

	"go-insights-pipeline/internal/model"
)

var registry = map[string]func(source string) model.PipelineJobSpec{
	"airbnb": Airbnb,
	"steam":  Steam,
	"grades": Grades,
}

// Names lists the available presets
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the named preset reading from source
func Get(name, source string) (model.PipelineJobSpec, error) {
	build, ok := registry[name]
	if !ok {
		return model.PipelineJobSpec{}, fmt.Errorf("unknown preset %q (available: %v)", name, Names())
	}
	return build(source), nil
}

func bound(f float64) *float64 { return &f }

// Airbnb analyses a listings export: prices are cleaned of currency
// formatting and kept strictly between 0 and 5000.
func Airbnb(source string) model.PipelineJobSpec {
	return model.PipelineJobSpec{
		Name:   "airbnb",
		Source: model.Source{Path: source},
		Rules: model.CleaningRules{Columns: []model.ColumnRule{
			{Column: "price", NumericCoerce: true, Required: true, Range: &model.Range{Min: bound(0), Max: bound(5000)}},
			{Column: "neighbourhood", Trim: true},
			{Column: "room_type", Trim: true},
		}},
		Requests: []model.AggregateRequest{
			{Name: "mean_price", Op: model.OpScalarStat, Column: "price", Stat: "mean"},
			{Name: "median_price", Op: model.OpScalarStat, Column: "price", Stat: "median"},
			{Name: "room_types", Op: model.OpValueCounts, Column: "room_type"},
			{Name: "top10_neighbourhoods", Op: model.OpGroupByMean, Column: "price", Group: "neighbourhood", Limit: 10},
			{Name: "price_by_room_type", Op: model.OpGroupByMean, Column: "price", Group: "room_type"},
			{Name: "price_distribution", Op: model.OpHistogram, Column: "price", Bins: 50},
			{Name: "price_quartiles_by_room_type", Op: model.OpQuantiles, Column: "price", Group: "room_type",
				Quantiles: []float64{0, 0.25, 0.5, 0.75, 1}},
		},
		Export: &model.Export{Render: model.RenderConfig{Title: "Airbnb listings", FloatPrecision: 2}},
	}
}

// Steam analyses a games catalogue and ranks titles by a score combining the
// positive ratio with the number of reviews.
func Steam(source string) model.PipelineJobSpec {
	return model.PipelineJobSpec{
		Name: "steam",
		Source: model.Source{
			Path:  source,
			Hints: map[string]model.ColumnType{"date_release": model.TypeDate},
		},
		Rules: model.CleaningRules{Columns: []model.ColumnRule{
			{Column: "price_final", NumericCoerce: true, Required: true, Range: &model.Range{Min: bound(0), Max: bound(100), Inclusive: true}},
			{Column: "positive_ratio", NumericCoerce: true, Required: true, Range: &model.Range{Min: bound(0), Max: bound(100), Inclusive: true}},
			{Column: "user_reviews", NumericCoerce: true, Required: true, Range: &model.Range{Min: bound(0)}},
		}},
		Derivations: []model.DerivationSpec{
			{Name: "release_year", Op: "year", Columns: []string{"date_release"}},
			{Name: "recommendation_score", Op: "product", Columns: []string{"positive_ratio", "user_reviews"}, Scale: 0.001},
		},
		Requests: []model.AggregateRequest{
			{Name: "top10_games", Op: model.OpTopN, Column: "recommendation_score", N: 10,
				Select: []string{"title", "recommendation_score"}},
			{Name: "most_recommended", Op: model.OpTopN, Column: "positive_ratio", N: 1,
				Select: []string{"title", "positive_ratio"}},
			{Name: "mean_price", Op: model.OpScalarStat, Column: "price_final", Stat: "mean"},
			{Name: "median_price", Op: model.OpScalarStat, Column: "price_final", Stat: "median"},
			{Name: "common_price", Op: model.OpScalarStat, Column: "price_final", Stat: "mode"},
			{Name: "mean_ratio", Op: model.OpScalarStat, Column: "positive_ratio", Stat: "mean"},
			{Name: "price_ratio_correlation", Op: model.OpCorrelation, Column: "price_final", Other: "positive_ratio"},
			{Name: "price_by_year", Op: model.OpGroupByMean, Column: "price_final", Group: "release_year", Order: "key"},
			{Name: "price_distribution", Op: model.OpHistogram, Column: "price_final", Bins: 30},
		},
		Export: &model.Export{Render: model.RenderConfig{Title: "Steam games", FloatPrecision: 2}},
	}
}

// Grades keeps student rows and reports the spread of their averages
func Grades(source string) model.PipelineJobSpec {
	return model.PipelineJobSpec{
		Name:   "grades",
		Source: model.Source{Path: source},
		Rules: model.CleaningRules{Columns: []model.ColumnRule{
			{Column: "Type", Trim: true, Required: true, OneOf: []string{"Etudiant"}},
			{Column: "Moyenne", NumericCoerce: true, Required: true},
		}},
		Requests: []model.AggregateRequest{
			{Name: "mean", Op: model.OpScalarStat, Column: "Moyenne", Stat: "mean"},
			{Name: "median", Op: model.OpScalarStat, Column: "Moyenne", Stat: "median"},
			{Name: "std", Op: model.OpScalarStat, Column: "Moyenne", Stat: "std"},
			{Name: "above_15", Op: model.OpFilterThreshold, Column: "Moyenne",
				Predicate: &model.Predicate{Op: ">", Threshold: 15}, Select: []string{"Nom", "Moyenne"}},
		},
		Export: &model.Export{Render: model.RenderConfig{Title: "Student grades", FloatPrecision: 2}},
	}
}
