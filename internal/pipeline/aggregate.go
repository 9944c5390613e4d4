package pipeline

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/pkg/stats"
)

// SummarizeOptions tunes request evaluation
type SummarizeOptions struct {
	// Parallelism caps concurrently evaluated requests; values below 1 mean sequential
	Parallelism int
}

// Scalar statistics understood by scalar-stat requests
var scalarStats = map[string]func([]float64) float64{
	"mean":   stats.Mean,
	"median": stats.Median,
	"std":    stats.StdDev,
	"sum":    stats.Sum,
	"mode":   stats.Mode,
	"min":    func(x []float64) float64 { lo, _ := stats.MinMax(x); return lo },
	"max":    func(x []float64) float64 { _, hi := stats.MinMax(x); return hi },
	"count":  func(x []float64) float64 { return float64(len(x)) },
}

// Summarize evaluates every request against ds. Requests are independent: a
// failing request is reported in the returned *SummaryError while the others
// still produce results, which keep request order. The only other error is
// ctx cancellation.
func Summarize(ctx context.Context, ds model.Dataset, requests []model.AggregateRequest, opts SummarizeOptions) ([]model.AggregateResult, error) {
	results := make([]model.AggregateResult, len(requests))
	errs := make([]error, len(requests))

	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = evaluate(ds, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.AggregateResult, 0, len(requests))
	var failures []error
	for i := range requests {
		if errs[i] != nil {
			failures = append(failures, errs[i])
			continue
		}
		out = append(out, results[i])
	}
	if len(failures) > 0 {
		return out, &SummaryError{Failures: failures}
	}
	return out, nil
}

// RequestName returns the request's name. Unnamed requests are named after
// their op, columns and stat, e.g. "scalar-stat:price:mean".
func RequestName(req model.AggregateRequest) string {
	if req.Name != "" {
		return req.Name
	}
	parts := []string{req.Op, req.Column}
	for _, p := range []string{req.Group, req.Other, strings.ToLower(req.Stat)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

func evaluate(ds model.Dataset, req model.AggregateRequest) (model.AggregateResult, error) {
	name := RequestName(req)
	if !ds.Schema.Has(req.Column) {
		return model.AggregateResult{}, unknownColumn(StageSummarize, name, req.Column)
	}

	var (
		res model.AggregateResult
		err error
	)
	switch req.Op {
	case model.OpScalarStat:
		res, err = scalarStat(ds, req, name)
	case model.OpTopN:
		res, err = topN(ds, req, name)
	case model.OpGroupByMean:
		res, err = groupByMean(ds, req, name)
	case model.OpFilterThreshold:
		res, err = filterThreshold(ds, req, name)
	case model.OpValueCounts:
		res, err = valueCounts(ds, req, name)
	case model.OpCorrelation:
		res, err = correlation(ds, req, name)
	case model.OpHistogram:
		res, err = histogram(ds, req, name)
	case model.OpQuantiles:
		res, err = quantiles(ds, req, name)
	default:
		return model.AggregateResult{}, invalidRequest(name, "unknown op %q", req.Op)
	}
	if err != nil {
		return model.AggregateResult{}, err
	}
	res.Name = name
	res.Op = req.Op
	return res, nil
}

// checkOrder rejects orders the op does not understand. Empty means the op's default.
func checkOrder(name, order string, allowed ...string) error {
	if order == "" {
		return nil
	}
	for _, a := range allowed {
		if order == a {
			return nil
		}
	}
	if len(allowed) == 0 {
		return invalidRequest(name, "order %q is not supported here", order)
	}
	return invalidRequest(name, "unknown order %q, want one of %s", order, strings.Join(allowed, ", "))
}

func requireNumeric(ds model.Dataset, name, column string) error {
	if t, _ := ds.Schema.TypeOf(column); t != model.TypeNumeric {
		return invalidRequest(name, "column %q is %s, not numeric", column, t)
	}
	return nil
}

func scalarStat(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	stat := strings.ToLower(req.Stat)
	fn, ok := scalarStats[stat]
	if !ok {
		return model.AggregateResult{}, invalidRequest(name, "unknown stat %q", req.Stat)
	}
	if err := requireNumeric(ds, name, req.Column); err != nil {
		return model.AggregateResult{}, err
	}

	res := model.AggregateResult{Columns: []string{"column", "stat", "value"}}
	values := ds.Numbers(req.Column)
	value := model.Missing()
	if len(values) == 0 {
		res.NoData = true
		if stat == "count" {
			value = model.Number(0)
		}
	} else {
		value = model.Number(fn(values))
	}
	res.Rows = [][]model.Value{{model.Text(req.Column), model.Text(stat), value}}
	return res, nil
}

// projection resolves the columns a row-returning request emits
func projection(ds model.Dataset, name string, sel []string) ([]string, error) {
	if len(sel) == 0 {
		return ds.Schema.Names(), nil
	}
	for _, c := range sel {
		if !ds.Schema.Has(c) {
			return nil, unknownColumn(StageSummarize, name, c)
		}
	}
	out := make([]string, len(sel))
	copy(out, sel)
	return out, nil
}

func project(rec model.Record, cols []string) []model.Value {
	row := make([]model.Value, len(cols))
	for i, c := range cols {
		row[i] = rec.Get(c)
	}
	return row
}

func topN(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	if req.N <= 0 {
		return model.AggregateResult{}, invalidRequest(name, "n must be positive, got %d", req.N)
	}
	if err := checkOrder(name, req.Order, "desc", "asc"); err != nil {
		return model.AggregateResult{}, err
	}
	if err := requireNumeric(ds, name, req.Column); err != nil {
		return model.AggregateResult{}, err
	}
	cols, err := projection(ds, name, req.Select)
	if err != nil {
		return model.AggregateResult{}, err
	}

	type ranked struct {
		rec model.Record
		v   float64
	}
	var rows []ranked
	for _, rec := range ds.Records {
		if f, ok := rec.Get(req.Column).Float(); ok {
			rows = append(rows, ranked{rec: rec, v: f})
		}
	}
	asc := req.Order == "asc"
	sort.SliceStable(rows, func(i, j int) bool {
		if asc {
			return rows[i].v < rows[j].v
		}
		return rows[i].v > rows[j].v
	})
	if len(rows) > req.N {
		rows = rows[:req.N]
	}

	res := model.AggregateResult{Columns: cols, Rows: make([][]model.Value, len(rows)), NoData: len(rows) == 0}
	for i, r := range rows {
		res.Rows[i] = project(r.rec, cols)
	}
	return res, nil
}

func groupByMean(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	if req.Group == "" {
		return model.AggregateResult{}, invalidRequest(name, "group column is required")
	}
	if !ds.Schema.Has(req.Group) {
		return model.AggregateResult{}, unknownColumn(StageSummarize, name, req.Group)
	}
	if err := requireNumeric(ds, name, req.Column); err != nil {
		return model.AggregateResult{}, err
	}
	if req.Limit < 0 {
		return model.AggregateResult{}, invalidRequest(name, "limit must not be negative")
	}
	if err := checkOrder(name, req.Order, "desc", "asc", "key"); err != nil {
		return model.AggregateResult{}, err
	}

	type group struct {
		key   model.Value
		sum   float64
		count int
	}
	index := make(map[string]int)
	var groups []*group
	for _, rec := range ds.Records {
		key := rec.Get(req.Group)
		if key.IsMissing() {
			continue
		}
		k := key.Kind.String() + "\x1f" + key.String()
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, &group{key: key})
		}
		if f, ok := rec.Get(req.Column).Float(); ok {
			groups[i].sum += f
			groups[i].count++
		}
	}

	mean := func(g *group) float64 {
		if g.count == 0 {
			return math.NaN()
		}
		return g.sum / float64(g.count)
	}
	switch req.Order {
	case "key":
		sort.SliceStable(groups, func(i, j int) bool { return compareValues(groups[i].key, groups[j].key) < 0 })
	case "asc":
		sort.SliceStable(groups, func(i, j int) bool { return lessMean(mean(groups[i]), mean(groups[j]), true) })
	default:
		sort.SliceStable(groups, func(i, j int) bool { return lessMean(mean(groups[i]), mean(groups[j]), false) })
	}
	if req.Limit > 0 && len(groups) > req.Limit {
		groups = groups[:req.Limit]
	}

	res := model.AggregateResult{
		Columns: []string{req.Group, "mean", "count"},
		Rows:    make([][]model.Value, len(groups)),
		NoData:  len(groups) == 0,
	}
	for i, g := range groups {
		m := model.Missing()
		if g.count > 0 {
			m = model.Number(mean(g))
		}
		res.Rows[i] = []model.Value{g.key, m, model.Number(float64(g.count))}
	}
	return res, nil
}

// lessMean orders defined means before undefined ones in either direction
func lessMean(a, b float64, asc bool) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN || bNaN:
		return !aNaN && bNaN
	case asc:
		return a < b
	default:
		return a > b
	}
}

// compareValues orders values of the same kind naturally and mixed kinds by kind
func compareValues(a, b model.Value) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case model.KindNumber:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case model.KindDate:
		return a.Time.Compare(b.Time)
	}
	return strings.Compare(a.String(), b.String())
}

func filterThreshold(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	if req.Predicate == nil {
		return model.AggregateResult{}, invalidRequest(name, "predicate is required")
	}
	cmp, ok := comparators[req.Predicate.Op]
	if !ok {
		return model.AggregateResult{}, invalidRequest(name, "unknown predicate op %q", req.Predicate.Op)
	}
	if err := requireNumeric(ds, name, req.Column); err != nil {
		return model.AggregateResult{}, err
	}
	cols, err := projection(ds, name, req.Select)
	if err != nil {
		return model.AggregateResult{}, err
	}

	res := model.AggregateResult{Columns: cols}
	for _, rec := range ds.Records {
		f, ok := rec.Get(req.Column).Float()
		if ok && cmp(f, req.Predicate.Threshold) {
			res.Rows = append(res.Rows, project(rec, cols))
		}
	}
	res.NoData = len(res.Rows) == 0
	return res, nil
}

var comparators = map[string]func(a, b float64) bool{
	">":  func(a, b float64) bool { return a > b },
	">=": func(a, b float64) bool { return a >= b },
	"<":  func(a, b float64) bool { return a < b },
	"<=": func(a, b float64) bool { return a <= b },
	"==": func(a, b float64) bool { return a == b },
	"!=": func(a, b float64) bool { return a != b },
}

func valueCounts(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	if err := checkOrder(name, req.Order, "desc"); err != nil {
		return model.AggregateResult{}, err
	}

	type bucket struct {
		v     model.Value
		count int
	}
	index := make(map[string]int)
	var buckets []*bucket
	for _, rec := range ds.Records {
		v := rec.Get(req.Column)
		if v.IsMissing() {
			continue
		}
		k := v.Kind.String() + "\x1f" + v.String()
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, &bucket{v: v})
		}
		buckets[i].count++
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].count > buckets[j].count })
	if req.Limit > 0 && len(buckets) > req.Limit {
		buckets = buckets[:req.Limit]
	}

	res := model.AggregateResult{
		Columns: []string{req.Column, "count"},
		Rows:    make([][]model.Value, len(buckets)),
		NoData:  len(buckets) == 0,
	}
	for i, b := range buckets {
		res.Rows[i] = []model.Value{b.v, model.Number(float64(b.count))}
	}
	return res, nil
}

func correlation(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	if req.Other == "" {
		return model.AggregateResult{}, invalidRequest(name, "other column is required")
	}
	if !ds.Schema.Has(req.Other) {
		return model.AggregateResult{}, unknownColumn(StageSummarize, name, req.Other)
	}
	for _, c := range []string{req.Column, req.Other} {
		if err := requireNumeric(ds, name, c); err != nil {
			return model.AggregateResult{}, err
		}
	}

	var xs, ys []float64
	for _, rec := range ds.Records {
		x, okX := rec.Get(req.Column).Float()
		y, okY := rec.Get(req.Other).Float()
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}

	res := model.AggregateResult{Columns: []string{"column", "other", "pearson"}}
	value := model.Missing()
	if r, ok := stats.Pearson(xs, ys); ok {
		value = model.Number(r)
	} else {
		res.NoData = true
	}
	res.Rows = [][]model.Value{{model.Text(req.Column), model.Text(req.Other), value}}
	return res, nil
}

const defaultBins = 10

// histogram counts a numeric column into equal-width bins. The edges span the
// request bounds, or the data's min and max where a bound is unset; both edges
// are inclusive. A single distinct value gets a unit-wide range around it.
func histogram(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	if err := requireNumeric(ds, name, req.Column); err != nil {
		return model.AggregateResult{}, err
	}
	if err := checkOrder(name, req.Order); err != nil {
		return model.AggregateResult{}, err
	}
	bins := req.Bins
	switch {
	case bins < 0:
		return model.AggregateResult{}, invalidRequest(name, "bins must not be negative, got %d", bins)
	case bins == 0:
		bins = defaultBins
	}

	var values []float64
	for _, f := range ds.Numbers(req.Column) {
		if !math.IsInf(f, 0) {
			values = append(values, f)
		}
	}
	lo, hi := stats.MinMax(values)
	if req.Bounds != nil {
		if req.Bounds.Min != nil {
			lo = *req.Bounds.Min
		}
		if req.Bounds.Max != nil {
			hi = *req.Bounds.Max
		}
	}

	res := model.AggregateResult{Columns: []string{"bin_start", "bin_end", "count"}}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		res.NoData = true
		return res, nil
	}
	if lo > hi {
		return model.AggregateResult{}, invalidRequest(name, "bounds min %g exceeds max %g", lo, hi)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	edges, counts := stats.Histogram(values, bins, lo, hi)
	total := 0
	res.Rows = make([][]model.Value, bins)
	for i, c := range counts {
		total += c
		res.Rows[i] = []model.Value{model.Number(edges[i]), model.Number(edges[i+1]), model.Number(float64(c))}
	}
	res.NoData = total == 0
	return res, nil
}

var defaultQuantiles = []float64{0.25, 0.5, 0.75}

// quantiles reports the requested quantiles of a numeric column, overall or
// per group. Groups keep first-seen order unless ordered by key.
func quantiles(ds model.Dataset, req model.AggregateRequest, name string) (model.AggregateResult, error) {
	if err := requireNumeric(ds, name, req.Column); err != nil {
		return model.AggregateResult{}, err
	}
	if err := checkOrder(name, req.Order, "key"); err != nil {
		return model.AggregateResult{}, err
	}
	if req.Group != "" && !ds.Schema.Has(req.Group) {
		return model.AggregateResult{}, unknownColumn(StageSummarize, name, req.Group)
	}
	probs := req.Quantiles
	if len(probs) == 0 {
		probs = defaultQuantiles
	}
	cols := []string{"column", "count"}
	if req.Group != "" {
		cols[0] = req.Group
	}
	for _, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return model.AggregateResult{}, invalidRequest(name, "quantile %g is outside [0, 1]", p)
		}
		cols = append(cols, quantileLabel(p))
	}

	type group struct {
		key    model.Value
		values []float64
	}
	var groups []*group
	if req.Group == "" {
		groups = []*group{{key: model.Text(req.Column), values: ds.Numbers(req.Column)}}
	} else {
		index := make(map[string]int)
		for _, rec := range ds.Records {
			key := rec.Get(req.Group)
			if key.IsMissing() {
				continue
			}
			k := key.Kind.String() + "\x1f" + key.String()
			i, ok := index[k]
			if !ok {
				i = len(groups)
				index[k] = i
				groups = append(groups, &group{key: key})
			}
			if f, ok := rec.Get(req.Column).Float(); ok {
				groups[i].values = append(groups[i].values, f)
			}
		}
		if req.Order == "key" {
			sort.SliceStable(groups, func(i, j int) bool { return compareValues(groups[i].key, groups[j].key) < 0 })
		}
	}

	res := model.AggregateResult{Columns: cols, Rows: make([][]model.Value, len(groups)), NoData: true}
	for i, g := range groups {
		row := []model.Value{g.key, model.Number(float64(len(g.values)))}
		for _, p := range probs {
			if len(g.values) == 0 {
				row = append(row, model.Missing())
				continue
			}
			row = append(row, model.Number(stats.Quantile(g.values, p)))
		}
		if len(g.values) > 0 {
			res.NoData = false
		}
		res.Rows[i] = row
	}
	return res, nil
}

// quantileLabel names a quantile column by its percentage, e.g. "p25"
func quantileLabel(p float64) string {
	return "p" + strconv.FormatFloat(math.Round(p*1e6)/1e4, 'f', -1, 64)
}
