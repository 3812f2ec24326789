package queryhrdata

import (
	"errors"
	"fmt"
	"strings"

	"hr-assistant/internal/models"
)

var (
	ErrColumnNotAllowed  = errors.New("COLUMN_NOT_ALLOWED")
	ErrUnsupportedMetric = errors.New("UNSUPPORTED_METRIC")
	ErrInvalidDimension  = errors.New("INVALID_DIMENSION")
	ErrInvalidFilter     = errors.New("INVALID_FILTER")
)

// Shape identifies the statement template a Query was built from.
type Shape string

const (
	ShapeMetric          Shape = "metric"
	ShapeNumericStats    Shape = "numeric_stats"
	ShapeBreakdown       Shape = "breakdown"
	ShapeUniqueValues    Shape = "unique_values"
	ShapeTopValues       Shape = "top_values"
	ShapeCompare         Shape = "compare"
	ShapeTimeSeries      Shape = "time_series"
	ShapeAttrition       Shape = "attrition_by_demography"
	ShapeSegmentation    Shape = "deep_segmentation"
	ShapeRiskFactor      Shape = "risk_factor"
	ShapeHiringNeeds     Shape = "hiring_needs"
	ShapeFTEDistribution Shape = "fte_distribution"
	ShapeRatio           Shape = "ratio"
)

// Result column aliases.
const (
	AliasCount            = "count"
	AliasTotal            = "total"
	AliasFired            = "fired"
	AliasTurnoverRate     = "turnover_rate"
	AliasAvgExperience    = "avg_exp"
	AliasAvgAge           = "avg_age"
	AliasAvgFTE           = "avg_fte"
	AliasTotalFired       = "total_fired"
	AliasTotalHired       = "total_hired"
	AliasAverage          = "average"
	AliasMin              = "min"
	AliasMax              = "max"
	AliasSum              = "sum"
	AliasValue            = "value"
	AliasTotalEmployees   = "total_employees"
	AliasFiredCount       = "fired_count"
	AliasAttritionRate    = "attrition_rate"
	AliasMatched          = "matched"
	AliasMonthlyAttrition = "monthly_attrition"
	AliasMonthlyHiring    = "monthly_hiring"
)

const (
	breakdownLimit    = 20
	compareLimit      = 20
	uniqueLimit       = 20
	segmentationLimit = 50
	riskLimit         = 10
	riskMinGroup      = 10
	maxTopN           = 100

	youngAgeLimit        = 25
	experiencedThreshold = 60
	remotePattern        = "%Дистанционщик%"
)

var comparatorSQL = map[models.Comparator]string{
	models.OpLess:         "<",
	models.OpLessEqual:    "<=",
	models.OpGreater:      ">",
	models.OpGreaterEqual: ">=",
}

// Query is a parameterized statement ready for the executor. Text uses ?
// placeholders; the executor rebinds them for the configured dialect.
type Query struct {
	Text  string
	Args  []interface{}
	Shape Shape
}

type scope struct {
	anchored bool
	active   bool
	exclude  models.Column
}

// Option adjusts the WHERE scope of a built query.
type Option func(*scope)

// WithActiveOnly restricts the query to employees still on staff.
func WithActiveOnly() Option {
	return func(s *scope) { s.active = true }
}

// WithoutSnapshot drops the snapshot date anchor.
func WithoutSnapshot() Option {
	return func(s *scope) { s.anchored = false }
}

type condition struct {
	text string
	args []interface{}
}

// Builder compiles typed metrics, columns, dimensions and normalized
// filters into parameterized SELECTs over hr_data_clean. Identifiers only
// ever come from the models enumerations.
type Builder struct {
	dialect Dialect
}

func NewBuilder(dialect Dialect) *Builder {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &Builder{dialect: dialect}
}

func (b *Builder) Dialect() Dialect { return b.dialect }

// ==========================
// Scalar metrics
// ==========================

// Metric builds the single-row statement of a scalar metric. Averages are
// computed over active employees only.
func (b *Builder) Metric(metric models.Metric, filters models.Filters, opts ...Option) (Query, error) {
	var selects string
	switch metric {
	case models.MetricHeadcount:
		selects = "COUNT(*) AS " + AliasCount
	case models.MetricTurnoverRate:
		selects = fmt.Sprintf("COUNT(*) AS %s, SUM(firecount) AS %s, %s AS %s",
			AliasTotal, AliasFired, b.dialect.turnover(), AliasTurnoverRate)
	case models.MetricAverageExperience:
		selects = "AVG(experience) AS " + AliasAvgExperience
	case models.MetricAverageAge:
		selects = "AVG(fullyears) AS " + AliasAvgAge
	case models.MetricAverageFTE:
		selects = "AVG(fte) AS " + AliasAvgFTE
	case models.MetricTotalFired:
		selects = "SUM(firecount) AS " + AliasTotalFired
	case models.MetricTotalHired:
		selects = "SUM(hirecount) AS " + AliasTotalHired
	default:
		return Query{}, fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
	}

	sc := newScope(opts)
	if isAverage(metric) {
		sc.active = true
	}
	return b.compose(ShapeMetric, selects, nil, filters, sc, nil, "")
}

// Aggregate returns the grouped aggregation expression of a metric.
func (b *Builder) Aggregate(metric models.Metric) (string, error) {
	switch metric {
	case models.MetricHeadcount:
		return "COUNT(*)", nil
	case models.MetricTurnoverRate:
		return b.dialect.turnover(), nil
	case models.MetricAverageExperience:
		return "AVG(experience)", nil
	case models.MetricAverageAge:
		return "AVG(fullyears)", nil
	case models.MetricAverageFTE:
		return "AVG(fte)", nil
	case models.MetricTotalFired:
		return "SUM(firecount)", nil
	case models.MetricTotalHired:
		return "SUM(hirecount)", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
}

// NumericStats builds count/avg/min/max/sum over one numeric column.
func (b *Builder) NumericStats(column models.Column, filters models.Filters) (Query, error) {
	col, err := allowed(column)
	if err != nil {
		return Query{}, err
	}
	selects := fmt.Sprintf("COUNT(%[1]s) AS %[2]s, AVG(%[1]s) AS %[3]s, MIN(%[1]s) AS %[4]s, MAX(%[1]s) AS %[5]s, SUM(%[1]s) AS %[6]s",
		col, AliasCount, AliasAverage, AliasMin, AliasMax, AliasSum)
	return b.compose(ShapeNumericStats, selects, nil, filters, newScope(nil), nil, "")
}

// ==========================
// Grouped shapes
// ==========================

// Breakdown counts rows per value of a column, largest first.
func (b *Builder) Breakdown(column models.Column, filters models.Filters) (Query, error) {
	col, err := allowed(column)
	if err != nil {
		return Query{}, err
	}
	selects := fmt.Sprintf("%s, COUNT(*) AS %s", col, AliasCount)
	tail := fmt.Sprintf(" GROUP BY %s ORDER BY %s DESC LIMIT %d", col, AliasCount, breakdownLimit)
	return b.compose(ShapeBreakdown, selects, nil, filters, newScope(nil), []condition{notNull(col)}, tail)
}

func (b *Builder) UniqueValues(column models.Column, filters models.Filters) (Query, error) {
	col, err := allowed(column)
	if err != nil {
		return Query{}, err
	}
	selects := "DISTINCT " + string(col)
	tail := fmt.Sprintf(" ORDER BY %s LIMIT %d", col, uniqueLimit)
	return b.compose(ShapeUniqueValues, selects, nil, filters, newScope(nil), []condition{notNull(col)}, tail)
}

// TopValues ranks the values of a column by headcount. A filter on the
// ranked column itself is ignored.
func (b *Builder) TopValues(column models.Column, n int, filters models.Filters) (Query, error) {
	col, err := allowed(column)
	if err != nil {
		return Query{}, err
	}
	if n <= 0 {
		n = breakdownLimit
	}
	if n > maxTopN {
		n = maxTopN
	}
	sc := newScope(nil)
	sc.exclude = col
	selects := fmt.Sprintf("%s, COUNT(*) AS %s", col, AliasCount)
	tail := fmt.Sprintf(" GROUP BY %s ORDER BY %s DESC LIMIT %d", col, AliasCount, n)
	return b.compose(ShapeTopValues, selects, nil, filters, sc, []condition{notNull(col)}, tail)
}

// Compare aggregates a metric per dimension value, highest first unless
// ascending is set.
func (b *Builder) Compare(metric models.Metric, dim models.Dimension, filters models.Filters, ascending bool) (Query, error) {
	d, ok := models.ParseDimension(string(dim), models.CompareDimensions)
	if !ok || d != dim {
		return Query{}, fmt.Errorf("%w: %s", ErrInvalidDimension, dim)
	}
	agg, err := b.Aggregate(metric)
	if err != nil {
		return Query{}, err
	}
	sc := newScope(nil)
	sc.active = needsActive(metric)

	order := "DESC"
	if ascending {
		order = "ASC"
	}
	col := d.Column()
	selects := fmt.Sprintf("%s, %s AS %s", col, agg, AliasValue)
	tail := fmt.Sprintf(" GROUP BY %s ORDER BY %s %s LIMIT %d", col, AliasValue, order, compareLimit)
	return b.compose(ShapeCompare, selects, nil, filters, sc, []condition{notNull(col)}, tail)
}

// TimeSeries aggregates a metric per report date over every snapshot.
func (b *Builder) TimeSeries(metric models.Metric, filters models.Filters) (Query, error) {
	return b.series(metric, filters, false)
}

// Trend is TimeSeries with headcount and averages restricted to active
// employees.
func (b *Builder) Trend(metric models.Metric, filters models.Filters) (Query, error) {
	return b.series(metric, filters, needsActive(metric))
}

func (b *Builder) series(metric models.Metric, filters models.Filters, active bool) (Query, error) {
	agg, err := b.Aggregate(metric)
	if err != nil {
		return Query{}, err
	}
	sc := newScope([]Option{WithoutSnapshot()})
	sc.active = active
	selects := fmt.Sprintf("%s, %s AS %s", models.ColReportDate, agg, AliasValue)
	tail := fmt.Sprintf(" GROUP BY %[1]s ORDER BY %[1]s ASC", models.ColReportDate)
	return b.compose(ShapeTimeSeries, selects, nil, filters, sc, nil, tail)
}

// AttritionByDemography breaks attrition down by a demographic dimension,
// highest rate first. The service is expected among the filters.
func (b *Builder) AttritionByDemography(dim models.Dimension, filters models.Filters) (Query, error) {
	d, ok := models.ParseDimension(string(dim), models.AttritionDimensions)
	if !ok || d != dim {
		return Query{}, fmt.Errorf("%w: %s", ErrInvalidDimension, dim)
	}
	col := d.Column()
	selects := fmt.Sprintf("%s, COUNT(*) AS %s, SUM(firecount) AS %s, %s AS %s",
		col, AliasTotalEmployees, AliasFiredCount, b.dialect.turnover(), AliasAttritionRate)
	tail := fmt.Sprintf(" GROUP BY %s ORDER BY %s DESC", col, AliasAttritionRate)
	return b.compose(ShapeAttrition, selects, nil, filters, newScope(nil), []condition{notNull(col)}, tail)
}

// Segmentation groups by one or two dimensions and computes the requested
// segment metrics, aliased by their own names.
func (b *Builder) Segmentation(dims []models.Dimension, metrics []models.SegmentMetric, filters models.Filters) (Query, error) {
	if len(dims) == 0 || len(dims) > 2 {
		return Query{}, fmt.Errorf("%w: segmentation needs one or two dimensions, got %d", ErrInvalidDimension, len(dims))
	}
	if len(dims) == 2 && dims[0] == dims[1] {
		dims = dims[:1]
	}

	cols := make([]string, 0, len(dims))
	conds := make([]condition, 0, len(dims))
	for _, dim := range dims {
		d, ok := models.ParseDimension(string(dim), models.SegmentDimensions)
		if !ok || d != dim {
			return Query{}, fmt.Errorf("%w: %s", ErrInvalidDimension, dim)
		}
		cols = append(cols, string(d.Column()))
		conds = append(conds, notNull(d.Column()))
	}

	if len(metrics) == 0 {
		metrics = []models.SegmentMetric{models.SegmentHeadcount}
	}
	seen := map[models.SegmentMetric]bool{}
	selects := append([]string{}, cols...)
	for _, m := range metrics {
		if seen[m] {
			continue
		}
		seen[m] = true
		expr, err := b.segmentExpr(m)
		if err != nil {
			return Query{}, err
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", expr, m))
	}

	group := strings.Join(cols, ", ")
	tail := fmt.Sprintf(" GROUP BY %s ORDER BY %s LIMIT %d", group, group, segmentationLimit)
	return b.compose(ShapeSegmentation, strings.Join(selects, ", "), nil, filters, newScope(nil), conds, tail)
}

func (b *Builder) segmentExpr(m models.SegmentMetric) (string, error) {
	switch m {
	case models.SegmentHeadcount:
		return "COUNT(*)", nil
	case models.SegmentAttritionRate:
		return b.dialect.turnover(), nil
	case models.SegmentAvgExperience:
		return "AVG(experience)", nil
	case models.SegmentAvgAge:
		return "AVG(fullyears)", nil
	case models.SegmentAvgFTE:
		return "AVG(fte)", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMetric, m)
}

// RiskFactor ranks the groups of one risk factor by attrition. Groups under
// ten employees are left out.
func (b *Builder) RiskFactor(dim models.Dimension, filters models.Filters) (Query, error) {
	d, ok := models.ParseDimension(string(dim), models.RiskFactors)
	if !ok || d != dim {
		return Query{}, fmt.Errorf("%w: %s", ErrInvalidDimension, dim)
	}
	col := d.Column()
	selects := fmt.Sprintf("%s, COUNT(*) AS %s, SUM(firecount) AS %s, %s AS %s",
		col, AliasTotal, AliasFired, b.dialect.turnover(), AliasAttritionRate)
	tail := fmt.Sprintf(" GROUP BY %s HAVING COUNT(*) >= %d ORDER BY %s DESC LIMIT %d",
		col, riskMinGroup, AliasAttritionRate, riskLimit)
	return b.compose(ShapeRiskFactor, selects, nil, filters, newScope(nil), []condition{notNull(col)}, tail)
}

// HiringNeeds sums fires, hires and headcount of the filtered population.
func (b *Builder) HiringNeeds(filters models.Filters) (Query, error) {
	selects := fmt.Sprintf("SUM(firecount) AS %s, COUNT(*) AS %s, SUM(hirecount) AS %s",
		AliasMonthlyAttrition, AliasTotalEmployees, AliasMonthlyHiring)
	return b.compose(ShapeHiringNeeds, selects, nil, filters, newScope(nil), nil, "")
}

func (b *Builder) FTEDistribution(filters models.Filters) (Query, error) {
	col := models.ColFTE
	selects := fmt.Sprintf("%s, COUNT(*) AS %s", col, AliasCount)
	tail := fmt.Sprintf(" GROUP BY %[1]s ORDER BY %[1]s", col)
	return b.compose(ShapeFTEDistribution, selects, nil, filters, newScope(nil), []condition{notNull(col)}, tail)
}

// ==========================
// Ratios
// ==========================

// RatioKind is a sub-population counted against its filtered total.
type RatioKind int

const (
	RatioFullTime RatioKind = iota
	RatioPartTime
	RatioRemote
	RatioYoung
	RatioExperienced
)

// Ratio counts the total and the matching rows in one statement.
func (b *Builder) Ratio(kind RatioKind, filters models.Filters) (Query, error) {
	sc := newScope(nil)
	var cond condition
	switch kind {
	case RatioFullTime:
		cond = condition{text: "fte = ?", args: []interface{}{1.0}}
	case RatioPartTime:
		cond = condition{text: "fte < ?", args: []interface{}{1.0}}
	case RatioRemote:
		cond = condition{text: "location_name LIKE ?", args: []interface{}{remotePattern}}
		sc.exclude = models.ColLocation
	case RatioYoung:
		cond = condition{text: "fullyears < ?", args: []interface{}{float64(youngAgeLimit)}}
		sc.active = true
	case RatioExperienced:
		cond = condition{text: "experience > ?", args: []interface{}{float64(experiencedThreshold)}}
		sc.active = true
	default:
		return Query{}, fmt.Errorf("%w: ratio %d", ErrUnsupportedMetric, kind)
	}

	selects := fmt.Sprintf("COUNT(*) AS %s, SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS %s", AliasTotal, cond.text, AliasMatched)
	return b.compose(ShapeRatio, selects, cond.args, filters, sc, nil, "")
}

// ==========================
// Assembly
// ==========================

func newScope(opts []Option) scope {
	sc := scope{anchored: true}
	for _, opt := range opts {
		opt(&sc)
	}
	return sc
}

func (b *Builder) compose(shape Shape, selects string, selectArgs []interface{}, filters models.Filters, sc scope, extra []condition, tail string) (Query, error) {
	where, whereArgs, err := buildWhere(filters, sc, extra)
	if err != nil {
		return Query{}, err
	}

	args := make([]interface{}, 0, len(selectArgs)+len(whereArgs))
	args = append(args, selectArgs...)
	args = append(args, whereArgs...)

	text := "SELECT " + selects + " FROM " + models.TableName + where + tail
	return Query{Text: text, Args: args, Shape: shape}, nil
}

// buildWhere emits the snapshot anchor, the filters in allow-list order,
// the active marker and the extra conditions, in that order.
func buildWhere(filters models.Filters, sc scope, extra []condition) (string, []interface{}, error) {
	var conds []string
	var args []interface{}

	if sc.anchored {
		if _, explicit := filters[models.ColReportDate]; !explicit || sc.exclude == models.ColReportDate {
			conds = append(conds, "report_date = ?")
			args = append(args, models.SnapshotDate)
		}
	}

	for _, f := range filters.Sorted() {
		if f.Column == sc.exclude {
			continue
		}
		text, arg, err := renderFilter(f)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, text)
		args = append(args, arg)
	}

	if sc.active {
		if _, explicit := filters[models.ColFireFromCompany]; !explicit {
			conds = append(conds, "fire_from_company = ?")
			args = append(args, models.ActiveMarker)
		}
	}

	for _, c := range extra {
		conds = append(conds, c.text)
		args = append(args, c.args...)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func renderFilter(f models.Filter) (string, interface{}, error) {
	col, err := allowed(f.Column)
	if err != nil {
		return "", nil, err
	}
	switch f.Value.Kind {
	case models.FilterComparator:
		op, ok := comparatorSQL[f.Value.Op]
		if !ok || !col.Numeric() {
			return "", nil, fmt.Errorf("%w: %s %s", ErrInvalidFilter, col, f.Value.Op)
		}
		return fmt.Sprintf("%s %s ?", col, op), f.Value.Number, nil
	case models.FilterLike:
		if !col.Text() {
			return "", nil, fmt.Errorf("%w: LIKE on %s", ErrInvalidFilter, col)
		}
		return string(col) + " LIKE ?", f.Value.Text, nil
	}
	return string(col) + " = ?", f.Value.Arg(), nil
}

// allowed returns the column only if it is spelled exactly as an
// allow-list member.
func allowed(c models.Column) (models.Column, error) {
	col, ok := models.ParseColumn(string(c))
	if !ok || col != c {
		return "", fmt.Errorf("%w: %q", ErrColumnNotAllowed, string(c))
	}
	return col, nil
}

func notNull(col models.Column) condition {
	return condition{text: string(col) + " IS NOT NULL"}
}

func isAverage(m models.Metric) bool {
	switch m {
	case models.MetricAverageExperience, models.MetricAverageAge, models.MetricAverageFTE:
		return true
	}
	return false
}

// needsActive reports whether grouped aggregations of m count only active
// employees.
func needsActive(m models.Metric) bool {
	return m == models.MetricHeadcount || isAverage(m)
}
