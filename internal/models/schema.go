package models

import "strings"

// TableName is the only table the assistant reads.
const TableName = "hr_data_clean"

const (
	// SnapshotDate anchors non-temporal queries to the latest report.
	SnapshotDate = "2025-08-31"
	// ActiveMarker is the fire_from_company value of employees still on staff.
	ActiveMarker = "1970-01-01"
)

// Canonical report dates present in the dataset.
var ReportDates = []string{"2025-07-31", "2025-08-31", "2025-09-03"}

// Column is an allow-listed column of hr_data_clean.
type Column string

const (
	ColFullyears          Column = "fullyears"
	ColAgeCategory        Column = "age_category"
	ColLocation           Column = "location_name"
	ColCluster            Column = "cluster"
	ColService            Column = "service"
	ColSex                Column = "sex"
	ColExperienceCategory Column = "experience_category"
	ColExperience         Column = "experience"
	ColFireFromCompany    Column = "fire_from_company"
	ColHireToCompany      Column = "hire_to_company"
	ColHireCount          Column = "hirecount"
	ColFireCount          Column = "firecount"
	ColFTE                Column = "fte"
	ColRealDay            Column = "real_day"
	ColReportDate         Column = "report_date"
	ColDepartment3        Column = "department_3"
	ColDepartment4        Column = "department_4"
	ColDepartment5        Column = "department_5"
	ColDepartment6        Column = "department_6"
)

// AllowedColumns is the column allow-list in canonical order. SQL clauses are
// emitted in this order.
var AllowedColumns = []Column{
	ColFullyears,
	ColAgeCategory,
	ColLocation,
	ColCluster,
	ColService,
	ColSex,
	ColExperienceCategory,
	ColExperience,
	ColFireFromCompany,
	ColHireToCompany,
	ColHireCount,
	ColFireCount,
	ColFTE,
	ColRealDay,
	ColReportDate,
	ColDepartment3,
	ColDepartment4,
	ColDepartment5,
	ColDepartment6,
}

var numericColumns = map[Column]bool{
	ColFullyears:  true,
	ColExperience: true,
	ColFTE:        true,
	ColHireCount:  true,
	ColFireCount:  true,
	ColRealDay:    true,
}

// LIKE patterns are only meaningful on free-text columns.
var textColumns = map[Column]bool{
	ColLocation:    true,
	ColService:     true,
	ColCluster:     true,
	ColDepartment3: true,
	ColDepartment4: true,
	ColDepartment5: true,
	ColDepartment6: true,
}

func ParseColumn(s string) (Column, bool) {
	name := Column(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range AllowedColumns {
		if c == name {
			return c, true
		}
	}
	return "", false
}

func (c Column) Numeric() bool { return numericColumns[c] }

func (c Column) Text() bool { return textColumns[c] }

func (c Column) Index() int {
	for i, col := range AllowedColumns {
		if col == c {
			return i
		}
	}
	return len(AllowedColumns)
}

// Metric is a supported scalar or distribution metric.
type Metric string

const (
	MetricHeadcount          Metric = "headcount"
	MetricTurnoverRate       Metric = "turnover_rate"
	MetricAverageExperience  Metric = "average_experience"
	MetricAverageAge         Metric = "average_age"
	MetricAverageFTE         Metric = "average_fte"
	MetricTotalFired         Metric = "total_fired"
	MetricTotalHired         Metric = "total_hired"
	MetricFTEDistribution    Metric = "fte_distribution"
	MetricRemoteWorkers      Metric = "remote_workers"
	MetricFullTimeRatio      Metric = "full_time_ratio"
	MetricPartTimeRatio      Metric = "part_time_ratio"
	MetricYoungWorkers       Metric = "young_workers"
	MetricExperiencedWorkers Metric = "experienced_workers"
	MetricRemoteRatio        Metric = "remote_ratio"
)

var SupportedMetrics = []Metric{
	MetricHeadcount,
	MetricTurnoverRate,
	MetricAverageExperience,
	MetricAverageAge,
	MetricAverageFTE,
	MetricTotalFired,
	MetricTotalHired,
	MetricFTEDistribution,
	MetricRemoteWorkers,
	MetricFullTimeRatio,
	MetricPartTimeRatio,
	MetricYoungWorkers,
	MetricExperiencedWorkers,
	MetricRemoteRatio,
}

// ComplexMetrics are computed by calculate_complex rather than calculate.
var ComplexMetrics = []Metric{MetricYoungWorkers, MetricExperiencedWorkers}

// time series and trend accept a few legacy spellings
var timeSeriesAliases = map[string]Metric{
	"hires":          MetricTotalHired,
	"turnover":       MetricTotalFired,
	"attrition_rate": MetricTurnoverRate,
}

// TimeSeriesMetrics have a per-date aggregation.
var TimeSeriesMetrics = []Metric{MetricHeadcount, MetricTotalHired, MetricTotalFired, MetricTurnoverRate}

func ParseMetric(s string) (Metric, bool) {
	name := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range SupportedMetrics {
		if m == name {
			return m, true
		}
	}
	return "", false
}

// ParseTimeSeriesMetric resolves metric names accepted by time_series and trend_analysis.
func ParseTimeSeriesMetric(s string) (Metric, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if m, ok := timeSeriesAliases[name]; ok {
		return m, true
	}
	for _, m := range TimeSeriesMetrics {
		if string(m) == name {
			return m, true
		}
	}
	return "", false
}

func (m Metric) IsComplex() bool {
	for _, c := range ComplexMetrics {
		if c == m {
			return true
		}
	}
	return false
}

// Dimension is a grouping axis.
type Dimension string

const (
	DimService            Dimension = "service"
	DimLocation           Dimension = "location_name"
	DimCluster            Dimension = "cluster"
	DimAgeCategory        Dimension = "age_category"
	DimExperienceCategory Dimension = "experience_category"
	DimSex                Dimension = "sex"
	DimFTE                Dimension = "fte"
)

// CompareDimensions are accepted by compare, compare_min and top-level breakdowns.
var CompareDimensions = []Dimension{DimService, DimLocation, DimCluster, DimAgeCategory, DimExperienceCategory, DimSex}

// AttritionDimensions are accepted by analyze_attrition_by_demography.
var AttritionDimensions = []Dimension{DimAgeCategory, DimExperienceCategory, DimSex, DimCluster}

// SegmentDimensions are accepted by deep_segmentation_analysis.
var SegmentDimensions = []Dimension{DimService, DimLocation, DimCluster, DimAgeCategory, DimExperienceCategory, DimSex, DimFTE}

// RiskFactors are the default axes of attrition_risk_analysis.
var RiskFactors = []Dimension{DimAgeCategory, DimExperienceCategory, DimSex, DimFTE}

func ParseDimension(s string, allowed []Dimension) (Dimension, bool) {
	name := Dimension(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range allowed {
		if d == name {
			return d, true
		}
	}
	return "", false
}

func (d Dimension) Column() Column { return Column(d) }

// SegmentMetric is a per-segment measure of deep segmentation.
type SegmentMetric string

const (
	SegmentHeadcount     SegmentMetric = "headcount"
	SegmentAttritionRate SegmentMetric = "attrition_rate"
	SegmentAvgExperience SegmentMetric = "avg_experience"
	SegmentAvgAge        SegmentMetric = "avg_age"
	SegmentAvgFTE        SegmentMetric = "avg_fte"
)

var SegmentMetrics = []SegmentMetric{SegmentHeadcount, SegmentAttritionRate, SegmentAvgExperience, SegmentAvgAge, SegmentAvgFTE}

func ParseSegmentMetric(s string) (SegmentMetric, bool) {
	name := SegmentMetric(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range SegmentMetrics {
		if m == name {
			return m, true
		}
	}
	return "", false
}

// FTEValues are the contract rates present in the dataset.
var FTEValues = []float64{0.0, 0.2, 0.37, 0.4, 0.5, 0.75, 1.0}
