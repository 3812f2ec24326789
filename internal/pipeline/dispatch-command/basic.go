package dispatchcommand

import (
	"context"
	"fmt"

	"hr-assistant/internal/models"
	buildresponse "hr-assistant/internal/pipeline/build-response"
	queryhrdata "hr-assistant/internal/pipeline/query-hrdata"
)

const defaultTopN = 20

var ratioKinds = map[models.Metric]queryhrdata.RatioKind{
	models.MetricFullTimeRatio:      queryhrdata.RatioFullTime,
	models.MetricPartTimeRatio:      queryhrdata.RatioPartTime,
	models.MetricRemoteWorkers:      queryhrdata.RatioRemote,
	models.MetricRemoteRatio:        queryhrdata.RatioRemote,
	models.MetricYoungWorkers:       queryhrdata.RatioYoung,
	models.MetricExperiencedWorkers: queryhrdata.RatioExperienced,
}

func (d *Dispatcher) runBasic(ctx context.Context, cmd models.Command, query string) models.Result {
	switch cmd.Action {
	case models.ActionHelpExamples:
		return models.OK(buildresponse.HelpText())
	case models.ActionUnknown:
		reason := cmd.Reason()
		if reason == "" {
			reason = "Неизвестная причина"
		}
		return models.Fail("❌ Не могу обработать запрос: " + reason)
	case models.ActionGetStats:
		return d.getStats(ctx, cmd, query)
	case models.ActionCalculate:
		return d.calculate(ctx, cmd)
	case models.ActionTimeSeries:
		return d.timeSeries(ctx, cmd)
	case models.ActionUniqueValues:
		return d.uniqueValues(ctx, cmd)
	case models.ActionTopValues:
		return d.topValues(ctx, cmd)
	case models.ActionCompare, models.ActionCompareMin, models.ActionTrendAnalysis,
		models.ActionCalculateComplex, models.ActionAttritionByDemography, models.ActionDeepSegmentation,
		models.ActionAttritionRisk, models.ActionHiringNeeds, models.ActionCorrelation, models.ActionSegmentation:
		return d.runComplex(ctx, cmd)
	}
	return d.invalid(cmd, fmt.Sprintf("❌ Метод '%s' не поддерживается", cmd.Action))
}

// getStats renders numeric columns as count/avg/min/max/sum and categorical
// ones as a breakdown.
func (d *Dispatcher) getStats(ctx context.Context, cmd models.Command, query string) models.Result {
	name := cmd.Param(models.ParamColumn)
	if name == "" {
		return d.invalid(cmd, "❌ Не указана колонка для анализа")
	}
	col, ok := d.columns.Lookup(name)
	if !ok {
		return d.invalid(cmd, d.columnNotFound(name))
	}
	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}

	if d.columns.IsNumeric(col) {
		q, err := d.builder.NumericStats(col, filters)
		return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
			return d.formatter.NumericStats(col, rows, query)
		})
	}
	q, err := d.builder.Breakdown(col, filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.Breakdown(col, rows)
	})
}

func (d *Dispatcher) calculate(ctx context.Context, cmd models.Command) models.Result {
	name := cmd.Param(models.ParamMetric)
	metric, ok := models.ParseMetric(name)
	if !ok {
		return d.invalid(cmd, metricNotSupported(name, models.SupportedMetrics))
	}
	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}
	return d.metric(ctx, cmd, metric, filters)
}

// metric computes any supported metric: scalars, the fte distribution and
// the sub-population ratios.
func (d *Dispatcher) metric(ctx context.Context, cmd models.Command, metric models.Metric, filters models.Filters) models.Result {
	switch metric {
	case models.MetricHeadcount, models.MetricTurnoverRate, models.MetricAverageExperience,
		models.MetricAverageAge, models.MetricAverageFTE, models.MetricTotalFired, models.MetricTotalHired:
		q, err := d.builder.Metric(metric, filters)
		return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
			return d.formatter.Metric(metric, rows)
		})
	case models.MetricFTEDistribution:
		q, err := d.builder.FTEDistribution(filters)
		return d.run(ctx, cmd, q, err, d.formatter.FTEDistribution)
	case models.MetricFullTimeRatio, models.MetricPartTimeRatio, models.MetricRemoteWorkers,
		models.MetricRemoteRatio, models.MetricYoungWorkers, models.MetricExperiencedWorkers:
		q, err := d.builder.Ratio(ratioKinds[metric], filters)
		return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
			return d.formatter.Ratio(metric, rows)
		})
	}
	return d.invalid(cmd, metricNotSupported(string(metric), models.SupportedMetrics))
}

func (d *Dispatcher) timeSeries(ctx context.Context, cmd models.Command) models.Result {
	name := cmd.Param(models.ParamMetric)
	if name == "" {
		return d.invalid(cmd, "❌ Не указана метрика для временного анализа")
	}
	if cmd.Has(models.ParamGroupBy) {
		return d.invalid(cmd, "❌ Группировка в временных рядах временно недоступна")
	}
	metric, ok := models.ParseTimeSeriesMetric(name)
	if !ok {
		return d.invalid(cmd, fmt.Sprintf("❌ Метрика '%s' не поддерживается для временного анализа", name))
	}
	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}
	q, err := d.builder.TimeSeries(metric, filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.TimeSeries(metric, rows)
	})
}

func (d *Dispatcher) uniqueValues(ctx context.Context, cmd models.Command) models.Result {
	name := cmd.Param(models.ParamColumn)
	if name == "" {
		return d.invalid(cmd, "❌ Не указана колонка для получения уникальных значений")
	}
	col, ok := d.columns.Lookup(name)
	if !ok {
		return d.invalid(cmd, d.columnNotFound(name))
	}
	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}
	q, err := d.builder.UniqueValues(col, filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.UniqueValues(col, rows)
	})
}

func (d *Dispatcher) topValues(ctx context.Context, cmd models.Command) models.Result {
	name := cmd.Param(models.ParamColumn)
	if name == "" {
		return d.invalid(cmd, "❌ Не указана колонка для анализа")
	}
	col, ok := d.columns.Lookup(name)
	if !ok {
		return d.invalid(cmd, d.columnNotFound(name))
	}
	n := cmd.Int(models.ParamN, defaultTopN)
	_, hiring := cmd.Filters()[string(models.ColHireCount)]

	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}
	q, err := d.builder.TopValues(col, n, filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.TopValues(col, n, rows, hiring)
	})
}
