package dispatchcommand

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"hr-assistant/internal/models"
	buildresponse "hr-assistant/internal/pipeline/build-response"
)

const maxSegmentDims = 2

func (d *Dispatcher) runComplex(ctx context.Context, cmd models.Command) models.Result {
	switch cmd.Action {
	case models.ActionCompare, models.ActionCompareMin:
		return d.compare(ctx, cmd)
	case models.ActionTrendAnalysis:
		return d.trend(ctx, cmd)
	case models.ActionCalculateComplex:
		if !cmd.Has(models.ParamMetric) {
			return d.invalid(cmd, "❌ Не указана метрика для расчета")
		}
		return d.calculate(ctx, cmd)
	case models.ActionAttritionByDemography:
		return d.attritionByDemography(ctx, cmd)
	case models.ActionDeepSegmentation:
		return d.deepSegmentation(ctx, cmd)
	case models.ActionAttritionRisk:
		return d.attritionRisk(ctx, cmd)
	case models.ActionHiringNeeds:
		return d.hiringNeeds(ctx, cmd)
	case models.ActionCorrelation:
		return models.Fail("❌ Корреляционный анализ временно недоступен. Используйте сравнение метрик.")
	case models.ActionSegmentation:
		return models.Fail("❌ Сегментационный анализ временно недоступен. Используйте сравнение по измерениям.")
	case models.ActionGetStats, models.ActionCalculate, models.ActionTimeSeries, models.ActionUniqueValues,
		models.ActionTopValues, models.ActionHelpExamples, models.ActionUnknown:
		return d.invalid(cmd, fmt.Sprintf("❌ Метод '%s' не поддерживается сложными инструментами", cmd.Action))
	}
	return d.invalid(cmd, fmt.Sprintf("❌ Метод '%s' не поддерживается", cmd.Action))
}

func (d *Dispatcher) compare(ctx context.Context, cmd models.Command) models.Result {
	metricName, dimName := cmd.Param(models.ParamMetric), cmd.Param(models.ParamDimension)
	if metricName == "" || dimName == "" {
		return d.invalid(cmd, "❌ Для сравнения нужны metric и dimension")
	}
	metric, ok := models.ParseMetric(metricName)
	if !ok {
		return d.invalid(cmd, metricNotSupported(metricName, models.SupportedMetrics))
	}
	dim, ok := models.ParseDimension(dimName, models.CompareDimensions)
	if !ok {
		return d.invalid(cmd, dimensionNotSupported(dimName, models.CompareDimensions))
	}
	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}

	q, err := d.builder.Compare(metric, dim, filters, cmd.Action == models.ActionCompareMin)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.Compare(metric, dim, rows)
	})
}

// trend covers every snapshot in the dataset; period is accepted for
// compatibility and only logged.
func (d *Dispatcher) trend(ctx context.Context, cmd models.Command) models.Result {
	name := cmd.Param(models.ParamMetric)
	if name == "" {
		return d.invalid(cmd, "❌ Для анализа трендов нужна metric")
	}
	metric, ok := models.ParseTimeSeriesMetric(name)
	if !ok {
		return d.invalid(cmd, fmt.Sprintf("❌ Метрика '%s' не поддерживается для анализа трендов", name))
	}
	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}

	d.logger.Debug("trend requested", map[string]interface{}{
		"metric": string(metric),
		"period": cmd.Param(models.ParamPeriod),
	})
	q, err := d.builder.Trend(metric, filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.Trend(metric, rows)
	})
}

func (d *Dispatcher) attritionByDemography(ctx context.Context, cmd models.Command) models.Result {
	service, dimName := cmd.Param(models.ParamService), cmd.Param(models.ParamDimension)
	if service == "" || dimName == "" {
		return d.invalid(cmd, "❌ Для анализа оттока нужны service и dimension")
	}
	dim, ok := models.ParseDimension(dimName, models.AttritionDimensions)
	if !ok {
		return d.invalid(cmd, dimensionNotSupported(dimName, models.AttritionDimensions))
	}
	filters, err := d.normalize(ctx, cmd, map[string]interface{}{string(models.ColService): service})
	if err != nil {
		return d.failure(cmd, err)
	}

	q, err := d.builder.AttritionByDemography(dim, filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.AttritionByDemography(serviceName(filters, service), dim, rows)
	})
}

func (d *Dispatcher) deepSegmentation(ctx context.Context, cmd models.Command) models.Result {
	names := cmd.Strings(models.ParamSegmentBy)
	if len(names) == 0 {
		return d.invalid(cmd, "❌ Для глубокой сегментации нужен segment_by")
	}
	if len(names) > maxSegmentDims {
		return d.invalid(cmd, "❌ Слишком много измерений для сегментации. Максимум 2.")
	}

	dims := make([]models.Dimension, 0, len(names))
	for _, name := range names {
		dim, ok := models.ParseDimension(name, models.SegmentDimensions)
		if !ok {
			return d.invalid(cmd, dimensionNotSupported(name, models.SegmentDimensions))
		}
		dims = append(dims, dim)
	}

	var segMetrics []models.SegmentMetric
	for _, name := range cmd.Strings(models.ParamMetrics) {
		m, ok := models.ParseSegmentMetric(name)
		if !ok {
			return d.invalid(cmd, fmt.Sprintf("❌ Метрика '%s' не поддерживается для сегментации. Доступные: %s",
				name, joinNames(models.SegmentMetrics)))
		}
		segMetrics = append(segMetrics, m)
	}
	if len(segMetrics) == 0 {
		segMetrics = []models.SegmentMetric{models.SegmentHeadcount}
	}

	filters, err := d.normalize(ctx, cmd, nil)
	if err != nil {
		return d.failure(cmd, err)
	}
	q, err := d.builder.Segmentation(dims, segMetrics, filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.Segmentation(dims, segMetrics, rows)
	})
}

// attritionRisk runs one ranked query per risk factor concurrently.
func (d *Dispatcher) attritionRisk(ctx context.Context, cmd models.Command) models.Result {
	factors := models.RiskFactors
	if names := cmd.Strings(models.ParamRiskFactors); len(names) > 0 {
		factors = make([]models.Dimension, 0, len(names))
		for _, name := range names {
			dim, ok := models.ParseDimension(name, models.RiskFactors)
			if !ok {
				return d.invalid(cmd, dimensionNotSupported(name, models.RiskFactors))
			}
			factors = append(factors, dim)
		}
	}

	var extra map[string]interface{}
	service := companyScope(cmd.Param(models.ParamService))
	if service != "" {
		extra = map[string]interface{}{string(models.ColService): service}
	}
	filters, err := d.normalize(ctx, cmd, extra)
	if err != nil {
		return d.failure(cmd, err)
	}

	groups := make([]buildresponse.RiskGroup, len(factors))
	g, gctx := errgroup.WithContext(ctx)
	for i, factor := range factors {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("risk factor %s: panic: %v", factor, r)
				}
			}()

			q, err := d.builder.RiskFactor(factor, filters)
			if err != nil {
				return err
			}
			rows, err := d.runner.Run(gctx, q)
			if err != nil {
				return err
			}
			groups[i] = buildresponse.RiskGroup{Factor: factor, Rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return d.failure(cmd, err)
	}
	return d.formatter.Risk(serviceName(filters, service), groups)
}

// hiringNeeds compares monthly attrition and hiring of a service, or of the
// whole company when no service is named.
func (d *Dispatcher) hiringNeeds(ctx context.Context, cmd models.Command) models.Result {
	var extra map[string]interface{}
	service := companyScope(cmd.Param(models.ParamService))
	if service != "" {
		extra = map[string]interface{}{string(models.ColService): service}
	}
	filters, err := d.normalize(ctx, cmd, extra)
	if err != nil {
		return d.failure(cmd, err)
	}

	q, err := d.builder.HiringNeeds(filters)
	return d.run(ctx, cmd, q, err, func(rows models.Rows) models.Result {
		return d.formatter.HiringNeeds(serviceName(filters, service), rows)
	})
}

// companyScope maps the placeholders models use for "no service" to "".
func companyScope(service string) string {
	switch strings.ToLower(service) {
	case "all", "service", "все", "компания":
		return ""
	}
	return service
}

// serviceName is the display name of the service filter after
// normalization, or fallback when it was not an exact match.
func serviceName(filters models.Filters, fallback string) string {
	if fallback == "" {
		return ""
	}
	if fv, ok := filters[models.ColService]; ok && fv.Kind == models.FilterExact && fv.Text != "" {
		return fv.Text
	}
	return fallback
}
