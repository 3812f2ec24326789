package dispatchcommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "hr-assistant/internal/common/errors"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/common/metrics"
	"hr-assistant/internal/models"
	buildresponse "hr-assistant/internal/pipeline/build-response"
	normalizefilters "hr-assistant/internal/pipeline/normalize-filters"
	parsefallback "hr-assistant/internal/pipeline/parse-fallback"
	queryhrdata "hr-assistant/internal/pipeline/query-hrdata"
	"hr-assistant/internal/vocabulary"
)

const (
	TaskType = "dispatch-command"

	storageFailure = "❌ Не удалось получить данные. Попробуйте повторить запрос позже."
)

// ToolGroup is the family of tools that executes an action.
type ToolGroup string

const (
	GroupBasic   ToolGroup = "basic"
	GroupComplex ToolGroup = "complex"
)

// complexActions is the fixed allow-list of the complex tool group.
var complexActions = map[models.ActionKind]bool{
	models.ActionCompare:               true,
	models.ActionCompareMin:            true,
	models.ActionTrendAnalysis:         true,
	models.ActionCalculateComplex:      true,
	models.ActionAttritionByDemography: true,
	models.ActionDeepSegmentation:      true,
	models.ActionAttritionRisk:         true,
	models.ActionHiringNeeds:           true,
	models.ActionCorrelation:           true,
	models.ActionSegmentation:          true,
}

func GroupOf(action models.ActionKind) ToolGroup {
	if complexActions[action] {
		return GroupComplex
	}
	return GroupBasic
}

// FilterNormalizer canonicalizes raw filters before they reach the builder.
type FilterNormalizer interface {
	Normalize(ctx context.Context, raw map[string]interface{}) (models.Filters, error)
}

// Runner executes built queries.
type Runner interface {
	Run(ctx context.Context, q queryhrdata.Query) (models.Rows, error)
}

// Columns is the set of columns the dataset actually has.
type Columns interface {
	Lookup(name string) (models.Column, bool)
	IsNumeric(c models.Column) bool
	ColumnList() string
}

// Dispatcher validates a Command, runs the tool of its group and renders the
// answer.
type Dispatcher struct {
	normalizer FilterNormalizer
	builder    *queryhrdata.Builder
	runner     Runner
	columns    Columns
	formatter  *buildresponse.Formatter
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewDispatcher(normalizer FilterNormalizer, builder *queryhrdata.Builder, runner Runner, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Dispatcher{
		normalizer: normalizer,
		builder:    builder,
		runner:     runner,
		columns:    vocabulary.Default(),
		formatter:  buildresponse.NewFormatter(),
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log.With(map[string]interface{}{"stage": TaskType}),
	}
}

// WithColumns replaces the static allow-list with the columns loaded from
// the catalog.
func (d *Dispatcher) WithColumns(columns Columns) *Dispatcher {
	if columns != nil {
		d.columns = columns
	}
	return d
}

// Execute runs cmd for the question query. It never returns an error; every
// failure is a Result carrying a "❌" marker.
func (d *Dispatcher) Execute(ctx context.Context, cmd models.Command, query string) models.Result {
	cmd = d.resolve(cmd, query)
	group := GroupOf(cmd.Action)

	d.logger.Info("dispatching command", map[string]interface{}{
		"group":  string(group),
		"action": string(cmd.Action),
		"params": cmd.ParamKeys(),
	})

	var res models.Result
	if group == GroupComplex {
		res = d.runComplex(ctx, cmd)
	} else {
		res = d.runBasic(ctx, cmd, query)
	}

	metrics.DispatchTotal.WithLabelValues(string(group), string(cmd.Action), res.Status.String()).Inc()
	return res
}

// resolve fills in what both parser paths may leave implicit: the metric of
// a bare calculate and the direction of a comparison.
func (d *Dispatcher) resolve(cmd models.Command, query string) models.Command {
	switch cmd.Action {
	case models.ActionCalculate:
		if !cmd.Has(models.ParamMetric) {
			metric := InferMetric(query)
			d.logger.Debug("metric inferred from question", map[string]interface{}{"metric": string(metric)})
			return cmd.WithParam(models.ParamMetric, string(metric))
		}
	case models.ActionCompare:
		if parsefallback.IsMinSeeking(query) {
			return cmd.WithAction(models.ActionCompareMin)
		}
	}
	return cmd
}

// normalize merges extra into the command filters and canonicalizes them.
func (d *Dispatcher) normalize(ctx context.Context, cmd models.Command, extra map[string]interface{}) (models.Filters, error) {
	raw := make(map[string]interface{}, len(cmd.Filters())+len(extra))
	for k, v := range cmd.Filters() {
		raw[k] = v
	}
	for k, v := range extra {
		raw[k] = v
	}
	return d.normalizer.Normalize(ctx, raw)
}

// run builds, executes and formats one query.
func (d *Dispatcher) run(ctx context.Context, cmd models.Command, q queryhrdata.Query, err error, format func(models.Rows) models.Result) models.Result {
	if err != nil {
		return d.failure(cmd, err)
	}
	rows, err := d.runner.Run(ctx, q)
	if err != nil {
		return d.failure(cmd, err)
	}
	return format(rows)
}

// failure turns a tool error into a user-facing marker. Only storage errors
// are logged as errors; the rest are validation outcomes.
func (d *Dispatcher) failure(cmd models.Command, err error) models.Result {
	var filterErr *normalizefilters.FilterError
	var marker string

	switch {
	case errors.As(err, &filterErr):
		marker = filterErr.Message
	case errors.Is(err, queryhrdata.ErrColumnNotAllowed):
		marker = "❌ Колонка не найдена: " + strings.TrimPrefix(err.Error(), queryhrdata.ErrColumnNotAllowed.Error()+": ")
	case errors.Is(err, queryhrdata.ErrUnsupportedMetric):
		marker = fmt.Sprintf("❌ Метрика '%s' не поддерживается для действия %s", cmd.Param(models.ParamMetric), cmd.Action)
	case errors.Is(err, queryhrdata.ErrInvalidDimension):
		marker = "❌ Измерение не поддерживается: " + strings.TrimPrefix(err.Error(), queryhrdata.ErrInvalidDimension.Error()+": ")
	case errors.Is(err, queryhrdata.ErrInvalidFilter):
		marker = "❌ Некорректный фильтр: " + strings.TrimPrefix(err.Error(), queryhrdata.ErrInvalidFilter.Error()+": ")
	default:
		d.errHandler.Handle(TaskType, err, map[string]interface{}{"action": string(cmd.Action)})
		return models.Fail(storageFailure)
	}
	return d.invalid(cmd, marker)
}

// invalid rejects a command before any query is built.
func (d *Dispatcher) invalid(cmd models.Command, marker string) models.Result {
	rejected := apperrors.NewCommandValidationFailedError(marker).WithMetadata("action", string(cmd.Action))
	d.logger.Info("command rejected", map[string]interface{}{
		"action": rejected.Metadata["action"],
		"code":   string(rejected.Code),
		"marker": rejected.Details,
	})
	return models.Fail(marker)
}

func (d *Dispatcher) columnNotFound(name string) string {
	return fmt.Sprintf("❌ Колонка '%s' не найдена. Доступные: %s", name, d.columns.ColumnList())
}

func metricNotSupported(name string, supported []models.Metric) string {
	return fmt.Sprintf("❌ Метрика '%s' не поддерживается. Доступные: %s", name, joinNames(supported))
}

func dimensionNotSupported(name string, supported []models.Dimension) string {
	return fmt.Sprintf("❌ Измерение %s не поддерживается. Доступные: %s", name, joinNames(supported))
}

func joinNames[T ~string](items []T) string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = string(item)
	}
	return strings.Join(names, ", ")
}
