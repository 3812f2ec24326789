package dispatchcommand

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/models"
	normalizefilters "hr-assistant/internal/pipeline/normalize-filters"
	queryhrdata "hr-assistant/internal/pipeline/query-hrdata"
	"hr-assistant/internal/vocabulary"
)

// ==========================
// Test Helper Functions
// ==========================

type testEnv struct {
	dispatcher *Dispatcher
	builder    *queryhrdata.Builder
	normalizer *normalizefilters.Normalizer
	mock       sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	builder := queryhrdata.NewBuilder(queryhrdata.DialectSQLite)
	normalizer := normalizefilters.NewNormalizer(nil, log)
	exec := queryhrdata.NewExecutor(&queryhrdata.Config{Dialect: queryhrdata.DialectSQLite, Timeout: time.Second}, db, log)

	return &testEnv{
		dispatcher: NewDispatcher(normalizer, builder, exec, log),
		builder:    builder,
		normalizer: normalizer,
		mock:       mock,
	}
}

// filters normalizes raw the same way the dispatcher does.
func (e *testEnv) filters(t *testing.T, raw map[string]interface{}) models.Filters {
	f, err := e.normalizer.Normalize(context.Background(), raw)
	require.NoError(t, err)
	return f
}

func (e *testEnv) expect(q queryhrdata.Query, rows *sqlmock.Rows) *sqlmock.ExpectedQuery {
	args := make([]driver.Value, len(q.Args))
	for i, a := range q.Args {
		args[i] = a
	}
	return e.mock.ExpectQuery(q.Text).WithArgs(args...).WillReturnRows(rows)
}

func cmdOf(action models.ActionKind, params map[string]interface{}) models.Command {
	return models.NewCommand(action, params)
}

// ==========================
// Routing Tests
// ==========================

func TestGroupOf(t *testing.T) {
	for _, action := range []models.ActionKind{
		models.ActionCompare, models.ActionCompareMin, models.ActionTrendAnalysis, models.ActionCalculateComplex,
		models.ActionAttritionByDemography, models.ActionDeepSegmentation, models.ActionAttritionRisk,
		models.ActionHiringNeeds, models.ActionCorrelation, models.ActionSegmentation,
	} {
		assert.Equal(t, GroupComplex, GroupOf(action), action)
	}
	for _, action := range []models.ActionKind{
		models.ActionGetStats, models.ActionCalculate, models.ActionTimeSeries, models.ActionUniqueValues,
		models.ActionTopValues, models.ActionHelpExamples, models.ActionUnknown,
	} {
		assert.Equal(t, GroupBasic, GroupOf(action), action)
	}
}

func TestInferMetric(t *testing.T) {
	tests := []struct {
		query string
		want  models.Metric
	}{
		{"сколько сотрудников на ставке 0.5", models.MetricHeadcount},
		{"сотрудники с опытом больше года", models.MetricHeadcount},
		{"какая текучесть в Такси", models.MetricTurnoverRate},
		{"сколько наняли в августе", models.MetricTotalHired},
		{"число увольнений", models.MetricTotalFired},
		{"сколько работает в Маркете", models.MetricHeadcount},
		{"средний возраст", models.MetricAverageAge},
		{"средний опыт", models.MetricAverageExperience},
		{"средняя ставка", models.MetricAverageFTE},
		{"что-нибудь", models.MetricHeadcount},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, InferMetric(tt.query))
		})
	}
}

// ==========================
// Basic Group Tests
// ==========================

func TestExecute_ScenarioA_NoRowsForFTE(t *testing.T) {
	env := newTestEnv(t)
	cmd := cmdOf(models.ActionCalculate, map[string]interface{}{
		"metric":  "headcount",
		"filters": map[string]interface{}{"fte": 0.5},
	})

	q, err := env.builder.Metric(models.MetricHeadcount, env.filters(t, map[string]interface{}{"fte": 0.5}))
	require.NoError(t, err)
	env.expect(q, sqlmock.NewRows([]string{"count"}))

	res := env.dispatcher.Execute(context.Background(), cmd, "сколько сотрудников на ставке 0.5")
	assert.Equal(t, models.StatusEmpty, res.Status)
	assert.Equal(t, "❌ Нет данных для метрики 'headcount'", res.Text)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_InfersMissingMetric(t *testing.T) {
	env := newTestEnv(t)
	cmd := cmdOf(models.ActionCalculate, map[string]interface{}{
		"filters": map[string]interface{}{"service": "Такси"},
	})

	q, err := env.builder.Metric(models.MetricTurnoverRate, env.filters(t, map[string]interface{}{"service": "Такси"}))
	require.NoError(t, err)
	env.expect(q, sqlmock.NewRows([]string{"total", "fired", "turnover_rate"}).AddRow(200, 10, 5.0))

	res := env.dispatcher.Execute(context.Background(), cmd, "какая текучесть в Такси")
	require.Equal(t, models.StatusOK, res.Status, res.Text)
	assert.Equal(t, "Текучесть: 5.0% (10 уволенных из 200)", res.Text)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_ScenarioD_UnknownColumnRunsNoQuery(t *testing.T) {
	env := newTestEnv(t)
	cmd := cmdOf(models.ActionGetStats, map[string]interface{}{"column": "ставка"})

	res := env.dispatcher.Execute(context.Background(), cmd, "статистика по ставке")
	assert.Equal(t, models.StatusError, res.Status)
	assert.True(t, strings.HasPrefix(res.Text, "❌ Колонка 'ставка' не найдена. Доступные: "), res.Text)
	assert.Contains(t, res.Text, "fte")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_GetStats(t *testing.T) {
	env := newTestEnv(t)

	q, err := env.builder.Breakdown(models.ColSex, models.Filters{})
	require.NoError(t, err)
	env.expect(q, sqlmock.NewRows([]string{"sex", "count"}).AddRow("М", 60).AddRow("Ж", 40))

	res := env.dispatcher.Execute(context.Background(), cmdOf(models.ActionGetStats, map[string]interface{}{"column": "sex"}), "распределение по полу")
	require.Equal(t, models.StatusOK, res.Status, res.Text)
	assert.Contains(t, res.Text, "60")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

type tableCatalog []vocabulary.ColumnInfo

func (c tableCatalog) TableColumns(ctx context.Context) ([]vocabulary.ColumnInfo, error) {
	return c, nil
}

func (c tableCatalog) DistinctValues(ctx context.Context, column models.Column) ([]string, error) {
	return nil, nil
}

func TestExecute_GetStatsUsesLoadedColumns(t *testing.T) {
	env := newTestEnv(t)
	store, err := vocabulary.Load(context.Background(), tableCatalog{
		{Name: "service", Type: "TEXT"},
		{Name: "fullyears", Type: "INTEGER", Numeric: true},
	})
	require.NoError(t, err)
	env.dispatcher.WithColumns(store)

	res := env.dispatcher.Execute(context.Background(), cmdOf(models.ActionGetStats, map[string]interface{}{"column": "fte"}), "")
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, "❌ Колонка 'fte' не найдена. Доступные: fullyears, service", res.Text)

	q, err := env.builder.NumericStats(models.ColFullyears, models.Filters{})
	require.NoError(t, err)
	env.expect(q, sqlmock.NewRows([]string{"count", "average", "min", "max", "sum"}).AddRow(10, 31.5, 20, 55, 315))

	res = env.dispatcher.Execute(context.Background(), cmdOf(models.ActionGetStats, map[string]interface{}{"column": "fullyears"}), "статистика по возрасту")
	assert.Equal(t, models.StatusOK, res.Status, res.Text)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name   string
		cmd    models.Command
		marker string
	}{
		{
			name:   "get_stats without column",
			cmd:    cmdOf(models.ActionGetStats, nil),
			marker: "❌ Не указана колонка для анализа",
		},
		{
			name:   "unsupported metric",
			cmd:    cmdOf(models.ActionCalculate, map[string]interface{}{"metric": "salary"}),
			marker: "❌ Метрика 'salary' не поддерживается. Доступные: ",
		},
		{
			name:   "time series without metric",
			cmd:    cmdOf(models.ActionTimeSeries, nil),
			marker: "❌ Не указана метрика для временного анализа",
		},
		{
			name:   "time series grouping",
			cmd:    cmdOf(models.ActionTimeSeries, map[string]interface{}{"metric": "headcount", "group_by": "service"}),
			marker: "❌ Группировка в временных рядах временно недоступна",
		},
		{
			name:   "unique values without column",
			cmd:    cmdOf(models.ActionUniqueValues, nil),
			marker: "❌ Не указана колонка для получения уникальных значений",
		},
		{
			name:   "compare without dimension",
			cmd:    cmdOf(models.ActionCompare, map[string]interface{}{"metric": "headcount"}),
			marker: "❌ Для сравнения нужны metric и dimension",
		},
		{
			name:   "compare by unsupported dimension",
			cmd:    cmdOf(models.ActionCompare, map[string]interface{}{"metric": "headcount", "dimension": "salary"}),
			marker: "❌ Измерение salary не поддерживается. Доступные: ",
		},
		{
			name:   "trend without metric",
			cmd:    cmdOf(models.ActionTrendAnalysis, nil),
			marker: "❌ Для анализа трендов нужна metric",
		},
		{
			name:   "calculate_complex without metric",
			cmd:    cmdOf(models.ActionCalculateComplex, nil),
			marker: "❌ Не указана метрика для расчета",
		},
		{
			name:   "attrition without service",
			cmd:    cmdOf(models.ActionAttritionByDemography, map[string]interface{}{"dimension": "sex"}),
			marker: "❌ Для анализа оттока нужны service и dimension",
		},
		{
			name:   "segmentation without dimensions",
			cmd:    cmdOf(models.ActionDeepSegmentation, nil),
			marker: "❌ Для глубокой сегментации нужен segment_by",
		},
		{
			name: "segmentation with three dimensions",
			cmd: cmdOf(models.ActionDeepSegmentation, map[string]interface{}{
				"segment_by": []interface{}{"sex", "cluster", "age_category"},
			}),
			marker: "❌ Слишком много измерений для сегментации. Максимум 2.",
		},
		{
			name:   "correlation",
			cmd:    cmdOf(models.ActionCorrelation, nil),
			marker: "❌ Корреляционный анализ временно недоступен. Используйте сравнение метрик.",
		},
		{
			name:   "segmentation placeholder",
			cmd:    cmdOf(models.ActionSegmentation, nil),
			marker: "❌ Сегментационный анализ временно недоступен. Используйте сравнение по измерениям.",
		},
		{
			name:   "filter on unknown column",
			cmd:    cmdOf(models.ActionCalculate, map[string]interface{}{"metric": "headcount", "filters": map[string]interface{}{"salary": 10}}),
			marker: "❌ Колонка 'salary' для фильтра не найдена. Доступные: ",
		},
		{
			name:   "unknown",
			cmd:    models.UnknownCommand("Вопрос не про HR-данные"),
			marker: "❌ Не могу обработать запрос: Вопрос не про HR-данные",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			res := env.dispatcher.Execute(context.Background(), tt.cmd, "")
			assert.Equal(t, models.StatusError, res.Status)
			assert.True(t, strings.HasPrefix(res.Text, tt.marker), "got %q", res.Text)
			assert.NoError(t, env.mock.ExpectationsWereMet())
		})
	}
}

func TestExecute_Help(t *testing.T) {
	env := newTestEnv(t)
	res := env.dispatcher.Execute(context.Background(), cmdOf(models.ActionHelpExamples, nil), "помощь")
	assert.Equal(t, models.StatusOK, res.Status)
	assert.Contains(t, res.Text, "Примеры")
}

func TestExecute_StorageFailure(t *testing.T) {
	env := newTestEnv(t)

	q, err := env.builder.Metric(models.MetricHeadcount, models.Filters{})
	require.NoError(t, err)
	env.mock.ExpectQuery(q.Text).WillReturnError(errors.New("no such table: hr_data_clean"))

	res := env.dispatcher.Execute(context.Background(), cmdOf(models.ActionCalculate, map[string]interface{}{"metric": "headcount"}), "")
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, storageFailure, res.Text)
	assert.NotContains(t, res.Text, "hr_data_clean")
}

// ==========================
// Complex Group Tests
// ==========================

func TestExecute_CompareUpgradesToMin(t *testing.T) {
	env := newTestEnv(t)
	cmd := cmdOf(models.ActionCompare, map[string]interface{}{"metric": "headcount", "dimension": "service"})

	q, err := env.builder.Compare(models.MetricHeadcount, models.DimService, models.Filters{}, true)
	require.NoError(t, err)
	env.expect(q, sqlmock.NewRows([]string{"service", "value"}).AddRow("Облако", 5).AddRow("Такси", 100))

	res := env.dispatcher.Execute(context.Background(), cmd, "где меньше всего сотрудников")
	require.Equal(t, models.StatusOK, res.Status, res.Text)
	assert.Contains(t, res.Text, "1. Облако")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_ScenarioE_CompanyHiringNeeds(t *testing.T) {
	for _, service := range []interface{}{nil, "all", "service"} {
		env := newTestEnv(t)

		q, err := env.builder.HiringNeeds(models.Filters{})
		require.NoError(t, err)
		env.expect(q, sqlmock.NewRows([]string{"total_employees", "monthly_attrition", "monthly_hiring"}).AddRow(0, nil, nil))

		cmd := cmdOf(models.ActionHiringNeeds, map[string]interface{}{"service": service})
		res := env.dispatcher.Execute(context.Background(), cmd, "сколько нужно нанять")
		assert.Equal(t, models.StatusEmpty, res.Status)
		assert.Equal(t, "❌ Нет данных для анализа по компании", res.Text)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	}
}

func TestExecute_HiringNeedsForService(t *testing.T) {
	env := newTestEnv(t)
	filters := env.filters(t, map[string]interface{}{"service": "Такси"})

	q, err := env.builder.HiringNeeds(filters)
	require.NoError(t, err)
	env.expect(q, sqlmock.NewRows([]string{"total_employees", "monthly_attrition", "monthly_hiring"}).AddRow(1000, 30, 10))

	res := env.dispatcher.Execute(context.Background(), cmdOf(models.ActionHiringNeeds, map[string]interface{}{"service": "Такси"}), "")
	require.Equal(t, models.StatusOK, res.Status, res.Text)
	assert.Contains(t, res.Text, "Такси")
	assert.Contains(t, res.Text, "Потребность в найме: 20 чел./мес")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_AttritionByDemography(t *testing.T) {
	env := newTestEnv(t)
	filters := env.filters(t, map[string]interface{}{"service": "Такси"})

	q, err := env.builder.AttritionByDemography(models.DimSex, filters)
	require.NoError(t, err)
	env.expect(q, sqlmock.NewRows([]string{"sex", "total_employees", "fired_count", "attrition_rate"}).AddRow("Ж", 100, 12, 12.0))

	cmd := cmdOf(models.ActionAttritionByDemography, map[string]interface{}{"service": "Такси", "dimension": "sex"})
	res := env.dispatcher.Execute(context.Background(), cmd, "")
	require.Equal(t, models.StatusOK, res.Status, res.Text)
	assert.Contains(t, res.Text, "Такси")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_RiskRunsEveryFactor(t *testing.T) {
	env := newTestEnv(t)
	env.mock.MatchExpectationsInOrder(false)

	for _, factor := range models.RiskFactors {
		q, err := env.builder.RiskFactor(factor, models.Filters{})
		require.NoError(t, err)
		col := string(factor.Column())
		rows := sqlmock.NewRows([]string{col, "total", "fired", "attrition_rate"})
		if factor == models.DimSex {
			rows.AddRow("М", 50, 10, 20.0)
		}
		env.expect(q, rows)
	}

	res := env.dispatcher.Execute(context.Background(), cmdOf(models.ActionAttritionRisk, nil), "риски увольнения")
	require.Equal(t, models.StatusOK, res.Status, res.Text)
	assert.Contains(t, res.Text, "20.0%")
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestExecute_RiskWithoutData(t *testing.T) {
	env := newTestEnv(t)
	env.mock.MatchExpectationsInOrder(false)

	for _, factor := range models.RiskFactors {
		q, err := env.builder.RiskFactor(factor, models.Filters{})
		require.NoError(t, err)
		env.expect(q, sqlmock.NewRows([]string{string(factor.Column()), "total", "fired", "attrition_rate"}))
	}

	res := env.dispatcher.Execute(context.Background(), cmdOf(models.ActionAttritionRisk, nil), "")
	assert.Equal(t, models.StatusEmpty, res.Status)
	assert.Equal(t, "❌ Недостаточно данных для анализа рисков", res.Text)
}

type panickingRunner struct {
	panicOn models.Dimension
}

func (r *panickingRunner) Run(ctx context.Context, q queryhrdata.Query) (models.Rows, error) {
	if strings.Contains(q.Text, string(r.panicOn.Column())) {
		panic("index out of range")
	}
	return models.Rows{}, nil
}

func TestExecute_RiskFactorPanicBecomesFailure(t *testing.T) {
	log := logger.NewTestLogger(t)
	d := NewDispatcher(
		normalizefilters.NewNormalizer(nil, log),
		queryhrdata.NewBuilder(queryhrdata.DialectSQLite),
		&panickingRunner{panicOn: models.DimExperienceCategory},
		log,
	)

	var res models.Result
	require.NotPanics(t, func() {
		res = d.Execute(context.Background(), cmdOf(models.ActionAttritionRisk, map[string]interface{}{"service": "Такси"}), "")
	})
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, storageFailure, res.Text)
}

func TestExecute_MarkersAreRendered(t *testing.T) {
	cmds := []models.Command{
		cmdOf(models.ActionCompare, map[string]interface{}{"metric": "salary", "dimension": "service"}),
		cmdOf(models.ActionTimeSeries, map[string]interface{}{"metric": "average_fte"}),
		cmdOf(models.ActionTopValues, map[string]interface{}{"column": "zodiac"}),
		cmdOf(models.ActionDeepSegmentation, map[string]interface{}{"segment_by": "sex", "metrics": []interface{}{"salary"}}),
		cmdOf(models.ActionAttritionRisk, map[string]interface{}{"risk_factors": []interface{}{"location_name"}}),
	}
	for _, cmd := range cmds {
		t.Run(string(cmd.Action), func(t *testing.T) {
			env := newTestEnv(t)
			res := env.dispatcher.Execute(context.Background(), cmd, "")
			assert.Equal(t, models.StatusError, res.Status)
			assert.True(t, strings.HasPrefix(res.Text, "❌ "), res.Text)
			assert.NotContains(t, res.Text, "%!")
			assert.NotContains(t, res.Text, "{")
		})
	}
}
