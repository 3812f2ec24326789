package buildresponse

import (
	"fmt"
	"regexp"
	"strings"

	"hr-assistant/internal/models"
	queryhrdata "hr-assistant/internal/pipeline/query-hrdata"
)

const (
	TaskType = "build-response"

	uniqueShown = 10
)

// Display tables per column, one per grammatical case used in headers.
var (
	breakdownNames = map[models.Column]string{
		models.ColLocation:           "локациям",
		models.ColExperienceCategory: "категориям опыта",
		models.ColAgeCategory:        "возрастным категориям",
		models.ColCluster:            "кластерам",
		models.ColService:            "сервисам",
		models.ColSex:                "полу",
		models.ColDepartment3:        "отделам 3 уровня",
		models.ColDepartment4:        "отделам 4 уровня",
		models.ColFTE:                "ставкам",
	}
	uniqueNames = map[models.Column]string{
		models.ColLocation:           "локации",
		models.ColCluster:            "кластеры",
		models.ColService:            "сервисы",
		models.ColDepartment3:        "отделы 3 уровня",
		models.ColSex:                "пол",
		models.ColAgeCategory:        "возрастные категории",
		models.ColExperienceCategory: "категории опыта",
		models.ColFTE:                "ставки",
	}
	topNames = map[models.Column]string{
		models.ColService:            "сервисов",
		models.ColLocation:           "локаций",
		models.ColCluster:            "кластеров",
		models.ColAgeCategory:        "возрастных категорий",
		models.ColExperienceCategory: "категорий опыта",
		models.ColSex:                "пола",
		models.ColDepartment3:        "отделов",
		models.ColFTE:                "ставок",
	}
	compareMetricNames = map[models.Metric]string{
		models.MetricHeadcount:         "Численность",
		models.MetricTurnoverRate:      "Текучесть",
		models.MetricAverageExperience: "Средний опыт",
		models.MetricAverageAge:        "Средний возраст",
		models.MetricAverageFTE:        "Средняя ставка",
		models.MetricTotalFired:        "Уволено",
		models.MetricTotalHired:        "Нанято",
	}
	seriesMetricNames = map[models.Metric]string{
		models.MetricHeadcount:    "Численность",
		models.MetricTotalHired:   "Наймы",
		models.MetricTotalFired:   "Увольнения",
		models.MetricTurnoverRate: "Уровень текучести",
	}
	trendMetricNames = map[models.Metric]string{
		models.MetricHeadcount:    "Численности",
		models.MetricTurnoverRate: "Текучести",
		models.MetricTotalFired:   "Увольнений",
		models.MetricTotalHired:   "Наймов",
	}
	attritionDimNames = map[models.Dimension]string{
		models.DimAgeCategory:        "возрастным категориям",
		models.DimExperienceCategory: "категориям опыта",
		models.DimSex:                "полу",
		models.DimCluster:            "кластерам",
	}
	segmentDimNames = map[models.Dimension]string{
		models.DimService:            "сервис",
		models.DimAgeCategory:        "возраст",
		models.DimExperienceCategory: "опыт",
		models.DimSex:                "пол",
		models.DimCluster:            "кластер",
		models.DimLocation:           "локация",
		models.DimFTE:                "ставка",
	}
	riskFactorNames = map[models.Dimension]string{
		models.DimAgeCategory:        "Возрастные группы",
		models.DimExperienceCategory: "Группы опыта",
		models.DimSex:                "Пол",
		models.DimFTE:                "Типы ставок",
	}
)

func nameOr(names map[models.Column]string, col models.Column) string {
	if n, ok := names[col]; ok {
		return n
	}
	return string(col)
}

// Formatter renders query rows into the user-facing Russian answers. It is
// stateless; every method returns an Empty result with a "❌" marker when
// there is nothing to show.
type Formatter struct{}

func NewFormatter() *Formatter { return &Formatter{} }

// ==========================
// Scalar metrics
// ==========================

func (f *Formatter) Metric(metric models.Metric, rows models.Rows) models.Result {
	noData := models.Empty(fmt.Sprintf("❌ Нет данных для метрики '%s'", metric))
	if len(rows) == 0 {
		return noData
	}
	row := rows[0]

	switch metric {
	case models.MetricHeadcount:
		count := number(row, queryhrdata.AliasCount)
		if count == 0 {
			return noData
		}
		return models.OK(fmt.Sprintf("Численность: %s сотрудников", thousands(count)))
	case models.MetricTurnoverRate:
		total := number(row, queryhrdata.AliasTotal)
		if total == 0 {
			return noData
		}
		return models.OK(fmt.Sprintf("Текучесть: %s%% (%s уволенных из %s)",
			fixed(number(row, queryhrdata.AliasTurnoverRate), 1),
			thousands(number(row, queryhrdata.AliasFired)), thousands(total)))
	}

	alias, format := scalarFormat(metric)
	if alias == "" {
		return models.Fail(fmt.Sprintf("❌ Метрика '%s' не поддерживается", metric))
	}
	v, ok := toFloat(row[alias])
	if !ok {
		return noData
	}
	return models.OK(format(v))
}

func scalarFormat(metric models.Metric) (string, func(float64) string) {
	switch metric {
	case models.MetricAverageExperience:
		return queryhrdata.AliasAvgExperience, func(v float64) string { return "Средний опыт: " + fixed(v, 1) + " месяцев" }
	case models.MetricAverageAge:
		return queryhrdata.AliasAvgAge, func(v float64) string { return "Средний возраст: " + fixed(v, 1) + " лет" }
	case models.MetricAverageFTE:
		return queryhrdata.AliasAvgFTE, func(v float64) string { return "Средняя ставка: " + fixed(v, 2) }
	case models.MetricTotalFired:
		return queryhrdata.AliasTotalFired, func(v float64) string { return "Всего уволено: " + thousands(v) + " сотрудников" }
	case models.MetricTotalHired:
		return queryhrdata.AliasTotalHired, func(v float64) string { return "Всего нанято: " + thousands(v) + " сотрудников" }
	}
	return "", nil
}

// Ratio renders a sub-population share. The metric picks the phrasing.
func (f *Formatter) Ratio(metric models.Metric, rows models.Rows) models.Result {
	var total, matched float64
	if len(rows) > 0 {
		total = number(rows[0], queryhrdata.AliasTotal)
		matched = number(rows[0], queryhrdata.AliasMatched)
	}
	pct := fixed(percentOf(matched, total), 1)

	switch metric {
	case models.MetricFullTimeRatio:
		if total == 0 {
			return models.Empty("❌ Нет данных для расчета доли полных ставок")
		}
		return models.OK(fmt.Sprintf("💰 Доля полных ставок: %s%% (%s из %s сотрудников)", pct, thousands(matched), thousands(total)))
	case models.MetricPartTimeRatio:
		if total == 0 {
			return models.Empty("❌ Нет данных для расчета доли частичных ставок")
		}
		return models.OK(fmt.Sprintf("💰 Доля частичных ставок: %s%% (%s из %s сотрудников)", pct, thousands(matched), thousands(total)))
	}

	if total == 0 {
		return models.Empty(fmt.Sprintf("❌ Нет данных для метрики '%s'", metric))
	}
	switch metric {
	case models.MetricRemoteWorkers:
		return models.OK(fmt.Sprintf("👨‍💻 Удаленных сотрудников: %s (%s%% от общей численности)", thousands(matched), pct))
	case models.MetricRemoteRatio:
		return models.OK(fmt.Sprintf("👨‍💻 Доля удаленных сотрудников: %s%% (%s из %s сотрудников)", pct, thousands(matched), thousands(total)))
	case models.MetricYoungWorkers:
		return models.OK(fmt.Sprintf("👦 Молодых сотрудников (<25 лет): %s (%s%% от общей численности)", thousands(matched), pct))
	case models.MetricExperiencedWorkers:
		return models.OK(fmt.Sprintf("👴 Опытных сотрудников (>5 лет): %s (%s%% от общей численности)", thousands(matched), pct))
	}
	return models.Fail(fmt.Sprintf("❌ Метрика '%s' не поддерживается", metric))
}

func (f *Formatter) FTEDistribution(rows models.Rows) models.Result {
	var total float64
	for _, row := range rows {
		total += number(row, queryhrdata.AliasCount)
	}
	if total == 0 {
		return models.Empty("❌ Нет данных о распределении ставок")
	}

	var b strings.Builder
	b.WriteString("💰 Распределение сотрудников по ставкам:\n\n")
	for _, row := range rows {
		count := number(row, queryhrdata.AliasCount)
		fmt.Fprintf(&b, "• %s ставка: %s (%s%%)\n",
			displayValue(models.ColFTE, row[string(models.ColFTE)]), thousands(count), fixed(percentOf(count, total), 1))
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

// ==========================
// Column statistics
// ==========================

var remoteServiceRe = regexp.MustCompile(`(?i)\sв\s+([\p{L}\d-]+)`)

// NumericStats renders count/avg/min/max/sum. Some phrasings of the user
// query only ask for a count, and get a one-line answer.
func (f *Formatter) NumericStats(column models.Column, rows models.Rows, query string) models.Result {
	if len(rows) == 0 || number(rows[0], queryhrdata.AliasCount) == 0 {
		return models.Empty("❌ Нет данных для анализа")
	}
	row := rows[0]
	count := thousands(number(row, queryhrdata.AliasCount))
	q := strings.ToLower(query)

	switch {
	case containsAny(q, "удален", "дистанц", "remote"):
		where := ""
		if m := remoteServiceRe.FindStringSubmatch(" " + query); m != nil {
			where = " в " + capitalize(m[1])
		}
		return models.OK(fmt.Sprintf("🏠 Удаленных сотрудников%s: %s", where, count))
	case strings.Contains(q, "0.5") || strings.Contains(q, "0,5"):
		return models.OK(fmt.Sprintf("Сотрудников на 0.5 ставки: %s", count))
	case strings.Contains(q, "опыт") && !strings.Contains(q, "средн"):
		return models.OK(fmt.Sprintf("Сотрудников с указанным опытом: %s", count))
	case strings.Contains(q, "возраст") && !strings.Contains(q, "средн"):
		return models.OK(fmt.Sprintf("Сотрудников в указанном возрасте: %s", count))
	}

	var b strings.Builder
	b.WriteString("📊 Статистика:\n")
	fmt.Fprintf(&b, "• Количество записей: %s\n", count)
	fmt.Fprintf(&b, "• Среднее значение: %s\n", fixed(number(row, queryhrdata.AliasAverage), 2))
	fmt.Fprintf(&b, "• Минимальное значение: %s\n", displayValue("", row[queryhrdata.AliasMin]))
	fmt.Fprintf(&b, "• Максимальное значение: %s\n", displayValue("", row[queryhrdata.AliasMax]))
	fmt.Fprintf(&b, "• Сумма: %s", fixed(number(row, queryhrdata.AliasSum), 1))
	return models.OK(b.String())
}

func (f *Formatter) Breakdown(column models.Column, rows models.Rows) models.Result {
	var total float64
	for _, row := range rows {
		total += number(row, queryhrdata.AliasCount)
	}
	if len(rows) == 0 || total == 0 {
		return models.Empty("❌ Нет данных для анализа")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Распределение по %s:\n\n", nameOr(breakdownNames, column))
	for _, row := range rows {
		count := number(row, queryhrdata.AliasCount)
		fmt.Fprintf(&b, "• %s: %s (%s%%)\n",
			displayValue(column, row[string(column)]), thousands(count), fixed(percentOf(count, total), 1))
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

var unusedMarks = []string{"(Не исп.)", "(Не исп)", "(не исп)"}

func cleanValue(s string) string {
	for _, m := range unusedMarks {
		s = strings.ReplaceAll(s, m, "")
	}
	return strings.TrimSpace(s)
}

// UniqueValues lists the first ten distinct values of a column, with a
// footer counting the rest.
func (f *Formatter) UniqueValues(column models.Column, rows models.Rows) models.Result {
	var values []string
	for _, row := range rows {
		if v := cleanValue(displayValue(column, row[string(column)])); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return models.Empty(fmt.Sprintf("❌ Нет данных в колонке '%s'", column))
	}

	name := capitalize(nameOr(uniqueNames, column))
	var b strings.Builder
	if len(values) > uniqueShown {
		fmt.Fprintf(&b, "📋 %s (первые %d из %d):\n\n", name, uniqueShown, len(values))
	} else {
		fmt.Fprintf(&b, "📋 %s:\n\n", name)
	}
	for i, v := range values {
		if i == uniqueShown {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, v)
	}
	if rest := len(values) - uniqueShown; rest > 0 {
		fmt.Fprintf(&b, "\n... и еще %d других", rest)
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

// TopValues ranks column values by headcount. hiring switches the header
// when the population was filtered on hires.
func (f *Formatter) TopValues(column models.Column, n int, rows models.Rows, hiring bool) models.Result {
	if len(rows) == 0 {
		return models.Empty("❌ Нет данных для анализа")
	}
	if n <= 0 || n > len(rows) {
		n = len(rows)
	}
	by := "по численности"
	if hiring {
		by = "по найму"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Топ-%d %s %s:\n\n", n, nameOr(topNames, column), by)
	for i, row := range rows[:n] {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, displayValue(column, row[string(column)]), thousands(number(row, queryhrdata.AliasCount)))
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

// ==========================
// Comparisons and series
// ==========================

func (f *Formatter) Compare(metric models.Metric, dim models.Dimension, rows models.Rows) models.Result {
	if len(rows) == 0 {
		return models.Empty(fmt.Sprintf("❌ Нет данных для сравнения %s по %s", metric, dim))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s по %s:\n\n", compareMetricNames[metric], nameOr(breakdownNames, dim.Column()))
	for i, row := range rows {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, displayValue(dim.Column(), row[string(dim.Column())]), compareValue(metric, number(row, queryhrdata.AliasValue)))
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

func compareValue(metric models.Metric, v float64) string {
	switch metric {
	case models.MetricTurnoverRate:
		return fixed(v, 1) + "% " + levelEmoji(v, 10, 5)
	case models.MetricAverageExperience:
		return fixed(v, 1) + " месяцев"
	case models.MetricAverageAge:
		return fixed(v, 1)
	case models.MetricAverageFTE:
		return fixed(v, 2)
	}
	return thousands(v)
}

func levelEmoji(v, high, mid float64) string {
	switch {
	case v > high:
		return "🔴"
	case v > mid:
		return "🟡"
	}
	return "🟢"
}

func (f *Formatter) TimeSeries(metric models.Metric, rows models.Rows) models.Result {
	if len(rows) == 0 {
		return models.Empty("❌ Нет данных для временного анализа")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📈 Динамика %s:\n\n", seriesMetricNames[metric])
	for _, row := range rows {
		fmt.Fprintf(&b, "• %s: %s\n", reportDate(row), seriesValue(metric, number(row, queryhrdata.AliasValue)))
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

// Trend is a time series annotated with the direction of each step; a
// change over five percent counts as movement.
func (f *Formatter) Trend(metric models.Metric, rows models.Rows) models.Result {
	if len(rows) == 0 {
		return models.Empty(fmt.Sprintf("❌ Нет данных для анализа тренда %s", metric))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📈 Динамика %s:\n\n", trendMetricNames[metric])
	var prev float64
	for i, row := range rows {
		v := number(row, queryhrdata.AliasValue)
		emoji := "📊"
		if i > 0 && prev != 0 {
			switch change := (v - prev) / prev * 100; {
			case change > 5:
				emoji = "📈"
			case change < -5:
				emoji = "📉"
			}
		}
		fmt.Fprintf(&b, "• %s: %s %s\n", reportDate(row), seriesValue(metric, v), emoji)
		prev = v
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

func seriesValue(metric models.Metric, v float64) string {
	if metric == models.MetricTurnoverRate {
		return fixed(v, 1) + "%"
	}
	return thousands(v)
}

func reportDate(row map[string]interface{}) string {
	d := displayValue(models.ColReportDate, row[string(models.ColReportDate)])
	if len(d) > 10 {
		d = d[:10]
	}
	return d
}

// ==========================
// Complex analyses
// ==========================

func (f *Formatter) AttritionByDemography(service string, dim models.Dimension, rows models.Rows) models.Result {
	if len(rows) == 0 {
		return models.Empty(fmt.Sprintf("❌ Нет данных для анализа оттока в сервисе %s", service))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Анализ текучести в сервисе %s по %s:\n\n", service, attritionDimNames[dim])
	for i, row := range rows {
		rate := number(row, queryhrdata.AliasAttritionRate)
		fmt.Fprintf(&b, "%d. %s:\n", i+1, displayValue(dim.Column(), row[string(dim.Column())]))
		fmt.Fprintf(&b, "   • Сотрудников: %s\n", thousands(number(row, queryhrdata.AliasTotalEmployees)))
		fmt.Fprintf(&b, "   • Уволено: %s\n", thousands(number(row, queryhrdata.AliasFiredCount)))
		fmt.Fprintf(&b, "   • Текучесть: %s%% %s\n\n", fixed(rate, 1), levelEmoji(rate, 15, 8))
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

// Segmentation groups rows by the first dimension and lists the second
// dimension's values (or "Все") with every computed metric.
func (f *Formatter) Segmentation(dims []models.Dimension, metrics []models.SegmentMetric, rows models.Rows) models.Result {
	if len(rows) == 0 || len(dims) == 0 {
		return models.Empty("❌ Нет данных для сегментационного анализа")
	}
	if len(metrics) == 0 {
		metrics = []models.SegmentMetric{models.SegmentHeadcount}
	}

	var total float64
	for _, row := range rows {
		total += number(row, string(models.SegmentHeadcount))
	}

	var b strings.Builder
	b.WriteString("🔍 Глубокая сегментация по " + segmentDimNames[dims[0]])
	if len(dims) > 1 {
		b.WriteString(" и " + segmentDimNames[dims[1]])
	}
	b.WriteString(":\n\n")

	first := dims[0].Column()
	var current string
	for i, row := range rows {
		group := displayValue(first, row[string(first)])
		if i == 0 || group != current {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "📋 %s %s:\n", capitalize(segmentDimNames[dims[0]]), group)
			current = group
		}

		sub := "Все"
		if len(dims) > 1 {
			sub = displayValue(dims[1].Column(), row[string(dims[1].Column())])
		}
		parts := make([]string, 0, len(metrics))
		for _, m := range metrics {
			parts = append(parts, segmentValue(m, row, total))
		}
		fmt.Fprintf(&b, "   • %s: %s\n", sub, strings.Join(parts, " | "))
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

func segmentValue(m models.SegmentMetric, row map[string]interface{}, total float64) string {
	v := number(row, string(m))
	switch m {
	case models.SegmentHeadcount:
		return fmt.Sprintf("%s сотрудников (%s%%)", thousands(v), fixed(percentOf(v, total), 1))
	case models.SegmentAttritionRate:
		return fixed(v, 1) + "% текучести"
	case models.SegmentAvgExperience:
		return fixed(v, 1) + " мес опыта"
	case models.SegmentAvgAge:
		return fixed(v, 1) + " лет"
	case models.SegmentAvgFTE:
		return fixed(v, 2) + " ставки"
	}
	return thousands(v)
}

// RiskGroup is the ranked result of one risk factor.
type RiskGroup struct {
	Factor models.Dimension
	Rows   models.Rows
}

const highRiskRate = 10

// Risk lists, per factor, the groups whose attrition exceeds ten percent.
func (f *Formatter) Risk(service string, groups []RiskGroup) models.Result {
	hasData := false
	for _, g := range groups {
		if len(g.Rows) > 0 {
			hasData = true
			break
		}
	}
	if !hasData {
		return models.Empty("❌ Недостаточно данных для анализа рисков")
	}

	var b strings.Builder
	b.WriteString("⚠️ Анализ рисков увольнения")
	if service != "" {
		b.WriteString(" в сервисе " + service)
	}
	b.WriteString(":\n\n")

	for _, g := range groups {
		fmt.Fprintf(&b, "📊 %s:\n", riskFactorNames[g.Factor])
		found := false
		for _, row := range g.Rows {
			rate := number(row, queryhrdata.AliasAttritionRate)
			if rate <= highRiskRate {
				continue
			}
			found = true
			fmt.Fprintf(&b, "   • %s: %s%% текучести (%s/%s чел.) 🔴\n",
				displayValue(g.Factor.Column(), row[string(g.Factor.Column())]), fixed(rate, 1),
				thousands(number(row, queryhrdata.AliasFired)), thousands(number(row, queryhrdata.AliasTotal)))
		}
		if !found {
			b.WriteString("   • Высокорисковых групп не обнаружено 🟢\n")
		}
		b.WriteString("\n")
	}
	return models.OK(strings.TrimRight(b.String(), "\n"))
}

// HiringNeeds compares monthly attrition with monthly hiring. An empty
// service means the whole company.
func (f *Formatter) HiringNeeds(service string, rows models.Rows) models.Result {
	var total, fired, hired float64
	if len(rows) > 0 {
		total = number(rows[0], queryhrdata.AliasTotalEmployees)
		fired = number(rows[0], queryhrdata.AliasMonthlyAttrition)
		hired = number(rows[0], queryhrdata.AliasMonthlyHiring)
	}
	if total == 0 {
		if service == "" {
			return models.Empty("❌ Нет данных для анализа по компании")
		}
		return models.Empty(fmt.Sprintf("❌ Нет данных для сервиса %s", service))
	}

	needed := fired - hired
	if needed < 0 {
		needed = 0
	}

	var b strings.Builder
	needLabel := "Потребность в найме"
	if service == "" {
		b.WriteString("🏢 Анализ потребности в найме по всей компании:\n\n")
		needLabel = "Общая потребность в найме"
	} else {
		fmt.Fprintf(&b, "📈 Анализ потребности в найме для сервиса %s:\n\n", service)
	}
	fmt.Fprintf(&b, "• Всего сотрудников: %s\n", thousands(total))
	fmt.Fprintf(&b, "• Текущая текучесть: %s%% (%s чел./мес)\n", fixed(percentOf(fired, total), 1), thousands(fired))
	fmt.Fprintf(&b, "• Текущий найм: %s чел./мес\n", thousands(hired))
	if needed > 0 {
		fmt.Fprintf(&b, "• 🔴 %s: %s чел./мес\n", needLabel, thousands(needed))
		fmt.Fprintf(&b, "• 💡 Рекомендация: увеличить найм на %s сотрудников в месяц", thousands(needed))
	} else {
		fmt.Fprintf(&b, "• 🟢 Найм покрывает отток: +%s чел.\n", thousands(hired-fired))
		b.WriteString("• 💡 Текущий уровень найма достаточен")
	}
	return models.OK(b.String())
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
