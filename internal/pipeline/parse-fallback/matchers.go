package parsefallback

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"hr-assistant/internal/models"
)

var (
	hiringPhrases = []string{
		"потребность в найме", "потребности в найме", "нужно нанимать", "необходимо нанимать",
		"нужно нанять", "надо нанять", "покрыть отток", "закрыть отток", "найм для покрытия",
		"прогноз потребности", "анализ эффективности найма",
	}
	attritionWords  = []string{"отток", "текучест", "увольнен", "attrition"}
	demographyWords = []string{"демограф", "возраст", "опыт", "категори", "по полу", "пола ", "полов", "мужчин", "женщин"}
	sexWords        = []string{"по полу", "пола ", "полов", "мужчин", "женщин", "мужск", "женск"}
	segmentWords    = []string{"сегмент", "групп", "категори"}
	segmentDepth    = []string{"глубок", "многомерн", "нескольк", "комбинац"}
	riskWords       = []string{"риск", "проблем", "опасн", "высокий отток"}
	comparisonWords = []string{"сравни", "где выше", "самый высок", "где ниже", "самый низк", "меньше всего", "больше всего", "где больше", "где меньше"}
	trendWords      = []string{"тренд", "динамик", "изменил", "изменен", "рост", "паден"}
	averageWords    = []string{"средн", "avg"}
	experienceWords = []string{"опыт", "стаж", "месяц"}
	ageWords        = []string{"возраст", "лет", "младш", "старш", "молод", "пожил", "моложе"}
	lessWords       = []string{"меньше", "менее", "<"}
	moreWords       = []string{"больше", "более", "свыше", ">"}
	youngerWords    = []string{"меньше", "менее", "<", "младш", "молод", "моложе"}
	olderWords      = []string{"больше", "более", "свыше", ">", "старш", "пожил"}
	monthsRe        = regexp.MustCompile(`(\d+)\s*месяц`)
	yearsRe         = regexp.MustCompile(`(\d+)\s*(?:лет|год)`)
	firstNumberRe   = regexp.MustCompile(`\d+`)
	minKeywords     = []string{"меньше всего", "меньш", "низк", "ниже", "минимальн", "младш", "молод", "мал", "нижн"}
)

// Thresholds used when the question names none.
const (
	defaultNewcomer = 12
	defaultVeteran  = 60
	defaultOlderAge = 40
)

// ==========================
// Service extraction
// ==========================

type serviceStem struct {
	stem  string
	name  string
	exact []string
}

// Word forms are matched by stem; short names need an exact word form.
var serviceStems = []serviceStem{
	{stem: "такси", name: "Такси"},
	{stem: "маркет", name: "Маркет"},
	{stem: "крауд", name: "Крауд"},
	{stem: "лавк", name: "Лавка"},
	{stem: "финтех", name: "Финтех"},
	{name: "Еда", exact: []string{"еда", "еды", "еде", "еду", "едой"}},
	{stem: "доставк", name: "Доставка"},
	{stem: "облак", name: "Облако"},
	{stem: "коммерческ", name: "Коммерческий департамент"},
	{name: "Общие подразделения", exact: []string{"общие", "общих"}},
}

func words(t string) []string {
	return strings.FieldsFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func extractService(t string) string {
	for _, w := range words(t) {
		for _, s := range serviceStems {
			if s.stem != "" && strings.HasPrefix(w, s.stem) {
				return s.name
			}
			for _, e := range s.exact {
				if w == e {
					return s.name
				}
			}
		}
	}
	return ""
}

// ==========================
// Complex matchers
// ==========================

func isHiringNeeds(t string) bool { return containsAny(t, hiringPhrases...) }

func buildHiringNeeds(t string) models.Command {
	p := params(models.ParamPeriod, "month")
	if s := extractService(t); s != "" {
		p[models.ParamService] = s
	}
	return models.NewCommand(models.ActionHiringNeeds, p)
}

// Risk questions that also name attrition and a demography field are
// claimed here; the risk matcher runs later.
func isAttritionByDemography(t string) bool {
	return containsAny(t, attritionWords...) && containsAny(t, demographyWords...)
}

func buildAttritionByDemography(t string) models.Command {
	service := extractService(t)
	if service == "" {
		return models.UnknownCommand(ReasonNoService)
	}

	dim := models.DimAgeCategory
	switch {
	case strings.Contains(t, "возраст"):
		dim = models.DimAgeCategory
	case strings.Contains(t, "опыт"):
		dim = models.DimExperienceCategory
	case containsAny(t, sexWords...):
		dim = models.DimSex
	case strings.Contains(t, "кластер"):
		dim = models.DimCluster
	}
	return models.NewCommand(models.ActionAttritionByDemography, params(
		models.ParamService, service,
		models.ParamDimension, string(dim),
	))
}

func isDeepSegmentation(t string) bool {
	return containsAny(t, segmentWords...) && containsAny(t, segmentDepth...)
}

var segmentPairs = []struct {
	a, b []string
	dims []string
}{
	{[]string{"возраст"}, []string{"опыт"}, []string{"age_category", "experience_category"}},
	{[]string{"возраст"}, sexWords, []string{"age_category", "sex"}},
	{[]string{"опыт"}, sexWords, []string{"experience_category", "sex"}},
	{[]string{"сервис"}, []string{"возраст"}, []string{"service", "age_category"}},
	{[]string{"сервис"}, []string{"опыт"}, []string{"service", "experience_category"}},
	{[]string{"локац", "город"}, []string{"возраст"}, []string{"location_name", "age_category"}},
	{[]string{"ставк"}, []string{"возраст"}, []string{"fte", "age_category"}},
	{[]string{"ставк"}, []string{"опыт"}, []string{"fte", "experience_category"}},
}

func buildDeepSegmentation(t string) models.Command {
	segmentBy := []string{"age_category", "experience_category"}
	for _, p := range segmentPairs {
		if containsAny(t, p.a...) && containsAny(t, p.b...) {
			segmentBy = append([]string(nil), p.dims...)
			break
		}
	}

	metrics := []string{string(models.SegmentHeadcount), string(models.SegmentAttritionRate)}
	if strings.Contains(t, "ставк") {
		metrics = append(metrics, string(models.SegmentAvgFTE))
	}
	if containsAll(t, "опыт", "средн") {
		metrics = append(metrics, string(models.SegmentAvgExperience))
	}
	if containsAll(t, "возраст", "средн") {
		metrics = append(metrics, string(models.SegmentAvgAge))
	}
	return models.NewCommand(models.ActionDeepSegmentation, params(
		models.ParamSegmentBy, segmentBy,
		models.ParamMetrics, metrics,
	))
}

func isRisk(t string) bool { return containsAny(t, riskWords...) }

func buildRisk(t string) models.Command {
	p := map[string]interface{}{}
	if s := extractService(t); s != "" {
		p[models.ParamService] = s
	}

	var factors []string
	if strings.Contains(t, "возраст") {
		factors = append(factors, string(models.DimAgeCategory))
	}
	if strings.Contains(t, "опыт") {
		factors = append(factors, string(models.DimExperienceCategory))
	}
	if containsAny(t, sexWords...) {
		factors = append(factors, string(models.DimSex))
	}
	if containsAny(t, "ставк", "fte") {
		factors = append(factors, string(models.DimFTE))
	}
	if len(factors) > 0 {
		p[models.ParamRiskFactors] = factors
	}
	return models.NewCommand(models.ActionAttritionRisk, p)
}

func isComparison(t string) bool { return containsAny(t, comparisonWords...) }

func comparisonDimension(t string) models.Dimension {
	switch {
	case containsAny(t, "локац", "город"):
		return models.DimLocation
	case strings.Contains(t, "кластер"):
		return models.DimCluster
	case strings.Contains(t, "возраст"):
		return models.DimAgeCategory
	case strings.Contains(t, "опыт"):
		return models.DimExperienceCategory
	case containsAny(t, sexWords...):
		return models.DimSex
	}
	return models.DimService
}

func comparisonMetric(t string) models.Metric {
	avg := containsAny(t, averageWords...)
	switch {
	case strings.Contains(t, "текучест"):
		return models.MetricTurnoverRate
	case avg && strings.Contains(t, "возраст"):
		return models.MetricAverageAge
	case avg && strings.Contains(t, "опыт"):
		return models.MetricAverageExperience
	case avg && strings.Contains(t, "ставк"):
		return models.MetricAverageFTE
	case containsAny(t, "найм", "наня"):
		return models.MetricTotalHired
	case containsAny(t, "увольн", "уволен"):
		return models.MetricTotalFired
	}
	return models.MetricHeadcount
}

func buildComparison(t string) models.Command {
	action := models.ActionCompare
	if containsAny(t, minKeywords...) {
		action = models.ActionCompareMin
	}
	return models.NewCommand(action, params(
		models.ParamMetric, string(comparisonMetric(t)),
		models.ParamDimension, string(comparisonDimension(t)),
	))
}

func isTrend(t string) bool { return containsAny(t, trendWords...) }

func buildTrend(t string) models.Command {
	metric := models.MetricHeadcount
	switch {
	case containsAny(t, "найм", "наня"):
		metric = models.MetricTotalHired
	case containsAny(t, "увольн", "уволен"):
		metric = models.MetricTotalFired
	case strings.Contains(t, "текучест"):
		metric = models.MetricTurnoverRate
	}

	period := "3month"
	switch {
	case containsAny(t, "за все", "весь", "всё время"):
		period = "all"
	case strings.Contains(t, "1 месяц"):
		period = "1month"
	}

	p := params(models.ParamMetric, string(metric), models.ParamPeriod, period)
	if s := extractService(t); s != "" {
		p[models.ParamFilters] = map[string]interface{}{string(models.ColService): s}
	}
	return models.NewCommand(models.ActionTrendAnalysis, p)
}

// ==========================
// Experience and age thresholds
// ==========================

func isExperienceAge(t string) bool {
	_, ok := experienceAge(t)
	return ok
}

func buildExperienceAge(t string) models.Command {
	cmd, _ := experienceAge(t)
	return cmd
}

func headcountWhere(col models.Column, value string) models.Command {
	return models.NewCommand(models.ActionCalculate, params(
		models.ParamMetric, string(models.MetricHeadcount),
		models.ParamFilters, map[string]interface{}{string(col): value},
	))
}

func complexMetric(m models.Metric) models.Command {
	return models.NewCommand(models.ActionCalculateComplex, params(models.ParamMetric, string(m)))
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// experienceMonths reads a threshold in months; years are converted.
func experienceMonths(t string, def int) int {
	if m := monthsRe.FindStringSubmatch(t); m != nil {
		return atoi(m[1])
	}
	if m := yearsRe.FindStringSubmatch(t); m != nil {
		return atoi(m[1]) * 12
	}
	return def
}

func experienceAge(t string) (models.Command, bool) {
	if containsAny(t, experienceWords...) {
		switch {
		case containsAny(t, lessWords...):
			return headcountWhere(models.ColExperience, "<"+strconv.Itoa(experienceMonths(t, defaultNewcomer))), true
		case containsAny(t, moreWords...):
			return headcountWhere(models.ColExperience, ">"+strconv.Itoa(experienceMonths(t, defaultVeteran))), true
		case containsAny(t, "3 месяц", "три месяц"):
			return headcountWhere(models.ColExperience, "<3"), true
		case containsAny(t, "5 лет", "пять лет"):
			return complexMetric(models.MetricExperiencedWorkers), true
		case containsAny(t, "2 год", "два год"):
			return headcountWhere(models.ColExperience, ">24"), true
		case containsAny(t, "1 год", "один год"):
			return headcountWhere(models.ColExperience, ">12"), true
		}
		if strings.Contains(t, "опыт") || strings.Contains(t, "стаж") {
			return models.Command{}, false
		}
	}

	if !containsAny(t, ageWords...) {
		return models.Command{}, false
	}
	switch {
	case containsAny(t, youngerWords...):
		if n := firstNumberRe.FindString(t); n != "" {
			if m := yearsRe.FindStringSubmatch(t); m == nil && n == "25" {
				return complexMetric(models.MetricYoungWorkers), true
			}
			return headcountWhere(models.ColFullyears, "<"+n), true
		}
		if strings.Contains(t, "тридцат") {
			return headcountWhere(models.ColFullyears, "<30"), true
		}
		return complexMetric(models.MetricYoungWorkers), true
	case containsAny(t, olderWords...):
		if n := firstNumberRe.FindString(t); n != "" {
			return headcountWhere(models.ColFullyears, ">"+n), true
		}
		if strings.Contains(t, "пятьдесят") {
			return headcountWhere(models.ColFullyears, ">50"), true
		}
		return headcountWhere(models.ColFullyears, ">"+strconv.Itoa(defaultOlderAge)), true
	}
	return models.Command{}, false
}
