package parsefallback

import (
	"regexp"
	"strings"

	"hr-assistant/internal/models"
)

// keywordMatcher is one rung of the generic fallback. It returns false when
// the text should go to the next rung.
type keywordMatcher struct {
	name  string
	build func(t string) (models.Command, bool)
}

var keywordMatchers = []keywordMatcher{
	{"help", helpCommand},
	{"age_category", ageCategoryCommand},
	{"experience_category", experienceCategoryCommand},
	{"fte", fteCommand},
	{"remote", remoteCommand},
	{"inferred_action", inferredCommand},
}

var (
	helpPhrases = []string{
		"какие задать вопросы", "что можно спросить", "что ты понимаешь", "примеры запросов",
		"какие бывают вопросы", "какие вопросы", "что спросить", "примеры вопросов",
		"что ты умеешь", "помощь", "help",
	}
	distributionWords = []string{"распределен", "категори"}
	remoteWords       = []string{"удален", "дистанц", "remote"}
	fteWords          = []string{"ставк", "fte"}
	fteValueWords     = []string{"ставк", "fte", "0.5", "0,5", "0.2", "0,2", "1.0", "1,0", "0.0", "0,0"}
	invalidFTEDigits  = []string{"2", "3", "4", "5", "6", "7", "8", "9"}
	topWords          = []string{"топ", "top", "самые", "крупн"}
	hiringWords       = []string{"найм", "наня", "hiring"}
	firingWords       = []string{"увольн", "текучест", "turnover", "уволен"}
	headcountWords    = []string{"сколько", "численност", "сотрудник", "работает"}
	statsWords        = []string{"распределен", "статистик", "stats"}
	uniqueWords       = []string{"уникальн", "какие", "список", "перечисл", "покажи все"}
	topNRe            = regexp.MustCompile(`(?:топ|top)[-\s]*(\d+)`)
)

var ageCategories = []struct{ key, value string }{
	{"18-25", "18-25 лет"},
	{"25-40", "25-40 лет"},
	{"40-60", "40-60 лет"},
	{"60+", "60+ лет"},
}

func isKeyword(string) bool { return true }

func buildKeyword(t string) models.Command {
	for _, m := range keywordMatchers {
		if cmd, ok := m.build(t); ok {
			return cmd
		}
	}
	return models.UnknownCommand(ReasonUnrecognized)
}

func helpCommand(t string) (models.Command, bool) {
	if containsAny(t, helpPhrases...) {
		return models.NewCommand(models.ActionHelpExamples, nil), true
	}
	return models.Command{}, false
}

func columnStats(col models.Column) models.Command {
	return models.NewCommand(models.ActionGetStats, params(models.ParamColumn, string(col)))
}

func calculate(m models.Metric) models.Command {
	return models.NewCommand(models.ActionCalculate, params(models.ParamMetric, string(m)))
}

func headcountWhereValue(col models.Column, value interface{}) models.Command {
	return models.NewCommand(models.ActionCalculate, params(
		models.ParamMetric, string(models.MetricHeadcount),
		models.ParamFilters, map[string]interface{}{string(col): value},
	))
}

func ageCategoryCommand(t string) (models.Command, bool) {
	if !containsAny(t, "возрастн", "age_categor") {
		return models.Command{}, false
	}
	if containsAny(t, distributionWords...) {
		return columnStats(models.ColAgeCategory), true
	}
	for _, c := range ageCategories {
		if strings.Contains(t, c.key) {
			return headcountWhereValue(models.ColAgeCategory, c.value), true
		}
	}
	return models.Command{}, false
}

func experienceCategoryCommand(t string) (models.Command, bool) {
	if containsAny(t, "опыт работ", "experience_categor") && containsAny(t, distributionWords...) {
		return columnStats(models.ColExperienceCategory), true
	}
	return models.Command{}, false
}

// fteValue reads an fte value mentioned in the text.
func fteValue(t string) (float64, bool) {
	switch {
	case containsAny(t, "0.5", "0,5", "половин"):
		return 0.5, true
	case containsAny(t, "0.2", "0,2"):
		return 0.2, true
	case containsAny(t, "1.0", "1,0", "полн"):
		return 1.0, true
	case containsAny(t, "0.0", "0,0", "нулев", " 0 "):
		return 0.0, true
	}
	return 0, false
}

func fteCommand(t string) (models.Command, bool) {
	if !containsAny(t, fteValueWords...) {
		return models.Command{}, false
	}
	share := containsAny(t, "доля", "долю", "процент")
	switch {
	case share && strings.Contains(t, "полн") && !strings.Contains(t, "неполн"):
		return calculate(models.MetricFullTimeRatio), true
	case share && containsAny(t, "частичн", "неполн"):
		return calculate(models.MetricPartTimeRatio), true
	case containsAny(t, "распределен", "сколько на каждой") || share:
		return calculate(models.MetricFTEDistribution), true
	}
	if containsAny(t, averageWords...) {
		return models.Command{}, false
	}
	if v, ok := fteValue(t); ok {
		return headcountWhereValue(models.ColFTE, v), true
	}
	if containsAny(t, fteWords...) && !containsAny(t, topWords...) && containsAny(t, invalidFTEDigits...) {
		return models.UnknownCommand(ReasonInvalidFTE), true
	}
	return models.Command{}, false
}

func remoteCommand(t string) (models.Command, bool) {
	if !containsAny(t, remoteWords...) {
		return models.Command{}, false
	}
	switch {
	case containsAny(t, "доля", "долю", "процент"):
		return calculate(models.MetricRemoteRatio), true
	case containsAny(t, "сколько", "численност"):
		return calculate(models.MetricRemoteWorkers), true
	}
	return headcountWhereValue(models.ColLocation, remotePattern), true
}

func inferredAction(t string) models.ActionKind {
	switch {
	case containsAny(t, topWords...):
		return models.ActionTopValues
	case containsAny(t, hiringWords...), containsAny(t, firingWords...), containsAny(t, headcountWords...):
		return models.ActionCalculate
	case containsAny(t, statsWords...):
		return models.ActionGetStats
	case containsAny(t, uniqueWords...):
		return models.ActionUniqueValues
	}
	return models.ActionUnknown
}

func inferredMetric(t string) models.Metric {
	avg := containsAny(t, averageWords...)
	switch {
	case strings.Contains(t, "текучест"):
		return models.MetricTurnoverRate
	case containsAny(t, "найм", "наня"):
		return models.MetricTotalHired
	case containsAny(t, "увольн", "уволен"):
		return models.MetricTotalFired
	case avg && strings.Contains(t, "возраст"):
		return models.MetricAverageAge
	case avg && strings.Contains(t, "опыт"):
		return models.MetricAverageExperience
	case avg && strings.Contains(t, "ставк"):
		return models.MetricAverageFTE
	case containsAny(t, headcountWords...):
		return models.MetricHeadcount
	}
	return ""
}

func inferredColumn(t string) models.Column {
	switch {
	case strings.Contains(t, "сервис"):
		return models.ColService
	case containsAny(t, "локац", "город"):
		return models.ColLocation
	case strings.Contains(t, "кластер"):
		return models.ColCluster
	case containsAny(t, sexWords...):
		return models.ColSex
	case strings.Contains(t, "возраст"):
		return models.ColAgeCategory
	case strings.Contains(t, "опыт"):
		return models.ColExperienceCategory
	case strings.Contains(t, "ставк"):
		return models.ColFTE
	}
	return ""
}

func inferredCommand(t string) (models.Command, bool) {
	action := inferredAction(t)
	if action == models.ActionUnknown {
		// averages are asked without any counting keyword
		if m := inferredMetric(t); m != "" {
			return calculate(m), true
		}
		return models.Command{}, false
	}

	p := map[string]interface{}{}
	if m := inferredMetric(t); m != "" {
		p[models.ParamMetric] = string(m)
	}
	if c := inferredColumn(t); c != "" {
		p[models.ParamColumn] = string(c)
	}

	if action == models.ActionTopValues {
		n := 20
		if m := topNRe.FindStringSubmatch(t); m != nil {
			n = atoi(m[1])
		}
		p[models.ParamN] = n
		if _, ok := p[models.ParamColumn]; !ok {
			p[models.ParamColumn] = string(models.ColService)
		}
	}
	return models.NewCommand(action, p), true
}

// ==========================
// Text filters
// ==========================

const remotePattern = "%Дистанционщик%"

var cityPatterns = []struct {
	keys    []string
	pattern string
}{
	{[]string{"москв"}, "%Москва%"},
	{[]string{"питер", "петербург", "спб"}, "%Санкт-Петербург%"},
	{[]string{"новосибирск"}, "%Новосибирск%"},
	{[]string{"екатеринбург"}, "%Екатеринбург%"},
}

// textFilters infers filters from co-occurring keywords.
func textFilters(t string) map[string]interface{} {
	filters := map[string]interface{}{}

	if s := extractService(t); s != "" {
		filters[string(models.ColService)] = s
	}
	for _, c := range cityPatterns {
		if containsAny(t, c.keys...) {
			filters[string(models.ColLocation)] = c.pattern
			break
		}
	}
	switch {
	case containsAny(t, "женщин", "женск"):
		filters[string(models.ColSex)] = "F"
	case containsAny(t, "мужчин", "мужск"):
		filters[string(models.ColSex)] = "M"
	}
	if containsAny(t, fteWords...) {
		if v, ok := fteValue(t); ok {
			filters[string(models.ColFTE)] = v
		}
	}
	if containsAny(t, remoteWords...) {
		filters[string(models.ColLocation)] = remotePattern
	}
	return filters
}
