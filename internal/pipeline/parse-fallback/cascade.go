package parsefallback

import (
	"strings"

	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/models"
)

const (
	TaskType = "parse-fallback"

	ReasonUnrecognized = "Не удалось определить тип запроса"
	ReasonNoService    = "Укажите сервис для анализа оттока (например, 'анализ оттока в Такси по возрасту')"
	ReasonInvalidFTE   = "Ставки могут быть только от 0.0 до 1.0. Используйте значения: 0.0, 0.2, 0.5, 1.0"
)

// matcher claims a lowercased question when predicate holds and turns it into
// a Command. Matchers never consult anything but the text.
type matcher struct {
	name      string
	predicate func(text string) bool
	build     func(text string) models.Command
	// enrich layers filters inferred from the text onto calculate,
	// calculate_complex and top_values commands.
	enrich bool
}

// matchers run first-match-wins in this order.
var matchers = []matcher{
	{name: "hiring_needs", predicate: isHiringNeeds, build: buildHiringNeeds},
	{name: "attrition_by_demography", predicate: isAttritionByDemography, build: buildAttritionByDemography},
	{name: "deep_segmentation", predicate: isDeepSegmentation, build: buildDeepSegmentation},
	{name: "risk", predicate: isRisk, build: buildRisk},
	{name: "comparison", predicate: isComparison, build: buildComparison},
	{name: "trend", predicate: isTrend, build: buildTrend},
	{name: "experience_age", predicate: isExperienceAge, build: buildExperienceAge, enrich: true},
	{name: "keyword", predicate: isKeyword, build: buildKeyword, enrich: true},
}

// Matchers returns the matcher names in evaluation order.
func Matchers() []string {
	names := make([]string, len(matchers))
	for i, m := range matchers {
		names[i] = m.name
	}
	return names
}

// Cascade is the deterministic text-to-Command parser used whenever the
// completion service is unavailable or its answer is unusable.
type Cascade struct {
	logger logger.Logger
}

func NewCascade(log logger.Logger) *Cascade {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Cascade{logger: log.WithFields(map[string]interface{}{"stage": TaskType})}
}

// Parse converts a question into a Command. Unmatched text yields unknown.
func (c *Cascade) Parse(text string) models.Command {
	cmd, name := parse(text)
	c.logger.Debug("cascade matched", map[string]interface{}{
		"matcher": name,
		"action":  string(cmd.Action),
	})
	return cmd
}

// Parse runs the cascade without logging.
func Parse(text string) models.Command {
	cmd, _ := parse(text)
	return cmd
}

func parse(text string) (models.Command, string) {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, m := range matchers {
		if !m.predicate(t) {
			continue
		}
		cmd := m.build(t)
		if m.enrich {
			cmd = enrich(cmd, t)
		}
		return cmd, m.name
	}
	return models.UnknownCommand(ReasonUnrecognized), ""
}

var enrichable = map[models.ActionKind]bool{
	models.ActionCalculate:        true,
	models.ActionCalculateComplex: true,
	models.ActionTopValues:        true,
}

// Metrics that define a sub-population on a column take no filter on it.
var metricColumns = map[string]models.Column{
	string(models.MetricFullTimeRatio):   models.ColFTE,
	string(models.MetricPartTimeRatio):   models.ColFTE,
	string(models.MetricFTEDistribution): models.ColFTE,
	string(models.MetricRemoteWorkers):   models.ColLocation,
	string(models.MetricRemoteRatio):     models.ColLocation,
}

// enrich adds filters inferred from the text. A filter the matcher already
// set is kept.
func enrich(cmd models.Command, t string) models.Command {
	if !enrichable[cmd.Action] {
		return cmd
	}
	inferred := textFilters(t)
	if own, ok := metricColumns[cmd.Param(models.ParamMetric)]; ok {
		delete(inferred, string(own))
	}
	if len(inferred) == 0 {
		return cmd
	}
	filters := map[string]interface{}{}
	for k, v := range inferred {
		filters[k] = v
	}
	for k, v := range cmd.Filters() {
		filters[k] = v
	}
	return cmd.WithParam(models.ParamFilters, filters)
}

// IsMinSeeking reports whether the question asks for the lowest values.
func IsMinSeeking(text string) bool {
	return containsAny(strings.ToLower(text), minKeywords...)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func params(kv ...interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}
