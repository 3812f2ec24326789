package dispatchcommand

import (
	"strings"

	"hr-assistant/internal/models"
)

type metricRule struct {
	metric models.Metric
	match  func(q string) bool
}

func has(subs ...string) func(string) bool {
	return func(q string) bool {
		for _, s := range subs {
			if strings.Contains(q, s) {
				return true
			}
		}
		return false
	}
}

func averageOf(subs ...string) func(string) bool {
	topic := has(subs...)
	return func(q string) bool { return isAverage(q) && topic(q) }
}

var isAverage = has("средн", "avg")

// metricRules are tried in order. Counting questions about rates and
// experience ("сколько на полставки", "сколько с опытом") are headcounts.
var metricRules = []metricRule{
	{models.MetricHeadcount, func(q string) bool { return has("ставк", "опыт")(q) && !isAverage(q) }},
	{models.MetricTurnoverRate, has("текучест", "turnover")},
	{models.MetricTotalHired, has("найм", "наня", "hiring")},
	{models.MetricTotalFired, has("увольн", "fired")},
	{models.MetricHeadcount, has("сколько", "численност", "сотрудник", "работает")},
	{models.MetricAverageAge, averageOf("возраст", "лет")},
	{models.MetricAverageExperience, averageOf("опыт", "стаж")},
	{models.MetricAverageFTE, averageOf("ставк", "fte")},
}

// InferMetric picks the metric of a calculate command that arrived without
// one. Headcount is the default.
func InferMetric(query string) models.Metric {
	q := strings.ToLower(query)
	for _, rule := range metricRules {
		if rule.match(q) {
			return rule.metric
		}
	}
	return models.MetricHeadcount
}
