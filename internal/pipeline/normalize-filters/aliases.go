package normalizefilters

import "strings"

const (
	remotePattern     = "%Дистанционщик%"
	moscowPattern     = "%Москва%"
	petersburgPattern = "%Санкт-Петербург%"
)

// serviceAliases maps colloquial service names to their dataset spelling.
var serviceAliases = map[string]string{
	"облако":       "Облако",
	"облаке":       "Облако",
	"cloud":        "Облако",
	"такси":        "Такси",
	"маркет":       "Маркет",
	"лавка":        "Лавка",
	"лавке":        "Лавка",
	"крауд":        "Крауд",
	"финтех":       "Финтех",
	"еда":          "Еда",
	"доставка":     "Доставка",
	"коммерческий": "Коммерческий департамент",
	"коммерческий департамент": "Коммерческий департамент",
	"общие":                    "Общие подразделения",
	"общие подразделения":      "Общие подразделения",
}

var sexAliases = map[string]string{
	"ж":       "F",
	"жен":     "F",
	"женщины": "F",
	"женский": "F",
	"м":       "M",
	"муж":     "M",
	"мужчины": "M",
	"мужской": "M",
}

// reportDateFor maps month phrases ("август 2025", "2025-08") to the
// canonical report date of that month.
func reportDateFor(value string) (string, bool) {
	low := strings.ToLower(strings.TrimSpace(value))
	switch {
	case low == "2025-08" || (strings.Contains(low, "август") && strings.Contains(low, "2025")):
		return "2025-08-31", true
	case low == "2025-09" || (strings.Contains(low, "сентябр") && strings.Contains(low, "2025")):
		return "2025-09-03", true
	case low == "2025-07" || (strings.Contains(low, "июл") && strings.Contains(low, "2025")):
		return "2025-07-31", true
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
