package buildresponse

import (
	"fmt"
	"strings"

	"hr-assistant/internal/models"
)

type classifyRule struct {
	category models.ErrorCategory
	match    func(marker string, cmd models.Command) bool
}

func phrase(subs ...string) func(string, models.Command) bool {
	return func(m string, _ models.Command) bool { return containsAny(m, subs...) }
}

func allOf(subs ...string) func(string, models.Command) bool {
	return func(m string, _ models.Command) bool {
		for _, s := range subs {
			if !strings.Contains(m, s) {
				return false
			}
		}
		return true
	}
}

// classifyRules are tried in order; the first match wins. Specific markers
// come before the general "нет данных" rule that would swallow them.
var classifyRules = []classifyRule{
	{models.CategoryUnknownService, phrase("нет данных для сервиса")},
	{models.CategoryInsufficientRiskData, phrase("недостаточно данных для анализа рисков")},
	{models.CategoryFeatureUnavailable, func(m string, cmd models.Command) bool {
		if cmd.Action == models.ActionCorrelation || cmd.Action == models.ActionSegmentation {
			return true
		}
		return containsAny(m,
			"сегментационный анализ временно недоступен",
			"корреляционный анализ временно недоступен",
			"анализ рисков временно недоступен",
			"временно недоступна",
		)
	}},
	{models.CategoryMissingServiceHiring, phrase("укажите сервис для расчета потребности в найме")},
	{models.CategoryInvalidFilter, phrase("некорректный фильтр")},
	{models.CategoryNoDataGeneral, phrase("нет данных")},
	{models.CategoryMissingMetric, phrase("не указана метрика")},
	{models.CategoryMissingColumn, phrase("не указана колонка")},
	{models.CategoryUnknownColumn, allOf("колонка", "не найдена")},
	{models.CategoryUnsupportedMethod, allOf("метод", "не поддерживается")},
	{models.CategoryUnsupportedMetric, allOf("метрика", "не поддерживается")},
}

// Classify maps a "❌" marker produced for cmd to its error category.
func Classify(marker string, cmd models.Command) models.ErrorCategory {
	m := strings.ToLower(marker)
	for _, rule := range classifyRules {
		if rule.match(m, cmd) {
			return rule.category
		}
	}
	return models.CategoryOtherError
}

// Remediate appends a hint for the category to the marker. The command, when
// known, personalizes the hint.
func Remediate(category models.ErrorCategory, marker string, cmd models.Command) string {
	hint := remediationHint(category, cmd)
	if hint == "" {
		return marker
	}
	return marker + "\n\n💡 " + hint
}

func remediationHint(category models.ErrorCategory, cmd models.Command) string {
	switch category {
	case models.CategoryUnknownService:
		service := cmd.Param(models.ParamService)
		if service == "" {
			service = "указанный"
		}
		return fmt.Sprintf("Сервис «%s» не найден. Список сервисов можно получить запросом «покажи все сервисы».", service)
	case models.CategoryInsufficientRiskData:
		return "Для анализа рисков нужны группы от 10 сотрудников. Уберите часть фильтров или выберите более крупный сервис."
	case models.CategoryFeatureUnavailable:
		return "Этот вид анализа пока недоступен. Попробуйте сравнение, например «сравни текучесть по сервисам»."
	case models.CategoryMissingServiceHiring:
		return "Укажите сервис, например «сколько нужно нанять в Такси»."
	case models.CategoryInvalidFilter:
		return "Сравнения больше/меньше работают только для числовых полей: возраст, опыт, ставка. Например «сколько сотрудников младше 25 лет»."
	case models.CategoryNoDataGeneral:
		return "По заданным условиям записей нет. Ослабьте фильтры или выберите другой период."
	case models.CategoryMissingMetric:
		return "Уточните, что посчитать: численность, текучесть, найм, увольнения, средний возраст или опыт."
	case models.CategoryMissingColumn:
		return "Уточните поле: сервис, локация, кластер, пол, возрастная категория, опыт или ставка."
	case models.CategoryUnknownColumn:
		return "Доступные поля: сервис, локация, кластер, пол, возрастная категория, категория опыта, ставка."
	case models.CategoryUnsupportedMethod, models.CategoryUnsupportedMetric:
		return "Напишите «помощь», чтобы увидеть примеры поддерживаемых запросов."
	}
	return "Попробуйте переформулировать вопрос или напишите «помощь»."
}

// HelpText lists example questions.
func HelpText() string {
	return strings.Join([]string{
		"🤖 Я отвечаю на вопросы по HR-данным. Примеры:",
		"",
		"📊 Метрики:",
		"• Сколько сотрудников в Такси?",
		"• Какая текучесть в Маркете?",
		"• Средний возраст сотрудников",
		"",
		"🔍 Сравнения и рейтинги:",
		"• Сравни текучесть по сервисам",
		"• Где меньше всего молодых сотрудников?",
		"• Топ-5 локаций по численности",
		"",
		"📈 Динамика:",
		"• Динамика численности",
		"• Тренд увольнений в Облаке",
		"",
		"⚠️ Аналитика:",
		"• Анализ рисков увольнения в Такси",
		"• Сколько нужно нанять в Маркет?",
		"• Текучесть в Такси по возрастным категориям",
	}, "\n")
}
