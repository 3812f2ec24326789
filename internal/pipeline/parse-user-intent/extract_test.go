package parseuserintent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-assistant/internal/models"
)

func TestExtract_Ladder(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		wantAction models.ActionKind
		wantRung   Rung
		wantParams map[string]interface{}
	}{
		{
			name:       "plain json",
			reply:      `{"action": "calculate", "parameters": {"metric": "headcount", "filters": {"fte": 0.5}}}`,
			wantAction: models.ActionCalculate,
			wantRung:   RungDirect,
			wantParams: map[string]interface{}{
				"metric":  "headcount",
				"filters": map[string]interface{}{"fte": 0.5},
			},
		},
		{
			name:       "fenced json",
			reply:      "```json\n{\"action\": \"unique_values\", \"parameters\": {\"column\": \"service\"}}\n```",
			wantAction: models.ActionUniqueValues,
			wantRung:   RungDirect,
			wantParams: map[string]interface{}{"column": "service"},
		},
		{
			name:       "bare top values parameters",
			reply:      `{"column": "location_name", "n": 5}`,
			wantAction: models.ActionTopValues,
			wantRung:   RungDirect,
			wantParams: map[string]interface{}{"column": "location_name", "n": float64(5)},
		},
		{
			name:       "bare calculate parameters",
			reply:      `{"metric": "average_age"}`,
			wantAction: models.ActionCalculate,
			wantRung:   RungDirect,
			wantParams: map[string]interface{}{"metric": "average_age"},
		},
		{
			name:       "object inside prose",
			reply:      `Вот команда: {"action": "compare", "parameters": {"metric": "turnover_rate", "dimension": "service"}} Готово.`,
			wantAction: models.ActionCompare,
			wantRung:   RungExtracted,
			wantParams: map[string]interface{}{"metric": "turnover_rate", "dimension": "service"},
		},
		{
			name:       "trailing comma repaired",
			reply:      `Ответ: {"action": "calculate", "parameters": {"metric": "headcount",}}`,
			wantAction: models.ActionCalculate,
			wantRung:   RungRepaired,
			wantParams: map[string]interface{}{"metric": "headcount"},
		},
		{
			name:       "string null service repaired",
			reply:      "Ответ:\n{\"action\": \"calculate_hiring_needs\",\n \"parameters\": {\"service\": \"null\"}\n,}",
			wantAction: models.ActionHiringNeeds,
			wantRung:   RungRepaired,
			wantParams: map[string]interface{}{"service": nil},
		},
		{
			name:       "broken filters stripped",
			reply:      `{"action": "calculate", "metric": "headcount", "filters": {sex: F}}`,
			wantAction: models.ActionCalculate,
			wantRung:   RungStripped,
			wantParams: map[string]interface{}{},
		},
		{
			name:       "action only",
			reply:      `{"action": "help_examples", "parameters": {"oops" }}`,
			wantAction: models.ActionHelpExamples,
			wantRung:   RungActionOnly,
			wantParams: map[string]interface{}{},
		},
		{
			name:       "action field without object",
			reply:      `"action": "help_examples", "parameters": [`,
			wantAction: models.ActionHelpExamples,
			wantRung:   RungActionOnly,
			wantParams: map[string]interface{}{},
		},
		{
			name:       "legacy alias",
			reply:      `{"action": "risk_assessment", "parameters": {"service": "Такси"}}`,
			wantAction: models.ActionAttritionRisk,
			wantRung:   RungDirect,
			wantParams: map[string]interface{}{"service": "Такси"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, rung, ok := extract(tt.reply)
			require.True(t, ok)
			assert.Equal(t, tt.wantAction, cmd.Action)
			assert.Equal(t, tt.wantRung, rung)
			assert.Equal(t, tt.wantParams, cmd.Parameters)
		})
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty", ""},
		{"prose", "Я не знаю, что ответить"},
		{"array", "[1, 2, 3]"},
		{"schema violation", `{"action": 5}`},
		{"empty action", `{"action": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := extract(tt.reply)
			assert.False(t, ok)
		})
	}
}

func TestExtract_UnknownActionName(t *testing.T) {
	cmd, rung, ok := extract(`{"action": "drop_table", "parameters": {}}`)
	require.True(t, ok)
	assert.Equal(t, RungDirect, rung)
	assert.Equal(t, models.ActionUnknown, cmd.Action)
	assert.Contains(t, cmd.Reason(), "drop_table")
}

func TestRepair(t *testing.T) {
	assert.Equal(t, `{"service": null, "filters": {}}`, repair("{\"service\":  \"null\",\n \"filters\": \"null\",}"))
	assert.Equal(t, `{"action": "x", "parameters": {"n": 3}}`, repair(`{"action": "x", "parameters": {"n": 3}`))
}
