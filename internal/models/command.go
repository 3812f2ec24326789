package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ActionKind is the closed set of actions a Command can request.
type ActionKind string

const (
	ActionGetStats              ActionKind = "get_stats"
	ActionCalculate             ActionKind = "calculate"
	ActionTimeSeries            ActionKind = "time_series"
	ActionUniqueValues          ActionKind = "unique_values"
	ActionTopValues             ActionKind = "top_values"
	ActionCompare               ActionKind = "compare"
	ActionCompareMin            ActionKind = "compare_min"
	ActionTrendAnalysis         ActionKind = "trend_analysis"
	ActionCalculateComplex      ActionKind = "calculate_complex"
	ActionAttritionByDemography ActionKind = "analyze_attrition_by_demography"
	ActionDeepSegmentation      ActionKind = "deep_segmentation_analysis"
	ActionAttritionRisk         ActionKind = "attrition_risk_analysis"
	ActionHiringNeeds           ActionKind = "calculate_hiring_needs"
	ActionCorrelation           ActionKind = "correlation"
	ActionSegmentation          ActionKind = "segmentation"
	ActionHelpExamples          ActionKind = "help_examples"
	ActionUnknown               ActionKind = "unknown"
)

// AllActions lists every ActionKind in declaration order.
var AllActions = []ActionKind{
	ActionGetStats,
	ActionCalculate,
	ActionTimeSeries,
	ActionUniqueValues,
	ActionTopValues,
	ActionCompare,
	ActionCompareMin,
	ActionTrendAnalysis,
	ActionCalculateComplex,
	ActionAttritionByDemography,
	ActionDeepSegmentation,
	ActionAttritionRisk,
	ActionHiringNeeds,
	ActionCorrelation,
	ActionSegmentation,
	ActionHelpExamples,
	ActionUnknown,
}

// legacy names still emitted by older prompt revisions
var actionAliases = map[string]ActionKind{
	"compare_metrics_min": ActionCompareMin,
	"risk_assessment":     ActionAttritionRisk,
}

func (a ActionKind) Valid() bool {
	for _, k := range AllActions {
		if k == a {
			return true
		}
	}
	return false
}

// ParseActionKind resolves an action name, including legacy aliases.
func ParseActionKind(s string) (ActionKind, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := actionAliases[name]; ok {
		return alias, true
	}
	kind := ActionKind(name)
	return kind, kind.Valid()
}

// Parameter keys shared by both parser paths and the dispatcher.
const (
	ParamColumn      = "column"
	ParamMetric      = "metric"
	ParamMetrics     = "metrics"
	ParamDimension   = "dimension"
	ParamFilters     = "filters"
	ParamN           = "n"
	ParamPeriod      = "period"
	ParamService     = "service"
	ParamSegmentBy   = "segment_by"
	ParamRiskFactors = "risk_factors"
	ParamGroupBy     = "group_by"
	ParamReason      = "reason"
)

// Command is the structured form of a user question.
type Command struct {
	Action     ActionKind             `json:"action"`
	Parameters map[string]interface{} `json:"parameters"`
}

func NewCommand(action ActionKind, params map[string]interface{}) Command {
	if params == nil {
		params = map[string]interface{}{}
	}
	return Command{Action: action, Parameters: params}
}

// UnknownCommand builds the terminal "cannot handle" command.
func UnknownCommand(reason string) Command {
	return NewCommand(ActionUnknown, map[string]interface{}{ParamReason: reason})
}

// CommandFromMap converts a decoded JSON object into a Command. Unrecognized
// action names become unknown with a reason.
func CommandFromMap(raw map[string]interface{}) Command {
	name, _ := raw["action"].(string)
	params, _ := raw["parameters"].(map[string]interface{})

	kind, ok := ParseActionKind(name)
	if !ok {
		return UnknownCommand(fmt.Sprintf("Неизвестное действие '%s'", name))
	}
	return NewCommand(kind, params)
}

func (c Command) MarshalJSON() ([]byte, error) {
	params := c.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	return json.Marshal(struct {
		Action     ActionKind             `json:"action"`
		Parameters map[string]interface{} `json:"parameters"`
	}{c.Action, params})
}

func (c Command) Param(key string) string {
	switch v := c.Parameters[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "null" {
			return s
		}
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// Int reads an integer parameter. JSON numbers and digit strings are accepted.
func (c Command) Int(key string, def int) int {
	switch v := c.Parameters[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Strings reads a list parameter; a single string is treated as a one-element list.
func (c Command) Strings(key string) []string {
	switch v := c.Parameters[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// Filters returns the raw filter map, never nil.
func (c Command) Filters() map[string]interface{} {
	if f, ok := c.Parameters[ParamFilters].(map[string]interface{}); ok {
		return f
	}
	return map[string]interface{}{}
}

func (c Command) Has(key string) bool {
	v, ok := c.Parameters[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != "" && s != "null"
	}
	return true
}

// WithParam returns a copy of the command with key set.
func (c Command) WithParam(key string, value interface{}) Command {
	params := make(map[string]interface{}, len(c.Parameters)+1)
	for k, v := range c.Parameters {
		params[k] = v
	}
	params[key] = value
	return Command{Action: c.Action, Parameters: params}
}

// WithAction returns a copy of the command with a different action.
func (c Command) WithAction(action ActionKind) Command {
	return Command{Action: action, Parameters: c.Parameters}
}

func (c Command) Reason() string {
	return c.Param(ParamReason)
}

// ParamKeys returns parameter names in sorted order, mostly for logging.
func (c Command) ParamKeys() []string {
	keys := make([]string, 0, len(c.Parameters))
	for k := range c.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
