package parseuserintent

import (
	"encoding/json"
	"regexp"
	"strings"

	"hr-assistant/internal/common/validation"
	"hr-assistant/internal/models"
)

// Rung names the step of the extraction ladder that produced a command.
type Rung string

const (
	RungDirect     Rung = "direct"
	RungExtracted  Rung = "extracted"
	RungRepaired   Rung = "repaired"
	RungStripped   Rung = "stripped"
	RungActionOnly Rung = "action_only"
)

var (
	// an object with at most one level of nesting
	objectRe = regexp.MustCompile(`\{[^{}]*\{[^{}]*\}[^{}]*\}|\{[^{}]*\}`)
	actionRe = regexp.MustCompile(`"action"\s*:\s*"([^"]+)"`)

	spaceRe         = regexp.MustCompile(`\s+`)
	nullServiceRe   = regexp.MustCompile(`"service"\s*:\s*"null"`)
	nullFiltersRe   = regexp.MustCompile(`"filters"\s*:\s*"null"`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	filtersFragmentRe = regexp.MustCompile(`,\s*"filters"\s*:\s*\{[^}]*\}`)
	sortFragmentRe    = regexp.MustCompile(`,\s*"sort"\s*:[^,]+`)
	limitFragmentRe   = regexp.MustCompile(`,\s*"limit"\s*:[^,]+`)
)

var attemptRungs = [...]Rung{RungExtracted, RungRepaired, RungStripped}

// extract turns a raw model reply into a Command. ok is false when every rung
// failed and the caller should fall back to the keyword cascade.
func extract(reply string) (models.Command, Rung, bool) {
	cleaned := stripFences(reply)
	if cmd, ok := decode(cleaned); ok {
		return cmd, RungDirect, true
	}

	if candidate := objectRe.FindString(cleaned); candidate != "" {
		for attempt := 0; attempt < 3; attempt++ {
			if cmd, ok := decode(candidate); ok {
				return cmd, attemptRungs[attempt], true
			}
			switch attempt {
			case 0:
				candidate = repair(candidate)
			case 1:
				candidate = stripFragments(candidate)
			}
		}
		if cmd, ok := actionOnly(candidate); ok {
			return cmd, RungActionOnly, true
		}
	}

	if cmd, ok := actionOnly(cleaned); ok {
		return cmd, RungActionOnly, true
	}
	return models.Command{}, "", false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "```json") {
		s = strings.ReplaceAll(s, "```json", "")
	}
	return strings.TrimSpace(strings.ReplaceAll(s, "```", ""))
}

// decode parses s as a JSON object, reinterprets action-less objects and
// checks the result against the command schema.
func decode(s string) (models.Command, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil || raw == nil {
		return models.Command{}, false
	}
	doc := reinterpret(raw)
	if res := validation.ValidateCommand(doc); !res.Valid {
		return models.Command{}, false
	}
	return models.CommandFromMap(doc), true
}

// reinterpret wraps a bare parameter object the model sometimes returns
// instead of a full command.
func reinterpret(raw map[string]interface{}) map[string]interface{} {
	if _, ok := raw["action"]; ok {
		return raw
	}
	_, hasColumn := raw[models.ParamColumn]
	_, hasN := raw[models.ParamN]
	if hasColumn && hasN {
		return map[string]interface{}{"action": string(models.ActionTopValues), "parameters": raw}
	}
	return map[string]interface{}{"action": string(models.ActionCalculate), "parameters": raw}
}

func repair(s string) string {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	s = nullServiceRe.ReplaceAllString(s, `"service": null`)
	s = nullFiltersRe.ReplaceAllString(s, `"filters": {}`)
	if open, closed := strings.Count(s, "{"), strings.Count(s, "}"); open > closed {
		s += strings.Repeat("}", open-closed)
	}
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func stripFragments(s string) string {
	s = filtersFragmentRe.ReplaceAllString(s, "")
	s = sortFragmentRe.ReplaceAllString(s, "")
	return limitFragmentRe.ReplaceAllString(s, "")
}

func actionOnly(s string) (models.Command, bool) {
	m := actionRe.FindStringSubmatch(s)
	if m == nil {
		return models.Command{}, false
	}
	return models.CommandFromMap(map[string]interface{}{"action": m[1]}), true
}
