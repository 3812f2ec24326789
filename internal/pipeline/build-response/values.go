package buildresponse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"hr-assistant/internal/models"
)

// toFloat reads a numeric cell. PostgreSQL NUMERIC arrives as a string.
func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f, err == nil
	}
	return 0, false
}

func number(row map[string]interface{}, key string) float64 {
	f, _ := toFloat(row[key])
	return f
}

// thousands rounds to an integer and groups digits with spaces: 12 345.
func thousands(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	if s == "-0" {
		s = "0"
	}
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func fixed(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Trim(s, "-0.") == "" {
		return strings.TrimPrefix(s, "-")
	}
	return s
}

func percentOf(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

var fteNames = map[string]string{
	"0":   "0.0 (нулевая)",
	"0.5": "0.5 (половинная)",
	"1":   "1.0 (полная)",
}

func fteName(v float64) string {
	key := strconv.FormatFloat(v, 'f', -1, 64)
	if name, ok := fteNames[key]; ok {
		return name
	}
	return key
}

// displayValue renders a grouped cell with the display tables for sex and
// fte buckets.
func displayValue(col models.Column, v interface{}) string {
	if v == nil {
		return "не указано"
	}
	switch col {
	case models.ColSex:
		switch fmt.Sprint(v) {
		case "F":
			return "Женщины"
		case "M":
			return "Мужчины"
		}
	case models.ColFTE:
		if f, ok := toFloat(v); ok {
			return fteName(f)
		}
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
