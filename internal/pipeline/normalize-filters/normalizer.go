package normalizefilters

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "hr-assistant/internal/common/errors"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/models"
)

// ValueLookup returns the known values of a text column.
type ValueLookup interface {
	Values(ctx context.Context, column models.Column) ([]string, error)
}

// FilterError rejects a filter before it reaches the query builder. Message
// is the user-facing marker.
type FilterError struct {
	Column   string
	Message  string
	Category models.ErrorCategory

	cause *apperrors.StandardError
}

func (e *FilterError) Error() string { return e.Message }

func (e *FilterError) Unwrap() error {
	if e.cause == nil {
		return nil
	}
	return e.cause
}

type Normalizer struct {
	lookup ValueLookup
	logger logger.Logger
}

func NewNormalizer(lookup ValueLookup, log logger.Logger) *Normalizer {
	return &Normalizer{
		lookup: lookup,
		logger: log.With(map[string]interface{}{"stage": "normalize-filters"}),
	}
}

// Normalize canonicalizes raw filter values and rejects anything the query
// builder must not see. Nil and "null" values are dropped.
func (n *Normalizer) Normalize(ctx context.Context, raw map[string]interface{}) (models.Filters, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(models.Filters, len(raw))
	for _, key := range keys {
		val := raw[key]
		if isBlank(val) {
			continue
		}

		col, ok := models.ParseColumn(key)
		if !ok {
			return nil, &FilterError{
				Column:   key,
				Message:  fmt.Sprintf("❌ Колонка '%s' для фильтра не найдена. Доступные: %s", key, allowList()),
				Category: models.CategoryUnknownColumn,
			}
		}

		fv, err := n.normalizeValue(ctx, col, val)
		if err != nil {
			return nil, err
		}
		out[col] = fv
	}
	return out, nil
}

func (n *Normalizer) normalizeValue(ctx context.Context, col models.Column, val interface{}) (models.FilterValue, error) {
	if col.Numeric() {
		return normalizeNumeric(col, val)
	}

	s, ok := asText(val)
	if !ok {
		return models.FilterValue{}, invalid(col, fmt.Sprintf("❌ Некорректный фильтр для '%s': неподдерживаемое значение", col))
	}
	if models.LooksLikeComparator(s) {
		return models.FilterValue{}, invalid(col, fmt.Sprintf("❌ Некорректный фильтр для '%s': сравнение '%s' допустимо только для числовых колонок", col, s))
	}

	switch col {
	case models.ColReportDate:
		if date, ok := reportDateFor(s); ok {
			return models.ExactText(date), nil
		}
		return models.ExactText(s), nil
	case models.ColSex:
		if alias, ok := sexAliases[strings.ToLower(s)]; ok {
			return models.ExactText(alias), nil
		}
		return models.ExactText(strings.ToUpper(s)), nil
	case models.ColLocation:
		return n.normalizeLocation(ctx, s), nil
	case models.ColService:
		return n.normalizeService(ctx, s), nil
	}

	if strings.Contains(s, "%") {
		if !col.Text() {
			return models.FilterValue{}, invalid(col, fmt.Sprintf("❌ Некорректный фильтр для '%s': шаблон '%s' допустим только для текстовых колонок", col, s))
		}
		return models.Like(s), nil
	}
	return models.ExactText(s), nil
}

func normalizeNumeric(col models.Column, val interface{}) (models.FilterValue, error) {
	switch v := val.(type) {
	case float64:
		return models.ExactNumber(v), nil
	case float32:
		return models.ExactNumber(float64(v)), nil
	case int:
		return models.ExactNumber(float64(v)), nil
	case int64:
		return models.ExactNumber(float64(v)), nil
	case string:
		s := strings.TrimSpace(v)
		if op, num, ok := models.ParseComparator(s); ok {
			return models.Compare(op, num), nil
		}
		if strings.Contains(s, "%") {
			return models.FilterValue{}, invalid(col, fmt.Sprintf("❌ Некорректный фильтр для '%s': шаблон '%s' допустим только для текстовых колонок", col, s))
		}
		if num, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
			return models.ExactNumber(num), nil
		}
		return models.FilterValue{}, invalid(col, fmt.Sprintf("❌ Некорректный фильтр для '%s': значение '%s' не является числом или сравнением (например, '<25')", col, s))
	}
	return models.FilterValue{}, invalid(col, fmt.Sprintf("❌ Некорректный фильтр для '%s': неподдерживаемое значение", col))
}

func (n *Normalizer) normalizeLocation(ctx context.Context, s string) models.FilterValue {
	if strings.Contains(s, "%") {
		return models.Like(s)
	}

	values, ok := n.values(ctx, models.ColLocation)
	if ok {
		for _, v := range values {
			if v == s {
				return models.ExactText(v)
			}
		}
	}

	low := strings.ToLower(s)
	switch {
	case containsAny(low, "дистан", "удален", "удалён", "remote"):
		return models.Like(remotePattern)
	case strings.Contains(low, "москв"):
		return models.Like(moscowPattern)
	case containsAny(low, "питер", "петербург", "спб"):
		return models.Like(petersburgPattern)
	}

	if !ok {
		return models.ExactText(s)
	}
	if match, found := matchValue(values, s); found {
		return models.ExactText(match)
	}
	return models.ExactText(s)
}

func (n *Normalizer) normalizeService(ctx context.Context, s string) models.FilterValue {
	if strings.Contains(s, "%") {
		return models.Like(s)
	}

	values, ok := n.values(ctx, models.ColService)
	if !ok {
		return models.ExactText(s)
	}
	if match, found := matchValue(values, s); found {
		return models.ExactText(match)
	}
	if alias, found := serviceAliases[strings.ToLower(s)]; found {
		if match, matched := matchValue(values, alias); matched {
			return models.ExactText(match)
		}
		return models.ExactText(alias)
	}
	return models.ExactText(s)
}

func (n *Normalizer) values(ctx context.Context, col models.Column) ([]string, bool) {
	if n.lookup == nil {
		return nil, false
	}
	values, err := n.lookup.Values(ctx, col)
	if err != nil {
		n.logger.Warn("vocabulary lookup failed, keeping filter value", map[string]interface{}{
			"column": string(col),
			"error":  err.Error(),
		})
		return nil, false
	}
	return values, true
}

// matchValue finds s among the known values: exact first, then the first
// value containing s case-insensitively.
func matchValue(values []string, s string) (string, bool) {
	for _, v := range values {
		if v == s {
			return v, true
		}
	}
	low := strings.ToLower(s)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), low) {
			return v, true
		}
	}
	return "", false
}

func asText(val interface{}) (string, bool) {
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	}
	return "", false
}

func isBlank(val interface{}) bool {
	if val == nil {
		return true
	}
	if s, ok := val.(string); ok {
		t := strings.TrimSpace(s)
		return t == "" || strings.EqualFold(t, "null")
	}
	return false
}

func invalid(col models.Column, msg string) *FilterError {
	return &FilterError{
		Column:   string(col),
		Message:  msg,
		Category: models.CategoryInvalidFilter,
		cause:    apperrors.NewInvalidFilterFormatError(msg).WithMetadata("column", string(col)),
	}
}

func allowList() string {
	names := make([]string, len(models.AllowedColumns))
	for i, c := range models.AllowedColumns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
