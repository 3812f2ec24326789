package normalizefilters

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hr-assistant/internal/common/errors"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/models"
)

type fakeLookup struct {
	values map[models.Column][]string
	err    error
}

func (f *fakeLookup) Values(ctx context.Context, column models.Column) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.values[column], nil
}

func createTestNormalizer(t *testing.T) *Normalizer {
	return NewNormalizer(&fakeLookup{values: map[models.Column][]string{
		models.ColService:  {"Маркет", "Облако", "Такси", "Такси Бизнес"},
		models.ColLocation: {"Дистанционщик", "Екатеринбург, офис", "Новосибирск"},
	}}, logger.NewTestLogger(t))
}

func TestNormalize_Values(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]interface{}
		expected models.Filters
	}{
		{
			name:     "numeric fte",
			raw:      map[string]interface{}{"fte": 0.5},
			expected: models.Filters{models.ColFTE: models.ExactNumber(0.5)},
		},
		{
			name:     "numeric string with comma",
			raw:      map[string]interface{}{"fte": "0,5"},
			expected: models.Filters{models.ColFTE: models.ExactNumber(0.5)},
		},
		{
			name:     "comparator",
			raw:      map[string]interface{}{"fullyears": "<25"},
			expected: models.Filters{models.ColFullyears: models.Compare(models.OpLess, 25)},
		},
		{
			name:     "comparator with spaces",
			raw:      map[string]interface{}{"experience": " >= 60 "},
			expected: models.Filters{models.ColExperience: models.Compare(models.OpGreaterEqual, 60)},
		},
		{
			name:     "sex is uppercased",
			raw:      map[string]interface{}{"sex": "f"},
			expected: models.Filters{models.ColSex: models.ExactText("F")},
		},
		{
			name:     "sex alias",
			raw:      map[string]interface{}{"sex": "мужчины"},
			expected: models.Filters{models.ColSex: models.ExactText("M")},
		},
		{
			name:     "report date phrase",
			raw:      map[string]interface{}{"report_date": "август 2025"},
			expected: models.Filters{models.ColReportDate: models.ExactText("2025-08-31")},
		},
		{
			name:     "report date month",
			raw:      map[string]interface{}{"report_date": "2025-09"},
			expected: models.Filters{models.ColReportDate: models.ExactText("2025-09-03")},
		},
		{
			name:     "remote location",
			raw:      map[string]interface{}{"location_name": "удаленка"},
			expected: models.Filters{models.ColLocation: models.Like("%Дистанционщик%")},
		},
		{
			name:     "moscow",
			raw:      map[string]interface{}{"location_name": "Москва"},
			expected: models.Filters{models.ColLocation: models.Like("%Москва%")},
		},
		{
			name:     "petersburg",
			raw:      map[string]interface{}{"location_name": "спб"},
			expected: models.Filters{models.ColLocation: models.Like("%Санкт-Петербург%")},
		},
		{
			name:     "location exact from vocabulary",
			raw:      map[string]interface{}{"location_name": "Дистанционщик"},
			expected: models.Filters{models.ColLocation: models.ExactText("Дистанционщик")},
		},
		{
			name:     "location substring from vocabulary",
			raw:      map[string]interface{}{"location_name": "екатеринбург"},
			expected: models.Filters{models.ColLocation: models.ExactText("Екатеринбург, офис")},
		},
		{
			name:     "location pattern passthrough",
			raw:      map[string]interface{}{"location_name": "%Новосибирск%"},
			expected: models.Filters{models.ColLocation: models.Like("%Новосибирск%")},
		},
		{
			name:     "service exact",
			raw:      map[string]interface{}{"service": "Такси"},
			expected: models.Filters{models.ColService: models.ExactText("Такси")},
		},
		{
			name:     "service substring",
			raw:      map[string]interface{}{"service": "марк"},
			expected: models.Filters{models.ColService: models.ExactText("Маркет")},
		},
		{
			name:     "service alias",
			raw:      map[string]interface{}{"service": "облаке"},
			expected: models.Filters{models.ColService: models.ExactText("Облако")},
		},
		{
			name:     "service unknown passthrough",
			raw:      map[string]interface{}{"service": "Телепорт"},
			expected: models.Filters{models.ColService: models.ExactText("Телепорт")},
		},
		{
			name:     "null values dropped",
			raw:      map[string]interface{}{"service": nil, "sex": "null", "cluster": ""},
			expected: models.Filters{},
		},
		{
			name:     "like on text column",
			raw:      map[string]interface{}{"department_3": "%Финанс%"},
			expected: models.Filters{models.ColDepartment3: models.Like("%Финанс%")},
		},
	}

	n := createTestNormalizer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]interface{}
		category models.ErrorCategory
		contains string
	}{
		{
			name:     "unknown column",
			raw:      map[string]interface{}{"salary": ">100"},
			category: models.CategoryUnknownColumn,
			contains: "Колонка 'salary' для фильтра не найдена",
		},
		{
			name:     "comparator on text column",
			raw:      map[string]interface{}{"service": "<5"},
			category: models.CategoryInvalidFilter,
			contains: "только для числовых колонок",
		},
		{
			name:     "malformed comparator",
			raw:      map[string]interface{}{"fullyears": "< 25; DROP TABLE hr_data_clean"},
			category: models.CategoryInvalidFilter,
			contains: "не является числом",
		},
		{
			name:     "pattern on numeric column",
			raw:      map[string]interface{}{"fte": "%1%"},
			category: models.CategoryInvalidFilter,
			contains: "только для текстовых колонок",
		},
		{
			name:     "pattern on categorical column",
			raw:      map[string]interface{}{"age_category": "%лет%"},
			category: models.CategoryInvalidFilter,
			contains: "только для текстовых колонок",
		},
		{
			name:     "list value",
			raw:      map[string]interface{}{"service": []interface{}{"Такси", "Маркет"}},
			category: models.CategoryInvalidFilter,
			contains: "неподдерживаемое значение",
		},
	}

	n := createTestNormalizer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(context.Background(), tt.raw)
			require.Error(t, err)

			var ferr *FilterError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, tt.category, ferr.Category)
			assert.Contains(t, ferr.Message, tt.contains)
			assert.True(t, len(ferr.Message) > 0 && ferr.Message[:len("❌")] == "❌")
			if tt.category == models.CategoryInvalidFilter {
				assert.Equal(t, apperrors.ErrCodeInvalidFilterFormat, apperrors.CodeOf(err))
			} else {
				assert.Equal(t, apperrors.ErrorCode(""), apperrors.CodeOf(err))
			}
		})
	}
}

func TestNormalize_LookupFailureKeepsInput(t *testing.T) {
	n := NewNormalizer(&fakeLookup{err: errors.New("database is locked")}, logger.NewTestLogger(t))

	got, err := n.Normalize(context.Background(), map[string]interface{}{
		"service":       "облаке",
		"location_name": "Новосиб",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExactText("облаке"), got[models.ColService])
	assert.Equal(t, models.ExactText("Новосиб"), got[models.ColLocation])

	// keyword patterns do not need the vocabulary
	got, err = n.Normalize(context.Background(), map[string]interface{}{"location_name": "москва"})
	require.NoError(t, err)
	assert.Equal(t, models.Like("%Москва%"), got[models.ColLocation])
}

// ==========================
// Idempotence property
// ==========================

type rawFilters map[string]interface{}

var sampleValues = map[string][]interface{}{
	"service":       {"Такси", "такси", "облаке", "марк", "Телепорт", "%Такси%", "коммерческий"},
	"location_name": {"Москва", "питер", "удаленно", "екатеринбург", "Новосибирск", "Тверь", "%Казань%"},
	"sex":           {"f", "M", "ж", "мужчины"},
	"fte":           {0.5, "1.0", "0,2", "<1", ">=0.5"},
	"fullyears":     {"<25", "> 40", float64(30), "33"},
	"experience":    {">60", "<=12", "24"},
	"report_date":   {"август 2025", "2025-07", "2025-09-03"},
	"cluster":       {"Кластер А", "%B%"},
	"department_4":  {"Финансы"},
}

func (rawFilters) Generate(r *rand.Rand, size int) reflect.Value {
	out := rawFilters{}
	for key, vals := range sampleValues {
		if r.Intn(2) == 0 {
			out[key] = vals[r.Intn(len(vals))]
		}
	}
	return reflect.ValueOf(out)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := createTestNormalizer(t)
	ctx := context.Background()

	property := func(raw rawFilters) bool {
		first, err := n.Normalize(ctx, raw)
		if err != nil {
			return false
		}
		second, err := n.Normalize(ctx, first.Raw())
		if err != nil {
			return false
		}
		return reflect.DeepEqual(first, second)
	}

	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 300}))
}

func TestNormalize_IdempotentComparatorNumbers(t *testing.T) {
	n := createTestNormalizer(t)
	property := func(v float64, opIdx uint8) bool {
		ops := []models.Comparator{models.OpLess, models.OpLessEqual, models.OpGreater, models.OpGreaterEqual}
		fv := models.Compare(ops[int(opIdx)%len(ops)], v)
		got, err := n.Normalize(context.Background(), map[string]interface{}{"fullyears": fv.Raw()})
		return err == nil && got[models.ColFullyears] == fv
	}
	require.NoError(t, quick.Check(property, nil))
}
