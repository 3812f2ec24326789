package models

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FilterKind tags the variant held by a FilterValue.
type FilterKind int

const (
	FilterExact FilterKind = iota
	FilterComparator
	FilterLike
)

// Comparator is a numeric comparison operator accepted in filter values.
type Comparator string

const (
	OpLess         Comparator = "<"
	OpLessEqual    Comparator = "<="
	OpGreater      Comparator = ">"
	OpGreaterEqual Comparator = ">="
)

var comparatorPattern = regexp.MustCompile(`^\s*(<=|>=|<|>)\s*(-?\d+(?:[.,]\d+)?)\s*$`)

// ParseComparator parses strings like "<25" or ">= 0,5".
func ParseComparator(s string) (Comparator, float64, bool) {
	m := comparatorPattern.FindStringSubmatch(s)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
	if err != nil {
		return "", 0, false
	}
	return Comparator(m[1]), n, true
}

// LooksLikeComparator reports whether s starts with a comparison operator.
func LooksLikeComparator(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "<") || strings.HasPrefix(t, ">")
}

// FilterValue is a normalized filter value: an exact match, a numeric
// comparison or a LIKE pattern.
type FilterValue struct {
	Kind     FilterKind
	Text     string
	Number   float64
	IsNumber bool
	Op       Comparator
}

func ExactText(s string) FilterValue {
	return FilterValue{Kind: FilterExact, Text: s}
}

func ExactNumber(n float64) FilterValue {
	return FilterValue{Kind: FilterExact, Number: n, IsNumber: true}
}

func Compare(op Comparator, n float64) FilterValue {
	return FilterValue{Kind: FilterComparator, Op: op, Number: n, IsNumber: true}
}

func Like(pattern string) FilterValue {
	return FilterValue{Kind: FilterLike, Text: pattern}
}

// Arg is the value bound to the statement placeholder.
func (v FilterValue) Arg() interface{} {
	if v.IsNumber {
		return v.Number
	}
	return v.Text
}

// Raw returns the value in the form the normalizer accepts, so that
// normalizing Raw() again yields the same FilterValue.
func (v FilterValue) Raw() interface{} {
	switch v.Kind {
	case FilterComparator:
		return string(v.Op) + strconv.FormatFloat(v.Number, 'f', -1, 64)
	case FilterLike:
		return v.Text
	}
	if v.IsNumber {
		return v.Number
	}
	return v.Text
}

// Filter is one normalized column condition.
type Filter struct {
	Column Column
	Value  FilterValue
}

// Filters maps allow-listed columns to normalized values.
type Filters map[Column]FilterValue

// Sorted returns the filters in allow-list order.
func (f Filters) Sorted() []Filter {
	out := make([]Filter, 0, len(f))
	for c, v := range f {
		out = append(out, Filter{Column: c, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Column.Index() < out[j].Column.Index()
	})
	return out
}

// Without returns a copy with the given column removed.
func (f Filters) Without(c Column) Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		if k != c {
			out[k] = v
		}
	}
	return out
}

// Raw converts the filters back to their raw map form.
func (f Filters) Raw() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for c, v := range f {
		out[string(c)] = v.Raw()
	}
	return out
}
