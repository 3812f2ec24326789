package models

// Rows is an ordered query result; an empty slice means no data.
type Rows []map[string]interface{}

// ResultStatus distinguishes answers from expected empties and failures.
type ResultStatus int

const (
	StatusOK ResultStatus = iota
	StatusEmpty
	StatusError
)

func (s ResultStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	default:
		return "error"
	}
}

// Result is the outcome of executing a Command. For Empty and Error the text
// is a "❌ ..." marker consumed by the classifier.
type Result struct {
	Status ResultStatus
	Text   string
}

func OK(text string) Result { return Result{Status: StatusOK, Text: text} }

func Empty(marker string) Result { return Result{Status: StatusEmpty, Text: marker} }

func Fail(marker string) Result { return Result{Status: StatusError, Text: marker} }

// ErrorCategory names a class of non-OK outcomes for remediation.
type ErrorCategory string

const (
	CategoryUnknownService       ErrorCategory = "unknown_service"
	CategoryInsufficientRiskData ErrorCategory = "insufficient_risk_data"
	CategoryFeatureUnavailable   ErrorCategory = "feature_unavailable"
	CategoryMissingServiceHiring ErrorCategory = "missing_service_hiring"
	CategoryInvalidFilter        ErrorCategory = "invalid_filter"
	CategoryNoDataGeneral        ErrorCategory = "no_data_general"
	CategoryMissingMetric        ErrorCategory = "missing_metric"
	CategoryMissingColumn        ErrorCategory = "missing_column"
	CategoryUnknownColumn        ErrorCategory = "unknown_column"
	CategoryUnsupportedMethod    ErrorCategory = "unsupported_method"
	CategoryUnsupportedMetric    ErrorCategory = "unsupported_metric"
	CategoryOtherError           ErrorCategory = "other_error"
)
