package validation

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error joins the individual messages; it is only meaningful when !Valid.
func (r *ValidationResult) Error() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Field + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

// CommandSchema is the JSON shape both parser paths must produce.
var CommandSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"action"},
	"properties": map[string]interface{}{
		"action": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"parameters": map[string]interface{}{
			"type": []interface{}{"object", "null"},
			"properties": map[string]interface{}{
				"filters": map[string]interface{}{
					"type": []interface{}{"object", "null"},
				},
				"n": map[string]interface{}{
					"type": []interface{}{"number", "string", "null"},
				},
				"segment_by": map[string]interface{}{
					"type": []interface{}{"array", "string", "null"},
				},
			},
		},
	},
}

var commandSchemaLoader = gojsonschema.NewGoLoader(CommandSchema)

// ValidateCommand checks a decoded command object against CommandSchema.
func ValidateCommand(doc map[string]interface{}) *ValidationResult {
	return validate(commandSchemaLoader, doc)
}

func validate(schema gojsonschema.JSONLoader, doc map[string]interface{}) *ValidationResult {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "SCHEMA_ERROR",
			}},
		}
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}
}
