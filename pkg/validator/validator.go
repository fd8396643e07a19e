package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"cdi-tracker/pkg/timestamp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	messagesMu sync.RWMutex
	messages   = map[string]string{}
)

// Init initializes the validator
func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := timestamp.Parse(fl.Field().String(), nil)
		return err == nil
	})
}

// ValidateStruct validates a struct
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// RegisterMessages installs user-facing messages keyed by "field.tag", where
// field is the json name. They take precedence over the generic ones.
func RegisterMessages(m map[string]string) {
	messagesMu.Lock()
	defer messagesMu.Unlock()
	for k, v := range m {
		messages[k] = v
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// FormatValidationError formats validation errors into a readable format
func FormatValidationError(err error) []ValidationError {
	var errs []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			errs = append(errs, ValidationError{
				Field:   fieldError.Field(),
				Tag:     fieldError.Tag(),
				Message: getErrorMessage(fieldError),
			})
		}
	}

	return errs
}

// Result is the answer of the validate-only channels.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Check validates s and packs the outcome into a Result.
func Check(s interface{}) Result {
	msgs := Messages(s)
	return Result{IsValid: len(msgs) == 0, Errors: msgs}
}

// Messages validates s and returns the messages only, in field order. An
// empty slice means s is valid.
func Messages(s interface{}) []string {
	err := ValidateStruct(s)
	if err == nil {
		return []string{}
	}
	formatted := FormatValidationError(err)
	if len(formatted) == 0 {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(formatted))
	for _, fe := range formatted {
		out = append(out, fe.Message)
	}
	return out
}

// getErrorMessage returns a human-readable error message for validation errors
func getErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()

	messagesMu.RLock()
	msg, ok := messages[field+"."+fieldError.Tag()]
	messagesMu.RUnlock()
	if ok {
		return msg
	}

	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("Le champ %s est obligatoire", field)
	case "max":
		return fmt.Sprintf("Le champ %s ne peut pas dépasser %s caractères", field, fieldError.Param())
	case "min":
		return fmt.Sprintf("Le champ %s doit contenir au moins %s caractères", field, fieldError.Param())
	case "gt":
		return fmt.Sprintf("Le champ %s doit être supérieur à %s", field, fieldError.Param())
	case "gte":
		return fmt.Sprintf("Le champ %s doit être supérieur ou égal à %s", field, fieldError.Param())
	case "oneof":
		return fmt.Sprintf("Le champ %s doit valoir l'une des valeurs: %s", field, fieldError.Param())
	case "timestamp":
		return fmt.Sprintf("Le champ %s n'est pas une date valide", field)
	default:
		return fmt.Sprintf("Le champ %s est invalide", field)
	}
}
