package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	errors "github.com/frahmantamala/workpermit/internal"
)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []*FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]*FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := &FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return fv
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = strings.TrimSpace(v) == ""
		case int64:
			missing = v == 0
		case *string:
			missing = v == nil || strings.TrimSpace(*v) == ""
		case time.Time:
			missing = v.IsZero()
		}
		if missing {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

// NotEmpty requires a string slice with at least one non-blank member.
func (fv *FieldValidator) NotEmpty(code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		items, ok := value.([]string)
		if !ok {
			return nil
		}
		for _, item := range items {
			if strings.TrimSpace(item) != "" {
				return nil
			}
		}
		return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must have at least one item selected", fv.FieldName), code)
	})
	return fv
}

// RequiredIf applies Required only when cond holds.
func (fv *FieldValidator) RequiredIf(cond bool, message string, code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if !cond {
			return nil
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
			return nil
		}
		return errors.NewValidationFieldError(fv.FieldName, message, code)
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) > max {
				message := fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max)
				return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Positive() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(float64); ok && v <= 0 {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must be positive", fv.FieldName), errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

// Validate runs every field validator and folds the failures into a single
// VALIDATION_FAILED error carrying one entry per failed rule.
func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}
			if details, ok := appErr.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
				continue
			}
			validationErrors = append(validationErrors, errors.ValidationError{
				Field:   field.FieldName,
				Message: appErr.Message,
				Code:    string(appErr.Code),
			})
		}
	}

	if len(validationErrors) > 0 {
		return errors.ErrValidationFailed.WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

var (
	structValidatorOnce sync.Once
	structValidator     *validator.Validate
)

func structValidate() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(func(f reflect.StructField) string {
			return jsonName(f.Tag.Get("json"), f.Name)
		})
	})
	return structValidator
}

// Struct checks `validate` tags on a request DTO and reports the failures in
// the same shape as the builder.
func Struct(dto interface{}) *errors.AppError {
	err := structValidate().Struct(dto)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.ErrValidationFailed.WithCause(err)
	}

	out := make([]errors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, errors.ValidationError{
			Field:   fe.Field(),
			Message: describeTag(fe),
			Code:    string(errors.ErrCodeValidationFailed),
		})
	}
	return errors.ErrValidationFailed.WithDetails(errors.ValidationErrors{Errors: out})
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max", "lte", "lt":
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func jsonName(tag, fallback string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "" || name == "-" {
		return fallback
	}
	return name
}
