package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeEmptyChecklist    ErrorCode = "EMPTY_CHECKLIST"
	ErrCodeMissingOtherText  ErrorCode = "MISSING_OTHER_TEXT"
	ErrCodeIdentityMismatch  ErrorCode = "IDENTITY_MISMATCH"
	ErrCodeUnknownCoworker   ErrorCode = "UNKNOWN_COWORKER"
	ErrCodeCoworkerIsCreator ErrorCode = "COWORKER_IS_CREATOR"
	ErrCodeInvalidRoleType   ErrorCode = "INVALID_ROLE_TYPE"
	ErrCodeInvalidScope      ErrorCode = "INVALID_SCOPE"
	ErrCodeUnknownIdentity   ErrorCode = "UNKNOWN_IDENTITY"
	ErrCodeTenantMismatch    ErrorCode = "TENANT_MISMATCH"
	ErrCodePermitNotFound    ErrorCode = "PERMIT_NOT_FOUND"
	ErrCodeInvalidStatus     ErrorCode = "INVALID_PERMIT_STATUS"
	ErrCodeAlreadyApproved   ErrorCode = "ALREADY_APPROVED"
	ErrCodeUnauthorizedActor ErrorCode = "UNAUTHORIZED_APPROVER"
	ErrCodeManagerRequired   ErrorCode = "MANAGER_REQUIRED"
	ErrCodeNotPermitOwner    ErrorCode = "NOT_PERMIT_OWNER"
	ErrCodeDuplicateGrant    ErrorCode = "DUPLICATE_GRANT"

	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so that errors carrying row details still compare
// equal to the package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy, sentinels are shared.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewUnprocessableError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

var (
	ErrValidationFailed = NewValidationError("Validation failed", ErrCodeValidationFailed)
	ErrIdentityMismatch = NewUnprocessableError("Submitted identity does not match the creator's national ID or employee number", ErrCodeIdentityMismatch)
	ErrUnknownCoworker  = NewUnprocessableError("Coworker identifier does not match any person in this tenant", ErrCodeUnknownCoworker)
	ErrInvalidRoleType  = NewValidationError("role type must be either 'engineer' or 'isg'", ErrCodeInvalidRoleType)
	ErrInvalidScope     = NewValidationError("grant scope must target exactly one identity, org role or department", ErrCodeInvalidScope)
	ErrUnknownIdentity  = NewNotFoundError("Identity not found", ErrCodeUnknownIdentity)
	ErrTenantMismatch   = NewForbiddenError("Resource belongs to another tenant", ErrCodeTenantMismatch)

	ErrPermitNotFound      = NewNotFoundError("Work permit not found", ErrCodePermitNotFound)
	ErrInvalidPermitStatus = &AppError{Type: ErrorTypeValidation, Code: ErrCodeInvalidStatus, Message: "Operation not allowed in the permit's current status", StatusCode: http.StatusConflict}
	ErrAlreadyApproved     = NewConflictError("This approval slot has already been signed", ErrCodeAlreadyApproved)
	ErrUnauthorized        = NewForbiddenError("You are not authorized to approve this permit", ErrCodeUnauthorizedActor)
	ErrManagerRequired     = NewForbiddenError("Tenant manager role required", ErrCodeManagerRequired)
	ErrNotPermitOwner      = NewForbiddenError("Only the creator or a tenant manager may do this", ErrCodeNotPermitOwner)

	ErrDuplicateGrant = NewConflictError("An identical approval grant already exists", ErrCodeDuplicateGrant)

	ErrInvalidToken = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
