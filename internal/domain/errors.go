package domain

import (
	"fmt"
	"time"
)

// ServiceError is the JSON body of every failed REST call. RequestID echoes
// the correlation ID of the request so a client report can be matched to
// the server log line.
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Codes carried in ServiceError.Code. ErrRulesLoad also prefixes startup
// failures when a rule table file cannot be read.
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrProductNotFound = "PRODUCT_NOT_FOUND"
	ErrExternalAPI     = "EXTERNAL_API_ERROR"
	ErrCatalog         = "CATALOG_ERROR"
	ErrRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrRequestTimeout  = "REQUEST_TIMEOUT"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrValidation      = "VALIDATION_ERROR"
	ErrRulesLoad       = "RULES_LOAD_ERROR"
)

// ValidationError rejects a scan request field, for example a manual entry
// with neither ingredients nor nutrients or a malformed nutrient pair.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewServiceError stamps a ServiceError with the current UTC time.
func NewServiceError(code, message, details, requestID string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}
