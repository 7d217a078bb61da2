package dto

import "net/http"

// Error codes returned by the API, shared with the domain layer
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeValidation = "VALIDATION_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// Input errors
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,
	"INVALID_INPUT":   http.StatusBadRequest,
	"INVALID_AMOUNT":  http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:     http.StatusNotFound,
	"PAYMENT_NOT_FOUND": http.StatusNotFound,

	// Auth errors
	"INVALID_SIGNATURE":     http.StatusUnauthorized,
	"ORGANIZATION_MISMATCH": http.StatusForbidden,

	// State conflicts
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"AMBIGUOUS_CUSTOMER":   http.StatusConflict,
	"ALREADY_EXISTS":       http.StatusConflict,

	// Business rule violations
	"INVALID_STATE":    http.StatusUnprocessableEntity,
	"ALREADY_TERMINAL": http.StatusUnprocessableEntity,

	// Provider gateway failures
	"PROVIDER_UNAVAILABLE": http.StatusServiceUnavailable,
	"PROVIDER_REJECTED":    http.StatusUnprocessableEntity,
	"INVALID_CREDENTIALS":  http.StatusBadGateway,

	ErrCodeInternal: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
