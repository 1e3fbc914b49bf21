package dto

import (
	"net/http"

	"github.com/erp/backoffice/internal/domain/shared"
)

// Error codes returned in the envelope. Format: ERR_<DESCRIPTION>
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON         = "ERR_INVALID_JSON"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
	ErrCodeSearchUnavailable   = "ERR_SEARCH_UNAVAILABLE"
	ErrCodePersistence         = "ERR_PERSISTENCE"
	ErrCodeCacheUnavailable    = "ERR_CACHE_UNAVAILABLE"
	ErrCodeUnavailable         = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeOrganization        = "ERR_ORGANIZATION_REQUIRED"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeOrganization: http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,

	// Collaborator failures
	ErrCodeSearchUnavailable: http.StatusServiceUnavailable,
	ErrCodePersistence:       http.StatusInternalServerError,
	ErrCodeCacheUnavailable:  http.StatusServiceUnavailable,
	ErrCodeUnavailable:       http.StatusServiceUnavailable,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to envelope codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeValidation:          ErrCodeValidation,
	shared.CodeNotFound:            ErrCodeNotFound,
	shared.CodeAlreadyExists:       ErrCodeAlreadyExists,
	shared.CodeInsufficientBalance: ErrCodeInsufficientBalance,
	shared.CodeSearchUnavailable:   ErrCodeSearchUnavailable,
	shared.CodePersistence:         ErrCodePersistence,
	shared.CodeConcurrencyConflict: ErrCodeConcurrencyConflict,
}

// NormalizeErrorCode converts a domain error code to the envelope format.
// Codes already in that format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
