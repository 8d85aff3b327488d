package dto

import (
	"net/http"

	"github.com/wms/stocktaking/internal/domain/shared"
)

// Error codes carried in ErrorInfo.Code. Domain codes are passed through
// unchanged; the rest originate in the transport layer.
const (
	ErrCodeValidation        = shared.CodeValidation
	ErrCodeLocationMismatch  = shared.CodeLocationMismatch
	ErrCodeInvalidTransition = shared.CodeInvalidTransition
	ErrCodeNotFound          = shared.CodeNotFound
	ErrCodeNetwork           = shared.CodeNetwork
	ErrCodePartialFailure    = shared.CodePartialFailure
	ErrCodeForbidden         = shared.CodeForbidden

	ErrCodeConcurrentModification = shared.CodeConcurrentModification

	// ErrCodeSheetCreatedButUnassigned is returned by create-and-assign when
	// only the first step succeeded
	ErrCodeSheetCreatedButUnassigned = "SHEET_CREATED_BUT_UNASSIGNED"

	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:                http.StatusBadRequest,
	ErrCodeBadRequest:                http.StatusBadRequest,
	ErrCodeLocationMismatch:          http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:         http.StatusConflict,
	ErrCodeConcurrentModification:    http.StatusConflict,
	ErrCodeNotFound:                  http.StatusNotFound,
	ErrCodeForbidden:                 http.StatusForbidden,
	ErrCodePartialFailure:            http.StatusMultiStatus,
	ErrCodeSheetCreatedButUnassigned: http.StatusMultiStatus,
	ErrCodeNetwork:                   http.StatusServiceUnavailable,
	ErrCodeUnauthorized:              http.StatusUnauthorized,
	ErrCodeTokenExpired:              http.StatusUnauthorized,
	ErrCodeRateLimited:               http.StatusTooManyRequests,
	ErrCodeRequestTooLarge:           http.StatusRequestEntityTooLarge,
	ErrCodeInternal:                  http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
