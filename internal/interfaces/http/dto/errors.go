package dto

import (
	"net/http"

	"github.com/popr/backend/internal/domain/procurement"
)

// General error codes
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeNotFound   = "ERR_NOT_FOUND"
)

// errorCodeHTTPStatus maps domain error codes to HTTP status codes.
// Codes not listed here fall back to 500.
var errorCodeHTTPStatus = map[string]int{
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeNotFound:   http.StatusNotFound,

	procurement.ErrPONotFound.Code:           http.StatusNotFound,
	procurement.ErrDuplicatePO.Code:          http.StatusConflict,
	procurement.ErrAlreadyLocked.Code:        http.StatusConflict,
	procurement.ErrLockOwnership.Code:        http.StatusConflict,
	procurement.ErrConcurrencyConflict.Code:  http.StatusConflict,
	procurement.ErrInvalidTransition.Code:    http.StatusUnprocessableEntity,
	procurement.ErrValidationFailed.Code:     http.StatusUnprocessableEntity,
	procurement.ErrReconciliationFailed.Code: http.StatusUnprocessableEntity,
	procurement.ErrInvalidApproval.Code:      http.StatusUnprocessableEntity,
	procurement.ErrInvalidRejection.Code:     http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
