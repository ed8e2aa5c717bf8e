package procurement

import (
	"fmt"
	"strings"

	"github.com/popr/backend/internal/domain/shared"
)

// Domain error sentinels for the purchase order lifecycle.
// All are *shared.DomainError so errors.Is matches on the code
// even after wrapping with additional context.
var (
	ErrPONotFound            = shared.NewDomainError("PO_NOT_FOUND", "Purchase order not found")
	ErrDuplicatePO           = shared.NewDomainError("PO_DUPLICATE", "Purchase order already exists")
	ErrInvalidTransition     = shared.NewDomainError("PO_INVALID_TRANSITION", "Invalid status transition")
	ErrAlreadyLocked         = shared.NewDomainError("PO_ALREADY_LOCKED", "Purchase order is already locked")
	ErrLockOwnership         = shared.NewDomainError("PO_LOCK_OWNERSHIP", "Lock is held by another actor")
	ErrValidationFailed      = shared.NewDomainError("PO_VALIDATION_FAILED", "Purchase order validation failed")
	ErrReconciliationFailed  = shared.NewDomainError("PO_RECONCILIATION_FAILED", "Reconciliation against ERP data failed")
	ErrInvalidApproval       = shared.NewDomainError("PO_INVALID_APPROVAL", "Purchase order cannot be approved in its current status")
	ErrInvalidRejection      = shared.NewDomainError("PO_INVALID_REJECTION", "Purchase order cannot be rejected in its current status")
	ErrConcurrencyConflict   = shared.NewDomainError("PO_CONCURRENCY_CONFLICT", "Purchase order was modified by another process")
)

// NewNotFoundError builds a PO_NOT_FOUND error for a specific PO number
func NewNotFoundError(poNumber string) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrPONotFound.Code,
		Message: fmt.Sprintf("PO not found: %s", poNumber),
		Details: map[string]any{"po_number": poNumber},
	}
}

// NewInvalidTransitionError builds a PO_INVALID_TRANSITION error
func NewInvalidTransitionError(from, to POStatus) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrInvalidTransition.Code,
		Message: fmt.Sprintf("Cannot transition from %s to %s", from, to),
		Details: map[string]any{"from_status": string(from), "to_status": string(to)},
	}
}

// NewAlreadyLockedError builds a PO_ALREADY_LOCKED error
func NewAlreadyLockedError(poNumber, lockedBy, expiresAt string) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrAlreadyLocked.Code,
		Message: fmt.Sprintf("PO %s is already locked by %s until %s", poNumber, lockedBy, expiresAt),
		Details: map[string]any{"po_number": poNumber, "locked_by": lockedBy, "expires_at": expiresAt},
	}
}

// NewLockOwnershipError builds a PO_LOCK_OWNERSHIP error
func NewLockOwnershipError(poNumber, owner, attemptedBy string) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrLockOwnership.Code,
		Message: fmt.Sprintf("Cannot release lock on PO %s. Locked by %s, attempted by %s", poNumber, owner, attemptedBy),
		Details: map[string]any{"po_number": poNumber, "owner": owner, "attempted_by": attemptedBy},
	}
}

// NewValidationError builds a PO_VALIDATION_FAILED error from a list of rule violations
func NewValidationError(poNumber string, violations []string) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrValidationFailed.Code,
		Message: fmt.Sprintf("PO %s validation failed: %s", poNumber, strings.Join(violations, ", ")),
		Details: map[string]any{"po_number": poNumber, "errors": violations},
	}
}

// NewReconciliationError builds a PO_RECONCILIATION_FAILED error carrying the discrepancies
func NewReconciliationError(poNumber string, discrepancies []string) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrReconciliationFailed.Code,
		Message: fmt.Sprintf("Reconciliation failed for PO %s", poNumber),
		Details: map[string]any{"po_number": poNumber, "discrepancies": discrepancies},
	}
}

// NewInvalidApprovalError builds a PO_INVALID_APPROVAL error
func NewInvalidApprovalError(poNumber string, currentStatus POStatus, reason string) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrInvalidApproval.Code,
		Message: fmt.Sprintf("Cannot approve PO %s in status %s. Reason: %s", poNumber, currentStatus, reason),
		Details: map[string]any{"po_number": poNumber, "current_status": string(currentStatus), "reason": reason},
	}
}

// NewInvalidRejectionError builds a PO_INVALID_REJECTION error
func NewInvalidRejectionError(poNumber string, currentStatus POStatus, reason string) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrInvalidRejection.Code,
		Message: fmt.Sprintf("Cannot reject PO %s in status %s. Reason: %s", poNumber, currentStatus, reason),
		Details: map[string]any{"po_number": poNumber, "current_status": string(currentStatus), "reason": reason},
	}
}

// NewConcurrencyConflictError builds a PO_CONCURRENCY_CONFLICT error
func NewConcurrencyConflictError(poNumber string, expectedVersion int) *shared.DomainError {
	return &shared.DomainError{
		Code:    ErrConcurrencyConflict.Code,
		Message: fmt.Sprintf("Concurrency conflict for PO %s at version %d", poNumber, expectedVersion),
		Details: map[string]any{"po_number": poNumber, "expected_version": expectedVersion},
	}
}
