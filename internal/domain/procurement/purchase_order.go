package procurement

import (
	"fmt"
	"time"

	"github.com/popr/backend/internal/domain/shared"
	"github.com/popr/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// POStatus represents the processing status of a purchase order
type POStatus string

const (
	POStatusDraft            POStatus = "DRAFT"
	POStatusPending          POStatus = "PENDING"
	POStatusLocked           POStatus = "LOCKED"
	POStatusProcessing       POStatus = "PROCESSING"
	POStatusReconciling      POStatus = "RECONCILING"
	POStatusAwaitingApproval POStatus = "AWAITING_APPROVAL"
	POStatusApproved         POStatus = "APPROVED"
	POStatusRejected         POStatus = "REJECTED"
	POStatusCancelled        POStatus = "CANCELLED"
	POStatusError            POStatus = "ERROR"
	POStatusCompleted        POStatus = "COMPLETED"
)

// validTransitions is the fixed adjacency table for the PO state machine.
// A missing key means no outgoing transitions (terminal state).
var validTransitions = map[POStatus][]POStatus{
	POStatusDraft:            {POStatusPending, POStatusCancelled},
	POStatusPending:          {POStatusLocked, POStatusCancelled},
	POStatusLocked:           {POStatusProcessing, POStatusPending, POStatusError},
	POStatusProcessing:       {POStatusReconciling, POStatusError},
	POStatusReconciling:      {POStatusAwaitingApproval, POStatusApproved, POStatusError},
	POStatusAwaitingApproval: {POStatusApproved, POStatusRejected},
	POStatusApproved:         {POStatusCompleted},
	POStatusRejected:         {POStatusPending, POStatusCancelled},
	POStatusError:            {POStatusPending, POStatusCancelled},
	POStatusCancelled:        {},
	POStatusCompleted:        {},
}

// IsValid checks if the status is a known POStatus
func (s POStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// String returns the string representation of the status
func (s POStatus) String() string {
	return string(s)
}

// CanTransitionTo checks whether the status may transition to target
func (s POStatus) CanTransitionTo(target POStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states with no outgoing transitions
func (s POStatus) IsTerminal() bool {
	return s == POStatusCompleted || s == POStatusCancelled
}

// AmountTolerance is the maximum accepted absolute difference when
// comparing monetary amounts that should be equal
var AmountTolerance = decimal.NewFromFloat(0.01)

// POItem represents a line item of a purchase order
type POItem struct {
	ItemNumber   string
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
	MaterialCode string
}

// IsConsistent checks that quantity * unit price matches the total price
// within the accepted tolerance
func (i POItem) IsConsistent() bool {
	expected := i.Quantity.Mul(i.UnitPrice)
	return expected.Sub(i.TotalPrice).Abs().LessThanOrEqual(AmountTolerance)
}

// DefaultLockDuration is how long a processing lock is held unless
// the caller asks for a different duration
const DefaultLockDuration = 30 * time.Minute

// PurchaseOrder is the aggregate root for a procurement order.
// All state changes go through its methods; the audit log records
// every recorded mutation and only ever grows.
type PurchaseOrder struct {
	shared.BaseAggregateRoot

	PONumber    string
	VendorCode  string
	VendorName  string
	TotalAmount decimal.Decimal
	Currency    valueobject.Currency
	Items       []POItem

	Status POStatus

	LockedBy      string
	LockedAt      *time.Time
	LockExpiresAt *time.Time

	ERPDocNumber  string
	ERPFiscalYear string
	ERPData       map[string]any

	ReconciliationStatus string
	ReconciliationNotes  string
	Discrepancies        []string

	CreatedBy       string
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectionReason string

	AuditLog []AuditEntry
}

// NewPurchaseOrder creates a purchase order in DRAFT status
func NewPurchaseOrder(poNumber, vendorCode, vendorName string, totalAmount decimal.Decimal, currency valueobject.Currency, items []POItem) (*PurchaseOrder, error) {
	if poNumber == "" {
		return nil, shared.NewDomainError("PO_INVALID_NUMBER", "PO number cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	po := &PurchaseOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PONumber:          poNumber,
		VendorCode:        vendorCode,
		VendorName:        vendorName,
		TotalAmount:       totalAmount,
		Currency:          currency,
		Items:             items,
		Status:            POStatusDraft,
		CreatedBy:         "system",
		ERPData:           make(map[string]any),
	}

	po.AddDomainEvent(NewPOCreatedEvent(po))

	return po, nil
}

// CanTransitionTo checks whether the order may move to the target status
func (po *PurchaseOrder) CanTransitionTo(target POStatus) bool {
	return po.Status.CanTransitionTo(target)
}

// TransitionTo moves the order to a new status, enforcing the transition
// table. On success it bumps the version, stamps UpdatedAt and appends a
// status_changed audit entry; on failure the order is left untouched.
func (po *PurchaseOrder) TransitionTo(target POStatus, reason, actor string) error {
	if !po.CanTransitionTo(target) {
		return NewInvalidTransitionError(po.Status, target)
	}

	from := po.Status
	po.Status = target
	po.Touch()
	po.IncrementVersion()

	po.appendAudit(EventStatusChanged, map[string]any{
		"from":   string(from),
		"to":     string(target),
		"reason": reason,
		"user":   actor,
	})
	po.AddDomainEvent(NewPOStatusChangedEvent(po, from, target, reason, actor))

	return nil
}

// ForceTransition moves the order to the target status without consulting
// the transition table. Reserved for failure recovery paths; the audit
// entry is marked as forced.
func (po *PurchaseOrder) ForceTransition(target POStatus, reason, actor string) {
	from := po.Status
	po.Status = target
	po.Touch()
	po.IncrementVersion()

	po.appendAudit(EventStatusChanged, map[string]any{
		"from":   string(from),
		"to":     string(target),
		"reason": reason,
		"user":   actor,
		"forced": true,
	})
	po.AddDomainEvent(NewPOStatusChangedEvent(po, from, target, reason, actor))
}

// AcquireLock claims the order for exclusive processing by actor.
// Fails with PO_ALREADY_LOCKED when an unexpired lock is held, by anyone.
func (po *PurchaseOrder) AcquireLock(actor string, duration time.Duration) error {
	if po.IsLocked() {
		expires := ""
		if po.LockExpiresAt != nil {
			expires = po.LockExpiresAt.Format(time.RFC3339)
		}
		return NewAlreadyLockedError(po.PONumber, po.LockedBy, expires)
	}
	if duration <= 0 {
		duration = DefaultLockDuration
	}

	now := time.Now()
	expiresAt := now.Add(duration)
	po.LockedBy = actor
	po.LockedAt = &now
	po.LockExpiresAt = &expiresAt

	if err := po.TransitionTo(POStatusLocked, fmt.Sprintf("Locked by %s", actor), actor); err != nil {
		po.clearLock()
		return err
	}

	po.appendAudit(EventLockAcquired, map[string]any{
		"user":       actor,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	return nil
}

// ReleaseLock releases the processing lock. A no-op when unlocked; fails
// with PO_LOCK_OWNERSHIP when actor is not the current holder.
func (po *PurchaseOrder) ReleaseLock(actor string) error {
	if !po.IsLocked() {
		return nil
	}
	if po.LockedBy != actor {
		return NewLockOwnershipError(po.PONumber, po.LockedBy, actor)
	}

	po.clearLock()
	po.Touch()
	po.IncrementVersion()
	po.appendAudit(EventLockReleased, map[string]any{"user": actor})

	return nil
}

// IsLocked reports whether an unexpired lock is held. An expired lock is
// cleared as a side effect and a lock_expired audit entry is appended, so
// lock-sensitive callers must use this method rather than the raw fields.
func (po *PurchaseOrder) IsLocked() bool {
	if po.LockedBy == "" {
		return false
	}
	if po.LockExpiresAt != nil && time.Now().After(*po.LockExpiresAt) {
		po.clearLock()
		po.appendAudit(EventLockExpired, map[string]any{})
		return false
	}
	return true
}

func (po *PurchaseOrder) clearLock() {
	po.LockedBy = ""
	po.LockedAt = nil
	po.LockExpiresAt = nil
}

// Validate checks the order's business invariants and returns the list of
// violations; an empty list means the order is valid.
func (po *PurchaseOrder) Validate() []string {
	var violations []string

	if po.TotalAmount.LessThanOrEqual(decimal.Zero) {
		violations = append(violations, "Total amount must be positive")
	}
	if len(po.VendorCode) < 3 {
		violations = append(violations, "Invalid vendor code")
	}
	if po.VendorName == "" {
		violations = append(violations, "Vendor name is required")
	}
	if !po.Currency.IsValid() {
		violations = append(violations, fmt.Sprintf("Invalid currency: %s. Must be one of [BRL USD EUR]", po.Currency))
	}
	if len(po.Items) == 0 {
		violations = append(violations, "PO must have at least one item")
	}

	if len(po.Items) > 0 {
		itemsTotal := decimal.Zero
		for _, item := range po.Items {
			itemsTotal = itemsTotal.Add(item.TotalPrice)
		}
		if itemsTotal.Sub(po.TotalAmount).Abs().GreaterThan(AmountTolerance) {
			violations = append(violations, fmt.Sprintf("Items total (%s) doesn't match PO total (%s)", itemsTotal, po.TotalAmount))
		}
	}

	for idx, item := range po.Items {
		if !item.IsConsistent() {
			violations = append(violations, fmt.Sprintf("Item %d has invalid calculations", idx+1))
		}
	}

	return violations
}

// RequiresApproval reports whether the order total exceeds the manual
// approval threshold
func (po *PurchaseOrder) RequiresApproval() bool {
	return DefaultApprovalPolicy().RequiresApproval(po)
}

// Approve records the approver and moves the order to APPROVED.
// Allowed from AWAITING_APPROVAL and, for automatic approval during
// processing, from RECONCILING.
func (po *PurchaseOrder) Approve(actor, notes string) error {
	if po.Status != POStatusAwaitingApproval && po.Status != POStatusReconciling {
		return NewInvalidApprovalError(po.PONumber, po.Status, fmt.Sprintf("Cannot approve PO in status %s", po.Status))
	}

	now := time.Now()
	po.ApprovedBy = actor
	po.ApprovedAt = &now

	reason := notes
	if reason == "" {
		reason = "Approved"
	}
	if err := po.TransitionTo(POStatusApproved, reason, actor); err != nil {
		return err
	}

	po.appendAudit(EventApproved, map[string]any{"user": actor, "notes": notes})
	po.AddDomainEvent(NewPOApprovedEvent(po, actor, notes))

	return nil
}

// Reject records the rejection reason and moves the order to REJECTED.
// Only allowed from AWAITING_APPROVAL.
func (po *PurchaseOrder) Reject(actor, reason string) error {
	if po.Status != POStatusAwaitingApproval {
		return NewInvalidRejectionError(po.PONumber, po.Status, fmt.Sprintf("Cannot reject PO in status %s", po.Status))
	}

	po.RejectionReason = reason

	if err := po.TransitionTo(POStatusRejected, reason, actor); err != nil {
		return err
	}

	po.appendAudit(EventRejected, map[string]any{"user": actor, "reason": reason})
	po.AddDomainEvent(NewPORejectedEvent(po, actor, reason))

	return nil
}

// MergeERPLinkage records the document linkage returned by the ERP system
func (po *PurchaseOrder) MergeERPLinkage(docNumber, fiscalYear string, raw map[string]any) {
	if docNumber != "" {
		po.ERPDocNumber = docNumber
	}
	if fiscalYear != "" {
		po.ERPFiscalYear = fiscalYear
	}
	if raw != nil {
		po.ERPData = raw
	}
	po.Touch()
	po.IncrementVersion()
}

// RecordReconciliation stores the reconciliation outcome on the order.
// It does not decide the next status; that is the orchestrator's call.
func (po *PurchaseOrder) RecordReconciliation(passed bool, notes string, discrepancies []string) {
	if passed {
		po.ReconciliationStatus = ReconciliationStatusSuccess
	} else {
		po.ReconciliationStatus = ReconciliationStatusFailed
	}
	po.ReconciliationNotes = notes
	po.Discrepancies = discrepancies
	po.Touch()
	po.IncrementVersion()
}

// ItemCount returns the number of line items
func (po *PurchaseOrder) ItemCount() int {
	return len(po.Items)
}

// TotalAmountMoney returns the order total as a Money value object
func (po *PurchaseOrder) TotalAmountMoney() valueobject.Money {
	m, err := valueobject.NewMoney(po.TotalAmount, po.Currency)
	if err != nil {
		return valueobject.NewMoneyBRL(po.TotalAmount)
	}
	return m
}

// ProcessingTime returns how long the order took from creation to
// approval, once completed; nil otherwise
func (po *PurchaseOrder) ProcessingTime() *time.Duration {
	if po.Status == POStatusCompleted && po.ApprovedAt != nil {
		d := po.ApprovedAt.Sub(po.CreatedAt)
		return &d
	}
	return nil
}

// appendAudit appends a structured entry to the audit log. The log is
// append-only; nothing in the aggregate ever rewrites past entries.
func (po *PurchaseOrder) appendAudit(eventType string, data map[string]any) {
	po.AuditLog = append(po.AuditLog, AuditEntry{
		Timestamp: time.Now(),
		EventType: eventType,
		Status:    po.Status,
		Version:   po.Version,
		Data:      data,
	})
}

// String implements fmt.Stringer for log output
func (po *PurchaseOrder) String() string {
	return fmt.Sprintf("PO(%s, status=%s, amount=%s %s)", po.PONumber, po.Status, po.TotalAmount, po.Currency)
}
