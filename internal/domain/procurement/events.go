package procurement

import (
	"time"

	"github.com/popr/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypePurchaseOrder = "PurchaseOrder"

// Audit log entry types
const (
	EventStatusChanged = "status_changed"
	EventLockAcquired  = "lock_acquired"
	EventLockReleased  = "lock_released"
	EventLockExpired   = "lock_expired"
	EventApproved      = "approved"
	EventRejected      = "rejected"
)

// Domain event type constants
const (
	EventTypePOCreated       = "PurchaseOrderCreated"
	EventTypePOStatusChanged = "PurchaseOrderStatusChanged"
	EventTypePOApproved      = "PurchaseOrderApproved"
	EventTypePORejected      = "PurchaseOrderRejected"
)

// AuditEntry is one record of the aggregate's append-only audit log
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Status    POStatus       `json:"status"`
	Version   int            `json:"version"`
	Data      map[string]any `json:"data,omitempty"`
}

// POCreatedEvent is raised when a new purchase order is created
type POCreatedEvent struct {
	shared.BaseDomainEvent
	PONumber    string          `json:"po_number"`
	VendorCode  string          `json:"vendor_code"`
	VendorName  string          `json:"vendor_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

// NewPOCreatedEvent creates a new POCreatedEvent
func NewPOCreatedEvent(po *PurchaseOrder) *POCreatedEvent {
	return &POCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePOCreated, AggregateTypePurchaseOrder, po.ID),
		PONumber:        po.PONumber,
		VendorCode:      po.VendorCode,
		VendorName:      po.VendorName,
		TotalAmount:     po.TotalAmount,
		Currency:        string(po.Currency),
	}
}

// EventType returns the event type name
func (e *POCreatedEvent) EventType() string {
	return EventTypePOCreated
}

// POStatusChangedEvent is raised on every status transition
type POStatusChangedEvent struct {
	shared.BaseDomainEvent
	PONumber   string `json:"po_number"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason"`
	Actor      string `json:"actor"`
	NewVersion int    `json:"new_version"`
}

// NewPOStatusChangedEvent creates a new POStatusChangedEvent
func NewPOStatusChangedEvent(po *PurchaseOrder, from, to POStatus, reason, actor string) *POStatusChangedEvent {
	return &POStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePOStatusChanged, AggregateTypePurchaseOrder, po.ID),
		PONumber:        po.PONumber,
		FromStatus:      string(from),
		ToStatus:        string(to),
		Reason:          reason,
		Actor:           actor,
		NewVersion:      po.Version,
	}
}

// EventType returns the event type name
func (e *POStatusChangedEvent) EventType() string {
	return EventTypePOStatusChanged
}

// POApprovedEvent is raised when a purchase order is approved
type POApprovedEvent struct {
	shared.BaseDomainEvent
	PONumber    string          `json:"po_number"`
	ApprovedBy  string          `json:"approved_by"`
	Notes       string          `json:"notes,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewPOApprovedEvent creates a new POApprovedEvent
func NewPOApprovedEvent(po *PurchaseOrder, actor, notes string) *POApprovedEvent {
	return &POApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePOApproved, AggregateTypePurchaseOrder, po.ID),
		PONumber:        po.PONumber,
		ApprovedBy:      actor,
		Notes:           notes,
		TotalAmount:     po.TotalAmount,
	}
}

// EventType returns the event type name
func (e *POApprovedEvent) EventType() string {
	return EventTypePOApproved
}

// PORejectedEvent is raised when a purchase order is rejected
type PORejectedEvent struct {
	shared.BaseDomainEvent
	PONumber   string `json:"po_number"`
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

// NewPORejectedEvent creates a new PORejectedEvent
func NewPORejectedEvent(po *PurchaseOrder, actor, reason string) *PORejectedEvent {
	return &PORejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePORejected, AggregateTypePurchaseOrder, po.ID),
		PONumber:        po.PONumber,
		RejectedBy:      actor,
		Reason:          reason,
	}
}

// EventType returns the event type name
func (e *PORejectedEvent) EventType() string {
	return EventTypePORejected
}
