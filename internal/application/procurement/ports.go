package procurement

import (
	"context"

	"github.com/popr/backend/internal/domain/procurement"
)

// ERPGateway abstracts the external ERP system the orders are
// reconciled against. Implementations must be safe for concurrent use.
type ERPGateway interface {
	// Connect establishes the ERP session
	Connect(ctx context.Context) error

	// Disconnect tears down the ERP session
	Disconnect(ctx context.Context) error

	// GetSnapshot fetches the ERP's view of a purchase order
	GetSnapshot(ctx context.Context, poNumber string) (procurement.ERPSnapshot, error)

	// LockDocument asks the ERP to lock the backing document,
	// keyed by the ERP document number
	LockDocument(ctx context.Context, docNumber string) error

	// UnlockDocument releases an ERP-side document lock
	UnlockDocument(ctx context.Context, docNumber string) error

	// PostInvoice posts an invoice for the order and returns the
	// invoice document number
	PostInvoice(ctx context.Context, poNumber string, amount string) (string, error)

	// CheckDocumentStatus returns the ERP-side document status
	CheckDocumentStatus(ctx context.Context, poNumber string) (string, error)

	// SearchByVendor lists ERP purchase order numbers for a vendor
	SearchByVendor(ctx context.Context, vendorCode string) ([]string, error)
}

// Notifier publishes lifecycle notifications for purchase orders.
// Delivery is best effort; orchestration never fails on notifier errors.
type Notifier interface {
	NotifyApprovalRequired(ctx context.Context, po *procurement.PurchaseOrder) error
	NotifyApproved(ctx context.Context, po *procurement.PurchaseOrder, approver string) error
	NotifyRejected(ctx context.Context, po *procurement.PurchaseOrder, rejector, reason string) error
	NotifyCompleted(ctx context.Context, po *procurement.PurchaseOrder) error
	NotifyError(ctx context.Context, poNumber string, err error) error
}
