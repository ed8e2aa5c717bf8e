package procurement

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for purchase orders
type Repository interface {
	// Save creates or updates a purchase order
	Save(ctx context.Context, po *PurchaseOrder) error

	// SaveWithLock saves with an optimistic version check; returns
	// PO_CONCURRENCY_CONFLICT when the stored version no longer matches
	// the version the aggregate was loaded at
	SaveWithLock(ctx context.Context, po *PurchaseOrder) error

	// FindByID finds a purchase order by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)

	// FindByPONumber finds a purchase order by its business key
	FindByPONumber(ctx context.Context, poNumber string) (*PurchaseOrder, error)

	// ListByStatus lists purchase orders in the given status
	ListByStatus(ctx context.Context, status POStatus, limit, offset int) ([]PurchaseOrder, error)

	// ListPendingApproval lists purchase orders awaiting manual approval
	ListPendingApproval(ctx context.Context) ([]PurchaseOrder, error)

	// ListLockedByActor lists purchase orders currently locked by an actor
	ListLockedByActor(ctx context.Context, actor string) ([]PurchaseOrder, error)

	// ListWithExpiredLocks lists purchase orders whose lock expiry is in the past
	ListWithExpiredLocks(ctx context.Context) ([]PurchaseOrder, error)

	// Exists checks whether a purchase order number is taken
	Exists(ctx context.Context, poNumber string) (bool, error)

	// CountByStatus counts purchase orders in the given status
	CountByStatus(ctx context.Context, status POStatus) (int64, error)

	// Delete soft-deletes a purchase order
	Delete(ctx context.Context, id uuid.UUID) error
}
