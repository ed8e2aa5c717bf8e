package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/popr/backend/internal/domain/procurement"
	"github.com/popr/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPurchaseOrderRepository implements procurement.Repository using GORM
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// Save creates or updates a purchase order without a version check
func (r *GormPurchaseOrderRepository) Save(ctx context.Context, po *procurement.PurchaseOrder) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.PurchaseOrderModelFromDomain(po)

		if err := tx.Omit("Items").Save(model).Error; err != nil {
			return err
		}
		return r.replaceItems(tx, model)
	})
	if err != nil {
		return err
	}
	po.MarkLoaded()
	return nil
}

// SaveWithLock saves with an optimistic version check. The compare value
// is the version the aggregate was loaded (or last saved) at; a mismatch
// means another writer got there first.
func (r *GormPurchaseOrderRepository) SaveWithLock(ctx context.Context, po *procurement.PurchaseOrder) error {
	// Never persisted yet, no version to compare against
	if po.LoadedVersion() == 0 {
		return r.Save(ctx, po)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.PurchaseOrderModelFromDomain(po)
		po.UpdatedAt = time.Now()

		result := tx.Model(&models.PurchaseOrderModel{}).
			Where("id = ? AND version = ?", po.ID, po.LoadedVersion()).
			Updates(map[string]interface{}{
				"vendor_code":           model.VendorCode,
				"vendor_name":           model.VendorName,
				"total_amount":          model.TotalAmount,
				"currency":              model.Currency,
				"status":                model.Status,
				"locked_by":             model.LockedBy,
				"locked_at":             model.LockedAt,
				"lock_expires_at":       model.LockExpiresAt,
				"erp_doc_number":        model.ERPDocNumber,
				"erp_fiscal_year":       model.ERPFiscalYear,
				"erp_data":              model.ERPDataJSON,
				"reconciliation_status": model.ReconciliationStatus,
				"reconciliation_notes":  model.ReconciliationNotes,
				"discrepancies":         model.DiscrepanciesJSON,
				"approved_by":           model.ApprovedBy,
				"approved_at":           model.ApprovedAt,
				"rejection_reason":      model.RejectionReason,
				"audit_log":             model.AuditLogJSON,
				"version":               model.Version,
				"updated_at":            po.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return procurement.NewConcurrencyConflictError(po.PONumber, po.LoadedVersion())
		}

		return r.replaceItems(tx, model)
	})
	if err != nil {
		return err
	}
	po.MarkLoaded()
	return nil
}

// replaceItems rewrites the order's line items. Items have no identity
// of their own outside the order, so a full replace is safe.
func (r *GormPurchaseOrderRepository) replaceItems(tx *gorm.DB, model *models.PurchaseOrderModel) error {
	if err := tx.Where("order_id = ?", model.ID).
		Delete(&models.POItemModel{}).Error; err != nil {
		return err
	}
	for i := range model.Items {
		model.Items[i].OrderID = model.ID
		if err := tx.Create(&model.Items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID finds a purchase order by its ID
func (r *GormPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*procurement.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, procurement.NewNotFoundError(id.String())
		}
		return nil, err
	}
	return r.hydrate(&model), nil
}

// FindByPONumber finds a purchase order by its business key
func (r *GormPurchaseOrderRepository) FindByPONumber(ctx context.Context, poNumber string) (*procurement.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("po_number = ?", poNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, procurement.NewNotFoundError(poNumber)
		}
		return nil, err
	}
	return r.hydrate(&model), nil
}

// ListByStatus lists purchase orders in the given status
func (r *GormPurchaseOrderRepository) ListByStatus(ctx context.Context, status procurement.POStatus, limit, offset int) ([]procurement.PurchaseOrder, error) {
	var orderModels []models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("status = ?", string(status)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return r.hydrateAll(orderModels), nil
}

// ListPendingApproval lists purchase orders awaiting manual approval
func (r *GormPurchaseOrderRepository) ListPendingApproval(ctx context.Context) ([]procurement.PurchaseOrder, error) {
	var orderModels []models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("status = ?", string(procurement.POStatusAwaitingApproval)).
		Order("created_at ASC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return r.hydrateAll(orderModels), nil
}

// ListLockedByActor lists purchase orders currently locked by an actor
func (r *GormPurchaseOrderRepository) ListLockedByActor(ctx context.Context, actor string) ([]procurement.PurchaseOrder, error) {
	var orderModels []models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("locked_by = ?", actor).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return r.hydrateAll(orderModels), nil
}

// ListWithExpiredLocks lists purchase orders whose lock expiry is in the past
func (r *GormPurchaseOrderRepository) ListWithExpiredLocks(ctx context.Context) ([]procurement.PurchaseOrder, error) {
	var orderModels []models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("locked_by <> '' AND lock_expires_at < ?", time.Now()).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	return r.hydrateAll(orderModels), nil
}

// Exists checks whether a purchase order number is taken
func (r *GormPurchaseOrderRepository) Exists(ctx context.Context, poNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).
		Where("po_number = ?", poNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByStatus counts purchase orders in the given status
func (r *GormPurchaseOrderRepository) CountByStatus(ctx context.Context, status procurement.POStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).
		Where("status = ?", string(status)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete soft-deletes a purchase order
func (r *GormPurchaseOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PurchaseOrderModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return procurement.NewNotFoundError(id.String())
	}
	return nil
}

func (r *GormPurchaseOrderRepository) hydrate(model *models.PurchaseOrderModel) *procurement.PurchaseOrder {
	po := model.ToDomain()
	po.MarkLoaded()
	return po
}

func (r *GormPurchaseOrderRepository) hydrateAll(orderModels []models.PurchaseOrderModel) []procurement.PurchaseOrder {
	orders := make([]procurement.PurchaseOrder, 0, len(orderModels))
	for i := range orderModels {
		orders = append(orders, *r.hydrate(&orderModels[i]))
	}
	return orders
}
