package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/popr/backend/internal/domain/procurement"
	"github.com/popr/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrderModel is the persistence model for purchase orders
type PurchaseOrderModel struct {
	AggregateModel
	PONumber    string          `gorm:"uniqueIndex;not null"`
	VendorCode  string          `gorm:"index;not null"`
	VendorName  string          `gorm:"not null"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	Currency    string          `gorm:"type:varchar(3);not null"`
	Status      string          `gorm:"index;not null"`

	LockedBy      string `gorm:"index"`
	LockedAt      *time.Time
	LockExpiresAt *time.Time `gorm:"index"`

	ERPDocNumber  string
	ERPFiscalYear string
	ERPDataJSON   string `gorm:"column:erp_data;type:jsonb"`

	ReconciliationStatus string
	ReconciliationNotes  string
	DiscrepanciesJSON    string `gorm:"column:discrepancies;type:jsonb;default:'[]'"`

	CreatedBy       string
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectionReason string

	AuditLogJSON string `gorm:"column:audit_log;type:jsonb;default:'[]'"`

	Items []POItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for PurchaseOrderModel
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// POItemModel is the persistence model for purchase order line items
type POItemModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	ItemNumber   string          `gorm:"not null"`
	Description  string          `gorm:"not null"`
	Quantity     decimal.Decimal `gorm:"type:numeric(15,3);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	TotalPrice   decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	MaterialCode string
	Position     int `gorm:"not null;default:0"`
}

// TableName returns the table name for POItemModel
func (POItemModel) TableName() string {
	return "purchase_order_items"
}

// ToDomain converts the persistence model to the domain aggregate
func (m *PurchaseOrderModel) ToDomain() *procurement.PurchaseOrder {
	po := &procurement.PurchaseOrder{
		PONumber:             m.PONumber,
		VendorCode:           m.VendorCode,
		VendorName:           m.VendorName,
		TotalAmount:          m.TotalAmount,
		Currency:             valueobject.Currency(m.Currency),
		Status:               procurement.POStatus(m.Status),
		LockedBy:             m.LockedBy,
		LockedAt:             m.LockedAt,
		LockExpiresAt:        m.LockExpiresAt,
		ERPDocNumber:         m.ERPDocNumber,
		ERPFiscalYear:        m.ERPFiscalYear,
		ReconciliationStatus: m.ReconciliationStatus,
		ReconciliationNotes:  m.ReconciliationNotes,
		CreatedBy:            m.CreatedBy,
		ApprovedBy:           m.ApprovedBy,
		ApprovedAt:           m.ApprovedAt,
		RejectionReason:      m.RejectionReason,
	}
	m.PopulateAggregateRoot(&po.BaseAggregateRoot)

	if m.ERPDataJSON != "" {
		var erpData map[string]any
		if err := json.Unmarshal([]byte(m.ERPDataJSON), &erpData); err == nil {
			po.ERPData = erpData
		}
	}
	if po.ERPData == nil {
		po.ERPData = make(map[string]any)
	}

	if m.DiscrepanciesJSON != "" && m.DiscrepanciesJSON != "[]" {
		var discrepancies []string
		if err := json.Unmarshal([]byte(m.DiscrepanciesJSON), &discrepancies); err == nil {
			po.Discrepancies = discrepancies
		}
	}

	if m.AuditLogJSON != "" && m.AuditLogJSON != "[]" {
		var auditLog []procurement.AuditEntry
		if err := json.Unmarshal([]byte(m.AuditLogJSON), &auditLog); err == nil {
			po.AuditLog = auditLog
		}
	}

	po.Items = make([]procurement.POItem, 0, len(m.Items))
	for _, item := range m.Items {
		po.Items = append(po.Items, procurement.POItem{
			ItemNumber:   item.ItemNumber,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.TotalPrice,
			MaterialCode: item.MaterialCode,
		})
	}

	return po
}

// PurchaseOrderModelFromDomain converts the domain aggregate to its
// persistence model
func PurchaseOrderModelFromDomain(po *procurement.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{
		PONumber:             po.PONumber,
		VendorCode:           po.VendorCode,
		VendorName:           po.VendorName,
		TotalAmount:          po.TotalAmount,
		Currency:             string(po.Currency),
		Status:               string(po.Status),
		LockedBy:             po.LockedBy,
		LockedAt:             po.LockedAt,
		LockExpiresAt:        po.LockExpiresAt,
		ERPDocNumber:         po.ERPDocNumber,
		ERPFiscalYear:        po.ERPFiscalYear,
		ReconciliationStatus: po.ReconciliationStatus,
		ReconciliationNotes:  po.ReconciliationNotes,
		CreatedBy:            po.CreatedBy,
		ApprovedBy:           po.ApprovedBy,
		ApprovedAt:           po.ApprovedAt,
		RejectionReason:      po.RejectionReason,
	}
	m.FromDomainAggregateRoot(po.BaseAggregateRoot)

	m.ERPDataJSON = marshalOrDefault(po.ERPData, "{}")
	m.DiscrepanciesJSON = marshalOrDefault(po.Discrepancies, "[]")
	m.AuditLogJSON = marshalOrDefault(po.AuditLog, "[]")

	m.Items = make([]POItemModel, 0, len(po.Items))
	for i, item := range po.Items {
		m.Items = append(m.Items, POItemModel{
			ID:           uuid.New(),
			OrderID:      po.ID,
			ItemNumber:   item.ItemNumber,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.TotalPrice,
			MaterialCode: item.MaterialCode,
			Position:     i,
		})
	}

	return m
}

func marshalOrDefault(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}
