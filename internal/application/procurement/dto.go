package procurement

import (
	"time"

	"github.com/popr/backend/internal/domain/procurement"
	"github.com/shopspring/decimal"
)

// ProcessCommand asks the orchestrator to run a purchase order through
// the full processing lifecycle
type ProcessCommand struct {
	PONumber            string
	Actor               string
	ForceManualApproval bool
	SkipExternalLock    bool
	NotifyOnComplete    bool
}

// ProcessResult is the structured outcome of a processing run. It is
// returned for failures as well; Success tells the two apart.
type ProcessResult struct {
	Success              bool
	PONumber             string
	FinalStatus          procurement.POStatus
	Message              string
	Errors               []string
	ElapsedSeconds       float64
	ValidationPassed     bool
	ERPSyncCompleted     bool
	ReconciliationPassed bool
	ApprovalStatus       string
	InvoiceNumber        string
	InvoicePosted        bool
	EventsPublished      int
}

// Approval status labels reported in ProcessResult
const (
	ApprovalStatusAuto    = "auto_approved"
	ApprovalStatusPending = "pending_approval"
	ApprovalStatusNone    = "not_reached"
)

// ApproveCommand approves a purchase order that is awaiting approval.
// PostInvoice controls whether an invoice is posted after the approval;
// the order only completes once the invoice is in.
type ApproveCommand struct {
	PONumber    string
	Approver    string
	Notes       string
	PostInvoice bool
}

// ApproveResult is the outcome of a manual approval
type ApproveResult struct {
	Success       bool
	PONumber      string
	FinalStatus   procurement.POStatus
	ApprovedBy    string
	ApprovedAt    *time.Time
	InvoiceNumber string
	InvoicePosted bool
	Message       string
	Errors        []string
}

// RejectCommand rejects a purchase order that is awaiting approval
type RejectCommand struct {
	PONumber string
	Rejector string
	Reason   string
}

// RejectResult is the outcome of a rejection
type RejectResult struct {
	Success     bool
	PONumber    string
	FinalStatus procurement.POStatus
	RejectedBy  string
	Reason      string
	Message     string
}

// BulkApproveCommand approves several purchase orders in one call
type BulkApproveCommand struct {
	PONumbers    []string
	Approver     string
	Notes        string
	PostInvoices bool
}

// BulkApproveItemResult is the per-order outcome of a bulk approval
type BulkApproveItemResult struct {
	PONumber string
	Success  bool
	Message  string
}

// BulkApproveResult aggregates the per-order outcomes
type BulkApproveResult struct {
	Total       int
	Approved    int
	Failed      int
	SuccessRate float64
	Results     []BulkApproveItemResult
}

// POItemResponse is the API representation of a line item
type POItemResponse struct {
	ItemNumber   string          `json:"item_number"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	MaterialCode string          `json:"material_code,omitempty"`
}

// PurchaseOrderResponse is the API representation of a purchase order
type PurchaseOrderResponse struct {
	ID                   string                   `json:"id"`
	PONumber             string                   `json:"po_number"`
	VendorCode           string                   `json:"vendor_code"`
	VendorName           string                   `json:"vendor_name"`
	TotalAmount          decimal.Decimal          `json:"total_amount"`
	Currency             string                   `json:"currency"`
	Status               string                   `json:"status"`
	Items                []POItemResponse         `json:"items"`
	LockedBy             string                   `json:"locked_by,omitempty"`
	LockExpiresAt        *time.Time               `json:"lock_expires_at,omitempty"`
	ERPDocNumber         string                   `json:"erp_doc_number,omitempty"`
	ERPFiscalYear        string                   `json:"erp_fiscal_year,omitempty"`
	ReconciliationStatus string                   `json:"reconciliation_status,omitempty"`
	ReconciliationNotes  string                   `json:"reconciliation_notes,omitempty"`
	Discrepancies        []string                 `json:"discrepancies,omitempty"`
	ApprovedBy           string                   `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time               `json:"approved_at,omitempty"`
	RejectionReason      string                   `json:"rejection_reason,omitempty"`
	Version              int                      `json:"version"`
	AuditLog             []procurement.AuditEntry `json:"audit_log,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
}

// ToPurchaseOrderResponse converts a domain purchase order to its API
// representation
func ToPurchaseOrderResponse(po *procurement.PurchaseOrder) PurchaseOrderResponse {
	items := make([]POItemResponse, 0, len(po.Items))
	for _, item := range po.Items {
		items = append(items, POItemResponse{
			ItemNumber:   item.ItemNumber,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.TotalPrice,
			MaterialCode: item.MaterialCode,
		})
	}

	return PurchaseOrderResponse{
		ID:                   po.ID.String(),
		PONumber:             po.PONumber,
		VendorCode:           po.VendorCode,
		VendorName:           po.VendorName,
		TotalAmount:          po.TotalAmount,
		Currency:             string(po.Currency),
		Status:               string(po.Status),
		Items:                items,
		LockedBy:             po.LockedBy,
		LockExpiresAt:        po.LockExpiresAt,
		ERPDocNumber:         po.ERPDocNumber,
		ERPFiscalYear:        po.ERPFiscalYear,
		ReconciliationStatus: po.ReconciliationStatus,
		ReconciliationNotes:  po.ReconciliationNotes,
		Discrepancies:        po.Discrepancies,
		ApprovedBy:           po.ApprovedBy,
		ApprovedAt:           po.ApprovedAt,
		RejectionReason:      po.RejectionReason,
		Version:              po.Version,
		AuditLog:             po.AuditLog,
		CreatedAt:            po.CreatedAt,
		UpdatedAt:            po.UpdatedAt,
	}
}
