package procurement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Reconciliation outcome labels stored on the aggregate
const (
	ReconciliationStatusSuccess = "success"
	ReconciliationStatusFailed  = "failed"
)

// SnapshotItem is one line item as reported by the external ERP system
type SnapshotItem struct {
	ItemNumber   string          `json:"item_number"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	MaterialCode string          `json:"material_code,omitempty"`
}

// ERPSnapshot is the externally fetched view of a purchase order used
// for reconciliation
type ERPSnapshot struct {
	PONumber    string          `json:"po_number"`
	VendorCode  string          `json:"vendor_code"`
	VendorName  string          `json:"vendor_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Items       []SnapshotItem  `json:"items"`
	DocNumber   string          `json:"erp_doc_number"`
	FiscalYear  string          `json:"fiscal_year"`
	Raw         map[string]any  `json:"-"`
}

// ReconciliationResult is the outcome of comparing a purchase order
// against an ERP snapshot
type ReconciliationResult struct {
	Passed        bool
	Notes         string
	Discrepancies []string
}

// ReconciliationEngine compares local purchase order data against an ERP
// snapshot. It checks vendor code, total amount and item count; individual
// item identities and prices are not compared.
type ReconciliationEngine struct{}

// NewReconciliationEngine creates a ReconciliationEngine
func NewReconciliationEngine() *ReconciliationEngine {
	return &ReconciliationEngine{}
}

// Compare runs the pure comparison without touching the aggregate
func (e *ReconciliationEngine) Compare(po *PurchaseOrder, snapshot ERPSnapshot) ReconciliationResult {
	var discrepancies []string

	if po.VendorCode != snapshot.VendorCode {
		discrepancies = append(discrepancies,
			fmt.Sprintf("Vendor mismatch: PO=%s, ERP=%s", po.VendorCode, snapshot.VendorCode))
	}

	if po.TotalAmount.Sub(snapshot.TotalAmount).Abs().GreaterThan(AmountTolerance) {
		discrepancies = append(discrepancies,
			fmt.Sprintf("Amount mismatch: PO=%s, ERP=%s", po.TotalAmount, snapshot.TotalAmount))
	}

	if len(po.Items) != len(snapshot.Items) {
		discrepancies = append(discrepancies,
			fmt.Sprintf("Items count mismatch: PO=%d, ERP=%d", len(po.Items), len(snapshot.Items)))
	}

	if len(discrepancies) > 0 {
		return ReconciliationResult{
			Passed:        false,
			Notes:         strings.Join(discrepancies, "; "),
			Discrepancies: discrepancies,
		}
	}

	return ReconciliationResult{
		Passed: true,
		Notes:  "All data reconciled successfully",
	}
}

// Reconcile compares and writes the outcome onto the aggregate. It never
// changes the order's status; the caller decides what the result means
// for the lifecycle.
func (e *ReconciliationEngine) Reconcile(po *PurchaseOrder, snapshot ERPSnapshot) ReconciliationResult {
	result := e.Compare(po, snapshot)
	po.RecordReconciliation(result.Passed, result.Notes, result.Discrepancies)
	return result
}
