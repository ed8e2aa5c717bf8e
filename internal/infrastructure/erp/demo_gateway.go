package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/popr/backend/internal/domain/procurement"
	"github.com/popr/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when the gateway is used before Connect
var ErrNotConnected = shared.NewDomainError("ERP_NOT_CONNECTED", "ERP gateway is not connected")

// ErrDocumentNotFound is returned when the ERP has no document for a PO
var ErrDocumentNotFound = shared.NewDomainError("ERP_DOCUMENT_NOT_FOUND", "Document not found in ERP")

// demoDataFile is the on-disk shape of the demo fixture
type demoDataFile struct {
	POs []demoPO `json:"pos"`
}

type demoPO struct {
	PONumber    string          `json:"po_number"`
	VendorCode  string          `json:"vendor_code"`
	VendorName  string          `json:"vendor_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	DocNumber   string          `json:"erp_doc_number"`
	FiscalYear  string          `json:"fiscal_year"`
	Status      string          `json:"status"`
	Items       []demoItem      `json:"items"`
}

type demoItem struct {
	ItemNumber   string          `json:"item_number"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	MaterialCode string          `json:"material_code,omitempty"`
}

// DemoGateway is a file-backed ERP gateway for development and tests.
// It serves purchase order snapshots from a JSON fixture and accepts
// every lock and invoice request.
type DemoGateway struct {
	dataFile string
	logger   *zap.Logger

	mu        sync.RWMutex
	connected bool
	cache     map[string]demoPO
}

// NewDemoGateway creates a DemoGateway reading from the given fixture file
func NewDemoGateway(dataFile string, logger *zap.Logger) *DemoGateway {
	return &DemoGateway{
		dataFile: dataFile,
		logger:   logger,
		cache:    make(map[string]demoPO),
	}
}

// Connect loads the fixture into memory. A missing file yields an empty
// dataset rather than an error.
func (g *DemoGateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cache = make(map[string]demoPO)

	data, err := os.ReadFile(g.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			g.logger.Warn("demo ERP data file missing, starting empty",
				zap.String("path", g.dataFile))
			g.connected = true
			return nil
		}
		return fmt.Errorf("failed to read demo ERP data: %w", err)
	}

	var file demoDataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse demo ERP data: %w", err)
	}

	for _, po := range file.POs {
		g.cache[po.PONumber] = po
	}
	g.connected = true

	g.logger.Info("demo ERP gateway connected",
		zap.String("path", g.dataFile),
		zap.Int("purchase_orders", len(g.cache)))

	return nil
}

// Disconnect drops the session
func (g *DemoGateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	return nil
}

// GetSnapshot fetches the ERP's view of a purchase order
func (g *DemoGateway) GetSnapshot(ctx context.Context, poNumber string) (procurement.ERPSnapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.connected {
		return procurement.ERPSnapshot{}, ErrNotConnected
	}

	po, ok := g.cache[poNumber]
	if !ok {
		return procurement.ERPSnapshot{}, &shared.DomainError{
			Code:    ErrDocumentNotFound.Code,
			Message: fmt.Sprintf("PO %s not found in demo ERP", poNumber),
			Details: map[string]any{"po_number": poNumber},
		}
	}

	items := make([]procurement.SnapshotItem, 0, len(po.Items))
	for _, item := range po.Items {
		items = append(items, procurement.SnapshotItem{
			ItemNumber:   item.ItemNumber,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.TotalPrice,
			MaterialCode: item.MaterialCode,
		})
	}

	return procurement.ERPSnapshot{
		PONumber:    po.PONumber,
		VendorCode:  po.VendorCode,
		VendorName:  po.VendorName,
		TotalAmount: po.TotalAmount,
		Currency:    po.Currency,
		Items:       items,
		DocNumber:   po.DocNumber,
		FiscalYear:  po.FiscalYear,
		Raw: map[string]any{
			"status":       po.Status,
			"extracted_at": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// LockDocument accepts every lock request
func (g *DemoGateway) LockDocument(ctx context.Context, docNumber string) error {
	return g.requireConnected()
}

// UnlockDocument accepts every unlock request
func (g *DemoGateway) UnlockDocument(ctx context.Context, docNumber string) error {
	return g.requireConnected()
}

// PostInvoice returns a deterministic demo invoice number
func (g *DemoGateway) PostInvoice(ctx context.Context, poNumber string, amount string) (string, error) {
	if err := g.requireConnected(); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%d", poNumber, time.Now().Unix()), nil
}

// CheckDocumentStatus reports the fixture status, defaulting to active
func (g *DemoGateway) CheckDocumentStatus(ctx context.Context, poNumber string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.connected {
		return "", ErrNotConnected
	}
	if po, ok := g.cache[poNumber]; ok && po.Status != "" {
		return po.Status, nil
	}
	return "active", nil
}

// SearchByVendor lists fixture purchase order numbers for a vendor
func (g *DemoGateway) SearchByVendor(ctx context.Context, vendorCode string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.connected {
		return nil, ErrNotConnected
	}

	var numbers []string
	for _, po := range g.cache {
		if po.VendorCode == vendorCode {
			numbers = append(numbers, po.PONumber)
		}
	}
	return numbers, nil
}

func (g *DemoGateway) requireConnected() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.connected {
		return ErrNotConnected
	}
	return nil
}
