package erp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const demoFixture = `{
  "pos": [
    {
      "po_number": "PO-1001",
      "vendor_code": "V001",
      "vendor_name": "Vendor ABC",
      "total_amount": 1500.00,
      "currency": "BRL",
      "erp_doc_number": "4500000001",
      "fiscal_year": "2026",
      "status": "released",
      "items": [
        {"item_number": "10", "description": "Steel pipes", "quantity": 10, "unit_price": 150.00, "total_price": 1500.00}
      ]
    },
    {
      "po_number": "PO-1002",
      "vendor_code": "V002",
      "vendor_name": "Vendor XYZ",
      "total_amount": 20000.00,
      "currency": "BRL",
      "erp_doc_number": "4500000002",
      "fiscal_year": "2026",
      "items": []
    }
  ]
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "erp_data.json")
	require.NoError(t, os.WriteFile(path, []byte(demoFixture), 0644))
	return path
}

func connectedGateway(t *testing.T) *DemoGateway {
	t.Helper()
	gw := NewDemoGateway(writeFixture(t), zap.NewNop())
	require.NoError(t, gw.Connect(context.Background()))
	return gw
}

func TestDemoGateway_RequiresConnect(t *testing.T) {
	gw := NewDemoGateway(writeFixture(t), zap.NewNop())
	ctx := context.Background()

	_, err := gw.GetSnapshot(ctx, "PO-1001")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, gw.LockDocument(ctx, "4500000001"), ErrNotConnected)

	_, err = gw.PostInvoice(ctx, "PO-1001", "1500.00")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDemoGateway_GetSnapshot(t *testing.T) {
	gw := connectedGateway(t)

	snapshot, err := gw.GetSnapshot(context.Background(), "PO-1001")
	require.NoError(t, err)

	assert.Equal(t, "PO-1001", snapshot.PONumber)
	assert.Equal(t, "V001", snapshot.VendorCode)
	assert.True(t, snapshot.TotalAmount.Equal(decimal.NewFromFloat(1500.00)))
	assert.Equal(t, "4500000001", snapshot.DocNumber)
	assert.Equal(t, "2026", snapshot.FiscalYear)
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, "Steel pipes", snapshot.Items[0].Description)
	assert.Equal(t, "released", snapshot.Raw["status"])
}

func TestDemoGateway_GetSnapshot_Unknown(t *testing.T) {
	gw := connectedGateway(t)

	_, err := gw.GetSnapshot(context.Background(), "PO-9999")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDemoGateway_MissingFileStartsEmpty(t *testing.T) {
	gw := NewDemoGateway(filepath.Join(t.TempDir(), "nope.json"), zap.NewNop())
	require.NoError(t, gw.Connect(context.Background()))

	_, err := gw.GetSnapshot(context.Background(), "PO-1001")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDemoGateway_PostInvoice(t *testing.T) {
	gw := connectedGateway(t)

	invoice, err := gw.PostInvoice(context.Background(), "PO-1001", "1500.00")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(invoice, "INV-PO-1001-"))
}

func TestDemoGateway_LockUnlock(t *testing.T) {
	gw := connectedGateway(t)
	ctx := context.Background()

	assert.NoError(t, gw.LockDocument(ctx, "4500000001"))
	assert.NoError(t, gw.UnlockDocument(ctx, "4500000001"))
}

func TestDemoGateway_CheckDocumentStatus(t *testing.T) {
	gw := connectedGateway(t)
	ctx := context.Background()

	status, err := gw.CheckDocumentStatus(ctx, "PO-1001")
	require.NoError(t, err)
	assert.Equal(t, "released", status)

	// Unknown documents and documents without a status report active
	status, err = gw.CheckDocumentStatus(ctx, "PO-1002")
	require.NoError(t, err)
	assert.Equal(t, "active", status)
}

func TestDemoGateway_SearchByVendor(t *testing.T) {
	gw := connectedGateway(t)

	numbers, err := gw.SearchByVendor(context.Background(), "V001")
	require.NoError(t, err)
	assert.Equal(t, []string{"PO-1001"}, numbers)

	numbers, err = gw.SearchByVendor(context.Background(), "V404")
	require.NoError(t, err)
	assert.Empty(t, numbers)
}

func TestDemoGateway_Disconnect(t *testing.T) {
	gw := connectedGateway(t)
	ctx := context.Background()

	require.NoError(t, gw.Disconnect(ctx))

	_, err := gw.GetSnapshot(ctx, "PO-1001")
	assert.ErrorIs(t, err, ErrNotConnected)
}
