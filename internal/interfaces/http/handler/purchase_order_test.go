package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	appproc "github.com/popr/backend/internal/application/procurement"
	"github.com/popr/backend/internal/domain/procurement"
	"github.com/popr/backend/internal/infrastructure/erp"
	"github.com/popr/backend/internal/infrastructure/notification"
	"github.com/popr/backend/internal/infrastructure/persistence"
	"github.com/popr/backend/internal/infrastructure/persistence/models"
	"github.com/popr/backend/internal/interfaces/http/router"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	engine *gin.Engine
	repo   *persistence.GormPurchaseOrderRepository
}

// setupEnv wires the full stack against sqlite and the demo ERP gateway
func setupEnv(t *testing.T, fixture string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PurchaseOrderModel{}, &models.POItemModel{}))

	fixturePath := filepath.Join(t.TempDir(), "erp_data.json")
	require.NoError(t, os.WriteFile(fixturePath, []byte(fixture), 0644))

	logger := zap.NewNop()
	repo := persistence.NewGormPurchaseOrderRepository(db)
	gateway := erp.NewDemoGateway(fixturePath, logger)
	require.NoError(t, gateway.Connect(context.Background()))
	notifier := notification.NewLogNotifier(logger, []string{"approver@company.com"}, true)

	processService := appproc.NewProcessService(repo, gateway, notifier, logger)
	approvalService := appproc.NewApprovalService(repo, gateway, notifier, logger)

	engine := gin.New()
	r := router.NewRouter(engine)
	r.Register(NewPurchaseOrderHandler(processService, approvalService))
	r.Setup()

	return &testEnv{engine: engine, repo: repo}
}

func (e *testEnv) seed(t *testing.T, poNumber string, total float64, status procurement.POStatus) *procurement.PurchaseOrder {
	t.Helper()
	qty := decimal.NewFromInt(2)
	price := decimal.NewFromFloat(total / 2)
	po, err := procurement.NewPurchaseOrder(poNumber, "V001", "Vendor ABC",
		decimal.NewFromFloat(total), "BRL",
		[]procurement.POItem{{
			ItemNumber:  "10",
			Description: "Steel pipes",
			Quantity:    qty,
			UnitPrice:   price,
			TotalPrice:  qty.Mul(price),
		}})
	require.NoError(t, err)
	if status != procurement.POStatusDraft {
		require.NoError(t, po.TransitionTo(procurement.POStatusPending, "seeded", "system"))
	}
	if status == procurement.POStatusAwaitingApproval {
		require.NoError(t, po.AcquireLock("pipeline", 30*time.Minute))
		require.NoError(t, po.TransitionTo(procurement.POStatusProcessing, "", "pipeline"))
		require.NoError(t, po.TransitionTo(procurement.POStatusReconciling, "", "pipeline"))
		require.NoError(t, po.TransitionTo(procurement.POStatusAwaitingApproval, "", "pipeline"))
	}
	require.NoError(t, e.repo.Save(context.Background(), po))
	return po
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func fixtureFor(poNumber string, total float64) string {
	return fmt.Sprintf(`{"pos": [{
		"po_number": %q,
		"vendor_code": "V001",
		"vendor_name": "Vendor ABC",
		"total_amount": %.2f,
		"currency": "BRL",
		"erp_doc_number": "4500000001",
		"fiscal_year": "2026",
		"items": [{"item_number": "10", "description": "Steel pipes", "quantity": 2, "unit_price": %.2f, "total_price": %.2f}]
	}]}`, poNumber, total, total/2, total)
}

func TestPurchaseOrderHandler_Process_Completes(t *testing.T) {
	env := setupEnv(t, fixtureFor("PO-1001", 1000.00))
	env.seed(t, "PO-1001", 1000.00, procurement.POStatusPending)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-1001/process", gin.H{
		"actor": "alice",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Success        bool   `json:"Success"`
			FinalStatus    string `json:"FinalStatus"`
			ApprovalStatus string `json:"ApprovalStatus"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "COMPLETED", resp.Data.FinalStatus)
	assert.Equal(t, "auto_approved", resp.Data.ApprovalStatus)

	po, err := env.repo.FindByPONumber(context.Background(), "PO-1001")
	require.NoError(t, err)
	assert.Equal(t, procurement.POStatusCompleted, po.Status)
}

func TestPurchaseOrderHandler_Process_HighValueAwaitsApproval(t *testing.T) {
	env := setupEnv(t, fixtureFor("PO-2001", 20000.00))
	env.seed(t, "PO-2001", 20000.00, procurement.POStatusPending)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-2001/process", gin.H{
		"actor": "alice",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	po, err := env.repo.FindByPONumber(context.Background(), "PO-2001")
	require.NoError(t, err)
	assert.Equal(t, procurement.POStatusAwaitingApproval, po.Status)
}

func TestPurchaseOrderHandler_Process_NotFound(t *testing.T) {
	env := setupEnv(t, `{"pos": []}`)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-404/process", gin.H{
		"actor": "alice",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "PO_NOT_FOUND")
}

func TestPurchaseOrderHandler_Process_MissingActor(t *testing.T) {
	env := setupEnv(t, `{"pos": []}`)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-1001/process", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchaseOrderHandler_Approve(t *testing.T) {
	env := setupEnv(t, fixtureFor("PO-3001", 20000.00))
	env.seed(t, "PO-3001", 20000.00, procurement.POStatusAwaitingApproval)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-3001/approve", gin.H{
		"approver": "maria",
		"notes":    "checked",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	po, err := env.repo.FindByPONumber(context.Background(), "PO-3001")
	require.NoError(t, err)
	assert.Equal(t, procurement.POStatusCompleted, po.Status)
	assert.Equal(t, "maria", po.ApprovedBy)
}

func TestPurchaseOrderHandler_Approve_WithoutInvoice(t *testing.T) {
	env := setupEnv(t, fixtureFor("PO-3003", 20000.00))
	env.seed(t, "PO-3003", 20000.00, procurement.POStatusAwaitingApproval)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-3003/approve", gin.H{
		"approver":     "maria",
		"post_invoice": false,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	po, err := env.repo.FindByPONumber(context.Background(), "PO-3003")
	require.NoError(t, err)
	assert.Equal(t, procurement.POStatusApproved, po.Status)
	assert.Equal(t, "maria", po.ApprovedBy)
}

func TestPurchaseOrderHandler_Approve_WrongStatus(t *testing.T) {
	env := setupEnv(t, fixtureFor("PO-3002", 20000.00))
	env.seed(t, "PO-3002", 20000.00, procurement.POStatusPending)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-3002/approve", gin.H{
		"approver": "maria",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "PO_INVALID_APPROVAL")
}

func TestPurchaseOrderHandler_Reject(t *testing.T) {
	env := setupEnv(t, fixtureFor("PO-4001", 20000.00))
	env.seed(t, "PO-4001", 20000.00, procurement.POStatusAwaitingApproval)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-4001/reject", gin.H{
		"rejector": "maria",
		"reason":   "vendor not authorized",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	po, err := env.repo.FindByPONumber(context.Background(), "PO-4001")
	require.NoError(t, err)
	assert.Equal(t, procurement.POStatusRejected, po.Status)
	// the processing lock belongs to the pipeline, not the rejector
	assert.Equal(t, "pipeline", po.LockedBy)
}

func TestPurchaseOrderHandler_Reject_RequiresReason(t *testing.T) {
	env := setupEnv(t, `{"pos": []}`)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/PO-4002/reject", gin.H{
		"rejector": "maria",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchaseOrderHandler_BulkApprove(t *testing.T) {
	env := setupEnv(t, fixtureFor("PO-5001", 20000.00))
	env.seed(t, "PO-5001", 20000.00, procurement.POStatusAwaitingApproval)
	env.seed(t, "PO-5002", 20000.00, procurement.POStatusPending)

	w := env.request(t, http.MethodPost, "/api/v1/purchase-orders/bulk-approve", gin.H{
		"po_numbers": []string{"PO-5001", "PO-5002"},
		"approver":   "maria",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Total    int `json:"Total"`
			Approved int `json:"Approved"`
			Failed   int `json:"Failed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Approved)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestPurchaseOrderHandler_Get(t *testing.T) {
	env := setupEnv(t, `{"pos": []}`)
	env.seed(t, "PO-6001", 1000.00, procurement.POStatusPending)

	w := env.request(t, http.MethodGet, "/api/v1/purchase-orders/PO-6001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"po_number":"PO-6001"`)

	w = env.request(t, http.MethodGet, "/api/v1/purchase-orders/PO-9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseOrderHandler_List(t *testing.T) {
	env := setupEnv(t, `{"pos": []}`)
	env.seed(t, "PO-7001", 1000.00, procurement.POStatusPending)
	env.seed(t, "PO-7002", 1000.00, procurement.POStatusPending)

	w := env.request(t, http.MethodGet, "/api/v1/purchase-orders?status=PENDING", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data []json.RawMessage `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(2), resp.Meta.Total)

	// Unknown status is rejected
	w = env.request(t, http.MethodGet, "/api/v1/purchase-orders?status=BOGUS", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPurchaseOrderHandler_ListPendingApproval(t *testing.T) {
	env := setupEnv(t, `{"pos": []}`)
	env.seed(t, "PO-8001", 20000.00, procurement.POStatusAwaitingApproval)

	w := env.request(t, http.MethodGet, "/api/v1/purchase-orders/pending-approval", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"po_number":"PO-8001"`)
}
