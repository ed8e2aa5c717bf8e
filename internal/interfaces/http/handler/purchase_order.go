package handler

import (
	"github.com/gin-gonic/gin"
	appproc "github.com/popr/backend/internal/application/procurement"
	"github.com/popr/backend/internal/domain/procurement"
	"github.com/popr/backend/internal/interfaces/http/dto"
)

// ProcessRequest is the request body for processing a purchase order
type ProcessRequest struct {
	Actor               string `json:"actor" binding:"required"`
	ForceManualApproval bool   `json:"force_manual_approval"`
	SkipExternalLock    bool   `json:"skip_external_lock"`
	NotifyOnComplete    bool   `json:"notify_on_complete"`
}

// ApproveRequest is the request body for approving a purchase order.
// PostInvoice defaults to true when omitted.
type ApproveRequest struct {
	Approver    string `json:"approver" binding:"required"`
	Notes       string `json:"notes"`
	PostInvoice *bool  `json:"post_invoice"`
}

// RejectRequest is the request body for rejecting a purchase order
type RejectRequest struct {
	Rejector string `json:"rejector" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// BulkApproveRequest is the request body for bulk approval.
// PostInvoices defaults to true when omitted.
type BulkApproveRequest struct {
	PONumbers    []string `json:"po_numbers" binding:"required,min=1,dive,required"`
	Approver     string   `json:"approver" binding:"required"`
	Notes        string   `json:"notes"`
	PostInvoices *bool    `json:"post_invoices"`
}

// ListRequest is the query for listing purchase orders by status
type ListRequest struct {
	dto.ListRequest
	Status string `form:"status" binding:"required"`
}

// PurchaseOrderHandler handles purchase order HTTP endpoints
type PurchaseOrderHandler struct {
	BaseHandler
	processService  *appproc.ProcessService
	approvalService *appproc.ApprovalService
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(processService *appproc.ProcessService, approvalService *appproc.ApprovalService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		processService:  processService,
		approvalService: approvalService,
	}
}

// RegisterRoutes registers purchase order routes
func (h *PurchaseOrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/purchase-orders")
	{
		orders.GET("", h.List)
		orders.GET("/pending-approval", h.ListPendingApproval)
		orders.GET("/:poNumber", h.Get)
		orders.POST("/:poNumber/process", h.Process)
		orders.POST("/:poNumber/approve", h.Approve)
		orders.POST("/:poNumber/reject", h.Reject)
		orders.POST("/bulk-approve", h.BulkApprove)
	}
}

// Process runs a purchase order through the processing pipeline
func (h *PurchaseOrderHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.processService.Execute(c.Request.Context(), appproc.ProcessCommand{
		PONumber:            c.Param("poNumber"),
		Actor:               req.Actor,
		ForceManualApproval: req.ForceManualApproval,
		SkipExternalLock:    req.SkipExternalLock,
		NotifyOnComplete:    req.NotifyOnComplete,
	})
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Approve approves a purchase order awaiting manual approval
func (h *PurchaseOrderHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.approvalService.Approve(c.Request.Context(), appproc.ApproveCommand{
		PONumber:    c.Param("poNumber"),
		Approver:    req.Approver,
		Notes:       req.Notes,
		PostInvoice: req.PostInvoice == nil || *req.PostInvoice,
	})
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reject rejects a purchase order awaiting manual approval
func (h *PurchaseOrderHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.approvalService.Reject(c.Request.Context(), appproc.RejectCommand{
		PONumber: c.Param("poNumber"),
		Rejector: req.Rejector,
		Reason:   req.Reason,
	})
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, result)
}

// BulkApprove approves several purchase orders in one call
func (h *PurchaseOrderHandler) BulkApprove(c *gin.Context) {
	var req BulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.approvalService.BulkApprove(c.Request.Context(), appproc.BulkApproveCommand{
		PONumbers:    req.PONumbers,
		Approver:     req.Approver,
		Notes:        req.Notes,
		PostInvoices: req.PostInvoices == nil || *req.PostInvoices,
	})
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Get returns a single purchase order
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	result, err := h.approvalService.Get(c.Request.Context(), c.Param("poNumber"))
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, result)
}

// List returns purchase orders in a given status with paging
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Normalize()

	offset := (req.Page - 1) * req.PageSize
	orders, total, err := h.approvalService.ListByStatus(c.Request.Context(),
		procurement.POStatus(req.Status), req.PageSize, offset)
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, orders, total, req.Page, req.PageSize)
}

// ListPendingApproval returns every purchase order awaiting approval
func (h *PurchaseOrderHandler) ListPendingApproval(c *gin.Context) {
	orders, err := h.approvalService.ListPendingApproval(c.Request.Context())
	if err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, orders)
}
