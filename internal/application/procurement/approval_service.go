package procurement

import (
	"context"
	"fmt"

	"github.com/popr/backend/internal/domain/procurement"
	"go.uber.org/zap"
)

// ApprovalService handles manual approval and rejection of purchase
// orders that the processing pipeline parked in AWAITING_APPROVAL
type ApprovalService struct {
	repo     procurement.Repository
	gateway  ERPGateway
	notifier Notifier
	logger   *zap.Logger
}

// NewApprovalService creates an ApprovalService
func NewApprovalService(repo procurement.Repository, gateway ERPGateway, notifier Notifier, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

// Approve approves a purchase order awaiting manual approval. When the
// command requests an invoice, posting it completes the order; a posting
// failure leaves the order APPROVED so the invoice can be retried. The
// approval itself is never rolled back.
func (s *ApprovalService) Approve(ctx context.Context, cmd ApproveCommand) (*ApproveResult, error) {
	po, err := s.repo.FindByPONumber(ctx, cmd.PONumber)
	if err != nil {
		return nil, err
	}

	if po.Status != procurement.POStatusAwaitingApproval {
		return nil, procurement.NewInvalidApprovalError(po.PONumber, po.Status,
			fmt.Sprintf("Cannot approve PO in status %s, must be AWAITING_APPROVAL", po.Status))
	}

	if err := po.Approve(cmd.Approver, cmd.Notes); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return nil, err
	}

	s.logger.Info("purchase order approved",
		zap.String("po_number", po.PONumber),
		zap.String("approver", cmd.Approver))

	result := &ApproveResult{
		Success:    true,
		PONumber:   po.PONumber,
		ApprovedBy: po.ApprovedBy,
		ApprovedAt: po.ApprovedAt,
	}

	if cmd.PostInvoice {
		if invoice, err := s.gateway.PostInvoice(ctx, po.PONumber, po.TotalAmount.String()); err != nil {
			s.logger.Error("failed to post invoice after approval",
				zap.String("po_number", po.PONumber),
				zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("invoice posting failed: %s", err.Error()))
		} else {
			result.InvoiceNumber = invoice
			result.InvoicePosted = true
		}
	}

	if result.InvoicePosted {
		if err := po.TransitionTo(procurement.POStatusCompleted, "Completed after manual approval", cmd.Approver); err != nil {
			return nil, err
		}
	}
	if po.IsLocked() {
		if err := po.ReleaseLock(cmd.Approver); err != nil {
			s.logger.Warn("lock not released on approval",
				zap.String("po_number", po.PONumber),
				zap.String("locked_by", po.LockedBy),
				zap.Error(err))
		}
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyApproved(ctx, po, cmd.Approver); err != nil {
		s.logger.Warn("failed to send approval notification", zap.Error(err))
	}

	result.FinalStatus = po.Status
	result.Message = fmt.Sprintf("PO %s approved by %s", po.PONumber, cmd.Approver)
	return result, nil
}

// Reject rejects a purchase order awaiting manual approval and releases
// any processing lock so the order can be reworked
func (s *ApprovalService) Reject(ctx context.Context, cmd RejectCommand) (*RejectResult, error) {
	if cmd.Reason == "" {
		return nil, procurement.NewInvalidRejectionError(cmd.PONumber, "", "Rejection reason is required")
	}

	po, err := s.repo.FindByPONumber(ctx, cmd.PONumber)
	if err != nil {
		return nil, err
	}

	if po.Status != procurement.POStatusAwaitingApproval {
		return nil, procurement.NewInvalidRejectionError(po.PONumber, po.Status,
			fmt.Sprintf("Cannot reject PO in status %s, must be AWAITING_APPROVAL", po.Status))
	}

	if err := po.Reject(cmd.Rejector, cmd.Reason); err != nil {
		return nil, err
	}

	if po.IsLocked() {
		if err := po.ReleaseLock(cmd.Rejector); err != nil {
			s.logger.Warn("lock not released on rejection",
				zap.String("po_number", po.PONumber),
				zap.String("locked_by", po.LockedBy),
				zap.Error(err))
		}
	}

	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return nil, err
	}

	s.logger.Info("purchase order rejected",
		zap.String("po_number", po.PONumber),
		zap.String("rejector", cmd.Rejector),
		zap.String("reason", cmd.Reason))

	if err := s.notifier.NotifyRejected(ctx, po, cmd.Rejector, cmd.Reason); err != nil {
		s.logger.Warn("failed to send rejection notification", zap.Error(err))
	}

	return &RejectResult{
		Success:     true,
		PONumber:    po.PONumber,
		FinalStatus: po.Status,
		RejectedBy:  cmd.Rejector,
		Reason:      cmd.Reason,
		Message:     fmt.Sprintf("PO %s rejected by %s", po.PONumber, cmd.Rejector),
	}, nil
}

// BulkApprove approves several purchase orders sequentially. A failure
// on one order never aborts the batch; each outcome is reported
// per order.
func (s *ApprovalService) BulkApprove(ctx context.Context, cmd BulkApproveCommand) (*BulkApproveResult, error) {
	result := &BulkApproveResult{
		Total:   len(cmd.PONumbers),
		Results: make([]BulkApproveItemResult, 0, len(cmd.PONumbers)),
	}

	for _, poNumber := range cmd.PONumbers {
		item := BulkApproveItemResult{PONumber: poNumber}

		approveResult, err := s.Approve(ctx, ApproveCommand{
			PONumber:    poNumber,
			Approver:    cmd.Approver,
			Notes:       cmd.Notes,
			PostInvoice: cmd.PostInvoices,
		})
		if err != nil {
			item.Message = err.Error()
			result.Failed++
		} else {
			item.Success = true
			item.Message = approveResult.Message
			result.Approved++
		}

		result.Results = append(result.Results, item)
	}

	if result.Total > 0 {
		result.SuccessRate = float64(result.Approved) / float64(result.Total) * 100
	}

	s.logger.Info("bulk approval finished",
		zap.Int("total", result.Total),
		zap.Int("approved", result.Approved),
		zap.Int("failed", result.Failed))

	return result, nil
}

// Get returns a purchase order by its business key
func (s *ApprovalService) Get(ctx context.Context, poNumber string) (*PurchaseOrderResponse, error) {
	po, err := s.repo.FindByPONumber(ctx, poNumber)
	if err != nil {
		return nil, err
	}
	resp := ToPurchaseOrderResponse(po)
	return &resp, nil
}

// ListPendingApproval returns all purchase orders awaiting manual
// approval
func (s *ApprovalService) ListPendingApproval(ctx context.Context) ([]PurchaseOrderResponse, error) {
	orders, err := s.repo.ListPendingApproval(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]PurchaseOrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, ToPurchaseOrderResponse(&orders[i]))
	}
	return responses, nil
}

// ListByStatus returns purchase orders in a given status with paging
func (s *ApprovalService) ListByStatus(ctx context.Context, status procurement.POStatus, limit, offset int) ([]PurchaseOrderResponse, int64, error) {
	if !status.IsValid() {
		return nil, 0, procurement.NewValidationError("", []string{fmt.Sprintf("Invalid status: %s", status)})
	}
	if limit <= 0 {
		limit = 20
	}

	orders, err := s.repo.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]PurchaseOrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, ToPurchaseOrderResponse(&orders[i]))
	}
	return responses, total, nil
}
