package notification

import (
	"context"

	"github.com/popr/backend/internal/domain/procurement"
	"go.uber.org/zap"
)

// LogNotifier publishes purchase order notifications to the structured
// log. It stands in for mail or chat integrations; recipients are
// carried on each entry so a real transport can be swapped in later.
type LogNotifier struct {
	logger     *zap.Logger
	recipients []string
	enabled    bool
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger, recipients []string, enabled bool) *LogNotifier {
	return &LogNotifier{
		logger:     logger.Named("notification"),
		recipients: recipients,
		enabled:    enabled,
	}
}

// NotifyApprovalRequired announces that an order needs a human decision
func (n *LogNotifier) NotifyApprovalRequired(ctx context.Context, po *procurement.PurchaseOrder) error {
	if !n.enabled {
		return nil
	}
	n.logger.Info("approval required",
		zap.String("po_number", po.PONumber),
		zap.String("vendor", po.VendorName),
		zap.String("total_amount", po.TotalAmount.String()),
		zap.String("currency", string(po.Currency)),
		zap.Strings("recipients", n.recipients))
	return nil
}

// NotifyApproved announces an approval decision
func (n *LogNotifier) NotifyApproved(ctx context.Context, po *procurement.PurchaseOrder, approver string) error {
	if !n.enabled {
		return nil
	}
	n.logger.Info("purchase order approved",
		zap.String("po_number", po.PONumber),
		zap.String("approved_by", approver),
		zap.Strings("recipients", n.recipients))
	return nil
}

// NotifyRejected announces a rejection decision
func (n *LogNotifier) NotifyRejected(ctx context.Context, po *procurement.PurchaseOrder, rejector, reason string) error {
	if !n.enabled {
		return nil
	}
	n.logger.Info("purchase order rejected",
		zap.String("po_number", po.PONumber),
		zap.String("rejected_by", rejector),
		zap.String("reason", reason),
		zap.Strings("recipients", n.recipients))
	return nil
}

// NotifyCompleted announces that processing finished
func (n *LogNotifier) NotifyCompleted(ctx context.Context, po *procurement.PurchaseOrder) error {
	if !n.enabled {
		return nil
	}
	n.logger.Info("purchase order completed",
		zap.String("po_number", po.PONumber),
		zap.String("status", string(po.Status)),
		zap.Strings("recipients", []string{po.CreatedBy}))
	return nil
}

// NotifyError announces a processing failure
func (n *LogNotifier) NotifyError(ctx context.Context, poNumber string, err error) error {
	if !n.enabled {
		return nil
	}
	n.logger.Warn("purchase order processing error",
		zap.String("po_number", poNumber),
		zap.Strings("recipients", n.recipients),
		zap.Error(err))
	return nil
}
