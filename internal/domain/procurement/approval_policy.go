package procurement

import "github.com/shopspring/decimal"

// ApprovalThreshold is the amount above which a purchase order requires
// manual approval. The comparison is currency-insensitive.
var ApprovalThreshold = decimal.NewFromFloat(10000.00)

// ApprovalPolicy decides whether a purchase order can be approved
// automatically or must wait for a human. Stateless.
type ApprovalPolicy struct {
	Threshold decimal.Decimal
}

// DefaultApprovalPolicy returns the policy with the standard threshold
func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{Threshold: ApprovalThreshold}
}

// RequiresApproval is true iff the order total strictly exceeds the threshold
func (p ApprovalPolicy) RequiresApproval(po *PurchaseOrder) bool {
	return po.TotalAmount.GreaterThan(p.Threshold)
}
