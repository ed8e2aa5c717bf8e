package procurement

import (
	"strings"
	"testing"
	"time"

	"github.com/popr/backend/internal/domain/shared"
	"github.com/popr/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

func testItem(number string, qty, unitPrice float64) POItem {
	q := decimal.NewFromFloat(qty)
	p := decimal.NewFromFloat(unitPrice)
	return POItem{
		ItemNumber:  number,
		Description: "Test item " + number,
		Quantity:    q,
		UnitPrice:   p,
		TotalPrice:  q.Mul(p),
	}
}

func createTestPO(t *testing.T, total float64, items ...POItem) *PurchaseOrder {
	t.Helper()
	if len(items) == 0 {
		items = []POItem{testItem("10", 2, total/2)}
	}
	po, err := NewPurchaseOrder("PO-12345", "V001", "Vendor ABC", decimal.NewFromFloat(total), valueobject.BRL, items)
	require.NoError(t, err)
	return po
}

func createPendingPO(t *testing.T, total float64) *PurchaseOrder {
	t.Helper()
	po := createTestPO(t, total)
	require.NoError(t, po.TransitionTo(POStatusPending, "seeded", "system"))
	return po
}

// ============================================
// POStatus / state machine
// ============================================

func TestPOStatus_CanTransitionTo(t *testing.T) {
	allStatuses := []POStatus{
		POStatusDraft, POStatusPending, POStatusLocked, POStatusProcessing,
		POStatusReconciling, POStatusAwaitingApproval, POStatusApproved,
		POStatusRejected, POStatusCancelled, POStatusError, POStatusCompleted,
	}

	allowed := map[POStatus][]POStatus{
		POStatusDraft:            {POStatusPending, POStatusCancelled},
		POStatusPending:          {POStatusLocked, POStatusCancelled},
		POStatusLocked:           {POStatusProcessing, POStatusPending, POStatusError},
		POStatusProcessing:       {POStatusReconciling, POStatusError},
		POStatusReconciling:      {POStatusAwaitingApproval, POStatusApproved, POStatusError},
		POStatusAwaitingApproval: {POStatusApproved, POStatusRejected},
		POStatusApproved:         {POStatusCompleted},
		POStatusRejected:         {POStatusPending, POStatusCancelled},
		POStatusError:            {POStatusPending, POStatusCancelled},
		POStatusCancelled:        {},
		POStatusCompleted:        {},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, want, from.CanTransitionTo(to))
			})
		}
	}
}

func TestPOStatus_IsValid(t *testing.T) {
	assert.True(t, POStatusDraft.IsValid())
	assert.True(t, POStatusCompleted.IsValid())
	assert.False(t, POStatus("SOMETHING").IsValid())
	assert.False(t, POStatus("").IsValid())
}

func TestPOStatus_IsTerminal(t *testing.T) {
	assert.True(t, POStatusCompleted.IsTerminal())
	assert.True(t, POStatusCancelled.IsTerminal())
	assert.False(t, POStatusError.IsTerminal())
	assert.False(t, POStatusRejected.IsTerminal())
}

func TestPurchaseOrder_TransitionTo_Succeeds(t *testing.T) {
	po := createTestPO(t, 1000)
	versionBefore := po.Version

	err := po.TransitionTo(POStatusPending, "ready for processing", "alice")
	require.NoError(t, err)

	assert.Equal(t, POStatusPending, po.Status)
	assert.Equal(t, versionBefore+1, po.Version)

	require.NotEmpty(t, po.AuditLog)
	last := po.AuditLog[len(po.AuditLog)-1]
	assert.Equal(t, EventStatusChanged, last.EventType)
	assert.Equal(t, "DRAFT", last.Data["from"])
	assert.Equal(t, "PENDING", last.Data["to"])
	assert.Equal(t, "ready for processing", last.Data["reason"])
	assert.Equal(t, "alice", last.Data["user"])
}

func TestPurchaseOrder_TransitionTo_InvalidLeavesStateUntouched(t *testing.T) {
	po := createTestPO(t, 1000)
	versionBefore := po.Version
	auditBefore := len(po.AuditLog)

	err := po.TransitionTo(POStatusCompleted, "shortcut", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, POStatusDraft, po.Status)
	assert.Equal(t, versionBefore, po.Version)
	assert.Len(t, po.AuditLog, auditBefore)
}

func TestPurchaseOrder_TerminalStatesHaveNoExit(t *testing.T) {
	po := createPendingPO(t, 1000)
	require.NoError(t, po.TransitionTo(POStatusCancelled, "no longer needed", "alice"))

	for _, target := range []POStatus{POStatusDraft, POStatusPending, POStatusError, POStatusCompleted} {
		err := po.TransitionTo(target, "", "alice")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestPurchaseOrder_VersionStrictlyIncreases(t *testing.T) {
	po := createPendingPO(t, 1000)

	seen := po.Version
	require.NoError(t, po.AcquireLock("alice", time.Hour))
	assert.Greater(t, po.Version, seen)

	seen = po.Version
	require.NoError(t, po.TransitionTo(POStatusProcessing, "", "alice"))
	assert.Greater(t, po.Version, seen)

	seen = po.Version
	require.NoError(t, po.ReleaseLock("alice"))
	assert.Greater(t, po.Version, seen)
}

// ============================================
// Lock manager
// ============================================

func TestPurchaseOrder_AcquireLock(t *testing.T) {
	po := createPendingPO(t, 1000)

	err := po.AcquireLock("alice", 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, POStatusLocked, po.Status)
	assert.Equal(t, "alice", po.LockedBy)
	require.NotNil(t, po.LockExpiresAt)
	assert.True(t, po.LockExpiresAt.After(time.Now()))
	assert.True(t, po.IsLocked())
}

func TestPurchaseOrder_AcquireLock_AlreadyLocked(t *testing.T) {
	po := createPendingPO(t, 1000)
	require.NoError(t, po.AcquireLock("alice", 30*time.Minute))

	for _, actor := range []string{"bob", "alice"} {
		err := po.AcquireLock(actor, 30*time.Minute)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyLocked)
	}
	assert.Equal(t, "alice", po.LockedBy)
}

func TestPurchaseOrder_AcquireLock_InvalidStateRollsBack(t *testing.T) {
	po := createTestPO(t, 1000) // DRAFT: cannot go to LOCKED

	err := po.AcquireLock("alice", 30*time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Empty(t, po.LockedBy)
	assert.Nil(t, po.LockExpiresAt)
	assert.False(t, po.IsLocked())
}

func TestPurchaseOrder_ReleaseLock(t *testing.T) {
	po := createPendingPO(t, 1000)
	require.NoError(t, po.AcquireLock("alice", 30*time.Minute))

	require.NoError(t, po.ReleaseLock("alice"))
	assert.False(t, po.IsLocked())
	assert.Empty(t, po.LockedBy)
	assert.Nil(t, po.LockedAt)
	assert.Nil(t, po.LockExpiresAt)

	last := po.AuditLog[len(po.AuditLog)-1]
	assert.Equal(t, EventLockReleased, last.EventType)
}

func TestPurchaseOrder_ReleaseLock_WrongOwner(t *testing.T) {
	po := createPendingPO(t, 1000)
	require.NoError(t, po.AcquireLock("alice", 30*time.Minute))

	err := po.ReleaseLock("bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockOwnership)
	assert.Equal(t, "alice", po.LockedBy)
}

func TestPurchaseOrder_ReleaseLock_UnlockedIsNoop(t *testing.T) {
	po := createPendingPO(t, 1000)
	auditBefore := len(po.AuditLog)

	require.NoError(t, po.ReleaseLock("anyone"))
	assert.Len(t, po.AuditLog, auditBefore)
}

func TestPurchaseOrder_IsLocked_LazyExpiry(t *testing.T) {
	po := createPendingPO(t, 1000)
	require.NoError(t, po.AcquireLock("alice", 30*time.Minute))

	// Backdate the expiry
	past := time.Now().Add(-time.Minute)
	po.LockExpiresAt = &past

	assert.False(t, po.IsLocked())
	assert.Empty(t, po.LockedBy)
	assert.Nil(t, po.LockExpiresAt)

	last := po.AuditLog[len(po.AuditLog)-1]
	assert.Equal(t, EventLockExpired, last.EventType)

	// Idempotent: a second call changes nothing further
	auditBefore := len(po.AuditLog)
	assert.False(t, po.IsLocked())
	assert.Len(t, po.AuditLog, auditBefore)
}

func TestPurchaseOrder_ReacquireAfterExpiry(t *testing.T) {
	po := createPendingPO(t, 1000)
	require.NoError(t, po.AcquireLock("alice", 30*time.Minute))
	require.NoError(t, po.TransitionTo(POStatusPending, "retry", "alice"))

	past := time.Now().Add(-time.Second)
	po.LockExpiresAt = &past

	// Expired lock does not block another actor
	require.NoError(t, po.AcquireLock("bob", 30*time.Minute))
	assert.Equal(t, "bob", po.LockedBy)
}

// ============================================
// Validation
// ============================================

func TestPurchaseOrder_Validate_OK(t *testing.T) {
	po := createTestPO(t, 1000)
	assert.Empty(t, po.Validate())
}

func TestPurchaseOrder_Validate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(po *PurchaseOrder)
		want   string
	}{
		{
			name:   "non-positive total",
			mutate: func(po *PurchaseOrder) { po.TotalAmount = decimal.Zero },
			want:   "Total amount must be positive",
		},
		{
			name:   "short vendor code",
			mutate: func(po *PurchaseOrder) { po.VendorCode = "V1" },
			want:   "Invalid vendor code",
		},
		{
			name:   "missing vendor name",
			mutate: func(po *PurchaseOrder) { po.VendorName = "" },
			want:   "Vendor name is required",
		},
		{
			name:   "unsupported currency",
			mutate: func(po *PurchaseOrder) { po.Currency = valueobject.Currency("GBP") },
			want:   "Invalid currency",
		},
		{
			name:   "no items",
			mutate: func(po *PurchaseOrder) { po.Items = nil },
			want:   "PO must have at least one item",
		},
		{
			name: "items total off by more than tolerance",
			mutate: func(po *PurchaseOrder) {
				po.TotalAmount = po.TotalAmount.Add(decimal.NewFromFloat(0.02))
			},
			want: "doesn't match PO total",
		},
		{
			name: "item calculation broken",
			mutate: func(po *PurchaseOrder) {
				po.Items[0].TotalPrice = po.Items[0].TotalPrice.Add(decimal.NewFromFloat(0.05))
				po.TotalAmount = po.TotalAmount.Add(decimal.NewFromFloat(0.05))
			},
			want: "invalid calculations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			po := createTestPO(t, 1000)
			tt.mutate(po)

			violations := po.Validate()
			require.NotEmpty(t, violations)

			found := false
			for _, v := range violations {
				if strings.Contains(v, tt.want) {
					found = true
				}
			}
			assert.True(t, found, "expected a violation containing %q, got %v", tt.want, violations)
		})
	}
}

func TestPurchaseOrder_Validate_ToleranceBoundary(t *testing.T) {
	// A 0.01 difference is still acceptable
	po := createTestPO(t, 1000)
	po.TotalAmount = po.TotalAmount.Add(decimal.NewFromFloat(0.01))
	assert.Empty(t, po.Validate())
}

// ============================================
// Approval / rejection
// ============================================

func awaitingApprovalPO(t *testing.T, total float64) *PurchaseOrder {
	t.Helper()
	po := createPendingPO(t, total)
	require.NoError(t, po.AcquireLock("alice", 30*time.Minute))
	require.NoError(t, po.TransitionTo(POStatusProcessing, "", "alice"))
	require.NoError(t, po.TransitionTo(POStatusReconciling, "", "alice"))
	require.NoError(t, po.TransitionTo(POStatusAwaitingApproval, "above threshold", "alice"))
	return po
}

func TestPurchaseOrder_Approve_FromAwaitingApproval(t *testing.T) {
	po := awaitingApprovalPO(t, 20000)

	err := po.Approve("maria", "checked manually")
	require.NoError(t, err)

	assert.Equal(t, POStatusApproved, po.Status)
	assert.Equal(t, "maria", po.ApprovedBy)
	require.NotNil(t, po.ApprovedAt)
}

func TestPurchaseOrder_Approve_FromReconciling(t *testing.T) {
	po := createPendingPO(t, 1000)
	require.NoError(t, po.AcquireLock("system", 30*time.Minute))
	require.NoError(t, po.TransitionTo(POStatusProcessing, "", "system"))
	require.NoError(t, po.TransitionTo(POStatusReconciling, "", "system"))

	require.NoError(t, po.Approve("system", "Auto-approved (below threshold)"))
	assert.Equal(t, POStatusApproved, po.Status)
}

func TestPurchaseOrder_Approve_WrongStatus(t *testing.T) {
	po := createPendingPO(t, 1000)

	err := po.Approve("maria", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidApproval)
	assert.Equal(t, POStatusPending, po.Status)
	assert.Empty(t, po.ApprovedBy)
}

func TestPurchaseOrder_Reject(t *testing.T) {
	po := awaitingApprovalPO(t, 20000)

	err := po.Reject("maria", "vendor not authorized")
	require.NoError(t, err)

	assert.Equal(t, POStatusRejected, po.Status)
	assert.Equal(t, "vendor not authorized", po.RejectionReason)
}

func TestPurchaseOrder_Reject_WrongStatus(t *testing.T) {
	po := createPendingPO(t, 1000)

	err := po.Reject("maria", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRejection)
	assert.Equal(t, POStatusPending, po.Status)
}

// ============================================
// Misc aggregate behavior
// ============================================

func TestPurchaseOrder_ForceTransition(t *testing.T) {
	po := awaitingApprovalPO(t, 20000)

	po.ForceTransition(POStatusError, "unexpected failure", "system")
	assert.Equal(t, POStatusError, po.Status)

	last := po.AuditLog[len(po.AuditLog)-1]
	assert.Equal(t, true, last.Data["forced"])
}

func TestPurchaseOrder_MergeERPLinkage(t *testing.T) {
	po := createTestPO(t, 1000)
	versionBefore := po.Version

	po.MergeERPLinkage("4500123456", "2026", map[string]any{"source": "demo"})

	assert.Equal(t, "4500123456", po.ERPDocNumber)
	assert.Equal(t, "2026", po.ERPFiscalYear)
	assert.Equal(t, versionBefore+1, po.Version)

	// Empty values never blank existing linkage
	po.MergeERPLinkage("", "", nil)
	assert.Equal(t, "4500123456", po.ERPDocNumber)
	assert.Equal(t, "2026", po.ERPFiscalYear)
}

func TestPurchaseOrder_RequiresApproval(t *testing.T) {
	tests := []struct {
		total    float64
		requires bool
	}{
		{1000.00, false},
		{10000.00, false},
		{10000.01, true},
		{20000.00, true},
	}

	for _, tt := range tests {
		po := createTestPO(t, tt.total)
		assert.Equal(t, tt.requires, po.RequiresApproval(), "total=%v", tt.total)
	}
}

func TestPurchaseOrder_DomainEventsLifecycle(t *testing.T) {
	po := createTestPO(t, 1000)

	events := po.GetDomainEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, EventTypePOCreated, events[0].EventType())

	po.ClearDomainEvents()
	assert.Empty(t, po.GetDomainEvents())

	require.NoError(t, po.TransitionTo(POStatusPending, "", "system"))
	events = po.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypePOStatusChanged, events[0].EventType())
}

func TestPurchaseOrder_ErrorsMatchViaErrorsIs(t *testing.T) {
	err := NewNotFoundError("PO-404")
	assert.ErrorIs(t, err, ErrPONotFound)
	assert.ErrorIs(t, shared.NewDomainError("PO_NOT_FOUND", "other message"), ErrPONotFound)
	assert.NotErrorIs(t, err, ErrAlreadyLocked)
}
