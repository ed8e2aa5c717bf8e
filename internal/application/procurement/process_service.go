package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/popr/backend/internal/domain/procurement"
	"go.uber.org/zap"
)

// ProcessService orchestrates the full purchase order lifecycle: fetch,
// validate, lock, ERP sync, reconcile, approve, invoice, complete.
// It holds no business rules of its own; every decision is delegated to
// the aggregate, the reconciliation engine or the approval policy.
type ProcessService struct {
	repo     procurement.Repository
	gateway  ERPGateway
	notifier Notifier
	engine   *procurement.ReconciliationEngine
	policy   procurement.ApprovalPolicy
	logger   *zap.Logger

	lockDuration     time.Duration
	skipExternalLock bool
}

// NewProcessService creates a ProcessService
func NewProcessService(repo procurement.Repository, gateway ERPGateway, notifier Notifier, logger *zap.Logger) *ProcessService {
	return &ProcessService{
		repo:         repo,
		gateway:      gateway,
		notifier:     notifier,
		engine:       procurement.NewReconciliationEngine(),
		policy:       procurement.DefaultApprovalPolicy(),
		logger:       logger,
		lockDuration: procurement.DefaultLockDuration,
	}
}

// SetLockDuration overrides the processing lock lifetime
func (s *ProcessService) SetLockDuration(d time.Duration) {
	if d > 0 {
		s.lockDuration = d
	}
}

// SetSkipExternalLock disables ERP-side document locks for every run
func (s *ProcessService) SetSkipExternalLock(skip bool) {
	s.skipExternalLock = skip
}

// Execute runs the purchase order through the processing pipeline.
// The returned result is populated on failure as well; a non-nil error
// carries the domain error for callers that map error codes.
func (s *ProcessService) Execute(ctx context.Context, cmd ProcessCommand) (*ProcessResult, error) {
	start := time.Now()
	result := &ProcessResult{
		PONumber:       cmd.PONumber,
		ApprovalStatus: ApprovalStatusNone,
	}

	s.logger.Info("processing purchase order",
		zap.String("po_number", cmd.PONumber),
		zap.String("actor", cmd.Actor))

	// Step 1: fetch
	po, err := s.repo.FindByPONumber(ctx, cmd.PONumber)
	if err != nil {
		return s.fail(ctx, nil, result, cmd.Actor, start, err)
	}

	// An errored order is requeued before a fresh attempt
	if po.Status == procurement.POStatusError {
		if err := po.TransitionTo(procurement.POStatusPending, "Requeue after error", cmd.Actor); err != nil {
			return s.fail(ctx, po, result, cmd.Actor, start, err)
		}
		if err := s.repo.SaveWithLock(ctx, po); err != nil {
			return s.fail(ctx, po, result, cmd.Actor, start, err)
		}
	}
	result.EventsPublished++

	// Step 2: validate
	if violations := po.Validate(); len(violations) > 0 {
		s.logger.Warn("purchase order failed validation",
			zap.String("po_number", po.PONumber),
			zap.Strings("violations", violations))

		po.ForceTransition(procurement.POStatusError,
			fmt.Sprintf("Validation failed: %s", strings.Join(violations, "; ")), cmd.Actor)
		if saveErr := s.repo.SaveWithLock(ctx, po); saveErr != nil {
			s.logger.Error("failed to persist validation failure", zap.Error(saveErr))
		}

		result.FinalStatus = po.Status
		result.Message = "Validation failed"
		result.Errors = violations
		result.ElapsedSeconds = time.Since(start).Seconds()
		return result, procurement.NewValidationError(po.PONumber, violations)
	}
	result.ValidationPassed = true
	result.EventsPublished++

	// Step 3: lock and mark processing
	if err := po.AcquireLock(cmd.Actor, s.lockDuration); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.EventsPublished++

	if err := po.TransitionTo(procurement.POStatusProcessing, "Starting processing", cmd.Actor); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.EventsPublished++

	// Step 4: ERP-side document lock, best effort
	if !cmd.SkipExternalLock && !s.skipExternalLock && po.ERPDocNumber != "" {
		if err := s.gateway.LockDocument(ctx, po.ERPDocNumber); err != nil {
			s.logger.Warn("failed to lock ERP document",
				zap.String("po_number", po.PONumber),
				zap.String("erp_doc_number", po.ERPDocNumber),
				zap.Error(err))
		} else {
			result.EventsPublished++
		}
	}

	// Step 5: fetch ERP snapshot
	snapshot, err := s.gateway.GetSnapshot(ctx, po.PONumber)
	if err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	po.MergeERPLinkage(snapshot.DocNumber, snapshot.FiscalYear, snapshot.Raw)
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.ERPSyncCompleted = true
	result.EventsPublished++

	// Step 6: reconcile
	if err := po.TransitionTo(procurement.POStatusReconciling, "Starting reconciliation", cmd.Actor); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.EventsPublished++

	recon := s.engine.Reconcile(po, snapshot)
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.EventsPublished++

	if !recon.Passed {
		s.logger.Warn("reconciliation failed",
			zap.String("po_number", po.PONumber),
			zap.Strings("discrepancies", recon.Discrepancies))

		result.FinalStatus = po.Status
		result.Message = "Reconciliation failed"
		result.Errors = recon.Discrepancies
		result.ElapsedSeconds = time.Since(start).Seconds()
		return result, procurement.NewReconciliationError(po.PONumber, recon.Discrepancies)
	}
	result.ReconciliationPassed = true

	// Step 7: approval
	if s.policy.RequiresApproval(po) || cmd.ForceManualApproval {
		reason := fmt.Sprintf("Amount %s requires approval", po.TotalAmount)
		if err := po.TransitionTo(procurement.POStatusAwaitingApproval, reason, cmd.Actor); err != nil {
			return s.fail(ctx, po, result, cmd.Actor, start, err)
		}
		if err := s.repo.SaveWithLock(ctx, po); err != nil {
			return s.fail(ctx, po, result, cmd.Actor, start, err)
		}
		result.EventsPublished++

		if err := s.notifier.NotifyApprovalRequired(ctx, po); err != nil {
			s.logger.Warn("failed to send approval notification", zap.Error(err))
		} else {
			result.EventsPublished++
		}

		s.logger.Info("purchase order awaiting manual approval",
			zap.String("po_number", po.PONumber),
			zap.String("total_amount", po.TotalAmount.String()))

		result.Success = true
		result.FinalStatus = po.Status
		result.Message = "PO awaiting manual approval"
		result.ApprovalStatus = ApprovalStatusPending
		result.ElapsedSeconds = time.Since(start).Seconds()
		return result, nil
	}

	if err := po.Approve("system", "Auto-approved (below threshold)"); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.ApprovalStatus = ApprovalStatusAuto
	result.EventsPublished++

	// Step 8: invoice, best effort
	if invoice, err := s.gateway.PostInvoice(ctx, po.PONumber, po.TotalAmount.String()); err != nil {
		s.logger.Error("failed to post invoice",
			zap.String("po_number", po.PONumber),
			zap.Error(err))
	} else {
		s.logger.Info("invoice posted",
			zap.String("po_number", po.PONumber),
			zap.String("invoice_number", invoice))
		result.InvoiceNumber = invoice
		result.InvoicePosted = true
		result.EventsPublished++
	}

	// Step 9: complete
	if err := po.TransitionTo(procurement.POStatusCompleted, "Processing completed", cmd.Actor); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.EventsPublished++

	// Step 10: release locks
	if err := po.ReleaseLock(cmd.Actor); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	if err := s.repo.SaveWithLock(ctx, po); err != nil {
		return s.fail(ctx, po, result, cmd.Actor, start, err)
	}
	result.EventsPublished++

	if po.ERPDocNumber != "" {
		if err := s.gateway.UnlockDocument(ctx, po.ERPDocNumber); err != nil {
			s.logger.Warn("failed to unlock ERP document", zap.Error(err))
		}
	}

	// Step 11: notify
	if cmd.NotifyOnComplete {
		if err := s.notifier.NotifyCompleted(ctx, po); err != nil {
			s.logger.Warn("failed to send completion notification", zap.Error(err))
		} else {
			result.EventsPublished++
		}
	}

	result.Success = true
	result.FinalStatus = po.Status
	result.Message = fmt.Sprintf("PO %s processed successfully", po.PONumber)
	result.ElapsedSeconds = time.Since(start).Seconds()

	s.logger.Info("purchase order processed",
		zap.String("po_number", po.PONumber),
		zap.Float64("elapsed_seconds", result.ElapsedSeconds))

	return result, nil
}

// fail converts any failure into an ERROR-state order plus a structured
// result. Cleanup here is best effort; the original error always wins.
// When another actor holds a live lock the aggregate is left untouched,
// so a competing run can never evict the holder or persist ERROR over
// its progress.
func (s *ProcessService) fail(ctx context.Context, po *procurement.PurchaseOrder, result *ProcessResult, actor string, start time.Time, cause error) (*ProcessResult, error) {
	s.logger.Error("purchase order processing failed",
		zap.String("po_number", result.PONumber),
		zap.Error(cause))

	if po != nil {
		if po.IsLocked() && po.LockedBy != actor {
			s.logger.Warn("skipping error-state cleanup, lock held by another actor",
				zap.String("po_number", po.PONumber),
				zap.String("locked_by", po.LockedBy))
		} else {
			if !po.Status.IsTerminal() && po.Status != procurement.POStatusError {
				po.ForceTransition(procurement.POStatusError, cause.Error(), actor)
			}
			if po.IsLocked() {
				if err := po.ReleaseLock(actor); err != nil {
					s.logger.Warn("failed to release processing lock", zap.Error(err))
				}
			}
			if err := s.repo.SaveWithLock(ctx, po); err != nil {
				s.logger.Error("failed to persist error state", zap.Error(err))
			}
		}
		result.FinalStatus = po.Status
	}

	if err := s.notifier.NotifyError(ctx, result.PONumber, cause); err != nil {
		s.logger.Warn("failed to send error notification", zap.Error(err))
	}

	result.Success = false
	result.Message = fmt.Sprintf("Error processing PO: %s", cause.Error())
	result.Errors = append(result.Errors, cause.Error())
	result.ElapsedSeconds = time.Since(start).Seconds()

	return result, cause
}
