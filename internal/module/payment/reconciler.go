package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bellecare/server/internal/module/payment/domain"
	"github.com/bellecare/server/internal/shared/metrics"
)

// StatusEvent is the canonical shape of one provider status report, whether
// it arrived by webhook push or polling pull. Both channels funnel through
// Reconciler.Process; that is the invariant that keeps the two paths from
// diverging.
type StatusEvent struct {
	Provider  domain.Provider
	Reference string
	RawStatus string
	// Amount is the settled amount when the provider reported one. Providers
	// may settle a different amount than requested (fees, rounding); the
	// settled amount is authoritative.
	Amount *int64
}

// TransitionResult describes the outcome of processing one status event.
type TransitionResult struct {
	Payment   *Payment
	OldStatus domain.Status
	NewStatus domain.Status
	Changed   bool
}

// Reconciler is the payment state machine. It performs idempotent status
// transitions, invokes entity lifecycle hooks and drives promo-code
// compensation.
type Reconciler struct {
	repo     Repository
	entities *EntityResolver
	promo    PromoCompensator
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewReconciler creates a reconciliation engine.
func NewReconciler(
	repo Repository,
	entities *EntityResolver,
	promo PromoCompensator,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		repo:     repo,
		entities: entities,
		promo:    promo,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// Process applies one status event to its payment record.
//
// The status write happens under a row-level write lock in its own
// transaction. Entity hooks and promo compensation run after commit and only
// when the status actually changed; their failures are logged and swallowed
// because the record must keep reflecting provider truth even when local side
// effects partially fail. Repair of such partial failures is the job of
// out-of-band reconciliation tooling.
func (r *Reconciler) Process(ctx context.Context, event StatusEvent) (*TransitionResult, error) {
	var result TransitionResult

	err := r.repo.WithTransaction(ctx, func(txRepo Repository) error {
		record, err := txRepo.GetByReferenceForUpdate(ctx, event.Reference)
		if err != nil {
			return err
		}

		result.OldStatus = record.Status
		result.NewStatus = domain.Normalize(event.Provider, event.RawStatus)

		// An out-of-order or conflicting report cannot move the record
		// backward; the recorded truth stands untouched.
		if !result.OldStatus.CanTransitionTo(result.NewStatus) {
			r.logger.Warn("illegal status transition ignored",
				zap.String("reference", record.Reference),
				zap.String("current", string(result.OldStatus)),
				zap.String("reported", string(result.NewStatus)),
			)
			result.NewStatus = result.OldStatus
			result.Payment = record
			return nil
		}

		// The settled amount refreshes even when the status does not change.
		if event.Amount != nil {
			record.Amount = *event.Amount
		}
		record.Status = result.NewStatus
		record.UpdatedAt = time.Now()

		if err := txRepo.Update(ctx, record); err != nil {
			return err
		}

		result.Payment = record
		result.Changed = result.OldStatus != result.NewStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Idempotency guard: repeated deliveries of the same terminal status are
	// no-ops beyond the timestamp/amount refresh above. The transition counter
	// moves only when the status actually did.
	if result.Changed {
		if r.metrics != nil {
			r.metrics.PaymentTransitions.WithLabelValues(string(event.Provider), string(result.NewStatus)).Inc()
		}
		r.runSideEffects(ctx, &result)
	}

	return &result, nil
}

// runSideEffects dispatches the entity lifecycle hook, promo compensation and
// notifications for a transition that changed the status.
func (r *Reconciler) runSideEffects(ctx context.Context, result *TransitionResult) {
	record := result.Payment

	log := r.logger.With(
		zap.String("payment_id", record.ID.String()),
		zap.String("reference", record.Reference),
		zap.String("old_status", string(result.OldStatus)),
		zap.String("new_status", string(result.NewStatus)),
	)

	if record.EntityType == EntityTypeOrphan || record.EntityID == nil {
		log.Info("orphan payment transitioned, no entity side effects")
		return
	}

	source, err := r.entities.Source(record.EntityType)
	if err != nil {
		log.Error("no entity source for payment", zap.String("entity_type", string(record.EntityType)))
		r.countSideEffectFailure("entity_source")
		return
	}

	entity, err := source.Load(ctx, *record.EntityID)
	if err != nil {
		log.Error("load payable entity failed", zap.Error(err))
		r.countSideEffectFailure("entity_load")
		return
	}

	switch result.NewStatus.Class() {
	case domain.ClassSuccessful:
		r.onSuccess(ctx, log, record, entity, source)
	case domain.ClassFailed:
		r.onFailure(ctx, log, record, entity, source, "payment failed")
	case domain.ClassCanceled:
		r.onCancellation(ctx, log, record, entity, source)
	default:
		// pending, invalid, refunded, transferred: no entity hook.
	}
}

func (r *Reconciler) onSuccess(ctx context.Context, log *zap.Logger, record *Payment, entity PayableEntity, source EntitySource) {
	if err := entity.OnPaymentSuccess(ctx); err != nil {
		log.Error("entity success hook failed", zap.Error(err))
		r.countSideEffectFailure("entity_hook")
	} else if err := source.Save(ctx, entity); err != nil {
		log.Error("persist entity after success hook failed", zap.Error(err))
		r.countSideEffectFailure("entity_save")
	}

	// Promo codes are applied only at confirmed success, never at initiation,
	// so abandoned payments cannot consume usage slots.
	if _, ok := entity.(DiscountableEntity); ok && r.promo != nil {
		application, err := r.promo.ApplyPending(ctx, string(record.EntityType), *record.EntityID)
		if err != nil {
			log.Error("promo application failed", zap.Error(err))
			r.countSideEffectFailure("promo_apply")
		} else if application != nil && !application.Applied && application.Message != "" {
			log.Warn("promo code not applied", zap.String("reason", application.Message))
		}
	}

	if r.notifier != nil {
		r.notifier.PaymentSucceeded(ctx, record)
	}
}

func (r *Reconciler) onFailure(ctx context.Context, log *zap.Logger, record *Payment, entity PayableEntity, source EntitySource, reason string) {
	if err := entity.OnPaymentFailure(ctx); err != nil {
		log.Error("entity failure hook failed", zap.Error(err))
		r.countSideEffectFailure("entity_hook")
	} else if err := source.Save(ctx, entity); err != nil {
		log.Error("persist entity after failure hook failed", zap.Error(err))
		r.countSideEffectFailure("entity_save")
	}

	r.revokePromo(ctx, log, record, entity, reason)

	if r.notifier != nil {
		r.notifier.PaymentFailed(ctx, record)
	}
}

func (r *Reconciler) onCancellation(ctx context.Context, log *zap.Logger, record *Payment, entity PayableEntity, source EntitySource) {
	if err := entity.OnPaymentCancellation(ctx); err != nil {
		log.Error("entity cancellation hook failed", zap.Error(err))
		r.countSideEffectFailure("entity_hook")
	} else if err := source.Save(ctx, entity); err != nil {
		log.Error("persist entity after cancellation hook failed", zap.Error(err))
		r.countSideEffectFailure("entity_save")
	}

	r.revokePromo(ctx, log, record, entity, "payment canceled")
}

// revokePromo frees a validated usage slot when the payment did not complete.
func (r *Reconciler) revokePromo(ctx context.Context, log *zap.Logger, record *Payment, entity PayableEntity, reason string) {
	if _, ok := entity.(DiscountableEntity); !ok || r.promo == nil {
		return
	}
	if err := r.promo.Revoke(ctx, string(record.EntityType), *record.EntityID, reason); err != nil {
		log.Error("promo revocation failed", zap.Error(err))
		r.countSideEffectFailure("promo_revoke")
	}
}

func (r *Reconciler) countSideEffectFailure(stage string) {
	if r.metrics != nil {
		r.metrics.SideEffectFailures.WithLabelValues(stage).Inc()
	}
}
