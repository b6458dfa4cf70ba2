package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplicationResult is the outcome of applying a pending promo code. An
// expired or exhausted code at application time is a business condition, not
// a system error; the payment that triggered the application stays successful.
type ApplicationResult struct {
	Applied bool
	Message string
	Usage   *Usage
}

// Service keeps promo-code usage counters and usage records consistent with
// payment outcome. Application happens only at confirmed payment success;
// revocation frees the slot when a payment fails or is canceled.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a promo service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// RecordAttempt registers a promo code against an entity at booking time.
// The code is not counted yet; it is confirmed only when the payment succeeds.
func (s *Service) RecordAttempt(ctx context.Context, codeValue, entityType string, entityID, userID uuid.UUID, originalAmount int64) (*Usage, error) {
	code, err := s.repo.GetCodeByValue(ctx, codeValue)
	if err != nil {
		return nil, err
	}

	discount := originalAmount * int64(code.DiscountPercent) / 100
	usage := &Usage{
		ID:             uuid.New(),
		PromoCodeID:    code.ID,
		UserID:         userID,
		EntityType:     entityType,
		EntityID:       entityID,
		Status:         UsageAttempted,
		OriginalAmount: originalAmount,
		DiscountAmount: discount,
		FinalAmount:    originalAmount - discount,
		AttemptedAt:    s.now(),
	}
	if err := s.repo.CreateUsage(ctx, usage); err != nil {
		return nil, err
	}
	return usage, nil
}

// ApplyPending confirms the entity's attempted promo usage. Validity window
// and usage caps are checked at the moment of application, not at initiation,
// so caps reflect concurrent consumption.
func (s *Service) ApplyPending(ctx context.Context, entityType string, entityID uuid.UUID) (*ApplicationResult, error) {
	usage, err := s.repo.GetUsageByEntity(ctx, entityType, entityID, UsageAttempted)
	if err != nil {
		if errors.Is(err, ErrUsageNotFound) {
			return &ApplicationResult{Applied: false}, nil
		}
		return nil, err
	}

	code, err := s.repo.GetCode(ctx, usage.PromoCodeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !code.WithinWindow(now) {
		return s.rejectUsage(ctx, usage, "promo code expired or inactive at payment time")
	}
	if !code.HasCapacity() {
		return s.rejectUsage(ctx, usage, "promo code usage cap reached")
	}

	err = s.repo.WithTransaction(ctx, func(txRepo Repository) error {
		usage.Status = UsageValidated
		usage.ValidatedAt = &now
		usage.UpdatedAt = now
		if err := txRepo.UpdateUsage(ctx, usage); err != nil {
			return err
		}
		return txRepo.AdjustUsageCounter(ctx, code.ID, 1)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("promo code applied",
		zap.String("code", code.Code),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID.String()),
	)
	return &ApplicationResult{Applied: true, Usage: usage}, nil
}

// Revoke transitions the entity's validated usage to revoked and decrements
// the code's counter exactly once. No validated usage is a no-op.
func (s *Service) Revoke(ctx context.Context, entityType string, entityID uuid.UUID, reason string) error {
	usage, err := s.repo.GetUsageByEntity(ctx, entityType, entityID, UsageValidated)
	if err != nil {
		if errors.Is(err, ErrUsageNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	return s.repo.WithTransaction(ctx, func(txRepo Repository) error {
		usage.Status = UsageRevoked
		usage.RevokedAt = &now
		usage.UpdatedAt = now
		usage.Note = appendNote(usage.Note, reason)
		if err := txRepo.UpdateUsage(ctx, usage); err != nil {
			return err
		}
		return txRepo.AdjustUsageCounter(ctx, usage.PromoCodeID, -1)
	})
}

// rejectUsage revokes an attempted usage that failed late validation. The
// counter was never incremented for an attempted usage, so it stays put.
func (s *Service) rejectUsage(ctx context.Context, usage *Usage, reason string) (*ApplicationResult, error) {
	now := s.now()
	usage.Status = UsageRevoked
	usage.RevokedAt = &now
	usage.UpdatedAt = now
	usage.Note = appendNote(usage.Note, reason)
	if err := s.repo.UpdateUsage(ctx, usage); err != nil {
		return nil, err
	}
	return &ApplicationResult{Applied: false, Message: reason, Usage: usage}, nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return fmt.Sprintf("%s; %s", existing, note)
}
