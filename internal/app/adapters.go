package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bellecare/server/internal/module/payment"
	"github.com/bellecare/server/internal/module/promo"
)

// promoCompensator adapts the promo service to the payment module's
// compensation port, keeping the two modules decoupled.
type promoCompensator struct {
	service *promo.Service
}

func (a *promoCompensator) RecordAttempt(ctx context.Context, code, entityType string, entityID, userID uuid.UUID, originalAmount int64) (*payment.PromoAttempt, error) {
	usage, err := a.service.RecordAttempt(ctx, code, entityType, entityID, userID, originalAmount)
	if err != nil {
		if errors.Is(err, promo.ErrCodeNotFound) {
			return nil, payment.ErrPromoCodeInvalid
		}
		return nil, err
	}
	return &payment.PromoAttempt{
		DiscountAmount: usage.DiscountAmount,
		FinalAmount:    usage.FinalAmount,
	}, nil
}

func (a *promoCompensator) ApplyPending(ctx context.Context, entityType string, entityID uuid.UUID) (*payment.PromoApplication, error) {
	result, err := a.service.ApplyPending(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return &payment.PromoApplication{
		Applied: result.Applied,
		Message: result.Message,
	}, nil
}

func (a *promoCompensator) Revoke(ctx context.Context, entityType string, entityID uuid.UUID, reason string) error {
	return a.service.Revoke(ctx, entityType, entityID, reason)
}
