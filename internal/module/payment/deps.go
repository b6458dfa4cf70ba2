package payment

import (
	"context"

	"github.com/google/uuid"
)

// PromoApplication is the outcome of applying a pending promo code. A code
// that is expired or over its cap at application time is a business condition,
// not an error; the payment itself stays successful.
type PromoApplication struct {
	Applied bool
	Message string
}

// PromoAttempt is the priced outcome of registering a promo code at payment
// initiation. FinalAmount is what the provider is asked to charge.
type PromoAttempt struct {
	DiscountAmount int64
	FinalAmount    int64
}

// PromoCompensator keeps promo-code usage consistent with payment outcome.
// The interface is defined here, in the consumer, so the payment module does
// not depend on the promo module's concrete types.
type PromoCompensator interface {
	// RecordAttempt registers a promo code against an entity at initiation
	// time and prices the discount. The code is not counted yet; confirmation
	// happens only when the payment succeeds. An unknown code returns
	// ErrPromoCodeInvalid.
	RecordAttempt(ctx context.Context, code, entityType string, entityID, userID uuid.UUID, originalAmount int64) (*PromoAttempt, error)

	// ApplyPending validates and confirms the entity's attempted promo usage.
	// Called only on confirmed payment success.
	ApplyPending(ctx context.Context, entityType string, entityID uuid.UUID) (*PromoApplication, error)

	// Revoke transitions the entity's validated promo usage to revoked and
	// frees its usage slot. reason is appended to the usage audit note.
	Revoke(ctx context.Context, entityType string, entityID uuid.UUID, reason string) error
}

// Notifier sends payment outcome notifications to the payer and the salon
// operator. Message content and delivery are external collaborators.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, payment *Payment)
	PaymentFailed(ctx context.Context, payment *Payment)
}
