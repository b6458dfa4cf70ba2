package payment

import (
	"context"

	"github.com/google/uuid"
)

// allowedCombinations is the closed allow-list of legal
// (paymentType, entityType) pairs. Anything absent is invalid.
var allowedCombinations = map[PaymentType]map[EntityType]bool{
	PaymentTypeRendezvousAdvance: {EntityTypeRendezvous: true},
	PaymentTypeFormationFull:     {EntityTypeFormation: true},
	PaymentTypeFormationAdvance:  {EntityTypeFormation: true},
	PaymentTypeCustom: {
		EntityTypeRendezvous: true,
		EntityTypeFormation:  true,
	},
}

// TypeResolver translates a (paymentType, entityType, entityId) tuple from a
// payment-init request into a concrete entity, a payer and an amount. Pure
// resolution: all persistence happens in callers.
type TypeResolver struct {
	entities *EntityResolver
	repo     Repository
}

// NewTypeResolver creates a payment type resolver.
func NewTypeResolver(entities *EntityResolver, repo Repository) *TypeResolver {
	return &TypeResolver{entities: entities, repo: repo}
}

// ValidatePaymentTypeForEntity enforces the combination allow-list.
// Fails closed: unknown combinations are invalid.
func (r *TypeResolver) ValidatePaymentTypeForEntity(paymentType PaymentType, entityType EntityType) bool {
	return allowedCombinations[paymentType][entityType]
}

// ResolveEntity looks up the concrete entity for (entityType, entityID).
func (r *TypeResolver) ResolveEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID) (PayableEntity, error) {
	return r.entities.Resolve(ctx, entityType, entityID)
}

// ResolvePayer returns the user billed for the payment: the entity's own
// associated user when present, else the currently authenticated user.
func (r *TypeResolver) ResolvePayer(entity PayableEntity, currentUser uuid.UUID) (uuid.UUID, error) {
	if id := entity.PayableUserID(); id != uuid.Nil {
		return id, nil
	}
	if currentUser != uuid.Nil {
		return currentUser, nil
	}
	return uuid.Nil, ErrNoPayerResolvable
}

// Amount computes the payment amount: the configured pricing row wins; when
// absent or zero the entity's own computed amount applies. A zero result
// means "not configured" and callers must treat it as a hard failure, never
// as a free transaction.
func (r *TypeResolver) Amount(ctx context.Context, paymentType PaymentType, entity PayableEntity) (int64, error) {
	cfg, err := r.repo.GetConfiguration(ctx, paymentType)
	if err != nil {
		return 0, err
	}
	if cfg != nil && cfg.Amount > 0 {
		return cfg.Amount, nil
	}
	return entity.PaymentAmount(paymentType), nil
}

// Description returns the human-readable description for the transaction.
func (r *TypeResolver) Description(entity PayableEntity) string {
	return entity.PaymentDescription()
}
