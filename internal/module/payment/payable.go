package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PayableEntity is the capability contract any domain object must satisfy to
// be the subject of a payment. Lifecycle hooks mutate in-memory state only;
// the owning EntitySource persists the entity after a hook runs.
type PayableEntity interface {
	// PayableID returns the entity's identifier.
	PayableID() uuid.UUID

	// PayableEntityType returns the entity type this object registers under.
	PayableEntityType() EntityType

	// PaymentAmount returns the entity's own computed amount for the given
	// payment type, in minor-unit-free XOF. Consulted only when no
	// PaymentConfiguration covers the type.
	PaymentAmount(paymentType PaymentType) int64

	// PaymentDescription returns the human-readable description embedded in
	// the provider transaction and stored on the payment record.
	PaymentDescription() string

	// PayableUserID returns the user associated with the entity, or uuid.Nil.
	PayableUserID() uuid.UUID

	// OnPaymentSuccess transitions the entity to its paid/confirmed state.
	OnPaymentSuccess(ctx context.Context) error

	// OnPaymentFailure transitions the entity to its payment-failed state.
	OnPaymentFailure(ctx context.Context) error

	// OnPaymentCancellation transitions the entity to its canceled state.
	OnPaymentCancellation(ctx context.Context) error
}

// DiscountableEntity marks payable entities that can carry promo codes.
// The reconciliation engine applies or revokes promo usage only for entities
// implementing this interface, checked by type assertion.
type DiscountableEntity interface {
	PayableEntity

	// Discountable is a marker; implementations are no-ops.
	Discountable()
}

// EntitySource loads and persists payable entities of one entity type.
type EntitySource interface {
	// EntityType returns the type this source serves.
	EntityType() EntityType

	// Load returns the entity with the given ID, or ErrEntityNotFound.
	Load(ctx context.Context, id uuid.UUID) (PayableEntity, error)

	// Save persists entity state mutated by a lifecycle hook.
	Save(ctx context.Context, entity PayableEntity) error
}

// EntityResolver maps entity types to their sources.
type EntityResolver struct {
	mu      sync.RWMutex
	sources map[EntityType]EntitySource
}

// NewEntityResolver creates an empty entity resolver.
func NewEntityResolver() *EntityResolver {
	return &EntityResolver{sources: make(map[EntityType]EntitySource)}
}

// Register registers an entity source.
func (r *EntityResolver) Register(source EntitySource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.EntityType()] = source
}

// Source returns the source for an entity type.
func (r *EntityResolver) Source(entityType EntityType) (EntitySource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.sources[entityType]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return source, nil
}

// Resolve loads the concrete entity for (entityType, entityID).
func (r *EntityResolver) Resolve(ctx context.Context, entityType EntityType, entityID uuid.UUID) (PayableEntity, error) {
	source, err := r.Source(entityType)
	if err != nil {
		return nil, err
	}
	return source.Load(ctx, entityID)
}
