package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bellecare/server/internal/module/payment/domain"
	"github.com/bellecare/server/internal/shared/metrics"
)

// memRepo is an in-memory payment repository keyed by reference.
type memRepo struct {
	payments map[string]*Payment
	configs  map[PaymentType]*PaymentConfiguration
}

func newMemRepo(payments ...*Payment) *memRepo {
	r := &memRepo{
		payments: make(map[string]*Payment),
		configs:  make(map[PaymentType]*PaymentConfiguration),
	}
	for _, p := range payments {
		r.payments[p.Reference] = p
	}
	return r
}

func (r *memRepo) Create(_ context.Context, p *Payment) error {
	r.payments[p.Reference] = p
	return nil
}

func (r *memRepo) GetByReference(_ context.Context, reference string) (*Payment, error) {
	p, ok := r.payments[reference]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) GetByReferenceForUpdate(ctx context.Context, reference string) (*Payment, error) {
	return r.GetByReference(ctx, reference)
}

func (r *memRepo) Update(_ context.Context, p *Payment) error {
	r.payments[p.Reference] = p
	return nil
}

func (r *memRepo) WithTransaction(_ context.Context, fn func(Repository) error) error {
	return fn(r)
}

func (r *memRepo) GetConfiguration(_ context.Context, paymentType PaymentType) (*PaymentConfiguration, error) {
	return r.configs[paymentType], nil
}

// fakeEntity tracks which lifecycle hooks fired.
type fakeEntity struct {
	id           uuid.UUID
	entityType   EntityType
	userID       uuid.UUID
	amount       int64
	hookErr      error
	successCalls int
	failureCalls int
	cancelCalls  int
}

func (e *fakeEntity) PayableID() uuid.UUID             { return e.id }
func (e *fakeEntity) PayableEntityType() EntityType    { return e.entityType }
func (e *fakeEntity) PaymentAmount(PaymentType) int64  { return e.amount }
func (e *fakeEntity) PaymentDescription() string       { return "test entity" }
func (e *fakeEntity) PayableUserID() uuid.UUID         { return e.userID }
func (e *fakeEntity) OnPaymentSuccess(context.Context) error {
	e.successCalls++
	return e.hookErr
}
func (e *fakeEntity) OnPaymentFailure(context.Context) error {
	e.failureCalls++
	return e.hookErr
}
func (e *fakeEntity) OnPaymentCancellation(context.Context) error {
	e.cancelCalls++
	return e.hookErr
}

// fakeDiscountableEntity additionally carries the promo marker.
type fakeDiscountableEntity struct {
	fakeEntity
}

func (e *fakeDiscountableEntity) Discountable() {}

// fakeSource serves fake entities and counts saves.
type fakeSource struct {
	entityType EntityType
	entities   map[uuid.UUID]PayableEntity
	saveErr    error
	saveCalls  int
}

func (s *fakeSource) EntityType() EntityType { return s.entityType }

func (s *fakeSource) Load(_ context.Context, id uuid.UUID) (PayableEntity, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e, nil
}

func (s *fakeSource) Save(context.Context, PayableEntity) error {
	s.saveCalls++
	return s.saveErr
}

// fakePromo records compensation calls.
type fakePromo struct {
	attemptCalls int
	applyCalls   int
	revokeCalls  int
	lastReason   string
	lastCode     string
	attemptErr   error
	applyErr     error
	discount     int64
	application  *PromoApplication
}

func (p *fakePromo) RecordAttempt(_ context.Context, code, _ string, _, _ uuid.UUID, originalAmount int64) (*PromoAttempt, error) {
	p.attemptCalls++
	p.lastCode = code
	if p.attemptErr != nil {
		return nil, p.attemptErr
	}
	return &PromoAttempt{
		DiscountAmount: p.discount,
		FinalAmount:    originalAmount - p.discount,
	}, nil
}

func (p *fakePromo) ApplyPending(context.Context, string, uuid.UUID) (*PromoApplication, error) {
	p.applyCalls++
	if p.applyErr != nil {
		return nil, p.applyErr
	}
	if p.application != nil {
		return p.application, nil
	}
	return &PromoApplication{Applied: true}, nil
}

func (p *fakePromo) Revoke(_ context.Context, _ string, _ uuid.UUID, reason string) error {
	p.revokeCalls++
	p.lastReason = reason
	return nil
}

// fakeNotifier counts outcome notifications.
type fakeNotifier struct {
	succeeded int
	failed    int
}

func (n *fakeNotifier) PaymentSucceeded(context.Context, *Payment) { n.succeeded++ }
func (n *fakeNotifier) PaymentFailed(context.Context, *Payment)    { n.failed++ }

type reconcilerFixture struct {
	repo       *memRepo
	entity     *fakeDiscountableEntity
	source     *fakeSource
	promo      *fakePromo
	notifier   *fakeNotifier
	reconciler *Reconciler
}

func newReconcilerFixture(t *testing.T, record *Payment) *reconcilerFixture {
	t.Helper()

	entity := &fakeDiscountableEntity{fakeEntity{
		id:         *record.EntityID,
		entityType: record.EntityType,
		userID:     uuid.New(),
		amount:     record.Amount,
	}}
	source := &fakeSource{
		entityType: record.EntityType,
		entities:   map[uuid.UUID]PayableEntity{entity.id: entity},
	}
	entities := NewEntityResolver()
	entities.Register(source)

	repo := newMemRepo(record)
	promo := &fakePromo{}
	notifier := &fakeNotifier{}

	return &reconcilerFixture{
		repo:       repo,
		entity:     entity,
		source:     source,
		promo:      promo,
		notifier:   notifier,
		reconciler: NewReconciler(repo, entities, promo, notifier, nil, zap.NewNop()),
	}
}

func pendingPayment(provider domain.Provider, entityType EntityType) *Payment {
	entityID := uuid.New()
	return &Payment{
		ID:          uuid.New(),
		Provider:    provider,
		PaymentType: PaymentTypeRendezvousAdvance,
		EntityType:  entityType,
		EntityID:    &entityID,
		Amount:      5000,
		Currency:    "XOF",
		Status:      domain.StatusPending,
		Reference:   "PAY-TEST123",
	}
}

func TestProcessFeexpaySuccess(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, domain.StatusPending, result.OldStatus)
	assert.Equal(t, domain.StatusSuccessful, result.NewStatus)
	assert.Equal(t, 1, f.entity.successCalls)
	assert.Equal(t, 1, f.source.saveCalls)
	assert.Equal(t, 1, f.promo.applyCalls)
	assert.Equal(t, 1, f.notifier.succeeded)
	assert.Equal(t, 0, f.notifier.failed)
}

func TestProcessDuplicateDeliveryIsIdempotent(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	event := StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	}

	first, err := f.reconciler.Process(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := f.reconciler.Process(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, second.Changed)

	// Side effects fire exactly once despite the redelivery.
	assert.Equal(t, 1, f.entity.successCalls)
	assert.Equal(t, 1, f.promo.applyCalls)
	assert.Equal(t, 1, f.notifier.succeeded)
}

func TestProcessSettledAmountOverridesRecord(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	settled := int64(4950)
	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
		Amount:    &settled,
	})
	require.NoError(t, err)
	assert.Equal(t, settled, result.Payment.Amount)

	// The amount refreshes even when the status does not change.
	adjusted := int64(5000)
	result, err = f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
		Amount:    &adjusted,
	})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, adjusted, result.Payment.Amount)
}

func TestProcessUnknownReference(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	_, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: "PAY-NOSUCH",
		RawStatus: "SUCCESSFUL",
	})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.Equal(t, 0, f.entity.successCalls)
}

func TestProcessFedapayDeclineRevokesPromo(t *testing.T) {
	record := pendingPayment(domain.ProviderFedapay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFedapay,
		Reference: record.Reference,
		RawStatus: "declined",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDeclined, result.NewStatus)
	assert.Equal(t, domain.ClassFailed, result.NewStatus.Class())
	assert.Equal(t, 1, f.entity.failureCalls)
	assert.Equal(t, 1, f.promo.revokeCalls)
	assert.Equal(t, "payment failed", f.promo.lastReason)
	assert.Equal(t, 1, f.notifier.failed)
}

func TestProcessCancellationRevokesPromo(t *testing.T) {
	record := pendingPayment(domain.ProviderFedapay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFedapay,
		Reference: record.Reference,
		RawStatus: "canceled",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ClassCanceled, result.NewStatus.Class())
	assert.Equal(t, 1, f.entity.cancelCalls)
	assert.Equal(t, 1, f.promo.revokeCalls)
	assert.Equal(t, "payment canceled", f.promo.lastReason)
	// Cancellation is not a failure notification.
	assert.Equal(t, 0, f.notifier.failed)
}

func TestProcessUnrecognizedStatusMapsToInvalid(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SOMETHING_NEW",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInvalid, result.NewStatus)
	// Invalid never fires entity hooks.
	assert.Equal(t, 0, f.entity.successCalls)
	assert.Equal(t, 0, f.entity.failureCalls)
	assert.Equal(t, 0, f.promo.applyCalls)
}

func TestProcessLateReportCannotRegress(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	_, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)

	// A stale pending report delivered after settlement is ignored.
	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "PENDING",
	})
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, domain.StatusSuccessful, result.NewStatus)

	stored, err := f.repo.GetByReference(context.Background(), record.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, stored.Status)
	assert.Equal(t, 1, f.entity.successCalls)
}

func TestProcessOrphanSkipsSideEffects(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeOrphan)
	f := newReconcilerFixture(t, record)

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, domain.StatusSuccessful, result.NewStatus)
	assert.Equal(t, 0, f.entity.successCalls)
	assert.Equal(t, 0, f.promo.applyCalls)
	assert.Equal(t, 0, f.notifier.succeeded)
}

func TestProcessSwallowsEntityHookFailure(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)
	f.entity.hookErr = errors.New("appointment table locked")

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)
	assert.True(t, result.Changed)

	// The status write stands; the failed hook never blocks it.
	stored, err := f.repo.GetByReference(context.Background(), record.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, stored.Status)
	// The entity was never saved after the failed hook.
	assert.Equal(t, 0, f.source.saveCalls)
	// Promo and notification still run.
	assert.Equal(t, 1, f.promo.applyCalls)
	assert.Equal(t, 1, f.notifier.succeeded)
}

func TestProcessSwallowsEntitySaveFailure(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)
	f.source.saveErr = errors.New("connection reset")

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, result.NewStatus)
	assert.Equal(t, 1, f.notifier.succeeded)
}

func TestProcessSwallowsPromoFailure(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)
	f.promo.applyErr = errors.New("promo store unavailable")

	result, err := f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)
	assert.True(t, result.Changed)

	stored, err := f.repo.GetByReference(context.Background(), record.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, stored.Status)
	assert.Equal(t, 1, f.entity.successCalls)
	assert.Equal(t, 1, f.notifier.succeeded)
}

func TestProcessCountsOnlyRealTransitions(t *testing.T) {
	record := pendingPayment(domain.ProviderFeexpay, EntityTypeRendezvous)
	f := newReconcilerFixture(t, record)

	m := metrics.New(prometheus.NewRegistry())
	f.reconciler = NewReconciler(f.repo, entityResolverFor(f.source), f.promo, f.notifier, m, zap.NewNop())

	event := StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	}
	_, err := f.reconciler.Process(context.Background(), event)
	require.NoError(t, err)

	// A duplicate delivery and an illegal regression report are not transitions.
	_, err = f.reconciler.Process(context.Background(), event)
	require.NoError(t, err)
	_, err = f.reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "PENDING",
	})
	require.NoError(t, err)

	counter := m.PaymentTransitions.WithLabelValues("feexpay", "successful")
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

func entityResolverFor(source EntitySource) *EntityResolver {
	entities := NewEntityResolver()
	entities.Register(source)
	return entities
}

func TestProcessNonDiscountableEntitySkipsPromo(t *testing.T) {
	entityID := uuid.New()
	record := &Payment{
		ID:          uuid.New(),
		Provider:    domain.ProviderFeexpay,
		PaymentType: PaymentTypeFormationFull,
		EntityType:  EntityTypeFormation,
		EntityID:    &entityID,
		Amount:      20000,
		Status:      domain.StatusPending,
		Reference:   "PAY-FORMATION1",
	}

	entity := &fakeEntity{id: entityID, entityType: EntityTypeFormation, amount: 20000}
	source := &fakeSource{
		entityType: EntityTypeFormation,
		entities:   map[uuid.UUID]PayableEntity{entityID: entity},
	}
	entities := NewEntityResolver()
	entities.Register(source)

	promo := &fakePromo{}
	notifier := &fakeNotifier{}
	reconciler := NewReconciler(newMemRepo(record), entities, promo, notifier, nil, zap.NewNop())

	_, err := reconciler.Process(context.Background(), StatusEvent{
		Provider:  domain.ProviderFeexpay,
		Reference: record.Reference,
		RawStatus: "SUCCESSFUL",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, entity.successCalls)
	assert.Equal(t, 0, promo.applyCalls)
	assert.Equal(t, 1, notifier.succeeded)
}
