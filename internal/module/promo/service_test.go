package promo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRepo is an in-memory promo repository.
type fakeRepo struct {
	codes  map[uuid.UUID]*PromoCode
	usages []*Usage
}

func newFakeRepo(codes ...*PromoCode) *fakeRepo {
	r := &fakeRepo{codes: make(map[uuid.UUID]*PromoCode)}
	for _, c := range codes {
		r.codes[c.ID] = c
	}
	return r
}

func (r *fakeRepo) GetCode(_ context.Context, id uuid.UUID) (*PromoCode, error) {
	code, ok := r.codes[id]
	if !ok {
		return nil, ErrCodeNotFound
	}
	return code, nil
}

func (r *fakeRepo) GetCodeByValue(_ context.Context, value string) (*PromoCode, error) {
	for _, code := range r.codes {
		if code.Code == value {
			return code, nil
		}
	}
	return nil, ErrCodeNotFound
}

func (r *fakeRepo) GetUsageByEntity(_ context.Context, entityType string, entityID uuid.UUID, status UsageStatus) (*Usage, error) {
	for _, u := range r.usages {
		if u.EntityType == entityType && u.EntityID == entityID && u.Status == status {
			return u, nil
		}
	}
	return nil, ErrUsageNotFound
}

func (r *fakeRepo) CreateUsage(_ context.Context, usage *Usage) error {
	r.usages = append(r.usages, usage)
	return nil
}

func (r *fakeRepo) UpdateUsage(_ context.Context, usage *Usage) error {
	for i, u := range r.usages {
		if u.ID == usage.ID {
			r.usages[i] = usage
			return nil
		}
	}
	return ErrUsageNotFound
}

func (r *fakeRepo) AdjustUsageCounter(_ context.Context, codeID uuid.UUID, delta int) error {
	code, ok := r.codes[codeID]
	if !ok {
		return ErrCodeNotFound
	}
	code.CurrentUsage += delta
	if code.CurrentUsage < 0 {
		code.CurrentUsage = 0
	}
	return nil
}

func (r *fakeRepo) WithTransaction(_ context.Context, fn func(Repository) error) error {
	return fn(r)
}

func activeCode(value string, maxUsage int) *PromoCode {
	now := time.Now()
	return &PromoCode{
		ID:              uuid.New(),
		Code:            value,
		DiscountPercent: 20,
		ValidFrom:       now.Add(-24 * time.Hour),
		ValidUntil:      now.Add(24 * time.Hour),
		MaxUsage:        maxUsage,
		Active:          true,
	}
}

func TestRecordAttemptComputesDiscount(t *testing.T) {
	repo := newFakeRepo(activeCode("WELCOME20", 10))
	service := NewService(repo, zap.NewNop())

	usage, err := service.RecordAttempt(context.Background(), "WELCOME20", "rendezvous", uuid.New(), uuid.New(), 5000)
	require.NoError(t, err)

	assert.Equal(t, UsageAttempted, usage.Status)
	assert.Equal(t, int64(5000), usage.OriginalAmount)
	assert.Equal(t, int64(1000), usage.DiscountAmount)
	assert.Equal(t, int64(4000), usage.FinalAmount)
}

func TestApplyThenRevokeRestoresCounter(t *testing.T) {
	code := activeCode("WELCOME20", 10)
	repo := newFakeRepo(code)
	service := NewService(repo, zap.NewNop())

	entityID := uuid.New()
	_, err := service.RecordAttempt(context.Background(), "WELCOME20", "rendezvous", entityID, uuid.New(), 5000)
	require.NoError(t, err)
	assert.Equal(t, 0, code.CurrentUsage)

	result, err := service.ApplyPending(context.Background(), "rendezvous", entityID)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, 1, code.CurrentUsage)
	assert.Equal(t, UsageValidated, result.Usage.Status)

	require.NoError(t, service.Revoke(context.Background(), "rendezvous", entityID, "payment failed"))
	assert.Equal(t, 0, code.CurrentUsage)

	usage, err := repo.GetUsageByEntity(context.Background(), "rendezvous", entityID, UsageRevoked)
	require.NoError(t, err)
	assert.Contains(t, usage.Note, "payment failed")
}

func TestRevokeIsIdempotent(t *testing.T) {
	code := activeCode("WELCOME20", 10)
	repo := newFakeRepo(code)
	service := NewService(repo, zap.NewNop())

	entityID := uuid.New()
	_, err := service.RecordAttempt(context.Background(), "WELCOME20", "rendezvous", entityID, uuid.New(), 5000)
	require.NoError(t, err)
	_, err = service.ApplyPending(context.Background(), "rendezvous", entityID)
	require.NoError(t, err)

	require.NoError(t, service.Revoke(context.Background(), "rendezvous", entityID, "payment failed"))
	// A second revoke finds no validated usage and must not decrement again.
	require.NoError(t, service.Revoke(context.Background(), "rendezvous", entityID, "payment failed"))
	assert.Equal(t, 0, code.CurrentUsage)
}

func TestApplyPendingWithoutAttemptIsNoOp(t *testing.T) {
	repo := newFakeRepo(activeCode("WELCOME20", 10))
	service := NewService(repo, zap.NewNop())

	result, err := service.ApplyPending(context.Background(), "rendezvous", uuid.New())
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Empty(t, result.Message)
}

func TestApplyPendingRejectsLateExpiredCode(t *testing.T) {
	code := activeCode("FLASH", 10)
	repo := newFakeRepo(code)
	service := NewService(repo, zap.NewNop())

	entityID := uuid.New()
	_, err := service.RecordAttempt(context.Background(), "FLASH", "rendezvous", entityID, uuid.New(), 5000)
	require.NoError(t, err)

	// The code expires between attempt and payment confirmation.
	service.now = func() time.Time { return code.ValidUntil.Add(time.Hour) }

	result, err := service.ApplyPending(context.Background(), "rendezvous", entityID)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, UsageRevoked, result.Usage.Status)
	// The counter was never incremented for an attempted usage.
	assert.Equal(t, 0, code.CurrentUsage)
}

func TestApplyPendingRejectsExhaustedCode(t *testing.T) {
	code := activeCode("LIMITED", 1)
	code.CurrentUsage = 1
	repo := newFakeRepo(code)
	service := NewService(repo, zap.NewNop())

	entityID := uuid.New()
	_, err := service.RecordAttempt(context.Background(), "LIMITED", "rendezvous", entityID, uuid.New(), 5000)
	require.NoError(t, err)

	result, err := service.ApplyPending(context.Background(), "rendezvous", entityID)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, 1, code.CurrentUsage)
}

func TestUnlimitedCodeHasCapacity(t *testing.T) {
	code := activeCode("FOREVER", 0)
	code.CurrentUsage = 9999
	assert.True(t, code.HasCapacity())
}
