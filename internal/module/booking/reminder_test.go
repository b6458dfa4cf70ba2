package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bellecare/server/internal/shared/lock"
)

type fakeRepo struct {
	due         []*Appointment
	updateCalls int
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	for _, a := range r.due {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *fakeRepo) Update(context.Context, *Appointment) error {
	r.updateCalls++
	return nil
}

func (r *fakeRepo) ListDueForReminder(context.Context, time.Time, time.Duration) ([]*Appointment, error) {
	var pending []*Appointment
	for _, a := range r.due {
		if a.ReminderSentAt == nil {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

type fakeLockClient struct {
	keys map[string]bool
}

func (f *fakeLockClient) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	if f.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

type fakeReminderNotifier struct {
	sent []uuid.UUID
}

func (n *fakeReminderNotifier) AppointmentReminder(_ context.Context, a *Appointment) {
	n.sent = append(n.sent, a.ID)
}

func TestReminderRunOnce(t *testing.T) {
	repo := &fakeRepo{due: []*Appointment{
		{ID: uuid.New(), ServiceName: "manicure", StartsAt: time.Now().Add(2 * time.Hour), Status: StatusConfirmed},
		{ID: uuid.New(), ServiceName: "pedicure", StartsAt: time.Now().Add(5 * time.Hour), Status: StatusConfirmed},
	}}
	notifier := &fakeReminderNotifier{}
	locker := lock.NewSingleFlight(&fakeLockClient{}, time.Hour, 2*time.Hour)
	job := NewReminderJob(repo, locker, notifier, time.Hour, 24*time.Hour, zap.NewNop())

	job.runOnce(context.Background())

	assert.Len(t, notifier.sent, 2)
	assert.Equal(t, 2, repo.updateCalls)
	for _, a := range repo.due {
		assert.NotNil(t, a.ReminderSentAt)
	}
}

func TestReminderRunOnceLoserSkips(t *testing.T) {
	repo := &fakeRepo{due: []*Appointment{
		{ID: uuid.New(), ServiceName: "manicure", StartsAt: time.Now().Add(2 * time.Hour), Status: StatusConfirmed},
	}}
	notifier := &fakeReminderNotifier{}
	client := &fakeLockClient{}
	locker := lock.NewSingleFlight(client, time.Hour, 2*time.Hour)
	job := NewReminderJob(repo, locker, notifier, time.Hour, 24*time.Hour, zap.NewNop())

	job.runOnce(context.Background())
	// Second fire in the same bucket loses the lock and does nothing more.
	job.runOnce(context.Background())

	assert.Len(t, notifier.sent, 1)
}
