package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bellecare/server/internal/shared/lock"
)

// ReminderNotifier delivers appointment reminders. Message content and
// transport are external collaborators.
type ReminderNotifier interface {
	AppointmentReminder(ctx context.Context, appointment *Appointment)
}

// ReminderJob sends upcoming-appointment reminders on a fixed interval.
// A single-flight lock keyed by task and hour bucket guarantees exactly one
// run per bucket even when several instances fire the schedule.
type ReminderJob struct {
	repo     Repository
	locker   *lock.SingleFlight
	notifier ReminderNotifier
	interval time.Duration
	window   time.Duration
	logger   *zap.Logger
	stop     chan struct{}
}

// NewReminderJob creates the reminder job.
func NewReminderJob(
	repo Repository,
	locker *lock.SingleFlight,
	notifier ReminderNotifier,
	interval, window time.Duration,
	logger *zap.Logger,
) *ReminderJob {
	return &ReminderJob{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		interval: interval,
		window:   window,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start runs the job loop in the background.
func (j *ReminderJob) Start() {
	go j.loop()
}

// Stop terminates the job loop.
func (j *ReminderJob) Stop() {
	close(j.stop)
}

func (j *ReminderJob) loop() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.runOnce(context.Background())
		case <-j.stop:
			return
		}
	}
}

func (j *ReminderJob) runOnce(ctx context.Context) {
	now := time.Now()
	won, err := j.locker.Acquire(ctx, "booking:reminders", now)
	if err != nil {
		j.logger.Error("reminder lock acquisition failed", zap.Error(err))
		return
	}
	if !won {
		return
	}

	due, err := j.repo.ListDueForReminder(ctx, now, j.window)
	if err != nil {
		j.logger.Error("listing appointments due for reminder failed", zap.Error(err))
		return
	}

	for _, appointment := range due {
		j.notifier.AppointmentReminder(ctx, appointment)
		sentAt := time.Now()
		appointment.ReminderSentAt = &sentAt
		if err := j.repo.Update(ctx, appointment); err != nil {
			j.logger.Error("marking reminder sent failed",
				zap.String("appointment_id", appointment.ID.String()),
				zap.Error(err),
			)
		}
	}

	if len(due) > 0 {
		j.logger.Info("appointment reminders sent", zap.Int("count", len(due)))
	}
}
