package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/bellecare/server/internal/module/booking"
	"github.com/bellecare/server/internal/module/payment"
	"github.com/bellecare/server/internal/shared/config"
)

// Sender delivers a single message to a recipient. Implementations wrap the
// actual channel (email, SMS, push).
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Service fans payment and booking events out to the payer and the salon
// operator. Delivery failures are logged and never surfaced to the caller;
// a missed notification must not undo a financial state transition.
type Service struct {
	sender        Sender
	operatorEmail string
	logger        *zap.Logger
}

// NewService creates a notification service. sender may be nil, in which case
// events are only logged.
func NewService(sender Sender, cfg *config.NotificationConfig, logger *zap.Logger) *Service {
	return &Service{
		sender:        sender,
		operatorEmail: cfg.OperatorEmail,
		logger:        logger,
	}
}

// PaymentSucceeded notifies the payer and the operator that a payment settled.
// The payer is reached through the contact collected at initiation; payments
// initiated without one (hosted-redirect flows) only notify the operator.
func (s *Service) PaymentSucceeded(ctx context.Context, record *payment.Payment) {
	s.logger.Info("payment succeeded",
		zap.String("reference", record.Reference),
		zap.String("provider", string(record.Provider)),
		zap.Int64("amount", record.Amount),
	)
	s.send(ctx, record.Phone,
		"Payment received",
		"Your payment "+record.Reference+" was received. Thank you!",
	)
	s.send(ctx, s.operatorEmail,
		"Payment received",
		"Payment "+record.Reference+" settled successfully.",
	)
}

// PaymentFailed notifies the payer and the operator that a payment failed.
func (s *Service) PaymentFailed(ctx context.Context, record *payment.Payment) {
	s.logger.Info("payment failed",
		zap.String("reference", record.Reference),
		zap.String("provider", string(record.Provider)),
	)
	s.send(ctx, record.Phone,
		"Payment failed",
		"Your payment "+record.Reference+" did not complete. Please try again.",
	)
	s.send(ctx, s.operatorEmail,
		"Payment failed",
		"Payment "+record.Reference+" did not complete.",
	)
}

// AppointmentReminder notifies the operator of an upcoming appointment.
func (s *Service) AppointmentReminder(ctx context.Context, appointment *booking.Appointment) {
	s.logger.Info("appointment reminder",
		zap.String("appointment_id", appointment.ID.String()),
		zap.Time("starts_at", appointment.StartsAt),
	)
	s.send(ctx, s.operatorEmail,
		"Upcoming appointment",
		"Appointment for "+appointment.ServiceName+" starts at "+appointment.StartsAt.Format("2006-01-02 15:04")+".",
	)
}

func (s *Service) send(ctx context.Context, recipient, subject, body string) {
	if s.sender == nil || recipient == "" {
		return
	}
	if err := s.sender.Send(ctx, recipient, subject, body); err != nil {
		s.logger.Error("notification delivery failed",
			zap.String("recipient", recipient),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
