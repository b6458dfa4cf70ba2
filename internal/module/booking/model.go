package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bellecare/server/internal/module/payment"
)

// Status represents the lifecycle of an appointment.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusPaymentFailed  Status = "payment_failed"
	StatusCanceled       Status = "canceled"
)

// Appointment is a salon booking. It is payable through an advance deposit
// and can carry a promo code.
type Appointment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceName string    `gorm:"not null"`
	StartsAt    time.Time `gorm:"not null;index"`
	// TotalPrice is the full service price in minor-unit-free XOF.
	TotalPrice int64
	// AdvancePercent is the share of the price due as deposit.
	AdvancePercent int    `gorm:"default:30"`
	Status         Status `gorm:"not null;default:pending_payment"`
	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the database table name.
func (Appointment) TableName() string {
	return "appointments"
}

// --- payment.PayableEntity ---

func (a *Appointment) PayableID() uuid.UUID {
	return a.ID
}

func (a *Appointment) PayableEntityType() payment.EntityType {
	return payment.EntityTypeRendezvous
}

// PaymentAmount returns the appointment's own computed amount, consulted only
// when no pricing configuration covers the payment type.
func (a *Appointment) PaymentAmount(paymentType payment.PaymentType) int64 {
	switch paymentType {
	case payment.PaymentTypeRendezvousAdvance:
		return a.TotalPrice * int64(a.AdvancePercent) / 100
	case payment.PaymentTypeCustom:
		return a.TotalPrice
	default:
		return 0
	}
}

func (a *Appointment) PaymentDescription() string {
	return fmt.Sprintf("Appointment deposit: %s on %s", a.ServiceName, a.StartsAt.Format("2006-01-02 15:04"))
}

func (a *Appointment) PayableUserID() uuid.UUID {
	return a.UserID
}

// OnPaymentSuccess confirms the appointment.
func (a *Appointment) OnPaymentSuccess(_ context.Context) error {
	a.Status = StatusConfirmed
	a.UpdatedAt = time.Now()
	return nil
}

// OnPaymentFailure marks the appointment's deposit as failed. The slot is
// not released; the payer may retry.
func (a *Appointment) OnPaymentFailure(_ context.Context) error {
	a.Status = StatusPaymentFailed
	a.UpdatedAt = time.Now()
	return nil
}

// OnPaymentCancellation cancels the appointment.
func (a *Appointment) OnPaymentCancellation(_ context.Context) error {
	a.Status = StatusCanceled
	a.UpdatedAt = time.Now()
	return nil
}

// Discountable marks appointments as promo-code capable.
func (a *Appointment) Discountable() {}
