package formation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bellecare/server/internal/module/payment"
)

// Formation is a training course offered by the salon, free or paid.
type Formation struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title string    `gorm:"not null"`
	// Price is the full course price in minor-unit-free XOF; 0 means free.
	Price int64
	// AdvancePercent is the share of the price due for a partial deposit.
	AdvancePercent int  `gorm:"default:50"`
	Active         bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the database table name.
func (Formation) TableName() string {
	return "formations"
}

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentPendingPayment EnrollmentStatus = "pending_payment"
	EnrollmentActive         EnrollmentStatus = "active"
	EnrollmentPaymentFailed  EnrollmentStatus = "payment_failed"
	EnrollmentCanceled       EnrollmentStatus = "canceled"
)

// Enrollment is one user's enrollment in a formation. It is the payable
// entity behind the `formation` entity type.
type Enrollment struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FormationID uuid.UUID        `gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	Status      EnrollmentStatus `gorm:"not null;default:pending_payment"`
	Paid        bool             `gorm:"default:false"`
	// Progress is the completed share of the course, 0-100.
	Progress  int `gorm:"default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Formation *Formation `gorm:"foreignKey:FormationID"`
}

// TableName returns the database table name.
func (Enrollment) TableName() string {
	return "formation_enrollments"
}

// --- payment.PayableEntity ---

func (e *Enrollment) PayableID() uuid.UUID {
	return e.ID
}

func (e *Enrollment) PayableEntityType() payment.EntityType {
	return payment.EntityTypeFormation
}

// PaymentAmount returns the enrollment's own computed amount, consulted only
// when no pricing configuration covers the payment type.
func (e *Enrollment) PaymentAmount(paymentType payment.PaymentType) int64 {
	if e.Formation == nil {
		return 0
	}
	switch paymentType {
	case payment.PaymentTypeFormationFull, payment.PaymentTypeCustom:
		return e.Formation.Price
	case payment.PaymentTypeFormationAdvance:
		return e.Formation.Price * int64(e.Formation.AdvancePercent) / 100
	default:
		return 0
	}
}

func (e *Enrollment) PaymentDescription() string {
	title := "formation"
	if e.Formation != nil {
		title = e.Formation.Title
	}
	return fmt.Sprintf("Formation enrollment: %s", title)
}

func (e *Enrollment) PayableUserID() uuid.UUID {
	return e.UserID
}

// OnPaymentSuccess activates the enrollment and unlocks the course content.
func (e *Enrollment) OnPaymentSuccess(_ context.Context) error {
	e.Status = EnrollmentActive
	e.Paid = true
	e.UpdatedAt = time.Now()
	return nil
}

// OnPaymentFailure marks the enrollment's payment as failed.
func (e *Enrollment) OnPaymentFailure(_ context.Context) error {
	e.Status = EnrollmentPaymentFailed
	e.UpdatedAt = time.Now()
	return nil
}

// OnPaymentCancellation cancels the enrollment.
func (e *Enrollment) OnPaymentCancellation(_ context.Context) error {
	e.Status = EnrollmentCanceled
	e.UpdatedAt = time.Now()
	return nil
}
