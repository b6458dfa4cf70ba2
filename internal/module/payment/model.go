package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/bellecare/server/internal/module/payment/domain"
)

// PaymentType identifies what a payment pays for.
type PaymentType string

const (
	PaymentTypeRendezvousAdvance PaymentType = "rendezvous_advance"
	PaymentTypeFormationFull     PaymentType = "formation_full"
	PaymentTypeFormationAdvance  PaymentType = "formation_advance"
	PaymentTypeCustom            PaymentType = "custom"
)

// EntityType identifies the payable domain entity a payment is bound to.
type EntityType string

const (
	EntityTypeRendezvous EntityType = "rendezvous"
	EntityTypeFormation  EntityType = "formation"
	// EntityTypeOrphan marks a payment that could not be associated with any
	// domain object. Orphan records transition statuses normally but never
	// fire entity hooks or promo compensation.
	EntityTypeOrphan EntityType = "orphan"
)

// Payment is the persisted record of one payment attempt. Records are never
// deleted; they are the financial audit trail.
type Payment struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Provider    domain.Provider `json:"provider" gorm:"not null;index"`
	PaymentType PaymentType     `json:"payment_type" gorm:"not null"`
	EntityType  EntityType      `json:"entity_type" gorm:"not null;index"`
	EntityID    *uuid.UUID      `json:"entity_id,omitempty" gorm:"type:uuid;index"`
	Amount      int64           `json:"amount"` // Minor-unit-free XOF
	Currency    string          `json:"currency" gorm:"default:XOF"`
	Status      domain.Status   `json:"status" gorm:"not null;default:pending;index"`
	// TransactionID is the provider-side transaction identifier.
	TransactionID string `json:"transaction_id"`
	// Reference is the globally unique, provider-correlatable token. Both the
	// webhook and polling paths locate the record through it.
	Reference   string     `json:"reference" gorm:"uniqueIndex;not null"`
	Phone       string     `json:"phone,omitempty"`
	PayerID     *uuid.UUID `json:"payer_id,omitempty" gorm:"type:uuid;index"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (Payment) TableName() string {
	return "payments"
}

// IsSuccessful returns true if the payment is in the successful class.
func (p *Payment) IsSuccessful() bool {
	return p.Status.IsSuccessful()
}

// PaymentConfiguration is the static pricing table keyed by payment type.
// It is consulted by the resolver and never mutated by the payment flow.
type PaymentConfiguration struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentType PaymentType `gorm:"uniqueIndex;not null"`
	Amount      int64
	Currency    string      `gorm:"default:XOF"`
	Active      bool        `gorm:"default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the database table name.
func (PaymentConfiguration) TableName() string {
	return "payment_configurations"
}
