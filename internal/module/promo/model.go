package promo

import (
	"time"

	"github.com/google/uuid"
)

// UsageStatus tracks one user's attempt to apply a promo code to one payable
// entity. Usages move attempted→validated→revoked or attempted→revoked, never
// backward.
type UsageStatus string

const (
	UsageAttempted UsageStatus = "attempted"
	UsageValidated UsageStatus = "validated"
	UsageRevoked   UsageStatus = "revoked"
)

// PromoCode is a discount code with a validity window and a usage cap.
type PromoCode struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code            string    `gorm:"uniqueIndex;not null"`
	DiscountPercent int       `gorm:"not null"`
	ValidFrom       time.Time
	ValidUntil      time.Time
	MaxUsage        int
	CurrentUsage    int       `gorm:"default:0"`
	Active          bool      `gorm:"default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the database table name.
func (PromoCode) TableName() string {
	return "promo_codes"
}

// WithinWindow reports whether the code is usable at the given instant.
func (p *PromoCode) WithinWindow(now time.Time) bool {
	return p.Active && !now.Before(p.ValidFrom) && !now.After(p.ValidUntil)
}

// HasCapacity reports whether the usage cap allows one more confirmation.
func (p *PromoCode) HasCapacity() bool {
	return p.MaxUsage <= 0 || p.CurrentUsage < p.MaxUsage
}

// Usage is one application attempt of a promo code against a payable entity.
type Usage struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PromoCodeID uuid.UUID   `gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID   `gorm:"type:uuid;index"`
	EntityType  string      `gorm:"not null;index:idx_usage_entity"`
	EntityID    uuid.UUID   `gorm:"type:uuid;not null;index:idx_usage_entity"`
	Status      UsageStatus `gorm:"not null;default:attempted"`
	// Amounts are minor-unit-free XOF.
	OriginalAmount int64
	DiscountAmount int64
	FinalAmount    int64
	Note           string
	AttemptedAt    time.Time
	ValidatedAt    *time.Time
	RevokedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the database table name.
func (Usage) TableName() string {
	return "promo_code_usages"
}
