package payment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for payment data access.
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByReference(ctx context.Context, reference string) (*Payment, error)

	// GetByReferenceForUpdate locks the row for the duration of the enclosing
	// transaction. Only meaningful inside WithTransaction.
	GetByReferenceForUpdate(ctx context.Context, reference string) (*Payment, error)

	Update(ctx context.Context, payment *Payment) error

	// WithTransaction runs fn against a repository bound to one transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// GetConfiguration returns the active pricing row for a payment type, or
	// nil when none is configured.
	GetConfiguration(ctx context.Context, paymentType PaymentType) (*PaymentConfiguration, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).First(&payment, "reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment by reference: %w", err)
	}
	return &payment, nil
}

func (r *repository) GetByReferenceForUpdate(ctx context.Context, reference string) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment for update: %w", err)
	}
	return &payment, nil
}

func (r *repository) Update(ctx context.Context, payment *Payment) error {
	if err := r.db.WithContext(ctx).Save(payment).Error; err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

func (r *repository) WithTransaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) GetConfiguration(ctx context.Context, paymentType PaymentType) (*PaymentConfiguration, error) {
	var cfg PaymentConfiguration
	err := r.db.WithContext(ctx).
		First(&cfg, "payment_type = ? AND active = ?", paymentType, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment configuration: %w", err)
	}
	return &cfg, nil
}
