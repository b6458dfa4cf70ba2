package promo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for promo data access.
type Repository interface {
	GetCode(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	GetCodeByValue(ctx context.Context, code string) (*PromoCode, error)
	GetUsageByEntity(ctx context.Context, entityType string, entityID uuid.UUID, status UsageStatus) (*Usage, error)
	CreateUsage(ctx context.Context, usage *Usage) error
	UpdateUsage(ctx context.Context, usage *Usage) error

	// AdjustUsageCounter changes a code's current_usage by delta, clamped at
	// zero on the way down.
	AdjustUsageCounter(ctx context.Context, codeID uuid.UUID, delta int) error

	// WithTransaction runs fn against a repository bound to one transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new promo repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetCode(ctx context.Context, id uuid.UUID) (*PromoCode, error) {
	var code PromoCode
	err := r.db.WithContext(ctx).First(&code, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("get promo code: %w", err)
	}
	return &code, nil
}

func (r *repository) GetCodeByValue(ctx context.Context, value string) (*PromoCode, error) {
	var code PromoCode
	err := r.db.WithContext(ctx).First(&code, "code = ?", value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("get promo code by value: %w", err)
	}
	return &code, nil
}

func (r *repository) GetUsageByEntity(ctx context.Context, entityType string, entityID uuid.UUID, status UsageStatus) (*Usage, error) {
	var usage Usage
	err := r.db.WithContext(ctx).
		First(&usage, "entity_type = ? AND entity_id = ? AND status = ?", entityType, entityID, status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUsageNotFound
		}
		return nil, fmt.Errorf("get promo usage: %w", err)
	}
	return &usage, nil
}

func (r *repository) CreateUsage(ctx context.Context, usage *Usage) error {
	if err := r.db.WithContext(ctx).Create(usage).Error; err != nil {
		return fmt.Errorf("create promo usage: %w", err)
	}
	return nil
}

func (r *repository) UpdateUsage(ctx context.Context, usage *Usage) error {
	if err := r.db.WithContext(ctx).Save(usage).Error; err != nil {
		return fmt.Errorf("update promo usage: %w", err)
	}
	return nil
}

func (r *repository) AdjustUsageCounter(ctx context.Context, codeID uuid.UUID, delta int) error {
	err := r.db.WithContext(ctx).
		Model(&PromoCode{}).
		Where("id = ?", codeID).
		Update("current_usage", gorm.Expr("GREATEST(current_usage + ?, 0)", delta)).Error
	if err != nil {
		return fmt.Errorf("adjust promo usage counter: %w", err)
	}
	return nil
}

func (r *repository) WithTransaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}
