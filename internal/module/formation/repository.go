package formation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bellecare/server/internal/module/payment"
)

// ErrEnrollmentNotFound signals an unknown enrollment id.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// Repository defines the interface for formation data access.
type Repository interface {
	GetEnrollment(ctx context.Context, id uuid.UUID) (*Enrollment, error)
	UpdateEnrollment(ctx context.Context, enrollment *Enrollment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new formation repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// GetEnrollment loads the enrollment with its formation, which carries the
// pricing the payable interface computes from.
func (r *repository) GetEnrollment(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	var enrollment Enrollment
	err := r.db.WithContext(ctx).
		Preload("Formation").
		First(&enrollment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}

func (r *repository) UpdateEnrollment(ctx context.Context, enrollment *Enrollment) error {
	err := r.db.WithContext(ctx).
		Omit("Formation").
		Save(enrollment).Error
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// Source exposes enrollments to the payment module as payable entities.
type Source struct {
	repo Repository
}

// NewSource creates a payment entity source backed by the formation repository.
func NewSource(repo Repository) *Source {
	return &Source{repo: repo}
}

// EntityType returns the entity type this source serves.
func (s *Source) EntityType() payment.EntityType {
	return payment.EntityTypeFormation
}

// Load returns the enrollment as a payable entity.
func (s *Source) Load(ctx context.Context, id uuid.UUID) (payment.PayableEntity, error) {
	enrollment, err := s.repo.GetEnrollment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			return nil, payment.ErrEntityNotFound
		}
		return nil, err
	}
	return enrollment, nil
}

// Save persists entity state mutated by a payment lifecycle hook.
func (s *Source) Save(ctx context.Context, entity payment.PayableEntity) error {
	enrollment, ok := entity.(*Enrollment)
	if !ok {
		return fmt.Errorf("unexpected entity type %T for formation source", entity)
	}
	return s.repo.UpdateEnrollment(ctx, enrollment)
}
