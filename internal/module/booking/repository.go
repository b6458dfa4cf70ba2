package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bellecare/server/internal/module/payment"
)

// ErrAppointmentNotFound signals an unknown appointment id.
var ErrAppointmentNotFound = errors.New("appointment not found")

// Repository defines the interface for appointment data access.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, appointment *Appointment) error

	// ListDueForReminder returns confirmed appointments starting within the
	// window that have not been reminded yet.
	ListDueForReminder(ctx context.Context, from time.Time, window time.Duration) ([]*Appointment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new booking repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appointment Appointment
	err := r.db.WithContext(ctx).First(&appointment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *repository) Update(ctx context.Context, appointment *Appointment) error {
	if err := r.db.WithContext(ctx).Save(appointment).Error; err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *repository) ListDueForReminder(ctx context.Context, from time.Time, window time.Duration) ([]*Appointment, error) {
	var appointments []*Appointment
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusConfirmed).
		Where("starts_at BETWEEN ? AND ?", from, from.Add(window)).
		Where("reminder_sent_at IS NULL").
		Order("starts_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("list appointments due for reminder: %w", err)
	}
	return appointments, nil
}

// Source exposes appointments to the payment module as payable entities.
type Source struct {
	repo Repository
}

// NewSource creates a payment entity source backed by the booking repository.
func NewSource(repo Repository) *Source {
	return &Source{repo: repo}
}

// EntityType returns the entity type this source serves.
func (s *Source) EntityType() payment.EntityType {
	return payment.EntityTypeRendezvous
}

// Load returns the appointment as a payable entity.
func (s *Source) Load(ctx context.Context, id uuid.UUID) (payment.PayableEntity, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, payment.ErrEntityNotFound
		}
		return nil, err
	}
	return appointment, nil
}

// Save persists entity state mutated by a payment lifecycle hook.
func (s *Source) Save(ctx context.Context, entity payment.PayableEntity) error {
	appointment, ok := entity.(*Appointment)
	if !ok {
		return fmt.Errorf("unexpected entity type %T for rendezvous source", entity)
	}
	return s.repo.Update(ctx, appointment)
}
