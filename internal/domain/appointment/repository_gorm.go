package appointment

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, a *Appointment) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrSlotTaken
	}
	return err
}

func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormRepository) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	var appointments []*Appointment
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND date = ? AND deleted_at IS NULL", doctorID, date.Format(DateLayout)).
		Order("slot ASC").
		Find(&appointments).Error
	return appointments, err
}

func (r *GormRepository) UpdateStatus(ctx context.Context, a *Appointment) error {
	res := r.db.WithContext(ctx).Model(&Appointment{}).
		Where("id = ? AND deleted_at IS NULL", a.ID).
		Updates(map[string]any{
			"status":              a.Status,
			"cancelled_at":        a.CancelledAt,
			"cancellation_reason": a.CancellationReason,
			"cancelled_by":        a.CancelledBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *GormRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	res := r.db.WithContext(ctx).Model(&Appointment{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("notes", notes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *GormRepository) UpdateProblem(ctx context.Context, id uuid.UUID, problem string) error {
	res := r.db.WithContext(ctx).Model(&Appointment{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("problem", problem)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *GormRepository) List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error) {
	query := r.db.WithContext(ctx).Model(&Appointment{}).Where("deleted_at IS NULL")
	if q.DoctorID != nil {
		query = query.Where("doctor_id = ?", *q.DoctorID)
	}
	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.DateFrom != nil {
		query = query.Where("date >= ?", q.DateFrom.Format(DateLayout))
	}
	if q.DateTo != nil {
		query = query.Where("date <= ?", q.DateTo.Format(DateLayout))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var appointments []*Appointment
	err := query.Order("date DESC, slot DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}

	return &PagedAppointments{
		Appointments: appointments,
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}
