package doctor

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, d *Doctor) error {
	err := r.db.WithContext(ctx).Create(d).Error
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrDoctorAlreadyApplied
	}
	return err
}

func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *GormRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").First(&d, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *GormRepository) Update(ctx context.Context, id uuid.UUID, cmd *UpdateDoctorCommand) (*Doctor, error) {
	updates := map[string]any{}
	if cmd.FirstName != nil {
		updates["first_name"] = *cmd.FirstName
	}
	if cmd.LastName != nil {
		updates["last_name"] = *cmd.LastName
	}
	if cmd.Speciality != nil {
		updates["speciality"] = *cmd.Speciality
	}
	if cmd.Experience != nil {
		updates["experience_years"] = *cmd.Experience
	}
	if cmd.Qualification != nil {
		updates["qualification"] = *cmd.Qualification
	}
	if cmd.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*cmd.Email))
	}
	if cmd.Phone != nil {
		updates["phone"] = *cmd.Phone
	}
	if cmd.Address != nil {
		updates["address"] = *cmd.Address
	}
	if cmd.Fee != nil {
		updates["fee"] = *cmd.Fee
	}
	if cmd.WorkingDays != nil {
		updates["working_days"] = strings.Join(cmd.WorkingDays, ",")
	}
	if cmd.StartTime != nil {
		updates["start_time"] = *cmd.StartTime
	}
	if cmd.EndTime != nil {
		updates["end_time"] = *cmd.EndTime
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&Doctor{}).
			Where("id = ? AND deleted_at IS NULL", id).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrDoctorNotFound
		}
	}

	return r.GetByID(ctx, id)
}

func (r *GormRepository) UpdateStatus(ctx context.Context, d *Doctor) error {
	res := r.db.WithContext(ctx).Model(&Doctor{}).
		Where("id = ? AND deleted_at IS NULL", d.ID).
		Update("status", d.Status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *GormRepository) List(ctx context.Context, q *ListDoctorsQuery) (*PagedDoctors, error) {
	query := r.db.WithContext(ctx).Model(&Doctor{}).Where("deleted_at IS NULL")
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.Speciality != nil {
		query = query.Where("speciality ILIKE ?", "%"+*q.Speciality+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var doctors []*Doctor
	err := query.Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&doctors).Error
	if err != nil {
		return nil, err
	}

	return &PagedDoctors{
		Doctors:    doctors,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

type GormRatingRepository struct {
	db *gorm.DB
}

func NewGormRatingRepository(db *gorm.DB) *GormRatingRepository {
	return &GormRatingRepository{db: db}
}

// Add inserts the rating and flips the appointment's rated flag in one
// transaction. The unique index on (doctor_id, user_id) closes the
// read-check-write race between concurrent submissions.
func (r *GormRatingRepository) Add(ctx context.Context, rating *Rating) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rating).Error; err != nil {
			if strings.Contains(err.Error(), "duplicate key") {
				return ErrAlreadyRated
			}
			return err
		}

		return tx.Table("appointments").
			Where("id = ?", rating.AppointmentID).
			Update("rated", true).Error
	})
}

func (r *GormRatingRepository) HasRated(ctx context.Context, doctorID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Rating{}).
		Where("doctor_id = ? AND user_id = ?", doctorID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRatingRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Rating, error) {
	var ratings []*Rating
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("created_at DESC").
		Find(&ratings).Error
	return ratings, err
}

func (r *GormRatingRepository) Summary(ctx context.Context, doctorID uuid.UUID) (*RatingSummary, error) {
	var row struct {
		Average float64
		Count   int64
	}
	err := r.db.WithContext(ctx).Model(&Rating{}).
		Select("COALESCE(AVG(stars), 0) AS average, COUNT(*) AS count").
		Where("doctor_id = ?", doctorID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &RatingSummary{
		Average: math.Round(row.Average*10) / 10,
		Count:   row.Count,
	}, nil
}
