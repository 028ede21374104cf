package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, id uuid.UUID, cmd *UpdateDoctorCommand) (*Doctor, error)
	List(ctx context.Context, q *ListDoctorsQuery) (*PagedDoctors, error)

	// UpdateStatus persists an admin approval-state change.
	UpdateStatus(ctx context.Context, d *Doctor) error
}

type RatingRepository interface {
	// Add inserts a rating and marks the appointment as rated in one
	// transaction. Returns ErrAlreadyRated if the (doctor, user) pair
	// already has a rating.
	Add(ctx context.Context, r *Rating) error

	HasRated(ctx context.Context, doctorID, userID uuid.UUID) (bool, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Rating, error)

	// Summary computes the average (one decimal) and count from live rows.
	Summary(ctx context.Context, doctorID uuid.UUID) (*RatingSummary, error)
}
