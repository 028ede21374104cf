package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/doctor"
	"github.com/carebook/carebook/pkg/metrics"
)

type RatingService struct {
	ratings    doctor.RatingRepository
	doctorRepo doctor.Repository
	apptRepo   appointment.Repository
	metrics    *metrics.Collector
	log        *zap.Logger
}

func NewRatingService(
	ratings doctor.RatingRepository,
	doctorRepo doctor.Repository,
	apptRepo appointment.Repository,
	m *metrics.Collector,
	log *zap.Logger,
) *RatingService {
	return &RatingService{
		ratings:    ratings,
		doctorRepo: doctorRepo,
		apptRepo:   apptRepo,
		metrics:    m,
		log:        log,
	}
}

// Submit records one patient's rating of a doctor. The duplicate check runs
// before any mutation; the unique index on (doctor_id, user_id) backs it up,
// so the second of two concurrent submissions fails instead of double-
// counting.
func (s *RatingService) Submit(ctx context.Context, doctorID, appointmentID uuid.UUID, stars int, comment string, callerID uuid.UUID, callerRole domain.Role) (*doctor.RatingSummary, error) {
	if stars < 1 || stars > 5 {
		return nil, doctor.ErrInvalidStars
	}

	if _, err := s.doctorRepo.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}

	a, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.UserID != callerID && callerRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if a.DoctorID != doctorID {
		return nil, &ValidationError{Fields: []string{"appointment_id: appointment is with a different doctor"}}
	}

	rated, err := s.ratings.HasRated(ctx, doctorID, a.UserID)
	if err != nil {
		return nil, fmt.Errorf("checking existing rating: %w", err)
	}
	if rated {
		s.metrics.RatingsRejected.Inc()
		return nil, doctor.ErrAlreadyRated
	}

	rating := &doctor.Rating{
		DoctorID:      doctorID,
		UserID:        a.UserID,
		AppointmentID: appointmentID,
		Stars:         stars,
		Comment:       comment,
	}
	if err := s.ratings.Add(ctx, rating); err != nil {
		if err == doctor.ErrAlreadyRated {
			s.metrics.RatingsRejected.Inc()
			return nil, err
		}
		s.log.Error("failed to store rating", zap.Error(err))
		return nil, fmt.Errorf("storing rating: %w", err)
	}

	s.metrics.RatingsSubmitted.Inc()

	return s.ratings.Summary(ctx, doctorID)
}

// Summary returns the doctor's average (one decimal) and rating count,
// always computed from the live ratings rows.
func (s *RatingService) Summary(ctx context.Context, doctorID uuid.UUID) (*doctor.RatingSummary, error) {
	if _, err := s.doctorRepo.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.ratings.Summary(ctx, doctorID)
}

func (s *RatingService) List(ctx context.Context, doctorID uuid.UUID) ([]*doctor.Rating, error) {
	if _, err := s.doctorRepo.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.ratings.ListByDoctor(ctx, doctorID)
}
