package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/internal/domain/doctor"
	"github.com/carebook/carebook/internal/domain/notification"
)

type DoctorService struct {
	repo       doctor.Repository
	ratings    doctor.RatingRepository
	userRepo   UserRepository
	dispatcher *Dispatcher
	booking    config.BookingConfig
	log        *zap.Logger
}

func NewDoctorService(
	repo doctor.Repository,
	ratings doctor.RatingRepository,
	userRepo UserRepository,
	dispatcher *Dispatcher,
	booking config.BookingConfig,
	log *zap.Logger,
) *DoctorService {
	return &DoctorService{
		repo:       repo,
		ratings:    ratings,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		booking:    booking,
		log:        log,
	}
}

// DoctorProfile is a doctor with the derived rating summary attached.
type DoctorProfile struct {
	*doctor.Doctor
	Rating *doctor.RatingSummary `json:"rating"`
}

// Apply submits a doctor profile for admin approval. One application per
// account; the applicant's role flips to doctor right away, matching the
// public flow where the profile page unlocks while approval is pending.
func (s *DoctorService) Apply(ctx context.Context, cmd *doctor.CreateDoctorCommand) (*doctor.Doctor, error) {
	if err := validateDoctorApplication(cmd, s.booking.SlotDuration); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByUserID(ctx, cmd.UserID); err == nil {
		return nil, doctor.ErrDoctorAlreadyApplied
	} else if err != doctor.ErrDoctorNotFound {
		return nil, fmt.Errorf("checking existing application: %w", err)
	}

	d := &doctor.Doctor{
		UserID:        cmd.UserID,
		FirstName:     strings.TrimSpace(cmd.FirstName),
		LastName:      strings.TrimSpace(cmd.LastName),
		Speciality:    strings.TrimSpace(cmd.Speciality),
		Experience:    cmd.Experience,
		Qualification: cmd.Qualification,
		Email:         strings.ToLower(strings.TrimSpace(cmd.Email)),
		Phone:         strings.TrimSpace(cmd.Phone),
		Address:       cmd.Address,
		Fee:           cmd.Fee,
		WorkingDays:   doctor.WeekdaySet(cmd.WorkingDays),
		StartTime:     cmd.StartTime,
		EndTime:       cmd.EndTime,
		Status:        doctor.StatusPending,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	if err := s.userRepo.SetRole(ctx, cmd.UserID, domain.RoleDoctor); err != nil {
		s.log.Error("failed to update applicant role", zap.Error(err),
			zap.String("user_id", cmd.UserID.String()),
		)
	}

	return d, nil
}

func (s *DoctorService) Get(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	summary, err := s.ratings.Summary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("computing rating summary: %w", err)
	}

	return &DoctorProfile{Doctor: d, Rating: summary}, nil
}

func (s *DoctorService) GetByUserID(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// List returns doctors. Non-admin callers only ever see approved profiles.
func (s *DoctorService) List(ctx context.Context, q *doctor.ListDoctorsQuery, callerRole domain.Role) (*doctor.PagedDoctors, error) {
	if callerRole != domain.RoleAdmin {
		approved := doctor.StatusApproved
		q.Status = &approved
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

// Update edits a doctor profile. Owners and admins only.
func (s *DoctorService) Update(ctx context.Context, id uuid.UUID, cmd *doctor.UpdateDoctorCommand, callerID uuid.UUID, callerRole domain.Role) (*doctor.Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerRole != domain.RoleAdmin && d.UserID != callerID {
		return nil, ErrForbidden
	}

	if cmd.StartTime != nil || cmd.EndTime != nil {
		start, end := d.StartTime, d.EndTime
		if cmd.StartTime != nil {
			start = *cmd.StartTime
		}
		if cmd.EndTime != nil {
			end = *cmd.EndTime
		}
		if _, err := SlotGrid(start, end, s.booking.SlotDuration); err != nil {
			return nil, err
		}
	}

	return s.repo.Update(ctx, id, cmd)
}

// ChangeStatus is the admin approval action: approve or reject a pending
// application, block an approved doctor, unblock back to approved. The owner
// is notified of the outcome.
func (s *DoctorService) ChangeStatus(ctx context.Context, id uuid.UUID, newStatus doctor.Status, callerRole domain.Role) (*doctor.Doctor, error) {
	if callerRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if !newStatus.IsValid() {
		return nil, &ValidationError{Fields: []string{"status: unknown value"}}
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.CanTransitionTo(newStatus) {
		return nil, doctor.ErrInvalidStatusTransition
	}

	d.Status = newStatus
	if err := s.repo.UpdateStatus(ctx, d); err != nil {
		return nil, fmt.Errorf("updating doctor status: %w", err)
	}

	s.dispatcher.Notify(Event{
		Type:       notification.TypeDoctorStatusChange,
		Recipients: []Recipient{{UserID: d.UserID, Email: d.Email}},
		Subject:    "Your doctor profile was " + string(newStatus),
		Body:       fmt.Sprintf("Your doctor profile is now %q.", newStatus),
		Data:       d,
	})

	return d, nil
}

func validateDoctorApplication(cmd *doctor.CreateDoctorCommand, slotLen time.Duration) error {
	var fields []string
	if cmd.UserID == uuid.Nil {
		fields = append(fields, "user_id is required")
	}
	if strings.TrimSpace(cmd.FirstName) == "" {
		fields = append(fields, "first_name is required")
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		fields = append(fields, "last_name is required")
	}
	if strings.TrimSpace(cmd.Speciality) == "" {
		fields = append(fields, "speciality is required")
	}
	if strings.TrimSpace(cmd.Email) == "" {
		fields = append(fields, "email is required")
	}
	if len(cmd.WorkingDays) == 0 {
		fields = append(fields, "working_days is required")
	}
	for _, day := range cmd.WorkingDays {
		if !validWeekday(day) {
			fields = append(fields, "working_days: unknown weekday "+day)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	// A schedule that cannot hold a single slot is useless.
	grid, err := SlotGrid(cmd.StartTime, cmd.EndTime, slotLen)
	if err != nil {
		return err
	}
	if len(grid) == 0 {
		return doctor.ErrInvalidSchedule
	}
	return nil
}

func validWeekday(name string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return true
		}
	}
	return false
}
