package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/doctor"
	"github.com/carebook/carebook/internal/domain/notification"
	"github.com/carebook/carebook/pkg/metrics"
)

type AppointmentService struct {
	repo       appointment.Repository
	doctorRepo doctor.Repository
	userRepo   UserRepository
	dispatcher *Dispatcher
	metrics    *metrics.Collector
	booking    config.BookingConfig
	log        *zap.Logger

	// Injectable clock for the date guards.
	now func() time.Time
}

func NewAppointmentService(
	repo appointment.Repository,
	doctorRepo doctor.Repository,
	userRepo UserRepository,
	dispatcher *Dispatcher,
	m *metrics.Collector,
	booking config.BookingConfig,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		repo:       repo,
		doctorRepo: doctorRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		metrics:    m,
		booking:    booking,
		log:        log,
		now:        time.Now,
	}
}

// Book creates a pending appointment on a free slot and notifies both
// parties. The slot check here is advisory; the partial unique index on
// (doctor_id, date, slot) is what decides between concurrent bookings, so a
// lost race surfaces as ErrSlotTaken from the insert.
func (s *AppointmentService) Book(ctx context.Context, cmd *appointment.BookAppointmentCommand, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	// Patients book for themselves.
	if callerRole == domain.RoleUser {
		cmd.UserID = callerID
	}

	if err := validateBooking(cmd); err != nil {
		return nil, err
	}
	if dateOnly(cmd.Date).Before(dateOnly(s.now())) {
		return nil, appointment.ErrAppointmentInPast
	}

	d, err := s.doctorRepo.GetByID(ctx, cmd.DoctorID)
	if err != nil {
		return nil, err
	}
	if d.Status != doctor.StatusApproved {
		return nil, doctor.ErrDoctorNotApproved
	}
	if !d.WorksOn(cmd.Date) {
		return nil, appointment.ErrNotWorkingDay
	}

	grid, err := SlotGrid(d.StartTime, d.EndTime, s.booking.SlotDuration)
	if err != nil {
		return nil, err
	}
	if !contains(grid, cmd.Slot) {
		return nil, appointment.ErrSlotOutsideHours
	}

	booked, err := s.repo.ListByDoctorDate(ctx, cmd.DoctorID, cmd.Date)
	if err != nil {
		return nil, fmt.Errorf("loading day bookings: %w", err)
	}
	for _, slot := range FilterBookable(grid, booked) {
		if slot.Time == cmd.Slot && !slot.Bookable {
			s.metrics.BookingConflicts.Inc()
			return nil, appointment.ErrSlotTaken
		}
	}

	patient, err := s.userRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	a := &appointment.Appointment{
		DoctorID: cmd.DoctorID,
		UserID:   cmd.UserID,
		Date:     dateOnly(cmd.Date),
		Slot:     cmd.Slot,
		Status:   appointment.StatusPending,
		Problem:  cmd.Problem,
		BookedOn: s.now(),
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if err == appointment.ErrSlotTaken {
			s.metrics.BookingConflicts.Inc()
			return nil, err
		}
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	s.metrics.BookingsTotal.WithLabelValues(string(appointment.StatusPending)).Inc()

	s.dispatcher.Notify(Event{
		Type:       notification.TypeAppointmentBooked,
		Recipients: bothParties(d, patient),
		Subject:    "New appointment booked",
		Body: fmt.Sprintf("An appointment with Dr. %s has been booked for %s at %s.",
			d.FullName(), a.Date.Format(appointment.DateLayout), a.Slot),
		Data: a,
	})

	return a, nil
}

// UpdateStatus moves an appointment through its lifecycle. Only doctors and
// admins drive status; the transition table rejects everything else.
func (s *AppointmentService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus appointment.Status, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	if callerRole != domain.RoleDoctor && callerRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if !newStatus.IsValid() {
		return nil, &ValidationError{Fields: []string{"status: unknown value"}}
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d, err := s.doctorRepo.GetByID(ctx, a.DoctorID)
	if err != nil {
		return nil, err
	}
	if callerRole == domain.RoleDoctor && d.UserID != callerID {
		return nil, ErrForbidden
	}

	// Past appointments are frozen. Enforced here, not in the UI, so direct
	// API calls cannot mutate history.
	if dateOnly(a.Date).Before(dateOnly(s.now())) {
		return nil, appointment.ErrAppointmentInPast
	}

	if newStatus == appointment.StatusCancelled {
		return s.Cancel(ctx, id, "cancelled by "+string(callerRole), callerID, callerRole)
	}

	if !a.CanTransitionTo(newStatus) {
		return nil, appointment.ErrInvalidStatusTransition
	}
	a.Status = newStatus
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.metrics.BookingsTotal.WithLabelValues(string(newStatus)).Inc()
	s.notifyStatusChange(ctx, a, d)

	return a, nil
}

// Cancel soft-cancels an appointment. The record is kept for history;
// cancellation frees the slot for rebooking. Cancellation emails go to both
// parties; a party without an email address is skipped silently.
func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID, reason string, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeMutation(ctx, a, callerID, callerRole); err != nil {
		return nil, err
	}

	if err := a.Cancel(reason, callerID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("cancelling appointment: %w", err)
	}

	s.metrics.BookingsTotal.WithLabelValues(string(appointment.StatusCancelled)).Inc()

	d, derr := s.doctorRepo.GetByID(ctx, a.DoctorID)
	patient, perr := s.userRepo.GetByID(ctx, a.UserID)
	if derr != nil || perr != nil {
		s.log.Warn("cancellation notification skipped, party lookup failed",
			zap.String("appointment_id", a.ID.String()),
		)
		return a, nil
	}

	s.dispatcher.Notify(Event{
		Type:       notification.TypeAppointmentCancel,
		Recipients: bothParties(d, patient),
		Subject:    "Appointment cancelled",
		Body: fmt.Sprintf("The appointment on %s at %s has been cancelled by the %s.",
			a.Date.Format(appointment.DateLayout), a.Slot, callerRole),
		Data: a,
	})

	return a, nil
}

// Reschedule cancels the old booking and books the new slot. No history is
// merged: the old record stays soft-cancelled with reason "rescheduled" and
// a fresh pending appointment is created.
func (s *AppointmentService) Reschedule(ctx context.Context, id uuid.UUID, cmd *appointment.RescheduleCommand, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	old, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeMutation(ctx, old, callerID, callerRole); err != nil {
		return nil, err
	}

	if _, err := s.Cancel(ctx, id, "rescheduled", callerID, callerRole); err != nil {
		return nil, err
	}

	return s.Book(ctx, &appointment.BookAppointmentCommand{
		DoctorID: old.DoctorID,
		UserID:   old.UserID,
		Date:     cmd.Date,
		Slot:     cmd.Slot,
		Problem:  old.Problem,
	}, callerID, callerRole)
}

// UpdateNotes saves the doctor's notes. Doctor and admin only.
func (s *AppointmentService) UpdateNotes(ctx context.Context, id uuid.UUID, notes string, callerID uuid.UUID, callerRole domain.Role) error {
	if callerRole != domain.RoleDoctor && callerRole != domain.RoleAdmin {
		return ErrForbidden
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if callerRole == domain.RoleDoctor {
		d, err := s.doctorRepo.GetByID(ctx, a.DoctorID)
		if err != nil {
			return err
		}
		if d.UserID != callerID {
			return ErrForbidden
		}
	}

	return s.repo.UpdateNotes(ctx, id, notes)
}

// UpdateProblem saves the patient's problem description and tells the doctor.
func (s *AppointmentService) UpdateProblem(ctx context.Context, id uuid.UUID, problem string, callerID uuid.UUID, callerRole domain.Role) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if callerRole == domain.RoleUser && a.UserID != callerID {
		return ErrForbidden
	}

	if err := s.repo.UpdateProblem(ctx, id, problem); err != nil {
		return err
	}

	if d, err := s.doctorRepo.GetByID(ctx, a.DoctorID); err == nil {
		s.dispatcher.Notify(Event{
			Type:       notification.TypeProblemUpdated,
			Recipients: []Recipient{{UserID: d.UserID, Email: d.Email}},
			Subject:    "Appointment details updated",
			Body: fmt.Sprintf("The patient updated the problem description for the appointment on %s at %s.",
				a.Date.Format(appointment.DateLayout), a.Slot),
			Data: a,
		})
	}

	return nil
}

func (s *AppointmentService) Get(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if callerRole == domain.RoleUser && a.UserID != callerID {
		return nil, ErrForbidden
	}
	if callerRole == domain.RoleDoctor {
		d, err := s.doctorRepo.GetByID(ctx, a.DoctorID)
		if err != nil {
			return nil, err
		}
		if d.UserID != callerID && a.UserID != callerID {
			return nil, ErrForbidden
		}
	}

	return a, nil
}

func (s *AppointmentService) List(ctx context.Context, q *appointment.ListAppointmentsQuery, callerID uuid.UUID, callerRole domain.Role) (*appointment.PagedAppointments, error) {
	// Patients only see their own appointments.
	if callerRole == domain.RoleUser {
		q.UserID = &callerID
	}
	if callerRole == domain.RoleDoctor && q.DoctorID != nil {
		d, err := s.doctorRepo.GetByID(ctx, *q.DoctorID)
		if err != nil {
			return nil, err
		}
		if d.UserID != callerID {
			return nil, ErrForbidden
		}
	}

	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

// authorizeMutation applies the shared cancel/reschedule guards: ownership,
// the past-date freeze, and the patient lead-time window.
func (s *AppointmentService) authorizeMutation(ctx context.Context, a *appointment.Appointment, callerID uuid.UUID, callerRole domain.Role) error {
	switch callerRole {
	case domain.RoleUser:
		if a.UserID != callerID {
			return ErrForbidden
		}
	case domain.RoleDoctor:
		d, err := s.doctorRepo.GetByID(ctx, a.DoctorID)
		if err != nil {
			return err
		}
		if d.UserID != callerID {
			return ErrForbidden
		}
	case domain.RoleAdmin:
	default:
		return ErrForbidden
	}

	if dateOnly(a.Date).Before(dateOnly(s.now())) {
		return appointment.ErrAppointmentInPast
	}

	// Patients cannot cancel or reschedule close to the slot. Staff can.
	if callerRole == domain.RoleUser && s.booking.PatientCancelWindow > 0 {
		if s.now().Add(s.booking.PatientCancelWindow).After(a.StartsAt()) {
			return appointment.ErrTooCloseToStart
		}
	}

	return nil
}

func (s *AppointmentService) notifyStatusChange(ctx context.Context, a *appointment.Appointment, d *doctor.Doctor) {
	patient, err := s.userRepo.GetByID(ctx, a.UserID)
	if err != nil {
		s.log.Warn("status notification skipped, patient lookup failed",
			zap.String("appointment_id", a.ID.String()),
			zap.Error(err),
		)
		return
	}

	s.dispatcher.Notify(Event{
		Type:       notification.TypeStatusChanged,
		Recipients: bothParties(d, patient),
		Subject:    "Appointment status updated",
		Body: fmt.Sprintf("The appointment on %s at %s is now %q.",
			a.Date.Format(appointment.DateLayout), a.Slot, a.Status),
		Data: a,
	})
}

func validateBooking(cmd *appointment.BookAppointmentCommand) error {
	var missing []string
	if cmd.DoctorID == uuid.Nil {
		missing = append(missing, "doctor_id is required")
	}
	if cmd.UserID == uuid.Nil {
		missing = append(missing, "user_id is required")
	}
	if cmd.Date.IsZero() {
		missing = append(missing, "date is required")
	}
	if cmd.Slot == "" {
		missing = append(missing, "slot is required")
	}
	if cmd.Problem == "" {
		missing = append(missing, "problem is required")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	if _, err := time.Parse(appointment.SlotLayout, cmd.Slot); err != nil {
		return &ValidationError{Fields: []string{"slot: must be HH:MM"}}
	}
	return nil
}

func bothParties(d *doctor.Doctor, patient *domain.User) []Recipient {
	return []Recipient{
		{UserID: d.UserID, Email: d.Email},
		{UserID: patient.ID, Email: patient.Email},
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func contains(grid []string, slot string) bool {
	for _, g := range grid {
		if g == slot {
			return true
		}
	}
	return false
}
