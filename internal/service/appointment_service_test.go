package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/doctor"
)

type bookingFixture struct {
	svc        *AppointmentService
	dispatcher *Dispatcher
	apptRepo   *memApptRepo
	doctorRepo *memDoctorRepo
	userRepo   *memUserRepo
	notifRepo  *memNotifRepo
	mail       *memMailer

	doctor  *doctor.Doctor
	docUser *domain.User
	patient *domain.User
	now     time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	f := &bookingFixture{
		apptRepo:   newMemApptRepo(),
		doctorRepo: newMemDoctorRepo(),
		userRepo:   newMemUserRepo(),
		notifRepo:  newMemNotifRepo(),
		mail:       &memMailer{},
		// A Tuesday morning.
		now: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	}

	f.dispatcher = NewDispatcher(f.notifRepo, f.mail, testMetrics, testLogger)

	booking := config.BookingConfig{
		SlotDuration:        time.Hour,
		PatientCancelWindow: 24 * time.Hour,
	}
	f.svc = NewAppointmentService(f.apptRepo, f.doctorRepo, f.userRepo, f.dispatcher, testMetrics, booking, testLogger)
	f.svc.now = func() time.Time { return f.now }

	f.docUser = &domain.User{ID: uuid.New(), Email: "dr.li@clinic.test", Name: "Grace Li", Role: domain.RoleDoctor, IsActive: true}
	f.patient = &domain.User{ID: uuid.New(), Email: "pat@example.test", Name: "Pat Doe", Role: domain.RoleUser, IsActive: true}
	for _, u := range []*domain.User{f.docUser, f.patient} {
		if err := f.userRepo.Create(context.Background(), u); err != nil {
			t.Fatal(err)
		}
	}

	f.doctor = &doctor.Doctor{
		ID:          uuid.New(),
		UserID:      f.docUser.ID,
		FirstName:   "Grace",
		LastName:    "Li",
		Email:       f.docUser.Email,
		WorkingDays: doctor.WeekdaySet{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		StartTime:   "09:00",
		EndTime:     "12:00",
		Status:      doctor.StatusApproved,
	}
	if err := f.doctorRepo.Create(context.Background(), f.doctor); err != nil {
		t.Fatal(err)
	}

	return f
}

func (f *bookingFixture) book(t *testing.T, date time.Time, slot string) *appointment.Appointment {
	t.Helper()
	a, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		DoctorID: f.doctor.ID,
		Date:     date,
		Slot:     slot,
		Problem:  "persistent headache",
	}, f.patient.ID, domain.RoleUser)
	if err != nil {
		t.Fatalf("Book() failed: %v", err)
	}
	return a
}

func TestBookAppointment(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	a := f.book(t, wednesday, "10:00")
	if a.Status != appointment.StatusPending {
		t.Errorf("status = %q, want pending", a.Status)
	}
	if a.UserID != f.patient.ID {
		t.Errorf("user_id = %v, want the caller", a.UserID)
	}
	if a.BookedOn != f.now {
		t.Errorf("booked_on = %v, want %v", a.BookedOn, f.now)
	}

	f.dispatcher.Shutdown()
	if got := len(f.notifRepo.byUser(f.patient.ID)); got != 1 {
		t.Errorf("patient notifications = %d, want 1", got)
	}
	if got := len(f.notifRepo.byUser(f.docUser.ID)); got != 1 {
		t.Errorf("doctor notifications = %d, want 1", got)
	}
	if got := len(f.mail.all()); got != 2 {
		t.Errorf("emails sent = %d, want 2", got)
	}
}

func TestBookAppointmentGuards(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	book := func(date time.Time, slot string) error {
		_, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
			DoctorID: f.doctor.ID,
			Date:     date,
			Slot:     slot,
			Problem:  "checkup",
		}, f.patient.ID, domain.RoleUser)
		return err
	}

	if err := book(yesterday, "10:00"); err != appointment.ErrAppointmentInPast {
		t.Errorf("past date: got %v, want ErrAppointmentInPast", err)
	}
	if err := book(sunday, "10:00"); err != appointment.ErrNotWorkingDay {
		t.Errorf("non-working day: got %v, want ErrNotWorkingDay", err)
	}
	if err := book(wednesday, "14:00"); err != appointment.ErrSlotOutsideHours {
		t.Errorf("outside hours: got %v, want ErrSlotOutsideHours", err)
	}
	if err := book(wednesday, "11:30"); err != appointment.ErrSlotOutsideHours {
		t.Errorf("off-grid slot: got %v, want ErrSlotOutsideHours", err)
	}

	f.book(t, wednesday, "10:00")
	if err := book(wednesday, "10:00"); err != appointment.ErrSlotTaken {
		t.Errorf("taken slot: got %v, want ErrSlotTaken", err)
	}

	// A different patient hits the same wall.
	other := &domain.User{ID: uuid.New(), Email: "other@example.test", Name: "Sam", Role: domain.RoleUser, IsActive: true}
	if err := f.userRepo.Create(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		DoctorID: f.doctor.ID,
		Date:     wednesday,
		Slot:     "10:00",
		Problem:  "cough",
	}, other.ID, domain.RoleUser)
	if err != appointment.ErrSlotTaken {
		t.Errorf("concurrent patient: got %v, want ErrSlotTaken", err)
	}

	var validErr *ValidationError
	if err := book(wednesday, "not-a-time"); !errors.As(err, &validErr) {
		t.Errorf("bad slot format: got %v, want ValidationError", err)
	}
}

func TestBookAppointmentUnapprovedDoctor(t *testing.T) {
	f := newBookingFixture(t)
	f.doctor.Status = doctor.StatusBlocked
	if err := f.doctorRepo.UpdateStatus(context.Background(), f.doctor); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		DoctorID: f.doctor.ID,
		Date:     time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		Slot:     "10:00",
		Problem:  "checkup",
	}, f.patient.ID, domain.RoleUser)
	if err != doctor.ErrDoctorNotApproved {
		t.Errorf("got %v, want ErrDoctorNotApproved", err)
	}
}

func TestCancelledSlotIsRebookable(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	a := f.book(t, wednesday, "10:00")
	if _, err := f.svc.Cancel(context.Background(), a.ID, "plans changed", f.patient.ID, domain.RoleUser); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}

	if _, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		DoctorID: f.doctor.ID,
		Date:     wednesday,
		Slot:     "10:00",
		Problem:  "follow-up",
	}, f.patient.ID, domain.RoleUser); err != nil {
		t.Errorf("rebooking a cancelled slot failed: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	a := f.book(t, wednesday, "09:00")

	t.Run("patient cannot drive status", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(context.Background(), a.ID, appointment.StatusApproved, f.patient.ID, domain.RoleUser)
		if err != ErrForbidden {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("another doctor cannot drive status", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(context.Background(), a.ID, appointment.StatusApproved, uuid.New(), domain.RoleDoctor)
		if err != ErrForbidden {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("invalid transition rejected", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(context.Background(), a.ID, appointment.StatusCompleted, f.docUser.ID, domain.RoleDoctor)
		if err != appointment.ErrInvalidStatusTransition {
			t.Errorf("pending→completed: got %v, want ErrInvalidStatusTransition", err)
		}
	})

	t.Run("owning doctor approves", func(t *testing.T) {
		got, err := f.svc.UpdateStatus(context.Background(), a.ID, appointment.StatusApproved, f.docUser.ID, domain.RoleDoctor)
		if err != nil {
			t.Fatalf("UpdateStatus() failed: %v", err)
		}
		if got.Status != appointment.StatusApproved {
			t.Errorf("status = %q, want approved", got.Status)
		}
	})

	t.Run("terminal state is frozen", func(t *testing.T) {
		if _, err := f.svc.UpdateStatus(context.Background(), a.ID, appointment.StatusCompleted, f.docUser.ID, domain.RoleDoctor); err != nil {
			t.Fatal(err)
		}
		_, err := f.svc.UpdateStatus(context.Background(), a.ID, appointment.StatusApproved, f.docUser.ID, domain.RoleDoctor)
		if err != appointment.ErrInvalidStatusTransition {
			t.Errorf("completed→approved: got %v, want ErrInvalidStatusTransition", err)
		}
	})
}

func TestCancelWindow(t *testing.T) {
	f := newBookingFixture(t)

	// Today at 10:00, two hours from the fixture clock. Inside the 24 hour
	// patient window, so the patient is refused but the doctor is not.
	today := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	a := f.book(t, today, "10:00")

	_, err := f.svc.Cancel(context.Background(), a.ID, "cold feet", f.patient.ID, domain.RoleUser)
	if err != appointment.ErrTooCloseToStart {
		t.Errorf("patient inside window: got %v, want ErrTooCloseToStart", err)
	}

	got, err := f.svc.Cancel(context.Background(), a.ID, "clinic closed", f.docUser.ID, domain.RoleDoctor)
	if err != nil {
		t.Fatalf("doctor cancel failed: %v", err)
	}
	if got.Status != appointment.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if got.CancellationReason != "clinic closed" {
		t.Errorf("reason = %q, want %q", got.CancellationReason, "clinic closed")
	}
	if got.CancelledAt == nil {
		t.Error("cancelled_at not set")
	}
}

func TestCancelAuthorization(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	a := f.book(t, wednesday, "09:00")

	_, err := f.svc.Cancel(context.Background(), a.ID, "not mine", uuid.New(), domain.RoleUser)
	if err != ErrForbidden {
		t.Errorf("stranger cancel: got %v, want ErrForbidden", err)
	}

	// The record survives the soft cancel.
	if _, err := f.svc.Cancel(context.Background(), a.ID, "plans changed", f.patient.ID, domain.RoleUser); err != nil {
		t.Fatal(err)
	}
	stored, err := f.apptRepo.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("cancelled appointment should still exist: %v", err)
	}
	if stored.Status != appointment.StatusCancelled {
		t.Errorf("status = %q, want cancelled", stored.Status)
	}
}

func TestReschedule(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	thursday := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)

	a := f.book(t, wednesday, "09:00")

	fresh, err := f.svc.Reschedule(context.Background(), a.ID, &appointment.RescheduleCommand{
		Date: thursday,
		Slot: "11:00",
	}, f.patient.ID, domain.RoleUser)
	if err != nil {
		t.Fatalf("Reschedule() failed: %v", err)
	}

	if fresh.ID == a.ID {
		t.Error("reschedule should create a new appointment")
	}
	if fresh.Problem != a.Problem {
		t.Errorf("problem = %q, want carried over %q", fresh.Problem, a.Problem)
	}
	if fresh.Status != appointment.StatusPending {
		t.Errorf("status = %q, want pending", fresh.Status)
	}

	old, err := f.apptRepo.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.Status != appointment.StatusCancelled {
		t.Errorf("old status = %q, want cancelled", old.Status)
	}
	if old.CancellationReason != "rescheduled" {
		t.Errorf("old reason = %q, want rescheduled", old.CancellationReason)
	}

	// The vacated slot is free again.
	if _, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		DoctorID: f.doctor.ID,
		Date:     wednesday,
		Slot:     "09:00",
		Problem:  "new booking",
	}, f.patient.ID, domain.RoleUser); err != nil {
		t.Errorf("booking the vacated slot failed: %v", err)
	}
}

func TestUpdateNotesAndProblem(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	a := f.book(t, wednesday, "09:00")

	if err := f.svc.UpdateNotes(context.Background(), a.ID, "prescribed rest", f.patient.ID, domain.RoleUser); err != ErrForbidden {
		t.Errorf("patient notes: got %v, want ErrForbidden", err)
	}
	if err := f.svc.UpdateNotes(context.Background(), a.ID, "prescribed rest", f.docUser.ID, domain.RoleDoctor); err != nil {
		t.Errorf("doctor notes failed: %v", err)
	}

	if err := f.svc.UpdateProblem(context.Background(), a.ID, "worsening headache", uuid.New(), domain.RoleUser); err != ErrForbidden {
		t.Errorf("stranger problem update: got %v, want ErrForbidden", err)
	}
	if err := f.svc.UpdateProblem(context.Background(), a.ID, "worsening headache", f.patient.ID, domain.RoleUser); err != nil {
		t.Errorf("owner problem update failed: %v", err)
	}

	stored, _ := f.apptRepo.GetByID(context.Background(), a.ID)
	if stored.Notes != "prescribed rest" {
		t.Errorf("notes = %q", stored.Notes)
	}
	if stored.Problem != "worsening headache" {
		t.Errorf("problem = %q", stored.Problem)
	}
}

func TestListScoping(t *testing.T) {
	f := newBookingFixture(t)
	wednesday := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	f.book(t, wednesday, "09:00")

	other := &domain.User{ID: uuid.New(), Email: "other@example.test", Name: "Sam", Role: domain.RoleUser, IsActive: true}
	if err := f.userRepo.Create(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		DoctorID: f.doctor.ID,
		Date:     wednesday,
		Slot:     "10:00",
		Problem:  "cough",
	}, other.ID, domain.RoleUser); err != nil {
		t.Fatal(err)
	}

	// A patient asking for someone else's appointments only gets their own.
	page, err := f.svc.List(context.Background(), &appointment.ListAppointmentsQuery{UserID: &other.ID}, f.patient.ID, domain.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range page.Appointments {
		if a.UserID != f.patient.ID {
			t.Errorf("patient list leaked appointment of %v", a.UserID)
		}
	}

	// A doctor cannot list another doctor's schedule.
	otherDoctor := uuid.New()
	if _, err := f.svc.List(context.Background(), &appointment.ListAppointmentsQuery{DoctorID: &otherDoctor}, f.docUser.ID, domain.RoleDoctor); err != doctor.ErrDoctorNotFound {
		t.Errorf("got %v, want ErrDoctorNotFound", err)
	}
}
