package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts a booking. A partial unique index on
	// (doctor_id, date, slot) over non-cancelled rows makes the insert the
	// conflict arbiter; a duplicate returns ErrSlotTaken.
	Create(ctx context.Context, a *Appointment) error

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error)

	// ListByDoctorDate returns all appointments for a doctor on a calendar
	// date, cancelled ones included — the conflict filter decides.
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)

	// UpdateStatus persists a status change together with any cancellation
	// fields set on the appointment.
	UpdateStatus(ctx context.Context, a *Appointment) error

	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error
	UpdateProblem(ctx context.Context, id uuid.UUID, problem string) error
}
