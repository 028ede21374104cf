package appointment

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date wire format. Dates are naive: no timezone
// is modeled, the clinic's local day is authoritative.
const DateLayout = "2006-01-02"

// SlotLayout is the wire format of a slot's start time.
const SlotLayout = "15:04"

// State transitions:
//
//	pending → approved | cancelled
//	approved → in_progress | completed | no_show | cancelled
//	in_progress → completed | cancelled
//	completed, cancelled, no_show are terminal
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	DoctorID uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`

	Date time.Time `gorm:"column:date;type:date;not null;index" json:"date"`
	// Slot start time in "HH:MM". Slots are fixed-length windows on the
	// doctor's working-hours grid.
	Slot   string `gorm:"column:slot;type:varchar(5);not null" json:"slot"`
	Status Status `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`

	Problem string `gorm:"column:problem;type:text" json:"problem"`
	Notes   string `gorm:"column:notes;type:text" json:"notes"`

	// Rated marks that the patient has left a rating for this appointment's
	// doctor. Canonical field; status is never overloaded for this.
	Rated bool `gorm:"column:rated;default:false" json:"rated"`

	BookedOn time.Time `gorm:"column:booked_on;not null" json:"booked_on"`

	// Cancellation tracking. Appointments are soft-cancelled, never deleted,
	// so history survives for rating and audit.
	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `gorm:"column:cancelled_by;type:uuid" json:"cancelled_by,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// StartsAt combines the calendar date and slot start time.
func (a *Appointment) StartsAt() time.Time {
	slot, err := time.Parse(SlotLayout, a.Slot)
	if err != nil {
		return a.Date
	}
	return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(),
		slot.Hour(), slot.Minute(), 0, 0, a.Date.Location())
}

func (a *Appointment) IsTerminal() bool {
	switch a.Status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (a *Appointment) CanTransitionTo(newStatus Status) bool {
	allowed := map[Status][]Status{
		StatusPending:    {StatusApproved, StatusCancelled},
		StatusApproved:   {StatusInProgress, StatusCompleted, StatusNoShow, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled},
		StatusCompleted:  {},
		StatusCancelled:  {},
		StatusNoShow:     {},
	}

	for _, s := range allowed[a.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

func (a *Appointment) Cancel(reason string, cancelledBy uuid.UUID) error {
	if !a.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = reason
	a.CancelledBy = &cancelledBy
	return nil
}

// Slot annotates one bookable window for the availability view.
type Slot struct {
	Time     string `json:"time"`
	Bookable bool   `json:"bookable"`
}

type BookAppointmentCommand struct {
	DoctorID uuid.UUID
	UserID   uuid.UUID
	Date     time.Time
	Slot     string
	Problem  string
}

type RescheduleCommand struct {
	Date time.Time
	Slot string
}

type ListAppointmentsQuery struct {
	DoctorID *uuid.UUID
	UserID   *uuid.UUID
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

type PagedAppointments struct {
	Appointments []*Appointment `json:"appointments"`
	TotalCount   int64          `json:"total_count"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
}
