package doctor

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the admin-controlled approval state of a doctor profile.
//
// State transitions:
//
//	pending → approved | rejected
//	approved → blocked
//	blocked → approved
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusBlocked  Status = "blocked"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusBlocked:
		return true
	}
	return false
}

// WeekdaySet is the set of weekday names a doctor works, stored as a
// comma-joined string ("Monday,Tuesday,...").
type WeekdaySet []string

func (w WeekdaySet) Value() (driver.Value, error) {
	return strings.Join(w, ","), nil
}

func (w *WeekdaySet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case string:
		*w = split(v)
		return nil
	case []byte:
		*w = split(string(v))
		return nil
	}
	return fmt.Errorf("unsupported weekday set type %T", src)
}

func split(s string) WeekdaySet {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(WeekdaySet, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (w WeekdaySet) Contains(day time.Weekday) bool {
	for _, d := range w {
		if strings.EqualFold(d, day.String()) {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	// The user account that owns this profile. One application per account.
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`

	FirstName     string `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName      string `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	Speciality    string `gorm:"column:speciality;type:varchar(100);not null;index" json:"speciality"`
	Experience    int    `gorm:"column:experience_years" json:"experience_years"`
	Qualification string `gorm:"column:qualification;type:varchar(200)" json:"qualification"`

	Email   string `gorm:"column:email;type:varchar(255);not null" json:"email"`
	Phone   string `gorm:"column:phone;type:varchar(20)" json:"phone"`
	Address string `gorm:"column:address;type:text" json:"address"`
	Fee     int    `gorm:"column:fee" json:"fee"`

	WorkingDays WeekdaySet `gorm:"column:working_days;type:text" json:"working_days"`
	// Clock times in "HH:MM", no timezone. The schedule is interpreted in the
	// clinic's local time.
	StartTime string `gorm:"column:start_time;type:varchar(5);not null" json:"start_time"`
	EndTime   string `gorm:"column:end_time;type:varchar(5);not null" json:"end_time"`

	Status Status `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
}

func (Doctor) TableName() string {
	return "doctors"
}

func (d *Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// WorksOn reports whether the doctor's configured schedule covers the weekday
// of the given date.
func (d *Doctor) WorksOn(date time.Time) bool {
	return d.WorkingDays.Contains(date.Weekday())
}

func (d *Doctor) CanTransitionTo(newStatus Status) bool {
	allowed := map[Status][]Status{
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusBlocked},
		StatusRejected: {},
		StatusBlocked:  {StatusApproved},
	}

	for _, s := range allowed[d.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// Rating is one patient's rating of a doctor. A patient rates a doctor at
// most once; the unique index on (doctor_id, user_id) is authoritative.
type Rating struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	DoctorID      uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index:idx_ratings_doctor_user,unique" json:"doctor_id"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_ratings_doctor_user,unique" json:"user_id"`
	AppointmentID uuid.UUID `gorm:"column:appointment_id;type:uuid;not null" json:"appointment_id"`

	Stars   int    `gorm:"column:stars;not null" json:"stars"`
	Comment string `gorm:"column:comment;type:text" json:"comment"`
}

func (Rating) TableName() string {
	return "ratings"
}

// RatingSummary is derived from the live ratings rows, never stored. Average
// is rounded to one decimal for display.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type CreateDoctorCommand struct {
	UserID        uuid.UUID
	FirstName     string
	LastName      string
	Speciality    string
	Experience    int
	Qualification string
	Email         string
	Phone         string
	Address       string
	Fee           int
	WorkingDays   []string
	StartTime     string
	EndTime       string
}

type UpdateDoctorCommand struct {
	FirstName     *string
	LastName      *string
	Speciality    *string
	Experience    *int
	Qualification *string
	Email         *string
	Phone         *string
	Address       *string
	Fee           *int
	WorkingDays   []string
	StartTime     *string
	EndTime       *string
}

type ListDoctorsQuery struct {
	Status     *Status
	Speciality *string
	Page       int
	PageSize   int
}

type PagedDoctors struct {
	Doctors    []*Doctor `json:"doctors"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}
