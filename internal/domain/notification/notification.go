package notification

import (
	"time"

	"github.com/google/uuid"
)

// Event type labels carried on notifications.
const (
	TypeAppointmentBooked  = "appointment_booked"
	TypeStatusChanged      = "appointment_status_changed"
	TypeAppointmentCancel  = "appointment_cancelled"
	TypeProblemUpdated     = "appointment_problem_updated"
	TypeDoctorStatusChange = "doctor_status_changed"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// The recipient. Notifications are owned by the user they are for.
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`

	Type string `gorm:"column:type;type:varchar(50);not null" json:"type"`
	// Snapshot of the triggering appointment (or doctor profile) at dispatch
	// time, serialized as JSON.
	Data string `gorm:"column:data;type:jsonb" json:"data"`

	Read bool `gorm:"column:read;default:false;index" json:"read"`
}

func (Notification) TableName() string {
	return "notifications"
}
