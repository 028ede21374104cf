package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrSlotTaken               = errors.New("this time slot is already booked")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrNotWorkingDay           = errors.New("doctor is not available on this day")
	ErrSlotOutsideHours        = errors.New("slot is outside the doctor's working hours")
	ErrAppointmentInPast       = errors.New("appointment date is in the past")
	ErrTooCloseToStart         = errors.New("appointment is too close to its start time to change")
)
