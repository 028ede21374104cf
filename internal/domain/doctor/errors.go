package doctor

import "errors"

var (
	ErrDoctorNotFound          = errors.New("doctor not found")
	ErrDoctorAlreadyApplied    = errors.New("a doctor profile has already been submitted for this account")
	ErrDoctorNotApproved       = errors.New("doctor is not approved for bookings")
	ErrInvalidStatusTransition = errors.New("invalid doctor status transition")
	ErrAlreadyRated            = errors.New("you have already rated this doctor")
	ErrInvalidStars            = errors.New("rating must be between 1 and 5 stars")
	ErrInvalidSchedule         = errors.New("working hours must be valid HH:MM times with start before end")
)
