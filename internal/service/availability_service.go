package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/doctor"
)

// AvailabilityService computes the bookable slot grid for a doctor and date:
// the doctor's working hours cut into fixed-length windows, minus windows
// held by a non-cancelled booking.
type AvailabilityService struct {
	doctorRepo doctor.Repository
	apptRepo   appointment.Repository
	slotLen    time.Duration
	log        *zap.Logger
}

func NewAvailabilityService(
	doctorRepo doctor.Repository,
	apptRepo appointment.Repository,
	slotLen time.Duration,
	log *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{doctorRepo: doctorRepo, apptRepo: apptRepo, slotLen: slotLen, log: log}
}

// AvailableSlots returns the annotated slot grid for the date. A day outside
// the doctor's working days yields an empty grid, not an error.
func (s *AvailabilityService) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.Slot, error) {
	d, err := s.doctorRepo.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if d.Status != doctor.StatusApproved {
		return nil, doctor.ErrDoctorNotApproved
	}

	if !d.WorksOn(date) {
		return []appointment.Slot{}, nil
	}

	grid, err := SlotGrid(d.StartTime, d.EndTime, s.slotLen)
	if err != nil {
		return nil, err
	}

	booked, err := s.apptRepo.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	return FilterBookable(grid, booked), nil
}

// SlotGrid cuts the [start, end) working window into slot start times,
// slotLen apart, first equal to start. A trailing window that would run past
// end is dropped, so the grid has exactly floor((end-start)/slotLen) entries.
func SlotGrid(start, end string, slotLen time.Duration) ([]string, error) {
	from, err := time.Parse(appointment.SlotLayout, start)
	if err != nil {
		return nil, doctor.ErrInvalidSchedule
	}
	to, err := time.Parse(appointment.SlotLayout, end)
	if err != nil {
		return nil, doctor.ErrInvalidSchedule
	}
	if !from.Before(to) {
		return nil, doctor.ErrInvalidSchedule
	}

	var grid []string
	for t := from; !t.Add(slotLen).After(to); t = t.Add(slotLen) {
		grid = append(grid, t.Format(appointment.SlotLayout))
	}
	return grid, nil
}

// FilterBookable annotates the grid: a slot is taken iff some appointment
// occupies it with a status other than cancelled. Cancelled bookings free
// their slot.
func FilterBookable(grid []string, booked []*appointment.Appointment) []appointment.Slot {
	taken := make(map[string]bool, len(booked))
	for _, a := range booked {
		if a.Status != appointment.StatusCancelled {
			taken[a.Slot] = true
		}
	}

	slots := make([]appointment.Slot, 0, len(grid))
	for _, t := range grid {
		slots = append(slots, appointment.Slot{Time: t, Bookable: !taken[t]})
	}
	return slots
}
