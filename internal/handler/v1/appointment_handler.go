package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/service"
)

type AppointmentHandler struct {
	svc *service.AppointmentService
}

func NewAppointmentHandler(svc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type bookAppointmentRequest struct {
	DoctorID string `json:"doctor_id" binding:"required"`
	UserID   string `json:"user_id"`
	Date     string `json:"date" binding:"required"`
	Slot     string `json:"slot" binding:"required"`
	Problem  string `json:"problem" binding:"required"`
}

func (h *AppointmentHandler) Book(c *gin.Context) {
	var req bookAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	doctorID, ok := parseUUIDString(c, "doctor_id", req.DoctorID)
	if !ok {
		return
	}
	date, err := time.Parse(appointment.DateLayout, req.Date)
	if err != nil {
		respondError(c, 400, "invalid date: must be "+appointment.DateLayout)
		return
	}

	claims := callerClaims(c)
	cmd := &appointment.BookAppointmentCommand{
		DoctorID: doctorID,
		UserID:   claims.UserID,
		Date:     date,
		Slot:     req.Slot,
		Problem:  req.Problem,
	}
	// Admins may book on a patient's behalf.
	if req.UserID != "" {
		userID, ok := parseUUIDString(c, "user_id", req.UserID)
		if !ok {
			return
		}
		cmd.UserID = userID
	}

	a, err := h.svc.Book(c.Request.Context(), cmd, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := callerClaims(c)
	a, err := h.svc.Get(c.Request.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) List(c *gin.Context) {
	claims := callerClaims(c)
	q := &appointment.ListAppointmentsQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("doctor_id"); raw != "" {
		id, ok := parseUUIDString(c, "doctor_id", raw)
		if !ok {
			return
		}
		q.DoctorID = &id
	}
	if raw := c.Query("user_id"); raw != "" {
		id, ok := parseUUIDString(c, "user_id", raw)
		if !ok {
			return
		}
		q.UserID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := appointment.Status(raw)
		q.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(appointment.DateLayout, raw)
		if err != nil {
			respondError(c, 400, "invalid from: must be "+appointment.DateLayout)
			return
		}
		q.DateFrom = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(appointment.DateLayout, raw)
		if err != nil {
			respondError(c, 400, "invalid to: must be "+appointment.DateLayout)
			return
		}
		q.DateTo = &t
	}

	page, err := h.svc.List(c.Request.Context(), q, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	a, err := h.svc.UpdateStatus(c.Request.Context(), id, appointment.Status(req.Status), claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by requester"
	}

	claims := callerClaims(c)
	a, err := h.svc.Cancel(c.Request.Context(), id, req.Reason, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

type rescheduleRequest struct {
	Date string `json:"date" binding:"required"`
	Slot string `json:"slot" binding:"required"`
}

func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := time.Parse(appointment.DateLayout, req.Date)
	if err != nil {
		respondError(c, 400, "invalid date: must be "+appointment.DateLayout)
		return
	}

	claims := callerClaims(c)
	a, err := h.svc.Reschedule(c.Request.Context(), id, &appointment.RescheduleCommand{
		Date: date,
		Slot: req.Slot,
	}, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a)
}

type updateNotesRequest struct {
	Notes string `json:"notes" binding:"required"`
}

func (h *AppointmentHandler) UpdateNotes(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateNotesRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	if err := h.svc.UpdateNotes(c.Request.Context(), id, req.Notes, claims.UserID, claims.Role); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}

type updateProblemRequest struct {
	Problem string `json:"problem" binding:"required"`
}

func (h *AppointmentHandler) UpdateProblem(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateProblemRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	if err := h.svc.UpdateProblem(c.Request.Context(), id, req.Problem, claims.UserID, claims.Role); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}
