package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/carebook/carebook/internal/domain/doctor"
	"github.com/carebook/carebook/internal/service"
)

type DoctorHandler struct {
	svc          *service.DoctorService
	availability *service.AvailabilityService
	ratings      *service.RatingService
}

func NewDoctorHandler(svc *service.DoctorService, availability *service.AvailabilityService, ratings *service.RatingService) *DoctorHandler {
	return &DoctorHandler{svc: svc, availability: availability, ratings: ratings}
}

type applyDoctorRequest struct {
	FirstName     string   `json:"first_name" binding:"required"`
	LastName      string   `json:"last_name" binding:"required"`
	Speciality    string   `json:"speciality" binding:"required"`
	Experience    int      `json:"experience_years"`
	Qualification string   `json:"qualification"`
	Email         string   `json:"email" binding:"required,email"`
	Phone         string   `json:"phone"`
	Address       string   `json:"address"`
	Fee           int      `json:"fee"`
	WorkingDays   []string `json:"working_days" binding:"required"`
	StartTime     string   `json:"start_time" binding:"required"`
	EndTime       string   `json:"end_time" binding:"required"`
}

func (h *DoctorHandler) Apply(c *gin.Context) {
	var req applyDoctorRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	d, err := h.svc.Apply(c.Request.Context(), &doctor.CreateDoctorCommand{
		UserID:        claims.UserID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Speciality:    req.Speciality,
		Experience:    req.Experience,
		Qualification: req.Qualification,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Fee:           req.Fee,
		WorkingDays:   req.WorkingDays,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, d)
}

func (h *DoctorHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	profile, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, profile)
}

func (h *DoctorHandler) List(c *gin.Context) {
	claims := callerClaims(c)
	q := &doctor.ListDoctorsQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("speciality"); raw != "" {
		q.Speciality = &raw
	}
	if raw := c.Query("status"); raw != "" {
		status := doctor.Status(raw)
		q.Status = &status
	}

	page, err := h.svc.List(c.Request.Context(), q, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

type updateDoctorRequest struct {
	FirstName     *string  `json:"first_name"`
	LastName      *string  `json:"last_name"`
	Speciality    *string  `json:"speciality"`
	Experience    *int     `json:"experience_years"`
	Qualification *string  `json:"qualification"`
	Email         *string  `json:"email"`
	Phone         *string  `json:"phone"`
	Address       *string  `json:"address"`
	Fee           *int     `json:"fee"`
	WorkingDays   []string `json:"working_days"`
	StartTime     *string  `json:"start_time"`
	EndTime       *string  `json:"end_time"`
}

func (h *DoctorHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateDoctorRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	d, err := h.svc.Update(c.Request.Context(), id, &doctor.UpdateDoctorCommand{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Speciality:    req.Speciality,
		Experience:    req.Experience,
		Qualification: req.Qualification,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Fee:           req.Fee,
		WorkingDays:   req.WorkingDays,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	}, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

type changeDoctorStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *DoctorHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req changeDoctorStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	d, err := h.svc.ChangeStatus(c.Request.Context(), id, doctor.Status(req.Status), claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

// Availability returns the slot grid for a doctor on a date, each slot
// annotated with whether it can still be booked.
func (h *DoctorHandler) Availability(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	date, ok := parseDateQuery(c, "date")
	if !ok {
		return
	}

	slots, err := h.availability.AvailableSlots(c.Request.Context(), id, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"date": c.Query("date"), "slots": slots})
}

type submitRatingRequest struct {
	AppointmentID string `json:"appointment_id" binding:"required"`
	Stars         int    `json:"stars" binding:"required"`
	Comment       string `json:"comment"`
}

func (h *DoctorHandler) SubmitRating(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req submitRatingRequest
	if !bindJSON(c, &req) {
		return
	}
	appointmentID, ok := parseUUIDString(c, "appointment_id", req.AppointmentID)
	if !ok {
		return
	}

	claims := callerClaims(c)
	summary, err := h.ratings.Submit(c.Request.Context(), id, appointmentID, req.Stars, req.Comment, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, summary)
}

func (h *DoctorHandler) ListRatings(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	ratings, err := h.ratings.List(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	summary, err := h.ratings.Summary(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"summary": summary, "ratings": ratings})
}

// Me returns the calling doctor's own profile, approved or not.
func (h *DoctorHandler) Me(c *gin.Context) {
	claims := callerClaims(c)
	d, err := h.svc.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}
