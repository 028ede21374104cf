package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carebook/carebook/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.Register(c.Request.Context(), &service.RegisterCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims := callerClaims(c)
	user, err := h.svc.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, user)
}

type updateProfileRequest struct {
	Name         *string `json:"name"`
	DateOfBirth  *string `json:"date_of_birth"`
	Address      *string `json:"address"`
	Phone        *string `json:"phone"`
	HealthNumber *string `json:"health_number"`
	PictureURL   *string `json:"picture_url"`
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &service.UpdateProfileCommand{
		Name:         req.Name,
		Address:      req.Address,
		Phone:        req.Phone,
		HealthNumber: req.HealthNumber,
		PictureURL:   req.PictureURL,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			respondError(c, 400, "invalid date_of_birth: must be 2006-01-02")
			return
		}
		cmd.DateOfBirth = &dob
	}

	claims := callerClaims(c)
	user, err := h.svc.UpdateProfile(c.Request.Context(), claims.UserID, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	if err := h.svc.ChangePassword(c.Request.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"changed": true})
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	claims := callerClaims(c)
	page := parseQueryInt(c, "page", 1)
	pageSize := parseQueryInt(c, "page_size", 20)

	users, total, err := h.svc.ListUsers(c.Request.Context(), page, pageSize, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"users": users, "total_count": total, "page": page, "page_size": pageSize})
}
