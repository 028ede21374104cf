package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/carebook/carebook/internal/service"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(c *gin.Context) {
	claims := callerClaims(c)
	limit := parseQueryInt(c, "limit", 50)

	notifications, err := h.svc.List(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	unread, err := h.svc.UnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"notifications": notifications, "unread_count": unread})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := callerClaims(c)
	if err := h.svc.MarkRead(c.Request.Context(), id, claims.UserID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"read": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	claims := callerClaims(c)
	if err := h.svc.MarkAllRead(c.Request.Context(), claims.UserID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"read": true})
}
