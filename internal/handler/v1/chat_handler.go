package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/service"
)

type ChatHandler struct {
	svc     *service.ChatService
	authSvc *service.AuthService
}

func NewChatHandler(svc *service.ChatService, authSvc *service.AuthService) *ChatHandler {
	return &ChatHandler{svc: svc, authSvc: authSvc}
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text" binding:"required"`
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	conversationID := claims.UserID
	if req.ConversationID != "" {
		id, ok := parseUUIDString(c, "conversation_id", req.ConversationID)
		if !ok {
			return
		}
		conversationID = id
	}

	user, err := h.authSvc.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	m, err := h.svc.Send(c.Request.Context(), conversationID, req.Text, claims, user.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, m)
}

// Conversation returns messages in send order. The optional since query param
// (RFC 3339) is the incremental-polling cursor.
func (h *ChatHandler) Conversation(c *gin.Context) {
	claims := callerClaims(c)

	conversationID := claims.UserID
	if raw := c.Query("conversation_id"); raw != "" {
		id, ok := parseUUIDString(c, "conversation_id", raw)
		if !ok {
			return
		}
		conversationID = id
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, 400, "invalid since: must be RFC 3339")
			return
		}
		since = t
	}

	messages, err := h.svc.Conversation(c.Request.Context(), conversationID, since, claims)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"messages": messages})
}

// ActiveConversations is the admin support inbox.
func (h *ChatHandler) ActiveConversations(c *gin.Context) {
	claims := callerClaims(c)

	ids, err := h.svc.ActiveConversations(c.Request.Context(), claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	respondOK(c, gin.H{"conversations": ids})
}
