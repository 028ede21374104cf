package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/internal/domain/chat"
)

// ChatService handles the per-user support conversation with the admin team.
type ChatService struct {
	repo chat.Repository
	log  *zap.Logger
}

func NewChatService(repo chat.Repository, log *zap.Logger) *ChatService {
	return &ChatService{repo: repo, log: log}
}

// Send posts a message. Users and doctors write into their own conversation;
// admins write into the conversation they are answering.
func (s *ChatService) Send(ctx context.Context, conversationID uuid.UUID, text string, caller *domain.Claims, callerName string) (*chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, chat.ErrEmptyMessage
	}

	if caller.Role != domain.RoleAdmin {
		conversationID = caller.UserID
	}
	if conversationID == uuid.Nil {
		return nil, &ValidationError{Fields: []string{"conversation_id is required"}}
	}

	m := &chat.Message{
		ConversationID: conversationID,
		SenderID:       caller.UserID,
		SenderName:     callerName,
		SenderRole:     string(caller.Role),
		Text:           strings.TrimSpace(text),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Conversation returns a conversation's messages in send order. since is the
// incremental-polling cursor: zero means the full history.
func (s *ChatService) Conversation(ctx context.Context, conversationID uuid.UUID, since time.Time, caller *domain.Claims) ([]*chat.Message, error) {
	if caller.Role != domain.RoleAdmin {
		conversationID = caller.UserID
	}
	return s.repo.ListConversation(ctx, conversationID, since)
}

// ActiveConversations lists conversations for the admin support inbox.
func (s *ChatService) ActiveConversations(ctx context.Context, callerRole domain.Role) ([]uuid.UUID, error) {
	if callerRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.repo.ActiveConversations(ctx, 50)
}
