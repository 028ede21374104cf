package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error

	// ListConversation returns messages for one conversation in send order.
	// A non-zero since returns only messages created after it, which lets
	// clients poll incrementally.
	ListConversation(ctx context.Context, conversationID uuid.UUID, since time.Time) ([]*Message, error)

	// ActiveConversations lists conversation owners with recent messages,
	// for the admin support view.
	ActiveConversations(ctx context.Context, limit int) ([]uuid.UUID, error)
}
