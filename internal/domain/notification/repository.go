package notification

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error

	// ListByUser returns the user's notifications, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error)

	// MarkRead flips one notification owned by the user. Returns
	// ErrNotificationNotFound if the id does not exist or belongs to
	// someone else.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error

	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}
