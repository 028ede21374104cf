package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *GormRepository) ListConversation(ctx context.Context, conversationID uuid.UUID, since time.Time) ([]*Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if !since.IsZero() {
		q = q.Where("created_at > ?", since)
	}

	var messages []*Message
	err := q.Order("created_at ASC").Find(&messages).Error
	return messages, err
}

func (r *GormRepository) ActiveConversations(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&Message{}).
		Select("conversation_id").
		Group("conversation_id").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Pluck("conversation_id", &ids).Error
	return ids, err
}
