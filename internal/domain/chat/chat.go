package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message belongs to a per-user support conversation with the admin team.
// ConversationID is the id of the user the conversation is about, for both
// sides of the exchange.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	ConversationID uuid.UUID `gorm:"column:conversation_id;type:uuid;not null;index" json:"conversation_id"`

	SenderID   uuid.UUID `gorm:"column:sender_id;type:uuid;not null" json:"sender_id"`
	SenderName string    `gorm:"column:sender_name;type:varchar(200);not null" json:"sender_name"`
	SenderRole string    `gorm:"column:sender_role;type:varchar(30);not null" json:"sender_role"`

	Text string `gorm:"column:text;type:text;not null" json:"text"`
}

func (Message) TableName() string {
	return "chat_messages"
}
