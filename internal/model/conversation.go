package model

import (
	"time"

	"gorm.io/gorm"
)

// Conversation has the same dual-ownership shape as Lead: the consumer and
// members of the business can both read it, nobody else can.
type Conversation struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	ConsumerUserID uint           `json:"consumer_user_id" gorm:"index;not null"`
	BusinessID     uint           `json:"business_id" gorm:"index;not null"`
	LeadID         *uint          `json:"lead_id,omitempty" gorm:"index"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID"`
}

// Message is a single entry appended to a conversation.
type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversation_id" gorm:"index;not null"`
	SenderUserID   uint      `json:"sender_user_id" gorm:"index;not null"`
	Body           string    `json:"body" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at"`
}
