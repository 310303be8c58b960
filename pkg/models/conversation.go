package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TitleLimit is the maximum number of runes in a derived conversation title.
const TitleLimit = 50

// Conversation represents a chat conversation
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Title     string    `gorm:"size:255;not null;default:'New Conversation'" json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	User     User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName specifies the table name for Conversation model
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate hook to ensure ID is set
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// DeriveTitle builds a conversation title from the first user message:
// the input truncated to TitleLimit runes with an ellipsis appended when
// anything was cut off. Only ever applied to a fresh conversation, later
// messages never change the title.
func DeriveTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= TitleLimit {
		return firstMessage
	}
	return string(runes[:TitleLimit]) + "..."
}
