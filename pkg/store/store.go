// Package store provides typed, owner-scoped access to the conversations
// and messages tables. Every read and write is filtered by the owning user:
// a request for another user's conversation behaves as "not found".
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cosmos-ai/cosmos-host/pkg/models"
)

// ErrNotFound is returned when a conversation does not exist or belongs to a
// different user. Callers cannot distinguish the two cases.
var ErrNotFound = errors.New("conversation not found")

// Store is the persistence client for conversations and messages.
type Store struct {
	db *gorm.DB
}

// New creates a store on top of the given database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListConversations returns all conversations of the owner, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return conversations, nil
}

// CreateConversation creates a conversation for the owner.
func (s *Store) CreateConversation(ctx context.Context, ownerID uuid.UUID, title string) (*models.Conversation, error) {
	conversation := models.Conversation{
		ID:     uuid.New(),
		UserID: ownerID,
		Title:  title,
	}
	if err := s.db.WithContext(ctx).Create(&conversation).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	return &conversation, nil
}

// GetConversation returns a single conversation owned by ownerID.
func (s *Store) GetConversation(ctx context.Context, ownerID, conversationID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, ownerID).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get conversation")
	}
	return &conversation, nil
}

// RenameConversation sets a new title on an owned conversation.
func (s *Store) RenameConversation(ctx context.Context, ownerID, conversationID uuid.UUID, title string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, ownerID).
		Update("title", title)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to rename conversation")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchConversation bumps updated_at so list ordering stays fresh.
func (s *Store) TouchConversation(ctx context.Context, conversationID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
	return errors.Wrap(err, "failed to touch conversation")
}

// DeleteConversation removes an owned conversation and all its messages.
// Messages are deleted first, inside one transaction, so a crash in between
// never leaves orphaned messages visible.
func (s *Store) DeleteConversation(ctx context.Context, ownerID, conversationID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		err := tx.Where("id = ? AND user_id = ?", conversationID, ownerID).
			First(&conversation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return errors.Wrap(err, "failed to get conversation")
		}

		if err := tx.Where("conversation_id = ?", conversationID).
			Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete messages")
		}
		if err := tx.Delete(&conversation).Error; err != nil {
			return errors.Wrap(err, "failed to delete conversation")
		}
		return nil
	})
}

// ListMessages returns all messages of an owned conversation in replay order
// (created_at ascending).
func (s *Store) ListMessages(ctx context.Context, ownerID, conversationID uuid.UUID) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	return messages, nil
}

// CreateMessage appends a message to an owned conversation and bumps the
// conversation's updated_at in the same transaction.
func (s *Store) CreateMessage(ctx context.Context, ownerID, conversationID uuid.UUID, role models.MessageRole, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, errors.Errorf("invalid message role %q", role)
	}

	message := models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Conversation{}).
			Where("id = ? AND user_id = ?", conversationID, ownerID).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to verify conversation")
		}
		if count == 0 {
			return ErrNotFound
		}

		if err := tx.Create(&message).Error; err != nil {
			return errors.Wrap(err, "failed to create message")
		}

		return errors.Wrap(tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error,
			"failed to touch conversation")
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}
