package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cosmos-ai/cosmos-host/pkg/models"
)

// Conversations lists the session owner's conversations, most recently
// updated first.
func (s *Session) Conversations(ctx context.Context) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, s.ownerID)
}

// Select makes the given conversation the foreground one and replaces the
// visible message list with its persisted history. Selecting while a stream
// is in flight is allowed: the stream keeps running against its pinned
// target and its fragments stop being merged into the (now different)
// foreground view.
func (s *Session) Select(ctx context.Context, conversationID uuid.UUID) error {
	conversation, err := s.store.GetConversation(ctx, s.ownerID, conversationID)
	if err != nil {
		return err
	}
	history, err := s.store.ListMessages(ctx, s.ownerID, conversationID)
	if err != nil {
		return errors.Wrap(err, "failed to load conversation history")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = conversation
	s.visible = history
	if s.phase != PhaseStreaming {
		s.phase = PhaseDrafting
	}
	return nil
}

// StartNew clears the selection for a brand-new, not-yet-saved conversation.
// The conversation row is only created on the first submission.
func (s *Session) StartNew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.visible = nil
	if s.phase != PhaseStreaming {
		s.phase = PhaseIdle
	}
}

// Delete removes a conversation and all its messages. If it was the
// foreground conversation the selection and visible messages are cleared.
func (s *Session) Delete(ctx context.Context, conversationID uuid.UUID) error {
	if err := s.store.DeleteConversation(ctx, s.ownerID, conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != nil && s.selected.ID == conversationID {
		s.selected = nil
		s.visible = nil
		if s.phase != PhaseStreaming {
			s.phase = PhaseIdle
		}
	}
	return nil
}
