package chat_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmos-ai/cosmos-host/pkg/chat"
	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/cosmos-ai/cosmos-host/pkg/store"
)

func TestSelectLoadsPersistedHistory(t *testing.T) {
	session, st, _, ownerID := setupSession(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "history")
	require.NoError(t, err)
	_, err = st.CreateMessage(ctx, ownerID, conversation.ID, models.MessageRoleUser, "ping")
	require.NoError(t, err)
	_, err = st.CreateMessage(ctx, ownerID, conversation.ID, models.MessageRoleAssistant, "pong")
	require.NoError(t, err)

	require.NoError(t, session.Select(ctx, conversation.ID))
	assert.Equal(t, chat.PhaseDrafting, session.Phase())

	visible := session.VisibleMessages()
	require.Len(t, visible, 2)
	assert.Equal(t, "ping", visible[0].Content)
	assert.Equal(t, "pong", visible[1].Content)
}

func TestSelectUnknownConversation(t *testing.T) {
	session, _, _, _ := setupSession(t)

	err := session.Select(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, chat.PhaseIdle, session.Phase())
	assert.Nil(t, session.Selected())
}

func TestStartNewClearsSelection(t *testing.T) {
	session, st, _, ownerID := setupSession(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "old")
	require.NoError(t, err)
	require.NoError(t, session.Select(ctx, conversation.ID))

	session.StartNew()
	assert.Nil(t, session.Selected())
	assert.Empty(t, session.VisibleMessages())
	assert.Equal(t, chat.PhaseIdle, session.Phase())
}

func TestDeleteSelectedConversation(t *testing.T) {
	session, st, _, ownerID := setupSession(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "doomed")
	require.NoError(t, err)
	require.NoError(t, session.Select(ctx, conversation.ID))

	require.NoError(t, session.Delete(ctx, conversation.ID))
	assert.Nil(t, session.Selected())
	assert.Equal(t, chat.PhaseIdle, session.Phase())

	conversations, err := session.Conversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestDeleteOtherConversationKeepsSelection(t *testing.T) {
	session, st, _, ownerID := setupSession(t)
	ctx := context.Background()

	kept, err := st.CreateConversation(ctx, ownerID, "kept")
	require.NoError(t, err)
	doomed, err := st.CreateConversation(ctx, ownerID, "doomed")
	require.NoError(t, err)

	require.NoError(t, session.Select(ctx, kept.ID))
	require.NoError(t, session.Delete(ctx, doomed.ID))

	require.NotNil(t, session.Selected())
	assert.Equal(t, kept.ID, session.Selected().ID)
	assert.Equal(t, chat.PhaseDrafting, session.Phase())
}
