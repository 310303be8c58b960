package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/cosmos-ai/cosmos-host/pkg/store"
)

func setupStore(t *testing.T) (*store.Store, uuid.UUID) {
	t.Helper()
	db := models.InitializeTestDB(t)
	ownerID := uuid.New()
	require.NoError(t, models.EnsureUser(db, ownerID))
	return store.New(db), ownerID
}

func TestConversationLifecycle(t *testing.T) {
	st, ownerID := setupStore(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "Black holes")
	require.NoError(t, err)
	assert.Equal(t, "Black holes", conversation.Title)
	assert.Equal(t, ownerID, conversation.UserID)

	fetched, err := st.GetConversation(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, fetched.ID)

	require.NoError(t, st.RenameConversation(ctx, ownerID, conversation.ID, "Event horizons"))
	fetched, err = st.GetConversation(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Event horizons", fetched.Title)

	require.NoError(t, st.DeleteConversation(ctx, ownerID, conversation.ID))
	_, err = st.GetConversation(ctx, ownerID, conversation.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOwnerScoping(t *testing.T) {
	st, ownerID := setupStore(t)
	ctx := context.Background()
	strangerID := uuid.New()

	conversation, err := st.CreateConversation(ctx, ownerID, "Private")
	require.NoError(t, err)

	_, err = st.GetConversation(ctx, strangerID, conversation.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = st.RenameConversation(ctx, strangerID, conversation.ID, "Hijacked")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = st.DeleteConversation(ctx, strangerID, conversation.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.ListMessages(ctx, strangerID, conversation.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.CreateMessage(ctx, strangerID, conversation.ID, models.MessageRoleUser, "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// owner still sees the original title
	fetched, err := st.GetConversation(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", fetched.Title)
}

func TestListConversationsOrdering(t *testing.T) {
	st, ownerID := setupStore(t)
	ctx := context.Background()

	first, err := st.CreateConversation(ctx, ownerID, "first")
	require.NoError(t, err)
	second, err := st.CreateConversation(ctx, ownerID, "second")
	require.NoError(t, err)

	// appending a message bumps updated_at, moving first back to the top
	time.Sleep(10 * time.Millisecond)
	_, err = st.CreateMessage(ctx, ownerID, first.ID, models.MessageRoleUser, "bump")
	require.NoError(t, err)

	conversations, err := st.ListConversations(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, first.ID, conversations[0].ID)
	assert.Equal(t, second.ID, conversations[1].ID)
}

func TestMessagesReplayOrder(t *testing.T) {
	st, ownerID := setupStore(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "chat")
	require.NoError(t, err)

	contents := []string{"What is a pulsar?", "A rotating neutron star.", "How fast?"}
	roles := []models.MessageRole{models.MessageRoleUser, models.MessageRoleAssistant, models.MessageRoleUser}
	for i := range contents {
		_, err := st.CreateMessage(ctx, ownerID, conversation.ID, roles[i], contents[i])
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	messages, err := st.ListMessages(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, message := range messages {
		assert.Equal(t, contents[i], message.Content)
		assert.Equal(t, roles[i], message.Role)
	}
}

func TestCreateMessageRejectsInvalidRole(t *testing.T) {
	st, ownerID := setupStore(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "chat")
	require.NoError(t, err)

	_, err = st.CreateMessage(ctx, ownerID, conversation.ID, "system", "nope")
	assert.Error(t, err)

	messages, err := st.ListMessages(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	st, ownerID := setupStore(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "doomed")
	require.NoError(t, err)
	_, err = st.CreateMessage(ctx, ownerID, conversation.ID, models.MessageRoleUser, "hello")
	require.NoError(t, err)

	keep, err := st.CreateConversation(ctx, ownerID, "kept")
	require.NoError(t, err)
	keptMessage, err := st.CreateMessage(ctx, ownerID, keep.ID, models.MessageRoleUser, "still here")
	require.NoError(t, err)

	require.NoError(t, st.DeleteConversation(ctx, ownerID, conversation.ID))

	_, err = st.ListMessages(ctx, ownerID, conversation.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	messages, err := st.ListMessages(ctx, ownerID, keep.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, keptMessage.ID, messages[0].ID)
}
