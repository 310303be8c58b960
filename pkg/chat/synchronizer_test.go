package chat_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmos-ai/cosmos-host/pkg/chat"
	"github.com/cosmos-ai/cosmos-host/pkg/config"
	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/cosmos-ai/cosmos-host/pkg/store"
)

// Executed before test runs in this package (fails otherwise)
func TestMain(m *testing.M) {
	config.SetupEnv()
	os.Exit(m.Run())
}

// manualGateway hands the test full control over stream timing: chunks are
// delivered exactly when the test sends them.
type manualGateway struct {
	mu       sync.Mutex
	chunks   chan llm.StreamChunk
	requests []llm.ChatRequest
	startErr error
}

func (g *manualGateway) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (g *manualGateway) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return nil, g.startErr
	}
	g.requests = append(g.requests, req)
	g.chunks = make(chan llm.StreamChunk)
	return g.chunks, nil
}

func (g *manualGateway) lastRequest() llm.ChatRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

func setupSession(t *testing.T) (*chat.Session, *store.Store, *manualGateway, uuid.UUID) {
	t.Helper()
	db := models.InitializeTestDB(t)
	ownerID := uuid.New()
	require.NoError(t, models.EnsureUser(db, ownerID))
	st := store.New(db)
	gateway := &manualGateway{}
	session := chat.NewSession(st, gateway, ownerID,
		chat.WithModel("test-model"),
		chat.WithSystemPrompt("You are a test assistant."),
	)
	return session, st, gateway, ownerID
}

func drain(t *testing.T, events <-chan chat.StreamEvent) []chat.StreamEvent {
	t.Helper()
	var out []chat.StreamEvent
	for event := range events {
		out = append(out, event)
	}
	return out
}

func TestSubmitStreamsAndPersistsBothTurns(t *testing.T) {
	session, st, gateway, ownerID := setupSession(t)
	ctx := context.Background()

	events, err := session.Submit(ctx, "Hello")
	require.NoError(t, err)
	assert.Equal(t, chat.PhaseStreaming, session.Phase())

	gateway.chunks <- llm.StreamChunk{Content: "Hi "}
	gateway.chunks <- llm.StreamChunk{Content: "there!"}
	close(gateway.chunks)

	collected := drain(t, events)
	require.Len(t, collected, 3)
	assert.Equal(t, chat.StreamEventTypeContent, collected[0].Type)
	assert.Equal(t, "Hi ", collected[0].Content)
	assert.Equal(t, "there!", collected[1].Content)
	assert.Equal(t, chat.StreamEventTypeDone, collected[2].Type)
	require.NotNil(t, collected[2].Message)
	assert.Equal(t, "Hi there!", collected[2].Message.Content)

	// the exchange settled back into drafting on the lazily created conversation
	assert.Equal(t, chat.PhaseDrafting, session.Phase())
	conversation := session.Selected()
	require.NotNil(t, conversation)
	assert.Equal(t, "Hello", conversation.Title)

	// both turns are persisted in replay order
	messages, err := st.ListMessages(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.MessageRoleUser, messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, models.MessageRoleAssistant, messages[1].Role)
	assert.Equal(t, "Hi there!", messages[1].Content)

	// the visible list matches storage
	visible := session.VisibleMessages()
	require.Len(t, visible, 2)
	assert.Equal(t, "Hi there!", visible[1].Content)

	// the request carried the system prompt first, then the user turn
	request := gateway.lastRequest()
	require.Len(t, request.Messages, 2)
	assert.Equal(t, llm.RoleSystem, request.Messages[0].Role)
	assert.Equal(t, "You are a test assistant.", request.Messages[0].Content)
	assert.Equal(t, llm.RoleUser, request.Messages[1].Role)
	assert.Equal(t, "test-model", request.Model)
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	session, _, _, _ := setupSession(t)

	_, err := session.Submit(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, chat.ErrEmptyInput)
	assert.Equal(t, chat.PhaseIdle, session.Phase())
}

func TestSubmitRefusedWhileStreaming(t *testing.T) {
	session, _, gateway, _ := setupSession(t)
	ctx := context.Background()

	events, err := session.Submit(ctx, "first")
	require.NoError(t, err)

	_, err = session.Submit(ctx, "second")
	assert.ErrorIs(t, err, chat.ErrStreamInFlight)

	close(gateway.chunks)
	drain(t, events)
	assert.Equal(t, chat.PhaseDrafting, session.Phase())
}

func TestVisibleMessagesMergesInFlightFragments(t *testing.T) {
	session, _, gateway, _ := setupSession(t)
	ctx := context.Background()

	events, err := session.Submit(ctx, "Tell me about quasars")
	require.NoError(t, err)

	gateway.chunks <- llm.StreamChunk{Content: "Quasars are "}
	first := <-events
	require.Equal(t, chat.StreamEventTypeContent, first.Type)

	visible := session.VisibleMessages()
	require.Len(t, visible, 2)
	assert.Equal(t, models.MessageRoleAssistant, visible[1].Role)
	assert.Equal(t, "Quasars are ", visible[1].Content)

	gateway.chunks <- llm.StreamChunk{Content: "luminous."}
	second := <-events
	require.Equal(t, "luminous.", second.Content)

	visible = session.VisibleMessages()
	assert.Equal(t, "Quasars are luminous.", visible[1].Content)

	close(gateway.chunks)
	drain(t, events)
}

func TestStreamCommitsToPinnedConversation(t *testing.T) {
	session, st, gateway, ownerID := setupSession(t)
	ctx := context.Background()

	other, err := st.CreateConversation(ctx, ownerID, "other topic")
	require.NoError(t, err)

	events, err := session.Submit(ctx, "pin me")
	require.NoError(t, err)
	pinned := session.Selected()
	require.NotNil(t, pinned)

	gateway.chunks <- llm.StreamChunk{Content: "partial "}
	<-events

	// switching the foreground conversation mid-stream
	require.NoError(t, session.Select(ctx, other.ID))

	// fragments of the in-flight reply no longer surface in the new view
	for _, message := range session.VisibleMessages() {
		assert.NotEqual(t, "partial ", message.Content)
	}

	gateway.chunks <- llm.StreamChunk{Content: "reply"}
	<-events
	close(gateway.chunks)
	collected := drain(t, events)
	require.Len(t, collected, 1)
	require.Equal(t, chat.StreamEventTypeDone, collected[0].Type)

	// the reply landed in the pinned conversation, not the selected one
	pinnedMessages, err := st.ListMessages(ctx, ownerID, pinned.ID)
	require.NoError(t, err)
	require.Len(t, pinnedMessages, 2)
	assert.Equal(t, "partial reply", pinnedMessages[1].Content)

	otherMessages, err := st.ListMessages(ctx, ownerID, other.ID)
	require.NoError(t, err)
	assert.Empty(t, otherMessages)

	// the foreground view did not absorb the other conversation's reply
	assert.Empty(t, session.VisibleMessages())
	assert.Equal(t, chat.PhaseDrafting, session.Phase())
}

func TestStreamFailureDiscardsPartialOutput(t *testing.T) {
	session, st, gateway, ownerID := setupSession(t)
	ctx := context.Background()

	events, err := session.Submit(ctx, "doomed request")
	require.NoError(t, err)
	conversation := session.Selected()
	require.NotNil(t, conversation)

	gateway.chunks <- llm.StreamChunk{Content: "half a rep"}
	<-events
	gateway.chunks <- llm.StreamChunk{Error: errors.New("upstream reset")}
	close(gateway.chunks)

	collected := drain(t, events)
	require.Len(t, collected, 1)
	assert.Equal(t, chat.StreamEventTypeError, collected[0].Type)
	assert.Error(t, collected[0].Err)

	// only the user turn was stored, never the truncated reply
	messages, err := st.ListMessages(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.MessageRoleUser, messages[0].Role)

	assert.Equal(t, chat.PhaseDrafting, session.Phase())
	visible := session.VisibleMessages()
	require.Len(t, visible, 1)
}

func TestSubmitStartFailureKeepsUserTurn(t *testing.T) {
	session, st, gateway, ownerID := setupSession(t)
	ctx := context.Background()
	gateway.startErr = errors.New("gateway unreachable")

	_, err := session.Submit(ctx, "are you there?")
	require.Error(t, err)
	assert.Equal(t, chat.PhaseDrafting, session.Phase())

	conversation := session.Selected()
	require.NotNil(t, conversation)
	messages, err := st.ListMessages(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "are you there?", messages[0].Content)
}

func TestSubmitTitlesUntitledConversation(t *testing.T) {
	session, st, gateway, ownerID := setupSession(t)
	ctx := context.Background()

	conversation, err := st.CreateConversation(ctx, ownerID, "New Conversation")
	require.NoError(t, err)
	require.NoError(t, session.Select(ctx, conversation.ID))

	longInput := strings.Repeat("a", 60)
	events, err := session.Submit(ctx, longInput)
	require.NoError(t, err)
	close(gateway.chunks)
	drain(t, events)

	fetched, err := st.GetConversation(ctx, ownerID, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50)+"...", fetched.Title)
}
