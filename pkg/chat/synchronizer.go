// Package chat owns the mapping between a logical conversation and an
// in-flight streamed exchange: when a conversation is created, when user and
// assistant turns are persisted, and how locally-held message state is
// reconciled with persisted state across conversation switches.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/cosmos-ai/cosmos-host/pkg/store"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// Phase is the explicit state of a session. The visible message list has
// exactly one source of truth per phase: persisted storage outside of
// PhaseStreaming, the fragment accumulator while streaming.
type Phase int

const (
	// PhaseIdle means no conversation is selected and no stream is in flight.
	PhaseIdle Phase = iota
	// PhaseDrafting means a conversation is selected (or about to be
	// created) and no stream is in flight.
	PhaseDrafting
	// PhaseStreaming means exactly one completion is in flight.
	PhaseStreaming
)

// String implements fmt.Stringer for log output.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDrafting:
		return "drafting"
	case PhaseStreaming:
		return "streaming"
	}
	return "unknown"
}

var (
	// ErrStreamInFlight is returned when Submit is called while a previous
	// completion is still streaming. One logical stream per session.
	ErrStreamInFlight = errors.New("a completion is already streaming")

	// ErrEmptyInput is returned when Submit is called with blank input.
	ErrEmptyInput = errors.New("input must not be empty")
)

// StreamEventType tags events emitted during a streamed exchange.
type StreamEventType string

const (
	StreamEventTypeContent StreamEventType = "content"
	StreamEventTypeDone    StreamEventType = "done"
	StreamEventTypeError   StreamEventType = "error"
)

// StreamEvent is one event of a streamed exchange. Content events carry an
// incremental fragment; the done event carries the persisted assistant
// message (nil if persistence failed after a complete stream).
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Message *models.Message `json:"message,omitempty"`
	Err     error           `json:"-"`
}

// Session synchronizes one UI session: the selected conversation, the
// visible message list, and at most one in-flight streamed completion.
type Session struct {
	store   *store.Store
	gateway llm.Client
	ownerID uuid.UUID

	model        string
	systemPrompt string

	mu       sync.Mutex
	phase    Phase
	selected *models.Conversation
	visible  []models.Message

	// streamTarget pins the conversation an in-flight assistant reply is
	// committed to. Fixed at submission time, independent of whatever the
	// session selects afterwards.
	streamTarget uuid.UUID
	// accumulator collects fragments of the in-flight reply. Never
	// persisted until the stream completes.
	accumulator strings.Builder
}

// Option configures a Session.
type Option func(*Session)

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(s *Session) { s.model = model }
}

// WithSystemPrompt overrides the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) { s.systemPrompt = prompt }
}

// NewSession creates a session for one authenticated user.
func NewSession(st *store.Store, gateway llm.Client, ownerID uuid.UUID, opts ...Option) *Session {
	s := &Session{
		store:        st,
		gateway:      gateway,
		ownerID:      ownerID,
		model:        viper.GetString("OPENAI_DEFAULT_MODEL"),
		systemPrompt: viper.GetString("SYSTEM_PROMPT"),
		phase:        PhaseIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Selected returns the currently selected conversation, or nil.
func (s *Session) Selected() *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// VisibleMessages returns the message list the presentation layer should
// render. Outside of streaming this is the storage-derived list. While a
// stream is in flight for the selected conversation, the in-progress
// assistant text is merged additively; it is never read back from storage
// mid-stream (it is not there yet).
func (s *Session) VisibleMessages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.visible))
	copy(out, s.visible)

	if s.phase == PhaseStreaming && s.selected != nil && s.selected.ID == s.streamTarget {
		out = append(out, models.Message{
			ConversationID: s.streamTarget,
			Role:           models.MessageRoleAssistant,
			Content:        s.accumulator.String(),
		})
	}
	return out
}

// Submit persists the user's turn, pins the stream target, and starts one
// streamed completion. The returned channel emits content fragments followed
// by exactly one terminal done or error event, then closes.
//
// Failures before the gateway call (conversation creation, user-turn
// persistence) abort the submission: no request is sent upstream for a turn
// that failed to save.
func (s *Session) Submit(ctx context.Context, input string) (<-chan StreamEvent, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.phase == PhaseStreaming {
		s.mu.Unlock()
		return nil, ErrStreamInFlight
	}

	conversation := s.selected
	s.mu.Unlock()

	// Lazily create the conversation on first submission.
	if conversation == nil {
		created, err := s.store.CreateConversation(ctx, s.ownerID, models.DeriveTitle(input))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create conversation")
		}
		conversation = created
	} else if conversation.Title == "" || conversation.Title == "New Conversation" {
		// Explicitly created but never titled: first submission names it.
		if err := s.store.RenameConversation(ctx, s.ownerID, conversation.ID, models.DeriveTitle(input)); err != nil {
			logging.LogErrorf(err, "Failed to derive conversation title")
		} else {
			conversation.Title = models.DeriveTitle(input)
		}
	}

	userMessage, err := s.store.CreateMessage(ctx, s.ownerID, conversation.ID, models.MessageRoleUser, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to persist user message")
	}

	s.mu.Lock()
	s.selected = conversation
	s.visible = append(s.visible, *userMessage)
	history := s.buildHistory()
	// Pin the stream target now. The completion commits here no matter what
	// the session selects while it is in flight.
	target := conversation.ID
	s.streamTarget = target
	s.accumulator.Reset()
	s.phase = PhaseStreaming
	s.mu.Unlock()

	chunks, err := s.gateway.ChatStream(ctx, llm.ChatRequest{
		Model:    s.model,
		Messages: history,
		Stream:   true,
	})
	if err != nil {
		s.mu.Lock()
		s.streamTarget = uuid.Nil
		s.phase = PhaseDrafting
		s.mu.Unlock()
		// The user message stays persisted; retrying re-sends the same
		// history without duplicating the turn.
		return nil, errors.Wrap(err, "failed to start completion stream")
	}

	events := make(chan StreamEvent, 16)
	go s.consumeStream(ctx, target, chunks, events)
	return events, nil
}

// consumeStream drains the gateway channel, forwards fragments, and settles
// the exchange against the pinned target.
func (s *Session) consumeStream(ctx context.Context, target uuid.UUID, chunks <-chan llm.StreamChunk, events chan<- StreamEvent) {
	defer close(events)

	var streamErr error
	for chunk := range chunks {
		if chunk.Error != nil {
			streamErr = chunk.Error
			break
		}
		if chunk.Content == "" {
			continue
		}

		s.mu.Lock()
		s.accumulator.WriteString(chunk.Content)
		s.mu.Unlock()

		events <- StreamEvent{Type: StreamEventTypeContent, Content: chunk.Content}
	}

	s.mu.Lock()
	full := s.accumulator.String()
	s.mu.Unlock()

	if streamErr != nil {
		// Partial output is discarded, never stored truncated.
		logging.LogErrorf(streamErr, "Completion stream failed for conversation %s", target)
		s.settle(ctx, target, nil)
		events <- StreamEvent{Type: StreamEventTypeError, Err: streamErr}
		return
	}

	// Persist the full reply against the pinned target, not whatever
	// conversation is selected by now.
	assistantMessage, err := s.store.CreateMessage(ctx, s.ownerID, target, models.MessageRoleAssistant, full)
	if err != nil {
		// The user already saw the complete reply; losing it from storage
		// is degraded, not fatal.
		logging.LogErrorf(err, "Failed to persist assistant message for conversation %s", target)
		assistantMessage = nil
	}

	s.settle(ctx, target, assistantMessage)
	events <- StreamEvent{Type: StreamEventTypeDone, Message: assistantMessage}
}

// settle clears the pinned target and reconciles the visible list.
func (s *Session) settle(ctx context.Context, target uuid.UUID, persisted *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streamTarget = uuid.Nil
	s.accumulator.Reset()

	if s.selected != nil {
		s.phase = PhaseDrafting
	} else {
		s.phase = PhaseIdle
	}

	// Only the view that asked for this exchange absorbs its result. A
	// different foreground conversation keeps its own storage-derived list.
	if s.selected != nil && s.selected.ID == target && persisted != nil {
		s.visible = append(s.visible, *persisted)
	}
}

// buildHistory maps the visible turns onto the wire shape, system prompt
// first. Callers must hold s.mu.
func (s *Session) buildHistory() []llm.Message {
	history := make([]llm.Message, 0, len(s.visible)+1)
	if s.systemPrompt != "" {
		history = append(history, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt})
	}
	for _, m := range s.visible {
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return history
}
