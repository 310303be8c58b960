package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/cosmos-ai/cosmos-host/pkg/chat"
	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/cosmos-ai/cosmos-host/pkg/store"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// MessagesHandler handles message endpoints
type MessagesHandler struct {
	store    *store.Store
	gateway  llm.Client
	upgrader websocket.Upgrader
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(st *store.Store, gateway llm.Client) *MessagesHandler {
	return &MessagesHandler{
		store:   st,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}
}

// Routes returns message routes
func (h *MessagesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListMessages)
	r.Get("/stream", h.StreamExchange)

	return r
}

// SubmitRequest is one user turn sent over the websocket.
type SubmitRequest struct {
	Content string `json:"content"`
}

// ListMessages returns all messages in a conversation in replay order.
func (h *MessagesHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation ID"})
		return
	}

	messages, err := h.store.ListMessages(r.Context(), userID, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Conversation not found"})
		} else {
			logging.LogErrorf(err, "Failed to list messages")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list messages"})
		}
		return
	}

	render.JSON(w, r, messages)
}

// StreamExchange runs streamed chat exchanges over a WebSocket. Each inbound
// frame is one user turn: the turn is persisted, fragments stream back as
// they arrive, and the full reply is persisted to the conversation the turn
// was submitted against once streaming finishes.
func (h *MessagesHandler) StreamExchange(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	session := chat.NewSession(h.store, h.gateway, userID)
	if err := session.Select(r.Context(), convID); err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogErrorf(err, "Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	logging.LogDebugf("WebSocket connection established: conversation=%s user=%s", convID, userID)

	for {
		var req SubmitRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.LogDebugf("WebSocket closed normally")
			} else {
				logging.LogErrorf(err, "WebSocket read error")
			}
			break
		}

		events, err := session.Submit(r.Context(), req.Content)
		if err != nil {
			_ = conn.WriteJSON(map[string]string{"error": submitErrorMessage(err)})
			continue
		}

		for event := range events {
			switch event.Type {
			case chat.StreamEventTypeContent:
				_ = conn.WriteJSON(map[string]interface{}{
					"type":    "content",
					"content": event.Content,
				})
			case chat.StreamEventTypeDone:
				_ = conn.WriteJSON(map[string]interface{}{
					"type":    "done",
					"message": event.Message,
				})
			case chat.StreamEventTypeError:
				_ = conn.WriteJSON(map[string]interface{}{
					"type":  "error",
					"error": "The reply could not be completed. Your message is saved, try again.",
				})
			}
		}
	}
}

// submitErrorMessage maps submission failures onto short user-facing text.
func submitErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return "Message content is required"
	case errors.Is(err, chat.ErrStreamInFlight):
		return "A reply is already streaming"
	case errors.Is(err, store.ErrNotFound):
		return "Conversation not found"
	default:
		return "Failed to send message"
	}
}
