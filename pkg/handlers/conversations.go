package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cosmos-ai/cosmos-host/pkg/store"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// ConversationsHandler handles conversation endpoints
type ConversationsHandler struct {
	store *store.Store
}

// NewConversationsHandler creates a new conversations handler
func NewConversationsHandler(st *store.Store) *ConversationsHandler {
	return &ConversationsHandler{
		store: st,
	}
}

// Routes returns conversation routes
func (h *ConversationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListConversations)
	r.Post("/", h.CreateConversation)
	r.Get("/{id}", h.GetConversation)
	r.Put("/{id}", h.RenameConversation)
	r.Delete("/{id}", h.DeleteConversation)

	return r
}

// CreateConversationRequest represents a request to create a conversation
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// RenameConversationRequest represents a request to rename a conversation
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// ListConversations returns all conversations for the current user, most
// recently updated first.
func (h *ConversationsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	conversations, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		logging.LogErrorf(err, "Failed to list conversations")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to list conversations"})
		return
	}

	render.JSON(w, r, conversations)
}

// CreateConversation creates a new conversation
func (h *ConversationsHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Title == "" {
		req.Title = "New Conversation"
	}

	conversation, err := h.store.CreateConversation(r.Context(), userID, req.Title)
	if err != nil {
		logging.LogErrorf(err, "Failed to create conversation")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to create conversation"})
		return
	}

	logging.LogDebugf("Created conversation: %s for user: %s", conversation.ID, userID)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, conversation)
}

// GetConversation returns a specific conversation
func (h *ConversationsHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation ID"})
		return
	}

	conversation, err := h.store.GetConversation(r.Context(), userID, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Conversation not found"})
		} else {
			logging.LogErrorf(err, "Failed to get conversation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get conversation"})
		}
		return
	}

	render.JSON(w, r, conversation)
}

// RenameConversation sets a new title
func (h *ConversationsHandler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation ID"})
		return
	}

	var req RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Title is required"})
		return
	}

	if err := h.store.RenameConversation(r.Context(), userID, convID, req.Title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Conversation not found"})
		} else {
			logging.LogErrorf(err, "Failed to rename conversation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to rename conversation"})
		}
		return
	}

	conversation, err := h.store.GetConversation(r.Context(), userID, convID)
	if err != nil {
		logging.LogErrorf(err, "Failed to get conversation")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to get conversation"})
		return
	}

	logging.LogDebugf("Renamed conversation: %s", convID)

	render.JSON(w, r, conversation)
}

// DeleteConversation deletes a conversation with all its messages
func (h *ConversationsHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation ID"})
		return
	}

	if err := h.store.DeleteConversation(r.Context(), userID, convID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Conversation not found"})
		} else {
			logging.LogErrorf(err, "Failed to delete conversation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete conversation"})
		}
		return
	}

	logging.LogDebugf("Deleted conversation: %s", convID)

	w.WriteHeader(http.StatusNoContent)
}
