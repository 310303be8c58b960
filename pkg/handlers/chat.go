package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/spf13/viper"

	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// ChatHandler is the streaming completion gateway: it accepts a role-tagged
// message history, forwards it upstream, and streams text fragments back as
// server-sent events.
type ChatHandler struct {
	gateway llm.Client
}

// NewChatHandler creates a new chat handler
func NewChatHandler(gateway llm.Client) *ChatHandler {
	return &ChatHandler{
		gateway: gateway,
	}
}

// Routes returns chat routes
func (h *ChatHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Complete)

	return r
}

// ChatRequest is the inbound body of a completion request.
type ChatRequest struct {
	Messages []InboundMessage `json:"messages"`
}

// Complete streams a completion over the full submitted history. Fragments
// are flushed as they arrive; no fragment is buffered waiting for the next.
func (h *ChatHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "messages is required"})
		return
	}

	history, err := NormalizeMessages(req.Messages)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid message history", "details": err.Error()})
		return
	}

	systemPrompt := viper.GetString("SYSTEM_PROMPT")
	if systemPrompt != "" {
		history = append([]llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}, history...)
	}

	chunks, err := h.gateway.ChatStream(r.Context(), llm.ChatRequest{
		Model:    viper.GetString("OPENAI_DEFAULT_MODEL"),
		Messages: history,
		Stream:   true,
	})
	if err != nil {
		logging.LogErrorf(err, "Failed to start completion stream")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to reach the model"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for chunk := range chunks {
		if chunk.Error != nil {
			logging.LogErrorf(chunk.Error, "Completion stream failed")
			writeSSE(w, map[string]string{"error": "Upstream stream failed"})
			flusher.Flush()
			return
		}
		if chunk.Content == "" {
			continue
		}
		writeSSE(w, map[string]string{"content": chunk.Content})
		flusher.Flush()
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// writeSSE writes one data-only server-sent event.
func writeSSE(w http.ResponseWriter, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}
