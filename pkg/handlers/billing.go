package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cosmos-ai/cosmos-host/pkg/billing"
	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// maxWebhookBody bounds how much of a webhook payload is read.
const maxWebhookBody = 64 * 1024

// BillingHandler handles checkout and webhook endpoints
type BillingHandler struct {
	db      *gorm.DB
	billing *billing.Service
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(db *gorm.DB, svc *billing.Service) *BillingHandler {
	return &BillingHandler{
		db:      db,
		billing: svc,
	}
}

// Routes returns the authenticated billing routes
func (h *BillingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/checkout", h.CreateCheckout)

	return r
}

// WebhookRoutes returns the provider-facing webhook route. It is mounted
// outside the user auth middleware; the payload signature is the credential.
func (h *BillingHandler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Webhook)

	return r
}

// CheckoutRequest is the inbound body of a checkout request.
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
	PlanID  string `json:"planId"`
}

// CreateCheckout creates a payment-provider checkout session for the caller.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.PriceID == "" || req.PlanID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "priceId and planId are required"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User not found"})
		return
	}

	sessionID, err := h.billing.CreateCheckoutSession(&user, req.PriceID, req.PlanID)
	if err != nil {
		logging.LogErrorf(err, "Failed to create checkout session")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Error creating checkout session"})
		return
	}

	render.JSON(w, r, map[string]string{"sessionId": sessionID})
}

// Webhook verifies and applies provider events. Verification failures drop
// the request with nothing mutated.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Failed to read payload"})
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "No signature"})
		return
	}

	event, err := h.billing.VerifyEvent(payload, signature)
	if err != nil {
		logging.LogWarningf("Webhook signature verification failed: %v", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid signature"})
		return
	}

	if err := h.billing.HandleEvent(r.Context(), event); err != nil {
		if errors.Is(err, billing.ErrUnknownCustomer) {
			// Nothing to update for customers we never saw a checkout for.
			logging.LogWarningf("Webhook for unknown customer: %v", err)
			render.JSON(w, r, map[string]bool{"received": true})
			return
		}
		logging.LogErrorf(err, "Webhook handler failed")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Webhook handler failed"})
		return
	}

	render.JSON(w, r, map[string]bool{"received": true})
}
