package handlers

import (
	"github.com/go-chi/chi"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/cosmos-ai/cosmos-host/pkg/auth"
	"github.com/cosmos-ai/cosmos-host/pkg/billing"
	"github.com/cosmos-ai/cosmos-host/pkg/config"
	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/cosmos-ai/cosmos-host/pkg/store"
	"github.com/d4l-data4life/go-svc/pkg/middlewares"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(
	r chi.Router,
	db *gorm.DB,
	gateway llm.Client,
	billingService *billing.Service,
	tokenValidator auth.TokenValidator,
	jwtSecret []byte,
) {
	prefix := viper.GetString("PREFIX")
	persistence := store.New(db)

	// External routes (ingress routes)
	r.Route(prefix, func(r chi.Router) {
		// Public routes (no authentication required)
		authHandler := NewAuthHandler(db, jwtSecret)
		r.Mount("/auth", authHandler.Routes())

		// Stripe calls the webhook directly; the signature header is the credential
		billingHandler := NewBillingHandler(db, billingService)
		r.Mount("/billing/webhook", billingHandler.WebhookRoutes())

		// Protected routes (authentication required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(db, tokenValidator))

			r.Mount("/auth/me", authHandler.MeRoutes())

			// Conversations
			conversationsHandler := NewConversationsHandler(persistence)
			r.Mount("/conversations", conversationsHandler.Routes())

			// Messages (nested under conversations)
			messagesHandler := NewMessagesHandler(persistence, gateway)
			r.Route("/conversations/{id}/messages", func(r chi.Router) {
				r.Mount("/", messagesHandler.Routes())
			})

			// Stateless chat completions
			chatHandler := NewChatHandler(gateway)
			r.Mount("/chat", chatHandler.Routes())

			// Billing checkout
			r.Mount("/billing", billingHandler.Routes())
		})
	})

	// Internal routes (service-to-service)
	r.Route(config.InternalPrefix, func(r chi.Router) {
		// Service-authenticated routes (require service secret)
		r.Group(func(r chi.Router) {
			// Get service secret from config
			serviceSecret := viper.GetString("SERVICE_SECRET")
			if serviceSecret == "" {
				// If no service secret is configured, skip service auth routes
				return
			}

			// Create service auth middleware with proper logger
			logger := NewServiceAuthLogger()
			serviceAuth := middlewares.NewServiceSecretAuthenticator(serviceSecret, logger)
			r.Use(serviceAuth.Authenticate())

			// Users management
			usersHandler := NewUsersHandler(db)
			r.Mount("/users", usersHandler.Routes())
		})
	})
}
