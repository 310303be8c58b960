package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cosmos-ai/cosmos-host/pkg/auth"
	"github.com/cosmos-ai/cosmos-host/pkg/billing"
	"github.com/cosmos-ai/cosmos-host/pkg/handlers"
	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// SetupRoutes adds all routes that the server should listen to
func SetupRoutes(
	mux *chi.Mux,
	db *gorm.DB,
	gateway llm.Client,
	billingService *billing.Service,
	tokenValidator auth.TokenValidator,
	jwtSecret []byte,
) {
	ch := handlers.NewChecksHandler()

	mux.Mount("/checks", ch.Routes())
	mux.Mount("/metrics", promhttp.Handler())

	mux.Group(func(r chi.Router) {
		r.Use(RequestLogger())
		handlers.RegisterRoutes(r, db, gateway, billingService, tokenValidator, jwtSecret)
	})

	// Displays all API paths in when debug enabled
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		route = strings.Replace(route, "/*/", "/", -1)
		logging.LogDebugf("%s %s\n", method, route)
		return nil
	}
	if err := chi.Walk(mux, walkFunc); err != nil {
		logging.LogErrorf(err, "logging error")
	}
}
