package main

import (
	"context"
	"strings"

	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/cosmos-ai/cosmos-host/pkg/auth"
	"github.com/cosmos-ai/cosmos-host/pkg/billing"
	"github.com/cosmos-ai/cosmos-host/pkg/config"
	"github.com/cosmos-ai/cosmos-host/pkg/llm/openai"
	"github.com/cosmos-ai/cosmos-host/pkg/metrics"
	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/cosmos-ai/cosmos-host/pkg/server"
	"github.com/d4l-data4life/go-svc/pkg/db2"
	"github.com/d4l-data4life/go-svc/pkg/logging"
	"github.com/d4l-data4life/go-svc/pkg/standard"
)

func main() {
	config.SetupEnv()
	if err := config.Validate(); err != nil {
		logging.LogErrorf(err, "Invalid configuration")
		return
	}
	dbOpts := db2.NewConnection(
		db2.WithDebug(viper.GetBool("DEBUG")),
		db2.WithHost(viper.GetString("DB_HOST")),
		db2.WithPort(viper.GetString("DB_PORT")),
		db2.WithDatabaseSchema(viper.GetString("DB_SCHEMA")),
		db2.WithDatabaseName(viper.GetString("DB_NAME")),
		db2.WithUser(viper.GetString("DB_USER")),
		db2.WithPassword(viper.GetString("DB_PASS")),
		db2.WithSSLMode(viper.GetString("DB_SSL_MODE")),
		db2.WithSSLRootCertPath(viper.GetString("DB_SSL_ROOT_CERT_PATH")),
		db2.WithMigrationFunc(models.MigrationFunc),
		db2.WithMigrationVersion(config.MigrationVersion),
	)
	standard.Main(mainAPI, "cosmos-host", standard.WithPostgresDB2(dbOpts))
}

// mainAPI contains the main service logic - it must finish on runCtx cancelation!
func mainAPI(runCtx context.Context, svcName string) <-chan struct{} {
	port := viper.GetString("PORT")
	corsOptions := config.CorsConfig(strings.Split(viper.GetString("CORS_HOSTS"), " "))
	srv := server.NewServer(svcName,
		cors.New(corsOptions),
		viper.GetInt("HTTP_MAX_PARALLEL_REQUESTS"),
		viper.GetDuration("HTTP_REQUEST_TIMEOUT"),
	)

	dieEarly := make(chan struct{})
	defer close(dieEarly)

	tokenValidator, jwtSecret, err := setupTokenValidator(runCtx)
	if err != nil {
		logging.LogErrorf(err, "Failed to set up token validation")
		return dieEarly
	}

	gateway := openai.NewClient(openai.Config{
		APIKey:  viper.GetString("OPENAI_API_KEY"),
		BaseURL: viper.GetString("OPENAI_BASE_URL"),
		Model:   viper.GetString("OPENAI_DEFAULT_MODEL"),
	})

	db := db2.Get()
	billingService := billing.NewService(db)

	server.SetupRoutes(srv.Mux(), db, gateway, billingService, tokenValidator, jwtSecret)
	metrics.AddBuildInfoMetric()
	return standard.ListenAndServe(runCtx, srv.Mux(), port)
}

// setupTokenValidator picks local HS256 validation when JWT_SECRET is set,
// remote JWKS validation otherwise.
func setupTokenValidator(ctx context.Context) (auth.TokenValidator, []byte, error) {
	jwtSecret := []byte(viper.GetString("JWT_SECRET"))
	if len(jwtSecret) > 0 {
		validator, err := auth.NewLocalJWTValidator(jwtSecret)
		if err != nil {
			return nil, nil, err
		}
		return validator, jwtSecret, nil
	}

	keyStore, err := auth.NewRemoteKeyStore(ctx, viper.GetString("JWKS_URL"))
	if err != nil {
		return nil, nil, err
	}
	return keyStore, nil, nil
}
