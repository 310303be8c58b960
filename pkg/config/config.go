package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Build information. Populated at build-time.
var (
	Name      string = "cosmos-host"
	Version   string
	Branch    string
	Commit    string
	BuildUser string
	GoVersion = runtime.Version()
)

const (
	// EnvPrefix is a prefix to all ENV variables used in this app
	EnvPrefix = "COSMOS"
	// APIPrefixV1 URL prefix in API version 1
	APIPrefixV1 = "/api/v1"
	// InternalPrefix URL prefix for service-to-service routes
	InternalPrefix = "/internal"
	// MigrationVersion is bumped whenever the schema migration changes
	MigrationVersion = "1"

	// ##### GENERAL VARIABLES
	// Debug is a flag used to display debug messages
	Debug = false
	// DebugCORS is a flag used to display CORS debug messages
	DebugCORS = false
	// HumanReadableLogs set to true disables JSON formatting of logging
	HumanReadableLogs = false
	// DefaultHost default host for the service
	DefaultHost = "localhost"
	// DefaultPort default port the service is served on
	DefaultPort = "8080"
	// DefaultCorsHosts default cors hosts for local development
	DefaultCorsHosts = "https://localhost:3000 http://localhost:3000"

	// ##### DATABASE VARIABLES

	// DefaultDBHost default host for the database connection
	DefaultDBHost = "localhost"
	// DefaultDBPort default port for the database connection
	DefaultDBPort = "5432"
	// DefaultDBName default name for the database connection
	DefaultDBName = "cosmos"
	// DefaultDBUser default user for the database connection
	DefaultDBUser = "postgres"
	// DefaultDBPassword default password for the database connection
	DefaultDBPassword = "postgres"
	// DefaultDBSSLMode default ssl mode for the database connection
	DefaultDBSSLMode = "disable"

	// ##### AUTHENTICATION VARIABLES

	// DefaultAuthHeaderName defines the name of the auth header
	DefaultAuthHeaderName = "Authorization"
	// DefaultServiceSecret is a secret used to authenticate requests from other services
	DefaultServiceSecret = ""

	// ##### INFERENCE VARIABLES

	// DefaultModel is the model used for chat completions unless overridden
	DefaultModel = "gpt-4-turbo"
)

// DefaultSystemPrompt primes the assistant as a space-domain expert.
var DefaultSystemPrompt = strings.TrimSpace(`
You are Cosmos AI, an advanced AI assistant specializing in space, astrophysics, space engineering, and all cosmic phenomena. You have deep knowledge of:

- Astrophysics and cosmology
- Space engineering and rocket science
- Planetary science and astronomy
- Space missions and exploration
- Theoretical physics related to space
- Space technology and instrumentation
- Orbital mechanics and spacecraft design

Provide detailed, accurate, and engaging responses about space-related topics. Use scientific terminology appropriately but explain complex concepts clearly. When discussing cutting-edge research, mention if something is theoretical or still being studied.

Always maintain enthusiasm for space exploration and discovery while being scientifically rigorous.`)

func bindEnvVariable(name string, fallback interface{}) {
	if fallback != "" {
		viper.SetDefault(name, fallback)
	}
	err := viper.BindEnv(name)
	if err != nil {
		// cannot use logging.LogError due to import cycle
		fmt.Printf("Error binding Env Variable: %v", err)
	}
}

// SetupEnv configures app to read ENV variables
func SetupEnv() {
	// optional .env for local development, real env always wins
	_ = godotenv.Load()

	viper.SetEnvPrefix(EnvPrefix)
	// General
	bindEnvVariable("DEBUG", Debug)
	bindEnvVariable("HUMAN_READABLE_LOGS", HumanReadableLogs)
	bindEnvVariable("DEBUG_CORS", DebugCORS)
	bindEnvVariable("HOST", DefaultHost)
	bindEnvVariable("PORT", DefaultPort)
	bindEnvVariable("PREFIX", APIPrefixV1)
	bindEnvVariable("CORS_HOSTS", DefaultCorsHosts)
	bindEnvVariable("HTTP_MAX_PARALLEL_REQUESTS", 8)
	bindEnvVariable("HTTP_REQUEST_TIMEOUT", "60s")
	// Database
	bindEnvVariable("DB_HOST", DefaultDBHost)
	bindEnvVariable("DB_PORT", DefaultDBPort)
	bindEnvVariable("DB_SCHEMA", "")
	bindEnvVariable("DB_NAME", DefaultDBName)
	bindEnvVariable("DB_USER", DefaultDBUser)
	bindEnvVariable("DB_PASS", DefaultDBPassword)
	bindEnvVariable("DB_SSL_MODE", DefaultDBSSLMode)
	bindEnvVariable("DB_SSL_ROOT_CERT_PATH", "")
	// Authentication
	bindEnvVariable("AUTH_HEADER_NAME", DefaultAuthHeaderName)
	bindEnvVariable("SERVICE_SECRET", DefaultServiceSecret)
	bindEnvVariable("JWT_SECRET", "")
	bindEnvVariable("JWKS_URL", "")
	// Inference
	bindEnvVariable("OPENAI_API_KEY", "")
	bindEnvVariable("OPENAI_BASE_URL", "")
	bindEnvVariable("OPENAI_DEFAULT_MODEL", DefaultModel)
	bindEnvVariable("SYSTEM_PROMPT", DefaultSystemPrompt)
	// Billing
	bindEnvVariable("STRIPE_SECRET_KEY", "")
	bindEnvVariable("STRIPE_WEBHOOK_SECRET", "")
	bindEnvVariable("CHECKOUT_SUCCESS_URL", "https://localhost:3000/chat?success=true")
	bindEnvVariable("CHECKOUT_CANCEL_URL", "https://localhost:3000/pricing?canceled=true")
}

// requiredVariables must be set for the service to boot.
var requiredVariables = []string{
	"OPENAI_API_KEY",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
}

// Validate checks that all required configuration is present. The service
// fails closed at boot when any of it is missing.
func Validate() error {
	var missing []string
	for _, name := range requiredVariables {
		if viper.GetString(name) == "" {
			missing = append(missing, EnvPrefix+"_"+name)
		}
	}
	if viper.GetString("JWT_SECRET") == "" && viper.GetString("JWKS_URL") == "" {
		missing = append(missing, EnvPrefix+"_JWT_SECRET or "+EnvPrefix+"_JWKS_URL")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CorsConfig stores default configuration for CORS middleware
func CorsConfig(corsHosts []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   corsHosts,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature", "X-User-Language"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true, // header "Access-Control-Allow-Credentials" is not present if this is set to false
		MaxAge:           300,  // Maximum value not ignored by any of major browsers,
		Debug:            viper.GetBool("DEBUG_CORS"),
	}
}
