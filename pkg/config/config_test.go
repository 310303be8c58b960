package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmos-ai/cosmos-host/pkg/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	viper.Set("OPENAI_API_KEY", "sk-test")
	viper.Set("STRIPE_SECRET_KEY", "sk_test_fake")
	viper.Set("STRIPE_WEBHOOK_SECRET", "whsec_test")
	viper.Set("JWT_SECRET", "jwt-test")
	t.Cleanup(func() {
		viper.Set("OPENAI_API_KEY", "")
		viper.Set("STRIPE_SECRET_KEY", "")
		viper.Set("STRIPE_WEBHOOK_SECRET", "")
		viper.Set("JWT_SECRET", "")
		viper.Set("JWKS_URL", "")
	})
}

func TestValidate(t *testing.T) {
	config.SetupEnv()
	setRequired(t)
	assert.NoError(t, config.Validate())
}

func TestValidateMissingProviderKeys(t *testing.T) {
	config.SetupEnv()
	setRequired(t)

	viper.Set("OPENAI_API_KEY", "")
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidateNeedsOneTokenSource(t *testing.T) {
	config.SetupEnv()
	setRequired(t)

	viper.Set("JWT_SECRET", "")
	viper.Set("JWKS_URL", "")
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	// a remote key set is an acceptable alternative
	viper.Set("JWKS_URL", "https://issuer.example.com/.well-known/jwks.json")
	assert.NoError(t, config.Validate())
}

func TestCorsConfig(t *testing.T) {
	config.SetupEnv()
	options := config.CorsConfig([]string{"https://app.example.com"})
	assert.Equal(t, []string{"https://app.example.com"}, options.AllowedOrigins)
	assert.True(t, options.AllowCredentials)
	assert.Contains(t, options.AllowedHeaders, "Stripe-Signature")
}
