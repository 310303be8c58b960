package testutils

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cosmos-ai/cosmos-host/pkg/auth"
	"github.com/cosmos-ai/cosmos-host/pkg/billing"
	"github.com/cosmos-ai/cosmos-host/pkg/config"
	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/cosmos-ai/cosmos-host/pkg/server"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// TestWebhookSecret signs Stripe webhook payloads in tests.
const TestWebhookSecret = "whsec_test_secret"

// TestJWTSecret signs bearer tokens in tests.
const TestJWTSecret = "test-jwt-secret-test-jwt-secret!"

// GetRequestPayload converts a given object into a reader of that obect as json payload
func GetRequestPayload(payload interface{}) io.Reader {
	bytes, _ := json.Marshal(payload)
	return strings.NewReader(string(bytes))
}

// ScriptedGateway is an llm.Client that replays pre-scripted responses.
// Each call to Chat or ChatStream consumes the next script in order.
type ScriptedGateway struct {
	mu sync.Mutex

	// Scripts holds the fragment sequences returned by successive calls.
	Scripts [][]string
	// StartErr makes ChatStream fail before any fragment is produced.
	StartErr error
	// StreamErr terminates the stream with an error after all fragments.
	StreamErr error
	// Requests records every request received, in order.
	Requests []llm.ChatRequest

	calls int
}

func (g *ScriptedGateway) nextScript(req llm.ChatRequest) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.calls >= len(g.Scripts) {
		return nil
	}
	script := g.Scripts[g.calls]
	g.calls++
	return script
}

// Chat returns the next scripted response as a single message.
func (g *ScriptedGateway) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if g.StartErr != nil {
		return nil, g.StartErr
	}
	script := g.nextScript(req)
	return &llm.ChatResponse{
		Model:   req.Model,
		Message: llm.Message{Role: llm.RoleAssistant, Content: strings.Join(script, "")},
	}, nil
}

// ChatStream replays the next scripted response fragment by fragment.
func (g *ScriptedGateway) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if g.StartErr != nil {
		return nil, g.StartErr
	}
	script := g.nextScript(req)

	chunkChan := make(chan llm.StreamChunk, len(script)+1)
	go func() {
		defer close(chunkChan)
		for _, fragment := range script {
			select {
			case <-ctx.Done():
				chunkChan <- llm.StreamChunk{Error: ctx.Err()}
				return
			case chunkChan <- llm.StreamChunk{Content: fragment}:
			}
		}
		if g.StreamErr != nil {
			chunkChan <- llm.StreamChunk{Error: g.StreamErr}
			return
		}
		chunkChan <- llm.StreamChunk{Done: true}
	}()
	return chunkChan, nil
}

// TestEnv bundles everything the HTTP tests need
type TestEnv struct {
	Server    *server.Server
	DB        *gorm.DB
	Gateway   *ScriptedGateway
	JWTSecret []byte
}

// GetTestMockServer creates the mocked server for tests
func GetTestMockServer(t *testing.T) *TestEnv {
	config.SetupEnv()
	viper.Set("OPENAI_API_KEY", "sk-test")
	viper.Set("STRIPE_SECRET_KEY", "sk_test_fake")
	viper.Set("STRIPE_WEBHOOK_SECRET", TestWebhookSecret)
	viper.Set("JWT_SECRET", TestJWTSecret)

	db := models.InitializeTestDB(t)
	gateway := &ScriptedGateway{}
	jwtSecret := []byte(TestJWTSecret)

	tokenValidator, err := auth.NewLocalJWTValidator(jwtSecret)
	require.NoError(t, err)

	corsOptions := config.CorsConfig([]string{"localhost"})
	srv := server.NewServer("TEST_SERVER", cors.New(corsOptions), 8, 10*time.Second)

	server.SetupRoutes(srv.Mux(), db, gateway, billing.NewService(db), tokenValidator, jwtSecret)
	return &TestEnv{
		Server:    srv,
		DB:        db,
		Gateway:   gateway,
		JWTSecret: jwtSecret,
	}
}

// CreateTestUser inserts a user and returns it
func CreateTestUser(t *testing.T, db *gorm.DB) models.User {
	username := "testuser-" + uuid.NewString()[:8]
	email := username + "@example.com"
	user := models.User{
		ID:       uuid.New(),
		Username: &username,
		Email:    &email,
		Plan:     models.PlanFree,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// IssueTestToken signs a bearer token for the given user
func IssueTestToken(t *testing.T, env *TestEnv, userID uuid.UUID) string {
	token, err := auth.IssueToken(userID, env.JWTSecret)
	require.NoError(t, err)
	return token
}

func MustJSON[T any](object T) datatypes.JSON {
	bytes, err := json.Marshal(object)
	if err != nil {
		logging.LogErrorfCtx(context.Background(), err, "failed marshalling to JSON")
		return nil
	}
	return bytes
}

func Pointerfy[T any](thing T) *T {
	return &thing
}
