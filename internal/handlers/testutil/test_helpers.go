package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/api"
	"github.com/ecohubkosova/ecohub/internal/app"
	iauth "github.com/ecohubkosova/ecohub/internal/auth"
	sharedtestutil "github.com/ecohubkosova/ecohub/internal/database/testutil"
	"github.com/ecohubkosova/ecohub/internal/middleware"
	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/pkg/mail"
	"github.com/ecohubkosova/ecohub/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Mailer *RecordingMailer
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Invites: app.InviteConfig{
			TTL:        7 * 24 * time.Hour,
			TokenBytes: 32,
			BaseURL:    "https://ecohub.test/invitations/accept",
		},
		RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	mailer := &RecordingMailer{}
	router, err := api.NewRouter(db, jwtSvc, cfg, middleware.NewMemoryRateStore(), mailer)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Mailer: mailer,
	}
}

// Token issues an access token for the given identity.
func (e *Env) Token(userID, email string) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Email: email, Name: userID})
	require.NoError(e.T, err)
	return token
}

// SeedOrganization inserts an organization with an approved ADMIN and returns it.
func (e *Env) SeedOrganization(name, adminID string) *models.Organization {
	e.T.Helper()

	org := &models.Organization{Name: name}
	require.NoError(e.T, e.DB.Create(org).Error)
	e.SeedMember(org.ID, adminID, models.RoleAdmin, true)
	return org
}

// SeedMember inserts a membership, creating the user row when it does not exist.
func (e *Env) SeedMember(orgID, userID string, role models.Role, approved bool) *models.Membership {
	e.T.Helper()

	user := models.User{ID: userID, Email: userID + "@example.com", DisplayName: userID}
	require.NoError(e.T, e.DB.Where("id = ?", userID).FirstOrCreate(&user).Error)

	membership := &models.Membership{OrganizationID: orgID, UserID: userID, Role: role, Approved: approved}
	require.NoError(e.T, e.DB.Create(membership).Error)
	return membership
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// RecordingMailer captures outbound messages instead of delivering them.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of every message sent so far.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}
