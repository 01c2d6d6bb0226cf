package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "deepvision-backend/internal/api"
	"deepvision-backend/internal/auth"
	"deepvision-backend/internal/database"
	"deepvision-backend/internal/messaging"
	"deepvision-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const maxTestBodyBytes = 1 << 20

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

func setupRouter(t *testing.T) chi.Router {
	db := createDB(t)
	signer := auth.NewSigner("test-secret", time.Hour)
	credentials := auth.NewCredentialStore(db, messaging.NewInMemoryQueue())

	router := chi.NewRouter()
	router.Use(backend.LimitRequestBody(maxTestBodyBytes))
	backend.NewAuthService(credentials, signer).AddRoutes(router)
	backend.NewChatService(db, signer).AddRoutes(router)
	return router
}

func doRequest(t *testing.T, router chi.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerUser(t *testing.T, router chi.Router, username, password string) string {
	rec := doRequest(t, router, http.MethodPost, "/api/auth/register", "",
		api.RegisterRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeResponse[api.TokenResponse](t, rec).Token
}

func TestRegisterAndLogin(t *testing.T) {
	router := setupRouter(t)

	token := registerUser(t, router, "alice", "hunter2")
	assert.NotEmpty(t, token)

	// Registering the same username again conflicts.
	rec := doRequest(t, router, http.MethodPost, "/api/auth/register", "",
		api.RegisterRequest{Username: "alice", Password: "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/login", "",
		api.LoginRequest{Username: "alice", Password: "hunter2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeResponse[api.TokenResponse](t, rec).Token)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/login", "",
		api.LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/login", "",
		api.LoginRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe(t *testing.T) {
	router := setupRouter(t)
	token := registerUser(t, router, "alice", "hunter2")

	rec := doRequest(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeResponse[api.MeResponse](t, rec)
	assert.Equal(t, "alice", me.User.Username)

	rec = doRequest(t, router, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/auth/me", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	router := setupRouter(t)
	registerUser(t, router, "alice", "original")

	rec := doRequest(t, router, http.MethodPost, "/api/auth/forgot", "",
		api.ForgotPasswordRequest{Username: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/forgot", "",
		api.ForgotPasswordRequest{Username: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeResponse[api.ForgotPasswordResponse](t, rec).Token
	require.NotEmpty(t, token)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/reset", "",
		api.ResetPasswordRequest{Username: "alice", Token: "bogus", Password: "newpass"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/reset", "",
		api.ResetPasswordRequest{Username: "alice", Token: token, Password: "newpass"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/login", "",
		api.LoginRequest{Username: "alice", Password: "original"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/auth/login", "",
		api.LoginRequest{Username: "alice", Password: "newpass"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
