package routes

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridelink/identity/internal/auth"
	"github.com/ridelink/identity/internal/handlers"
	"github.com/ridelink/identity/internal/ratelimit"
	"github.com/ridelink/identity/internal/repositories"
	"github.com/ridelink/identity/internal/security"
	"github.com/ridelink/identity/internal/services"
	pkgauth "github.com/ridelink/identity/pkg/auth"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.Default()
	store := repositories.NewMemoryAccountStore()
	limiter := ratelimit.New(logger)
	events := security.NewEventLog(logger)
	sessions := auth.NewSessionManager("a-long-enough-signing-secret", time.Hour)
	service := services.NewIdentityService(store, &pkgauth.BcryptVerifier{}, limiter, events, sessions, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, handlers.NewAuthHandler(service), handlers.NewAdminHandler(service, events), sessions)
	return router
}

func registerCaller(t *testing.T, router chi.Router, identifier, displayName string) string {
	t.Helper()
	payload, err := json.Marshal(handlers.RegisterRequest{
		Identifier:  identifier,
		Secret:      "correct-horse-battery",
		DisplayName: displayName,
		Role:        "customer",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handlers.ResolutionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.SessionToken)
	return resp.SessionToken
}

func getMe(router chi.Router, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_MeIsScopedToCallerToken(t *testing.T) {
	router := newTestRouter(t)

	aliceToken := registerCaller(t, router, "7005550101", "Alice")
	bobToken := registerCaller(t, router, "7005550202", "Bob")

	// Bob registered last; Alice's token must still resolve to Alice.
	rec := getMe(router, aliceToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var alice handlers.AccountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&alice))
	assert.Equal(t, "7005550101", alice.Identifier)

	rec = getMe(router, bobToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var bob handlers.AccountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bob))
	assert.Equal(t, "7005550202", bob.Identifier)
}

func TestRoutes_LogoutRevokesOnlyCallerSession(t *testing.T) {
	router := newTestRouter(t)

	aliceToken := registerCaller(t, router, "7005550101", "Alice")
	bobToken := registerCaller(t, router, "7005550202", "Bob")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Alice's session is gone; Bob's survives.
	assert.Equal(t, http.StatusUnauthorized, getMe(router, aliceToken).Code)
	assert.Equal(t, http.StatusOK, getMe(router, bobToken).Code)
}

func TestRoutes_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/security/events", nil)
	req.Header.Set("Authorization", "Bearer "+registerCaller(t, router, "7005550101", "Alice"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "customer tokens cannot reach the admin surface")
}
