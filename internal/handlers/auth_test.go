package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridelink/identity/internal/auth"
	"github.com/ridelink/identity/internal/models"
	"github.com/ridelink/identity/internal/services"
)

type mockIdentityService struct {
	RegisterFunc          func(ctx context.Context, params services.RegisterParams) models.ResolutionResult
	LoginFunc             func(ctx context.Context, identifier, secret string) models.ResolutionResult
	LoginWithRoleFunc     func(ctx context.Context, identifier, role, secret string) models.ResolutionResult
	AccountForSessionFunc func(ctx context.Context, claims *models.SessionClaims) (*models.Account, error)
	LogoutSessionFunc     func(ctx context.Context, claims *models.SessionClaims) error
}

func (m *mockIdentityService) Register(ctx context.Context, params services.RegisterParams) models.ResolutionResult {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return models.Failed(models.ErrInternalServer)
}

func (m *mockIdentityService) Login(ctx context.Context, identifier, secret string) models.ResolutionResult {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, secret)
	}
	return models.Failed(models.ErrInternalServer)
}

func (m *mockIdentityService) LoginWithRole(ctx context.Context, identifier, role, secret string) models.ResolutionResult {
	if m.LoginWithRoleFunc != nil {
		return m.LoginWithRoleFunc(ctx, identifier, role, secret)
	}
	return models.Failed(models.ErrInternalServer)
}

func (m *mockIdentityService) AccountForSession(ctx context.Context, claims *models.SessionClaims) (*models.Account, error) {
	if m.AccountForSessionFunc != nil {
		return m.AccountForSessionFunc(ctx, claims)
	}
	return nil, models.ErrNotFound
}

func (m *mockIdentityService) LogoutSession(ctx context.Context, claims *models.SessionClaims) error {
	if m.LogoutSessionFunc != nil {
		return m.LogoutSessionFunc(ctx, claims)
	}
	return nil
}

func testAccount() *models.Account {
	return &models.Account{
		ID:          "acct-1",
		Identifier:  "rider.lee@example.com",
		Role:        models.RoleCustomer,
		DisplayName: "Rider Lee",
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeResolution(t *testing.T, rec *httptest.ResponseRecorder) ResolutionResponse {
	t.Helper()
	var resp ResolutionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLoginHandler_Success(t *testing.T) {
	service := &mockIdentityService{
		LoginFunc: func(ctx context.Context, identifier, secret string) models.ResolutionResult {
			assert.Equal(t, "rider.lee@example.com", identifier)
			return models.Resolved(testAccount(), "token-123")
		},
	}
	handler := NewAuthHandler(service)

	rec := postJSON(t, handler.Login, LoginRequest{Identifier: "rider.lee@example.com", Secret: "pw"})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResolution(t, rec)
	assert.Equal(t, "token-123", resp.SessionToken)
	require.NotNil(t, resp.Account)
	assert.Equal(t, "acct-1", resp.Account.ID)
	assert.False(t, resp.RequiresRoleSelection)
}

func TestLoginHandler_RoleSelection(t *testing.T) {
	service := &mockIdentityService{
		LoginFunc: func(ctx context.Context, identifier, secret string) models.ResolutionResult {
			return models.RoleSelectionRequired([]models.Role{models.RoleCustomer, models.RoleAdmin})
		},
	}
	handler := NewAuthHandler(service)

	rec := postJSON(t, handler.Login, LoginRequest{Identifier: "rider.lee@example.com", Secret: "pw"})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResolution(t, rec)
	assert.True(t, resp.RequiresRoleSelection)
	assert.ElementsMatch(t, []string{"customer", "admin"}, resp.AvailableRoles)
	assert.Empty(t, resp.SessionToken)
	assert.Nil(t, resp.Account)
}

func TestLoginHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found hides account existence", models.ErrNotFound, http.StatusUnauthorized},
		{"invalid credentials", models.ErrInvalidCredentials, http.StatusUnauthorized},
		{"validation", models.ErrValidation, http.StatusBadRequest},
		{"role ineligible", models.ErrRoleIneligible, http.StatusForbidden},
		{"collaborator failure", models.ErrCollaborator, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockIdentityService{
				LoginFunc: func(ctx context.Context, identifier, secret string) models.ResolutionResult {
					return models.Failed(tt.err)
				},
			}
			handler := NewAuthHandler(service)

			rec := postJSON(t, handler.Login, LoginRequest{Identifier: "rider.lee@example.com", Secret: "pw"})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestLoginHandler_NotFoundAndBadCredentialsShareMessage(t *testing.T) {
	bodies := make([]string, 0, 2)
	for _, err := range []error{models.ErrNotFound, models.ErrInvalidCredentials} {
		failure := err
		service := &mockIdentityService{
			LoginFunc: func(ctx context.Context, identifier, secret string) models.ResolutionResult {
				return models.Failed(failure)
			},
		}
		handler := NewAuthHandler(service)
		rec := postJSON(t, handler.Login, LoginRequest{Identifier: "rider.lee@example.com", Secret: "pw"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1], "responses must not distinguish unknown identifiers from wrong secrets")
}

func TestLoginHandler_RateLimitedSetsRetryAfter(t *testing.T) {
	resetTime := time.Now().Add(10 * time.Minute)
	service := &mockIdentityService{
		LoginFunc: func(ctx context.Context, identifier, secret string) models.ResolutionResult {
			return models.Failed(&models.RateLimitError{ResetTime: resetTime})
		},
	}
	handler := NewAuthHandler(service)

	rec := postJSON(t, handler.Login, LoginRequest{Identifier: "rider.lee@example.com", Secret: "pw"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLoginHandler_MalformedBody(t *testing.T) {
	handler := NewAuthHandler(&mockIdentityService{})

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandler_MissingFields(t *testing.T) {
	called := false
	service := &mockIdentityService{
		LoginFunc: func(ctx context.Context, identifier, secret string) models.ResolutionResult {
			called = true
			return models.Failed(models.ErrInternalServer)
		},
	}
	handler := NewAuthHandler(service)

	rec := postJSON(t, handler.Login, LoginRequest{Identifier: "rider.lee@example.com"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called, "requests failing validation never reach the resolver")
}

func TestLoginWithRoleHandler(t *testing.T) {
	service := &mockIdentityService{
		LoginWithRoleFunc: func(ctx context.Context, identifier, role, secret string) models.ResolutionResult {
			assert.Equal(t, "admin", role)
			account := testAccount()
			account.Role = models.RoleAdmin
			return models.Resolved(account, "token-456")
		},
	}
	handler := NewAuthHandler(service)

	rec := postJSON(t, handler.LoginWithRole, LoginWithRoleRequest{
		Identifier: "rider.lee@example.com",
		Role:       "admin",
		Secret:     "pw",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResolution(t, rec)
	assert.Equal(t, "admin", resp.Account.Role)
}

func TestLoginWithRoleHandler_RejectsUnknownRole(t *testing.T) {
	handler := NewAuthHandler(&mockIdentityService{})

	rec := postJSON(t, handler.LoginWithRole, LoginWithRoleRequest{
		Identifier: "rider.lee@example.com",
		Role:       "superuser",
		Secret:     "pw",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterHandler_Success(t *testing.T) {
	service := &mockIdentityService{
		RegisterFunc: func(ctx context.Context, params services.RegisterParams) models.ResolutionResult {
			assert.False(t, params.AdminProvisioned, "self-service registration never grants provisioning")
			account := testAccount()
			account.DisplayName = params.DisplayName
			return models.Resolved(account, "token-789")
		},
	}
	handler := NewAuthHandler(service)

	rec := postJSON(t, handler.Register, RegisterRequest{
		Identifier:  "rider.lee@example.com",
		Secret:      "correct-horse-battery",
		DisplayName: "Rider Lee",
		Role:        "customer",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResolution(t, rec)
	assert.Equal(t, "token-789", resp.SessionToken)
}

func TestRegisterHandler_Conflict(t *testing.T) {
	service := &mockIdentityService{
		RegisterFunc: func(ctx context.Context, params services.RegisterParams) models.ResolutionResult {
			return models.Failed(models.ErrConflict)
		},
	}
	handler := NewAuthHandler(service)

	rec := postJSON(t, handler.Register, RegisterRequest{
		Identifier:  "rider.lee@example.com",
		Secret:      "correct-horse-battery",
		DisplayName: "Rider Lee",
		Role:        "customer",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterHandler_RejectsAdminRole(t *testing.T) {
	handler := NewAuthHandler(&mockIdentityService{})

	rec := postJSON(t, handler.Register, RegisterRequest{
		Identifier:  "rider.lee@example.com",
		Secret:      "correct-horse-battery",
		DisplayName: "Rider Lee",
		Role:        "admin",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code, "admin accounts are not self-service")
}

func testClaims() *models.SessionClaims {
	return &models.SessionClaims{
		AccountID:  "acct-1",
		Identifier: "rider.lee@example.com",
		Role:       "customer",
	}
}

func requestWithClaims(method string, claims *models.SessionClaims) *http.Request {
	req := httptest.NewRequest(method, "/", nil)
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, claims)
	return req.WithContext(ctx)
}

func TestLogoutHandler_RevokesCallerSession(t *testing.T) {
	var revoked *models.SessionClaims
	service := &mockIdentityService{
		LogoutSessionFunc: func(ctx context.Context, claims *models.SessionClaims) error {
			revoked = claims
			return nil
		},
	}
	handler := NewAuthHandler(service)

	rec := httptest.NewRecorder()
	handler.Logout(rec, requestWithClaims(http.MethodPost, testClaims()))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, revoked)
	assert.Equal(t, "acct-1", revoked.AccountID, "only the caller's own session is revoked")
}

func TestLogoutHandler_MissingSession(t *testing.T) {
	handler := NewAuthHandler(&mockIdentityService{})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutHandler_PropagatesFailure(t *testing.T) {
	service := &mockIdentityService{
		LogoutSessionFunc: func(ctx context.Context, claims *models.SessionClaims) error {
			return models.ErrCollaborator
		},
	}
	handler := NewAuthHandler(service)

	rec := httptest.NewRecorder()
	handler.Logout(rec, requestWithClaims(http.MethodPost, testClaims()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMeHandler_ResolvesCallerClaims(t *testing.T) {
	service := &mockIdentityService{
		AccountForSessionFunc: func(ctx context.Context, claims *models.SessionClaims) (*models.Account, error) {
			assert.Equal(t, "rider.lee@example.com", claims.Identifier)
			return testAccount(), nil
		},
	}
	handler := NewAuthHandler(service)

	rec := httptest.NewRecorder()
	handler.Me(rec, requestWithClaims(http.MethodGet, testClaims()))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AccountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "acct-1", resp.ID)
}

func TestMeHandler_MissingSession(t *testing.T) {
	handler := NewAuthHandler(&mockIdentityService{})

	rec := httptest.NewRecorder()
	handler.Me(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeHandler_StaleSessionAccountGone(t *testing.T) {
	service := &mockIdentityService{
		AccountForSessionFunc: func(ctx context.Context, claims *models.SessionClaims) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}
	handler := NewAuthHandler(service)

	rec := httptest.NewRecorder()
	handler.Me(rec, requestWithClaims(http.MethodGet, testClaims()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
