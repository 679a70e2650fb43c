package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ridelink/identity/internal/auth"
	"github.com/ridelink/identity/internal/models"
	"github.com/ridelink/identity/internal/services"
	pkghttp "github.com/ridelink/identity/pkg/http"
)

// IdentityServiceInterface defines the resolver surface the handlers consume
type IdentityServiceInterface interface {
	Register(ctx context.Context, params services.RegisterParams) models.ResolutionResult
	Login(ctx context.Context, identifier, secret string) models.ResolutionResult
	LoginWithRole(ctx context.Context, identifier, role, secret string) models.ResolutionResult
	AccountForSession(ctx context.Context, claims *models.SessionClaims) (*models.Account, error)
	LogoutSession(ctx context.Context, claims *models.SessionClaims) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service IdentityServiceInterface
}

func NewAuthHandler(service IdentityServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
}

type LoginWithRoleRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=customer driver admin"`
	Secret     string `json:"secret" validate:"required"`
}

type RegisterRequest struct {
	Identifier  string `json:"identifier" validate:"required"`
	Secret      string `json:"secret" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
	Role        string `json:"role" validate:"required,oneof=customer driver"`
}

// Response DTOs

type AccountResponse struct {
	ID               string `json:"id"`
	Identifier       string `json:"identifier"`
	Role             string `json:"role"`
	DisplayName      string `json:"display_name"`
	AdminProvisioned bool   `json:"admin_provisioned,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type ResolutionResponse struct {
	SessionToken          string           `json:"session_token,omitempty"`
	Account               *AccountResponse `json:"account,omitempty"`
	RequiresRoleSelection bool             `json:"requires_role_selection,omitempty"`
	AvailableRoles        []string         `json:"available_roles,omitempty"`
}

func accountToResponse(account *models.Account) *AccountResponse {
	return &AccountResponse{
		ID:               account.ID,
		Identifier:       account.Identifier,
		Role:             string(account.Role),
		DisplayName:      account.DisplayName,
		AdminProvisioned: account.AdminProvisioned,
		CreatedAt:        account.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result := h.service.Login(r.Context(), req.Identifier, req.Secret)
	writeResolution(w, http.StatusOK, result)
}

// LoginWithRole handles POST /auth/login/role
func (h *AuthHandler) LoginWithRole(w http.ResponseWriter, r *http.Request) {
	var req LoginWithRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result := h.service.LoginWithRole(r.Context(), req.Identifier, req.Role, req.Secret)
	writeResolution(w, http.StatusOK, result)
}

// Register handles POST /auth/register. Self-service registration never
// sets the admin-provisioned flag; driver provisioning is the admin
// surface's job.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result := h.service.Register(r.Context(), services.RegisterParams{
		Identifier:  req.Identifier,
		Secret:      req.Secret,
		DisplayName: req.DisplayName,
		Role:        models.Role(req.Role),
	})
	writeResolution(w, http.StatusCreated, result)
}

// Logout handles POST /auth/logout. The revoked session is the caller's
// own, taken from the validated claims, never a shared slot.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.SessionFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "no resolved identity")
		return
	}
	if err := h.service.LogoutSession(r.Context(), claims); err != nil {
		pkghttp.WriteInternalError(w, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.SessionFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "no resolved identity")
		return
	}
	account, err := h.service.AccountForSession(r.Context(), claims)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "no resolved identity")
			return
		}
		pkghttp.WriteInternalError(w, "identity lookup failed")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, accountToResponse(account))
}

// writeResolution maps a ResolutionResult to an HTTP response. Not-found
// and bad-credential failures share one 401 message so the surface does
// not reveal which identifiers exist.
func writeResolution(w http.ResponseWriter, successStatus int, result models.ResolutionResult) {
	if result.RequiresRoleSelection() {
		roles := make([]string, 0, len(result.AvailableRoles()))
		for _, role := range result.AvailableRoles() {
			roles = append(roles, string(role))
		}
		pkghttp.WriteJSON(w, http.StatusOK, ResolutionResponse{
			RequiresRoleSelection: true,
			AvailableRoles:        roles,
		})
		return
	}

	if result.Success() {
		pkghttp.WriteJSON(w, successStatus, ResolutionResponse{
			SessionToken: result.SessionToken(),
			Account:      accountToResponse(result.Identity()),
		})
		return
	}

	err := result.Err()
	var rateErr *models.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		pkghttp.WriteTooManyRequests(w, err.Error(), rateErr.ResetTime)
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrRoleIneligible):
		pkghttp.WriteForbidden(w, models.ErrRoleIneligible.Error())
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, models.ErrConflict.Error())
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "invalid credentials")
	default:
		pkghttp.WriteInternalError(w, "authentication unavailable")
	}
}
