package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ridelink/identity/internal/models"
	"github.com/ridelink/identity/internal/security"
	"github.com/ridelink/identity/internal/services"
	pkghttp "github.com/ridelink/identity/pkg/http"
)

// AdminHandler exposes driver provisioning and the security event log.
type AdminHandler struct {
	service IdentityServiceInterface
	events  *security.EventLog
}

func NewAdminHandler(service IdentityServiceInterface, events *security.EventLog) *AdminHandler {
	return &AdminHandler{service: service, events: events}
}

type ProvisionDriverRequest struct {
	Identifier  string `json:"identifier" validate:"required"`
	Secret      string `json:"secret" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
}

// ProvisionDriver handles POST /admin/drivers. This is the only code path
// that creates a login-eligible driver account.
func (h *AdminHandler) ProvisionDriver(w http.ResponseWriter, r *http.Request) {
	var req ProvisionDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result := h.service.Register(r.Context(), services.RegisterParams{
		Identifier:       req.Identifier,
		Secret:           req.Secret,
		DisplayName:      req.DisplayName,
		Role:             models.RoleDriver,
		AdminProvisioned: true,
	})
	writeResolution(w, http.StatusCreated, result)
}

type SecurityEventResponse struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Severity         string `json:"severity"`
	Timestamp        string `json:"timestamp"`
	MaskedIdentifier string `json:"masked_identifier"`
	Details          string `json:"details"`
}

// SecurityEvents handles GET /admin/security/events
func (h *AdminHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > security.DefaultCapacity {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events := h.events.RecentEvents(limit)
	out := make([]SecurityEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, SecurityEventResponse{
			ID:               e.ID,
			Type:             e.Type,
			Severity:         e.Severity,
			Timestamp:        e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			MaskedIdentifier: e.MaskedIdentifier,
			Details:          e.Details,
		})
	}
	pkghttp.WriteJSON(w, http.StatusOK, out)
}

type SecurityStatsResponse struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
	BySeverity  map[string]int `json:"by_severity"`
	FailureRate float64        `json:"failure_rate"`
}

// SecurityStatistics handles GET /admin/security/statistics
func (h *AdminHandler) SecurityStatistics(w http.ResponseWriter, r *http.Request) {
	stats := h.events.Statistics()
	pkghttp.WriteJSON(w, http.StatusOK, SecurityStatsResponse{
		Total:       stats.Total,
		ByType:      stats.ByType,
		BySeverity:  stats.BySeverity,
		FailureRate: stats.FailureRate,
	})
}
