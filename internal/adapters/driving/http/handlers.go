package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns readiness, checking database and redis connectivity
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backend dependency is down"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// OAuth flow endpoints

// handleOAuthAuthorize godoc
// @Summary      Start an OAuth authorization flow
// @Description  Issues a single-use state and returns the provider authorization URL
// @Tags         OAuth
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string  true   "Provider name (google, microsoft, notion, youtube)"
// @Param        scopes    query     string  false  "Space-separated scopes overriding the provider defaults"
// @Success      200       {object}  driving.AuthorizeResponse
// @Failure      400       {object}  ErrorResponse  "Unknown or unconfigured provider"
// @Failure      401       {object}  ErrorResponse
// @Router       /oauth/{provider}/authorize [get]
func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	provider, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return
	}

	req := driving.AuthorizeRequest{
		UserID:   claims.UserID,
		Provider: provider,
	}
	if raw := r.URL.Query().Get("scopes"); raw != "" {
		req.Scopes = splitQueryScopes(raw)
	}

	resp, err := s.oauthService.Authorize(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      OAuth provider callback
// @Description  Completes the flow: validates state, exchanges the code, and activates the integration
// @Tags         OAuth
// @Produce      json
// @Param        provider  path      string  true   "Provider name"
// @Param        state     query     string  true   "State issued by the authorize endpoint"
// @Param        code      query     string  false  "Authorization code"
// @Param        error     query     string  false  "Provider error code when the user denied"
// @Success      200       {object}  driving.CallbackResponse
// @Failure      400       {object}  ErrorResponse  "Invalid or expired state, or provider error"
// @Router       /oauth/{provider}/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := driving.CallbackRequest{
		State:            query.Get("state"),
		Code:             query.Get("code"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	resp, err := s.oauthService.Callback(r.Context(), req)
	if err != nil {
		var oauthErr *driving.OAuthError
		if errors.As(err, &oauthErr) {
			writeError(w, http.StatusBadRequest, oauthErr.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Integration endpoints

// handleListIntegrations godoc
// @Summary      List the user's integrations
// @Tags         Integrations
// @Produce      json
// @Security     BearerAuth
// @Param        provider  query     string  false  "Filter to one provider"
// @Param        active    query     bool    false  "Only active integrations"
// @Success      200       {array}   domain.IntegrationSummary
// @Failure      401       {object}  ErrorResponse
// @Router       /oauth/integrations [get]
func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var filter driven.IntegrationFilter
	query := r.URL.Query()
	if raw := query.Get("provider"); raw != "" {
		provider, err := domain.ParseProvider(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unsupported provider")
			return
		}
		filter.Provider = provider
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active filter")
			return
		}
		filter.ActiveOnly = active
	}

	summaries, err := s.integrationService.ListForUser(r.Context(), claims.UserID, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []*domain.IntegrationSummary{}
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleRefreshIntegration godoc
// @Summary      Force a token refresh
// @Tags         Integrations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Integration ID"
// @Success      200  {object}  domain.IntegrationSummary
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "Refresh rejected; reconnect required"
// @Router       /oauth/integrations/{id}/refresh [post]
func (s *Server) handleRefreshIntegration(w http.ResponseWriter, r *http.Request) {
	integration, ok := s.ownedIntegration(w, r)
	if !ok {
		return
	}

	if _, err := s.tokenService.Refresh(r.Context(), integration.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	refreshed, err := s.integrationService.Get(r.Context(), integration.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshed.ToSummary())
}

// handleRevokeIntegration godoc
// @Summary      Revoke an integration
// @Description  Best-effort revokes at the provider and destroys local credentials. Idempotent.
// @Tags         Integrations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Integration ID"
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /oauth/integrations/{id} [delete]
func (s *Server) handleRevokeIntegration(w http.ResponseWriter, r *http.Request) {
	integration, ok := s.ownedIntegration(w, r)
	if !ok {
		return
	}

	if err := s.integrationService.Revoke(r.Context(), integration.ID, "user requested disconnect"); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// handleAuditTrail godoc
// @Summary      List the user's security audit events
// @Tags         Integrations
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum events to return (default 50)"
// @Success      200    {array}   domain.AuditEvent
// @Failure      401    {object}  ErrorResponse
// @Router       /oauth/audit [get]
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := s.securityService.AuditTrail(r.Context(), claims.UserID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

// Tool endpoints

// handleListTools godoc
// @Summary      List available tools
// @Tags         Tools
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  string
// @Router       /tools [get]
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	names := s.toolRegistry.Names()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

// handleCallTool godoc
// @Summary      Invoke a tool for the authenticated user
// @Description  Runs the named tool against the user's connected provider. When the provider is not connected the result asks for authorization instead of failing.
// @Tags         Tools
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string  true  "Tool name"
// @Success      200   {object}  tools.Result
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse  "Unknown tool"
// @Router       /tools/{name} [post]
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tool := s.toolRegistry.Get(r.PathValue("name"))
	if tool == nil {
		writeError(w, http.StatusNotFound, "unknown tool")
		return
	}

	writeJSON(w, http.StatusOK, tool.Call(r.Context(), claims.UserID))
}

// ownedIntegration loads the path integration and enforces ownership.
// A foreign integration reads as not found so IDs can't be probed.
func (s *Server) ownedIntegration(w http.ResponseWriter, r *http.Request) (*domain.Integration, bool) {
	claims := GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	integration, err := s.integrationService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if integration.UserID != claims.UserID {
		writeError(w, http.StatusNotFound, "integration not found")
		return nil, false
	}
	return integration, true
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "integration not found")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid or expired authorization state")
	case errors.Is(err, domain.ErrUnsupportedProvider):
		writeError(w, http.StatusBadRequest, "unsupported provider")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidGrant), errors.Is(err, domain.ErrNotRefreshable),
		errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrRevoked):
		writeError(w, http.StatusConflict, "reauthorization required")
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "provider unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func splitQueryScopes(raw string) []string {
	return strings.Fields(raw)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
