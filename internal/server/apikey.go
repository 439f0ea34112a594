package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/tutorbase/tutorbase/internal/apikey/domain"
)

type createAPIKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// @Summary      Create API Key
// @Description  Issue a new API key; the secret is returned exactly once
// @Tags         api-keys
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body createAPIKeyRequest true "Create API Key Request"
// @Success      200  {object}  apikeydomain.CreateAPIKeyResponse
// @Router       /api-keys [post]
func (s *Server) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apikeySvc.Create(c.Request.Context(), apikeydomain.CreateAPIKeyRequest{
		Name:      strings.TrimSpace(req.Name),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.Key.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), "api_key", actorFromContext(c), "api_key.create", "api_key", &targetID, map[string]any{
			"name": resp.Key.Name,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List API Keys
// @Description  List issued API keys without secrets
// @Tags         api-keys
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  []apikeydomain.APIKey
// @Router       /api-keys [get]
func (s *Server) ListAPIKeys(c *gin.Context) {
	resp, err := s.apikeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Revoke API Key
// @Description  Deactivate an API key
// @Tags         api-keys
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "API Key ID"
// @Success      200  {object}  map[string]string
// @Router       /api-keys/{id} [delete]
func (s *Server) RevokeAPIKey(c *gin.Context) {
	if err := s.apikeySvc.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := c.Param("id")
		_ = s.auditSvc.AuditLog(c.Request.Context(), "api_key", actorFromContext(c), "api_key.revoke", "api_key", &targetID, nil)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
