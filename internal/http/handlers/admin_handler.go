// Admin HTTP handlers.
//
// This file exposes the demo-reset endpoint:
//   - POST /admin/reset  (wipe all tenant data)
//
// Reset is destructive and intended for demo environments; it removes the
// tenant's leads, messages, automation rules, settings, and profile in one
// transaction so the next read sees a fresh seed state.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// ResetTenant godoc
// @ID          resetTenant
// @Summary     Reset all tenant data
// @Description Deletes the tenant's leads, messages, automation rules, settings, and profile. Demo use only.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
//
// @Success     204  {string} string "No Content"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/reset [post]
func (h *Handlers) ResetTenant(c *gin.Context) {
	tid := tenantID(c)
	if err := repo.ResetTenant(c.Request.Context(), h.DB, tid); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeResetFailed, err.Error())
		return
	}
	middleware.LoggerFrom(c).Warn().Str("tenant_id", tid).Msg("tenant data reset")
	noContent(c)
}
