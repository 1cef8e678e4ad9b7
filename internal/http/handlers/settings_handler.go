// Settings and profile HTTP handlers.
//
// This file exposes REST endpoints for tenant settings and the operator
// profile:
//   - GET /settings; PUT /settings
//   - PUT /settings/templates/{id}/default   (promote a template)
//   - GET /profile; PUT /profile
//
// Settings reads never 404: tenants without a stored row receive the seed
// defaults, and rows saved before templates existed are patched on read.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/services"
)

// SaveProfileRequest is the JSON payload for updating the operator profile.
type SaveProfileRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=255" example:"Imran Siddiqui"`
	Email        string `json:"email" example:"imran@primeestates.pk"`
	BusinessName string `json:"business_name" example:"Prime Estates Lahore"`
	Role         string `json:"role" example:"ADMIN"`
	AvatarColor  string `json:"avatar_color" example:"#4f46e5"`
}

// GetSettings godoc
// @ID          getSettings
// @Summary     Fetch tenant settings
// @Description Returns the tenant's settings, seeded with defaults when none are stored.
// @Tags        Settings
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
//
// @Success     200  {object} domain.TenantSettings
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	s, err := h.settingsSvc.Get(c.Request.Context(), tenantID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, s)
}

// SaveSettings godoc
// @ID          saveSettings
// @Summary     Replace tenant settings
// @Tags        Settings
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       body         body    domain.TenantSettings  true  "Full settings object"
//
// @Success     200  {object} domain.TenantSettings
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /settings [put]
func (h *Handlers) SaveSettings(c *gin.Context) {
	var req domain.TenantSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	saved, err := h.settingsSvc.Save(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, saved)
}

// SetDefaultTemplate godoc
// @ID          setDefaultTemplate
// @Summary     Promote an email template to default
// @Description Marks the template as the default for its trigger; other templates sharing the trigger are demoted.
// @Tags        Settings
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Template ID"              example(t1)
//
// @Success     200  {object} domain.TenantSettings
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /settings/templates/{id}/default [put]
func (h *Handlers) SetDefaultTemplate(c *gin.Context) {
	s, err := h.settingsSvc.SetDefaultTemplate(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		if err == services.ErrTemplateNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "template not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, s)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Fetch the operator profile
// @Tags        Profile
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
//
// @Success     200  {object} domain.UserProfile
// @Failure     404  {object} handlers.ErrorResponse "Profile not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.settingsSvc.GetProfile(c.Request.Context(), tenantID(c))
	if err != nil {
		if err == services.ErrProfileNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}

// SaveProfile godoc
// @ID          saveProfile
// @Summary     Update the operator profile
// @Tags        Profile
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       body         body    handlers.SaveProfileRequest  true  "Profile payload"
//
// @Success     200  {object} domain.UserProfile
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [put]
func (h *Handlers) SaveProfile(c *gin.Context) {
	var req SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}

	p := &domain.UserProfile{
		Name:         req.Name,
		Email:        req.Email,
		BusinessName: req.BusinessName,
		Role:         req.Role,
		AvatarColor:  req.AvatarColor,
	}
	saved, err := h.settingsSvc.SaveProfile(c.Request.Context(), tenantID(c), p)
	if err != nil {
		switch err {
		case services.ErrEmptyName:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		case services.ErrInvalidRole:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be one of ADMIN, AGENT, VIEWER")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, saved)
}
