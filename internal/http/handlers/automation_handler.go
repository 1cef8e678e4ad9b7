// Automation HTTP handlers.
//
// This file exposes REST endpoints for automation rules:
//   - GET    /automations       (list)
//   - POST   /automations       (create or upsert)
//   - DELETE /automations/{id}  (remove; unknown ids are a no-op)
//
// Rules are descriptive records the dashboard renders; nothing server-side
// evaluates them.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/services"
)

// SaveAutomationRequest is the JSON payload for creating or updating a rule.
// When ID matches an existing rule it is replaced in place; otherwise a new
// rule is appended.
type SaveAutomationRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" binding:"required,min=1,max=255" example:"Welcome new WhatsApp leads"`
	Trigger  string `json:"trigger" example:"Lead Created"`
	Action   string `json:"action" example:"Send welcome template"`
	IsActive *bool  `json:"is_active"`
}

// ListAutomations godoc
// @ID          listAutomations
// @Summary     List automation rules
// @Tags        Automations
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
//
// @Success     200  {array}  domain.AutomationRule
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /automations [get]
func (h *Handlers) ListAutomations(c *gin.Context) {
	rules, err := h.autoSvc.List(c.Request.Context(), tenantID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, rules)
}

// SaveAutomation godoc
// @ID          saveAutomation
// @Summary     Create or update an automation rule
// @Tags        Automations
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       body         body    handlers.SaveAutomationRequest  true  "Rule payload"
//
// @Success     200  {object} domain.AutomationRule
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /automations [post]
func (h *Handlers) SaveAutomation(c *gin.Context) {
	var req SaveAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule := &domain.AutomationRule{
		ID:       strings.TrimSpace(req.ID),
		Name:     req.Name,
		Trigger:  strings.TrimSpace(req.Trigger),
		Action:   strings.TrimSpace(req.Action),
		IsActive: active,
	}

	saved, err := h.autoSvc.Save(c.Request.Context(), tenantID(c), rule)
	if err != nil {
		if err == services.ErrRuleName {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, saved)
}

// DeleteAutomation godoc
// @ID          deleteAutomation
// @Summary     Delete an automation rule
// @Description Removes a rule by id. Deleting an unknown id succeeds without effect.
// @Tags        Automations
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Rule ID"
//
// @Success     204  {string} string "No Content"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /automations/{id} [delete]
func (h *Handlers) DeleteAutomation(c *gin.Context) {
	if err := h.autoSvc.Delete(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
