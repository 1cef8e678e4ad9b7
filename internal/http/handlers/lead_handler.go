// Lead HTTP handlers.
//
// This file exposes REST endpoints for lead resources:
//   - POST   /leads              (create or upsert)
//   - GET    /leads              (list, paginated, ETag support)
//   - GET    /leads/{id}         (fetch one)
//   - PUT    /leads/{id}/stage   (pipeline move)
//   - DELETE /leads/{id}         (delete with message cascade)
//   - POST   /leads/parse        (extract draft lead from pasted text)
//   - POST   /leads/{id}/score   (AI profile scoring with write-back)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses
// and idempotent scoring replays).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/ai"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/services"
	"github.com/tbourn/go-crm-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// LeadService defines lead lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LeadService interface {
	// Create inserts a new lead for the tenant.
	Create(ctx context.Context, tenantID string, l *domain.Lead) (*domain.Lead, error)
	// Upsert replaces a lead with the same id in place or appends it.
	Upsert(ctx context.Context, tenantID string, l *domain.Lead) (*domain.Lead, error)
	// ListPage returns a page of leads for the tenant and the total count.
	ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Lead, int64, error)
	// Get fetches a single lead.
	Get(ctx context.Context, tenantID, id string) (*domain.Lead, error)
	// UpdateStage moves a lead to a new pipeline stage.
	UpdateStage(ctx context.Context, tenantID, id, stage string) error
	// Delete removes a lead and its messages.
	Delete(ctx context.Context, tenantID, id string) error
	// Score runs AI profile scoring and writes the analysis back.
	Score(ctx context.Context, tenantID, id string) (*domain.Lead, ai.Result, error)
	// ParseFromText extracts a draft lead from pasted free text.
	ParseFromText(ctx context.Context, raw string) (ai.ParseResult, error)
}

// MessageService defines conversation operations consumed by HTTP handlers.
type MessageService interface {
	// Append adds a message to a lead's thread.
	Append(ctx context.Context, tenantID, leadID, content, direction, channel string) (*domain.Message, error)
	// ListPage returns one page of a lead's thread and the total count.
	ListPage(ctx context.Context, tenantID, leadID string, page, pageSize int) ([]domain.Message, int64, error)
	// Analyze runs the conversation-aware advisory and persists the result.
	Analyze(ctx context.Context, tenantID, leadID string, privacyEnabled bool) (*domain.Lead, ai.Result, error)
}

// AutomationService defines automation rule operations.
type AutomationService interface {
	List(ctx context.Context, tenantID string) ([]domain.AutomationRule, error)
	Save(ctx context.Context, tenantID string, r *domain.AutomationRule) (*domain.AutomationRule, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// SettingsService defines tenant settings and profile operations.
type SettingsService interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	Save(ctx context.Context, tenantID string, s *domain.TenantSettings) (*domain.TenantSettings, error)
	SetDefaultTemplate(ctx context.Context, tenantID, templateID string) (*domain.TenantSettings, error)
	GetProfile(ctx context.Context, tenantID string) (*domain.UserProfile, error)
	SaveProfile(ctx context.Context, tenantID string, p *domain.UserProfile) (*domain.UserProfile, error)
}

// OutreachService renders (and optionally sends) outreach drafts.
type OutreachService interface {
	Draft(ctx context.Context, tenantID, leadID, templateID, to string) (*services.OutreachDraft, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for leads, messages, automations, settings,
// and outreach. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	leadSvc     LeadService
	msgSvc      MessageService
	autoSvc     AutomationService
	settingsSvc SettingsService
	outreachSvc OutreachService

	// DB backs direct admin/idempotency queries that bypass the services.
	DB *gorm.DB
	// IdempotencyTTL bounds replay validity for scoring requests.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(leadSvc LeadService, msgSvc MessageService, autoSvc AutomationService, settingsSvc SettingsService, outreachSvc OutreachService, db *gorm.DB) *Handlers {
	return &Handlers{
		leadSvc:        leadSvc,
		msgSvc:         msgSvc,
		autoSvc:        autoSvc,
		settingsSvc:    settingsSvc,
		outreachSvc:    outreachSvc,
		DB:             db,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// tenantID resolves the requesting tenant from the Gin context (set by the
// Tenant middleware) with a header and demo fallback. It never touches
// c.Request if it's nil.
func tenantID(c *gin.Context) string {
	if t := middleware.TenantFrom(c); t != "" {
		return t
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Tenant-ID")); h != "" {
			return h
		}
	}
	return "demo"
}

//
// DTOs
//

// SaveLeadRequest is the JSON payload for creating or upserting a lead.
//
// When ID is supplied and a lead with that id exists, the lead is replaced in
// place (its list position and created_at are preserved). When ID is absent a
// new lead is appended.
type SaveLeadRequest struct {
	ID     string `json:"id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Name   string `json:"name" binding:"required,min=1,max=255" example:"Ayesha Khan"`
	Phone  string `json:"phone" example:"0300-1234567"`
	Source string `json:"source" binding:"required" example:"WHATSAPP"`
	Value  int64  `json:"value" example:"500000"`
	Stage  string `json:"stage" example:"NEW"`
	// Analysis optionally carries a previously computed advisory payload so
	// exported leads can be re-imported without losing it.
	Analysis *domain.AiAnalysis `json:"ai_analysis,omitempty"`
}

// UpdateStageRequest is the JSON payload for a pipeline stage move.
type UpdateStageRequest struct {
	Stage string `json:"stage" binding:"required" example:"CONTACTED"`
}

// ParseLeadRequest is the JSON payload for free-text lead extraction.
type ParseLeadRequest struct {
	// Text is the pasted message to extract a draft lead from.
	Text string `json:"text" binding:"required,min=1" example:"Assalam o Alaikum, this is Bilal. Looking for a 5 marla plot in DHA, budget around 80 lac. 0321-9998877"`
}

// ParseLeadResponse wraps the extracted draft. Every field of the draft is
// optional; clients must treat an empty draft as "nothing extracted".
type ParseLeadResponse struct {
	Draft    ai.LeadDraft `json:"draft"`
	Fallback bool         `json:"fallback"`
}

// ScoreLeadResponse is the envelope for scoring and analysis results.
type ScoreLeadResponse struct {
	// Lead is the updated lead including the written-back analysis.
	Lead *domain.Lead `json:"lead"`
	// Fallback is true when the deterministic advisory payload was served.
	Fallback bool `json:"fallback"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListLeadsResponse wraps a page of leads and pagination information.
type ListLeadsResponse struct {
	Leads      []domain.Lead `json:"leads"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// failLead maps service-level lead errors onto HTTP results, with fallback
// to a 500 using the given domain code.
func failLead(c *gin.Context, err error, code string) {
	switch err {
	case services.ErrLeadNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "lead not found")
	case services.ErrEmptyName:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
	case services.ErrInvalidSource:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "source must be one of WHATSAPP, FACEBOOK, WALK_IN, WEBSITE")
	case services.ErrInvalidStage:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "stage must be one of NEW, CONTACTED, PROPOSAL, WON, LOST")
	case services.ErrNegativeValue:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be >= 0")
	default:
		fail(c, http.StatusInternalServerError, code, err.Error())
	}
}

//
// Handlers
//

// SaveLead godoc
// @ID          saveLead
// @Summary     Create or upsert a lead
// @Description Creates a lead, or replaces an existing one in place when the payload carries a known id.
// @Tags        Leads
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       body         body    handlers.SaveLeadRequest  true  "Lead payload"
//
// @Success     200  {object}  domain.Lead  "Existing lead replaced"
// @Success     201  {object}  domain.Lead  "New lead created"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leads [post]
func (h *Handlers) SaveLead(c *gin.Context) {
	var req SaveLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	lead := &domain.Lead{
		ID:       strings.TrimSpace(req.ID),
		Name:     req.Name,
		Phone:    strings.TrimSpace(req.Phone),
		Source:   req.Source,
		Value:    req.Value,
		Stage:    req.Stage,
		Analysis: req.Analysis,
	}

	tid := tenantID(c)
	if lead.ID == "" {
		created, err := h.leadSvc.Create(c.Request.Context(), tid, lead)
		if err != nil {
			failLead(c, err, ErrCodeCreateFailed)
			return
		}
		ok(c, http.StatusCreated, created)
		return
	}

	saved, err := h.leadSvc.Upsert(c.Request.Context(), tid, lead)
	if err != nil {
		failLead(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, saved)
}

// ListLeads godoc
// @ID          listLeads
// @Summary     List leads (paginated)
// @Description Returns a page of the tenant's leads in insertion order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Leads
// @Produce     json
//
// @Param       X-Tenant-ID    header  string  false "Tenant ID (demo header)"     example(t1)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLeadsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads [get]
func (h *Handlers) ListLeads(c *gin.Context) {
	ctx := c.Request.Context()
	tid := tenantID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.DB != nil {
		count, maxTS, err := repo.LeadsStats(ctx, h.DB, tid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"leads:%s:%d:%d"`, tid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.leadSvc.ListPage(ctx, tid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListLeadsResponse{
		Leads: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetLead godoc
// @ID          getLead
// @Summary     Fetch a lead
// @Tags        Leads
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Lead ID (UUID)"           format(uuid)
//
// @Success     200  {object} domain.Lead
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lead not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads/{id} [get]
func (h *Handlers) GetLead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}
	lead, err := h.leadSvc.Get(c.Request.Context(), tenantID(c), id)
	if err != nil {
		failLead(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, lead)
}

// UpdateLeadStage godoc
// @ID          updateLeadStage
// @Summary     Move a lead to a pipeline stage
// @Tags        Leads
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Lead ID (UUID)"           format(uuid)
// @Param       body         body    handlers.UpdateStageRequest  true  "New stage"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lead not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads/{id}/stage [put]
func (h *Handlers) UpdateLeadStage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}
	var req UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "stage required")
		return
	}
	if err := h.leadSvc.UpdateStage(c.Request.Context(), tenantID(c), id, strings.ToUpper(strings.TrimSpace(req.Stage))); err != nil {
		failLead(c, err, ErrCodeSaveFailed)
		return
	}
	noContent(c)
}

// DeleteLead godoc
// @ID          deleteLead
// @Summary     Delete a lead
// @Description Removes the lead and every message in its conversation thread.
// @Tags        Leads
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Lead ID (UUID)"           format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lead not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads/{id} [delete]
func (h *Handlers) DeleteLead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}
	if err := h.leadSvc.Delete(c.Request.Context(), tenantID(c), id); err != nil {
		failLead(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// ParseLead godoc
// @ID          parseLead
// @Summary     Extract a draft lead from pasted text
// @Description Sends the pasted text to the advisory model and returns a partial lead draft. All draft fields are optional.
// @Tags        Leads
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ParseLeadRequest  true  "Pasted text"
//
// @Success     200  {object} handlers.ParseLeadResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads/parse [post]
func (h *Handlers) ParseLead(c *gin.Context) {
	var req ParseLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	res, err := h.leadSvc.ParseFromText(c.Request.Context(), req.Text)
	if err != nil {
		if err == services.ErrEmptyContent {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeParseFailed, err.Error())
		return
	}
	middleware.ObserveAdvisory("parse", res.Fallback)
	ok(c, http.StatusOK, ParseLeadResponse{Draft: res.Draft, Fallback: res.Fallback})
}

// ScoreLead godoc
// @ID          scoreLead
// @Summary     Score a lead profile with AI
// @Description Runs profile scoring for the lead and writes the analysis back (ai_score mirrors the embedded score).
// @Description Supports idempotency via the Idempotency-Key header: a replayed key returns the persisted analysis
// @Description without re-invoking the model and sets `Idempotency-Replayed: true`.
// @Tags        Leads
// @Produce     json
//
// @Param       X-Tenant-ID      header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       id               path    string  true  "Lead ID (UUID)"           format(uuid)
//
// @Success     200  {object} handlers.ScoreLeadResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lead not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads/{id}/score [post]
func (h *Handlers) ScoreLead(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}
	tid := tenantID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.DB, tid, id, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if lead, err2 := h.leadSvc.Get(ctx, tid, id); err2 == nil && lead.Analysis != nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, ScoreLeadResponse{Lead: lead})
				return
			}
		}
	}

	lead, res, err := h.leadSvc.Score(ctx, tid, id)
	if err != nil {
		failLead(c, err, ErrCodeScoreFailed)
		return
	}
	middleware.ObserveAdvisory("score", res.Fallback)

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.DB != nil {
		_, _ = repo.CreateIdempotency(ctx, h.DB, tid, id, idemKey, http.StatusOK, h.IdempotencyTTL)
	}

	ok(c, http.StatusOK, ScoreLeadResponse{Lead: lead, Fallback: res.Fallback})
}
