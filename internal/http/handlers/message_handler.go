// Message HTTP handlers.
//
// This file exposes REST endpoints for lead conversation threads:
//   - POST /leads/{id}/messages  (append an inbound or outbound message)
//   - GET  /leads/{id}/messages  (list paginated messages for a lead)
//   - POST /leads/{id}/analyze   (AI conversation analysis with write-back)
//   - POST /leads/{id}/outreach  (render/send an outreach draft)
//
// Handlers are transport-thin: they validate and normalize inputs (line
// endings, length caps), delegate to application services, and implement
// conditional responses (ETag) on the thread listing.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/services"
)

//
// DTOs
//

// PostLeadMessageRequest is the JSON payload for appending a message to a
// lead's thread.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer, which also enforces a
// maximum rune count.
type PostLeadMessageRequest struct {
	// Content is the message text. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"Kya 5 marla ka plot available hai DHA phase 6 mein?"`
	// Direction is INBOUND (from the lead) or OUTBOUND (from the agent).
	Direction string `json:"direction" binding:"required" example:"INBOUND"`
	// Channel is WHATSAPP (default) or SMS.
	Channel string `json:"channel" example:"WHATSAPP"`
}

// PostLeadMessageResponse is the envelope for a newly appended message.
type PostLeadMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListLeadMessagesResponse contains a page of messages and pagination metadata.
type ListLeadMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// OutreachRequest is the JSON payload for drafting or sending outreach.
type OutreachRequest struct {
	// TemplateID optionally selects a stored template; when empty the lead's
	// AI-personalized email (or the default template) is used.
	TemplateID string `json:"template_id" example:"t1"`
	// To optionally sets the recipient address; when empty (or when SMTP is
	// not configured) the rendered draft is returned without sending.
	To string `json:"to" example:"ayesha@example.com"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes message text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxMessageRunes inspects the concrete MessageService for a
// configured length limit. If unavailable, it returns a conservative
// fallback.
func discoverMaxMessageRunes(msgSvc MessageService) int {
	const fallback = 4000
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxMessageLen > 0 {
			return ms.MaxMessageLen
		}
	}
	return fallback
}

//
// Handlers
//

// PostLeadMessage godoc
// @ID          postLeadMessage
// @Summary     Append a message to a lead's thread
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Lead ID (UUID)"           format(uuid)
// @Param       body         body    handlers.PostLeadMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.PostLeadMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Lead not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /leads/{id}/messages [post]
func (h *Handlers) PostLeadMessage(c *gin.Context) {
	leadID := c.Param("id")
	if _, err := uuid.Parse(leadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}

	var req PostLeadMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content and direction required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxMessageRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	direction := strings.ToUpper(strings.TrimSpace(req.Direction))
	channel := strings.ToUpper(strings.TrimSpace(req.Channel))

	m, err := h.msgSvc.Append(c.Request.Context(), tenantID(c), leadID, content, direction, channel)
	if err != nil {
		switch err {
		case services.ErrLeadNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lead not found")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case services.ErrEmptyContent:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		case services.ErrInvalidDirection:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "direction must be INBOUND or OUTBOUND")
		case services.ErrInvalidChannel:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel must be WHATSAPP or SMS")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, PostLeadMessageResponse{Message: m})
}

// ListLeadMessages godoc
// @ID          listLeadMessages
// @Summary     List messages in a lead's thread
// @Description Returns a paginated, chronologically ordered list of messages for the given lead.
// @Tags        Messages
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Lead ID (UUID)"           format(uuid)
// @Param       page         query   int     false "Page number"              minimum(1) default(1)
// @Param       page_size    query   int     false "Items per page"           minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLeadMessagesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lead not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads/{id}/messages [get]
func (h *Handlers) ListLeadMessages(c *gin.Context) {
	ctx := c.Request.Context()
	leadID := c.Param("id")

	if _, err := uuid.Parse(leadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}

	// ETag pre-check (best effort).
	if h.DB != nil {
		count, maxTS, err := repo.MessagesStats(ctx, h.DB, leadID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, leadID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.msgSvc.ListPage(ctx, tenantID(c), leadID, page, pageSize)
	if err != nil {
		switch err {
		case services.ErrLeadNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lead not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListLeadMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// AnalyzeLead godoc
// @ID          analyzeLead
// @Summary     Analyze a lead's conversation with AI
// @Description Runs conversation-aware analysis over the lead's stored thread and writes the result back.
// @Description When the tenant has AI privacy enabled, the transcript is withheld and the analysis degrades
// @Description to profile-only scoring.
// @Tags        Messages
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Lead ID (UUID)"           format(uuid)
//
// @Success     200  {object} handlers.ScoreLeadResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lead not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /leads/{id}/analyze [post]
func (h *Handlers) AnalyzeLead(c *gin.Context) {
	ctx := c.Request.Context()
	leadID := c.Param("id")
	if _, err := uuid.Parse(leadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}
	tid := tenantID(c)

	privacy := false
	if settings, err := h.settingsSvc.Get(ctx, tid); err == nil {
		privacy = settings.AIPrivacyEnabled
	}

	lead, res, err := h.msgSvc.Analyze(ctx, tid, leadID, privacy)
	if err != nil {
		switch err {
		case services.ErrLeadNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lead not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnalyzeFailed, err.Error())
		}
		return
	}
	middleware.ObserveAdvisory("analyze", res.Fallback)
	ok(c, http.StatusOK, ScoreLeadResponse{Lead: lead, Fallback: res.Fallback})
}

// OutreachLead godoc
// @ID          outreachLead
// @Summary     Draft or send an outreach email for a lead
// @Description Renders an outreach draft from a template or the lead's AI-personalized email. When SMTP is
// @Description configured and a recipient is provided, the draft is delivered and `sent` is true.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(t1)
// @Param       id           path    string  true  "Lead ID (UUID)"           format(uuid)
// @Param       body         body    handlers.OutreachRequest  false  "Outreach options"
//
// @Success     200  {object} services.OutreachDraft
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lead or template not found"
// @Failure     502  {object} handlers.ErrorResponse "Delivery failed"
// @Router      /leads/{id}/outreach [post]
func (h *Handlers) OutreachLead(c *gin.Context) {
	leadID := c.Param("id")
	if _, err := uuid.Parse(leadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lead id must be a UUID")
		return
	}

	var req OutreachRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	draft, err := h.outreachSvc.Draft(c.Request.Context(), tenantID(c), leadID, strings.TrimSpace(req.TemplateID), strings.TrimSpace(req.To))
	if err != nil {
		switch err {
		case services.ErrLeadNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lead not found")
		case services.ErrTemplateNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "template not found")
		case services.ErrNoDraft:
			fail(c, http.StatusBadRequest, ErrCodeOutreachFailed, "no template or personalized email available")
		default:
			// Draft may exist even when delivery fails; report the failure.
			fail(c, http.StatusBadGateway, ErrCodeOutreachFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, draft)
}
