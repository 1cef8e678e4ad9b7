// Package services – OutreachService
//
// Produces outreach email drafts for a lead from either the lead's
// AI-personalized email or a stored template, and optionally delivers them
// over SMTP when a sender and recipient address are available.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/mail"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/utils"
)

// OutreachDraft is a rendered outreach message, optionally delivered.
type OutreachDraft struct {
	// Subject of the message.
	Subject string `json:"subject"`
	// Body is the rendered plain-text body including the signature.
	Body string `json:"body"`
	// TemplateID identifies the template used ("" when the draft came from
	// the lead's AI-personalized email).
	TemplateID string `json:"template_id,omitempty"`
	// Sent reports whether the draft was delivered over SMTP.
	Sent bool `json:"sent"`
}

// OutreachService renders and sends outreach drafts.
type OutreachService struct {
	DB *gorm.DB
	// Sender delivers drafts; nil means draft-only mode (no SMTP
	// configured).
	Sender mail.Sender
}

// NewOutreachService constructs an OutreachService. sender may be nil.
func NewOutreachService(db *gorm.DB, sender mail.Sender) *OutreachService {
	return &OutreachService{DB: db, Sender: sender}
}

// Draft renders an outreach message for a lead. Resolution order:
//
//  1. templateID, when given, selects that stored template.
//  2. Otherwise the lead's AI-personalized email is used when present.
//  3. Otherwise the default template for the "Lead Created" trigger.
//
// When a recipient address and an SMTP sender are both available the draft
// is delivered and Sent is true; otherwise the draft is returned unsent.
func (s *OutreachService) Draft(ctx context.Context, tenantID, leadID, templateID, to string) (*OutreachDraft, error) {
	lead, err := repo.GetLead(ctx, s.DB, leadID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}

	settings, err := repo.GetSettings(ctx, s.DB, tenantID)
	if err != nil {
		return nil, err
	}

	agentName := "Sales Team"
	if p, err := repo.GetProfile(ctx, s.DB, tenantID); err == nil && p.Name != "" {
		agentName = p.Name
	}

	draft := &OutreachDraft{Subject: fmt.Sprintf("Regarding your property inquiry, %s", lead.Name)}

	switch {
	case templateID != "":
		tmpl := findTemplate(settings.Templates, templateID)
		if tmpl == nil {
			return nil, ErrTemplateNotFound
		}
		draft.TemplateID = tmpl.ID
		draft.Body = renderTemplateBody(tmpl.Content, lead, agentName)
	case lead.Analysis != nil && lead.Analysis.PersonalizedEmail != "":
		draft.Body = lead.Analysis.PersonalizedEmail
	default:
		tmpl := defaultForTrigger(settings.Templates, "Lead Created")
		if tmpl == nil {
			return nil, ErrNoDraft
		}
		draft.TemplateID = tmpl.ID
		draft.Body = renderTemplateBody(tmpl.Content, lead, agentName)
	}

	if sig := strings.TrimSpace(settings.EmailSignature); sig != "" && !strings.Contains(draft.Body, sig) {
		draft.Body = draft.Body + "\n\n" + sig
	}

	if s.Sender != nil && to != "" {
		if err := s.Sender.Send(to, draft.Subject, draft.Body); err != nil {
			return draft, fmt.Errorf("deliver outreach: %w", err)
		}
		draft.Sent = true
	}
	return draft, nil
}

// renderTemplateBody fills the standard outreach placeholders from the lead.
func renderTemplateBody(content string, lead *domain.Lead, agentName string) string {
	return utils.RenderTemplate(content, map[string]string{
		"name":       lead.Name,
		"source":     lead.Source,
		"value":      utils.FormatPKR(lead.Value),
		"agent_name": agentName,
	})
}

func findTemplate(ts domain.TemplateList, id string) *domain.EmailTemplate {
	for i := range ts {
		if ts[i].ID == id {
			return &ts[i]
		}
	}
	return nil
}

func defaultForTrigger(ts domain.TemplateList, trigger string) *domain.EmailTemplate {
	for i := range ts {
		if ts[i].Trigger == trigger && ts[i].IsDefault {
			return &ts[i]
		}
	}
	return nil
}
