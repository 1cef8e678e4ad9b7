package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// recordingSender captures deliveries instead of dialing SMTP.
type recordingSender struct {
	to, subject, body string
	err               error
	calls             int
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.calls++
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func newOutreachFixture(t *testing.T, sender *recordingSender) (*OutreachService, *gorm.DB, *domain.Lead) {
	t.Helper()
	db := newSvcDB(t)

	l, err := repo.CreateLead(context.Background(), db, &domain.Lead{
		TenantID: "demo",
		Name:     "Ayesha Khan",
		Phone:    "0300-1234567",
		Source:   domain.SourceWhatsApp,
		Value:    12500000,
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}

	var s *OutreachService
	if sender != nil {
		s = NewOutreachService(db, sender)
	} else {
		s = NewOutreachService(db, nil)
	}
	return s, db, l
}

func TestOutreachService_Draft_UnknownLead(t *testing.T) {
	s, _, _ := newOutreachFixture(t, nil)
	if _, err := s.Draft(context.Background(), "demo", "missing", "", ""); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestOutreachService_Draft_ExplicitTemplateRendersPlaceholders(t *testing.T) {
	s, db, l := newOutreachFixture(t, nil)
	ctx := context.Background()

	if err := repo.SaveProfile(ctx, db, &domain.UserProfile{TenantID: "demo", Name: "Ahmed Raza", Email: "a@x.pk", Role: domain.RoleAgent}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	draft, err := s.Draft(ctx, "demo", l.ID, "t2", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.TemplateID != "t2" || draft.Sent {
		t.Fatalf("unexpected draft meta: %+v", draft)
	}
	if !strings.Contains(draft.Body, "Ayesha Khan") {
		t.Fatalf("{{name}} not rendered: %q", draft.Body)
	}
	if !strings.Contains(draft.Body, "PKR 12,500,000") {
		t.Fatalf("{{value}} not rendered with grouping: %q", draft.Body)
	}
	if !strings.Contains(draft.Body, "Ahmed Raza") {
		t.Fatalf("{{agent_name}} not rendered: %q", draft.Body)
	}
}

func TestOutreachService_Draft_UnknownTemplate(t *testing.T) {
	s, _, l := newOutreachFixture(t, nil)
	if _, err := s.Draft(context.Background(), "demo", l.ID, "nope", ""); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestOutreachService_Draft_PrefersPersonalizedEmail(t *testing.T) {
	s, db, l := newOutreachFixture(t, nil)
	ctx := context.Background()

	if err := repo.UpdateLeadAnalysis(ctx, db, l.ID, "demo", domain.AiAnalysis{
		Score: 80, Sentiment: domain.SentimentPositive,
		Summary: "x", KeyPoints: []string{"y"}, NextAction: "z",
		PersonalizedEmail: "Dear Ayesha, about the Phase 6 plot...",
	}); err != nil {
		t.Fatalf("attach analysis: %v", err)
	}

	draft, err := s.Draft(ctx, "demo", l.ID, "", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.TemplateID != "" || !strings.Contains(draft.Body, "Phase 6 plot") {
		t.Fatalf("AI email not preferred: %+v", draft)
	}
}

func TestOutreachService_Draft_FallsBackToDefaultTemplate(t *testing.T) {
	s, _, l := newOutreachFixture(t, nil)

	draft, err := s.Draft(context.Background(), "demo", l.ID, "", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.TemplateID != "t1" {
		t.Fatalf("expected Lead Created default template, got %+v", draft)
	}
	if !strings.Contains(draft.Body, "WHATSAPP") {
		t.Fatalf("{{source}} not rendered: %q", draft.Body)
	}
}

func TestOutreachService_Draft_NoDraftAvailable(t *testing.T) {
	s, db, l := newOutreachFixture(t, nil)
	ctx := context.Background()

	// Demote every template so nothing matches the fallback trigger.
	settings := repo.DefaultSettings("demo")
	for i := range settings.Templates {
		settings.Templates[i].IsDefault = false
	}
	if err := repo.SaveSettings(ctx, db, settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	if _, err := s.Draft(ctx, "demo", l.ID, "", ""); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
}

func TestOutreachService_Draft_AppendsSignature(t *testing.T) {
	s, db, l := newOutreachFixture(t, nil)
	ctx := context.Background()

	settings := repo.DefaultSettings("demo")
	settings.EmailSignature = "--\nRaza Estates, DHA Lahore"
	if err := repo.SaveSettings(ctx, db, settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	draft, err := s.Draft(ctx, "demo", l.ID, "t1", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if !strings.HasSuffix(draft.Body, "Raza Estates, DHA Lahore") {
		t.Fatalf("signature not appended: %q", draft.Body)
	}
}

func TestOutreachService_Draft_SendsWhenConfigured(t *testing.T) {
	sender := &recordingSender{}
	s, _, l := newOutreachFixture(t, sender)

	draft, err := s.Draft(context.Background(), "demo", l.ID, "t1", "ayesha@buyer.pk")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if !draft.Sent || sender.calls != 1 || sender.to != "ayesha@buyer.pk" {
		t.Fatalf("delivery not recorded: draft=%+v sender=%+v", draft, sender)
	}
	if !strings.Contains(sender.subject, "Ayesha Khan") {
		t.Fatalf("unexpected subject: %q", sender.subject)
	}
}

func TestOutreachService_Draft_NoRecipient_NoSend(t *testing.T) {
	sender := &recordingSender{}
	s, _, l := newOutreachFixture(t, sender)

	draft, err := s.Draft(context.Background(), "demo", l.ID, "t1", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.Sent || sender.calls != 0 {
		t.Fatalf("draft-only mode violated: %+v calls=%d", draft, sender.calls)
	}
}

func TestOutreachService_Draft_DeliveryFailureReturnsDraft(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay refused")}
	s, _, l := newOutreachFixture(t, sender)

	draft, err := s.Draft(context.Background(), "demo", l.ID, "t1", "ayesha@buyer.pk")
	if err == nil || !strings.Contains(err.Error(), "deliver outreach") {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if draft == nil || draft.Sent {
		t.Fatalf("draft should be returned unsent on delivery failure: %+v", draft)
	}
}
