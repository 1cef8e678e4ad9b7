// Package services – LeadService
//
// This file implements the LeadService, which manages the lifecycle of leads:
// validation and normalization on create/upsert, pipeline stage transitions,
// cascade deletion, AI profile scoring with write-back, and AI-assisted
// extraction of draft leads from pasted text.
//
// Service-level errors (e.g., ErrLeadNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
//
// Observability: the scoring paths are OpenTelemetry-instrumented; spans
// record the lead/tenant identifiers and whether the advisory fallback ran.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-crm-backend/internal/ai"
	"github.com/tbourn/go-crm-backend/internal/domain"
)

// LeadRepo defines the repository contract required by LeadService.
// Implementations are responsible for persistence of lead aggregates.
type LeadRepo interface {
	// CreateLead inserts a new lead row.
	CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, error)

	// UpsertLead replaces an existing lead in place or appends a new one.
	UpsertLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, error)

	// ListLeads returns all leads for the tenant in insertion order.
	ListLeads(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Lead, error)

	// GetLead fetches a lead by ID ensuring it belongs to the tenant.
	GetLead(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Lead, error)

	// UpdateLeadStage moves a lead to a new pipeline stage.
	UpdateLeadStage(ctx context.Context, db *gorm.DB, id, tenantID, stage string) error

	// UpdateLeadAnalysis writes an advisory payload (and synced score) back.
	UpdateLeadAnalysis(ctx context.Context, db *gorm.DB, id, tenantID string, a domain.AiAnalysis) error

	// DeleteLead removes a lead and cascades to its messages.
	DeleteLead(ctx context.Context, db *gorm.DB, id, tenantID string) error

	// CountLeads returns the total number of leads for pagination.
	CountLeads(ctx context.Context, db *gorm.DB, tenantID string) (int64, error)

	// ListLeadsPage returns a page of leads for the tenant.
	ListLeadsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.Lead, error)
}

// LeadService provides lead-level operations: create, upsert, list, stage
// moves, cascade delete, and the AI advisory flows that enrich a lead.
type LeadService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the lead repository used by this service.
	Repo LeadRepo
	// Advisor issues remote scoring calls; nil disables AI flows (scoring
	// then returns the deterministic fallback via a nil-completer advisor).
	Advisor *ai.Advisor

	// NameMaxLen caps stored names by rune length.
	NameMaxLen int
}

// NewLeadService constructs a LeadService with sane defaults.
func NewLeadService(db *gorm.DB, r LeadRepo, advisor *ai.Advisor) *LeadService {
	return &LeadService{
		DB:         db,
		Repo:       r,
		Advisor:    advisor,
		NameMaxLen: 120,
	}
}

// Create inserts a new lead owned by tenantID after validating enums and
// normalizing the name.
func (s *LeadService) Create(ctx context.Context, tenantID string, l *domain.Lead) (*domain.Lead, error) {
	if err := s.validate(l); err != nil {
		return nil, err
	}
	l.TenantID = tenantID
	l.Name = s.clip(normalizeName(l.Name))
	if l.Stage == "" {
		l.Stage = domain.StageNew
	}
	return s.Repo.CreateLead(ctx, s.DB, l)
}

// Upsert replaces the lead with the same id in place (list position
// preserved) or appends it. Upserting an unchanged record leaves the stored
// collection unchanged in content and length.
func (s *LeadService) Upsert(ctx context.Context, tenantID string, l *domain.Lead) (*domain.Lead, error) {
	if err := s.validate(l); err != nil {
		return nil, err
	}
	l.TenantID = tenantID
	l.Name = s.clip(normalizeName(l.Name))
	if l.Stage == "" {
		l.Stage = domain.StageNew
	}
	// Keep the score column mirroring an embedded analysis.
	if l.Analysis != nil {
		score := l.Analysis.Score
		l.AIScore = &score
	}
	return s.Repo.UpsertLead(ctx, s.DB, l)
}

// List returns all leads for a tenant (non-paginated).
// Prefer ListPage for scalability on large datasets.
func (s *LeadService) List(ctx context.Context, tenantID string) ([]domain.Lead, error) {
	return s.Repo.ListLeads(ctx, s.DB, tenantID)
}

// ListPage returns a page of leads for a tenant (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *LeadService) ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Lead, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountLeads(ctx, s.DB, tenantID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Lead{}, 0, nil
	}

	items, err := s.Repo.ListLeadsPage(ctx, s.DB, tenantID, offset, pageSize)
	return items, total, err
}

// Get fetches a single lead, mapping missing rows to ErrLeadNotFound.
func (s *LeadService) Get(ctx context.Context, tenantID, id string) (*domain.Lead, error) {
	l, err := s.Repo.GetLead(ctx, s.DB, id, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return l, nil
}

// UpdateStage moves a lead to the given pipeline stage.
func (s *LeadService) UpdateStage(ctx context.Context, tenantID, id, stage string) error {
	if !domain.ValidStage(stage) {
		return ErrInvalidStage
	}
	if err := s.Repo.UpdateLeadStage(ctx, s.DB, id, tenantID, stage); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLeadNotFound
		}
		return err
	}
	return nil
}

// Delete removes a lead and every message that references it. Unknown ids
// map to ErrLeadNotFound.
func (s *LeadService) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.Repo.DeleteLead(ctx, s.DB, id, tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLeadNotFound
		}
		return err
	}
	return nil
}

// Score runs the AI profile scorer for a lead and writes the resulting
// analysis back (ai_score kept in sync with the embedded score). The
// advisory Result is returned so callers can tell a fallback from a genuine
// analysis.
func (s *LeadService) Score(ctx context.Context, tenantID, id string) (*domain.Lead, ai.Result, error) {
	tr := otel.Tracer("services/LeadService")
	ctx, span := tr.Start(ctx, "Score",
		trace.WithAttributes(
			attribute.String("lead.id", id),
			attribute.String("tenant.id", tenantID),
		),
	)
	defer span.End()

	lead, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, ai.Result{}, err
	}

	res := s.Advisor.ScoreProfile(ctx, ai.ProfileInput{
		Name:   lead.Name,
		Source: lead.Source,
		Value:  lead.Value,
		Stage:  lead.Stage,
	})
	span.SetAttributes(attribute.Bool("ai.fallback", res.Fallback))

	if err := s.Repo.UpdateLeadAnalysis(ctx, s.DB, id, tenantID, res.Analysis); err != nil {
		// The lead may have been deleted while the remote call was in
		// flight; the analysis is still returned so the caller sees what
		// was computed.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, res, ErrLeadNotFound
		}
		return nil, res, err
	}

	score := res.Analysis.Score
	lead.AIScore = &score
	analysis := res.Analysis
	lead.Analysis = &analysis
	return lead, res, nil
}

// ParseFromText extracts a draft lead from pasted free text. The returned
// draft is partial: on extraction failure every field is absent.
func (s *LeadService) ParseFromText(ctx context.Context, raw string) (ai.ParseResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ai.ParseResult{}, ErrEmptyContent
	}
	return s.Advisor.ParseLeadFromText(ctx, raw), nil
}

// validate checks the enum and range constraints shared by Create/Upsert.
func (s *LeadService) validate(l *domain.Lead) error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if !domain.ValidSource(l.Source) {
		return ErrInvalidSource
	}
	if l.Stage != "" && !domain.ValidStage(l.Stage) {
		return ErrInvalidStage
	}
	if l.Value < 0 {
		return ErrNegativeValue
	}
	return nil
}

// clip truncates a lead name to the configured maximum rune length.
func (s *LeadService) clip(name string) string {
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return string([]rune(name)[:s.NameMaxLen])
	}
	return name
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
