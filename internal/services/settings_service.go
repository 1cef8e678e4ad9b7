// Package services – SettingsService
//
// Tenant settings and operator profile management. Settings reads always
// succeed (seed defaults fill in for missing rows); template defaults are
// kept unique per trigger when one is promoted.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// SettingsService manages per-tenant settings and the operator profile.
type SettingsService struct {
	DB *gorm.DB
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// Get loads the tenant's settings, seeded with defaults when absent.
func (s *SettingsService) Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	return repo.GetSettings(ctx, s.DB, tenantID)
}

// Save persists a full settings object for the tenant. The incoming tenant
// id field is overwritten with the authoritative one.
func (s *SettingsService) Save(ctx context.Context, tenantID string, in *domain.TenantSettings) (*domain.TenantSettings, error) {
	in.TenantID = tenantID
	if err := repo.SaveSettings(ctx, s.DB, in); err != nil {
		return nil, err
	}
	return in, nil
}

// SetDefaultTemplate promotes one template to be the default for its
// trigger, demoting every other template that shares the trigger. Unknown
// template ids map to ErrTemplateNotFound.
func (s *SettingsService) SetDefaultTemplate(ctx context.Context, tenantID, templateID string) (*domain.TenantSettings, error) {
	settings, err := repo.GetSettings(ctx, s.DB, tenantID)
	if err != nil {
		return nil, err
	}

	var target *domain.EmailTemplate
	for i := range settings.Templates {
		if settings.Templates[i].ID == templateID {
			target = &settings.Templates[i]
			break
		}
	}
	if target == nil {
		return nil, ErrTemplateNotFound
	}

	for i := range settings.Templates {
		if settings.Templates[i].Trigger == target.Trigger {
			settings.Templates[i].IsDefault = settings.Templates[i].ID == templateID
		}
	}

	if err := repo.SaveSettings(ctx, s.DB, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// GetProfile returns the active operator profile, mapping a missing row to
// ErrProfileNotFound.
func (s *SettingsService) GetProfile(ctx context.Context, tenantID string) (*domain.UserProfile, error) {
	p, err := repo.GetProfile(ctx, s.DB, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// SaveProfile validates and persists the operator profile.
func (s *SettingsService) SaveProfile(ctx context.Context, tenantID string, p *domain.UserProfile) (*domain.UserProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, ErrEmptyName
	}
	if p.Role == "" {
		p.Role = domain.RoleAgent
	}
	if p.Role != domain.RoleAdmin && p.Role != domain.RoleAgent && p.Role != domain.RoleViewer {
		return nil, ErrInvalidRole
	}
	p.TenantID = tenantID

	// A tenant keeps a single active profile row.
	if existing, err := repo.GetProfile(ctx, s.DB, tenantID); err == nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := repo.SaveProfile(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}
