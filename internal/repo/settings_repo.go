// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for TenantSettings
// and UserProfile, including the seed defaults applied when a tenant has no
// stored settings yet and the forward-compatibility patch for settings rows
// persisted before the templates field existed.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// DefaultTemplates returns the two seed outreach templates. Callers get a
// fresh copy: the seeds are also used to patch older settings rows and must
// not be mutated in place.
func DefaultTemplates() domain.TemplateList {
	return domain.TemplateList{
		{
			ID:        "t1",
			Name:      "Initial Welcome Outreach",
			Trigger:   "Lead Created",
			IsDefault: true,
			Content: "Hi {{name}},\n\nThank you for reaching out via {{source}}. " +
				"I noticed your interest in our property listings. I'd love to discuss " +
				"how we can help you find the perfect match.\n\nBest regards,\n{{agent_name}}",
		},
		{
			ID:        "t2",
			Name:      "Deal Won Congratulation",
			Trigger:   "Stage Changed to WON",
			IsDefault: true,
			Content: "Hi {{name}},\n\nCongratulations! We've successfully closed the deal " +
				"for the {{value}} property. It's been a pleasure working with you.\n\n" +
				"Warm regards,\n{{agent_name}}",
		},
	}
}

// DefaultSettings returns the seed settings for a tenant that has never
// saved any.
func DefaultSettings(tenantID string) *domain.TenantSettings {
	return &domain.TenantSettings{
		TenantID:         tenantID,
		BrandColor:       "#4f46e5",
		Currency:         "PKR",
		Timezone:         "UTC+5 (Karachi)",
		EmailSignature:   "--\nBest Regards,\nSales Team",
		AIPrivacyEnabled: false,
		Integrations: domain.IntegrationList{
			{ID: "1", Provider: domain.ProviderWhatsApp, APIKey: "", Status: domain.IntegrationDisconnected},
			{ID: "2", Provider: domain.ProviderZenSend, APIKey: "", Status: domain.IntegrationDisconnected},
		},
		Templates: DefaultTemplates(),
	}
}

// GetSettings loads a tenant's settings, falling back to the seed defaults
// when no row exists. Rows persisted before the templates field was added
// are patched with the seed templates on read (schema-evolution default;
// the patch is not written back until the next save).
func GetSettings(ctx context.Context, db *gorm.DB, tenantID string) (*domain.TenantSettings, error) {
	var s domain.TenantSettings
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultSettings(tenantID), nil
	}
	if err != nil {
		return nil, err
	}
	if len(s.Templates) == 0 {
		s.Templates = DefaultTemplates()
	}
	return &s, nil
}

// SaveSettings persists the full settings object for its tenant,
// creating the row if absent.
func SaveSettings(ctx context.Context, db *gorm.DB, s *domain.TenantSettings) error {
	return db.WithContext(ctx).Save(s).Error
}

// GetProfile returns the active operator profile for tenantID, or
// ErrNotFound when none has been saved.
func GetProfile(ctx context.Context, db *gorm.DB, tenantID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile persists the operator profile, generating an ID when absent.
func SaveProfile(ctx context.Context, db *gorm.DB, p *domain.UserProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Save(p).Error
}
