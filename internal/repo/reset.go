// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the full-reset affordance: a destructive
// wipe of every collection a tenant owns.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// ResetTenant irreversibly deletes all leads, messages, automation rules,
// settings, and profiles for tenantID, in one transaction. Idempotency
// records are wiped too so replay markers do not survive a reset.
func ResetTenant(ctx context.Context, db *gorm.DB, tenantID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("tenant_id = ?", tenantID).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("tenant_id = ?", tenantID).Delete(&domain.Lead{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("tenant_id = ?", tenantID).Delete(&domain.AutomationRule{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("tenant_id = ?", tenantID).Delete(&domain.TenantSettings{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("tenant_id = ?", tenantID).Delete(&domain.UserProfile{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&domain.Idempotency{}).Error
	})
}
