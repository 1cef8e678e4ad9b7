// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// AutomationRule model. Rules are descriptive records: they are stored,
// listed, and deleted, never executed.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// UpsertAutomation replaces the rule with the same ID when it exists and
// inserts otherwise. CreatedAt is preserved on replace so list order is
// stable.
func UpsertAutomation(ctx context.Context, db *gorm.DB, r *domain.AutomationRule) (*domain.AutomationRule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var existing domain.AutomationRule
	err := db.WithContext(ctx).Where("id = ?", r.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		return r, db.WithContext(ctx).Create(r).Error
	case err != nil:
		return nil, err
	}

	r.CreatedAt = existing.CreatedAt
	err = db.WithContext(ctx).Model(&domain.AutomationRule{}).
		Where("id = ?", r.ID).
		Select("*").Omit("created_at", "deleted_at").
		Updates(r).Error
	return r, err
}

// ListAutomations returns all rules for tenantID in insertion order;
// an empty slice when there are none.
func ListAutomations(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.AutomationRule, error) {
	var out []domain.AutomationRule
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// DeleteAutomation removes the rule with the given id. Unknown ids are a
// no-op, mirroring the store's remove contract.
func DeleteAutomation(ctx context.Context, db *gorm.DB, id, tenantID string) error {
	return db.WithContext(ctx).Unscoped().
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&domain.AutomationRule{}).Error
}
