// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Lead model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a lead is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Ordering: lists are returned in insertion order (CreatedAt ASC, ID ASC).
// Because CreatedAt never changes on update, an upsert of an existing lead
// keeps its position in the list.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateLead inserts a new Lead row for tenantID. The lead ID is a randomly
// generated UUID unless the caller supplied one, and CreatedAt is set to UTC.
func CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.Stage == "" {
		l.Stage = domain.StageNew
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// UpsertLead replaces the row with the same ID when it exists (CreatedAt is
// preserved, so list position is stable) and inserts otherwise. Calling it
// twice with an unchanged record leaves the stored collection unchanged in
// content and length.
func UpsertLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, error) {
	if l.ID == "" {
		return CreateLead(ctx, db, l)
	}

	var existing domain.Lead
	err := db.WithContext(ctx).Where("id = ?", l.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return CreateLead(ctx, db, l)
	case err != nil:
		return nil, err
	}

	l.CreatedAt = existing.CreatedAt
	// Save with all fields so cleared optionals (e.g. a removed analysis)
	// are written back as NULL rather than skipped.
	if err := db.WithContext(ctx).Model(&domain.Lead{}).
		Where("id = ?", l.ID).
		Select("*").Omit("created_at", "deleted_at").
		Updates(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// ListLeads returns all leads for tenantID in insertion order. It returns an
// empty slice when the tenant has none. On DB error, it returns the error.
func ListLeads(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Lead, error) {
	var out []domain.Lead
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountLeads returns the total number of leads for tenantID.
func CountLeads(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error
	return total, err
}

// ListLeadsPage returns a paginated slice of leads in insertion order.
// Use CountLeads to obtain the total for pagination metadata.
func ListLeadsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.Lead, error) {
	var out []domain.Lead
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetLead fetches a single lead by its ID scoped to tenantID. If the record
// does not exist, it returns ErrNotFound.
func GetLead(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Lead, error) {
	var l domain.Lead
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLeadStage moves a lead to the given pipeline stage. If no rows are
// affected (lead missing or wrong tenant), it returns ErrNotFound.
func UpdateLeadStage(ctx context.Context, db *gorm.DB, id, tenantID, stage string) error {
	res := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("stage", stage)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateLeadAnalysis writes an advisory result back onto the lead, keeping
// the ai_score column in sync with the embedded analysis score.
func UpdateLeadAnalysis(ctx context.Context, db *gorm.DB, id, tenantID string, a domain.AiAnalysis) error {
	score := a.Score
	res := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]any{
			"ai_score": score,
			"analysis": a,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteLead removes a lead and, in the same transaction, every message that
// references it (cascade). Deleting an unknown id returns ErrNotFound.
//
// The delete is a hard delete: the reset/cascade semantics of the store are
// "gone means gone", soft-delete markers are only an audit aid for leads
// removed through other paths.
func DeleteLead(ctx context.Context, db *gorm.DB, id, tenantID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().
			Where("id = ? AND tenant_id = ?", id, tenantID).
			Delete(&domain.Lead{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Unscoped().
			Where("lead_id = ?", id).
			Delete(&domain.Message{}).Error
	})
}
