// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Messages are append-only; the only removal path is the cascade that
// runs when their lead is deleted.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// AppendMessage inserts a new message row for a lead.
func AppendMessage(ctx context.Context, db *gorm.DB, leadID, tenantID, content, direction, channel string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		TenantID:  tenantID,
		Content:   content,
		Direction: direction,
		Channel:   channel,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// ListMessages returns a lead's messages ordered deterministically
// (CreatedAt ASC, ID ASC). A positive limit returns the most recent limit
// messages, still in chronological order.
func ListMessages(ctx context.Context, db *gorm.DB, leadID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("lead_id = ?", leadID)
	if limit > 0 {
		// Latest N, fetched newest-first then reversed to chronological.
		if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
			return nil, err
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out, nil
	}
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, leadID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE lead_id = ? AND deleted_at IS NULL", leadID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, leadID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
