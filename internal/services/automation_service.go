package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// AutomationService manages per-tenant automation rule definitions. Rules
// are descriptive records: enabled flags and trigger/action text pairs the
// dashboard renders, not an execution engine.
type AutomationService struct {
	DB *gorm.DB
}

// NewAutomationService constructs an AutomationService.
func NewAutomationService(db *gorm.DB) *AutomationService {
	return &AutomationService{DB: db}
}

// List returns all automation rules for a tenant in insertion order.
func (s *AutomationService) List(ctx context.Context, tenantID string) ([]domain.AutomationRule, error) {
	return repo.ListAutomations(ctx, s.DB, tenantID)
}

// Save replaces a rule with the same id in place or appends it. Names must
// be non-empty.
func (s *AutomationService) Save(ctx context.Context, tenantID string, r *domain.AutomationRule) (*domain.AutomationRule, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return nil, ErrRuleName
	}
	r.TenantID = tenantID
	return repo.UpsertAutomation(ctx, s.DB, r)
}

// Delete removes a rule by id. Deleting an unknown id is a no-op.
func (s *AutomationService) Delete(ctx context.Context, tenantID, id string) error {
	return repo.DeleteAutomation(ctx, s.DB, id, tenantID)
}
