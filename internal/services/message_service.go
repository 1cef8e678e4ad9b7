// Package services – MessageService
//
// Manages conversation threads attached to leads: validated append, ordered
// listing, and the full-transcript AI analysis flow. When a tenant has AI
// privacy enabled the transcript never leaves the server and the analysis
// degrades to profile-only scoring.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-crm-backend/internal/ai"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/repo"
)

// MessageService manages lead conversation threads and transcript analysis.
type MessageService struct {
	DB      *gorm.DB
	Advisor *ai.Advisor

	// MaxMessageLen caps message content by rune length.
	MaxMessageLen int
	// TranscriptLimit caps how many recent messages feed the analysis
	// prompt. Zero means the whole thread.
	TranscriptLimit int
}

// NewMessageService constructs a MessageService with default limits.
func NewMessageService(db *gorm.DB, advisor *ai.Advisor) *MessageService {
	return &MessageService{
		DB:              db,
		Advisor:         advisor,
		MaxMessageLen:   4000,
		TranscriptLimit: 50,
	}
}

// Append adds a message to a lead's thread after validating the lead exists,
// the content is non-empty and within limits, and the direction/channel
// enums are known.
func (s *MessageService) Append(ctx context.Context, tenantID, leadID, content, direction, channel string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxMessageLen > 0 && utf8.RuneCountInString(content) > s.MaxMessageLen {
		return nil, ErrTooLong
	}
	if direction != domain.DirectionInbound && direction != domain.DirectionOutbound {
		return nil, ErrInvalidDirection
	}
	if channel == "" {
		channel = domain.ChannelWhatsApp
	}
	if channel != domain.ChannelWhatsApp && channel != domain.ChannelSMS {
		return nil, ErrInvalidChannel
	}

	if _, err := repo.GetLead(ctx, s.DB, leadID, tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return repo.AppendMessage(ctx, s.DB, leadID, tenantID, content, direction, channel)
}

// List returns a lead's messages in chronological order.
func (s *MessageService) List(ctx context.Context, tenantID, leadID string) ([]domain.Message, error) {
	if _, err := repo.GetLead(ctx, s.DB, leadID, tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return repo.ListMessages(ctx, s.DB, leadID, 0)
}

// ListPage returns one page of a lead's thread plus the total count.
func (s *MessageService) ListPage(ctx context.Context, tenantID, leadID string, page, pageSize int) ([]domain.Message, int64, error) {
	if _, err := repo.GetLead(ctx, s.DB, leadID, tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrLeadNotFound
		}
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	total, err := repo.CountMessages(ctx, s.DB, leadID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, leadID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Analyze runs the conversation-aware advisory for a lead and persists the
// resulting analysis. privacyEnabled suppresses transcript sharing: the
// analysis then falls back to profile-only scoring regardless of thread
// content.
func (s *MessageService) Analyze(ctx context.Context, tenantID, leadID string, privacyEnabled bool) (*domain.Lead, ai.Result, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(
			attribute.String("lead.id", leadID),
			attribute.Bool("ai.privacy", privacyEnabled),
		),
	)
	defer span.End()

	lead, err := repo.GetLead(ctx, s.DB, leadID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ai.Result{}, ErrLeadNotFound
		}
		return nil, ai.Result{}, err
	}

	var res ai.Result
	if privacyEnabled {
		res = s.Advisor.ScoreProfile(ctx, ai.ProfileInput{
			Name:   lead.Name,
			Source: lead.Source,
			Value:  lead.Value,
			Stage:  lead.Stage,
		})
	} else {
		msgs, err := repo.ListMessages(ctx, s.DB, leadID, s.TranscriptLimit)
		if err != nil {
			return nil, ai.Result{}, err
		}
		res = s.Advisor.AnalyzeConversation(ctx, msgs, lead.Name)
	}
	span.SetAttributes(attribute.Bool("ai.fallback", res.Fallback))

	if err := repo.UpdateLeadAnalysis(ctx, s.DB, leadID, tenantID, res.Analysis); err != nil {
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
