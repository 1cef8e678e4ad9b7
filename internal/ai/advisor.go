// Advisor: the request/parse/fallback triple for each advisory operation.
//
// Contract ("always returns a usable value"): no operation ever surfaces a
// remote failure to the caller. Instead the Result carries an explicit
// Fallback flag and the failure reason, so callers and tests can tell a
// genuine analysis from the deterministic fallback without comparing magic
// constants.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// Fallback payload constants. These are the exact values returned whenever
// the remote call fails, the reply is empty, the JSON does not parse, or a
// required field is missing.
const (
	FallbackScore              = 45
	FallbackClosingProbability = 30
	FallbackSummary            = "Standard lead analysis applied."
	FallbackKeyPoint           = "Review contact details"
	FallbackNextAction         = "Send introductory message"
)

// Result is an advisory outcome. Fallback is false when Analysis came from
// the remote model, true when the deterministic fallback was substituted;
// Reason then records why (never shown to end users, useful in logs/tests).
type Result struct {
	Analysis domain.AiAnalysis
	Fallback bool
	Reason   string
}

// ProfileInput is the subset of a lead the profile scorer embeds in its
// prompt. All fields are optional; the degraded-input chain from
// AnalyzeConversation supplies only the name.
type ProfileInput struct {
	Name   string
	Source string
	Value  int64
	Stage  string
}

// LeadDraft is the partial lead extracted from pasted free text. Every field
// is optional: on extraction failure the draft is empty and the caller must
// treat all fields as absent.
type LeadDraft struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Value   int64  `json:"value,omitempty"`
	Source  string `json:"source,omitempty"`
	AIScore *int   `json:"ai_score,omitempty"`
}

// ParseResult wraps a LeadDraft with the same Ok/Fallback distinction as
// Result; the fallback draft is empty.
type ParseResult struct {
	Draft    LeadDraft
	Fallback bool
	Reason   string
}

// Advisor issues advisory prompts through a ChatCompleter and converts the
// replies (or failures) into Results. It is stateless and safe for
// concurrent use.
type Advisor struct {
	Completer ChatCompleter
}

// NewAdvisor constructs an Advisor over the given completer.
func NewAdvisor(c ChatCompleter) *Advisor {
	return &Advisor{Completer: c}
}

/// ScoreProfile evaluates a lead profile: conversion score, sentiment,
// summary, key points, next action, closing probability, and a drafted
// outreach email. On any failure it returns the documented fallback with
// the email template interpolating the lead's name and source.
func (a *Advisor) ScoreProfile(ctx context.Context, in ProfileInput) Result {
	raw, err := a.Completer.Complete(ctx, advisorSystemPrompt, scoreProfilePrompt(in))
	if err != nil {
		return fallbackResult(in, fmt.Sprintf("completion failed: %v", err))
	}
	analysis, err := parseAnalysis(raw)
	if err != nil {
		return fallbackResult(in, err.Error())
	}
	return Result{Analysis: analysis}
}

// AnalyzeConversation evaluates a message transcript for the named lead.
// On any failure it degrades to ScoreProfile with only the lead name, so a
// forced failure yields exactly the profile-scoring fallback.
func (a *Advisor) AnalyzeConversation(ctx context.Context, messages []domain.Message, leadName string) Result {
	raw, err := a.Completer.Complete(ctx, advisorSystemPrompt, analyzeConversationPrompt(messages, leadName))
	if err != nil {
		return a.ScoreProfile(ctx, ProfileInput{Name: leadName})
	}
	analysis, err := parseAnalysis(raw)
	if err != nil {
		return a.ScoreProfile(ctx, ProfileInput{Name: leadName})
	}
	return Result{Analysis: analysis}
}

// ParseLeadFromText extracts a draft lead from pasted free text. On failure
// the draft is empty; the caller must treat every field as optional.
func (a *Advisor) ParseLeadFromText(ctx context.Context, raw string) ParseResult {
	reply, err := a.Completer.Complete(ctx, advisorSystemPrompt, parseLeadPrompt(raw))
	if err != nil {
		return ParseResult{Fallback: true, Reason: fmt.Sprintf("completion failed: %v", err)}
	}

	var draft LeadDraft
	if err := json.Unmarshal([]byte(stripFences(reply)), &draft); err != nil {
		return ParseResult{Fallback: true, Reason: fmt.Sprintf("parse failed: %v", err)}
	}
	if !domain.ValidSource(draft.Source) {
		draft.Source = ""
	}
	if draft.AIScore != nil {
		clamped := clampScore(*draft.AIScore)
		draft.AIScore = &clamped
	}
	return ParseResult{Draft: draft}
}

// rawAnalysis mirrors the requested schema with pointer fields so missing
// required properties are detectable after unmarshalling.
type rawAnalysis struct {
	Score              *float64 `json:"score"`
	Sentiment          *string  `json:"sentiment"`
	Summary            *string  `json:"summary"`
	KeyPoints          []string `json:"key_points"`
	NextAction         *string  `json:"next_action"`
	ClosingProbability *float64 `json:"closing_probability"`
	PersonalizedEmail  string   `json:"personalized_email"`
}

// parseAnalysis strictly decodes a model reply: the text must be JSON and
// every required schema field must be present.
func parseAnalysis(reply string) (domain.AiAnalysis, error) {
	reply = stripFences(reply)
	if strings.TrimSpace(reply) == "" {
		return domain.AiAnalysis{}, fmt.Errorf("empty reply")
	}

	var r rawAnalysis
	if err := json.Unmarshal([]byte(reply), &r); err != nil {
		return domain.AiAnalysis{}, fmt.Errorf("parse failed: %v", err)
	}
	if r.Score == nil || r.Sentiment == nil || r.Summary == nil || r.KeyPoints == nil || r.NextAction == nil {
		return domain.AiAnalysis{}, fmt.Errorf("reply missing required fields")
	}

	out := domain.AiAnalysis{
		Score:             clampScore(int(*r.Score)),
		Sentiment:         normalizeSentiment(*r.Sentiment),
		Summary:           *r.Summary,
		KeyPoints:         r.KeyPoints,
		NextAction:        *r.NextAction,
		PersonalizedEmail: r.PersonalizedEmail,
	}
	if r.ClosingProbability != nil {
		cp := clampScore(int(*r.ClosingProbability))
		out.ClosingProbability = &cp
	}
	return out, nil
}

// fallbackResult builds the deterministic advisory payload, interpolating
// the lead's name and source into the template email.
func fallbackResult(in ProfileInput, reason string) Result {
	cp := FallbackClosingProbability
	return Result{
		Analysis: domain.AiAnalysis{
			Score:              FallbackScore,
			Sentiment:          domain.SentimentNeutral,
			Summary:            FallbackSummary,
			KeyPoints:          []string{FallbackKeyPoint},
			NextAction:         FallbackNextAction,
			ClosingProbability: &cp,
			PersonalizedEmail:  FallbackEmail(in.Name, in.Source),
		},
		Fallback: true,
		Reason:   reason,
	}
}

// FallbackEmail renders the template outreach email used when no drafted
// email is available from the model.
func FallbackEmail(name, source string) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	if strings.TrimSpace(source) == "" {
		source = "one of our channels"
	}
	return fmt.Sprintf(
		"Dear %s,\n\nThank you for reaching out via %s. We have several properties matching "+
			"your interest. Looking forward to discussing this further.\n\nBest regards,\nThe Sales Team",
		name, source,
	)
}

// stripFences removes a surrounding markdown code fence, which some models
// emit despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func normalizeSentiment(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case domain.SentimentPositive:
		return domain.SentimentPositive
	case domain.SentimentNegative:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
