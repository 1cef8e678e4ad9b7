// Package services defines the business logic for leads, messages,
// automations, settings, and outreach. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Lead-related errors.
var (
	// ErrLeadNotFound indicates that the requested lead does not exist or is
	// not accessible to the current tenant.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrEmptyName is returned when a lead create/upsert carries no name.
	ErrEmptyName = errors.New("lead name is empty")

	// ErrInvalidSource is returned when the acquisition source is outside
	// the allowed set (WHATSAPP, FACEBOOK, WALK_IN, WEBSITE).
	ErrInvalidSource = errors.New("invalid lead source")

	// ErrInvalidStage is returned when the pipeline stage is outside the
	// allowed set (NEW, CONTACTED, PROPOSAL, WON, LOST).
	ErrInvalidStage = errors.New("invalid pipeline stage")

	// ErrNegativeValue is returned when a lead's estimated deal value is
	// negative.
	ErrNegativeValue = errors.New("lead value must not be negative")
)

// Message-related errors.
var (
	// ErrEmptyContent is returned when a message body is empty after
	// normalization.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrTooLong is returned when a message exceeds the configured maximum
	// length limit.
	ErrTooLong = errors.New("message content too long")

	// ErrInvalidDirection is returned when the message direction is neither
	// INBOUND nor OUTBOUND.
	ErrInvalidDirection = errors.New("invalid message direction")

	// ErrInvalidChannel is returned when the message channel is neither
	// WHATSAPP nor SMS.
	ErrInvalidChannel = errors.New("invalid message channel")
)

// Automation-related errors.
var (
	// ErrRuleName is returned when an automation rule carries no name.
	ErrRuleName = errors.New("automation rule name is empty")
)

// Settings/profile-related errors.
var (
	// ErrTemplateNotFound indicates the referenced email template does not
	// exist in the tenant's settings.
	ErrTemplateNotFound = errors.New("email template not found")

	// ErrInvalidRole is returned when a profile role is outside the allowed
	// set (ADMIN, AGENT, VIEWER).
	ErrInvalidRole = errors.New("invalid profile role")

	// ErrProfileNotFound indicates no operator profile has been saved yet.
	ErrProfileNotFound = errors.New("profile not found")
)

// Outreach-related errors.
var (
	// ErrNoDraft is returned when an outreach send is requested for a lead
	// that has neither an AI-drafted email nor a matching default template.
	ErrNoDraft = errors.New("no outreach draft available")
)
