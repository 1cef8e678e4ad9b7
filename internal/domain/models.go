// Package domain defines the persistence models for leads, messages,
// automation rules, tenant settings, and user profiles. These types are
// mapped with GORM and form the core data layer of the CRM application.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Lead acquisition sources.
const (
	SourceWhatsApp = "WHATSAPP"
	SourceFacebook = "FACEBOOK"
	SourceWalkIn   = "WALK_IN"
	SourceWebsite  = "WEBSITE"
)

// Pipeline stages a lead moves through.
const (
	StageNew       = "NEW"
	StageContacted = "CONTACTED"
	StageProposal  = "PROPOSAL"
	StageWon       = "WON"
	StageLost      = "LOST"
)

// Message direction and channel values.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"

	ChannelWhatsApp = "WHATSAPP"
	ChannelSMS      = "SMS"
)

// Sentiment values produced by the AI advisory client.
const (
	SentimentPositive = "POSITIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentNegative = "NEGATIVE"
)

// ValidSource reports whether s is a known acquisition source.
func ValidSource(s string) bool {
	switch s {
	case SourceWhatsApp, SourceFacebook, SourceWalkIn, SourceWebsite:
		return true
	}
	return false
}

// ValidStage reports whether s is a known pipeline stage.
func ValidStage(s string) bool {
	switch s {
	case StageNew, StageContacted, StageProposal, StageWon, StageLost:
		return true
	}
	return false
}

// AiAnalysis is the structured advisory payload attached to a lead after a
// scoring or conversation-analysis call. It is embedded in the Lead row as a
// serialized JSON column, never persisted on its own.
//
// Score and the lead's AIScore column are kept in sync by the service layer
// whenever an analysis is written back.
type AiAnalysis struct {
	Score              int      `json:"score"`
	Sentiment          string   `json:"sentiment"`
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"key_points"`
	NextAction         string   `json:"next_action"`
	ClosingProbability *int     `json:"closing_probability,omitempty"`
	PersonalizedEmail  string   `json:"personalized_email,omitempty"`
}

// Value implements driver.Valuer so GORM can store the analysis as JSON text.
func (a AiAnalysis) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	return string(b), err
}

// Scan implements sql.Scanner for reading the JSON column back.
func (a *AiAnalysis) Scan(src any) error {
	return scanJSON(src, a)
}

// Lead represents a prospective customer tracked through the sales pipeline.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TenantID: logical owner organization; carried on every record but not
//     enforced as an isolation boundary.
//   - Name / Phone: contact details as captured (phone stays a free string,
//     e.g. "0300-1234567").
//   - Source: acquisition channel (WHATSAPP, FACEBOOK, WALK_IN, WEBSITE).
//   - Value: estimated deal value in whole PKR.
//   - Stage: pipeline position (NEW, CONTACTED, PROPOSAL, WON, LOST).
//   - AIScore: optional 0-100 conversion score; mirrors Analysis.Score.
//   - Analysis: optional embedded AI advisory payload (JSON column).
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Lead struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string         `json:"tenant_id"  gorm:"type:varchar(64);not null;index:idx_tenant_leads"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	Phone     string         `json:"phone"      gorm:"type:varchar(32);not null"`
	Source    string         `json:"source"     gorm:"type:varchar(16);not null;check:source IN ('WHATSAPP','FACEBOOK','WALK_IN','WEBSITE')"`
	Value     int64          `json:"value"      gorm:"not null;default:0"`
	Stage     string         `json:"stage"      gorm:"type:varchar(16);not null;default:'NEW';check:stage IN ('NEW','CONTACTED','PROPOSAL','WON','LOST')"`
	AIScore   *int           `json:"ai_score,omitempty"`
	Analysis  *AiAnalysis    `json:"ai_analysis,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Lead.
func (Lead) TableName() string { return "leads" }

// Message represents a single inbound or outbound utterance exchanged with a
// lead over WhatsApp or SMS. Messages are append-only: there is no edit or
// delete operation except the cascade that removes them with their lead.
type Message struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	LeadID    string         `json:"lead_id"   gorm:"type:char(36);not null;index:idx_lead_msgs,priority:1"`
	TenantID  string         `json:"tenant_id" gorm:"type:varchar(64);not null"`
	Content   string         `json:"content"   gorm:"type:text;not null"`
	Direction string         `json:"direction" gorm:"type:varchar(16);not null;check:direction IN ('INBOUND','OUTBOUND')"`
	Channel   string         `json:"channel"   gorm:"type:varchar(16);not null;check:channel IN ('WHATSAPP','SMS')"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_lead_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`

	// Lead is the owning record. Messages are cascade-deleted if their
	// lead is removed.
	Lead Lead `json:"-" gorm:"foreignKey:LeadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// AutomationRule is a descriptive record of a tenant automation ("when X,
// do Y"). Rules are stored and listed only; nothing in this codebase
// evaluates or fires them.
type AutomationRule struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID  string         `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	Name      string         `json:"name"      gorm:"type:varchar(255);not null"`
	Trigger   string         `json:"trigger"   gorm:"type:varchar(255);not null"`
	Action    string         `json:"action"    gorm:"type:varchar(255);not null"`
	IsActive  bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for AutomationRule.
func (AutomationRule) TableName() string { return "automation_rules" }

// Integration providers.
const (
	ProviderWhatsApp   = "WHATSAPP"
	ProviderZenSend    = "ZENSEND"
	ProviderSMSCountry = "SMSCOUNTRY"

	IntegrationConnected    = "CONNECTED"
	IntegrationDisconnected = "DISCONNECTED"
)

// Integration describes a messaging provider connection for a tenant.
type Integration struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Status   string `json:"status"`
}

// IntegrationList is a JSON-serialized slice column.
type IntegrationList []Integration

// Value implements driver.Valuer.
func (l IntegrationList) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements sql.Scanner.
func (l *IntegrationList) Scan(src any) error { return scanJSON(src, l) }

// EmailTemplate is a reusable outreach template with {{variable}}
// placeholders. At most one template should be the default for a given
// trigger; SettingsService enforces this when a default is set.
type EmailTemplate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Trigger   string `json:"trigger"`
	IsDefault bool   `json:"is_default"`
}

// TemplateList is a JSON-serialized slice column.
type TemplateList []EmailTemplate

// Value implements driver.Valuer.
func (l TemplateList) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements sql.Scanner.
func (l *TemplateList) Scan(src any) error { return scanJSON(src, l) }

// TenantSettings holds per-tenant branding, localization, and outreach
// configuration. Exactly one row per tenant id; reads merge stored data with
// seed defaults for fields added after the row was first persisted.
type TenantSettings struct {
	TenantID         string          `json:"tenant_id"       gorm:"type:varchar(64);primaryKey"`
	BrandColor       string          `json:"brand_color"     gorm:"type:varchar(16);not null"`
	Currency         string          `json:"currency"        gorm:"type:varchar(8);not null"`
	Timezone         string          `json:"timezone"        gorm:"type:varchar(64);not null"`
	EmailSignature   string          `json:"email_signature" gorm:"type:text"`
	AIPrivacyEnabled bool            `json:"is_ai_privacy_enabled" gorm:"not null;default:false"`
	Integrations     IntegrationList `json:"integrations"    gorm:"type:text"`
	Templates        TemplateList    `json:"templates"       gorm:"type:text"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName returns the database table name for TenantSettings.
func (TenantSettings) TableName() string { return "tenant_settings" }

// User roles.
const (
	RoleAdmin  = "ADMIN"
	RoleAgent  = "AGENT"
	RoleViewer = "VIEWER"
)

// UserProfile is the session-scoped operator profile. The application is
// single-tenant-styled: there is one active profile, not a user directory.
type UserProfile struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	TenantID     string    `json:"tenant_id"     gorm:"type:varchar(64);not null;index"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	Email        string    `json:"email"         gorm:"type:varchar(255);not null"`
	BusinessName string    `json:"business_name" gorm:"type:varchar(255)"`
	Role         string    `json:"role"          gorm:"type:varchar(16);not null;default:'AGENT';check:role IN ('ADMIN','AGENT','VIEWER')"`
	AvatarColor  string    `json:"avatar_color"  gorm:"type:varchar(16)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// scanJSON decodes a TEXT/BLOB column into dst, treating NULL and empty
// values as a no-op so optional columns stay nil/zero.
func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported JSON column type")
	}
}
