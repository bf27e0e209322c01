package model

import "time"

// Reflink is a shareable access code granting a bounded, budgeted,
// capability-scoped session with the assistant.
type Reflink struct {
	ID         string     `json:"id" gorm:"primaryKey;type:text;not null"`
	Code       string     `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Tier       string     `json:"tier" gorm:"not null;size:20"`
	DailyLimit int        `json:"daily_limit" gorm:"not null"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"index"`
	IsActive   bool       `json:"is_active" gorm:"default:true;not null"`

	// Budget ledger. Limits are optional; a nil limit means unmetered.
	TokenLimit *int64   `json:"token_limit,omitempty"`
	TokensUsed int64    `json:"tokens_used" gorm:"default:0;not null"`
	SpendLimit *float64 `json:"spend_limit,omitempty"`
	SpendUsed  float64  `json:"spend_used" gorm:"default:0;not null"`

	// Capability flags
	VoiceAI            bool `json:"voice_ai" gorm:"default:false;not null"`
	JobAnalysis        bool `json:"job_analysis" gorm:"default:false;not null"`
	AdvancedNavigation bool `json:"advanced_navigation" gorm:"default:false;not null"`

	RecipientName  string     `json:"recipient_name,omitempty" gorm:"size:100"`
	RecipientEmail string     `json:"recipient_email,omitempty" gorm:"size:255"`
	WelcomeMessage string     `json:"welcome_message,omitempty" gorm:"type:text"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// Expired reports whether the link has passed its expiry, if one is set.
func (r *Reflink) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Exhausted reports whether either ledger has reached its limit. Crossing
// is detected, not prevented: the triggering event is allowed to overshoot.
func (r *Reflink) Exhausted() bool {
	if r.SpendLimit != nil && r.SpendUsed >= *r.SpendLimit {
		return true
	}
	if r.TokenLimit != nil && r.TokensUsed >= *r.TokenLimit {
		return true
	}
	return false
}
