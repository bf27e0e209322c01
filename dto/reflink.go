package dto

import (
	"time"

	"github.com/folio-gate/gate_api/model"
)

// BudgetStatus summarizes a reflink ledger at validation time.
type BudgetStatus struct {
	TokensUsed                 int64    `json:"tokens_used"`
	TokenLimit                 *int64   `json:"token_limit,omitempty"`
	TokensRemaining            *int64   `json:"tokens_remaining,omitempty"`
	SpendUsed                  float64  `json:"spend_used"`
	SpendLimit                 *float64 `json:"spend_limit,omitempty"`
	SpendRemaining             *float64 `json:"spend_remaining,omitempty"`
	IsExhausted                bool     `json:"is_exhausted"`
	EstimatedRequestsRemaining *int     `json:"estimated_requests_remaining,omitempty"`
}

// ReflinkValidation is the outcome of validating an access code. Reason is
// set when Valid is false: not_found, expired, inactive, budget_exhausted.
type ReflinkValidation struct {
	Valid        bool           `json:"valid"`
	Reason       string         `json:"reason,omitempty"`
	Reflink      *model.Reflink `json:"reflink,omitempty"`
	BudgetStatus *BudgetStatus  `json:"budget_status,omitempty"`
}

type CreateReflinkRequest struct {
	Code               string     `json:"code" validate:"omitempty,reflink_code"`
	Tier               string     `json:"tier" validate:"required,oneof=BASIC STANDARD PREMIUM UNLIMITED"`
	ExpiresAt          *time.Time `json:"expires_at"`
	TokenLimit         *int64     `json:"token_limit" validate:"omitempty,gte=1"`
	SpendLimit         *float64   `json:"spend_limit" validate:"omitempty,gt=0"`
	VoiceAI            bool       `json:"voice_ai"`
	JobAnalysis        bool       `json:"job_analysis"`
	AdvancedNavigation bool       `json:"advanced_navigation"`
	RecipientName      string     `json:"recipient_name" validate:"omitempty,max=100"`
	RecipientEmail     string     `json:"recipient_email" validate:"omitempty,email"`
	WelcomeMessage     string     `json:"welcome_message"`
	SendEmail          bool       `json:"send_email"`
}

func (r CreateReflinkRequest) Validate() error {
	return GetValidator().Struct(r)
}

type UpdateReflinkRequest struct {
	Tier               string     `json:"tier" validate:"omitempty,oneof=BASIC STANDARD PREMIUM UNLIMITED"`
	ExpiresAt          *time.Time `json:"expires_at"`
	IsActive           *bool      `json:"is_active"`
	TokenLimit         *int64     `json:"token_limit" validate:"omitempty,gte=1"`
	SpendLimit         *float64   `json:"spend_limit" validate:"omitempty,gt=0"`
	VoiceAI            *bool      `json:"voice_ai"`
	JobAnalysis        *bool      `json:"job_analysis"`
	AdvancedNavigation *bool      `json:"advanced_navigation"`
	WelcomeMessage     *string    `json:"welcome_message"`
}

func (r UpdateReflinkRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ReflinkUsageSummary struct {
	ReflinkID    string        `json:"reflink_id"`
	Code         string        `json:"code"`
	EventCount   int64         `json:"event_count"`
	BudgetStatus *BudgetStatus `json:"budget_status"`
	LastUsedAt   *time.Time    `json:"last_used_at,omitempty"`
}
