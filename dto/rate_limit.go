package dto

import "time"

// RateLimitStatus is returned on every check, pass or fail, so callers can
// surface the X-RateLimit-* headers.
type RateLimitStatus struct {
	Allowed           bool       `json:"allowed"`
	Tier              string     `json:"tier"`
	Limit             int        `json:"limit"`
	RequestsRemaining int        `json:"requests_remaining"`
	ResetTime         *time.Time `json:"reset_time,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
}

type RateLimitConfigUpdateRequest struct {
	DailyLimit int    `json:"daily_limit" validate:"omitempty,gte=1"`
	WindowSize string `json:"window_size"` // e.g. "24h", "15m"
	IsActive   *bool  `json:"is_active"`
}

func (r RateLimitConfigUpdateRequest) Validate() error {
	return GetValidator().Struct(r)
}

// TierConfigResponse is the admin view of one tier's quota configuration.
type TierConfigResponse struct {
	Tier        string `json:"tier"`
	DailyLimit  int    `json:"daily_limit"`
	WindowSize  string `json:"window_size"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}
