package model

import "time"

type RateLimit struct {
	ID             string    `json:"id" gorm:"primaryKey;type:text;not null"`
	Identifier     string    `json:"identifier" gorm:"not null;uniqueIndex:idx_rate_limit_identity,priority:1;size:255"`
	IdentifierType string    `json:"identifier_type" gorm:"not null;uniqueIndex:idx_rate_limit_identity,priority:2;size:20"`
	Endpoint       string    `json:"endpoint" gorm:"size:100"`
	Tier           string    `json:"tier" gorm:"not null;size:20"`
	RequestCount   int       `json:"request_count" gorm:"default:0;not null"`
	WindowStart    time.Time `json:"window_start" gorm:"not null"`
	WindowEnd      time.Time `json:"window_end" gorm:"not null;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

type RateLimitConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text;not null"`
	Tier        string    `json:"tier" gorm:"uniqueIndex;not null;size:20"`
	DailyLimit  int       `json:"daily_limit" gorm:"not null"`
	WindowSize  int       `json:"window_size" gorm:"not null"` // seconds
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"default:true;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}
