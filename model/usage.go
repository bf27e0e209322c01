package model

import "time"

// UsageEvent records one unit of assistant usage against a reflink ledger.
// Events are immutable once written and applied to the ledger exactly once.
type UsageEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text;not null"`
	ReflinkID string    `json:"reflink_id" gorm:"not null;index;size:64"`
	Type      string    `json:"type" gorm:"not null;size:30"`
	Tokens    int64     `json:"tokens" gorm:"default:0;not null"`
	Cost      float64   `json:"cost" gorm:"default:0;not null"`
	ModelUsed string    `json:"model_used,omitempty" gorm:"size:100"`
	Endpoint  string    `json:"endpoint,omitempty" gorm:"size:100"`
	Metadata  string    `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}
