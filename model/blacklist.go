package model

import "time"

// IPBlacklistEntry tracks abuse violations per IP. Entries are created on
// the first violation and transition to blocked once the violation count
// crosses the configured threshold; they are reinstated, never deleted.
type IPBlacklistEntry struct {
	ID               string     `json:"id" gorm:"primaryKey;type:text;not null"`
	IPAddress        string     `json:"ip_address" gorm:"uniqueIndex;not null;size:45"`
	Reason           string     `json:"reason" gorm:"not null;size:50"`
	ViolationCount   int        `json:"violation_count" gorm:"default:0;not null"`
	FirstViolationAt time.Time  `json:"first_violation_at" gorm:"not null"`
	LastViolationAt  time.Time  `json:"last_violation_at" gorm:"not null"`
	BlockedAt        *time.Time `json:"blocked_at,omitempty" gorm:"index"`
	CanReinstate     bool       `json:"can_reinstate" gorm:"default:true;not null"`
	ReinstatedAt     *time.Time `json:"reinstated_at,omitempty"`
	ReinstatedBy     string     `json:"reinstated_by,omitempty" gorm:"size:100"`
	Metadata         string     `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt        time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"not null"`
}

// Blocked reports whether the entry is currently in the blocked state.
func (e *IPBlacklistEntry) Blocked() bool {
	return e.BlockedAt != nil && e.ReinstatedAt == nil
}
