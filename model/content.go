package model

import "time"

// ContentSource is a unit of site content the assistant may draw on:
// a project entry, about/profile section or resume document. Document-backed
// sources keep their body in object storage and reference it by key.
type ContentSource struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text;not null"`
	Type        string    `json:"type" gorm:"not null;index;size:20"`
	Title       string    `json:"title" gorm:"not null;size:255"`
	Summary     string    `json:"summary" gorm:"type:text"`
	Content     string    `json:"content" gorm:"type:text"`
	DocumentKey string    `json:"document_key,omitempty" gorm:"size:255"`
	Keywords    string    `json:"keywords" gorm:"type:text"` // comma separated
	Priority    int       `json:"priority" gorm:"default:0;not null"`
	IsActive    bool      `json:"is_active" gorm:"default:true;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}
