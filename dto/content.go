package dto

import "time"

// DocumentInfo describes one stored document object.
type DocumentInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

type CreateContentSourceRequest struct {
	Type        string `json:"type" validate:"required,oneof=project about profile resume"`
	Title       string `json:"title" validate:"required,max=255"`
	Summary     string `json:"summary"`
	Content     string `json:"content"`
	DocumentKey string `json:"document_key" validate:"omitempty,max=255"`
	Keywords    string `json:"keywords"`
	Priority    int    `json:"priority" validate:"gte=0"`
}

func (r CreateContentSourceRequest) Validate() error {
	return GetValidator().Struct(r)
}

type UpdateContentSourceRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Summary     *string `json:"summary"`
	Content     *string `json:"content"`
	DocumentKey *string `json:"document_key" validate:"omitempty,max=255"`
	Keywords    *string `json:"keywords"`
	Priority    *int    `json:"priority" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
}

func (r UpdateContentSourceRequest) Validate() error {
	return GetValidator().Struct(r)
}
