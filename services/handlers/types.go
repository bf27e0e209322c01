package handlers

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/shared"
)

type GateServiceInterface interface {
	ValidateAndFilter(sessionID, reflinkCode, ip string) (*dto.AccessDecision, error)
	LoadFilteredContext(ctx context.Context, req dto.LoadContextRequest, ip string) (*dto.FilteredContext, *dto.AccessDecision, error)
}

type AIStatusServiceInterface interface {
	GetStatus() *dto.AIStatus
	ForceRefresh()
}

type ContextCacheInterface interface {
	CacheStats() shared.CacheStats
	CacheInfo() *dto.ContextCacheInfo
	InvalidateSession(sessionID string) int
	InvalidateAll()
}

type ReflinkServiceInterface interface {
	CreateReflink(req dto.CreateReflinkRequest) (*model.Reflink, error)
	UpdateReflink(id string, req dto.UpdateReflinkRequest) (*model.Reflink, error)
	DeactivateReflink(id string) error
	ListReflinks(activeOnly bool) ([]model.Reflink, error)
	GetUsageSummary(id string) (*dto.ReflinkUsageSummary, error)
}

type BlacklistServiceInterface interface {
	List(blockedOnly bool) ([]model.IPBlacklistEntry, error)
	RecordViolation(ip, reason, metadata string) (*model.IPBlacklistEntry, error)
	Reinstate(ip, by string) (*model.IPBlacklistEntry, error)
}

type RateLimitServiceInterface interface {
	GetStats() (map[string]interface{}, error)
	UpdateTierConfig(tier string, req dto.RateLimitConfigUpdateRequest) (*dto.TierConfigResponse, error)
	ResetRateLimit(identifier, identifierType string) error
}

type ContentServiceInterface interface {
	ListSources() ([]model.ContentSource, error)
	GetSource(id string) (*model.ContentSource, error)
	CreateSource(req dto.CreateContentSourceRequest) (*model.ContentSource, error)
	UpdateSource(id string, req dto.UpdateContentSourceRequest) (*model.ContentSource, error)
	DeleteSource(id string) error

	UploadDocument(key string, reader io.Reader, size int64, contentType string) (*dto.DocumentInfo, error)
	ListDocuments(prefix string) ([]dto.DocumentInfo, error)
	DeleteDocument(key string) error
	DocumentURL(key string) (string, error)
}

type AuthServiceInterface interface {
	AdminLogin(req dto.AdminLoginRequest) (*dto.AdminLoginResponse, error)
}

type GateMiddlewareInterface interface {
	BlacklistCheck() fiber.Handler
	RateLimit(endpoint string) fiber.Handler
}

type AuthMiddlewareInterface interface {
	RequiredAuth() fiber.Handler
}
