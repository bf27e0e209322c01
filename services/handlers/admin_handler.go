package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/shared"
)

type AdminHandler struct {
	authSvc      AuthServiceInterface
	reflinkSvc   ReflinkServiceInterface
	blacklistSvc BlacklistServiceInterface
	rateLimitSvc RateLimitServiceInterface
	contentSvc   ContentServiceInterface
	cacheSvc     ContextCacheInterface
	aiStatusSvc  AIStatusServiceInterface
}

func NewAdminHandler(
	authSvc AuthServiceInterface,
	reflinkSvc ReflinkServiceInterface,
	blacklistSvc BlacklistServiceInterface,
	rateLimitSvc RateLimitServiceInterface,
	contentSvc ContentServiceInterface,
	cacheSvc ContextCacheInterface,
	aiStatusSvc AIStatusServiceInterface,
) *AdminHandler {
	return &AdminHandler{
		authSvc:      authSvc,
		reflinkSvc:   reflinkSvc,
		blacklistSvc: blacklistSvc,
		rateLimitSvc: rateLimitSvc,
		contentSvc:   contentSvc,
		cacheSvc:     cacheSvc,
		aiStatusSvc:  aiStatusSvc,
	}
}

// ==================== AUTH ====================

// @Summary Admin Login
// @Description Exchanges admin credentials for a bearer token.
// @Tags admin
// @Accept  json
// @Produce json
// @Param loginRequest body dto.AdminLoginRequest true "Login request"
// @Success 200 {object} shared.Response{data=dto.AdminLoginResponse}
// @Router /api/v1/admin/login [post]
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.authSvc.AdminLogin(req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", resp)
}

// ==================== REFLINKS ====================

// @Summary List Reflinks
// @Tags admin
// @Produce json
// @Param active query bool false "Only active links"
// @Success 200 {object} shared.Response{data=[]model.Reflink}
// @Security BearerAuth
// @Router /api/v1/admin/reflinks [get]
func (h *AdminHandler) ListReflinks(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)

	reflinks, err := h.reflinkSvc.ListReflinks(activeOnly)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", reflinks)
}

// @Summary Create Reflink
// @Description Creates an access link, generating a code when none is supplied, and optionally emails it to the recipient.
// @Tags admin
// @Accept  json
// @Produce json
// @Param createRequest body dto.CreateReflinkRequest true "Create request"
// @Success 201 {object} shared.Response{data=model.Reflink}
// @Security BearerAuth
// @Router /api/v1/admin/reflinks [post]
func (h *AdminHandler) CreateReflink(c *fiber.Ctx) error {
	var req dto.CreateReflinkRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	reflink, err := h.reflinkSvc.CreateReflink(req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Created", reflink)
}

// @Summary Update Reflink
// @Tags admin
// @Accept  json
// @Produce json
// @Param id path string true "Reflink ID"
// @Param updateRequest body dto.UpdateReflinkRequest true "Update request"
// @Success 200 {object} shared.Response{data=model.Reflink}
// @Security BearerAuth
// @Router /api/v1/admin/reflinks/{id} [put]
func (h *AdminHandler) UpdateReflink(c *fiber.Ctx) error {
	var req dto.UpdateReflinkRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	reflink, err := h.reflinkSvc.UpdateReflink(c.Params("id"), req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", reflink)
}

// @Summary Deactivate Reflink
// @Tags admin
// @Produce json
// @Param id path string true "Reflink ID"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/admin/reflinks/{id} [delete]
func (h *AdminHandler) DeactivateReflink(c *fiber.Ctx) error {
	if err := h.reflinkSvc.DeactivateReflink(c.Params("id")); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
}

// @Summary Reflink Usage
// @Description Returns the usage ledger summary for one access link.
// @Tags admin
// @Produce json
// @Param id path string true "Reflink ID"
// @Success 200 {object} shared.Response{data=dto.ReflinkUsageSummary}
// @Security BearerAuth
// @Router /api/v1/admin/reflinks/{id}/usage [get]
func (h *AdminHandler) ReflinkUsage(c *fiber.Ctx) error {
	summary, err := h.reflinkSvc.GetUsageSummary(c.Params("id"))
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", summary)
}

// ==================== BLACKLIST ====================

// @Summary List Blacklist Entries
// @Tags admin
// @Produce json
// @Param blocked query bool false "Only blocked entries"
// @Success 200 {object} shared.Response{data=[]model.IPBlacklistEntry}
// @Security BearerAuth
// @Router /api/v1/admin/blacklist [get]
func (h *AdminHandler) ListBlacklist(c *fiber.Ctx) error {
	blockedOnly := c.QueryBool("blocked", false)

	entries, err := h.blacklistSvc.List(blockedOnly)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", entries)
}

// @Summary Record Violation
// @Description Records an abuse violation against an IP; crossing the threshold blocks it.
// @Tags admin
// @Accept  json
// @Produce json
// @Param violationRequest body dto.RecordViolationRequest true "Violation request"
// @Success 200 {object} shared.Response{data=model.IPBlacklistEntry}
// @Security BearerAuth
// @Router /api/v1/admin/blacklist/violations [post]
func (h *AdminHandler) RecordViolation(c *fiber.Ctx) error {
	var req dto.RecordViolationRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	entry, err := h.blacklistSvc.RecordViolation(req.IPAddress, req.Reason, req.Metadata)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", entry)
}

// @Summary Reinstate IP
// @Description Lifts a block; the violation history is kept.
// @Tags admin
// @Accept  json
// @Produce json
// @Param reinstateRequest body dto.ReinstateRequest true "Reinstate request"
// @Success 200 {object} shared.Response{data=model.IPBlacklistEntry}
// @Security BearerAuth
// @Router /api/v1/admin/blacklist/reinstate [post]
func (h *AdminHandler) Reinstate(c *fiber.Ctx) error {
	var req dto.ReinstateRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	entry, err := h.blacklistSvc.Reinstate(req.IPAddress, req.ReinstatedBy)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", entry)
}

// ==================== RATE LIMITS ====================

// @Summary Rate Limit Stats
// @Tags admin
// @Produce json
// @Success 200 {object} shared.Response
// @Security BearerAuth
// @Router /api/v1/admin/rate-limits [get]
func (h *AdminHandler) RateLimitStats(c *fiber.Ctx) error {
	stats, err := h.rateLimitSvc.GetStats()
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", stats)
}

// @Summary Update Tier Config
// @Tags admin
// @Accept  json
// @Produce json
// @Param tier path string true "Tier name"
// @Param updateRequest body dto.RateLimitConfigUpdateRequest true "Update request"
// @Success 200 {object} shared.Response{data=dto.TierConfigResponse}
// @Security BearerAuth
// @Router /api/v1/admin/rate-limits/{tier} [put]
func (h *AdminHandler) UpdateTierConfig(c *fiber.Ctx) error {
	var req dto.RateLimitConfigUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	config, err := h.rateLimitSvc.UpdateTierConfig(c.Params("tier"), req)
	if err != nil {
		return shared.NewBadRequestError(err, "Unknown tier")
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", config)
}

// @Summary Reset Rate Limit
// @Description Clears the active window for one identifier.
// @Tags admin
// @Produce json
// @Param identifier path string true "Identifier"
// @Param type query string true "Identifier type (ip|session|reflink)"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/admin/rate-limits/{identifier} [delete]
func (h *AdminHandler) ResetRateLimit(c *fiber.Ctx) error {
	identifierType := c.Query("type")
	if identifierType == "" {
		identifierType = shared.IdentifierIP
	}

	if err := h.rateLimitSvc.ResetRateLimit(c.Params("identifier"), identifierType); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
}

// ==================== CONTENT ====================

// @Summary List Content Sources
// @Tags admin
// @Produce json
// @Success 200 {object} shared.Response{data=[]model.ContentSource}
// @Security BearerAuth
// @Router /api/v1/admin/content [get]
func (h *AdminHandler) ListContent(c *fiber.Ctx) error {
	sources, err := h.contentSvc.ListSources()
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", sources)
}

// @Summary Create Content Source
// @Tags admin
// @Accept  json
// @Produce json
// @Param createRequest body dto.CreateContentSourceRequest true "Create request"
// @Success 201 {object} shared.Response{data=model.ContentSource}
// @Security BearerAuth
// @Router /api/v1/admin/content [post]
func (h *AdminHandler) CreateContent(c *fiber.Ctx) error {
	var req dto.CreateContentSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	source, err := h.contentSvc.CreateSource(req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Created", source)
}

// @Summary Update Content Source
// @Tags admin
// @Accept  json
// @Produce json
// @Param id path string true "Content source ID"
// @Param updateRequest body dto.UpdateContentSourceRequest true "Update request"
// @Success 200 {object} shared.Response{data=model.ContentSource}
// @Security BearerAuth
// @Router /api/v1/admin/content/{id} [put]
func (h *AdminHandler) UpdateContent(c *fiber.Ctx) error {
	var req dto.UpdateContentSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	source, err := h.contentSvc.UpdateSource(c.Params("id"), req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", source)
}

// @Summary Delete Content Source
// @Tags admin
// @Produce json
// @Param id path string true "Content source ID"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/admin/content/{id} [delete]
func (h *AdminHandler) DeleteContent(c *fiber.Ctx) error {
	if err := h.contentSvc.DeleteSource(c.Params("id")); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
}

// ==================== DOCUMENTS ====================

// @Summary Upload Document
// @Description Stores a document in object storage for content sources to reference by key.
// @Tags admin
// @Accept  mpfd
// @Produce json
// @Param file formData file true "Document file"
// @Param key formData string false "Object key, defaults to the filename"
// @Success 200 {object} shared.Response{data=dto.DocumentInfo}
// @Security BearerAuth
// @Router /api/v1/admin/documents [post]
func (h *AdminHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return shared.NewBadRequestError(err, "A file upload is required")
	}

	key := c.FormValue("key")
	if key == "" {
		key = fileHeader.Filename
	}

	file, err := fileHeader.Open()
	if err != nil {
		return shared.NewBadRequestError(err, "Unreadable upload")
	}
	defer file.Close()

	info, err := h.contentSvc.UploadDocument(key, file, fileHeader.Size, fileHeader.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", info)
}

// @Summary List Documents
// @Tags admin
// @Produce json
// @Param prefix query string false "Key prefix filter"
// @Success 200 {object} shared.Response{data=[]dto.DocumentInfo}
// @Security BearerAuth
// @Router /api/v1/admin/documents [get]
func (h *AdminHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.contentSvc.ListDocuments(c.Query("prefix"))
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", docs)
}

// @Summary Delete Document
// @Tags admin
// @Produce json
// @Param key query string true "Object key"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/admin/documents [delete]
func (h *AdminHandler) DeleteDocument(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return shared.NewBadRequestError(fmt.Errorf("missing key"), "Document key is required")
	}

	if err := h.contentSvc.DeleteDocument(key); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
}

// @Summary Document URL
// @Description Returns a presigned, time-limited download link for one document.
// @Tags admin
// @Produce json
// @Param key query string true "Object key"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/admin/documents/url [get]
func (h *AdminHandler) DocumentURL(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return shared.NewBadRequestError(fmt.Errorf("missing key"), "Document key is required")
	}

	url, err := h.contentSvc.DocumentURL(key)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", fiber.Map{"key": key, "url": url})
}

// ==================== CACHE ====================

// @Summary Context Cache Info
// @Description Returns cache contents summary plus hit/miss statistics.
// @Tags admin
// @Produce json
// @Success 200 {object} shared.Response
// @Security BearerAuth
// @Router /api/v1/admin/cache [get]
func (h *AdminHandler) CacheInfo(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", fiber.Map{
		"info":  h.cacheSvc.CacheInfo(),
		"stats": h.cacheSvc.CacheStats(),
	})
}

// @Summary Invalidate Context Cache
// @Description Drops cached context for one session, or everything when no session is given.
// @Tags admin
// @Produce json
// @Param sessionId query string false "Session ID"
// @Success 200
// @Security BearerAuth
// @Router /api/v1/admin/cache [delete]
func (h *AdminHandler) InvalidateCache(c *fiber.Ctx) error {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		h.cacheSvc.InvalidateAll()
		return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
	}

	removed := h.cacheSvc.InvalidateSession(sessionID)
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", fiber.Map{"removed": removed})
}

// ==================== STATUS ====================

// @Summary Refresh AI Status
// @Description Drops the cached provider probe so the next status read re-probes.
// @Tags admin
// @Produce json
// @Success 200 {object} shared.Response{data=dto.AIStatus}
// @Security BearerAuth
// @Router /api/v1/admin/status/refresh [post]
func (h *AdminHandler) RefreshAIStatus(c *fiber.Ctx) error {
	h.aiStatusSvc.ForceRefresh()
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", h.aiStatusSvc.GetStatus())
}
