package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/shared"
)

type GateHandler struct {
	gateSvc     GateServiceInterface
	aiStatusSvc AIStatusServiceInterface
}

func NewGateHandler(gateSvc GateServiceInterface, aiStatusSvc AIStatusServiceInterface) *GateHandler {
	return &GateHandler{
		gateSvc:     gateSvc,
		aiStatusSvc: aiStatusSvc,
	}
}

// @Summary Validate Access
// @Description Runs the full access gate for a session: blacklist, rate limit and reflink budget. Returns the access level and capabilities granted.
// @Tags gate
// @Accept  json
// @Produce json
// @Param validateRequest body dto.ValidateContextRequest true "Validate request"
// @Success 200 {object} shared.Response{data=dto.AccessDecision}
// @Failure 403 {object} shared.Response{data=dto.AccessDecision}
// @Failure 429 {object} shared.Response{data=dto.AccessDecision}
// @Router /api/v1/gate/validate [post]
func (h *GateHandler) Validate(c *fiber.Ctx) error {
	var req dto.ValidateContextRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	decision, err := h.gateSvc.ValidateAndFilter(req.SessionID, req.ReflinkCode, clientIP(c))
	if err != nil {
		return err
	}

	return h.respondDecision(c, decision, decision)
}

// @Summary Load Context
// @Description Gates the request, then assembles query-relevant site context trimmed to the access level's token budget.
// @Tags gate
// @Accept  json
// @Produce json
// @Param loadRequest body dto.LoadContextRequest true "Load context request"
// @Success 200 {object} shared.Response{data=dto.FilteredContext}
// @Failure 403 {object} shared.Response{data=dto.AccessDecision}
// @Failure 429 {object} shared.Response{data=dto.AccessDecision}
// @Router /api/v1/gate/context [post]
func (h *GateHandler) LoadContext(c *fiber.Ctx) error {
	var req dto.LoadContextRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	filtered, decision, err := h.gateSvc.LoadFilteredContext(c.Context(), req, clientIP(c))
	if err != nil {
		return err
	}

	if filtered == nil {
		return h.respondDecision(c, decision, decision)
	}

	setRateLimitHeaders(c, decision.RateLimit)
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", filtered)
}

// @Summary Gate Status
// @Description Reports whether the upstream AI provider is configured and reachable.
// @Tags gate
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.AIStatus}
// @Router /api/v1/gate/status [get]
func (h *GateHandler) Status(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", h.aiStatusSvc.GetStatus())
}

// respondDecision maps a gate decision to transport: denials become 403/429,
// everything else is a 200 whose body carries the outcome. An exhausted
// budget is the one reason that is not a denial, the session continues at
// limited access.
func (h *GateHandler) respondDecision(c *fiber.Ctx, decision *dto.AccessDecision, body interface{}) error {
	setRateLimitHeaders(c, decision.RateLimit)

	switch decision.Reason {
	case shared.ReasonRateLimited:
		if decision.RateLimit != nil && decision.RateLimit.RetryAfterSeconds > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(decision.RateLimit.RetryAfterSeconds))
		}
		return shared.ResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", body)
	case shared.ReasonIPBlacklisted, shared.ReasonSecurityViolation,
		shared.ReasonNotFound, shared.ReasonExpired, shared.ReasonInactive:
		return shared.ResponseJSON(c, fiber.StatusForbidden, "Forbidden", body)
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", body)
}

func setRateLimitHeaders(c *fiber.Ctx, status *dto.RateLimitStatus) {
	if status == nil {
		return
	}

	c.Set("X-RateLimit-Limit", strconv.Itoa(status.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(status.RequestsRemaining))
	if status.ResetTime != nil {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(status.ResetTime.Unix(), 10))
	}
}

func clientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if cfIP := c.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}

	return c.IP()
}
