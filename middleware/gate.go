package middleware

import (
	"strconv"
	"strings"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/services"
	"github.com/folio-gate/gate_api/shared"
)

// GateMiddleware applies the perimeter checks to public routes: blacklist
// first, then the per-identifier rate limit. Handlers behind it can assume
// the caller is neither blocked nor over quota.
type GateMiddleware struct {
	context.DefaultService

	blacklistSvc *services.BlacklistService
	rateLimitSvc *services.RateLimitService
	reflinkSvc   *services.ReflinkService
}

const GATE_MIDDLEWARE_SVC = "gate"

func (svc GateMiddleware) Id() string {
	return GATE_MIDDLEWARE_SVC
}

func (svc *GateMiddleware) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *GateMiddleware) Start() error {
	svc.blacklistSvc = svc.Service(services.BLACKLIST_SVC).(*services.BlacklistService)
	svc.rateLimitSvc = svc.Service(services.RATE_LIMIT_SVC).(*services.RateLimitService)
	svc.reflinkSvc = svc.Service(services.REFLINK_SVC).(*services.ReflinkService)
	return nil
}

// BlacklistCheck rejects blocked IPs before anything else runs, so a blocked
// caller never consumes rate-limit quota.
func (svc *GateMiddleware) BlacklistCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := GetClientIP(c)

		check, err := svc.blacklistSvc.IsBlacklisted(ip)
		if err != nil {
			if svc.rateLimitSvc.FailOpen() {
				log.WithError(err).WithField("ip", ip).Warn("Blacklist check failed, passing request through (fail-open)")
				return c.Next()
			}
			log.WithError(err).WithField("ip", ip).Error("Blacklist check failed, denying request (fail-closed)")
			return shared.ResponseJSON(c, fiber.StatusForbidden, "Forbidden", fiber.Map{
				"reason": shared.ReasonSecurityViolation,
			})
		}

		if check.Blacklisted {
			return shared.ResponseJSON(c, fiber.StatusForbidden, "Forbidden", fiber.Map{
				"reason": shared.ReasonIPBlacklisted,
			})
		}

		return c.Next()
	}
}

// RateLimit enforces the request quota for the resolved identifier and sets
// the X-RateLimit-* headers on every response.
func (svc *GateMiddleware) RateLimit(endpoint string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier, identifierType, tier := svc.resolveIdentifier(c)

		allowed, status, err := svc.rateLimitSvc.CheckRateLimit(identifier, identifierType, endpoint, tier)
		if err != nil {
			if svc.rateLimitSvc.FailOpen() {
				log.WithError(err).WithField("identifier", identifier).Warn("Rate limit check failed, passing request through (fail-open)")
				return c.Next()
			}
			log.WithError(err).WithField("identifier", identifier).Error("Rate limit check failed, denying request (fail-closed)")
			return shared.ResponseJSON(c, fiber.StatusForbidden, "Forbidden", fiber.Map{
				"reason": shared.ReasonSecurityViolation,
			})
		}

		setRateLimitHeaders(c, status)

		if !allowed {
			if status.RetryAfterSeconds > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(status.RetryAfterSeconds))
			}
			return shared.ResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", fiber.Map{
				"reason":     shared.ReasonRateLimited,
				"rate_limit": status,
			})
		}

		return c.Next()
	}
}

// resolveIdentifier picks the quota bucket for a request: reflink code when
// one is presented (and resolves), session id when supplied, client IP
// otherwise.
func (svc *GateMiddleware) resolveIdentifier(c *fiber.Ctx) (string, string, string) {
	code := c.Get("X-Reflink-Code")
	if code == "" {
		code = c.Query("ref")
	}

	if code != "" {
		validation, err := svc.reflinkSvc.ValidateWithBudget(code)
		if err == nil && validation != nil && validation.Valid {
			return code, shared.IdentifierReflink, validation.Reflink.Tier
		}
		// Invalid codes fall through to session/IP identity.
	}

	if sid := c.Get("X-Session-ID"); sid != "" {
		return sid, shared.IdentifierSession, shared.TierBasic
	}

	return GetClientIP(c), shared.IdentifierIP, shared.TierBasic
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

// GetClientIP resolves the caller's address, trusting proxy headers in order.
func GetClientIP(c *fiber.Ctx) string {
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
