package services

import (
	"context"
	"os"
	"strconv"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/shared"
)

// ContextInjectorService is the gate itself: it runs every access check in
// order (blacklist, rate limit, reflink budget), derives the caller's access
// level and capabilities, and hands out budget-trimmed context. Denials
// always carry a machine-readable reason plus a displayable message.
type ContextInjectorService struct {
	appContext.DefaultService

	blacklistSvc *BlacklistService
	rateLimitSvc *RateLimitService
	reflinkSvc   *ReflinkService
	contextSvc   *ContextService

	monitoringSvc *MonitoringService

	costPer1KTokens float64
}

const INJECTOR_SVC = "injector_svc"

// Token budgets per access level.
const (
	maxTokensBasic   = 1000
	maxTokensLimited = 2000
	maxTokensPremium = 4000
)

func (svc ContextInjectorService) Id() string {
	return INJECTOR_SVC
}

func (svc *ContextInjectorService) Configure(ctx *appContext.Context) error {
	svc.costPer1KTokens = 0.01
	if raw := os.Getenv("COST_PER_1K_TOKENS"); raw != "" {
		if cost, err := strconv.ParseFloat(raw, 64); err == nil && cost >= 0 {
			svc.costPer1KTokens = cost
		}
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *ContextInjectorService) Start() error {
	svc.blacklistSvc = svc.Service(BLACKLIST_SVC).(*BlacklistService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.reflinkSvc = svc.Service(REFLINK_SVC).(*ReflinkService)
	svc.contextSvc = svc.Service(CONTEXT_SVC).(*ContextService)

	if monitoringSvc, ok := svc.Service(MONITORING_SVC).(*MonitoringService); ok {
		svc.monitoringSvc = monitoringSvc
	}

	return nil
}

// ValidateAndFilter runs the gate for one request. Check order is fixed:
// blacklist first (blocked IPs never consume quota), then the rate limiter,
// then the reflink budget.
func (svc *ContextInjectorService) ValidateAndFilter(sessionID, reflinkCode, ip string) (*dto.AccessDecision, error) {
	check, err := svc.blacklistSvc.IsBlacklisted(ip)
	if err != nil {
		if decision := svc.infrastructureFallback(err, "blacklist"); decision != nil {
			return decision, nil
		}
	} else if check.Blacklisted {
		return svc.deny(&dto.AccessDecision{
			Valid:       false,
			AccessLevel: shared.AccessNone,
			Reason:      shared.ReasonIPBlacklisted,
			Message:     "Access from this address has been blocked.",
		}), nil
	}

	// An invalid code falls back to session identity so it cannot be used to
	// dodge the caller's own quota.
	var validation *dto.ReflinkValidation
	identifier, identifierType := sessionID, shared.IdentifierSession
	tier := shared.TierBasic

	if reflinkCode != "" {
		validation, err = svc.reflinkSvc.ValidateWithBudget(reflinkCode)
		if err != nil {
			if decision := svc.infrastructureFallback(err, "reflink"); decision != nil {
				return decision, nil
			}
			validation = nil
		}
		if validation != nil && validation.Reflink != nil {
			identifier, identifierType = reflinkCode, shared.IdentifierReflink
			tier = validation.Reflink.Tier
		}
	}

	allowed, status, err := svc.rateLimitSvc.CheckRateLimit(identifier, identifierType, "gate", tier)
	if err != nil {
		if decision := svc.infrastructureFallback(err, "rate_limit"); decision != nil {
			return decision, nil
		}
	} else if !allowed {
		return svc.deny(&dto.AccessDecision{
			Valid:       false,
			AccessLevel: shared.AccessNone,
			Reason:      shared.ReasonRateLimited,
			Message:     "Request quota exceeded, try again later.",
			RateLimit:   status,
		}), nil
	}

	decision := svc.decide(validation)
	decision.RateLimit = status

	if svc.monitoringSvc != nil {
		svc.monitoringSvc.RecordGateDecision(decision.Valid, decision.Reason)
	}

	return decision, nil
}

// decide maps a reflink validation outcome onto an access decision. No code
// at all is a valid basic session; an exhausted budget downgrades rather
// than denies.
func (svc *ContextInjectorService) decide(validation *dto.ReflinkValidation) *dto.AccessDecision {
	if validation == nil {
		return &dto.AccessDecision{
			Valid:       true,
			AccessLevel: shared.AccessBasic,
		}
	}

	level, caps := DeriveAccess(validation)

	decision := &dto.AccessDecision{
		Valid:        validation.Valid,
		AccessLevel:  level,
		Capabilities: caps,
		Reason:       validation.Reason,
	}

	switch validation.Reason {
	case shared.ReasonNotFound:
		decision.Message = "Access code not recognized."
	case shared.ReasonExpired:
		decision.Message = "This access link has expired."
	case shared.ReasonInactive:
		decision.Message = "This access link has been deactivated."
	case shared.ReasonBudgetExhausted:
		// Downgrade, not denial: the session continues with reduced context.
		decision.Valid = true
		decision.Message = "This access link has used up its budget; continuing with limited access."
	}

	if validation.Valid && validation.Reflink != nil {
		decision.WelcomeMessage = validation.Reflink.WelcomeMessage
	}

	return decision
}

// infrastructureFallback applies the fail-open/fail-closed policy when a
// check cannot run at all. Returns nil when the request should proceed.
func (svc *ContextInjectorService) infrastructureFallback(err error, check string) *dto.AccessDecision {
	if svc.rateLimitSvc.FailOpen() {
		log.WithError(err).WithField("check", check).Warn("Gate check failed, passing request through (fail-open)")
		return nil
	}

	log.WithError(err).WithField("check", check).Error("Gate check failed, denying request (fail-closed)")
	return svc.deny(&dto.AccessDecision{
		Valid:       false,
		AccessLevel: shared.AccessNone,
		Reason:      shared.ReasonSecurityViolation,
		Message:     "Access checks are temporarily unavailable.",
	})
}

func (svc *ContextInjectorService) deny(decision *dto.AccessDecision) *dto.AccessDecision {
	if svc.monitoringSvc != nil {
		svc.monitoringSvc.RecordGateDecision(false, decision.Reason)
	}
	return decision
}

// MaxTokensForLevel returns the context budget each access level is
// entitled to.
func MaxTokensForLevel(level string) int {
	switch level {
	case shared.AccessPremium:
		return maxTokensPremium
	case shared.AccessLimited:
		return maxTokensLimited
	case shared.AccessBasic:
		return maxTokensBasic
	default:
		return 0
	}
}

// LoadFilteredContext gates the request, then assembles context sized to the
// granted access level. Usage lands on the reflink ledger through the event
// channel after the response is built.
func (svc *ContextInjectorService) LoadFilteredContext(ctx context.Context, req dto.LoadContextRequest, ip string) (*dto.FilteredContext, *dto.AccessDecision, error) {
	decision, err := svc.ValidateAndFilter(req.SessionID, req.ReflinkCode, ip)
	if err != nil {
		return nil, nil, err
	}

	if !decision.Valid {
		return nil, decision, nil
	}

	maxTokens := MaxTokensForLevel(decision.AccessLevel)
	if req.MaxTokens > 0 && req.MaxTokens < maxTokens {
		maxTokens = req.MaxTokens
	}

	filtered, err := svc.contextSvc.BuildContextWithCache(ctx, req.SessionID, req.Query, decision.AccessLevel, maxTokens)
	if err != nil {
		return nil, decision, err
	}

	svc.recordUsage(req, decision, filtered)

	if svc.monitoringSvc != nil {
		svc.monitoringSvc.RecordContextServed(decision.AccessLevel, filtered.TokenCount, filtered.FromCache)
	}

	return filtered, decision, nil
}

func (svc *ContextInjectorService) recordUsage(req dto.LoadContextRequest, decision *dto.AccessDecision, filtered *dto.FilteredContext) {
	if req.ReflinkCode == "" || decision.AccessLevel == shared.AccessNone {
		return
	}

	reflink, err := svc.reflinkSvc.repo.GetByCode(req.ReflinkCode)
	if err != nil || reflink == nil {
		return
	}

	tokens := int64(filtered.TokenCount)
	svc.reflinkSvc.EnqueueUsage(&model.UsageEvent{
		ReflinkID: reflink.ID,
		Type:      shared.UsageLLMRequest,
		Tokens:    tokens,
		Cost:      float64(tokens) / 1000 * svc.costPer1KTokens,
		Endpoint:  "gate/context",
	})
}
