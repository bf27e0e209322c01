package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
	"github.com/folio-gate/gate_api/shared"
)

// ReflinkService resolves access codes to a tier, capability set and budget
// ledger. Usage is applied through an explicit event channel fed by the
// orchestrator, so the accounting is testable in isolation and the ledger
// has a single writer.
type ReflinkService struct {
	appContext.DefaultService

	repo     *repositories.ReflinkRepository
	redisSvc *RedisService
	emailSvc *EmailService

	avgCostPerRequest float64

	usageCh chan *model.UsageEvent
	closed  chan struct{}
	drained chan struct{}
}

const REFLINK_SVC = "reflink_svc"

const validationCacheTTL = 30 * time.Second

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (svc ReflinkService) Id() string {
	return REFLINK_SVC
}

func (svc *ReflinkService) Configure(ctx *appContext.Context) error {
	svc.avgCostPerRequest = 0.01
	if raw := os.Getenv("AVERAGE_COST_PER_REQUEST"); raw != "" {
		if cost, err := strconv.ParseFloat(raw, 64); err == nil && cost > 0 {
			svc.avgCostPerRequest = cost
		}
	}

	svc.usageCh = make(chan *model.UsageEvent, 256)
	return svc.DefaultService.Configure(ctx)
}

func (svc *ReflinkService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.repo = sqlSvc.Reflinks()

	if redisSvc, ok := svc.Service(REDIS_SVC).(*RedisService); ok {
		svc.redisSvc = redisSvc
	}
	if emailSvc, ok := svc.Service(EMAIL_SVC).(*EmailService); ok {
		svc.emailSvc = emailSvc
	}

	svc.closed = make(chan struct{})
	svc.drained = make(chan struct{})
	go svc.consumeUsage()

	return nil
}

func (svc *ReflinkService) Shutdown() {
	close(svc.closed)
	<-svc.drained
}

// ==================== VALIDATION ====================

// ValidateWithBudget checks an access code. First failing check wins:
// exists -> not expired -> active -> budget not exhausted.
func (svc *ReflinkService) ValidateWithBudget(code string) (*dto.ReflinkValidation, error) {
	if cached := svc.cachedValidation(code); cached != nil {
		return cached, nil
	}

	reflink, err := svc.repo.GetByCode(code)
	if err != nil {
		return nil, err
	}

	if reflink == nil {
		return &dto.ReflinkValidation{Valid: false, Reason: shared.ReasonNotFound}, nil
	}

	if reflink.Expired(time.Now()) {
		return &dto.ReflinkValidation{Valid: false, Reason: shared.ReasonExpired, Reflink: reflink}, nil
	}

	if !reflink.IsActive {
		return &dto.ReflinkValidation{Valid: false, Reason: shared.ReasonInactive, Reflink: reflink}, nil
	}

	budget := svc.buildBudgetStatus(reflink)

	if budget.IsExhausted {
		return &dto.ReflinkValidation{
			Valid:        false,
			Reason:       shared.ReasonBudgetExhausted,
			Reflink:      reflink,
			BudgetStatus: budget,
		}, nil
	}

	validation := &dto.ReflinkValidation{
		Valid:        true,
		Reflink:      reflink,
		BudgetStatus: budget,
	}

	svc.cacheValidation(code, validation)
	return validation, nil
}

func (svc *ReflinkService) buildBudgetStatus(reflink *model.Reflink) *dto.BudgetStatus {
	budget := &dto.BudgetStatus{
		TokensUsed:  reflink.TokensUsed,
		TokenLimit:  reflink.TokenLimit,
		SpendUsed:   reflink.SpendUsed,
		SpendLimit:  reflink.SpendLimit,
		IsExhausted: reflink.Exhausted(),
	}

	if reflink.TokenLimit != nil {
		remaining := *reflink.TokenLimit - reflink.TokensUsed
		if remaining < 0 {
			remaining = 0
		}
		budget.TokensRemaining = &remaining
	}

	if reflink.SpendLimit != nil {
		remaining := *reflink.SpendLimit - reflink.SpendUsed
		if remaining < 0 {
			remaining = 0
		}
		budget.SpendRemaining = &remaining

		// A heuristic, not an exact bound.
		estimated := int(math.Floor(remaining / svc.avgCostPerRequest))
		budget.EstimatedRequestsRemaining = &estimated
	}

	return budget
}

// DeriveAccess maps a validation result to an access level and capability
// set. Pure function: premium for a valid link, basic otherwise; no_access
// is only produced by explicit denial upstream (e.g. blacklist).
func DeriveAccess(validation *dto.ReflinkValidation) (string, dto.Capabilities) {
	if validation == nil || !validation.Valid || validation.Reflink == nil {
		if validation != nil && validation.Reason == shared.ReasonBudgetExhausted {
			// Budget ran out: the session keeps a reduced context, not premium
			// capabilities.
			return shared.AccessLimited, dto.Capabilities{}
		}
		return shared.AccessBasic, dto.Capabilities{}
	}

	reflink := validation.Reflink
	return shared.AccessPremium, dto.Capabilities{
		VoiceAI:            reflink.VoiceAI,
		JobAnalysis:        reflink.JobAnalysis,
		AdvancedNavigation: reflink.AdvancedNavigation,
	}
}

// ==================== USAGE TRACKING ====================

// EnqueueUsage hands a usage event to the ledger consumer. Non-blocking and
// best-effort: if the buffer is full the event is dropped and logged rather
// than stalling a response.
func (svc *ReflinkService) EnqueueUsage(event *model.UsageEvent) {
	select {
	case svc.usageCh <- event:
	default:
		log.WithFields(log.Fields{
			"reflink_id": event.ReflinkID,
			"type":       event.Type,
		}).Warn("Usage event buffer full, event dropped")
	}
}

// TrackUsage applies one event to the reflink ledger exactly once and
// re-evaluates exhaustion. Exhaustion is monotonic: once crossed, later
// validations keep returning budget_exhausted.
func (svc *ReflinkService) TrackUsage(event *model.UsageEvent) (*model.Reflink, error) {
	reflink, err := svc.repo.ApplyUsage(event)
	if err != nil {
		return nil, err
	}

	svc.invalidateValidation(reflink.Code)

	if reflink.Exhausted() {
		log.WithFields(log.Fields{
			"reflink_id": reflink.ID,
			"tokens":     reflink.TokensUsed,
			"spend":      reflink.SpendUsed,
		}).Warn("Reflink budget exhausted")
	}

	return reflink, nil
}

func (svc *ReflinkService) consumeUsage() {
	defer close(svc.drained)

	for {
		select {
		case event := <-svc.usageCh:
			if _, err := svc.TrackUsage(event); err != nil {
				log.WithError(err).WithField("reflink_id", event.ReflinkID).
					Error("Failed to apply usage event")
			}
		case <-svc.closed:
			// Drain whatever is buffered before exiting.
			for {
				select {
				case event := <-svc.usageCh:
					if _, err := svc.TrackUsage(event); err != nil {
						log.WithError(err).Error("Failed to apply usage event during drain")
					}
				default:
					return
				}
			}
		}
	}
}

// ==================== ADMIN OPERATIONS ====================

func (svc *ReflinkService) CreateReflink(req dto.CreateReflinkRequest) (*model.Reflink, error) {
	code := req.Code
	if code == "" {
		generated, err := generateCode(12)
		if err != nil {
			return nil, err
		}
		code = generated
	}

	existing, err := svc.repo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewBadRequestError(fmt.Errorf("code taken: %s", code), "Reflink code already exists")
	}

	dailyLimit, ok := shared.TierDailyLimits[req.Tier]
	if !ok {
		return nil, shared.NewBadRequestError(fmt.Errorf("unknown tier: %s", req.Tier), "Unknown tier")
	}

	reflink := &model.Reflink{
		Code:               code,
		Tier:               req.Tier,
		DailyLimit:         dailyLimit,
		ExpiresAt:          req.ExpiresAt,
		IsActive:           true,
		TokenLimit:         req.TokenLimit,
		SpendLimit:         req.SpendLimit,
		VoiceAI:            req.VoiceAI,
		JobAnalysis:        req.JobAnalysis,
		AdvancedNavigation: req.AdvancedNavigation,
		RecipientName:      req.RecipientName,
		RecipientEmail:     req.RecipientEmail,
		WelcomeMessage:     req.WelcomeMessage,
	}

	if err := svc.repo.Create(reflink); err != nil {
		return nil, err
	}

	if req.SendEmail && req.RecipientEmail != "" && svc.emailSvc != nil {
		if err := svc.emailSvc.SendReflinkEmail(reflink); err != nil {
			log.WithError(err).WithField("code", reflink.Code).
				Warn("Failed to send reflink email")
			// Not returning error, the link itself was created.
		}
	}

	return reflink, nil
}

func (svc *ReflinkService) UpdateReflink(id string, req dto.UpdateReflinkRequest) (*model.Reflink, error) {
	fields := map[string]interface{}{}

	if req.Tier != "" {
		dailyLimit, ok := shared.TierDailyLimits[req.Tier]
		if !ok {
			return nil, shared.NewBadRequestError(fmt.Errorf("unknown tier: %s", req.Tier), "Unknown tier")
		}
		fields["tier"] = req.Tier
		fields["daily_limit"] = dailyLimit
	}
	if req.ExpiresAt != nil {
		fields["expires_at"] = req.ExpiresAt
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.TokenLimit != nil {
		fields["token_limit"] = *req.TokenLimit
	}
	if req.SpendLimit != nil {
		fields["spend_limit"] = *req.SpendLimit
	}
	if req.VoiceAI != nil {
		fields["voice_ai"] = *req.VoiceAI
	}
	if req.JobAnalysis != nil {
		fields["job_analysis"] = *req.JobAnalysis
	}
	if req.AdvancedNavigation != nil {
		fields["advanced_navigation"] = *req.AdvancedNavigation
	}
	if req.WelcomeMessage != nil {
		fields["welcome_message"] = *req.WelcomeMessage
	}

	if len(fields) == 0 {
		return svc.repo.GetByID(id)
	}

	if err := svc.repo.Update(id, fields); err != nil {
		return nil, err
	}

	reflink, err := svc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if reflink != nil {
		svc.invalidateValidation(reflink.Code)
	}

	return reflink, nil
}

func (svc *ReflinkService) DeactivateReflink(id string) error {
	if err := svc.repo.Update(id, map[string]interface{}{"is_active": false}); err != nil {
		return err
	}

	if reflink, err := svc.repo.GetByID(id); err == nil && reflink != nil {
		svc.invalidateValidation(reflink.Code)
	}
	return nil
}

func (svc *ReflinkService) ListReflinks(activeOnly bool) ([]model.Reflink, error) {
	return svc.repo.List(activeOnly)
}

func (svc *ReflinkService) GetUsageSummary(id string) (*dto.ReflinkUsageSummary, error) {
	reflink, err := svc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if reflink == nil {
		return nil, shared.NewNotFoundError(fmt.Errorf("reflink not found: %s", id), "Reflink not found")
	}

	events, err := svc.repo.CountEvents(id)
	if err != nil {
		return nil, err
	}

	return &dto.ReflinkUsageSummary{
		ReflinkID:    reflink.ID,
		Code:         reflink.Code,
		EventCount:   events,
		BudgetStatus: svc.buildBudgetStatus(reflink),
		LastUsedAt:   reflink.LastUsedAt,
	}, nil
}

// ==================== CACHING ====================

func (svc *ReflinkService) cachedValidation(code string) *dto.ReflinkValidation {
	if svc.redisSvc == nil {
		return nil
	}

	var cached dto.ReflinkValidation
	err := svc.redisSvc.GetJSON(context.Background(), validationCacheKey(code), &cached)
	if err != nil || cached.Reflink == nil {
		return nil
	}

	log.WithField("code", code).Debug("Reflink validation cache hit")
	return &cached
}

func (svc *ReflinkService) cacheValidation(code string, validation *dto.ReflinkValidation) {
	if svc.redisSvc == nil {
		return
	}

	if err := svc.redisSvc.Set(context.Background(), validationCacheKey(code), validation, validationCacheTTL); err != nil {
		log.WithError(err).WithField("code", code).Debug("Failed to cache reflink validation")
	}
}

func (svc *ReflinkService) invalidateValidation(code string) {
	if svc.redisSvc == nil {
		return
	}

	if err := svc.redisSvc.Delete(context.Background(), validationCacheKey(code)); err != nil {
		log.WithError(err).WithField("code", code).Debug("Failed to invalidate reflink validation")
	}
}

func validationCacheKey(code string) string {
	return fmt.Sprintf("reflink:validation:%s", code)
}

func generateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
