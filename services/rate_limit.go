package services

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
	"github.com/folio-gate/gate_api/shared"
)

// RateLimitService enforces a tier-aware fixed-window request quota per
// (identifier, identifier type). The window check-and-increment is a single
// database upsert so concurrent requests against the same identifier can
// neither both take the last slot nor open duplicate windows.
type RateLimitService struct {
	context.DefaultService

	configs map[string]*TierConfig
	mutex   sync.RWMutex

	repo *repositories.RateLimitRepository

	windowSize time.Duration
	failOpen   bool

	closed chan struct{}
}

// TierConfig represents the quota configuration for one tier.
type TierConfig struct {
	Tier        string
	DailyLimit  int
	WindowSize  time.Duration
	Description string
	IsActive    bool
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *context.Context) error {
	svc.windowSize = 24 * time.Hour
	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			svc.windowSize = d
		} else {
			log.Printf("Invalid RATE_LIMIT_WINDOW %q, using default", window)
		}
	}

	// Infrastructure failures during the check deny by default. Fail-open is
	// an explicit opt-in and every pass-through is logged.
	svc.failOpen = os.Getenv("RATE_LIMIT_FAIL_OPEN") == "true"

	svc.configs = make(map[string]*TierConfig)
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.repo = sqlSvc.RateLimits()

	svc.initDefaultConfigs()
	if err := svc.loadPersistedConfigs(); err != nil {
		log.WithError(err).Warn("Failed to load stored tier configs, using defaults")
	}

	svc.closed = make(chan struct{})
	go svc.startCleanupJob()

	return nil
}

func (svc *RateLimitService) Shutdown() {
	close(svc.closed)
}

// FailOpen reports the configured infrastructure-error policy.
func (svc *RateLimitService) FailOpen() bool {
	return svc.failOpen
}

func (svc *RateLimitService) initDefaultConfigs() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	svc.configs = map[string]*TierConfig{
		shared.TierBasic: {
			Tier:        shared.TierBasic,
			DailyLimit:  10,
			WindowSize:  svc.windowSize,
			Description: "Default quota for anonymous and session callers",
			IsActive:    true,
		},
		shared.TierStandard: {
			Tier:        shared.TierStandard,
			DailyLimit:  50,
			WindowSize:  svc.windowSize,
			Description: "Standard reflink quota",
			IsActive:    true,
		},
		shared.TierPremium: {
			Tier:        shared.TierPremium,
			DailyLimit:  200,
			WindowSize:  svc.windowSize,
			Description: "Premium reflink quota",
			IsActive:    true,
		},
		shared.TierUnlimited: {
			Tier:        shared.TierUnlimited,
			DailyLimit:  shared.UnlimitedRequests,
			WindowSize:  svc.windowSize,
			Description: "Unmetered reflink quota",
			IsActive:    true,
		},
	}
}

// loadPersistedConfigs overlays stored tier configs onto the defaults so
// admin changes survive restarts.
func (svc *RateLimitService) loadPersistedConfigs() error {
	rows, err := svc.repo.ListConfigs()
	if err != nil {
		return err
	}

	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	for _, row := range rows {
		svc.configs[row.Tier] = &TierConfig{
			Tier:        row.Tier,
			DailyLimit:  row.DailyLimit,
			WindowSize:  time.Duration(row.WindowSize) * time.Second,
			Description: row.Description,
			IsActive:    row.IsActive,
		}
	}
	return nil
}

func (svc *RateLimitService) tierConfig(tier string) *TierConfig {
	svc.mutex.RLock()
	defer svc.mutex.RUnlock()

	if config, exists := svc.configs[tier]; exists && config.IsActive {
		return config
	}
	return svc.configs[shared.TierBasic]
}

// CheckRateLimit admits or denies one request for the identifier. The
// returned status is populated on both outcomes so callers can always set
// the X-RateLimit-* headers.
func (svc *RateLimitService) CheckRateLimit(identifier, identifierType, endpoint, tier string) (bool, *dto.RateLimitStatus, error) {
	if tier == "" {
		tier = shared.TierBasic
	}
	config := svc.tierConfig(tier)

	now := time.Now()

	// One upsert lands the request: it opens a fresh window when none is
	// live (the counter resets, it never carries over) and increments the
	// counter otherwise.
	record := &model.RateLimit{
		Identifier:     identifier,
		IdentifierType: identifierType,
		Endpoint:       endpoint,
		Tier:           config.Tier,
		RequestCount:   1,
		WindowStart:    now,
		WindowEnd:      now.Add(config.WindowSize),
	}

	updated, err := svc.repo.OpenOrIncrementWindow(record, now)
	if err != nil {
		return false, nil, err
	}

	allowed := config.DailyLimit == shared.UnlimitedRequests ||
		updated.RequestCount <= config.DailyLimit

	return allowed, svc.buildStatus(updated, config, allowed), nil
}

func (svc *RateLimitService) buildStatus(record *model.RateLimit, config *TierConfig, allowed bool) *dto.RateLimitStatus {
	resetTime := record.WindowEnd

	status := &dto.RateLimitStatus{
		Allowed:           allowed,
		Tier:              config.Tier,
		Limit:             config.DailyLimit,
		RequestsRemaining: shared.UnlimitedRequests,
		ResetTime:         &resetTime,
	}

	if config.DailyLimit != shared.UnlimitedRequests {
		remaining := config.DailyLimit - record.RequestCount
		if remaining < 0 {
			remaining = 0
		}
		status.RequestsRemaining = remaining
	}

	if !allowed {
		retryAfter := int(time.Until(record.WindowEnd).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		status.RetryAfterSeconds = retryAfter
	}

	return status
}

// ==================== ADMIN OPERATIONS ====================

func (c *TierConfig) toResponse() *dto.TierConfigResponse {
	return &dto.TierConfigResponse{
		Tier:        c.Tier,
		DailyLimit:  c.DailyLimit,
		WindowSize:  c.WindowSize.String(),
		Description: c.Description,
		IsActive:    c.IsActive,
	}
}

func (svc *RateLimitService) GetStats() (map[string]interface{}, error) {
	svc.mutex.RLock()
	configs := make(map[string]*dto.TierConfigResponse, len(svc.configs))
	for k, v := range svc.configs {
		configs[k] = v.toResponse()
	}
	svc.mutex.RUnlock()

	total, err := svc.repo.Count()
	if err != nil {
		return nil, err
	}

	active, err := svc.repo.CountActiveWindows(time.Now())
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"configs":        configs,
		"total_records":  total,
		"active_windows": active,
		"timestamp":      time.Now(),
	}, nil
}

func (svc *RateLimitService) ResetRateLimit(identifier, identifierType string) error {
	return svc.repo.Delete(identifier, identifierType)
}

func (svc *RateLimitService) UpdateTierConfig(tier string, req dto.RateLimitConfigUpdateRequest) (*dto.TierConfigResponse, error) {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	config, exists := svc.configs[tier]
	if !exists {
		return nil, fmt.Errorf("unknown tier: %s", tier)
	}

	if req.DailyLimit > 0 {
		config.DailyLimit = req.DailyLimit
	}
	if req.WindowSize != "" {
		if duration, err := time.ParseDuration(req.WindowSize); err == nil {
			config.WindowSize = duration
		}
	}
	if req.IsActive != nil {
		config.IsActive = *req.IsActive
	}

	// Persist the updated quota so it survives restarts.
	row := &model.RateLimitConfig{
		Tier:        config.Tier,
		DailyLimit:  config.DailyLimit,
		WindowSize:  int(config.WindowSize.Seconds()),
		Description: config.Description,
		IsActive:    config.IsActive,
	}
	if err := svc.repo.SaveConfig(row); err != nil {
		return nil, err
	}

	return config.toResponse(), nil
}

// ==================== BACKGROUND JOBS ====================

func (svc *RateLimitService) CleanupOldRecords() error {
	// Keep expired windows around for a day for the stats endpoints.
	cutoff := time.Now().Add(-24 * time.Hour)

	removed, err := svc.repo.CleanupExpired(cutoff)
	if err != nil {
		return err
	}

	if removed > 0 {
		log.WithField("removed", removed).Info("Rate limit cleanup completed")
	}
	return nil
}

func (svc *RateLimitService) startCleanupJob() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := svc.CleanupOldRecords(); err != nil {
				log.Printf("Rate limit cleanup error: %v", err)
			}
		case <-svc.closed:
			return
		}
	}
}
