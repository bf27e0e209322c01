package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
	"github.com/folio-gate/gate_api/shared"
)

func newInjectorService(t *testing.T) *ContextInjectorService {
	db := newTestDB(t)

	rateLimitSvc := &RateLimitService{
		windowSize: 24 * time.Hour,
		repo:       repositories.NewRateLimitRepository(db),
	}
	rateLimitSvc.initDefaultConfigs()

	reflinkSvc := &ReflinkService{
		repo:              repositories.NewReflinkRepository(db),
		avgCostPerRequest: 0.01,
		usageCh:           make(chan *model.UsageEvent, 8),
	}

	contentSvc := &ContentService{repo: repositories.NewContentRepository(db)}

	return &ContextInjectorService{
		blacklistSvc: &BlacklistService{
			repo:           repositories.NewBlacklistRepository(db),
			blockThreshold: 3,
		},
		rateLimitSvc: rateLimitSvc,
		reflinkSvc:   reflinkSvc,
		contextSvc: &ContextService{
			contentSvc: contentSvc,
			estimator:  shared.CharEstimator{},
			cache:      shared.NewTTLCache[dto.FilteredContext](time.Minute, 0),
			cacheTTL:   time.Minute,
		},
		costPer1KTokens: 0.01,
	}
}

func blockIP(t *testing.T, svc *ContextInjectorService, ip string) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_, err := svc.blacklistSvc.RecordViolation(ip, shared.ViolationRateLimitAbuse, "")
		require.NoError(t, err)
	}
}

func TestValidateAndFilterNoCode(t *testing.T) {
	svc := newInjectorService(t)

	decision, err := svc.ValidateAndFilter("sess-1", "", "203.0.113.1")
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	assert.Equal(t, shared.AccessBasic, decision.AccessLevel)
	assert.Empty(t, decision.Reason)
	require.NotNil(t, decision.RateLimit)
	assert.Equal(t, shared.TierBasic, decision.RateLimit.Tier)
}

func TestValidateAndFilterBlacklistedIP(t *testing.T) {
	svc := newInjectorService(t)
	ip := "198.51.100.20"
	blockIP(t, svc, ip)

	decision, err := svc.ValidateAndFilter("sess-1", "", ip)
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, shared.AccessNone, decision.AccessLevel)
	assert.Equal(t, shared.ReasonIPBlacklisted, decision.Reason)
	assert.NotEmpty(t, decision.Message)

	// A blocked IP is turned away before the limiter, no window is opened.
	count, err := svc.rateLimitSvc.repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestValidateAndFilterRateLimited(t *testing.T) {
	svc := newInjectorService(t)
	svc.rateLimitSvc.configs[shared.TierBasic].DailyLimit = 1

	decision, err := svc.ValidateAndFilter("sess-1", "", "203.0.113.2")
	require.NoError(t, err)
	assert.True(t, decision.Valid)

	decision, err = svc.ValidateAndFilter("sess-1", "", "203.0.113.2")
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, shared.AccessNone, decision.AccessLevel)
	assert.Equal(t, shared.ReasonRateLimited, decision.Reason)
	require.NotNil(t, decision.RateLimit)
	assert.Zero(t, decision.RateLimit.RequestsRemaining)
}

func TestValidateAndFilterInvalidCodeFallsBackToSession(t *testing.T) {
	svc := newInjectorService(t)
	svc.rateLimitSvc.configs[shared.TierBasic].DailyLimit = 1

	decision, err := svc.ValidateAndFilter("sess-1", "no-such-code", "203.0.113.3")
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, shared.ReasonNotFound, decision.Reason)

	// The bad code still burned the session's own quota.
	decision, err = svc.ValidateAndFilter("sess-1", "", "203.0.113.3")
	require.NoError(t, err)
	assert.False(t, decision.Valid)
	assert.Equal(t, shared.ReasonRateLimited, decision.Reason)
}

func TestValidateAndFilterExhaustedReflinkDowngrades(t *testing.T) {
	svc := newInjectorService(t)
	spendLimit := 10.0
	require.NoError(t, svc.reflinkSvc.repo.Create(&model.Reflink{
		Code:       "spent",
		Tier:       shared.TierPremium,
		DailyLimit: 200,
		IsActive:   true,
		SpendLimit: &spendLimit,
		SpendUsed:  10.0,
	}))

	decision, err := svc.ValidateAndFilter("sess-1", "spent", "203.0.113.4")
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	assert.Equal(t, shared.AccessLimited, decision.AccessLevel)
	assert.Equal(t, shared.ReasonBudgetExhausted, decision.Reason)
	assert.NotEmpty(t, decision.Message)
}

func TestValidateAndFilterPremiumReflink(t *testing.T) {
	svc := newInjectorService(t)
	require.NoError(t, svc.reflinkSvc.repo.Create(&model.Reflink{
		Code:           "vip-pass",
		Tier:           shared.TierPremium,
		DailyLimit:     200,
		IsActive:       true,
		VoiceAI:        true,
		WelcomeMessage: "Welcome back!",
	}))

	decision, err := svc.ValidateAndFilter("sess-1", "vip-pass", "203.0.113.5")
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	assert.Equal(t, shared.AccessPremium, decision.AccessLevel)
	assert.True(t, decision.Capabilities.VoiceAI)
	assert.Equal(t, "Welcome back!", decision.WelcomeMessage)
	assert.Equal(t, shared.TierPremium, decision.RateLimit.Tier)
}

func TestMaxTokensForLevel(t *testing.T) {
	assert.Equal(t, 4000, MaxTokensForLevel(shared.AccessPremium))
	assert.Equal(t, 2000, MaxTokensForLevel(shared.AccessLimited))
	assert.Equal(t, 1000, MaxTokensForLevel(shared.AccessBasic))
	assert.Equal(t, 0, MaxTokensForLevel(shared.AccessNone))
	assert.Equal(t, 0, MaxTokensForLevel("bogus"))
}

func TestLoadFilteredContextRecordsUsage(t *testing.T) {
	svc := newInjectorService(t)
	require.NoError(t, svc.reflinkSvc.repo.Create(&model.Reflink{
		Code:       "reader",
		Tier:       shared.TierPremium,
		DailyLimit: 200,
		IsActive:   true,
	}))
	require.NoError(t, svc.contextSvc.contentSvc.repo.Create(&model.ContentSource{
		Type: shared.ContentAbout, Title: "About", Content: "I build things.", IsActive: true,
	}))

	filtered, decision, err := svc.LoadFilteredContext(context.Background(), dto.LoadContextRequest{
		SessionID:   "sess-1",
		ReflinkCode: "reader",
		Query:       "what do you build",
	}, "203.0.113.6")
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	assert.Equal(t, shared.AccessPremium, decision.AccessLevel)
	require.NotNil(t, filtered)
	assert.Contains(t, filtered.PublicContext, "About")

	// Usage landed on the channel for the ledger consumer.
	require.Len(t, svc.reflinkSvc.usageCh, 1)
	event := <-svc.reflinkSvc.usageCh
	assert.Equal(t, shared.UsageLLMRequest, event.Type)
	assert.Equal(t, int64(filtered.TokenCount), event.Tokens)
	assert.Equal(t, "gate/context", event.Endpoint)
}

func TestLoadFilteredContextCapsRequestedTokens(t *testing.T) {
	svc := newInjectorService(t)
	require.NoError(t, svc.contextSvc.contentSvc.repo.Create(&model.ContentSource{
		Type: shared.ContentAbout, Title: "About", Content: "Some background text.", IsActive: true,
	}))

	filtered, decision, err := svc.LoadFilteredContext(context.Background(), dto.LoadContextRequest{
		SessionID: "sess-1",
		Query:     "background",
		MaxTokens: 50,
	}, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, decision.Valid)
	require.NotNil(t, filtered)
	assert.LessOrEqual(t, filtered.TokenCount, 50)
}

func TestLoadFilteredContextDenied(t *testing.T) {
	svc := newInjectorService(t)
	ip := "198.51.100.21"
	blockIP(t, svc, ip)

	filtered, decision, err := svc.LoadFilteredContext(context.Background(), dto.LoadContextRequest{
		SessionID: "sess-1",
		Query:     "anything",
	}, ip)
	require.NoError(t, err)
	assert.Nil(t, filtered)
	require.NotNil(t, decision)
	assert.False(t, decision.Valid)
	assert.Equal(t, shared.ReasonIPBlacklisted, decision.Reason)

	// Nothing was enqueued for a denied request.
	assert.Empty(t, svc.reflinkSvc.usageCh)
}
