package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
	"github.com/folio-gate/gate_api/shared"
)

func dtoConfigUpdate(limit int, window string, active *bool) dto.RateLimitConfigUpdateRequest {
	return dto.RateLimitConfigUpdateRequest{DailyLimit: limit, WindowSize: window, IsActive: active}
}

func newRateLimitService(t *testing.T) *RateLimitService {
	svc := &RateLimitService{
		windowSize: 24 * time.Hour,
		repo:       repositories.NewRateLimitRepository(newTestDB(t)),
	}
	svc.initDefaultConfigs()
	return svc
}

func TestCheckRateLimitEnforcesQuota(t *testing.T) {
	svc := newRateLimitService(t)
	svc.configs[shared.TierBasic].DailyLimit = 3

	for i := 1; i <= 3; i++ {
		allowed, status, err := svc.CheckRateLimit("203.0.113.7", shared.IdentifierIP, "gate", shared.TierBasic)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i)
		assert.Equal(t, 3-i, status.RequestsRemaining)
	}

	allowed, status, err := svc.CheckRateLimit("203.0.113.7", shared.IdentifierIP, "gate", shared.TierBasic)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, status.RequestsRemaining)
	assert.GreaterOrEqual(t, status.RetryAfterSeconds, 1)
	assert.NotNil(t, status.ResetTime)
}

func TestCheckRateLimitIsolatesIdentifiers(t *testing.T) {
	svc := newRateLimitService(t)
	svc.configs[shared.TierBasic].DailyLimit = 1

	allowed, _, err := svc.CheckRateLimit("a", shared.IdentifierSession, "gate", shared.TierBasic)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = svc.CheckRateLimit("a", shared.IdentifierSession, "gate", shared.TierBasic)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Same value, different type: separate bucket.
	allowed, _, err = svc.CheckRateLimit("a", shared.IdentifierIP, "gate", shared.TierBasic)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimitExpiredWindowResets(t *testing.T) {
	svc := newRateLimitService(t)
	svc.configs[shared.TierBasic].DailyLimit = 5

	// Seed an exhausted window that ended an hour ago.
	stale := &model.RateLimit{
		Identifier:     "sess-1",
		IdentifierType: shared.IdentifierSession,
		Endpoint:       "gate",
		Tier:           shared.TierBasic,
		RequestCount:   5,
		WindowStart:    time.Now().Add(-25 * time.Hour),
		WindowEnd:      time.Now().Add(-1 * time.Hour),
	}
	require.NoError(t, svc.repo.Save(stale))

	allowed, status, err := svc.CheckRateLimit("sess-1", shared.IdentifierSession, "gate", shared.TierBasic)
	require.NoError(t, err)
	assert.True(t, allowed)
	// Fresh window: this request is its first, nothing carried over.
	assert.Equal(t, 4, status.RequestsRemaining)
	assert.True(t, status.ResetTime.After(time.Now()))
}

func TestCheckRateLimitUnlimitedTier(t *testing.T) {
	svc := newRateLimitService(t)

	for i := 0; i < 50; i++ {
		allowed, status, err := svc.CheckRateLimit("vip", shared.IdentifierReflink, "gate", shared.TierUnlimited)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, shared.UnlimitedRequests, status.RequestsRemaining)
	}
}

func TestCheckRateLimitUnknownTierFallsBackToBasic(t *testing.T) {
	svc := newRateLimitService(t)

	_, status, err := svc.CheckRateLimit("x", shared.IdentifierIP, "gate", "GOLD")
	require.NoError(t, err)
	assert.Equal(t, shared.TierBasic, status.Tier)
	assert.Equal(t, shared.TierDailyLimits[shared.TierBasic], status.Limit)
}

func TestResetRateLimit(t *testing.T) {
	svc := newRateLimitService(t)
	svc.configs[shared.TierBasic].DailyLimit = 1

	allowed, _, err := svc.CheckRateLimit("sess-2", shared.IdentifierSession, "gate", shared.TierBasic)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _ = svc.CheckRateLimit("sess-2", shared.IdentifierSession, "gate", shared.TierBasic)
	assert.False(t, allowed)

	require.NoError(t, svc.ResetRateLimit("sess-2", shared.IdentifierSession))

	allowed, _, err = svc.CheckRateLimit("sess-2", shared.IdentifierSession, "gate", shared.TierBasic)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestOpenOrIncrementWindowCollapsesDuplicateIdentity(t *testing.T) {
	svc := newRateLimitService(t)
	now := time.Now()

	// Two checks racing on a cold identity each try to insert a first
	// window. The unique identity index must collapse them into one row that
	// has counted both requests, not two half-quota rows.
	first := &model.RateLimit{
		Identifier:     "203.0.113.9",
		IdentifierType: shared.IdentifierIP,
		Endpoint:       "gate",
		Tier:           shared.TierBasic,
		RequestCount:   1,
		WindowStart:    now,
		WindowEnd:      now.Add(24 * time.Hour),
	}
	second := &model.RateLimit{
		Identifier:     "203.0.113.9",
		IdentifierType: shared.IdentifierIP,
		Endpoint:       "gate",
		Tier:           shared.TierBasic,
		RequestCount:   1,
		WindowStart:    now.Add(time.Second),
		WindowEnd:      now.Add(24*time.Hour + time.Second),
	}

	row, err := svc.repo.OpenOrIncrementWindow(first, now)
	require.NoError(t, err)
	assert.Equal(t, 1, row.RequestCount)

	row, err = svc.repo.OpenOrIncrementWindow(second, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, row.RequestCount)
	// The live window keeps its original bounds, the loser's are discarded.
	assert.WithinDuration(t, first.WindowEnd, row.WindowEnd, time.Millisecond)

	total, err := svc.repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestOpenOrIncrementWindowResetsExpired(t *testing.T) {
	svc := newRateLimitService(t)
	now := time.Now()

	stale := &model.RateLimit{
		Identifier:     "sess-9",
		IdentifierType: shared.IdentifierSession,
		Tier:           shared.TierBasic,
		RequestCount:   7,
		WindowStart:    now.Add(-25 * time.Hour),
		WindowEnd:      now.Add(-1 * time.Hour),
	}
	require.NoError(t, svc.repo.Save(stale))

	fresh := &model.RateLimit{
		Identifier:     "sess-9",
		IdentifierType: shared.IdentifierSession,
		Tier:           shared.TierBasic,
		RequestCount:   1,
		WindowStart:    now,
		WindowEnd:      now.Add(24 * time.Hour),
	}

	row, err := svc.repo.OpenOrIncrementWindow(fresh, now)
	require.NoError(t, err)
	assert.Equal(t, 1, row.RequestCount)
	assert.True(t, row.WindowEnd.After(now))

	total, err := svc.repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestUpdateTierConfig(t *testing.T) {
	svc := newRateLimitService(t)

	isActive := false
	config, err := svc.UpdateTierConfig(shared.TierStandard, dtoConfigUpdate(100, "1h", &isActive))
	require.NoError(t, err)
	assert.Equal(t, 100, config.DailyLimit)
	assert.Equal(t, "1h0m0s", config.WindowSize)
	assert.False(t, config.IsActive)

	// Inactive tier falls back to BASIC on lookup.
	fallback := svc.tierConfig(shared.TierStandard)
	assert.Equal(t, shared.TierBasic, fallback.Tier)

	_, err = svc.UpdateTierConfig("GOLD", dtoConfigUpdate(10, "", nil))
	assert.Error(t, err)
}

func TestUpdateTierConfigSurvivesRestart(t *testing.T) {
	svc := newRateLimitService(t)

	_, err := svc.UpdateTierConfig(shared.TierStandard, dtoConfigUpdate(75, "1h", nil))
	require.NoError(t, err)

	// A second service on the same database stands in for a restarted
	// process: defaults first, stored overrides on top.
	restarted := &RateLimitService{
		windowSize: 24 * time.Hour,
		repo:       svc.repo,
	}
	restarted.initDefaultConfigs()
	require.NoError(t, restarted.loadPersistedConfigs())

	config := restarted.tierConfig(shared.TierStandard)
	assert.Equal(t, 75, config.DailyLimit)
	assert.Equal(t, time.Hour, config.WindowSize)
	assert.True(t, config.IsActive)

	// Untouched tiers keep their defaults.
	basic := restarted.tierConfig(shared.TierBasic)
	assert.Equal(t, shared.TierDailyLimits[shared.TierBasic], basic.DailyLimit)
}

func TestCleanupOldRecords(t *testing.T) {
	svc := newRateLimitService(t)

	old := &model.RateLimit{
		Identifier:     "stale",
		IdentifierType: shared.IdentifierIP,
		Tier:           shared.TierBasic,
		RequestCount:   1,
		WindowStart:    time.Now().Add(-72 * time.Hour),
		WindowEnd:      time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, svc.repo.Save(old))

	require.NoError(t, svc.CleanupOldRecords())

	record, err := svc.repo.Get("stale", shared.IdentifierIP)
	require.NoError(t, err)
	assert.Nil(t, record)
}
