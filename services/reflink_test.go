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

func newReflinkService(t *testing.T) *ReflinkService {
	return &ReflinkService{
		repo:              repositories.NewReflinkRepository(newTestDB(t)),
		avgCostPerRequest: 0.01,
	}
}

func seedReflink(t *testing.T, svc *ReflinkService, reflink *model.Reflink) *model.Reflink {
	t.Helper()
	require.NoError(t, svc.repo.Create(reflink))
	return reflink
}

func TestValidateWithBudgetUnknownCode(t *testing.T) {
	svc := newReflinkService(t)

	validation, err := svc.ValidateWithBudget("no-such-code")
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Equal(t, shared.ReasonNotFound, validation.Reason)
}

func TestValidateWithBudgetCheckOrder(t *testing.T) {
	svc := newReflinkService(t)

	// Expired AND inactive AND exhausted: expiry wins, it is checked first.
	past := time.Now().Add(-time.Hour)
	spendLimit := 10.0
	seedReflink(t, svc, &model.Reflink{
		Code:       "stale-link",
		Tier:       shared.TierStandard,
		DailyLimit: 50,
		ExpiresAt:  &past,
		IsActive:   false,
		SpendLimit: &spendLimit,
		SpendUsed:  10.0,
	})

	validation, err := svc.ValidateWithBudget("stale-link")
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Equal(t, shared.ReasonExpired, validation.Reason)
}

func TestValidateWithBudgetInactive(t *testing.T) {
	svc := newReflinkService(t)
	seedReflink(t, svc, &model.Reflink{
		Code:       "switched-off",
		Tier:       shared.TierStandard,
		DailyLimit: 50,
		IsActive:   false,
	})

	validation, err := svc.ValidateWithBudget("switched-off")
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Equal(t, shared.ReasonInactive, validation.Reason)
}

func TestValidateWithBudgetHealthyLink(t *testing.T) {
	svc := newReflinkService(t)
	tokenLimit := int64(10000)
	spendLimit := 50.0
	seedReflink(t, svc, &model.Reflink{
		Code:       "friend-pass",
		Tier:       shared.TierPremium,
		DailyLimit: 200,
		IsActive:   true,
		TokenLimit: &tokenLimit,
		SpendLimit: &spendLimit,
		TokensUsed: 4000,
		SpendUsed:  20.0,
		VoiceAI:    true,
	})

	validation, err := svc.ValidateWithBudget("friend-pass")
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Reason)

	budget := validation.BudgetStatus
	require.NotNil(t, budget)
	assert.False(t, budget.IsExhausted)
	assert.Equal(t, int64(6000), *budget.TokensRemaining)
	assert.Equal(t, 30.0, *budget.SpendRemaining)
	// 30.0 remaining / 0.01 per request
	assert.Equal(t, 3000, *budget.EstimatedRequestsRemaining)
}

func TestExhaustionIsMonotonic(t *testing.T) {
	svc := newReflinkService(t)
	spendLimit := 50.0
	reflink := seedReflink(t, svc, &model.Reflink{
		Code:       "burner",
		Tier:       shared.TierStandard,
		DailyLimit: 50,
		IsActive:   true,
		SpendLimit: &spendLimit,
	})

	// A single event that spends the whole budget crosses the limit; the
	// triggering event itself lands.
	updated, err := svc.TrackUsage(&model.UsageEvent{
		ReflinkID: reflink.ID,
		Type:      shared.UsageLLMRequest,
		Tokens:    5000,
		Cost:      50.0,
	})
	require.NoError(t, err)
	assert.True(t, updated.Exhausted())
	assert.Equal(t, 50.0, updated.SpendUsed)

	validation, err := svc.ValidateWithBudget("burner")
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Equal(t, shared.ReasonBudgetExhausted, validation.Reason)
	assert.True(t, validation.BudgetStatus.IsExhausted)
	assert.Equal(t, 0.0, *validation.BudgetStatus.SpendRemaining)

	// Still exhausted on every later check, no flapping.
	validation, err = svc.ValidateWithBudget("burner")
	require.NoError(t, err)
	assert.Equal(t, shared.ReasonBudgetExhausted, validation.Reason)
}

func TestTrackUsageAccumulates(t *testing.T) {
	svc := newReflinkService(t)
	reflink := seedReflink(t, svc, &model.Reflink{
		Code:       "metered",
		Tier:       shared.TierStandard,
		DailyLimit: 50,
		IsActive:   true,
	})

	for i := 0; i < 3; i++ {
		_, err := svc.TrackUsage(&model.UsageEvent{
			ReflinkID: reflink.ID,
			Type:      shared.UsageLLMRequest,
			Tokens:    100,
			Cost:      0.5,
		})
		require.NoError(t, err)
	}

	updated, err := svc.repo.GetByID(reflink.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), updated.TokensUsed)
	assert.Equal(t, 1.5, updated.SpendUsed)
	assert.NotNil(t, updated.LastUsedAt)

	events, err := svc.repo.CountEvents(reflink.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), events)

	// Unmetered link is never exhausted.
	assert.False(t, updated.Exhausted())
}

func TestEnqueueUsageDropsWhenFull(t *testing.T) {
	svc := newReflinkService(t)
	svc.usageCh = make(chan *model.UsageEvent, 1)

	// No consumer running: the second enqueue must not block.
	svc.EnqueueUsage(&model.UsageEvent{ReflinkID: "a", Type: shared.UsageLLMRequest})
	svc.EnqueueUsage(&model.UsageEvent{ReflinkID: "b", Type: shared.UsageLLMRequest})

	assert.Len(t, svc.usageCh, 1)
}

func TestUsageConsumerDrainsOnShutdown(t *testing.T) {
	svc := newReflinkService(t)
	reflink := seedReflink(t, svc, &model.Reflink{
		Code:       "drained",
		Tier:       shared.TierStandard,
		DailyLimit: 50,
		IsActive:   true,
	})

	svc.usageCh = make(chan *model.UsageEvent, 8)
	svc.closed = make(chan struct{})
	svc.drained = make(chan struct{})
	go svc.consumeUsage()

	for i := 0; i < 4; i++ {
		svc.EnqueueUsage(&model.UsageEvent{
			ReflinkID: reflink.ID,
			Type:      shared.UsageLLMRequest,
			Tokens:    10,
			Cost:      0.1,
		})
	}

	svc.Shutdown()

	updated, err := svc.repo.GetByID(reflink.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), updated.TokensUsed)
}

func TestCreateReflinkGeneratesCode(t *testing.T) {
	svc := newReflinkService(t)

	reflink, err := svc.CreateReflink(dto.CreateReflinkRequest{Tier: shared.TierPremium})
	require.NoError(t, err)
	assert.Len(t, reflink.Code, 12)
	assert.Equal(t, shared.TierDailyLimits[shared.TierPremium], reflink.DailyLimit)
	assert.True(t, reflink.IsActive)
}

func TestCreateReflinkRejectsDuplicateCode(t *testing.T) {
	svc := newReflinkService(t)

	_, err := svc.CreateReflink(dto.CreateReflinkRequest{Code: "taken", Tier: shared.TierBasic})
	require.NoError(t, err)

	_, err = svc.CreateReflink(dto.CreateReflinkRequest{Code: "taken", Tier: shared.TierBasic})
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestDeactivateReflink(t *testing.T) {
	svc := newReflinkService(t)

	reflink, err := svc.CreateReflink(dto.CreateReflinkRequest{Tier: shared.TierStandard})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateReflink(reflink.ID))

	validation, err := svc.ValidateWithBudget(reflink.Code)
	require.NoError(t, err)
	assert.Equal(t, shared.ReasonInactive, validation.Reason)
}

func TestDeriveAccess(t *testing.T) {
	premium := &dto.ReflinkValidation{
		Valid: true,
		Reflink: &model.Reflink{
			Tier:        shared.TierPremium,
			VoiceAI:     true,
			JobAnalysis: true,
		},
	}

	level, caps := DeriveAccess(premium)
	assert.Equal(t, shared.AccessPremium, level)
	assert.True(t, caps.VoiceAI)
	assert.True(t, caps.JobAnalysis)
	assert.False(t, caps.AdvancedNavigation)

	level, caps = DeriveAccess(nil)
	assert.Equal(t, shared.AccessBasic, level)
	assert.Equal(t, dto.Capabilities{}, caps)

	exhausted := &dto.ReflinkValidation{Valid: false, Reason: shared.ReasonBudgetExhausted}
	level, _ = DeriveAccess(exhausted)
	assert.Equal(t, shared.AccessLimited, level)

	notFound := &dto.ReflinkValidation{Valid: false, Reason: shared.ReasonNotFound}
	level, _ = DeriveAccess(notFound)
	assert.Equal(t, shared.AccessBasic, level)
}
