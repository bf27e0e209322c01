package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/shared"
)

type stubGateService struct {
	decision *dto.AccessDecision
	filtered *dto.FilteredContext
}

func (s *stubGateService) ValidateAndFilter(sessionID, reflinkCode, ip string) (*dto.AccessDecision, error) {
	return s.decision, nil
}

func (s *stubGateService) LoadFilteredContext(ctx context.Context, req dto.LoadContextRequest, ip string) (*dto.FilteredContext, *dto.AccessDecision, error) {
	return s.filtered, s.decision, nil
}

type stubAIStatusService struct{}

func (stubAIStatusService) GetStatus() *dto.AIStatus {
	return &dto.AIStatus{Configured: true, Connected: true}
}

func (stubAIStatusService) ForceRefresh() {}

func newGateApp(decision *dto.AccessDecision, filtered *dto.FilteredContext) *fiber.App {
	h := NewGateHandler(&stubGateService{decision: decision, filtered: filtered}, stubAIStatusService{})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := shared.GetAppError(err); ok {
				return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
			}
			return shared.ResponseInternalError(c, err)
		},
	})
	app.Post("/validate", h.Validate)
	app.Post("/context", h.LoadContext)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestValidateStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		decision   *dto.AccessDecision
		wantStatus int
	}{
		{"granted", &dto.AccessDecision{Valid: true, AccessLevel: shared.AccessBasic}, fiber.StatusOK},
		{"unknown reflink", &dto.AccessDecision{Valid: false, AccessLevel: shared.AccessNone, Reason: shared.ReasonNotFound}, fiber.StatusForbidden},
		{"expired reflink", &dto.AccessDecision{Valid: false, AccessLevel: shared.AccessNone, Reason: shared.ReasonExpired}, fiber.StatusForbidden},
		{"inactive reflink", &dto.AccessDecision{Valid: false, AccessLevel: shared.AccessNone, Reason: shared.ReasonInactive}, fiber.StatusForbidden},
		{"blacklisted ip", &dto.AccessDecision{Valid: false, AccessLevel: shared.AccessNone, Reason: shared.ReasonIPBlacklisted}, fiber.StatusForbidden},
		{"security violation", &dto.AccessDecision{Valid: false, AccessLevel: shared.AccessNone, Reason: shared.ReasonSecurityViolation}, fiber.StatusForbidden},
		{"rate limited", &dto.AccessDecision{Valid: false, AccessLevel: shared.AccessNone, Reason: shared.ReasonRateLimited}, fiber.StatusTooManyRequests},
		// An exhausted budget downgrades the session instead of denying it.
		{"budget exhausted", &dto.AccessDecision{Valid: true, AccessLevel: shared.AccessLimited, Reason: shared.ReasonBudgetExhausted}, fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newGateApp(tc.decision, nil)

			resp := postJSON(t, app, "/validate", dto.ValidateContextRequest{SessionID: "sess-1"})
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestValidateRateLimitedSetsRetryAfter(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)
	decision := &dto.AccessDecision{
		Valid:       false,
		AccessLevel: shared.AccessNone,
		Reason:      shared.ReasonRateLimited,
		RateLimit: &dto.RateLimitStatus{
			Tier:              shared.TierBasic,
			Limit:             50,
			RequestsRemaining: 0,
			ResetTime:         &reset,
			RetryAfterSeconds: 30,
		},
	}

	app := newGateApp(decision, nil)
	resp := postJSON(t, app, "/validate", dto.ValidateContextRequest{SessionID: "sess-1"})

	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "50", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestLoadContextDeniedDecisionKeepsStatusMapping(t *testing.T) {
	decision := &dto.AccessDecision{Valid: false, AccessLevel: shared.AccessNone, Reason: shared.ReasonExpired}

	app := newGateApp(decision, nil)
	resp := postJSON(t, app, "/context", dto.LoadContextRequest{
		SessionID: "sess-1",
		Query:     "what did you ship last year",
	})

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLoadContextGrantedReturnsFilteredContext(t *testing.T) {
	decision := &dto.AccessDecision{Valid: true, AccessLevel: shared.AccessPremium}
	filtered := &dto.FilteredContext{AccessLevel: shared.AccessPremium, PublicContext: "## Profile"}

	app := newGateApp(decision, filtered)
	resp := postJSON(t, app, "/context", dto.LoadContextRequest{
		SessionID: "sess-1",
		Query:     "what did you ship last year",
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Data dto.FilteredContext `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, shared.AccessPremium, envelope.Data.AccessLevel)
}
