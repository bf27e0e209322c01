package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/shared"
)

// AIStatusService probes the upstream AI provider so the frontend can show
// whether the assistant is usable before the visitor types anything. Probe
// results are cached; a provider outage should not translate into a probe
// per page load.
type AIStatusService struct {
	appContext.DefaultService

	httpClient *http.Client
	baseURL    string
	apiKey     string

	cache *shared.TTLCache[dto.AIStatus]
}

const AI_STATUS_SVC = "ai_status_svc"

const statusCacheKey = "provider"

func (svc AIStatusService) Id() string {
	return AI_STATUS_SVC
}

func (svc *AIStatusService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 10 * time.Second,
	}

	svc.baseURL = os.Getenv("AI_PROVIDER_URL")
	svc.apiKey = os.Getenv("AI_PROVIDER_API_KEY")

	ttlMinutes := 5.0
	if raw := os.Getenv("STATUS_CACHE_TTL_MINUTES"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			ttlMinutes = parsed
		}
	}

	svc.cache = shared.NewTTLCache[dto.AIStatus](time.Duration(ttlMinutes*float64(time.Minute)), 0)
	return svc.DefaultService.Configure(ctx)
}

func (svc *AIStatusService) Start() error {
	return nil
}

// GetStatus returns the provider health, probing at most once per cache TTL.
func (svc *AIStatusService) GetStatus() *dto.AIStatus {
	if cached, ok := svc.cache.Get(statusCacheKey); ok {
		return &cached
	}

	status := svc.probe()
	svc.cache.Set(statusCacheKey, *status, 0)
	return status
}

// ForceRefresh drops the cached probe so the next GetStatus hits the
// provider again.
func (svc *AIStatusService) ForceRefresh() {
	svc.cache.ForceRefresh()
}

func (svc *AIStatusService) probe() *dto.AIStatus {
	if svc.baseURL == "" || svc.apiKey == "" {
		return &dto.AIStatus{Configured: false}
	}

	status := &dto.AIStatus{Configured: true}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/models", svc.baseURL), nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	req.Header.Set("Authorization", "Bearer "+svc.apiKey)

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("AI provider probe failed")
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("AI provider probe returned non-200 status")
		status.Error = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		return status
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.WithError(err).Warn("Failed to decode AI provider response")
		status.Error = err.Error()
		return status
	}

	status.Connected = true
	for _, m := range result.Data {
		status.Models = append(status.Models, m.ID)
	}

	return status
}
