package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/shared"
)

// ContextService assembles the text context handed to the assistant: gather
// active content, rank it against the caller's query, and trim the result to
// a token budget. Assembled blobs are cached per session+query so repeated
// turns in a conversation do not rebuild identical context.
type ContextService struct {
	appContext.DefaultService

	contentSvc *ContentService
	estimator  shared.TokenEstimator

	cache    *shared.TTLCache[dto.FilteredContext]
	cacheTTL time.Duration
}

const CONTEXT_SVC = "context_svc"

// contextHeader opens every assembled context. It survives trimming so the
// assistant always knows what it is looking at, even when the budget is tiny.
const contextHeader = "# Site Context\n" +
	"The following sections describe the site owner's work and background.\n"

// Hidden context is assembled from these source types and only surfaced to
// premium sessions.
var hiddenContentTypes = map[string]bool{
	shared.ContentProfile: true,
	shared.ContentResume:  true,
}

func (svc ContextService) Id() string {
	return CONTEXT_SVC
}

func (svc *ContextService) Configure(ctx *appContext.Context) error {
	ttlMinutes := 10.0
	if raw := os.Getenv("CONTEXT_CACHE_TTL_MINUTES"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			ttlMinutes = parsed
		}
	}
	svc.cacheTTL = time.Duration(ttlMinutes * float64(time.Minute))

	svc.estimator = shared.CharEstimator{}
	svc.cache = shared.NewTTLCache[dto.FilteredContext](svc.cacheTTL, 5*time.Minute)

	return svc.DefaultService.Configure(ctx)
}

func (svc *ContextService) Start() error {
	svc.contentSvc = svc.Service(CONTENT_SVC).(*ContentService)
	return nil
}

func (svc *ContextService) Shutdown() {
	svc.cache.Stop()
}

// ==================== SCORING ====================

// ScoreRelevance measures term overlap between the query and a source: the
// fraction of distinct query terms that appear anywhere in the source text.
// Always in [0,1]; an empty query scores everything 0.
func (svc *ContextService) ScoreRelevance(query string, source *model.ContentSource) float64 {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return 0
	}

	haystack := strings.ToLower(strings.Join([]string{
		source.Title,
		source.Summary,
		source.Keywords,
		source.Content,
	}, " "))

	matched := 0
	for term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}

	return float64(matched) / float64(len(terms))
}

func queryTerms(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(query)) {
		term := strings.Trim(field, ".,;:!?\"'()")
		if len(term) >= 2 {
			terms[term] = true
		}
	}
	return terms
}

// typeRank orders source types for tie-breaking: background material comes
// before individual projects when scores are equal.
func typeRank(sourceType string) int {
	switch sourceType {
	case shared.ContentAbout:
		return 0
	case shared.ContentProfile:
		return 1
	case shared.ContentResume:
		return 2
	case shared.ContentProject:
		return 3
	default:
		return 4
	}
}

// PrioritizeContent sorts ranked content most-relevant first. Ties fall back
// to type rank, then to the source's own priority.
func (svc *ContextService) PrioritizeContent(items []dto.RelevantContent) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].RelevanceScore != items[j].RelevanceScore {
			return items[i].RelevanceScore > items[j].RelevanceScore
		}
		if typeRank(items[i].Type) != typeRank(items[j].Type) {
			return typeRank(items[i].Type) < typeRank(items[j].Type)
		}
		return items[i].Priority > items[j].Priority
	})
}

// ==================== ASSEMBLY ====================

func renderSection(item *dto.RelevantContent) string {
	body := item.Content
	if body == "" {
		body = item.Summary
	}
	return fmt.Sprintf("\n## %s (%s)\n%s\n", item.Title, item.Type, body)
}

func assemble(items []dto.RelevantContent) string {
	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i := range items {
		sb.WriteString(renderSection(&items[i]))
	}
	return sb.String()
}

// OptimizeContextSize drops items from the least-relevant end until the
// assembled text fits the budget. The header is never dropped, so the floor
// is a header-only context. Items already within budget pass through
// untouched, applying the trim twice changes nothing.
func (svc *ContextService) OptimizeContextSize(items []dto.RelevantContent, maxTokens int) ([]dto.RelevantContent, string) {
	text := assemble(items)
	for len(items) > 0 && svc.estimator.Estimate(text) > maxTokens {
		items = items[:len(items)-1]
		text = assemble(items)
	}
	return items, text
}

// BuildContext runs the full pipeline: gather, score, prioritize, assemble,
// trim. maxTokens <= 0 yields an empty context without touching storage.
func (svc *ContextService) BuildContext(ctx context.Context, query, accessLevel string, maxTokens int) (*dto.FilteredContext, error) {
	if maxTokens <= 0 {
		return &dto.FilteredContext{AccessLevel: accessLevel}, nil
	}

	sources, err := svc.contentSvc.GetActiveSources(ctx, nil)
	if err != nil {
		// Degrade to the header-only floor rather than failing the request.
		log.WithError(err).Warn("Content sources unavailable, serving header-only context")
		return &dto.FilteredContext{
			PublicContext: contextHeader,
			AccessLevel:   accessLevel,
			TokenCount:    svc.estimator.Estimate(contextHeader),
		}, nil
	}

	var public, hidden []dto.RelevantContent
	for i := range sources {
		item := dto.RelevantContent{
			ID:             sources[i].ID,
			Type:           sources[i].Type,
			Title:          sources[i].Title,
			Content:        sources[i].Content,
			Summary:        sources[i].Summary,
			RelevanceScore: svc.ScoreRelevance(query, &sources[i]),
			Priority:       sources[i].Priority,
		}

		if hiddenContentTypes[item.Type] {
			hidden = append(hidden, item)
		} else {
			public = append(public, item)
		}
	}

	svc.PrioritizeContent(public)
	svc.PrioritizeContent(hidden)

	publicItems, publicText := svc.OptimizeContextSize(public, maxTokens)

	result := &dto.FilteredContext{
		PublicContext:   publicText,
		RelevantContent: publicItems,
		AccessLevel:     accessLevel,
	}

	if accessLevel == shared.AccessPremium && len(hidden) > 0 {
		hiddenItems, hiddenText := svc.OptimizeContextSize(hidden, maxTokens)
		result.HiddenContext = hiddenText
		result.RelevantContent = append(result.RelevantContent, hiddenItems...)
	}

	for i := range result.RelevantContent {
		result.ContextSources = append(result.ContextSources, dto.ContextSourceInfo{
			ID:    result.RelevantContent[i].ID,
			Type:  result.RelevantContent[i].Type,
			Title: result.RelevantContent[i].Title,
		})
	}

	result.TokenCount = svc.estimator.Estimate(result.PublicContext) +
		svc.estimator.Estimate(result.HiddenContext)

	return result, nil
}

// ==================== CACHING ====================

// BuildContextWithCache returns a cached context when the same session asked
// an equivalent question within the TTL, byte-identical text with
// FromCache set. Canceled builds are never cached.
func (svc *ContextService) BuildContextWithCache(ctx context.Context, sessionID, query, accessLevel string, maxTokens int) (*dto.FilteredContext, error) {
	key := contextCacheKey(sessionID, query, accessLevel, maxTokens)

	if cached, ok := svc.cache.Get(key); ok {
		cached.FromCache = true
		return &cached, nil
	}

	result, err := svc.BuildContext(ctx, query, accessLevel, maxTokens)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	svc.cache.Set(key, *result, 0)
	return result, nil
}

func contextCacheKey(sessionID, query, accessLevel string, maxTokens int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", query, accessLevel, maxTokens)))
	return fmt.Sprintf("%s:%s", sessionID, hex.EncodeToString(sum[:8]))
}

// ==================== CACHE ADMIN ====================

func (svc *ContextService) CacheStats() shared.CacheStats {
	return svc.cache.GetStats()
}

// CacheInfo summarizes what the context cache is holding right now.
func (svc *ContextService) CacheInfo() *dto.ContextCacheInfo {
	items := svc.cache.Items()

	sessions := make(map[string]bool)
	var totalTokens int64
	for key, item := range items {
		if idx := strings.LastIndex(key, ":"); idx > 0 {
			sessions[key[:idx]] = true
		}
		totalTokens += int64(item.TokenCount)
	}

	return &dto.ContextCacheInfo{
		CacheSize:         len(items),
		ActiveSessions:    len(sessions),
		TotalTokensCached: totalTokens,
	}
}

// InvalidateSession drops every cached context for one session. Returns the
// number of entries removed.
func (svc *ContextService) InvalidateSession(sessionID string) int {
	prefix := sessionID + ":"
	removed := 0
	for _, key := range svc.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			svc.cache.Delete(key)
			removed++
		}
	}
	return removed
}

// InvalidateAll flushes the cache but keeps the hit/miss counters.
func (svc *ContextService) InvalidateAll() {
	svc.cache.ForceRefresh()
}
