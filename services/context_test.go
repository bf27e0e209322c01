package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
	"github.com/folio-gate/gate_api/shared"
)

func newContextService(t *testing.T) *ContextService {
	contentSvc := &ContentService{repo: repositories.NewContentRepository(newTestDB(t))}

	svc := &ContextService{
		contentSvc: contentSvc,
		estimator:  shared.CharEstimator{},
		cache:      shared.NewTTLCache[dto.FilteredContext](time.Minute, 0),
		cacheTTL:   time.Minute,
	}
	return svc
}

func seedContent(t *testing.T, svc *ContextService, source *model.ContentSource) {
	t.Helper()
	require.NoError(t, svc.contentSvc.repo.Create(source))
}

func TestScoreRelevance(t *testing.T) {
	svc := newContextService(t)

	source := &model.ContentSource{
		Title:    "Distributed Cache",
		Summary:  "A sharded in-memory cache",
		Keywords: "go,caching,performance",
		Content:  "Built a consistent-hashing cache cluster.",
	}

	score := svc.ScoreRelevance("tell me about the cache cluster", source)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	assert.Equal(t, 1.0, svc.ScoreRelevance("cache", source))
	assert.Equal(t, 0.0, svc.ScoreRelevance("quantum basketweaving", source))
	assert.Equal(t, 0.0, svc.ScoreRelevance("", source))
}

func TestPrioritizeContentTieBreak(t *testing.T) {
	svc := newContextService(t)

	items := []dto.RelevantContent{
		{ID: "p", Type: shared.ContentProject, Title: "Project X", RelevanceScore: 0.5},
		{ID: "a", Type: shared.ContentAbout, Title: "About Me", RelevanceScore: 0.5},
		{ID: "top", Type: shared.ContentProject, Title: "Project Y", RelevanceScore: 0.9},
	}

	svc.PrioritizeContent(items)

	assert.Equal(t, "top", items[0].ID)
	// Equal scores: background material sorts before projects.
	assert.Equal(t, "a", items[1].ID)
	assert.Equal(t, "p", items[2].ID)
}

func TestOptimizeContextSizeTrimsFromLeastRelevant(t *testing.T) {
	svc := newContextService(t)

	items := []dto.RelevantContent{
		{Type: shared.ContentAbout, Title: "A", Content: strings.Repeat("x", 400), RelevanceScore: 0.9},
		{Type: shared.ContentProject, Title: "B", Content: strings.Repeat("y", 400), RelevanceScore: 0.5},
		{Type: shared.ContentProject, Title: "C", Content: strings.Repeat("z", 400), RelevanceScore: 0.1},
	}

	budget := svc.estimator.Estimate(assemble(items[:2])) // room for two sections
	kept, text := svc.OptimizeContextSize(items, budget)

	assert.Len(t, kept, 2)
	assert.Equal(t, "A", kept[0].Title)
	assert.Equal(t, "B", kept[1].Title)
	assert.LessOrEqual(t, svc.estimator.Estimate(text), budget)
	assert.True(t, strings.HasPrefix(text, contextHeader))

	// Idempotent: a second pass within budget changes nothing.
	keptAgain, textAgain := svc.OptimizeContextSize(kept, budget)
	assert.Equal(t, kept, keptAgain)
	assert.Equal(t, text, textAgain)
}

func TestOptimizeContextSizeHeaderFloor(t *testing.T) {
	svc := newContextService(t)

	items := []dto.RelevantContent{
		{Type: shared.ContentProject, Title: "Huge", Content: strings.Repeat("w", 8000)},
	}

	kept, text := svc.OptimizeContextSize(items, 1)

	assert.Empty(t, kept)
	assert.Equal(t, contextHeader, text)
}

func TestBuildContextAccessLevels(t *testing.T) {
	svc := newContextService(t)
	seedContent(t, svc, &model.ContentSource{
		Type: shared.ContentAbout, Title: "About", Content: "I build infrastructure.", IsActive: true,
	})
	seedContent(t, svc, &model.ContentSource{
		Type: shared.ContentResume, Title: "Resume", Content: "Work history details.", IsActive: true,
	})

	basic, err := svc.BuildContext(context.Background(), "infrastructure", shared.AccessBasic, 1000)
	require.NoError(t, err)
	assert.Contains(t, basic.PublicContext, "About")
	assert.Empty(t, basic.HiddenContext)

	premium, err := svc.BuildContext(context.Background(), "infrastructure", shared.AccessPremium, 4000)
	require.NoError(t, err)
	assert.Contains(t, premium.PublicContext, "About")
	assert.Contains(t, premium.HiddenContext, "Resume")
	assert.Greater(t, premium.TokenCount, basic.TokenCount)
}

func TestBuildContextZeroBudget(t *testing.T) {
	svc := newContextService(t)

	result, err := svc.BuildContext(context.Background(), "anything", shared.AccessNone, 0)
	require.NoError(t, err)
	assert.Empty(t, result.PublicContext)
	assert.Zero(t, result.TokenCount)
}

func TestBuildContextWithCacheHitIsIdentical(t *testing.T) {
	svc := newContextService(t)
	seedContent(t, svc, &model.ContentSource{
		Type: shared.ContentProject, Title: "Gateway", Content: "An API gateway project.", IsActive: true,
	})

	first, err := svc.BuildContextWithCache(context.Background(), "sess-1", "gateway", shared.AccessBasic, 1000)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := svc.BuildContextWithCache(context.Background(), "sess-1", "gateway", shared.AccessBasic, 1000)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.PublicContext, second.PublicContext)
	assert.Equal(t, first.TokenCount, second.TokenCount)

	// Different query: separate entry.
	other, err := svc.BuildContextWithCache(context.Background(), "sess-1", "something else", shared.AccessBasic, 1000)
	require.NoError(t, err)
	assert.False(t, other.FromCache)
}

func TestBuildContextWithCacheCanceledNotCached(t *testing.T) {
	svc := newContextService(t)
	seedContent(t, svc, &model.ContentSource{
		Type: shared.ContentAbout, Title: "About", Content: "Background.", IsActive: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.BuildContextWithCache(ctx, "sess-2", "background", shared.AccessBasic, 1000)
	assert.Error(t, err)

	info := svc.CacheInfo()
	assert.Zero(t, info.CacheSize)
}

func TestInvalidateSession(t *testing.T) {
	svc := newContextService(t)
	seedContent(t, svc, &model.ContentSource{
		Type: shared.ContentAbout, Title: "About", Content: "Background.", IsActive: true,
	})

	_, err := svc.BuildContextWithCache(context.Background(), "sess-a", "q1", shared.AccessBasic, 1000)
	require.NoError(t, err)
	_, err = svc.BuildContextWithCache(context.Background(), "sess-a", "q2", shared.AccessBasic, 1000)
	require.NoError(t, err)
	_, err = svc.BuildContextWithCache(context.Background(), "sess-b", "q1", shared.AccessBasic, 1000)
	require.NoError(t, err)

	info := svc.CacheInfo()
	assert.Equal(t, 3, info.CacheSize)
	assert.Equal(t, 2, info.ActiveSessions)
	assert.Greater(t, info.TotalTokensCached, int64(0))

	removed := svc.InvalidateSession("sess-a")
	assert.Equal(t, 2, removed)

	info = svc.CacheInfo()
	assert.Equal(t, 1, info.CacheSize)
	assert.Equal(t, 1, info.ActiveSessions)
}
