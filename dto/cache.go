package dto

// ContextCacheInfo is the admin view of the session context cache.
type ContextCacheInfo struct {
	CacheSize         int   `json:"cache_size"`
	ActiveSessions    int   `json:"active_sessions"`
	TotalTokensCached int64 `json:"total_tokens_cached"`
}
