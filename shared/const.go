package shared

const (
	UserID    = "user_id"
	SessionID = "session_id"

	// Identifier types for rate limiting
	IdentifierIP      = "ip"
	IdentifierSession = "session"
	IdentifierReflink = "reflink"

	// Reflink tiers
	TierBasic     = "BASIC"
	TierStandard  = "STANDARD"
	TierPremium   = "PREMIUM"
	TierUnlimited = "UNLIMITED"

	// Access levels resolved by the context injector
	AccessNone    = "no_access"
	AccessBasic   = "basic"
	AccessLimited = "limited"
	AccessPremium = "premium"

	// Machine-readable denial reasons
	ReasonIPBlacklisted     = "IP_BLACKLISTED"
	ReasonSecurityViolation = "SECURITY_VIOLATION"
	ReasonRateLimited       = "RATE_LIMITED"
	ReasonNotFound          = "not_found"
	ReasonExpired           = "expired"
	ReasonInactive          = "inactive"
	ReasonBudgetExhausted   = "budget_exhausted"

	// Blacklist violation reasons
	ViolationRateLimitAbuse     = "rate_limit_abuse"
	ViolationSecurity           = "security_violation"
	ViolationManualBlock        = "manual_block"
	ViolationSuspiciousActivity = "suspicious_activity"

	// Usage event types
	UsageLLMRequest      = "llm_request"
	UsageVoiceGeneration = "voice_generation"
	UsageVoiceProcessing = "voice_processing"

	// Content source types
	ContentProject = "project"
	ContentAbout   = "about"
	ContentProfile = "profile"
	ContentResume  = "resume"
)

// UnlimitedRequests is the sentinel daily limit that bypasses quota checks.
const UnlimitedRequests = -1

// TierDailyLimits maps each tier to its daily request quota.
var TierDailyLimits = map[string]int{
	TierBasic:     10,
	TierStandard:  50,
	TierPremium:   200,
	TierUnlimited: UnlimitedRequests,
}
