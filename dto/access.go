package dto

// Capabilities are the feature flags a session is granted after gating.
type Capabilities struct {
	VoiceAI            bool `json:"voice_ai"`
	JobAnalysis        bool `json:"job_analysis"`
	AdvancedNavigation bool `json:"advanced_navigation"`
}

type ValidateContextRequest struct {
	SessionID   string `json:"session_id" validate:"required,max=128"`
	ReflinkCode string `json:"reflink_code" validate:"omitempty,reflink_code"`
}

func (r ValidateContextRequest) Validate() error {
	return GetValidator().Struct(r)
}

// AccessDecision is the outcome of the gated validation path. Reason carries
// a machine-readable code for every non-valid outcome and Message a
// user-displayable explanation.
type AccessDecision struct {
	Valid          bool             `json:"valid"`
	AccessLevel    string           `json:"access_level"`
	Capabilities   Capabilities     `json:"capabilities"`
	WelcomeMessage string           `json:"welcome_message,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Message        string           `json:"message,omitempty"`
	RateLimit      *RateLimitStatus `json:"rate_limit,omitempty"`
}

type LoadContextRequest struct {
	SessionID   string `json:"session_id" validate:"required,max=128"`
	Query       string `json:"query" validate:"required,max=2000"`
	ReflinkCode string `json:"reflink_code" validate:"omitempty,reflink_code"`
	MaxTokens   int    `json:"max_tokens" validate:"omitempty,gte=1"`
}

func (r LoadContextRequest) Validate() error {
	return GetValidator().Struct(r)
}

// RelevantContent is a ranked slice of a content source, scored against the
// caller's query.
type RelevantContent struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	Summary        string  `json:"summary,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	Priority       int     `json:"priority"`
}

type ContextSourceInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// FilteredContext is the assembled, budget-trimmed context for a session.
// HiddenContext is only populated for premium access.
type FilteredContext struct {
	PublicContext   string              `json:"public_context"`
	HiddenContext   string              `json:"hidden_context,omitempty"`
	ContextSources  []ContextSourceInfo `json:"context_sources"`
	RelevantContent []RelevantContent   `json:"relevant_content"`
	AccessLevel     string              `json:"access_level"`
	TokenCount      int                 `json:"token_count"`
	FromCache       bool                `json:"from_cache"`
}
