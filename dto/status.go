package dto

// AIStatus reports the upstream AI provider health probe result.
type AIStatus struct {
	Configured bool     `json:"configured"`
	Connected  bool     `json:"connected"`
	Models     []string `json:"models,omitempty"`
	Error      string   `json:"error,omitempty"`
}
