package dto

// BlacklistCheck is the result of a pure blacklist read.
type BlacklistCheck struct {
	Blacklisted    bool   `json:"blacklisted"`
	Reason         string `json:"reason,omitempty"`
	ViolationCount int    `json:"violation_count,omitempty"`
}

type RecordViolationRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
	Reason    string `json:"reason" validate:"required,oneof=rate_limit_abuse security_violation manual_block suspicious_activity"`
	Metadata  string `json:"metadata"`
}

func (r RecordViolationRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ReinstateRequest struct {
	IPAddress    string `json:"ip_address" validate:"required,ip"`
	ReinstatedBy string `json:"reinstated_by" validate:"required,max=100"`
}

func (r ReinstateRequest) Validate() error {
	return GetValidator().Struct(r)
}
