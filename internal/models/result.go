package models

// Result is the uniform outcome shape every service operation resolves to.
// Failures are always expressed here; services never let errors escape.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UserResult is a Result carrying the affected user profile
type UserResult struct {
	Result
	User *User `json:"user,omitempty"`
}

// AuthResult is a Result carrying the authenticated user and session token
type AuthResult struct {
	Result
	User      *User  `json:"user,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"` // seconds
}

// RecordResult is a Result carrying the affected data record
type RecordResult struct {
	Result
	Record *DataRecord `json:"record,omitempty"`
}

// HealthStats reports row counts observed by the database probe
type HealthStats struct {
	Users       int `json:"users"`
	DataRecords int `json:"data_records"`
}

// HealthResult is the outcome of the backend health probe
type HealthResult struct {
	Result
	Stats     *HealthStats `json:"stats,omitempty"`
	LatencyMs int64        `json:"latency_ms"`
	Detail    string       `json:"detail,omitempty"`
	CheckedAt string       `json:"checked_at"`
}

// NetworkSnapshot reports local connectivity as seen from this process
type NetworkSnapshot struct {
	Online    bool   `json:"online"`
	ProbeAddr string `json:"probe_addr"`
	RTTMs     int64  `json:"rtt_ms"`
	Detail    string `json:"detail,omitempty"`
	CheckedAt string `json:"checked_at"`
}

// Ok builds a successful Result with the given message
func Ok(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail builds a failed Result with the given message
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}
