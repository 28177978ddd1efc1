package api

// statusResponse acknowledges a state-changing request.
type statusResponse struct {
	Status string `json:"status"`
}

// errorResponse carries a client-facing error message.
type errorResponse struct {
	Error string `json:"error"`
}

// evaluateResponse reports a single on-demand rule evaluation.
type evaluateResponse struct {
	RuleID string `json:"rule_id"`
	Fired  bool   `json:"fired"`
}

// HealthResponse summarises engine state for GET /api/v1/health.
type HealthResponse struct {
	State        string `json:"state"`
	RuleCount    int    `json:"rule_count"`
	EnabledRules int    `json:"enabled_rules"`
	ActiveAlerts int    `json:"active_alerts"`
	ChannelCount int    `json:"channel_count"`
}
