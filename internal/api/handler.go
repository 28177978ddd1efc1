package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/flarewatch/flarewatch/internal/alerts"
	"github.com/flarewatch/flarewatch/internal/engine"
	"github.com/flarewatch/flarewatch/internal/event"
	"github.com/flarewatch/flarewatch/internal/rules"
)

// maxBodyBytes caps request bodies; events and rules are small.
const maxBodyBytes = 1 << 20

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	engine *engine.Engine
	mux    *http.ServeMux
}

// New creates a Handler wired to the given engine and registers all routes.
func New(eng *engine.Engine) http.Handler {
	h := &Handler{engine: eng, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/events", h.ingestEvent)
	h.mux.HandleFunc("/api/v1/rules", h.rulesCollection)
	h.mux.HandleFunc("/api/v1/rules/", h.ruleItem) // subtree — extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/alerts/", h.alertItem)
	h.mux.HandleFunc("/api/v1/channels", h.channelsCollection)
	h.mux.HandleFunc("/api/v1/channels/", h.channelItem)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- events -----------------------------------------------------------------

// ingestEvent handles POST /api/v1/events.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var ev event.TelemetryEvent
	if err := decodeBody(w, r, &ev); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if ev.Type == "" || ev.Name == "" {
		jsonErr(w, http.StatusBadRequest, "type and name are required")
		return
	}

	h.engine.ProcessEvent(r.Context(), ev)
	jsonResp(w, http.StatusAccepted, statusResponse{Status: "accepted"})
}

// --- rules ------------------------------------------------------------------

func (h *Handler) rulesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, h.engine.Rules())
	case http.MethodPost:
		var rule rules.AlertRule
		if err := decodeBody(w, r, &rule); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		added, err := h.engine.AddRule(rule)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonResp(w, http.StatusCreated, added)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) ruleItem(w http.ResponseWriter, r *http.Request) {
	id, action := splitPath(r.URL.Path, "/api/v1/rules/")
	if id == "" {
		h.rulesCollection(w, r)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rule, ok := h.engine.GetRule(id)
		if !ok {
			jsonErr(w, http.StatusNotFound, "rule not found")
			return
		}
		jsonResp(w, http.StatusOK, rule)

	case action == "" && r.Method == http.MethodDelete:
		if !h.engine.RemoveRule(id) {
			jsonErr(w, http.StatusNotFound, "rule not found")
			return
		}
		jsonResp(w, http.StatusOK, statusResponse{Status: "removed"})

	case action == "enable" && r.Method == http.MethodPost:
		h.setEnabled(w, id, true)

	case action == "disable" && r.Method == http.MethodPost:
		h.setEnabled(w, id, false)

	case action == "evaluate" && r.Method == http.MethodPost:
		rule, ok := h.engine.GetRule(id)
		if !ok {
			jsonErr(w, http.StatusNotFound, "rule not found")
			return
		}
		fired := h.engine.EvaluateRule(r.Context(), rule)
		jsonResp(w, http.StatusOK, evaluateResponse{RuleID: id, Fired: fired})

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) setEnabled(w http.ResponseWriter, id string, enabled bool) {
	if !h.engine.SetRuleEnabled(id, enabled) {
		jsonErr(w, http.StatusNotFound, "rule not found")
		return
	}
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	jsonResp(w, http.StatusOK, statusResponse{Status: status})
}

// --- alerts -----------------------------------------------------------------

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := alerts.Status(r.URL.Query().Get("status"))
	switch status {
	case "", alerts.StatusActive, alerts.StatusAcknowledged, alerts.StatusResolved:
	default:
		jsonErr(w, http.StatusBadRequest, "status must be active, acknowledged, or resolved")
		return
	}
	jsonResp(w, http.StatusOK, h.engine.Alerts(status))
}

func (h *Handler) alertItem(w http.ResponseWriter, r *http.Request) {
	id, action := splitPath(r.URL.Path, "/api/v1/alerts/")
	if id == "" {
		h.listAlerts(w, r)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		a, ok := h.engine.GetAlert(id)
		if !ok {
			jsonErr(w, http.StatusNotFound, "alert not found")
			return
		}
		jsonResp(w, http.StatusOK, a)

	case action == "acknowledge" && r.Method == http.MethodPost:
		// Transitions on unknown or already-moved alerts are no-ops by
		// design; report what happened without treating it as an error.
		if h.engine.AcknowledgeAlert(id) {
			jsonResp(w, http.StatusOK, statusResponse{Status: "acknowledged"})
			return
		}
		jsonResp(w, http.StatusOK, statusResponse{Status: "unchanged"})

	case action == "resolve" && r.Method == http.MethodPost:
		if h.engine.ResolveAlert(id) {
			jsonResp(w, http.StatusOK, statusResponse{Status: "resolved"})
			return
		}
		jsonResp(w, http.StatusOK, statusResponse{Status: "unchanged"})

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- channels ---------------------------------------------------------------

func (h *Handler) channelsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, h.engine.Channels())
	case http.MethodPost:
		var ch alerts.Channel
		if err := decodeBody(w, r, &ch); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		added, err := h.engine.AddChannel(ch)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonResp(w, http.StatusCreated, added)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) channelItem(w http.ResponseWriter, r *http.Request) {
	id, _ := splitPath(r.URL.Path, "/api/v1/channels/")
	if id == "" {
		h.channelsCollection(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.engine.RemoveChannel(id) {
		jsonErr(w, http.StatusNotFound, "channel not found")
		return
	}
	jsonResp(w, http.StatusOK, statusResponse{Status: "removed"})
}

// --- health -----------------------------------------------------------------

// health returns GET /api/v1/health — engine-level counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	all := h.engine.Rules()
	enabled := 0
	for _, rule := range all {
		if rule.Enabled {
			enabled++
		}
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		State:        "ok",
		RuleCount:    len(all),
		EnabledRules: enabled,
		ActiveAlerts: len(h.engine.Alerts(alerts.StatusActive)),
		ChannelCount: len(h.engine.Channels()),
	})
}

// --- helpers ----------------------------------------------------------------

// splitPath extracts "{id}" and an optional trailing "{action}" from a
// subtree path.
func splitPath(path, prefix string) (id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
