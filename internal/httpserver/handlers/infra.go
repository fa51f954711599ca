package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/charge/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool     `json:"ok"`
	LastRun   string   `json:"last_run,omitempty"`
	LastOK    string   `json:"last_success,omitempty"`
	Runs      *int     `json:"runs,omitempty"`
	Created   []string `json:"created,omitempty"`
	Updated   []string `json:"updated,omitempty"`
	Unchanged *int     `json:"unchanged,omitempty"`
	Impact    string   `json:"impact,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Service    string                     `json:"service"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the token cache and the registration state.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"token_cache":  checkCache(r, d),
			"registration": checkRegistration(d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			Mode:       determineMode(components),
			Service:    d.Desired.Name,
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// no cache means no token, nothing works
	if c, ok := components["token_cache"]; ok && !c.OK {
		return "critical"
	}
	if c, ok := components["registration"]; ok && !c.OK {
		return "degraded"
	}
	return "operational"
}

func checkCache(r *http.Request, d deps.Deps) componentStatus {
	if err := ping(r.Context(), d.TokenCache); err != nil {
		return componentStatus{
			OK:     false,
			Impact: "keystone-auth-on-every-call",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true}
}

func checkRegistration(d deps.Deps) componentStatus {
	if d.Sync == nil {
		return componentStatus{OK: false, Error: "syncer not initialized"}
	}

	st := d.Sync.Status()
	runs, unchanged := st.Runs, st.Unchanged
	out := componentStatus{
		OK:        st.LastError == "" && !st.LastSuccess.IsZero(),
		LastRun:   formatTime(st.LastRun),
		LastOK:    formatTime(st.LastSuccess),
		Runs:      &runs,
		Created:   st.Created,
		Updated:   st.Updated,
		Unchanged: &unchanged,
		Error:     st.LastError,
	}
	if !out.OK {
		out.Impact = "endpoints-may-be-stale"
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
