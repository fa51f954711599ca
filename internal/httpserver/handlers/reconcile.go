package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/charge/internal/httpserver/deps"
)

type reconcileResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Reconcile queues a manual reconciliation. Only one request may be
// pending; extra requests get 429 until the syncer picks it up.
func Reconcile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if d.ReconcileTrigger == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(reconcileResponse{
				Status:  "error",
				Message: "reconcile trigger not configured",
			})
			return
		}

		select {
		case d.ReconcileTrigger <- struct{}{}:
			d.Logger.Info("Manual reconcile triggered via API")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(reconcileResponse{
				Status:  "accepted",
				Message: "Reconciliation triggered",
			})
		default:
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(reconcileResponse{
				Status:  "busy",
				Message: "Reconciliation already pending",
			})
		}
	}
}
