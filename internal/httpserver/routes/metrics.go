package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/charge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/charge/internal/httpserver/mw"
	"github.com/MrSnakeDoc/charge/internal/metrics"
)

func init() { Register(registerMetrics) }

func registerMetrics(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Method("GET", "/metrics", metrics.Handler())
}
