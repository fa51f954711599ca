package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/charge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/charge/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/charge/internal/httpserver/mw"
)

func init() { Register(registerProbes) }

// Liveness stays open; readiness and infra details are admin only.
func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	admin := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	admin.Get("/readyz", handlers.Readyz(d))
	admin.Get("/infra", handlers.Infra(d))
}
