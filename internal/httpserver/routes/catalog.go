package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/charge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/charge/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/charge/internal/httpserver/mw"
)

func init() { Register(registerCatalog) }

func registerCatalog(r chi.Router, d deps.Deps) {
	admin := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	admin.Get("/catalog", handlers.Catalog(d))
	admin.Post("/reconcile", handlers.Reconcile(d))
}
