package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/charge/internal/httpserver/deps"
	"github.com/MrSnakeDoc/charge/internal/keystone"
	"github.com/MrSnakeDoc/charge/internal/logger"
)

type catalogResponse struct {
	Catalog keystone.Catalog `json:"catalog"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Catalog serves the normalized public endpoint catalog of the current
// token. The token value itself is never written out. The optional
// service and region query parameters narrow the answer.
func Catalog(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		if d.Tokens == nil {
			writeError(w, http.StatusServiceUnavailable, "token provider not initialized")
			return
		}

		access, err := d.Tokens.GetToken(r.Context())
		if err != nil {
			d.Logger.Error("catalog: token lookup failed", logger.Error(err))
			writeError(w, catalogStatus(err), err.Error())
			return
		}

		catalog := filterCatalog(access.Endpoint, r.URL.Query().Get("service"), r.URL.Query().Get("region"))
		if catalog == nil {
			writeError(w, http.StatusNotFound, "no matching endpoint")
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(catalogResponse{Catalog: catalog})
	}
}

func filterCatalog(c keystone.Catalog, service, region string) keystone.Catalog {
	if service == "" && region == "" {
		return c
	}

	out := keystone.Catalog{}
	for name, regions := range c {
		if service != "" && name != service {
			continue
		}
		matched := map[string]string{}
		for rg, url := range regions {
			if region == "" || rg == region {
				matched[rg] = url
			}
		}
		if len(matched) > 0 || region == "" {
			out[name] = matched
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func catalogStatus(err error) int {
	switch {
	case errors.Is(err, keystone.ErrAuthentication):
		return http.StatusBadGateway
	case errors.Is(err, keystone.ErrCatalogMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
