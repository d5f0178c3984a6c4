package navigator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/taxonomy"
)

// Handler serves the query pipeline over HTTP for UI frontends.
func Handler(nav *Navigator, tx *taxonomy.Taxonomy) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/categories", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"categories": tx.Categories(),
			"selectors":  tx.Selectors,
		})
	})

	r.Get("/api/query", func(w http.ResponseWriter, req *http.Request) {
		q, err := parseQuery(req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		summary, err := nav.Run(req.Context(), q)
		if err != nil {
			zap.L().Error("query failed",
				zap.String("address", q.Address),
				zap.Error(err),
			)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "query failed"})
			return
		}

		payload := BuildPayload(summary, tx)
		if !payload.AddressFound {
			writeJSON(w, http.StatusNotFound, payload)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	})

	return r
}

func parseQuery(req *http.Request) (Query, error) {
	var q Query
	q.Address = strings.TrimSpace(req.URL.Query().Get("address"))
	if q.Address == "" {
		return q, errMissingAddress
	}

	if raw := req.URL.Query().Get("radius"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errBadRadius
		}
		q.RadiusMeters = radius
	}
	if raw := req.URL.Query().Get("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				q.Categories = append(q.Categories, c)
			}
		}
	}
	q.WithElevation = req.URL.Query().Get("elevation") == "true"
	return q, nil
}

var (
	errMissingAddress = &queryError{"address parameter is required"}
	errBadRadius      = &queryError{"radius must be a number"}
)

type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}
