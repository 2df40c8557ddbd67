// Package system provides the probe, version and API description endpoints.
package system

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"

	"github.com/matrixhub/catalog-server/internal/api/common"
	"github.com/matrixhub/catalog-server/internal/versions"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// openAPIJSON is derived from openapi.yaml once at package load
var openAPIJSON []byte

func init() {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		slog.Error("Failed to parse embedded OpenAPI document", "error", err)
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		slog.Error("Failed to convert OpenAPI document to JSON", "error", err)
		return
	}
	openAPIJSON = data
}

// ReadinessChecker reports whether the backing store can serve requests
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AppInfo is reported by the root endpoint
type AppInfo struct {
	Name        string
	Environment string
}

// RootResponse is the body of GET /
type RootResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Docs        string `json:"docs"`
	Health      string `json:"health"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse is the body of GET /readiness when ready
type ReadinessResponse struct {
	Status string `json:"status"`
}

// Router creates the router for the endpoints served at the root
func Router(app AppInfo, checker ReadinessChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/", rootHandler(app))
	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(checker))
	r.Get("/version", versionHandler)
	r.Get("/openapi.yaml", serveOpenAPIYAML)
	r.Get("/openapi.json", serveOpenAPIJSON)

	return r
}

func rootHandler(app AppInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSONResponse(w, RootResponse{
			Name:        app.Name,
			Version:     versions.Get().Version,
			Environment: app.Environment,
			Docs:        "/openapi.yaml",
			Health:      "/health",
		}, http.StatusOK)
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.CheckReadiness(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed",
				"error", err,
				"request_id", middleware.GetReqID(r.Context()))
			common.WriteErrorResponse(w, "Service not ready", http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.Get(), http.StatusOK)
}

func serveOpenAPIYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIYAML)
}

func serveOpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	if len(openAPIJSON) == 0 {
		common.WriteErrorResponse(w, "OpenAPI specification not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIJSON)
}
