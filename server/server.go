// Package server exposes the asset store management endpoints over HTTP.
// The routes and response envelope follow the /api-tools/v1 surface the
// pipeline's dashboards already speak.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mwantia/assetd"
	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/install"
	"github.com/mwantia/assetd/log"
	"github.com/mwantia/assetd/metrics"
)

// Server wires the store and installer to the HTTP surface.
type Server struct {
	store     *assetd.Store
	installer *install.Installer
	metrics   *metrics.Registry
	log       *log.Logger
}

// NewServer creates a server over the given store. A nil installer disables
// the install endpoint.
func NewServer(store *assetd.Store, installer *install.Installer) *Server {
	server := &Server{
		store:     store,
		installer: installer,
		metrics:   store.Metrics(),
		log:       store.Logger().Named("http"),
	}

	server.metrics.AddCounter("assetd_requests_total", "Total requests by endpoint and outcome")
	return server
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api-tools/v1/models", s.handleListFolders)
	mux.HandleFunc("GET /api-tools/v1/models/{folder}", s.handleListModels)
	mux.HandleFunc("POST /api-tools/v1/models/install", s.handleInstall)
	mux.HandleFunc("POST /api-tools/v1/models/{folder}/refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /api-tools/v1/models/{folder}/{model...}", s.handleDeleteModel)
	mux.HandleFunc("GET /api-tools/v1/images/{root}", s.handleListImages)
	mux.HandleFunc("DELETE /api-tools/v1/images/{root}/{filename}", s.handleDeleteImage)
	mux.HandleFunc("GET /api-tools/v1/metrics", s.handleMetrics)

	return mux
}

// respondSuccess writes the standard success envelope plus any extras.
func (s *Server) respondSuccess(w http.ResponseWriter, extras map[string]any) {
	body := map[string]any{
		"code":    http.StatusOK,
		"message": "success",
	}
	for key, value := range extras {
		body[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

// respondError writes the standard error envelope.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"message": message,
	})
}

// respondStoreError maps the store's error kinds to transport outcomes.
func (s *Server) respondStoreError(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusInternalServerError
	outcome := "error"

	switch {
	case errors.Is(err, data.ErrUnknownRoot):
		status = http.StatusNotFound
		outcome = "unknown_root"
	case errors.Is(err, data.ErrNotFound):
		status = http.StatusNotFound
		outcome = "not_found"
	case errors.Is(err, data.ErrInvalidResource):
		status = http.StatusBadRequest
		outcome = "invalid"
	case errors.Is(err, data.ErrExist):
		status = http.StatusConflict
		outcome = "exists"
	case errors.Is(err, data.ErrDomainNotAllowed):
		status = http.StatusForbidden
		outcome = "forbidden"
	}

	s.observe(endpoint, outcome)
	s.respondError(w, status, err.Error())
}

func (s *Server) observe(endpoint, outcome string) {
	s.metrics.IncrCounter("assetd_requests_total",
		metrics.Labels{"endpoint": endpoint, "outcome": outcome}, 1)
}

// parseTempQuery reads the optional temp filter from the query string.
// Absent or unrecognized values mean "no filter".
func parseTempQuery(r *http.Request) *bool {
	switch r.URL.Query().Get("temp") {
	case "true":
		value := true
		return &value
	case "false":
		value := false
		return &value
	default:
		return nil
	}
}
