package server

import (
	"encoding/json"
	"net/http"

	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/install"
)

// handleListFolders lists all configured root names.
func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	s.observe("list_folders", "ok")
	s.respondSuccess(w, map[string]any{
		"result": map[string]any{"folders": s.store.Roots()},
	})
}

// handleListModels lists the entries of one root from the cached snapshot.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")

	snap, err := s.store.List(r.Context(), folder)
	if err != nil {
		s.respondStoreError(w, "list_models", err)
		return
	}

	s.observe("list_models", "ok")
	s.respondSuccess(w, map[string]any{"result": snap.Entries()})
}

// handleRefresh forces a rescan of one root and returns the fresh entries.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")

	snap, err := s.store.Refresh(r.Context(), folder)
	if err != nil {
		s.respondStoreError(w, "refresh", err)
		return
	}

	s.observe("refresh", "ok")
	s.respondSuccess(w, map[string]any{"data": snap.Entries()})
}

// handleDeleteModel removes one model file from a root.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")
	model := r.PathValue("model")

	if err := s.store.Remove(r.Context(), folder, model, nil); err != nil {
		s.respondStoreError(w, "delete_model", err)
		return
	}

	s.observe("delete_model", "ok")
	s.respondSuccess(w, nil)
}

// handleListImages lists an image root, optionally filtered by the temp
// classification.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	root := r.PathValue("root")
	temp := parseTempQuery(r)

	entries, err := s.store.ListImages(r.Context(), root, temp)
	if err != nil {
		s.respondStoreError(w, "list_images", err)
		return
	}

	s.observe("list_images", "ok")
	s.respondSuccess(w, map[string]any{"images": entries})
}

// handleDeleteImage removes one image from an image root. With a temp query
// the cached classification must match, so the temp-scoped route can never
// delete a persistent image.
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	root := r.PathValue("root")
	filename := r.PathValue("filename")
	temp := parseTempQuery(r)

	if !s.store.IsImageRoot(root) {
		s.respondStoreError(w, "delete_image", data.ErrUnknownRoot)
		return
	}

	if err := s.store.Remove(r.Context(), root, filename, temp); err != nil {
		s.respondStoreError(w, "delete_image", err)
		return
	}

	s.observe("delete_image", "ok")
	s.respondSuccess(w, nil)
}

// handleInstall downloads a model from an allowed domain into the store.
func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if s.installer == nil {
		s.observe("install", "disabled")
		s.respondError(w, http.StatusForbidden, "model install is disabled")
		return
	}

	var req install.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.observe("install", "invalid")
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.installer.Install(r.Context(), &req); err != nil {
		s.respondStoreError(w, "install", err)
		return
	}

	s.observe("install", "ok")
	s.respondSuccess(w, nil)
}

// handleMetrics renders the exposition text for scrapers.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.observe("metrics", "ok")

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.metrics.Render()))
}
