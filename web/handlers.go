package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TuringFantasy/simple-dedupe/directory"
	"github.com/TuringFantasy/simple-dedupe/duplicates"
	"github.com/TuringFantasy/simple-dedupe/logging"
	"github.com/TuringFantasy/simple-dedupe/types"
)

const errIndexNotBuilt = "match index has not been built yet, call /duplicates first"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"index":  s.index.State(),
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		logging.LogError("Listing users: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read user directory")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.FindUser(r.Context(), id)
	if errors.Is(err, directory.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("user %s not found", id))
		return
	}
	if err != nil {
		logging.LogError("Finding user %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to read user directory")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) listDuplicates(w http.ResponseWriter, r *http.Request) {
	table, err := s.index.LoadOrBuild(r.Context())
	if err != nil {
		s.respondIndexError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.resolver.ResolveAll(table))
}

func (s *Server) getDuplicate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	table, err := s.index.Peek(r.Context())
	if errors.Is(err, duplicates.ErrIndexNotBuilt) {
		respondError(w, http.StatusNotFound, errIndexNotBuilt)
		return
	}
	if err != nil {
		s.respondIndexError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.resolver.Resolve(table, types.ID(id)))
}

func (s *Server) respondIndexError(w http.ResponseWriter, err error) {
	logging.LogError("Match index: %v", err)

	var decodeErr *duplicates.DecodeError
	if errors.As(err, &decodeErr) {
		respondError(w, http.StatusInternalServerError,
			fmt.Sprintf("building match index failed: cannot decode image %s", decodeErr.ID))
		return
	}
	respondError(w, http.StatusInternalServerError, "building match index failed")
}
