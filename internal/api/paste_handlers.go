package api

import (
	"net/http"
	"strings"

	"github.com/snipforge/snipforge/internal/auth"
)

type createPasteRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Language string `json:"language"`
}

func (s *Server) handleCreatePaste(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	var req createPasteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	paste, err := s.svc.Pastes.Create(r.Context(), claims.UserID, req.Title, req.Body, req.Language)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	paste.OwnerName = claims.Username
	jsonResponse(w, http.StatusCreated, paste)
}

func (s *Server) handleGetPaste(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.PathValue("slug"))
	if slug == "" {
		jsonError(w, "paste slug is required", http.StatusBadRequest)
		return
	}
	paste, err := s.svc.Pastes.GetBySlug(r.Context(), slug)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, paste)
}
