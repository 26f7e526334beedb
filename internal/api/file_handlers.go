package api

import (
	"net/http"
	"strings"

	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/service"
)

type addFileRequest struct {
	PasteID int64  `json:"paste_id"`
	Path    string `json:"path"`
	Name    string `json:"name"`

	// Inline content; when set a paste is created for it first.
	Body     string `json:"body"`
	Title    string `json:"title"`
	Language string `json:"language"`
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	branchID, ok := parsePathID(w, r, "branchID", "branch id")
	if !ok {
		return
	}
	var req addFileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pasteID := req.PasteID
	if pasteID == 0 && strings.TrimSpace(req.Body) != "" {
		title := req.Title
		if title == "" {
			title = req.Name
		}
		paste, err := s.svc.Pastes.Create(r.Context(), claims.UserID, title, req.Body, req.Language)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		pasteID = paste.ID
	}

	fp, err := s.svc.Files.Add(r.Context(), claims.UserID, projectID, branchID, service.AddFileInput{
		PasteID: pasteID,
		Path:    req.Path,
		Name:    req.Name,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, fp)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	branchID, ok := parsePathID(w, r, "branchID", "branch id")
	if !ok {
		return
	}
	files, err := s.svc.Files.List(r.Context(), actorID(r), projectID, branchID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, files)
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 0)
	activity, err := s.svc.Files.RecentActivity(r.Context(), actorID(r), projectID, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, activity)
}
