package api

import (
	"net/http"
	"strings"

	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/service"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	var req service.CreateProjectInput
	if !decodeBody(w, r, &req) {
		return
	}
	project, err := s.svc.Projects.Create(r.Context(), claims.UserID, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	project.OwnerName = claims.Username
	jsonResponse(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	summary, err := s.svc.Projects.Summary(r.Context(), actorID(r), projectID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	var req service.UpdateProjectInput
	if !decodeBody(w, r, &req) {
		return
	}
	project, err := s.svc.Projects.Update(r.Context(), claims.UserID, projectID, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	if err := s.svc.Projects.Delete(r.Context(), claims.UserID, projectID); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUserProjects(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		jsonError(w, "username is required", http.StatusBadRequest)
		return
	}
	owner, err := s.db.GetUserByUsername(r.Context(), username)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	projects, err := s.svc.Projects.List(r.Context(), actorID(r), owner.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, projects)
}
