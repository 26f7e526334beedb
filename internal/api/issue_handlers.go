package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/service"
)

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	var req service.CreateIssueInput
	if !decodeBody(w, r, &req) {
		return
	}
	issue, err := s.svc.Issues.Create(r.Context(), claims.UserID, projectID, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	issue.AuthorName = claims.Username

	s.runAsync(r.Context(), "notify issue opened", []any{"project_id", projectID, "issue", issue.Number}, func(ctx context.Context) error {
		project, err := s.svc.Projects.Get(ctx, claims.UserID, projectID)
		if err != nil {
			return err
		}
		s.svc.Notifications.NotifyIssueOpened(ctx, project, issue)
		return nil
	})

	jsonResponse(w, http.StatusCreated, issue)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	status := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("status")))
	if status == "all" {
		status = ""
	}
	page, perPage := parsePagination(r, 25, 100)
	issues, err := s.svc.Issues.List(r.Context(), actorID(r), projectID, status, page, perPage)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, issues)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	issue, err := s.svc.Issues.Get(r.Context(), actorID(r), projectID, number)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, issue)
}

func (s *Server) handleEditIssue(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	var req service.EditIssueInput
	if !decodeBody(w, r, &req) {
		return
	}
	issue, err := s.svc.Issues.Edit(r.Context(), claims.UserID, projectID, number, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, issue)
}

type setIssueStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetIssueStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	var req setIssueStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	issue, err := s.svc.Issues.SetStatus(r.Context(), claims.UserID, projectID, number, req.Status)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, issue)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	if err := s.svc.Issues.Delete(r.Context(), claims.UserID, projectID, number); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
