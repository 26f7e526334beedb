package api

import (
	"context"
	"net/http"

	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/service"
)

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	var req service.AddCommentInput
	if !decodeBody(w, r, &req) {
		return
	}
	comment, err := s.svc.Comments.Add(r.Context(), claims.UserID, projectID, number, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	comment.AuthorName = claims.Username

	s.runAsync(r.Context(), "notify issue comment", []any{"project_id", projectID, "issue", number}, func(ctx context.Context) error {
		project, err := s.svc.Projects.Get(ctx, claims.UserID, projectID)
		if err != nil {
			return err
		}
		issue, err := s.svc.Issues.Get(ctx, claims.UserID, projectID, number)
		if err != nil {
			return err
		}
		s.svc.Notifications.NotifyIssueComment(ctx, project, issue, comment)
		return nil
	})

	jsonResponse(w, http.StatusCreated, comment)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	comments, err := s.svc.Comments.ListTopLevel(r.Context(), actorID(r), projectID, number)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, comments)
}

func (s *Server) handleListReplies(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	commentID, ok := parsePathID(w, r, "commentID", "comment id")
	if !ok {
		return
	}
	replies, err := s.svc.Comments.ListReplies(r.Context(), actorID(r), projectID, number, commentID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, replies)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	number, ok := parsePathPositiveInt(w, r, "number", "issue number")
	if !ok {
		return
	}
	commentID, ok := parsePathID(w, r, "commentID", "comment id")
	if !ok {
		return
	}
	if err := s.svc.Comments.Delete(r.Context(), claims.UserID, projectID, number, commentID); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
