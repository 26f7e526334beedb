package api

import (
	"net/http"

	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/service"
)

func (s *Server) handleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	var req service.CreateMilestoneInput
	if !decodeBody(w, r, &req) {
		return
	}
	milestone, err := s.svc.Milestones.Create(r.Context(), claims.UserID, projectID, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, milestone)
}

func (s *Server) handleListMilestones(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	milestones, err := s.svc.Milestones.List(r.Context(), actorID(r), projectID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, milestones)
}

func (s *Server) handleGetMilestone(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	milestoneID, ok := parsePathID(w, r, "milestoneID", "milestone id")
	if !ok {
		return
	}
	milestone, err := s.svc.Milestones.Get(r.Context(), actorID(r), projectID, milestoneID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, milestone)
}

func (s *Server) handleMilestoneProgress(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	milestoneID, ok := parsePathID(w, r, "milestoneID", "milestone id")
	if !ok {
		return
	}
	progress, err := s.svc.Milestones.Progress(r.Context(), actorID(r), projectID, milestoneID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, progress)
}

type setMilestoneCompletedRequest struct {
	Completed bool `json:"completed"`
}

func (s *Server) handleSetMilestoneCompleted(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	milestoneID, ok := parsePathID(w, r, "milestoneID", "milestone id")
	if !ok {
		return
	}
	var req setMilestoneCompletedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	milestone, err := s.svc.Milestones.SetCompleted(r.Context(), claims.UserID, projectID, milestoneID, req.Completed)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, milestone)
}
