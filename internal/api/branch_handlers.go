package api

import (
	"net/http"

	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/service"
)

func (s *Server) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	var req service.CreateBranchInput
	if !decodeBody(w, r, &req) {
		return
	}
	branch, err := s.svc.Branches.Create(r.Context(), claims.UserID, projectID, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, branch)
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	branches, err := s.svc.Branches.List(r.Context(), actorID(r), projectID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, branches)
}

// handleResolveBranch answers "which branch does this name mean here",
// falling back to the project default when the name is empty or unknown.
func (s *Server) handleResolveBranch(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	branch, err := s.svc.Branches.Resolve(r.Context(), actorID(r), projectID, r.URL.Query().Get("name"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, branch)
}

func (s *Server) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	branchID, ok := parsePathID(w, r, "branchID", "branch id")
	if !ok {
		return
	}
	branch, err := s.svc.Branches.Get(r.Context(), actorID(r), projectID, branchID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, branch)
}

func (s *Server) handleBranchDivergence(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	branchID, ok := parsePathID(w, r, "branchID", "branch id")
	if !ok {
		return
	}
	div, err := s.svc.Branches.Divergence(r.Context(), actorID(r), projectID, branchID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, div)
}
