package api

import (
	"net/http"

	"github.com/snipforge/snipforge/internal/auth"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	page, perPage := parsePagination(r, 30, 100)
	notifications, err := s.svc.Notifications.List(r.Context(), claims.UserID, page, perPage)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	id, ok := parsePathID(w, r, "id", "notification id")
	if !ok {
		return
	}
	if err := s.svc.Notifications.MarkRead(r.Context(), claims.UserID, id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
