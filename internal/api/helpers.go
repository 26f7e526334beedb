package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/snipforge/snipforge/internal/apperr"
)

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeErr maps a service error onto an HTTP status. Store failures are
// logged and masked; everything else surfaces its message.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.Validation:
		jsonError(w, err.Error(), http.StatusBadRequest)
	case apperr.NotFound:
		jsonError(w, err.Error(), http.StatusNotFound)
	case apperr.Conflict:
		jsonError(w, err.Error(), http.StatusConflict)
	case apperr.Permission:
		jsonError(w, err.Error(), http.StatusForbidden)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func parsePathPositiveInt(w http.ResponseWriter, r *http.Request, key, label string) (int, bool) {
	raw := strings.TrimSpace(r.PathValue(key))
	if raw == "" {
		jsonError(w, label+" is required", http.StatusBadRequest)
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		jsonError(w, "invalid "+label, http.StatusBadRequest)
		return 0, false
	}
	return value, true
}

func parsePathID(w http.ResponseWriter, r *http.Request, key, label string) (int64, bool) {
	raw := strings.TrimSpace(r.PathValue(key))
	if raw == "" {
		jsonError(w, label+" is required", http.StatusBadRequest)
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		jsonError(w, "invalid "+label, http.StatusBadRequest)
		return 0, false
	}
	return value, true
}
