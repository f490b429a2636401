package api

import (
	"net/http"
	"strconv"

	"github.com/google/xdtk/internal/audit"
)

// handleListRegistrations returns paginated discovery registrations,
// newest first.
//
// Query parameters:
//   - session_id: filter by controller session
//   - address: filter by device address
//   - device_id: filter by device id
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	if s.registrations == nil {
		writeUnavailable(w, "registration log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		SessionID: q.Get("session_id"),
		Address:   q.Get("address"),
	}

	if v := q.Get("device_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "device_id must be an integer")
			return
		}
		filter.DeviceID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.registrations.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list registrations", "error", err)
		writeInternalError(w, "failed to list registrations")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
