package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/protocol"
	"github.com/google/xdtk/internal/transceiver"
)

// HapticsRequest is the body of POST /devices/{id}/haptics.
type HapticsRequest struct {
	Effect    string `json:"effect"`
	Millis    int    `json:"millis"`
	Amplitude int    `json:"amplitude"`
}

// handleListDevices returns a snapshot of every known device, ordered by id
// with unassigned devices last.
//
// Query parameters:
//   - registered: "true" limits the list to devices bound to an address
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	onlyRegistered := r.URL.Query().Get("registered") == "true"

	devs := s.devices.Devices()
	snapshots := make([]device.State, 0, len(devs))
	for _, d := range devs {
		snap := d.Snapshot()
		if onlyRegistered && snap.Address == "" {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	slices.SortStableFunc(snapshots, func(a, b device.State) int {
		switch {
		case a.HasID() && !b.HasID():
			return -1
		case !a.HasID() && b.HasID():
			return 1
		default:
			return a.ID - b.ID
		}
	})

	writeJSON(w, http.StatusOK, map[string]any{"devices": snapshots, "count": len(snapshots)})
}

// handleGetDevice returns one device snapshot.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	d, found := s.devices.Device(id)
	if !found {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, d.Snapshot())
}

// handleHaptics sends a vibration command to a device.
func (s *Server) handleHaptics(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}

	var req HapticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	effect, err := protocol.ParseHapticEffect(req.Effect)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	h := protocol.Haptics{Effect: effect, Millis: req.Millis, Amplitude: req.Amplitude}
	if err := h.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	err = s.devices.SendHaptics(r.Context(), id, h)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent", "device_id": id, "effect": h.Effect})
	case errors.Is(err, device.ErrNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, transceiver.ErrNoAddress):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device has not been discovered yet")
	case errors.Is(err, transceiver.ErrNotStarted):
		writeUnavailable(w, "transport not running")
	default:
		s.logger.Warn("haptics send failed", "device_id", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeInternal, "failed to send haptics command")
	}
}

// deviceIDParam parses the {id} URL parameter, writing a 400 on failure.
func deviceIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeBadRequest(w, "device id must be a non-negative integer")
		return 0, false
	}
	return id, true
}
