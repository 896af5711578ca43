package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/standup/go/internal/meeting"
	"github.com/mcdev12/standup/go/internal/models"
	"github.com/rs/zerolog/log"
)

// StateResponse is the body of every successful meeting endpoint.
type StateResponse struct {
	Title string `json:"title,omitempty"`
	meeting.Snapshot
}

// ResetRequest is the body of POST /api/meeting/reset.
type ResetRequest struct {
	Title           string   `json:"title"`
	LengthInMinutes *int     `json:"length_in_minutes"`
	Attendees       []string `json:"attendees"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	service *Service
}

// handleState handles GET /api/meeting/state
func (h *handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeState(w, http.StatusOK)
}

// handleStart handles POST /api/meeting/start
func (h *handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.service.StartMeeting(); err != nil {
		h.writeCommandError(w, err)
		return
	}
	h.writeState(w, http.StatusOK)
}

// handleSkip handles POST /api/meeting/skip
func (h *handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.service.SkipSpeaker(); err != nil {
		h.writeCommandError(w, err)
		return
	}
	h.writeState(w, http.StatusOK)
}

// handleStop handles POST /api/meeting/stop
func (h *handler) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.service.StopMeeting()
	h.writeState(w, http.StatusOK)
}

// handleReset handles POST /api/meeting/reset
func (h *handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.LengthInMinutes == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "length_in_minutes is required"})
		return
	}
	if *req.LengthInMinutes < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "length_in_minutes must not be negative"})
		return
	}

	h.service.ResetMeeting(models.MeetingConfig{
		Title:           req.Title,
		LengthInMinutes: *req.LengthInMinutes,
		Attendees:       req.Attendees,
	})
	h.writeState(w, http.StatusOK)
}

// handleWebSocket handles GET /ws/meeting
func (h *handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "anonymous"
	}

	var initial []byte
	if event, err := tickEvent(h.service.Snapshot()); err == nil {
		initial, _ = json.Marshal(event)
	}

	if err := h.service.connections.UpgradeConnection(w, r, clientID, initial); err != nil {
		// The upgrader has already written an HTTP error response.
		log.Error().Err(err).Str("client_id", clientID).Msg("failed to upgrade WebSocket connection")
	}
}

// handleStats handles GET /ws/stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats())
}

func (h *handler) writeState(w http.ResponseWriter, status int) {
	writeJSON(w, status, StateResponse{
		Title:    h.service.Title(),
		Snapshot: h.service.Snapshot(),
	})
}

func (h *handler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, meeting.ErrCannotStart), errors.Is(err, meeting.ErrNotRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("meeting command failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
