package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mbrelay/internal/metabans"
	"github.com/woozymasta/mbrelay/internal/models"
	"github.com/woozymasta/mbrelay/internal/plugin"
	"github.com/woozymasta/mbrelay/internal/vars"
)

// Roster-only event types: they update connected players without reaching Metabans.
const (
	eventConnect    = "connect"
	eventDisconnect = "disconnect"
)

// handleEvent accepts a bot event and queues it for the plugin.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().Err(err).Str("ip", GetRealIP(r, s.trustProxy)).Msg("Invalid event JSON")
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Client.GUID == "" && req.Client.CID == "" {
		respondError(w, http.StatusBadRequest, "client guid or cid is required")
		return
	}

	switch plugin.EventType(req.Type) {
	case eventDisconnect:
		s.roster.Remove(req.Client)
		respondStatus(w, http.StatusOK, "ok")
		return

	case eventConnect:
		s.roster.Update(req.Client)
		respondStatus(w, http.StatusOK, "ok")
		return

	case plugin.EventAuth, plugin.EventUpdate, plugin.EventBan, plugin.EventTempBan, plugin.EventUnban:
		if req.Client.GUID == "" {
			respondError(w, http.StatusBadRequest, "client guid is required")
			return
		}

	default:
		log.Debug().Str("type", req.Type).Msg("Unsupported event type")
		respondError(w, http.StatusUnprocessableEntity, "unsupported event type")
		return
	}

	var client plugin.Client
	if plugin.EventType(req.Type) == plugin.EventUnban && req.Client.CID == "" {
		// unbanned players are usually offline; act on them without tracking a slot
		client = s.roster.Detached(req.Client)
	} else {
		client = s.roster.Update(req.Client)
	}

	j := job{event: plugin.Event{Type: plugin.EventType(req.Type), Client: client, Data: req.Data}}
	if !s.enqueue(j) {
		log.Warn().
			Str("type", req.Type).
			Str("guid", req.Client.GUID).
			Msg("Queue full, event dropped")

		respondError(w, http.StatusServiceUnavailable, "queue full")
		return
	}

	respondStatus(w, http.StatusAccepted, "queued")
}

// handleCommand accepts an admin command typed in game.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Command == "" || (req.Admin.GUID == "" && req.Admin.CID == "") {
		respondError(w, http.StatusBadRequest, "command and admin are required")
		return
	}

	if !s.relay.HasCommand(req.Command) {
		respondError(w, http.StatusNotFound, "unknown command")
		return
	}

	admin := s.roster.Update(req.Admin)
	if !s.enqueue(job{admin: admin, command: req.Command, args: req.Args}) {
		log.Warn().
			Str("command", req.Command).
			Str("admin", req.Admin.Name).
			Msg("Queue full, command dropped")

		respondError(w, http.StatusServiceUnavailable, "queue full")
		return
	}

	respondStatus(w, http.StatusAccepted, "queued")
}

// handleStatus performs a live Metabans status lookup.
// Query params: ?uid=<player guid>
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		respondError(w, http.StatusBadRequest, "missing uid")
		return
	}

	if !s.relay.Enabled() {
		respondError(w, http.StatusServiceUnavailable, plugin.ErrDisabled.Error())
		return
	}

	status, err := s.metabans.PlayerStatus(r.Context(), s.relay.GameName(), uid)
	if err != nil {
		code := http.StatusBadGateway
		if c, ok := metabans.ErrorCode(err); ok && c == metabans.CodeUnknownPlayer {
			code = http.StatusNotFound
		} else if errors.Is(err, metabans.ErrHTTPRequestFailed) {
			code = http.StatusGatewayTimeout
		}

		log.Debug().Err(err).Str("uid", uid).Msg("Status lookup failed")
		respondError(w, code, err.Error())
		return
	}

	if status == nil {
		respondError(w, http.StatusBadGateway, "empty metabans response")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, vars.Info())
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondStatus(w http.ResponseWriter, code int, status string) {
	respondJSON(w, code, map[string]string{"status": status})
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
