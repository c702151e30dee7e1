package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/broadcast"
	"github.com/shopfloor/shearlock/internal/shear/lock"
	"github.com/shopfloor/shearlock/internal/shear/store"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

type Dependencies struct {
	Logger     *log.Logger
	Addr       string
	Controller *lock.Controller
	Audit      store.ScanEventStore
	Queue      *broadcast.Queue
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	controller *lock.Controller
	audit      store.ScanEventStore
	queue      *broadcast.Queue
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		controller: d.Controller,
		audit:      d.Audit,
		queue:      d.Queue,
	}

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/lock", s.handleLock)
	mux.HandleFunc("POST /v1/unlock", s.handleUnlock)
	mux.HandleFunc("POST /v1/emergency_stop", s.handleEmergencyStop)
	mux.HandleFunc("POST /v1/emergency_unlock", s.handleEmergencyUnlock)
	mux.HandleFunc("POST /v1/outputs/mode", s.handleOutputMode)
	mux.HandleFunc("POST /v1/outputs/set", s.handleOutputSet)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/scans", s.handleScans)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.controller.ManualLock()
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Actor == "" {
		req.Actor = "operator"
	}
	s.controller.ManualUnlock(req.Actor)
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	s.controller.EmergencyStop()
	writeJSON(w, http.StatusOK, s.controller.Status())
}

type emergencyUnlockRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleEmergencyUnlock(w http.ResponseWriter, r *http.Request) {
	var req emergencyUnlockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "operator request"
	}
	s.controller.EmergencyUnlock(req.Reason)
	writeJSON(w, http.StatusOK, s.controller.Status())
}

type outputModeRequest struct {
	Channel string           `json:"channel"`
	Mode    types.OutputMode `json:"mode"`
}

func (s *Server) handleOutputMode(w http.ResponseWriter, r *http.Request) {
	var req outputModeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.controller.SetOutputMode(req.Channel, req.Mode); err != nil {
		switch {
		case errors.Is(err, lock.ErrUnknownChannel):
			writeError(w, http.StatusNotFound, "unknown_channel", err.Error())
		case errors.Is(err, lock.ErrInvalidMode):
			writeError(w, http.StatusBadRequest, "invalid_mode", err.Error())
		default:
			s.logger.Printf("outputs/mode error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Status())
}

type outputSetRequest struct {
	Channel string `json:"channel"`
	Level   bool   `json:"level"`
}

func (s *Server) handleOutputSet(w http.ResponseWriter, r *http.Request) {
	var req outputSetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.controller.SetOutput(req.Channel, req.Level); err != nil {
		switch {
		case errors.Is(err, lock.ErrUnknownChannel):
			writeError(w, http.StatusNotFound, "unknown_channel", err.Error())
		case errors.Is(err, lock.ErrNotManualMode):
			writeError(w, http.StatusConflict, "not_manual_mode", err.Error())
		default:
			s.logger.Printf("outputs/set error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req types.Settings
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.controller.UpdateSettings(req); err != nil {
		switch {
		case errors.Is(err, types.ErrTimeoutOutOfRange),
			errors.Is(err, types.ErrInvalidOutputChannel),
			errors.Is(err, types.ErrInvalidMotionChannel),
			errors.Is(err, types.ErrInvalidErrorAction):
			writeError(w, http.StatusBadRequest, "invalid_settings", err.Error())
		default:
			s.logger.Printf("settings error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Settings())
}

// handleEvents is the UI push channel: it parks until the next event or
// heartbeat, then returns exactly one.  Clients re-request in a loop.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.queue.Drain(r.Context())
	if !ok {
		// Client went away while we were parked.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("scans error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if events == nil {
		events = []store.ScanEventRecord{}
	}
	writeJSON(w, http.StatusOK, events)
}

// decodeBody decodes a JSON request body, rejecting unknown fields.  An
// empty body decodes to the zero request.  Returns false after writing
// the error response.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			// No body at all: the zero request is fine.
			return true
		}
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}
