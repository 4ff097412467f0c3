// Package handlers wires the engine's REST and SSE surface. Handlers
// never touch the actor directly: commands go through the engine's
// command API, reads go through the store's and session machine's read
// locks via the engine's status views.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/internal/broadcast"
	"github.com/harrier-systems/harrierwatch/internal/engine"
	"github.com/harrier-systems/harrierwatch/internal/models"
	"github.com/harrier-systems/harrierwatch/internal/projector"
)

// Controller is the engine surface the control endpoints drive.
type Controller interface {
	Start(ctx context.Context, class string) error
	Stop(ctx context.Context, class string) error
	AckError(ctx context.Context, class string) error
	Status(class string) (models.SessionStatus, bool)
	StatusAll() []models.SessionStatus
}

// InterfaceLister fetches the sensor host's interface inventory.
type InterfaceLister interface {
	Interfaces(ctx context.Context) ([]models.Interface, error)
}

// Config wires a Handler's collaborators.
type Config struct {
	Engine  Controller
	Store   projector.EventSource
	Hub     *broadcast.Hub
	Backend InterfaceLister
	Logger  *logging.Logger
}

// Handler serves the harrierd HTTP API.
type Handler struct {
	engine  Controller
	store   projector.EventSource
	hub     *broadcast.Hub
	backend InterfaceLister
	log     *logging.Logger
	started time.Time
}

// New creates a Handler instance.
func New(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Handler{
		engine:  cfg.Engine,
		store:   cfg.Store,
		hub:     cfg.Hub,
		backend: cfg.Backend,
		log:     log.With(logging.Component("handlers")),
		started: time.Now(),
	}
}

// Sessions handles GET /api/v1/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	h.writeJSON(w, http.StatusOK, h.engine.StatusAll())
}

// SessionByClass handles /api/v1/sessions/{class} and the control verbs
// /api/v1/sessions/{class}/{start|stop|ack-error}.
func (h *Handler) SessionByClass(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) > 2 || parts[0] == "" {
		h.writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	class := parts[0]
	if !models.ValidClass(class) {
		h.writeError(w, http.StatusNotFound, "unknown_class", "unknown resource class")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, http.MethodGet)
			return
		}
		st, ok := h.engine.Status(class)
		if !ok {
			h.writeError(w, http.StatusNotFound, "unknown_class", "unknown resource class")
			return
		}
		h.writeJSON(w, http.StatusOK, st)
		return
	}

	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}
	switch parts[1] {
	case "start":
		// Accepted means the session entered Starting; activation
		// completes once the sensor acknowledges.
		if err := h.engine.Start(r.Context(), class); err != nil {
			h.writeControlError(w, "start_rejected", err)
			return
		}
		h.writeStatus(w, http.StatusAccepted, class)
	case "stop":
		if err := h.engine.Stop(r.Context(), class); err != nil {
			h.writeControlError(w, "stop_rejected", err)
			return
		}
		h.writeStatus(w, http.StatusAccepted, class)
	case "ack-error":
		if err := h.engine.AckError(r.Context(), class); err != nil {
			h.writeControlError(w, "ack_rejected", err)
			return
		}
		h.writeStatus(w, http.StatusOK, class)
	default:
		h.writeError(w, http.StatusNotFound, "unknown_operation", "unknown session operation")
	}
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int, class string) {
	st, ok := h.engine.Status(class)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown_class", "unknown resource class")
		return
	}
	h.writeJSON(w, status, st)
}

func (h *Handler) writeControlError(w http.ResponseWriter, code string, err error) {
	var cerr *models.ControlError
	switch {
	case errors.As(err, &cerr):
		h.writeError(w, http.StatusConflict, code, cerr.Reason)
	case errors.Is(err, engine.ErrClosed):
		h.writeError(w, http.StatusServiceUnavailable, "engine_closed", "engine is shutting down")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.writeError(w, http.StatusGatewayTimeout, "command_timeout", "command timed out")
	default:
		h.writeError(w, http.StatusInternalServerError, "control_failed", err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("encode response", logging.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method is not allowed")
}
