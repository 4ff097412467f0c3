package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harrier-systems/harrierwatch/common/httputil"
	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/internal/category"
	"github.com/harrier-systems/harrierwatch/internal/models"
	"github.com/harrier-systems/harrierwatch/internal/projector"
)

// Events handles GET /api/v1/events/{category}. Filter parameters other
// than the common ones are matched against the category's registered
// facets, so each category accepts exactly the filters it defines.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	cat := strings.TrimPrefix(r.URL.Path, "/api/v1/events/")
	if cat == "" || strings.ContainsRune(cat, '/') {
		h.writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	profile, ok := category.ByName(cat)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown_category", "unknown event category")
		return
	}

	q := projector.Query{Category: cat}
	params := r.URL.Query()
	for _, t := range params["type"] {
		if t != "" {
			q.Types = append(q.Types, t)
		}
	}
	q.SubjectContains = params.Get("subject")
	q.SortBy = params.Get("sort")
	if v := params.Get("desc"); v != "" {
		desc, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "desc must be a boolean")
			return
		}
		q.Desc = &desc
	}
	win := httputil.ParseWindow(r, projector.DefaultLimit, projector.MaxLimit)
	q.Offset, q.Limit = win.Offset, win.Limit
	for name := range profile.Facets {
		if v := params.Get(name); v != "" {
			if q.Facets == nil {
				q.Facets = make(map[string]string)
			}
			q.Facets[name] = v
		}
	}

	res, err := projector.Events(h.store, q)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// baselineReply lists a class baseline with the time it was taken.
type baselineReply struct {
	Class   string                 `json:"class"`
	TakenAt time.Time              `json:"taken_at,omitempty"`
	Entries []models.BaselineEntry `json:"entries"`
}

// Baseline handles GET /api/v1/baseline/{class}.
func (h *Handler) Baseline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	class := strings.TrimPrefix(r.URL.Path, "/api/v1/baseline/")
	if class == "" || strings.ContainsRune(class, '/') {
		h.writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	entries, takenAt, err := projector.BaselineView(h.store, class)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown_class", "unknown resource class")
		return
	}
	h.writeJSON(w, http.StatusOK, baselineReply{Class: class, TakenAt: takenAt, Entries: entries})
}

// Stats handles GET /api/v1/stats: per-class counters keyed by class.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	out := make(map[string]models.ClassStats)
	for _, st := range h.engine.StatusAll() {
		out[st.Session.Class] = st.Stats
	}
	h.writeJSON(w, http.StatusOK, out)
}

// interfacesReply mirrors the sensor's inventory shape.
type interfacesReply struct {
	Interfaces []models.Interface `json:"interfaces"`
}

// Interfaces handles GET /api/v1/interfaces, proxied to the sensor
// backend on every call; the inventory is not cached.
func (h *Handler) Interfaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	ifaces, err := h.backend.Interfaces(r.Context())
	if err != nil {
		h.log.Warn("interface inventory fetch failed", logging.Error(err))
		h.writeError(w, http.StatusBadGateway, "backend_unavailable", "sensor backend did not answer")
		return
	}
	if ifaces == nil {
		ifaces = []models.Interface{}
	}
	h.writeJSON(w, http.StatusOK, interfacesReply{Interfaces: ifaces})
}
