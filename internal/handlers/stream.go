package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/harrier-systems/harrierwatch/common/httputil"
	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/internal/category"
	"github.com/harrier-systems/harrierwatch/internal/models"
	"github.com/harrier-systems/harrierwatch/internal/projector"
)

const (
	streamBuffer      = 64
	heartbeatInterval = 15 * time.Second
)

// Stream handles GET /api/v1/stream and /api/v1/stream/{category}: an
// SSE feed of reconciled deltas, one `data: {json}` frame per accepted
// record. Without a category segment the feed carries every category.
// A replay=N parameter resends the newest N retained records per
// category, oldest first, before the live tail begins; the replay and
// the tail can overlap, so consumers dedupe on sequence_id. Slow
// consumers miss frames rather than stalling ingest.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	cat := strings.TrimPrefix(r.URL.Path, "/api/v1/stream")
	cat = strings.TrimPrefix(cat, "/")
	if cat != "" {
		if strings.ContainsRune(cat, '/') {
			h.writeError(w, http.StatusNotFound, "not_found", "unknown resource")
			return
		}
		if _, ok := category.ByName(cat); !ok {
			h.writeError(w, http.StatusNotFound, "unknown_category", "unknown event category")
			return
		}
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot stream")
		return
	}

	sub := h.hub.Subscribe(cat, streamBuffer)
	defer sub.Close()

	label := cat
	if label == "" {
		label = "all"
	}
	h.log.Info("stream subscriber connected",
		logging.String("category", label),
		logging.String("source", httputil.RequestSource(r).String()),
		logging.String("client", httputil.GetClientIP(r)))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if n := httputil.ParseIntParam(r.URL.Query().Get("replay"), 0); n > 0 {
		for _, rec := range h.replayRecords(cat, n) {
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
		}
		flusher.Flush()
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, open := <-sub.Events():
			if !open {
				// Hub closed: the engine is shutting down.
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				h.log.Warn("encode stream record", logging.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// replayRecords returns the newest n retained records for cat, oldest
// first. An empty cat draws from every category, merged by arrival
// order; sequence IDs only order records within one category.
func (h *Handler) replayRecords(cat string, n int) []models.EventRecord {
	names := []string{cat}
	if cat == "" {
		names = category.Names()
	}
	desc := true
	var out []models.EventRecord
	for _, name := range names {
		res, err := projector.Events(h.store, projector.Query{Category: name, Desc: &desc, Limit: n})
		if err != nil {
			h.log.Warn("stream replay query failed", logging.String("category", name), logging.Error(err))
			continue
		}
		out = append(out, res.Items...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReceivedTimestamp.Equal(out[j].ReceivedTimestamp) {
			return out[i].ReceivedTimestamp.Before(out[j].ReceivedTimestamp)
		}
		return out[i].SequenceID < out[j].SequenceID
	})
	return out
}
