package handlers

import (
	"net/http"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

type classHealth struct {
	Session       models.SessionState `json:"session"`
	Channel       models.ChannelState `json:"channel"`
	SnapshotAge   *float64            `json:"snapshot_age_seconds,omitempty"`
	SnapshotStale bool                `json:"snapshot_stale"`
}

type healthReply struct {
	Status        string                 `json:"status"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	Classes       map[string]classHealth `json:"classes"`
}

// Health handles GET /healthz. Always 200 while the process serves;
// Status degrades to "degraded" when any session is errored so probes
// that inspect the body can tell liveness from health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	now := time.Now()
	reply := healthReply{
		Status:        "ok",
		UptimeSeconds: now.Sub(h.started).Seconds(),
		Classes:       make(map[string]classHealth),
	}
	for _, st := range h.engine.StatusAll() {
		ch := classHealth{
			Session:       st.Session.State,
			Channel:       st.Channel.State,
			SnapshotStale: st.Stats.SnapshotStale,
		}
		if !st.Stats.LastSnapshotAt.IsZero() {
			age := now.Sub(st.Stats.LastSnapshotAt).Seconds()
			ch.SnapshotAge = &age
		}
		if st.Session.State == models.SessionErrored {
			reply.Status = "degraded"
		}
		reply.Classes[st.Session.Class] = ch
	}
	h.writeJSON(w, http.StatusOK, reply)
}
