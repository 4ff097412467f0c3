package sim

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harrier-systems/harrierwatch/common/httputil"
	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/internal/channel/wstransport"
	"github.com/harrier-systems/harrierwatch/internal/models"
	"github.com/harrier-systems/harrierwatch/internal/tokens"
)

// Server exposes the sensor HTTP surface: session control, snapshots,
// the interface inventory, and the websocket event feeds. A nil
// validator disables authentication.
type Server struct {
	sim       *Simulator
	validator *tokens.Validator
	log       *logging.Logger
	upgrader  websocket.Upgrader
}

func NewServer(sim *Simulator, validator *tokens.Validator, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{
		sim:       sim,
		validator: validator,
		log:       log.With(logging.Component("simserver")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Routes builds the sensor API mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/interfaces", s.handleInterfaces)
	mux.HandleFunc("/api/", s.handleClass)
	mux.HandleFunc("/ws/", s.handleEvents)
	return mux
}

type statusReply struct {
	Status string `json:"status"`
}

// handleClass serves /api/{class}/{start|stop|snapshot}.
func (s *Server) handleClass(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		httputil.WriteError(w, http.StatusNotFound, "unknown resource")
		return
	}
	class, op := parts[0], parts[1]
	if !models.ValidClass(class) {
		httputil.WriteError(w, http.StatusNotFound, "unknown class")
		return
	}

	switch op {
	case "start", "stop":
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w, http.MethodPost)
			return
		}
		s.control(w, r, class, op)
	case "snapshot":
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w, http.MethodGet)
			return
		}
		env, err := s.sim.Snapshot(class)
		if err != nil {
			httputil.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, env)
	default:
		httputil.WriteError(w, http.StatusNotFound, "unknown operation")
	}
}

func (s *Server) control(w http.ResponseWriter, r *http.Request, class, op string) {
	var err error
	switch op {
	case "start":
		err = s.sim.StartMonitor(class, s.startDescriptor(r))
	case "stop":
		err = s.sim.StopMonitor(class)
	}

	switch err {
	case nil:
		httputil.WriteJSON(w, http.StatusOK, statusReply{Status: "ok"})
	case ErrAlreadyRunning:
		httputil.WriteError(w, http.StatusConflict, "already running")
	case ErrNotRunning:
		httputil.WriteError(w, http.StatusConflict, "not running")
	default:
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// startDescriptor pulls an optional descriptor override from the start
// request body. An empty or absent body keeps the configured default.
func (s *Server) startDescriptor(r *http.Request) string {
	var body struct {
		Descriptor string `json:"descriptor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Descriptor
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	if !s.authorized(r) {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ifaces, err := s.sim.Interfaces()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"interfaces": ifaces})
}

// handleEvents serves /ws/{class}/events. The socket is upgraded before
// the token check so a rejection reaches the client as close code 4001
// rather than a failed handshake.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/ws/"), "/")
	if len(parts) != 2 || parts[1] != "events" || !models.ValidClass(parts[0]) {
		http.NotFound(w, r)
		return
	}
	class := parts[0]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", logging.Error(err))
		return
	}

	if !s.authorized(r) {
		deadline := time.Now().Add(5 * time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(wstransport.CloseUnauthenticated, "unauthenticated"),
			deadline)
		conn.Close()
		s.log.Warn("event feed rejected", logging.Class(class))
		return
	}

	c := s.sim.hub.add(class, conn)
	s.log.Info("event feed connected", logging.Class(class),
		"clients", s.sim.hub.clientCount(class))

	// Drain reads until the peer goes away. The default ping handler
	// answers engine pings with pongs during ReadMessage.
	defer s.sim.hub.remove(class, c)
	conn.SetReadLimit(1 << 16)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// authorized checks the bearer token when a validator is configured.
func (s *Server) authorized(r *http.Request) bool {
	if s.validator == nil {
		return true
	}
	tok := bearerToken(r)
	if tok == "" {
		return false
	}
	_, err := s.validator.Validate(tok)
	return err == nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}
