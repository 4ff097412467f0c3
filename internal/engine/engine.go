// Package engine is the reconciliation core. A single actor goroutine
// owns every store and session mutation, fed by one inbox carrying
// channel frames, snapshot results, connection state reports, and
// control commands. Every async result is tagged with the session epoch
// it was launched under and discarded on mismatch, so work from a
// stopped session can never corrupt later state. Reads never go through
// the actor; they take read locks on the store and session machine
// directly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/internal/backend"
	"github.com/harrier-systems/harrierwatch/internal/broadcast"
	"github.com/harrier-systems/harrierwatch/internal/category"
	"github.com/harrier-systems/harrierwatch/internal/channel"
	"github.com/harrier-systems/harrierwatch/internal/metrics"
	"github.com/harrier-systems/harrierwatch/internal/models"
	"github.com/harrier-systems/harrierwatch/internal/poller"
	"github.com/harrier-systems/harrierwatch/internal/session"
	"github.com/harrier-systems/harrierwatch/internal/stats"
	"github.com/harrier-systems/harrierwatch/internal/store"
)

const defaultInboxSize = 1024

// ErrClosed is returned for commands issued after the engine shut down.
var ErrClosed = errors.New("engine closed")

// Config wires the engine's collaborators.
type Config struct {
	Backend   *backend.Client
	Transport channel.Transport
	Store     *store.Store
	Sessions  *session.Machine
	Stats     *stats.Tracker
	Hub       *broadcast.Hub
	Logger    *logging.Logger

	InboxSize    int
	PollInterval time.Duration
	PollTimeout  time.Duration
	DialTimeout  time.Duration
	Backoff      channel.Backoff

	// Debug lets invariant violations crash instead of being isolated.
	Debug bool
}

// Engine coordinates sessions, channels, the poller, and the store.
type Engine struct {
	backend  *backend.Client
	store    *store.Store
	sessions *session.Machine
	stats    *stats.Tracker
	hub      *broadcast.Hub
	channels *channel.Manager
	poller   *poller.Poller
	log      *logging.Logger
	debug    bool

	inbox chan any
	quit  chan struct{}
	done  chan struct{}

	started   atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	connMu sync.RWMutex
	conns  map[string]models.ChannelConnection
}

// Inbox message kinds. Commands carry a reply channel; everything else is
// fire-and-forget from producer goroutines.
type (
	frameMsg    struct{ frame channel.Frame }
	stateMsg    struct{ change channel.StateChange }
	snapshotMsg struct{ result poller.Result }

	commandMsg struct {
		op    string
		class string
		reply chan error
	}

	controlResultMsg struct {
		op    string
		class string
		epoch uint64
		err   error
	}
)

func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Backend == nil:
		return nil, errors.New("engine: nil backend client")
	case cfg.Transport == nil:
		return nil, errors.New("engine: nil transport")
	case cfg.Store == nil:
		return nil, errors.New("engine: nil store")
	case cfg.Sessions == nil:
		return nil, errors.New("engine: nil session machine")
	case cfg.Stats == nil:
		return nil, errors.New("engine: nil stats tracker")
	case cfg.Hub == nil:
		return nil, errors.New("engine: nil broadcast hub")
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	e := &Engine{
		backend:  cfg.Backend,
		store:    cfg.Store,
		sessions: cfg.Sessions,
		stats:    cfg.Stats,
		hub:      cfg.Hub,
		log:      cfg.Logger.With(logging.Component("engine")),
		debug:    cfg.Debug,
		inbox:    make(chan any, cfg.InboxSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		conns:    make(map[string]models.ChannelConnection),
	}
	for _, class := range models.Classes() {
		e.conns[class] = models.ChannelConnection{Class: class, State: models.ChannelDisconnected}
	}

	e.channels = channel.NewManager(channel.ManagerConfig{
		Transport:   cfg.Transport,
		Backoff:     cfg.Backoff,
		DialTimeout: cfg.DialTimeout,
		OnFrame:     func(f channel.Frame) { e.post(frameMsg{frame: f}) },
		OnState:     func(sc channel.StateChange) { e.post(stateMsg{change: sc}) },
		Logger:      cfg.Logger,
	})
	e.poller = poller.New(poller.Config{
		Source:   cfg.Backend,
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
		OnResult: func(r poller.Result) { e.post(snapshotMsg{result: r}) },
		Logger:   cfg.Logger,
	})
	return e, nil
}

// Run starts the actor loop. Calling Run more than once is a no-op.
func (e *Engine) Run() {
	if e.started.Swap(true) {
		return
	}
	go e.loop()
}

// Close stops the actor, tears down every connection and poll loop, and
// closes the broadcast hub. Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
		if e.started.Load() {
			<-e.done
		}
		e.channels.CloseAll()
		e.poller.StopAll()
		e.wg.Wait()
		e.hub.Close()
	})
}

// Start requests a session start for class. A nil return means the
// session entered Starting; activation completes asynchronously once the
// backend acknowledges.
func (e *Engine) Start(ctx context.Context, class string) error {
	return e.command(ctx, "start", class)
}

// Stop requests a session stop for class.
func (e *Engine) Stop(ctx context.Context, class string) error {
	return e.command(ctx, "stop", class)
}

// AckError acknowledges an Errored session, returning it to Idle.
func (e *Engine) AckError(ctx context.Context, class string) error {
	return e.command(ctx, "ack-error", class)
}

// RefreshSnapshot requests an immediate snapshot fetch, bypassing the
// poll timer. No-op unless the class session is active.
func (e *Engine) RefreshSnapshot(class string) {
	e.poller.Refresh(class)
}

// Status returns the combined status document for one class.
func (e *Engine) Status(class string) (models.SessionStatus, bool) {
	sess, ok := e.sessions.Get(class)
	if !ok {
		return models.SessionStatus{}, false
	}
	e.connMu.RLock()
	conn := e.conns[class]
	e.connMu.RUnlock()
	return models.SessionStatus{
		Session: sess,
		Channel: conn,
		Stats:   e.stats.Stats(class),
	}, true
}

// StatusAll returns status documents for every class in class order.
func (e *Engine) StatusAll() []models.SessionStatus {
	out := make([]models.SessionStatus, 0, 2)
	for _, class := range models.Classes() {
		if st, ok := e.Status(class); ok {
			out = append(out, st)
		}
	}
	return out
}

func (e *Engine) command(ctx context.Context, op, class string) error {
	if !models.ValidClass(class) {
		return &models.ControlError{Class: class, Op: op, Reason: "unknown class"}
	}
	cmd := commandMsg{op: op, class: class, reply: make(chan error, 1)}
	select {
	case e.inbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// post is the lossy producer-side send: frames, state changes, and
// snapshot results may be dropped when the inbox is full.
func (e *Engine) post(msg any) {
	select {
	case e.inbox <- msg:
		metrics.InboxDepth.Set(float64(len(e.inbox)))
	default:
		metrics.InboxDropped.Inc()
	}
}

// postControl is the reliable send for control results; losing one would
// wedge a session in Starting or Stopping.
func (e *Engine) postControl(msg controlResultMsg) {
	select {
	case e.inbox <- msg:
	case <-e.quit:
	}
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			return
		case msg := <-e.inbox:
			e.handle(msg)
			metrics.InboxDepth.Set(float64(len(e.inbox)))
		}
	}
}

func (e *Engine) handle(msg any) {
	if !e.debug {
		defer func() {
			if r := recover(); r != nil {
				metrics.InvariantViolations.Inc()
				e.log.Error("invariant violation isolated", "panic", fmt.Sprint(r))
			}
		}()
	}
	switch m := msg.(type) {
	case frameMsg:
		e.handleFrame(m.frame)
	case stateMsg:
		e.handleState(m.change)
	case snapshotMsg:
		e.handleSnapshot(m.result)
	case commandMsg:
		m.reply <- e.handleCommand(m)
	case controlResultMsg:
		e.handleControlResult(m)
	default:
		metrics.InvariantViolations.Inc()
		e.log.Error("unknown inbox message", "type", fmt.Sprintf("%T", msg))
	}
}

func (e *Engine) handleCommand(cmd commandMsg) error {
	switch cmd.op {
	case "start":
		epoch, cerr := e.sessions.BeginStart(cmd.class)
		if cerr != nil {
			return cerr
		}
		e.log.Info("session starting", logging.Class(cmd.class), logging.Epoch(epoch))
		e.dispatchControl("start", cmd.class, epoch)
		return nil
	case "stop":
		epoch, cerr := e.sessions.BeginStop(cmd.class)
		if cerr != nil {
			return cerr
		}
		e.log.Info("session stopping", logging.Class(cmd.class), logging.Epoch(epoch))
		e.dispatchControl("stop", cmd.class, epoch)
		return nil
	case "ack-error":
		if cerr := e.sessions.AckError(cmd.class); cerr != nil {
			return cerr
		}
		e.teardown(cmd.class)
		e.log.Info("session error acknowledged", logging.Class(cmd.class))
		return nil
	default:
		return &models.ControlError{Class: cmd.class, Op: cmd.op, Reason: "unknown operation"}
	}
}

// dispatchControl runs the backend control call off the actor goroutine
// so a slow backend never stalls frame processing.
func (e *Engine) dispatchControl(op, class string, epoch uint64) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		var err error
		if op == "start" {
			err = e.backend.StartMonitor(context.Background(), class)
		} else {
			err = e.backend.StopMonitor(context.Background(), class)
		}
		e.postControl(controlResultMsg{op: op, class: class, epoch: epoch, err: err})
	}()
}

func (e *Engine) handleControlResult(m controlResultMsg) {
	if e.sessions.Epoch(m.class) != m.epoch {
		metrics.StaleResultsDiscarded.WithLabelValues(m.class, "control").Inc()
		e.log.Debug("stale control result discarded", logging.Class(m.class), logging.Epoch(m.epoch))
		return
	}
	switch m.op {
	case "start":
		if m.err != nil && !errors.Is(m.err, backend.ErrAlreadyRunning) {
			e.failSession(m.class, fmt.Sprintf("backend start rejected: %v", m.err))
			return
		}
		if e.sessions.ConfirmActive(m.class, m.epoch) {
			e.channels.Open(m.class, m.epoch)
			e.poller.Start(m.class, m.epoch)
			e.log.Info("session active", logging.Class(m.class), logging.Epoch(m.epoch))
		}
	case "stop":
		if m.err != nil && !errors.Is(m.err, backend.ErrNotRunning) {
			e.failSession(m.class, fmt.Sprintf("backend stop rejected: %v", m.err))
			return
		}
		if e.sessions.ConfirmIdle(m.class, m.epoch) {
			e.teardown(m.class)
			e.log.Info("session idle", logging.Class(m.class), logging.Epoch(m.epoch))
		}
	}
}

func (e *Engine) handleFrame(f channel.Frame) {
	if e.sessions.Epoch(f.Class) != f.Epoch {
		metrics.StaleResultsDiscarded.WithLabelValues(f.Class, "frame").Inc()
		return
	}
	ev, err := models.ParseFrame(f.Data)
	if err != nil {
		metrics.FramesMalformed.WithLabelValues(f.Class).Inc()
		e.log.Warn("malformed frame", logging.Class(f.Class), logging.Error(err))
		return
	}
	profile, ok := category.Classify(f.Class, ev.Type)
	if !ok {
		metrics.EventsDiscarded.WithLabelValues(f.Class, "unknown_type").Inc()
		e.log.Warn("frame with unknown event type", logging.Class(f.Class), "event_type", ev.Type)
		return
	}
	rec, res := e.store.Ingest(profile.Name, ev, false)
	e.account(f.Class, profile.Name, "channel", rec, res)
}

func (e *Engine) handleSnapshot(r poller.Result) {
	if e.sessions.Epoch(r.Class) != r.Epoch {
		metrics.StaleResultsDiscarded.WithLabelValues(r.Class, "snapshot").Inc()
		e.log.Debug("stale snapshot discarded", logging.Class(r.Class), logging.Epoch(r.Epoch))
		return
	}
	if r.Err != nil {
		// Last good baseline stays; the poller keeps the schedule.
		return
	}
	env := r.Envelope
	applied := e.store.ApplySnapshot(r.Class, *env)
	for _, rec := range applied {
		e.account(r.Class, rec.Category, "snapshot", rec, store.IngestAccepted)
	}
	takenAt := env.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now().UTC()
	}
	e.stats.RecordSnapshot(r.Class, takenAt, env.Sensor.UptimeSeconds)
	e.sessions.SetDescriptor(r.Class, env.Sensor.Descriptor)
	if !env.Sensor.Running {
		e.log.Warn("sensor reports not running while session active", logging.Class(r.Class))
	}
	e.log.Debug("snapshot applied", logging.Class(r.Class),
		"events_applied", len(applied), "baseline_size", len(env.Baseline))
}

func (e *Engine) handleState(sc channel.StateChange) {
	if e.sessions.Epoch(sc.Class) != sc.Epoch {
		metrics.StaleResultsDiscarded.WithLabelValues(sc.Class, "state").Inc()
		return
	}
	conn := models.ChannelConnection{
		Class:      sc.Class,
		State:      sc.State,
		RetryCount: sc.RetryCount,
	}
	if sc.RetryIn > 0 {
		conn.NextRetry = time.Now().Add(sc.RetryIn)
	}
	if sc.Err != nil {
		conn.LastError = sc.Err.Error()
	}
	e.setConn(conn)

	if sc.Err != nil && errors.Is(sc.Err, models.ErrUnauthenticated) {
		e.failSession(sc.Class, "push channel unauthenticated")
	}
}

func (e *Engine) account(class, cat, source string, rec models.EventRecord, res store.IngestResult) {
	switch res {
	case store.IngestAccepted:
		metrics.EventsReceived.WithLabelValues(cat, source).Inc()
		size, _ := e.store.LogSize(cat)
		metrics.LogEntries.WithLabelValues(cat).Set(float64(size))
		e.stats.RecordEvent(class, rec)
		e.hub.Publish(rec)
	case store.IngestDuplicate:
		metrics.EventsDiscarded.WithLabelValues(cat, "duplicate").Inc()
		e.stats.RecordDeduplicated(class)
	case store.IngestSuppressed:
		metrics.EventsDiscarded.WithLabelValues(cat, "burst").Inc()
		e.stats.RecordDeduplicated(class)
	case store.IngestNoSubject:
		metrics.EventsDiscarded.WithLabelValues(cat, "no_subject").Inc()
	case store.IngestUnknownCategory:
		// Classification vetted cat before ingest, so the store and the
		// registry have diverged. The actor loop isolates this in
		// production and crashes in debug.
		panic(&models.InternalInvariantError{
			Detail: fmt.Sprintf("store has no log for classified category %q", cat),
		})
	}
}

func (e *Engine) failSession(class, reason string) {
	e.sessions.Fail(class, reason)
	e.teardown(class)
	e.log.Error("session failed", logging.Class(class), "reason", reason)
}

// teardown closes the class channel and poll loop and marks the channel
// disconnected. All of it is idempotent.
func (e *Engine) teardown(class string) {
	e.channels.Close(class)
	e.poller.Stop(class)
	e.setConn(models.ChannelConnection{Class: class, State: models.ChannelDisconnected})
}

func (e *Engine) setConn(conn models.ChannelConnection) {
	e.connMu.Lock()
	e.conns[conn.Class] = conn
	e.connMu.Unlock()
}
