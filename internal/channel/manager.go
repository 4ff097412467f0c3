package channel

import (
	"context"
	"sync"
	"time"

	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/internal/metrics"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

const defaultDialTimeout = 10 * time.Second

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Transport   Transport
	Backoff     Backoff
	DialTimeout time.Duration

	// OnFrame and OnState receive frames and connection state changes.
	// Both are called from connection goroutines and must not block;
	// the receiver decides what to drop under pressure.
	OnFrame func(Frame)
	OnState func(StateChange)

	Logger *logging.Logger
}

// Manager owns one connection goroutine per opened class. Connections
// redial forever with capped exponential backoff until closed.
type Manager struct {
	transport   Transport
	backoff     Backoff
	dialTimeout time.Duration
	onFrame     func(Frame)
	onState     func(StateChange)
	log         *logging.Logger

	mu    sync.Mutex
	conns map[string]*conn
	wg    sync.WaitGroup
}

type conn struct {
	class  string
	epoch  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds a Manager. Transport is required.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Transport == nil {
		panic("channel: nil transport")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.OnFrame == nil {
		cfg.OnFrame = func(Frame) {}
	}
	if cfg.OnState == nil {
		cfg.OnState = func(StateChange) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Manager{
		transport:   cfg.Transport,
		backoff:     cfg.Backoff,
		dialTimeout: cfg.DialTimeout,
		onFrame:     cfg.OnFrame,
		onState:     cfg.OnState,
		log:         cfg.Logger.With(logging.Component("channel"), logging.Transport(cfg.Transport.Name())),
		conns:       make(map[string]*conn),
	}
}

// Open starts the connection loop for class under the given epoch. Opening
// an already-open class with the same epoch is a no-op; a newer epoch
// replaces the existing connection.
func (m *Manager) Open(class string, epoch uint64) {
	m.mu.Lock()
	if existing, ok := m.conns[class]; ok {
		if existing.epoch == epoch {
			m.mu.Unlock()
			return
		}
		existing.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		class:  class,
		epoch:  epoch,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.conns[class] = c
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(ctx, c)
}

// Close stops the connection for class and waits for its goroutine to
// finish. Closing a class that is not open is a no-op.
func (m *Manager) Close(class string) {
	m.mu.Lock()
	c, ok := m.conns[class]
	if ok {
		delete(m.conns, class)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	c.cancel()
	<-c.done
}

// CloseAll stops every connection and waits for all goroutines to finish.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	for class, c := range m.conns {
		c.cancel()
		delete(m.conns, class)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// IsOpen reports whether a connection loop is running for class.
func (m *Manager) IsOpen(class string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[class]
	return ok
}

func (m *Manager) run(ctx context.Context, c *conn) {
	defer m.wg.Done()
	defer close(c.done)

	log := m.log.With(logging.Class(c.class), logging.Epoch(c.epoch))
	retry := 0
	for {
		m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelConnecting, RetryCount: retry})

		dialCtx, cancel := context.WithTimeout(ctx, m.dialTimeout)
		src, err := m.transport.Open(dialCtx, c.class)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelDisconnected})
				return
			}
			delay := m.backoff.Delay(retry)
			retry++
			metrics.ChannelReconnects.WithLabelValues(c.class).Inc()
			log.Warn("channel connect failed",
				logging.Error(&models.ChannelError{Class: c.class, Op: "dial", Err: err}),
				"retry", retry,
				"retry_in", delay.String())
			m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelBackoff, RetryCount: retry, RetryIn: delay, Err: err})
			if !m.sleep(ctx, delay) {
				m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelDisconnected})
				return
			}
			continue
		}

		retry = 0
		log.Info("channel connected")
		m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelConnected})

		streamErr := m.consume(ctx, c, src)
		src.Close()

		if ctx.Err() != nil {
			m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelDisconnected})
			log.Info("channel closed")
			return
		}

		delay := m.backoff.Delay(retry)
		retry++
		metrics.ChannelReconnects.WithLabelValues(c.class).Inc()
		log.Warn("channel stream ended",
			logging.Error(&models.ChannelError{Class: c.class, Op: "stream", Err: streamErr}),
			"retry_in", delay.String())
		m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelBackoff, RetryCount: retry, RetryIn: delay, Err: streamErr})
		if !m.sleep(ctx, delay) {
			m.report(StateChange{Class: c.class, Epoch: c.epoch, State: models.ChannelDisconnected})
			return
		}
	}
}

// consume forwards frames until the stream ends or ctx is cancelled,
// returning the stream's terminal error.
func (m *Manager) consume(ctx context.Context, c *conn, src FrameSource) error {
	for {
		select {
		case data, ok := <-src.Frames():
			if !ok {
				return src.Err()
			}
			m.onFrame(Frame{Class: c.class, Epoch: c.epoch, Data: data})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sleep waits for d or until ctx is cancelled, reporting whether the
// full wait elapsed.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) report(sc StateChange) {
	metrics.ChannelState.WithLabelValues(sc.Class).Set(metrics.ChannelStateValue(string(sc.State)))
	m.onState(sc)
}
