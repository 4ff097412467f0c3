// Package poller pulls authoritative snapshots on a fixed interval while
// a session is active. Each class polls independently; a fetch failure
// keeps the previous good state and the schedule.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/internal/metrics"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

const (
	defaultInterval = 10 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Source fetches one class's snapshot envelope.
type Source interface {
	Snapshot(ctx context.Context, class string) (*models.SnapshotEnvelope, error)
}

// Result is the outcome of one fetch, tagged with the epoch the poll was
// started under. Envelope is nil when Err is set.
type Result struct {
	Class    string
	Epoch    uint64
	Envelope *models.SnapshotEnvelope
	Err      error
	Took     time.Duration
}

// Config configures a Poller.
type Config struct {
	Source   Source
	Interval time.Duration
	Timeout  time.Duration

	// OnResult receives every fetch outcome. Called from poll goroutines;
	// must not block.
	OnResult func(Result)

	Logger *logging.Logger
}

// Poller runs one fetch loop per started class.
type Poller struct {
	src      Source
	interval time.Duration
	timeout  time.Duration
	onResult func(Result)
	log      *logging.Logger

	mu    sync.Mutex
	polls map[string]*poll
	wg    sync.WaitGroup
}

type poll struct {
	class  string
	epoch  uint64
	cancel context.CancelFunc
	kick   chan struct{}
	done   chan struct{}
}

func New(cfg Config) *Poller {
	if cfg.Source == nil {
		panic("poller: nil source")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.OnResult == nil {
		cfg.OnResult = func(Result) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Poller{
		src:      cfg.Source,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		onResult: cfg.OnResult,
		log:      cfg.Logger.With(logging.Component("poller")),
		polls:    make(map[string]*poll),
	}
}

// Start begins polling class under epoch, fetching once immediately and
// then on every interval tick. Starting an already-polled class with the
// same epoch is a no-op; a newer epoch replaces the running poll.
func (p *Poller) Start(class string, epoch uint64) {
	p.mu.Lock()
	if existing, ok := p.polls[class]; ok {
		if existing.epoch == epoch {
			p.mu.Unlock()
			return
		}
		existing.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	pl := &poll{
		class:  class,
		epoch:  epoch,
		cancel: cancel,
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	p.polls[class] = pl
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(ctx, pl)
}

// Stop halts polling for class and waits for its loop to finish. Stopping
// a class that is not polled is a no-op.
func (p *Poller) Stop(class string) {
	p.mu.Lock()
	pl, ok := p.polls[class]
	if ok {
		delete(p.polls, class)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	pl.cancel()
	<-pl.done
}

// StopAll halts every poll loop and waits for them to finish.
func (p *Poller) StopAll() {
	p.mu.Lock()
	for class, pl := range p.polls {
		pl.cancel()
		delete(p.polls, class)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Refresh requests an immediate fetch for class, bypassing the timer.
// No-op when the class is not polled or a refresh is already queued.
func (p *Poller) Refresh(class string) {
	p.mu.Lock()
	pl, ok := p.polls[class]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case pl.kick <- struct{}{}:
	default:
	}
}

func (p *Poller) run(ctx context.Context, pl *poll) {
	defer p.wg.Done()
	defer close(pl.done)

	log := p.log.With(logging.Class(pl.class), logging.Epoch(pl.epoch))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetch(ctx, pl, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx, pl, log)
		case <-pl.kick:
			p.fetch(ctx, pl, log)
		}
	}
}

// fetch runs inline on the loop goroutine, so a slow fetch naturally
// coalesces the ticks it missed.
func (p *Poller) fetch(ctx context.Context, pl *poll, log *logging.Logger) {
	if ctx.Err() != nil {
		return
	}
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	start := time.Now()
	env, err := p.src.Snapshot(fctx, pl.class)
	took := time.Since(start)
	cancel()

	metrics.SnapshotDuration.WithLabelValues(pl.class).Observe(took.Seconds())
	if took >= p.interval {
		metrics.SnapshotTicksSkipped.WithLabelValues(pl.class).Add(float64(took / p.interval))
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.SnapshotFetches.WithLabelValues(pl.class, "error").Inc()
		log.Warn("snapshot fetch failed", logging.Error(err), "took", took.String())
		p.onResult(Result{Class: pl.class, Epoch: pl.epoch, Err: err, Took: took})
		return
	}
	metrics.SnapshotFetches.WithLabelValues(pl.class, "ok").Inc()
	log.Debug("snapshot fetched", "events", len(env.Events), "baseline", len(env.Baseline), "took", took.String())
	p.onResult(Result{Class: pl.class, Epoch: pl.epoch, Envelope: env, Took: took})
}
