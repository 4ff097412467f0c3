// Package sim implements a stand-in sensor backend: it serves the control,
// snapshot, and interface endpoints harrierd polls, and pushes event frames
// over websocket and broker channels. File events come from a real fsnotify
// watch or from synthetic generation; packets and alerts are synthesized.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/common/messaging"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

// ErrAlreadyRunning and ErrNotRunning are the idempotent control
// rejections; the server maps them to 409 bodies harrierd recognizes.
var (
	ErrAlreadyRunning = fmt.Errorf("already running")
	ErrNotRunning     = fmt.Errorf("not running")
)

// classState is the sensor-side session for one resource class.
type classState struct {
	running    bool
	descriptor string
	startedAt  time.Time
	cancel     context.CancelFunc
	recent     []models.SensorEvent
}

// Simulator owns the sensor-side state: per-class sessions, baselines,
// recent event buffers, and the fan-out paths.
type Simulator struct {
	scenario Scenario
	hub      *wsHub
	log      *logging.Logger

	// publishers receive every emitted frame alongside the WS hub.
	publishers []messaging.Publisher

	mu       sync.Mutex
	classes  map[string]*classState
	fileBase map[string]map[string]interface{}

	gen     *generator
	watcher *fileWatcher

	wg sync.WaitGroup
}

// Options configures a Simulator.
type Options struct {
	Scenario   Scenario
	Publishers []messaging.Publisher
	Logger     *logging.Logger
	Seed       int64
}

// New builds a Simulator; Run loops start per class on StartMonitor.
func New(opts Options) *Simulator {
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{
		scenario:   opts.Scenario,
		hub:        newWSHub(),
		log:        log.With(logging.Component("sim")),
		publishers: opts.Publishers,
		classes: map[string]*classState{
			models.ClassFile:    {},
			models.ClassNetwork: {descriptor: "any"},
		},
		fileBase: make(map[string]map[string]interface{}),
		gen:      newGenerator(opts.Scenario, seed),
	}

	for _, f := range opts.Scenario.SeedFiles {
		s.fileBase[f.Path] = map[string]interface{}{
			"hash":     f.Hash,
			"size":     f.Size,
			"mod_time": time.Now().UTC().Format(time.RFC3339),
		}
	}
	return s
}

// StartMonitor begins a class's event production.
func (s *Simulator) StartMonitor(class, descriptor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.classes[class]
	if !ok {
		return fmt.Errorf("unknown class %q", class)
	}
	if st.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	st.running = true
	st.startedAt = time.Now()
	st.cancel = cancel
	if descriptor != "" {
		st.descriptor = descriptor
	}

	switch class {
	case models.ClassFile:
		if s.scenario.Mode == ModeLive {
			w, err := newFileWatcher(s.scenario.WatchRoot, s.log)
			if err != nil {
				st.running = false
				st.cancel = nil
				cancel()
				return fmt.Errorf("start watch: %w", err)
			}
			s.watcher = w
			if st.descriptor == "" {
				st.descriptor = s.scenario.WatchRoot
			}
			s.wg.Add(1)
			go s.liveFileLoop(ctx, w)
		} else {
			if st.descriptor == "" {
				st.descriptor = "/etc"
			}
			s.wg.Add(1)
			go s.syntheticFileLoop(ctx)
		}
	case models.ClassNetwork:
		s.wg.Add(1)
		go s.packetLoop(ctx)
	}

	s.log.Info("monitoring started", logging.Class(class), "descriptor", st.descriptor)
	return nil
}

// StopMonitor ends a class's event production.
func (s *Simulator) StopMonitor(class string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.classes[class]
	if !ok {
		return fmt.Errorf("unknown class %q", class)
	}
	if !st.running {
		return ErrNotRunning
	}
	st.running = false
	st.cancel()
	st.cancel = nil
	if class == models.ClassFile && s.watcher != nil {
		s.watcher.close()
		s.watcher = nil
	}
	s.log.Info("monitoring stopped", logging.Class(class))
	return nil
}

// Close stops all classes and disconnects every client.
func (s *Simulator) Close() {
	s.mu.Lock()
	for _, st := range s.classes {
		if st.running {
			st.running = false
			st.cancel()
			st.cancel = nil
		}
	}
	if s.watcher != nil {
		s.watcher.close()
		s.watcher = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.hub.closeAll()
	for _, p := range s.publishers {
		p.Close()
	}
}

// Snapshot assembles the authoritative envelope for one class.
func (s *Simulator) Snapshot(class string) (*models.SnapshotEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.classes[class]
	if !ok {
		return nil, fmt.Errorf("unknown class %q", class)
	}

	env := &models.SnapshotEnvelope{
		Class:   class,
		TakenAt: time.Now().UTC(),
		Events:  append([]models.SensorEvent(nil), st.recent...),
		Sensor: models.SensorStatus{
			Running:    st.running,
			Descriptor: st.descriptor,
		},
	}
	if st.running {
		env.Sensor.UptimeSeconds = time.Since(st.startedAt).Seconds()
	}

	switch class {
	case models.ClassFile:
		env.Baseline = make(models.Baseline, len(s.fileBase))
		for path, meta := range s.fileBase {
			copied := make(map[string]interface{}, len(meta))
			for k, v := range meta {
				copied[k] = v
			}
			env.Baseline[path] = copied
		}
	case models.ClassNetwork:
		env.Baseline = interfaceBaseline()
	}
	return env, nil
}

// Status reports one class's sensor-side session.
func (s *Simulator) Status(class string) (models.SensorStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.classes[class]
	if !ok {
		return models.SensorStatus{}, false
	}
	out := models.SensorStatus{Running: st.running, Descriptor: st.descriptor}
	if st.running {
		out.UptimeSeconds = time.Since(st.startedAt).Seconds()
	}
	return out, true
}

// Interfaces lists the host's network interfaces.
func (s *Simulator) Interfaces() ([]models.Interface, error) {
	stats, err := psnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]models.Interface, 0, len(stats))
	for _, st := range stats {
		iface := models.Interface{
			Name:     st.Name,
			MTU:      st.MTU,
			Hardware: st.HardwareAddr,
			Flags:    st.Flags,
		}
		for _, addr := range st.Addrs {
			iface.Addresses = append(iface.Addresses, addr.Addr)
		}
		out = append(out, iface)
	}
	return out, nil
}

// interfaceBaseline reads the per-interface traffic counters.
func interfaceBaseline() models.Baseline {
	base := make(models.Baseline)
	counters, err := psnet.IOCounters(true)
	if err != nil {
		return base
	}
	up := make(map[string]bool)
	if stats, err := psnet.Interfaces(); err == nil {
		for _, st := range stats {
			for _, f := range st.Flags {
				if f == "up" {
					up[st.Name] = true
				}
			}
		}
	}
	for _, c := range counters {
		base[c.Name] = map[string]interface{}{
			"bytes_sent":   c.BytesSent,
			"bytes_recv":   c.BytesRecv,
			"packets_sent": c.PacketsSent,
			"packets_recv": c.PacketsRecv,
			"is_up":        up[c.Name],
		}
	}
	return base
}

// emit records ev in the class's recent buffer and pushes its frame to
// every websocket client and broker publisher.
func (s *Simulator) emit(class string, ev models.SensorEvent) {
	s.mu.Lock()
	st := s.classes[class]
	st.recent = append(st.recent, ev)
	if limit := s.scenario.RecentEvents; limit > 0 && len(st.recent) > limit {
		st.recent = st.recent[len(st.recent)-limit:]
	}
	s.mu.Unlock()

	frame, err := models.EncodeFrame(ev)
	if err != nil {
		s.log.Warn("encode frame", logging.Error(err))
		return
	}
	s.hub.publish(class, frame)

	subject := messaging.SensorEventsSubject(class)
	for _, p := range s.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := p.Publish(ctx, subject, frame); err != nil {
			s.log.Warn("broker publish", logging.Class(class), logging.Error(err))
		}
		cancel()
	}
}

// packetLoop produces capture events and the alerts they trip.
func (s *Simulator) packetLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.scenario.PacketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pkt := s.gen.packet(now)
			s.emit(models.ClassNetwork, pkt)

			if alert, ok := s.gen.alertFor(pkt, now); ok {
				s.emit(models.ClassNetwork, alert)
			} else if s.gen.chance(s.scenario.AlertProbability) {
				s.emit(models.ClassNetwork, s.gen.randomAlert(now))
			}
		}
	}
}

// syntheticFileLoop fabricates file changes against the seeded baseline.
func (s *Simulator) syntheticFileLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.scenario.FileChangeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			ev := s.gen.fileChange(s.fileBase, now)
			s.mu.Unlock()
			s.emit(models.ClassFile, ev)
		}
	}
}

// liveFileLoop turns fsnotify changes into sensor events.
func (s *Simulator) liveFileLoop(ctx context.Context, w *fileWatcher) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			s.mu.Lock()
			s.applyFileEvent(ev)
			s.mu.Unlock()
			s.emit(models.ClassFile, ev)
		}
	}
}

// applyFileEvent keeps the file baseline consistent with a live event.
func (s *Simulator) applyFileEvent(ev models.SensorEvent) {
	path, _ := ev.Fields["path"].(string)
	if path == "" {
		return
	}
	switch ev.Type {
	case models.TypeDeleted:
		delete(s.fileBase, path)
	default:
		meta := map[string]interface{}{
			"mod_time": time.Now().UTC().Format(time.RFC3339),
		}
		if h, ok := ev.Fields["hash"].(string); ok {
			meta["hash"] = h
		}
		if size, ok := ev.Fields["size"].(int64); ok {
			meta["size"] = size
		}
		s.fileBase[path] = meta
	}
}
