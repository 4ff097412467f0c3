package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

// suspiciousPorts trips the SUSPICIOUS_PORT detection rule.
var suspiciousPorts = map[int]bool{
	23:    true, // telnet
	1337:  true,
	4444:  true, // metasploit default
	5554:  true,
	6667:  true, // irc
	9001:  true,
	31337: true,
}

var commonPorts = []int{22, 53, 80, 123, 443, 993, 3306, 5432, 8080, 8443}

var severityByRule = map[string]string{
	"SYN_FLOOD":       models.SeverityHigh,
	"PORT_SCAN":       models.SeverityHigh,
	"HIGH_BANDWIDTH":  models.SeverityMedium,
	"SUSPICIOUS_PORT": models.SeverityLow,
}

// generator fabricates sensor events. A fixed talker pool keeps flows
// repeating across packets so dedup and facet filters have something to
// bite on. The packet and file loops run concurrently, so every method
// takes the generator lock.
type generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	talkers  []string
	synSeen  map[string]int
	seedPath []string
}

func newGenerator(sc Scenario, seed int64) *generator {
	rng := rand.New(rand.NewSource(seed))
	gofakeit.Seed(seed)

	talkers := make([]string, sc.Talkers)
	for i := range talkers {
		talkers[i] = gofakeit.IPv4Address()
	}
	paths := make([]string, 0, len(sc.SeedFiles))
	for _, f := range sc.SeedFiles {
		paths = append(paths, f.Path)
	}
	return &generator{
		rng:      rng,
		talkers:  talkers,
		synSeen:  make(map[string]int),
		seedPath: paths,
	}
}

// chance reports a hit with probability p.
func (g *generator) chance(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < p
}

// packet fabricates one capture event in the sensor's flat wire form.
func (g *generator) packet(now time.Time) models.SensorEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	src := g.talkers[g.rng.Intn(len(g.talkers))]
	dst := g.talkers[g.rng.Intn(len(g.talkers))]
	for dst == src {
		dst = g.talkers[g.rng.Intn(len(g.talkers))]
	}

	proto := "TCP"
	switch g.rng.Intn(10) {
	case 0, 1:
		proto = "UDP"
	case 2:
		proto = "ICMP"
	}

	fields := map[string]interface{}{
		"captured_at": now.UTC().Format(time.RFC3339Nano),
		"src":         src,
		"dst":         dst,
		"protocol":    proto,
		"length":      g.rng.Intn(1400) + 60,
	}
	if proto != "ICMP" {
		fields["src_port"] = g.rng.Intn(28000) + 32768
		fields["dst_port"] = g.pickDstPort()
		if proto == "TCP" {
			syn := g.rng.Intn(5) == 0
			fields["flags"] = map[string]interface{}{
				"syn": syn,
				"ack": !syn && g.rng.Intn(3) != 0,
				"fin": !syn && g.rng.Intn(10) == 0,
			}
			if syn {
				g.synSeen[src]++
			}
		}
	}
	return models.SensorEvent{Type: models.TypePacket, Fields: fields}
}

func (g *generator) pickDstPort() int {
	// One packet in twelve lands on a suspicious port so alerts fire.
	if g.rng.Intn(12) == 0 {
		for port := range suspiciousPorts {
			return port
		}
	}
	return commonPorts[g.rng.Intn(len(commonPorts))]
}

// alertFor derives a detection alert from a packet, mirroring the sensor's
// anomaly rules: suspicious destination ports always alert, SYN floods
// alert once a source crosses the threshold.
func (g *generator) alertFor(pkt models.SensorEvent, now time.Time) (models.SensorEvent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	src, _ := pkt.Fields["src"].(string)
	dstPort, _ := pkt.Fields["dst_port"].(int)

	if suspiciousPorts[dstPort] {
		return g.alert("SUSPICIOUS_PORT",
			fmt.Sprintf("Connection to suspicious port %d from %s", dstPort, src),
			src, now), true
	}
	if g.synSeen[src] >= 20 {
		g.synSeen[src] = 0
		return g.alert("SYN_FLOOD",
			fmt.Sprintf("Possible SYN flood from %s", src),
			src, now), true
	}
	return models.SensorEvent{}, false
}

// randomAlert fires a rule chosen at random, for scenario probability hits.
func (g *generator) randomAlert(now time.Time) models.SensorEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	rules := []string{"PORT_SCAN", "HIGH_BANDWIDTH", "SUSPICIOUS_PORT"}
	rule := rules[g.rng.Intn(len(rules))]
	src := g.talkers[g.rng.Intn(len(g.talkers))]
	var msg string
	switch rule {
	case "PORT_SCAN":
		msg = fmt.Sprintf("Port scan pattern from %s (%d ports probed)", src, g.rng.Intn(200)+50)
	case "HIGH_BANDWIDTH":
		msg = fmt.Sprintf("Bandwidth spike from %s (%d MB/min)", src, g.rng.Intn(900)+100)
	default:
		msg = fmt.Sprintf("Connection to suspicious port from %s", src)
	}
	return g.alert(rule, msg, src, now)
}

func (g *generator) alert(rule, message, src string, now time.Time) models.SensorEvent {
	return models.SensorEvent{
		Type: models.TypeAlert,
		Fields: map[string]interface{}{
			"id":        "al-" + uuid.NewString()[:8],
			"timestamp": now.UTC().Format(time.RFC3339Nano),
			"rule":      rule,
			"message":   message,
			"severity":  severityByRule[rule],
			"src":       src,
		},
	}
}

// fileChange fabricates a change against the seeded baseline: mostly
// modifications, occasionally an add, delete, or rename.
func (g *generator) fileChange(baseline map[string]map[string]interface{}, now time.Time) models.SensorEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	typ := models.TypeModified
	switch g.rng.Intn(10) {
	case 0:
		typ = models.TypeAdded
	case 1:
		typ = models.TypeDeleted
	case 2:
		typ = models.TypeRenamed
	}

	var path string
	if typ == models.TypeAdded || len(g.seedPath) == 0 {
		path = fmt.Sprintf("/tmp/%s.conf", gofakeit.Word())
	} else {
		path = g.seedPath[g.rng.Intn(len(g.seedPath))]
	}

	fields := map[string]interface{}{
		"change_id":   uuid.NewString(),
		"path":        path,
		"detected_at": now.UTC().Format(time.RFC3339Nano),
	}

	switch typ {
	case models.TypeDeleted:
		if meta, ok := baseline[path]; ok {
			fields["previous_hash"] = meta["hash"]
		}
		delete(baseline, path)
	case models.TypeRenamed:
		newPath := path + ".bak"
		fields["previous_path"] = path
		fields["path"] = newPath
		if meta, ok := baseline[path]; ok {
			fields["hash"] = meta["hash"]
			baseline[newPath] = meta
			delete(baseline, path)
		}
	default:
		hash := uuid.NewString()[:20]
		size := int64(g.rng.Intn(90000) + 100)
		if meta, ok := baseline[path]; ok {
			fields["previous_hash"] = meta["hash"]
		}
		fields["hash"] = hash
		fields["size"] = size
		baseline[path] = map[string]interface{}{
			"hash":     hash,
			"size":     size,
			"mod_time": now.UTC().Format(time.RFC3339),
		}
	}
	return models.SensorEvent{Type: typ, Fields: fields}
}
