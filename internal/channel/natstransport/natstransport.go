// Package natstransport opens push channels over NATS. Each opened class
// gets its own NATS connection subscribed to that class's sensor events
// subject. Client-level reconnects are disabled; the channel manager owns
// reconnection so that backoff and state reporting stay in one place.
package natstransport

import (
	"context"
	"time"

	"github.com/harrier-systems/harrierwatch/common/messaging"
	natsmsg "github.com/harrier-systems/harrierwatch/common/messaging/nats"
	"github.com/harrier-systems/harrierwatch/internal/channel"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

// Config holds the NATS connection settings for the transport.
type Config struct {
	URL  string
	Name string
}

// Transport implements channel.Transport over NATS.
type Transport struct {
	cfg Config
}

func New(cfg Config) *Transport {
	if cfg.Name == "" {
		cfg.Name = "harrierd"
	}
	return &Transport{cfg: cfg}
}

func (t *Transport) Name() string { return "nats" }

func (t *Transport) Open(ctx context.Context, class string) (channel.FrameSource, error) {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	cli, err := natsmsg.NewClient(natsmsg.Config{
		URL:           t.cfg.URL,
		Name:          t.cfg.Name + "-" + class,
		MaxReconnects: 0,
		Timeout:       timeout,
	})
	if err != nil {
		return nil, &models.ChannelError{Class: class, Op: "dial", Err: err}
	}
	return channel.NewBrokerSource(cli, class, messaging.SensorEventsSubject(class))
}
