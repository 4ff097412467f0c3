// Package redistransport opens push channels over Redis pub/sub. Each
// opened class gets its own Redis connection subscribed to that class's
// sensor events channel.
package redistransport

import (
	"context"
	"time"

	"github.com/harrier-systems/harrierwatch/common/messaging"
	redismsg "github.com/harrier-systems/harrierwatch/common/messaging/redis"
	"github.com/harrier-systems/harrierwatch/internal/channel"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

// Transport implements channel.Transport over Redis pub/sub.
type Transport struct {
	cfg redismsg.Config
}

func New(cfg redismsg.Config) *Transport { return &Transport{cfg: cfg} }

func (t *Transport) Name() string { return "redis" }

func (t *Transport) Open(ctx context.Context, class string) (channel.FrameSource, error) {
	cfg := t.cfg
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); cfg.DialTimeout == 0 || remaining < cfg.DialTimeout {
			cfg.DialTimeout = remaining
		}
	}
	cli, err := redismsg.NewClient(cfg)
	if err != nil {
		return nil, &models.ChannelError{Class: class, Op: "dial", Err: err}
	}
	return channel.NewBrokerSource(cli, class, messaging.SensorEventsSubject(class))
}
