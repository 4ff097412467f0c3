// Package channel manages the push channels: one long-lived connection per
// active resource class, reconnected with capped exponential backoff. The
// manager delivers raw frames and connection state changes to sinks; it
// never parses frames or touches the store.
package channel

import (
	"context"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

// FrameSource is one open connection's stream of raw frames. Frames()
// closes when the connection dies; Err() then reports the terminal error.
type FrameSource interface {
	Frames() <-chan []byte
	Err() error
	Close() error
}

// Transport dials a class's push channel. Implementations exist for
// websocket, Redis pub/sub, and NATS.
type Transport interface {
	Name() string
	Open(ctx context.Context, class string) (FrameSource, error)
}

// Frame is one raw frame tagged with its class and the session epoch the
// connection was opened under.
type Frame struct {
	Class string
	Epoch uint64
	Data  []byte
}

// StateChange reports a connection state transition for one class.
type StateChange struct {
	Class      string
	Epoch      uint64
	State      models.ChannelState
	RetryCount int
	RetryIn    time.Duration // wait before the next attempt, 0 unless backoff
	Err        error
}
