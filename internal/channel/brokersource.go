package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harrier-systems/harrierwatch/common/messaging"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

var brokerHealthInterval = 5 * time.Second

// NewBrokerSource adapts a broker subscription into a FrameSource and
// takes ownership of cli: the client is closed together with the source.
// Pub/sub clients surface connection loss only through IsConnected, so a
// watcher polls it and ends the stream when the connection drops.
func NewBrokerSource(cli messaging.Client, class, subject string) (FrameSource, error) {
	s := &brokerSource{
		client: cli,
		class:  class,
		in:     make(chan []byte, 32),
		frames: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	sub, err := cli.Subscribe(subject, s.handle)
	if err != nil {
		cli.Close()
		return nil, &models.ChannelError{Class: class, Op: "subscribe", Err: err}
	}
	s.sub = sub
	go s.pump()
	go s.watch()
	return s, nil
}

type brokerSource struct {
	client messaging.Client
	sub    messaging.Subscription
	class  string

	in     chan []byte // handler to pump
	frames chan []byte // pump to consumer; pump is the sole closer
	done   chan struct{}

	mu  sync.Mutex
	err error

	stopOnce sync.Once
}

func (s *brokerSource) Frames() <-chan []byte { return s.frames }

func (s *brokerSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *brokerSource) Close() error {
	s.stop(nil)
	return nil
}

func (s *brokerSource) handle(ctx context.Context, msg *messaging.Message) error {
	select {
	case s.in <- msg.Data:
	case <-s.done:
	}
	return nil
}

func (s *brokerSource) pump() {
	for {
		select {
		case <-s.done:
			close(s.frames)
			return
		case data := <-s.in:
			select {
			case s.frames <- data:
			case <-s.done:
				close(s.frames)
				return
			}
		}
	}
}

func (s *brokerSource) watch() {
	ticker := time.NewTicker(brokerHealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.client.IsConnected() {
				s.stop(&models.ChannelError{Class: s.class, Op: "read", Err: errors.New("broker connection lost")})
				return
			}
		}
	}
}

func (s *brokerSource) stop(err error) {
	s.stopOnce.Do(func() {
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
		close(s.done)
		if s.sub != nil {
			s.sub.Unsubscribe()
		}
		s.client.Close()
	})
}
