// Package wstransport dials the sensor's websocket event feed. Each open
// connection runs a read loop plus a ping loop; the sensor closes
// unauthenticated sockets with code 4001.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harrier-systems/harrierwatch/internal/channel"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second

	// CloseUnauthenticated is the close code the sensor sends when the
	// bearer token is missing or invalid.
	CloseUnauthenticated = 4001
)

// TokenFunc supplies the bearer token for the websocket handshake.
type TokenFunc func() (string, error)

// Transport opens websocket connections to {base}/ws/{class}/events.
type Transport struct {
	base   *url.URL
	token  TokenFunc
	dialer *websocket.Dialer
}

// New builds a Transport from the backend base URL. http and https
// schemes are rewritten to ws and wss.
func New(baseURL string, token TokenFunc) (*Transport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &Transport{
		base:   u,
		token:  token,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment},
	}, nil
}

func (t *Transport) Name() string { return "websocket" }

// Open dials the event feed for class. The handshake deadline comes from
// ctx; the returned source lives until the peer closes or Close is called.
func (t *Transport) Open(ctx context.Context, class string) (channel.FrameSource, error) {
	u := *t.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + class + "/events"

	header := http.Header{}
	if t.token != nil {
		tok, err := t.token()
		if err != nil {
			return nil, &models.ChannelError{Class: class, Op: "dial", Err: fmt.Errorf("mint token: %w", err)}
		}
		if tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				err = fmt.Errorf("%w: handshake refused (status %d)", models.ErrUnauthenticated, resp.StatusCode)
			} else {
				err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
			}
		}
		return nil, &models.ChannelError{Class: class, Op: "dial", Err: err}
	}

	src := &source{
		conn:   conn,
		frames: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	go src.readLoop(class)
	go src.pingLoop()
	return src, nil
}

type source struct {
	conn   *websocket.Conn
	frames chan []byte
	done   chan struct{}

	writeMu sync.Mutex

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

func (s *source) Frames() <-chan []byte { return s.frames }

func (s *source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *source) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

func (s *source) readLoop(class string) {
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	s.conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == CloseUnauthenticated {
				err = fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
			}
			s.mu.Lock()
			s.err = &models.ChannelError{Class: class, Op: "read", Err: err}
			s.mu.Unlock()
			close(s.frames)
			s.conn.Close()
			return
		}
		select {
		case s.frames <- data:
		case <-s.done:
			return
		}
	}
}

// pingLoop keeps the connection alive; the pong handler pushes the read
// deadline forward.
func (s *source) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
