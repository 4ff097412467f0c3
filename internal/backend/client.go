// Package backend is the HTTP client for the sensor backend: session
// control, snapshot pulls, and the interface inventory.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

const defaultTimeout = 10 * time.Second

// Idempotent control rejections: the sensor is already in the requested
// state. Callers treat these as acknowledgments.
var (
	ErrAlreadyRunning = errors.New("sensor already running")
	ErrNotRunning     = errors.New("sensor not running")
)

// TokenFunc supplies the bearer token attached to every request.
type TokenFunc func() (string, error)

// Config holds the backend connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   TokenFunc
}

// Client talks to one sensor backend.
type Client struct {
	base  string
	http  *http.Client
	token TokenFunc
}

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		base:  strings.TrimSuffix(cfg.BaseURL, "/"),
		http:  &http.Client{Timeout: cfg.Timeout},
		token: cfg.Token,
	}, nil
}

// StartMonitor asks the sensor to begin monitoring class. Returns
// ErrAlreadyRunning when the sensor reports it is already monitoring.
func (c *Client) StartMonitor(ctx context.Context, class string) error {
	return c.control(ctx, class, "start")
}

// StopMonitor asks the sensor to stop monitoring class. Returns
// ErrNotRunning when the sensor reports it was not monitoring.
func (c *Client) StopMonitor(ctx context.Context, class string) error {
	return c.control(ctx, class, "stop")
}

// controlReply covers both response forms: {"status":"ok"} on success,
// {"error":"..."} on rejection.
type controlReply struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (c *Client) control(ctx context.Context, class, op string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/"+class+"/"+op, nil)
	if err != nil {
		return &models.ControlError{Class: class, Op: op, Reason: err.Error(), Fatal: true}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &models.ControlError{Class: class, Op: op, Reason: err.Error(), Fatal: true}
	}
	defer resp.Body.Close()

	var reply controlReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&reply); err != nil {
		reply = controlReply{}
	}

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusConflict && strings.Contains(reply.Error, "already running"):
		return ErrAlreadyRunning
	case resp.StatusCode == http.StatusConflict && strings.Contains(reply.Error, "not running"):
		return ErrNotRunning
	default:
		reason := reply.Error
		if reason == "" {
			reason = resp.Status
		}
		return &models.ControlError{Class: class, Op: op, Reason: reason, Fatal: true}
	}
}

// Snapshot pulls the authoritative envelope for class.
func (c *Client) Snapshot(ctx context.Context, class string) (*models.SnapshotEnvelope, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/"+class+"/snapshot", nil)
	if err != nil {
		return nil, &models.SnapshotError{Class: class, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.SnapshotError{Class: class, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &models.SnapshotError{Class: class, Status: resp.StatusCode, Err: errors.New("unexpected status")}
	}
	var env models.SnapshotEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &models.SnapshotError{Class: class, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if env.Class == "" {
		env.Class = class
	}
	return &env, nil
}

// interfacesReply wraps the inventory list.
type interfacesReply struct {
	Interfaces []models.Interface `json:"interfaces"`
}

// Interfaces fetches the sensor host's network interface inventory.
func (c *Client) Interfaces(ctx context.Context) ([]models.Interface, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/interfaces", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("interfaces: unexpected status %d", resp.StatusCode)
	}
	var reply interfacesReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("interfaces: decode: %w", err)
	}
	return reply.Interfaces, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		tok, err := c.token()
		if err != nil {
			return nil, fmt.Errorf("mint token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}
