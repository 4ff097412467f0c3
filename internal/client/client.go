// Package client is the hwatch CLI's HTTP client for a running harrierd.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

const defaultTimeout = 30 * time.Second

// userAgent lets harrierd attribute requests to the CLI in its logs.
const userAgent = "hwatch/0.1.0"

// Client talks to one harrierd instance.
type Client struct {
	baseURL string
	http    *http.Client
	// stream has no timeout: SSE responses stay open indefinitely.
	stream *http.Client
}

// BaselineReply is the baseline listing for one class.
type BaselineReply struct {
	Class   string                 `json:"class"`
	TakenAt time.Time              `json:"taken_at,omitempty"`
	Entries []models.BaselineEntry `json:"entries"`
}

// ClassHealth is the per-class slice of the health document.
type ClassHealth struct {
	Session       models.SessionState `json:"session"`
	Channel       models.ChannelState `json:"channel"`
	SnapshotAge   *float64            `json:"snapshot_age_seconds,omitempty"`
	SnapshotStale bool                `json:"snapshot_stale"`
}

// HealthReply is the harrierd health document.
type HealthReply struct {
	Status        string                 `json:"status"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	Classes       map[string]ClassHealth `json:"classes"`
}

type interfacesReply struct {
	Interfaces []models.Interface `json:"interfaces"`
}

// New creates a Client for the given harrierd base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		stream:  &http.Client{},
	}
}

// APIError is a non-2xx reply decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("harrierd returned status %d", e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode}
		var body models.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Sessions lists the status of every session.
func (c *Client) Sessions(ctx context.Context) ([]models.SessionStatus, error) {
	var out []models.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session fetches the status of one class.
func (c *Client) Session(ctx context.Context, class string) (*models.SessionStatus, error) {
	var out models.SessionStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(class), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Start requests monitoring to begin for class.
func (c *Client) Start(ctx context.Context, class string) (*models.SessionStatus, error) {
	return c.control(ctx, class, "start")
}

// Stop requests monitoring to end for class.
func (c *Client) Stop(ctx context.Context, class string) (*models.SessionStatus, error) {
	return c.control(ctx, class, "stop")
}

// AckError acknowledges a failed session, returning it to idle.
func (c *Client) AckError(ctx context.Context, class string) (*models.SessionStatus, error) {
	return c.control(ctx, class, "ack-error")
}

func (c *Client) control(ctx context.Context, class, op string) (*models.SessionStatus, error) {
	var out models.SessionStatus
	path := "/api/v1/sessions/" + url.PathEscape(class) + "/" + op
	if err := c.do(ctx, http.MethodPost, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EventQuery carries the filter, sort, and paging parameters for Events.
type EventQuery struct {
	Types   []string
	Subject string
	Facets  map[string]string
	SortBy  string
	Desc    *bool
	Offset  int
	Limit   int
}

// Events queries the event log for one category.
func (c *Client) Events(ctx context.Context, category string, q EventQuery) ([]models.EventRecord, error) {
	params := url.Values{}
	for _, t := range q.Types {
		params.Add("type", t)
	}
	if q.Subject != "" {
		params.Set("subject", q.Subject)
	}
	for name, v := range q.Facets {
		params.Set(name, v)
	}
	if q.SortBy != "" {
		params.Set("sort", q.SortBy)
	}
	if q.Desc != nil {
		params.Set("desc", fmt.Sprintf("%t", *q.Desc))
	}
	if q.Offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}

	path := "/api/v1/events/" + url.PathEscape(category)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var out []models.EventRecord
	if err := c.do(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Baseline fetches the last applied baseline for one class.
func (c *Client) Baseline(ctx context.Context, class string) (*BaselineReply, error) {
	var out BaselineReply
	if err := c.do(ctx, http.MethodGet, "/api/v1/baseline/"+url.PathEscape(class), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches the per-class counters keyed by class.
func (c *Client) Stats(ctx context.Context) (map[string]models.ClassStats, error) {
	var out map[string]models.ClassStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Interfaces fetches the sensor host's interface inventory.
func (c *Client) Interfaces(ctx context.Context) ([]models.Interface, error) {
	var out interfacesReply
	if err := c.do(ctx, http.MethodGet, "/api/v1/interfaces", &out); err != nil {
		return nil, err
	}
	return out.Interfaces, nil
}

// Health fetches the harrierd health document.
func (c *Client) Health(ctx context.Context) (*HealthReply, error) {
	var out HealthReply
	if err := c.do(ctx, http.MethodGet, "/healthz", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stream subscribes to the live event feed and calls fn for every record
// until fn returns an error, the stream ends, or ctx is cancelled.
// Category may be empty to follow all categories. A positive replay
// asks the server to resend that many retained records before tailing.
func (c *Client) Stream(ctx context.Context, category string, replay int, fn func(models.EventRecord) error) error {
	path := "/api/v1/stream"
	if category != "" {
		path += "/" + url.PathEscape(category)
	}
	if replay > 0 {
		path += fmt.Sprintf("?replay=%d", replay)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var body models.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
		}
		return apiErr
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var rec models.EventRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}
