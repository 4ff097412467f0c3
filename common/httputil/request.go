package httputil

import (
	"net/http"
	"strconv"
	"strings"
)

// Source represents how a request reached the engine (browser view, CLI,
// or another service).
type Source int

const (
	SourceUnknown Source = 0
	SourceView    Source = 1
	SourceCLI     Source = 2
	SourceAPI     Source = 3
)

// String returns a human-readable representation of the source.
func (s Source) String() string {
	switch s {
	case SourceView:
		return "view"
	case SourceCLI:
		return "cli"
	case SourceAPI:
		return "api"
	default:
		return "unknown"
	}
}

// RequestSource determines how a request was made, for request logging.
// An explicit X-Harrier-Source header wins; otherwise the User-Agent is
// inspected (the hwatch CLI identifies itself there), and browser-like
// requests default to the view.
func RequestSource(r *http.Request) Source {
	if source := r.Header.Get("X-Harrier-Source"); source != "" {
		switch strings.ToLower(source) {
		case "view":
			return SourceView
		case "cli":
			return SourceCLI
		case "api":
			return SourceAPI
		default:
			return SourceUnknown
		}
	}
	if ua := strings.ToLower(r.Header.Get("User-Agent")); ua != "" {
		if strings.Contains(ua, "hwatch") {
			return SourceCLI
		}
		return SourceView
	}
	return SourceUnknown
}

// GetClientIP extracts the real client IP address from request headers.
// It handles proxy scenarios by checking headers in this order:
//  1. X-Forwarded-For (extracts first/client IP from comma-separated list)
//  2. X-Real-IP (single IP from reverse proxy)
//  3. RemoteAddr (direct connection)
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2"
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// ParseIntParam parses an integer query parameter with a default value.
// Returns defaultVal if the parameter is empty or invalid.
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

// Window represents offset/limit paging parameters for log queries.
type Window struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ParseWindow extracts offset/limit paging from the query string,
// enforcing non-negative offsets and a maximum limit.
func ParseWindow(r *http.Request, defaultLimit, maxLimit int) Window {
	offset := ParseIntParam(r.URL.Query().Get("offset"), 0)
	limit := ParseIntParam(r.URL.Query().Get("limit"), defaultLimit)

	if offset < 0 {
		offset = 0
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = defaultLimit
	}

	return Window{Offset: offset, Limit: limit}
}
