package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name         string
		setupRequest func() *http.Request
		expectedIP   string
		description  string
	}{
		{
			name: "X-Forwarded-For with single IP",
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/", nil)
				req.Header.Set("X-Forwarded-For", "203.0.113.195")
				return req
			},
			expectedIP:  "203.0.113.195",
			description: "Should return the single IP from X-Forwarded-For",
		},
		{
			name: "X-Forwarded-For with multiple IPs",
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/", nil)
				req.Header.Set("X-Forwarded-For", "203.0.113.195, 70.41.3.18, 150.172.238.178")
				return req
			},
			expectedIP:  "203.0.113.195",
			description: "Should return first (client) IP from comma-separated list",
		},
		{
			name: "X-Forwarded-For with spaces",
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/", nil)
				req.Header.Set("X-Forwarded-For", "  203.0.113.195  , 70.41.3.18")
				return req
			},
			expectedIP:  "203.0.113.195",
			description: "Should trim whitespace from first IP",
		},
		{
			name: "X-Real-IP when no X-Forwarded-For",
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/", nil)
				req.Header.Set("X-Real-IP", "198.51.100.42")
				return req
			},
			expectedIP:  "198.51.100.42",
			description: "Should return X-Real-IP when X-Forwarded-For is absent",
		},
		{
			name: "RemoteAddr when no proxy headers",
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/", nil)
				req.RemoteAddr = "192.0.2.1:54321"
				return req
			},
			expectedIP:  "192.0.2.1:54321",
			description: "Should return RemoteAddr when no proxy headers present",
		},
		{
			name: "X-Forwarded-For takes precedence over X-Real-IP",
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/", nil)
				req.Header.Set("X-Forwarded-For", "203.0.113.195")
				req.Header.Set("X-Real-IP", "198.51.100.42")
				req.RemoteAddr = "192.0.2.1:54321"
				return req
			},
			expectedIP:  "203.0.113.195",
			description: "X-Forwarded-For should take precedence",
		},
		{
			name: "Empty X-Forwarded-For falls back to X-Real-IP",
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/", nil)
				req.Header.Set("X-Forwarded-For", "")
				req.Header.Set("X-Real-IP", "198.51.100.42")
				return req
			},
			expectedIP:  "198.51.100.42",
			description: "Should fall back to X-Real-IP if X-Forwarded-For is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.setupRequest()
			got := GetClientIP(req)
			if got != tt.expectedIP {
				t.Errorf("GetClientIP() = %v, want %v\nDescription: %s", got, tt.expectedIP, tt.description)
			}
		})
	}
}

func TestRequestSource(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		ua       string
		expected Source
	}{
		{
			name:     "explicit cli header",
			header:   "cli",
			expected: SourceCLI,
		},
		{
			name:     "explicit view header",
			header:   "view",
			expected: SourceView,
		},
		{
			name:     "explicit api header",
			header:   "api",
			expected: SourceAPI,
		},
		{
			name:     "unrecognized header value",
			header:   "toaster",
			expected: SourceUnknown,
		},
		{
			name:     "hwatch user agent",
			ua:       "hwatch/0.1.0",
			expected: SourceCLI,
		},
		{
			name:     "browser user agent",
			ua:       "Mozilla/5.0 (X11; Linux x86_64)",
			expected: SourceView,
		},
		{
			name:     "no signal at all",
			expected: SourceUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Harrier-Source", tt.header)
			}
			if tt.ua != "" {
				req.Header.Set("User-Agent", tt.ua)
			}
			if got := RequestSource(req); got != tt.expected {
				t.Errorf("RequestSource() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSourceString(t *testing.T) {
	cases := map[Source]string{
		SourceView:    "view",
		SourceCLI:     "cli",
		SourceAPI:     "api",
		SourceUnknown: "unknown",
		Source(99):    "unknown",
	}
	for src, want := range cases {
		if got := src.String(); got != want {
			t.Errorf("Source(%d).String() = %q, want %q", src, got, want)
		}
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultVal int
		expected   int
	}{
		{
			name:       "valid positive integer",
			input:      "42",
			defaultVal: 10,
			expected:   42,
		},
		{
			name:       "valid zero",
			input:      "0",
			defaultVal: 10,
			expected:   0,
		},
		{
			name:       "valid negative integer",
			input:      "-5",
			defaultVal: 10,
			expected:   -5,
		},
		{
			name:       "empty string uses default",
			input:      "",
			defaultVal: 25,
			expected:   25,
		},
		{
			name:       "invalid string uses default",
			input:      "abc",
			defaultVal: 30,
			expected:   30,
		},
		{
			name:       "mixed string uses default",
			input:      "12abc",
			defaultVal: 35,
			expected:   35,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIntParam(tt.input, tt.defaultVal)
			if got != tt.expected {
				t.Errorf("ParseIntParam(%q, %d) = %d, want %d", tt.input, tt.defaultVal, got, tt.expected)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected Window
	}{
		{
			name:     "defaults when absent",
			query:    "",
			expected: Window{Offset: 0, Limit: 100},
		},
		{
			name:     "explicit offset and limit",
			query:    "offset=20&limit=50",
			expected: Window{Offset: 20, Limit: 50},
		},
		{
			name:     "limit clamped to max",
			query:    "limit=99999",
			expected: Window{Offset: 0, Limit: 1000},
		},
		{
			name:     "negative offset clamped to zero",
			query:    "offset=-3",
			expected: Window{Offset: 0, Limit: 100},
		},
		{
			name:     "zero limit falls back to default",
			query:    "limit=0",
			expected: Window{Offset: 0, Limit: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/events/file?"+tt.query, nil)
			got := ParseWindow(req, 100, 1000)
			if got != tt.expected {
				t.Errorf("ParseWindow() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}
