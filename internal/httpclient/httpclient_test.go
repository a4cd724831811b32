package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetryAfter(t *testing.T) {
	limit := 60 * time.Second
	tests := []struct {
		name string
		s    string
		want time.Duration
	}{
		{"empty", "", 1 * time.Second},
		{"seconds 5", "5", 5 * time.Second},
		{"seconds 0", "0", 0},
		{"seconds over cap", "120", limit},
		{"whitespace", "  10  ", 10 * time.Second},
		{"invalid fallback", "x", 1 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseRetryAfter(tt.s, limit))
		})
	}
}

func TestDoWithRetry_ZeroPolicyDoesNotRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := DoWithRetry(context.Background(), srv.Client(), req, RetryPolicy{})
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, 1, attempts)
}

func TestDoWithRetry_5xxThen200(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "keep", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("X-Test", "keep")
	policy := DefaultRetryPolicy
	policy.Backoff5xx = time.Millisecond
	resp, err := DoWithRetry(context.Background(), srv.Client(), req, policy)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, attempts)
}

func TestClientJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tv", r.URL.Query().Get("channel-type"))
		assert.Equal(t, "EPGVault/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"channels":[{"id":42,"name":"RTS 1"}]}`))
	}))
	defer srv.Close()

	c := New(Options{UserAgent: "EPGVault/test", Timeout: time.Second})
	var out map[string]any
	err := c.JSON(context.Background(), Request{
		URL:    srv.URL + "/program",
		Query:  url.Values{"channel-type": {"tv"}},
		Header: http.Header{"Accept": {"application/json"}},
	}, &out)
	require.NoError(t, err)

	channels := out["channels"].([]any)
	require.Len(t, channels, 1)
	ch := channels[0].(map[string]any)
	require.Equal(t, json.Number("42"), ch["id"])
}

func TestClientJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Options{})
	var out any
	err := c.JSON(context.Background(), Request{URL: srv.URL}, &out)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestClientJSON_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"channels":[`))
	}))
	defer srv.Close()

	var out any
	err := New(Options{}).JSON(context.Background(), Request{URL: srv.URL}, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}
