package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastExecutor(opts ...Option) *Executor {
	return New(append([]Option{WithBackoff(0, 0)}, opts...)...)
}

func TestRunGetSendsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Paris", r.URL.Query().Get("city"))
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{"answer":"sunny","citations":["https://example.com"]}`))
	}))
	defer srv.Close()

	out, err := fastExecutor().Run(context.Background(), Request{
		URL:    srv.URL,
		Method: "get",
		Params: map[string]any{"city": "Paris", "days": float64(3)},
	})
	require.NoError(t, err)
	obj, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sunny", obj["answer"])
}

func TestRunPostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	out, err := fastExecutor().Run(context.Background(), Request{
		URL:    srv.URL,
		Method: "POST",
		Params: map[string]any{"text": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)
}

func TestRunUnknownMethodFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := fastExecutor().Run(context.Background(), Request{URL: srv.URL, Method: "PATCH"})
	require.NoError(t, err)
}

func TestRunStatusErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := fastExecutor().Run(context.Background(), Request{URL: srv.URL})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Contains(t, se.Error(), "upstream exploded")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>nope</html>`))
	}))
	defer srv.Close()

	_, err := fastExecutor().Run(context.Background(), Request{URL: srv.URL})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.False(t, IsTransient(err))
}

func TestRunRetriesTimeouts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	out, err := fastExecutor().Run(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"done": true}, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	// Reserve a port and close it so every dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = fastExecutor(WithMaxAttempts(2)).Run(context.Background(), Request{URL: "http://" + addr + "/x?key=secret"})
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, KindConnect, ne.Kind)
	assert.True(t, IsTransient(err))
	assert.NotContains(t, ne.Error(), "secret")
}

func TestRunCanceledContextStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastExecutor().Run(ctx, Request{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTransient(err))
}

func TestComputeBackoff(t *testing.T) {
	base, ceiling := time.Second, 10*time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, computeBackoff(base, ceiling, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestQueryValue(t *testing.T) {
	assert.Equal(t, "x", queryValue("x"))
	assert.Equal(t, "2.5", queryValue(2.5))
	assert.Equal(t, "true", queryValue(true))
	assert.Equal(t, "", queryValue(nil))
	assert.Equal(t, `["a","b"]`, queryValue([]any{"a", "b"}))
}
