package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"llama2:7b","response":"{\"capabilities\":[\"math\"]}","done":true,"prompt_eval_count":12,"eval_count":8}`)
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL)
	resp, err := a.Generate(context.Background(), "llama2:7b", "hi", WithJSON(), WithTemperature(0.1), WithMaxTokens(64))
	require.NoError(t, err)

	assert.Equal(t, `{"capabilities":["math"]}`, Text(resp))
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.1, got.Options["temperature"])
	assert.EqualValues(t, 64, got.Options["num_predict"])
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	_, err := NewOllamaAdapter(srv.URL).Generate(context.Background(), "nope", "hi")
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindStatus, ae.Kind)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Contains(t, err.Error(), "not found")
	assert.False(t, IsTransient(err))
}

func TestOllamaUnreachableIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaAdapter(url).Generate(context.Background(), "m", "hi")
	require.Error(t, err)
	assert.True(t, IsUnreachable(err), "err = %v", err)
	assert.False(t, IsTimeout(err))
}

func TestOllamaTimeoutIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewOllamaAdapter(srv.URL).Generate(context.Background(), "m", "hi", WithTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "err = %v", err)
	assert.False(t, IsUnreachable(err))
	assert.True(t, IsTransient(err))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", statusError("x", 429, errors.New("slow down")), true},
		{"server error", statusError("x", 503, errors.New("down")), true},
		{"bad request", statusError("x", 400, errors.New("bad")), false},
		{"protocol", &Error{Backend: "x", Kind: KindProtocol}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	o := Apply()
	assert.Equal(t, 4096, o.MaxTokens)
	assert.Nil(t, o.Temperature)
	assert.False(t, o.JSON)

	o = Apply(WithMaxTokens(-1), WithTimeout(time.Second), nil)
	assert.Equal(t, 4096, o.MaxTokens)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestScriptedAdapter(t *testing.T) {
	m := NewScriptedAdapter("first", "second")
	ctx := context.Background()

	r1, err := m.Generate(ctx, "", "p1")
	require.NoError(t, err)
	r2, err := m.Generate(ctx, "", "p2")
	require.NoError(t, err)
	r3, err := m.Generate(ctx, "", "p3")
	require.NoError(t, err)

	assert.Equal(t, "first", Text(r1))
	assert.Equal(t, "second", Text(r2))
	assert.Equal(t, "mock response:\np3", Text(r3))
	assert.Equal(t, []string{"p1", "p2", "p3"}, m.Calls())
	assert.Equal(t, "mock-1", r1.Artifact.Model)
}

func TestFailingAdapter(t *testing.T) {
	boom := &Error{Backend: "mock", Kind: KindConnectivity, Err: errors.New("refused")}
	_, err := NewFailingAdapter(boom).Generate(context.Background(), "", "p")
	assert.True(t, IsUnreachable(err))
	assert.Contains(t, err.Error(), "mock connectivity error: refused")
}
