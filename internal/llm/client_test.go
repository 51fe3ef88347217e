package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-invest/internal/provider"
	"ai-invest/internal/store"
	"ai-invest/internal/types"
)

func testSettings(baseURL, providerName string) store.Settings {
	return store.Settings{
		APIKey:   "sk-test",
		BaseURL:  baseURL,
		Model:    "test-model",
		Provider: providerName,
		Timeout:  2 * time.Second,
	}
}

func fastClient(s store.Settings, opts ...Option) *Client {
	opts = append([]Option{WithBackoff(time.Millisecond, 5*time.Millisecond), WithWaitHints(nil)}, opts...)
	return New(s, opts...)
}

func writeContent(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
}

func TestCompleteSendsRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeContent(w, "  hello  ")
	}))
	defer srv.Close()

	c := fastClient(testSettings(srv.URL+"/v1/", "openai"))
	text, err := c.Complete(context.Background(),
		[]types.Message{types.System("sys"), types.User("hi")},
		WithModel("gpt-4o"), WithTemperature(0.3), WithMaxTokens(100), WithParam("top_p", 0.9),
	)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.InDelta(t, 0.3, got["temperature"], 1e-9)
	assert.EqualValues(t, 100, got["max_tokens"])
	assert.InDelta(t, 0.9, got["top_p"], 1e-9)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestCompleteOmitsUnsetParams(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeContent(w, "ok")
	}))
	defer srv.Close()

	_, err := fastClient(testSettings(srv.URL, "openai")).Complete(context.Background(), []types.Message{types.User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "test-model", got["model"])
	assert.NotContains(t, got, "temperature")
	assert.NotContains(t, got, "max_tokens")
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeContent(w, "recovered")
	}))
	defer srv.Close()

	text, err := fastClient(testSettings(srv.URL, "openai")).Complete(context.Background(), []types.Message{types.User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCompleteStopsOnFatalKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   types.ErrorKind
	}{
		{"invalid key", http.StatusUnauthorized, types.KindInvalidKey},
		{"forbidden", http.StatusForbidden, types.KindInvalidKey},
		{"model not found", http.StatusNotFound, types.KindModelNotFound},
		{"bad request", http.StatusBadRequest, types.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			_, err := fastClient(testSettings(srv.URL, "siliconflow")).Complete(context.Background(), []types.Message{types.User("hi")})
			require.Error(t, err)

			var le *Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.kind, le.Kind)
			assert.Equal(t, tt.status, le.StatusCode)
			assert.Equal(t, 1, le.Attempts)
			assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
			assert.NotEmpty(t, Hint(err))
		})
	}
}

func TestCompleteAttemptLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := testSettings(srv.URL, "deepseek")
	_, err := fastClient(s).Complete(context.Background(), []types.Message{types.User("hi")})
	require.Error(t, err)
	assert.Equal(t, types.KindRateLimit, KindOf(err))
	assert.EqualValues(t, 5, atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	s.MaxRetries = 2
	_, err = fastClient(s).Complete(context.Background(), []types.Message{types.User("hi")})
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCompleteAFC(t *testing.T) {
	t.Run("retried on deepseek", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"AFC is enabled with max remote calls: 10"}}`))
				return
			}
			writeContent(w, "ok")
		}))
		defer srv.Close()

		text, err := fastClient(testSettings(srv.URL, "deepseek")).Complete(context.Background(), []types.Message{types.User("hi")})
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	})

	t.Run("not retried on openai", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`AFC is enabled`))
		}))
		defer srv.Close()

		_, err := fastClient(testSettings(srv.URL, "openai")).Complete(context.Background(), []types.Message{types.User("hi")})
		assert.Equal(t, types.KindAFC, KindOf(err))
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})
}

func TestCompleteEmptyResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := fastClient(testSettings(srv.URL, "openai")).Complete(context.Background(), []types.Message{types.User("hi")})
	assert.Equal(t, types.KindEmpty, KindOf(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeContent(w, "late")
	}))
	defer srv.Close()

	s := testSettings(srv.URL, "openai")
	s.Timeout = 20 * time.Millisecond
	s.MaxRetries = 1
	_, err := fastClient(s).Complete(context.Background(), []types.Message{types.User("hi")})
	assert.Equal(t, types.KindTimeout, KindOf(err))
	assert.Contains(t, Hint(err), "API_TIMEOUT")
}

func TestCompleteConnectionError(t *testing.T) {
	s := testSettings("http://127.0.0.1:1", "openai")
	s.MaxRetries = 1
	_, err := fastClient(s).Complete(context.Background(), []types.Message{types.User("hi")})
	assert.Equal(t, types.KindConnection, KindOf(err))
}

func TestCompleteContextCancelStopsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(testSettings(srv.URL, "deepseek"), WithBackoff(time.Second, time.Second), WithWaitHints(nil))
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := c.Complete(ctx, []types.Message{types.User("hi")})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestHintedBackOffFloor(t *testing.T) {
	kind := types.KindRateLimit
	c := New(testSettings("http://unused", "openai"), WithBackoff(time.Millisecond, time.Millisecond))
	b := c.backOff(context.Background(), &kind)
	b.Reset()
	assert.Equal(t, provider.WaitHint(types.KindRateLimit), b.NextBackOff())

	kind = types.KindServer
	assert.Less(t, b.NextBackOff(), time.Second)
}

func TestHintedBackOffStopsPastBudget(t *testing.T) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Millisecond
	exp.MaxElapsedTime = 300 * time.Millisecond
	b := &hintedBackOff{exp: exp, floor: func() time.Duration { return time.Second }}
	b.Reset()
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	b.floor = func() time.Duration { return 50 * time.Millisecond }
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	long := strings.Repeat("x", 600)
	p := Preview(long)
	assert.Len(t, p, previewLimit+3)
	assert.True(t, strings.HasSuffix(p, "..."))
}

func TestCompleteRateLimiterDeniesWait(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeContent(w, "ok")
	}))
	defer srv.Close()

	s := testSettings(srv.URL, "siliconflow")
	s.RequestsPerSecond = 0.1
	c := fastClient(s)
	_, err := c.Complete(context.Background(), []types.Message{types.User("warm up")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.Complete(ctx, []types.Message{types.User("hi")})
	require.Error(t, err)

	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, types.KindRateLimit, le.Kind)
	assert.Equal(t, 1, le.Attempts)
	assert.Contains(t, Hint(err), "API_REQUESTS_PER_SECOND")
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCompleteMaxElapsedEndsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	policy := provider.PolicyFor("openai").WithMaxAttempts(100)
	policy.MaxElapsed = 200 * time.Millisecond
	c := fastClient(testSettings(srv.URL, "openai"), WithPolicy(policy), WithBackoff(20*time.Millisecond, 40*time.Millisecond))

	start := time.Now()
	_, err := c.Complete(context.Background(), []types.Message{types.User("hi")})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, types.KindServer, KindOf(err))
	assert.Less(t, elapsed, time.Second)
	n := atomic.LoadInt32(&calls)
	assert.GreaterOrEqual(t, n, int32(2))
	assert.Less(t, n, int32(20))

	var le *Error
	require.True(t, errors.As(err, &le))
	assert.EqualValues(t, n, le.Attempts)
}

func TestCompleteWaitFloorRespectsMaxElapsed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	policy := provider.PolicyFor("openai")
	policy.MaxElapsed = 300 * time.Millisecond
	c := New(testSettings(srv.URL, "openai"),
		WithPolicy(policy),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithWaitHints(func(types.ErrorKind) time.Duration { return time.Second }),
	)

	start := time.Now()
	_, err := c.Complete(context.Background(), []types.Message{types.User("hi")})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
