package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{
		BaseURL:      server.URL,
		Timeout:      2 * time.Second,
		RetryCount:   2,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "  "})
	assert.Error(t, err)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:8080/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.BaseURL())
}

func TestFetch_Chapter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chapters/ch-1/content", r.URL.Path)
		_, _ = w.Write([]byte(`{"title":"Intro"}`))
	}))

	var last, total int64
	content, err := c.Fetch(context.Background(), domain.ChapterScope("ch-1"), func(done, t int64) {
		last, total = done, t
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Intro"}`, string(content.Data))
	assert.Empty(t, content.ChapterIDs)
	assert.Equal(t, int64(len(content.Data)), last)
	assert.Equal(t, int64(len(content.Data)), total)
}

func TestFetch_PathReadsChapterHeader(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/paths/p-1/content", r.URL.Path)
		w.Header().Set(HeaderChapterIDs, "ch-1, ch-2,,ch-1,ch-3")
		_, _ = w.Write([]byte(`{}`))
	}))

	content, err := c.Fetch(context.Background(), domain.PathScope("p-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ch-1", "ch-2", "ch-3"}, content.ChapterIDs)
}

func TestFetch_ProgressIsMonotonic(t *testing.T) {
	payload := make([]byte, 256*1024)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))

	var seen []int64
	_, err := c.Fetch(context.Background(), domain.ChapterScope("big"), func(done, total int64) {
		seen = append(seen, done)
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, int64(len(payload)), seen[len(seen)-1])
}

func TestFetch_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound},
		{"server error", http.StatusBadGateway, domain.ErrServer},
		{"forbidden", http.StatusForbidden, domain.ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := c.Fetch(context.Background(), domain.ChapterScope("ch-1"), nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetch_DoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.Fetch(context.Background(), domain.ChapterScope("ch-1"), nil)
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), domain.ChapterScope("ch-1"), nil)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestFetch_CancelledIsNotNetworkError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Fetch(ctx, domain.ChapterScope("ch-1"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrNetwork)
}

func TestFetch_InvalidScope(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Fetch(context.Background(), domain.Scope{Type: "course", ID: "x"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReplay_Endpoints(t *testing.T) {
	tests := []struct {
		kind domain.MutationKind
		path string
	}{
		{domain.MutationProgressUpdate, "/api/progress"},
		{domain.MutationLearningTime, "/api/learning-time"},
		{domain.MutationChapterComplete, "/api/chapters/complete"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var gotPath, gotKey, gotType string
			var gotBody map[string]any
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.Header.Get(HeaderIdempotencyKey)
				gotType = r.Header.Get("Content-Type")
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &gotBody)
				w.WriteHeader(http.StatusNoContent)
			}))

			err := c.Replay(context.Background(), domain.PendingMutation{
				ID:      "m-1",
				Kind:    tt.kind,
				Payload: json.RawMessage(`{"path_id":"p-1"}`),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.path, gotPath)
			assert.Equal(t, "m-1", gotKey)
			assert.Contains(t, gotType, "application/json")
			assert.Equal(t, "p-1", gotBody["path_id"])
		})
	}
}

func TestReplay_RetriesServerErrorsWithSameKey(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(HeaderIdempotencyKey))
		n := len(keys)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	err := c.Replay(context.Background(), domain.PendingMutation{
		ID:      "m-7",
		Kind:    domain.MutationProgressUpdate,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m-7", "m-7", "m-7"}, keys)
}

func TestReplay_ServerErrorAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := c.Replay(context.Background(), domain.PendingMutation{
		ID:      "m-1",
		Kind:    domain.MutationLearningTime,
		Payload: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestReplay_RejectedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	err := c.Replay(context.Background(), domain.PendingMutation{
		ID:      "m-1",
		Kind:    domain.MutationChapterComplete,
		Payload: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestReplay_UnknownKind(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	err := c.Replay(context.Background(), domain.PendingMutation{ID: "m-1", Kind: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProbe(t *testing.T) {
	healthy := atomic.Bool{}
	healthy.Store(true)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))

	assert.Equal(t, domain.Online, c.Probe(context.Background()))

	healthy.Store(false)
	assert.Equal(t, domain.Offline, c.Probe(context.Background()))
}

func TestProbe_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(Config{BaseURL: url, ProbeTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, domain.Offline, c.Probe(context.Background()))
}

func TestParseChapterIDs(t *testing.T) {
	assert.Nil(t, parseChapterIDs(""))
	assert.Nil(t, parseChapterIDs(" , "))
	assert.Equal(t, []string{"a", "b"}, parseChapterIDs("a,b,a"))
}
