package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
	"github.com/desertthunder/evalwatch/internal/stomp"
	"github.com/desertthunder/evalwatch/internal/tasks"
	tu "github.com/desertthunder/evalwatch/internal/testing"
	"github.com/desertthunder/evalwatch/internal/tracker"
)

type fakeExecutor struct {
	mu      sync.Mutex
	err     error
	started []string
}

func (e *fakeExecutor) Start(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.started = append(e.started, runID)
	return nil
}

func (e *fakeExecutor) Started() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.started...)
}

type fixture struct {
	server   *Server
	tracker  *tracker.Tracker
	broker   *stomp.Broker
	executor *fakeExecutor
	http     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := shared.NewLogger(io.Discard)

	f := &fixture{broker: stomp.NewBroker(logger), executor: &fakeExecutor{}}
	f.tracker = tracker.New(tracker.Options{
		Publisher: f.broker,
		Scheduler: tu.NewFakeScheduler(),
		Logger:    logger,
	})
	f.server = New(Options{Store: f.tracker, Executor: f.executor, Broker: f.broker, Logger: logger})
	f.http = httptest.NewServer(f.server)
	t.Cleanup(func() {
		f.broker.Close()
		f.http.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestBasicRouter(t *testing.T) {
	t.Run("applies middleware in registration order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, []string{"first", "second", "handler"}, order)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("exposes path values", func(t *testing.T) {
		router := NewBasicRouter()
		var got string
		router.HandleFunc(http.MethodGet, "/runs/{runId}", func(w http.ResponseWriter, r *http.Request) {
			got = r.PathValue("runId")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/abc", nil))
		assert.Equal(t, "abc", got)
	})
}

func TestProgressAPI(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		f := newFixture(t)
		f.tracker.Start("r1", 4)
		f.tracker.Update("r1", 2, "q")

		resp, body := f.do(t, http.MethodGet, "/api/progress/r1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		ev, err := models.DecodeProgressEvent(body)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRunning, ev.Status)
		assert.Equal(t, 50.0, ev.Percentage)

		resp, _ = f.do(t, http.MethodGet, "/api/progress/missing", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("all and statistics", func(t *testing.T) {
		f := newFixture(t)
		f.tracker.Start("a", 1)
		f.tracker.Start("b", 1)
		f.tracker.Complete("b", "")

		_, body := f.do(t, http.MethodGet, "/api/progress/all", "")
		var all map[string]models.ProgressEvent
		require.NoError(t, json.Unmarshal(body, &all))
		assert.Len(t, all, 2)
		assert.Equal(t, models.StatusCompleted, all["b"].Status)

		_, body = f.do(t, http.MethodGet, "/api/progress/statistics", "")
		var stats models.Statistics
		require.NoError(t, json.Unmarshal(body, &stats))
		assert.Equal(t, models.Statistics{Total: 2, Completed: 1}, stats)
	})

	t.Run("exists and delete", func(t *testing.T) {
		f := newFixture(t)
		f.tracker.Start("r1", 1)

		_, body := f.do(t, http.MethodGet, "/api/progress/r1/exists", "")
		assert.JSONEq(t, `{"exists":true}`, string(body))

		resp, body := f.do(t, http.MethodDelete, "/api/progress/r1", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"message":"Progress tracking removed for run: r1"}`, string(body))

		_, body = f.do(t, http.MethodGet, "/api/progress/r1/exists", "")
		assert.JSONEq(t, `{"exists":false}`, string(body))
	})

	t.Run("update message", func(t *testing.T) {
		f := newFixture(t)
		f.tracker.Start("r1", 1)

		resp, body := f.do(t, http.MethodPut, "/api/progress/r1/message", `{"message":"warming up"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		ev, err := models.DecodeProgressEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "warming up", ev.Message)

		resp, body = f.do(t, http.MethodPut, "/api/progress/r1/message", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Message is required"}`, string(body))

		resp, _ = f.do(t, http.MethodPut, "/api/progress/missing/message", `{"message":"x"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestExecute(t *testing.T) {
	t.Run("starts the run", func(t *testing.T) {
		f := newFixture(t)

		resp, body := f.do(t, http.MethodPost, "/runs/r1/execute", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.ExecuteResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.True(t, out.Succeeded())
		assert.Equal(t, "Evaluation run execution started successfully", out.Message)
		assert.Equal(t, "r1", out.RunID)
		assert.Equal(t, "RUNNING", out.Status)
		assert.Equal(t, []string{"r1"}, f.executor.Started())
	})

	t.Run("blank run id", func(t *testing.T) {
		f := newFixture(t)
		resp, _ := f.do(t, http.MethodPost, "/runs/%20/execute", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, f.executor.Started())
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		f.executor.err = shared.ErrTokenExpired

		resp, body := f.do(t, http.MethodPost, "/runs/r1/execute", "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var out models.ErrorBody
		require.NoError(t, json.Unmarshal(body, &out))
		assert.True(t, out.IsTokenExpired())
		assert.Equal(t, "Token Expired", out.Error)
		assert.Equal(t, models.DefaultTokenInstructions, out.Instructions)
		assert.Contains(t, string(body), `"instructions":"To refresh your token:\n1. `)
	})

	t.Run("run already executing", func(t *testing.T) {
		f := newFixture(t)
		f.executor.err = tasks.ErrRunActive

		resp, _ := f.do(t, http.MethodPost, "/runs/r1/execute", "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("executor failure", func(t *testing.T) {
		f := newFixture(t)
		f.executor.err = errors.New("disk full")

		resp, body := f.do(t, http.MethodPost, "/runs/r1/execute", "")
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.JSONEq(t, `{
			"success": false,
			"error": "Execution failed",
			"message": "Failed to execute evaluation run: disk full",
			"runId": "r1"
		}`, string(body))
	})
}

func TestProgressOverStomp(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"

	session, err := stomp.NewClient(wsURL, stomp.ClientOptions{Logger: shared.NewLogger(io.Discard)}).Dial(context.Background())
	require.NoError(t, err)
	defer session.Close()

	perRun := make(chan models.ProgressEvent, 8)
	all := make(chan models.ProgressEvent, 8)
	decode := func(ch chan models.ProgressEvent) func([]byte) {
		return func(body []byte) {
			ev, err := models.DecodeProgressEvent(body)
			if err == nil {
				ch <- ev
			}
		}
	}

	_, err = session.Subscribe("/topic/progress/r1", decode(perRun))
	require.NoError(t, err)
	_, err = session.Subscribe("/topic/progress", decode(all))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.broker.Subscribers("/topic/progress/r1") == 1 && f.broker.Subscribers("/topic/progress") == 1
	}, 2*time.Second, 5*time.Millisecond)

	f.tracker.Start("r1", 2)
	f.tracker.Increment("r1", "q1")
	f.tracker.Complete("r1", "")

	want := []models.Status{models.StatusStarting, models.StatusRunning, models.StatusCompleted}
	for _, ch := range []chan models.ProgressEvent{perRun, all} {
		for _, status := range want {
			select {
			case ev := <-ch:
				assert.Equal(t, "r1", ev.RunID)
				assert.Equal(t, status, ev.Status)
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %s", status)
			}
		}
	}
}

func TestServeListener(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	broker := stomp.NewBroker(logger)
	store := tracker.New(tracker.Options{Publisher: broker, Logger: logger})
	srv := New(Options{Store: store, Executor: &fakeExecutor{}, Broker: broker, Logger: logger})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/progress/statistics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
