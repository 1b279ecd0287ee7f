package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/evalwatch/internal/app"
	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/server"
	"github.com/desertthunder/evalwatch/internal/shared"
	"github.com/desertthunder/evalwatch/internal/stomp"
	"github.com/desertthunder/evalwatch/internal/tasks"
	tu "github.com/desertthunder/evalwatch/internal/testing"
	"github.com/desertthunder/evalwatch/internal/tracker"
)

func newTestRunner(t *testing.T, baseURL string) (*Runner, *bytes.Buffer) {
	t.Helper()
	config := shared.DefaultConfig()
	config.Backend.BaseURL = baseURL
	config.Presenter.CompleteDelayMS = 10
	config.Presenter.FailedDelayMS = 10
	config.Presenter.PollIntervalMS = 10
	config.Log.File = filepath.Join(t.TempDir(), "evalwatch.log")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Output: output,
		Logger: shared.NewLogger(io.Discard),
	})
	return runner, output
}

// runApp runs the CLI with a config path that does not exist, so the runner's config is kept.
func runApp(ctx context.Context, t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing.toml")
	return newApp(r).Run(ctx, append([]string{"evalwatch", "--config", missing}, args...))
}

func progressJSON(status models.Status, step, total int) string {
	pct := 0
	if total > 0 {
		pct = step * 100 / total
	}
	return fmt.Sprintf(`{"runId":"r1","status":"%s","currentStep":%d,"totalSteps":%d,"percentage":%d,"message":"hello"}`,
		status, step, total, pct)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api == nil || runner.runs == nil {
				t.Error("expected services to be built")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Fatal("expected default config")
			}
			if runner.config.Backend.BaseURL == "" {
				t.Error("expected default backend URL")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient")
			}
		})

		t.Run("with nil browser opener uses system browser", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.openBrowser == nil {
				t.Error("expected openBrowser to be set")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("done")
			if output.String() != "\ndone\n" {
				t.Errorf("expected %q, got %q", "\ndone\n", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "run", "progress", "serve", "token", "api"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd.Name != want[i] {
				t.Errorf("command %d: expected %q, got %q", i, want[i], cmd.Name)
			}
		}
	})

	t.Run("Before", func(t *testing.T) {
		t.Run("loads the config file when present", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			contents := "[backend]\nbase_url = \"http://backend.test\"\n"
			if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
				t.Fatal(err)
			}

			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.NewLogger(io.Discard)})
			args := []string{"evalwatch", "--config", path, "token", "status"}
			if err := newApp(runner).Run(context.Background(), args); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Backend.BaseURL != "http://backend.test" {
				t.Errorf("expected loaded base URL, got %q", runner.config.Backend.BaseURL)
			}
			if runner.config.Backend.WSPath != "/ws" {
				t.Errorf("expected default ws path, got %q", runner.config.Backend.WSPath)
			}
		})

		t.Run("rejects an unknown log level", func(t *testing.T) {
			runner, _ := newTestRunner(t, "http://backend.test")
			err := runApp(context.Background(), t, runner, "--log-level", "loud", "token", "status")
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestSetup(t *testing.T) {
	t.Run("creates the config file from the template", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner, output := newTestRunner(t, "http://backend.test")

		args := []string{"evalwatch", "--config", path, "setup"}
		if err := newApp(runner).Run(context.Background(), args); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected config file to exist: %v", err)
		}
		result := output.String()
		for _, want := range []string{"Wrote", "Configuration", "ws://localhost:8081/ws", "not configured"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected output to contain %q, got %s", want, result)
			}
		}
	})

	t.Run("reports an expired token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		contents := "[auth]\ntoken = \"abc\"\ntoken_expiry = \"2000-01-01T00:00:00Z\"\n"
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}

		runner, output := newTestRunner(t, "http://backend.test")
		args := []string{"evalwatch", "--config", path, "setup"}
		if err := newApp(runner).Run(context.Background(), args); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "expired") {
			t.Errorf("expected expired token in output, got %s", output.String())
		}
	})
}

func TestRunCommands(t *testing.T) {
	t.Run("status prints the summary", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/progress/r1" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, progressJSON(models.StatusRunning, 2, 4))
		}))
		defer backend.Close()

		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "run", "status", "r1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "r1 RUNNING 50% (2/4) - hello") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("status --json writes the event", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, progressJSON(models.StatusRunning, 1, 4))
		}))
		defer backend.Close()

		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "run", "status", "--json", "r1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"runId": "r1"`) {
			t.Errorf("expected JSON output, got %s", output.String())
		}
	})

	t.Run("status of an unknown run", func(t *testing.T) {
		backend := httptest.NewServer(http.NotFoundHandler())
		defer backend.Close()

		runner, _ := newTestRunner(t, backend.URL)
		err := runApp(context.Background(), t, runner, "run", "status", "nope")
		if !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("missing run id", func(t *testing.T) {
		runner, _ := newTestRunner(t, "http://backend.test")
		for _, sub := range []string{"exec", "watch", "status", "poll"} {
			err := runApp(context.Background(), t, runner, "run", sub)
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("%s: expected ErrMissingArgument, got %v", sub, err)
			}
		}
	})

	t.Run("poll stops at a terminal status", func(t *testing.T) {
		var calls atomic.Int32
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			if n < 2 {
				io.WriteString(w, progressJSON(models.StatusRunning, 1, 2))
				return
			}
			io.WriteString(w, progressJSON(models.StatusCompleted, 2, 2))
		}))
		defer backend.Close()

		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "run", "poll", "--interval", "5ms", "r1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "r1 COMPLETED 100%") {
			t.Errorf("expected completed line, got %q", output.String())
		}
	})

	t.Run("poll reports a failed run", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, progressJSON(models.StatusFailed, 1, 2))
		}))
		defer backend.Close()

		runner, _ := newTestRunner(t, backend.URL)
		err := runApp(context.Background(), t, runner, "run", "poll", "--interval", "5ms", "r1")
		if !errors.Is(err, shared.ErrRunFailed) {
			t.Errorf("expected ErrRunFailed, got %v", err)
		}
	})

	t.Run("watch of a finished run prints its state", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, progressJSON(models.StatusCompleted, 4, 4))
		}))
		defer backend.Close()

		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "run", "watch", "--plain", "r1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "r1 COMPLETED 100% (4/4)") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("exec with an expired token shows the banner", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"success":false,"error":"TOKEN_EXPIRED","message":"Token has expired"}`)
		}))
		defer backend.Close()

		runner, output := newTestRunner(t, backend.URL)
		err := runApp(context.Background(), t, runner, "run", "exec", "--plain", "r1")
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if !strings.Contains(output.String(), "🔐") {
			t.Errorf("expected token banner, got %q", output.String())
		}
	})

	t.Run("exec follows a demo run to completion", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		broker := stomp.NewBroker(logger)
		runs := tracker.New(tracker.Options{Publisher: broker, Logger: logger})
		demo := tasks.NewDemoRunner(runs, tasks.DemoOpts{Steps: 3, StepDelay: 20 * time.Millisecond}, logger)
		defer demo.Close()
		defer broker.Close()

		srv := server.New(server.Options{Store: runs, Executor: demo, Broker: broker, Logger: logger})
		backend := httptest.NewServer(srv)
		defer backend.Close()

		runner, output := newTestRunner(t, backend.URL)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := runApp(ctx, t, runner, "run", "exec", "--plain", "r1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "r1 COMPLETED 100% (3/3)") {
			t.Errorf("expected refreshed summary, got %q", output.String())
		}
	})
}

func TestProgressCommands(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/progress/all":
			io.WriteString(w, `{"b":{"runId":"b","status":"RUNNING","totalSteps":2,"currentStep":1,"percentage":50,"message":"m"},`+
				`"a":{"runId":"a","status":"COMPLETED","totalSteps":2,"currentStep":2,"percentage":100,"message":"m"}}`)
		case "/api/progress/statistics":
			io.WriteString(w, `{"total":3,"running":1,"completed":1,"failed":1}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer backend.Close()

	t.Run("list is ordered by run id", func(t *testing.T) {
		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "progress", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		result := output.String()
		a, b := strings.Index(result, "a COMPLETED"), strings.Index(result, "b RUNNING")
		if a < 0 || b < 0 || a > b {
			t.Errorf("expected a before b, got %q", result)
		}
	})

	t.Run("stats", func(t *testing.T) {
		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "progress", "stats"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Total:     3", "Running:   1", "Failed:    1"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in %q", want, output.String())
			}
		}
	})

	t.Run("export writes a report file", func(t *testing.T) {
		runner, output := newTestRunner(t, backend.URL)
		path := filepath.Join(t.TempDir(), "runs.csv")
		if err := runApp(context.Background(), t, runner, "progress", "export", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "a,COMPLETED,2,2,100.0") {
			t.Errorf("unexpected report %q", content)
		}
		if !strings.Contains(output.String(), "Exported 2 runs") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("stats --json", func(t *testing.T) {
		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "progress", "stats", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"completed": 1`) {
			t.Errorf("expected JSON, got %q", output.String())
		}
	})
}

func TestTokenCommands(t *testing.T) {
	t.Run("status without a token", func(t *testing.T) {
		runner, output := newTestRunner(t, "http://backend.test")
		if err := runApp(context.Background(), t, runner, "token", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No token configured") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("status with a valid token", func(t *testing.T) {
		runner, output := newTestRunner(t, "http://backend.test")
		runner.config.Auth.Token = "abc"
		runner.config.Auth.TokenExpiry = time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

		if err := runApp(context.Background(), t, runner, "token", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "valid until") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("status with an expired token", func(t *testing.T) {
		runner, output := newTestRunner(t, "http://backend.test")
		runner.config.Auth.Token = "abc"
		runner.config.Auth.TokenExpiry = "2000-01-01T00:00:00Z"

		err := runApp(context.Background(), t, runner, "token", "status")
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if !strings.Contains(output.String(), "To refresh your token") {
			t.Errorf("expected instructions, got %q", output.String())
		}
	})

	t.Run("open launches the management page", func(t *testing.T) {
		var opened string
		runner := NewRunner(RunnerOpts{
			Output:      &bytes.Buffer{},
			Logger:      shared.NewLogger(io.Discard),
			OpenBrowser: func(url string) error { opened = url; return nil },
		})
		runner.config.Auth.ManagementURL = "http://tokens.test"

		if err := runApp(context.Background(), t, runner, "token", "open"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if opened != "http://tokens.test" {
			t.Errorf("expected management URL to be opened, got %q", opened)
		}
	})

	t.Run("open prints the URL when the browser fails", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Output:      output,
			Logger:      shared.NewLogger(io.Discard),
			OpenBrowser: func(string) error { return errors.New("no browser") },
		})
		runner.config.Auth.ManagementURL = "http://tokens.test"

		if err := runApp(context.Background(), t, runner, "token", "open"); err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(output.String(), "http://tokens.test") {
			t.Errorf("expected URL in output, got %q", output.String())
		}
	})

	t.Run("open without a management URL", func(t *testing.T) {
		runner, _ := newTestRunner(t, "http://backend.test")
		runner.config.Auth.ManagementURL = ""

		err := runApp(context.Background(), t, runner, "token", "open")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestAPICommands(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"ok":true}`)
		case "/text":
			io.WriteString(w, "plain body")
		default:
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream down")
		}
	}))
	defer backend.Close()

	t.Run("get pretty-prints JSON", func(t *testing.T) {
		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "api", "get", "/json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"ok": true`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("get writes non-JSON bodies as is", func(t *testing.T) {
		runner, output := newTestRunner(t, backend.URL)
		if err := runApp(context.Background(), t, runner, "api", "get", "/text"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "plain body\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("get reports error statuses", func(t *testing.T) {
		runner, _ := newTestRunner(t, backend.URL)
		err := runApp(context.Background(), t, runner, "api", "get", "/broken")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("post rejects invalid JSON", func(t *testing.T) {
		runner, _ := newTestRunner(t, backend.URL)
		err := runApp(context.Background(), t, runner, "api", "post", "--data", "{nope", "/json")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestOutcomeErr(t *testing.T) {
	tests := []struct {
		name    string
		outcome app.Outcome
		want    error
	}{
		{"completed", app.Outcome{RunID: "r1", Status: models.StatusCompleted}, nil},
		{"failed", app.Outcome{RunID: "r1", Status: models.StatusFailed}, shared.ErrRunFailed},
		{"cancelled", app.Outcome{RunID: "r1", Status: models.StatusCancelled}, shared.ErrRunFailed},
		{"token error", app.Outcome{RunID: "r1", Status: models.StatusFailed, TokenError: true}, shared.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := outcomeErr(tt.outcome)
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
