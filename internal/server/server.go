package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
	"github.com/desertthunder/evalwatch/internal/stomp"
)

const shutdownTimeout = 5 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own their routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// ProgressStore is the server's view of the run tracker.
type ProgressStore interface {
	Get(runID string) (models.ProgressEvent, bool)
	Has(runID string) bool
	Remove(runID string) bool
	All() map[string]models.ProgressEvent
	Statistics() models.Statistics
	UpdateMessage(runID, message string) (models.ProgressEvent, error)
}

// Executor starts evaluation runs.
type Executor interface {
	Start(runID string) error
}

// Options configures a [Server].
type Options struct {
	Addr     string
	Store    ProgressStore
	Executor Executor
	Broker   *stomp.Broker
	WSPath   string
	Logger   *log.Logger
}

// Server is the progress server: REST API, execute endpoint and STOMP broker.
type Server struct {
	addr   string
	router *BasicRouter
	broker *stomp.Broker
	logger *log.Logger
}

// New creates a server and registers every route.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "server")
	if opts.Broker == nil {
		opts.Broker = stomp.NewBroker(logger)
	}
	if opts.WSPath == "" {
		opts.WSPath = "/ws"
	}

	s := &Server{addr: opts.Addr, router: NewBasicRouter(), broker: opts.Broker, logger: logger}
	s.router.Use(LoggingMiddleware(logger))

	progress := &ProgressHandler{store: opts.Store, logger: logger}
	progress.Register(s.router)

	execute := &ExecuteHandler{executor: opts.Executor, logger: logger}
	s.router.Handle(http.MethodPost, "/runs/{runId}/execute", execute)

	s.router.Handler(&BrokerHandler{broker: opts.Broker, path: opts.WSPath})
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
//
// WebSocket connections are hijacked and so are not tracked by [http.Server.Shutdown];
// the broker closes them first.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("progress server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.broker.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down progress server")
		s.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) || err == nil {
			return nil
		}
		return err
	}
}

// BrokerHandler mounts the STOMP broker on the router.
type BrokerHandler struct {
	broker *stomp.Broker
	path   string
}

// Routes returns the WebSocket endpoint.
func (h *BrokerHandler) Routes() []string {
	return []string{h.path}
}

func (h *BrokerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.broker.ServeHTTP(w, r)
}

// LoggingMiddleware logs every request with its status and duration.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
