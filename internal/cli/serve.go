package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/releases"
)

const (
	maxBodyBytes    = 1 << 20
	maxBatchSize    = 1000
	shutdownTimeout = 10 * time.Second
)

// batchResolver is the part of the resolver the HTTP API needs.
type batchResolver interface {
	Resolve(ctx context.Context, deps []releases.Dependency) (releases.ReleaseMap, error)
}

type serveOptions struct {
	addr string
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the release lookup over HTTP",
		Long: `Serve POST /dependencies: the body is a JSON array of {"name", "version"}
objects and the response maps each name to its newer releases.

Registry responses are shared through Redis when redis_addr (or
WHATSCHANGED_REDIS_ADDR) is set.`,
		Example: `  whatschanged serve --addr :8080
  curl -d '[{"name":"react","version":"18.2.0"}]' localhost:8080/dependencies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, PORT or :3000)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOptions) error {
	logger := loggerFromContext(ctx)

	a, err := c.openApp(ctx, appOptions{SharedCache: true})
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Serve.Addr
	if opts.addr != "" {
		addr = opts.addr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(a.resolver, logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRouter builds the HTTP API around r.
func newRouter(r batchResolver, logger *log.Logger) http.Handler {
	h := &handler{resolver: r, now: time.Now}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(requestLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(allowCORS)

	mux.Get("/healthz", h.health)
	mux.Post("/dependencies", h.dependencies)
	return mux
}

type handler struct {
	resolver batchResolver
	now      func() time.Time
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error      string    `json:"error"`
	Code       errs.Code `json:"code,omitempty"`
	RetryAfter int       `json:"retryAfter,omitempty"` // seconds
}

func (h *handler) dependencies(w http.ResponseWriter, r *http.Request) {
	deps, err := decodeDependencies(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errs.UserMessage(err), Code: errs.GetCode(err)})
		return
	}

	result, err := h.resolver.Resolve(r.Context(), deps)
	if err != nil {
		loggerFromContext(r.Context()).Error("Batch failed", "deps", len(deps), "err", err)
		body := errorBody{Error: err.Error(), Code: errs.GetCode(err)}
		var rl *errs.RateLimitedError
		if errors.As(err, &rl) {
			body.RetryAfter = int(rl.RetryAfter(h.now()).Round(time.Second) / time.Second)
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeDependencies reads a non-empty JSON array of dependencies, each with
// a name and a version.
func decodeDependencies(body io.Reader) ([]releases.Dependency, error) {
	var deps []releases.Dependency
	if err := json.NewDecoder(body).Decode(&deps); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "body must be a JSON array of {name, version} objects")
	}
	if len(deps) == 0 {
		return nil, errs.New(errs.ErrCodeInvalidInput, "dependencies must not be empty")
	}
	if len(deps) > maxBatchSize {
		return nil, errs.New(errs.ErrCodeInvalidInput, "at most %d dependencies per request", maxBatchSize)
	}
	for i, d := range deps {
		if strings.TrimSpace(d.Name) == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "dependency %d: name is required", i)
		}
		if err := errs.ValidateVersion(d.Version); err != nil {
			return nil, errs.New(errs.ErrCodeInvalidInput, "dependency %d (%s): %s", i, d.Name, errs.UserMessage(err))
		}
	}
	return deps, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger attaches a request-scoped logger to the context and logs
// each completed request.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := logger.With("req", middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), l)))

			l.Info("Request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).Round(time.Millisecond))
		})
	}
}

// allowCORS lets browser clients on any origin call the API.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
