package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/meterboard/meterboard/pkg/catalog"
	"github.com/meterboard/meterboard/pkg/log"
	"github.com/meterboard/meterboard/pkg/metrics"
	"github.com/meterboard/meterboard/pkg/storage"
	"github.com/meterboard/meterboard/pkg/timerange"
	"github.com/meterboard/meterboard/pkg/types"
	"github.com/meterboard/meterboard/pkg/viewport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Server serves the chart API. Every chart request reads raw readings from
// the store and merges them from scratch.
type Server struct {
	storage storage.Database
	catalog *catalog.Catalog

	listenAddr      string
	frontendProxy   string
	corsOrigins     []string
	defaultPreset   string
	defaultFormat   types.DateFormat
	mobilePredicate string
	serverName      string
	httpServer      *http.Server

	now func() time.Time
}

// utcNow keeps rolling presets at whole days across DST changes.
func utcNow() time.Time {
	return time.Now().UTC()
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(s storage.Database) *Server {
	srv := &Server{
		storage:    s,
		serverName: "meterboard",
		now:        utcNow,
	}
	if revision := os.Getenv("K_REVISION"); revision != "" {
		srv.serverName = revision
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	frontendProxy := lflag.String("frontend-proxy", "", "Address of the chart frontend to proxy non-API requests to (e.g. http://localhost:3000)")
	corsOrigins := lflag.String("cors-origins", "", "comma-delimited list of origins allowed to call the API")
	defaultPreset := lflag.String("default-preset", timerange.Last30Days, "Range preset used when a chart request names no range")
	defaultFormat := lflag.String("default-date-format", string(types.DateFormatDayYear), "Row label format when a chart request names none (month, day, raw)")
	mobilePredicate := lflag.String("mobile-predicate", viewport.MobilePredicate, "Viewport predicate that switches charts to the compact layout")
	metersConfig := lflag.String("meters-config", os.Getenv("METERS_CONFIG"), "Optional meters.yaml with display names and colors per meter")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.frontendProxy = *frontendProxy
		if *corsOrigins != "" {
			for _, o := range strings.Split(*corsOrigins, ",") {
				srv.corsOrigins = append(srv.corsOrigins, strings.TrimSpace(o))
			}
		}
		if _, err := timerange.ResolvePreset(*defaultPreset, time.Now()); err != nil {
			log.Ctx(context.Background()).Error("invalid default-preset", slog.Any("error", err))
			os.Exit(1)
		}
		srv.defaultPreset = *defaultPreset
		format, err := parseDateFormat(*defaultFormat)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid default-date-format", slog.Any("error", err))
			os.Exit(1)
		}
		srv.defaultFormat = format
		srv.mobilePredicate = *mobilePredicate
		if *metersConfig != "" {
			c, err := catalog.Load(*metersConfig)
			if err != nil {
				log.Ctx(context.Background()).Error("invalid meters-config", slog.Any("error", err))
				os.Exit(1)
			}
			log.Ctx(context.Background()).Info("loaded meter catalog", slog.Int("meters", c.Len()))
			srv.catalog = c
		}
	})

	return srv
}

// New creates a Server without flags. It is primarily used for testing.
func New(s storage.Database) *Server {
	return &Server{
		storage:         s,
		defaultPreset:   timerange.Last30Days,
		defaultFormat:   types.DateFormatDayYear,
		mobilePredicate: viewport.MobilePredicate,
		now:             utcNow,
	}
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/meters", s.handleListMeters)
	apiMux.HandleFunc("GET /api/chart", s.handleChart)
	apiMux.HandleFunc("GET /api/presets", s.handleListPresets)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.corsMiddleware(s.metricsMiddleware(apiMux)))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	if s.frontendProxy != "" {
		u, err := url.Parse(s.frontendProxy)
		if err != nil {
			panic(fmt.Errorf("invalid frontend-proxy url (%s): %w", s.frontendProxy, err))
		}
		mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
	}
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
	}{Message: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	if len(s.corsOrigins) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(next)
}

var apiRoutes = map[string]struct{}{
	"/api/meters":  {},
	"/api/chart":   {},
	"/api/presets": {},
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := log.WithAttrs(r.Context(), slog.String("path", r.URL.Path))
		next.ServeHTTP(rec, r.WithContext(ctx))
		route := r.URL.Path
		if _, ok := apiRoutes[route]; !ok {
			route = "other"
		}
		metrics.IncHTTPRequest(route, strconv.Itoa(rec.status))
	})
}
