package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"bikedash/internal/core"
	applog "bikedash/internal/log"
	"bikedash/internal/middleware/ratelimit"
	"bikedash/internal/middleware/security"
	"bikedash/internal/middleware/trace"
	"bikedash/internal/services"
	appweb "bikedash/web"
)

// Dashboard is what the server needs from the dashboard service.
type Dashboard interface {
	Options(ctx context.Context) (services.Options, error)
	Build(ctx context.Context, c core.Criteria) (*services.Dashboard, error)
	Ready(ctx context.Context) error
	Stats() services.Stats
}

// Config configures a Server.
type Config struct {
	Addr      string
	RateLimit ratelimit.Config
	Logger    *applog.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	dashboard Dashboard

	logger     *applog.Logger
	structured *applog.StructuredLogger

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates. A template parse
// failure is logged and surfaces as 500 on pages and 503 on /readyz.
func NewServer(cfg Config, dash Dashboard) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		dashboard:   dash,
		logger:      logger,
		structured:  applog.NewStructuredLogger(logger),
		detector:    security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		started:     time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates",
			applog.FieldComponent, applog.ComponentTemplate,
			applog.FieldError, err)
		t = nil
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/charts", s.handleCharts)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// chain wraps h so the request logger and request ID are in place before
// security checks and rate limiting run.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = s.tracer.Middleware(h)
	return applog.Middleware(s.logger)(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, please slow down.").Write(w)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
