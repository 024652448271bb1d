package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	applog "bikedash/internal/log"
	"bikedash/internal/services"
)

// pageData feeds index.html and the charts partial.
type pageData struct {
	*services.Dashboard
	Start    string
	End      string
	MinDate  string
	MaxDate  string
	Seasons  []option
	Weathers []option
}

func newPageData(d *services.Dashboard) pageData {
	return pageData{
		Dashboard: d,
		Start:     formatDate(d.Criteria.Start),
		End:       formatDate(d.Criteria.End),
		MinDate:   formatDate(d.Options.MinDate),
		MaxDate:   formatDate(d.Options.MaxDate),
		Seasons:   options(d.Options.Seasons, d.Criteria.Seasons),
		Weathers:  options(d.Options.Weathers, d.Criteria.Weathers),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	d, status, err := s.build(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", newPageData(d)); err != nil {
		s.structured.LogError(r.Context(), "Index template execution failed", err, applog.OpRender,
			applog.NewFields().WithComponent(applog.ComponentTemplate))
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCharts renders the charts partial swapped in by HTMX on every filter change.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}

	d, status, err := s.build(r)
	if err != nil {
		ErrorResponse(status, err.Error()).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "charts", newPageData(d)); err != nil {
		s.structured.LogError(r.Context(), "Charts template execution failed", err, applog.OpRender,
			applog.NewFields().WithComponent(applog.ComponentTemplate))
		InternalServerError("failed to render charts").Write(w)
		return
	}
	pushURL := "/?" + EncodeCriteria(d.Criteria).Encode()
	NewHTMXResponse().
		PushURL(pushURL).
		TriggerFiltersApplied(d.FilteredRows, d.TotalRows).
		BodyHTML(buf.Bytes()).
		Write(w)
}

// build parses the filters and runs one dashboard pass. The returned status
// and message are safe to show to the client.
func (s *Server) build(r *http.Request) (*services.Dashboard, int, error) {
	ctx := r.Context()
	if s.dashboard == nil {
		return nil, http.StatusServiceUnavailable, errors.New("dashboard not configured")
	}

	opts, err := s.dashboard.Options(ctx)
	if err != nil {
		s.structured.LogError(ctx, "Dataset unavailable", err, applog.OpLoad,
			applog.NewFields().WithComponent(applog.ComponentDataset))
		return nil, http.StatusInternalServerError, errors.New("dataset could not be loaded")
	}

	c, err := ParseCriteria(r.URL.Query(), opts)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Invalid filter",
			applog.FieldOperation, applog.OpParse,
			applog.FieldQuery, r.URL.RawQuery,
			applog.FieldError, err)
		return nil, http.StatusBadRequest, err
	}

	d, err := s.dashboard.Build(ctx, c)
	if err != nil {
		s.structured.LogError(ctx, "Dashboard build failed", err, applog.OpBuild,
			applog.NewFields().WithCriteria(formatDate(c.Start), formatDate(c.End), c.Seasons, c.Weathers))
		return nil, http.StatusInternalServerError, errors.New("dashboard could not be built")
	}
	return d, http.StatusOK, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and that the dataset loads.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	fail := func(name string, v interface{}) {
		checks[name] = v
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "failed: templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	if s.dashboard == nil {
		fail("dataset", "not_configured")
	} else if err := s.dashboard.Ready(ctx); err != nil {
		fail("dataset", fmt.Sprintf("failed: %v", err))
	} else {
		checks["dataset"] = map[string]interface{}{
			"status": "ok",
			"rows":   s.dashboard.Stats().SnapshotRows,
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	var st services.Stats
	if s.dashboard != nil {
		st = s.dashboard.Stats()
	}

	metric := func(name, kind, help string, value interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "HTTP responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Mean HTTP response time", traceMetrics.AverageResponseTime)
	metric("dataset_loads_total", "counter", "Dataset loads into a snapshot", st.Loads)
	metric("dataset_rows", "gauge", "Rows in the cached snapshot", st.SnapshotRows)
	metric("dataset_generation", "gauge", "Reload generation of the snapshot cache", st.Generation)
	metric("dashboard_builds_total", "counter", "Dashboards computed without a cache hit", st.Builds)

	fmt.Fprintf(w, "# HELP cache_hits_total Cache hits\n# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total{cache=\"snapshot\"} %d\n", st.SnapshotCache.Hits)
	fmt.Fprintf(w, "cache_hits_total{cache=\"dashboard\"} %d\n\n", st.DashCache.Hits)
	fmt.Fprintf(w, "# HELP cache_misses_total Cache misses\n# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total{cache=\"snapshot\"} %d\n", st.SnapshotCache.Misses)
	fmt.Fprintf(w, "cache_misses_total{cache=\"dashboard\"} %d\n\n", st.DashCache.Misses)

	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged by the detector", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ Dashboard = (*services.DashboardService)(nil)
