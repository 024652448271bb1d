package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"bikedash/internal/analytics"
	"bikedash/internal/cache"
	"bikedash/internal/core"
	"bikedash/internal/dataset"
	applog "bikedash/internal/log"
	"bikedash/internal/render"
)

const (
	snapshotKey        = "snapshot"
	defaultLoadTimeout = 30 * time.Second
)

// DashboardConfig tunes the caches of a DashboardService.
type DashboardConfig struct {
	CacheTTL  time.Duration
	CacheSize int
	// LoadTimeout bounds one dataset load. The load outlives the request that
	// started it, so callers sharing it are not failed by its cancellation.
	LoadTimeout time.Duration
	Lookups     core.Lookups
	Logger      *applog.Logger
}

// DashboardService runs the filter, aggregate and render pipeline over a cached snapshot.
type DashboardService struct {
	reader      dataset.RecordReader
	lookups     core.Lookups
	loadTimeout time.Duration

	snapshots  *cache.LRUCache[*analytics.Snapshot]
	dashboards *cache.LRUCache[*Dashboard]
	group      singleflight.Group
	generation atomic.Uint64

	logger *applog.StructuredLogger
	log    *applog.Logger

	loads  atomic.Int64
	builds atomic.Int64
}

// Stats are the counters exposed on /metrics.
type Stats struct {
	Loads         int64
	Builds        int64
	SnapshotRows  int
	Generation    uint64
	SnapshotCache cache.Stats
	DashCache     cache.Stats
}

func NewDashboardService(reader dataset.RecordReader, cfg DashboardConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	if cfg.Lookups.Season == nil || cfg.Lookups.Weather == nil {
		cfg.Lookups = core.DefaultLookups()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentDashboard)

	return &DashboardService{
		reader:      reader,
		lookups:     cfg.Lookups,
		loadTimeout: cfg.LoadTimeout,
		snapshots:   cache.NewLRUCache[*analytics.Snapshot](1, cfg.CacheTTL),
		dashboards:  cache.NewLRUCache[*Dashboard](cfg.CacheSize, cfg.CacheTTL),
		logger:      applog.NewStructuredLogger(logger),
		log:         logger,
	}
}

// RegisterCaches hands both caches to m for periodic expiry.
func (s *DashboardService) RegisterCaches(m *cache.Manager) {
	m.Register("snapshot", s.snapshots)
	m.Register("dashboard", s.dashboards)
}

// Snapshot returns the cached enriched table, loading it on a miss.
// Concurrent misses share a single load. A caller whose ctx ends stops
// waiting, but the shared load carries on for the others.
func (s *DashboardService) Snapshot(ctx context.Context) (*analytics.Snapshot, error) {
	gen := s.generation.Load()
	if snap, ok := s.snapshots.Get(snapshotKey); ok {
		return snap, nil
	}

	ch := s.group.DoChan(fmt.Sprintf("%s-%d", snapshotKey, gen), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()

		start := time.Now()
		records, err := s.reader.ReadRecords(loadCtx)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		snap := analytics.NewSnapshot(core.Enrich(records, s.lookups))
		s.loads.Add(1)
		// A reload that raced this load leaves the stale result uncached.
		if s.generation.Load() == gen {
			s.snapshots.Set(snapshotKey, snap)
		}
		s.log.InfoContext(loadCtx, "Dataset loaded",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldRows, snap.Len(),
			applog.FieldDuration, time.Since(start).Milliseconds())
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.logger.LogError(ctx, "Dataset load failed", res.Err, applog.OpLoad, nil)
			return nil, res.Err
		}
		return res.Val.(*analytics.Snapshot), nil
	}
}

// Options returns the control choices offered by the dataset.
func (s *DashboardService) Options(ctx context.Context) (Options, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Options{}, err
	}
	return optionsFor(snap), nil
}

// Defaults returns criteria selecting every row: the full date range and every label present.
func (s *DashboardService) Defaults(ctx context.Context) (core.Criteria, error) {
	opts, err := s.Options(ctx)
	if err != nil {
		return core.Criteria{}, err
	}
	return opts.Defaults(), nil
}

// Build renders the dashboard for c. Results are cached per criteria until the
// next reload or TTL expiry.
func (s *DashboardService) Build(ctx context.Context, c core.Criteria) (*Dashboard, error) {
	// The key uses the generation seen before loading, so a dashboard built
	// from a snapshot that a reload has superseded is never filed as current.
	gen := s.generation.Load()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	fields := applog.NewFields().WithCriteria(
		c.Start.Format(dateLayout), c.End.Format(dateLayout), c.Seasons, c.Weathers)

	key := fmt.Sprintf("%d|%s", gen, c.Key())
	if d, ok := s.dashboards.Get(key); ok {
		s.logger.LogDashboardBuilt(ctx, fields, snap.Len(), d.FilteredRows, true)
		return d, nil
	}

	view := analytics.Filter(snap.All(), c)
	d := &Dashboard{
		Page:         DefaultPage(),
		Criteria:     c,
		Options:      optionsFor(snap),
		TotalRows:    snap.Len(),
		FilteredRows: view.Len(),
		GeneratedAt:  time.Now().UTC(),
	}
	for _, def := range Layout() {
		ch, err := buildChart(view, def)
		if err != nil {
			s.logger.LogError(ctx, "Chart build failed", err, applog.OpRender,
				applog.NewFields().WithComponent(applog.ComponentRender))
			return nil, err
		}
		d.Charts = append(d.Charts, ch)
	}
	s.builds.Add(1)
	s.dashboards.Set(key, d)
	s.logger.LogDashboardBuilt(ctx, fields, d.TotalRows, d.FilteredRows, false)
	return d, nil
}

// Invalidate drops the snapshot and every built dashboard so the next pass reloads
// the dataset. It returns the number of cache entries removed.
func (s *DashboardService) Invalidate() int {
	s.generation.Add(1)
	n := s.snapshots.Purge() + s.dashboards.Purge()
	s.log.Info("Caches invalidated",
		applog.FieldOperation, applog.OpReload,
		"entries", n)
	return n
}

// Ready reports whether the dataset can be loaded.
func (s *DashboardService) Ready(ctx context.Context) error {
	if s.reader == nil {
		return errors.New("no dataset reader configured")
	}
	_, err := s.Snapshot(ctx)
	return err
}

func (s *DashboardService) Stats() Stats {
	st := Stats{
		Loads:         s.loads.Load(),
		Builds:        s.builds.Load(),
		Generation:    s.generation.Load(),
		SnapshotCache: s.snapshots.Stats(),
		DashCache:     s.dashboards.Stats(),
	}
	if snap, ok := s.snapshots.Peek(snapshotKey); ok {
		st.SnapshotRows = snap.Len()
	}
	return st
}

func optionsFor(snap *analytics.Snapshot) Options {
	all := snap.All()
	opts := Options{
		Seasons:  analytics.DistinctValues(all, analytics.DimSeason),
		Weathers: analytics.DistinctValues(all, analytics.DimWeather),
	}
	opts.MinDate, opts.MaxDate, _ = analytics.DateRange(all)
	return opts
}

func buildChart(view analytics.View, def ChartDef) (Chart, error) {
	rows, err := analytics.Aggregate(view, analytics.MetricTotalRentals, def.Dims...)
	if err != nil {
		return Chart{}, fmt.Errorf("aggregate %s: %w", def.ID, err)
	}
	ch := Chart{ChartDef: def, Rows: rows, Empty: len(rows) == 0}

	var buf bytes.Buffer
	switch def.Kind {
	case KindBar:
		err = render.Bar(&buf, render.BarChart{
			Title:  def.Title,
			YLabel: def.YLabel,
			Bars:   barPoints(rows),
		})
	case KindLine:
		err = render.Line(&buf, lineChart(view, def, rows))
	default:
		err = fmt.Errorf("unknown chart kind %q", def.Kind)
	}
	if err != nil {
		return Chart{}, fmt.Errorf("render %s: %w", def.ID, err)
	}
	ch.SVG = template.HTML(buf.String())
	return ch, nil
}

func barPoints(rows []analytics.AggregateRow) []render.Point {
	points := make([]render.Point, len(rows))
	for i, r := range rows {
		points[i] = render.Point{Label: core.DisplayLabel(r.Key[0]), Value: r.Mean}
	}
	return points
}

// lineChart puts months on the x axis. With a second dimension every label of
// that dimension in view becomes its own series.
func lineChart(view analytics.View, def ChartDef, rows []analytics.AggregateRow) render.LineChart {
	lc := render.LineChart{
		Title:  def.Title,
		XLabel: def.XLabel,
		YLabel: def.YLabel,
	}
	if len(rows) == 0 {
		return lc
	}
	lc.Categories = analytics.DistinctValues(view, analytics.DimMonth)

	if len(def.Dims) < 2 {
		s := render.Series{Name: def.YLabel}
		for _, r := range rows {
			s.Points = append(s.Points, render.Point{Label: r.Key[0], Value: r.Mean})
		}
		lc.Series = []render.Series{s}
		return lc
	}

	hues := analytics.DistinctValues(view, def.Dims[1])
	pos := make(map[string]int, len(hues))
	lc.Series = make([]render.Series, len(hues))
	for i, h := range hues {
		pos[h] = i
		lc.Series[i].Name = core.DisplayLabel(h)
	}
	for _, r := range rows {
		i := pos[r.Key[1]]
		lc.Series[i].Points = append(lc.Series[i].Points, render.Point{Label: r.Key[0], Value: r.Mean})
	}
	return lc
}
