// Package dashboard loads every analytics view, substitutes synthetic data
// for views the service cannot provide, and derives the chart view-models.
package dashboard

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"rentdash/server/config"
	"rentdash/server/internal/chart"
	"rentdash/server/internal/client"
	"rentdash/server/internal/geometry"
	"rentdash/server/internal/market"
	"rentdash/server/internal/metrics"
	"rentdash/server/internal/models"
	"rentdash/server/internal/queue"
	"rentdash/server/internal/synthetic"
)

// View names, used for logging, metrics and Snapshot.Synthetic
const (
	ViewOverview     = "overview"
	ViewHeatmap      = "heatmap"
	ViewTrends       = "trends"
	ViewSupplyDemand = "supply_demand"
	ViewSources      = "sources"
	ViewFlagged      = "flagged"
)

// Analytics is the read side of the service
type Analytics interface {
	Overview(ctx context.Context) client.Result[models.Overview]
	Heatmap(ctx context.Context) client.Result[[]models.SuburbStat]
	Trends(ctx context.Context) client.Result[[]models.TrendPoint]
	SupplyDemand(ctx context.Context) client.Result[[]models.SuburbStat]
	Sources(ctx context.Context) client.Result[[]models.SourceCount]
	Flagged(ctx context.Context) client.Result[models.FlaggedResponse]
}

// Snapshot is one complete load of the dashboard. It is never modified
// after it is committed.
type Snapshot struct {
	LoadedAt     time.Time             `json:"loaded_at"`
	Overview     models.Overview       `json:"overview"`
	Stats        []models.SuburbStat   `json:"suburbs"`
	Heatmap      geometry.Heatmap      `json:"heatmap"`
	Tiles        []chart.Tile          `json:"tiles"`
	Trends       []models.TrendPoint   `json:"trends"`
	TrendChart   *chart.TrendChart     `json:"trend_chart"`
	SupplyDemand []market.SupplyDemand `json:"supply_demand"`
	Sources      []models.SourceCount  `json:"sources"`
	Flagged      []models.Listing      `json:"flagged"`
	TotalFlagged int                   `json:"total_flagged"`
	Synthetic    map[string]bool       `json:"synthetic"`
}

// FromSynthetic reports whether view was served from the synthetic dataset
func (s *Snapshot) FromSynthetic(view string) bool {
	return s.Synthetic[view]
}

type Dashboard struct {
	analytics Analytics
	generator *synthetic.Generator
	style     config.Style
	colors    *chart.ColorScale
	trend     *chart.TrendAxisScaler
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	loadTimeout time.Duration
	loads       singleflight.Group

	mu        sync.RWMutex
	seq       uint64
	committed uint64
	current   *Snapshot
}

// New creates a dashboard. The style is validated up front so every later
// load can rely on it.
func New(analytics Analytics, generator *synthetic.Generator, style config.Style, logger *logrus.Logger, m *metrics.Metrics) (*Dashboard, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if err := style.Validate(); err != nil {
		return nil, err
	}
	colors, err := chart.NewColorScale(style.PriceScale)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		analytics:   analytics,
		generator:   generator,
		style:       style,
		colors:      colors,
		trend:       chart.NewTrendAxisScaler(style.Trend),
		logger:      logger,
		metrics:     m,
		now:         time.Now,
		loadTimeout: 30 * time.Second,
	}, nil
}

func (d *Dashboard) Colors() *chart.ColorScale {
	return d.colors
}

// SyntheticListings is the listing fallback for the query builder
func (d *Dashboard) SyntheticListings() []models.Listing {
	return d.generator.Dataset().Listings
}

// fetch resolves one view, substituting synthetic data on failure
func fetch[T any](d *Dashboard, view string, res client.Result[T], fallback func(*synthetic.Dataset) T, synth *sync.Map) T {
	return res.Or(func() T {
		d.logger.WithError(res.Err()).WithField("view", view).Warn("View unavailable, using synthetic data")
		d.metrics.Fallback(view)
		synth.Store(view, true)
		return fallback(d.generator.Dataset())
	})
}

// Load fetches every view concurrently and commits the result. A view that
// fails is replaced by synthetic data without affecting the others. When ctx
// ends before every view has resolved, the partial snapshot is returned with
// ctx's error and nothing is committed. Otherwise the snapshot is committed
// unless a later Load finished first.
func (d *Dashboard) Load(ctx context.Context) (*Snapshot, error) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	start := d.now()
	snap := &Snapshot{LoadedAt: start.UTC(), Synthetic: make(map[string]bool)}
	var synth sync.Map
	var flagged models.FlaggedResponse
	var supply []models.SuburbStat

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.Overview = fetch(d, ViewOverview, d.analytics.Overview(gctx),
			func(ds *synthetic.Dataset) models.Overview { return ds.Overview }, &synth)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Stats = fetch(d, ViewHeatmap, d.analytics.Heatmap(gctx),
			func(ds *synthetic.Dataset) []models.SuburbStat { return ds.Stats }, &synth)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Trends = fetch(d, ViewTrends, d.analytics.Trends(gctx),
			func(ds *synthetic.Dataset) []models.TrendPoint { return ds.Trends }, &synth)
		return gctx.Err()
	})
	g.Go(func() error {
		supply = fetch(d, ViewSupplyDemand, d.analytics.SupplyDemand(gctx),
			func(ds *synthetic.Dataset) []models.SuburbStat { return ds.SupplyDemand }, &synth)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Sources = fetch(d, ViewSources, d.analytics.Sources(gctx),
			func(ds *synthetic.Dataset) []models.SourceCount { return ds.Sources }, &synth)
		return gctx.Err()
	})
	g.Go(func() error {
		flagged = fetch(d, ViewFlagged, d.analytics.Flagged(gctx),
			func(ds *synthetic.Dataset) models.FlaggedResponse {
				return models.FlaggedResponse{Flagged: ds.Flagged, TotalFlagged: ds.TotalFlagged}
			}, &synth)
		return gctx.Err()
	})
	// fetches recover locally; only the end of ctx is reported
	loadErr := g.Wait()

	synth.Range(func(k, v interface{}) bool {
		snap.Synthetic[k.(string)] = true
		return true
	})
	snap.Flagged = flagged.Flagged
	snap.TotalFlagged = flagged.TotalFlagged
	if snap.TotalFlagged < len(snap.Flagged) {
		snap.TotalFlagged = len(snap.Flagged)
	}
	d.derive(snap, supply)

	fields := logrus.Fields{
		"duration_ms": d.now().Sub(start).Milliseconds(),
		"synthetic":   len(snap.Synthetic),
		"suburbs":     len(snap.Stats),
	}
	if loadErr != nil {
		d.logger.WithError(loadErr).WithFields(fields).Warn("Dashboard load abandoned, keeping previous snapshot")
		return snap, loadErr
	}

	d.mu.Lock()
	if seq > d.committed {
		d.committed = seq
		d.current = snap
	}
	d.mu.Unlock()

	d.logger.WithFields(fields).Info("Dashboard loaded")
	return snap, nil
}

// derive builds the heatmap, tiles, trend chart and supply/demand panel
func (d *Dashboard) derive(snap *Snapshot, supply []models.SuburbStat) {
	bound, ok := geometry.BoundFor(snap.Stats)
	if !ok {
		bound = geometry.SuburbBound()
	}
	projector := geometry.NewProjector(bound, d.style.Heatmap)
	snap.Heatmap = projector.Heatmap(snap.Stats, d.colors)
	snap.Tiles = d.colors.Tiles(snap.Stats)
	snap.SupplyDemand = market.SupplyDemandPanel(supply)

	trendChart, err := d.trend.Scale(snap.Trends, nil)
	if err != nil {
		if !errors.Is(err, chart.ErrNoData) {
			d.logger.WithError(err).Warn("Failed to scale trend chart")
		}
		return
	}
	snap.TrendChart = trendChart
}

// live returns the committed snapshot when every view in it came from the
// service
func (d *Dashboard) live() (*Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current, d.current != nil && len(d.current.Synthetic) == 0
}

// Current returns the committed snapshot. A snapshot holding synthetic views
// is not kept: the next call loads again and the fallback is only served
// while the service is still down. Loads run detached from ctx under the
// dashboard's own timeout, and concurrent callers share one load.
func (d *Dashboard) Current(ctx context.Context) *Snapshot {
	if snap, ok := d.live(); ok {
		return snap
	}

	v, _, _ := d.loads.Do("load", func() (interface{}, error) {
		prev, ok := d.live()
		if ok {
			return prev, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.loadTimeout)
		defer cancel()
		snap, err := d.Load(loadCtx)
		if err != nil && prev != nil {
			return prev, nil
		}
		return snap, nil
	})
	return v.(*Snapshot)
}

// HandleEvent is the queue subscriber: reload requests refetch every view.
func (d *Dashboard) HandleEvent(event queue.Event) error {
	fields := logrus.Fields{
		"kind":   event.Kind,
		"job_id": event.JobID,
	}

	switch event.Kind {
	case queue.KindReload:
		d.logger.WithFields(fields).WithField("reason", event.Reason).Info("Reloading dashboard")
		ctx, cancel := context.WithTimeout(context.Background(), d.loadTimeout)
		defer cancel()
		if _, err := d.Load(ctx); err != nil {
			return err
		}
	case queue.KindJobFinished:
		d.logger.WithFields(fields).WithField("status", event.Status).Info("Scrape job finished")
	default:
		d.logger.WithFields(fields).Debug("Ignoring dashboard event")
	}
	return nil
}
