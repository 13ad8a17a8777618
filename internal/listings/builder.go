package listings

import (
	"context"
	"errors"
	"net/url"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"rentdash/server/internal/client"
	"rentdash/server/internal/market"
	"rentdash/server/internal/metrics"
	"rentdash/server/internal/models"
)

// ErrStale is returned with a page whose query was superseded by a newer
// query from the same view before it completed.
var ErrStale = errors.New("listing result superseded")

// Page is one page of listings. From the service, Total and Pages describe
// the service's own filtering and Visible counts the listings left after the
// market-value filter. From the synthetic fallback, all three agree with the
// local filtering.
type Page struct {
	Listings   []models.Listing `json:"listings"`
	Total      int              `json:"total"`
	Pages      int              `json:"pages"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Visible    int              `json:"visible"`
	Synthetic  bool             `json:"synthetic"`
	Generation uint64           `json:"generation"`
	Stale      bool             `json:"stale,omitempty"`
}

// Fetcher is the listings endpoint of the service
type Fetcher interface {
	Listings(ctx context.Context, query url.Values) client.Result[models.ListingPage]
}

// Builder runs listing queries. Every Fetch takes a generation number from
// one sequence; queries tagged with the same view key are ordered by it and
// only the latest in flight for a view is accepted. Untagged queries are
// never superseded.
type Builder struct {
	fetcher    Fetcher
	fallback   func() []models.Listing
	benchmarks *market.Benchmarks
	logger     *logrus.Logger
	metrics    *metrics.Metrics

	sequence atomic.Uint64
	mu       sync.Mutex
	views    map[string]*view
}

// view tracks the queries in flight for one view key
type view struct {
	latest   uint64
	inflight int
}

// NewBuilder creates a builder. fallback supplies the synthetic listings,
// already carrying market values.
func NewBuilder(fetcher Fetcher, fallback func() []models.Listing, benchmarks *market.Benchmarks, logger *logrus.Logger, m *metrics.Metrics) *Builder {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if benchmarks == nil {
		benchmarks = market.DefaultBenchmarks()
	}

	return &Builder{
		fetcher:    fetcher,
		fallback:   fallback,
		benchmarks: benchmarks,
		logger:     logger,
		metrics:    m,
		views:      make(map[string]*view),
	}
}

// Fetch runs q for the view identified by viewKey against the service, or
// locally on the synthetic dataset when the service fails. A page overtaken
// by a later Fetch for the same view is returned marked stale together with
// ErrStale.
func (b *Builder) Fetch(ctx context.Context, viewKey string, q Query) (*Page, error) {
	q = q.Normalize()
	gen := b.begin(viewKey)

	var page Page
	if data, err := b.fetcher.Listings(ctx, q.Params()).Get(); err != nil {
		b.logger.WithError(err).WithField("generation", gen).Warn("Listings unavailable, using synthetic data")
		b.metrics.Fallback("listings")
		page = Local(b.fallback(), q)
		page.Synthetic = true
	} else {
		page = b.fromService(data, q)
	}
	page.Generation = gen

	if latest, superseded := b.finish(viewKey, gen); superseded {
		page.Stale = true
		b.metrics.StaleResult()
		b.logger.WithFields(logrus.Fields{
			"view":       viewKey,
			"generation": gen,
			"latest":     latest,
		}).Debug("Discarding superseded listings")
		return &page, ErrStale
	}
	return &page, nil
}

func (b *Builder) begin(viewKey string) uint64 {
	if viewKey == "" {
		return b.sequence.Add(1)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.sequence.Add(1)
	v, ok := b.views[viewKey]
	if !ok {
		v = &view{}
		b.views[viewKey] = v
	}
	v.latest = gen
	v.inflight++
	return gen
}

// finish reports whether gen was overtaken. A view is forgotten once
// nothing is in flight for it.
func (b *Builder) finish(viewKey string, gen uint64) (latest uint64, superseded bool) {
	if viewKey == "" {
		return gen, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.views[viewKey]
	v.inflight--
	if v.inflight == 0 {
		delete(b.views, viewKey)
	}
	return v.latest, gen != v.latest
}

// fromService scores listings the service sent without a market value and
// applies the market-value filter.
func (b *Builder) fromService(data models.ListingPage, q Query) Page {
	visible := make([]models.Listing, 0, len(data.Listings))
	for _, l := range data.Listings {
		if l.MarketValue == nil && l.PriceMonthlyK > 0 && l.Suburb != "" {
			if mv, err := market.Classify(l.PriceMonthlyK, b.benchmarks.For(&l)); err == nil {
				l.MarketValue = &mv
			}
		}
		if q.Filter.AllowsMarketValue(&l) {
			visible = append(visible, l)
		}
	}

	pages := data.Pages
	if pages < 1 {
		pages = pageCount(data.Total, q.PageSize)
	}
	return Page{
		Listings: visible,
		Total:    data.Total,
		Pages:    pages,
		Page:     q.Page,
		Limit:    q.PageSize,
		Visible:  len(visible),
	}
}
