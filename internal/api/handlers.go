package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rentdash/server/internal/dashboard"
	"rentdash/server/internal/listings"
	"rentdash/server/internal/market"
	"rentdash/server/internal/models"
	"rentdash/server/internal/queue"
	"rentdash/server/internal/scraping"
)

// Views serves the committed dashboard snapshot
type Views interface {
	Current(ctx context.Context) *dashboard.Snapshot
}

// ListingSource runs listing queries. Queries sharing a view key supersede
// one another.
type ListingSource interface {
	Fetch(ctx context.Context, viewKey string, q listings.Query) (*listings.Page, error)
}

// ViewHeader identifies the table a listing query belongs to. The "view"
// query parameter is accepted when the header is absent.
const ViewHeader = "X-View-ID"

type Scraper interface {
	Trigger(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeJob, error)
	Snapshot() scraping.Snapshot
	Dismiss() error
}

type Handler struct {
	views    Views
	listings ListingSource
	scraper  Scraper
	events   scraping.Publisher
	defaults models.ScrapeRequest
	logger   *logrus.Logger
}

// ScrapeTriggerRequest is the body of POST /api/scrape. Absent fields take
// the configured defaults; an explicit empty source list is rejected.
type ScrapeTriggerRequest struct {
	Sources         []string `json:"sources"`
	MaxPages        *int     `json:"max_pages"`
	IncludeFacebook *bool    `json:"include_facebook"`
	Headless        *bool    `json:"headless"`
}

func NewHandler(views Views, listingSource ListingSource, scraper Scraper, events scraping.Publisher, defaults models.ScrapeRequest, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		views:    views,
		listings: listingSource,
		scraper:  scraper,
		events:   events,
		defaults: defaults,
		logger:   logger,
	}
}

func (h *Handler) GetOverview(c *gin.Context) {
	snap := h.views.Current(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"overview":  snap.Overview,
		"loaded_at": snap.LoadedAt,
		"synthetic": snap.FromSynthetic(dashboard.ViewOverview),
	})
}

func (h *Handler) GetHeatmap(c *gin.Context) {
	snap := h.views.Current(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"heatmap":   snap.Heatmap,
		"tiles":     snap.Tiles,
		"synthetic": snap.FromSynthetic(dashboard.ViewHeatmap),
	})
}

// GetHeatmapGeoJSON exports the placed suburbs as a GeoJSON FeatureCollection
func (h *Handler) GetHeatmapGeoJSON(c *gin.Context) {
	snap := h.views.Current(c.Request.Context())
	data, err := snap.Heatmap.FeatureCollection().MarshalJSON()
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode heatmap GeoJSON")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode heatmap"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func (h *Handler) GetTrends(c *gin.Context) {
	snap := h.views.Current(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"trends":    snap.Trends,
		"chart":     snap.TrendChart,
		"synthetic": snap.FromSynthetic(dashboard.ViewTrends),
	})
}

func (h *Handler) GetSupplyDemand(c *gin.Context) {
	snap := h.views.Current(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"data":      snap.SupplyDemand,
		"synthetic": snap.FromSynthetic(dashboard.ViewSupplyDemand),
	})
}

func (h *Handler) GetSources(c *gin.Context) {
	snap := h.views.Current(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"sources":   snap.Sources,
		"synthetic": snap.FromSynthetic(dashboard.ViewSources),
	})
}

func (h *Handler) GetFlagged(c *gin.Context) {
	snap := h.views.Current(c.Request.Context())
	summaries := make(map[string]string, len(snap.Flagged))
	for _, l := range snap.Flagged {
		if l.MarketValue != nil {
			summaries[l.ListingID] = market.Summary(l.PriceMonthlyK, l.Suburb, *l.MarketValue)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"flagged":       snap.Flagged,
		"summaries":     summaries,
		"total_flagged": snap.TotalFlagged,
		"synthetic":     snap.FromSynthetic(dashboard.ViewFlagged),
	})
}

// GetListings runs one listing query. A result overtaken by a newer query
// from the same view is answered with 409 Conflict.
func (h *Handler) GetListings(c *gin.Context) {
	q, err := listings.ParseQuery(c.Request.URL.Query())
	if err != nil {
		h.logger.WithError(err).Debug("Rejected listing query")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewKey := c.GetHeader(ViewHeader)
	if viewKey == "" {
		viewKey = c.Query("view")
	}

	page, err := h.listings.Fetch(c.Request.Context(), viewKey, q)
	if errors.Is(err, listings.ErrStale) {
		resp := gin.H{"error": err.Error()}
		if page != nil {
			resp["generation"] = page.Generation
		}
		c.JSON(http.StatusConflict, resp)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listings"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetScrape(c *gin.Context) {
	c.JSON(http.StatusOK, h.scraper.Snapshot())
}

// TriggerScrape starts a scrape job with the request merged over the
// configured defaults.
func (h *Handler) TriggerScrape(c *gin.Context) {
	var body ScrapeTriggerRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WithError(err).Error("Failed to parse scrape request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	job, err := h.scraper.Trigger(c.Request.Context(), h.scrapeRequest(body))
	if err != nil {
		c.JSON(scrapeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) scrapeRequest(body ScrapeTriggerRequest) models.ScrapeRequest {
	req := h.defaults
	req.Sources = append([]string(nil), h.defaults.Sources...)
	if body.Sources != nil {
		req.Sources = body.Sources
	}
	if body.MaxPages != nil {
		req.MaxPages = *body.MaxPages
	}
	if body.IncludeFacebook != nil {
		req.IncludeFacebook = *body.IncludeFacebook
	}
	if body.Headless != nil {
		req.Headless = *body.Headless
	}
	return req
}

func scrapeErrorStatus(err error) int {
	switch {
	case errors.Is(err, scraping.ErrNoSources):
		return http.StatusBadRequest
	case errors.Is(err, scraping.ErrJobActive):
		return http.StatusConflict
	case errors.Is(err, scraping.ErrTriggerFailed):
		return http.StatusBadGateway
	case errors.Is(err, scraping.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) DismissScrape(c *gin.Context) {
	if err := h.scraper.Dismiss(); err != nil {
		c.JSON(scrapeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.scraper.Snapshot())
}

// Reload queues a refetch of every dashboard view
func (h *Handler) Reload(c *gin.Context) {
	err := h.events.Push(queue.Event{Kind: queue.KindReload, Reason: "requested"})
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.WithError(err).Error("Failed to queue reload")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "reload queued"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
