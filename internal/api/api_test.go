package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rentdash/server/internal/dashboard"
	"rentdash/server/internal/geometry"
	"rentdash/server/internal/listings"
	"rentdash/server/internal/models"
	"rentdash/server/internal/queue"
	"rentdash/server/internal/scraping"
)

type fakeViews struct {
	snap *dashboard.Snapshot
}

func (f *fakeViews) Current(ctx context.Context) *dashboard.Snapshot {
	return f.snap
}

type mockListings struct {
	mock.Mock
}

func (m *mockListings) Fetch(ctx context.Context, viewKey string, q listings.Query) (*listings.Page, error) {
	args := m.Called(ctx, viewKey, q)
	page, _ := args.Get(0).(*listings.Page)
	return page, args.Error(1)
}

type fakeScraper struct {
	triggerErr error
	dismissErr error
	got        *models.ScrapeRequest
	snap       scraping.Snapshot
}

func (f *fakeScraper) Trigger(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeJob, error) {
	f.got = &req
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	return &models.ScrapeJob{JobID: "a1b2c3d4", Status: models.JobQueued, Sources: req.Sources}, nil
}

func (f *fakeScraper) Snapshot() scraping.Snapshot {
	return f.snap
}

func (f *fakeScraper) Dismiss() error {
	return f.dismissErr
}

type fakeEvents struct {
	err    error
	events []queue.Event
}

func (f *fakeEvents) Push(event queue.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type harness struct {
	router   *gin.Engine
	listings *mockListings
	scraper  *fakeScraper
	events   *fakeEvents
}

func snapshot() *dashboard.Snapshot {
	return &dashboard.Snapshot{
		Overview: models.Overview{TotalListings: 240, MiddlemanFlags: 7},
		Heatmap: geometry.Heatmap{
			Width:  600,
			Height: 400,
			Bubbles: []geometry.Bubble{
				{Suburb: "Waigani", AvgPrice: 4470, Listings: 40, Lat: -9.4298, Lng: 147.1812, Radius: 30, Color: "#f87171"},
			},
		},
		Flagged: []models.Listing{{
			ListingID:     "x1",
			Suburb:        "Boroko",
			PriceMonthlyK: 5000,
			MarketValue:   &models.MarketValue{Label: models.LabelOverpriced, PctVsAvg: 56.25, BenchmarkAvg: 3200},
		}},
		TotalFlagged: 9,
		Synthetic:    map[string]bool{dashboard.ViewHeatmap: true},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &harness{
		listings: &mockListings{},
		scraper:  &fakeScraper{snap: scraping.Snapshot{State: scraping.StateIdle}},
		events:   &fakeEvents{},
	}
	defaults := models.ScrapeRequest{Sources: []string{"hausples", "professionals"}, MaxPages: 3, Headless: true}
	handler := NewHandler(&fakeViews{snap: snapshot()}, h.listings, h.scraper, h.events, defaults, logger)

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	router, err := NewRouter(handler, metricsHandler, []string{"http://localhost:5173"})
	require.NoError(t, err)
	h.router = router
	return h
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestViews(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		path      string
		key       string
		synthetic bool
	}{
		{"/api/overview", "overview", false},
		{"/api/heatmap", "heatmap", true},
		{"/api/trends", "trends", false},
		{"/api/supply-demand", "data", false},
		{"/api/sources", "sources", false},
		{"/api/flagged", "flagged", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := h.do(http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, w.Code)
			body := decode(t, w)
			assert.Contains(t, body, tt.key)
			assert.Equal(t, tt.synthetic, body["synthetic"])
		})
	}
}

func TestFlagged_ReportsTotal(t *testing.T) {
	h := newHarness(t)
	body := decode(t, h.do(http.MethodGet, "/api/flagged", ""))
	assert.Equal(t, 9.0, body["total_flagged"])
	summaries, ok := body["summaries"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, summaries["x1"], "SEVERELY OVERPRICED")
}

func TestHeatmapGeoJSON(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/heatmap.geojson", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Waigani", fc.Features[0].Properties.MustString("suburb"))
	assert.Equal(t, "#f87171", fc.Features[0].Properties.MustString("color"))
}

func TestListings(t *testing.T) {
	h := newHarness(t)
	page := &listings.Page{Listings: []models.Listing{{ListingID: "a"}}, Total: 1, Pages: 1, Page: 2, Limit: 20, Visible: 1}
	h.listings.On("Fetch", mock.Anything, "", mock.MatchedBy(func(q listings.Query) bool {
		return q.Filter.Suburb == "Waigani" && q.Page == 2 && q.Sort == listings.SortPrice
	})).Return(page, nil).Once()

	w := h.do(http.MethodGet, "/api/listings?suburb=Waigani&page=2&sort=price_monthly_k", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 1.0, body["total"])
	h.listings.AssertExpectations(t)
}

func TestListings_InvalidQuery(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/listings?sort=price", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	h.listings.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestListings_ViewKey(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{name: "header", target: "/api/listings?suburb=Boroko", header: "table-a", want: "table-a"},
		{name: "query parameter", target: "/api/listings?suburb=Boroko&view=table-b", want: "table-b"},
		{name: "header wins", target: "/api/listings?view=table-b", header: "table-a", want: "table-a"},
		{name: "untagged", target: "/api/listings", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.listings.On("Fetch", mock.Anything, tt.want, mock.Anything).
				Return(&listings.Page{Total: 1}, nil).Once()

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(ViewHeader, tt.header)
			}
			w := httptest.NewRecorder()
			h.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			h.listings.AssertExpectations(t)
		})
	}
}

func TestListings_SupersededIsConflict(t *testing.T) {
	h := newHarness(t)
	h.listings.On("Fetch", mock.Anything, "table-a", mock.Anything).
		Return(&listings.Page{Listings: []models.Listing{{ListingID: "old"}}, Stale: true, Generation: 3}, listings.ErrStale).Once()

	w := h.do(http.MethodGet, "/api/listings?view=table-a", "")
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, 3.0, body["generation"])
	assert.NotContains(t, body, "listings")
}

func TestCORS_AllowsViewHeader(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/listings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", ViewHeader)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), http.CanonicalHeaderKey(ViewHeader))
}

func TestTriggerScrape_Defaults(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/scrape", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, h.scraper.got)
	assert.Equal(t, []string{"hausples", "professionals"}, h.scraper.got.Sources)
	assert.Equal(t, 3, h.scraper.got.MaxPages)
	assert.True(t, h.scraper.got.Headless)
	assert.Equal(t, "a1b2c3d4", decode(t, w)["job_id"])
}

func TestTriggerScrape_Overrides(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/scrape", `{"sources":["hausples"],"max_pages":1,"headless":false,"include_facebook":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ScrapeRequest{
		Sources:         []string{"hausples"},
		MaxPages:        1,
		IncludeFacebook: true,
		Headless:        false,
	}, *h.scraper.got)
}

func TestTriggerScrape_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no sources", scraping.ErrNoSources, http.StatusBadRequest},
		{"active", scraping.ErrJobActive, http.StatusConflict},
		{"upstream", scraping.ErrTriggerFailed, http.StatusBadGateway},
		{"closed", scraping.ErrClosed, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.scraper.triggerErr = tt.err
			w := h.do(http.MethodPost, "/api/scrape", `{"sources":[]}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Empty(t, h.scraper.got.Sources)
		})
	}
}

func TestTriggerScrape_MalformedBody(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/scrape", `{"sources":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, h.scraper.got)
}

func TestDismissScrape(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/scrape/dismiss", "").Code)

	h.scraper.dismissErr = scraping.ErrJobActive
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/scrape/dismiss", "").Code)
}

func TestReload(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/reload", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, queue.KindReload, h.events.events[0].Kind)

	h.events.err = queue.ErrQueueFull
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/api/reload", "").Code)

	h.events.err = queue.ErrQueueClosed
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodPost, "/api/reload", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)

	w := h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}

func TestCORS(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRouter_RejectsBadOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(&fakeViews{snap: snapshot()}, &mockListings{}, &fakeScraper{}, &fakeEvents{}, models.ScrapeRequest{}, nil)
	_, err := NewRouter(handler, nil, []string{"localhost:5173"})
	assert.Error(t, err)
}
