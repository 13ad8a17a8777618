package api

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine with CORS for the given origins. "*"
// allows any origin.
func NewRouter(handler *Handler, metricsHandler http.Handler, allowedOrigins []string) (*gin.Engine, error) {
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", ViewHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	if err := corsConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CORS origins: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(handler.logger), cors.New(corsConfig))
	SetupRoutes(router, handler, metricsHandler)
	return router, nil
}

func SetupRoutes(router *gin.Engine, handler *Handler, metricsHandler http.Handler) {
	api := router.Group("/api")
	{
		api.GET("/overview", handler.GetOverview)
		api.GET("/heatmap", handler.GetHeatmap)
		api.GET("/heatmap.geojson", handler.GetHeatmapGeoJSON)
		api.GET("/trends", handler.GetTrends)
		api.GET("/supply-demand", handler.GetSupplyDemand)
		api.GET("/sources", handler.GetSources)
		api.GET("/flagged", handler.GetFlagged)
		api.GET("/listings", handler.GetListings)
		api.GET("/scrape", handler.GetScrape)
		api.POST("/scrape", handler.TriggerScrape)
		api.POST("/scrape/dismiss", handler.DismissScrape)
		api.POST("/reload", handler.Reload)
	}

	router.GET("/healthz", handler.Health)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
