package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rentdash/server/config"
	"rentdash/server/internal/api"
	"rentdash/server/internal/client"
	"rentdash/server/internal/dashboard"
	"rentdash/server/internal/listings"
	"rentdash/server/internal/market"
	"rentdash/server/internal/metrics"
	"rentdash/server/internal/models"
	"rentdash/server/internal/queue"
	"rentdash/server/internal/scraping"
	"rentdash/server/internal/synthetic"
)

const (
	Version = "0.1.0"
	appName = "rentdash"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Port Moresby rental listings dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(serveCmd(&logLevel), scrapeCmd(&logLevel), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}

// setup loads the configuration and builds the logger shared by every command
func setup(logLevel string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)
	return cfg, logger, nil
}

func serveCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*logLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	style := config.DefaultStyle()
	if cfg.StyleFile != "" {
		var err error
		if style, err = config.LoadStyle(cfg.StyleFile); err != nil {
			return fmt.Errorf("load style: %w", err)
		}
		logger.WithField("path", cfg.StyleFile).Info("Loaded style file")
	}

	m := metrics.New()
	upstream := client.New(cfg.Upstream.BaseURL, cfg.Upstream.RequestTimeout, logger, m)
	generator := synthetic.NewGenerator(cfg.Synthetic.Seed, cfg.Synthetic.Listings, time.Now())

	dash, err := dashboard.New(upstream, generator, style, logger, m)
	if err != nil {
		return fmt.Errorf("create dashboard: %w", err)
	}

	events := queue.NewEventQueue(16, logger)
	events.Subscribe(dash.HandleEvent)
	events.Start()
	defer events.Close()

	controller := scraping.NewController(upstream, events, scraping.Options{
		PollInterval: cfg.Scrape.PollInterval,
	}, logger, m)
	defer controller.Close()

	builder := listings.NewBuilder(upstream, dash.SyntheticListings, market.DefaultBenchmarks(), logger, m)
	handler := api.NewHandler(dash, builder, controller, events, scrapeDefaults(cfg), logger)

	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(handler, m.Handler(), cfg.Server.AllowedOrigins)
	if err != nil {
		return err
	}

	// warm the first snapshot
	go dash.Current(ctx)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"upstream": upstream.BaseURL(),
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server gracefully stopped")
	return nil
}

func scrapeDefaults(cfg *config.Config) models.ScrapeRequest {
	return models.ScrapeRequest{
		Sources:         cfg.Scrape.DefaultSources,
		MaxPages:        cfg.Scrape.MaxPages,
		IncludeFacebook: cfg.Scrape.IncludeFacebook,
		Headless:        cfg.Scrape.Headless,
	}
}

func scrapeCmd(logLevel *string) *cobra.Command {
	var (
		sources         []string
		maxPages        int
		includeFacebook bool
		headless        bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Trigger a scrape job and follow it until it finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*logLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req := scrapeDefaults(cfg)
			flags := cmd.Flags()
			if flags.Changed("sources") {
				req.Sources = sources
			}
			if flags.Changed("max-pages") {
				req.MaxPages = maxPages
			}
			if flags.Changed("facebook") {
				req.IncludeFacebook = includeFacebook
			}
			if flags.Changed("headless") {
				req.Headless = headless
			}
			return followScrape(ctx, cmd, cfg, logger, req)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", nil, "Sources to scrape (default from RENTDASH_SCRAPE_SOURCES)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum pages per source")
	cmd.Flags().BoolVar(&includeFacebook, "facebook", false, "Include Facebook Marketplace")
	cmd.Flags().BoolVar(&headless, "headless", true, "Run the browser headless")
	return cmd
}

func followScrape(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger, req models.ScrapeRequest) error {
	upstream := client.New(cfg.Upstream.BaseURL, cfg.Upstream.RequestTimeout, logger, nil)
	controller := scraping.NewController(upstream, nil, scraping.Options{
		PollInterval: cfg.Scrape.PollInterval,
	}, logger, nil)
	defer controller.Close()

	out := cmd.OutOrStdout()
	done := make(chan scraping.Snapshot, 1)
	var once sync.Once
	controller.Subscribe(func(s scraping.Snapshot) {
		if s.Job != nil {
			fmt.Fprintf(out, "[%s] %-8s %3d%%  %s  collected=%d\n",
				s.Job.JobID, s.Job.Status, s.Job.Progress, s.Job.CurrentSource, s.Job.Collected)
		}
		if s.State == scraping.StateComplete || s.State == scraping.StateError {
			once.Do(func() { done <- s })
		}
	})

	fmt.Fprintf(out, "Triggering scrape of %s\n", strings.Join(req.Sources, ", "))
	if _, err := controller.Trigger(ctx, req); err != nil {
		return err
	}

	select {
	case s := <-done:
		if s.State == scraping.StateError {
			return controller.LastError()
		}
		fmt.Fprintf(out, "Scrape complete: %d listings collected\n", s.Job.Collected)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
