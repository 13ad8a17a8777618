package config

import (
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Upstream listings-and-analytics service
	Upstream struct {
		// Base URL of the listings, analytics and job-control endpoints
		BaseURL string `env:"RENTDASH_API_BASE_URL" envDefault:"http://localhost:8000/api"`

		// Per-request timeout for every upstream call
		RequestTimeout time.Duration `env:"RENTDASH_REQUEST_TIMEOUT" envDefault:"10s"`
	}

	// Server configuration for the presentation endpoints
	Server struct {
		Port string `env:"RENTDASH_PORT" envDefault:"5250"`

		// Allowed CORS origins for the dashboard front end
		AllowedOrigins []string `env:"RENTDASH_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	// Scrape job monitoring
	Scrape struct {
		// Interval between status polls of an accepted job
		PollInterval time.Duration `env:"RENTDASH_POLL_INTERVAL" envDefault:"1200ms"`

		// Defaults used when a trigger request leaves them out
		DefaultSources  []string `env:"RENTDASH_SCRAPE_SOURCES" envSeparator:"," envDefault:"hausples,professionals,agencies"`
		MaxPages        int      `env:"RENTDASH_SCRAPE_MAX_PAGES" envDefault:"3"`
		IncludeFacebook bool     `env:"RENTDASH_SCRAPE_INCLUDE_FACEBOOK" envDefault:"false"`
		Headless        bool     `env:"RENTDASH_SCRAPE_HEADLESS" envDefault:"true"`
	}

	// Synthetic fallback data
	Synthetic struct {
		Seed     int64 `env:"RENTDASH_SYNTHETIC_SEED" envDefault:"42"`
		Listings int   `env:"RENTDASH_SYNTHETIC_LISTINGS" envDefault:"240"`
	}

	// Optional YAML file overriding the default visual style
	StyleFile string `env:"RENTDASH_STYLE_FILE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads an optional .env file and parses the environment.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
