package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Optional postgres for durable session history, cache and feedback.
	// When empty the service runs on file-backed stores.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"mantra-artifacts"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Catalog file overriding the embedded mood catalog.
	CatalogPath string `envconfig:"CATALOG_PATH"`

	// Retrieval tuning. Duration windows are seconds.
	SourcePriority    []string      `envconfig:"SOURCE_PRIORITY" default:"curated,archive,scrape,openai"`
	SourceAttempts    int           `envconfig:"SOURCE_ATTEMPTS" default:"3"`
	AttemptBudget     int           `envconfig:"ATTEMPT_BUDGET" default:"5"`
	RecentLimit       int           `envconfig:"RECENT_LIMIT" default:"5"`
	SourceTimeout     time.Duration `envconfig:"SOURCE_TIMEOUT" default:"15s"`
	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	ConcurrentSources bool          `envconfig:"CONCURRENT_SOURCES" default:"false"`

	IdealMinSeconds    int  `envconfig:"IDEAL_MIN_SECONDS" default:"480"`
	IdealMaxSeconds    int  `envconfig:"IDEAL_MAX_SECONDS" default:"720"`
	FallbackMinSeconds int  `envconfig:"FALLBACK_MIN_SECONDS" default:"300"`
	FallbackMaxSeconds int  `envconfig:"FALLBACK_MAX_SECONDS" default:"900"`
	MinBitrateKbps     int  `envconfig:"MIN_BITRATE_KBPS" default:"64"`
	MinSampleRateHz    int  `envconfig:"MIN_SAMPLE_RATE_HZ" default:"22050"`
	SoftPass           bool `envconfig:"SOFT_PASS" default:"true"`

	// Cache warmer.
	WarmInterval time.Duration `envconfig:"WARM_INTERVAL" default:"0"`

	ScrapeBaseURL string `envconfig:"SCRAPE_BASE_URL" default:"https://pixabay.com/music/search/"`
	ArchiveAPIURL string `envconfig:"ARCHIVE_API_URL" default:"https://archive.org/advancedsearch.php"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MANTRA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects configurations the orchestrator cannot run with. These
// are the only fatal errors in the system; everything downstream degrades.
func (c *Config) Validate() error {
	if len(c.SourcePriority) == 0 {
		return fmt.Errorf("source priority list must not be empty")
	}
	for _, s := range c.SourcePriority {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("source priority list contains an empty entry")
		}
	}
	if c.AttemptBudget <= 0 {
		return fmt.Errorf("attempt budget must be positive")
	}
	if c.SourceAttempts <= 0 {
		return fmt.Errorf("source attempts must be positive")
	}
	if c.IdealMinSeconds >= c.IdealMaxSeconds {
		return fmt.Errorf("ideal duration window is empty")
	}
	if c.FallbackMinSeconds > c.IdealMinSeconds || c.FallbackMaxSeconds < c.IdealMaxSeconds {
		return fmt.Errorf("fallback duration window must contain the ideal window")
	}
	return nil
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
