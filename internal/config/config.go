package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Scraper ScraperConfig
	Browser BrowserConfig
	Tender  TenderConfig
	Journal JournalConfig
	Logging LoggingConfig
}

type ScraperConfig struct {
	VisitDelayMin  time.Duration
	VisitDelayMax  time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	WaitTimeout    time.Duration
	MaxCandidates  int
	BusinessMarkup float64
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProfileRoot    string
	CookiesPath    string
}

// TenderConfig carries the merge-engine tunables. Thresholds, colors and the
// highlight scan window are template-specific, so each stays overridable.
type TenderConfig struct {
	CheckpointEvery   int
	ModerateThreshold float64
	FarThreshold      float64
	LinkScanWindow    int
	LinkOffset        int
	HighlightColors   []string
	HigherColor       string
	FarColor          string
	ModerateColor     string
	NeutralColor      string
}

type JournalConfig struct {
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Scraper: ScraperConfig{
			VisitDelayMin:  getDurationOrDefault("SCRAPER_VISIT_DELAY_MIN", 1*time.Second),
			VisitDelayMax:  getDurationOrDefault("SCRAPER_VISIT_DELAY_MAX", 3*time.Second),
			MaxRetries:     getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:     getDurationOrDefault("SCRAPER_RETRY_DELAY", 2*time.Second),
			WaitTimeout:    getDurationOrDefault("SCRAPER_WAIT_TIMEOUT", 10*time.Second),
			MaxCandidates:  getIntOrDefault("SCRAPER_MAX_CANDIDATES", 5),
			BusinessMarkup: getFloatOrDefault("TENDER_BUSINESS_MARKUP", 1.22),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			ProfileRoot:    getEnvOrDefault("BROWSER_PROFILE_ROOT", os.TempDir()),
			CookiesPath:    getEnvOrDefault("BROWSER_COOKIES_PATH", "cookies.json"),
		},
		Tender: TenderConfig{
			CheckpointEvery:   getIntOrDefault("TENDER_CHECKPOINT_EVERY", 5),
			ModerateThreshold: getFloatOrDefault("TENDER_MODERATE_THRESHOLD", 0.01),
			FarThreshold:      getFloatOrDefault("TENDER_FAR_THRESHOLD", 0.10),
			LinkScanWindow:    getIntOrDefault("TENDER_LINK_SCAN_WINDOW", 13),
			LinkOffset:        getIntOrDefault("TENDER_LINK_OFFSET", 3),
			HighlightColors:   getStringSliceOrDefault("TENDER_HIGHLIGHT_COLORS", []string{"FFFF00", "FFC000"}),
			HigherColor:       getEnvOrDefault("TENDER_HIGHER_COLOR", "FFC7CE"),
			FarColor:          getEnvOrDefault("TENDER_FAR_COLOR", "C6EFCE"),
			ModerateColor:     getEnvOrDefault("TENDER_MODERATE_COLOR", "FFEB9C"),
			NeutralColor:      getEnvOrDefault("TENDER_NEUTRAL_COLOR", "FFFFFF"),
		},
		Journal: JournalConfig{
			Path: getEnvOrDefault("JOURNAL_PATH", "tenderscan.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.VisitDelayMin > c.Scraper.VisitDelayMax {
		return fmt.Errorf("SCRAPER_VISIT_DELAY_MIN cannot be greater than SCRAPER_VISIT_DELAY_MAX")
	}

	if c.Scraper.BusinessMarkup <= 0 {
		return fmt.Errorf("TENDER_BUSINESS_MARKUP must be positive")
	}

	if c.Tender.ModerateThreshold <= 0 || c.Tender.FarThreshold <= c.Tender.ModerateThreshold {
		return fmt.Errorf("delta thresholds must satisfy 0 < moderate < far")
	}

	if c.Tender.CheckpointEvery < 0 {
		return fmt.Errorf("TENDER_CHECKPOINT_EVERY cannot be negative")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
