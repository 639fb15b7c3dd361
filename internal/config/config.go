// Package config centralizes the environment-derived settings the service
// consumes. The pipeline never reads the environment itself; it receives
// this struct at construction.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Default values for settings that are optional in the environment.
const (
	DefaultTargetURL      = "https://www.dane.gov.co/index.php/estadisticas-por-tema/precios-y-costos"
	DefaultDownloadDir    = "downloads"
	DefaultAllowedOrigins = "http://localhost:3000"

	defaultSectionWait       = 15 * time.Second
	defaultNavigationTimeout = 30 * time.Second
	defaultDownloadTimeout   = 60 * time.Second
	defaultSMTPPort          = 587
)

// SMTP holds the outbound mail transport settings.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Config is the full configuration surface of the service.
type Config struct {
	// TargetURL is the DANE page the retrieval agent navigates to.
	TargetURL string

	// APIKey is the shared secret expected in the api_key_header header.
	APIKey string

	// AllowedOrigins are the CORS origins permitted to call the API.
	AllowedOrigins []string

	// DownloadDir is where the workbook, screenshot and report are written.
	// All artifact paths are fixed within it and overwritten each run.
	DownloadDir string

	// SectionWait bounds how long the agent waits for the target section
	// to appear after navigation.
	SectionWait time.Duration

	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration

	// DownloadTimeout bounds the HTTP GET for the spreadsheet itself.
	DownloadTimeout time.Duration

	// Recipients receive the report when the caller does not name one.
	Recipients []string

	SMTP SMTP

	// ArchiveBucket, when set, enables archiving run artifacts to GCS.
	ArchiveBucket string

	// BigQueryProject, when set, enables recording run history in BigQuery.
	BigQueryProject string
}

// FromEnv builds a Config from the process environment, applying defaults
// for everything that is safe to default. Credentials have no defaults.
func FromEnv() Config {
	return Config{
		TargetURL:         getenv("URL_PAGE_DANE", DefaultTargetURL),
		APIKey:            os.Getenv("API_KEY_HEADER"),
		AllowedOrigins:    splitList(getenv("CORS_ALLOWED_ORIGINS", DefaultAllowedOrigins)),
		DownloadDir:       getenv("DOWNLOAD_DIR", DefaultDownloadDir),
		SectionWait:       getenvDuration("SECTION_WAIT", defaultSectionWait),
		NavigationTimeout: getenvDuration("NAVIGATION_TIMEOUT", defaultNavigationTimeout),
		DownloadTimeout:   getenvDuration("DOWNLOAD_TIMEOUT", defaultDownloadTimeout),
		Recipients:        splitList(os.Getenv("REPORT_RECIPIENTS")),
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenvInt("SMTP_PORT", defaultSMTPPort),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		ArchiveBucket:   os.Getenv("GCS_BUCKET"),
		BigQueryProject: os.Getenv("BQ_PROJECT"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
