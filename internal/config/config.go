// Package config resolves application configuration once at startup.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Google holds the calendar provider credentials and endpoints.
type Google struct {
	ClientID          string
	ClientSecret      string
	TokenURL          string
	CalendarAPIURL    string
	DefaultCalendarID string
}

// Queue holds the sync task queue settings.
type Queue struct {
	Name         string
	Workers      int
	PollInterval time.Duration
	StaleAfter   time.Duration
	RetainDone   time.Duration
}

// Config is the resolved application configuration.
type Config struct {
	Addr             string
	DataDir          string
	StaticDir        string
	Timezone         *time.Location
	Google           Google
	Queue            Queue
	CorporateDomains []string
	LogLevel         log.Level
	LogFormat        string

	// HealthCheck asks the binary to probe a running server and exit.
	HealthCheck bool
}

// Load reads an optional .env file, then the environment, then command-line
// flags from args (without the program name). Flags win over the environment.
func Load(args []string) (*Config, error) {
	// .env is optional outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:      getEnv("HTTP_ADDR", ":8099"),
		DataDir:   getEnv("DATA_DIR", "/data"),
		StaticDir: getEnv("STATIC_DIR", "./static"),
		Google: Google{
			ClientID:          os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret:      os.Getenv("GOOGLE_CLIENT_SECRET"),
			TokenURL:          getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
			CalendarAPIURL:    getEnv("GOOGLE_CALENDAR_API_URL", "https://www.googleapis.com/calendar/v3/"),
			DefaultCalendarID: getEnv("GOOGLE_CALENDAR_ID", "primary"),
		},
		CorporateDomains: normalizeDomains(strings.Split(os.Getenv("CORPORATE_DOMAINS"), ",")),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Data directory for SQLite database")
	fs.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Directory for static frontend files")
	fs.BoolVar(&cfg.HealthCheck, "health-check", false, "Run health check and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	tz, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	level, err := log.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	cfg.Queue.Name = getEnv("GOOGLE_QUEUE", "default")
	if cfg.Queue.Workers, err = getEnvInt("SYNC_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.Queue.PollInterval, err = getEnvDuration("SYNC_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Queue.StaleAfter, err = getEnvDuration("SYNC_STALE_AFTER", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Queue.RetainDone, err = getEnvDuration("SYNC_RETAIN_DONE", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Queue.Workers < 1 {
		cfg.Queue.Workers = 1
	}

	return cfg, nil
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "meetings.db")
}

// GoogleConfigured reports whether OAuth client credentials are present.
func (c *Config) GoogleConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// CalendarID returns the user's calendar, falling back to the configured default.
func (c *Config) CalendarID(userCalendarID string) string {
	if userCalendarID != "" {
		return userCalendarID
	}
	return c.Google.DefaultCalendarID
}

// IsCorporateEmail reports whether email belongs to an approved domain.
// An empty domain list approves every address.
func (c *Config) IsCorporateEmail(email string) bool {
	if len(c.CorporateDomains) == 0 {
		return true
	}

	email = strings.ToLower(strings.TrimSpace(email))
	domain := email
	if i := strings.LastIndex(email, "@"); i >= 0 {
		domain = email[i+1:]
	}

	for _, d := range c.CorporateDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// ConfigureLogging applies the level and format to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	log.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func normalizeDomains(raw []string) []string {
	seen := make(map[string]bool)
	var domains []string
	for _, d := range raw {
		d = strings.TrimSpace(strings.TrimLeft(strings.ToLower(strings.TrimSpace(d)), "@"))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	return domains
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
