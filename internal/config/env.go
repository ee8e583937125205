// Package config reads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Worker modes.
const (
	WorkerProcess = "process"
	WorkerInProc  = "inproc"
)

// Listing loaders.
const (
	BrowserHTTP   = "http"
	BrowserChrome = "chrome"
)

type Config struct {
	Addr           string
	SettingsFile   string
	SettingsDSN    string
	Origin         string
	ListingURL     string
	Worker         string
	Engine         string
	Browser        string
	ChromePath     string
	NoSandbox      bool
	AllowedOrigins []string
	LogLevel       logrus.Level
}

// Load reads .env from the working directory, if present, then the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:           getEnv("TDSUM_ADDR", "127.0.0.1:8080"),
		SettingsFile:   getEnv("TDSUM_SETTINGS_FILE", "tdsum-settings.yaml"),
		SettingsDSN:    getEnv("TDSUM_SETTINGS_DSN", ""),
		Origin:         getEnv("TDSUM_ORIGIN", "https://www.release.tdnet.info/inbs/"),
		ListingURL:     getEnv("TDSUM_LISTING_URL", "https://www.release.tdnet.info/inbs/I_main_00.html"),
		Worker:         getEnv("TDSUM_WORKER", WorkerProcess),
		Engine:         getEnv("TDSUM_ENGINE", "native"),
		Browser:        getEnv("TDSUM_BROWSER", BrowserHTTP),
		ChromePath:     getEnv("TDSUM_CHROME_PATH", ""),
		NoSandbox:      getEnvBool("TDSUM_NO_SANDBOX", false),
		AllowedOrigins: getEnvList("TDSUM_ALLOWED_ORIGINS", []string{"https://www.release.tdnet.info"}),
	}

	level, err := logrus.ParseLevel(getEnv("TDSUM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("config: TDSUM_LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	switch cfg.Worker {
	case WorkerProcess, WorkerInProc:
	default:
		return nil, fmt.Errorf("config: TDSUM_WORKER must be %q or %q, got %q", WorkerProcess, WorkerInProc, cfg.Worker)
	}
	switch cfg.Browser {
	case BrowserHTTP, BrowserChrome:
	default:
		return nil, fmt.Errorf("config: TDSUM_BROWSER must be %q or %q, got %q", BrowserHTTP, BrowserChrome, cfg.Browser)
	}
	return cfg, nil
}

// Logger returns a logrus logger writing to stderr at the configured level.
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(c.LogLevel)
	return l
}

// Helper to read environment variables with a default fallback. Empty
// values count as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logrus.Warnf("%s=%q is not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
