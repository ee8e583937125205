package tdnet

import "time"

// browserConfig holds internal configuration for a Browser.
type browserConfig struct {
	chromePath   string
	timeout      time.Duration
	noSandbox    bool
	autoDownload bool
	headless     string
}

func defaultBrowserConfig() browserConfig {
	return browserConfig{
		timeout:  30 * time.Second,
		headless: "new",
	}
}

// BrowserOption configures a [Browser].
type BrowserOption func(*browserConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the standard locations are searched.
func WithChromePath(path string) BrowserOption {
	return func(c *browserConfig) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration of a single page load.
// Defaults to 30 seconds. A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) BrowserOption {
	return func(c *browserConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() BrowserOption {
	return func(c *browserConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload downloads a compatible Chromium when no path is set.
func WithAutoDownload() BrowserOption {
	return func(c *browserConfig) {
		c.autoDownload = true
	}
}
