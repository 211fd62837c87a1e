package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pevans/confpapers/fetch"
	"github.com/pevans/confpapers/scraper"
)

// Environment variables read by ApplyEnv.
const (
	EnvOutput      = "CONFPAPERS_OUTPUT"
	EnvLedger      = "CONFPAPERS_LEDGER"
	EnvParallel    = "CONFPAPERS_PARALLEL"
	EnvMetricsFile = "CONFPAPERS_METRICS_FILE"
	EnvLogLevel    = "CONFPAPERS_LOG_LEVEL"
	EnvLogFormat   = "CONFPAPERS_LOG_FORMAT"
	EnvRateLimit   = "CONFPAPERS_RATE_LIMIT"
	EnvTimeout     = "CONFPAPERS_TIMEOUT"
	EnvUserAgent   = "CONFPAPERS_USER_AGENT"
	EnvMaxRetries  = "CONFPAPERS_MAX_RETRIES"
)

// ErrInvalidSetting is wrapped by every validation failure.
var ErrInvalidSetting = errors.New("invalid setting")

// Settings is the effective configuration after defaults, the config file,
// the environment and command-line flags have been applied in that order.
type Settings struct {
	Output      string
	Ledger      string
	Parallel    int
	MetricsFile string
	LogLevel    string
	LogFormat   string
	Transport   fetch.Config
	Sites       scraper.Sites
}

// Defaults returns the built-in settings. The ledger lives next to the
// config file when the home directory is known.
func Defaults() Settings {
	ledger := "confpapers.db"
	if dir, err := Dir(); err == nil {
		ledger = filepath.Join(dir, "ledger.db")
	}

	return Settings{
		Output:    "papers.csv",
		Ledger:    ledger,
		Parallel:  4,
		LogLevel:  "info",
		LogFormat: "console",
		Transport: fetch.DefaultConfig(),
		Sites:     scraper.DefaultSites(),
	}
}

// ApplyFile overrides settings with every field set in the config file. A
// nil file changes nothing.
func (s *Settings) ApplyFile(fc *FileConfig) {
	if fc == nil {
		return
	}

	if fc.Output != "" {
		s.Output = fc.Output
	}
	if fc.Ledger != "" {
		s.Ledger = fc.Ledger
	}
	if fc.Parallel != 0 {
		s.Parallel = fc.Parallel
	}
	if fc.MetricsFile != "" {
		s.MetricsFile = fc.MetricsFile
	}
	if fc.Log.Level != "" {
		s.LogLevel = fc.Log.Level
	}
	if fc.Log.Format != "" {
		s.LogFormat = fc.Log.Format
	}

	t := fc.Transport
	if t.Timeout != 0 {
		s.Transport.Timeout = t.Timeout
	}
	if t.RateLimit != 0 {
		s.Transport.RateLimit = t.RateLimit
	}
	if t.Burst != 0 {
		s.Transport.Burst = t.Burst
	}
	if t.MaxRetries != nil {
		s.Transport.MaxRetries = retries(*t.MaxRetries)
	}
	if t.RetryWait != 0 {
		s.Transport.RetryWait = t.RetryWait
	}
	if t.UserAgent != "" {
		s.Transport.UserAgent = t.UserAgent
	}

	s.Sites = s.Sites.WithOverrides(fc.Sites)
}

// ApplyEnv overrides settings from CONFPAPERS_* variables looked up with
// getenv. Empty variables are ignored.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvOutput); v != "" {
		s.Output = v
	}
	if v := getenv(EnvLedger); v != "" {
		s.Ledger = v
	}
	if v := getenv(EnvMetricsFile); v != "" {
		s.MetricsFile = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		s.LogLevel = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		s.LogFormat = v
	}
	if v := getenv(EnvUserAgent); v != "" {
		s.Transport.UserAgent = v
	}

	if v := getenv(EnvParallel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidSetting, EnvParallel, v)
		}
		s.Parallel = n
	}
	if v := getenv(EnvRateLimit); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidSetting, EnvRateLimit, v)
		}
		s.Transport.RateLimit = r
	}
	if v := getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q is not a non-negative integer", ErrInvalidSetting, EnvMaxRetries, v)
		}
		s.Transport.MaxRetries = retries(n)
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidSetting, EnvTimeout, v)
		}
		s.Transport.Timeout = d
	}

	return nil
}

// retries maps a configured retry count to fetch.Config, where zero means
// the default.
func retries(n int) int {
	if n == 0 {
		return fetch.NoRetries
	}
	return n
}

// Validate checks value ranges once every source has been applied.
func (s *Settings) Validate() error {
	if s.Output == "" {
		return fmt.Errorf("%w: output path is empty", ErrInvalidSetting)
	}
	if s.Parallel < 1 {
		return fmt.Errorf("%w: parallel must be at least 1, got %d", ErrInvalidSetting, s.Parallel)
	}
	if s.LogFormat != "console" && s.LogFormat != "json" {
		return fmt.Errorf("%w: log format must be console or json, got %q", ErrInvalidSetting, s.LogFormat)
	}
	if s.Transport.MaxRetries < fetch.NoRetries {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidSetting)
	}
	if s.Transport.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidSetting)
	}
	return nil
}
