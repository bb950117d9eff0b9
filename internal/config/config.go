package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig         `json:"app"`
	SQLite     SQLiteConfig      `json:"sqlite"`
	Browser    BrowserConfig     `json:"browser"`
	Lookup     LookupConfig      `json:"lookup"`
	Registry   RegistryConfig    `json:"registry"`
	Email      EmailConfig       `json:"email"`
	Categories map[string]string `json:"categories"` // category name -> marketplace category id
}

// AppConfig controls the pipeline run itself.
type AppConfig struct {
	Env                    string        `json:"env"`                      // local / prod
	LogLevel               string        `json:"log_level"`                // debug / info / warn / error
	Query                  string        `json:"query"`                    // marketplace search query
	RunNote                string        `json:"run_note"`                 // free-text note stored on the scrape run
	MaxResults             int           `json:"max_results"`              // global cap across all categories
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"` // empty pages before a category stops
	MaxAttempts            int           `json:"max_attempts"`             // fetch attempts per page
	PageDelay              time.Duration `json:"page_delay"`               // pacing between page fetches
	RetryBackoff           time.Duration `json:"retry_backoff"`            // pause between failed attempts
	MetricsAddr            string        `json:"metrics_addr"`             // prometheus listen address
}

// SQLiteConfig locates the catalog database file.
type SQLiteConfig struct {
	Path string `json:"path"`
}

// BrowserConfig configures the scraping browser.
type BrowserConfig struct {
	BinPath     string        `json:"bin_path"`     // browser binary; empty downloads a default
	ProxyURL    string        `json:"proxy_url"`    // proxy server URL
	UseProxy    bool          `json:"use_proxy"`    // pass the proxy to the launcher
	Headless    bool          `json:"headless"`
	PageTimeout time.Duration `json:"page_timeout"` // bounded wait for the results container
}

// LookupConfig configures the external entity-search endpoint.
type LookupConfig struct {
	Endpoint string        `json:"endpoint"`
	Language string        `json:"language"`
	Timeout  time.Duration `json:"timeout"`
}

// RegistryConfig locates the signer registry and attribution cache files.
type RegistryConfig struct {
	SignersFile string `json:"signers_file"`
	CacheFile   string `json:"cache_file"`
}

// EmailConfig configures the optional run-summary notification.
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
	ToEmail   string `json:"to_email"`
}

// Load reads configuration from a JSON file, fills defaults for unset fields
// and applies environment overrides. A missing file is not an error: defaults
// plus environment are used instead.
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:                    "local",
			LogLevel:               "info",
			Query:                  "autograph",
			RunNote:                "Americana scrape",
			MaxResults:             5000,
			MaxConsecutiveFailures: 3,
			MaxAttempts:            3,
			PageDelay:              30 * time.Second,
			RetryBackoff:           60 * time.Second,
			MetricsAddr:            ":2112",
		},
		SQLite: SQLiteConfig{
			Path: "database/autographs.db",
		},
		Browser: BrowserConfig{
			BinPath:     "",
			ProxyURL:    "",
			UseProxy:    false,
			Headless:    true,
			PageTimeout: 20 * time.Second,
		},
		Lookup: LookupConfig{
			Endpoint: "https://www.wikidata.org/w/api.php",
			Language: "en",
			Timeout:  10 * time.Second,
		},
		Registry: RegistryConfig{
			SignersFile: "config/known_signers.json",
			CacheFile:   "config/signer_cache.json",
		},
		Email: EmailConfig{
			SMTPHost: "",
			SMTPPort: 587,
		},
		Categories: map[string]string{
			"sports_mem": "64482",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.Query == "" {
		cfg.App.Query = defaults.App.Query
	}
	if cfg.App.RunNote == "" {
		cfg.App.RunNote = defaults.App.RunNote
	}
	if cfg.App.MaxResults == 0 {
		cfg.App.MaxResults = defaults.App.MaxResults
	}
	if cfg.App.MaxConsecutiveFailures == 0 {
		cfg.App.MaxConsecutiveFailures = defaults.App.MaxConsecutiveFailures
	}
	if cfg.App.MaxAttempts == 0 {
		cfg.App.MaxAttempts = defaults.App.MaxAttempts
	}
	if cfg.App.PageDelay == 0 {
		cfg.App.PageDelay = defaults.App.PageDelay
	}
	if cfg.App.RetryBackoff == 0 {
		cfg.App.RetryBackoff = defaults.App.RetryBackoff
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = defaults.App.MetricsAddr
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = defaults.SQLite.Path
	}
	if cfg.Browser.PageTimeout == 0 {
		cfg.Browser.PageTimeout = defaults.Browser.PageTimeout
	}
	if cfg.Lookup.Endpoint == "" {
		cfg.Lookup.Endpoint = defaults.Lookup.Endpoint
	}
	if cfg.Lookup.Language == "" {
		cfg.Lookup.Language = defaults.Lookup.Language
	}
	if cfg.Lookup.Timeout == 0 {
		cfg.Lookup.Timeout = defaults.Lookup.Timeout
	}
	if cfg.Registry.SignersFile == "" {
		cfg.Registry.SignersFile = defaults.Registry.SignersFile
	}
	if cfg.Registry.CacheFile == "" {
		cfg.Registry.CacheFile = defaults.Registry.CacheFile
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaults.Categories
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("sqlite_path", "SQLITE_PATH")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("chrome_bin", "CHROME_BIN")
	_ = viper.BindEnv("proxy_url", "PROXY_URL")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_QUERY"); v != "" {
		cfg.App.Query = v
	}
	if v := os.Getenv("APP_RUN_NOTE"); v != "" {
		cfg.App.RunNote = v
	}
	if v := os.Getenv("APP_MAX_RESULTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.MaxResults = i
		}
	}
	if v := os.Getenv("APP_MAX_CONSECUTIVE_FAILURES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.MaxConsecutiveFailures = i
		}
	}
	if v := os.Getenv("APP_MAX_ATTEMPTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.MaxAttempts = i
		}
	}
	if v := os.Getenv("APP_PAGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.PageDelay = d
		}
	}
	if v := os.Getenv("APP_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.RetryBackoff = d
		}
	}
	if v := os.Getenv("SCRAPER_METRICS_ADDR"); v != "" {
		cfg.App.MetricsAddr = v
	}
	if v := viper.GetString("sqlite_path"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := viper.GetString("chrome_bin"); v != "" {
		cfg.Browser.BinPath = v
	}
	if v := viper.GetString("proxy_url"); v != "" {
		cfg.Browser.ProxyURL = v
	}
	if v := os.Getenv("BROWSER_USE_PROXY"); v != "" {
		cfg.Browser.UseProxy = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		cfg.Browser.Headless = v != "0" && v != "false"
	}
	if v := os.Getenv("BROWSER_PAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Browser.PageTimeout = d
		}
	}
	if v := os.Getenv("LOOKUP_ENDPOINT"); v != "" {
		cfg.Lookup.Endpoint = v
	}
	if v := os.Getenv("REGISTRY_SIGNERS_FILE"); v != "" {
		cfg.Registry.SignersFile = v
	}
	if v := os.Getenv("REGISTRY_CACHE_FILE"); v != "" {
		cfg.Registry.CacheFile = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
}

// UnmarshalJSON accepts duration strings like "30s" for the pacing fields.
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		PageDelay    string `json:"page_delay"`
		RetryBackoff string `json:"retry_backoff"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.PageDelay != "" {
		duration, err := time.ParseDuration(aux.PageDelay)
		if err != nil {
			return fmt.Errorf("invalid page_delay format: %w", err)
		}
		a.PageDelay = duration
	}
	if aux.RetryBackoff != "" {
		duration, err := time.ParseDuration(aux.RetryBackoff)
		if err != nil {
			return fmt.Errorf("invalid retry_backoff format: %w", err)
		}
		a.RetryBackoff = duration
	}

	return nil
}

// MarshalJSON writes the pacing durations back as strings.
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		PageDelay    string `json:"page_delay"`
		RetryBackoff string `json:"retry_backoff"`
		*Alias
	}{
		PageDelay:    a.PageDelay.String(),
		RetryBackoff: a.RetryBackoff.String(),
		Alias:        (*Alias)(&a),
	})
}

// UnmarshalJSON accepts a duration string like "20s" for page_timeout.
func (b *BrowserConfig) UnmarshalJSON(data []byte) error {
	type Alias BrowserConfig
	aux := &struct {
		PageTimeout string `json:"page_timeout"`
		*Alias
	}{
		Alias: (*Alias)(b),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.PageTimeout != "" {
		duration, err := time.ParseDuration(aux.PageTimeout)
		if err != nil {
			return fmt.Errorf("invalid page_timeout format: %w", err)
		}
		b.PageTimeout = duration
	}

	return nil
}

// MarshalJSON writes page_timeout back as a string.
func (b BrowserConfig) MarshalJSON() ([]byte, error) {
	type Alias BrowserConfig
	return json.Marshal(&struct {
		PageTimeout string `json:"page_timeout"`
		*Alias
	}{
		PageTimeout: b.PageTimeout.String(),
		Alias:       (*Alias)(&b),
	})
}

// UnmarshalJSON accepts a duration string like "10s" for the lookup timeout.
func (l *LookupConfig) UnmarshalJSON(data []byte) error {
	type Alias LookupConfig
	aux := &struct {
		Timeout string `json:"timeout"`
		*Alias
	}{
		Alias: (*Alias)(l),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timeout != "" {
		duration, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout format: %w", err)
		}
		l.Timeout = duration
	}

	return nil
}

// MarshalJSON writes the lookup timeout back as a string.
func (l LookupConfig) MarshalJSON() ([]byte, error) {
	type Alias LookupConfig
	return json.Marshal(&struct {
		Timeout string `json:"timeout"`
		*Alias
	}{
		Timeout: l.Timeout.String(),
		Alias:   (*Alias)(&l),
	})
}
