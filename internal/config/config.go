// Package config loads run configuration from an optional YAML file,
// UNBILLED_-prefixed environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/bank"
	"github.com/dvloznov/unbilled-sync/internal/browser"
	"github.com/dvloznov/unbilled-sync/internal/categorize"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// UNBILLED_BANKS_BCA_PASSWORD for banks.bca.password.
const EnvPrefix = "UNBILLED"

// DefaultConfigName is looked up in the working directory when no file is
// given explicitly.
const DefaultConfigName = "unbilled"

// Run log backends.
const (
	RunLogNone     = "none"
	RunLogMemory   = "memory"
	RunLogBigQuery = "bigquery"
)

// Config is the full run configuration.
type Config struct {
	Browser     Browser               `mapstructure:"browser"`
	Diagnostics Diagnostics           `mapstructure:"diagnostics"`
	Sheets      Sheets                `mapstructure:"sheets"`
	RunLog      RunLog                `mapstructure:"run_log"`
	Logging     Logging               `mapstructure:"logging"`
	Pipeline    Pipeline              `mapstructure:"pipeline"`
	Banks       map[string]BankConfig `mapstructure:"banks"`
	Categories  Categories            `mapstructure:"categories"`
}

// Browser configures the automated browser.
type Browser struct {
	Name            string        `mapstructure:"name"`
	ExecPath        string        `mapstructure:"exec_path"`
	Headless        bool          `mapstructure:"headless"`
	ImplicitWait    time.Duration `mapstructure:"implicit_wait"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	Highlight       bool          `mapstructure:"highlight"`
}

// Diagnostics configures failure screenshots.
type Diagnostics struct {
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	// UploadURI is a gs://bucket[/prefix] screenshots are copied to.
	UploadURI string `mapstructure:"upload_uri"`
}

// Sheets configures the Google Sheets target.
type Sheets struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	ApplicationName string `mapstructure:"application_name"`
	// PublishEmpty clears the sheet and writes the header even when nothing
	// was extracted.
	PublishEmpty bool `mapstructure:"publish_empty"`
}

// RunLog selects where bank runs are recorded.
type RunLog struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
	Table     string `mapstructure:"table"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Pipeline holds orchestrator limits.
type Pipeline struct {
	// CleanupTimeout bounds logout and browser shutdown after a run.
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`
}

// BankConfig is one bank's credentials, target sheet and overrides.
type BankConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	SheetName string `mapstructure:"sheet_name"`
	// SkipPendingAmount overrides the bank's default when set.
	SkipPendingAmount *bool             `mapstructure:"skip_pending_amount"`
	Selectors         map[string]string `mapstructure:"selectors"`
}

// Categories adds rules after the built-in category table.
type Categories struct {
	ExtraRules []categorize.Rule `mapstructure:"extra_rules"`
}

var defaults = map[string]interface{}{
	"browser.name":              browser.Chrome,
	"browser.exec_path":         "",
	"browser.headless":          true,
	"browser.implicit_wait":     20 * time.Second,
	"browser.page_load_timeout": 30 * time.Second,
	"browser.highlight":         false,

	"diagnostics.screenshot_dir": "screenshots",
	"diagnostics.upload_uri":     "",

	"sheets.credentials_file": "credentials.json",
	"sheets.spreadsheet_id":   "",
	"sheets.application_name": "unbilled-sync",
	"sheets.publish_empty":    false,

	"run_log.backend":    RunLogMemory,
	"run_log.project_id": "",
	"run_log.dataset":    "unbilled",
	"run_log.table":      "runs",

	"logging.level":  "info",
	"logging.format": logger.FormatConsole,

	"pipeline.cleanup_timeout": 30 * time.Second,

	"banks.bca.enabled":    false,
	"banks.bca.url":        "",
	"banks.bca.username":   "",
	"banks.bca.password":   "",
	"banks.bca.sheet_name": "BCA",

	"banks.cimb.enabled":    false,
	"banks.cimb.url":        "",
	"banks.cimb.username":   "",
	"banks.cimb.password":   "",
	"banks.cimb.sheet_name": "CIMB",
}

// envOnly are keys with no default that can still be set from the
// environment.
var envOnly = []string{
	"banks.bca.skip_pending_amount",
	"banks.cimb.skip_pending_amount",
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"headless":       "browser.headless",
	"browser":        "browser.name",
	"screenshot-dir": "diagnostics.screenshot_dir",
	"spreadsheet-id": "sheets.spreadsheet_id",
	"publish-empty":  "sheets.publish_empty",
	"run-log":        "run_log.backend",
}

// Load reads configuration. An empty path looks for unbilled.yaml in the
// working directory and tolerates its absence; an explicit path must exist.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("Load: read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envOnly {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("Load: bind env %s: %w", k, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("Load: bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: decode config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Browser.Name = strings.ToLower(strings.TrimSpace(c.Browser.Name))
	c.RunLog.Backend = strings.ToLower(strings.TrimSpace(c.RunLog.Backend))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	banks := make(map[string]BankConfig, len(c.Banks))
	for name, b := range c.Banks {
		banks[strings.ToLower(name)] = b
	}
	c.Banks = banks
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if !browser.Supported(c.Browser.Name) {
		errs = append(errs, fmt.Errorf("browser.name: %w: %q", browser.ErrUnsupportedBrowser, c.Browser.Name))
	}
	if c.Browser.Name == browser.Edge && c.Browser.ExecPath == "" {
		errs = append(errs, errors.New("browser.exec_path: required for edge"))
	}
	if c.Browser.ImplicitWait <= 0 {
		errs = append(errs, errors.New("browser.implicit_wait: must be positive"))
	}
	if c.Browser.PageLoadTimeout <= 0 {
		errs = append(errs, errors.New("browser.page_load_timeout: must be positive"))
	}
	if c.Pipeline.CleanupTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.cleanup_timeout: must be positive"))
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != logger.FormatConsole && c.Logging.Format != logger.FormatJSON {
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	switch c.RunLog.Backend {
	case RunLogNone, RunLogMemory:
	case RunLogBigQuery:
		if c.RunLog.ProjectID == "" {
			errs = append(errs, errors.New("run_log.project_id: required for the bigquery backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("run_log.backend: unknown backend %q", c.RunLog.Backend))
	}

	if c.Diagnostics.UploadURI != "" && !strings.HasPrefix(c.Diagnostics.UploadURI, "gs://") {
		errs = append(errs, fmt.Errorf("diagnostics.upload_uri: must be a gs:// URI, got %q", c.Diagnostics.UploadURI))
	}

	known := map[string]bool{}
	for _, n := range bank.Names() {
		known[n] = true
	}
	for _, name := range c.bankNames() {
		b := c.Banks[name]
		if !known[name] {
			errs = append(errs, fmt.Errorf("banks.%s: unsupported bank", name))
			continue
		}
		if !b.Enabled {
			continue
		}
		if b.URL == "" {
			errs = append(errs, fmt.Errorf("banks.%s.url: required", name))
		}
		if b.Username == "" || b.Password == "" {
			errs = append(errs, fmt.Errorf("banks.%s: username and password are required", name))
		}
		if b.SheetName == "" {
			errs = append(errs, fmt.Errorf("banks.%s.sheet_name: required", name))
		}
	}

	for i, r := range c.Categories.ExtraRules {
		if strings.TrimSpace(r.Substring) == "" || strings.TrimSpace(r.Label) == "" {
			errs = append(errs, fmt.Errorf("categories.extra_rules[%d]: match and label are required", i))
		}
	}

	return errors.Join(errs...)
}

// RequireSheets reports whether publishing is configured.
func (c *Config) RequireSheets() error {
	if c.Sheets.SpreadsheetID == "" {
		return errors.New("sheets.spreadsheet_id: required to publish")
	}
	return nil
}

func (c *Config) bankNames() []string {
	names := make([]string, 0, len(c.Banks))
	for n := range c.Banks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EnabledBanks returns the enabled bank names in sorted order.
func (c *Config) EnabledBanks() []string {
	var names []string
	for _, n := range c.bankNames() {
		if c.Banks[n].Enabled {
			names = append(names, n)
		}
	}
	return names
}

// Bank returns the configuration for name.
func (c *Config) Bank(name string) (BankConfig, error) {
	b, ok := c.Banks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return BankConfig{}, fmt.Errorf("bank %q is not configured", name)
	}
	return b, nil
}

// BankSettings builds adapter settings for name.
func (c *Config) BankSettings(name string, categorizer *categorize.Categorizer) (bank.Settings, error) {
	b, err := c.Bank(name)
	if err != nil {
		return bank.Settings{}, err
	}
	return bank.Settings{
		URL:               b.URL,
		Username:          b.Username,
		Password:          b.Password,
		SkipPendingAmount: b.SkipPendingAmount,
		Selectors:         b.Selectors,
		Categorizer:       categorizer,
	}, nil
}

// BrowserOptions converts the browser section.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Name:            c.Browser.Name,
		ExecPath:        c.Browser.ExecPath,
		Headless:        c.Browser.Headless,
		ImplicitWait:    c.Browser.ImplicitWait,
		PageLoadTimeout: c.Browser.PageLoadTimeout,
		Highlight:       c.Browser.Highlight,
	}
}

// Categorizer builds the categorizer with the configured extra rules.
func (c *Config) Categorizer() *categorize.Categorizer {
	return categorize.New(c.Categories.ExtraRules...)
}
