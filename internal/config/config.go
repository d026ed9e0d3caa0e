package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hellojin97/copilot-ci-automation/internal/cleaning"
	"github.com/hellojin97/copilot-ci-automation/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user config directory under $HOME.
const DirName = ".salesreport"

// Global configuration structure. Delivery credentials are deliberately not
// part of it; they come from the environment or a prompt on every run.
type Global struct {
	// Cleaning
	FallbackDate         string `mapstructure:"fallback_date" yaml:"fallback_date"`
	PlaceholderProductID string `mapstructure:"placeholder_product_id" yaml:"placeholder_product_id"`
	UnknownSalesperson   string `mapstructure:"unknown_salesperson" yaml:"unknown_salesperson"`
	ImputePolicy         string `mapstructure:"impute_policy" yaml:"impute_policy"`

	// Aggregation and rendering
	TopProducts             int    `mapstructure:"top_products" yaml:"top_products"`
	CurrencySymbol          string `mapstructure:"currency_symbol" yaml:"currency_symbol"`
	ConditionalQualityNotes bool   `mapstructure:"conditional_quality_notes" yaml:"conditional_quality_notes"`
	// ReportFont is a UTF-8 TrueType font for the PDF; empty means core fonts.
	ReportFont string `mapstructure:"report_font" yaml:"report_font"`

	// SMTP/Retry configuration
	SMTPHost         string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort         int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	SMTPTimeoutSec   int    `mapstructure:"smtp_timeout_sec" yaml:"smtp_timeout_sec"`
	RetryMaxAttempts int    `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int    `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int    `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

var defaults = map[string]any{
	"fallback_date":             "2025-09-22",
	"placeholder_product_id":    "P0000",
	"unknown_salesperson":       "Unknown",
	"impute_policy":             string(cleaning.ImputeExclude),
	"top_products":              10,
	"currency_symbol":           "$",
	"conditional_quality_notes": true,
	"report_font":               "",
	"smtp_host":                 "smtp.gmail.com",
	"smtp_port":                 587,
	"smtp_timeout_sec":          0,
	"retry_max_attempts":        1,
	"retry_base_delay_ms":       500,
	"retry_max_delay_ms":        4000,
	"log_level":                 "info",
	"log_format":                "console",
}

// Keys lists every settable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultPath returns ~/.salesreport/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.salesreport/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (SALESREPORT_*) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SALESREPORT")
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a broken one is not.
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that later stages would otherwise reject.
func (c *Global) Validate() error {
	if _, err := c.Fallback(); err != nil {
		return err
	}
	if _, err := cleaning.ParseImputePolicy(c.ImputePolicy); err != nil {
		return err
	}
	if c.TopProducts < 0 {
		return fmt.Errorf("invalid top_products: %d", c.TopProducts)
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return fmt.Errorf("invalid smtp_port: %d", c.SMTPPort)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("invalid retry_max_attempts: %d (must be at least 1)", c.RetryMaxAttempts)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (use console or json)", c.LogFormat)
	}
	return nil
}

// Fallback parses FallbackDate.
func (c *Global) Fallback() (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(c.FallbackDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid fallback_date: %q (use YYYY-MM-DD)", c.FallbackDate)
	}
	return t, nil
}

// SMTPTimeout is the dial timeout; zero means the transport default.
func (c *Global) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTPTimeoutSec) * time.Second
}

// Get returns the value of key formatted for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "fallback_date":
		return c.FallbackDate, nil
	case "placeholder_product_id":
		return c.PlaceholderProductID, nil
	case "unknown_salesperson":
		return c.UnknownSalesperson, nil
	case "impute_policy":
		return c.ImputePolicy, nil
	case "top_products":
		return strconv.Itoa(c.TopProducts), nil
	case "currency_symbol":
		return c.CurrencySymbol, nil
	case "conditional_quality_notes":
		return strconv.FormatBool(c.ConditionalQualityNotes), nil
	case "report_font":
		return c.ReportFont, nil
	case "smtp_host":
		return c.SMTPHost, nil
	case "smtp_port":
		return strconv.Itoa(c.SMTPPort), nil
	case "smtp_timeout_sec":
		return strconv.Itoa(c.SMTPTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set parses val into key. The receiver is left unchanged on error.
func (c *Global) Set(key, val string) error {
	next := *c
	switch key {
	case "fallback_date":
		next.FallbackDate = val
	case "placeholder_product_id":
		if strings.TrimSpace(val) == "" {
			return errors.New("placeholder_product_id cannot be empty")
		}
		next.PlaceholderProductID = val
	case "unknown_salesperson":
		next.UnknownSalesperson = val
	case "impute_policy":
		p, err := cleaning.ParseImputePolicy(val)
		if err != nil {
			return err
		}
		next.ImputePolicy = string(p)
	case "top_products":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for top_products: %v", val)
		}
		next.TopProducts = i
	case "currency_symbol":
		next.CurrencySymbol = val
	case "conditional_quality_notes":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for conditional_quality_notes: %v", val)
		}
		next.ConditionalQualityNotes = b
	case "report_font":
		val = strings.TrimSpace(val)
		if val != "" {
			if _, err := os.Stat(val); err != nil {
				return fmt.Errorf("invalid report_font: %w", err)
			}
		}
		next.ReportFont = val
	case "smtp_host":
		if strings.TrimSpace(val) == "" {
			return errors.New("smtp_host cannot be empty")
		}
		next.SMTPHost = val
	case "smtp_port":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for smtp_port: %w", err)
		}
		next.SMTPPort = i
	case "smtp_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "smtp_timeout_sec":
			next.SMTPTimeoutSec = i
		case "retry_max_attempts":
			next.RetryMaxAttempts = i
		case "retry_base_delay_ms":
			next.RetryBaseDelayMs = i
		case "retry_max_delay_ms":
			next.RetryMaxDelayMs = i
		}
	case "log_level":
		next.LogLevel = strings.ToLower(val)
	case "log_format":
		next.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
