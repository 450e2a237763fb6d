// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Portal   PortalConfig   `mapstructure:"portal" yaml:"portal"`
	Captcha  CaptchaConfig  `mapstructure:"captcha" yaml:"captcha"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the persistent Chromium context.
type BrowserConfig struct {
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	ProfileDir     string   `mapstructure:"profile_dir" yaml:"profile_dir"`
	DownloadDir    string   `mapstructure:"download_dir" yaml:"download_dir"`
	UserAgent      string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args           []string `mapstructure:"args" yaml:"args"`
	ViewportWidth  int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// PortalConfig identifies the SIGITM instance, the account used to log in,
// and the saved query this tool exports.
type PortalConfig struct {
	LoginURL         string `mapstructure:"login_url" yaml:"login_url"`
	Username         string `mapstructure:"username" yaml:"-"`
	Password         string `mapstructure:"password" yaml:"-"`
	ReportName       string `mapstructure:"report_name" yaml:"report_name"`
	MaxLoginAttempts int    `mapstructure:"max_login_attempts" yaml:"max_login_attempts"`
}

// CaptchaConfig holds the 2captcha client settings.
type CaptchaConfig struct {
	APIKey       string        `mapstructure:"api_key" yaml:"-"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TimeoutsConfig bounds every wait the session performs. No stage waits
// unboundedly; elapsed timeouts are the only cancellation signal in the
// workflow.
type TimeoutsConfig struct {
	PageLoad    time.Duration `mapstructure:"page_load" yaml:"page_load"`
	Element     time.Duration `mapstructure:"element" yaml:"element"`
	NewWindow   time.Duration `mapstructure:"new_window" yaml:"new_window"`
	LoginVerify time.Duration `mapstructure:"login_verify" yaml:"login_verify"`
	Completion  time.Duration `mapstructure:"completion" yaml:"completion"`
	Download    time.Duration `mapstructure:"download" yaml:"download"`
}

// DatabaseConfig holds the optional run-history database connection.
// An empty URL disables persistence entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sigitm-exporter")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.profile_dir", "chrome_profile_normal")
	v.SetDefault("browser.download_dir", "downloads")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("browser.args", []string{
		"--disable-blink-features=AutomationControlled",
		"--no-sandbox",
		"--disable-gpu",
		"--disable-dev-shm-usage",
		"--no-default-browser-check",
	})

	// -- Portal --
	v.SetDefault("portal.login_url", "https://sigitm.vivo.com.br/app/app.jsp")
	v.SetDefault("portal.report_name", "CONSULTA_LOTE4_FECHADAS")
	v.SetDefault("portal.max_login_attempts", 5)
	// Secrets default to empty so viper knows the keys; values come from the
	// environment.
	v.SetDefault("portal.username", "")
	v.SetDefault("portal.password", "")

	// -- Captcha --
	v.SetDefault("captcha.base_url", "https://2captcha.com")
	v.SetDefault("captcha.poll_interval", "5s")
	v.SetDefault("captcha.timeout", "2m")
	v.SetDefault("captcha.api_key", "")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Timeouts --
	v.SetDefault("timeouts.page_load", "60s")
	v.SetDefault("timeouts.element", "15s")
	v.SetDefault("timeouts.new_window", "30s")
	v.SetDefault("timeouts.login_verify", "45s")
	v.SetDefault("timeouts.completion", "120s")
	v.SetDefault("timeouts.download", "120s")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper creates a configuration instance from a viper object.
// Secrets are expected from the environment (SIGITM_PORTAL_USERNAME,
// SIGITM_PORTAL_PASSWORD, SIGITM_CAPTCHA_API_KEY, SIGITM_DATABASE_URL).
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Credential presence is
// checked separately at run time so read-only commands work without secrets.
func (c *Config) Validate() error {
	if c.Portal.MaxLoginAttempts <= 0 {
		return fmt.Errorf("portal.max_login_attempts must be a positive integer")
	}
	if c.Portal.LoginURL == "" {
		return fmt.Errorf("portal.login_url is a required configuration field")
	}
	if c.Portal.ReportName == "" {
		return fmt.Errorf("portal.report_name is a required configuration field")
	}
	if c.Timeouts.Completion <= 0 {
		return fmt.Errorf("timeouts.completion must be a positive duration")
	}
	if c.Timeouts.PageLoad <= 0 || c.Timeouts.Element <= 0 {
		return fmt.Errorf("timeouts.page_load and timeouts.element must be positive durations")
	}
	if c.Captcha.PollInterval <= 0 {
		return fmt.Errorf("captcha.poll_interval must be a positive duration")
	}
	return nil
}

// ValidateRun checks the fields a live portal run cannot do without.
func (c *Config) ValidateRun() error {
	if c.Portal.Username == "" || c.Portal.Password == "" {
		return fmt.Errorf("portal credentials are required. Set SIGITM_PORTAL_USERNAME and SIGITM_PORTAL_PASSWORD")
	}
	if c.Captcha.APIKey == "" {
		return fmt.Errorf("captcha API key is required. Set SIGITM_CAPTCHA_API_KEY")
	}
	return nil
}
