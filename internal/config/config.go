// Package config loads the service configuration once at startup.
//
// Values come from environment variables and, when CONFIG_FILE is set, a
// YAML file. Nested keys map onto upper-snake environment names
// (template.base_url -> TEMPLATE_BASE_URL); a few keys also accept the
// historical variable names (PORT, PUPPETEER_EXECUTABLE_PATH).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cardrender/internal/pkg/errors"
)

// Storage provider names.
const (
	ProviderR2      = "r2"
	ProviderLocalFS = "localfs"
)

// Browser modes.
const (
	BrowserIsolated = "isolated"
	BrowserShared   = "shared"
)

type Config struct {
	Version  string         `mapstructure:"version"`
	APIKey   string         `mapstructure:"api_key"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Template TemplateConfig `mapstructure:"template"`
	Storage  StorageConfig  `mapstructure:"storage"`
	R2       R2Config       `mapstructure:"r2"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Render   RenderConfig   `mapstructure:"render"`
	Database DatabaseConfig `mapstructure:"database"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Source    bool   `mapstructure:"source"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

type TemplateConfig struct {
	Dir          string        `mapstructure:"dir"`
	BaseURL      string        `mapstructure:"base_url"`
	CacheBust    bool          `mapstructure:"cache_bust"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	FetchRetries int           `mapstructure:"fetch_retries"`
}

type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	Folder    string `mapstructure:"folder"`
	LocalRoot string `mapstructure:"local_root"`
}

// R2Config describes the S3-compatible bucket rendered cards are published to.
type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	PublicDomain    string `mapstructure:"public_domain"`
}

type BrowserConfig struct {
	ExecutablePath    string  `mapstructure:"executable_path"`
	Mode              string  `mapstructure:"mode"`
	NoSandbox         bool    `mapstructure:"no_sandbox"`
	MaxConcurrency    int64   `mapstructure:"max_concurrency"`
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor"`
}

type RenderConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Idle    time.Duration `mapstructure:"idle"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var defaults = map[string]any{
	"version":                     "dev",
	"api_key":                     "",
	"server.port":                 "3000",
	"server.shutdown_timeout":     30 * time.Second,
	"server.max_body_bytes":       int64(2 << 20),
	"log.level":                   "info",
	"log.format":                  "json",
	"log.source":                  false,
	"log.file":                    "",
	"log.max_size_mb":             20,
	"template.dir":                "./templates",
	"template.base_url":           "",
	"template.cache_bust":         true,
	"template.fetch_timeout":      10 * time.Second,
	"template.fetch_retries":      0,
	"storage.provider":            ProviderR2,
	"storage.folder":              "reports",
	"storage.local_root":          "./data",
	"r2.account_id":               "",
	"r2.endpoint":                 "",
	"r2.access_key_id":            "",
	"r2.secret_access_key":        "",
	"r2.bucket_name":              "",
	"r2.public_domain":            "",
	"browser.executable_path":     "",
	"browser.mode":                BrowserIsolated,
	"browser.no_sandbox":          true,
	"browser.max_concurrency":     2,
	"browser.device_scale_factor": 2.0,
	"render.timeout":              30 * time.Second,
	"render.idle":                 500 * time.Millisecond,
	"database.url":                "",
	"cors.allowed_origins":        []string{},
}

// aliases binds keys to environment names that differ from the derived ones.
var aliases = map[string][]string{
	"version":                     {"SERVICE_VERSION"},
	"server.port":                 {"PORT", "SERVER_PORT"},
	"server.shutdown_timeout":     {"SHUTDOWN_TIMEOUT"},
	"server.max_body_bytes":       {"MAX_BODY_BYTES"},
	"browser.executable_path":     {"BROWSER_EXECUTABLE_PATH", "PUPPETEER_EXECUTABLE_PATH"},
	"browser.device_scale_factor": {"DEVICE_SCALE_FACTOR", "BROWSER_DEVICE_SCALE_FACTOR"},
}

// Load reads the environment (and CONFIG_FILE, if set) into a validated Config.
func Load() (*Config, error) {
	c, err := Read()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Read is Load without validation, for tools that never publish.
func Read() (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, envs := range aliases {
		if err := v.BindEnv(append([]string{k}, envs...)...); err != nil {
			return nil, errors.Wrap(err, "config.load", "bind env")
		}
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, errors.Wrap(err, "config.load", "bind env")
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeValidation, "config.load", "read config file "+path)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "config.load", "decode config")
	}
	c.normalize()
	return &c, nil
}

func (c *Config) normalize() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	c.Browser.Mode = strings.ToLower(strings.TrimSpace(c.Browser.Mode))
	c.Template.BaseURL = strings.TrimRight(strings.TrimSpace(c.Template.BaseURL), "/")
	c.R2.PublicDomain = strings.TrimRight(strings.TrimSpace(c.R2.PublicDomain), "/")
	c.Storage.Folder = strings.Trim(c.Storage.Folder, "/")

	var origins []string
	for _, o := range c.CORS.AllowedOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.CORS.AllowedOrigins = origins
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	invalid := func(key, msg string) error {
		return errors.New(errors.CodeValidation, msg).WithField("key", key)
	}

	switch c.Storage.Provider {
	case ProviderR2:
		if c.R2.BucketName == "" {
			return invalid("R2_BUCKET_NAME", "R2_BUCKET_NAME is required for the r2 provider")
		}
		if c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" {
			return invalid("R2_ACCESS_KEY_ID", "R2 credentials are required for the r2 provider")
		}
		if c.R2.AccountID == "" && c.R2.Endpoint == "" {
			return invalid("R2_ACCOUNT_ID", "R2_ACCOUNT_ID or R2_ENDPOINT is required for the r2 provider")
		}
		if c.R2.PublicDomain == "" {
			return invalid("R2_PUBLIC_DOMAIN", "R2_PUBLIC_DOMAIN is required for the r2 provider")
		}
	case ProviderLocalFS:
		if c.Storage.LocalRoot == "" {
			return invalid("STORAGE_LOCAL_ROOT", "STORAGE_LOCAL_ROOT is required for the localfs provider")
		}
	default:
		return invalid("STORAGE_PROVIDER", fmt.Sprintf("unknown storage provider %q", c.Storage.Provider))
	}

	switch c.Browser.Mode {
	case BrowserIsolated, BrowserShared:
	default:
		return invalid("BROWSER_MODE", fmt.Sprintf("unknown browser mode %q", c.Browser.Mode))
	}
	if c.Browser.MaxConcurrency < 1 {
		return invalid("BROWSER_MAX_CONCURRENCY", "BROWSER_MAX_CONCURRENCY must be at least 1")
	}
	if c.Browser.DeviceScaleFactor <= 0 {
		return invalid("DEVICE_SCALE_FACTOR", "DEVICE_SCALE_FACTOR must be positive")
	}
	if c.Render.Timeout <= 0 {
		return invalid("RENDER_TIMEOUT", "RENDER_TIMEOUT must be positive")
	}
	if c.Template.FetchRetries < 0 {
		return invalid("TEMPLATE_FETCH_RETRIES", "TEMPLATE_FETCH_RETRIES cannot be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return invalid("MAX_BODY_BYTES", "MAX_BODY_BYTES must be positive")
	}
	return nil
}

// R2Endpoint is the explicit endpoint or the account-derived R2 one.
func (c *Config) R2Endpoint() string {
	if c.R2.Endpoint != "" {
		return strings.TrimRight(c.R2.Endpoint, "/")
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID)
}

// PublicBaseURL is the prefix published keys are appended to.
// For localfs without a public domain it points at the service's own /files route.
func (c *Config) PublicBaseURL() string {
	if c.R2.PublicDomain != "" {
		return c.R2.PublicDomain
	}
	if c.Storage.Provider == ProviderLocalFS {
		return "http://localhost:" + c.Server.Port + "/files"
	}
	return ""
}
