package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Site    SiteConfig    `yaml:"site"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// ServerConfig holds HTTP control API configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

// StorageConfig holds download destination and local state configuration.
type StorageConfig struct {
	DownloadsDir string `yaml:"downloads_dir" envconfig:"STORAGE_DOWNLOADS_DIR"` // empty means ~/Downloads
	AppFolder    string `yaml:"app_folder" envconfig:"STORAGE_APP_FOLDER"`
	StateDir     string `yaml:"state_dir" envconfig:"STORAGE_STATE_DIR"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES"`
}

// DaemonConfig holds aria2 daemon configuration.
type DaemonConfig struct {
	Binary         string        `yaml:"binary" envconfig:"ARIA2_BINARY"`
	Managed        bool          `yaml:"managed" envconfig:"ARIA2_MANAGED"` // spawn and supervise the daemon
	RPCPort        int           `yaml:"rpc_port" envconfig:"ARIA2_RPC_PORT"`
	Secret         string        `yaml:"secret" envconfig:"ARIA2_SECRET"` // generated when empty
	MaxConcurrent  int           `yaml:"max_concurrent" envconfig:"ARIA2_MAX_CONCURRENT"`
	UserAgent      string        `yaml:"user_agent" envconfig:"ARIA2_USER_AGENT"`
	PollInterval   time.Duration `yaml:"poll_interval" envconfig:"ARIA2_POLL_INTERVAL"`
	RPCTimeout     time.Duration `yaml:"rpc_timeout" envconfig:"ARIA2_RPC_TIMEOUT"`
	StartupTimeout time.Duration `yaml:"startup_timeout" envconfig:"ARIA2_STARTUP_TIMEOUT"`
}

// SiteConfig holds streaming site client configuration.
type SiteConfig struct {
	BaseURL       string        `yaml:"base_url" envconfig:"SITE_BASE_URL"`
	SessionCookie string        `yaml:"session_cookie" envconfig:"SITE_SESSION_COOKIE"`
	PurchaseURL   string        `yaml:"purchase_url" envconfig:"SITE_PURCHASE_URL"`
	UserAgent     string        `yaml:"user_agent" envconfig:"SITE_USER_AGENT"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"SITE_TIMEOUT"`
}

// NotifyConfig holds notification service configuration.
type NotifyConfig struct {
	RingBufferSize int  `yaml:"ring_buffer_size" envconfig:"NOTIFY_BUFFER_SIZE"`
	Persist        bool `yaml:"persist" envconfig:"NOTIFY_PERSIST"`
	RetentionDays  int  `yaml:"retention_days" envconfig:"NOTIFY_RETENTION_DAYS"`
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// Defaults returns the configuration used when neither file nor environment
// sets a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         9848,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			AppFolder:    "SeriesGrab",
			MinFreeBytes: 512 << 20,
		},
		Daemon: DaemonConfig{
			Binary:         "aria2c",
			Managed:        true,
			RPCPort:        16800,
			MaxConcurrent:  3,
			UserAgent:      defaultUserAgent,
			PollInterval:   time.Second,
			RPCTimeout:     10 * time.Second,
			StartupTimeout: 15 * time.Second,
		},
		Site: SiteConfig{
			BaseURL:   "https://rezka.ag",
			UserAgent: defaultUserAgent,
			Timeout:   30 * time.Second,
		},
		Notify: NotifyConfig{
			RingBufferSize: 500,
			RetentionDays:  30,
		},
	}
}

// Load reads configuration from defaults, an optional .env file, a YAML file
// and environment variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.Site.PurchaseURL == "" {
		cfg.Site.PurchaseURL = cfg.Site.BaseURL + "/payments/"
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Storage.AppFolder == "" {
		return fmt.Errorf("STORAGE_APP_FOLDER is required")
	}
	if c.Daemon.RPCPort <= 0 || c.Daemon.RPCPort > 65535 {
		return fmt.Errorf("ARIA2_RPC_PORT must be between 1 and 65535")
	}
	if c.Daemon.MaxConcurrent < 1 {
		return fmt.Errorf("ARIA2_MAX_CONCURRENT must be at least 1")
	}
	if c.Daemon.PollInterval <= 0 {
		return fmt.Errorf("ARIA2_POLL_INTERVAL must be positive")
	}
	if !c.Daemon.Managed && c.Daemon.Secret == "" {
		return fmt.Errorf("ARIA2_SECRET is required for an unmanaged daemon")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("SITE_BASE_URL is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ResolveDownloadsDir returns the configured downloads directory or the
// user's ~/Downloads when none is set.
func (s *StorageConfig) ResolveDownloadsDir() (string, error) {
	if s.DownloadsDir != "" {
		return s.DownloadsDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Downloads"), nil
}

// ResolveStateDir returns the directory for local databases.
func (s *StorageConfig) ResolveStateDir() (string, error) {
	if s.StateDir != "" {
		return s.StateDir, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "seriesgrab"), nil
}
