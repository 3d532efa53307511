// Package config handles configuration loading for the compliance engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Scan        ScanConfig        `yaml:"scan"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Notify      NotifyConfig      `yaml:"notify"`
	Remediation RemediationConfig `yaml:"remediation"`
	Storage     StorageConfig     `yaml:"storage"`
	Publisher   PublisherConfig   `yaml:"publisher"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ScanConfig holds detection scan scheduling settings.
type ScanConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	PlaybookDir  string        `yaml:"playbook_dir"`
	RuleDir      string        `yaml:"rule_dir"`
	AssetFile    string        `yaml:"asset_file"`
	PolicyFile   string        `yaml:"policy_file"`
	LoadBuiltins bool          `yaml:"load_builtins"`
}

// LedgerConfig holds execution ledger settings.
type LedgerConfig struct {
	Backend    string `yaml:"backend"` // memory or redis
	MaxEntries int    `yaml:"max_entries"`
	Redis      struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Key      string `yaml:"key"`
	} `yaml:"redis"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	Slack struct {
		Enabled    bool   `yaml:"enabled"`
		WebhookURL string `yaml:"webhook_url"`
		Channel    string `yaml:"channel"`
		Username   string `yaml:"username"`
	} `yaml:"slack"`
	PagerDuty struct {
		Enabled    bool   `yaml:"enabled"`
		RoutingKey string `yaml:"routing_key"`
	} `yaml:"pagerduty"`
	Email struct {
		Enabled  bool     `yaml:"enabled"`
		SMTPHost string   `yaml:"smtp_host"`
		SMTPPort int      `yaml:"smtp_port"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		From     string   `yaml:"from"`
		To       []string `yaml:"to"`
		UseTLS   bool     `yaml:"use_tls"`
	} `yaml:"email"`
	Jira struct {
		Enabled    bool   `yaml:"enabled"`
		BaseURL    string `yaml:"base_url"`
		ProjectKey string `yaml:"project_key"`
		Username   string `yaml:"username"`
		APIToken   string `yaml:"api_token"`
	} `yaml:"jira"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// RemediationConfig holds remediation runner settings. When no webhook
// is configured, remediation requests are recorded locally instead.
type RemediationConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig configures one generic webhook channel.
type WebhookConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// StorageConfig holds archival storage settings.
type StorageConfig struct {
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	BatchSize  int              `yaml:"batch_size"`
	FlushEvery time.Duration    `yaml:"flush_every"`
	S3         S3Config         `yaml:"s3"`
}

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Hosts           []string      `yaml:"hosts"`
	Database        string        `yaml:"database"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TLSEnabled      bool          `yaml:"tls_enabled"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// S3Config holds evidence archive settings.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// PublisherConfig holds Kafka publisher settings.
type PublisherConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	ViolationTopic string   `yaml:"violation_topic"`
	IncidentTopic  string   `yaml:"incident_topic"`
}

// LoggingConfig holds logging settings. Production enables error
// sanitization on outward-facing surfaces.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Production bool   `yaml:"production"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Scan: ScanConfig{
			Interval:     15 * time.Minute,
			Timeout:      10 * time.Minute,
			LoadBuiltins: true,
		},
		Storage: StorageConfig{
			Enabled: false, // Disabled by default for development without ClickHouse
			ClickHouse: ClickHouseConfig{
				Hosts:           []string{"localhost:9000"},
				Database:        "compliance",
				Username:        "default",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: time.Hour,
				DialTimeout:     10 * time.Second,
			},
			BatchSize:  500,
			FlushEvery: 5 * time.Second,
		},
		Publisher: PublisherConfig{
			Enabled:        false,
			Brokers:        []string{"localhost:9092"},
			ViolationTopic: "compliance.violations",
			IncidentTopic:  "compliance.incidents",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
	cfg.Ledger.Backend = "memory"
	cfg.Ledger.MaxEntries = 10000
	cfg.Ledger.Redis.Addr = "localhost:6379"
	cfg.Ledger.Redis.Key = "compliance:execution_ledger"
	return cfg
}

// Load loads configuration from a file or returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("COMPLIANCE_CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			cfg.applyEnvOverrides()
			if verr := cfg.Validate(); verr != nil {
				return nil, verr
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("COMPLIANCE_HTTP_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.HTTPPort)
	}

	if level := os.Getenv("COMPLIANCE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if backend := os.Getenv("COMPLIANCE_LEDGER_BACKEND"); backend != "" {
		c.Ledger.Backend = backend
	}

	if addr := os.Getenv("COMPLIANCE_REDIS_ADDR"); addr != "" {
		c.Ledger.Redis.Addr = addr
	}

	if enabled := os.Getenv("COMPLIANCE_STORAGE_ENABLED"); enabled == "true" {
		c.Storage.Enabled = true
	}

	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Storage.ClickHouse.Hosts = []string{host}
	}

	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.Storage.ClickHouse.Database = db
	}

	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.Storage.ClickHouse.Username = user
	}

	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Storage.ClickHouse.Password = pass
	}

	if enabled := os.Getenv("COMPLIANCE_PUBLISHER_ENABLED"); enabled == "true" {
		c.Publisher.Enabled = true
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		parts := strings.Split(brokers, ",")
		c.Publisher.Brokers = c.Publisher.Brokers[:0]
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				c.Publisher.Brokers = append(c.Publisher.Brokers, trimmed)
			}
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}

	if c.Scan.Interval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}

	switch c.Ledger.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown ledger backend: %s", c.Ledger.Backend)
	}

	if c.Ledger.MaxEntries <= 0 {
		return fmt.Errorf("ledger max_entries must be positive")
	}

	if c.Storage.Enabled && len(c.Storage.ClickHouse.Hosts) == 0 {
		return fmt.Errorf("storage enabled but no clickhouse hosts configured")
	}

	if c.Publisher.Enabled && len(c.Publisher.Brokers) == 0 {
		return fmt.Errorf("publisher enabled but no brokers configured")
	}

	return nil
}
