package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	AlertMesh AlertMeshConfig `yaml:"alertmesh"`
}

// AlertMeshConfig is the project configuration.
type AlertMeshConfig struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Broker  BrokerConfig  `yaml:"broker"`
	Alert   AlertConfig   `yaml:"alert"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Agent   AgentConfig   `yaml:"agent"`
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig controls the ingestion gateway.
type GatewayConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	AgentSecret string `yaml:"agent_secret"`
	Metrics     bool   `yaml:"metrics"`
}

// BrokerConfig controls the shared message broker connection.
type BrokerConfig struct {
	Redis          RedisConfig   `yaml:"redis"`
	Cluster        string        `yaml:"cluster"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// RedisConfig controls Redis access.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AlertConfig controls the client-side alert window.
type AlertConfig struct {
	Window          time.Duration `yaml:"window"`
	FallbackEntropy float64       `yaml:"fallback_entropy"`
}

// HistoryConfig controls the external history fetch.
type HistoryConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// WatchConfig controls the dashboard watch loop.
type WatchConfig struct {
	FeedInterval time.Duration `yaml:"feed_interval"`
	PlotWidth    float64       `yaml:"plot_width"`
	PlotHeight   float64       `yaml:"plot_height"`
}

// AgentConfig controls the detection agent.
type AgentConfig struct {
	WatchDir         string        `yaml:"watch_dir"`
	GatewayURL       string        `yaml:"gateway_url"`
	Secret           string        `yaml:"secret"`
	EntropyThreshold float64       `yaml:"entropy_threshold"`
	AuthorizedPrefix string        `yaml:"authorized_prefix"`
	HexDumpBytes     int           `yaml:"hex_dump_bytes"`
	MachineID        string        `yaml:"machine_id"`
	UplinkTimeout    time.Duration `yaml:"uplink_timeout"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// applyEnvOverrides lets secrets come from the environment so the
// config file can be committed without credentials.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENT_SECRET_TOKEN"); v != "" {
		c.AlertMesh.Gateway.AgentSecret = v
		if c.AlertMesh.Agent.Secret == "" {
			c.AlertMesh.Agent.Secret = v
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.AlertMesh.Broker.Redis.Password = v
	}
}
