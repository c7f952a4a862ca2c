// Package config loads server configuration from defaults, an optional YAML
// file, environment variables and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use strings like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Glances     GlancesConfig     `yaml:"glances"`
	OpenClaw    OpenClawConfig    `yaml:"openclaw"`
	Store       StoreConfig       `yaml:"store"`
	Connections ConnectionsConfig `yaml:"connections"`
	Cache       CacheConfig       `yaml:"cache"`
	Logging     LoggingConfig     `yaml:"logging"`
	Consul      ConsulConfig      `yaml:"consul"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	GRPCPort       int      `yaml:"grpc_port"` // 0 disables the gRPC health listener
	HealthInterval Duration `yaml:"health_interval"`
}

type GlancesConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

type OpenClawConfig struct {
	Path         string   `yaml:"path"`
	Timeout      Duration `yaml:"timeout"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

type StoreConfig struct {
	Path         string   `yaml:"path"`
	QueryTimeout Duration `yaml:"query_timeout"`
}

type ConnectionsConfig struct {
	Command string   `yaml:"command"`
	Limit   int      `yaml:"limit"`
	Timeout Duration `yaml:"timeout"`
}

// CacheConfig holds the TTL of each cached resource.
type CacheConfig struct {
	Status      Duration `yaml:"status"`
	Tokens24h   Duration `yaml:"tokens24h"`
	History     Duration `yaml:"history"`
	Cron        Duration `yaml:"cron"`
	Tokens      Duration `yaml:"tokens"`
	Connections Duration `yaml:"connections"`
	Processes   Duration `yaml:"processes"`
	Glances     Duration `yaml:"glances"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ConsulConfig struct {
	Addr        string `yaml:"addr"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8888,
			HealthInterval: Duration{15 * time.Second},
		},
		Glances: GlancesConfig{
			URL:     "http://localhost:61208/api/4",
			Timeout: Duration{5 * time.Second},
		},
		OpenClaw: OpenClawConfig{
			Timeout:      Duration{15 * time.Second},
			ProbeTimeout: Duration{3 * time.Second},
		},
		Store: StoreConfig{
			Path:         "./history.db",
			QueryTimeout: Duration{5 * time.Second},
		},
		Connections: ConnectionsConfig{
			Command: "lsof",
			Limit:   30,
			Timeout: Duration{5 * time.Second},
		},
		Cache: CacheConfig{
			Status:      Duration{10 * time.Second},
			Tokens24h:   Duration{60 * time.Second},
			History:     Duration{30 * time.Second},
			Cron:        Duration{30 * time.Second},
			Tokens:      Duration{30 * time.Second},
			Connections: Duration{15 * time.Second},
			Processes:   Duration{15 * time.Second},
			Glances:     Duration{3 * time.Second},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Consul: ConsulConfig{
			ServiceName: "minidash",
		},
	}
}

// Overrides holds values from command-line flags. Zero values are skipped.
type Overrides struct {
	Host   string
	Port   int
	DBPath string
}

// Load builds the configuration: defaults < YAML file < environment < flags.
// An empty path or a missing file means no file layer.
func Load(path string, cli Overrides) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cli.Host != "" {
		cfg.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		cfg.Server.Port = cli.Port
	}
	if cli.DBPath != "" {
		cfg.Store.Path = cli.DBPath
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if port := os.Getenv("GRPC_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid GRPC_PORT %q: %w", port, err)
		}
		cfg.Server.GRPCPort = p
	}
	if url := os.Getenv("GLANCES_URL"); url != "" {
		cfg.Glances.URL = url
	}
	if path := os.Getenv("OPENCLAW_PATH"); path != "" {
		cfg.OpenClaw.Path = path
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if addr := os.Getenv("CONSUL_HTTP_ADDR"); addr != "" {
		cfg.Consul.Addr = addr
	}
	return nil
}

// Validate checks the values the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", c.Server.GRPCPort)
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		return fmt.Errorf("grpc port must differ from http port")
	}
	if c.Glances.URL == "" {
		return fmt.Errorf("glances url is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	for name, d := range map[string]Duration{
		"glances.timeout":        c.Glances.Timeout,
		"openclaw.timeout":       c.OpenClaw.Timeout,
		"openclaw.probe_timeout": c.OpenClaw.ProbeTimeout,
		"store.query_timeout":    c.Store.QueryTimeout,
		"connections.timeout":    c.Connections.Timeout,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// Addr is the host:port the HTTP listener binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
