package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxWorkers bounds the number of flow log files processed at once.
const DefaultMaxWorkers = 4

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BatchConfig holds the settings of the batch coordinator.
type BatchConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// ClickHouseConfig holds the connection details for the ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds the connection details for the NATS publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SummaryConfig holds the settings of the JSON summary writer.
type SummaryConfig struct {
	Dir string `yaml:"dir"`
}

// WriterDef defines one optional result writer. The CSV artifact is always
// written and is not listed here.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
	Summary    SummaryConfig    `yaml:"summary"`
}

// APIConfig holds the settings of the flowtag-api server.
type APIConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
	LookupFile     string `yaml:"lookup_file"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	// ProtocolFile is the protocol number reference table. Empty selects the
	// built-in registry.
	ProtocolFile string      `yaml:"protocol_file"`
	Log          LogConfig   `yaml:"log"`
	Batch        BatchConfig `yaml:"batch"`
	Writers      []WriterDef `yaml:"writers"`
	API          APIConfig   `yaml:"api"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		ProtocolFile: "data/protocol.csv",
		Log:          LogConfig{Level: "info", Format: "text"},
		Batch:        BatchConfig{MaxWorkers: DefaultMaxWorkers},
		API: APIConfig{
			ListenAddr:     ":8080",
			GRPCListenAddr: ":9090",
			LookupFile:     "configs/lookup.csv",
		},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that cannot be defaulted silently.
func (c *Config) Validate() error {
	if c.Batch.MaxWorkers < 0 {
		return fmt.Errorf("batch.max_workers must not be negative, got %d", c.Batch.MaxWorkers)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level '%s'", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format '%s'", c.Log.Format)
	}
	for i, w := range c.Writers {
		if w.Enabled && w.Type == "" {
			return fmt.Errorf("writers[%d] is enabled but has no type", i)
		}
	}
	return nil
}

// Workers returns the effective worker limit.
func (c *Config) Workers() int {
	if c.Batch.MaxWorkers <= 0 {
		return DefaultMaxWorkers
	}
	return c.Batch.MaxWorkers
}
