package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/compose-network/streams/log"
	"github.com/compose-network/streams/server/api"
)

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"  toml:"server"`
	API     api.Config    `mapstructure:"api"     yaml:"api"     toml:"api"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" toml:"metrics"`
	Log     LogConfig     `mapstructure:"log"     yaml:"log"     toml:"log"`
	Stream  StreamConfig  `mapstructure:"stream"  yaml:"stream"  toml:"stream"`
}

// ServerConfig holds TCP server configuration
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"      yaml:"listen_addr"      toml:"listen_addr"      env:"SERVER_LISTEN_ADDR"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"     yaml:"read_timeout"     toml:"read_timeout"     env:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"    yaml:"write_timeout"    toml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"`
	MaxMessageSize int           `mapstructure:"max_message_size" yaml:"max_message_size" toml:"max_message_size" env:"SERVER_MAX_MESSAGE_SIZE"`
	MaxConnections int           `mapstructure:"max_connections"  yaml:"max_connections"  toml:"max_connections"  env:"SERVER_MAX_CONNECTIONS"`
}

// MetricsConfig holds metrics configuration. Metrics are served by the API server.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" toml:"enabled" env:"METRICS_ENABLED"`
	Path    string `mapstructure:"path"    yaml:"path"    toml:"path"    env:"METRICS_PATH"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  toml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" toml:"pretty" env:"LOG_PRETTY"`

	// File adds a rotating JSON log file next to stdout when File.Path is set.
	File log.FileConfig `mapstructure:"file" yaml:"file" toml:"file"`
}

// StreamConfig controls how received packets are processed
type StreamConfig struct {
	// Workers is the number of fan-out workers. One keeps delivery in arrival order.
	Workers int `mapstructure:"workers" yaml:"workers" toml:"workers" env:"STREAM_WORKERS"`

	// QueueCapacity bounds the fan-out queue; zero leaves it unbounded.
	QueueCapacity int  `mapstructure:"queue_capacity" yaml:"queue_capacity" toml:"queue_capacity" env:"STREAM_QUEUE_CAPACITY"`
	Buffered      bool `mapstructure:"buffered"       yaml:"buffered"       toml:"buffered"       env:"STREAM_BUFFERED"`

	// Echo writes every packet back to the connection it came from.
	Echo          bool          `mapstructure:"echo"           yaml:"echo"           toml:"echo"           env:"STREAM_ECHO"`
	LogPackets    bool          `mapstructure:"log_packets"    yaml:"log_packets"    toml:"log_packets"    env:"STREAM_LOG_PACKETS"`
	RetainClosed  time.Duration `mapstructure:"retain_closed"  yaml:"retain_closed"  toml:"retain_closed"  env:"STREAM_RETAIN_CLOSED"`
	PruneInterval time.Duration `mapstructure:"prune_interval" yaml:"prune_interval" toml:"prune_interval" env:"STREAM_PRUNE_INTERVAL"`
}

// Load loads configuration from file and environment. An empty path skips the file.
// Files ending in .toml are read as TOML, anything else as YAML.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType(configType(configPath))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		if configType(configPath) == "toml" {
			if err := checkTOMLKeys(configPath); err != nil {
				return nil, err
			}
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_message_size", d.Server.MaxMessageSize)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)

	v.SetDefault("api.listen_addr", d.API.ListenAddr)
	v.SetDefault("api.read_header_timeout", d.API.ReadHeaderTimeout)
	v.SetDefault("api.read_timeout", d.API.ReadTimeout)
	v.SetDefault("api.write_timeout", d.API.WriteTimeout)
	v.SetDefault("api.idle_timeout", d.API.IdleTimeout)
	v.SetDefault("api.max_header_bytes", d.API.MaxHeaderBytes)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("log.file.compress", d.Log.File.Compress)

	v.SetDefault("stream.workers", d.Stream.Workers)
	v.SetDefault("stream.queue_capacity", d.Stream.QueueCapacity)
	v.SetDefault("stream.buffered", d.Stream.Buffered)
	v.SetDefault("stream.echo", d.Stream.Echo)
	v.SetDefault("stream.log_packets", d.Stream.LogPackets)
	v.SetDefault("stream.retain_closed", d.Stream.RetainClosed)
	v.SetDefault("stream.prune_interval", d.Stream.PruneInterval)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	if err := c.validateStream(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.MaxMessageSize <= 0 {
		return fmt.Errorf("server.max_message_size must be positive, got %d", c.Server.MaxMessageSize)
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("server.max_connections must be positive, got %d", c.Server.MaxConnections)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout must not be negative")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

func (c *Config) validateLog() error {
	f := c.Log.File
	if f.MaxSizeMB < 0 || f.MaxBackups < 0 || f.MaxAgeDays < 0 {
		return fmt.Errorf("log.file size, backup and age limits must not be negative")
	}
	return nil
}

func (c *Config) validateStream() error {
	if c.Stream.Workers < 1 {
		return fmt.Errorf("stream.workers must be at least 1, got %d", c.Stream.Workers)
	}
	if c.Stream.QueueCapacity < 0 {
		return fmt.Errorf("stream.queue_capacity must not be negative, got %d", c.Stream.QueueCapacity)
	}
	if c.Stream.PruneInterval <= 0 {
		return fmt.Errorf("stream.prune_interval must be positive")
	}
	return nil
}

// Dump writes the configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":7070",
			ReadTimeout:    0,
			WriteTimeout:   20 * time.Second,
			MaxMessageSize: 10 * 1024 * 1024,
			MaxConnections: 100,
		},
		API: api.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
			File: log.FileConfig{
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 7,
			},
		},
		Stream: StreamConfig{
			Workers:       1,
			QueueCapacity: 0,
			Buffered:      true,
			Echo:          true,
			LogPackets:    true,
			RetainClosed:  10 * time.Minute,
			PruneInterval: time.Minute,
		},
	}
}
