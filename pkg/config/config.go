// Package config provides configuration management for the mcpool client and
// the bundled echo server.
//
// Values are layered, later sources overriding earlier ones:
//  1. Default values
//  2. A YAML file named by MCPOOL_CONFIG (client only)
//  3. Environment variables, including those read from a .env file
//  4. Command-line flags (server only)
//
// A .env file in the working directory is loaded first when present; it never
// overrides variables already set in the process environment.
//
// Example client usage:
//
//	cfg, err := config.LoadClientConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	c, err := client.NewWithConfig(cfg)
//
// Environment variables are prefixed with "MCPOOL_" and use uppercase names.
// For example, the pool ceiling can be set with MCPOOL_MAX_SIZE=32.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration constants
const (
	DefaultURI              = "memcached://localhost:11211"
	DefaultServerPort       = 11211
	DefaultMinSize          = 1
	DefaultMaxSize          = 10
	DefaultConnTimeoutSecs  = 5
	DefaultReadTimeoutSecs  = 30
	DefaultWriteTimeoutSecs = 10
	DefaultVirtualNodes     = 150
	DefaultLogLevel         = "info"
)

const envPrefix = "MCPOOL_"

// ServerConfig holds the settings of the echo server.
type ServerConfig struct {
	Host         string // Host address to bind to (default: "0.0.0.0")
	LogLevel     string // Log level: debug, info, warn, error (default: "info")
	Port         int    // TCP port to listen on (default: 11211)
	ReadTimeout  int    // Idle read timeout in seconds (default: 30)
	WriteTimeout int    // Write timeout in seconds (default: 10)
}

// ClientConfig holds the settings of a pooled client.
//
// Either URI names a single endpoint, or Nodes lists several host:port
// endpoints for a Cluster. Timeouts are in seconds.
//
// Example YAML file:
//
//	uri: memcached://cache1.internal:11211
//	min_size: 2
//	max_size: 32
//	acquire_timeout: 3
type ClientConfig struct {
	URI            string   `yaml:"uri"`
	Nodes          []string `yaml:"nodes"`
	MinSize        int      `yaml:"min_size"`
	MaxSize        int      `yaml:"max_size"`
	ConnTimeout    int      `yaml:"conn_timeout"`
	AcquireTimeout int      `yaml:"acquire_timeout"` // 0 waits forever
	ReadTimeout    int      `yaml:"read_timeout"`
	WriteTimeout   int      `yaml:"write_timeout"`
	StrictRelease  bool     `yaml:"strict_release"`
	VirtualNodes   int      `yaml:"virtual_nodes"`
	LogLevel       string   `yaml:"log_level"`
}

// DefaultClientConfig returns a ClientConfig holding only default values.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		URI:          DefaultURI,
		MinSize:      DefaultMinSize,
		MaxSize:      DefaultMaxSize,
		ConnTimeout:  DefaultConnTimeoutSecs,
		ReadTimeout:  DefaultReadTimeoutSecs,
		WriteTimeout: DefaultWriteTimeoutSecs,
		VirtualNodes: DefaultVirtualNodes,
		LogLevel:     DefaultLogLevel,
	}
}

// LoadClientConfig builds a ClientConfig from defaults, the optional YAML file
// named by MCPOOL_CONFIG, and environment variables.
//
// Environment variables:
//
//	MCPOOL_CONFIG: Path to a YAML config file
//	MCPOOL_URI: Single endpoint, memcached://host[:port]
//	MCPOOL_NODES: Comma-separated list of host:port endpoints
//	MCPOOL_MIN_SIZE: Idle connections kept per endpoint
//	MCPOOL_MAX_SIZE: Maximum connections per endpoint
//	MCPOOL_CONN_TIMEOUT: Dial timeout in seconds
//	MCPOOL_ACQUIRE_TIMEOUT: Capacity wait in seconds, 0 waits forever
//	MCPOOL_READ_TIMEOUT: Per-line read timeout in seconds
//	MCPOOL_WRITE_TIMEOUT: Write timeout in seconds
//	MCPOOL_STRICT_RELEASE: Reject release of unknown connections
//	MCPOOL_VIRTUAL_NODES: Virtual nodes for consistent hashing
//	MCPOOL_LOG_LEVEL: debug, info, warn or error
//
// The result is not validated; call Validate before use.
func LoadClientConfig() (*ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := DefaultClientConfig()

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if uri := os.Getenv(envPrefix + "URI"); uri != "" {
		cfg.URI = uri
	}

	if nodes := os.Getenv(envPrefix + "NODES"); nodes != "" {
		cfg.Nodes = strings.Split(nodes, ",")
		for i, node := range cfg.Nodes {
			cfg.Nodes[i] = strings.TrimSpace(node)
		}
	}

	envInt("MIN_SIZE", &cfg.MinSize)
	envInt("MAX_SIZE", &cfg.MaxSize)
	envInt("CONN_TIMEOUT", &cfg.ConnTimeout)
	envInt("ACQUIRE_TIMEOUT", &cfg.AcquireTimeout)
	envInt("READ_TIMEOUT", &cfg.ReadTimeout)
	envInt("WRITE_TIMEOUT", &cfg.WriteTimeout)
	envInt("VIRTUAL_NODES", &cfg.VirtualNodes)
	envBool("STRICT_RELEASE", &cfg.StrictRelease)

	if level := os.Getenv(envPrefix + "LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg, nil
}

func (c *ClientConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadServerConfig builds a ServerConfig from defaults, environment variables
// and the given command-line arguments (typically os.Args[1:]).
//
// Command-line flags:
//
//	-port: Server port (default: 11211)
//	-host: Server host (default: "0.0.0.0")
//	-read-timeout: Idle read timeout in seconds (default: 30)
//	-write-timeout: Write timeout in seconds (default: 10)
//	-log-level: Log level (default: "info")
//
// Environment variables:
//
//	MCPOOL_SERVER_PORT: Server port
//	MCPOOL_SERVER_HOST: Server host
//	MCPOOL_LOG_LEVEL: Log level
func LoadServerConfig(args []string) (*ServerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Port:         DefaultServerPort,
		Host:         "0.0.0.0",
		ReadTimeout:  DefaultReadTimeoutSecs,
		WriteTimeout: DefaultWriteTimeoutSecs,
		LogLevel:     DefaultLogLevel,
	}

	envInt("SERVER_PORT", &cfg.Port)
	if host := os.Getenv(envPrefix + "SERVER_HOST"); host != "" {
		cfg.Host = host
	}
	if level := os.Getenv(envPrefix + "LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "Server host")
	flags.IntVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Idle read timeout in seconds")
	flags.IntVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Write timeout in seconds")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Address returns the host:port string the server binds to.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the ServerConfig contains valid values.
//
// Validation rules:
//   - Port must be between 1 and 65535
//   - ReadTimeout and WriteTimeout must be positive
//   - LogLevel must be one of: debug, info, warn, error
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}

	if c.WriteTimeout < 1 {
		return fmt.Errorf("write timeout must be positive: %d", c.WriteTimeout)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// Validate checks if the ClientConfig contains valid values.
//
// Validation rules:
//   - URI or at least one node must be given
//   - All node addresses must be non-empty and contain a colon
//   - 0 <= MinSize <= MaxSize and MaxSize must be positive
//   - ConnTimeout, ReadTimeout and WriteTimeout must be positive
//   - AcquireTimeout must be non-negative
//   - VirtualNodes must be positive
//   - LogLevel must be one of: debug, info, warn, error
func (c *ClientConfig) Validate() error {
	if c.URI == "" && len(c.Nodes) == 0 {
		return fmt.Errorf("a uri or at least one node must be specified")
	}

	for _, node := range c.Nodes {
		if node == "" {
			return fmt.Errorf("empty node address")
		}
		if !strings.Contains(node, ":") {
			return fmt.Errorf("invalid node address format: %s", node)
		}
	}

	if c.MaxSize < 1 {
		return fmt.Errorf("max size must be positive: %d", c.MaxSize)
	}

	if c.MinSize < 0 || c.MinSize > c.MaxSize {
		return fmt.Errorf("min size must be between 0 and max size %d: %d", c.MaxSize, c.MinSize)
	}

	if c.ConnTimeout < 1 {
		return fmt.Errorf("connection timeout must be positive: %d", c.ConnTimeout)
	}

	if c.AcquireTimeout < 0 {
		return fmt.Errorf("acquire timeout must be non-negative: %d", c.AcquireTimeout)
	}

	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}

	if c.WriteTimeout < 1 {
		return fmt.Errorf("write timeout must be positive: %d", c.WriteTimeout)
	}

	if c.VirtualNodes < 1 {
		return fmt.Errorf("virtual nodes must be positive: %d", c.VirtualNodes)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLogLevel maps a level name to its slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
}

// NewLogger returns a text slog.Logger writing to stderr at the given level.
// Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	lvl, _ := ParseLogLevel(level)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadDotEnv reads ./.env into the environment when the file exists.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func envInt(name string, dst *int) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
