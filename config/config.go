package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

const (
	// DefaultMaxHeadBytes bounds the request line plus headers.
	DefaultMaxHeadBytes = 8 * 1024
	// DefaultMaxHeaderCount bounds the number of request header fields.
	DefaultMaxHeaderCount = 256
	// DefaultDrainBytes bounds how much unread request body the driver will
	// discard before giving up on connection reuse.
	DefaultDrainBytes = 256 * 1024
	// DefaultServerHeader is emitted when a response carries no Server field.
	DefaultServerHeader = "hearth"
)

// Config holds every tunable of the connection processor. A zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// KeepAliveTimeout is the idle read deadline between requests on a
	// persistent connection. Zero disables keep-alive entirely.
	KeepAliveTimeout time.Duration `yaml:"keep_alive_timeout"`
	// ReadTimeout is the per-read deadline while a request is in flight.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout is the per-write deadline.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeadBytes caps the request line plus all headers.
	MaxHeadBytes int `yaml:"max_head_bytes"`
	// MaxHeaderCount caps the number of header fields.
	MaxHeaderCount int `yaml:"max_header_count"`
	// MaxRequestsPerConn caps how many requests one connection may serve.
	// Zero means unlimited.
	MaxRequestsPerConn int `yaml:"max_requests_per_conn"`
	// MaxDrainBytes caps the post-response body discard.
	MaxDrainBytes int64 `yaml:"max_drain_bytes"`

	// EnableCompression allows gzip/deflate response wrapping for responses
	// that opt in.
	EnableCompression bool `yaml:"enable_compression"`
	// EnableHTTP10 accepts HTTP/1.0 request lines. Such requests are
	// keep-alive only when they ask for it explicitly.
	EnableHTTP10 bool `yaml:"enable_http10"`

	// ServerHeader is the value of the auto-added Server field. Empty
	// suppresses the field.
	ServerHeader string `yaml:"server_header"`

	// Logging configures the component logger.
	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var defaultConfig = Config{
	KeepAliveTimeout:   90 * time.Second,
	ReadTimeout:        30 * time.Second,
	WriteTimeout:       30 * time.Second,
	MaxHeadBytes:       DefaultMaxHeadBytes,
	MaxHeaderCount:     DefaultMaxHeaderCount,
	MaxRequestsPerConn: 0,
	MaxDrainBytes:      DefaultDrainBytes,
	EnableCompression:  false,
	EnableHTTP10:       false,
	ServerHeader:       DefaultServerHeader,
	Logging: LoggingConfig{
		Level:  "info",
		Format: "json",
	},
}

func DefaultConfig() *Config {
	c := defaultConfig
	return &c
}

// Process validates the configuration and fills derived defaults.
func (c *Config) Process() error {
	if c.MaxHeadBytes <= 0 {
		c.MaxHeadBytes = DefaultMaxHeadBytes
	}
	if c.MaxHeaderCount <= 0 {
		c.MaxHeaderCount = DefaultMaxHeaderCount
	}
	if c.MaxDrainBytes <= 0 {
		c.MaxDrainBytes = DefaultDrainBytes
	}
	if c.KeepAliveTimeout < 0 {
		return fmt.Errorf("config: keep_alive_timeout must not be negative, got %s", c.KeepAliveTimeout)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	if c.MaxRequestsPerConn < 0 {
		return fmt.Errorf("config: max_requests_per_conn must not be negative, got %d", c.MaxRequestsPerConn)
	}
	return nil
}

func (c *Config) Initialize(configYAML []byte) error {
	return yaml.Unmarshal(configYAML, c)
}

func InitConfigFromFile(path string) (*Config, error) {
	c := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := c.Initialize(b); err != nil {
		return nil, err
	}

	if err := c.Process(); err != nil {
		return nil, err
	}

	return c, nil
}
