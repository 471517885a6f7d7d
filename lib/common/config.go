package common

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is the prefix of all environment variables read by the module
const EnvPrefix = "KVMAP_"

// --------------------------------------------------------------------------
// Database configuration struct
// --------------------------------------------------------------------------

// Config holds everything needed to open a database and its connections
type Config struct {
	// Engine selects the storage engine: maple, leveldb or sqlite
	Engine string `env:"ENGINE" envDefault:"maple"`
	// Path is the directory (leveldb) or file (sqlite) of a durable engine
	Path string `env:"PATH"`
	// Sync makes leveldb fsync every commit. Ignored by other engines.
	Sync bool `env:"SYNC" envDefault:"false"`

	// Codec is the native object codec: json, gob, cbor or msgpack
	Codec string `env:"CODEC" envDefault:"json"`
	// Compression is applied to every stored payload: none, snappy, zstd or lz4
	Compression string `env:"COMPRESSION" envDefault:"none"`

	// MaxOperations bounds the number of concurrently running operations of an operation queue
	MaxOperations int `env:"MAX_OPERATIONS" envDefault:"4"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Engine:        "maple",
		Codec:         "json",
		Compression:   "none",
		MaxOperations: 4,
		LogLevel:      "info",
	}
}

// ConfigFromEnv reads the configuration from KVMAP_ prefixed environment variables
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for unknown values
func (c *Config) Validate() error {
	switch c.Engine {
	case "maple":
	case "leveldb", "sqlite":
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("engine %s requires a path", c.Engine)
		}
	default:
		return fmt.Errorf("unknown engine %q. must be one of maple, leveldb, sqlite", c.Engine)
	}
	switch c.Codec {
	case "json", "gob", "cbor", "msgpack":
	default:
		return fmt.Errorf("unknown codec %q. must be one of json, gob, cbor, msgpack", c.Codec)
	}
	switch c.Compression {
	case "none", "snappy", "zstd", "lz4":
	default:
		return fmt.Errorf("unknown compression %q. must be one of none, snappy, zstd, lz4", c.Compression)
	}
	if c.MaxOperations < 1 {
		return fmt.Errorf("max operations must be at least 1, got %d", c.MaxOperations)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Engine", c.Engine)
	if c.Engine != "maple" {
		addField("Path", c.Path)
		addField("Sync", fmt.Sprintf("%t", c.Sync))
	}

	addSection("Encoding")
	addField("Codec", c.Codec)
	addField("Compression", c.Compression)

	addSection("Operations")
	addField("Max Concurrent", fmt.Sprintf("%d", c.MaxOperations))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
