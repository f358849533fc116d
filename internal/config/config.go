// Package config loads the hl7relay configuration from a YAML file with
// HL7RELAY_* environment overrides.
package config

import (
	"encoding/binary"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid")

// Framing modes.
const (
	ModeDelimiter = "delimiter"
	ModeFixed     = "fixed"
	ModeMLLP      = "mllp"
)

// Config holds all configuration for the relay.
type Config struct {
	Listen      string        `yaml:"listen"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	Framing     Framing       `yaml:"framing"`
	HL7         HL7           `yaml:"hl7"`
	NATS        NATS          `yaml:"nats"`
	MetricsAddr string        `yaml:"metrics_addr"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
}

// Framing selects how the TCP stream is cut into messages.
type Framing struct {
	Mode string `yaml:"mode"`
	// Delimiter is used in delimiter mode.
	Delimiter string `yaml:"delimiter"`
	// HeaderSize and ByteOrder describe the length prefix in fixed mode.
	HeaderSize     int    `yaml:"header_size"`
	ByteOrder      string `yaml:"byte_order"`
	MaxMessageSize int    `yaml:"max_message_size"`
}

// HL7 describes the messages expected on the wire.
type HL7 struct {
	Metadata string `yaml:"metadata"`
	Root     string `yaml:"root"`
	Strict   bool   `yaml:"strict"`
}

// NATS is the destination of parsed messages.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the configuration used for unset values.
func Default() *Config {
	return &Config{
		Listen:    "0.0.0.0:2575",
		Heartbeat: 30 * time.Second,
		Framing: Framing{
			Mode:           ModeMLLP,
			Delimiter:      "\n",
			HeaderSize:     4,
			ByteOrder:      "big",
			MaxMessageSize: 16 << 20,
		},
		NATS: NATS{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "hl7",
		},
		MetricsAddr: ":9102",
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "config: open")
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrapf(err, "config: decode %s", path)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen = getEnv("HL7RELAY_LISTEN", c.Listen)
	c.Heartbeat = getEnvAsDuration("HL7RELAY_HEARTBEAT", c.Heartbeat)
	c.Framing.Mode = getEnv("HL7RELAY_FRAMING_MODE", c.Framing.Mode)
	c.Framing.MaxMessageSize = getEnvAsInt("HL7RELAY_MAX_MESSAGE_SIZE", c.Framing.MaxMessageSize)
	c.HL7.Metadata = getEnv("HL7RELAY_METADATA", c.HL7.Metadata)
	c.HL7.Root = getEnv("HL7RELAY_ROOT", c.HL7.Root)
	c.HL7.Strict = getEnvAsBool("HL7RELAY_STRICT", c.HL7.Strict)
	c.NATS.URL = getEnv("HL7RELAY_NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("HL7RELAY_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.MetricsAddr = getEnv("HL7RELAY_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnv("HL7RELAY_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("HL7RELAY_LOG_FORMAT", c.LogFormat)
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Listen == "":
		return errors.Wrap(ErrInvalidConfig, "listen address is empty")
	case c.HL7.Metadata == "":
		return errors.Wrap(ErrInvalidConfig, "hl7.metadata is empty")
	case c.HL7.Root == "":
		return errors.Wrap(ErrInvalidConfig, "hl7.root is empty")
	case c.NATS.URL == "":
		return errors.Wrap(ErrInvalidConfig, "nats.url is empty")
	case c.Framing.MaxMessageSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "max_message_size %d", c.Framing.MaxMessageSize)
	case c.Heartbeat <= 0:
		return errors.Wrapf(ErrInvalidConfig, "heartbeat %s", c.Heartbeat)
	}

	switch c.Framing.Mode {
	case ModeMLLP:
	case ModeDelimiter:
		if c.Framing.Delimiter == "" {
			return errors.Wrap(ErrInvalidConfig, "framing.delimiter is empty")
		}
	case ModeFixed:
		if c.Framing.HeaderSize != 2 && c.Framing.HeaderSize != 4 {
			return errors.Wrapf(ErrInvalidConfig, "framing.header_size %d, want 2 or 4", c.Framing.HeaderSize)
		}
		if _, err := c.Framing.Order(); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown framing mode %q", c.Framing.Mode)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errors.Wrapf(ErrInvalidConfig, "log_format %q", c.LogFormat)
	}
	return nil
}

// Order returns the byte order of the length prefix.
func (f Framing) Order() (binary.ByteOrder, error) {
	switch strings.ToLower(f.ByteOrder) {
	case "big", "":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	}
	return nil, errors.Wrapf(ErrInvalidConfig, "byte_order %q", f.ByteOrder)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, errors.Wrapf(ErrInvalidConfig, "log_level %q", c.LogLevel)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
