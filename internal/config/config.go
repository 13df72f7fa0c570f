package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rolfea/book-buddy/internal/infrastructure/detector"
)

// Config is the complete scanner configuration
type Config struct {
	Camera  CameraConfig  `yaml:"camera"`
	Capture CaptureConfig `yaml:"capture"`
	Catalog CatalogConfig `yaml:"catalog"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
}

// ---- CAMERA ----

type CameraConfig struct {
	DeviceID string `yaml:"device_id"` // empty selects the default camera
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

// ---- CAPTURE ----

type CaptureConfig struct {
	IntervalMs int    `yaml:"interval_ms"`
	CooldownMs int    `yaml:"cooldown_ms"`
	Symbology  string `yaml:"symbology"`
	Autostart  bool   `yaml:"autostart"` // start capturing as soon as the camera is ready
}

// Interval returns the sampling cadence
func (c CaptureConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Cooldown returns the pause after a new code
func (c CaptureConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// ---- CATALOG ----

type CatalogConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// Timeout returns the per-request timeout
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the API
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // host:port, empty disables the emitter
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Encoding    string `yaml:"encoding"` // json, msgpack
}

// ---- LOG ----

type LogConfig struct {
	Format string `yaml:"format"` // text, json
	Debug  bool   `yaml:"debug"`
	File   string `yaml:"file"` // empty logs to stderr
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Width:  1280,
			Height: 720,
		},
		Capture: CaptureConfig{
			IntervalMs: 500,
			CooldownMs: 2000,
			Symbology:  detector.DefaultSymbology,
		},
		Catalog: CatalogConfig{
			Enabled:   true,
			BaseURL:   "https://openlibrary.org",
			TimeoutMs: 10000,
			Workers:   2,
			QueueSize: 16,
		},
		HTTP: HTTPConfig{
			Addr: "localhost:8080",
		},
		MQTT: MQTTConfig{
			ClientID:    "book-buddy",
			TopicPrefix: "book-buddy",
			Encoding:    "json",
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
