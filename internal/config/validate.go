package config

import (
	"fmt"
	"strings"

	"github.com/rolfea/book-buddy/internal/infrastructure/detector"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- camera ----
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return fmt.Errorf("camera: width and height must not be negative")
	}
	if (cfg.Camera.Width == 0) != (cfg.Camera.Height == 0) {
		return fmt.Errorf("camera: width and height must be set together")
	}

	// ---- capture ----
	if cfg.Capture.IntervalMs <= 0 {
		return fmt.Errorf("capture: interval_ms must be positive, got %d", cfg.Capture.IntervalMs)
	}
	if cfg.Capture.CooldownMs <= 0 {
		return fmt.Errorf("capture: cooldown_ms must be positive, got %d", cfg.Capture.CooldownMs)
	}
	if !detector.Supported(cfg.Capture.Symbology) {
		return fmt.Errorf("capture: unsupported symbology %q (supported: %s)",
			cfg.Capture.Symbology, strings.Join(detector.Symbologies(), ", "))
	}

	// ---- catalog ----
	if cfg.Catalog.Enabled {
		if !strings.HasPrefix(cfg.Catalog.BaseURL, "http://") && !strings.HasPrefix(cfg.Catalog.BaseURL, "https://") {
			return fmt.Errorf("catalog: base_url must be an http(s) URL, got %q", cfg.Catalog.BaseURL)
		}
		if cfg.Catalog.Workers <= 0 {
			return fmt.Errorf("catalog: workers must be positive")
		}
		if cfg.Catalog.QueueSize <= 0 {
			return fmt.Errorf("catalog: queue_size must be positive")
		}
		if cfg.Catalog.TimeoutMs <= 0 {
			return fmt.Errorf("catalog: timeout_ms must be positive")
		}
	}

	// ---- mqtt (opt-in) ----
	if cfg.MQTT.Broker != "" {
		if strings.Contains(cfg.MQTT.Broker, "://") {
			return fmt.Errorf("mqtt: broker must be host:port, got %q", cfg.MQTT.Broker)
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
		switch strings.ToLower(cfg.MQTT.Encoding) {
		case "json", "msgpack":
		default:
			return fmt.Errorf("mqtt: unsupported encoding %q", cfg.MQTT.Encoding)
		}
	}

	// ---- log ----
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log: unsupported format %q", cfg.Log.Format)
	}

	return nil
}
