package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rolfea/book-buddy/internal/application"
	"github.com/rolfea/book-buddy/internal/clock"
	"github.com/rolfea/book-buddy/internal/domain"
	"github.com/rolfea/book-buddy/internal/infrastructure/camera"
	"github.com/rolfea/book-buddy/internal/infrastructure/catalog"
	"github.com/rolfea/book-buddy/internal/infrastructure/detector"
	"github.com/rolfea/book-buddy/internal/infrastructure/emitter"
	"github.com/rolfea/book-buddy/internal/infrastructure/logger"
	"github.com/rolfea/book-buddy/internal/infrastructure/streaming"
	"github.com/rolfea/book-buddy/internal/presentation/cli"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	// Parse flags before anything else
	cliApp := cli.NewCLI(nil, nil)
	flags := cliApp.ParseFlags()

	cfg, err := flags.Load()
	if err != nil {
		return err
	}

	out, closeLog, err := logOutput(cfg.Log.File, flags.TUI)
	if err != nil {
		return err
	}
	defer closeLog()
	root := logger.New(out, logger.Options{Format: cfg.Log.Format, Debug: cfg.Log.Debug})

	// Infrastructure
	cam := camera.NewMediaDevicesCamera(domain.VideoConfig{
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		DeviceID: cfg.Camera.DeviceID,
	}, root.With("camera"))

	det, err := detector.New(cfg.Capture.Symbology)
	if err != nil {
		return err
	}

	// Application
	scanner := application.NewScannerService(cam, det, clock.New(), application.ScannerConfig{
		Interval: cfg.Capture.Interval(),
		Cooldown: cfg.Capture.Cooldown(),
	}, root.With("scanner"))

	app := &cli.App{
		Scanner: scanner,
		Hub:     streaming.NewEventHub(scanner.Snapshot, root.With("events")),
	}

	if cfg.Catalog.Enabled {
		app.Lookup = application.NewBookLookup(
			catalog.NewOpenLibrary(cfg.Catalog.BaseURL, cfg.Catalog.Timeout()),
			cfg.Catalog.Workers,
			cfg.Catalog.QueueSize,
			root.With("lookup"),
		)
	}

	if cfg.MQTT.Broker != "" {
		app.Emitter = emitter.NewMQTTEmitter(emitter.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
			Encoding:    cfg.MQTT.Encoding,
		}, root.With("mqtt"))
	}

	cliApp = cli.NewCLI(app, root)
	cliApp.SetConfig(flags)

	return cliApp.Run(cfg)
}

// logOutput picks the log destination. The dashboard owns the terminal, so
// logs go to a file or nowhere while it runs.
func logOutput(path string, dashboard bool) (io.Writer, func() error, error) {
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, f.Close, nil
	case dashboard:
		return io.Discard, func() error { return nil }, nil
	default:
		return os.Stderr, func() error { return nil }, nil
	}
}
