package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rolfea/book-buddy/internal/application"
	"github.com/rolfea/book-buddy/internal/config"
	"github.com/rolfea/book-buddy/internal/infrastructure/emitter"
	"github.com/rolfea/book-buddy/internal/infrastructure/streaming"
	"github.com/rolfea/book-buddy/internal/presentation/httpapi"
	"github.com/rolfea/book-buddy/internal/presentation/tui"
)

const shutdownTimeout = 5 * time.Second

// CLI runs the scanner from the command line
type CLI struct {
	app    *App
	logger application.Logger
	config *Config
	out    io.Writer
}

// App holds the wired components. Lookup and Emitter are optional.
type App struct {
	Scanner *application.ScannerService
	Lookup  *application.BookLookup
	Hub     *streaming.EventHub
	Emitter *emitter.MQTTEmitter
}

// Config holds the command line flags. Only flags given explicitly override
// the config file.
type Config struct {
	ConfigPath  string
	Debug       bool
	DeviceID    string
	ListDevices bool
	Addr        string
	TUI         bool
	Autostart   bool

	set map[string]bool
}

// NewCLI creates the CLI
func NewCLI(app *App, logger application.Logger) *CLI {
	return &CLI{
		app:    app,
		logger: logger,
		out:    os.Stdout,
	}
}

// SetConfig sets the flags directly
func (c *CLI) SetConfig(config *Config) {
	c.config = config
}

// ParseFlags parses the process arguments, exiting on a usage error
func (c *CLI) ParseFlags() *Config {
	config, err := ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	c.config = config
	return config
}

// ParseArgs parses command line arguments
func ParseArgs(args []string) (*Config, error) {
	config := &Config{}

	fs := flag.NewFlagSet("book-buddy", flag.ContinueOnError)
	fs.StringVar(&config.ConfigPath, "config", "", "path to the YAML config file")
	fs.BoolVar(&config.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&config.DeviceID, "device", "", "camera device ID to use")
	fs.BoolVar(&config.ListDevices, "list-devices", false, "list the available cameras and exit")
	fs.StringVar(&config.Addr, "addr", "", "HTTP API address, overrides http.addr")
	fs.BoolVar(&config.TUI, "tui", false, "run the terminal dashboard")
	fs.BoolVar(&config.Autostart, "autostart", false, "start capturing once the camera is ready")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		config.set[f.Name] = true
	})

	return config, nil
}

// Load reads the config file and applies the flag overrides
func (c *Config) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}

	if c.set["debug"] {
		cfg.Log.Debug = c.Debug
	}
	if c.set["device"] {
		cfg.Camera.DeviceID = c.DeviceID
	}
	if c.set["addr"] {
		cfg.HTTP.Addr = c.Addr
	}
	if c.set["autostart"] {
		cfg.Capture.Autostart = c.Autostart
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Run starts the scanner and blocks until interrupted or the dashboard quits
func (c *CLI) Run(cfg *config.Config) error {
	if c.config.ListDevices {
		return c.listDevices()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	c.startSinks(ctx)

	errChan := make(chan error, 1)
	server := c.startServer(cfg.HTTP.Addr, errChan)

	c.open(ctx, cfg.Capture.Autostart)

	var runErr error
	if c.config.TUI {
		runErr = c.runDashboard()
	} else {
		select {
		case sig := <-sigChan:
			c.logger.Info("Received %s, shutting down...", sig)
		case runErr = <-errChan:
			c.logger.Error("HTTP server failed: %v", runErr)
		}
	}

	cancel()
	c.shutdown(server)
	return runErr
}

// startSinks subscribes the event consumers to the scanner
func (c *CLI) startSinks(ctx context.Context) {
	scanner := c.app.Scanner

	if c.app.Hub != nil {
		scanner.Subscribe(c.app.Hub.HandleEvent)
	}

	if c.app.Lookup != nil {
		c.app.Lookup.Start(ctx)
		scanner.Subscribe(c.app.Lookup.HandleEvent)
	}

	if c.app.Emitter != nil {
		if err := c.app.Emitter.Connect(ctx); err != nil {
			c.logger.Warn("MQTT emitter disabled: %v", err)
			c.app.Emitter.Close()
			c.app.Emitter = nil
			return
		}
		c.app.Emitter.Start(ctx)
		scanner.Subscribe(c.app.Emitter.HandleEvent)
	}
}

func (c *CLI) startServer(addr string, errChan chan<- error) *http.Server {
	if addr == "" {
		return nil
	}

	var events http.Handler
	if c.app.Hub != nil {
		events = c.app.Hub
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(c.app.Scanner, c.books(), events, c.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		c.logger.Info("HTTP API listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	return server
}

// open acquires the camera. A failure is logged and left for a retry from the
// API or the dashboard.
func (c *CLI) open(ctx context.Context, autostart bool) {
	if err := c.app.Scanner.Open(ctx); err != nil {
		c.logger.Error("Camera unavailable: %v", err)
		return
	}
	if !autostart {
		return
	}
	if err := c.app.Scanner.StartCapture(); err != nil {
		c.logger.Error("Error starting capture: %v", err)
		return
	}
	c.logger.Info("Capture started")
}

func (c *CLI) runDashboard() error {
	var books tui.Books
	if c.app.Lookup != nil {
		books = c.app.Lookup
	}

	p := tea.NewProgram(
		tui.New(c.app.Scanner, books, tui.DefaultRefresh),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}

// shutdown stops producers before consumers
func (c *CLI) shutdown(server *http.Server) {
	if err := c.app.Scanner.Close(); err != nil {
		c.logger.Error("Error closing scanner: %v", err)
	}
	if c.app.Lookup != nil {
		c.app.Lookup.Close()
	}
	if c.app.Emitter != nil {
		c.app.Emitter.Close()
	}
	if c.app.Hub != nil {
		c.app.Hub.Close()
	}

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			c.logger.Error("HTTP shutdown failed: %v", err)
		}
	}
}

func (c *CLI) books() httpapi.Books {
	if c.app.Lookup == nil {
		return nil
	}
	return c.app.Lookup
}

// listDevices prints the available devices
func (c *CLI) listDevices() error {
	devices, err := c.app.Scanner.ListDevices()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Available devices:")
	for i, device := range devices {
		fmt.Fprintf(c.out, "[%d] %s (%s) id=%s\n", i, device.Label, device.Kind, device.ID)
	}

	return nil
}
