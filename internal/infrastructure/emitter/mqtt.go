// Package emitter publishes scan events to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rolfea/book-buddy/internal/application"
	"github.com/rolfea/book-buddy/internal/domain"
)

// Config holds the broker settings
type Config struct {
	Broker      string // host:port
	ClientID    string
	TopicPrefix string // Events go to {prefix}/scans/{session}
	QoS         byte
	Encoding    string // "json" or "msgpack"
	QueueSize   int
}

// Publisher is the part of mqtt.Client the emitter uses
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published uint64
	Dropped   uint64
	Errors    uint64
}

// MQTTEmitter forwards scan events to MQTT from its own goroutine, so the
// scanner never waits on the broker
type MQTTEmitter struct {
	cfg    Config
	logger application.Logger
	client mqtt.Client
	pub    Publisher

	queue chan domain.ScanEvent
	done  chan struct{}

	mu        sync.Mutex
	connected bool
	started   bool
	published uint64
	dropped   uint64
	errors    uint64
	closed    bool
}

// NewMQTTEmitter creates an emitter. Call Connect, then Start.
func NewMQTTEmitter(cfg Config, logger application.Logger) *MQTTEmitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "book-buddy"
	}
	return &MQTTEmitter{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan domain.ScanEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Connect establishes the broker connection
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("MQTT connection established (broker %s, client %s)", e.cfg.Broker, e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("MQTT connection lost, will auto-reconnect: %v", err)
	}

	e.client = mqtt.NewClient(opts)
	e.pub = e.client

	e.logger.Info("Connecting to MQTT broker %s", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// HandleEvent queues a scan event. It never blocks.
func (e *MQTTEmitter) HandleEvent(event domain.ScanEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	select {
	case e.queue <- event:
	default:
		e.dropped++
		e.logger.Warn("MQTT queue full, dropping event for frame %d", event.FrameSeq)
	}
}

// Start publishes queued events from a goroutine until ctx is cancelled or
// Close is called
func (e *MQTTEmitter) Start(ctx context.Context) {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	go e.run(ctx)
}

func (e *MQTTEmitter) run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-e.queue:
			if !ok {
				return
			}
			if err := e.Publish(event); err != nil {
				e.logger.Warn("MQTT publish failed: %v", err)
			}
		}
	}
}

// Publish encodes and sends one event
func (e *MQTTEmitter) Publish(event domain.ScanEvent) error {
	if e.pub == nil || !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := e.encode(event)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to encode scan event: %w", err)
	}

	topic := e.Topic(event.SessionID)
	token := e.pub.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	e.logger.Debug("Scan event published to %s (%d bytes)", topic, len(payload))
	return nil
}

// Topic returns the topic for a session
func (e *MQTTEmitter) Topic(sessionID string) string {
	return fmt.Sprintf("%s/scans/%s", strings.TrimRight(e.cfg.TopicPrefix, "/"), sessionID)
}

// Close stops accepting events, waits for the queued ones and disconnects
func (e *MQTTEmitter) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	started := e.started
	e.mu.Unlock()

	if started {
		<-e.done
	}

	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.logger.Info("MQTT disconnected")
	}
	e.setConnected(false)
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		Connected: e.connected,
		Published: e.published,
		Dropped:   e.dropped,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) encode(event domain.ScanEvent) ([]byte, error) {
	if strings.EqualFold(e.cfg.Encoding, "msgpack") {
		return msgpack.Marshal(event)
	}
	return json.Marshal(event)
}

func (e *MQTTEmitter) setConnected(connected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = connected
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors++
}
