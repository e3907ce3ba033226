// Package mqtt publishes announcements to an MQTT broker for remote
// caregivers and dashboards.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"echopath/internal/logger"
	"echopath/internal/models"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 2 * time.Second

// client is the part of paho.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
}

// Publisher implements services.AnnouncementSink. Publish hands the message
// to paho and returns; delivery is confirmed in the background.
type Publisher struct {
	client client
	paho   paho.Client
	topic  string
	qos    byte
	logger *logger.Logger

	published atomic.Int64
	failed    atomic.Int64
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(broker, clientID, topic string, qos byte, logger *logger.Logger) (*Publisher, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c paho.Client) {
		logger.Info("[MQTT] Connection established to %s as %s", broker, clientID)
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		logger.Warning("[MQTT] Connection lost, will auto-reconnect: %v", err)
	}

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		// ConnectRetry keeps dialing in the background; publishes are
		// skipped until the connection is up.
		logger.Warning("[MQTT] Broker %s not reachable yet, retrying in background", broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	p := newPublisher(c, topic, qos, logger)
	p.paho = c
	return p, nil
}

func newPublisher(c client, topic string, qos byte, logger *logger.Logger) *Publisher {
	return &Publisher{client: c, topic: topic, qos: qos, logger: logger}
}

func (p *Publisher) Name() string {
	return "mqtt"
}

// Publish sends the announcement to <topic>/<session id>.
func (p *Publisher) Publish(ctx context.Context, a models.Announcement) error {
	if !p.client.IsConnected() {
		p.failed.Add(1)
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(a)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}

	topic := p.topic
	if a.SessionID != "" {
		topic = topic + "/" + a.SessionID
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	go p.confirm(token, topic)
	return nil
}

func (p *Publisher) confirm(token paho.Token, topic string) {
	if !token.WaitTimeout(publishTimeout) {
		p.failed.Add(1)
		p.logger.Warning("[MQTT] Publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.failed.Add(1)
		p.logger.Warning("[MQTT] Publish to %s failed: %v", topic, err)
		return
	}
	p.published.Add(1)
}

// Stats returns published and failed counts.
func (p *Publisher) Stats() (published, failed int64) {
	return p.published.Load(), p.failed.Load()
}

// Close disconnects, waiting up to 250ms for in-flight messages.
func (p *Publisher) Close() error {
	if p.paho != nil {
		p.paho.Disconnect(250)
	}
	return nil
}
