// Package mqtt carries live fleet notifications over an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// DefaultTopic is the topic filter the service subscribes to.
const DefaultTopic = "fleet/notifications/#"

const connectTimeout = 10 * time.Second

// ErrTimeout is returned when the broker does not answer in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Broadcaster receives decoded live notifications.
type Broadcaster interface {
	Broadcast(n alerts.LiveNotification) (models.Alert, error)
}

// Options configures a broker connection.
type Options struct {
	Broker   string
	ClientID string
	Topic    string
}

// Connect opens a client to the broker.
func Connect(o Options) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	client := paho.NewClient(opts)
	if err := wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", o.Broker, err)
	}
	return client, nil
}

func wait(t paho.Token) error {
	if !t.WaitTimeout(connectTimeout) {
		return ErrTimeout
	}
	return t.Error()
}

// Subscriber forwards broker messages into the notification feed.
type Subscriber struct {
	client paho.Client
	topic  string
	feed   Broadcaster
	logger logrus.FieldLogger
}

// NewSubscriber creates a subscriber. client may be nil in tests that only
// exercise message handling.
func NewSubscriber(client paho.Client, topic string, feed Broadcaster, logger logrus.FieldLogger) *Subscriber {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Subscriber{client: client, topic: topic, feed: feed, logger: logger}
}

// Start subscribes to the topic filter.
func (s *Subscriber) Start() error {
	if err := wait(s.client.Subscribe(s.topic, 1, s.Handle)); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, err)
	}
	s.logger.WithField("topic", s.topic).Info("subscribed to live notifications")
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	if s.client == nil {
		return
	}
	if err := wait(s.client.Unsubscribe(s.topic)); err != nil {
		s.logger.WithError(err).Warn("mqtt unsubscribe failed")
	}
	s.client.Disconnect(250)
}

// Handle decodes one message and broadcasts it. Malformed messages are logged
// and dropped.
func (s *Subscriber) Handle(_ paho.Client, msg paho.Message) {
	n, err := Decode(msg.Topic(), msg.Payload())
	if err != nil {
		s.logger.WithError(err).WithField("topic", msg.Topic()).Warn("dropping malformed live notification")
		return
	}
	if _, err := s.feed.Broadcast(n); err != nil {
		s.logger.WithError(err).WithField("topic", msg.Topic()).Warn("live notification rejected")
	}
}

// Decode parses a notification payload. A topic of the form
// fleet/notifications/<vehicle-id> supplies the vehicle id when the payload
// has none.
func Decode(topic string, payload []byte) (alerts.LiveNotification, error) {
	var n alerts.LiveNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return n, fmt.Errorf("decode live notification: %w", err)
	}
	switch n.Severity {
	case "", models.SeverityUrgent, models.SeverityWarning, models.SeverityInfo:
	default:
		return n, fmt.Errorf("unknown severity %q", n.Severity)
	}
	if n.VehicleID == "" {
		parts := strings.Split(topic, "/")
		if len(parts) == 3 && parts[0] == "fleet" && parts[1] == "notifications" {
			n.VehicleID = parts[2]
		}
	}
	return n, nil
}

// Publisher sends live notifications to the broker.
type Publisher struct {
	client paho.Client
	prefix string
}

// NewPublisher creates a publisher writing under fleet/notifications.
func NewPublisher(client paho.Client) *Publisher {
	return &Publisher{client: client, prefix: "fleet/notifications"}
}

// Publish sends n on the vehicle's topic, or the general one when it has no vehicle.
func (p *Publisher) Publish(n alerts.LiveNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	topic := p.prefix + "/general"
	if n.VehicleID != "" {
		topic = p.prefix + "/" + n.VehicleID
	}
	if err := wait(p.client.Publish(topic, 1, false, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}
