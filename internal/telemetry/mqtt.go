// Package telemetry mirrors router traffic onto an MQTT broker.
package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"RoverLink/internal/model"
	"RoverLink/internal/parser"
	"RoverLink/internal/util"
)

// ErrNotConnected is returned when publishing before Connect succeeded.
var ErrNotConnected = errors.New("telemetry: mqtt not connected")

const (
	defaultPrefix  = "roverlink"
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Payload encodings.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

type publishFunc func(topic string, qos byte, payload []byte) error

// MQTTBridge publishes vehicle status, target telemetry and the vehicle list,
// and accepts drive commands on <prefix>/control/<vehicle_id>.
type MQTTBridge struct {
	cfg    model.MQTTConfig
	client mqtt.Client
	log    *logrus.Entry

	// OnControl receives commands arriving on the control topic.
	OnControl func(model.Control)

	publish publishFunc

	mu        sync.RWMutex
	connected bool
	published map[string]uint64
	errors    uint64
}

// NewMQTTBridge returns a bridge; nothing is dialed until Connect.
func NewMQTTBridge(cfg model.MQTTConfig) *MQTTBridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = "roverlink-base"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingJSON
	}
	return &MQTTBridge{
		cfg:       cfg,
		log:       util.Component("mqtt"),
		published: map[string]uint64{},
	}
}

func broker(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}

// Connect dials the broker with auto reconnect and subscribes to the control
// topic.
func (b *MQTTBridge) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker(b.cfg.Broker))
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		b.setConnected(true)
		b.log.WithFields(util.Fields{"broker": b.cfg.Broker, "client_id": b.cfg.ClientID}).Info("mqtt connection established")
		// resubscribe after every reconnect
		c.Subscribe(b.ControlTopic("+"), b.cfg.QoS, b.handleControl)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.setConnected(false)
		b.log.WithError(err).Warn("mqtt connection lost, will auto-reconnect")
	}

	b.client = mqtt.NewClient(opts)
	b.log.WithField("broker", b.cfg.Broker).Info("connecting to mqtt broker")
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect %s: timeout", b.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.cfg.Broker, err)
	}
	b.publish = func(topic string, qos byte, payload []byte) error {
		t := b.client.Publish(topic, qos, false, payload)
		if !t.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return t.Error()
	}
	b.setConnected(true)
	return nil
}

func (b *MQTTBridge) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

// StatusTopic is where a vehicle's status reports go.
func (b *MQTTBridge) StatusTopic(vehicleID string) string {
	return b.cfg.TopicPrefix + "/status/" + vehicleID
}

// TelemetryTopic is where tracked targets go, one topic per object type.
func (b *MQTTBridge) TelemetryTopic(objectType string) string {
	if objectType == "" {
		objectType = "unknown"
	}
	return b.cfg.TopicPrefix + "/telemetry/" + objectType
}

// VehiclesTopic carries the registered vehicle list.
func (b *MQTTBridge) VehiclesTopic() string { return b.cfg.TopicPrefix + "/vehicles" }

// ControlTopic is the subscription for commands to one vehicle ("+" for all).
func (b *MQTTBridge) ControlTopic(vehicleID string) string {
	return b.cfg.TopicPrefix + "/control/" + vehicleID
}

func (b *MQTTBridge) encode(v any) ([]byte, error) {
	if b.cfg.Encoding == EncodingMsgpack {
		return parser.EncodeMsgpack(v)
	}
	return parser.Encode(v)
}

func (b *MQTTBridge) send(topic string, payload []byte, err error) error {
	if err == nil {
		b.mu.RLock()
		up := b.connected && b.publish != nil
		b.mu.RUnlock()
		if !up {
			err = ErrNotConnected
		} else {
			err = b.publish(topic, b.cfg.QoS, payload)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.errors++
		return err
	}
	b.published[topic]++
	return nil
}

// PublishStatus mirrors a vehicle status report.
func (b *MQTTBridge) PublishStatus(s model.VehicleStatus) error {
	data, err := b.encode(s)
	return b.send(b.StatusTopic(s.VehicleID), data, err)
}

// PublishTelemetry mirrors a tracked target.
func (b *MQTTBridge) PublishTelemetry(t model.Telemetry) error {
	data, err := b.encode(t)
	return b.send(b.TelemetryTopic(t.ObjectType), data, err)
}

// PublishVehicles mirrors the registered vehicle ids.
func (b *MQTTBridge) PublishVehicles(ids []string) error {
	data, err := b.encode(parser.VehicleListMessage(ids))
	return b.send(b.VehiclesTopic(), data, err)
}

func (b *MQTTBridge) handleControl(_ mqtt.Client, msg mqtt.Message) {
	id := strings.TrimPrefix(msg.Topic(), b.ControlTopic(""))
	decode := parser.DecodeControl
	if b.cfg.Encoding == EncodingMsgpack {
		decode = parser.DecodeMsgpackControl
	}
	c, err := decode(msg.Payload())
	if err != nil {
		b.log.WithError(err).WithField("topic", msg.Topic()).Warn("ignoring non-control mqtt message")
		return
	}
	if c.VehicleID == "" {
		c.VehicleID = id
	}
	if b.OnControl != nil {
		b.OnControl(c)
	}
}

// Stats is a snapshot of publish counters.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns publish counters per topic.
func (b *MQTTBridge) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pub := make(map[string]uint64, len(b.published))
	for k, v := range b.published {
		pub[k] = v
	}
	return Stats{Connected: b.connected, Published: pub, Errors: b.errors}
}

// Disconnect closes the broker connection.
func (b *MQTTBridge) Disconnect() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
		b.log.Info("mqtt disconnected")
	}
	b.setConnected(false)
}
