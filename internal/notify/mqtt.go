package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/logfields"
)

const mqttTimeout = 5 * time.Second

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes to "<prefix>/<subject with dots as slashes>".
type MQTT struct {
	client mqttClient
	prefix string
	qos    byte
}

// NewMQTT connects with automatic reconnection.
func NewMQTT(cfg config.MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost, will auto-reconnect", slog.String("broker", cfg.Broker), logfields.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		client.Disconnect(0)
		return nil, errors.NetworkError("MQTT connection timeout").WithContext("broker", cfg.Broker).Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.NetworkError("MQTT connection failed").WithCause(err).WithContext("broker", cfg.Broker).Build()
	}

	slog.Info("MQTT publisher initialized", "broker", cfg.Broker, "client_id", cfg.ClientID, "topic", cfg.Topic)
	return &MQTT{client: client, prefix: cfg.Topic, qos: cfg.QoS}, nil
}

func (m *MQTT) Publish(ctx context.Context, subject string, payload []byte) error {
	topic := m.prefix + "/" + strings.ReplaceAll(subject, ".", "/")
	token := m.client.Publish(topic, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return errors.NetworkError("MQTT publish interrupted").WithCause(ctx.Err()).WithContext("topic", topic).Build()
	case <-time.After(mqttTimeout):
		return errors.NetworkError("MQTT publish timeout").WithContext("topic", topic).Build()
	}
	if err := token.Error(); err != nil {
		return errors.NetworkError("failed to publish to MQTT").WithCause(err).WithContext("topic", topic).Build()
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
