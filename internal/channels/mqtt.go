package channels

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/tindale/reeve/internal/config"
)

// MQTT is the broker-backed channel. Inbound messages arrive on
// <prefix>/in/<session>; replies go out on <prefix>/out/<session>.
// The channel is deliberately non-streaming: a broker round-trip per
// token would flood subscribers, so the sink coalesces output into
// whole messages before they reach Publish.
type MQTT struct {
	logger  *slog.Logger
	inbound InboundFunc
	cfg     config.MQTTConfig
	prefix  string
	cm      *autopaho.ConnectionManager
}

// NewMQTT creates the MQTT channel. It does not connect; call Run.
func NewMQTT(cfg config.MQTTConfig, inbound InboundFunc, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "reeve"
	}
	return &MQTT{
		logger:  logger.With("channel", "mqtt"),
		inbound: inbound,
		cfg:     cfg,
		prefix:  prefix,
	}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) inTopic() string    { return m.prefix + "/in/#" }
func (m *MQTT) availTopic() string { return m.prefix + "/status" }

// Run connects to the broker and processes inbound messages until ctx
// is cancelled. Reconnects are handled by the connection manager; the
// subscription is re-established on every (re-)connect.
func (m *MQTT) Run(ctx context.Context) error {
	brokerURL, err := url.Parse(m.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: m.cfg.Username,
		ConnectPassword: []byte(m.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   m.availTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			m.logger.Info("mqtt connected", "broker", m.cfg.Broker)
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{{Topic: m.inTopic(), QoS: 1}},
			}); err != nil {
				m.logger.Warn("mqtt subscribe failed", "topic", m.inTopic(), "error", err)
			}
			if _, err := cm.Publish(ctx, &paho.Publish{
				Topic: m.availTopic(), Payload: []byte("online"), QoS: 1, Retain: true,
			}); err != nil {
				m.logger.Warn("mqtt availability publish failed", "error", err)
			}
		},
		OnConnectError: func(err error) {
			m.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "reeve-" + m.prefix,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					m.handleInbound(ctx, pr.Packet)
					return true, nil
				},
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	m.cm = cm

	<-ctx.Done()
	return nil
}

func (m *MQTT) handleInbound(ctx context.Context, p *paho.Publish) {
	session, ok := m.sessionFromTopic(p.Topic)
	if !ok {
		m.logger.Debug("ignoring message on unexpected topic", "topic", p.Topic)
		return
	}
	text := strings.TrimSpace(string(p.Payload))
	if text == "" {
		return
	}
	m.logger.Debug("mqtt message received", "topic", p.Topic, "session_id", session, "chars", len(text))
	go m.inbound(ctx, session, text)
}

// sessionFromTopic extracts the session id from <prefix>/in/<session>.
// An empty trailing segment falls back to "mqtt".
func (m *MQTT) sessionFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, m.prefix+"/in")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return "", false
	}
	session := strings.Trim(rest, "/")
	if session == "" {
		session = "mqtt"
	}
	return "mqtt:" + session, true
}

// outTopic maps a session id back to its reply topic.
func (m *MQTT) outTopic(sessionID string) string {
	session := strings.TrimPrefix(sessionID, "mqtt:")
	return m.prefix + "/out/" + session
}

// SendResponse publishes a whole message to the session's reply topic.
func (m *MQTT) SendResponse(sessionID, text string) error {
	if m.cm == nil {
		return fmt.Errorf("mqtt not connected")
	}
	_, err := m.cm.Publish(context.Background(), &paho.Publish{
		Topic:   m.outTopic(sessionID),
		Payload: []byte(text),
		QoS:     1,
	})
	if err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}
