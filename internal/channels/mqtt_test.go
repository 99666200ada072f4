package channels

import (
	"testing"

	"github.com/tindale/reeve/internal/config"
)

func testMQTT() *MQTT {
	return NewMQTT(config.MQTTConfig{Broker: "mqtt://broker:1883"}, nil, nil)
}

func TestSessionFromTopic(t *testing.T) {
	m := testMQTT()

	tests := []struct {
		topic   string
		session string
		ok      bool
	}{
		{"reeve/in/kitchen", "mqtt:kitchen", true},
		{"reeve/in", "mqtt:mqtt", true},
		{"reeve/in/", "mqtt:mqtt", true},
		{"reeve/out/kitchen", "", false},
		{"other/in/kitchen", "", false},
		{"reeve/status", "", false},
	}
	for _, tt := range tests {
		session, ok := m.sessionFromTopic(tt.topic)
		if ok != tt.ok || session != tt.session {
			t.Errorf("sessionFromTopic(%q) = %q, %v; want %q, %v",
				tt.topic, session, ok, tt.session, tt.ok)
		}
	}
}

func TestOutTopicRoundTrip(t *testing.T) {
	m := testMQTT()
	session, ok := m.sessionFromTopic("reeve/in/garage")
	if !ok {
		t.Fatal("inbound topic not recognized")
	}
	if got := m.outTopic(session); got != "reeve/out/garage" {
		t.Fatalf("outTopic = %q", got)
	}
}

func TestCustomPrefix(t *testing.T) {
	m := NewMQTT(config.MQTTConfig{TopicPrefix: "assistant"}, nil, nil)
	if m.inTopic() != "assistant/in/#" {
		t.Fatalf("inTopic = %q", m.inTopic())
	}
	if _, ok := m.sessionFromTopic("reeve/in/x"); ok {
		t.Fatal("default prefix matched despite custom prefix")
	}
}

func TestSendResponseNotConnected(t *testing.T) {
	if err := testMQTT().SendResponse("mqtt:kitchen", "hi"); err == nil {
		t.Fatal("expected error before Run establishes a connection")
	}
}
