package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type publishedMessage struct {
	Topic    string
	Payload  string
	Retained bool
}

// FakeClient records publishes and routes test-injected messages to
// subscribed handlers.
type FakeClient struct {
	Published     []publishedMessage
	Subscriptions map[string]paho.MessageHandler
	Connected     bool
}

func NewFakeClient() *FakeClient {
	return &FakeClient{Subscriptions: map[string]paho.MessageHandler{}, Connected: true}
}

func (c *FakeClient) IsConnected() bool      { return c.Connected }
func (c *FakeClient) IsConnectionOpen() bool { return c.Connected }
func (c *FakeClient) Connect() paho.Token    { return &fakeToken{} }
func (c *FakeClient) Disconnect(uint)        { c.Connected = false }

func (c *FakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	c.Published = append(c.Published, publishedMessage{Topic: topic, Payload: body, Retained: retained})
	return &fakeToken{}
}

func (c *FakeClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	c.Subscriptions[topic] = callback
	return &fakeToken{}
}

func (c *FakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	for topic := range filters {
		c.Subscriptions[topic] = callback
	}
	return &fakeToken{}
}

func (c *FakeClient) Unsubscribe(topics ...string) paho.Token {
	for _, topic := range topics {
		delete(c.Subscriptions, topic)
	}
	return &fakeToken{}
}

func (c *FakeClient) AddRoute(string, paho.MessageHandler) {}

func (c *FakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

// Receive delivers a message to the handler subscribed to the topic, as the
// broker would.
func (c *FakeClient) Receive(topic, payload string) {
	if handler, found := c.Subscriptions[topic]; found {
		handler(c, &fakeMessage{topic: topic, payload: []byte(payload)})
	}
}

// LastPayload returns the most recent payload published to the topic, false
// when none was.
func (c *FakeClient) LastPayload(topic string) (string, bool) {
	for i := len(c.Published) - 1; i >= 0; i-- {
		if c.Published[i].Topic == topic {
			return c.Published[i].Payload, true
		}
	}
	return "", false
}
