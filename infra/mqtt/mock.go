package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// mockToken is a pre-completed Paho token for tests.
type mockToken struct{ err error }

func (t mockToken) Wait() bool                     { return true }
func (t mockToken) WaitTimeout(time.Duration) bool { return true }
func (t mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t mockToken) Error() error { return t.err }

// MockClient records published payloads and subscription handlers. Tests
// inject messages by calling the stored handlers directly.
type MockClient struct {
	mu        sync.Mutex
	Published map[string][]string
	Retained  map[string]bool
	Handlers  map[string]paho.MessageHandler
	PubErr    error
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		Published: make(map[string][]string),
		Retained:  make(map[string]bool),
		Handlers:  make(map[string]paho.MessageHandler),
	}
}

func (m *MockClient) IsConnected() bool      { return true }
func (m *MockClient) Connect() paho.Token    { return mockToken{} }
func (m *MockClient) Disconnect(quiesce uint) {}

func (m *MockClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PubErr != nil {
		return mockToken{err: m.PubErr}
	}
	var s string
	switch v := payload.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	}
	m.Published[topic] = append(m.Published[topic], s)
	m.Retained[topic] = retained
	return mockToken{}
}

func (m *MockClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[topic] = callback
	return mockToken{}
}

// Deliver invokes the handler subscribed to topic with the given payload.
func (m *MockClient) Deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	h, ok := m.Handlers[topic]
	m.mu.Unlock()
	if !ok {
		return false
	}
	h(nil, mockMessage{topic: topic, payload: payload})
	return true
}

// Last returns the most recent payload published on topic.
func (m *MockClient) Last(topic string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.Published[topic]
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[len(msgs)-1], true
}

// mockMessage implements paho.Message for injected payloads.
type mockMessage struct {
	topic   string
	payload []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.payload }
func (m mockMessage) Ack()              {}
