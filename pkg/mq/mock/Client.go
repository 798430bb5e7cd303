// Package mock provides an in-memory stand-in for the mq client in unit tests.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"rotaviz.dev/rotaviz/pkg/mq"
)

// MockClient implements mq.ClientInterface. It records every publish and
// returns the configured errors and delivery channel.
type MockClient struct {
	mu sync.Mutex

	// PushError is returned by Push.
	PushError error
	// PushCalls records the arguments of every Push call.
	PushCalls []PushCall

	// UnsafePushError is returned by UnsafePush.
	UnsafePushError error
	// UnsafePushCalls records the arguments of every UnsafePush call.
	UnsafePushCalls []PushCall

	// ConsumeChannel and ConsumeError are returned by Consume.
	ConsumeChannel <-chan amqp.Delivery
	ConsumeError   error

	// CloseError is returned by Close; CloseCalls counts invocations.
	CloseError error
	CloseCalls int
}

// PushCall records the arguments of a single publish.
type PushCall struct {
	Ctx  context.Context
	Data []byte
}

// NewMockClient creates a MockClient that succeeds on every call.
func NewMockClient() *MockClient {
	return &MockClient{
		ConsumeChannel: make(chan amqp.Delivery),
	}
}

// Push implements mq.ClientInterface.
func (m *MockClient) Push(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = append(m.PushCalls, PushCall{Ctx: ctx, Data: data})
	return m.PushError
}

// UnsafePush implements mq.ClientInterface.
func (m *MockClient) UnsafePush(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnsafePushCalls = append(m.UnsafePushCalls, PushCall{Ctx: ctx, Data: data})
	return m.UnsafePushError
}

// Consume implements mq.ClientInterface.
func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ConsumeChannel, m.ConsumeError
}

// Close implements mq.ClientInterface.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	return m.CloseError
}

var _ mq.ClientInterface = (*MockClient)(nil)
