// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// mockBrokerChannel is a mock implementation of BrokerChannel for testing.
type mockBrokerChannel struct {
	mock.Mock
}

func (m *mockBrokerChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *mockBrokerChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	args := m.Called(prefetchCount, prefetchSize, global)
	return args.Error(0)
}

func (m *mockBrokerChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ret := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	var ch <-chan amqp.Delivery
	if v := ret.Get(0); v != nil {
		ch = v.(<-chan amqp.Delivery)
	}
	return ch, ret.Error(1)
}

func (m *mockBrokerChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	ret := m.Called(name, kind, durable, autoDelete, internal, noWait, args)
	return ret.Error(0)
}

func (m *mockBrokerChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ret := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return ret.Get(0).(amqp.Queue), ret.Error(1)
}

func (m *mockBrokerChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	ret := m.Called(name, key, exchange, noWait, args)
	return ret.Error(0)
}

func (m *mockBrokerChannel) IsClosed() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockBrokerChannel) Close() error {
	args := m.Called()
	return args.Error(0)
}

// mockBrokerConnection is a mock implementation of brokerConnection for testing.
type mockBrokerConnection struct {
	mock.Mock
}

func (m *mockBrokerConnection) Channel() (BrokerChannel, error) {
	args := m.Called()
	var ch BrokerChannel
	if v := args.Get(0); v != nil {
		ch = v.(BrokerChannel)
	}
	return ch, args.Error(1)
}

func (m *mockBrokerConnection) IsClosed() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockBrokerConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

// mockRedisClient is a mock implementation of redisClient for testing.
type mockRedisClient struct {
	mock.Mock
}

func (m *mockRedisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// mockBroadcaster is a mock implementation of broadcaster for testing.
type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Broadcast(ctx context.Context, roomID string, env *Envelope) error {
	args := m.Called(ctx, roomID, env)
	return args.Error(0)
}

// mockChannelSource is a mock implementation of channelSource for testing.
type mockChannelSource struct {
	mock.Mock
}

func (m *mockChannelSource) BorrowChannel(ctx context.Context) (BrokerChannel, error) {
	args := m.Called(ctx)
	var ch BrokerChannel
	if v := args.Get(0); v != nil {
		ch = v.(BrokerChannel)
	}
	return ch, args.Error(1)
}

func (m *mockChannelSource) ReturnChannel(ch BrokerChannel) {
	m.Called(ch)
}

func (m *mockChannelSource) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

// mockDedupChecker is a mock implementation of dedupChecker for testing.
type mockDedupChecker struct {
	mock.Mock
}

func (m *mockDedupChecker) IsDuplicate(ctx context.Context, id string) bool {
	args := m.Called(ctx, id)
	return args.Bool(0)
}

func (m *mockDedupChecker) MarkSeen(ctx context.Context, id string) {
	m.Called(ctx, id)
}

// mockDeliveryRouter is a mock implementation of deliveryRouter for testing.
type mockDeliveryRouter struct {
	mock.Mock
}

func (m *mockDeliveryRouter) Process(ctx context.Context, env *Envelope) ProcessOutcome {
	args := m.Called(ctx, env)
	return args.Get(0).(ProcessOutcome)
}

// mockAcknowledger is a mock implementation of amqp.Acknowledger for
// asserting ack/nack decisions on deliveries.
type mockAcknowledger struct {
	mock.Mock
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	args := m.Called(tag, multiple)
	return args.Error(0)
}

func (m *mockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	args := m.Called(tag, multiple, requeue)
	return args.Error(0)
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	args := m.Called(tag, requeue)
	return args.Error(0)
}

// mockPublisher is a mock implementation of publisher for testing.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, exchange, key string, body []byte, persistent bool) error {
	args := m.Called(ctx, exchange, key, body, persistent)
	return args.Error(0)
}

func (m *mockPublisher) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

// fakeClientConn is a ClientConn that records what was sent to it.
type fakeClientConn struct {
	sent    [][]byte
	sendErr error
	closed  bool
}

func (c *fakeClientConn) Send(payload []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeClientConn) Close() error {
	c.closed = true
	return nil
}
