// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ConnManager owns the single RabbitMQ connection and a fixed-size pool of
// channels created on it. Channels follow a strict borrow/return discipline:
// a borrowed channel belongs to exactly one caller until returned, and a
// channel found closed at borrow time is replaced transparently.
//
// Thread Safety: all methods are safe for concurrent use.
type ConnManager struct {
	cfg    RabbitMQConfig
	logger *zap.Logger

	// dial creates broker connections, can be overridden for mocking in tests.
	dial dialFunc

	// mu guards conn and serializes reconnect attempts.
	mu   sync.Mutex
	conn brokerConnection

	pool chan BrokerChannel
}

// NewConnManager connects to RabbitMQ with bounded exponential backoff and
// fills the channel pool. Exhausting the connect attempts is an
// unrecoverable startup error: the returned error wraps ErrBrokerUnavailable
// and no manager is returned.
func NewConnManager(cfg RabbitMQConfig, logger *zap.Logger) (*ConnManager, error) {
	m := &ConnManager{
		cfg:    cfg,
		logger: orNop(logger),
		dial:   defaultDial,
		pool:   make(chan BrokerChannel, cfg.PoolSize),
	}

	if err := m.connectWithBackoff(); err != nil {
		return nil, err
	}
	return m, nil
}

// connectWithBackoff dials the broker, retrying with exponential backoff:
// attempt k waits base * 2^(k-1) before the next try. The caller must hold
// mu (or be the constructor, before the manager is shared).
func (m *ConnManager) connectWithBackoff() error {
	backoff := m.cfg.ConnectBackoffBase
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxConnectAttempts; attempt++ {
		m.logger.Info("connecting to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", m.cfg.MaxConnectAttempts))

		conn, err := m.dial(m.cfg.URL())
		if err == nil {
			if err = m.fillPool(conn); err == nil {
				m.conn = conn
				m.logger.Info("RabbitMQ connected",
					zap.Int("poolSize", m.cfg.PoolSize))
				return nil
			}
			_ = conn.Close()
		}
		lastErr = err

		m.logger.Warn("RabbitMQ connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < m.cfg.MaxConnectAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return errors.Join(ErrBrokerUnavailable,
		fmt.Errorf("broker unreachable after %d attempts", m.cfg.MaxConnectAttempts),
		lastErr)
}

// fillPool discards whatever remains of the previous pool and creates
// PoolSize fresh channels on conn. Channels still borrowed at this point are
// detected closed on their next borrow and replaced there.
func (m *ConnManager) fillPool(conn brokerConnection) error {
drain:
	for {
		select {
		case ch := <-m.pool:
			_ = ch.Close()
		default:
			break drain
		}
	}

	for i := 0; i < m.cfg.PoolSize; i++ {
		ch, err := conn.Channel()
		if err != nil {
			return err
		}
		select {
		case m.pool <- ch:
		default:
			_ = ch.Close()
		}
	}
	return nil
}

// reconnect re-establishes the connection and rebuilds the pool. At most one
// caller performs the reconnect; the rest block on the mutex and re-check
// connectivity, so a burst of borrowers cannot start duplicate reconnects.
func (m *ConnManager) reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have already reconnected while this one waited.
	if m.connected() {
		return nil
	}

	m.logger.Warn("RabbitMQ connection lost, reconnecting")
	return m.connectWithBackoff()
}

func (m *ConnManager) connected() bool {
	return m.conn != nil && !m.conn.IsClosed()
}

// IsConnected reports whether the underlying connection is open.
func (m *ConnManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected()
}

// BorrowChannel blocks until a pooled channel is available or ctx is done.
// A channel found closed is replaced by creating a new one on the existing
// connection, or by a full reconnect if the connection itself is dead.
func (m *ConnManager) BorrowChannel(ctx context.Context) (BrokerChannel, error) {
	var ch BrokerChannel
	select {
	case ch = <-m.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !ch.IsClosed() {
		return ch, nil
	}

	m.logger.Debug("borrowed channel was closed, replacing")
	_ = ch.Close()
	return m.newChannel()
}

// ReturnChannel puts a borrowed channel back. Mandatory on every exit path
// of the borrower. If the pool is already full (it was rebuilt by a
// reconnect while this channel was out), the stale channel is closed instead.
func (m *ConnManager) ReturnChannel(ch BrokerChannel) {
	if ch == nil {
		return
	}
	select {
	case m.pool <- ch:
	default:
		_ = ch.Close()
	}
}

// newChannel creates a channel on the current connection, reconnecting first
// if the connection is dead.
func (m *ConnManager) newChannel() (BrokerChannel, error) {
	m.mu.Lock()
	conn := m.conn
	alive := m.connected()
	m.mu.Unlock()

	if alive {
		ch, err := conn.Channel()
		if err == nil {
			return ch, nil
		}
		m.logger.Warn("channel creation failed on live connection", zap.Error(err))
	}

	if err := m.reconnect(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	conn = m.conn
	m.mu.Unlock()
	return conn.Channel()
}

// Publish borrows a channel, publishes one message and returns the channel
// on every exit path. persistent=true requests the AMQP persistent delivery
// mode so the message survives a broker restart.
func (m *ConnManager) Publish(ctx context.Context, exchange, key string, body []byte, persistent bool) error {
	ch, err := m.BorrowChannel(ctx)
	if err != nil {
		return errors.Join(ErrBrokerUnavailable, err)
	}
	defer m.ReturnChannel(ch)

	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}

	err = ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		Body:         body,
	})
	if err != nil {
		return errors.Join(ErrBrokerUnavailable, err)
	}
	return nil
}

// DeclareTopology declares the chat exchange and one durable queue per room,
// bound under the room's routing key. Safe to call from every process at
// startup; declarations are idempotent on the broker side.
func (m *ConnManager) DeclareTopology(ctx context.Context, rooms []string) error {
	ch, err := m.BorrowChannel(ctx)
	if err != nil {
		return err
	}
	defer m.ReturnChannel(ch)

	if err := ch.ExchangeDeclare(chatExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %q: %w", chatExchange, err)
	}

	for _, room := range rooms {
		queue := roomKey(room)
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring queue %q: %w", queue, err)
		}
		if err := ch.QueueBind(queue, queue, chatExchange, false, nil); err != nil {
			return fmt.Errorf("binding queue %q: %w", queue, err)
		}
	}
	return nil
}

// Close closes all pooled channels and the underlying connection.
func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

drain:
	for {
		select {
		case ch := <-m.pool:
			_ = ch.Close()
		default:
			break drain
		}
	}

	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn.Close()
	}
	return nil
}
