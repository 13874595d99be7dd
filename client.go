// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BrokerChannel is the subset of amqp091.Channel methods the pipeline needs.
// This allows us to mock channels for testing while using real AMQP channels
// in production.
type BrokerChannel interface {
	// PublishWithContext publishes a message to an exchange with a routing key.
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error

	// Qos sets the prefetch limit for deliveries on this channel.
	Qos(prefetchCount, prefetchSize int, global bool) error

	// Consume starts delivering messages from a queue on a returned channel.
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)

	// ExchangeDeclare declares an exchange if it does not already exist.
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error

	// QueueDeclare declares a queue if it does not already exist.
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)

	// QueueBind binds a queue to an exchange under a routing key.
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error

	// IsClosed reports whether the channel has been closed by the server or client.
	IsClosed() bool

	// Close closes the channel.
	Close() error
}

// Verify that *amqp.Channel implements BrokerChannel at compile time.
var _ BrokerChannel = (*amqp.Channel)(nil)

// brokerConnection is the subset of amqp091.Connection the manager uses.
type brokerConnection interface {
	Channel() (BrokerChannel, error)
	IsClosed() bool
	Close() error
}

// dialFunc opens a broker connection from a URL.
// This allows dependency injection for testing.
type dialFunc func(url string) (brokerConnection, error)

// defaultDial is the production dialer that uses amqp091.
func defaultDial(url string) (brokerConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn}, nil
}

// amqpConnection adapts *amqp.Connection to brokerConnection; the wrapper is
// needed only because Channel() returns the concrete channel type.
type amqpConnection struct {
	*amqp.Connection
}

func (c *amqpConnection) Channel() (BrokerChannel, error) {
	return c.Connection.Channel()
}
