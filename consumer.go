// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// heartbeatInterval is how often an idle worker refreshes its liveness
// timestamp while blocked waiting for deliveries.
const heartbeatInterval = 5 * time.Second

// channelSource is the subset of ConnManager the consumer pool needs.
type channelSource interface {
	BorrowChannel(ctx context.Context) (BrokerChannel, error)
	ReturnChannel(ch BrokerChannel)
	IsConnected() bool
}

// dedupChecker is the subset of DedupStore the worker needs.
type dedupChecker interface {
	IsDuplicate(ctx context.Context, id string) bool
	MarkSeen(ctx context.Context, id string)
}

// deliveryRouter is the subset of Router the worker needs.
type deliveryRouter interface {
	Process(ctx context.Context, env *Envelope) ProcessOutcome
}

// ConsumerPool partitions rooms across a fixed set of workers and runs them.
// The partition mapping is computed once at Start and never rebalanced: a
// room belongs to exactly one worker for the pool's lifetime, which together
// with prefetch-one consumption gives strict in-order processing per room.
type ConsumerPool struct {
	cfg     ConsumerConfig
	source  channelSource
	dedup   dedupChecker
	router  deliveryRouter
	metrics *PipelineMetrics
	logger  *zap.Logger

	reconnectDelay time.Duration

	mu      sync.Mutex
	workers []*consumerWorker
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConsumerPool wires the pool's collaborators. metrics may be nil.
func NewConsumerPool(cfg ConsumerConfig, reconnectDelay time.Duration, source channelSource,
	dedup dedupChecker, router deliveryRouter, metrics *PipelineMetrics, logger *zap.Logger) *ConsumerPool {
	return &ConsumerPool{
		cfg:            cfg,
		source:         source,
		dedup:          dedup,
		router:         router,
		metrics:        metrics,
		logger:         orNop(logger),
		reconnectDelay: reconnectDelay,
	}
}

// Start computes the room assignment and launches one goroutine per worker.
// The effective worker count is min(configured, room count).
func (p *ConsumerPool) Start(ctx context.Context, rooms []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyStarted
	}
	if len(rooms) == 0 {
		return fmt.Errorf("no rooms to consume")
	}

	assignments := assignRooms(rooms, p.cfg.Workers)
	p.logger.Info("starting consumer pool",
		zap.Int("workers", len(assignments)),
		zap.Int("rooms", len(rooms)))

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	var wg sync.WaitGroup
	for i, assigned := range assignments {
		w := &consumerWorker{
			id:             fmt.Sprintf("worker-%d", i+1),
			rooms:          assigned,
			source:         p.source,
			dedup:          p.dedup,
			router:         p.router,
			poolMetrics:    p.metrics,
			reconnectDelay: p.reconnectDelay,
			logger:         p.logger,
		}
		w.metrics = NewWorkerMetrics(w.id)
		p.workers = append(p.workers, w)

		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
		p.logger.Info("started worker",
			zap.String("worker", w.id),
			zap.Strings("rooms", assigned))
	}

	go func() {
		wg.Wait()
		close(p.done)
	}()
	return nil
}

// Shutdown stops the consume loops after their current delivery and waits up
// to the configured timeout before giving up on still-running workers.
// Calling Shutdown on a pool that was never started returns ErrNotStarted.
func (p *ConsumerPool) Shutdown() error {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}

	p.logger.Info("shutting down consumer pool")
	cancel()

	select {
	case <-done:
		p.logger.Info("consumer pool shutdown complete")
	case <-time.After(p.cfg.ShutdownTimeout):
		p.logger.Warn("consumer pool shutdown timed out, abandoning workers",
			zap.Duration("timeout", p.cfg.ShutdownTimeout))
	}
	return nil
}

// Metrics returns a snapshot of every worker's counters.
func (p *ConsumerPool) Metrics() []WorkerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]WorkerStatus, 0, len(p.workers))
	for _, w := range p.workers {
		statuses = append(statuses, w.metrics.Snapshot())
	}
	return statuses
}

// Healthy reports whether every worker currently holds a live subscription.
func (p *ConsumerPool) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return false
	}
	for _, w := range p.workers {
		if !w.metrics.Healthy() {
			return false
		}
	}
	return true
}

// consumerWorker owns a fixed set of rooms and consumes their queues over a
// single borrowed channel with prefetch-one.
type consumerWorker struct {
	id    string
	rooms []string

	source      channelSource
	dedup       dedupChecker
	router      deliveryRouter
	metrics     *WorkerMetrics
	poolMetrics *PipelineMetrics

	reconnectDelay time.Duration
	logger         *zap.Logger
}

// run is the worker's outer loop: hold a consume session until it fails,
// then mark unhealthy, wait the fixed reconnect delay and resubscribe. This
// fixed delay is the sole retry strategy for broker connectivity here; only
// the manager's initial connect backs off exponentially.
func (w *consumerWorker) run(ctx context.Context) {
	w.logger.Info("worker starting",
		zap.String("worker", w.id),
		zap.Strings("rooms", w.rooms))

	for ctx.Err() == nil {
		err := w.consumeSession(ctx)
		if ctx.Err() != nil {
			break
		}

		w.metrics.SetHealthy(false)
		w.metrics.RecordFailure()
		w.poolMetrics.recordFailure(w.id)
		w.logger.Error("consume session failed, reconnecting",
			zap.String("worker", w.id),
			zap.Duration("delay", w.reconnectDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
		case <-time.After(w.reconnectDelay):
		}
	}

	w.metrics.SetHealthy(false)
	w.logger.Info("worker stopped", zap.String("worker", w.id))
}

// consumeSession borrows a channel, subscribes to every assigned room queue
// and processes deliveries until the channel dies or ctx is cancelled. A
// nil return means cancellation; any error means the session must be
// re-established.
func (w *consumerWorker) consumeSession(ctx context.Context) error {
	ch, err := w.source.BorrowChannel(ctx)
	if err != nil {
		return fmt.Errorf("borrowing channel: %w", err)
	}
	defer w.source.ReturnChannel(ch)

	// One unacknowledged message at a time across all subscriptions. This is
	// what turns per-queue FIFO into strict in-order processing per room.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("setting prefetch: %w", err)
	}

	deliveries := make(chan amqp.Delivery)
	var subs sync.WaitGroup

	for _, room := range w.rooms {
		queue := roomKey(room)
		sub, err := ch.Consume(queue, w.id+"."+queue, false, false, false, false, nil)
		if err != nil {
			// Earlier rooms may already be subscribed. Close the channel so
			// the broker cancels them and the pool replaces it on the next
			// borrow, and drain the merge goroutines so they can exit.
			go func() {
				subs.Wait()
				close(deliveries)
			}()
			go func() {
				for range deliveries {
				}
			}()
			_ = ch.Close()
			return fmt.Errorf("subscribing to %q: %w", queue, err)
		}
		w.logger.Info("subscribed",
			zap.String("worker", w.id),
			zap.String("queue", queue))

		subs.Add(1)
		go func() {
			defer subs.Done()
			for d := range sub {
				deliveries <- d
			}
		}()
	}

	// When every subscription channel closes (connection loss), the merged
	// stream closes too and the session ends.
	go func() {
		subs.Wait()
		close(deliveries)
	}()

	w.metrics.SetHealthy(true)
	w.metrics.Heartbeat()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Drain the merge goroutines so they are not stuck sending.
			go func() {
				for range deliveries {
				}
			}()
			_ = ch.Close()
			return nil
		case <-ticker.C:
			w.metrics.Heartbeat()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("subscriptions closed")
			}
			w.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery resolves one delivery to exactly one broker acknowledgment:
// deserialize, dedup-check, route, then map the outcome.
func (w *consumerWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	w.metrics.Heartbeat()

	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		// Poison message: ack it away so it can never block the queue.
		w.logger.Error("undecodable payload, dropping",
			zap.String("worker", w.id),
			zap.String("queue", d.RoutingKey),
			zap.Error(err))
		w.ack(d)
		w.metrics.RecordFailure()
		w.poolMetrics.recordFailure(w.id)
		return
	}

	if w.dedup.IsDuplicate(ctx, env.MessageID) {
		w.logger.Info("duplicate message, skipping",
			zap.String("worker", w.id),
			zap.String("messageId", env.MessageID))
		w.ack(d)
		w.metrics.RecordDuplicate()
		w.poolMetrics.recordDuplicate(w.id)
		return
	}

	switch outcome := w.router.Process(ctx, &env); outcome {
	case Delivered:
		// Mark seen strictly after the confirmed delivery, then remove
		// the message from the queue.
		w.dedup.MarkSeen(ctx, env.MessageID)
		w.ack(d)
		w.metrics.RecordProcessed()
		w.poolMetrics.recordProcessed(w.id)

	case RetryExhausted:
		w.nack(d, true)
		w.metrics.RecordFailure()
		w.poolMetrics.recordFailure(w.id)

	case Rejected:
		w.ack(d)
		w.logger.Warn("message discarded",
			zap.String("worker", w.id),
			zap.String("messageId", env.MessageID))

	default:
		w.logger.Error("unknown outcome, requeueing",
			zap.String("worker", w.id),
			zap.Stringer("outcome", outcome))
		w.nack(d, true)
	}
}

// ack acknowledges a delivery, logging rather than propagating failures: an
// ack that cannot reach the broker means the channel is dying and the
// session loop will notice on its own.
func (w *consumerWorker) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		w.logger.Error("ack failed",
			zap.String("worker", w.id),
			zap.Uint64("deliveryTag", d.DeliveryTag),
			zap.Error(err))
	}
}

func (w *consumerWorker) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		w.logger.Error("nack failed",
			zap.String("worker", w.id),
			zap.Uint64("deliveryTag", d.DeliveryTag),
			zap.Error(err))
	}
}
