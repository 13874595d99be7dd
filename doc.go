// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package chatflow bridges real-time chat clients to RabbitMQ and back.
//
// # Overview
//
// Clients publish chat events over persistent WebSocket connections. The
// ingress server validates each event, wraps it into a durable envelope and
// publishes it to a direct exchange partitioned by room. A pool of consumer
// workers drains the per-room queues, deduplicates against Redis, and fans
// delivered messages back out to connected clients through an internal HTTP
// callback.
//
// The pipeline, end to end:
//
//	client → IngressServer → ConnManager.Publish → RabbitMQ (room.<id> queues)
//	       → consumer worker → DedupStore → Router → BroadcastGateway
//	       → FanoutServer → connected clients in that room
//
// # Delivery Guarantees
//
// Delivery is at-least-once with idempotent-skip deduplication. Within a
// room, fan-out order equals publish order: RabbitMQ preserves per-queue
// FIFO, every room is owned by exactly one worker for the lifetime of the
// pool, and each worker holds at most one unacknowledged message at a time
// (prefetch-one). Across rooms there is no ordering guarantee and none is
// required.
//
// Deduplication fails open: if Redis is unreachable, messages pass through
// rather than being dropped. Combined with at-least-once broker semantics a
// client can, in rare races, see the same message twice. That trade-off
// (availability over strict exactly-once) is deliberate.
//
// # Quick Start
//
// The module ships two binaries. cmd/chatflow-server hosts the WebSocket
// ingress and the internal fan-out receiver; cmd/chatflow-consumer hosts the
// consumer pool, deduplication and the health surface. Both read the same
// YAML configuration with environment overrides:
//
//	cfg, err := chatflow.LoadConfig("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	manager, err := chatflow.NewConnManager(cfg.RabbitMQ, logger)
//	if err != nil {
//	    log.Fatal(err) // broker unreachable after bounded retries is fatal
//	}
//	defer manager.Close()
//
// # Acknowledgment Semantics
//
// Each consumed delivery resolves to exactly one ProcessOutcome:
//
//   - Delivered: mark seen in Redis, then ack (remove from queue).
//   - RetryExhausted: nack with requeue; the broker redelivers.
//   - Rejected: ack to drop; retrying would not help.
//
// Malformed payloads are acked away immediately so a poison message can
// never block its queue.
package chatflow
