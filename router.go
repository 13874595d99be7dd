// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// broadcaster is the subset of BroadcastGateway the router needs.
// This allows us to mock the gateway for testing.
type broadcaster interface {
	Broadcast(ctx context.Context, roomID string, env *Envelope) error
}

// Router validates a consumed envelope and drives the bounded broadcast
// retry loop, classifying each failure as retryable or not. It produces the
// ProcessOutcome the worker maps onto the broker acknowledgment.
type Router struct {
	gateway    broadcaster
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRouter builds a router. maxRetries is the number of retries after the
// first attempt, so a permanently failing broadcast sees maxRetries+1
// attempts in total. The inter-attempt delay is fixed, not exponential;
// the small retry ceiling keeps the worst-case stall bounded.
func NewRouter(gateway broadcaster, maxRetries int, retryDelay time.Duration, logger *zap.Logger) *Router {
	return &Router{
		gateway:    gateway,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     orNop(logger),
	}
}

// Process attempts to broadcast env to its room.
//
// An envelope with no room identifier is Rejected immediately, without any
// network call. A cancellation observed while sleeping between retries
// returns RetryExhausted: conservative, the broker redelivers rather than
// the message being silently dropped.
func (r *Router) Process(ctx context.Context, env *Envelope) ProcessOutcome {
	if env.RoomID == "" {
		r.logger.Warn("envelope has no roomId, discarding",
			zap.String("messageId", env.MessageID))
		return Rejected
	}

	for attempt := 1; attempt <= r.maxRetries+1; attempt++ {
		err := r.gateway.Broadcast(ctx, env.RoomID, env)
		if err == nil {
			r.logger.Debug("broadcast succeeded",
				zap.String("messageId", env.MessageID),
				zap.String("roomId", env.RoomID),
				zap.Int("attempt", attempt))
			return Delivered
		}

		if !retryableError(err) {
			r.logger.Error("non-retryable broadcast failure",
				zap.String("messageId", env.MessageID),
				zap.String("errorType", errorType(err)),
				zap.Error(err))
			return Rejected
		}

		if attempt == r.maxRetries+1 {
			r.logger.Error("broadcast failed all attempts, will requeue",
				zap.String("messageId", env.MessageID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return RetryExhausted
		}

		r.logger.Warn("broadcast attempt failed, retrying",
			zap.String("messageId", env.MessageID),
			zap.Int("attempt", attempt),
			zap.Duration("retryDelay", r.retryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return RetryExhausted
		case <-time.After(r.retryDelay):
		}
	}

	return RetryExhausted
}
