// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// broadcastRequest is the wire body of the internal fan-out call. Message
// carries the serialized envelope exactly as it will be pushed to clients.
type broadcastRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// broadcastResponse is the fan-out receiver's reply.
type broadcastResponse struct {
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
	RoomID string `json:"roomId"`
}

// BroadcastGateway is the outbound HTTP client that invokes the fan-out
// receiver on the ingress side. The HTTP client is safe for concurrent use
// and shared across all consumer workers.
type BroadcastGateway struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewBroadcastGateway builds a gateway pointed at the fan-out endpoint, with
// a bounded connect timeout and a longer overall call timeout.
func NewBroadcastGateway(cfg BroadcastConfig, logger *zap.Logger) *BroadcastGateway {
	return &BroadcastGateway{
		url: cfg.URL,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
			},
		},
		logger: orNop(logger),
	}
}

// Broadcast serializes the envelope and posts it to the fan-out receiver.
//
// Failure classification:
//   - serialization failure → non-retryable (a structurally bad envelope
//     will never serialize correctly on retry)
//   - non-2xx status, timeout, connection failure → retryable (the receiver
//     may be transiently overloaded or briefly unreachable)
func (g *BroadcastGateway) Broadcast(ctx context.Context, roomID string, env *Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return &BroadcastError{
			err:       errors.Join(ErrSerialization, err),
			retryable: false,
		}
	}

	body, err := json.Marshal(broadcastRequest{
		RoomID:  roomID,
		Message: string(payload),
	})
	if err != nil {
		return &BroadcastError{
			err:       errors.Join(ErrSerialization, err),
			retryable: false,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return &BroadcastError{
			err:       errors.Join(ErrBroadcast, err),
			retryable: false,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// Network failure, timeout, connection refused: all retryable.
		return &BroadcastError{
			err:       errors.Join(ErrBroadcast, err),
			retryable: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BroadcastError{
			err: errors.Join(ErrBroadcast,
				fmt.Errorf("fan-out receiver returned HTTP %d", resp.StatusCode)),
			retryable: true,
		}
	}

	var result broadcastResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&result); err == nil {
		g.logger.Debug("broadcast delivered",
			zap.String("roomId", roomID),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
	}
	return nil
}
