// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

// ProcessOutcome represents the result of routing one consumed envelope.
// The worker maps it directly onto the broker acknowledgment.
type ProcessOutcome int

const (
	// Delivered indicates the broadcast succeeded. The worker marks the
	// message seen and acks it, removing it from the queue.
	Delivered ProcessOutcome = iota

	// RetryExhausted indicates every retryable attempt failed. The worker
	// nacks with requeue so the broker redelivers later.
	RetryExhausted

	// Rejected indicates a non-retryable failure (missing room, payload that
	// will never serialize). The worker acks to drop the message.
	Rejected
)

// String returns the string representation of the ProcessOutcome.
func (o ProcessOutcome) String() string {
	switch o {
	case Delivered:
		return "Delivered"
	case RetryExhausted:
		return "RetryExhausted"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}
