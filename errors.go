// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import "errors"

var (
	// ErrValidation indicates a client event failed field validation.
	ErrValidation = &metricError{
		metric:  "validation_error",
		message: "validation error",
	}

	// ErrSerialization indicates a payload could not be encoded or decoded.
	ErrSerialization = &metricError{
		metric:  "serialization_error",
		message: "serialization error",
	}

	// ErrBrokerUnavailable indicates RabbitMQ could not be reached.
	ErrBrokerUnavailable = &metricError{
		metric:  "broker_unavailable",
		message: "broker unavailable",
	}

	// ErrBroadcast indicates the fan-out receiver rejected or never saw the call.
	ErrBroadcast = &metricError{
		metric:  "broadcast_error",
		message: "broadcast error",
	}

	// ErrNotStarted indicates the component has not been started.
	ErrNotStarted = &metricError{
		metric:  "not_started",
		message: "not started",
	}

	// ErrAlreadyStarted indicates the component has already been started.
	ErrAlreadyStarted = &metricError{
		metric:  "already_started",
		message: "already started",
	}
)

// metricError is an internal error type that wraps errors with a type classification
// for metrics and observability. The metric field provides a string label for grouping
// errors in metrics systems.
type metricError struct {
	metric  string // Type classification for metrics (e.g., "validation_error", "broadcast_error")
	message string // Human-readable message
}

// Error implements the error interface.
func (e *metricError) Error() string {
	return e.message
}

func (e *metricError) Metric() string {
	return e.metric
}

func (e *metricError) Is(target error) bool {
	if t, ok := target.(*metricError); ok {
		return e.message == t.message
	}
	return false
}

// errorType extracts the error type string for metrics classification.
// Walks the error chain to find metricError types.
func errorType(err error) string {
	if err == nil {
		return ""
	}

	var me *metricError
	if errors.As(err, &me) {
		return me.Metric()
	}

	return "unknown"
}

// BroadcastError wraps a failed broadcast attempt with its retryability
// classification. Retryable failures (non-2xx responses, timeouts, network
// errors) are retried by the Router up to its ceiling; non-retryable
// failures are rejected immediately.
type BroadcastError struct {
	err       error
	retryable bool
}

// Error implements the error interface.
func (e *BroadcastError) Error() string {
	return e.err.Error()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *BroadcastError) Unwrap() error {
	return e.err
}

// Retryable reports whether a later attempt could plausibly succeed.
func (e *BroadcastError) Retryable() bool {
	return e.retryable
}

// retryableError reports whether err is a broadcast failure worth retrying.
// Anything that is not a retryable BroadcastError (serialization failures,
// precondition errors) is treated as permanent.
func retryableError(err error) bool {
	var be *BroadcastError
	if errors.As(err, &be) {
		return be.Retryable()
	}
	return false
}
