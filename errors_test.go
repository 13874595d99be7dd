// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors tests error types and sentinel errors.
func TestErrors(t *testing.T) {
	t.Parallel()

	t.Run("sentinel errors", func(t *testing.T) {
		t.Parallel()
		// All sentinel errors should be *metricError
		sentinels := []error{
			ErrValidation,
			ErrSerialization,
			ErrBrokerUnavailable,
			ErrBroadcast,
			ErrNotStarted,
			ErrAlreadyStarted,
		}

		for _, sentinel := range sentinels {
			me, ok := sentinel.(*metricError) // nolint:errorlint
			assert.True(t, ok, "sentinel should be *metricError")
			assert.NotEmpty(t, me.message, "sentinel should have message")
			assert.NotEmpty(t, me.metric, "sentinel should have metric type")
			assert.Equal(t, me.message, me.Error(), "Error() should return message")
			assert.Equal(t, me.metric, me.Metric(), "Metric() should return metric type")
		}
	})

	t.Run("error wrapping with errors.Is", func(t *testing.T) {
		t.Parallel()

		// Wrapped error should match sentinel
		wrapped := errors.Join(ErrBrokerUnavailable, fmt.Errorf("dial tcp refused"))
		assert.True(t, errors.Is(wrapped, ErrBrokerUnavailable))
		assert.False(t, errors.Is(wrapped, ErrBroadcast))

		// Multiple wrapping
		doubleWrapped := fmt.Errorf("outer: %w", wrapped)
		assert.True(t, errors.Is(doubleWrapped, ErrBrokerUnavailable))
	})

	t.Run("error types for metrics", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			err      error
			expected string
		}{
			{"validation", ErrValidation, "validation_error"},
			{"serialization", ErrSerialization, "serialization_error"},
			{"broker unavailable", ErrBrokerUnavailable, "broker_unavailable"},
			{"broadcast", ErrBroadcast, "broadcast_error"},
			{"not started", ErrNotStarted, "not_started"},
			{"already started", ErrAlreadyStarted, "already_started"},
			{"nil error", nil, ""},
			{"unknown error", fmt.Errorf("random"), "unknown"},
			{"wrapped broadcast", errors.Join(ErrBroadcast, fmt.Errorf("test")), "broadcast_error"},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				result := errorType(tt.err)
				assert.Equal(t, tt.expected, result)
			})
		}
	})

	t.Run("Is() method semantics", func(t *testing.T) {
		t.Parallel()

		// Sentinel should match itself
		assert.True(t, errors.Is(ErrBroadcast, ErrBroadcast))

		// Different sentinels should not match
		assert.False(t, errors.Is(ErrBroadcast, ErrValidation))
	})
}

// TestBroadcastError tests retryability classification and unwrapping.
func TestBroadcastError(t *testing.T) {
	t.Parallel()

	t.Run("retryable classification", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name     string
			err      error
			expected bool
		}{
			{
				name:     "retryable broadcast error",
				err:      &BroadcastError{err: fmt.Errorf("HTTP 500"), retryable: true},
				expected: true,
			},
			{
				name:     "non-retryable broadcast error",
				err:      &BroadcastError{err: fmt.Errorf("bad payload"), retryable: false},
				expected: false,
			},
			{
				name:     "wrapped retryable",
				err:      fmt.Errorf("attempt 2: %w", &BroadcastError{err: fmt.Errorf("timeout"), retryable: true}),
				expected: true,
			},
			{
				name:     "plain error",
				err:      fmt.Errorf("something else"),
				expected: false,
			},
			{
				name:     "nil error",
				err:      nil,
				expected: false,
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				assert.Equal(t, tt.expected, retryableError(tt.err))
			})
		}
	})

	t.Run("unwrap exposes cause", func(t *testing.T) {
		t.Parallel()
		cause := errors.Join(ErrSerialization, fmt.Errorf("bad json"))
		be := &BroadcastError{err: cause, retryable: false}

		assert.True(t, errors.Is(be, ErrSerialization))
		assert.Equal(t, cause.Error(), be.Error())
		assert.False(t, be.Retryable())
	})
}
