// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestProcessOutcome_String tests the String() method for all ProcessOutcome values.
func TestProcessOutcome_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		outcome  ProcessOutcome
		expected string
	}{
		{
			name:     "Delivered",
			outcome:  Delivered,
			expected: "Delivered",
		},
		{
			name:     "RetryExhausted",
			outcome:  RetryExhausted,
			expected: "RetryExhausted",
		},
		{
			name:     "Rejected",
			outcome:  Rejected,
			expected: "Rejected",
		},
		{
			name:     "Unknown - invalid outcome value",
			outcome:  ProcessOutcome(999),
			expected: "Unknown",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := tt.outcome.String()
			assert.Equal(t, tt.expected, result, "String() should return correct value")
		})
	}
}
