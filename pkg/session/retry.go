// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "time"

// RetryPolicy controls reconnect backoff
type RetryPolicy struct {
	// Initial is the delay before the first retry
	Initial time.Duration

	// Max caps the delay
	Max time.Duration
}

// DefaultRetryPolicy returns the default 1s initial, 5s max policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial: 1 * time.Second,
		Max:     5 * time.Second,
	}
}

// Delay returns the wait before retry attempt n (1-based): the initial delay
// doubled n-1 times, capped at Max. Attempts below 1 are treated as 1.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			return p.Max
		}
	}
	if delay > p.Max {
		return p.Max
	}
	return delay
}
