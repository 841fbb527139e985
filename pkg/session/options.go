// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"time"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"go.uber.org/zap"
)

// Config holds the supervisor configuration
type Config struct {
	// Retry controls reconnect backoff
	Retry RetryPolicy

	// ChunkTimeout is how long an upload waits for a transfer signal before
	// treating the chunk as timed out
	ChunkTimeout time.Duration

	// MaxRetries bounds resends of a timed out chunk
	MaxRetries int

	// ChunkSize is the payload size per FileWrite
	ChunkSize int

	// RequestTimeout bounds request/response exchanges such as slot info
	RequestTimeout time.Duration

	// EventBuffer is the depth of the event channel
	EventBuffer int

	// Logger receives engine diagnostics
	Logger *zap.Logger
}

func defaultConfig() Config {
	return Config{
		Retry:          DefaultRetryPolicy(),
		ChunkTimeout:   5 * time.Second,
		MaxRetries:     3,
		ChunkSize:      furble.DefaultChunkSize,
		RequestTimeout: 3 * time.Second,
		EventBuffer:    64,
		Logger:         zap.NewNop(),
	}
}

// Option configures a Supervisor
type Option func(*Config)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithRetryPolicy sets the reconnect backoff
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Config) {
		if p.Initial > 0 && p.Max >= p.Initial {
			c.Retry = p
		}
	}
}

// WithChunkTimeout sets the per-chunk deadline
func WithChunkTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ChunkTimeout = d
		}
	}
}

// WithMaxRetries sets the per-chunk retry bound
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxRetries = n
		}
	}
}

// WithChunkSize sets the upload chunk size (1-512)
func WithChunkSize(n int) Option {
	return func(c *Config) {
		if n > 0 && n <= 512 {
			c.ChunkSize = n
		}
	}
}

// WithRequestTimeout sets the request/response deadline
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.RequestTimeout = d
		}
	}
}

// WithEventBuffer sets the event channel depth
func WithEventBuffer(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.EventBuffer = n
		}
	}
}
