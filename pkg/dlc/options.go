// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dlc

import (
	"github.com/Thermoquad/fluffstat/pkg/furble"
	"go.uber.org/zap"
)

// Config holds the transfer session configuration.
type Config struct {
	// ChunkSize is the payload size per FileWrite
	ChunkSize int

	// MaxRetries is the number of times a frame is resent after a timeout
	// before the transfer fails with RetriesExhausted
	MaxRetries int

	// PacketAck enables Nordic packet acknowledgments before the upload starts
	PacketAck bool

	// Logger receives dead-letter and retry diagnostics
	Logger *zap.Logger
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ChunkSize:  furble.DefaultChunkSize,
		MaxRetries: 3,
		PacketAck:  true,
		Logger:     zap.NewNop(),
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithChunkSize sets the payload size per FileWrite. Values outside 1-512 are ignored.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= 512 {
			c.ChunkSize = size
		}
	}
}

// WithMaxRetries sets the retry bound for timed out chunks.
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.MaxRetries = retries
		}
	}
}

// WithPacketAck enables or disables the Nordic packet-ack command sent before
// the upload announcement. Default is true.
func WithPacketAck(enabled bool) Option {
	return func(c *Config) {
		c.PacketAck = enabled
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
