// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport connects the protocol engine to a Furby.
//
// A Dialer produces one Conn per connection attempt. A Conn writes commands to
// the toy's characteristics and delivers inbound notification frames on a
// channel that is closed when the link drops. Implementations are provided for
// native BLE (BLEDialer), for a BLE bridge reached over a byte stream such as a
// serial port or WebSocket (NewBridgeConn), and for tests (Pipe).
package transport

import (
	"context"
	"errors"

	"github.com/Thermoquad/fluffstat/pkg/furble"
)

// Conn is a live link to one toy
type Conn interface {
	// Write sends data to the characteristic selected by ch
	Write(ctx context.Context, ch furble.Channel, data []byte) error

	// Notifications delivers inbound frames in receipt order. The channel is
	// closed when the connection is lost or closed. Frames are owned by the
	// receiver.
	Notifications() <-chan []byte

	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// Dialer opens connections
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialFunc adapts a function to the Dialer interface
type DialFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx)
func (f DialFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// ErrClosed is returned when writing to a closed connection
var ErrClosed = errors.New("transport: connection closed")

// notificationBuffer is the inbound queue depth of each Conn
const notificationBuffer = 64
