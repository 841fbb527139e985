// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"go.uber.org/zap"
)

// BridgeConn speaks to a BLE bridge over a byte stream. The bridge owns the
// radio link to the toy and relays characteristic writes and notifications as
// CRC-protected bridge frames.
type BridgeConn struct {
	rw  io.ReadWriteCloser
	log *zap.Logger

	writeMu sync.Mutex
	notes   chan []byte
	done    chan struct{}
	once    sync.Once
}

// NewBridgeConn starts reading frames from rw. The returned Conn owns rw and
// closes it on Close or when a read fails.
func NewBridgeConn(rw io.ReadWriteCloser, logger *zap.Logger) *BridgeConn {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &BridgeConn{
		rw:    rw,
		log:   logger,
		notes: make(chan []byte, notificationBuffer),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Write sends data to the bridge for the characteristic selected by ch
func (c *BridgeConn) Write(ctx context.Context, ch furble.Channel, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	frame, err := EncodeBridgeFrame(uint8(ch), data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.log.Debug("bridge writing", zap.Stringer("channel", ch), zap.String("frame", furble.ToHex(data)))
	if _, err := c.rw.Write(frame); err != nil {
		return fmt.Errorf("bridge write failed: %w", err)
	}
	return nil
}

// Notifications returns the inbound frame channel
func (c *BridgeConn) Notifications() <-chan []byte {
	return c.notes
}

// Close closes the underlying stream
func (c *BridgeConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.rw.Close()
	})
	return err
}

func (c *BridgeConn) readLoop() {
	defer close(c.notes)
	defer c.Close()

	decoder := NewBridgeDecoder()
	buf := make([]byte, 128)
	for {
		n, err := c.rw.Read(buf)
		for i := 0; i < n; i++ {
			msg, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				c.log.Debug("bridge frame dropped", zap.Error(decodeErr))
				continue
			}
			if msg == nil {
				continue
			}

			c.log.Debug("bridge reading",
				zap.Uint8("channel", msg.Channel),
				zap.String("frame", furble.ToHex(msg.Data)),
			)
			select {
			case c.notes <- msg.Data:
			case <-c.done:
				return
			}
		}

		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Info("bridge connection lost", zap.Error(err))
			}
			return
		}
	}
}

// BridgeDialer opens a byte stream to a bridge and wraps it in a BridgeConn
type BridgeDialer struct {
	// Open returns a fresh stream for every connection attempt
	Open func(ctx context.Context) (io.ReadWriteCloser, error)

	// Logger receives frame-level diagnostics
	Logger *zap.Logger
}

// Dial opens the stream
func (d *BridgeDialer) Dial(ctx context.Context) (Conn, error) {
	rw, err := d.Open(ctx)
	if err != nil {
		return nil, err
	}
	return NewBridgeConn(rw, d.Logger), nil
}
