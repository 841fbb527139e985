// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/Thermoquad/fluffstat/pkg/furble"
)

// Written is one write recorded by a Pipe
type Written struct {
	Channel furble.Channel
	Data    []byte
}

// Pipe is an in-memory Conn. The test side injects notifications with Notify
// and observes the engine's writes on Writes.
type Pipe struct {
	mu     sync.Mutex
	closed bool
	notes  chan []byte
	writes chan Written
}

// NewPipe creates an open Pipe
func NewPipe() *Pipe {
	return &Pipe{
		notes:  make(chan []byte, notificationBuffer),
		writes: make(chan Written, 256),
	}
}

// Write records the write
func (p *Pipe) Write(ctx context.Context, ch furble.Channel, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	w := Written{Channel: ch, Data: append([]byte(nil), data...)}
	select {
	case p.writes <- w:
		return nil
	default:
		return errors.New("transport: pipe write buffer full")
	}
}

// Notifications returns the inbound frame channel
func (p *Pipe) Notifications() <-chan []byte {
	return p.notes
}

// Close disconnects the pipe. The notification channel is closed.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.notes)
	}
	return nil
}

// Closed reports whether the pipe was closed
func (p *Pipe) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Notify delivers an inbound frame. It returns false if the pipe is closed or
// its buffer is full.
func (p *Pipe) Notify(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.notes <- append([]byte(nil), frame...):
		return true
	default:
		return false
	}
}

// Writes returns the recorded writes in order
func (p *Pipe) Writes() <-chan Written {
	return p.writes
}

// PipeDialer hands out queued Pipes. Each Dial takes the next queued result;
// Refuse queues a failed attempt.
type PipeDialer struct {
	results chan *Pipe
	dials   chan struct{}
}

// ErrRefused is returned by PipeDialer for a refused attempt
var ErrRefused = errors.New("transport: connection refused")

// NewPipeDialer creates a dialer with an empty queue
func NewPipeDialer() *PipeDialer {
	return &PipeDialer{
		results: make(chan *Pipe, 16),
		dials:   make(chan struct{}, 64),
	}
}

// Accept queues a successful attempt returning p
func (d *PipeDialer) Accept(p *Pipe) {
	d.results <- p
}

// Refuse queues a failed attempt
func (d *PipeDialer) Refuse() {
	d.results <- nil
}

// Dials signals once per Dial call, before the attempt resolves
func (d *PipeDialer) Dials() <-chan struct{} {
	return d.dials
}

// Dial blocks until an attempt is queued or ctx is done
func (d *PipeDialer) Dial(ctx context.Context) (Conn, error) {
	select {
	case d.dials <- struct{}{}:
	default:
	}

	select {
	case p := <-d.results:
		if p == nil {
			return nil, ErrRefused
		}
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
