// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dlc implements the DLC upload state machine.
//
// A Session is a pure state machine: it never touches the transport. Each
// input (a transfer-mode signal, a local timeout, a cancel request) returns the
// commands the owner must write, in order. The owner is expected to drive a
// Session from a single goroutine.
package dlc

import (
	"fmt"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"go.uber.org/zap"
)

// State is the upload state
type State int

// Upload states
const (
	StateIdle State = iota
	StateAwaitingReady
	StateAwaitingChunkAck
	StateAwaitingFinalResult
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingReady:
		return "AwaitingReady"
	case StateAwaitingChunkAck:
		return "AwaitingChunkAck"
	case StateAwaitingFinalResult:
		return "AwaitingFinalResult"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of feeding one input to a Session
type Result struct {
	// Writes are the commands to write, in order
	Writes []furble.Command

	// Sent is the number of payload bytes carried by Writes
	Sent int

	// Finished is true when this input moved the session to a terminal state
	Finished bool
}

// Session is a single DLC upload to one slot
type Session struct {
	cfg Config
	log *zap.Logger

	slot     int
	name     string
	payload  []byte
	checksum uint32

	state   State
	mode    furble.TransferMode
	offset  int
	retries int
	last    furble.Command
	err     error
}

// Begin validates the upload, computes its checksum and returns the session
// together with the commands announcing the transfer. The session starts in
// AwaitingReady.
//
// The name must already be in device form (see furble.DeviceFilename).
// Invalid slots and names are rejected with an ArgumentError before any
// command is produced.
func Begin(slot int, name string, payload []byte, opts ...Option) (*Session, []furble.Command, error) {
	if err := furble.ValidateSlot(slot); err != nil {
		return nil, nil, err
	}
	if !furble.ValidFilename(name) {
		return nil, nil, &furble.ArgumentError{Kind: furble.InvalidName, Value: name}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		cfg:      cfg,
		slot:     slot,
		name:     name,
		payload:  payload,
		checksum: furble.Adler32(payload),
	}
	s.log = cfg.Logger.With(zap.Int("slot", slot), zap.String("name", name))

	start, err := furble.EncodeDLCUpload(slot, name, len(payload), s.checksum)
	if err != nil {
		return nil, nil, err
	}

	var writes []furble.Command
	if cfg.PacketAck {
		writes = append(writes, furble.EncodeNordicPacketAck(true))
	}
	writes = append(writes, start)

	s.last = start
	s.state = StateAwaitingReady

	s.log.Debug("dlc transfer started",
		zap.Int("length", len(payload)),
		zap.String("checksum", fmt.Sprintf("0x%08X", s.checksum)),
	)

	return s, writes, nil
}

// Handle feeds a transfer-mode signal received from the toy.
// Signals received while idle or after the session finished are dead-letters:
// they are logged and produce an empty Result.
func (s *Session) Handle(mode furble.TransferMode) Result {
	if s.state == StateIdle || s.Terminal() {
		s.log.Debug("dead-letter transfer signal",
			zap.Stringer("mode", mode),
			zap.Stringer("state", s.state),
		)
		return Result{}
	}

	s.mode = mode

	switch mode {
	case furble.ReadyToReceive, furble.ReadyToAppend:
		return s.nextChunk()

	case furble.FileTransferTimeout:
		return s.retry()

	case furble.FileReceivedOk:
		s.state = StateCompleted
		s.log.Info("dlc transfer complete", zap.Int("bytes", s.offset))
		return Result{Finished: true}

	case furble.FileReceivedErr:
		return s.fail(furble.DeviceRejected)

	case furble.EndCurrentTransfer:
		return s.fail(furble.Aborted)
	}

	s.log.Warn("unknown transfer mode", zap.Uint8("mode", uint8(mode)))
	return Result{}
}

// Timeout reports that no signal arrived within the per-chunk deadline.
// It is handled exactly like a FileTransferTimeout signal.
func (s *Session) Timeout() Result {
	return s.Handle(furble.FileTransferTimeout)
}

// Cancel ends the transfer from any non-terminal state, returning the
// end-transfer command. Cancelling a finished session is a no-op.
func (s *Session) Cancel() Result {
	if s.Terminal() || s.state == StateIdle {
		return Result{}
	}
	r := s.fail(furble.Cancelled)
	r.Writes = []furble.Command{furble.EncodeEndTransfer()}
	return r
}

// Fail moves a non-terminal session to Failed with the given reason.
// The owner uses it for failures detected outside the protocol, such as a
// lost connection.
func (s *Session) Fail(reason furble.FailureReason) Result {
	if s.Terminal() || s.state == StateIdle {
		return Result{}
	}
	return s.fail(reason)
}

func (s *Session) nextChunk() Result {
	if s.state == StateAwaitingFinalResult {
		s.log.Debug("ready signal after final chunk", zap.Stringer("mode", s.mode))
		return Result{}
	}

	s.retries = 0

	if s.offset >= len(s.payload) {
		s.state = StateAwaitingFinalResult
		return Result{}
	}

	end := s.offset + s.cfg.ChunkSize
	if end > len(s.payload) {
		end = len(s.payload)
	}
	chunk := furble.EncodeChunk(s.payload[s.offset:end])
	sent := end - s.offset

	s.offset = end
	s.last = chunk
	s.state = StateAwaitingChunkAck

	return Result{Writes: []furble.Command{chunk}, Sent: sent}
}

func (s *Session) retry() Result {
	s.retries++
	if s.retries > s.cfg.MaxRetries {
		return s.fail(furble.RetriesExhausted)
	}

	// Every byte was acknowledged; only the verdict is outstanding
	if s.state == StateAwaitingFinalResult {
		s.log.Warn("dlc transfer timeout awaiting final result",
			zap.Int("retry", s.retries),
			zap.Int("max_retries", s.cfg.MaxRetries),
		)
		return Result{}
	}

	s.log.Warn("dlc transfer timeout, resending",
		zap.Int("retry", s.retries),
		zap.Int("max_retries", s.cfg.MaxRetries),
		zap.Stringer("state", s.state),
	)
	return Result{Writes: []furble.Command{s.last}}
}

func (s *Session) fail(reason furble.FailureReason) Result {
	s.state = StateFailed
	s.err = &furble.TransferError{Slot: s.slot, Reason: reason}
	s.log.Warn("dlc transfer failed", zap.Stringer("reason", reason), zap.Int("bytes_sent", s.offset))
	return Result{Finished: true}
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Mode returns the last transfer-mode signal received
func (s *Session) Mode() furble.TransferMode {
	return s.mode
}

// Terminal reports whether the session has completed or failed
func (s *Session) Terminal() bool {
	return s.state == StateCompleted || s.state == StateFailed
}

// Err returns the *furble.TransferError for a failed session, nil otherwise
func (s *Session) Err() error {
	return s.err
}

// Slot returns the target slot
func (s *Session) Slot() int {
	return s.slot
}

// Name returns the device filename
func (s *Session) Name() string {
	return s.name
}

// Checksum returns the Adler-32 of the payload
func (s *Session) Checksum() uint32 {
	return s.checksum
}

// Retries returns the retry count for the current chunk
func (s *Session) Retries() int {
	return s.retries
}

// Progress returns the bytes sent so far and the total payload length
func (s *Session) Progress() (sent, total int) {
	return s.offset, len(s.payload)
}
