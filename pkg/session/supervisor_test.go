// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/transport"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 2 * time.Second

func newTestSupervisor(t *testing.T, d *transport.PipeDialer, opts ...Option) *Supervisor {
	t.Helper()
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithRetryPolicy(RetryPolicy{Initial: 10 * time.Millisecond, Max: 40 * time.Millisecond}),
	}
	s := New(d, append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return s
}

// connected starts a supervisor whose first dial succeeds with a fresh pipe
func connected(t *testing.T, opts ...Option) (*Supervisor, *transport.Pipe) {
	t.Helper()
	d := transport.NewPipeDialer()
	p := transport.NewPipe()
	d.Accept(p)
	s := newTestSupervisor(t, d, opts...)
	waitFor[Connected](t, s)
	return s, p
}

func waitFor[T Event](t *testing.T, s *Supervisor) T {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("event stream closed waiting for %T", *new(T))
			}
			if want, ok := ev.(T); ok {
				return want
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

func nextWrite(t *testing.T, p *transport.Pipe) transport.Written {
	t.Helper()
	select {
	case w := <-p.Writes():
		return w
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a write")
	}
	return transport.Written{}
}

func expectWrite(t *testing.T, p *transport.Pipe, want furble.Command) {
	t.Helper()
	w := nextWrite(t, p)
	if w.Channel != want.Channel() || !bytes.Equal(w.Data, want.Bytes()) {
		t.Errorf("write = %s[%x], want %s", w.Channel, w.Data, want)
	}
}

func expectNoWrite(t *testing.T, p *transport.Pipe, d time.Duration) {
	t.Helper()
	select {
	case w := <-p.Writes():
		t.Errorf("unexpected write %s[%x]", w.Channel, w.Data)
	case <-time.After(d):
	}
}

func TestSupervisor_Commands(t *testing.T) {
	s, p := connected(t)
	ctx := context.Background()

	if !s.Connected() {
		t.Error("Connected() = false")
	}

	tests := []struct {
		name string
		run  func() error
		want furble.Command
	}{
		{"action", func() error { return s.SendAction(ctx, furble.Action4(2, 0, 8, 3)) }, furble.MustEncodeAction(furble.Action4(2, 0, 8, 3))},
		{"antenna", func() error { return s.SetAntennaColor(ctx, 0xFF, 0x80, 0x00) }, furble.EncodeAntennaColor(0xFF, 0x80, 0x00)},
		{"load", func() error { return s.LoadSlot(ctx, 2) }, mustSlot(furble.EncodeDLCLoad(2))},
		{"delete", func() error { return s.DeleteSlot(ctx, 13) }, mustSlot(furble.EncodeDLCDelete(13))},
		{"deactivate", func() error { return s.DeactivateSlot(ctx, 0) }, mustSlot(furble.EncodeDLCDeactivate(0))},
		{"activate", func() error { return s.ActivateSlots(ctx) }, furble.EncodeDLCActivate()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err != nil {
				t.Fatalf("error = %v", err)
			}
			expectWrite(t, p, tt.want)
		})
	}
}

func mustSlot(c furble.Command, err error) furble.Command {
	if err != nil {
		panic(err)
	}
	return c
}

func TestSupervisor_ArgumentErrorsNeverWrite(t *testing.T) {
	s, p := connected(t)
	ctx := context.Background()

	errs := []error{
		s.LoadSlot(ctx, 14),
		s.DeleteSlot(ctx, -1),
		s.BeginUpload(ctx, 20, "TEST.DLC", []byte{1}),
		s.BeginUpload(ctx, 0, "WAYTOOLONGNAME.DLC", []byte{1}),
	}
	for i, err := range errs {
		if !furble.IsArgumentError(err) {
			t.Errorf("call %d error = %v, want ArgumentError", i, err)
		}
	}
	expectNoWrite(t, p, 50*time.Millisecond)
}

func TestSupervisor_NotConnected(t *testing.T) {
	s := newTestSupervisor(t, transport.NewPipeDialer())

	err := s.SendAction(context.Background(), furble.Action1(1))
	if !errors.Is(err, furble.ErrNotConnected) {
		t.Errorf("SendAction() error = %v, want ErrNotConnected", err)
	}
	if s.Connected() {
		t.Error("Connected() = true")
	}
}

func TestSupervisor_ReconnectsAfterRefusal(t *testing.T) {
	d := transport.NewPipeDialer()
	d.Refuse()
	d.Refuse()
	p := transport.NewPipe()
	d.Accept(p)

	start := time.Now()
	s := newTestSupervisor(t, d)
	waitFor[Connected](t, s)

	// 10ms + 20ms of backoff before the third attempt
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("connected after %v, want at least 30ms of backoff", elapsed)
	}
}

func TestSupervisor_BackoffRestartsAfterConnect(t *testing.T) {
	d := transport.NewPipeDialer()
	for i := 0; i < 3; i++ {
		d.Refuse()
	}
	first := transport.NewPipe()
	d.Accept(first)

	policy := RetryPolicy{Initial: 50 * time.Millisecond, Max: 400 * time.Millisecond}
	s := newTestSupervisor(t, d, WithRetryPolicy(policy))
	waitFor[Connected](t, s)

	for len(d.Dials()) > 0 {
		<-d.Dials()
	}

	lostAt := time.Now()
	first.Close()
	waitFor[Disconnected](t, s)

	select {
	case <-d.Dials():
	case <-time.After(waitTimeout):
		t.Fatal("no reconnect attempt after connection loss")
	}

	// Three refusals before the connect would make the next delay 400ms
	// without the reset
	elapsed := time.Since(lostAt)
	if elapsed < 45*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("reconnect after %v, want about %v", elapsed, policy.Initial)
	}

	second := transport.NewPipe()
	d.Accept(second)
	waitFor[Connected](t, s)
}

func TestSupervisor_StopDuringBackoff(t *testing.T) {
	d := transport.NewPipeDialer()
	d.Refuse()

	policy := RetryPolicy{Initial: 200 * time.Millisecond, Max: 200 * time.Millisecond}
	s := newTestSupervisor(t, d, WithRetryPolicy(policy))

	select {
	case <-d.Dials():
	case <-time.After(waitTimeout):
		t.Fatal("no dial attempt")
	}
	time.Sleep(20 * time.Millisecond)

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Run did not return during the backoff wait")
	}

	select {
	case <-d.Dials():
		t.Error("dial attempt after Stop")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSupervisor_StateChanged(t *testing.T) {
	s, p := connected(t)

	p.Notify([]byte{0x21, 0x00, 0x42, 0x00, 0x01})
	ev := waitFor[StateChanged](t, s)

	if ev.State.Antenna != furble.AntennaForward {
		t.Errorf("Antenna = %s, want forward", ev.State.Antenna)
	}
	if ev.State.Orientation != furble.OrientationUpright {
		t.Errorf("Orientation = %s, want upright", ev.State.Orientation)
	}
	if !ev.State.Sensors.Has(furble.TickleTummy) {
		t.Errorf("Sensors = %s, want tickle_tummy", ev.State.Sensors)
	}
}

func TestSupervisor_MalformedFrameDropped(t *testing.T) {
	s, p := connected(t)

	p.Notify([]byte{0x21, 0x00})
	p.Notify([]byte{0xFE, 0x09})

	ev := waitFor[FirmwareVersion](t, s)
	if ev.Version != 9 {
		t.Errorf("Version = %d, want 9", ev.Version)
	}
	if !s.Connected() {
		t.Error("malformed frame dropped the connection")
	}
}

func TestSupervisor_RequestSlotInfo(t *testing.T) {
	s, p := connected(t)

	type result struct {
		slots furble.Slots
		err   error
	}
	done := make(chan result, 1)
	go func() {
		slots, err := s.RequestSlotInfo(context.Background())
		done <- result{slots, err}
	}()

	expectWrite(t, p, furble.EncodeDLCSlotInfoRequest())
	p.Notify([]byte{0x72, 0x00, 0x05, 0x00, 0x04})

	r := <-done
	if r.err != nil {
		t.Fatalf("RequestSlotInfo() error = %v", r.err)
	}
	if r.slots[0] != furble.SlotFilled || r.slots[2] != furble.SlotActive || r.slots[1] != furble.SlotEmpty {
		t.Errorf("RequestSlotInfo() = %s", r.slots)
	}

	ev := waitFor[SlotStatusChanged](t, s)
	if ev.Slots != r.slots {
		t.Errorf("SlotStatusChanged = %s, want %s", ev.Slots, r.slots)
	}
}

func TestSupervisor_RequestTimeout(t *testing.T) {
	s, p := connected(t, WithRequestTimeout(30*time.Millisecond))

	_, err := s.FirmwareVersion(context.Background())
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("FirmwareVersion() error = %v, want ErrRequestTimeout", err)
	}
	expectWrite(t, p, furble.EncodeFirmwareRequest())
}

func TestSupervisor_SingleOutstandingRequest(t *testing.T) {
	s, p := connected(t)
	ctx := context.Background()

	version := make(chan uint8, 1)
	go func() {
		v, err := s.FirmwareVersion(ctx)
		if err != nil {
			t.Errorf("FirmwareVersion() error = %v", err)
		}
		version <- v
	}()
	expectWrite(t, p, furble.EncodeFirmwareRequest())

	sent := make(chan error, 1)
	go func() {
		sent <- s.SendAction(ctx, furble.Action1(7))
	}()

	// The action waits until the firmware response resolves the request
	expectNoWrite(t, p, 50*time.Millisecond)

	p.Notify([]byte{0xFE, 0x07})
	if v := <-version; v != 7 {
		t.Errorf("FirmwareVersion() = %d, want 7", v)
	}
	expectWrite(t, p, furble.MustEncodeAction(furble.Action1(7)))
	if err := <-sent; err != nil {
		t.Errorf("SendAction() error = %v", err)
	}
}

func TestSupervisor_Upload(t *testing.T) {
	s, p := connected(t)
	payload := make([]byte, 45)
	for i := range payload {
		payload[i] = byte(i * 3)
	}

	if err := s.BeginUpload(context.Background(), 4, "test.dlc", payload); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}

	expectWrite(t, p, furble.EncodeNordicPacketAck(true))
	start, _ := furble.EncodeDLCUpload(4, "____TEST.DLC", len(payload), furble.Adler32(payload))
	expectWrite(t, p, start)

	var received []byte
	for i := 0; i < 3; i++ {
		mode := furble.ReadyToAppend
		if i == 0 {
			mode = furble.ReadyToReceive
		}
		p.Notify([]byte{furble.MsgTransferMode, byte(mode)})

		w := nextWrite(t, p)
		if w.Channel != furble.ChannelFile {
			t.Errorf("chunk %d channel = %s, want FileWrite", i, w.Channel)
		}
		received = append(received, w.Data...)

		progress := waitFor[TransferProgress](t, s)
		if progress.Sent != len(received) || progress.Total != 45 || progress.Slot != 4 {
			t.Errorf("TransferProgress = %+v, want %d/45 slot 4", progress, len(received))
		}
	}
	if !bytes.Equal(received, payload) {
		t.Errorf("received %x, want %x", received, payload)
	}

	p.Notify([]byte{furble.MsgTransferMode, byte(furble.ReadyToAppend)})
	expectNoWrite(t, p, 30*time.Millisecond)

	p.Notify([]byte{furble.MsgTransferMode, byte(furble.FileReceivedOk)})
	done := waitFor[TransferCompleted](t, s)
	if done.Slot != 4 {
		t.Errorf("TransferCompleted.Slot = %d, want 4", done.Slot)
	}
	expectWrite(t, p, furble.EncodeDLCSlotInfoRequest())

	// A repeated result is a dead-letter
	p.Notify([]byte{furble.MsgTransferMode, byte(furble.FileReceivedOk)})
	p.Notify([]byte{0xFE, 0x01})
	waitFor[FirmwareVersion](t, s)
	expectNoWrite(t, p, 30*time.Millisecond)
}

func TestSupervisor_UploadBusy(t *testing.T) {
	s, _ := connected(t)
	ctx := context.Background()

	if err := s.BeginUpload(ctx, 1, "A.DLC", []byte{1, 2, 3}); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}
	err := s.BeginUpload(ctx, 2, "B.DLC", []byte{4})
	if !errors.Is(err, furble.ErrTransferActive) {
		t.Errorf("second BeginUpload() error = %v, want ErrTransferActive", err)
	}
}

func TestSupervisor_UploadRetriesExhausted(t *testing.T) {
	s, p := connected(t, WithChunkTimeout(20*time.Millisecond), WithMaxRetries(2))

	if err := s.BeginUpload(context.Background(), 0, "RETRY.DLC", []byte{1, 2, 3}); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}

	expectWrite(t, p, furble.EncodeNordicPacketAck(true))
	start, _ := furble.EncodeDLCUpload(0, "___RETRY.DLC", 3, furble.Adler32([]byte{1, 2, 3}))
	for i := 0; i < 3; i++ {
		expectWrite(t, p, start)
	}

	failed := waitFor[TransferFailed](t, s)
	if failed.Reason != furble.RetriesExhausted || failed.Slot != 0 {
		t.Errorf("TransferFailed = %+v, want RetriesExhausted on slot 0", failed)
	}
	expectNoWrite(t, p, 60*time.Millisecond)
}

func TestSupervisor_CancelUpload(t *testing.T) {
	s, p := connected(t)

	if err := s.BeginUpload(context.Background(), 5, "STOP.DLC", make([]byte, 100)); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}
	nextWrite(t, p)
	nextWrite(t, p)

	s.CancelUpload()
	s.CancelUpload()

	expectWrite(t, p, furble.EncodeEndTransfer())
	failed := waitFor[TransferFailed](t, s)
	if failed.Reason != furble.Cancelled {
		t.Errorf("Reason = %s, want Cancelled", failed.Reason)
	}

	p.Notify([]byte{furble.MsgTransferMode, byte(furble.ReadyToReceive)})
	expectNoWrite(t, p, 30*time.Millisecond)
}

func TestSupervisor_CancelDoesNotReachLaterUpload(t *testing.T) {
	s, p := connected(t)
	ctx := context.Background()

	if err := s.BeginUpload(ctx, 1, "A.DLC", make([]byte, 10)); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}
	nextWrite(t, p)
	nextWrite(t, p)

	s.CancelUpload()
	s.CancelUpload()
	expectWrite(t, p, furble.EncodeEndTransfer())
	if failed := waitFor[TransferFailed](t, s); failed.Slot != 1 {
		t.Errorf("TransferFailed.Slot = %d, want 1", failed.Slot)
	}

	// Nothing is active, so this cancel has no target
	s.CancelUpload()

	payload := []byte{1, 2, 3}
	if err := s.BeginUpload(ctx, 2, "B.DLC", payload); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}
	nextWrite(t, p)
	nextWrite(t, p)

	p.Notify([]byte{furble.MsgTransferMode, byte(furble.ReadyToReceive)})
	w := nextWrite(t, p)
	if w.Channel != furble.ChannelFile || !bytes.Equal(w.Data, payload) {
		t.Errorf("write = %s[%x], want FileWrite[%x]", w.Channel, w.Data, payload)
	}

	p.Notify([]byte{furble.MsgTransferMode, byte(furble.FileReceivedOk)})
	if done := waitFor[TransferCompleted](t, s); done.Slot != 2 {
		t.Errorf("TransferCompleted.Slot = %d, want 2", done.Slot)
	}
}

func TestSupervisor_ConnectionLostDuringUpload(t *testing.T) {
	d := transport.NewPipeDialer()
	first := transport.NewPipe()
	d.Accept(first)
	s := newTestSupervisor(t, d)
	waitFor[Connected](t, s)

	if err := s.BeginUpload(context.Background(), 9, "LOST.DLC", make([]byte, 40)); err != nil {
		t.Fatalf("BeginUpload() error = %v", err)
	}
	nextWrite(t, first)
	nextWrite(t, first)
	first.Notify([]byte{furble.MsgTransferMode, byte(furble.ReadyToReceive)})
	nextWrite(t, first)

	first.Close()
	waitFor[Disconnected](t, s)
	failed := waitFor[TransferFailed](t, s)
	if failed.Reason != furble.ConnectionLost || failed.Slot != 9 {
		t.Errorf("TransferFailed = %+v, want ConnectionLost on slot 9", failed)
	}

	second := transport.NewPipe()
	d.Accept(second)
	waitFor[Connected](t, s)

	if err := s.SetAntennaColor(context.Background(), 1, 2, 3); err != nil {
		t.Fatalf("SetAntennaColor() error = %v", err)
	}
	expectWrite(t, second, furble.EncodeAntennaColor(1, 2, 3))
}

func TestSupervisor_Subscribe(t *testing.T) {
	s, p := connected(t)

	id, frames := s.Subscribe([]byte{0x21})
	_, all := s.Subscribe(nil)

	p.Notify([]byte{0x99, 0x01})
	p.Notify([]byte{0x21, 0x00, 0x00, 0x00, 0x00})

	for _, want := range [][]byte{{0x99, 0x01}, {0x21, 0x00, 0x00, 0x00, 0x00}} {
		select {
		case got := <-all:
			if !bytes.Equal(got, want) {
				t.Errorf("all subscriber got %x, want %x", got, want)
			}
		case <-time.After(waitTimeout):
			t.Fatal("timed out on all subscriber")
		}
	}

	select {
	case got := <-frames:
		if got[0] != 0x21 {
			t.Errorf("prefix subscriber got %x", got)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out on prefix subscriber")
	}

	s.Unsubscribe(id)
	s.Unsubscribe(id)
	if _, ok := <-frames; ok {
		t.Error("channel still open after Unsubscribe")
	}
}

func TestSupervisor_Stop(t *testing.T) {
	s, p := connected(t)

	s.Stop()
	s.Stop()

	select {
	case <-s.Done():
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after Stop")
	}

	for range s.Events() {
	}
	if !p.Closed() {
		t.Error("connection left open after Stop")
	}
	if err := s.ActivateSlots(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("ActivateSlots() after Stop error = %v, want ErrStopped", err)
	}
	_, late := s.Subscribe(nil)
	select {
	case _, ok := <-late:
		if ok {
			t.Error("Subscribe() after Stop delivered a frame")
		}
	case <-time.After(waitTimeout):
		t.Error("Subscribe() after Stop returned an open channel")
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
}
