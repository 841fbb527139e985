// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session supervises the connection to one Furby.
//
// A Supervisor owns the transport connection, reconnects with backoff when it
// drops, routes inbound notifications and drives DLC uploads. All of that
// happens on the goroutine running Supervisor.Run; the exported methods only
// exchange messages with it and are safe to call from any goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/dlc"
	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrStopped is returned by commands issued after the supervisor stopped
	ErrStopped = errors.New("supervisor stopped")

	// ErrRequestTimeout is returned when no response arrived within the
	// request timeout
	ErrRequestTimeout = errors.New("request timed out")

	// ErrAlreadyRunning is returned by a second call to Run
	ErrAlreadyRunning = errors.New("supervisor already running")
)

// subscriberBuffer is the queue depth of each Subscribe channel
const subscriberBuffer = 32

type reply struct {
	frame []byte
	err   error
}

type request struct {
	cmds   []furble.Command
	expect []byte
	upload *dlc.Session
	reply  chan reply
}

type subscriber struct {
	prefix []byte
	ch     chan []byte
}

// Supervisor maintains the connection to one toy
type Supervisor struct {
	dialer transport.Dialer
	cfg    Config
	log    *zap.Logger

	events   chan Event
	requests chan *request
	cancel   chan *dlc.Session
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	running   atomic.Bool
	connected atomic.Bool
	upload    atomic.Pointer[dlc.Session]

	subMu      sync.Mutex
	subs       map[string]*subscriber
	subsClosed bool
}

// New creates a Supervisor that connects through dialer once Run is called
func New(dialer transport.Dialer, opts ...Option) *Supervisor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Supervisor{
		dialer:   dialer,
		cfg:      cfg,
		log:      cfg.Logger,
		events:   make(chan Event, cfg.EventBuffer),
		requests: make(chan *request),
		cancel:   make(chan *dlc.Session, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		subs:     make(map[string]*subscriber),
	}
}

// Events returns the event stream. It is closed when Run returns.
// Events are dropped (and logged) when the consumer falls behind.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Connected reports whether a connection is currently established
func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

// Stop ends Run. It is safe to call from any goroutine, more than once.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Done is closed when Run has returned
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Subscribe returns a channel receiving every inbound frame that starts with
// prefix (all frames for an empty prefix), and an id for Unsubscribe.
// Frames are dropped when the channel is full. The channel is closed by
// Unsubscribe or when Run returns. Once Run has returned the channel is
// already closed.
func (s *Supervisor) Subscribe(prefix []byte) (string, <-chan []byte) {
	id := uuid.NewString()
	sub := &subscriber{
		prefix: append([]byte(nil), prefix...),
		ch:     make(chan []byte, subscriberBuffer),
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subsClosed {
		close(sub.ch)
		return id, sub.ch
	}
	s.subs[id] = sub
	return id, sub.ch
}

// Unsubscribe closes the subscription with the given id
func (s *Supervisor) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(sub.ch)
	}
}

func (s *Supervisor) publish(frame []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, sub := range s.subs {
		if !furble.MatchesPrefix(sub.prefix, frame) {
			continue
		}
		select {
		case sub.ch <- append([]byte(nil), frame...):
		default:
			s.log.Debug("subscriber full, frame dropped", zap.String("subscriber", id))
		}
	}
}

func (s *Supervisor) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subsClosed = true
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub.ch)
	}
}

// do hands a request to the control loop and waits for its reply
func (s *Supervisor) do(ctx context.Context, req *request) ([]byte, error) {
	req.reply = make(chan reply, 1)

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrStopped
	}

	select {
	case r := <-req.reply:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrStopped
	}
}

// Send writes a command
func (s *Supervisor) Send(ctx context.Context, cmd furble.Command) error {
	_, err := s.do(ctx, &request{cmds: []furble.Command{cmd}})
	return err
}

// Request writes a command and waits for the first notification starting
// with prefix. Only one request is outstanding at a time; other commands
// queue behind it.
func (s *Supervisor) Request(ctx context.Context, cmd furble.Command, prefix []byte) ([]byte, error) {
	if len(prefix) == 0 {
		return nil, fmt.Errorf("request for %s needs a response prefix", cmd)
	}
	return s.do(ctx, &request{
		cmds:   []furble.Command{cmd},
		expect: append([]byte(nil), prefix...),
	})
}

// SendAction triggers an action
func (s *Supervisor) SendAction(ctx context.Context, a furble.Action) error {
	cmd, err := furble.EncodeAction(a)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// SetAntennaColor sets the antenna LED color
func (s *Supervisor) SetAntennaColor(ctx context.Context, r, g, b byte) error {
	return s.Send(ctx, furble.EncodeAntennaColor(r, g, b))
}

// LoadSlot loads the DLC in slot
func (s *Supervisor) LoadSlot(ctx context.Context, slot int) error {
	cmd, err := furble.EncodeDLCLoad(slot)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// DeleteSlot deletes the DLC in slot
func (s *Supervisor) DeleteSlot(ctx context.Context, slot int) error {
	cmd, err := furble.EncodeDLCDelete(slot)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// ActivateSlots activates the loaded DLC
func (s *Supervisor) ActivateSlots(ctx context.Context) error {
	return s.Send(ctx, furble.EncodeDLCActivate())
}

// DeactivateSlot deactivates the DLC in slot
func (s *Supervisor) DeactivateSlot(ctx context.Context, slot int) error {
	cmd, err := furble.EncodeDLCDeactivate(slot)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// RequestSlotInfo asks the toy for its DLC slot table
func (s *Supervisor) RequestSlotInfo(ctx context.Context) (furble.Slots, error) {
	frame, err := s.Request(ctx, furble.EncodeDLCSlotInfoRequest(), []byte{furble.MsgDLCSlotInfo})
	if err != nil {
		return furble.Slots{}, err
	}
	n, err := furble.DecodeNotification(frame)
	if err != nil {
		return furble.Slots{}, err
	}
	info, ok := n.(*furble.SlotInfoFrame)
	if !ok {
		return furble.Slots{}, &furble.ProtocolError{Kind: furble.UnknownFrame, Type: n.Type()}
	}
	return info.Slots(), nil
}

// FirmwareVersion asks the toy for its firmware version
func (s *Supervisor) FirmwareVersion(ctx context.Context) (uint8, error) {
	frame, err := s.Request(ctx, furble.EncodeFirmwareRequest(), []byte{furble.MsgFirmware})
	if err != nil {
		return 0, err
	}
	n, err := furble.DecodeNotification(frame)
	if err != nil {
		return 0, err
	}
	fw, ok := n.(*furble.FirmwareFrame)
	if !ok {
		return 0, &furble.ProtocolError{Kind: furble.UnknownFrame, Type: n.Type()}
	}
	return fw.Version, nil
}

// BeginUpload starts uploading payload to slot under the device form of name.
// Argument errors are returned before anything is written. It returns once
// the transfer is announced; progress and the outcome arrive as events.
func (s *Supervisor) BeginUpload(ctx context.Context, slot int, name string, payload []byte) error {
	sess, writes, err := dlc.Begin(slot, furble.DeviceFilename(name), payload,
		dlc.WithChunkSize(s.cfg.ChunkSize),
		dlc.WithMaxRetries(s.cfg.MaxRetries),
		dlc.WithLogger(s.log),
	)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, &request{cmds: writes, upload: sess})
	return err
}

// CancelUpload cancels the active upload, if any. It never blocks.
// The cancel names the upload active at the time of the call, so it never
// reaches an upload started afterwards.
func (s *Supervisor) CancelUpload() {
	target := s.upload.Load()
	if target == nil {
		return
	}

	select {
	case s.cancel <- target:
		return
	default:
	}

	// Replace a cancel left for an earlier upload
	select {
	case <-s.cancel:
	default:
	}
	select {
	case s.cancel <- target:
	default:
	}
}

// Run connects and serves until ctx is done or Stop is called. It reconnects
// indefinitely using the retry policy. Run may be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)
	defer close(s.events)

	ctx, cancel := context.WithCancel(ctx)
	r := &loop{
		s:       s,
		ctx:     ctx,
		cancel:  cancel,
		dialled: make(chan dialResult, 1),
	}
	defer r.shutdown()

	r.dial()
	for {
		var requests chan *request
		if r.waiter == nil {
			requests = s.requests
		}

		select {
		case <-ctx.Done():
			return nil

		case <-s.stop:
			return nil

		case res := <-r.dialled:
			r.connect(res)

		case <-r.backoffC:
			r.backoffC = nil
			r.dial()

		case frame, ok := <-r.notes:
			if !ok {
				r.lost(nil)
				continue
			}
			r.route(frame)

		case <-r.chunkC:
			r.chunkC = nil
			if r.uploading() {
				r.apply(r.active.Timeout())
			}

		case <-r.waitC:
			r.waitC = nil
			r.resolve(nil, ErrRequestTimeout)

		case req := <-requests:
			r.handle(req)

		case target := <-s.cancel:
			if r.uploading() && r.active == target {
				r.apply(r.active.Cancel())
			}
		}
	}
}

type dialResult struct {
	conn transport.Conn
	err  error
}

type waiter struct {
	prefix []byte
	reply  chan reply
	timer  *time.Timer
}

// loop is the state owned by the Run goroutine
type loop struct {
	s      *Supervisor
	ctx    context.Context
	cancel context.CancelFunc

	conn    transport.Conn
	notes   <-chan []byte
	attempt int

	dialing  bool
	dialled  chan dialResult
	backoff  *time.Timer
	backoffC <-chan time.Time

	active *dlc.Session
	chunk  *time.Timer
	chunkC <-chan time.Time

	waiter *waiter
	waitC  <-chan time.Time

	slots     furble.Slots
	haveSlots bool
}

func (r *loop) emit(ev Event) {
	select {
	case r.s.events <- ev:
	default:
		r.s.log.Warn("event queue full, event dropped", zap.String("event", fmt.Sprintf("%T", ev)))
	}
}

func (r *loop) dial() {
	r.dialing = true
	go func() {
		conn, err := r.s.dialer.Dial(r.ctx)
		r.dialled <- dialResult{conn: conn, err: err}
	}()
}

func (r *loop) connect(res dialResult) {
	r.dialing = false
	if res.err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.s.log.Warn("connection failed", zap.Error(res.err), zap.Int("attempt", r.attempt+1))
		r.redial()
		return
	}

	r.attempt = 0
	r.conn = res.conn
	r.notes = res.conn.Notifications()
	r.s.connected.Store(true)
	r.s.log.Info("connected")
	r.emit(Connected{})
}

func (r *loop) redial() {
	r.attempt++
	delay := r.s.cfg.Retry.Delay(r.attempt)
	r.s.log.Info("reconnecting", zap.Duration("delay", delay), zap.Int("attempt", r.attempt))

	if r.backoff != nil {
		r.backoff.Stop()
	}
	r.backoff = time.NewTimer(delay)
	r.backoffC = r.backoff.C
}

// lost tears down the current connection and schedules a reconnect
func (r *loop) lost(err error) {
	if r.conn == nil {
		return
	}
	r.s.log.Warn("connection lost", zap.Error(err))

	r.conn.Close()
	r.conn = nil
	r.notes = nil
	r.s.connected.Store(false)
	r.emit(Disconnected{Err: err})

	if r.uploading() {
		r.apply(r.active.Fail(furble.ConnectionLost))
	}
	r.resolve(nil, furble.ErrNotConnected)
	r.redial()
}

func (r *loop) write(cmd furble.Command) error {
	if r.conn == nil {
		return furble.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.s.cfg.RequestTimeout)
	defer cancel()

	r.s.log.Debug("write", zap.Stringer("channel", cmd.Channel()), zap.String("frame", furble.ToHex(cmd.Bytes())))
	return r.conn.Write(ctx, cmd.Channel(), cmd.Bytes())
}

func (r *loop) handle(req *request) {
	if r.conn == nil {
		req.reply <- reply{err: furble.ErrNotConnected}
		return
	}

	if req.upload != nil {
		if r.uploading() {
			req.reply <- reply{err: furble.ErrTransferActive}
			return
		}
		r.active = req.upload
		r.s.upload.Store(req.upload)
		r.emitSlots()
		r.apply(dlc.Result{Writes: req.cmds})
		req.reply <- reply{err: r.active.Err()}
		return
	}

	for _, cmd := range req.cmds {
		if err := r.write(cmd); err != nil {
			err = fmt.Errorf("write %s: %w", cmd, err)
			req.reply <- reply{err: err}
			r.lost(err)
			return
		}
	}

	if req.expect == nil {
		req.reply <- reply{}
		return
	}

	timer := time.NewTimer(r.s.cfg.RequestTimeout)
	r.waiter = &waiter{prefix: req.expect, reply: req.reply, timer: timer}
	r.waitC = timer.C
}

func (r *loop) resolve(frame []byte, err error) {
	if r.waiter == nil {
		return
	}
	r.waiter.timer.Stop()
	r.waiter.reply <- reply{frame: frame, err: err}
	r.waiter = nil
	r.waitC = nil
}

// route dispatches one inbound frame
func (r *loop) route(frame []byte) {
	r.s.publish(frame)

	n, err := furble.DecodeNotification(frame)
	if err != nil {
		r.s.log.Debug("dropping malformed frame", zap.String("frame", furble.ToHex(frame)), zap.Error(err))
		return
	}

	consumed := false
	if r.waiter != nil && furble.MatchesPrefix(r.waiter.prefix, frame) {
		r.resolve(frame, nil)
		consumed = true
	}

	switch f := n.(type) {
	case *furble.TransferModeFrame:
		if r.active != nil {
			r.apply(r.active.Handle(f.Mode))
			consumed = true
		}

	case *furble.SensorFrame:
		r.emit(StateChanged{State: f.State})
		consumed = true

	case *furble.SlotInfoFrame:
		r.slots = f.Slots()
		r.haveSlots = true
		r.emitSlots()
		consumed = true

	case *furble.FirmwareFrame:
		r.emit(FirmwareVersion{Version: f.Version})
		consumed = true
	}

	if !consumed {
		r.s.log.Debug("dead-letter frame", zap.String("frame", furble.ToHex(frame)))
	}
}

func (r *loop) emitSlots() {
	if !r.haveSlots {
		return
	}
	slots := r.slots
	if r.uploading() {
		slots = slots.WithUploading(r.active.Slot())
	}
	r.emit(SlotStatusChanged{Slots: slots})
}

func (r *loop) uploading() bool {
	return r.active != nil && !r.active.Terminal()
}

// apply writes the frames produced by the upload session and handles its
// progress and outcome
func (r *loop) apply(res dlc.Result) {
	for _, cmd := range res.Writes {
		if err := r.write(cmd); err != nil {
			r.lost(fmt.Errorf("write %s: %w", cmd, err))
			return
		}
	}

	if res.Sent > 0 {
		sent, total := r.active.Progress()
		r.emit(TransferProgress{Slot: r.active.Slot(), Sent: sent, Total: total})
	}

	if res.Finished {
		r.stopChunk()
		r.finish()
		return
	}

	if r.uploading() {
		r.armChunk()
	}
}

func (r *loop) finish() {
	a := r.active
	r.s.upload.CompareAndSwap(a, nil)
	if a.State() == dlc.StateCompleted {
		r.emit(TransferCompleted{Slot: a.Slot()})
		if r.conn != nil {
			if err := r.write(furble.EncodeDLCSlotInfoRequest()); err != nil {
				r.s.log.Debug("slot info refresh failed", zap.Error(err))
			}
		}
		return
	}

	reason, _ := furble.FailureOf(a.Err())
	r.emit(TransferFailed{Slot: a.Slot(), Reason: reason, Err: a.Err()})
	r.emitSlots()
}

func (r *loop) armChunk() {
	r.stopChunk()
	r.chunk = time.NewTimer(r.s.cfg.ChunkTimeout)
	r.chunkC = r.chunk.C
}

func (r *loop) stopChunk() {
	if r.chunk != nil {
		r.chunk.Stop()
		r.chunk = nil
	}
	r.chunkC = nil
}

func (r *loop) shutdown() {
	r.cancel()

	if r.uploading() && r.conn != nil {
		res := r.active.Cancel()
		for _, cmd := range res.Writes {
			ctx, cancel := context.WithTimeout(context.Background(), r.s.cfg.RequestTimeout)
			r.conn.Write(ctx, cmd.Channel(), cmd.Bytes())
			cancel()
		}
		r.finish()
	}
	r.stopChunk()
	r.resolve(nil, ErrStopped)

	if r.backoff != nil {
		r.backoff.Stop()
	}
	if r.dialing {
		if res := <-r.dialled; res.conn != nil {
			res.conn.Close()
		}
	}
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.s.connected.Store(false)
	r.s.closeSubscribers()
	r.s.log.Debug("supervisor stopped")
}
