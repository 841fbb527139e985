// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// DefaultDeviceName is the name Furby Connect advertises
const DefaultDeviceName = "Furby"

// BLEDialer connects to a Furby with the host Bluetooth adapter
type BLEDialer struct {
	// Adapter defaults to bluetooth.DefaultAdapter
	Adapter *bluetooth.Adapter

	// Address selects a specific toy. When empty the first device
	// advertising Name is used.
	Address string

	// Name is the advertised local name to match, default "Furby"
	Name string

	// Logger receives link diagnostics
	Logger *zap.Logger

	enableOnce sync.Once
	enableErr  error

	mu      sync.Mutex
	current *bleConn
}

func (d *BLEDialer) adapter() *bluetooth.Adapter {
	if d.Adapter == nil {
		return bluetooth.DefaultAdapter
	}
	return d.Adapter
}

func (d *BLEDialer) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Dial scans for the toy, connects, discovers the fluff service and
// subscribes to its listen characteristics
func (d *BLEDialer) Dial(ctx context.Context) (Conn, error) {
	adapter := d.adapter()
	log := d.logger()

	if err := d.enable(adapter); err != nil {
		return nil, err
	}

	result, err := d.scan(ctx, adapter)
	if err != nil {
		return nil, err
	}
	log.Info("furby found",
		zap.String("address", result.Address.String()),
		zap.String("name", result.LocalName()),
		zap.Int16("rssi", result.RSSI),
	)

	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", result.Address.String(), err)
	}

	conn, err := d.setup(device, log)
	if err != nil {
		device.Disconnect()
		return nil, err
	}

	d.mu.Lock()
	d.current = conn
	d.mu.Unlock()
	return conn, nil
}

func (d *BLEDialer) enable(adapter *bluetooth.Adapter) error {
	d.enableOnce.Do(func() {
		d.enableErr = adapter.Enable()
		if d.enableErr == nil {
			adapter.SetConnectHandler(d.onConnectChange)
		}
	})
	if d.enableErr != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %w", d.enableErr)
	}
	return nil
}

func (d *BLEDialer) name() string {
	if d.Name == "" {
		return DefaultDeviceName
	}
	return d.Name
}

// Advertisement is a toy seen during Scan
type Advertisement struct {
	Address string
	Name    string
	RSSI    int16
}

// Scan reports every device advertising Name until ctx is done. Each address
// is reported once.
func (d *BLEDialer) Scan(ctx context.Context, found func(Advertisement)) error {
	adapter := d.adapter()
	if err := d.enable(adapter); err != nil {
		return err
	}

	name := d.name()
	seen := make(map[string]bool)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			addr := r.Address.String()
			if r.LocalName() != name || seen[addr] {
				return
			}
			seen[addr] = true
			found(Advertisement{Address: addr, Name: r.LocalName(), RSSI: r.RSSI})
		})
	}()

	select {
	case err := <-scanErr:
		if err != nil {
			return fmt.Errorf("bluetooth scan failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		adapter.StopScan()
		return <-scanErr
	}
}

func (d *BLEDialer) scan(ctx context.Context, adapter *bluetooth.Adapter) (bluetooth.ScanResult, error) {
	name := d.name()

	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if d.Address != "" {
				if !strings.EqualFold(r.Address.String(), d.Address) {
					return
				}
			} else if r.LocalName() != name {
				return
			}
			select {
			case found <- r:
				a.StopScan()
			default:
			}
		})
	}()

	select {
	case r := <-found:
		<-scanErr
		return r, nil
	case err := <-scanErr:
		if err == nil {
			err = fmt.Errorf("scan stopped before %q was found", name)
		}
		return bluetooth.ScanResult{}, fmt.Errorf("bluetooth scan failed: %w", err)
	case <-ctx.Done():
		adapter.StopScan()
		<-scanErr
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func (d *BLEDialer) setup(device bluetooth.Device, log *zap.Logger) (*bleConn, error) {
	serviceUUID, err := bluetooth.ParseUUID(furble.FluffServiceUUID)
	if err != nil {
		return nil, err
	}
	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("failed to discover fluff service: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("device does not expose the fluff service")
	}

	chars, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristics: %w", err)
	}
	byUUID := make(map[string]bluetooth.DeviceCharacteristic, len(chars))
	for _, c := range chars {
		byUUID[strings.ToLower(c.UUID().String())] = c
	}

	conn := &bleConn{
		device: device,
		log:    log.With(zap.String("address", device.Address.String())),
		notes:  make(chan []byte, notificationBuffer),
		done:   make(chan struct{}),
	}

	for i, id := range furble.WriteUUIDs {
		c, ok := byUUID[id]
		if !ok {
			return nil, fmt.Errorf("characteristic %s (%s) not found", furble.Channel(i), id)
		}
		conn.writers[i] = c
	}

	for _, id := range furble.ListenUUIDs {
		c, ok := byUUID[id]
		if !ok {
			return nil, fmt.Errorf("listen characteristic %s not found", id)
		}
		if err := c.EnableNotifications(conn.deliver); err != nil {
			return nil, fmt.Errorf("failed to enable notifications on %s: %w", id, err)
		}
	}
	return conn, nil
}

func (d *BLEDialer) onConnectChange(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	d.mu.Lock()
	conn := d.current
	if conn != nil && conn.device.Address.String() == device.Address.String() {
		d.current = nil
	} else {
		conn = nil
	}
	d.mu.Unlock()

	if conn != nil {
		conn.log.Info("furby disconnected")
		conn.Close()
	}
}

type bleConn struct {
	device  bluetooth.Device
	writers [3]bluetooth.DeviceCharacteristic
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	notes  chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *bleConn) deliver(buf []byte) {
	frame := make([]byte, len(buf))
	copy(frame, buf)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.log.Debug("notification", zap.String("frame", furble.ToHex(frame)))
	select {
	case c.notes <- frame:
	case <-c.done:
	}
}

func (c *bleConn) Write(ctx context.Context, ch furble.Channel, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if int(ch) >= len(c.writers) {
		return fmt.Errorf("unknown channel %d", ch)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.log.Debug("write", zap.Stringer("channel", ch), zap.String("frame", furble.ToHex(data)))
	if _, err := c.writers[ch].WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("write to %s failed: %w", ch, err)
	}
	return nil
}

func (c *bleConn) Notifications() <-chan []byte {
	return c.notes
}

func (c *bleConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.closed = true
		close(c.notes)
		c.mu.Unlock()
		err = c.device.Disconnect()
	})
	return err
}
