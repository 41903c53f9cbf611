package printer

import (
	"context"
	"fmt"
	"sync"

	"github.com/janneta/canvass/status"
	"go.uber.org/zap"
)

// Device is a connected printer.
type Device interface {
	Name() string
	Connected() bool
	Characteristic() Characteristic
	Disconnect() error
}

// Dialer connects to a printer.
type Dialer interface {
	Dial(ctx context.Context) (Device, error)
}

// State describes the shared connection.
type State struct {
	Status         status.Status `json:"-"`
	StatusText     string        `json:"status"`
	Connected      bool          `json:"connected"`
	Device         string        `json:"device,omitempty"`
	Characteristic string        `json:"characteristic,omitempty"`
}

// Connection is the process-wide printer connection. It is reused
// while the device stays connected and dropped after any failure.
// Only one job runs at a time; a second one fails with ErrBusy.
type Connection struct {
	dialer Dialer
	opts   Options
	logger *zap.SugaredLogger

	job sync.Mutex

	mu     sync.Mutex
	device Device
	status status.Status
}

// NewConnection returns a disconnected connection dialing through d.
func NewConnection(d Dialer, opts Options, logger *zap.SugaredLogger) *Connection {
	return &Connection{dialer: d, opts: opts, logger: logger, status: status.Disconnected}
}

// State returns a snapshot of the connection.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Status: c.status, StatusText: status.Text(c.status)}
	if c.device != nil {
		st.Connected = c.device.Connected()
		st.Device = c.device.Name()
		if ch := c.device.Characteristic(); ch != nil {
			st.Characteristic = ch.UUID()
		}
	}
	return st
}

func (c *Connection) setStatus(s status.Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Ensure returns the live device, dialing a new one when there is none
// or the previous one dropped.
func (c *Connection) Ensure(ctx context.Context) (Device, error) {
	c.mu.Lock()
	if c.device != nil && c.device.Connected() && c.device.Characteristic() != nil {
		d := c.device
		c.mu.Unlock()
		return d, nil
	}
	c.status = status.Connecting
	c.mu.Unlock()

	d, err := c.dialer.Dial(ctx)
	if err == nil && d.Characteristic() == nil {
		d.Disconnect()
		err = ErrNoWritableCharacteristic
	}
	if err != nil {
		c.Reset()
		return nil, fmt.Errorf("failed to connect to printer, error %w", err)
	}
	c.mu.Lock()
	c.device = d
	c.status = status.Connected
	c.mu.Unlock()
	c.logger.Infow("printer connected", "device", d.Name(), "characteristic", d.Characteristic().UUID())
	return d, nil
}

// Reset drops the current device and marks the connection
// disconnected.
func (c *Connection) Reset() {
	c.mu.Lock()
	d := c.device
	c.device = nil
	c.status = status.Disconnected
	c.mu.Unlock()
	if d != nil {
		if err := d.Disconnect(); err != nil {
			c.logger.Warnw("failed to disconnect printer", "device", d.Name(), "error", err)
		}
	}
}

// Run connects, builds the job with build and streams it. Any failure
// resets the connection.
func (c *Connection) Run(ctx context.Context, build func(ctx context.Context) ([]byte, error)) error {
	if !c.job.TryLock() {
		return ErrBusy
	}
	defer c.job.Unlock()

	d, err := c.Ensure(ctx)
	if err != nil {
		return err
	}
	payload, err := build(ctx)
	if err != nil {
		c.Reset()
		return err
	}
	c.setStatus(status.Printing)
	if err := Send(ctx, d.Characteristic(), payload, c.opts); err != nil {
		c.logger.Errorw("print job failed, resetting printer connection", "device", d.Name(), "error", err)
		c.Reset()
		return fmt.Errorf("failed to print, error %w", err)
	}
	c.setStatus(status.Connected)
	c.logger.Infow("print job sent", "device", d.Name(), "bytes", len(payload))
	return nil
}

// Print streams an already built payload.
func (c *Connection) Print(ctx context.Context, payload []byte) error {
	return c.Run(ctx, func(context.Context) ([]byte, error) { return payload, nil })
}
