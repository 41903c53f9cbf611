// Package printer streams ESC/POS jobs to a Bluetooth Low Energy
// thermal printer and keeps the single shared printer connection.
package printer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultChunkSize is the largest write sent in one GATT operation.
	DefaultChunkSize = 180

	// DefaultChunkDelay is the pause between two writes.
	DefaultChunkDelay = 40 * time.Millisecond
)

var (
	// ErrNotWritable is returned for a characteristic that supports
	// neither write mode.
	ErrNotWritable = errors.New("characteristic is not writable")

	// ErrNoWritableCharacteristic is returned when a printer exposes no
	// writable characteristic.
	ErrNoWritableCharacteristic = errors.New("no writable characteristic found")

	// ErrBusy is returned when a print job is already running.
	ErrBusy = errors.New("printer is busy")
)

// Characteristic is a writable GATT characteristic.
type Characteristic interface {
	UUID() string
	CanWriteWithoutResponse() bool
	CanWrite() bool
	WriteWithoutResponse(p []byte) error
	Write(p []byte) error
}

// Options tunes how a payload is streamed.
type Options struct {
	ChunkSize  int
	ChunkDelay time.Duration
}

// DefaultOptions returns the chunking printers are known to accept.
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize, ChunkDelay: DefaultChunkDelay}
}

// Send writes payload to ch in chunks of at most opts.ChunkSize bytes,
// waiting opts.ChunkDelay between chunks. Writes are unacknowledged
// when the characteristic allows it. Cancelling ctx stops the stream
// between chunks.
func Send(ctx context.Context, ch Characteristic, payload []byte, opts Options) error {
	write := ch.Write
	switch {
	case ch.CanWriteWithoutResponse():
		write = ch.WriteWithoutResponse
	case ch.CanWrite():
	default:
		return fmt.Errorf("%w: %s", ErrNotWritable, ch.UUID())
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	for off := 0; off < len(payload); off += size {
		if off > 0 && opts.ChunkDelay > 0 {
			t := time.NewTimer(opts.ChunkDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + size
		if end > len(payload) {
			end = len(payload)
		}
		if err := write(payload[off:end]); err != nil {
			return fmt.Errorf("failed to write bytes %d-%d to %s, error %v", off, end, ch.UUID(), err)
		}
	}
	return nil
}
