// Package stream writes encoded packets to a byte sink as a raw elementary
// stream.
package stream

import (
	"errors"
	"fmt"

	"github.com/linuxmatters/framecast/internal/encoder"
)

// EndOfSequence is appended once when the stream is finalized
var EndOfSequence = []byte{0x00, 0x00, 0x01, 0xB7}

// ErrFinalized is returned by Write and Finalize after Finalize
var ErrFinalized = errors.New("stream: already finalized")

// ShortWriteError reports a sink that accepted fewer bytes than requested.
// The bytes are not retried.
type ShortWriteError struct {
	Want int
	Got  int
	Err  error
}

func (e *ShortWriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("short write: wrote %d of %d bytes: %v", e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("short write: wrote %d of %d bytes", e.Got, e.Want)
}

func (e *ShortWriteError) Unwrap() error {
	return e.Err
}

// Writer appends packets to a sink
type Writer struct {
	sink      Sink
	finalized bool

	bytes   int64
	packets int
	short   int
}

// NewWriter wraps sink
func NewWriter(sink Sink) *Writer {
	return &Writer{sink: sink}
}

// Write appends the packet payload and flushes the sink
func (w *Writer) Write(p encoder.Packet) error {
	if w.finalized {
		return ErrFinalized
	}
	if p.Size > len(p.Payload) {
		return fmt.Errorf("packet size %d exceeds payload length %d", p.Size, len(p.Payload))
	}
	if p.Size <= 0 {
		return nil
	}

	payload := p.Payload[:p.Size]
	n, err := w.sink.Append(payload)
	w.bytes += int64(n)
	w.packets++
	if n < len(payload) {
		w.short++
		return &ShortWriteError{Want: len(payload), Got: n, Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}

	if err := w.sink.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// Finalize appends the end-of-sequence marker and closes the sink. The sink
// is closed even when the marker cannot be written.
func (w *Writer) Finalize() error {
	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true

	n, err := w.sink.Append(EndOfSequence)
	w.bytes += int64(n)

	var markerErr error
	switch {
	case n < len(EndOfSequence):
		w.short++
		markerErr = &ShortWriteError{Want: len(EndOfSequence), Got: n, Err: err}
	case err != nil:
		markerErr = fmt.Errorf("failed to write end marker: %w", err)
	default:
		if err := w.sink.Flush(); err != nil {
			markerErr = fmt.Errorf("failed to flush output: %w", err)
		}
	}

	if err := w.sink.Close(); err != nil && markerErr == nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return markerErr
}

// Finalized reports whether Finalize has been called
func (w *Writer) Finalized() bool {
	return w.finalized
}

// BytesWritten returns the number of bytes accepted by the sink
func (w *Writer) BytesWritten() int64 {
	return w.bytes
}

// PacketsWritten returns the number of non-empty packets written
func (w *Writer) PacketsWritten() int {
	return w.packets
}

// ShortWrites returns the number of writes the sink truncated
func (w *Writer) ShortWrites() int {
	return w.short
}
