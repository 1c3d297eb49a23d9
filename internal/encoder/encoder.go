// Package encoder drives a compression session over a pluggable codec
// backend and enforces its state machine.
package encoder

import (
	"errors"
	"fmt"

	"github.com/linuxmatters/framecast/internal/frame"
)

// Params holds the encoder configuration. Width, Height and Format are fixed
// for the whole session.
type Params struct {
	Width       int          // Frame width in pixels
	Height      int          // Frame height in pixels
	Format      frame.Format // Pixel format of submitted frames
	Codec       CodecID
	FrameRate   float64 // Frames per second, used for the time base
	GOPSize     int     // Keyframe interval, 0 lets the backend decide
	MaxBFrames  int
	BitRate     int64  // Bits per second, 0 lets the backend decide
	EncoderName string // Explicit implementation, e.g. "libx264"
	HWAccel     string // auto, none, nvenc, videotoolbox
}

func (p Params) validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", p.Width, p.Height)
	}
	if !p.Format.Valid() {
		return fmt.Errorf("invalid pixel format: %s", p.Format)
	}
	if p.FrameRate <= 0 {
		return fmt.Errorf("invalid framerate: %g", p.FrameRate)
	}
	if p.GOPSize < 0 || p.MaxBFrames < 0 || p.BitRate < 0 {
		return fmt.Errorf("invalid rate control: gop=%d bframes=%d bitrate=%d", p.GOPSize, p.MaxBFrames, p.BitRate)
	}
	return nil
}

// Packet is one unit of compressed output
type Packet struct {
	Payload  []byte
	Size     int
	PTS      int64
	DTS      int64
	Keyframe bool
}

// Empty reports whether the packet carries no bytes
func (p Packet) Empty() bool {
	return p.Size <= 0 || len(p.Payload) == 0
}

// Codec is a compression backend. Send may return packets for earlier
// frames; Drain returns everything still buffered.
type Codec interface {
	Open(p Params) error
	Send(f *frame.Frame, pts int64) ([]Packet, error)
	Drain() ([]Packet, error)
	Close() error
}

// State of an encoder session
type State int

const (
	StateClosed State = iota
	StateOpened
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateFlushing:
		return "flushing"
	default:
		return "closed"
	}
}

// Encoder is one compression session. It is not safe for concurrent use.
type Encoder struct {
	registry *Registry
	codec    Codec
	params   Params
	name     string
	state    State
	flushed  bool

	submitted int
	lastPTS   int64
	hasPTS    bool
}

// New creates a closed encoder that resolves backends from registry
func New(registry *Registry) *Encoder {
	return &Encoder{registry: registry}
}

// State returns the current session state
func (e *Encoder) State() State {
	return e.state
}

// Params returns the parameters of the current or last session
func (e *Encoder) Params() Params {
	return e.params
}

// Name returns the encoder chosen by the backend for the current or last
// session, or "" if the backend does not report one
func (e *Encoder) Name() string {
	return e.name
}

// Submitted returns the number of frames handed to the backend
func (e *Encoder) Submitted() int {
	return e.submitted
}

// Open starts a session
func (e *Encoder) Open(p Params) error {
	if e.state != StateClosed {
		return fmt.Errorf("encoder: open on a session in state %s", e.state)
	}

	factory, ok := e.registry.Lookup(p.Codec)
	if !ok {
		return &UnsupportedCodecError{Codec: p.Codec, Encoder: p.EncoderName}
	}
	if err := p.validate(); err != nil {
		return &EncoderInitError{Params: p, Err: err}
	}

	codec := factory()
	if err := codec.Open(p); err != nil {
		codec.Close()
		if errors.Is(err, ErrCodecNotFound) {
			return &UnsupportedCodecError{Codec: p.Codec, Encoder: p.EncoderName}
		}
		return &EncoderInitError{Params: p, Err: err}
	}

	e.codec = codec
	e.params = p
	e.name = ""
	if n, ok := codec.(interface{ Name() string }); ok {
		e.name = n.Name()
	}
	e.state = StateOpened
	e.flushed = false
	e.submitted = 0
	e.hasPTS = false
	return nil
}

// Submit hands one frame to the backend and returns any packets it produced
func (e *Encoder) Submit(f *frame.Frame, pts int64) ([]Packet, error) {
	if e.state != StateOpened {
		return nil, &EncoderClosedError{Op: "submit", Flushed: e.flushed}
	}
	if e.hasPTS && pts <= e.lastPTS {
		return nil, &OrderingError{Last: e.lastPTS, Got: pts}
	}
	if err := e.checkFrame(f); err != nil {
		return nil, &EncodeFailure{FrameIndex: e.submitted, Reason: err.Error(), Err: err}
	}

	index := e.submitted
	e.submitted++
	e.lastPTS = pts
	e.hasPTS = true

	packets, err := e.codec.Send(f, pts)
	if err != nil {
		return packets, &EncodeFailure{FrameIndex: index, Reason: err.Error(), Err: err}
	}
	return packets, nil
}

func (e *Encoder) checkFrame(f *frame.Frame) error {
	if f == nil {
		return errors.New("nil frame")
	}
	if f.Width != e.params.Width || f.Height != e.params.Height || f.Format != e.params.Format {
		return fmt.Errorf("frame is %dx%d %s, session expects %dx%d %s",
			f.Width, f.Height, f.Format, e.params.Width, e.params.Height, e.params.Format)
	}
	return f.Validate()
}

// Flush drains all buffered packets and closes the session
func (e *Encoder) Flush() ([]Packet, error) {
	if e.state != StateOpened {
		return nil, &EncoderClosedError{Op: "flush", Flushed: e.flushed}
	}

	e.state = StateFlushing
	packets, drainErr := e.codec.Drain()
	closeErr := e.codec.Close()

	e.codec = nil
	e.state = StateClosed
	e.flushed = true

	if drainErr != nil {
		return packets, fmt.Errorf("failed to drain encoder: %w", drainErr)
	}
	if closeErr != nil {
		return packets, fmt.Errorf("failed to close encoder: %w", closeErr)
	}
	return packets, nil
}

// Close releases the backend from any state. Buffered packets are lost.
func (e *Encoder) Close() error {
	if e.codec == nil {
		e.state = StateClosed
		return nil
	}
	err := e.codec.Close()
	e.codec = nil
	e.state = StateClosed
	return err
}
