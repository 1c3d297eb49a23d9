package encoder

import (
	"errors"
	"fmt"
)

// ErrEncoderClosed is matched by every *EncoderClosedError
var ErrEncoderClosed = errors.New("encoder: session closed")

// ErrCodecNotFound is returned by a backend that has no implementation for the
// requested codec or encoder name.
var ErrCodecNotFound = errors.New("encoder: codec implementation not found")

// UnsupportedCodecError reports a codec with no usable implementation
type UnsupportedCodecError struct {
	Codec   CodecID
	Encoder string
}

func (e *UnsupportedCodecError) Error() string {
	if e.Encoder != "" {
		return fmt.Sprintf("unsupported codec %s: encoder %q not available", e.Codec, e.Encoder)
	}
	return fmt.Sprintf("unsupported codec %s", e.Codec)
}

// EncoderInitError reports parameters rejected by the codec implementation
type EncoderInitError struct {
	Params Params
	Err    error
}

func (e *EncoderInitError) Error() string {
	return fmt.Sprintf("failed to initialise %s encoder (%dx%d %s): %v",
		e.Params.Codec, e.Params.Width, e.Params.Height, e.Params.Format, e.Err)
}

func (e *EncoderInitError) Unwrap() error {
	return e.Err
}

// OrderingError reports a presentation timestamp that does not increase
type OrderingError struct {
	Last int64
	Got  int64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("non-increasing timestamp: got %d after %d", e.Got, e.Last)
}

// EncodeFailure reports a frame the encoder could not accept. The session
// stays open.
type EncodeFailure struct {
	FrameIndex int
	Reason     string
	Err        error
}

func (e *EncodeFailure) Error() string {
	return fmt.Sprintf("failed to encode frame %d: %s", e.FrameIndex, e.Reason)
}

func (e *EncodeFailure) Unwrap() error {
	return e.Err
}

// EncoderClosedError reports an operation on a session that is not open
type EncoderClosedError struct {
	Op      string
	Flushed bool
}

func (e *EncoderClosedError) Error() string {
	if e.Flushed {
		return fmt.Sprintf("encoder: %s after flush", e.Op)
	}
	return fmt.Sprintf("encoder: %s on a session that is not open", e.Op)
}

func (e *EncoderClosedError) Is(target error) bool {
	return target == ErrEncoderClosed
}
