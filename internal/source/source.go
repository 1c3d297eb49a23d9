// Package source delivers decoded video frames as packed pixel rows.
package source

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/framecast/internal/frame"
)

// Source yields decoded frames in presentation order
type Source interface {
	// FrameCount is the number of frames the source reports, or -1 if unknown
	FrameCount() int
	Dimensions() (width, height int)
	FrameRate() float64
	Format() frame.Format
	// Next returns io.EOF once no frames remain. The returned frame is only
	// valid until the following call.
	Next() (*RawFrame, error)
	Close() error
}

// RawFrame is one packed image with its own row stride
type RawFrame struct {
	Index  int
	Data   []byte
	Stride int
}

// OpenError reports an input that could not be opened or probed
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open input %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// Options configures how inputs are opened
type Options struct {
	FFmpegPath  string // explicit ffmpeg binary
	FFprobePath string // explicit ffprobe binary
	Logger      logrus.FieldLogger
}

// Open opens path as a frame source. Paths starting with "synthetic:"
// generate frames in memory, anything else is decoded with ffmpeg.
func Open(path string, opts Options) (Source, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	if strings.HasPrefix(path, SyntheticPrefix) {
		cfg, err := ParseSynthetic(path)
		if err != nil {
			return nil, &OpenError{Path: path, Err: err}
		}
		return NewSynthetic(cfg), nil
	}
	return OpenFFmpeg(path, opts)
}
