package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/framecast/internal/frame"
)

// FFmpegSource decodes a media file with an ffmpeg subprocess that writes
// raw BGR24 frames to a pipe.
type FFmpegSource struct {
	path string
	md   Metadata
	log  logrus.FieldLogger

	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr bytes.Buffer

	buf    []byte
	stride int
	index  int
	closed bool
}

// OpenFFmpeg probes path and starts the decoder
func OpenFFmpeg(path string, opts Options) (*FFmpegSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	ffprobePath, err := FindTool("ffprobe", opts.FFprobePath)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	ffmpegPath, err := FindTool("ffmpeg", opts.FFmpegPath)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	md, err := Probe(ffprobePath, path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"input":  path,
		"codec":  md.Codec,
		"width":  md.Width,
		"height": md.Height,
		"fps":    md.FrameRate,
		"frames": md.FrameCount,
	}).Debug("probed input")

	s := &FFmpegSource{
		path:   path,
		md:     md,
		log:    log,
		stride: md.Width * 3,
	}
	s.buf = make([]byte, s.stride*md.Height)

	s.cmd = exec.Command(ffmpegPath,
		"-v", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1",
	)
	s.cmd.Stderr = &s.stderr

	s.stdout, err = s.cmd.StdoutPipe()
	if err != nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}
	if err := s.cmd.Start(); err != nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("failed to start ffmpeg: %w", err)}
	}
	s.reader = bufio.NewReaderSize(s.stdout, len(s.buf))

	return s, nil
}

func (s *FFmpegSource) FrameCount() int { return s.md.FrameCount }

func (s *FFmpegSource) Dimensions() (int, int) { return s.md.Width, s.md.Height }

func (s *FFmpegSource) FrameRate() float64 { return s.md.FrameRate }

func (s *FFmpegSource) Format() frame.Format { return frame.FormatBGR24 }

// Metadata returns the probed stream description
func (s *FFmpegSource) Metadata() Metadata { return s.md }

func (s *FFmpegSource) Next() (*RawFrame, error) {
	if s.closed {
		return nil, io.EOF
	}

	n, err := io.ReadFull(s.reader, s.buf)
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("truncated frame %d from ffmpeg: got %d of %d bytes", s.index, n, len(s.buf))
	case err != nil:
		return nil, fmt.Errorf("failed to read frame %d: %w", s.index, err)
	}

	f := &RawFrame{Index: s.index, Data: s.buf, Stride: s.stride}
	s.index++
	return f, nil
}

// Close stops the decoder. A decoder stopped early is killed.
func (s *FFmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.stdout.Close()
	s.cmd.Process.Kill()
	if err := s.cmd.Wait(); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"frames_read": s.index,
			"stderr":      strings.TrimSpace(s.stderr.String()),
		}).Debug("ffmpeg exited")
	}
	return nil
}
